package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OpenAIProvider targets the Responses API used by the GPT-5 models.
type OpenAIProvider struct {
	BaseURL string
	APIKey  string
	Model   string
	Client  *http.Client
}

func NewOpenAIProvider(baseURL, apiKey, model string) *OpenAIProvider {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "gpt-5-mini"
	}
	return &OpenAIProvider{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		Client:  &http.Client{Timeout: 300 * time.Second},
	}
}

type openaiInputMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiReasoning struct {
	Effort string `json:"effort,omitempty"`
}

type openaiText struct {
	Verbosity string `json:"verbosity,omitempty"`
}

type openaiTool struct {
	Type string `json:"type"`
}

type openaiChatReq struct {
	Model           string           `json:"model"`
	Input           []openaiInputMsg `json:"input"`
	MaxOutputTokens int              `json:"max_output_tokens,omitempty"`
	Reasoning       *openaiReasoning `json:"reasoning,omitempty"`
	Text            *openaiText      `json:"text,omitempty"`
	Tools           []openaiTool     `json:"tools,omitempty"`
}

type openaiOutputItem struct {
	Type    string `json:"type"`
	Content []struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		Annotations []struct {
			Type  string `json:"type"`
			Title string `json:"title"`
			URL   string `json:"url"`
		} `json:"annotations,omitempty"`
	} `json:"content,omitempty"`
	Summary []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"summary,omitempty"`
}

type openaiChatResp struct {
	Output []openaiOutputItem `json:"output"`
	Usage  *struct {
		InputTokens        int `json:"input_tokens"`
		InputTokensDetails struct {
			CachedTokens int `json:"cached_tokens"`
		} `json:"input_tokens_details"`
		OutputTokens        int `json:"output_tokens"`
		OutputTokensDetails struct {
			ReasoningTokens int `json:"reasoning_tokens"`
		} `json:"output_tokens_details"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *OpenAIProvider) Chat(ctx context.Context, req Request) (*Result, error) {
	if p.Client == nil {
		return nil, errors.New("openai: http client is nil")
	}
	if strings.TrimSpace(p.APIKey) == "" {
		return nil, errors.New("openai: api key is required")
	}

	body := openaiChatReq{
		Model: p.Model,
		Input: func() []openaiInputMsg {
			out := make([]openaiInputMsg, 0, len(req.Messages))
			for _, m := range req.Messages {
				out = append(out, openaiInputMsg{Role: m.Role, Content: m.Content})
			}
			return out
		}(),
		MaxOutputTokens: req.Config.MaxTokens,
	}
	if opt := req.Config.GPT5; opt != nil {
		if opt.ReasoningEffort != "" {
			body.Reasoning = &openaiReasoning{Effort: opt.ReasoningEffort}
		}
		if opt.Verbosity != "" {
			body.Text = &openaiText{Verbosity: opt.Verbosity}
		}
	}
	if req.Config.WebSearch {
		body.Tools = append(body.Tools, openaiTool{Type: "web_search"})
	}

	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/responses", strings.TrimRight(p.BaseURL, "/"))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.APIKey)

	resp, err := p.Client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		msg := strings.TrimSpace(string(raw))
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("openai: %s", msg)
	}

	var decoded openaiChatResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return nil, errors.New(decoded.Error.Message)
	}

	res := &Result{}
	var text, reasoning strings.Builder
	for _, item := range decoded.Output {
		switch item.Type {
		case "message":
			for _, c := range item.Content {
				if c.Type != "output_text" {
					continue
				}
				text.WriteString(c.Text)
				for _, a := range c.Annotations {
					if a.Type == "url_citation" && a.Title != "" && a.URL != "" {
						res.WebSearchResults = append(res.WebSearchResults, WebSearchResult{Title: a.Title, URL: a.URL})
					}
				}
			}
		case "reasoning":
			for _, s := range item.Summary {
				reasoning.WriteString(s.Text)
			}
		}
	}
	res.Content = text.String()
	res.Thinking = reasoning.String()
	if res.Content == "" {
		return nil, errors.New("openai: empty response")
	}
	if decoded.Usage != nil {
		res.GPT5Usage = &GPT5Usage{
			InputTokens:       decoded.Usage.InputTokens,
			CachedInputTokens: decoded.Usage.InputTokensDetails.CachedTokens,
			OutputTokens:      decoded.Usage.OutputTokens,
			ReasoningTokens:   decoded.Usage.OutputTokensDetails.ReasoningTokens,
		}
	}
	return res, nil
}
