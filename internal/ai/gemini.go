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

type GeminiProvider struct {
	BaseURL string
	APIKey  string
	Model   string
	Client  *http.Client
}

func NewGeminiProvider(baseURL, apiKey, model string) *GeminiProvider {
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &GeminiProvider{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		Client:  &http.Client{Timeout: 300 * time.Second},
	}
}

type geminiPart struct {
	Text    string `json:"text,omitempty"`
	Thought bool   `json:"thought,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiThinkingConfig struct {
	ThinkingBudget  int  `json:"thinkingBudget"`
	IncludeThoughts bool `json:"includeThoughts,omitempty"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens int                   `json:"maxOutputTokens,omitempty"`
	ThinkingConfig  *geminiThinkingConfig `json:"thinkingConfig,omitempty"`
}

type geminiChatReq struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
	Tools            []map[string]any        `json:"tools,omitempty"`
}

type geminiChatResp struct {
	Candidates []struct {
		Content           geminiContent `json:"content"`
		GroundingMetadata *struct {
			GroundingChunks []struct {
				Web *struct {
					URI   string `json:"uri"`
					Title string `json:"title"`
				} `json:"web,omitempty"`
			} `json:"groundingChunks"`
		} `json:"groundingMetadata,omitempty"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount        int `json:"promptTokenCount"`
		CandidatesTokenCount    int `json:"candidatesTokenCount"`
		ThoughtsTokenCount      int `json:"thoughtsTokenCount"`
		CachedContentTokenCount int `json:"cachedContentTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *GeminiProvider) Chat(ctx context.Context, req Request) (*Result, error) {
	if p.Client == nil {
		return nil, errors.New("gemini: http client is nil")
	}
	if strings.TrimSpace(p.APIKey) == "" {
		return nil, errors.New("gemini: api key is required")
	}

	body := geminiChatReq{
		Contents: func() []geminiContent {
			out := make([]geminiContent, 0, len(req.Messages))
			for _, m := range req.Messages {
				role := m.Role
				// Gemini uses "model" where everyone else says "assistant".
				if role == "assistant" {
					role = "model"
				}
				out = append(out, geminiContent{Role: role, Parts: []geminiPart{{Text: m.Content}}})
			}
			return out
		}(),
	}
	gen := &geminiGenerationConfig{MaxOutputTokens: req.Config.MaxTokens}
	if opt := req.Config.Gemini; opt != nil && opt.ThinkingBudget != 0 {
		gen.ThinkingConfig = &geminiThinkingConfig{
			ThinkingBudget:  opt.ThinkingBudget,
			IncludeThoughts: opt.IncludeThoughts,
		}
	}
	body.GenerationConfig = gen
	if req.Config.WebSearch {
		body.Tools = append(body.Tools, map[string]any{"google_search": map[string]any{}})
	}

	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimRight(p.BaseURL, "/"), p.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", p.APIKey)

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
		return nil, fmt.Errorf("gemini: %s", msg)
	}

	var decoded geminiChatResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return nil, errors.New(decoded.Error.Message)
	}
	if len(decoded.Candidates) == 0 {
		return nil, errors.New("gemini: empty response")
	}

	res := &Result{}
	var text, thinking strings.Builder
	cand := decoded.Candidates[0]
	for _, part := range cand.Content.Parts {
		if part.Thought {
			thinking.WriteString(part.Text)
		} else {
			text.WriteString(part.Text)
		}
	}
	res.Content = text.String()
	res.Thinking = thinking.String()

	if gm := cand.GroundingMetadata; gm != nil {
		for _, chunk := range gm.GroundingChunks {
			if chunk.Web != nil && chunk.Web.Title != "" && chunk.Web.URI != "" {
				res.WebSearchResults = append(res.WebSearchResults, WebSearchResult{Title: chunk.Web.Title, URL: chunk.Web.URI})
			}
		}
	}
	if u := decoded.UsageMetadata; u != nil {
		res.GeminiUsage = &GeminiUsage{
			PromptTokens:  u.PromptTokenCount,
			OutputTokens:  u.CandidatesTokenCount,
			ThoughtTokens: u.ThoughtsTokenCount,
			CachedTokens:  u.CachedContentTokenCount,
		}
	}
	return res, nil
}
