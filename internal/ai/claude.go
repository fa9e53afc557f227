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

type ClaudeProvider struct {
	BaseURL string
	APIKey  string
	Model   string
	Client  *http.Client
}

func NewClaudeProvider(baseURL, apiKey, model string) *ClaudeProvider {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	return &ClaudeProvider{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		Client:  &http.Client{Timeout: 300 * time.Second},
	}
}

type claudeMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeThinking struct {
	Type         string `json:"type"`
	BudgetTokens int    `json:"budget_tokens"`
}

type claudeTool struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	MaxUses int    `json:"max_uses,omitempty"`
}

type claudeChatReq struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	Messages  []claudeMsg     `json:"messages"`
	Thinking  *claudeThinking `json:"thinking,omitempty"`
	Tools     []claudeTool    `json:"tools,omitempty"`
}

type claudeContentBlock struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Thinking string `json:"thinking,omitempty"`
	Content  []struct {
		Type  string `json:"type"`
		Title string `json:"title"`
		URL   string `json:"url"`
	} `json:"content,omitempty"`
}

type claudeChatResp struct {
	Content []claudeContentBlock `json:"content"`
	Usage   *ClaudeUsage         `json:"usage"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *ClaudeProvider) Chat(ctx context.Context, req Request) (*Result, error) {
	if p.Client == nil {
		return nil, errors.New("claude: http client is nil")
	}
	if strings.TrimSpace(p.APIKey) == "" {
		return nil, errors.New("claude: api key is required")
	}

	maxTokens := req.Config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}

	body := claudeChatReq{
		Model:     p.Model,
		MaxTokens: maxTokens,
		Messages: func() []claudeMsg {
			out := make([]claudeMsg, 0, len(req.Messages))
			for _, m := range req.Messages {
				out = append(out, claudeMsg{Role: m.Role, Content: m.Content})
			}
			return out
		}(),
	}
	if opt := req.Config.Claude; opt != nil && opt.ThinkingEnabled && opt.ThinkingBudget > 0 {
		body.Thinking = &claudeThinking{Type: "enabled", BudgetTokens: opt.ThinkingBudget}
		// thinking budget must fit inside max_tokens
		if body.MaxTokens <= opt.ThinkingBudget {
			body.MaxTokens = opt.ThinkingBudget + maxTokens
		}
	}
	if req.Config.WebSearch {
		body.Tools = append(body.Tools, claudeTool{Type: "web_search_20250305", Name: "web_search", MaxUses: 5})
	}

	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1/messages", strings.TrimRight(p.BaseURL, "/"))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.APIKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

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
		return nil, fmt.Errorf("claude: %s", msg)
	}

	var decoded claudeChatResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return nil, errors.New(decoded.Error.Message)
	}

	res := &Result{ClaudeUsage: decoded.Usage}
	var text, thinking strings.Builder
	for _, block := range decoded.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "thinking":
			thinking.WriteString(block.Thinking)
		case "web_search_tool_result":
			for _, r := range block.Content {
				if r.Type == "web_search_result" && r.Title != "" && r.URL != "" {
					res.WebSearchResults = append(res.WebSearchResults, WebSearchResult{Title: r.Title, URL: r.URL})
				}
			}
		}
	}
	res.Content = text.String()
	res.Thinking = thinking.String()
	if res.Content == "" && res.Thinking == "" {
		return nil, errors.New("claude: empty response")
	}
	return res, nil
}
