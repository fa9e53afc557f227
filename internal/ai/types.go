package ai

import "context"

// Family identifies a provider wire protocol and billing model.
type Family string

const (
	FamilyClaude Family = "claude"
	FamilyGPT5   Family = "gpt5"
	FamilyGemini Family = "gemini"
	FamilyOllama Family = "ollama"
)

// FamilyOf maps a stored provider name to its family.
func FamilyOf(provider string) Family {
	switch provider {
	case "claude":
		return FamilyClaude
	case "openai":
		return FamilyGPT5
	case "gemini":
		return FamilyGemini
	default:
		return FamilyOllama
	}
}

type Message struct {
	Role    string
	Content string
}

// GenConfig is a tagged union: exactly the variant matching Family is set,
// the others are nil. Common knobs live at the top level.
type GenConfig struct {
	Family    Family
	MaxTokens int
	WebSearch bool

	Claude *ClaudeOptions
	GPT5   *GPT5Options
	Gemini *GeminiOptions
}

type ClaudeOptions struct {
	ThinkingEnabled bool
	ThinkingBudget  int
}

type GPT5Options struct {
	ReasoningEffort string // minimal, low, medium, high
	Verbosity       string // low, medium, high
}

type GeminiOptions struct {
	ThinkingBudget  int // 0 disables thinking
	IncludeThoughts bool
}

type Request struct {
	Messages []Message
	Config   GenConfig
}

// Token-usage breakdowns, one shape per billing model. A Result carries at
// most one of them.
type ClaudeUsage struct {
	InputTokens         int `json:"input_tokens"`
	OutputTokens        int `json:"output_tokens"`
	ThinkingTokens      int `json:"thinking_tokens"`
	CacheCreationTokens int `json:"cache_creation_input_tokens"`
	CacheReadTokens     int `json:"cache_read_input_tokens"`
}

type GPT5Usage struct {
	InputTokens       int `json:"input_tokens"`
	CachedInputTokens int `json:"cached_input_tokens"`
	OutputTokens      int `json:"output_tokens"`
	ReasoningTokens   int `json:"reasoning_tokens"`
}

type GeminiUsage struct {
	PromptTokens  int `json:"prompt_tokens"`
	OutputTokens  int `json:"output_tokens"`
	ThoughtTokens int `json:"thought_tokens"`
	CachedTokens  int `json:"cached_tokens"`
}

type WebSearchResult struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type Result struct {
	Content  string
	Thinking string

	WebSearchResults []WebSearchResult

	ClaudeUsage *ClaudeUsage
	GPT5Usage   *GPT5Usage
	GeminiUsage *GeminiUsage
}

type Provider interface {
	Chat(ctx context.Context, req Request) (*Result, error)
}
