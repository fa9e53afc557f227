// Package cost converts provider token-usage records into USD amounts at
// fixed per-million-token rates and formats them for display.
package cost

import (
	"fmt"
	"strings"

	"github.com/jurisdesk/jurisdesk/internal/ai"
)

// USD per million tokens.
const (
	claudeInputRate      = 3.00
	claudeOutputRate     = 15.00
	claudeThinkingRate   = 15.00
	claudeCacheWriteRate = 3.75
	claudeCacheReadRate  = 0.30

	gpt5InputRate       = 0.25
	gpt5CachedInputRate = 0.025
	gpt5OutputRate      = 2.00

	geminiInputRate  = 0.30
	geminiOutputRate = 2.50
)

const million = 1_000_000

// Claude bills five independent token categories, each at its own rate.
func Claude(u ai.ClaudeUsage) float64 {
	return float64(u.InputTokens)/million*claudeInputRate +
		float64(u.OutputTokens)/million*claudeOutputRate +
		float64(u.ThinkingTokens)/million*claudeThinkingRate +
		float64(u.CacheCreationTokens)/million*claudeCacheWriteRate +
		float64(u.CacheReadTokens)/million*claudeCacheReadRate
}

// GPT5 folds reasoning tokens into output before rating. Cached input tokens
// are billed at the reduced cache rate and subtracted from the count billed
// at the full input rate.
func GPT5(u ai.GPT5Usage) float64 {
	uncached := u.InputTokens - u.CachedInputTokens
	if uncached < 0 {
		uncached = 0
	}
	output := u.OutputTokens + u.ReasoningTokens
	return float64(uncached)/million*gpt5InputRate +
		float64(u.CachedInputTokens)/million*gpt5CachedInputRate +
		float64(output)/million*gpt5OutputRate
}

// Gemini bills thinking tokens at the output rate. Cached tokens are
// informational only and cost nothing.
func Gemini(u ai.GeminiUsage) float64 {
	return float64(u.PromptTokens)/million*geminiInputRate +
		float64(u.OutputTokens+u.ThoughtTokens)/million*geminiOutputRate
}

// FromResult computes the cost of whichever usage variant the provider
// returned. Local models report no usage and cost zero.
func FromResult(res *ai.Result) float64 {
	switch {
	case res == nil:
		return 0
	case res.ClaudeUsage != nil:
		return Claude(*res.ClaudeUsage)
	case res.GPT5Usage != nil:
		return GPT5(*res.GPT5Usage)
	case res.GeminiUsage != nil:
		return Gemini(*res.GeminiUsage)
	default:
		return 0
	}
}

// FormatUSD renders a cost with tiered precision. Anything below $0.0001,
// including exactly zero, collapses to "< $0.0001".
func FormatUSD(v float64) string {
	switch {
	case v < 0.0001:
		return "< $0.0001"
	case v < 0.01:
		return fmt.Sprintf("$%.4f", v)
	case v < 1:
		return fmt.Sprintf("$%.3f", v)
	default:
		return fmt.Sprintf("$%.2f", v)
	}
}

// FormatBRL converts at the given exchange rate and renders with a decimal
// comma, using the same precision tiers as FormatUSD.
func FormatBRL(v, rate float64) string {
	c := v * rate
	var s string
	switch {
	case c < 0.0001:
		return "< R$ 0,0001"
	case c < 0.01:
		s = fmt.Sprintf("%.4f", c)
	case c < 1:
		s = fmt.Sprintf("%.3f", c)
	default:
		s = fmt.Sprintf("%.2f", c)
	}
	return "R$ " + strings.Replace(s, ".", ",", 1)
}
