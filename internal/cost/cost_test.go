package cost

import (
	"math"
	"testing"

	"github.com/jurisdesk/jurisdesk/internal/ai"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestClaude_IndependentCategories(t *testing.T) {
	if got := Claude(ai.ClaudeUsage{InputTokens: 1_000_000}); !almostEqual(got, 3.00) {
		t.Fatalf("input-only: got %v, want 3.00", got)
	}
	if got := Claude(ai.ClaudeUsage{OutputTokens: 1_000_000}); !almostEqual(got, 15.00) {
		t.Fatalf("output-only: got %v, want 15.00", got)
	}
	if got := Claude(ai.ClaudeUsage{CacheCreationTokens: 1_000_000}); !almostEqual(got, 3.75) {
		t.Fatalf("cache-write-only: got %v, want 3.75", got)
	}
	if got := Claude(ai.ClaudeUsage{CacheReadTokens: 1_000_000}); !almostEqual(got, 0.30) {
		t.Fatalf("cache-read-only: got %v, want 0.30", got)
	}

	// additive across all categories
	sum := Claude(ai.ClaudeUsage{
		InputTokens:         500_000,
		OutputTokens:        100_000,
		ThinkingTokens:      200_000,
		CacheCreationTokens: 50_000,
		CacheReadTokens:     300_000,
	})
	want := 0.5*3.00 + 0.1*15.00 + 0.2*15.00 + 0.05*3.75 + 0.3*0.30
	if !almostEqual(sum, want) {
		t.Fatalf("mixed: got %v, want %v", sum, want)
	}
}

func TestGPT5_CacheLaw(t *testing.T) {
	// 100K at the full input rate + 900K at the cache rate
	got := GPT5(ai.GPT5Usage{InputTokens: 1_000_000, CachedInputTokens: 900_000})
	want := 0.1*0.25 + 0.9*0.025
	if !almostEqual(got, want) {
		t.Fatalf("cached input: got %v, want %v", got, want)
	}
	if !almostEqual(got, 0.0475) {
		t.Fatalf("cached input: got %v, want 0.0475", got)
	}
}

func TestGPT5_ReasoningBilledAsOutput(t *testing.T) {
	withReasoning := GPT5(ai.GPT5Usage{OutputTokens: 400_000, ReasoningTokens: 600_000})
	asOutput := GPT5(ai.GPT5Usage{OutputTokens: 1_000_000})
	if !almostEqual(withReasoning, asOutput) {
		t.Fatalf("reasoning tokens not folded into output: %v vs %v", withReasoning, asOutput)
	}
}

func TestGPT5_CachedExceedingInputClampsToZero(t *testing.T) {
	got := GPT5(ai.GPT5Usage{InputTokens: 100, CachedInputTokens: 200})
	want := 200.0 / 1e6 * 0.025
	if !almostEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestGemini_ThinkingAtOutputRate(t *testing.T) {
	thinking := Gemini(ai.GeminiUsage{ThoughtTokens: 1_000_000})
	output := Gemini(ai.GeminiUsage{OutputTokens: 1_000_000})
	if !almostEqual(thinking, output) {
		t.Fatalf("thinking should bill at output rate: %v vs %v", thinking, output)
	}
}

func TestGemini_CachedTokensAreFree(t *testing.T) {
	if got := Gemini(ai.GeminiUsage{CachedTokens: 5_000_000}); got != 0 {
		t.Fatalf("cached tokens must cost zero, got %v", got)
	}
}

func TestFromResult(t *testing.T) {
	if got := FromResult(nil); got != 0 {
		t.Fatalf("nil result: got %v", got)
	}
	if got := FromResult(&ai.Result{}); got != 0 {
		t.Fatalf("no usage: got %v", got)
	}
	res := &ai.Result{GeminiUsage: &ai.GeminiUsage{OutputTokens: 1_000_000}}
	if got := FromResult(res); !almostEqual(got, 2.50) {
		t.Fatalf("gemini usage: got %v, want 2.50", got)
	}
}

func TestFormatUSD_Boundaries(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "< $0.0001"},
		{0.00009, "< $0.0001"},
		{0.0001, "$0.0001"},
		{0.0042, "$0.0042"},
		{0.01, "$0.010"},
		{0.5, "$0.500"},
		{1.00, "$1.00"},
		{12.345, "$12.35"},
	}
	for _, tc := range cases {
		if got := FormatUSD(tc.in); got != tc.want {
			t.Errorf("FormatUSD(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatBRL_DecimalComma(t *testing.T) {
	if got := FormatBRL(0, 5.0); got != "< R$ 0,0001" {
		t.Fatalf("zero: got %q", got)
	}
	if got := FormatBRL(0.001, 5.0); got != "R$ 0,0050" {
		t.Fatalf("got %q, want R$ 0,0050", got)
	}
	if got := FormatBRL(1.0, 5.0); got != "R$ 5,00" {
		t.Fatalf("got %q, want R$ 5,00", got)
	}
}
