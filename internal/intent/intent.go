// Package intent maps free-text user messages to a coarse profile and, per
// provider family, to concrete generation parameters. Classification is a
// pure function: no I/O, deterministic for a given input.
package intent

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/jurisdesk/jurisdesk/internal/ai"
)

type Profile string

const (
	ProfileSimples  Profile = "simples"
	ProfilePesquisa Profile = "pesquisa"
	ProfileAnalise  Profile = "analise"
	ProfilePeca     Profile = "peca"
)

// Keyword sets are matched against normalized text (lower-cased, diacritics
// stripped), so "petição" and "peticao" count the same. Stems like "pesquis"
// cover the inflected forms.
var keywordSets = []struct {
	profile  Profile
	keywords []string
}{
	{ProfilePesquisa, []string{
		"pesquis", "jurisprudencia", "precedente", "sumula", "julgado",
		"busque", "procure", "legislacao", "doutrina", "acordao",
	}},
	{ProfileAnalise, []string{
		"analis", "avalie", "examine", "revise", "compare", "risco",
		"estrategia", "pontos fortes", "pontos fracos", "fundamento",
	}},
	{ProfilePeca, []string{
		"peticao", "peca", "elabore", "redija", "minuta", "contestacao",
		"recurso", "apelacao", "agravo", "embargos", "parecer", "contrato",
		"habeas corpus", "mandado de seguranca",
	}},
}

// Classify scans text and returns the winning profile together with the
// generation config for the given family. Empty or whitespace-only text is
// simples without any keyword scan. A profile wins with a strictly higher
// count; on a tie the earlier profile in the fixed order
// pesquisa, analise, peca prevails.
func Classify(family ai.Family, text string) (Profile, ai.GenConfig) {
	profile := classify(text)
	return profile, ConfigFor(family, profile)
}

func classify(text string) Profile {
	if strings.TrimSpace(text) == "" {
		return ProfileSimples
	}
	t := Normalize(text)

	best := ProfileSimples
	bestCount := 0
	for _, set := range keywordSets {
		count := 0
		for _, kw := range set.keywords {
			count += strings.Count(t, kw)
		}
		if count > bestCount {
			best = set.profile
			bestCount = count
		}
	}
	return best
}

// Normalize lower-cases and strips combining diacritical marks.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}

// ConfigFor is a static lookup: profile and family fully determine the
// generation parameters.
func ConfigFor(family ai.Family, profile Profile) ai.GenConfig {
	cfg := ai.GenConfig{Family: family}

	var maxTokens, thinkingBudget int
	var webSearch bool
	var effort, verbosity string
	switch profile {
	case ProfilePesquisa:
		maxTokens, thinkingBudget = 4096, 4096
		webSearch = true
		effort, verbosity = "low", "medium"
	case ProfileAnalise:
		maxTokens, thinkingBudget = 8192, 8192
		effort, verbosity = "high", "medium"
	case ProfilePeca:
		maxTokens, thinkingBudget = 16384, 16384
		effort, verbosity = "high", "high"
	default: // simples
		maxTokens = 2048
		effort, verbosity = "minimal", "low"
	}

	cfg.MaxTokens = maxTokens
	cfg.WebSearch = webSearch
	switch family {
	case ai.FamilyClaude:
		cfg.Claude = &ai.ClaudeOptions{
			ThinkingEnabled: thinkingBudget > 0,
			ThinkingBudget:  thinkingBudget,
		}
	case ai.FamilyGPT5:
		cfg.GPT5 = &ai.GPT5Options{ReasoningEffort: effort, Verbosity: verbosity}
	case ai.FamilyGemini:
		cfg.Gemini = &ai.GeminiOptions{
			ThinkingBudget:  thinkingBudget,
			IncludeThoughts: thinkingBudget > 0,
		}
	}
	return cfg
}
