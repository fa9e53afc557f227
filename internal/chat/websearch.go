package chat

import (
	"encoding/json"

	"github.com/jurisdesk/jurisdesk/internal/ai"
)

// EncodeWebSearchResults serializes results for the message row. Returns nil
// when there is nothing to store.
func EncodeWebSearchResults(results []ai.WebSearchResult) *string {
	if len(results) == 0 {
		return nil
	}
	b, err := json.Marshal(results)
	if err != nil {
		return nil
	}
	s := string(b)
	return &s
}

// DecodeWebSearchResults decodes a persisted blob defensively: a missing or
// unparseable blob, a non-array payload, and entries without string title
// and url all resolve to "no results" rather than an error.
func DecodeWebSearchResults(blob *string) []ai.WebSearchResult {
	if blob == nil || *blob == "" {
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(*blob), &raw); err != nil {
		return nil
	}
	var out []ai.WebSearchResult
	for _, entry := range raw {
		var r ai.WebSearchResult
		if err := json.Unmarshal(entry, &r); err != nil {
			continue
		}
		if r.Title == "" || r.URL == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
