package search

import (
	"context"
	"encoding/json"
	"unicode/utf8"
)

const (
	DepthBasic    = "basic"
	DepthAdvanced = "advanced"

	// DefaultMaxTokens bounds the context handed back to the assistant.
	DefaultMaxTokens = 8000
)

type Request struct {
	Query     string
	Depth     string
	MaxTokens int
}

// Provider returns search context as opaque text, ready to be used verbatim
// as a tool output.
type Provider interface {
	Search(ctx context.Context, req Request) (string, error)
}

// Source is one search hit reduced to what the assistant needs.
type Source struct {
	URL     string `json:"url"`
	Content string `json:"content"`
}

// estimateTokens is a rough four-characters-per-token estimate.
func estimateTokens(s string) int {
	return (utf8.RuneCountInString(s) + 3) / 4
}

// BuildContext serialises as many leading sources as fit in maxTokens.
func BuildContext(sources []Source, maxTokens int) (string, error) {
	kept := make([]Source, 0, len(sources))
	total := 0
	for _, s := range sources {
		b, err := json.Marshal(s)
		if err != nil {
			return "", err
		}
		n := estimateTokens(string(b))
		if maxTokens > 0 && total+n > maxTokens {
			break
		}
		total += n
		kept = append(kept, s)
	}
	b, err := json.Marshal(kept)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
