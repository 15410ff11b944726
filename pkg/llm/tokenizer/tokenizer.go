// Package tokenizer provides token counting and truncation for text sent to
// LLM providers, backed by tiktoken with a character-ratio fallback for
// environments where the encoding cannot be initialized.
package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

const (
	// defaultEncoding is the BPE used by the GPT-4-era chat models; close
	// enough for budgeting against OpenAI-compatible providers.
	defaultEncoding = "cl100k_base"

	// fallbackCharsPerToken approximates English/Portuguese prose when the
	// real encoding is unavailable.
	fallbackCharsPerToken = 4
)

// Tokenizer counts and truncates text in model tokens.
type Tokenizer struct {
	encoding *tiktoken.Tiktoken
}

// New creates a tokenizer using the default encoding. Initialization may
// fail when the encoding data is unavailable; callers can still use a
// zero-value Tokenizer, which falls back to character-ratio estimates.
func New() (*Tokenizer, error) {
	enc, err := tiktoken.GetEncoding(defaultEncoding)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s encoding: %w", defaultEncoding, err)
	}
	return &Tokenizer{encoding: enc}, nil
}

// Count returns the number of tokens in text.
func (t *Tokenizer) Count(text string) int {
	if t == nil || t.encoding == nil {
		return (len(text) + fallbackCharsPerToken - 1) / fallbackCharsPerToken
	}
	return len(t.encoding.Encode(text, nil, nil))
}

// Truncate returns text cut down to at most maxTokens tokens. A
// non-positive maxTokens disables truncation.
func (t *Tokenizer) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return text
	}
	if t == nil || t.encoding == nil {
		limit := maxTokens * fallbackCharsPerToken
		if len(text) <= limit {
			return text
		}
		return text[:limit]
	}
	tokens := t.encoding.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return t.encoding.Decode(tokens[:maxTokens])
}
