package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFallbackCount(t *testing.T) {
	var tok *Tokenizer // zero value uses the character-ratio fallback

	assert.Equal(t, 0, tok.Count(""))
	assert.Equal(t, 1, tok.Count("abc"))
	assert.Equal(t, 2, tok.Count("abcdefgh"))
}

func TestFallbackTruncate(t *testing.T) {
	var tok *Tokenizer

	t.Run("short text passes through", func(t *testing.T) {
		assert.Equal(t, "short", tok.Truncate("short", 100))
	})

	t.Run("long text is cut to the budget", func(t *testing.T) {
		text := strings.Repeat("a", 100)
		got := tok.Truncate(text, 10)
		assert.Len(t, got, 40)
	})

	t.Run("non-positive budget disables truncation", func(t *testing.T) {
		text := strings.Repeat("a", 100)
		assert.Equal(t, text, tok.Truncate(text, 0))
	})
}

func TestEncodingBacked(t *testing.T) {
	tok, err := New()
	if err != nil {
		t.Logf("tokenizer initialization failed (expected in some environments): %v", err)
		t.Skip("encoding unavailable")
	}

	count := tok.Count("hello world, this is a transcript")
	assert.Greater(t, count, 0)

	truncated := tok.Truncate(strings.Repeat("hello world ", 200), 10)
	assert.LessOrEqual(t, tok.Count(truncated), 10)
}
