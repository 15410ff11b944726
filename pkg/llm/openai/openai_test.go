package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/neuralops/auditor/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completionBody(content string) string {
	return `{"choices":[{"message":{"role":"assistant","content":` + mustJSON(content) + `}}]}`
}

func mustJSON(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestNewProvider(t *testing.T) {
	t.Run("requires an API key", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "")
		_, err := NewProvider("")
		assert.Error(t, err)
	})

	t.Run("applies options", func(t *testing.T) {
		p, err := NewProvider("sk-test",
			WithBaseURL("https://api.deepseek.com"),
			WithModel("deepseek-chat"),
		)
		require.NoError(t, err)
		assert.Equal(t, "deepseek-chat", p.GetModel())
		assert.Equal(t, "https://api.deepseek.com", p.GetBaseURL())
		assert.Equal(t, "https://api.deepseek.com", p.GetModelInfo().Metadata["base_url"])
	})
}

func TestComplete(t *testing.T) {
	t.Run("sends model, temperature and messages", func(t *testing.T) {
		var got map[string]interface{}
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/chat/completions", r.URL.Path)
			assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.Write([]byte(completionBody("[REPORT]\nok\n[SUMMARY]\nstate")))
		}))
		defer srv.Close()

		p, err := NewProvider("sk-test", WithBaseURL(srv.URL), WithModel("deepseek-chat"), WithTemperature(0.2))
		require.NoError(t, err)

		resp, err := p.Complete(context.Background(), []*types.Message{
			types.NewSystemMessage("system frame"),
			types.NewUserMessage("the transcript"),
		})
		require.NoError(t, err)

		assert.Equal(t, types.RoleAssistant, resp.Role)
		assert.Contains(t, resp.Content, "[SUMMARY]")
		assert.Equal(t, "deepseek-chat", got["model"])
		assert.Equal(t, 0.2, got["temperature"])
		msgs, ok := got["messages"].([]interface{})
		require.True(t, ok)
		assert.Len(t, msgs, 2)
	})

	t.Run("retries transient server failures", func(t *testing.T) {
		var calls int
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			if calls == 1 {
				http.Error(w, "upstream hiccup", http.StatusBadGateway)
				return
			}
			w.Write([]byte(completionBody("recovered")))
		}))
		defer srv.Close()

		p, err := NewProvider("sk-test", WithBaseURL(srv.URL))
		require.NoError(t, err)
		p.retryDelay = time.Millisecond

		resp, err := p.Complete(context.Background(), []*types.Message{types.NewUserMessage("hi")})
		require.NoError(t, err)
		assert.Equal(t, "recovered", resp.Content)
		assert.Equal(t, 2, calls)
	})

	t.Run("does not retry client errors", func(t *testing.T) {
		var calls int
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			http.Error(w, "bad request", http.StatusBadRequest)
		}))
		defer srv.Close()

		p, err := NewProvider("sk-test", WithBaseURL(srv.URL))
		require.NoError(t, err)

		_, err = p.Complete(context.Background(), []*types.Message{types.NewUserMessage("hi")})
		assert.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("rejects responses without choices", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"choices":[]}`))
		}))
		defer srv.Close()

		p, err := NewProvider("sk-test", WithBaseURL(srv.URL))
		require.NoError(t, err)

		_, err = p.Complete(context.Background(), []*types.Message{types.NewUserMessage("hi")})
		assert.Error(t, err)
	})
}

func TestIsRetryableStatus(t *testing.T) {
	assert.True(t, isRetryableStatus(http.StatusTooManyRequests))
	assert.True(t, isRetryableStatus(http.StatusInternalServerError))
	assert.True(t, isRetryableStatus(http.StatusBadGateway))
	assert.False(t, isRetryableStatus(http.StatusBadRequest))
	assert.False(t, isRetryableStatus(http.StatusUnauthorized))
}
