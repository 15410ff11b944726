package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupabaseLedger(t *testing.T) {
	t.Run("get decodes a matching row", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Contains(t, r.URL.RawQuery, "path=eq.")
			assert.Equal(t, "secret", r.Header.Get("apikey"))

			rows := []supabaseRow{{
				Path:            "Vendedor_Ana/cliente1.txt",
				Owner:           "Vendedor_Ana",
				LastFingerprint: "deadbeef",
				LastSummary:     "Negotiation ongoing.",
				UpdatedAt:       "2026-08-20T10:00:00Z",
			}}
			json.NewEncoder(w).Encode(rows)
		}))
		defer srv.Close()

		l, err := NewSupabaseLedger(srv.URL, "secret", "sales_memory")
		require.NoError(t, err)

		rec, err := l.Get(context.Background(), "Vendedor_Ana/cliente1.txt")
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, "deadbeef", rec.LastFingerprint)
		assert.Equal(t, "Negotiation ongoing.", rec.LastSummary)
		assert.False(t, rec.UpdatedAt.IsZero())
	})

	t.Run("get returns nil for an empty result set", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("[]"))
		}))
		defer srv.Close()

		l, err := NewSupabaseLedger(srv.URL, "secret", "")
		require.NoError(t, err)

		rec, err := l.Get(context.Background(), "nobody/none.txt")
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("get surfaces connectivity errors to the caller", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		l, err := NewSupabaseLedger(srv.URL, "secret", "")
		require.NoError(t, err)

		_, err = l.Get(context.Background(), "a/b.txt")
		assert.Error(t, err)
	})

	t.Run("upsert posts merge-duplicates resolution keyed by path", func(t *testing.T) {
		var gotPrefer, gotConflict string
		var gotRows []supabaseRow
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			gotPrefer = r.Header.Get("Prefer")
			gotConflict = r.URL.Query().Get("on_conflict")
			json.NewDecoder(r.Body).Decode(&gotRows)
			w.WriteHeader(http.StatusCreated)
		}))
		defer srv.Close()

		l, err := NewSupabaseLedger(srv.URL, "secret", "sales_memory")
		require.NoError(t, err)

		rec := &Record{
			Path:            "Vendedor_Ana/cliente1.txt",
			Owner:           "Vendedor_Ana",
			LastFingerprint: "cafe",
			LastSummary:     "Updated summary.",
		}
		require.NoError(t, l.Upsert(context.Background(), rec))

		assert.Equal(t, "resolution=merge-duplicates", gotPrefer)
		assert.Equal(t, "path", gotConflict)
		require.Len(t, gotRows, 1)
		assert.Equal(t, "Vendedor_Ana/cliente1.txt", gotRows[0].Path)
		assert.Equal(t, "cafe", gotRows[0].LastFingerprint)
		assert.NotEmpty(t, gotRows[0].UpdatedAt)
		assert.False(t, rec.UpdatedAt.IsZero())
	})

	t.Run("requires url and key", func(t *testing.T) {
		_, err := NewSupabaseLedger("", "", "sales_memory")
		assert.Error(t, err)
	})
}
