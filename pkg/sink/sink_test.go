package sink

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportName(t *testing.T) {
	at := time.Unix(1700000000, 0)
	assert.Equal(t, "AUDIT_cliente1_1700000000.md", reportName("cliente1.txt", at))
	assert.Equal(t, "AUDIT_notes.log_1700000000.md", reportName("notes.log", at))
}

func TestLocalWrite(t *testing.T) {
	t.Run("writes the report under the owner directory", func(t *testing.T) {
		root := t.TempDir()
		s, err := NewLocal(root)
		require.NoError(t, err)

		loc, err := s.Write(context.Background(), "Vendedor_Bruno", "x.txt", "# report body")
		require.NoError(t, err)

		data, err := os.ReadFile(loc)
		require.NoError(t, err)
		assert.Equal(t, "# report body", string(data))
		assert.Equal(t, filepath.Join(root, "Vendedor_Bruno"), filepath.Dir(loc))
		assert.Contains(t, filepath.Base(loc), "AUDIT_x_")
	})

	t.Run("repeated writes never overwrite", func(t *testing.T) {
		root := t.TempDir()
		s, err := NewLocal(root)
		require.NoError(t, err)

		// Fixed distinct timestamps stand in for wall-clock progression.
		ts := time.Unix(1700000000, 0)
		s.now = func() time.Time { ts = ts.Add(time.Second); return ts }

		first, err := s.Write(context.Background(), "o", "x.txt", "v1")
		require.NoError(t, err)
		second, err := s.Write(context.Background(), "o", "x.txt", "v2")
		require.NoError(t, err)

		assert.NotEqual(t, first, second)
		v1, _ := os.ReadFile(first)
		v2, _ := os.ReadFile(second)
		assert.Equal(t, "v1", string(v1))
		assert.Equal(t, "v2", string(v2))
	})

	t.Run("leaves no temp files behind", func(t *testing.T) {
		root := t.TempDir()
		s, err := NewLocal(root)
		require.NoError(t, err)

		_, err = s.Write(context.Background(), "o", "x.txt", "body")
		require.NoError(t, err)

		entries, err := os.ReadDir(filepath.Join(root, "o"))
		require.NoError(t, err)
		for _, e := range entries {
			assert.NotContains(t, e.Name(), ".tmp")
		}
	})
}

func TestSupabaseWrite(t *testing.T) {
	t.Run("uploads markdown with a flattened name", func(t *testing.T) {
		var gotPath, gotContentType, gotBody string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotContentType = r.Header.Get("Content-Type")
			body, _ := io.ReadAll(r.Body)
			gotBody = string(body)
			w.WriteHeader(http.StatusCreated)
		}))
		defer srv.Close()

		s, err := NewSupabase(srv.URL, "secret", "sales-reports")
		require.NoError(t, err)

		loc, err := s.Write(context.Background(), "Vendedor_Ana", "cliente1.txt", "# audit")
		require.NoError(t, err)

		assert.Contains(t, gotPath, "/storage/v1/object/sales-reports/AUDIT_Vendedor_Ana_cliente1_")
		assert.Equal(t, "text/markdown", gotContentType)
		assert.Equal(t, "# audit", gotBody)
		assert.Contains(t, loc, "sales-reports/AUDIT_Vendedor_Ana_cliente1_")
	})

	t.Run("surfaces upload failures", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bucket missing", http.StatusNotFound)
		}))
		defer srv.Close()

		s, err := NewSupabase(srv.URL, "secret", "sales-reports")
		require.NoError(t, err)

		_, err = s.Write(context.Background(), "o", "x.txt", "body")
		assert.Error(t, err)
	})
}
