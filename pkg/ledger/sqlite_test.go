package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteLedger(t *testing.T) {
	openLedger := func(t *testing.T) *SQLiteLedger {
		t.Helper()
		l, err := OpenSQLite(t.TempDir())
		require.NoError(t, err)
		t.Cleanup(func() { l.Close() })
		return l
	}

	t.Run("get returns nil for unknown path", func(t *testing.T) {
		l := openLedger(t)

		rec, err := l.Get(context.Background(), "Vendedor_Ana/cliente1.txt")
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("upsert then get round-trips", func(t *testing.T) {
		l := openLedger(t)
		ctx := context.Background()

		err := l.Upsert(ctx, &Record{
			Path:            "Vendedor_Ana/cliente1.txt",
			Owner:           "Vendedor_Ana",
			LastFingerprint: "abc123",
			LastSummary:     "Client is price-sensitive, close to deciding.",
		})
		require.NoError(t, err)

		rec, err := l.Get(ctx, "Vendedor_Ana/cliente1.txt")
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, "Vendedor_Ana", rec.Owner)
		assert.Equal(t, "abc123", rec.LastFingerprint)
		assert.Equal(t, "Client is price-sensitive, close to deciding.", rec.LastSummary)
		assert.False(t, rec.UpdatedAt.IsZero())
	})

	t.Run("upsert is last-writer-wins keyed by path", func(t *testing.T) {
		l := openLedger(t)
		ctx := context.Background()

		first := &Record{Path: "Vendedor_Bruno/x.txt", Owner: "Vendedor_Bruno", LastFingerprint: "v1", LastSummary: "first"}
		require.NoError(t, l.Upsert(ctx, first))

		second := &Record{Path: "Vendedor_Bruno/x.txt", Owner: "Vendedor_Bruno", LastFingerprint: "v2", LastSummary: "second"}
		require.NoError(t, l.Upsert(ctx, second))

		rec, err := l.Get(ctx, "Vendedor_Bruno/x.txt")
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, "v2", rec.LastFingerprint)
		assert.Equal(t, "second", rec.LastSummary)
	})

	t.Run("records are keyed independently per path", func(t *testing.T) {
		l := openLedger(t)
		ctx := context.Background()

		require.NoError(t, l.Upsert(ctx, &Record{Path: "a/1.txt", Owner: "a", LastFingerprint: "f1", LastSummary: "s1"}))
		require.NoError(t, l.Upsert(ctx, &Record{Path: "b/1.txt", Owner: "b", LastFingerprint: "f2", LastSummary: "s2"}))

		recA, err := l.Get(ctx, "a/1.txt")
		require.NoError(t, err)
		recB, err := l.Get(ctx, "b/1.txt")
		require.NoError(t, err)
		assert.Equal(t, "f1", recA.LastFingerprint)
		assert.Equal(t, "f2", recB.LastFingerprint)
	})
}
