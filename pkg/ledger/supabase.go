package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// supabaseTimeout bounds a single REST call to the table endpoint.
const supabaseTimeout = 30 * time.Second

// SupabaseLedger stores memory records in a Supabase (PostgREST) table.
// The table is keyed by path; upserts resolve duplicates by merging, so
// conflict resolution is last-writer-wins.
type SupabaseLedger struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	table      string
}

// SupabaseLedgerOption configures a SupabaseLedger.
type SupabaseLedgerOption func(*SupabaseLedger)

// WithLedgerHTTPClient sets a custom HTTP client, primarily for tests.
func WithLedgerHTTPClient(c *http.Client) SupabaseLedgerOption {
	return func(l *SupabaseLedger) {
		l.httpClient = c
	}
}

// NewSupabaseLedger creates a ledger over the given Supabase project URL,
// service key, and table name.
func NewSupabaseLedger(baseURL, apiKey, table string, opts ...SupabaseLedgerOption) (*SupabaseLedger, error) {
	if baseURL == "" || apiKey == "" {
		return nil, fmt.Errorf("supabase URL and key are required")
	}
	if table == "" {
		table = "sales_memory"
	}

	l := &SupabaseLedger{
		httpClient: &http.Client{Timeout: supabaseTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		table:      table,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// supabaseRow is the wire shape of one table row.
type supabaseRow struct {
	Path            string `json:"path"`
	Owner           string `json:"owner"`
	LastFingerprint string `json:"last_fingerprint"`
	LastSummary     string `json:"last_summary"`
	UpdatedAt       string `json:"updated_at,omitempty"`
}

// Get performs a point lookup by path. Returns (nil, nil) when the table has
// no row for the path.
func (l *SupabaseLedger) Get(ctx context.Context, path string) (*Record, error) {
	endpoint := fmt.Sprintf("%s/rest/v1/%s?path=eq.%s&select=path,owner,last_fingerprint,last_summary,updated_at",
		l.baseURL, l.table, url.QueryEscape(path))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create ledger request: %w", err)
	}
	l.setHeaders(req)

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ledger lookup for %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ledger lookup for %s failed with status %d: %s", path, resp.StatusCode, string(body))
	}

	var rows []supabaseRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("ledger lookup for %s returned malformed body: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	rec := &Record{
		Path:            rows[0].Path,
		Owner:           rows[0].Owner,
		LastFingerprint: rows[0].LastFingerprint,
		LastSummary:     rows[0].LastSummary,
	}
	if rows[0].UpdatedAt != "" {
		if ts, err := time.Parse(time.RFC3339, rows[0].UpdatedAt); err == nil {
			rec.UpdatedAt = ts
		}
	}
	return rec, nil
}

// Upsert inserts or updates the row keyed by path using PostgREST's
// merge-duplicates resolution.
func (l *SupabaseLedger) Upsert(ctx context.Context, rec *Record) error {
	now := time.Now().UTC()
	row := supabaseRow{
		Path:            rec.Path,
		Owner:           rec.Owner,
		LastFingerprint: rec.LastFingerprint,
		LastSummary:     rec.LastSummary,
		UpdatedAt:       now.Format(time.RFC3339),
	}

	body, err := json.Marshal([]supabaseRow{row})
	if err != nil {
		return fmt.Errorf("failed to marshal ledger row: %w", err)
	}

	endpoint := fmt.Sprintf("%s/rest/v1/%s?on_conflict=path", l.baseURL, l.table)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create ledger request: %w", err)
	}
	l.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "resolution=merge-duplicates")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ledger upsert for %s failed: %w", rec.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusNoContent {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ledger upsert for %s failed with status %d: %s", rec.Path, resp.StatusCode, string(respBody))
	}

	rec.UpdatedAt = now
	return nil
}

func (l *SupabaseLedger) setHeaders(req *http.Request) {
	req.Header.Set("apikey", l.apiKey)
	req.Header.Set("Authorization", "Bearer "+l.apiKey)
}
