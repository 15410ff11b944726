package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"
)

// storageTimeout bounds a single storage REST call.
const storageTimeout = 60 * time.Second

// Supabase is the object-storage realization of Source over a Supabase
// bucket acting as an input queue. Keys are owner-prefixed
// ("Vendedor_Ana/cliente1.txt"); successful processing deletes the object,
// so presence in the bucket is the "unprocessed" signal.
type Supabase struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	bucket      string
	ownerPrefix string
	extension   string
}

// SupabaseOption configures a Supabase source.
type SupabaseOption func(*Supabase)

// WithOwnerPrefix restricts listing to owner folders starting with the given
// prefix (e.g. "Vendedor_"). Empty means all folders.
func WithOwnerPrefix(prefix string) SupabaseOption {
	return func(s *Supabase) {
		s.ownerPrefix = prefix
	}
}

// WithExtension sets the recognized work-item extension (default ".txt").
func WithExtension(ext string) SupabaseOption {
	return func(s *Supabase) {
		s.extension = ext
	}
}

// WithSourceHTTPClient sets a custom HTTP client, primarily for tests.
func WithSourceHTTPClient(c *http.Client) SupabaseOption {
	return func(s *Supabase) {
		s.httpClient = c
	}
}

// NewSupabase creates a source over the given Supabase project URL, service
// key, and input bucket.
func NewSupabase(baseURL, apiKey, bucket string, opts ...SupabaseOption) (*Supabase, error) {
	if baseURL == "" || apiKey == "" {
		return nil, fmt.Errorf("supabase URL and key are required")
	}
	if bucket == "" {
		return nil, fmt.Errorf("input bucket is required")
	}

	s := &Supabase{
		httpClient: &http.Client{Timeout: storageTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		bucket:     bucket,
		extension:  ".txt",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// storageEntry is the wire shape of one listing result.
type storageEntry struct {
	Name string `json:"name"`
}

// List enumerates owner folders at the bucket root, then the objects inside
// each folder. The listing API has returned two shapes over time (bare
// filenames, and full owner-prefixed paths), so every entry is normalized to
// the canonical owner/filename key before it leaves this method.
func (s *Supabase) List(ctx context.Context) ([]Item, error) {
	folders, err := s.listPrefix(ctx, "")
	if err != nil {
		return nil, err
	}

	var items []Item
	for _, folder := range folders {
		owner := normalizeKey("", folder.Name)
		// Root entries that carry a path separator are objects listed with
		// their full key; treat the first segment as the owner folder.
		if i := strings.IndexByte(owner, '/'); i >= 0 {
			owner = owner[:i]
		}
		if owner == "" || strings.Contains(owner, ".") {
			continue // skip stray root-level objects
		}
		if s.ownerPrefix != "" && !strings.HasPrefix(owner, s.ownerPrefix) {
			continue
		}

		entries, err := s.listPrefix(ctx, owner)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			key := normalizeKey(owner, e.Name)
			name := path.Base(key)
			if !strings.HasSuffix(name, s.extension) {
				continue
			}
			items = append(items, Item{Path: key, Owner: owner, Name: name})
		}
	}
	return items, nil
}

// listPrefix calls the storage list endpoint for one folder prefix.
func (s *Supabase) listPrefix(ctx context.Context, prefix string) ([]storageEntry, error) {
	body, err := json.Marshal(map[string]interface{}{
		"prefix": prefix,
		"limit":  1000,
		"offset": 0,
		"sortBy": map[string]string{"column": "name", "order": "asc"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal list request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/storage/v1/object/list/%s", s.baseURL, s.bucket)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create list request: %w", err)
	}
	s.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listing %s/%s failed: %w", s.bucket, prefix, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("listing %s/%s failed with status %d: %s", s.bucket, prefix, resp.StatusCode, string(respBody))
	}

	var entries []storageEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("listing %s/%s returned malformed body: %w", s.bucket, prefix, err)
	}
	return entries, nil
}

// Read downloads the object at the canonical path.
func (s *Supabase) Read(ctx context.Context, itemPath string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, s.bucket, itemPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}
	s.setHeaders(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download of %s failed: %w", itemPath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("download of %s failed with status %d: %s", itemPath, resp.StatusCode, string(respBody))
	}
	return io.ReadAll(resp.Body)
}

// Remove deletes the consumed object so re-listing cannot reprocess it.
func (s *Supabase) Remove(ctx context.Context, itemPath string) error {
	body, err := json.Marshal(map[string][]string{"prefixes": {itemPath}})
	if err != nil {
		return fmt.Errorf("failed to marshal delete request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/storage/v1/object/%s", s.baseURL, s.bucket)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create delete request: %w", err)
	}
	s.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete of %s failed: %w", itemPath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("delete of %s failed with status %d: %s", itemPath, resp.StatusCode, string(respBody))
	}
	return nil
}

// Removable reports that consumed objects are deleted from the bucket.
func (s *Supabase) Removable() bool {
	return true
}

func (s *Supabase) setHeaders(req *http.Request) {
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
}

// normalizeKey joins a folder prefix and a listing entry name into the
// canonical owner/filename key. Entry names have historically arrived in two
// shapes, bare ("cliente1.txt") and fully prefixed
// ("Vendedor_Ana/cliente1.txt"). Getting this wrong either double-processes
// (ledger key mismatch) or deletes the wrong object, so both shapes collapse
// to one canonical form here.
func normalizeKey(prefix, name string) string {
	name = strings.TrimPrefix(strings.TrimSpace(name), "/")
	if prefix == "" {
		return name
	}
	if strings.HasPrefix(name, prefix+"/") {
		return name
	}
	return prefix + "/" + name
}
