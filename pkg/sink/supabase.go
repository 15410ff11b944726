package sink

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// uploadTimeout bounds a single report upload.
const uploadTimeout = 60 * time.Second

// Supabase uploads reports to an output storage bucket. Object names flatten
// the owner into the filename ("AUDIT_Vendedor_Ana_cliente1_<unix>.md") so
// the output bucket stays a flat, scannable namespace.
type Supabase struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	bucket     string
	now        func() time.Time
}

// SupabaseOption configures a Supabase sink.
type SupabaseOption func(*Supabase)

// WithSinkHTTPClient sets a custom HTTP client, primarily for tests.
func WithSinkHTTPClient(c *http.Client) SupabaseOption {
	return func(s *Supabase) {
		s.httpClient = c
	}
}

// NewSupabase creates a sink over the given Supabase project URL, service
// key, and output bucket.
func NewSupabase(baseURL, apiKey, bucket string, opts ...SupabaseOption) (*Supabase, error) {
	if baseURL == "" || apiKey == "" {
		return nil, fmt.Errorf("supabase URL and key are required")
	}
	if bucket == "" {
		return nil, fmt.Errorf("output bucket is required")
	}

	s := &Supabase{
		httpClient: &http.Client{Timeout: uploadTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		bucket:     bucket,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Write uploads the report as markdown and returns the bucket-qualified
// object name.
func (s *Supabase) Write(ctx context.Context, owner, sourceName, content string) (string, error) {
	name := reportName(owner+"_"+sourceName, s.now())

	endpoint := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, s.bucket, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "text/markdown")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload of %s failed: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("upload of %s failed with status %d: %s", name, resp.StatusCode, string(respBody))
	}
	return s.bucket + "/" + name, nil
}
