package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Local writes reports under outputRoot/<owner>/, creating owner directories
// on demand.
type Local struct {
	outputRoot string
	now        func() time.Time
}

// NewLocal creates a local sink rooted at outputRoot.
func NewLocal(outputRoot string) (*Local, error) {
	if err := os.MkdirAll(outputRoot, 0750); err != nil {
		return nil, fmt.Errorf("failed to create output root %s: %w", outputRoot, err)
	}
	return &Local{outputRoot: outputRoot, now: time.Now}, nil
}

// Write stores the report atomically via a temporary file and rename.
func (l *Local) Write(_ context.Context, owner, sourceName, content string) (string, error) {
	dir := filepath.Join(l.outputRoot, owner)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("failed to create output directory for %s: %w", owner, err)
	}

	path := filepath.Join(dir, reportName(sourceName, l.now()))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0600); err != nil {
		return "", fmt.Errorf("failed to write report temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp) // best-effort cleanup
		return "", fmt.Errorf("failed to finalize report %s: %w", path, err)
	}
	return path, nil
}
