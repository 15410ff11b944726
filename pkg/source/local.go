package source

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// Local is the filesystem realization of Source. The root directory's
// immediate subdirectories are owner namespaces; files inside them that match
// the include pattern are work items. Recursion stops one level down,
// matching the owner/filename layout.
type Local struct {
	root    string
	include glob.Glob
	pattern string
}

// NewLocal creates a local source over root. Files are filtered by the glob
// include pattern (e.g. "*.txt"); an empty pattern defaults to "*.txt".
// The root directory is created if it does not exist.
func NewLocal(root, includePattern string) (*Local, error) {
	if includePattern == "" {
		includePattern = "*.txt"
	}
	g, err := glob.Compile(includePattern)
	if err != nil {
		return nil, fmt.Errorf("invalid include pattern %q: %w", includePattern, err)
	}
	if err := os.MkdirAll(root, 0750); err != nil {
		return nil, fmt.Errorf("failed to create input root %s: %w", root, err)
	}
	return &Local{root: root, include: g, pattern: includePattern}, nil
}

// List enumerates owner subdirectories and their matching files. Entries
// directly under the root (files without an owner) are ignored.
func (l *Local) List(_ context.Context) ([]Item, error) {
	owners, err := os.ReadDir(l.root)
	if err != nil {
		return nil, fmt.Errorf("failed to list input root %s: %w", l.root, err)
	}

	var items []Item
	for _, ownerEntry := range owners {
		if !ownerEntry.IsDir() {
			continue
		}
		owner := ownerEntry.Name()

		files, err := os.ReadDir(filepath.Join(l.root, owner))
		if err != nil {
			return nil, fmt.Errorf("failed to list namespace %s: %w", owner, err)
		}
		for _, f := range files {
			if f.IsDir() || !l.include.Match(f.Name()) {
				continue
			}
			items = append(items, Item{
				Path:  path.Join(owner, f.Name()),
				Owner: owner,
				Name:  f.Name(),
			})
		}
	}
	return items, nil
}

// Read returns the bytes of the item at the canonical owner/filename path.
func (l *Local) Read(_ context.Context, itemPath string) ([]byte, error) {
	resolved, err := l.resolve(itemPath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", itemPath, err)
	}
	return data, nil
}

// Remove is a no-op: local files are the operator's, and idempotency comes
// from content fingerprints instead of deletion.
func (l *Local) Remove(_ context.Context, _ string) error {
	return nil
}

// Removable reports that local items are never deleted.
func (l *Local) Removable() bool {
	return false
}

// resolve maps a canonical key onto the filesystem, rejecting traversal
// outside the input root.
func (l *Local) resolve(itemPath string) (string, error) {
	root, err := filepath.Abs(l.root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve input root: %w", err)
	}
	resolved := filepath.Join(root, filepath.FromSlash(itemPath))
	if !strings.HasPrefix(resolved, root+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected for %q", itemPath)
	}
	return resolved, nil
}
