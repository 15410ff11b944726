// Package sink writes analysis reports to durable storage: a local per-owner
// directory tree or a Supabase output bucket. Names are derived from the
// source filename plus a wall-clock timestamp so repeated analyses of the
// same evolving transcript never overwrite a prior report.
package sink

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Sink stores one report and returns where it was written.
type Sink interface {
	Write(ctx context.Context, owner, sourceName, content string) (location string, err error)
}

// reportName derives the collision-free report filename for a source file.
// "cliente1.txt" becomes "AUDIT_cliente1_<unix>.md".
func reportName(sourceName string, at time.Time) string {
	stem := strings.TrimSuffix(sourceName, ".txt")
	return fmt.Sprintf("AUDIT_%s_%d.md", stem, at.Unix())
}
