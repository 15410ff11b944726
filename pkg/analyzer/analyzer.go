// Package analyzer turns a raw transcript plus the previously stored summary
// into a tactical report and an updated summary by delegating to an LLM
// provider. It is stateless: everything it needs arrives per call, and the
// full cumulative transcript is re-sent each time so the model can reason
// incrementally without the caller reconstructing history.
package analyzer

import (
	"context"
	"fmt"
	"strings"

	"github.com/neuralops/auditor/pkg/llm"
	"github.com/neuralops/auditor/pkg/llm/tokenizer"
	"github.com/neuralops/auditor/pkg/types"
)

const (
	// reportMarker and summaryMarker label the two sections the model is
	// instructed to produce. Splitting happens on summaryMarker.
	reportMarker  = "[REPORT]"
	summaryMarker = "[SUMMARY]"

	// systemPrompt frames every analysis call.
	systemPrompt = "You are a Sales Ops director auditing live sales conversations."

	// failedReportPlaceholder is delivered when the provider call fails.
	failedReportPlaceholder = "Analysis failed: the model provider could not be reached. The transcript will be retried automatically."

	// emptyReportPlaceholder is delivered when the model answered but the
	// report section came back empty.
	emptyReportPlaceholder = "The model returned an empty report for this transcript."

	// keptSummaryPlaceholder is used when a malformed response leaves no
	// summary and no prior summary exists. The ledger must never regress
	// to an empty state.
	keptSummaryPlaceholder = "Summary unchanged."
)

// Result is the outcome of one analysis.
type Result struct {
	// Report is the human-readable audit delivered to the report sink.
	Report string

	// Summary is the updated running state persisted to the memory ledger.
	Summary string

	// Analyzed reports whether the model actually saw the content. False
	// means a degraded result (provider failure); the caller must not
	// advance the ledger fingerprint for it.
	Analyzed bool
}

// Analyzer builds prompts, calls the provider, and parses responses.
type Analyzer struct {
	provider       llm.Provider
	tokenizer      *tokenizer.Tokenizer
	maxInputTokens int
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithMaxInputTokens caps the transcript size sent per call. Transcripts over
// the budget are truncated before prompting. Zero disables the cap.
func WithMaxInputTokens(n int) Option {
	return func(a *Analyzer) {
		a.maxInputTokens = n
	}
}

// WithTokenizer sets the tokenizer used for budgeting.
func WithTokenizer(t *tokenizer.Tokenizer) Option {
	return func(a *Analyzer) {
		a.tokenizer = t
	}
}

// New creates an Analyzer over the given provider. If no tokenizer is
// supplied, one is created; initialization failure falls back to
// character-ratio estimates.
func New(provider llm.Provider, opts ...Option) *Analyzer {
	a := &Analyzer{provider: provider}
	for _, opt := range opts {
		opt(a)
	}
	if a.tokenizer == nil {
		if tok, err := tokenizer.New(); err == nil {
			a.tokenizer = tok
		}
	}
	return a
}

// Analyze sends the cumulative transcript and the previous summary to the
// model and returns the report/summary pair.
//
// It never returns an error: transport and provider failures are converted
// to a degraded Result (placeholder report, summary passed through,
// Analyzed=false) so one bad item cannot abort a dispatch cycle.
func (a *Analyzer) Analyze(ctx context.Context, owner, filename, fullText, previousSummary string) Result {
	prompt := a.buildPrompt(owner, filename, fullText, previousSummary)

	messages := []*types.Message{
		types.NewSystemMessage(systemPrompt),
		types.NewUserMessage(prompt),
	}

	resp, err := a.provider.Complete(ctx, messages)
	if err != nil {
		return Result{
			Report:   failedReportPlaceholder,
			Summary:  previousSummary,
			Analyzed: false,
		}
	}

	report, summary := parseResponse(resp.Content, previousSummary)
	return Result{Report: report, Summary: summary, Analyzed: true}
}

// buildPrompt assembles the fixed instruction template around the prior
// summary and the updated transcript.
func (a *Analyzer) buildPrompt(owner, filename, fullText, previousSummary string) string {
	fullText = a.tokenizer.Truncate(fullText, a.maxInputTokens)

	var b strings.Builder
	if previousSummary != "" {
		fmt.Fprintf(&b, "WHAT WE ALREADY KNOW:\n%s\n\n", previousSummary)
	}
	fmt.Fprintf(&b, "SALESPERSON: %s\n", owner)
	fmt.Fprintf(&b, "FILE: %s\n\n", filename)
	b.WriteString("Analyze the continuation of this conversation.\n")
	b.WriteString("1. Is the client giving buying signals? (Score 0-100)\n")
	b.WriteString("2. Did the salesperson make any fatal mistakes in the new messages?\n")
	b.WriteString("3. What is the EXACT next message that should be sent?\n\n")
	b.WriteString("Answer in this format:\n")
	b.WriteString(reportMarker + "\n(Direct, tactical feedback)\n")
	b.WriteString(summaryMarker + "\n(Updated technical summary of the deal state)\n\n")
	fmt.Fprintf(&b, "UPDATED CONVERSATION:\n%s\n", fullText)
	return b.String()
}

// parseResponse splits the model's single text blob into the report and the
// updated summary. A missing summary marker falls back to the previous
// summary so the ledger never silently regresses, and the report keeps
// whatever text the model produced.
func parseResponse(content, previousSummary string) (report, summary string) {
	parts := strings.SplitN(content, summaryMarker, 2)

	report = strings.TrimSpace(strings.Replace(parts[0], reportMarker, "", 1))
	if report == "" {
		report = emptyReportPlaceholder
	}

	if len(parts) > 1 && strings.TrimSpace(parts[1]) != "" {
		return report, strings.TrimSpace(parts[1])
	}

	if previousSummary != "" {
		return report, previousSummary
	}
	return report, keptSummaryPlaceholder
}
