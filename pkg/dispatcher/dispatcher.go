// Package dispatcher implements the change-detection and idempotent dispatch
// loop: it periodically enumerates a work source, filters to changed items,
// runs the analyzer, delivers reports, and reconciles the memory ledger.
//
// Two idempotency strategies are supported, selected by the active source and
// never mixed. Local sources keep their files, so re-processing is prevented
// by comparing content fingerprints against the ledger. Removable (bucket)
// sources delete each object after successful processing, so the presence of
// an object is itself the "unprocessed" signal and no fingerprint check is
// needed.
//
// Running two dispatchers concurrently against the same namespace is
// unsupported: there is no cross-process lease, and duplicate processing
// (and duplicate billed model calls) would result. Run one instance per
// namespace.
package dispatcher

import (
	"context"
	"time"

	"github.com/neuralops/auditor/pkg/analyzer"
	"github.com/neuralops/auditor/pkg/fingerprint"
	"github.com/neuralops/auditor/pkg/ledger"
	"github.com/neuralops/auditor/pkg/logging"
	"github.com/neuralops/auditor/pkg/sink"
	"github.com/neuralops/auditor/pkg/source"
)

const (
	defaultPollInterval    = 10 * time.Second
	defaultBackoffInterval = 30 * time.Second
)

// Analyzer is the single operation the dispatcher needs from the analysis
// layer. It never returns an error; degraded outcomes are reported through
// Result.Analyzed.
type Analyzer interface {
	Analyze(ctx context.Context, owner, filename, fullText, previousSummary string) analyzer.Result
}

// Dispatcher owns the poll loop. It is the only writer of the memory ledger
// and the sole decider of whether an item constitutes new work.
type Dispatcher struct {
	source   source.Source
	ledger   ledger.Ledger
	analyzer Analyzer
	sink     sink.Sink
	logger   *logging.Logger

	pollInterval    time.Duration
	backoffInterval time.Duration

	// sleep is the single suspension point of the loop, interruptible by
	// ctx. Injected in tests to observe which interval was chosen.
	sleep func(ctx context.Context, d time.Duration)
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithPollInterval sets the steady-state sleep between cycles.
func WithPollInterval(d time.Duration) Option {
	return func(disp *Dispatcher) {
		disp.pollInterval = d
	}
}

// WithBackoffInterval sets the extended sleep applied after an enumeration
// failure. This is the only place backoff differs from the poll interval.
func WithBackoffInterval(d time.Duration) Option {
	return func(disp *Dispatcher) {
		disp.backoffInterval = d
	}
}

// WithLogger sets the logger for lifecycle events.
func WithLogger(l *logging.Logger) Option {
	return func(disp *Dispatcher) {
		disp.logger = l
	}
}

// New creates a Dispatcher over explicitly injected collaborators so each
// can be replaced with a fake in tests.
func New(src source.Source, led ledger.Ledger, an Analyzer, snk sink.Sink, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		source:          src,
		ledger:          led,
		analyzer:        an,
		sink:            snk,
		pollInterval:    defaultPollInterval,
		backoffInterval: defaultBackoffInterval,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger, _ = logging.NewLogger("dispatcher")
	}
	if d.sleep == nil {
		d.sleep = func(ctx context.Context, wait time.Duration) {
			timer := time.NewTimer(wait)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
			}
		}
	}
	return d
}

// Run repeats dispatch cycles until ctx is canceled. A failed enumeration
// aborts its cycle and stretches the following sleep to the backoff
// interval; everything else is handled inside the cycle. The in-flight item
// always completes before cancellation is observed.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Infof("dispatcher started (poll=%s backoff=%s removable=%t)",
		d.pollInterval, d.backoffInterval, d.source.Removable())

	for {
		wait := d.pollInterval
		if err := d.RunCycle(ctx); err != nil {
			d.logger.Errorf("cycle aborted: enumeration failed: %v", err)
			wait = d.backoffInterval
		}

		select {
		case <-ctx.Done():
			d.logger.Infof("dispatcher stopping: %v", ctx.Err())
			return ctx.Err()
		default:
		}
		d.sleep(ctx, wait)

		select {
		case <-ctx.Done():
			d.logger.Infof("dispatcher stopping: %v", ctx.Err())
			return ctx.Err()
		default:
		}
	}
}

// RunCycle performs one enumerate-filter-process pass over all namespaces.
// It returns an error only when enumeration itself fails; per-item failures
// are logged and skipped.
func (d *Dispatcher) RunCycle(ctx context.Context) error {
	items, err := d.source.List(ctx)
	if err != nil {
		return err
	}

	for _, item := range items {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		d.processItem(ctx, item)
	}
	return nil
}

// processItem runs one item through check -> analyze -> report -> ledger ->
// (removable) delete. All failures are contained here: nothing an item does
// can abort the cycle, and the ledger only advances after verified success.
func (d *Dispatcher) processItem(ctx context.Context, item source.Item) {
	data, err := d.source.Read(ctx, item.Path)
	if err != nil {
		d.logger.Errorf("item %s: read failed: %v", item.Path, err)
		return
	}

	digest := fingerprint.Digest(data)

	// Ledger lookup fails soft: a transient outage degrades to "no prior
	// state" and at worst re-analyzes, which is an idempotent overwrite.
	// A stuck loop would be worse.
	var priorDigest, priorSummary string
	rec, err := d.ledger.Get(ctx, item.Path)
	if err != nil {
		d.logger.Warnf("item %s: ledger lookup failed, treating as new: %v", item.Path, err)
	} else if rec != nil {
		priorDigest = rec.LastFingerprint
		priorSummary = rec.LastSummary
	}

	// Removable sources are presence-based: the object being listed at all
	// means it has not been consumed, so the fingerprint gate is skipped.
	if !d.source.Removable() {
		if !fingerprint.Changed(priorDigest, digest) {
			return
		}
		if priorDigest == "" {
			d.logger.Infof("item %s: new transcript discovered", item.Path)
		} else {
			d.logger.Infof("item %s: content changed", item.Path)
		}
	} else {
		d.logger.Infof("item %s: discovered in input bucket", item.Path)
	}

	d.logger.Infof("item %s: analysis started", item.Path)
	res := d.analyzer.Analyze(ctx, item.Owner, item.Name, string(data), priorSummary)

	location, err := d.sink.Write(ctx, item.Owner, item.Name, res.Report)
	if err != nil {
		d.logger.Errorf("item %s: report write failed: %v", item.Path, err)
		return
	}

	if !res.Analyzed {
		// The placeholder report was still delivered, but the content was
		// never actually analyzed: leave the fingerprint untouched so the
		// next cycle retries, and keep the object in a removable source.
		d.logger.Warnf("item %s: analysis degraded, ledger not advanced (report at %s)", item.Path, location)
		return
	}

	err = d.ledger.Upsert(ctx, &ledger.Record{
		Path:            item.Path,
		Owner:           item.Owner,
		LastFingerprint: digest,
		LastSummary:     res.Summary,
	})
	if err != nil {
		// The report is the primary deliverable and is already out; the
		// ledger is best-effort bookkeeping for incremental context.
		d.logger.Warnf("item %s: ledger upsert failed: %v", item.Path, err)
	}

	if d.source.Removable() {
		if err := d.source.Remove(ctx, item.Path); err != nil {
			d.logger.Errorf("item %s: failed to remove consumed input: %v", item.Path, err)
			return
		}
	}

	d.logger.Infof("item %s: processed successfully (report at %s)", item.Path, location)
}
