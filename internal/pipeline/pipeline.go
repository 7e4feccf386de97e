package pipeline

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/rise-hydromet-export/internal/domain"
	"github.com/couchcryptid/rise-hydromet-export/internal/observability"
)

// RecordPublisher forwards an entry's records to a secondary sink.
type RecordPublisher interface {
	Publish(ctx context.Context, entry domain.ControlEntry, records []domain.OutputRecord) error
}

// EntryRecorder persists per-entry outcomes.
type EntryRecorder interface {
	RecordEntry(ctx context.Context, result domain.EntryResult) error
}

// Options configures a Pipeline. Publisher and Recorder may be nil.
type Options struct {
	SourceCode string
	Override   *domain.TimeWindow
	Publisher  RecordPublisher
	Recorder   EntryRecorder
}

// Pipeline drives one export run: control lines in, RISE JSON array out.
type Pipeline struct {
	fetcher SeriesFetcher
	opts    Options
	logger  *slog.Logger
	metrics  *observability.Metrics
	ready    atomic.Bool
	progress atomic.Pointer[domain.RunSummary]
}

// New creates a Pipeline.
func New(f SeriesFetcher, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Pipeline {
	return &Pipeline{
		fetcher: f,
		opts:    opts,
		logger:  logger,
		metrics: metrics,
	}
}

// CheckReadiness returns nil once the pipeline has processed at least one entry.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not processed any entries yet")
	}
	return nil
}

// Progress returns the outcome counts of the entries processed so far in the
// current run.
func (p *Pipeline) Progress() domain.RunSummary {
	if s := p.progress.Load(); s != nil {
		return *s
	}
	return domain.RunSummary{}
}

// Run processes lines in order and writes one JSON array to w. Entry failures
// are logged and skipped; write failures and cancellation end the run. The
// array is closed even when the run is cancelled.
func (p *Pipeline) Run(ctx context.Context, lines []string, w io.Writer) (domain.RunSummary, error) {
	start := time.Now()
	p.metrics.ExportRunning.Set(1)
	defer func() {
		p.metrics.ExportRunning.Set(0)
		p.metrics.RunDuration.Set(time.Since(start).Seconds())
	}()

	var summary domain.RunSummary
	p.progress.Store(&domain.RunSummary{})
	out := bufio.NewWriter(w)

	if err := writeString(out, "["); err != nil {
		return summary, err
	}

	wroteRecords := false
	var runErr error
	seq := 0

	for _, line := range lines {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		entry, ok := domain.ParseControlLine(line)
		if !ok {
			continue
		}
		seq++

		result := p.processEntry(ctx, seq, entry)
		if result.Outcome == domain.OutcomeSuccess {
			if err := p.writeFragment(out, result.Fragment, wroteRecords); err != nil {
				return summary, err
			}
			wroteRecords = true
		}

		summary.Add(result)
		snapshot := summary
		p.progress.Store(&snapshot)
		p.report(ctx, result)
		p.ready.Store(true)
	}

	if err := writeString(out, "]"); err != nil {
		return summary, err
	}
	if err := out.Flush(); err != nil {
		return summary, fmt.Errorf("%w: flush: %w", domain.ErrDestination, err)
	}

	p.logger.Info("export complete",
		"entries", summary.Entries,
		"succeeded", summary.Succeeded,
		"empty", summary.Empty,
		"failed", summary.Failed,
		"records", summary.Records,
		"duration", time.Since(start),
	)
	return summary, runErr
}

// processEntry resolves, fetches, and encodes one entry. It never writes output.
func (p *Pipeline) processEntry(ctx context.Context, seq int, entry domain.ControlEntry) domain.EntryResult {
	start := time.Now()
	window := domain.ResolveWindow(entry.Resolution, domain.Now(), p.opts.Override)
	result := domain.EntryResult{Seq: seq, Entry: entry, Window: window}

	series, err := p.fetcher.Fetch(ctx, entry, window)
	if err != nil {
		result.Outcome = domain.OutcomeFailed
		result.Err = err
		result.Duration = time.Since(start)
		return result
	}

	records := domain.BuildRecords(p.opts.SourceCode, entry, series, domain.Now())
	fragment, ok, err := domain.EncodeFragment(records)
	switch {
	case err != nil:
		result.Outcome = domain.OutcomeFailed
		result.Err = err
	case !ok:
		result.Outcome = domain.OutcomeEmpty
	default:
		result.Outcome = domain.OutcomeSuccess
		result.Records = records
		result.Fragment = fragment
	}
	result.Duration = time.Since(start)
	return result
}

// writeFragment writes one entry's records, preceded by a separator when
// records have already been written in this run.
func (p *Pipeline) writeFragment(out *bufio.Writer, fragment []byte, needSeparator bool) error {
	if needSeparator {
		if err := writeString(out, ","); err != nil {
			return err
		}
	}
	if _, err := out.Write(fragment); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrDestination, err)
	}
	return nil
}

// report logs the entry outcome and forwards it to the optional sinks.
func (p *Pipeline) report(ctx context.Context, r domain.EntryResult) {
	p.metrics.EntriesTotal.WithLabelValues(string(r.Outcome)).Inc()

	attrs := []any{
		"seq", r.Seq,
		"station", r.Entry.StationCode,
		"parameter", r.Entry.ParameterCode,
		"resolution", r.Entry.Resolution.String(),
		"start", domain.FormatTimestamp(r.Window.Start),
		"end", domain.FormatTimestamp(r.Window.End),
		"duration", r.Duration,
	}

	switch r.Outcome {
	case domain.OutcomeSuccess:
		p.metrics.RecordsWritten.Add(float64(len(r.Records)))
		p.logger.Info("entry exported", append(attrs, "records", len(r.Records))...)
		p.publish(ctx, r)
	case domain.OutcomeEmpty:
		p.logger.Info("entry empty", attrs...)
	case domain.OutcomeFailed:
		p.logger.Warn("entry failed", append(attrs, "error", r.Err)...)
	}

	if p.opts.Recorder != nil {
		if err := p.opts.Recorder.RecordEntry(ctx, r); err != nil {
			p.metrics.LedgerErrors.Inc()
			p.logger.Warn("record entry in ledger failed", "seq", r.Seq, "error", err)
		}
	}
}

func (p *Pipeline) publish(ctx context.Context, r domain.EntryResult) {
	if p.opts.Publisher == nil {
		return
	}
	if err := p.opts.Publisher.Publish(ctx, r.Entry, r.Records); err != nil {
		p.metrics.PublishErrors.Inc()
		p.logger.Warn("publish records failed",
			"station", r.Entry.StationCode,
			"parameter", r.Entry.ParameterCode,
			"error", err,
		)
		return
	}
	p.metrics.RecordsPublished.Add(float64(len(r.Records)))
}

func writeString(out *bufio.Writer, s string) error {
	if _, err := out.WriteString(s); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrDestination, err)
	}
	return nil
}
