// Package syncer implements watermark-based delta synchronisation between the
// core platform and eBay, plus the full-resync catalog feeds.
//
// A delta run reads the domain's watermark, captures the prospective new
// watermark before issuing any request, then pages through the upstream feed
// in delivery order. Records without a local counterpart are skipped. The
// watermark is only committed after every page succeeded, so a failed run is
// replayed from the old watermark by the next one and Apply functions must be
// idempotent.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/donaldgifford/ebay-connector/internal/metrics"
)

const instrumentationName = "github.com/donaldgifford/ebay-connector/internal/syncer"

// ErrSkip is returned by Locate for records with no local counterpart.
var ErrSkip = errors.New("record skipped")

// Window is the modification interval a run covers.
type Window struct {
	From time.Time
	To   time.Time
}

// Job describes one delta feed. R is the upstream record, E the local
// entity it maps onto.
type Job[R, E any] struct {
	Domain string

	// Watermark returns the last committed checkpoint.
	Watermark func(ctx context.Context) (time.Time, error)

	// Fetch returns the records of 1-based page and whether more follow.
	Fetch func(ctx context.Context, w Window, page int) ([]R, bool, error)

	// Locate maps a record onto its local entity. ErrSkip skips the record.
	Locate func(ctx context.Context, rec R) (E, error)

	// Apply persists one record. Any error aborts the run.
	Apply func(ctx context.Context, entity E, rec R) error

	// Commit stores the new watermark. A nil Commit leaves committing to the
	// caller, which gets the watermark in Stats.
	Commit func(ctx context.Context, t time.Time) error
}

// Stats summarises a run.
type Stats struct {
	Domain    string
	Pages     int
	Applied   int
	Skipped   int
	Watermark time.Time
}

type runConfig struct {
	log *slog.Logger
	now func() time.Time
}

// RunOption configures a run.
type RunOption func(*runConfig)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) RunOption {
	return func(c *runConfig) {
		c.log = l
	}
}

// WithNowFunc overrides the clock that produces the new watermark.
func WithNowFunc(f func() time.Time) RunOption {
	return func(c *runConfig) {
		c.now = f
	}
}

// Run executes one delta run of j.
func Run[R, E any](ctx context.Context, j Job[R, E], opts ...RunOption) (st Stats, err error) {
	cfg := runConfig{log: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}

	st.Domain = j.Domain
	start := time.Now()
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "sync."+j.Domain)
	defer func() {
		status := "succeeded"
		if err != nil {
			status = "failed"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(
			attribute.Int("sync.pages", st.Pages),
			attribute.Int("sync.applied", st.Applied),
			attribute.Int("sync.skipped", st.Skipped),
		)
		span.End()
		metrics.SyncRunsTotal.WithLabelValues(j.Domain, status).Inc()
		metrics.SyncDuration.WithLabelValues(j.Domain).Observe(time.Since(start).Seconds())
	}()

	from, err := j.Watermark(ctx)
	if err != nil {
		return st, fmt.Errorf("reading %s watermark: %w", j.Domain, err)
	}
	w := Window{From: from, To: cfg.now()}

	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return st, err
		}

		records, more, err := j.Fetch(ctx, w, page)
		if err != nil {
			return st, fmt.Errorf("fetching %s page %d: %w", j.Domain, page, err)
		}
		st.Pages++

		for _, rec := range records {
			entity, err := j.Locate(ctx, rec)
			if errors.Is(err, ErrSkip) {
				st.Skipped++
				metrics.SyncRecordsTotal.WithLabelValues(j.Domain, "skipped").Inc()
				cfg.log.DebugContext(ctx, "sync record skipped", "domain", j.Domain, "page", page, "reason", err)
				continue
			}
			if err != nil {
				return st, fmt.Errorf("locating %s record on page %d: %w", j.Domain, page, err)
			}
			if err := j.Apply(ctx, entity, rec); err != nil {
				return st, fmt.Errorf("applying %s record on page %d: %w", j.Domain, page, err)
			}
			st.Applied++
			metrics.SyncRecordsTotal.WithLabelValues(j.Domain, "applied").Inc()
		}

		if !more {
			break
		}
	}

	st.Watermark = w.To
	if j.Commit != nil {
		if err := j.Commit(ctx, w.To); err != nil {
			return st, fmt.Errorf("committing %s watermark: %w", j.Domain, err)
		}
		metrics.SyncWatermarkAge.WithLabelValues(j.Domain).Set(time.Since(w.To).Seconds())
	}

	cfg.log.InfoContext(ctx, "sync run complete",
		"domain", j.Domain,
		"pages", st.Pages,
		"applied", st.Applied,
		"skipped", st.Skipped,
		"watermark", w.To,
	)
	return st, nil
}

// Skip wraps a reason for skipping a record.
func Skip(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSkip, fmt.Sprintf(format, args...))
}
