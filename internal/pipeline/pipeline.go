// Package pipeline runs batch validation: every record is independent, so
// the batch fans out across a bounded worker pool sharing one read-only
// lexicon. Cancellation keeps reports already completed and discards
// partially evaluated records.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/scout-edge/brandgate/internal/matcher"
	"github.com/scout-edge/brandgate/internal/quality"
	"github.com/scout-edge/brandgate/internal/record"
	"github.com/scout-edge/brandgate/internal/report"
	"github.com/scout-edge/brandgate/internal/rules"
)

// BatchStats summarizes one batch run.
type BatchStats struct {
	Total       int
	Passed      int
	Warned      int
	Failed      int
	Quarantined int
	Elapsed     time.Duration
}

// Sink receives completed reports. Persistence failures are logged and
// counted, never fatal to the batch.
type Sink interface {
	SaveReport(r *report.Report) error
}

// Runner validates batches of transaction records.
type Runner struct {
	matcher   *matcher.Matcher
	validator *rules.Validator
	scorer    *quality.Scorer
	workers   int
	sink      Sink
	log       *logrus.Logger
}

// NewRunner creates a batch runner. sink may be nil for dry runs; a nil
// scorer gets the default thresholds.
func NewRunner(m *matcher.Matcher, v *rules.Validator, scorer *quality.Scorer, workers int, sink Sink, log *logrus.Logger) *Runner {
	if workers < 1 {
		workers = 1
	}
	if scorer == nil {
		scorer = quality.NewScorer()
	}
	if log == nil {
		log = logrus.New()
	}
	return &Runner{
		matcher:   m,
		validator: v,
		scorer:    scorer,
		workers:   workers,
		sink:      sink,
		log:       log,
	}
}

// Run validates every record in the batch. On cancellation the reports
// already completed are returned alongside ctx.Err(); records that never
// started or were mid-evaluation produce no report at all.
func (r *Runner) Run(ctx context.Context, records []*record.TransactionRecord) ([]*report.Report, BatchStats, error) {
	start := time.Now()

	reports := make([]*report.Report, len(records))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for i, rec := range records {
		i, rec := i, rec
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rep, err := r.validateOne(gctx, rec)
			if err != nil {
				// Partially evaluated: no report, the record is retried.
				return err
			}
			mu.Lock()
			reports[i] = rep
			mu.Unlock()
			return nil
		})
	}

	runErr := g.Wait()

	stats := BatchStats{Total: len(records)}
	completed := make([]*report.Report, 0, len(records))
	for _, rep := range reports {
		if rep == nil {
			continue
		}
		completed = append(completed, rep)
		switch rep.Verdict {
		case quality.VerdictPass:
			stats.Passed++
		case quality.VerdictWarn:
			stats.Warned++
		case quality.VerdictFail:
			stats.Failed++
			stats.Quarantined++
		}
	}
	stats.Elapsed = time.Since(start)

	r.log.WithFields(logrus.Fields{
		"total":       stats.Total,
		"passed":      stats.Passed,
		"warned":      stats.Warned,
		"failed":      stats.Failed,
		"quarantined": stats.Quarantined,
		"elapsed":     stats.Elapsed.Round(time.Millisecond).String(),
	}).Info("batch complete")

	return completed, stats, runErr
}

// validateOne runs the full pass for a single record and produces its
// report. Only the cross-system layer may block, under its own timeout. A
// cancellation error means the record got no terminal verdict: nothing is
// reported or persisted for it.
func (r *Runner) validateOne(ctx context.Context, rec *record.TransactionRecord) (*report.Report, error) {
	var matches []matcher.Candidate
	if rec.HasTranscript() {
		matches = r.matcher.Match(rec.Transcript, nil)
	}

	findings, err := r.validator.Validate(ctx, rec, matches)
	if err != nil {
		return nil, err
	}
	score, verdict := r.scorer.Score(findings, matches, rec.HasTranscript())
	rep := report.New(rec.ID, findings, matches, score, r.scorer.BucketFor(score), verdict)

	if r.sink != nil {
		if err := r.sink.SaveReport(rep); err != nil {
			r.log.WithError(err).WithField("transaction_id", rec.ID).
				Error("failed to persist report")
		}
	}
	return rep, nil
}
