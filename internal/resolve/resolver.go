// Package resolve decides which of two duplicate transaction records is
// authoritative. A pair moves through three stages: detected (pair key
// derived), scored (both versions validated and scored independently),
// resolved (a strategy picked and recorded as a ConflictDecision).
package resolve

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scout-edge/brandgate/internal/matcher"
	"github.com/scout-edge/brandgate/internal/quality"
	"github.com/scout-edge/brandgate/internal/record"
	"github.com/scout-edge/brandgate/internal/report"
	"github.com/scout-edge/brandgate/internal/rules"
)

// Resolver resolves duplicate record pairs. Safe for concurrent use:
// resolution of the same pair key is serialized through a keyed mutex,
// distinct pairs proceed independently.
type Resolver struct {
	matcher   *matcher.Matcher
	validator *rules.Validator
	scorer    *quality.Scorer
	window    time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a resolver. window is the duplicate time window: timestamp
// gaps larger than it are settled by recency, gaps within it by quality.
func New(m *matcher.Matcher, v *rules.Validator, window time.Duration) *Resolver {
	return &Resolver{
		matcher:   m,
		validator: v,
		scorer:    quality.NewScorer(),
		window:    window,
		locks:     make(map[string]*sync.Mutex),
	}
}

// Resolve decides the authoritative record for a detected duplicate pair.
// Resolution is idempotent: unchanged inputs reproduce the decision byte
// for byte, which is why DecidedAt derives from the record timestamps
// rather than the wall clock.
func (r *Resolver) Resolve(ctx context.Context, left, right *record.TransactionRecord) (*report.ConflictDecision, error) {
	if left == nil || right == nil {
		return nil, fmt.Errorf("resolving pair: both records required")
	}
	if left.ID == right.ID {
		return nil, fmt.Errorf("resolving pair: records share identifier %s", left.ID)
	}

	pairKey := record.PairKeyFor(left, right, r.window)

	lock := r.pairLock(pairKey)
	lock.Lock()
	defer lock.Unlock()

	leftVerdict, err := r.scoreVersion(ctx, left)
	if err != nil {
		return nil, fmt.Errorf("scoring %s: %w", left.ID, err)
	}
	rightVerdict, err := r.scoreVersion(ctx, right)
	if err != nil {
		return nil, fmt.Errorf("scoring %s: %w", right.ID, err)
	}

	decision := &report.ConflictDecision{
		PairKey:   pairKey,
		LeftID:    left.ID,
		RightID:   right.ID,
		DecidedAt: laterOf(left.Timestamp, right.Timestamp).UTC(),
	}

	gap := right.Timestamp.Sub(left.Timestamp)
	if gap < 0 {
		gap = -gap
	}

	switch {
	case gap > r.window:
		later, earlier := left, right
		laterVerdict, earlierVerdict := leftVerdict, rightVerdict
		if right.Timestamp.After(left.Timestamp) {
			later, earlier = right, left
			laterVerdict, earlierVerdict = rightVerdict, leftVerdict
		}
		decision.Strategy = report.StrategyLastWriteWins
		if laterVerdict == quality.VerdictFail && earlierVerdict != quality.VerdictFail {
			decision.AuthoritativeIDs = []string{earlier.ID}
			decision.Reason = fmt.Sprintf("later record %s failed validation; earlier %s verdict %s wins",
				later.ID, earlier.ID, earlierVerdict)
		} else {
			decision.AuthoritativeIDs = []string{later.ID}
			decision.Reason = fmt.Sprintf("timestamps differ by %s; later record %s wins", gap, later.ID)
		}

	case left.Timestamp.Equal(right.Timestamp) && record.ContentDigest(left) != record.ContentDigest(right):
		decision.Strategy = report.StrategyPreserveBoth
		decision.AuthoritativeIDs = []string{
			suffixedID(pairKey, left.ID),
			suffixedID(pairKey, right.ID),
		}
		sort.Strings(decision.AuthoritativeIDs)
		decision.Reason = "identical timestamp with differing payload; both versions retained"

	case verdictRank(leftVerdict) != verdictRank(rightVerdict):
		winner := left
		winnerVerdict := leftVerdict
		if verdictRank(rightVerdict) > verdictRank(leftVerdict) {
			winner = right
			winnerVerdict = rightVerdict
		}
		decision.Strategy = report.StrategyLastWriteWins
		decision.AuthoritativeIDs = []string{winner.ID}
		decision.Reason = fmt.Sprintf("timestamps within window; record %s verdict %s wins on quality",
			winner.ID, winnerVerdict)

	default:
		decision.Strategy = report.StrategyManualReview
		decision.AuthoritativeIDs = nil
		decision.Reason = fmt.Sprintf("verdicts tie at %s and timestamps are within %s; queued for review",
			leftVerdict, r.window)
	}

	return decision, nil
}

// scoreVersion runs the full validation pass on one version of the pair.
// A cancellation error means the version was only partially evaluated and
// the whole resolution must be retried, never decided.
func (r *Resolver) scoreVersion(ctx context.Context, rec *record.TransactionRecord) (quality.Verdict, error) {
	var matches []matcher.Candidate
	if rec.HasTranscript() {
		matches = r.matcher.Match(rec.Transcript, nil)
	}
	findings, err := r.validator.Validate(ctx, rec, matches)
	if err != nil {
		return "", err
	}
	_, verdict := r.scorer.Score(findings, matches, rec.HasTranscript())
	return verdict, nil
}

func (r *Resolver) pairLock(pairKey string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[pairKey]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[pairKey] = lock
	}
	return lock
}

// suffixedID rewrites a preserved record identifier with a deterministic
// suffix derived from the pair key, so re-resolution reproduces the same
// identifier pair.
func suffixedID(pairKey, id string) string {
	ns := uuid.NewSHA1(uuid.NameSpaceOID, []byte(pairKey))
	suffix := uuid.NewSHA1(ns, []byte(id)).String()[:8]
	return id + "~" + suffix
}

func verdictRank(v quality.Verdict) int {
	switch v {
	case quality.VerdictPass:
		return 2
	case quality.VerdictWarn:
		return 1
	default:
		return 0
	}
}

func laterOf(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
