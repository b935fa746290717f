// Package quality turns findings and matcher confidence into a single
// 0-100 quality score and a pass/warn/fail verdict. The verdict derives
// purely from finding severities so promotion gating stays deterministic
// and auditable; the numeric score is informational.
package quality

import (
	"github.com/scout-edge/brandgate/internal/matcher"
	"github.com/scout-edge/brandgate/internal/rules"
)

// Verdict is the coarse outcome of a validation pass.
type Verdict string

const (
	VerdictPass Verdict = "pass"
	VerdictWarn Verdict = "warn"
	VerdictFail Verdict = "fail"
)

// Bucket labels a score range for reporting dashboards.
type Bucket string

const (
	BucketExcellent Bucket = "excellent"
	BucketGood      Bucket = "good"
	BucketMarginal  Bucket = "marginal"
	BucketPoor      Bucket = "poor"
)

// Thresholds holds the score cut-offs for the reporting buckets. They are
// informational only and never affect promotion gating.
type Thresholds struct {
	Excellent float64
	Good      float64
	Marginal  float64
}

// DefaultThresholds returns the standard bucket cut-offs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Excellent: 90,
		Good:      75,
		Marginal:  50,
	}
}

// Scoring policy constants.
const (
	baseScore            = 100.0
	errorPenalty         = 15.0
	warningPenalty       = 5.0
	weakSignalMaxPenalty = 10.0
	weakSignalFloor      = 0.6
)

// Scorer aggregates findings and matcher output. It is immutable after
// construction and safe for concurrent use.
type Scorer struct {
	thresholds Thresholds
}

// NewScorer returns a scorer with the default bucket thresholds.
func NewScorer() *Scorer {
	return NewScorerWith(DefaultThresholds())
}

// NewScorerWith returns a scorer using the given bucket thresholds.
func NewScorerWith(t Thresholds) *Scorer {
	d := DefaultThresholds()
	if t.Excellent <= 0 {
		t.Excellent = d.Excellent
	}
	if t.Good <= 0 {
		t.Good = d.Good
	}
	if t.Marginal <= 0 {
		t.Marginal = d.Marginal
	}
	return &Scorer{thresholds: t}
}

// Score computes the quality score and verdict for one validation pass.
// hasTranscript tells the scorer whether the record carried a transcript,
// which arms the weak-brand-signal penalty.
func (s *Scorer) Score(findings []rules.Finding, matches []matcher.Candidate, hasTranscript bool) (float64, Verdict) {
	errors, warnings, _ := rules.CountBySeverity(findings)

	score := baseScore
	score -= errorPenalty * float64(errors)
	score -= warningPenalty * float64(warnings)

	// Weak brand signal: a transcript was present but no candidate reached
	// a confident match. The penalty scales with how far short the best
	// candidate fell.
	if hasTranscript {
		top := 0.0
		if len(matches) > 0 {
			top = matches[0].Confidence
		}
		if top < weakSignalFloor {
			score -= weakSignalMaxPenalty * (weakSignalFloor - top) / weakSignalFloor
		}
	}

	if score < 0 {
		score = 0
	}

	switch {
	case errors > 0:
		return score, VerdictFail
	case warnings > 0:
		return score, VerdictWarn
	default:
		return score, VerdictPass
	}
}

// BucketFor maps a score to its reporting bucket using the scorer's
// configured thresholds.
func (s *Scorer) BucketFor(score float64) Bucket {
	switch {
	case score >= s.thresholds.Excellent:
		return BucketExcellent
	case score >= s.thresholds.Good:
		return BucketGood
	case score >= s.thresholds.Marginal:
		return BucketMarginal
	default:
		return BucketPoor
	}
}

// BucketFor maps a score to its reporting bucket using the default
// thresholds.
func BucketFor(score float64) Bucket {
	return NewScorer().BucketFor(score)
}
