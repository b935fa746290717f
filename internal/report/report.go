package report

import (
	"time"

	"github.com/google/uuid"

	"github.com/scout-edge/brandgate/internal/matcher"
	"github.com/scout-edge/brandgate/internal/quality"
	"github.com/scout-edge/brandgate/internal/rules"
)

// Report is the output artifact of one validation pass over one record.
// It is created once and never mutated; re-validation produces a new report.
type Report struct {
	ID            string                          `json:"id"`
	TransactionID string                          `json:"transaction_id"`
	Findings      map[rules.Layer][]rules.Finding `json:"findings"`
	Candidates    []matcher.Candidate             `json:"candidates"`
	Score         float64                         `json:"score"`
	Bucket        quality.Bucket                  `json:"bucket"`
	Verdict       quality.Verdict                 `json:"verdict"`
	CreatedAt     time.Time                       `json:"created_at"`
}

// New assembles a report, grouping findings by layer.
func New(transactionID string, findings []rules.Finding, candidates []matcher.Candidate, score float64, bucket quality.Bucket, verdict quality.Verdict) *Report {
	grouped := make(map[rules.Layer][]rules.Finding, len(rules.Layers))
	for _, f := range findings {
		grouped[f.Layer] = append(grouped[f.Layer], f)
	}

	return &Report{
		ID:            uuid.NewString(),
		TransactionID: transactionID,
		Findings:      grouped,
		Candidates:    candidates,
		Score:         score,
		Bucket:        bucket,
		Verdict:       verdict,
		CreatedAt:     time.Now().UTC(),
	}
}

// AllFindings flattens the grouped findings back into layer order.
func (r *Report) AllFindings() []rules.Finding {
	var out []rules.Finding
	for _, layer := range rules.Layers {
		out = append(out, r.Findings[layer]...)
	}
	return out
}

// Strategy names how a duplicate pair was resolved.
type Strategy string

const (
	StrategyLastWriteWins Strategy = "last-write-wins"
	StrategyPreserveBoth  Strategy = "preserve-both"
	StrategyManualReview  Strategy = "manual-review"
)

// ConflictDecision records the outcome of resolving one duplicate pair.
// Resolution is idempotent, so re-resolving an unchanged pair reproduces
// this decision exactly.
type ConflictDecision struct {
	PairKey          string    `json:"pair_key"`
	LeftID           string    `json:"left_id"`
	RightID          string    `json:"right_id"`
	Strategy         Strategy  `json:"strategy"`
	AuthoritativeIDs []string  `json:"authoritative_ids"`
	Reason           string    `json:"reason"`
	DecidedAt        time.Time `json:"decided_at"`
}
