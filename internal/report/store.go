package report

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/scout-edge/brandgate/internal/quality"
	"github.com/scout-edge/brandgate/internal/rules"
)

// Store persists validation reports and conflict decisions for the
// downstream promotion pipeline.
type Store struct {
	db *sql.DB
}

// NewStore creates a report store over an open connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// SaveReport writes a report, its findings, and its candidate set.
func (s *Store) SaveReport(r *Report) error {
	candidates, err := json.Marshal(r.Candidates)
	if err != nil {
		return fmt.Errorf("encoding candidates: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning report transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO validation_report (report_id, transaction_id, score, bucket, verdict, candidates, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, r.ID, r.TransactionID, r.Score, string(r.Bucket), string(r.Verdict), candidates, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting validation report: %w", err)
	}

	for _, f := range r.AllFindings() {
		payload, err := json.Marshal(f.Payload)
		if err != nil {
			return fmt.Errorf("encoding finding payload: %w", err)
		}
		_, err = tx.Exec(`
			INSERT INTO report_finding (report_id, rule, layer, severity, message, payload)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, r.ID, f.Rule, string(f.Layer), string(f.Severity), f.Message, payload)
		if err != nil {
			return fmt.Errorf("inserting finding %s: %w", f.Rule, err)
		}
	}

	// Failed records also land on the quarantine path so the dead-letter
	// consumer never has to join against findings.
	if r.Verdict == quality.VerdictFail {
		rulesHit := make([]string, 0, 4)
		for _, f := range r.AllFindings() {
			rulesHit = append(rulesHit, f.Rule)
		}
		_, err = tx.Exec(`
			INSERT INTO quarantine (report_id, transaction_id, rules, created_at)
			VALUES ($1, $2, $3, $4)
		`, r.ID, r.TransactionID, pq.Array(rulesHit), r.CreatedAt)
		if err != nil {
			return fmt.Errorf("inserting quarantine row: %w", err)
		}
	}

	return tx.Commit()
}

// SaveDecision upserts a conflict decision keyed by the pair key, so
// idempotent re-resolution overwrites with the identical row.
func (s *Store) SaveDecision(d *ConflictDecision) error {
	_, err := s.db.Exec(`
		INSERT INTO conflict_decision (pair_key, left_id, right_id, strategy, authoritative_ids, reason, decided_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (pair_key) DO UPDATE SET
			left_id = EXCLUDED.left_id,
			right_id = EXCLUDED.right_id,
			strategy = EXCLUDED.strategy,
			authoritative_ids = EXCLUDED.authoritative_ids,
			reason = EXCLUDED.reason,
			decided_at = EXCLUDED.decided_at
	`, d.PairKey, d.LeftID, d.RightID, string(d.Strategy), pq.Array(d.AuthoritativeIDs), d.Reason, d.DecidedAt)
	if err != nil {
		return fmt.Errorf("upserting conflict decision: %w", err)
	}
	return nil
}

// GetReport loads one report with its findings.
func (s *Store) GetReport(reportID string) (*Report, error) {
	r := &Report{ID: reportID}
	var bucket, verdict string
	var candidates []byte

	err := s.db.QueryRow(`
		SELECT transaction_id, score, bucket, verdict, candidates, created_at
		FROM validation_report
		WHERE report_id = $1
	`, reportID).Scan(&r.TransactionID, &r.Score, &bucket, &verdict, &candidates, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying report %s: %w", reportID, err)
	}
	r.Bucket = quality.Bucket(bucket)
	r.Verdict = quality.Verdict(verdict)
	if len(candidates) > 0 {
		if err := json.Unmarshal(candidates, &r.Candidates); err != nil {
			return nil, fmt.Errorf("decoding candidates for %s: %w", reportID, err)
		}
	}

	findings, err := s.loadFindings(reportID)
	if err != nil {
		return nil, err
	}
	r.Findings = findings
	return r, nil
}

// ListByVerdict returns report summaries filtered by verdict, newest first.
func (s *Store) ListByVerdict(verdict quality.Verdict, limit int) ([]*Report, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`
		SELECT report_id, transaction_id, score, bucket, verdict, created_at
		FROM validation_report
		WHERE verdict = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, string(verdict), limit)
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	defer rows.Close()

	var out []*Report
	for rows.Next() {
		r := &Report{}
		var bucket, v string
		if err := rows.Scan(&r.ID, &r.TransactionID, &r.Score, &bucket, &v, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning report row: %w", err)
		}
		r.Bucket = quality.Bucket(bucket)
		r.Verdict = quality.Verdict(v)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Stats summarizes report verdicts for the dashboard endpoint.
type Stats struct {
	Total  int `json:"total"`
	Passed int `json:"passed"`
	Warned int `json:"warned"`
	Failed int `json:"failed"`
}

// GetStats tallies stored reports by verdict.
func (s *Store) GetStats() (*Stats, error) {
	stats := &Stats{}
	err := s.db.QueryRow(`
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE verdict = 'pass'),
		       COUNT(*) FILTER (WHERE verdict = 'warn'),
		       COUNT(*) FILTER (WHERE verdict = 'fail')
		FROM validation_report
	`).Scan(&stats.Total, &stats.Passed, &stats.Warned, &stats.Failed)
	if err != nil {
		return nil, fmt.Errorf("querying report stats: %w", err)
	}
	return stats, nil
}

func (s *Store) loadFindings(reportID string) (map[rules.Layer][]rules.Finding, error) {
	rows, err := s.db.Query(`
		SELECT rule, layer, severity, message, payload
		FROM report_finding
		WHERE report_id = $1
		ORDER BY id
	`, reportID)
	if err != nil {
		return nil, fmt.Errorf("querying findings for %s: %w", reportID, err)
	}
	defer rows.Close()

	grouped := make(map[rules.Layer][]rules.Finding)
	for rows.Next() {
		var f rules.Finding
		var layer, severity string
		var payload []byte
		if err := rows.Scan(&f.Rule, &layer, &severity, &f.Message, &payload); err != nil {
			return nil, fmt.Errorf("scanning finding row: %w", err)
		}
		f.Layer = rules.Layer(layer)
		f.Severity = rules.Severity(severity)
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &f.Payload); err != nil {
				return nil, fmt.Errorf("decoding finding payload: %w", err)
			}
		}
		grouped[f.Layer] = append(grouped[f.Layer], f)
	}
	return grouped, rows.Err()
}
