package lexicon

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	"github.com/lib/pq"
)

// LoadFile reads a lexicon from a JSON file containing an array of entries.
func LoadFile(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading lexicon file: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing lexicon file %s: %w", path, err)
	}

	return New(entries), nil
}

// LoadDB reads the lexicon from the brand_lexicon table. Aliases and exclude
// contexts are Postgres text arrays; context boosts are a jsonb column.
func LoadDB(db *sql.DB) (*Lexicon, error) {
	rows, err := db.Query(`
		SELECT canonical_name, aliases, context_boosts, exclude_contexts, priority
		FROM brand_lexicon
		WHERE is_active
		ORDER BY canonical_name
	`)
	if err != nil {
		return nil, fmt.Errorf("querying brand_lexicon: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			boostsRaw []byte
		)
		if err := rows.Scan(&e.Canonical, pq.Array(&e.Aliases), &boostsRaw,
			pq.Array(&e.ExcludeContexts), &e.Priority); err != nil {
			return nil, fmt.Errorf("scanning brand_lexicon row: %w", err)
		}
		if len(boostsRaw) > 0 {
			if err := json.Unmarshal(boostsRaw, &e.ContextBoosts); err != nil {
				return nil, fmt.Errorf("parsing context boosts for %s: %w", e.Canonical, err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return New(entries), nil
}

// ImportFile upserts entries from a JSON file into the brand_lexicon table.
// Returns the number of entries written.
func ImportFile(db *sql.DB, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading lexicon file: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return 0, fmt.Errorf("parsing lexicon file %s: %w", path, err)
	}

	written := 0
	for _, e := range entries {
		boosts, err := json.Marshal(e.ContextBoosts)
		if err != nil {
			return written, fmt.Errorf("encoding context boosts for %s: %w", e.Canonical, err)
		}
		_, err = db.Exec(`
			INSERT INTO brand_lexicon (canonical_name, aliases, context_boosts, exclude_contexts, priority, is_active)
			VALUES ($1, $2, $3, $4, $5, true)
			ON CONFLICT (canonical_name) DO UPDATE SET
				aliases = EXCLUDED.aliases,
				context_boosts = EXCLUDED.context_boosts,
				exclude_contexts = EXCLUDED.exclude_contexts,
				priority = EXCLUDED.priority,
				updated_at = now()
		`, e.Canonical, pq.Array(e.Aliases), boosts, pq.Array(e.ExcludeContexts), e.Priority)
		if err != nil {
			return written, fmt.Errorf("upserting %s: %w", e.Canonical, err)
		}
		written++
	}

	return written, nil
}
