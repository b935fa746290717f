// Package registry fronts the external store/permission authority consulted
// by the cross-system validation layer. The authority itself is an external
// collaborator; this package only defines the lookup contract and the two
// client implementations the pipeline uses.
package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/scout-edge/brandgate/internal/record"
)

var (
	// ErrUnknownStore means the referenced store is not in the registry.
	ErrUnknownStore = errors.New("unknown store")

	// ErrPermissionDenied means the store exists but the reporting source
	// is not entitled to report for it.
	ErrPermissionDenied = errors.New("permission denied")
)

// StoreRegistry answers whether a source may report transactions for a
// store. Implementations must honor ctx cancellation and deadlines; the
// caller bounds every lookup with the configured cross-system timeout.
type StoreRegistry interface {
	Authorize(ctx context.Context, storeID string, source record.Source) error
}

// PostgresRegistry reads entitlements from the store_registry table.
type PostgresRegistry struct {
	db *sql.DB
}

// NewPostgresRegistry creates a registry client over an open connection.
func NewPostgresRegistry(db *sql.DB) *PostgresRegistry {
	return &PostgresRegistry{db: db}
}

// Authorize checks the store exists and the source is in its allowed set.
func (r *PostgresRegistry) Authorize(ctx context.Context, storeID string, source record.Source) error {
	var allowed []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT allowed_sources
		FROM store_registry
		WHERE store_id = $1
	`, storeID).Scan(&allowed)
	if err == sql.ErrNoRows {
		return ErrUnknownStore
	}
	if err != nil {
		return fmt.Errorf("store registry lookup: %w", err)
	}

	// allowed_sources is a comma-separated list kept small on purpose.
	for _, s := range strings.Split(string(allowed), ",") {
		if record.Source(strings.TrimSpace(s)) == source {
			return nil
		}
	}
	return ErrPermissionDenied
}

// StaticRegistry is an in-memory registry for tests and offline runs.
type StaticRegistry struct {
	// Stores maps store ID to its allowed sources.
	Stores map[string][]record.Source
}

// Authorize implements StoreRegistry against the static table.
func (r *StaticRegistry) Authorize(ctx context.Context, storeID string, source record.Source) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sources, ok := r.Stores[storeID]
	if !ok {
		return ErrUnknownStore
	}
	for _, s := range sources {
		if s == source {
			return nil
		}
	}
	return ErrPermissionDenied
}

// BlockingRegistry never answers before ctx expires. Tests use it to drive
// the cross-system timeout path.
type BlockingRegistry struct{}

// Authorize waits for ctx and returns its error.
func (BlockingRegistry) Authorize(ctx context.Context, storeID string, source record.Source) error {
	<-ctx.Done()
	return ctx.Err()
}
