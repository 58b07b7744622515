// Package pgstore implements a PostgreSQL-backed persistence.Store on top of
// github.com/jackc/pgx/v5/pgxpool, repurposing the teacher's primary
// dependency from an event-append table into a (app_id, revision) -> blob
// snapshot table (spec.md §6, SPEC_FULL.md §12).
//
// Grounded on the pgxpool.Pool / QueryRow / Exec idioms of
// pkg/dcb/db_validation.go and pkg/dcb/append.go.
package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eventflux-io/engine/internal/core/errs"
)

// ErrNotFound is returned by Load when no blob exists for the given
// (appID, revision).
var ErrNotFound = errors.New("pgstore: revision not found")

const schemaDDL = `
CREATE TABLE IF NOT EXISTS eventflux_snapshots (
	app_id   TEXT NOT NULL,
	revision BIGINT NOT NULL,
	blob     BYTEA NOT NULL,
	PRIMARY KEY (app_id, revision)
);
`

// Store is a pgxpool-backed persistence.Store.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an already-configured pool. EnsureSchema must be called once
// before first use (mirroring the teacher's explicit validate/migrate step
// rather than running DDL implicitly on every query).
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema creates the snapshot table if it does not already exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaDDL); err != nil {
		return errs.New("pgstore.EnsureSchema", errs.AppCreation, err)
	}
	return nil
}

func (s *Store) Save(ctx context.Context, appID string, revision int64, blob []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO eventflux_snapshots (app_id, revision, blob)
		VALUES ($1, $2, $3)
		ON CONFLICT (app_id, revision) DO UPDATE SET blob = EXCLUDED.blob
	`, appID, revision, blob)
	if err != nil {
		return errs.New("pgstore.Save", errs.AppRuntime, err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, appID string, revision int64) ([]byte, error) {
	var blob []byte
	err := s.pool.QueryRow(ctx, `
		SELECT blob FROM eventflux_snapshots WHERE app_id = $1 AND revision = $2
	`, appID, revision).Scan(&blob)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errs.New("pgstore.Load", errs.AppRuntime, err)
	}
	return blob, nil
}

func (s *Store) GetLastRevision(ctx context.Context, appID string) (int64, bool, error) {
	var rev int64
	err := s.pool.QueryRow(ctx, `
		SELECT MAX(revision) FROM eventflux_snapshots WHERE app_id = $1
	`, appID).Scan(&rev)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errs.New("pgstore.GetLastRevision", errs.AppRuntime, err)
	}
	if rev == 0 {
		// MAX() over zero rows scans as NULL -> the zero value; distinguish
		// "no revisions yet" from "revision 0 exists" with an explicit count.
		var count int
		if cerr := s.pool.QueryRow(ctx, `
			SELECT COUNT(*) FROM eventflux_snapshots WHERE app_id = $1
		`, appID).Scan(&count); cerr != nil {
			return 0, false, errs.New("pgstore.GetLastRevision", errs.AppRuntime, cerr)
		}
		if count == 0 {
			return 0, false, nil
		}
	}
	return rev, true, nil
}

func (s *Store) ClearAll(ctx context.Context, appID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM eventflux_snapshots WHERE app_id = $1`, appID)
	if err != nil {
		return errs.New("pgstore.ClearAll", errs.AppRuntime, err)
	}
	return nil
}

func (s *Store) DeleteRevision(ctx context.Context, appID string, revision int64) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM eventflux_snapshots WHERE app_id = $1 AND revision = $2
	`, appID, revision)
	if err != nil {
		return errs.New("pgstore.DeleteRevision", errs.AppRuntime, fmt.Errorf("delete revision %d: %w", revision, err))
	}
	return nil
}
