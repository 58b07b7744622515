// Package persistence defines the snapshot Store contract (spec.md §6) that
// every backend (pgstore, sqlitestore, memstore, redisstore) satisfies:
// save/load/get-last-revision/clear-all/delete-revision over a binary blob
// keyed by (app_id, revision), plus the optional AES-256-GCM envelope.
package persistence

import "context"

// Store persists and retrieves snapshot blobs keyed by (appID, revision).
// Revisions are opaque monotonic identifiers assigned by the caller (the app
// runtime); stores never interpret them beyond ordering by get-last-revision.
type Store interface {
	Save(ctx context.Context, appID string, revision int64, blob []byte) error
	Load(ctx context.Context, appID string, revision int64) ([]byte, error)
	GetLastRevision(ctx context.Context, appID string) (int64, bool, error)
	ClearAll(ctx context.Context, appID string) error
	DeleteRevision(ctx context.Context, appID string, revision int64) error
}
