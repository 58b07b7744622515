// Package memstore implements an in-process persistence.Store, the
// zero-dependency backend used by tests and by embedding hosts that only
// need snapshots to survive process-local restarts/rollbacks, not an actual
// process restart.
package memstore

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned by Load when no blob exists for the given
// (appID, revision).
var ErrNotFound = errors.New("memstore: revision not found")

type key struct {
	appID    string
	revision int64
}

// Store is a mutex-guarded map-backed persistence.Store.
type Store struct {
	mu   sync.RWMutex
	data map[key][]byte
	last map[string]int64
}

func New() *Store {
	return &Store{
		data: make(map[key][]byte),
		last: make(map[string]int64),
	}
}

func (s *Store) Save(ctx context.Context, appID string, revision int64, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(blob))
	copy(cp, blob)
	s.data[key{appID, revision}] = cp
	if cur, ok := s.last[appID]; !ok || revision > cur {
		s.last[appID] = revision
	}
	return nil
}

func (s *Store) Load(ctx context.Context, appID string, revision int64) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	blob, ok := s.data[key{appID, revision}]
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]byte, len(blob))
	copy(cp, blob)
	return cp, nil
}

func (s *Store) GetLastRevision(ctx context.Context, appID string) (int64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rev, ok := s.last[appID]
	return rev, ok, nil
}

// ClearAll removes every revision for appID, including its last-revision
// pointer (spec.md §9's open question resolved the same way for every
// backend: clear means clear, not just forget the pointer).
func (s *Store) ClearAll(ctx context.Context, appID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.data {
		if k.appID == appID {
			delete(s.data, k)
		}
	}
	delete(s.last, appID)
	return nil
}

// DeleteRevision removes one revision's blob. If it was the cached
// last-revision for appID, the pointer is recomputed from the revisions
// that remain so GetLastRevision never points at a blob that no longer
// exists (matching pgstore/sqlitestore, which derive it fresh from
// SELECT MAX(revision) on every call).
func (s *Store) DeleteRevision(ctx context.Context, appID string, revision int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key{appID, revision})

	if cur, ok := s.last[appID]; ok && cur == revision {
		s.recomputeLast(appID)
	}
	return nil
}

// recomputeLast scans the remaining keys for appID and resets s.last to the
// highest revision still present, or clears it if none remain.
func (s *Store) recomputeLast(appID string) {
	highest, found := int64(0), false
	for k := range s.data {
		if k.appID == appID && (!found || k.revision > highest) {
			highest = k.revision
			found = true
		}
	}
	if found {
		s.last[appID] = highest
	} else {
		delete(s.last, appID)
	}
}
