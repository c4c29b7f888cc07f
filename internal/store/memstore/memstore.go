// Package memstore implements store.Store in memory. It backs the server
// when no database is configured and keeps nothing across restarts.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alfredjeanlab/agora/internal/model"
	"github.com/alfredjeanlab/agora/internal/store"
)

// MemStore is a concurrency-safe in-memory store.
type MemStore struct {
	mu      sync.RWMutex
	journal map[string][]*store.Entry
	events  []*model.Event
	nextID  int64
	now     func() time.Time
}

var _ store.Store = (*MemStore)(nil)

// New returns an empty store.
func New() *MemStore {
	return &MemStore{
		journal: make(map[string][]*store.Entry),
		now:     time.Now,
	}
}

func (s *MemStore) AppendEntries(ctx context.Context, deliberationID string, entries []*store.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkAppend(deliberationID, entries); err != nil {
		return err
	}
	s.append(deliberationID, entries)
	return nil
}

// checkAppend requires entries to continue the journal without gaps.
func (s *MemStore) checkAppend(deliberationID string, entries []*store.Entry) error {
	next := int64(len(s.journal[deliberationID])) + 1
	for _, e := range entries {
		if e.Seq != next {
			return fmt.Errorf("append journal entry %s/%d: expected seq %d: %w", deliberationID, e.Seq, next, store.ErrSeqConflict)
		}
		next++
	}
	return nil
}

func (s *MemStore) append(deliberationID string, entries []*store.Entry) {
	if len(entries) == 0 {
		return
	}
	for _, e := range entries {
		cp := *e
		cp.DeliberationID = deliberationID
		s.journal[deliberationID] = append(s.journal[deliberationID], &cp)
	}
}

func (s *MemStore) LoadEntries(ctx context.Context, deliberationID string) ([]*store.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.journal[deliberationID]
	out := make([]*store.Entry, len(src))
	for i, e := range src {
		cp := *e
		out[i] = &cp
	}
	return out, nil
}

func (s *MemStore) ListDeliberations(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.journal))
	for id := range s.journal {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemStore) RecordEvent(ctx context.Context, event *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(event)
	return nil
}

func (s *MemStore) record(event *model.Event) {
	s.nextID++
	event.ID = s.nextID
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.now().UTC()
	}
	cp := *event
	s.events = append(s.events, &cp)
}

func (s *MemStore) GetEvents(ctx context.Context, deliberationID string, afterID int64) ([]*model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Event
	for _, e := range s.events {
		if e.DeliberationID == deliberationID && e.ID > afterID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

// RunInTransaction buffers writes made through tx and applies them together
// once fn succeeds. Reads inside fn see committed data only.
func (s *MemStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx := &txStore{parent: s, entries: make(map[string][]*store.Entry)}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range tx.order {
		if err := s.checkAppend(id, tx.entries[id]); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
	}
	for _, id := range tx.order {
		s.append(id, tx.entries[id])
	}
	for _, e := range tx.events {
		s.record(e)
	}
	return nil
}

func (s *MemStore) Close() error { return nil }

type txStore struct {
	parent  *MemStore
	order   []string
	entries map[string][]*store.Entry
	events  []*model.Event
}

var _ store.Store = (*txStore)(nil)

func (t *txStore) AppendEntries(ctx context.Context, deliberationID string, entries []*store.Entry) error {
	if _, seen := t.entries[deliberationID]; !seen {
		t.order = append(t.order, deliberationID)
	}
	t.entries[deliberationID] = append(t.entries[deliberationID], entries...)
	return nil
}

func (t *txStore) LoadEntries(ctx context.Context, deliberationID string) ([]*store.Entry, error) {
	return t.parent.LoadEntries(ctx, deliberationID)
}

func (t *txStore) ListDeliberations(ctx context.Context) ([]string, error) {
	return t.parent.ListDeliberations(ctx)
}

// RecordEvent defers id assignment to commit.
func (t *txStore) RecordEvent(ctx context.Context, event *model.Event) error {
	t.events = append(t.events, event)
	return nil
}

func (t *txStore) GetEvents(ctx context.Context, deliberationID string, afterID int64) ([]*model.Event, error) {
	return t.parent.GetEvents(ctx, deliberationID, afterID)
}

func (t *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(t)
}

func (t *txStore) Close() error { return nil }
