package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/alfredjeanlab/agora/internal/model"
)

// Entry is one journaled state change of a deliberation. Replaying a
// deliberation's entries in Seq order rebuilds its state.
type Entry struct {
	DeliberationID string          `json:"deliberation_id"`
	Seq            int64           `json:"seq"`
	Kind           string          `json:"kind"`
	Data           json.RawMessage `json:"data"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ErrSeqConflict is returned by AppendEntries when an entry's Seq is already
// taken or would leave a gap, which means another writer got there first.
var ErrSeqConflict = errors.New("journal sequence conflict")

// Store defines the persistence interface for deliberation journals.
type Store interface {
	// Journal. Entries carry their Seq; a (deliberation, seq) pair is
	// written at most once.
	AppendEntries(ctx context.Context, deliberationID string, entries []*Entry) error
	LoadEntries(ctx context.Context, deliberationID string) ([]*Entry, error)
	ListDeliberations(ctx context.Context) ([]string, error)

	// Events
	RecordEvent(ctx context.Context, event *model.Event) error
	GetEvents(ctx context.Context, deliberationID string, afterID int64) ([]*model.Event, error)

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Close() error
}
