// Package engine coordinates deliberations: it serializes mutations per
// deliberation, journals them, keeps labelings current and announces what
// changed.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/alfredjeanlab/agora/internal/dialogue"
	"github.com/alfredjeanlab/agora/internal/events"
	"github.com/alfredjeanlab/agora/internal/model"
	"github.com/alfredjeanlab/agora/internal/recompute"
	"github.com/alfredjeanlab/agora/internal/scheme"
	"github.com/alfredjeanlab/agora/internal/store"
)

// Options configures an Engine. Zero values select defaults.
type Options struct {
	Catalog        *scheme.Catalog
	Publisher      events.Publisher
	Logger         *slog.Logger
	RecomputeRetry time.Duration
	LabelHistory   int
	PreferredTTL   time.Duration
	// Compute replaces the grounded labeling function of the coordinator.
	Compute recompute.ComputeFunc
	Clock   func() time.Time
}

// Engine is the entry point for every deliberation operation. It is safe for
// concurrent use; different deliberations never contend.
type Engine struct {
	catalog   *scheme.Catalog
	machine   *dialogue.Machine
	store     store.Store
	publisher events.Publisher
	logger    *slog.Logger
	coord     *recompute.Coordinator
	preferred *gocache.Cache
	now       func() time.Time

	mu     sync.RWMutex
	delibs map[string]*deliberation
}

// deliberation holds the live state of one deliberation. Published states
// are never modified; writers clone, mutate and swap under mu.
type deliberation struct {
	id    string
	mu    sync.Mutex
	seq   int64
	state atomic.Pointer[dialogue.State]
}

// New returns an engine journaling to s.
func New(s store.Store, opts Options) *Engine {
	if opts.Catalog == nil {
		opts.Catalog = scheme.NewBuiltinCatalog()
	}
	if opts.Publisher == nil {
		opts.Publisher = events.Discard
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.PreferredTTL <= 0 {
		opts.PreferredTTL = 10 * time.Minute
	}
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC() }
	}

	e := &Engine{
		catalog:   opts.Catalog,
		machine:   dialogue.NewMachine(opts.Catalog).WithClock(opts.Clock),
		store:     s,
		publisher: opts.Publisher,
		logger:    opts.Logger,
		preferred: gocache.New(opts.PreferredTTL, 2*opts.PreferredTTL),
		now:       opts.Clock,
		delibs:    make(map[string]*deliberation),
	}
	e.coord = recompute.New(opts.Compute, recompute.Options{
		History:       opts.LabelHistory,
		RetryInterval: opts.RecomputeRetry,
		OnComplete:    e.labelsUpdated,
		Logger:        opts.Logger,
	})
	return e
}

// Close stops background recomputation. The store is owned by the caller.
func (e *Engine) Close() {
	e.coord.Close()
}

// Catalog returns the scheme catalog arguments are instantiated from.
func (e *Engine) Catalog() *scheme.Catalog { return e.catalog }

func checkDeliberationID(id string) error {
	if strings.TrimSpace(id) == "" {
		return &model.ValidationError{Errors: []model.FieldError{{Field: "deliberation_id", Message: "is required"}}}
	}
	return nil
}

// lookup returns the deliberation with id, creating it when create is set.
func (e *Engine) lookup(id string, create bool) (*deliberation, error) {
	if err := checkDeliberationID(id); err != nil {
		return nil, err
	}
	e.mu.RLock()
	d, ok := e.delibs[id]
	e.mu.RUnlock()
	if ok {
		return d, nil
	}
	if !create {
		return nil, &model.NotFoundError{Kind: "deliberation", ID: id}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if d, ok := e.delibs[id]; ok {
		return d, nil
	}
	d = &deliberation{id: id}
	d.state.Store(dialogue.NewState(id))
	e.delibs[id] = d
	return d, nil
}

// state returns the current published state of a deliberation.
func (e *Engine) state(id string) (*dialogue.State, error) {
	d, err := e.lookup(id, false)
	if err != nil {
		return nil, err
	}
	return d.state.Load(), nil
}

// pendingEvent is an event recorded with the mutation that caused it and
// published once the mutation is visible.
type pendingEvent struct {
	topic string
	actor string
	event any
}

type operation func(st *dialogue.State) (*dialogue.Outcome, []pendingEvent, error)

// mutate runs op on a clone of the deliberation's state, journals the
// resulting deltas together with op's events and, only then, publishes the
// clone. A failing op or store leaves the live state untouched.
func (e *Engine) mutate(ctx context.Context, id string, op operation) (*dialogue.Outcome, *dialogue.State, error) {
	d, err := e.lookup(id, true)
	if err != nil {
		return nil, nil, err
	}

	d.mu.Lock()
	clone := d.state.Load().Clone()
	out, evs, err := op(clone)
	if err != nil {
		d.mu.Unlock()
		return nil, nil, err
	}
	if len(out.Deltas) == 0 {
		d.mu.Unlock()
		return out, d.state.Load(), nil
	}

	entries, err := e.encode(d.seq, out.Deltas)
	if err != nil {
		d.mu.Unlock()
		return nil, nil, err
	}
	records := make([]*model.Event, 0, len(evs))
	for _, ev := range evs {
		payload, err := json.Marshal(ev.event)
		if err != nil {
			d.mu.Unlock()
			return nil, nil, fmt.Errorf("marshal %s event: %w", ev.topic, err)
		}
		records = append(records, &model.Event{Topic: ev.topic, DeliberationID: id, Actor: ev.actor, Payload: payload})
	}
	err = e.store.RunInTransaction(ctx, func(tx store.Store) error {
		if err := tx.AppendEntries(ctx, id, entries); err != nil {
			return err
		}
		for _, r := range records {
			if err := tx.RecordEvent(ctx, r); err != nil {
				return fmt.Errorf("record %s event: %w", r.Topic, err)
			}
		}
		return nil
	})
	if err != nil {
		d.mu.Unlock()
		return nil, nil, fmt.Errorf("persist deliberation %s: %w", id, err)
	}
	d.seq += int64(len(entries))
	d.state.Store(clone)
	d.mu.Unlock()

	if out.GraphChanged {
		e.coord.OnGraphMutated(clone.Graph().Snapshot())
	}
	for _, ev := range evs {
		e.publish(ctx, id, ev.topic, ev.event)
	}
	return out, clone, nil
}

// encode turns deltas into journal entries continuing after seq.
func (e *Engine) encode(seq int64, deltas []dialogue.Delta) ([]*store.Entry, error) {
	now := e.now()
	entries := make([]*store.Entry, len(deltas))
	for i, d := range deltas {
		data, err := json.Marshal(d)
		if err != nil {
			return nil, fmt.Errorf("encode %s delta: %w", d.Kind, err)
		}
		entries[i] = &store.Entry{Seq: seq + int64(i) + 1, Kind: string(d.Kind), Data: data, CreatedAt: now}
	}
	return entries, nil
}

// publish emits an event. Failures are logged and never reach the caller.
func (e *Engine) publish(ctx context.Context, deliberationID, topic string, event any) {
	if err := e.publisher.Publish(ctx, topic, event); err != nil {
		e.logger.Warn("failed to publish event", "topic", topic, "deliberation_id", deliberationID, "err", err)
	}
}

// labelsUpdated runs on the coordinator's worker after a labeling is stored.
func (e *Engine) labelsUpdated(lab *model.Labeling) {
	ev := events.LabelsUpdated{
		DeliberationID: lab.DeliberationID,
		Semantics:      lab.Semantics,
		Version:        lab.Version,
		Labels:         lab.Labels,
	}
	ctx := context.Background()
	payload, err := json.Marshal(ev)
	if err == nil {
		err = e.store.RecordEvent(ctx, &model.Event{Topic: events.TopicLabelsUpdated, DeliberationID: lab.DeliberationID, Payload: payload})
	}
	if err != nil {
		e.logger.Warn("failed to record event", "topic", events.TopicLabelsUpdated, "deliberation_id", lab.DeliberationID, "err", err)
	}
	e.publish(ctx, lab.DeliberationID, events.TopicLabelsUpdated, ev)
}

// ListDeliberations returns the ids of every deliberation with at least one
// journaled change, sorted.
func (e *Engine) ListDeliberations(ctx context.Context) ([]string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]string, 0, len(e.delibs))
	for id, d := range e.delibs {
		if st := d.state.Load(); st.Version() == 0 && len(st.Moves()) == 0 {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Restore rebuilds every journaled deliberation. It is meant to run once at
// startup, before the engine serves requests.
func (e *Engine) Restore(ctx context.Context) (int, error) {
	ids, err := e.store.ListDeliberations(ctx)
	if err != nil {
		return 0, fmt.Errorf("list deliberations: %w", err)
	}
	for _, id := range ids {
		entries, err := e.store.LoadEntries(ctx, id)
		if err != nil {
			return 0, fmt.Errorf("load journal %s: %w", id, err)
		}
		deltas := make([]dialogue.Delta, len(entries))
		for i, en := range entries {
			if err := json.Unmarshal(en.Data, &deltas[i]); err != nil {
				return 0, fmt.Errorf("decode journal %s/%d: %w", id, en.Seq, err)
			}
		}
		st, err := dialogue.Replay(id, deltas)
		if err != nil {
			return 0, err
		}

		d, err := e.lookup(id, true)
		if err != nil {
			return 0, err
		}
		d.mu.Lock()
		d.seq = int64(len(entries))
		d.state.Store(st)
		d.mu.Unlock()

		e.coord.OnGraphMutated(st.Graph().Snapshot())
		e.publish(ctx, id, events.TopicDeliberationRestored, events.DeliberationRestored{
			DeliberationID: id,
			Entries:        len(entries),
			GraphVersion:   st.Version(),
		})
		e.logger.Info("deliberation restored", "deliberation_id", id, "entries", len(entries), "version", st.Version())
	}
	return len(ids), nil
}

// IsNotFound reports whether err means an unknown deliberation, question or
// other record.
func IsNotFound(err error) bool {
	return errors.Is(err, model.ErrNotFound)
}
