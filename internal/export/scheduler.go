package export

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/agora/internal/events"
)

// Source yields the deliberations to export.
type Source interface {
	ListDeliberations(ctx context.Context) ([]string, error)
	Export(ctx context.Context, deliberationID string) (*Artifact, error)
}

// Batch is one JSONL export of every deliberation.
type Batch struct {
	Data          []byte
	Deliberations int
	GeneratedAt   time.Time
}

// Destination is the interface for an export target (S3, git, etc.).
type Destination interface {
	// Name identifies the destination in logs and events.
	Name() string
	Write(ctx context.Context, b *Batch) error
}

// Scheduler runs periodic exports to one or more destinations.
type Scheduler struct {
	source       Source
	destinations []Destination
	interval     time.Duration
	publisher    events.Publisher
	logger       *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler that exports every deliberation of source
// to the given destinations at the specified interval. publisher may be nil.
func NewScheduler(source Source, destinations []Destination, interval time.Duration, publisher events.Publisher, logger *slog.Logger) *Scheduler {
	if publisher == nil {
		publisher = events.Discard
	}
	return &Scheduler{
		source:       source,
		destinations: destinations,
		interval:     interval,
		publisher:    publisher,
		logger:       logger,
	}
}

// Start begins periodic export. It runs an initial export immediately, then
// on each tick.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the scheduler and waits for the current export (if any) to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	s.exportOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.exportOnce(ctx)
		}
	}
}

// Collect exports every deliberation of source as one JSONL batch.
func Collect(ctx context.Context, source Source, now time.Time) (*Batch, error) {
	ids, err := source.ListDeliberations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list deliberations: %w", err)
	}
	artifacts := make([]*Artifact, 0, len(ids))
	for _, id := range ids {
		a, err := source.Export(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("export %s: %w", id, err)
		}
		artifacts = append(artifacts, a)
	}
	var buf bytes.Buffer
	if err := WriteJSONL(&buf, artifacts, now); err != nil {
		return nil, err
	}
	return &Batch{Data: buf.Bytes(), Deliberations: len(artifacts), GeneratedAt: now}, nil
}

func (s *Scheduler) exportOnce(ctx context.Context) {
	batch, err := Collect(ctx, s.source, time.Now().UTC())
	if err != nil {
		s.logger.Error("export failed", "err", err)
		return
	}

	for _, dest := range s.destinations {
		if err := dest.Write(ctx, batch); err != nil {
			s.logger.Error("export destination write failed", "destination", dest.Name(), "err", err)
			continue
		}
		if err := s.publisher.Publish(ctx, events.TopicExportWritten, events.ExportWritten{
			Destination:   dest.Name(),
			Deliberations: batch.Deliberations,
			Bytes:         len(batch.Data),
		}); err != nil {
			s.logger.Warn("failed to publish event", "topic", events.TopicExportWritten, "err", err)
		}
	}

	s.logger.Info("export completed", "destinations", len(s.destinations), "deliberations", batch.Deliberations, "bytes", len(batch.Data))
}
