// Package recompute keeps grounded labelings current as deliberation graphs
// change. Each deliberation has one worker that computes at most one job at a
// time; a newer graph version cancels the job in flight and replaces any job
// still waiting.
package recompute

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/alfredjeanlab/agora/internal/graph"
	"github.com/alfredjeanlab/agora/internal/model"
	"github.com/alfredjeanlab/agora/internal/semantics"
)

// ComputeFunc labels one snapshot. It must honour ctx cancellation.
type ComputeFunc func(ctx context.Context, snap *graph.Snapshot) (*model.Labeling, error)

// Grounded is the default ComputeFunc.
func Grounded(ctx context.Context, snap *graph.Snapshot) (*model.Labeling, error) {
	res, err := semantics.Grounded(ctx, semantics.Build(snap))
	if err != nil {
		return nil, err
	}
	lab := res.Labeling(snap.DeliberationID)
	lab.ComputedAt = time.Now().UTC()
	return lab, nil
}

// Options tunes a Coordinator. Zero values select defaults.
type Options struct {
	// History is how many labelings per deliberation stay readable by version.
	History int
	// RetryInterval paces retries after a failed computation.
	RetryInterval time.Duration
	// OnComplete is called, outside any lock, after a labeling is stored.
	OnComplete func(*model.Labeling)
	Logger     *slog.Logger
}

// Coordinator schedules label computations per deliberation.
type Coordinator struct {
	compute ComputeFunc
	opts    Options
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	lanes map[string]*lane
}

type lane struct {
	id      string
	limit   int
	wake    chan struct{}
	limiter *rate.Limiter

	mu            sync.Mutex
	pending       *graph.Snapshot
	running       uint64
	runningCancel context.CancelFunc
	latest        *model.Labeling
	history       map[uint64]*model.Labeling
	order         []uint64
	failures      int
	notify        chan struct{}
}

// New returns a running coordinator. Call Close to stop its workers.
func New(compute ComputeFunc, opts Options) *Coordinator {
	if compute == nil {
		compute = Grounded
	}
	if opts.History <= 0 {
		opts.History = 32
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 2 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		compute: compute,
		opts:    opts,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		lanes:   make(map[string]*lane),
	}
}

// Close cancels in-flight work and waits for every worker to exit.
func (c *Coordinator) Close() {
	c.cancel()
	c.wg.Wait()
}

func (c *Coordinator) lane(id string, create bool) *lane {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.lanes[id]
	if ok || !create {
		return l
	}
	l = &lane{
		id:      id,
		limit:   c.opts.History,
		wake:    make(chan struct{}, 1),
		limiter: rate.NewLimiter(rate.Every(c.opts.RetryInterval), 1),
		history: make(map[uint64]*model.Labeling),
		notify:  make(chan struct{}),
	}
	c.lanes[id] = l
	if c.ctx.Err() == nil {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.run(l)
		}()
	}
	return l
}

// OnGraphMutated schedules a computation for snap. Snapshots no newer than
// what is already scheduled or computed are ignored.
func (c *Coordinator) OnGraphMutated(snap *graph.Snapshot) {
	l := c.lane(snap.DeliberationID, true)

	l.mu.Lock()
	if (l.latest != nil && snap.Version <= l.latest.Version) || (l.pending != nil && snap.Version <= l.pending.Version) {
		l.mu.Unlock()
		return
	}
	l.pending = snap
	if l.runningCancel != nil && l.running < snap.Version {
		l.runningCancel()
	}
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (c *Coordinator) run(l *lane) {
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-l.wake:
		}
		for c.step(l) {
		}
	}
}

// step runs the pending job, if any, and reports whether to look for more.
func (c *Coordinator) step(l *lane) bool {
	l.mu.Lock()
	snap := l.pending
	l.pending = nil
	if snap == nil {
		l.mu.Unlock()
		return false
	}
	jobCtx, cancel := context.WithCancel(c.ctx)
	l.running, l.runningCancel = snap.Version, cancel
	l.mu.Unlock()

	lab, err := c.compute(jobCtx, snap)
	superseded := jobCtx.Err() != nil
	cancel()

	l.mu.Lock()
	l.runningCancel = nil
	if c.ctx.Err() != nil {
		l.mu.Unlock()
		return false
	}
	switch {
	case err == nil:
		l.failures = 0
		stored := l.store(lab)
		l.mu.Unlock()
		if stored && c.opts.OnComplete != nil {
			c.opts.OnComplete(lab)
		}
		return true
	case superseded && errors.Is(err, context.Canceled):
		l.mu.Unlock()
		c.logger.Debug("label computation superseded", "deliberation_id", l.id, "version", snap.Version)
		return true
	default:
		l.failures++
		if l.pending == nil {
			l.pending = snap
		}
		retry := l.pending.Version
		failures := l.failures
		l.mu.Unlock()
		c.logger.Warn("label computation failed",
			"deliberation_id", l.id, "version", snap.Version, "retry_version", retry, "failures", failures, "err", err)
		if err := l.limiter.Wait(c.ctx); err != nil {
			return false
		}
		return true
	}
}

// store records lab under its version; versions are write-once. It reports
// whether lab became the latest labeling. Callers hold l.mu.
func (l *lane) store(lab *model.Labeling) bool {
	if _, exists := l.history[lab.Version]; !exists {
		l.history[lab.Version] = lab
		l.order = append(l.order, lab.Version)
		for len(l.order) > l.limit {
			delete(l.history, l.order[0])
			l.order = l.order[1:]
		}
	}
	if l.latest != nil && lab.Version <= l.latest.Version {
		return false
	}
	l.latest = lab
	close(l.notify)
	l.notify = make(chan struct{})
	return true
}

// Latest returns the most recent completed labeling, which may lag the graph.
func (c *Coordinator) Latest(deliberationID string) (*model.Labeling, bool) {
	l := c.lane(deliberationID, false)
	if l == nil {
		return nil, false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.latest, l.latest != nil
}

// At returns the labeling computed for exactly version, if still retained.
func (c *Coordinator) At(deliberationID string, version uint64) (*model.Labeling, bool) {
	l := c.lane(deliberationID, false)
	if l == nil {
		return nil, false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	lab, ok := l.history[version]
	return lab, ok
}

// WaitFor blocks until a labeling of at least version is available.
func (c *Coordinator) WaitFor(ctx context.Context, deliberationID string, version uint64) (*model.Labeling, error) {
	l := c.lane(deliberationID, true)
	for {
		l.mu.Lock()
		if l.latest != nil && l.latest.Version >= version {
			lab := l.latest
			l.mu.Unlock()
			return lab, nil
		}
		ch := l.notify
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.ctx.Done():
			return nil, errors.New("recompute: coordinator closed")
		case <-ch:
		}
	}
}

// Failures reports consecutive failed computations for a deliberation.
func (c *Coordinator) Failures(deliberationID string) int {
	l := c.lane(deliberationID, false)
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.failures
}
