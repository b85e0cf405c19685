// Package registry owns the set of in-flight and completed jobs and fans
// out their state changes to subscribers.
package registry

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/prismrag/ragjobs/pkg/core"
	"github.com/prismrag/ragjobs/pkg/pipeline"
	"github.com/prismrag/ragjobs/pkg/security"
)

// EvictHook is called with the snapshot of each terminal job removed by
// retention eviction, outside the registry lock.
type EvictHook func(core.Snapshot)

type entry struct {
	snap   core.Snapshot
	cancel context.CancelFunc
	subs   []*Subscription
}

// Registry is a concurrency-safe store of all jobs plus a publish/subscribe
// mechanism for their state changes. Each submitted job runs on its own
// pipeline goroutine; the registry lock is only ever held for the snapshot
// swap, never across a stage execution.
type Registry struct {
	mu       sync.RWMutex
	jobs     map[string]*entry
	order    []string // submission order, oldest first
	watchers []*Subscription

	pipeline  *pipeline.Pipeline
	retention int
	onEvict   EvictHook
	logger    *slog.Logger

	wg     sync.WaitGroup
	closed bool
}

// New creates a Registry. Jobs submitted to it run immediately.
func New(opts ...Option) *Registry {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt.apply(&cfg)
	}

	return &Registry{
		jobs:      make(map[string]*entry),
		pipeline:  pipeline.New(cfg.stages, pipeline.WithStageRetries(cfg.stageRetries), pipeline.WithLogger(cfg.logger)),
		retention: security.ClampRetentionLimit(cfg.retention),
		onEvict:   cfg.onEvict,
		logger:    cfg.logger,
	}
}

// Submit validates the payload, creates the job record, and starts the
// pipeline asynchronously. It never blocks on pipeline completion.
//
// A payload that fails validation still yields a job: it is created
// directly in failed status with a non-retryable error and is visible like
// any other terminal job.
func (r *Registry) Submit(ctx context.Context, payload core.Payload) (string, error) {
	if payload == nil {
		return "", core.InvalidInput(core.ErrNilPayload)
	}

	job := &core.Job{
		ID:     uuid.New().String(),
		Kind:   payload.Kind(),
		Status: core.StatusQueued,
	}
	switch p := payload.(type) {
	case core.FilePayload:
		job.File = &p
	case core.PromptPayload:
		job.Prompt = &p
	default:
		return "", core.InvalidInput(core.ErrNilPayload)
	}
	job.Touch()
	job.CreatedAt = job.UpdatedAt

	verr := security.ValidatePayload(payload)
	if verr != nil {
		job.Status = core.StatusFailed
		job.Failure = &core.Failure{
			Message:   security.SanitizeErrorMessage(verr.Error()),
			Retryable: false,
		}
		job.Touch()
	}

	var jobCtx context.Context
	var cancel context.CancelFunc
	if verr == nil {
		jobCtx, cancel = context.WithCancel(context.WithoutCancel(ctx))
	}

	// Admission is a single critical section with the wg.Add, so Close
	// either rejects this submission or waits for its pipeline goroutine.
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		return "", core.ErrRegistryClosed
	}
	r.jobs[job.ID] = &entry{snap: job.Snapshot(), cancel: cancel}
	r.order = append(r.order, job.ID)
	if verr == nil {
		r.wg.Add(1)
	}
	r.mu.Unlock()

	r.publish(job.ID, job.Snapshot())

	if verr != nil {
		r.logger.Info("job rejected at submission",
			"job_id", job.ID, "kind", job.Kind, "error", verr)
		return job.ID, nil
	}

	go func() {
		defer r.wg.Done()
		r.pipeline.Run(jobCtx, job, func(snap core.Snapshot) {
			r.publish(job.ID, snap)
		})
	}()

	return job.ID, nil
}

// publish swaps the stored snapshot and fans it out. Per-job delivery order
// matches publish order because the single pipeline goroutine for a job is
// the only caller for that job.
func (r *Registry) publish(jobID string, snap core.Snapshot) {
	terminal := snap.Terminal()

	r.mu.Lock()
	e, ok := r.jobs[jobID]
	if !ok {
		r.mu.Unlock()
		return
	}
	e.snap = snap
	subs := make([]*Subscription, len(e.subs))
	copy(subs, e.subs)
	watchers := make([]*Subscription, len(r.watchers))
	copy(watchers, r.watchers)
	if terminal {
		e.cancel = nil
		e.subs = nil
	}
	r.mu.Unlock()

	for _, s := range subs {
		s.push(snap, terminal)
	}
	for _, w := range watchers {
		w.push(snap, false)
	}

	if terminal {
		r.EvictTerminal()
	}
}

// Get returns the current snapshot of a job, or core.ErrNotFound.
func (r *Registry) Get(jobID string) (core.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.jobs[jobID]
	if !ok {
		return core.Snapshot{}, core.ErrNotFound
	}
	return e.snap, nil
}

// Filter selects jobs for List. Zero values match everything.
type Filter struct {
	Status core.JobStatus
	Kind   core.JobKind
}

func (f Filter) match(s core.Snapshot) bool {
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	if f.Kind != "" && s.Kind != f.Kind {
		return false
	}
	return true
}

// List returns snapshots matching the filter, most recently created first.
func (r *Registry) List(f Filter) []core.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]core.Snapshot, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		e, ok := r.jobs[r.order[i]]
		if !ok {
			continue
		}
		if f.match(e.snap) {
			out = append(out, e.snap)
		}
	}
	return out
}

// Subscribe returns a stream of snapshots for one job, starting with its
// current state and ending after the terminal snapshot. Returns
// core.ErrNotFound for unknown ids.
func (r *Registry) Subscribe(jobID string) (*Subscription, error) {
	r.mu.Lock()
	e, ok := r.jobs[jobID]
	if !ok {
		r.mu.Unlock()
		return nil, core.ErrNotFound
	}
	sub := newSubscription()
	snap := e.snap
	if !snap.Terminal() {
		e.subs = append(e.subs, sub)
	}
	// Push while still holding the lock: publish copies the subscriber list
	// under the same lock, so any newer snapshot is queued after this one.
	// push never blocks, it only appends to the subscription's queue.
	sub.push(snap, snap.Terminal())
	r.mu.Unlock()

	return sub, nil
}

// Watch returns a stream of snapshots for every job mutation in the
// registry, across all jobs, until Close is called on the subscription.
// No ordering is guaranteed between different jobs.
func (r *Registry) Watch() *Subscription {
	sub := newSubscription()
	r.mu.Lock()
	r.watchers = append(r.watchers, sub)
	r.mu.Unlock()
	return sub
}

// Unwatch removes a subscription created by Watch.
func (r *Registry) Unwatch(sub *Subscription) {
	r.mu.Lock()
	for i, w := range r.watchers {
		if w == sub {
			r.watchers = append(r.watchers[:i], r.watchers[i+1:]...)
			break
		}
	}
	r.mu.Unlock()
	sub.Close()
}

// Cancel requests cooperative cancellation of a job. Cancelling a job that
// already reached a terminal state is a no-op, not an error. Unknown ids
// return core.ErrNotFound.
func (r *Registry) Cancel(jobID string) error {
	r.mu.Lock()
	e, ok := r.jobs[jobID]
	if !ok {
		r.mu.Unlock()
		return core.ErrNotFound
	}
	cancel := e.cancel
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return nil
}

// EvictTerminal applies the retention policy: when terminal jobs exceed the
// cap, the oldest by UpdatedAt are removed first. In-flight jobs are never
// evicted. Returns the number of jobs removed.
func (r *Registry) EvictTerminal() int {
	r.mu.Lock()
	var terminal []core.Snapshot
	for _, id := range r.order {
		if e, ok := r.jobs[id]; ok && e.snap.Terminal() {
			terminal = append(terminal, e.snap)
		}
	}
	excess := len(terminal) - r.retention
	if excess <= 0 {
		r.mu.Unlock()
		return 0
	}
	sort.Slice(terminal, func(i, j int) bool {
		return terminal[i].UpdatedAt.Before(terminal[j].UpdatedAt)
	})
	evicted := terminal[:excess]
	for _, s := range evicted {
		delete(r.jobs, s.ID)
	}
	kept := r.order[:0]
	for _, id := range r.order {
		if _, ok := r.jobs[id]; ok {
			kept = append(kept, id)
		}
	}
	r.order = kept
	hook := r.onEvict
	r.mu.Unlock()

	if hook != nil {
		for _, s := range evicted {
			hook(s)
		}
	}
	r.logger.Debug("evicted terminal jobs", "count", len(evicted))
	return len(evicted)
}

// Close cancels all in-flight jobs, waits for their pipelines to finish,
// and closes all registry-wide subscriptions.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	cancels := make([]context.CancelFunc, 0, len(r.jobs))
	for _, e := range r.jobs {
		if e.cancel != nil {
			cancels = append(cancels, e.cancel)
		}
	}
	watchers := r.watchers
	r.watchers = nil
	r.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	r.wg.Wait()
	for _, w := range watchers {
		w.Close()
	}
}
