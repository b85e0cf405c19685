package sweep

import (
	"context"
	"log/slog"
	"time"

	"github.com/prismrag/ragjobs/pkg/archive"
	"github.com/prismrag/ragjobs/pkg/registry"
)

// Sweeper periodically applies the registry's retention policy and prunes
// old rows from the archive. Run it in its own goroutine; it stops when
// the context is cancelled.
type Sweeper struct {
	registry   *registry.Registry
	archive    *archive.Store
	schedule   Schedule
	pruneAfter time.Duration
	logger     *slog.Logger
}

// New creates a Sweeper for the given registry.
func New(reg *registry.Registry, opts ...Option) *Sweeper {
	s := &Sweeper{
		registry:   reg,
		schedule:   Every(time.Minute),
		pruneAfter: 30 * 24 * time.Hour,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt.apply(s)
	}
	return s
}

// Run blocks until ctx is cancelled, sweeping on the configured schedule.
func (s *Sweeper) Run(ctx context.Context) error {
	for {
		next := s.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	evicted := s.registry.EvictTerminal()
	if evicted > 0 {
		s.logger.Info("retention sweep", "evicted", evicted)
	}

	if s.archive == nil || s.pruneAfter <= 0 {
		return
	}
	pruned, err := s.archive.Prune(ctx, s.pruneAfter)
	if err != nil {
		s.logger.Error("archive prune failed", "error", err)
		return
	}
	if pruned > 0 {
		s.logger.Info("archive prune", "rows", pruned)
	}
}

// Option configures a Sweeper.
type Option interface {
	apply(*Sweeper)
}

type optionFunc func(*Sweeper)

func (f optionFunc) apply(s *Sweeper) { f(s) }

// WithSchedule sets when sweeps run.
func WithSchedule(sched Schedule) Option {
	return optionFunc(func(s *Sweeper) {
		if sched != nil {
			s.schedule = sched
		}
	})
}

// WithArchive enables pruning of the given archive store.
func WithArchive(store *archive.Store) Option {
	return optionFunc(func(s *Sweeper) {
		s.archive = store
	})
}

// WithPruneAfter sets the archive retention window. Zero disables pruning.
func WithPruneAfter(d time.Duration) Option {
	return optionFunc(func(s *Sweeper) {
		s.pruneAfter = d
	})
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(s *Sweeper) {
		if l != nil {
			s.logger = l
		}
	})
}
