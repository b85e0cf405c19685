package registry

import (
	"log/slog"

	"github.com/prismrag/ragjobs/pkg/stage"
)

type config struct {
	stages       stage.Config
	retention    int
	stageRetries int
	onEvict      EvictHook
	logger       *slog.Logger
}

func defaultConfig() config {
	return config{
		stages:       stage.DefaultConfig(),
		retention:    100,
		stageRetries: 1,
		logger:       slog.Default(),
	}
}

// Option configures a Registry.
type Option interface {
	apply(*config)
}

type optionFunc func(*config)

func (f optionFunc) apply(c *config) { f(c) }

// WithStageConfig sets the stage executor configuration (chunk size, step
// interval, responder, fault injection).
func WithStageConfig(sc stage.Config) Option {
	return optionFunc(func(c *config) {
		c.stages = sc
	})
}

// WithRetentionLimit sets how many terminal jobs are retained before the
// oldest are evicted. Clamped to [1, MaxRetentionLimit].
func WithRetentionLimit(n int) Option {
	return optionFunc(func(c *config) {
		c.retention = n
	})
}

// WithStageRetries sets the automatic per-stage retry bound for transient
// failures.
func WithStageRetries(n int) Option {
	return optionFunc(func(c *config) {
		c.stageRetries = n
	})
}

// WithEvictHook registers a callback invoked with each evicted terminal
// job's snapshot, typically to archive it.
func WithEvictHook(h EvictHook) Option {
	return optionFunc(func(c *config) {
		c.onEvict = h
	})
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *config) {
		if l != nil {
			c.logger = l
		}
	})
}
