package pipeline

import (
	"log/slog"

	"github.com/prismrag/ragjobs/pkg/security"
)

// Option configures a Pipeline.
type Option interface {
	apply(*Pipeline)
}

type optionFunc func(*Pipeline)

func (f optionFunc) apply(p *Pipeline) { f(p) }

// WithStageRetries sets how many automatic retries a stage gets after a
// transient failure before the job fails. Clamped to [0, MaxStageRetries].
func WithStageRetries(n int) Option {
	return optionFunc(func(p *Pipeline) {
		p.stageRetries = security.ClampStageRetries(n)
	})
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	})
}
