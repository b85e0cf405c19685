// Package stage provides the stage executors that drive a job through its
// phases. Executors are backend-agnostic: the simulated pacing here is a
// stand-in for a real upload transport, chunker, embedder, or LLM stream,
// any of which can substitute without touching the pipeline.
package stage

import (
	"context"
	"time"

	"github.com/prismrag/ragjobs/pkg/core"
)

// Stage names, in execution order per kind.
const (
	StageUpload      = "upload"
	StageChunk       = "chunk"
	StageEmbedStore  = "embed+store"
	StageTokenStream = "token-stream"
)

// Reporter receives fractional progress in [0,1] and an optional result
// contribution. Executors call it at most once per meaningful increment.
type Reporter func(fraction float64, delta core.Delta)

// Executor runs exactly one named stage for exactly one job. It emits
// progress only through the reporter and never touches shared job storage.
//
// Returning nil advances the job to the next stage. A returned error ends
// the stage: ctx errors produce a cancelled outcome, core.TransientError a
// retryable failure, anything else a non-retryable failure.
type Executor interface {
	Name() string
	Run(ctx context.Context, snap core.Snapshot, report Reporter) error
}

// FaultInjector lets tests and demos inject a failure at the start of a
// stage. Return nil to proceed normally.
type FaultInjector func(stage string, snap core.Snapshot) error

// Responder produces the response text for a generation job. Swapping it
// for a real model client changes nothing else.
type Responder func(prompt string) string

// Config tunes the simulated executors.
type Config struct {
	// ChunkSizeBytes divides file size into chunks: ceil(size/chunkSize).
	ChunkSizeBytes int

	// StepInterval paces simulated work. Tests set it to ~0.
	StepInterval time.Duration

	// UploadSteps is the number of progress increments for the upload stage.
	UploadSteps int

	// MaxChunkSteps bounds progress updates in the chunk and embed stages
	// so large files do not produce update storms.
	MaxChunkSteps int

	Responder Responder
	Fault     FaultInjector
}

// DefaultConfig returns the simulation defaults.
func DefaultConfig() Config {
	return Config{
		ChunkSizeBytes: 1000,
		StepInterval:   50 * time.Millisecond,
		UploadSteps:    10,
		MaxChunkSteps:  20,
		Responder:      DefaultResponder,
	}
}

// withDefaults fills zero fields so a partially-populated Config works.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ChunkSizeBytes <= 0 {
		c.ChunkSizeBytes = d.ChunkSizeBytes
	}
	if c.UploadSteps <= 0 {
		c.UploadSteps = d.UploadSteps
	}
	if c.MaxChunkSteps <= 0 {
		c.MaxChunkSteps = d.MaxChunkSteps
	}
	if c.Responder == nil {
		c.Responder = d.Responder
	}
	return c
}

// ForKind returns the ordered stage list for a job kind.
func ForKind(kind core.JobKind, cfg Config) []Executor {
	cfg = cfg.withDefaults()
	switch kind {
	case core.KindIngestion:
		return []Executor{
			&uploadExecutor{cfg: cfg},
			&chunkExecutor{cfg: cfg},
			&embedExecutor{cfg: cfg},
		}
	case core.KindGeneration:
		return []Executor{
			&tokenStreamExecutor{cfg: cfg},
		}
	}
	return nil
}

// ChunkCount returns the estimated chunk count for a file size.
func ChunkCount(sizeBytes int64, chunkSizeBytes int) int {
	if sizeBytes <= 0 || chunkSizeBytes <= 0 {
		return 0
	}
	return int((sizeBytes + int64(chunkSizeBytes) - 1) / int64(chunkSizeBytes))
}

// pace sleeps for one step interval, honoring cancellation. A zero interval
// still checks ctx so cancellation is observed at every checkpoint.
func pace(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return nil
		}
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
