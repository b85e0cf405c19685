package stage

import (
	"context"

	"github.com/prismrag/ragjobs/pkg/core"
)

// uploadExecutor simulates transferring the file's bytes. Progress is
// bytesSent / sizeBytes, stepped in fixed increments.
type uploadExecutor struct {
	cfg Config
}

func (e *uploadExecutor) Name() string { return StageUpload }

func (e *uploadExecutor) Run(ctx context.Context, snap core.Snapshot, report Reporter) error {
	if err := inject(e.cfg.Fault, StageUpload, snap); err != nil {
		return err
	}

	steps := e.cfg.UploadSteps
	for i := 1; i <= steps; i++ {
		if err := pace(ctx, e.cfg.StepInterval); err != nil {
			return err
		}
		report(float64(i)/float64(steps), core.Delta{})
	}
	return nil
}

// chunkExecutor simulates splitting the file into chunks of
// ChunkSizeBytes. Progress is driven by the estimated chunk count and the
// running count is reported as a result delta.
type chunkExecutor struct {
	cfg Config
}

func (e *chunkExecutor) Name() string { return StageChunk }

func (e *chunkExecutor) Run(ctx context.Context, snap core.Snapshot, report Reporter) error {
	if err := inject(e.cfg.Fault, StageChunk, snap); err != nil {
		return err
	}
	if snap.File == nil {
		return core.InvalidInput(core.ErrNilPayload)
	}

	total := ChunkCount(snap.File.SizeBytes, e.cfg.ChunkSizeBytes)
	if total == 0 {
		// Empty file: nothing to chunk, the stage still completes.
		report(1.0, core.Delta{})
		return nil
	}

	steps := total
	if steps > e.cfg.MaxChunkSteps {
		steps = e.cfg.MaxChunkSteps
	}
	for i := 1; i <= steps; i++ {
		if err := pace(ctx, e.cfg.StepInterval); err != nil {
			return err
		}
		frac := float64(i) / float64(steps)
		chunks := int(frac * float64(total))
		if i == steps {
			frac, chunks = 1.0, total
		}
		report(frac, core.Delta{Chunks: chunks, TotalChunks: total})
	}
	return nil
}

// embedExecutor simulates embedding and storing each chunk. Progress is
// chunks processed / total chunks, using the count accumulated by the
// chunk stage.
type embedExecutor struct {
	cfg Config
}

func (e *embedExecutor) Name() string { return StageEmbedStore }

func (e *embedExecutor) Run(ctx context.Context, snap core.Snapshot, report Reporter) error {
	if err := inject(e.cfg.Fault, StageEmbedStore, snap); err != nil {
		return err
	}

	total := snap.Result.TotalChunks
	if total == 0 {
		report(1.0, core.Delta{})
		return nil
	}

	steps := total
	if steps > e.cfg.MaxChunkSteps {
		steps = e.cfg.MaxChunkSteps
	}
	for i := 1; i <= steps; i++ {
		if err := pace(ctx, e.cfg.StepInterval); err != nil {
			return err
		}
		report(float64(i)/float64(steps), core.Delta{})
	}
	return nil
}

func inject(f FaultInjector, stage string, snap core.Snapshot) error {
	if f == nil {
		return nil
	}
	return f(stage, snap)
}
