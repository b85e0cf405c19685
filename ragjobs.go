// Package ragjobs provides an asynchronous job pipeline for a RAG
// assistant: file ingestion jobs (upload, chunk, embed+store) and response
// generation jobs (token streaming) run concurrently, each reporting
// incremental progress and terminal status to subscribers.
//
// This is the main package users should import. It re-exports the public
// types from the pkg/ packages for a clean API surface.
//
// Basic usage:
//
//	reg := ragjobs.NewRegistry()
//	defer reg.Close()
//
//	id, _ := reg.Submit(ctx, ragjobs.FilePayload{
//	    Filename: "notes.txt", MimeType: "text/plain", SizeBytes: 10_000,
//	})
//
//	sub, _ := reg.Subscribe(id)
//	for snap := range sub.Snapshots() {
//	    fmt.Println(snap.Stage, snap.Progress)
//	}
package ragjobs

import (
	"gorm.io/gorm"

	"github.com/prismrag/ragjobs/pkg/archive"
	"github.com/prismrag/ragjobs/pkg/core"
	"github.com/prismrag/ragjobs/pkg/registry"
	"github.com/prismrag/ragjobs/pkg/security"
	"github.com/prismrag/ragjobs/pkg/stage"
)

// Type aliases for the public surface
type (
	// Job is one submitted unit of asynchronous work.
	Job = core.Job

	// Snapshot is an immutable point-in-time view of a job.
	Snapshot = core.Snapshot

	// JobKind identifies which stage sequence applies to a job.
	JobKind = core.JobKind

	// JobStatus represents the current state of a job.
	JobStatus = core.JobStatus

	// Payload is the kind-specific input of a job.
	Payload = core.Payload

	// FilePayload describes a document submitted for ingestion.
	FilePayload = core.FilePayload

	// PromptPayload carries the prompt of a generation job.
	PromptPayload = core.PromptPayload

	// Result is the kind-specific output accumulator of a job.
	Result = core.Result

	// Failure describes why a job failed.
	Failure = core.Failure

	// InvalidInputError marks a non-retryable input fault.
	InvalidInputError = core.InvalidInputError

	// TransientError marks a retryable stage failure.
	TransientError = core.TransientError

	// Registry owns all jobs and fans out their state changes.
	Registry = registry.Registry

	// Filter selects jobs for Registry.List.
	Filter = registry.Filter

	// Subscription is an ordered stream of job snapshots.
	Subscription = registry.Subscription

	// StageConfig tunes the stage executors.
	StageConfig = stage.Config

	// Responder produces the response text for generation jobs.
	Responder = stage.Responder

	// ArchiveStore persists terminal job snapshots.
	ArchiveStore = archive.Store
)

// Status constants
const (
	StatusQueued    = core.StatusQueued
	StatusRunning   = core.StatusRunning
	StatusCompleted = core.StatusCompleted
	StatusFailed    = core.StatusFailed
	StatusCancelled = core.StatusCancelled
)

// Kind constants
const (
	KindIngestion  = core.KindIngestion
	KindGeneration = core.KindGeneration
)

// Stage names
const (
	StageUpload      = stage.StageUpload
	StageChunk       = stage.StageChunk
	StageEmbedStore  = stage.StageEmbedStore
	StageTokenStream = stage.StageTokenStream
)

// Submission limits
const (
	MaxFileSizeBytes = security.MaxFileSizeBytes
	MaxPromptLength  = security.MaxPromptLength
)

// Error variables
var (
	ErrNotFound            = core.ErrNotFound
	ErrUnsupportedFileType = core.ErrUnsupportedFileType
	ErrFileTooLarge        = core.ErrFileTooLarge
	ErrEmptyPrompt         = core.ErrEmptyPrompt
	ErrPromptTooLong       = core.ErrPromptTooLong
	ErrRegistryClosed      = core.ErrRegistryClosed
)

// NewRegistry creates a job registry. Jobs submitted to it run immediately.
func NewRegistry(opts ...registry.Option) *Registry {
	return registry.New(opts...)
}

// NewArchiveStore creates a GORM-backed archive for terminal jobs.
func NewArchiveStore(db *gorm.DB) *ArchiveStore {
	return archive.NewStore(db)
}

// DefaultStageConfig returns the simulation defaults for stage executors.
func DefaultStageConfig() StageConfig {
	return stage.DefaultConfig()
}

// WithStageConfig sets the stage executor configuration for a registry.
func WithStageConfig(sc StageConfig) registry.Option {
	return registry.WithStageConfig(sc)
}

// WithRetentionLimit sets how many terminal jobs the registry retains.
func WithRetentionLimit(n int) registry.Option {
	return registry.WithRetentionLimit(n)
}

// WithEvictHook registers a callback for evicted terminal jobs.
func WithEvictHook(h registry.EvictHook) registry.Option {
	return registry.WithEvictHook(h)
}

// Transient wraps an error to mark it as retryable.
func Transient(err error) error {
	return core.Transient(err)
}

// InvalidInput wraps an error to mark it as a non-retryable input fault.
func InvalidInput(err error) error {
	return core.InvalidInput(err)
}

// IsRetryable reports whether err represents a transient condition.
func IsRetryable(err error) bool {
	return core.IsRetryable(err)
}
