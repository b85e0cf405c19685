// Package core provides the domain models and interfaces for the ragjobs package.
package core

import (
	"time"
)

// JobKind identifies which stage sequence applies to a job.
type JobKind string

const (
	KindIngestion  JobKind = "ingestion"
	KindGeneration JobKind = "generation"
)

// JobStatus represents the current state of a job.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled" // Terminated on caller request
)

// Terminal reports whether no further transitions can occur from s.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Payload is the kind-specific input of a job. Implemented by FilePayload
// and PromptPayload.
type Payload interface {
	Kind() JobKind
}

// FilePayload describes a document submitted for ingestion.
type FilePayload struct {
	Filename  string
	MimeType  string
	SizeBytes int64
}

func (FilePayload) Kind() JobKind { return KindIngestion }

// PromptPayload carries the prompt of a generation job.
type PromptPayload struct {
	Prompt string
}

func (PromptPayload) Kind() JobKind { return KindGeneration }

// Result is the kind-specific output accumulator of a job.
// Chunk counters are absolute and monotonic; Text grows append-only.
type Result struct {
	Chunks      int
	TotalChunks int
	Text        string
}

// Failure describes why a job failed.
type Failure struct {
	Message   string
	Retryable bool
}

// Job is one submitted unit of asynchronous work. Only the pipeline
// goroutine owning the job mutates it; everyone else reads Snapshots.
type Job struct {
	ID        string
	Kind      JobKind
	File      *FilePayload
	Prompt    *PromptPayload
	Status    JobStatus
	Stage     string
	Progress  float64
	Result    Result
	Failure   *Failure
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Payload returns the job's payload, or nil if none is set.
func (j *Job) Payload() Payload {
	switch {
	case j.File != nil:
		return *j.File
	case j.Prompt != nil:
		return *j.Prompt
	}
	return nil
}

// Touch refreshes UpdatedAt, keeping it strictly increasing even when the
// clock resolution would otherwise produce an equal timestamp.
func (j *Job) Touch() {
	now := time.Now()
	if !now.After(j.UpdatedAt) {
		now = j.UpdatedAt.Add(time.Nanosecond)
	}
	j.UpdatedAt = now
}

// Snapshot returns an immutable point-in-time view of the job, safe to
// read without synchronization.
func (j *Job) Snapshot() Snapshot {
	s := Snapshot{
		ID:        j.ID,
		Kind:      j.Kind,
		Status:    j.Status,
		Stage:     j.Stage,
		Progress:  j.Progress,
		Result:    j.Result,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
	if j.File != nil {
		f := *j.File
		s.File = &f
	}
	if j.Prompt != nil {
		p := *j.Prompt
		s.Prompt = &p
	}
	if j.Failure != nil {
		f := *j.Failure
		s.Failure = &f
	}
	return s
}

// Snapshot is a frozen view of a job's fields. The pointer fields refer
// to private copies, never to the live job.
type Snapshot struct {
	ID        string
	Kind      JobKind
	File      *FilePayload
	Prompt    *PromptPayload
	Status    JobStatus
	Stage     string
	Progress  float64
	Result    Result
	Failure   *Failure
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Terminal reports whether the snapshot captured a terminal status.
func (s Snapshot) Terminal() bool { return s.Status.Terminal() }

// Delta is a result contribution reported by a stage executor alongside a
// progress update. Chunks and TotalChunks replace the current counters when
// greater than zero; Text is appended to the accumulated text.
type Delta struct {
	Chunks      int
	TotalChunks int
	Text        string
}

// Apply folds a delta into the result. Chunk counters never move backwards.
func (r *Result) Apply(d Delta) {
	if d.Chunks > r.Chunks {
		r.Chunks = d.Chunks
	}
	if d.TotalChunks > r.TotalChunks {
		r.TotalChunks = d.TotalChunks
	}
	r.Text += d.Text
}
