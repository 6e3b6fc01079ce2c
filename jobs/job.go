// Package jobs implements a Redis-backed job queue shaped after Ocypod's
// protocol (create a job against a named queue, pop the next one, patch in
// progress and results) without depending on Ocypod itself: every queue
// client in the original system spoke this protocol over plain HTTP, and
// nothing in this codebase's domain needs more than a thin, self-hosted
// version of it.
package jobs

import (
	"encoding/json"
	"time"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
	StatusTimedOut  Status = "timed_out"
)

// Pending reports whether a job in this status is still in flight.
func (s Status) Pending() bool {
	return s == StatusQueued || s == StatusRunning
}

// Failed reports whether a job in this status ended unsuccessfully.
func (s Status) Failed() bool {
	return s == StatusFailed || s == StatusCanceled || s == StatusTimedOut
}

// Completed reports whether a job in this status ended successfully.
func (s Status) Completed() bool {
	return s == StatusCompleted
}

// CreateRequest describes a job to enqueue.
type CreateRequest struct {
	Queue   string          `json:"queue"`
	Input   json.RawMessage `json:"input"`
	Tags    []string        `json:"tags,omitempty"`
	Timeout time.Duration   `json:"timeout,omitempty"`
}

// Input is what a worker receives when it pops the next job from a queue.
type Input struct {
	ID    uint64          `json:"id"`
	Input json.RawMessage `json:"input"`
}

// Info is the full state of a job, as returned by Job and NextCompleted.
type Info struct {
	ID        uint64          `json:"id"`
	Queue     string          `json:"queue"`
	Status    Status          `json:"status"`
	Tags      []string        `json:"tags,omitempty"`
	Input     json.RawMessage `json:"input"`
	Output    json.RawMessage `json:"output,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	EndedAt   *time.Time      `json:"endedAt,omitempty"`
}

// CompletedRequest is the payload a worker submits to mark a job done: a
// map from a record's guid to the RFC 6902 JSON Patch to apply
// to it, plus a small metadata blob (duration, model version, whatever the
// job type wants to record) and how long the job took. A tagged record with
// no entry in Patches still gets its meta.jobs.completed log updated.
type CompletedRequest struct {
	Patches  map[string]json.RawMessage `json:"patches,omitempty"`
	Meta     json.RawMessage            `json:"meta,omitempty"`
	Duration time.Duration              `json:"duration"`
}

// ProgressRequest is a JSON Merge Patch (RFC 7396) applied to a running
// job's output, letting a long-running worker report partial results.
type ProgressRequest struct {
	Output json.RawMessage `json:"output"`
}

// FailedRequest is the payload a worker submits to mark a job failed.
type FailedRequest struct {
	Reason string `json:"reason"`
}
