package entity

import "time"

type JobStatus string

const (
	JobStatusRunning JobStatus = "running"
	JobStatusDone    JobStatus = "done"
	JobStatusFailed  JobStatus = "failed"
)

const JobTypeIngest = "ingest"

// JobPayload is the input a job was started with.
type JobPayload struct {
	URL        string `json:"url"`
	Collection string `json:"collection,omitempty"`
	Force      bool   `json:"force,omitempty"`
}

// Job mirrors the `jobs` table. A job is created running and moves to
// exactly one terminal state.
type Job struct {
	ID        int64      `json:"id"`
	Type      string     `json:"job_type"`
	Status    JobStatus  `json:"status"`
	Payload   JobPayload `json:"payload"`
	ErrorText string     `json:"error_text,omitempty"`
	SourceID  int64      `json:"source_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// IngestRequest is the queued form of an ingest call.
type IngestRequest struct {
	ID         string    `json:"id"`
	URL        string    `json:"url"`
	Collection string    `json:"collection,omitempty"`
	Force      bool      `json:"force,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}
