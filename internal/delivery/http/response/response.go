package response

import (
	"time"

	"github.com/user/knowledge-service/internal/entity"
)

type Error struct {
	Error string `json:"error"`
	JobID int64  `json:"job_id,omitempty"`
}

// IngestAccepted is returned when an ingest request was queued rather than run inline.
type IngestAccepted struct {
	Status     string    `json:"status"`
	RequestID  string    `json:"request_id"`
	URL        string    `json:"url"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

type Collections struct {
	Collections []entity.CollectionStats `json:"collections"`
}
