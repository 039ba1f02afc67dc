package job

import (
	"time"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Job is one requested video fetch and its tracked lifecycle.
type Job struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Title       string    `json:"title,omitempty"`
	Duration    string    `json:"duration,omitempty"` // opaque display label, no enforced unit
	Thumbnail   string    `json:"thumbnail,omitempty"`
	FilePath    string    `json:"-"` // Don't expose server paths
	FileSize    string    `json:"filesize,omitempty"`
	Status      Status    `json:"status"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	CompletedAt time.Time `json:"completedAt,omitempty"`

	// seq breaks created_at ties; together they form the FIFO ordering key.
	seq int64
}

// Metadata is the best-effort video info resolved before a fetch.
type Metadata struct {
	Title     string
	Duration  string
	Thumbnail string
}

// Artifact describes the file produced by a successful fetch.
type Artifact struct {
	Path      string
	SizeLabel string
}
