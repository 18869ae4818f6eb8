package async

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Job is the smallest useful unit. Extend as needed later (retry, priority).
type Job struct {
	DocumentID  uuid.UUID
	Force       bool // enqueue even if deduplicated
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// DocumentProcessor runs the extract-parse-analyze pipeline for one document.
type DocumentProcessor interface {
	ProcessDocument(ctx context.Context, documentID uuid.UUID) error
}
