package ingest

import (
	"context"
	"time"
)

// IngestionResult is the per-file intake outcome.
type IngestionResult struct {
	SourcePath   string
	DocumentID   string
	Deduplicated bool
	HashHex      string
	FileExt      string
	ContentType  string
	UploadedAt   time.Time
	Err          string
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
}

// Ingestor is the behavior the service and pipeline depend on.
type Ingestor interface {
	// IngestPath takes one file on disk into the document store.
	IngestPath(ctx context.Context, path string) (IngestionResult, error)
	// IngestBytes stores an uploaded payload under the configured upload
	// directory, then ingests it like any other file.
	IngestBytes(ctx context.Context, filename string, data []byte) (IngestionResult, error)
	// IngestDirectory ingests all matching files under root.
	IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]IngestionResult, DirStats, error)
}
