package constants

// JobStatus is the canonical status for rows in extract_jobs.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusQueued   JobStatus = "QUEUED"   // waiting for a worker
	JobStatusRunning  JobStatus = "RUNNING"  // in progress
	JobStatusTextOK   JobStatus = "TEXT_OK"  // stage 1 completed (text extracted)
	JobStatusParsed   JobStatus = "PARSED"   // stage 2 completed (fields structured)
	JobStatusAnalyzed JobStatus = "ANALYZED" // stage 3 completed (fraud analysis stored)
	JobStatusFailed   JobStatus = "FAILED"   // terminal failure
)

// AnalysisStatus mirrors the analyzer result levels surfaced in the UI.
type AnalysisStatus string

const (
	AnalysisSuccess AnalysisStatus = "success"
	AnalysisWarning AnalysisStatus = "warning"
	AnalysisError   AnalysisStatus = "error"
)
