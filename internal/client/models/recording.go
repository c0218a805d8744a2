package models

import "time"

// UploadStatus is the delivery state of a local recording.
type UploadStatus string

const (
	UploadPending   UploadStatus = "pending"
	UploadUploading UploadStatus = "uploading"
	UploadUploaded  UploadStatus = "uploaded"
	UploadFailed    UploadStatus = "failed"
)

// ParseUploadStatus maps a persisted string back to an UploadStatus.
// Unknown values read as pending so the record is picked up again.
func ParseUploadStatus(s string) UploadStatus {
	switch st := UploadStatus(s); st {
	case UploadPending, UploadUploading, UploadUploaded, UploadFailed:
		return st
	default:
		return UploadPending
	}
}

// Retryable reports whether the queue may attempt delivery from this state.
func (s UploadStatus) Retryable() bool {
	return s == UploadPending || s == UploadFailed
}

// Recording is a captured audio file awaiting or past delivery.
type Recording struct {
	// ID is a uuid assigned at creation.
	ID string
	// FilePath is relative to the audio directory.
	FilePath   string
	RecordedAt time.Time
	// Duration in seconds, set once when the capture stops.
	Duration     float64
	UploadStatus UploadStatus
	// MemoryID is set once the backend echoes an id for the upload.
	MemoryID    *string
	RetryCount  int
	LastAttempt *time.Time
}

// Clone returns a deep copy, so callers can mutate without aliasing.
func (r *Recording) Clone() *Recording {
	c := *r
	if r.MemoryID != nil {
		id := *r.MemoryID
		c.MemoryID = &id
	}
	if r.LastAttempt != nil {
		t := *r.LastAttempt
		c.LastAttempt = &t
	}
	return &c
}
