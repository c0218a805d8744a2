package models

import "time"

// MemoryStatus is the backend pipeline stage of a memory.
type MemoryStatus string

const (
	MemoryUploading  MemoryStatus = "uploading"
	MemoryProcessing MemoryStatus = "processing"
	MemoryReady      MemoryStatus = "ready"
	MemoryFailed     MemoryStatus = "failed"
)

// IsTerminal is true once processing has finished, successfully or not.
func (s MemoryStatus) IsTerminal() bool {
	return s == MemoryReady || s == MemoryFailed
}

// IsPending is true while the backend is still working on the memory.
func (s MemoryStatus) IsPending() bool {
	return s == MemoryUploading || s == MemoryProcessing
}

// Memory is the backend's processed view of an uploaded recording.
// Content fields stay nil until processing completes.
type Memory struct {
	ID          string
	Title       *string
	Status      MemoryStatus
	AudioURL    string
	Transcript  *string
	Summary     *string
	KeyPoints   []string
	ActionItems []string
	Duration    *float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DisplayTitle falls back to a placeholder for untitled memories.
func (m *Memory) DisplayTitle() string {
	if m.Title == nil || *m.Title == "" {
		return "Untitled memory"
	}
	return *m.Title
}

// MemoryList is one page of memories.
type MemoryList struct {
	Items    []Memory
	Total    int
	Page     int
	PageSize int
	HasNext  bool
}

// AnyPending reports whether any memory on the page is still processing.
func (l *MemoryList) AnyPending() bool {
	for i := range l.Items {
		if l.Items[i].Status.IsPending() {
			return true
		}
	}
	return false
}

// ListParams selects a page of memories. Empty Search/Status are omitted.
type ListParams struct {
	Page     int
	PageSize int
	Search   string
	Status   MemoryStatus
}

// UploadAck is the backend's acceptance of an uploaded file.
type UploadAck struct {
	MemoryID string       `json:"memory_id"`
	Status   MemoryStatus `json:"status"`
	Message  string       `json:"message"`
}

// MemoryEvent is the payload of a memory-update push event.
type MemoryEvent struct {
	MemoryID  string       `json:"memory_id"`
	Status    MemoryStatus `json:"status"`
	UpdatedAt string       `json:"updated_at"`
}
