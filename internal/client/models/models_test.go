package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseUploadStatus(t *testing.T) {
	tests := map[string]UploadStatus{
		"pending":   UploadPending,
		"uploading": UploadUploading,
		"uploaded":  UploadUploaded,
		"failed":    UploadFailed,
		"":          UploadPending,
		"queued":    UploadPending,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseUploadStatus(in), in)
	}
}

func TestMemoryStatus(t *testing.T) {
	assert.True(t, MemoryProcessing.IsPending())
	assert.True(t, MemoryUploading.IsPending())
	assert.False(t, MemoryReady.IsPending())
	assert.True(t, MemoryReady.IsTerminal())
	assert.True(t, MemoryFailed.IsTerminal())
	assert.False(t, MemoryStatus("weird").IsTerminal())
}

func TestMemoryList_AnyPending(t *testing.T) {
	l := MemoryList{Items: []Memory{{Status: MemoryReady}, {Status: MemoryFailed}}}
	assert.False(t, l.AnyPending())

	l.Items = append(l.Items, Memory{Status: MemoryProcessing})
	assert.True(t, l.AnyPending())
}

func TestRecording_Clone(t *testing.T) {
	id := "m1"
	now := time.Now()
	r := &Recording{ID: "r1", MemoryID: &id, LastAttempt: &now}

	c := r.Clone()
	*c.MemoryID = "m2"
	*c.LastAttempt = now.Add(time.Hour)

	assert.Equal(t, "m1", *r.MemoryID)
	assert.Equal(t, now, *r.LastAttempt)
}

func TestMemory_DisplayTitle(t *testing.T) {
	title := "Standup"
	assert.Equal(t, "Standup", (&Memory{Title: &title}).DisplayTitle())
	assert.Equal(t, "Untitled memory", (&Memory{}).DisplayTitle())
}
