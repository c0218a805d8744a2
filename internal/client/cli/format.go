package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/toukan/toukan/internal/client/models"
)

func formatSeconds(s float64) string {
	return (time.Duration(s * float64(time.Second))).Round(time.Second).String()
}

func formatRecording(r *models.Recording) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s  %-9s  %s", r.ID, r.RecordedAt.Local().Format("2006-01-02 15:04"), r.UploadStatus, formatSeconds(r.Duration))
	if r.RetryCount > 0 {
		fmt.Fprintf(&b, "  retries=%d", r.RetryCount)
	}
	if r.MemoryID != nil {
		fmt.Fprintf(&b, "  memory=%s", *r.MemoryID)
	}
	return b.String()
}

func formatMemoryLine(m *models.Memory) string {
	return fmt.Sprintf("%s  %-10s  %s  %s", m.ID, m.Status, m.CreatedAt.Local().Format("2006-01-02 15:04"), m.DisplayTitle())
}

func formatMemory(m *models.Memory) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", m.DisplayTitle())
	fmt.Fprintf(&b, "id: %s\nstatus: %s\ncreated: %s\n", m.ID, m.Status, m.CreatedAt.Local().Format(time.RFC1123))
	if m.Duration != nil {
		fmt.Fprintf(&b, "duration: %s\n", formatSeconds(*m.Duration))
	}
	if m.Summary != nil {
		fmt.Fprintf(&b, "\nSummary:\n%s\n", *m.Summary)
	}
	writeList(&b, "Key points", m.KeyPoints)
	writeList(&b, "Action items", m.ActionItems)
	if m.Transcript != nil {
		fmt.Fprintf(&b, "\nTranscript:\n%s\n", *m.Transcript)
	}
	if m.Status.IsPending() {
		b.WriteString("\n(still processing)\n")
	}
	return b.String()
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", title)
	for _, it := range items {
		fmt.Fprintf(b, "  - %s\n", it)
	}
}
