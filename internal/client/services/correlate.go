package services

import (
	"time"

	"github.com/toukan/toukan/internal/client/models"
)

// DefaultCorrelationWindow bounds how far from an upload attempt a memory
// may have been created and still be attributed to it.
const DefaultCorrelationWindow = 2 * time.Minute

// CorrelateByRecency guesses which memory a recording produced. An id echoed
// by the upload always wins. Otherwise it picks the memory created closest
// to the last upload attempt (or the recording time when there was none),
// on either side, within window. The backend creates the memory while the
// request is in flight, so it usually predates the attempt stamp. Equal
// candidates resolve to the smallest id.
//
// This is a heuristic: two recordings uploaded close together can swap.
func CorrelateByRecency(rec *models.Recording, memories []models.Memory, window time.Duration) (string, bool) {
	if rec == nil {
		return "", false
	}
	if rec.MemoryID != nil {
		return *rec.MemoryID, true
	}

	anchor := rec.RecordedAt
	if rec.LastAttempt != nil {
		anchor = *rec.LastAttempt
	}

	var (
		best     string
		bestDiff time.Duration
	)
	for i := range memories {
		m := &memories[i]
		d := m.CreatedAt.Sub(anchor)
		if d < 0 {
			d = -d
		}
		if d > window {
			continue
		}
		if best == "" || d < bestDiff || (d == bestDiff && m.ID < best) {
			best, bestDiff = m.ID, d
		}
	}
	return best, best != ""
}
