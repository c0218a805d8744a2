package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/toukan/toukan/internal/client/models"
	"github.com/toukan/toukan/internal/client/recorder"
	"github.com/toukan/toukan/internal/client/repositories/recordings"
	"github.com/toukan/toukan/internal/logging"
)

// ErrNotRecording is returned by StopRecording when no capture is running.
var ErrNotRecording = errors.New("not recording")

// Recorder is the capture side used by RecordingService.
type Recorder interface {
	Start(ctx context.Context)
	Stop() (recorder.Result, bool)
	Snapshot() recorder.Snapshot
}

// UploadQueue is the delivery side used by RecordingService.
type UploadQueue interface {
	Enqueue(ctx context.Context, id string) error
	ManualRetry(ctx context.Context, id string) error
	Forget(id string)
}

// RecordingService defines the local recording operations.
type RecordingService interface {
	StartRecording(ctx context.Context) recorder.Snapshot
	StopRecording(ctx context.Context) (*models.Recording, error)
	Recordings(ctx context.Context) ([]*models.Recording, error)
	Retry(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	// Correlate fills MemoryID for uploaded recordings whose upload response
	// carried none, using CorrelateByRecency. It returns how many were linked.
	Correlate(ctx context.Context, memories []models.Memory) (int, error)
}

type recordingService struct {
	rec    Recorder
	store  recordings.Repository
	queue  UploadQueue
	log    logging.Logger
	window time.Duration
}

func NewRecordingService(rec Recorder, store recordings.Repository, queue UploadQueue, log logging.Logger) RecordingService {
	return &recordingService{
		rec:    rec,
		store:  store,
		queue:  queue,
		log:    logging.Component(log, "recordings"),
		window: DefaultCorrelationWindow,
	}
}

// StartRecording starts a capture. Device failures are logged by the
// recorder; the returned snapshot tells whether it is running.
func (s *recordingService) StartRecording(ctx context.Context) recorder.Snapshot {
	s.rec.Start(ctx)
	return s.rec.Snapshot()
}

// StopRecording finalizes the capture, persists a pending record and hands
// it to the upload queue.
func (s *recordingService) StopRecording(ctx context.Context) (*models.Recording, error) {
	res, ok := s.rec.Stop()
	if !ok {
		return nil, ErrNotRecording
	}

	rec := &models.Recording{
		ID:           uuid.NewString(),
		FilePath:     res.FilePath,
		RecordedAt:   res.StartedAt,
		Duration:     res.Duration,
		UploadStatus: models.UploadPending,
	}
	if err := s.store.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("saving recording: %w", err)
	}

	if err := s.queue.Enqueue(ctx, rec.ID); err != nil {
		// the record stays pending and is picked up by the next sweep
		s.log.Warn(ctx, "enqueue failed", "id", rec.ID, "error", err)
	}
	return rec, nil
}

func (s *recordingService) Recordings(ctx context.Context) ([]*models.Recording, error) {
	recs, err := s.store.ListRecent(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing recordings: %w", err)
	}
	return recs, nil
}

func (s *recordingService) Retry(ctx context.Context, id string) error {
	if err := s.queue.ManualRetry(ctx, id); err != nil {
		return fmt.Errorf("retrying %s: %w", id, err)
	}
	return nil
}

// Delete discards any in-flight result for the record before removing it.
func (s *recordingService) Delete(ctx context.Context, id string) error {
	s.queue.Forget(id)
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting %s: %w", id, err)
	}
	return nil
}

func (s *recordingService) Correlate(ctx context.Context, memories []models.Memory) (int, error) {
	recs, err := s.store.ListRecent(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing recordings: %w", err)
	}

	claimed := make(map[string]bool)
	for _, r := range recs {
		if r.MemoryID != nil {
			claimed[*r.MemoryID] = true
		}
	}

	linked := 0
	for _, r := range recs {
		if r.UploadStatus != models.UploadUploaded || r.MemoryID != nil {
			continue
		}
		id, ok := CorrelateByRecency(r, unclaimed(memories, claimed), s.window)
		if !ok {
			continue
		}

		_, err := s.store.Update(ctx, r.ID, func(cur *models.Recording) error {
			if cur.MemoryID != nil {
				return errAlreadyLinked
			}
			cur.MemoryID = &id
			return nil
		})
		switch {
		case errors.Is(err, errAlreadyLinked):
			continue
		case err != nil:
			return linked, fmt.Errorf("linking %s: %w", r.ID, err)
		}

		claimed[id] = true
		linked++
		s.log.Debug(ctx, "memory linked by recency", "id", r.ID, "memory_id", id)
	}
	return linked, nil
}

var errAlreadyLinked = errors.New("already linked")

func unclaimed(ms []models.Memory, claimed map[string]bool) []models.Memory {
	out := make([]models.Memory, 0, len(ms))
	for _, m := range ms {
		if !claimed[m.ID] {
			out = append(out, m)
		}
	}
	return out
}
