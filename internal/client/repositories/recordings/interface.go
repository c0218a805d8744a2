package recordings

import (
	"context"

	"github.com/toukan/toukan/internal/client/models"
)

// Repository describes CRUD and query operations for Recording records.
type Repository interface {
	// Create inserts a new record. IDs are never reused.
	Create(ctx context.Context, rec *models.Recording) error

	// Get returns the record or common.ErrNotFound.
	Get(ctx context.Context, id string) (*models.Recording, error)

	// Update loads the record, applies fn and writes the result back in one
	// transaction. It returns common.ErrNotFound if the record is gone; fn
	// may abort the write by returning an error.
	Update(ctx context.Context, id string, fn func(rec *models.Recording) error) (*models.Recording, error)

	// ListRetryable returns records in pending or failed state, oldest first.
	ListRetryable(ctx context.Context) ([]*models.Recording, error)

	// ListRecent returns all records ordered by RecordedAt descending.
	ListRecent(ctx context.Context) ([]*models.Recording, error)

	// Delete removes the record and its backing audio file.
	Delete(ctx context.Context, id string) error

	// AudioPath resolves a record's relative FilePath inside the audio dir.
	AudioPath(rec *models.Recording) (string, error)
}
