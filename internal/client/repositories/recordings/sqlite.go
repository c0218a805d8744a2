package recordings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/toukan/toukan/internal/client/models"
	"github.com/toukan/toukan/internal/common"
	"github.com/toukan/toukan/internal/dbx"
	"github.com/toukan/toukan/internal/filex"
	"github.com/toukan/toukan/internal/logging"
)

// timeLayout is fixed-width so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const selectColumns = `select id, file_path, recorded_at, duration, upload_status, memory_id, retry_count, last_attempt from recordings`

type SQLiteRepository struct {
	db       *sql.DB
	audioDir string
	log      logging.Logger
}

// NewSQLiteRepository wraps db. audioDir is the root FilePath values are
// relative to.
func NewSQLiteRepository(db *sql.DB, audioDir string, log logging.Logger) *SQLiteRepository {
	return &SQLiteRepository{db: db, audioDir: audioDir, log: logging.Component(log, "recordings")}
}

func (r *SQLiteRepository) AudioPath(rec *models.Recording) (string, error) {
	return filex.Resolve(r.audioDir, rec.FilePath)
}

func (r *SQLiteRepository) Create(ctx context.Context, rec *models.Recording) error {
	query := `insert into recordings (id, file_path, recorded_at, duration, upload_status, memory_id, retry_count, last_attempt)
		values (?, ?, ?, ?, ?, ?, ?, ?)`

	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		_, err := tx.ExecContext(ctx, query,
			rec.ID, rec.FilePath, formatTime(rec.RecordedAt), rec.Duration, string(rec.UploadStatus),
			nullString(rec.MemoryID), rec.RetryCount, nullTime(rec.LastAttempt))
		if err != nil {
			return fmt.Errorf("failed to insert recording: %w", err)
		}
		return nil
	})
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.Recording, error) {
	return getByID(ctx, r.db, id)
}

func (r *SQLiteRepository) Update(ctx context.Context, id string, fn func(rec *models.Recording) error) (*models.Recording, error) {
	var out *models.Recording

	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		rec, err := getByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}

		query := `update recordings set duration=?, upload_status=?, memory_id=?, retry_count=?, last_attempt=? where id=?`
		res, err := tx.ExecContext(ctx, query,
			rec.Duration, string(rec.UploadStatus), nullString(rec.MemoryID), rec.RetryCount, nullTime(rec.LastAttempt), id)
		if err != nil {
			return fmt.Errorf("failed to update recording: %w", err)
		}
		if err := dbx.ExpectOne(res, common.ErrNotFound); err != nil {
			return err
		}

		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *SQLiteRepository) ListRetryable(ctx context.Context) ([]*models.Recording, error) {
	query := selectColumns + ` where upload_status in ('pending', 'failed') order by recorded_at asc`
	return r.list(ctx, query)
}

func (r *SQLiteRepository) ListRecent(ctx context.Context) ([]*models.Recording, error) {
	query := selectColumns + ` order by recorded_at desc`
	return r.list(ctx, query)
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	var filePath string

	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := tx.QueryRowContext(ctx, `select file_path from recordings where id=?`, id).Scan(&filePath); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return common.ErrNotFound
			}
			return fmt.Errorf("failed to select recording: %w", err)
		}

		res, err := tx.ExecContext(ctx, `delete from recordings where id=?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete recording: %w", err)
		}
		return dbx.ExpectOne(res, common.ErrNotFound)
	})
	if err != nil {
		return err
	}

	path, err := filex.Resolve(r.audioDir, filePath)
	if err == nil {
		err = filex.Remove(path)
	}
	if err != nil {
		r.log.Warn(ctx, "audio file not removed", "id", id, "file", filePath, "error", err)
	}
	return nil
}

func (r *SQLiteRepository) list(ctx context.Context, query string) ([]*models.Recording, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error selecting recordings: %w", err)
	}
	defer rows.Close()

	var result []*models.Recording
	for rows.Next() {
		rec, err := scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func getByID(ctx context.Context, db dbx.DBTX, id string) (*models.Recording, error) {
	rec, err := scan(db.QueryRowContext(ctx, selectColumns+` where id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	return rec, err
}

func scan(s scanner) (*models.Recording, error) {
	var (
		rec         models.Recording
		recordedAt  string
		status      string
		memoryID    sql.NullString
		lastAttempt sql.NullString
	)

	if err := s.Scan(&rec.ID, &rec.FilePath, &recordedAt, &rec.Duration, &status, &memoryID, &rec.RetryCount, &lastAttempt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan recording: %w", err)
	}

	t, err := time.Parse(timeLayout, recordedAt)
	if err != nil {
		return nil, fmt.Errorf("recording %s: bad recorded_at %q: %w", rec.ID, recordedAt, err)
	}
	rec.RecordedAt = t
	rec.UploadStatus = models.ParseUploadStatus(status)

	if memoryID.Valid {
		id := memoryID.String
		rec.MemoryID = &id
	}
	if lastAttempt.Valid {
		la, err := time.Parse(timeLayout, lastAttempt.String)
		if err != nil {
			return nil, fmt.Errorf("recording %s: bad last_attempt %q: %w", rec.ID, lastAttempt.String, err)
		}
		rec.LastAttempt = &la
	}

	return &rec, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
