package uploads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/toukan/toukan/internal/client/client"
	"github.com/toukan/toukan/internal/client/models"
	"github.com/toukan/toukan/internal/client/platform"
	"github.com/toukan/toukan/internal/common"
	"github.com/toukan/toukan/internal/filex"
	"github.com/toukan/toukan/internal/logging"
)

// Store is the part of the recordings repository the queue needs.
type Store interface {
	Get(ctx context.Context, id string) (*models.Recording, error)
	Update(ctx context.Context, id string, fn func(rec *models.Recording) error) (*models.Recording, error)
	ListRetryable(ctx context.Context) ([]*models.Recording, error)
	ListRecent(ctx context.Context) ([]*models.Recording, error)
	AudioPath(rec *models.Recording) (string, error)
}

// Uploader delivers one file to the backend.
type Uploader interface {
	Upload(ctx context.Context, filename string, r io.Reader) (*models.UploadAck, error)
}

// Connectivity reports whether the backend is believed reachable.
type Connectivity interface {
	Connected() bool
}

// Result describes the outcome of one delivery attempt.
type Result struct {
	ID         string
	Status     models.UploadStatus
	RetryCount int
	MemoryID   string
	// NextRetry is the armed delay, zero when no retry is scheduled.
	NextRetry time.Duration
	Err       error
}

// Queue is the upload state machine. Create it with New, then Start it
// before use.
type Queue struct {
	store    Store
	uploader Uploader
	conn     Connectivity
	exec     platform.ExtendedExecution
	log      logging.Logger
	onResult func(Result)

	maxRetries  int
	backoffBase float64
	backoffUnit time.Duration
	timeout     time.Duration

	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	started   bool
	closed    bool
	inFlight  map[string]struct{}
	timers    map[string]*time.Timer
	forgotten map[string]struct{}
	wg        sync.WaitGroup
}

func New(store Store, uploader Uploader, conn Connectivity, opts ...Option) *Queue {
	q := &Queue{
		store:       store,
		uploader:    uploader,
		conn:        conn,
		exec:        platform.Budgeted{},
		log:         logging.Component(logging.Nop(), "uploads"),
		maxRetries:  5,
		backoffBase: 2,
		backoffUnit: time.Second,
		timeout:     30 * time.Second,
		inFlight:    make(map[string]struct{}),
		timers:      make(map[string]*time.Timer),
		forgotten:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Start binds the queue to ctx, returns records left in uploading by a
// previous process to pending, and sweeps everything retryable.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return nil
	}
	if q.closed {
		q.mu.Unlock()
		return common.ErrShutdown
	}
	q.ctx, q.cancel = context.WithCancel(context.WithoutCancel(ctx))
	q.started = true
	q.mu.Unlock()

	if err := q.recoverStale(ctx); err != nil {
		return err
	}

	if q.conn == nil || q.conn.Connected() {
		if _, err := q.RetryAllPending(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Shutdown cancels armed timers and in-flight uploads and waits for attempt
// goroutines to exit. Interrupted uploads stay in uploading and are recovered
// by the next Start.
func (q *Queue) Shutdown() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	for id, t := range q.timers {
		t.Stop()
		delete(q.timers, id)
	}
	if q.cancel != nil {
		q.cancel()
	}
	q.mu.Unlock()

	q.wg.Wait()
}

// Enqueue marks the record pending and, when connected, attempts delivery in
// the background. It never waits for the upload.
func (q *Queue) Enqueue(ctx context.Context, id string) error {
	if err := q.usable(); err != nil {
		return err
	}

	_, err := q.store.Update(ctx, id, func(rec *models.Recording) error {
		rec.UploadStatus = models.UploadPending
		return nil
	})
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", id, err)
	}

	if q.conn == nil || q.conn.Connected() {
		q.spawn(id)
	} else {
		q.log.Info(ctx, "offline, upload deferred", "id", id)
	}
	return nil
}

// RetryAllPending attempts every pending or failed record still under the
// ceiling. Records already in flight are skipped by the gate. It returns the
// number of attempts started.
func (q *Queue) RetryAllPending(ctx context.Context) (int, error) {
	if err := q.usable(); err != nil {
		return 0, err
	}

	recs, err := q.store.ListRetryable(ctx)
	if err != nil {
		return 0, fmt.Errorf("list retryable: %w", err)
	}

	n := 0
	for _, rec := range recs {
		if rec.RetryCount >= q.maxRetries {
			continue
		}
		if q.spawn(rec.ID) {
			n++
		}
	}
	if n > 0 {
		q.log.Info(ctx, "retrying pending uploads", "count", n)
	}
	return n, nil
}

// ManualRetry resets RetryCount, marks the record pending and attempts it
// right away, cancelling any armed timer.
func (q *Queue) ManualRetry(ctx context.Context, id string) error {
	if err := q.usable(); err != nil {
		return err
	}

	q.stopTimer(id)

	_, err := q.store.Update(ctx, id, func(rec *models.Recording) error {
		if rec.UploadStatus == models.UploadUploaded {
			return fmt.Errorf("recording %s already uploaded", id)
		}
		rec.RetryCount = 0
		rec.UploadStatus = models.UploadPending
		return nil
	})
	if err != nil {
		return fmt.Errorf("manual retry %s: %w", id, err)
	}

	q.spawn(id)
	return nil
}

// Forget cancels any armed retry for id and discards later completions of an
// attempt already in flight. Call it before deleting the record.
func (q *Queue) Forget(id string) {
	q.mu.Lock()
	q.forgotten[id] = struct{}{}
	if t, ok := q.timers[id]; ok {
		t.Stop()
		delete(q.timers, id)
	}
	q.mu.Unlock()
}

// InFlight reports whether an attempt for id is running.
func (q *Queue) InFlight(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.inFlight[id]
	return ok
}

// RetryScheduled reports whether a retry timer is armed for id.
func (q *Queue) RetryScheduled(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.timers[id]
	return ok
}

func (q *Queue) usable() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	switch {
	case q.closed:
		return common.ErrShutdown
	case !q.started:
		return errors.New("upload queue not started")
	}
	return nil
}

// spawn takes the in-flight gate for id and runs one attempt in the
// background. It returns false when the gate is already held.
func (q *Queue) spawn(id string) bool {
	q.mu.Lock()
	if q.closed || !q.started {
		q.mu.Unlock()
		return false
	}
	if _, gone := q.forgotten[id]; gone {
		q.mu.Unlock()
		return false
	}
	if _, busy := q.inFlight[id]; busy {
		q.mu.Unlock()
		return false
	}
	q.inFlight[id] = struct{}{}
	if t, ok := q.timers[id]; ok {
		t.Stop()
		delete(q.timers, id)
	}
	q.wg.Add(1)
	ctx := q.ctx
	q.mu.Unlock()

	inFlightGauge.Inc()
	go func() {
		defer q.wg.Done()
		defer q.release(id)
		q.attemptDelivery(ctx, id)
	}()
	return true
}

func (q *Queue) release(id string) {
	inFlightGauge.Dec()
	q.mu.Lock()
	delete(q.inFlight, id)
	q.mu.Unlock()
}

func (q *Queue) attemptDelivery(ctx context.Context, id string) {
	attemptsTotal.Inc()
	log := q.log.With("id", id)

	rec, err := q.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			log.Info(ctx, "record gone before attempt")
			outcomesTotal.WithLabelValues(resultDangling).Inc()
			return
		}
		log.Error(ctx, "load record", "error", err)
		return
	}
	if rec.UploadStatus == models.UploadUploaded {
		return
	}

	path, err := q.store.AudioPath(rec)
	if err != nil || !filex.Exists(path) {
		q.failMissing(ctx, id)
		return
	}

	started := time.Now().UTC()
	_, err = q.store.Update(ctx, id, func(r *models.Recording) error {
		if r.UploadStatus == models.UploadUploaded {
			return errAlreadyUploaded
		}
		r.UploadStatus = models.UploadUploading
		r.LastAttempt = &started
		return nil
	})
	if err != nil {
		if !errors.Is(err, errAlreadyUploaded) {
			q.logDropped(ctx, id, err)
		}
		return
	}

	ack, err := q.send(ctx, path)
	if ctx.Err() != nil {
		log.Info(ctx, "upload interrupted by shutdown")
		return
	}
	q.complete(ctx, id, ack, err)
}

var errAlreadyUploaded = errors.New("already uploaded")

func (q *Queue) send(ctx context.Context, path string) (*models.UploadAck, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer f.Close()

	h := q.exec.Begin(ctx, "upload", q.timeout)
	defer h.End()

	reqCtx, cancel := context.WithTimeout(h.Context(), q.timeout)
	defer cancel()

	ack, err := q.uploader.Upload(reqCtx, filepath.Base(path), f)
	if err != nil {
		var bre *client.BadResponseError
		if errors.As(err, &bre) {
			return nil, &ServerRejectedError{StatusCode: bre.StatusCode, Body: bre.Body}
		}
		return nil, &TransportError{Err: err}
	}
	return ack, nil
}

func (q *Queue) complete(ctx context.Context, id string, ack *models.UploadAck, uploadErr error) {
	if q.isForgotten(id) {
		q.log.Info(ctx, "completion for deleted record dropped", "id", id)
		outcomesTotal.WithLabelValues(resultDangling).Inc()
		return
	}

	now := time.Now().UTC()
	rec, err := q.store.Update(ctx, id, func(r *models.Recording) error {
		r.LastAttempt = &now
		if uploadErr == nil {
			r.UploadStatus = models.UploadUploaded
			if ack != nil && ack.MemoryID != "" && r.MemoryID == nil {
				mid := ack.MemoryID
				r.MemoryID = &mid
			}
			return nil
		}
		r.UploadStatus = models.UploadFailed
		r.RetryCount++
		return nil
	})
	if err != nil {
		q.logDropped(ctx, id, err)
		return
	}

	res := Result{ID: id, Status: rec.UploadStatus, RetryCount: rec.RetryCount}
	if rec.MemoryID != nil {
		res.MemoryID = *rec.MemoryID
	}

	if uploadErr == nil {
		outcomesTotal.WithLabelValues(resultUploaded).Inc()
		q.log.Info(ctx, "uploaded", "id", id, "memory_id", res.MemoryID)
		q.report(res)
		return
	}

	var rejected *ServerRejectedError
	if errors.As(uploadErr, &rejected) {
		outcomesTotal.WithLabelValues(resultRejected).Inc()
	} else {
		outcomesTotal.WithLabelValues(resultTransport).Inc()
	}

	if rec.RetryCount >= q.maxRetries {
		outcomesTotal.WithLabelValues(resultExhausted).Inc()
		res.Err = fmt.Errorf("%w: %w", ErrRetriesExhausted, uploadErr)
		q.log.Warn(ctx, "upload failed, retries exhausted", "id", id, "retry_count", rec.RetryCount, "error", uploadErr)
		q.report(res)
		return
	}

	res.Err = uploadErr
	res.NextRetry = RetryDelay(rec.RetryCount, q.backoffBase, q.backoffUnit)
	q.log.Warn(ctx, "upload failed", "id", id, "retry_count", rec.RetryCount, "next_retry", res.NextRetry, "error", uploadErr)
	q.armRetry(id, res.NextRetry)
	q.report(res)
}

func (q *Queue) failMissing(ctx context.Context, id string) {
	now := time.Now().UTC()
	rec, err := q.store.Update(ctx, id, func(r *models.Recording) error {
		r.UploadStatus = models.UploadFailed
		r.LastAttempt = &now
		// parks the record outside the automatic sweep
		if r.RetryCount < q.maxRetries {
			r.RetryCount = q.maxRetries
		}
		return nil
	})
	if err != nil {
		q.logDropped(ctx, id, err)
		return
	}

	outcomesTotal.WithLabelValues(resultMissing).Inc()
	q.log.Error(ctx, "audio file missing, not retrying", "id", id)
	q.report(Result{ID: id, Status: rec.UploadStatus, RetryCount: rec.RetryCount, Err: ErrFileMissing})
}

func (q *Queue) armRetry(id string, delay time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	if _, gone := q.forgotten[id]; gone {
		return
	}
	if old, ok := q.timers[id]; ok {
		old.Stop()
	}

	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		q.mu.Lock()
		if cur, ok := q.timers[id]; !ok || cur != t {
			q.mu.Unlock()
			return
		}
		delete(q.timers, id)
		q.mu.Unlock()

		if q.conn != nil && !q.conn.Connected() {
			q.log.Info(context.Background(), "offline, retry left for the restore sweep", "id", id)
			return
		}
		q.spawn(id)
	})
	q.timers[id] = t
	retriesScheduledTotal.Inc()
}

func (q *Queue) stopTimer(id string) {
	q.mu.Lock()
	if t, ok := q.timers[id]; ok {
		t.Stop()
		delete(q.timers, id)
	}
	q.mu.Unlock()
}

func (q *Queue) isForgotten(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.forgotten[id]
	return ok
}

func (q *Queue) logDropped(ctx context.Context, id string, err error) {
	if errors.Is(err, common.ErrNotFound) {
		outcomesTotal.WithLabelValues(resultDangling).Inc()
		q.log.Info(ctx, "record deleted during upload, update dropped", "id", id)
		return
	}
	q.log.Error(ctx, "status update failed", "id", id, "error", err)
}

func (q *Queue) report(r Result) {
	if q.onResult != nil {
		q.onResult(r)
	}
}

func (q *Queue) recoverStale(ctx context.Context) error {
	recs, err := q.store.ListRecent(ctx)
	if err != nil {
		return fmt.Errorf("list recordings: %w", err)
	}
	for _, rec := range recs {
		if rec.UploadStatus != models.UploadUploading {
			continue
		}
		_, err := q.store.Update(ctx, rec.ID, func(r *models.Recording) error {
			if r.UploadStatus == models.UploadUploading {
				r.UploadStatus = models.UploadPending
			}
			return nil
		})
		if err != nil && !errors.Is(err, common.ErrNotFound) {
			return fmt.Errorf("recover %s: %w", rec.ID, err)
		}
		q.log.Info(ctx, "recovered interrupted upload", "id", rec.ID)
	}
	return nil
}
