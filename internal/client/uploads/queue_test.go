package uploads

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toukan/toukan/internal/client/client"
	"github.com/toukan/toukan/internal/client/migrations"
	"github.com/toukan/toukan/internal/client/models"
	"github.com/toukan/toukan/internal/client/platform"
	"github.com/toukan/toukan/internal/client/repositories/recordings"
	"github.com/toukan/toukan/internal/common"
	"github.com/toukan/toukan/internal/logging"

	_ "modernc.org/sqlite"
)

const unit = 10 * time.Millisecond

type fakeConn struct{ up atomic.Bool }

func (c *fakeConn) Connected() bool { return c.up.Load() }

func connected(v bool) *fakeConn {
	c := &fakeConn{}
	c.up.Store(v)
	return c
}

// fakeUploader answers with script(n) for the n-th call (1-based).
type fakeUploader struct {
	script func(n int) (*models.UploadAck, error)
	block  chan struct{}

	mu        sync.Mutex
	calls     []time.Time
	perFile   map[string]int
	active    map[string]int
	maxActive map[string]int
}

func newUploader(script func(n int) (*models.UploadAck, error)) *fakeUploader {
	return &fakeUploader{
		script:    script,
		perFile:   map[string]int{},
		active:    map[string]int{},
		maxActive: map[string]int{},
	}
}

func (u *fakeUploader) Upload(ctx context.Context, filename string, r io.Reader) (*models.UploadAck, error) {
	u.mu.Lock()
	u.calls = append(u.calls, time.Now())
	n := len(u.calls)
	u.perFile[filename]++
	u.active[filename]++
	if u.active[filename] > u.maxActive[filename] {
		u.maxActive[filename] = u.active[filename]
	}
	u.mu.Unlock()

	defer func() {
		u.mu.Lock()
		u.active[filename]--
		u.mu.Unlock()
	}()

	_, _ = io.ReadAll(r)

	if u.block != nil {
		select {
		case <-u.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return u.script(n)
}

func (u *fakeUploader) count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.calls)
}

func (u *fakeUploader) callTimes() []time.Time {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]time.Time(nil), u.calls...)
}

func ok(int) (*models.UploadAck, error) {
	return &models.UploadAck{MemoryID: "mem-1", Status: models.MemoryUploading}, nil
}

func status(code int) (*models.UploadAck, error) {
	return nil, &client.BadResponseError{StatusCode: code, Body: http.StatusText(code)}
}

type env struct {
	repo *recordings.SQLiteRepository
	dir  string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrations.Up(context.Background(), db))

	dir := t.TempDir()
	return &env{repo: recordings.NewSQLiteRepository(db, dir, logging.Nop()), dir: dir}
}

func (e *env) addRecording(t *testing.T, id string, withFile bool) {
	t.Helper()
	rec := &models.Recording{
		ID:           id,
		FilePath:     id + ".m4a",
		RecordedAt:   time.Now().UTC(),
		Duration:     42.5,
		UploadStatus: models.UploadPending,
	}
	if withFile {
		require.NoError(t, os.WriteFile(filepath.Join(e.dir, rec.FilePath), []byte("audio"), 0o600))
	}
	require.NoError(t, e.repo.Create(context.Background(), rec))
}

func (e *env) get(t *testing.T, id string) *models.Recording {
	t.Helper()
	rec, err := e.repo.Get(context.Background(), id)
	require.NoError(t, err)
	return rec
}

func (e *env) startQueue(t *testing.T, up Uploader, conn Connectivity, opts ...Option) *Queue {
	t.Helper()
	opts = append([]Option{WithBackoff(2, unit), WithRequestTimeout(time.Second)}, opts...)
	q := New(e.repo, up, conn, opts...)
	require.NoError(t, q.Start(context.Background()))
	t.Cleanup(q.Shutdown)
	return q
}

func waitStatus(t *testing.T, e *env, id string, want models.UploadStatus) *models.Recording {
	t.Helper()
	var rec *models.Recording
	require.Eventually(t, func() bool {
		rec = e.get(t, id)
		return rec.UploadStatus == want
	}, 3*time.Second, 5*time.Millisecond, "waiting for %s", want)
	return rec
}

func TestEnqueue_SuccessOnFirstAttempt(t *testing.T) {
	e := newEnv(t)

	up := newUploader(ok)
	var results []Result
	var mu sync.Mutex
	q := e.startQueue(t, up, connected(true), WithResultObserver(func(r Result) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	}))
	e.addRecording(t, "r1", true)

	require.NoError(t, q.Enqueue(context.Background(), "r1"))

	rec := waitStatus(t, e, "r1", models.UploadUploaded)
	assert.Equal(t, 0, rec.RetryCount)
	assert.Equal(t, 42.5, rec.Duration)
	require.NotNil(t, rec.MemoryID)
	assert.Equal(t, "mem-1", *rec.MemoryID)
	require.NotNil(t, rec.LastAttempt)
	assert.Equal(t, 1, up.count())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(results) == 1
	}, time.Second, 5*time.Millisecond)
	assert.NoError(t, results[0].Err)
	assert.False(t, q.RetryScheduled("r1"))
}

func TestEnqueue_OfflineLeavesPending(t *testing.T) {
	e := newEnv(t)
	e.addRecording(t, "r1", true)

	up := newUploader(ok)
	q := e.startQueue(t, up, connected(false))

	require.NoError(t, q.Enqueue(context.Background(), "r1"))
	time.Sleep(5 * unit)

	assert.Equal(t, 0, up.count())
	assert.Equal(t, models.UploadPending, e.get(t, "r1").UploadStatus)
}

func TestEnqueue_UnknownRecord(t *testing.T) {
	e := newEnv(t)
	q := e.startQueue(t, newUploader(ok), connected(true))

	err := q.Enqueue(context.Background(), "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestQueue_NotStarted(t *testing.T) {
	e := newEnv(t)
	q := New(e.repo, newUploader(ok), connected(true))
	require.Error(t, q.Enqueue(context.Background(), "r1"))

	require.NoError(t, q.Start(context.Background()))
	q.Shutdown()
	assert.ErrorIs(t, q.Enqueue(context.Background(), "r1"), common.ErrShutdown)
	assert.ErrorIs(t, q.Start(context.Background()), common.ErrShutdown)
}

func TestTransientFailuresThenSuccess(t *testing.T) {
	e := newEnv(t)

	up := newUploader(func(n int) (*models.UploadAck, error) {
		if n <= 3 {
			return status(http.StatusInternalServerError)
		}
		return ok(n)
	})

	var mu sync.Mutex
	var counts []int
	q := e.startQueue(t, up, connected(true), WithResultObserver(func(r Result) {
		mu.Lock()
		counts = append(counts, r.RetryCount)
		mu.Unlock()
	}))
	e.addRecording(t, "r1", true)

	require.NoError(t, q.Enqueue(context.Background(), "r1"))

	rec := waitStatus(t, e, "r1", models.UploadUploaded)
	assert.Equal(t, 3, rec.RetryCount)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(counts) == 4
	}, time.Second, time.Millisecond)
	mu.Lock()
	assert.Equal(t, []int{1, 2, 3, 3}, counts, "retryCount increments exactly once per failure")
	mu.Unlock()

	calls := up.callTimes()
	require.Len(t, calls, 4)
	for i, want := range []time.Duration{unit, 2 * unit, 4 * unit} {
		gap := calls[i+1].Sub(calls[i])
		assert.GreaterOrEqual(t, gap, want, "gap %d", i)
	}
}

func TestRetriesExhausted(t *testing.T) {
	e := newEnv(t)

	var failing atomic.Bool
	failing.Store(true)
	up := newUploader(func(n int) (*models.UploadAck, error) {
		if failing.Load() {
			return nil, errors.New("connection reset")
		}
		return ok(n)
	})

	var last atomic.Value
	q := e.startQueue(t, up, connected(true), WithMaxRetries(5), WithResultObserver(func(r Result) {
		last.Store(r)
	}))
	e.addRecording(t, "r1", true)

	require.NoError(t, q.Enqueue(context.Background(), "r1"))

	require.Eventually(t, func() bool {
		rec := e.get(t, "r1")
		return rec.UploadStatus == models.UploadFailed && rec.RetryCount == 5
	}, 3*time.Second, 5*time.Millisecond)

	// no further automatic retry
	time.Sleep(20 * unit)
	assert.Equal(t, 5, up.count())
	assert.False(t, q.RetryScheduled("r1"))
	assert.Equal(t, 5, e.get(t, "r1").RetryCount)

	require.Eventually(t, func() bool {
		r, _ := last.Load().(Result)
		return r.RetryCount == 5
	}, time.Second, time.Millisecond)
	res := last.Load().(Result)
	assert.ErrorIs(t, res.Err, ErrRetriesExhausted)
	var te *TransportError
	assert.ErrorAs(t, res.Err, &te)

	// the sweep skips records at the ceiling
	n, err := q.RetryAllPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	failing.Store(false)
	require.NoError(t, q.ManualRetry(context.Background(), "r1"))

	rec := waitStatus(t, e, "r1", models.UploadUploaded)
	assert.Equal(t, 0, rec.RetryCount)
	assert.Equal(t, 6, up.count())
}

func TestFileMissingIsPermanent(t *testing.T) {
	e := newEnv(t)

	up := newUploader(ok)
	var last atomic.Value
	q := e.startQueue(t, up, connected(true), WithResultObserver(func(r Result) { last.Store(r) }))
	e.addRecording(t, "r1", false)

	require.NoError(t, q.Enqueue(context.Background(), "r1"))
	rec := waitStatus(t, e, "r1", models.UploadFailed)

	time.Sleep(10 * unit)
	assert.Equal(t, 0, up.count())
	assert.False(t, q.RetryScheduled("r1"))
	assert.Equal(t, 5, rec.RetryCount)

	require.Eventually(t, func() bool { return last.Load() != nil }, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, last.Load().(Result).Err, ErrFileMissing)

	n, err := q.RetryAllPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestDeleteDuringFlight_NoResurrection(t *testing.T) {
	e := newEnv(t)

	up := newUploader(ok)
	up.block = make(chan struct{})
	q := e.startQueue(t, up, connected(true))
	e.addRecording(t, "r1", true)

	require.NoError(t, q.Enqueue(context.Background(), "r1"))
	require.Eventually(t, func() bool { return up.count() == 1 }, time.Second, time.Millisecond)

	q.Forget("r1")
	require.NoError(t, e.repo.Delete(context.Background(), "r1"))
	close(up.block)

	require.Eventually(t, func() bool { return !q.InFlight("r1") }, time.Second, time.Millisecond)

	_, err := e.repo.Get(context.Background(), "r1")
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = os.Stat(filepath.Join(e.dir, "r1.m4a"))
	assert.True(t, os.IsNotExist(err))

	// later attempts for the id are refused
	n, err := q.RetryAllPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestDeleteWithoutForget_CompletionDropped(t *testing.T) {
	e := newEnv(t)

	up := newUploader(func(int) (*models.UploadAck, error) { return status(http.StatusBadGateway) })
	up.block = make(chan struct{})
	q := e.startQueue(t, up, connected(true))
	e.addRecording(t, "r1", true)

	require.NoError(t, q.Enqueue(context.Background(), "r1"))
	require.Eventually(t, func() bool { return up.count() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, e.repo.Delete(context.Background(), "r1"))
	close(up.block)

	require.Eventually(t, func() bool { return !q.InFlight("r1") }, time.Second, time.Millisecond)
	_, err := e.repo.Get(context.Background(), "r1")
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.False(t, q.RetryScheduled("r1"))
}

func TestForgetCancelsArmedTimer(t *testing.T) {
	e := newEnv(t)

	up := newUploader(func(int) (*models.UploadAck, error) { return status(http.StatusServiceUnavailable) })
	q := New(e.repo, up, connected(true), WithBackoff(2, time.Hour))
	require.NoError(t, q.Start(context.Background()))
	e.addRecording(t, "r1", true)
	defer q.Shutdown()

	require.NoError(t, q.Enqueue(context.Background(), "r1"))
	require.Eventually(t, func() bool { return q.RetryScheduled("r1") }, time.Second, time.Millisecond)

	q.Forget("r1")
	assert.False(t, q.RetryScheduled("r1"))
}

func TestConnectivityRestore_OneAttemptPerRecord(t *testing.T) {
	e := newEnv(t)
	ids := []string{"a", "b", "c"}
	for _, id := range ids {
		e.addRecording(t, id, true)
	}
	// uploaded records are not eligible
	e.addRecording(t, "done", true)
	_, err := e.repo.Update(context.Background(), "done", func(r *models.Recording) error {
		r.UploadStatus = models.UploadUploaded
		return nil
	})
	require.NoError(t, err)

	up := newUploader(ok)
	up.block = make(chan struct{})
	conn := connected(false)
	q := e.startQueue(t, up, conn)

	for _, id := range ids {
		require.NoError(t, q.Enqueue(context.Background(), id))
	}
	assert.Equal(t, 0, up.count())

	conn.up.Store(true)
	var wg sync.WaitGroup
	var started atomic.Int32
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := q.RetryAllPending(context.Background())
			assert.NoError(t, err)
			started.Add(int32(n))
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(3), started.Load())

	require.Eventually(t, func() bool { return up.count() == 3 }, time.Second, time.Millisecond)
	close(up.block)

	for _, id := range ids {
		waitStatus(t, e, id, models.UploadUploaded)
	}

	up.mu.Lock()
	defer up.mu.Unlock()
	for _, id := range ids {
		assert.Equal(t, 1, up.perFile[id+".m4a"], id)
		assert.Equal(t, 1, up.maxActive[id+".m4a"], id)
	}
	assert.Zero(t, up.perFile["done.m4a"])
}

func TestInFlightGate(t *testing.T) {
	e := newEnv(t)

	up := newUploader(ok)
	up.block = make(chan struct{})
	q := e.startQueue(t, up, connected(true))
	e.addRecording(t, "r1", true)

	require.NoError(t, q.Enqueue(context.Background(), "r1"))
	require.Eventually(t, func() bool { return q.InFlight("r1") }, time.Second, time.Millisecond)
	assert.Equal(t, models.UploadUploading, e.get(t, "r1").UploadStatus)

	require.NoError(t, q.Enqueue(context.Background(), "r1"))
	require.NoError(t, q.ManualRetry(context.Background(), "r1"))
	n, err := q.RetryAllPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	close(up.block)
	waitStatus(t, e, "r1", models.UploadUploaded)
	assert.Equal(t, 1, up.count())
}

func TestRequestTimeoutIsTransportError(t *testing.T) {
	e := newEnv(t)

	up := newUploader(ok)
	up.block = make(chan struct{})
	defer close(up.block)

	var last atomic.Value
	tracker := &platform.Tracker{}
	q := e.startQueue(t, up, connected(true),
		WithRequestTimeout(20*time.Millisecond),
		WithBackoff(2, time.Hour),
		WithExtendedExecution(tracker),
		WithResultObserver(func(r Result) { last.Store(r) }))
	e.addRecording(t, "r1", true)

	require.NoError(t, q.Enqueue(context.Background(), "r1"))
	rec := waitStatus(t, e, "r1", models.UploadFailed)
	assert.Equal(t, 1, rec.RetryCount)

	require.Eventually(t, func() bool { return last.Load() != nil }, time.Second, time.Millisecond)
	res := last.Load().(Result)
	var te *TransportError
	assert.ErrorAs(t, res.Err, &te)
	assert.Equal(t, time.Hour, res.NextRetry)

	assert.Equal(t, 1, tracker.Granted())
	assert.Equal(t, 0, tracker.Active())
}

func TestServerRejectedCarriesStatus(t *testing.T) {
	e := newEnv(t)

	var last atomic.Value
	up := newUploader(func(int) (*models.UploadAck, error) { return status(http.StatusRequestEntityTooLarge) })
	q := e.startQueue(t, up, connected(true), WithBackoff(2, time.Hour), WithResultObserver(func(r Result) { last.Store(r) }))
	e.addRecording(t, "r1", true)

	require.NoError(t, q.Enqueue(context.Background(), "r1"))

	require.Eventually(t, func() bool { return last.Load() != nil }, time.Second, time.Millisecond)
	var sr *ServerRejectedError
	require.ErrorAs(t, last.Load().(Result).Err, &sr)
	assert.Equal(t, http.StatusRequestEntityTooLarge, sr.StatusCode)
	assert.True(t, strings.Contains(sr.Error(), "413"))
}

func TestStart_RecoversInterruptedUploads(t *testing.T) {
	e := newEnv(t)
	e.addRecording(t, "r1", true)
	_, err := e.repo.Update(context.Background(), "r1", func(r *models.Recording) error {
		r.UploadStatus = models.UploadUploading
		return nil
	})
	require.NoError(t, err)

	up := newUploader(ok)
	e.startQueue(t, up, connected(true))

	waitStatus(t, e, "r1", models.UploadUploaded)
	assert.Equal(t, 1, up.count())
}

func TestShutdownStopsTimers(t *testing.T) {
	e := newEnv(t)

	up := newUploader(func(int) (*models.UploadAck, error) { return status(http.StatusInternalServerError) })
	q := New(e.repo, up, connected(true), WithBackoff(2, 5*unit))
	require.NoError(t, q.Start(context.Background()))
	e.addRecording(t, "r1", true)

	require.NoError(t, q.Enqueue(context.Background(), "r1"))
	require.Eventually(t, func() bool { return q.RetryScheduled("r1") }, time.Second, time.Millisecond)

	q.Shutdown()
	assert.False(t, q.RetryScheduled("r1"))
	time.Sleep(15 * unit)
	assert.Equal(t, 1, up.count())
}

func TestTimerWhileOfflineDefersToSweep(t *testing.T) {
	e := newEnv(t)

	var fail atomic.Bool
	fail.Store(true)
	up := newUploader(func(n int) (*models.UploadAck, error) {
		if fail.Load() {
			return status(http.StatusInternalServerError)
		}
		return ok(n)
	})
	conn := connected(true)
	q := e.startQueue(t, up, conn, WithBackoff(2, 5*unit))
	e.addRecording(t, "r1", true)

	require.NoError(t, q.Enqueue(context.Background(), "r1"))
	require.Eventually(t, func() bool { return q.RetryScheduled("r1") }, time.Second, time.Millisecond)
	conn.up.Store(false)

	require.Eventually(t, func() bool { return !q.RetryScheduled("r1") }, time.Second, time.Millisecond)
	time.Sleep(5 * unit)
	assert.Equal(t, 1, up.count())

	fail.Store(false)
	conn.up.Store(true)
	n, err := q.RetryAllPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	waitStatus(t, e, "r1", models.UploadUploaded)
}
