package cli

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"github.com/toukan/toukan/internal/client/cache"
	"github.com/toukan/toukan/internal/client/client"
	"github.com/toukan/toukan/internal/client/config"
	"github.com/toukan/toukan/internal/client/connectivity"
	"github.com/toukan/toukan/internal/client/livesync"
	"github.com/toukan/toukan/internal/client/models"
	"github.com/toukan/toukan/internal/client/platform"
	"github.com/toukan/toukan/internal/client/recorder"
	"github.com/toukan/toukan/internal/client/repositories/recordings"
	"github.com/toukan/toukan/internal/client/services"
	"github.com/toukan/toukan/internal/client/uploads"
	"github.com/toukan/toukan/internal/common"
	"github.com/toukan/toukan/internal/filex"
	"github.com/toukan/toukan/internal/logging"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

const lockFile = "toukan.lock"

// App owns every client component for the lifetime of one process.
type App struct {
	config *config.Config
	log    logging.Logger
	reader *bufio.Reader
	out    io.Writer

	recordings services.RecordingService
	memories   services.MemoryService

	recorder  *recorder.Recorder
	queue     *uploads.Queue
	monitor   *connectivity.Monitor
	channel   *livesync.Channel
	cache     *cache.Cache
	lifecycle *platform.Lifecycle
	exec      *platform.Tracker

	db   *sql.DB
	lock *flock.Flock

	mu        sync.Mutex
	mode      Mode
	stopWatch func()
}

// NewApp opens local storage under the configured data dir and wires the
// components. It fails with common.ErrAlreadyRunning if another process holds
// the data dir.
func NewApp(ctx context.Context, c *config.Config, log logging.Logger) (*App, error) {
	dataDir, err := filex.EnsureDir(c.DataDir)
	if err != nil {
		return nil, err
	}
	audioDir, err := filex.EnsureDir(c.AudioPath())
	if err != nil {
		return nil, err
	}

	lock := flock.New(filepath.Join(dataDir, lockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock data dir: %w", err)
	}
	if !locked {
		return nil, common.ErrAlreadyRunning
	}

	db, err := client.InitDatabase(ctx, c.DBPath())
	if err != nil {
		_ = lock.Unlock()
		log.Error(ctx, "error initializing database", "error", err)
		return nil, err
	}

	a, err := wire(c, log, db, audioDir)
	if err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, err
	}
	a.lock = lock
	return a, nil
}

func wire(c *config.Config, log logging.Logger, db *sql.DB, audioDir string) (*App, error) {
	a := &App{
		config:    c,
		log:       logging.Component(log, "cli"),
		reader:    bufio.NewReader(os.Stdin),
		out:       os.Stdout,
		db:        db,
		lifecycle: platform.NewLifecycle(),
		exec:      &platform.Tracker{},
		mode:      ModeOffline,
	}

	api, err := client.New(c.BaseURL,
		client.WithHTTPTimeout(c.RequestTimeout),
		client.WithAPIKey(c.APIKey),
		client.WithLogger(log),
		client.WithDebugLogging(c.LogLevel == "debug"),
	)
	if err != nil {
		return nil, err
	}

	a.cache, err = cache.New()
	if err != nil {
		return nil, err
	}

	a.monitor = connectivity.New(api, c.OnlineCheckInterval, false, log)
	a.channel = livesync.New(livesync.Config{
		PollFast:          c.PollFast,
		PollSlow:          c.PollSlow,
		PauseWhenIdle:     c.PauseWhenIdle,
		RepromoteInterval: c.RepromoteInterval,
	}, api, a.cache, log)

	repo := recordings.NewSQLiteRepository(db, audioDir, log)
	a.queue = uploads.New(repo, api, a.monitor,
		uploads.WithMaxRetries(c.MaxRetries),
		uploads.WithBackoff(c.BackoffBase, c.BackoffUnit),
		uploads.WithRequestTimeout(c.RequestTimeout),
		uploads.WithExtendedExecution(a.exec),
		uploads.WithLogger(log),
		uploads.WithResultObserver(a.onUploadResult),
	)

	source := recorder.SilenceSource
	if c.CaptureCommand != "" {
		source = recorder.CommandSource(c.CaptureCommand)
	}
	a.recorder = recorder.New(&recorder.FileDevice{NewSource: source}, audioDir,
		recorder.WithBackgroundBudget(c.BackgroundBudget),
		recorder.WithExtendedExecution(a.exec),
		recorder.WithLogger(log),
	)

	a.recordings = services.NewRecordingService(a.recorder, repo, a.queue, log)
	a.memories = services.NewMemoryService(api, a.cache, a.channel, log)
	return a, nil
}

// Run starts background work, blocks in the REPL and shuts everything down
// when the user exits or ctx ends.
func (a *App) Run(ctx context.Context) error {
	if err := a.start(ctx); err != nil {
		return err
	}
	defer a.Close()

	a.Root(ctx)
	return nil
}

func (a *App) start(ctx context.Context) error {
	a.monitor.OnChange(func(connected bool) {
		if connected {
			a.setMode(ModeOnline)
		} else {
			a.setMode(ModeOffline)
		}
	})
	a.monitor.OnRestore(func() {
		n, err := a.queue.RetryAllPending(ctx)
		if err != nil {
			a.log.Warn(ctx, "retry sweep after reconnect failed", "error", err)
			return
		}
		a.log.Info(ctx, "connection restored", "resubmitted", n)
		a.channel.Kick()
	})
	if err := a.queue.Start(ctx); err != nil {
		return fmt.Errorf("start upload queue: %w", err)
	}
	// an initial success fires OnRestore, which sweeps pending uploads
	a.monitor.Probe(ctx)
	a.channel.Start(ctx)

	go a.StartOnlineStatusWatcher(ctx)

	platform.NotifySignals(ctx, a.lifecycle)
	events, cancel := a.lifecycle.Subscribe()
	go func() {
		defer cancel()
		a.recorder.Watch(ctx, nil, nil, events)
	}()

	foreground, cancelForeground := a.lifecycle.Subscribe()
	go func() {
		defer cancelForeground()
		a.watchForeground(ctx, foreground)
	}()
	return nil
}

// StartOnlineStatusWatcher probes the backend until ctx ends.
func (a *App) StartOnlineStatusWatcher(ctx context.Context) {
	a.monitor.Run(ctx)
}

// watchForeground runs a retry sweep whenever the process returns to the
// foreground.
func (a *App) watchForeground(ctx context.Context, events <-chan platform.LifecycleEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev != platform.WillEnterForeground || !a.monitor.Connected() {
				continue
			}
			if _, err := a.queue.RetryAllPending(ctx); err != nil {
				a.log.Warn(ctx, "retry sweep on foreground failed", "error", err)
			}
		}
	}
}

// onUploadResult feeds the echoed memory id to the sync channel so the new
// memory is polled at the fast cadence.
func (a *App) onUploadResult(r uploads.Result) {
	switch {
	case r.Status == models.UploadUploaded:
		a.cache.InvalidateList()
		a.channel.Track(r.MemoryID, models.MemoryUploading)
	case errors.Is(r.Err, uploads.ErrRetriesExhausted):
		a.log.Warn(context.Background(), "upload gave up", "id", r.ID, "retries", r.RetryCount)
	}
}

// Close finalizes a running capture and releases every resource.
func (a *App) Close() {
	ctx := context.Background()
	if a.recorder != nil && a.recorder.Snapshot().Recording {
		if rec, err := a.recordings.StopRecording(ctx); err == nil {
			a.log.Info(ctx, "recording saved on exit", "id", rec.ID)
		}
	}

	a.unwatch()
	if a.channel != nil {
		a.channel.Shutdown()
	}
	if a.queue != nil {
		a.queue.Shutdown()
	}
	if a.cache != nil {
		a.cache.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
	if a.lock != nil {
		_ = a.lock.Unlock()
	}
}

func (a *App) Mode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

func (a *App) setMode(mode Mode) {
	a.mu.Lock()
	changed := a.mode != mode
	a.mode = mode
	a.mu.Unlock()

	if changed {
		a.log.Info(context.Background(), fmt.Sprintf("switched to %s mode", mode))
	}
}
