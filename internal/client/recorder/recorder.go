// Package recorder captures audio into freshly named files under the audio
// directory and exposes elapsed time and a normalized input level while it
// runs.
//
// Failures to start never surface as errors; they are logged and the
// recorder stays idle. Interruptions pause the capture and keep the
// accumulated time. A capture the host terminates is finalized on the next
// Stop with whatever was written.
package recorder

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/toukan/toukan/internal/client/platform"
	"github.com/toukan/toukan/internal/logging"
)

const meterInterval = 100 * time.Millisecond

// Result is a finished capture.
type Result struct {
	// FilePath is relative to the audio directory.
	FilePath  string
	StartedAt time.Time
	Duration  float64
}

// Snapshot is the observable state of the recorder.
type Snapshot struct {
	Recording bool
	Paused    bool
	Elapsed   time.Duration
	Level     float64
}

type Recorder struct {
	dev    AudioDevice
	dir    string
	exec   platform.ExtendedExecution
	budget time.Duration
	log    logging.Logger
	now    func() time.Time

	mu           sync.Mutex
	capture      Capture
	fileName     string
	recording    bool
	paused       bool
	interrupted  bool
	hostStopped  bool
	accumulated  time.Duration
	startedAt    time.Time
	segmentStart time.Time
	level        float64
	background   platform.Handle
	stopMeter    chan struct{}
}

type Option func(*Recorder)

// WithBackgroundBudget sets the extended-execution budget requested when the
// process is backgrounded mid-recording.
func WithBackgroundBudget(d time.Duration) Option {
	return func(r *Recorder) { r.budget = d }
}

func WithExtendedExecution(e platform.ExtendedExecution) Option {
	return func(r *Recorder) { r.exec = e }
}

func WithLogger(l logging.Logger) Option {
	return func(r *Recorder) { r.log = logging.Component(l, "recorder") }
}

func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// New returns a recorder writing into dir.
func New(dev AudioDevice, dir string, opts ...Option) *Recorder {
	r := &Recorder{
		dev:    dev,
		dir:    dir,
		exec:   platform.Budgeted{},
		budget: 30 * time.Second,
		log:    logging.Component(logging.Nop(), "recorder"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start begins capturing into a new file. If already recording or the device
// cannot be configured it only logs.
func (r *Recorder) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.recording {
		r.log.Warn(ctx, "start ignored, already recording", "file", r.fileName)
		return
	}

	name := FileName(r.now())
	c, err := r.dev.Open(filepath.Join(r.dir, name))
	if err != nil {
		r.log.Error(ctx, "audio device not configured", "error", err)
		return
	}
	if err := c.Start(); err != nil {
		_ = c.Close()
		r.log.Error(ctx, "audio capture did not start", "error", err)
		return
	}

	r.capture = c
	r.fileName = name
	r.recording = true
	r.paused = false
	r.interrupted = false
	r.hostStopped = false
	r.accumulated = 0
	r.startedAt = r.now()
	r.segmentStart = r.startedAt
	r.level = 0
	r.stopMeter = make(chan struct{})
	go r.meter(r.stopMeter)

	r.log.Info(ctx, "recording started", "file", name)
}

// Stop finalizes the capture. ok is false if nothing was recording.
func (r *Recorder) Stop() (Result, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.recording {
		return Result{}, false
	}

	elapsed := r.elapsedLocked()
	if err := r.capture.Close(); err != nil {
		r.log.Warn(context.Background(), "finalize capture", "file", r.fileName, "error", err)
	}
	close(r.stopMeter)
	r.endBackgroundLocked()

	name, startedAt := r.fileName, r.startedAt
	r.capture = nil
	r.fileName = ""
	r.recording = false
	r.paused = false
	r.interrupted = false
	r.hostStopped = false
	r.accumulated = 0
	r.level = 0

	if name == "" {
		return Result{}, false
	}
	r.log.Info(context.Background(), "recording stopped", "file", name, "duration", elapsed)
	return Result{FilePath: name, StartedAt: startedAt, Duration: elapsed.Seconds()}, true
}

// Pause is the user-driven pause.
func (r *Recorder) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pauseLocked()
	r.interrupted = false
}

// Resume is the user-driven resume.
func (r *Recorder) Resume() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resumeLocked()
}

func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		Recording: r.recording,
		Paused:    r.paused,
		Elapsed:   r.elapsedLocked(),
		Level:     r.level,
	}
}

// HandleInterruption pauses on Began and resumes on Ended when the platform
// says so. A failed resume leaves the recorder paused.
func (r *Recorder) HandleInterruption(ev Interruption) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.recording {
		return
	}
	switch ev.Kind {
	case InterruptionBegan:
		if !r.paused {
			r.pauseLocked()
			r.interrupted = true
			r.log.Info(context.Background(), "recording interrupted")
		}
	case InterruptionEnded:
		if !r.interrupted || !ev.ShouldResume {
			return
		}
		if err := r.resumeLocked(); err != nil {
			r.log.Warn(context.Background(), "resume after interruption failed, staying paused", "error", err)
			return
		}
		r.log.Info(context.Background(), "recording resumed after interruption")
	}
}

// HandleRouteChange re-configures input when the current route disappears.
func (r *Recorder) HandleRouteChange(ev RouteChange) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.recording || ev.Reason != RouteOldDeviceUnavailable {
		return
	}
	if err := r.capture.Reroute(); err != nil {
		r.log.Warn(context.Background(), "reroute failed", "error", err)
		return
	}
	r.log.Info(context.Background(), "audio route changed, recording continues")
}

// HandleLifecycle requests bounded background time while recording and
// releases it on return to the foreground.
func (r *Recorder) HandleLifecycle(ctx context.Context, ev platform.LifecycleEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev {
	case platform.EnteredBackground:
		if !r.recording {
			return
		}
		if r.background == nil {
			r.background = r.exec.Begin(ctx, "recording", r.budget)
		}
		if r.capture.Active() || (r.paused && !r.hostStopped) {
			return
		}
		r.log.Warn(ctx, "capture stopped on entering background, restarting")
		var err error
		if r.paused {
			err = r.resumeLocked()
		} else {
			err = r.capture.Start()
		}
		if err != nil {
			r.log.Error(ctx, "background restart failed", "error", err)
			return
		}
		r.hostStopped = false
	case platform.WillEnterForeground:
		r.endBackgroundLocked()
	}
}

// Watch routes platform events to the recorder until ctx is done. Nil
// channels are ignored.
func (r *Recorder) Watch(ctx context.Context, interruptions <-chan Interruption, routes <-chan RouteChange, lifecycle <-chan platform.LifecycleEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-interruptions:
			if !ok {
				interruptions = nil
				continue
			}
			r.HandleInterruption(ev)
		case ev, ok := <-routes:
			if !ok {
				routes = nil
				continue
			}
			r.HandleRouteChange(ev)
		case ev, ok := <-lifecycle:
			if !ok {
				lifecycle = nil
				continue
			}
			r.HandleLifecycle(ctx, ev)
		}
	}
}

func (r *Recorder) meter(stop <-chan struct{}) {
	ticker := time.NewTicker(meterInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.mu.Lock()
			if r.recording && !r.paused {
				if !r.capture.Active() {
					// host terminated the capture; keep what was recorded
					r.pauseLocked()
					r.hostStopped = true
					r.log.Warn(context.Background(), "capture terminated by host", "file", r.fileName)
				} else {
					r.level = NormalizeLevel(r.capture.LevelDB())
				}
			}
			r.mu.Unlock()
		}
	}
}

func (r *Recorder) pauseLocked() {
	if !r.recording || r.paused {
		return
	}
	if err := r.capture.Pause(); err != nil {
		r.log.Warn(context.Background(), "pause capture", "error", err)
	}
	r.accumulated += r.now().Sub(r.segmentStart)
	r.paused = true
	r.level = 0
}

func (r *Recorder) resumeLocked() error {
	if !r.recording || !r.paused {
		return nil
	}
	if err := r.capture.Start(); err != nil {
		return err
	}
	r.paused = false
	r.interrupted = false
	r.hostStopped = false
	r.segmentStart = r.now()
	return nil
}

func (r *Recorder) elapsedLocked() time.Duration {
	if !r.recording {
		return 0
	}
	if r.paused {
		return r.accumulated
	}
	return r.accumulated + r.now().Sub(r.segmentStart)
}

func (r *Recorder) endBackgroundLocked() {
	if r.background != nil {
		r.background.End()
		r.background = nil
	}
}
