package livesync

import (
	"context"
	"encoding/json"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/toukan/toukan/internal/client/models"
	"github.com/toukan/toukan/internal/logging"
)

// Mode names the active refresh source.
type Mode string

const (
	ModePush Mode = "push"
	ModePoll Mode = "poll"
)

const (
	eventMemoryUpdate = "memory-update"
	defaultPageSize   = 20
	// trackedTTL bounds how long a tracked id keeps the fast cadence while it
	// has not shown up on a polled page.
	trackedTTL = 2 * time.Minute
)

type Config struct {
	PollFast          time.Duration
	PollSlow          time.Duration
	PauseWhenIdle     bool
	RepromoteInterval time.Duration
	PageSize          int
	// PushDisabled starts directly in polling mode.
	PushDisabled bool
}

// Source is the backend side of the channel.
type Source interface {
	List(ctx context.Context, p models.ListParams) (*models.MemoryList, error)
	OpenEventStream(ctx context.Context) (io.ReadCloser, error)
}

// Invalidator is notified of stale reads.
type Invalidator interface {
	InvalidateList()
	InvalidateMemory(id string)
}

type tracked struct {
	status models.MemoryStatus
	at     time.Time
}

type Channel struct {
	cfg Config
	src Source
	inv Invalidator
	log logging.Logger

	wake chan struct{}

	mu          sync.Mutex
	mode        Mode
	demotedAt   time.Time
	pagePending bool
	tracked     map[string]tracked
	lastPage    map[string]string
	polled      bool

	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

func New(cfg Config, src Source, inv Invalidator, log logging.Logger) *Channel {
	if cfg.PollFast <= 0 {
		cfg.PollFast = time.Second
	}
	if cfg.PollSlow <= 0 {
		cfg.PollSlow = 10 * time.Second
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}

	mode := ModePush
	if cfg.PushDisabled {
		mode = ModePoll
	}

	return &Channel{
		cfg:     cfg,
		src:     src,
		inv:     inv,
		log:     logging.Component(log, "livesync"),
		wake:    make(chan struct{}, 1),
		mode:    mode,
		tracked: make(map[string]tracked),
	}
}

// Start launches the refresh loop. It is a no-op if already started.
func (c *Channel) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return
	}
	c.started = true

	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go func() {
		defer close(c.done)
		c.run(ctx)
	}()
}

// Shutdown stops the loop and waits for it to exit.
func (c *Channel) Shutdown() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (c *Channel) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// AnyPending reports whether a known memory is still uploading or processing.
func (c *Channel) AnyPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.anyPendingLocked(time.Now())
}

// PollInterval is the current polling cadence; zero means paused until woken.
func (c *Channel) PollInterval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.intervalLocked(time.Now())
}

// Track records a memory status learned outside the poll, such as the
// memory id echoed by an upload. A pending status wakes the poller.
func (c *Channel) Track(id string, status models.MemoryStatus) {
	if id == "" {
		return
	}
	c.mu.Lock()
	c.tracked[id] = tracked{status: status, at: time.Now()}
	c.mu.Unlock()

	if status.IsPending() {
		c.Kick()
	}
}

// Observe feeds a list fetched by a consumer into pending tracking.
func (c *Channel) Observe(list *models.MemoryList) {
	if list == nil {
		return
	}
	pending := false
	c.mu.Lock()
	for i := range list.Items {
		m := &list.Items[i]
		c.tracked[m.ID] = tracked{status: m.Status, at: time.Now()}
		pending = pending || m.Status.IsPending()
	}
	c.mu.Unlock()

	if pending {
		c.Kick()
	}
}

// Kick wakes the poller for an immediate refresh.
func (c *Channel) Kick() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Channel) run(ctx context.Context) {
	for {
		if c.Mode() == ModePush {
			err := c.stream(ctx)
			if ctx.Err() != nil {
				return
			}
			c.demote(ctx, err)
		}

		if !c.pollLoop(ctx) {
			return
		}
	}
}

func (c *Channel) setMode(m Mode) {
	c.mu.Lock()
	c.mode = m
	if m == ModePoll {
		c.demotedAt = time.Now()
	}
	c.mu.Unlock()

	if m == ModePush {
		pushActiveGauge.Set(1)
	} else {
		pushActiveGauge.Set(0)
	}
}

func (c *Channel) demote(ctx context.Context, err error) {
	c.setMode(ModePoll)
	c.log.Warn(ctx, "event stream unavailable, falling back to polling", "error", err)
}

// stream consumes the event stream until it fails or ctx ends.
func (c *Channel) stream(ctx context.Context) error {
	body, err := c.src.OpenEventStream(ctx)
	if err != nil {
		return err
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		_ = body.Close()
	}()

	c.setMode(ModePush)
	c.log.Info(ctx, "event stream connected")
	// updates may have been missed while disconnected
	c.inv.InvalidateList()

	return readEvents(body, func(ev event) {
		c.handleEvent(ctx, ev)
	})
}

func (c *Channel) handleEvent(ctx context.Context, ev event) {
	if ev.Name != eventMemoryUpdate {
		eventsTotal.WithLabelValues("ignored").Inc()
		return
	}

	var payload models.MemoryEvent
	if err := json.Unmarshal([]byte(ev.Data), &payload); err != nil {
		eventsTotal.WithLabelValues("malformed").Inc()
		c.log.Warn(ctx, "malformed memory-update payload", "data", ev.Data, "error", err)
		return
	}

	eventsTotal.WithLabelValues("applied").Inc()
	c.inv.InvalidateList()
	if payload.MemoryID != "" {
		c.inv.InvalidateMemory(payload.MemoryID)
		if payload.Status != "" {
			c.mu.Lock()
			c.tracked[payload.MemoryID] = tracked{status: payload.Status, at: time.Now()}
			c.mu.Unlock()
		}
	}
	c.log.Debug(ctx, "memory updated", "memory_id", payload.MemoryID, "status", payload.Status)
}

// pollLoop polls until ctx ends (false) or re-promotion is due (true).
func (c *Channel) pollLoop(ctx context.Context) bool {
	for {
		c.pollOnce(ctx)
		if ctx.Err() != nil {
			return false
		}

		if promoted, ok := c.wait(ctx); !ok {
			return false
		} else if promoted {
			return true
		}
	}
}

// wait sleeps for the current cadence. It reports promoted when the
// re-promotion timer fired, and ok=false when ctx ended.
func (c *Channel) wait(ctx context.Context) (promoted bool, ok bool) {
	var tick <-chan time.Time
	if interval := c.PollInterval(); interval > 0 {
		t := time.NewTimer(interval)
		defer t.Stop()
		tick = t.C
	}

	var promote <-chan time.Time
	if d, due := c.untilRepromote(); due {
		t := time.NewTimer(d)
		defer t.Stop()
		promote = t.C
	}

	select {
	case <-ctx.Done():
		return false, false
	case <-c.wake:
	case <-tick:
	case <-promote:
		c.log.Info(ctx, "retrying event stream")
		c.setMode(ModePush)
		return true, true
	}
	return false, true
}

func (c *Channel) untilRepromote() (time.Duration, bool) {
	if c.cfg.RepromoteInterval <= 0 || c.cfg.PushDisabled {
		return 0, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	d := c.cfg.RepromoteInterval - time.Since(c.demotedAt)
	if d < 0 {
		d = 0
	}
	return d, true
}

func (c *Channel) pollOnce(ctx context.Context) {
	list, err := c.src.List(ctx, models.ListParams{Page: 1, PageSize: c.cfg.PageSize})
	if err != nil {
		if ctx.Err() == nil {
			pollsTotal.WithLabelValues("error").Inc()
			c.log.Warn(ctx, "poll failed", "error", err)
		}
		return
	}
	pollsTotal.WithLabelValues("ok").Inc()

	page := make(map[string]string, len(list.Items))
	for i := range list.Items {
		m := &list.Items[i]
		page[m.ID] = string(m.Status) + "|" + m.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}

	c.mu.Lock()
	changedIDs, moved := diff(c.lastPage, page)
	listChanged := !c.polled || moved || len(changedIDs) > 0
	c.lastPage = page
	c.polled = true
	c.pagePending = list.AnyPending()
	for i := range list.Items {
		delete(c.tracked, list.Items[i].ID)
	}
	c.mu.Unlock()

	if listChanged {
		c.inv.InvalidateList()
	}
	for _, id := range changedIDs {
		c.inv.InvalidateMemory(id)
	}
	if len(changedIDs) > 0 {
		c.log.Debug(ctx, "poll detected changes", "ids", strings.Join(changedIDs, ","))
	}
}

// diff returns ids present in both snapshots whose fingerprint changed, and
// whether any id entered or left the page.
func diff(prev, cur map[string]string) (changed []string, moved bool) {
	for id, fp := range cur {
		old, ok := prev[id]
		if !ok {
			moved = true
			continue
		}
		if old != fp {
			changed = append(changed, id)
		}
	}
	for id := range prev {
		if _, ok := cur[id]; !ok {
			moved = true
			break
		}
	}
	sort.Strings(changed)
	return changed, moved
}

func (c *Channel) anyPendingLocked(now time.Time) bool {
	if c.pagePending {
		return true
	}
	for id, t := range c.tracked {
		if now.Sub(t.at) > trackedTTL {
			delete(c.tracked, id)
			continue
		}
		if t.status.IsPending() {
			return true
		}
	}
	return false
}

func (c *Channel) intervalLocked(now time.Time) time.Duration {
	if c.anyPendingLocked(now) {
		return c.cfg.PollFast
	}
	if c.cfg.PauseWhenIdle {
		return 0
	}
	return c.cfg.PollSlow
}
