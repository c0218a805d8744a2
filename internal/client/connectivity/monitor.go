// Package connectivity tracks backend reachability and announces when it
// comes back.
package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/toukan/toukan/internal/logging"
)

const probeTimeout = 3 * time.Second

var onlineGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "toukan_client",
	Name:      "online",
	Help:      "1 while the backend is considered reachable.",
})

// Pinger probes the backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Monitor holds the connected flag. It is updated by its own probe loop (Run)
// and by external path-change notifications (Update). Every false→true
// transition runs the OnRestore callbacks; there is no debouncing.
type Monitor struct {
	pinger   Pinger
	interval time.Duration
	log      logging.Logger

	mu        sync.Mutex
	connected bool
	onRestore []func()
	onChange  []func(bool)
}

func New(p Pinger, interval time.Duration, initial bool, log logging.Logger) *Monitor {
	m := &Monitor{
		pinger:    p,
		interval:  interval,
		log:       logging.Component(log, "connectivity"),
		connected: initial,
	}
	setGauge(initial)
	return m
}

func (m *Monitor) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// OnRestore registers fn to run on every false→true transition.
func (m *Monitor) OnRestore(fn func()) {
	m.mu.Lock()
	m.onRestore = append(m.onRestore, fn)
	m.mu.Unlock()
}

// OnChange registers fn to run on every transition in either direction.
func (m *Monitor) OnChange(fn func(connected bool)) {
	m.mu.Lock()
	m.onChange = append(m.onChange, fn)
	m.mu.Unlock()
}

// Update records a new reachability state. Callbacks run synchronously on the
// caller's goroutine, outside the lock.
func (m *Monitor) Update(connected bool) {
	m.mu.Lock()
	if m.connected == connected {
		m.mu.Unlock()
		return
	}
	m.connected = connected
	restore := append([]func(){}, m.onRestore...)
	change := append([]func(bool){}, m.onChange...)
	m.mu.Unlock()

	setGauge(connected)
	m.log.Info(context.Background(), "connectivity changed", "connected", connected)

	for _, fn := range change {
		fn(connected)
	}
	if connected {
		for _, fn := range restore {
			fn()
		}
	}
}

// Run probes the backend every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	if m.pinger == nil || m.interval <= 0 {
		return
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Probe(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Probe performs a single reachability check and applies the result.
func (m *Monitor) Probe(ctx context.Context) bool {
	pctx, cancel := context.WithTimeout(ctx, probeTimeout)
	err := m.pinger.Ping(pctx)
	cancel()

	if ctx.Err() != nil {
		return m.Connected()
	}
	if err != nil {
		m.log.Debug(ctx, "probe failed", "error", err)
	}
	m.Update(err == nil)
	return err == nil
}

func setGauge(connected bool) {
	if connected {
		onlineGauge.Set(1)
	} else {
		onlineGauge.Set(0)
	}
}
