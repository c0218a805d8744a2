package platform

import "sync"

// LifecycleEvent is an application execution-context transition.
type LifecycleEvent int

const (
	EnteredBackground LifecycleEvent = iota + 1
	WillEnterForeground
)

func (e LifecycleEvent) String() string {
	switch e {
	case EnteredBackground:
		return "entered-background"
	case WillEnterForeground:
		return "will-enter-foreground"
	default:
		return "unknown"
	}
}

// Lifecycle fans out events to subscribers. Slow subscribers drop events
// rather than block the publisher.
type Lifecycle struct {
	mu   sync.Mutex
	subs map[chan LifecycleEvent]struct{}
}

func NewLifecycle() *Lifecycle {
	return &Lifecycle{subs: make(map[chan LifecycleEvent]struct{})}
}

// Subscribe returns an event channel and a cancel func that closes it.
func (l *Lifecycle) Subscribe() (<-chan LifecycleEvent, func()) {
	ch := make(chan LifecycleEvent, 8)

	l.mu.Lock()
	l.subs[ch] = struct{}{}
	l.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.subs, ch)
			l.mu.Unlock()
			close(ch)
		})
	}
}

func (l *Lifecycle) Publish(ev LifecycleEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ch := range l.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
