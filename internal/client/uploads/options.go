package uploads

import (
	"time"

	"github.com/toukan/toukan/internal/client/platform"
	"github.com/toukan/toukan/internal/logging"
)

// Option configures a Queue in New.
type Option func(*Queue)

// WithMaxRetries sets the retry ceiling.
func WithMaxRetries(n int) Option {
	return func(q *Queue) { q.maxRetries = n }
}

// WithBackoff sets the exponential base and the unit delay.
func WithBackoff(base float64, unit time.Duration) Option {
	return func(q *Queue) {
		q.backoffBase = base
		q.backoffUnit = unit
	}
}

// WithRequestTimeout bounds each delivery attempt.
func WithRequestTimeout(d time.Duration) Option {
	return func(q *Queue) { q.timeout = d }
}

func WithExtendedExecution(e platform.ExtendedExecution) Option {
	return func(q *Queue) { q.exec = e }
}

func WithLogger(l logging.Logger) Option {
	return func(q *Queue) { q.log = logging.Component(l, "uploads") }
}

// WithResultObserver registers fn to receive every attempt outcome. fn runs on
// the attempt's goroutine and must not block.
func WithResultObserver(fn func(Result)) Option {
	return func(q *Queue) { q.onResult = fn }
}
