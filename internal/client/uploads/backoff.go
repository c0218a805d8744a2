package uploads

import (
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryDelay returns the wait before the automatic retry that follows the
// retryCount-th failure: unit * base^(retryCount-1). With base 2 and a 1s
// unit that is 1s, 2s, 4s, 8s, so the first retry follows one unit after
// the first failure. Applying base^retryCount to the already incremented
// count would give 2s, 4s, 8s, 16s instead.
func RetryDelay(retryCount int, base float64, unit time.Duration) time.Duration {
	if retryCount < 1 {
		retryCount = 1
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = unit
	b.Multiplier = base
	b.RandomizationFactor = 0
	b.MaxInterval = time.Duration(math.MaxInt64)
	b.MaxElapsedTime = 0
	b.Reset()

	d := b.NextBackOff()
	for i := 1; i < retryCount; i++ {
		d = b.NextBackOff()
	}
	return d
}
