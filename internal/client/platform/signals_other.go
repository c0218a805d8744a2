//go:build !unix

package platform

import "context"

// NotifySignals is a no-op where job-control signals do not exist.
func NotifySignals(ctx context.Context, l *Lifecycle) {}
