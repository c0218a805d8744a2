//go:build unix

package platform

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// NotifySignals maps job control onto lifecycle events until ctx is done.
// SIGTSTP publishes EnteredBackground and then stops the process as usual;
// SIGCONT publishes WillEnterForeground.
func NotifySignals(ctx context.Context, l *Lifecycle) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGCONT, syscall.SIGTSTP)

	go func() {
		defer signal.Stop(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-ch:
				switch sig {
				case syscall.SIGTSTP:
					l.Publish(EnteredBackground)
					// re-raise with the default action so the shell sees a stop
					signal.Reset(syscall.SIGTSTP)
					_ = syscall.Kill(os.Getpid(), syscall.SIGTSTP)
				case syscall.SIGCONT:
					signal.Notify(ch, syscall.SIGTSTP)
					l.Publish(WillEnterForeground)
				}
			}
		}
	}()
}
