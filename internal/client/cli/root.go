package cli

import (
	"context"
	"fmt"
)

func (a *App) getStatus() string {
	s := string(a.Mode())
	if a.recorder != nil {
		snap := a.recorder.Snapshot()
		switch {
		case snap.Recording && snap.Paused:
			s += " paused"
		case snap.Recording:
			s += " rec"
		}
	}
	if s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}

// Root runs the interactive loop until the user exits.
func (a *App) Root(ctx context.Context) {
	fmt.Fprintln(a.out, "Welcome to toukan (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, a.reader)
}
