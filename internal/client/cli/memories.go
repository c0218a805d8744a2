package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/toukan/toukan/internal/client/cache"
	"github.com/toukan/toukan/internal/client/livesync"
	"github.com/toukan/toukan/internal/client/models"
	"github.com/toukan/toukan/internal/common"
)

// linkPageSize covers the memories a recent upload can map to.
const linkPageSize = 100

// Memories prints a page of remote memories.
// Usage: memories [page=N] [size=N] [status=S] [search words]
func (a *App) Memories(ctx context.Context, args []string) error {
	p, err := parseListArgs(args)
	if err != nil {
		fmt.Fprintln(a.out, err)
		return err
	}

	list, err := a.memories.List(ctx, p)
	if err != nil {
		a.reportRemote(ctx, "list memories", err)
		return err
	}
	if len(list.Items) == 0 {
		fmt.Fprintln(a.out, "No memories")
		return nil
	}
	for i := range list.Items {
		fmt.Fprintln(a.out, formatMemoryLine(&list.Items[i]))
	}
	fmt.Fprintf(a.out, "page %d, %d total", list.Page, list.Total)
	if list.HasNext {
		fmt.Fprintf(a.out, ", next: memories page=%d", list.Page+1)
	}
	fmt.Fprintln(a.out)
	return nil
}

func (a *App) Show(ctx context.Context, id string) error {
	m, err := a.memories.Get(ctx, id)
	if err != nil {
		a.reportRemote(ctx, "get memory", err)
		return err
	}
	fmt.Fprint(a.out, formatMemory(m))
	return nil
}

// Reprocess asks the backend to run a memory through processing again.
func (a *App) Reprocess(ctx context.Context, id string) error {
	m, err := a.memories.Retry(ctx, id)
	if err != nil {
		a.reportRemote(ctx, "reprocess memory", err)
		return err
	}
	fmt.Fprintf(a.out, "%s is %s\n", m.ID, m.Status)
	return nil
}

// Forget deletes a memory on the backend.
func (a *App) Forget(ctx context.Context, id string) error {
	if !Confirm(a.reader, fmt.Sprintf("Delete memory %s on the server?", id), a.out) {
		return nil
	}
	if err := a.memories.Delete(ctx, id); err != nil {
		a.reportRemote(ctx, "delete memory", err)
		return err
	}
	fmt.Fprintln(a.out, "Deleted")
	return nil
}

// Link attributes uploaded recordings without an echoed memory id to
// memories by creation time.
func (a *App) Link(ctx context.Context) error {
	list, err := a.memories.List(ctx, models.ListParams{Page: 1, PageSize: linkPageSize})
	if err != nil {
		a.reportRemote(ctx, "list memories", err)
		return err
	}
	n, err := a.recordings.Correlate(ctx, list.Items)
	if err != nil {
		a.log.Error(ctx, "link recordings", "error", err)
		return err
	}
	fmt.Fprintf(a.out, "Linked %d recording(s)\n", n)
	return nil
}

func (a *App) reportRemote(ctx context.Context, op string, err error) {
	switch {
	case errors.Is(err, common.ErrNotFound):
		fmt.Fprintln(a.out, "Not found")
	case errors.Is(err, common.ErrUnavailable):
		fmt.Fprintln(a.out, "Server unavailable")
	default:
		a.log.Error(ctx, op, "error", err)
	}
}

// Watch prints a notice whenever cached memories go stale, until Unwatch.
func (a *App) Watch(ctx context.Context) error {
	a.mu.Lock()
	if a.stopWatch != nil {
		a.mu.Unlock()
		fmt.Fprintln(a.out, "Already watching")
		return nil
	}
	events, cancel := a.cache.Subscribe()
	a.stopWatch = cancel
	a.mu.Unlock()

	go a.printInvalidations(events)
	fmt.Fprintln(a.out, "Watching for memory updates (unwatch to stop)")
	return nil
}

func (a *App) Unwatch(ctx context.Context) error {
	a.unwatch()
	return nil
}

func (a *App) unwatch() {
	a.mu.Lock()
	cancel := a.stopWatch
	a.stopWatch = nil
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (a *App) printInvalidations(events <-chan cache.Invalidation) {
	for inv := range events {
		if inv.MemoryID != "" {
			fmt.Fprintf(a.out, "* memory %s updated\n", inv.MemoryID)
		} else if inv.List {
			fmt.Fprintln(a.out, "* memory list changed")
		}
	}
}

// Status prints connectivity, sync mode and queue state.
func (a *App) Status(ctx context.Context) error {
	fmt.Fprintf(a.out, "connection: %s\n", a.Mode())
	mode := a.channel.Mode()
	fmt.Fprintf(a.out, "sync: %s", mode)
	if mode == livesync.ModePoll {
		if iv := a.channel.PollInterval(); iv > 0 {
			fmt.Fprintf(a.out, " (every %s)", iv)
		} else {
			fmt.Fprint(a.out, " (paused while idle)")
		}
	}
	fmt.Fprintln(a.out)
	fmt.Fprintf(a.out, "processing: %t\n", a.channel.AnyPending())
	fmt.Fprintf(a.out, "background grants open: %d\n", a.exec.Active())
	a.printLevel()
	return nil
}
