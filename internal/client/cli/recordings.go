package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/toukan/toukan/internal/client/services"
)

// Record starts a capture. Device problems are logged and leave the
// recorder idle.
func (a *App) Record(ctx context.Context) error {
	snap := a.recordings.StartRecording(ctx)
	if !snap.Recording {
		fmt.Fprintln(a.out, "Recording did not start, see log for details")
		return nil
	}
	fmt.Fprintln(a.out, "Recording... (stop, pause, resume)")
	return nil
}

// Stop finalizes the capture and queues it for upload.
func (a *App) Stop(ctx context.Context) error {
	rec, err := a.recordings.StopRecording(ctx)
	if errors.Is(err, services.ErrNotRecording) {
		fmt.Fprintln(a.out, "Not recording")
		return nil
	}
	if err != nil {
		a.log.Error(ctx, "stop recording", "error", err)
		return err
	}
	fmt.Fprintf(a.out, "Saved %s (%s), queued for upload\n", rec.ID, formatSeconds(rec.Duration))
	return nil
}

func (a *App) Pause(ctx context.Context) error {
	a.recorder.Pause()
	a.printLevel()
	return nil
}

func (a *App) Resume(ctx context.Context) error {
	if err := a.recorder.Resume(); err != nil {
		a.log.Error(ctx, "resume recording", "error", err)
		return err
	}
	a.printLevel()
	return nil
}

func (a *App) printLevel() {
	s := a.recorder.Snapshot()
	switch {
	case !s.Recording:
		fmt.Fprintln(a.out, "Not recording")
	case s.Paused:
		fmt.Fprintf(a.out, "Paused at %s\n", s.Elapsed.Round(100*time.Millisecond))
	default:
		fmt.Fprintf(a.out, "Recording %s  level %3.0f%%\n", s.Elapsed.Round(100*time.Millisecond), s.Level*100)
	}
}

// Recordings lists local recordings, newest first.
func (a *App) Recordings(ctx context.Context) error {
	recs, err := a.recordings.Recordings(ctx)
	if err != nil {
		a.log.Error(ctx, "list recordings", "error", err)
		return err
	}
	if len(recs) == 0 {
		fmt.Fprintln(a.out, "No recordings")
		return nil
	}
	for _, r := range recs {
		fmt.Fprintln(a.out, formatRecording(r))
	}
	return nil
}

// Retry resets the retry budget of one recording and attempts it now.
func (a *App) Retry(ctx context.Context, id string) error {
	if err := a.recordings.Retry(ctx, id); err != nil {
		a.log.Error(ctx, "retry recording", "id", id, "error", err)
		return err
	}
	fmt.Fprintf(a.out, "Retrying %s\n", id)
	return nil
}

// RetryAll resubmits every pending or failed recording under its ceiling.
func (a *App) RetryAll(ctx context.Context) error {
	if !a.monitor.Connected() {
		fmt.Fprintln(a.out, "Offline, uploads resume when the connection returns")
		return nil
	}
	n, err := a.queue.RetryAllPending(ctx)
	if err != nil {
		a.log.Error(ctx, "retry all", "error", err)
		return err
	}
	fmt.Fprintf(a.out, "Resubmitted %d recording(s)\n", n)
	return nil
}

// Delete removes a recording and its audio after confirmation.
func (a *App) Delete(ctx context.Context, id string) error {
	if !Confirm(a.reader, fmt.Sprintf("Delete recording %s and its audio?", id), a.out) {
		return nil
	}
	if err := a.recordings.Delete(ctx, id); err != nil {
		a.log.Error(ctx, "delete recording", "id", id, "error", err)
		return err
	}
	fmt.Fprintln(a.out, "Deleted")
	return nil
}
