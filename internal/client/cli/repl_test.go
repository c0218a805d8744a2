package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"testing"
)

type fakeExec struct {
	calls []string
}

func (f *fakeExec) rec(name string, args ...string) error {
	f.calls = append(f.calls, strings.TrimSpace(name+" "+strings.Join(args, " ")))
	return nil
}

func (f *fakeExec) Record(context.Context) error     { return f.rec("record") }
func (f *fakeExec) Stop(context.Context) error       { return f.rec("stop") }
func (f *fakeExec) Pause(context.Context) error      { return f.rec("pause") }
func (f *fakeExec) Resume(context.Context) error     { return f.rec("resume") }
func (f *fakeExec) Recordings(context.Context) error { return f.rec("recordings") }
func (f *fakeExec) Retry(_ context.Context, id string) error {
	return f.rec("retry", id)
}
func (f *fakeExec) RetryAll(context.Context) error { return f.rec("retry-all") }
func (f *fakeExec) Delete(_ context.Context, id string) error {
	return f.rec("delete", id)
}
func (f *fakeExec) Memories(_ context.Context, args []string) error {
	return f.rec("memories", args...)
}
func (f *fakeExec) Show(_ context.Context, id string) error {
	return f.rec("show", id)
}
func (f *fakeExec) Reprocess(_ context.Context, id string) error {
	return f.rec("reprocess", id)
}
func (f *fakeExec) Forget(_ context.Context, id string) error {
	return f.rec("forget", id)
}
func (f *fakeExec) Link(context.Context) error    { return f.rec("link") }
func (f *fakeExec) Watch(context.Context) error   { return f.rec("watch") }
func (f *fakeExec) Unwatch(context.Context) error { return f.rec("unwatch") }
func (f *fakeExec) Status(context.Context) error  { return f.rec("status") }

func capturePrintln(t *testing.T) *[]string {
	t.Helper()
	var out []string
	orig := printlnFn
	printlnFn = func(a ...any) (int, error) {
		out = append(out, fmt.Sprint(a...))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = orig })
	return &out
}

func TestRunREPL_Dispatch(t *testing.T) {
	capturePrintln(t)

	input := strings.Join([]string{
		"help",
		"record",
		"pause",
		"resume",
		"stop",
		"l",
		"retry r1",
		"retry-all",
		"delete r1",
		"memories page=2 standup",
		"show m1",
		"reprocess m1",
		"forget m1",
		"link",
		"watch",
		"unwatch",
		"status",
		"exit",
		"record",
	}, "\n")

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "status" }, bufio.NewReader(strings.NewReader(input)))

	want := []string{
		"record", "pause", "resume", "stop", "recordings",
		"retry r1", "retry-all", "delete r1", "memories page=2 standup",
		"show m1", "reprocess m1", "forget m1", "link", "watch", "unwatch", "status",
	}
	if strings.Join(exec.calls, ",") != strings.Join(want, ",") {
		t.Fatalf("calls mismatch:\n got %v\nwant %v", exec.calls, want)
	}
}

func TestRunREPL_UsageAndUnknown(t *testing.T) {
	out := capturePrintln(t)

	input := "retry\nshow a b\nfoobar\n\nquit\n"
	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "" }, bufio.NewReader(strings.NewReader(input)))

	if len(exec.calls) != 0 {
		t.Fatalf("unexpected calls: %v", exec.calls)
	}
	joined := strings.Join(*out, "\n")
	for _, s := range []string{"Usage: retry <id>", "Usage: show <id>", "Unknown command:foobar", "Bye!"} {
		if !strings.Contains(joined, s) {
			t.Fatalf("output missing %q:\n%s", s, joined)
		}
	}
}

func TestRunREPL_StopsOnEOFAndCancel(t *testing.T) {
	capturePrintln(t)

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "" }, bufio.NewReader(strings.NewReader("record")))
	if len(exec.calls) != 1 {
		t.Fatalf("want partial last line executed, got %v", exec.calls)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	exec = &fakeExec{}
	runREPL(ctx, exec, func() string { return "" }, bufio.NewReader(strings.NewReader("record\n")))
	if len(exec.calls) != 0 {
		t.Fatalf("cancelled loop ran %v", exec.calls)
	}
}
