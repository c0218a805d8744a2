package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface is the command surface the REPL dispatches to. The real App
// satisfies it; tests provide a lightweight stub.
type execIface interface {
	Record(ctx context.Context) error
	Stop(ctx context.Context) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Recordings(ctx context.Context) error
	Retry(ctx context.Context, id string) error
	RetryAll(ctx context.Context) error
	Delete(ctx context.Context, id string) error
	Memories(ctx context.Context, args []string) error
	Show(ctx context.Context, id string) error
	Reprocess(ctx context.Context, id string) error
	Forget(ctx context.Context, id string) error
	Link(ctx context.Context) error
	Watch(ctx context.Context) error
	Unwatch(ctx context.Context) error
	Status(ctx context.Context) error
}

const helpText = `Available commands:
  record | stop | pause | resume      capture audio
  (l)ist                              local recordings
  retry <id> | retry-all              resubmit uploads
  delete <id>                         remove a local recording
  memories [page=N] [status=S] [text] browse memories
  show <id> | reprocess <id>          memory details, reprocess
  forget <id>                         delete a memory on the server
  link                                match uploads to memories
  watch | unwatch                     print memory updates
  status | exit`

// runREPL reads one command per line from reader and dispatches it to a.
// The loop exits on EOF, on "exit" or "quit", or when ctx ends. Handler
// errors are ignored here; handlers report their own errors.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for ctx.Err() == nil {
		printlnFn(fmt.Sprintf("toukan %s> ", statusFn()))
		line, err := readLine(reader)
		if err != nil {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		withID := func(fn func(context.Context, string) error) {
			if len(args) != 1 {
				printlnFn(fmt.Sprintf("Usage: %s <id>", cmd))
				return
			}
			_ = fn(ctx, args[0])
		}

		switch cmd {
		case "help":
			printlnFn(helpText)
		case "record", "start":
			_ = a.Record(ctx)
		case "stop":
			_ = a.Stop(ctx)
		case "pause":
			_ = a.Pause(ctx)
		case "resume":
			_ = a.Resume(ctx)
		case "l", "list", "recordings":
			_ = a.Recordings(ctx)
		case "retry":
			withID(a.Retry)
		case "retry-all":
			_ = a.RetryAll(ctx)
		case "delete":
			withID(a.Delete)
		case "memories", "m":
			_ = a.Memories(ctx, args)
		case "show":
			withID(a.Show)
		case "reprocess":
			withID(a.Reprocess)
		case "forget":
			withID(a.Forget)
		case "link":
			_ = a.Link(ctx)
		case "watch":
			_ = a.Watch(ctx)
		case "unwatch":
			_ = a.Unwatch(ctx)
		case "status":
			_ = a.Status(ctx)
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}

var _ execIface = (*App)(nil)
