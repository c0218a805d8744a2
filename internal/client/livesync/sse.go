package livesync

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// event is one dispatched server-sent event.
type event struct {
	Name string
	Data string
	ID   string
}

var errStreamEnded = errors.New("event stream ended")

// readEvents parses a text/event-stream body and calls fn for every
// dispatched event. Comment lines (": keepalive") are skipped. It returns
// errStreamEnded on a clean EOF and the read error otherwise.
func readEvents(r io.Reader, fn func(event)) error {
	br := bufio.NewReader(r)

	var (
		cur     event
		data    []string
		hasData bool
	)

	dispatch := func() {
		if hasData {
			cur.Data = strings.Join(data, "\n")
			fn(cur)
		}
		cur = event{}
		data = data[:0]
		hasData = false
	}

	for {
		line, err := br.ReadString('\n')
		if line != "" {
			line = strings.TrimRight(line, "\r\n")
			switch {
			case line == "":
				dispatch()
			case strings.HasPrefix(line, ":"):
			default:
				field, value, _ := strings.Cut(line, ":")
				value = strings.TrimPrefix(value, " ")
				switch field {
				case "event":
					cur.Name = value
				case "data":
					data = append(data, value)
					hasData = true
				case "id":
					cur.ID = value
				}
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				return errStreamEnded
			}
			return err
		}
	}
}
