package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/toukan/toukan/internal/client/models"
)

const defaultPageSize = 20

// GetSimpleText prints a prompt to w and reads a single line of input from reader.
// The trailing newline is trimmed. If EOF occurs after some input was read,
// the partial line is returned.
func GetSimpleText(reader *bufio.Reader, prompt string, w io.Writer) (string, error) {
	if _, err := fmt.Fprint(w, prompt+"\n> "); err != nil {
		return "", err
	}
	return readLine(reader)
}

// Confirm asks a yes/no question; anything but y or yes is a no.
func Confirm(reader *bufio.Reader, prompt string, w io.Writer) bool {
	answer, err := GetSimpleText(reader, prompt+" [y/N]", w)
	if err != nil {
		return false
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true
	}
	return false
}

func readLine(reader *bufio.Reader) (string, error) {
	line, err := reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// parseListArgs reads "page=N size=N status=S" options; the remaining words
// form the search text.
func parseListArgs(args []string) (models.ListParams, error) {
	p := models.ListParams{Page: 1, PageSize: defaultPageSize}
	var search []string

	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			search = append(search, arg)
			continue
		}
		switch key {
		case "page", "size":
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 {
				return p, fmt.Errorf("%s must be a positive number, got %q", key, value)
			}
			if key == "page" {
				p.Page = n
			} else {
				p.PageSize = n
			}
		case "status":
			s := models.MemoryStatus(value)
			if !s.IsPending() && !s.IsTerminal() {
				return p, fmt.Errorf("unknown status %q", value)
			}
			p.Status = s
		default:
			search = append(search, arg)
		}
	}
	p.Search = strings.Join(search, " ")
	return p, nil
}
