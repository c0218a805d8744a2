package livesync

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadEvents(t *testing.T) {
	body := ": keepalive\n\n" +
		"event: memory-update\n" +
		"data: {\"memory_id\":\"m1\"}\n\n" +
		"event: memory-update\r\n" +
		"id: 7\r\n" +
		"data: line1\r\n" +
		"data:line2\r\n\r\n" +
		"data: no name\n\n" +
		"event: dangling\n" +
		"data: never dispatched"

	var got []event
	err := readEvents(strings.NewReader(body), func(ev event) { got = append(got, ev) })
	require.ErrorIs(t, err, errStreamEnded)

	require.Len(t, got, 3)
	assert.Equal(t, event{Name: "memory-update", Data: `{"memory_id":"m1"}`}, got[0])
	assert.Equal(t, event{Name: "memory-update", Data: "line1\nline2", ID: "7"}, got[1])
	assert.Equal(t, event{Data: "no name"}, got[2])
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("reset by peer") }

func TestReadEvents_ReadError(t *testing.T) {
	err := readEvents(failingReader{}, func(event) { t.Fatal("no events expected") })
	require.Error(t, err)
	assert.NotErrorIs(t, err, errStreamEnded)
}
