package cli

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toukan/toukan/internal/client/models"
)

func rdr(s string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(s))
}

func TestGetSimpleText(t *testing.T) {
	var out bytes.Buffer
	got, err := GetSimpleText(rdr("hello world\n"), "Name?", &out)
	if err != nil || got != "hello world" {
		t.Fatalf("got %q, err=%v", got, err)
	}
	if out.String() != "Name?\n> " {
		t.Fatalf("unexpected prompt %q", out.String())
	}
}

func TestGetSimpleTextEOF(t *testing.T) {
	var out bytes.Buffer
	got, err := GetSimpleText(rdr("lastline"), "Name?", &out)
	if err != nil || got != "lastline" {
		t.Fatalf("got %q, err=%v", got, err)
	}

	_, err = GetSimpleText(rdr(""), "Name?", &out)
	if err == nil {
		t.Fatal("expected EOF error")
	}
}

func TestConfirm(t *testing.T) {
	for input, want := range map[string]bool{
		"y\n":   true,
		"YES\n": true,
		"n\n":   false,
		"\n":    false,
		"":      false,
	} {
		var out bytes.Buffer
		if got := Confirm(rdr(input), "Sure?", &out); got != want {
			t.Fatalf("Confirm(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestParseListArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    models.ListParams
		wantErr bool
	}{
		{
			name: "defaults",
			want: models.ListParams{Page: 1, PageSize: defaultPageSize},
		},
		{
			name: "options and search",
			args: []string{"page=3", "weekly", "status=ready", "size=5", "sync"},
			want: models.ListParams{Page: 3, PageSize: 5, Search: "weekly sync", Status: models.MemoryReady},
		},
		{
			name: "unknown key is search text",
			args: []string{"a=b"},
			want: models.ListParams{Page: 1, PageSize: defaultPageSize, Search: "a=b"},
		},
		{name: "bad page", args: []string{"page=0"}, wantErr: true},
		{name: "bad size", args: []string{"size=x"}, wantErr: true},
		{name: "bad status", args: []string{"status=done"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseListArgs(tt.args)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
