package client

import (
	"encoding/json"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/toukan/toukan/internal/common"
)

var (
	// ErrNotFound is returned by Get for a 404.
	ErrNotFound = common.ErrNotFound
	// ErrUnavailable wraps transport failures (no response at all).
	ErrUnavailable = common.ErrUnavailable
)

// BadResponseError is a non-success HTTP status.
type BadResponseError struct {
	StatusCode int
	Body       string
}

func (e *BadResponseError) Error() string {
	return fmt.Sprintf("bad response: status %d: %s", e.StatusCode, e.Body)
}

// DecodeError means the body did not match the expected schema.
type DecodeError struct {
	Raw []byte
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

func badResponse(resp *resty.Response) error {
	body := resp.String()
	if len(body) > 4096 {
		body = body[:4096]
	}
	return &BadResponseError{StatusCode: resp.StatusCode(), Body: body}
}

func decode(raw []byte, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return &DecodeError{Raw: raw, Err: err}
	}
	return nil
}
