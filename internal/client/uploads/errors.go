package uploads

import (
	"errors"
	"fmt"
)

var (
	// ErrFileMissing is permanent: the audio file is gone, so no retry is armed.
	ErrFileMissing = errors.New("audio file missing")

	// ErrRetriesExhausted means the ceiling was reached; only a manual retry
	// moves the record again.
	ErrRetriesExhausted = errors.New("upload retries exhausted")
)

// TransportError is a failure to get any response, including timeouts.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("transport: %v", e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// ServerRejectedError is a non-2xx answer to the upload.
type ServerRejectedError struct {
	StatusCode int
	Body       string
}

func (e *ServerRejectedError) Error() string {
	return fmt.Sprintf("server rejected upload: status %d", e.StatusCode)
}
