// Package common defines sentinel errors shared by the storage, transport and
// service layers of the toukan client. Callers should use errors.Is to match
// these values.
package common

import "errors"

var (
	// ErrNotFound is returned when a local record or remote memory does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable reports that the backend could not be reached.
	ErrUnavailable = errors.New("backend unavailable")

	// ErrAlreadyRunning is returned when another client process owns the data dir.
	ErrAlreadyRunning = errors.New("another toukan client is already running")

	ErrShutdown = errors.New("component shut down")
)
