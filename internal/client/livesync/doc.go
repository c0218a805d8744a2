// Package livesync keeps read-side caches in step with backend processing.
//
// A Channel first listens on the server-push event stream. Each well-formed
// memory-update event invalidates the cached list and, when it names a
// memory, that memory's detail entry. If the stream cannot be opened or
// breaks, the channel demotes itself to polling for the rest of the session
// unless RepromoteInterval is set, in which case it periodically tries the
// stream again. A single goroutine drives both modes, so exactly one refresh
// source is active at any time.
//
// While polling, the channel tracks whether any known memory is still
// uploading or processing and picks its own cadence: PollFast while anything
// is pending, PollSlow otherwise, or no polling at all with PauseWhenIdle
// until Track or Kick wakes it.
package livesync
