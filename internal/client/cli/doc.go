// Package cli provides the interactive toukan command-line client.
//
// NewApp takes an exclusive lock on the data dir, opens the local database
// and wires the recorder, the upload queue, the connectivity monitor and the
// sync channel. App.Run starts the background work, then blocks in the REPL
// until the user exits; a capture still running at exit is saved and queued.
//
// Key features:
//   - record, pause, resume and stop captures
//   - list local recordings with their upload state; retry or delete them
//   - browse, show, reprocess and delete remote memories
//   - watch memory updates pushed by the server or found by polling
package cli
