// Package recordings is the durable local store of captured recordings and
// their upload state.
//
// Every mutation runs inside a transaction on a single-writer SQLite handle,
// so a reader never observes a half-written record and concurrent
// read-modify-write cycles on the same id are serialized.
package recordings
