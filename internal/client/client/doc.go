// Package client contains the backend-facing building blocks of the toukan
// client.
//
// # Overview
//
//  1. A transport contract (see the Client interface) for the memories API:
//     List/Get/RetryProcessing/Delete, Upload, the memory-update event
//     stream, and the health probe.
//  2. An HTTP/JSON implementation on go-resty (see MemoryClient) with
//     functional options for timeout, bearer auth and request dumping.
//  3. Local persistence bootstrap (InitDatabase, RunMigrations) wiring a
//     single-writer SQLite handle and the embedded goose migrations.
//
// # Error Handling
//
// Get maps 404 to ErrNotFound. Any other non-2xx is a *BadResponseError.
// Bodies that do not match the schema, including unparseable timestamps,
// yield a *DecodeError carrying the raw body. Transport failures wrap
// ErrUnavailable.
package client
