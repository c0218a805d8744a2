// Package uploads owns reliable delivery of recordings to the backend.
//
// # State machine
//
//	pending → uploading → uploaded
//	                    ↘ failed → uploading   (automatic retry under the ceiling)
//	                             → pending     (manual retry, RetryCount reset)
//
// Every transition is a read-modify-write through the store, so a completion
// for a record that was deleted meanwhile finds nothing to update and is
// dropped. A per-record in-flight gate guarantees at most one delivery
// attempt per record; different records upload concurrently.
//
// Retries are armed as per-record timers after base^(RetryCount-1) units.
// Forget and Shutdown cancel them.
//
// Delivery errors never propagate to callers. They become UploadStatus and
// RetryCount, are logged, and are reported to the optional result observer.
package uploads
