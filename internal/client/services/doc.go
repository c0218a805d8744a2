// Package services contains the application services the CLI talks to.
//
// RecordingService ties the recorder, the local store and the upload queue
// together. MemoryService reads remote memories through the read-side cache
// and keeps the sync channel informed of what the user is looking at.
package services
