// Package models defines the client-side data models: local recordings and
// the read-only memories the backend produces from them.
package models
