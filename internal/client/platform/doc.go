// Package platform abstracts host capabilities the capture and upload core
// depends on: bounded extra run time when the process is backgrounded, and a
// stream of lifecycle transitions.
package platform
