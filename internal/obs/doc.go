// Package obs builds the process logger and the Prometheus metrics shared by
// the HTTP server and the resource processor.
package obs
