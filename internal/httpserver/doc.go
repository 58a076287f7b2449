// Package httpserver runs the sentinel's HTTP listener with address
// validation, bounded timeouts and graceful shutdown.
package httpserver
