// Package handler implements the HTTP status surface of the sentinel: the
// latest summary, an on-demand check that waits for its result, and a
// websocket stream of summaries as cycles complete.
package handler
