// Package verifier decides whether a single SOCKS5 proxy is working.
//
// A proxy is working when its container is running, it answers through
// SOCKS5, and the egress IP seen through it differs from the host's own.
// A proxy that answers with the host's IP is passing traffic through
// unmodified and is reported as an error, not as down.
package verifier
