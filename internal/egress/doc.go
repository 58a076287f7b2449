// Package egress resolves the public IP address seen by an external IP-echo
// service, either directly or through a SOCKS5 proxy.
//
// A failed resolution is an ordinary outcome: Resolve logs the cause and
// returns a Result without an IP instead of an error. Every attempt is
// bounded by the resolver timeout.
package egress
