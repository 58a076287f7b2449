// Package proxy defines the proxy targets checked by the sentinel and the
// verdicts and summaries produced for them by a check cycle.
package proxy
