// Package healthcheck runs proxy check cycles across all discovered targets.
//
// At most one cycle runs at a time. Callers that trigger a check while one is
// in flight wait for and share its result. A periodic driver starts a cycle
// a fixed interval after the previous one finished, and on-demand checks
// push the next periodic cycle a full interval out.
package healthcheck
