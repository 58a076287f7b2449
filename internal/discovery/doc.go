// Package discovery derives the list of proxy targets to check from a
// docker-compose manifest. The manifest is re-read on every call so edits
// take effect on the next check cycle without a restart.
package discovery
