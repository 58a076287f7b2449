// Package config loads the sentinel's settings from defaults, an optional
// YAML file and environment variables: the listen address, check interval
// and timeouts, the IP-echo endpoint, and where to discover proxies.
package config
