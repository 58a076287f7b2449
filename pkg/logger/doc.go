// Package logger builds the service's log/slog logger: text output for local
// environments, JSON in prod, every record tagged with service and
// environment.
package logger
