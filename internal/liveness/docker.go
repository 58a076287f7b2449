package liveness

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

const DefaultTimeout = 10 * time.Second

// Oracle reports whether a named container is currently running.
type Oracle interface {
	IsRunning(ctx context.Context, containerName string) bool
}

// CommandRunner runs a command and returns its standard output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// DockerOracle asks the docker CLI for the names of running containers.
// Any failure to ask is reported as not running.
type DockerOracle struct {
	run     CommandRunner
	timeout time.Duration
	logger  *slog.Logger
}

// NewDockerOracle creates an oracle backed by the docker CLI. Each lookup is
// bounded by timeout, or DefaultTimeout when zero.
func NewDockerOracle(timeout time.Duration, logger *slog.Logger) *DockerOracle {
	return NewDockerOracleWithRunner(execRunner, timeout, logger)
}

// NewDockerOracleWithRunner creates an oracle that runs docker through run.
func NewDockerOracleWithRunner(run CommandRunner, timeout time.Duration, logger *slog.Logger) *DockerOracle {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &DockerOracle{
		run:     run,
		timeout: timeout,
		logger:  logger,
	}
}

// IsRunning reports whether containerName is in the running set.
func (o *DockerOracle) IsRunning(ctx context.Context, containerName string) bool {
	if containerName == "" {
		return false
	}

	// Cycle contexts are never cancelled, so a hung daemon must not hold one.
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	out, err := o.run(ctx, "docker", "ps", "--format", "{{.Names}}")
	if err != nil {
		o.logger.Error("Error checking container status",
			slog.String("container", containerName),
			slog.Any("err", err))
		return false
	}

	for _, name := range strings.Split(string(out), "\n") {
		if strings.TrimSpace(name) == containerName {
			return true
		}
	}
	return false
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("%s exited with code %d: %s", name, exitErr.ExitCode(), strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}
