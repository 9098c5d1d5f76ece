// Package cmdlog wraps CLI subcommands with logging and counters.
package cmdlog

import (
	"time"

	"herald/internal/logging"
	"herald/internal/metrics"
)

// Run executes f under the command name cmd and logs one command_done or
// command_failed line with its duration.
func Run(cmd string, f func() error) error {
	start := time.Now()
	metrics.IncCommandRun(cmd)
	err := f()
	fields := map[string]any{"command": cmd, "duration_ms": time.Since(start).Milliseconds()}
	if err != nil {
		metrics.IncCommandError(cmd)
		fields["error"] = err
		logging.Error("command_failed", fields)
		return err
	}
	logging.Info("command_done", fields)
	return nil
}
