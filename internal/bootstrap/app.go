package bootstrap

import (
	"fmt"

	"github.com/jonesrussell/north-cloud/intent-crawler/internal/logger"
)

// Serve runs the task API until interrupted.
//
// Phases:
//   - task store (redis when enabled, memory otherwise)
//   - pipeline runner
//   - HTTP server
//   - wait for a signal, then drain running tasks
func Serve(deps *CommandDeps) error {
	store, closeStore, err := CreateTaskStore(&deps.Config.Redis, deps.Logger)
	if err != nil {
		return fmt.Errorf("failed to create task store: %w", err)
	}
	defer func() {
		if closeErr := closeStore(); closeErr != nil {
			deps.Logger.Warn("Failed to close task store", logger.Error(closeErr))
		}
	}()

	runner, err := NewRunner(deps.Config, deps.Metrics)
	if err != nil {
		return fmt.Errorf("failed to create runner: %w", err)
	}

	components := SetupHTTPServer(deps, store, runner.Run)
	errChan := StartAsync(components.Server, deps.Logger)
	return RunUntilInterrupt(deps.Logger, components.Server, components.Handler, errChan)
}
