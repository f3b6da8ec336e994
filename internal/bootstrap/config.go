// Package bootstrap assembles configured components for the commands.
package bootstrap

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jonesrussell/north-cloud/intent-crawler/internal/config"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/logger"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/metrics"
)

var (
	// errLoggerRequired is returned when CommandDeps.Logger is nil.
	errLoggerRequired = errors.New("logger is required")
	// errConfigRequired is returned when CommandDeps.Config is nil.
	errConfigRequired = errors.New("config is required")
)

// CommandDeps holds the dependencies shared by every command.
type CommandDeps struct {
	Logger   logger.Logger
	Config   *config.Config
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
}

// NewCommandDeps creates the logger and metrics for cfg.
func NewCommandDeps(cfg *config.Config) (*CommandDeps, error) {
	if cfg == nil {
		return nil, errConfigRequired
	}
	log, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	log = log.With(logger.String("service", cfg.App.Name))

	reg := prometheus.NewRegistry()
	deps := &CommandDeps{
		Logger:   log,
		Config:   cfg,
		Registry: reg,
		Metrics:  metrics.NewMetrics(reg),
	}
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("validate deps: %w", err)
	}
	return deps, nil
}

// Validate ensures required dependencies are set.
func (d *CommandDeps) Validate() error {
	if d.Logger == nil {
		return errLoggerRequired
	}
	if d.Config == nil {
		return errConfigRequired
	}
	return nil
}
