// Package common provides shared utilities for command implementations.
package common

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/jonesrussell/north-cloud/intent-crawler/internal/bootstrap"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/config"
)

// NewCommandDeps loads configuration from the global viper instance and builds
// the shared dependencies.
func NewCommandDeps() (*bootstrap.CommandDeps, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return bootstrap.NewCommandDeps(cfg)
}
