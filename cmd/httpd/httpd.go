// Package httpd implements the serve command.
package httpd

import (
	"fmt"

	"github.com/spf13/cobra"

	cmdcommon "github.com/jonesrussell/north-cloud/intent-crawler/cmd/common"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/bootstrap"
)

// Command returns the serve command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the crawl task API",
		Long: `Starts the HTTP API. POST /api/v1/crawl starts a run in the background;
GET /api/v1/tasks/:id reports its status and log tail.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := cmdcommon.NewCommandDeps()
			if err != nil {
				return fmt.Errorf("failed to initialize dependencies: %w", err)
			}
			defer func() { _ = deps.Logger.Sync() }()

			return bootstrap.Serve(deps)
		},
	}
}
