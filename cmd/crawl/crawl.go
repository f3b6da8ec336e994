// Package crawl implements the crawl command, which runs one pipeline in the
// foreground and prints the rows.
package crawl

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	cmdcommon "github.com/jonesrussell/north-cloud/intent-crawler/cmd/common"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/bootstrap"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/domain"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/task"
)

const outputFileMode = 0o644

type options struct {
	title     string
	area      string
	startDate string
	endDate   string
	maxPages  int
	startPage int
	mode      string
	output    string
}

// Command returns the crawl command.
func Command() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl procurement intentions once",
		Long: `Runs a single crawl. Pages are read through the browser by default,
or through the JSON listing endpoint with --mode api.

Rows are printed as a table; --output also writes them as JSON.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := cmdcommon.NewCommandDeps()
			if err != nil {
				return fmt.Errorf("failed to initialize dependencies: %w", err)
			}
			defer func() { _ = deps.Logger.Sync() }()

			return run(cmd.Context(), deps, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.title, "title", "", "notice title keyword")
	flags.StringVar(&opts.area, "area", domain.DefaultRegion, "region code")
	flags.StringVar(&opts.startDate, "start", "", "earliest publish date (YYYY-MM-DD)")
	flags.StringVar(&opts.endDate, "end", "", "latest publish date (YYYY-MM-DD)")
	flags.IntVar(&opts.maxPages, "max-pages", 0, "pages to visit (0 uses pipeline.max_pages)")
	flags.IntVar(&opts.startPage, "start-page", 0, "first page (0 uses pipeline.start_page)")
	flags.StringVar(&opts.mode, "mode", "", "record source: browser or api (empty uses pipeline.mode)")
	flags.StringVarP(&opts.output, "output", "o", "", "write rows as JSON to this file")

	return cmd
}

func run(ctx context.Context, deps *bootstrap.CommandDeps, opts options) error {
	runner, err := bootstrap.NewRunner(deps.Config, deps.Metrics)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, deps.Config.Pipeline.RunTimeout)
	defer cancel()

	req := runner.Request(task.Request{
		Criteria: domain.SearchCriteria{
			Title:     opts.title,
			StartDate: opts.startDate,
			EndDate:   opts.endDate,
			Region:    opts.area,
		}.WithDefaults(),
		MaxPages:  opts.maxPages,
		StartPage: opts.startPage,
		Mode:      opts.mode,
	})
	res := runner.Run(ctx, req, deps.Logger)

	renderRows(os.Stdout, res.Rows)
	renderSummary(os.Stdout, req, res)

	if opts.output != "" {
		if err := writeJSON(opts.output, res.Rows); err != nil {
			return err
		}
	}
	if res.Failed() {
		return fmt.Errorf("crawl stopped (%s): %w", res.Reason, res.Err)
	}
	return nil
}

func writeJSON(path string, rows []domain.OutputRow) error {
	if rows == nil {
		rows = []domain.OutputRow{}
	}
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal rows: %w", err)
	}
	if err := os.WriteFile(path, data, outputFileMode); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
