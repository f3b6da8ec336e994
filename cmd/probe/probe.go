// Package probe implements the egress probe command.
package probe

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	cmdcommon "github.com/jonesrussell/north-cloud/intent-crawler/cmd/common"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/fetcher"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/logger"
)

// Command returns the probe command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Report the public egress address used for portal requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := cmdcommon.NewCommandDeps()
			if err != nil {
				return fmt.Errorf("failed to initialize dependencies: %w", err)
			}
			defer func() { _ = deps.Logger.Sync() }()

			cfg := deps.Config.Fetcher
			info, err := fetcher.ProbeEgress(cmd.Context(), fetcher.ProbeConfig{
				URL:       cfg.ProbeURL,
				ProxyURLs: cfg.ProxyURLs,
				Timeout:   cfg.RequestTimeout,
			}, deps.Logger)
			if err != nil {
				return err
			}
			deps.Logger.Info("Egress probe succeeded",
				logger.String("ip", info.IP),
				logger.String("country", info.Country),
				logger.String("region", info.RegionName),
				logger.String("city", info.City),
				logger.String("isp", info.ISP),
				logger.Int("proxies", len(cfg.ProxyURLs)),
			)
			render(os.Stdout, info)
			return nil
		},
	}
}

func render(w io.Writer, info *fetcher.EgressInfo) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"IP", "Country", "Region", "City", "ISP"})
	t.AppendRow(table.Row{info.IP, info.Country, info.RegionName, info.City, info.ISP})
	t.Render()
}
