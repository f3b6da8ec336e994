// Package cmd implements the command-line interface of the intention crawler.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jonesrussell/north-cloud/intent-crawler/cmd/crawl"
	"github.com/jonesrussell/north-cloud/intent-crawler/cmd/httpd"
	"github.com/jonesrussell/north-cloud/intent-crawler/cmd/probe"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/config"
)

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	// Debug enables debug logging for all commands.
	Debug bool

	rootCmd = &cobra.Command{
		Use:   "intent-crawler",
		Short: "Procurement intention crawler",
		Long: `Collects procurement intention notices from the provincial portal,
expands each notice into its detail table rows and reports them.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	// Parse flags early so --config and --debug apply to configuration loading
	_ = rootCmd.ParseFlags(os.Args[1:])

	if err := initConfig(); err != nil {
		return fmt.Errorf("failed to initialize configuration: %w", err)
	}
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is ./config.yaml or ./config/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&Debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(crawl.Command())
	rootCmd.AddCommand(httpd.Command())
	rootCmd.AddCommand(probe.Command())
}

func initConfig() error {
	v := viper.GetViper()
	if err := config.Init(v, cfgFile); err != nil {
		return err
	}
	if err := v.BindPFlag("app.debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		return fmt.Errorf("failed to bind debug flag: %w", err)
	}
	setupDevelopmentLogging(v)
	return nil
}

// setupDevelopmentLogging raises the level on --debug and switches to console
// output in the development environment.
func setupDevelopmentLogging(v *viper.Viper) {
	debug := Debug || v.GetBool("app.debug")
	if debug {
		v.Set("logger.level", "debug")
	}
	if v.GetString("app.environment") == "development" {
		v.Set("logger.development", true)
		v.Set("logger.encoding", "console")
	}
	Debug = debug
}
