// Package cmd provides the dashreq command line
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stdutil/dashhttp/internal/app"
	"github.com/stdutil/dashhttp/internal/config"
	"github.com/stdutil/dashhttp/internal/logging"
)

// NewRootCommand creates the dashreq command tree
func NewRootCommand() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:   "dashreq",
		Short: "dashreq - dashboard widget request tool",
		Long: `dashreq assembles and sends the HTTP requests configured on dashboard widgets.

Quick Start:
  dashreq request --widget widget.json --global global.json
  dashreq request --widget widget.json --dry-run
  dashreq serve --addr :8080`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file path")

	load := func() (*app.App, error) {
		cfg, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		logger, err := logging.New(cfg.Log)
		if err != nil {
			return nil, err
		}
		return app.New(cfg, logger)
	}

	root.AddCommand(newRequestCommand(load))
	root.AddCommand(newServeCommand(load))
	root.AddCommand(newVersionCommand())
	return root
}

// Execute runs the root command
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loader builds the App from the --config flag
type loader func() (*app.App, error)

func closeApp(a *app.App) {
	if err := a.Close(); err != nil {
		a.Logger.Warn("close", zap.Error(err))
	}
	_ = a.Logger.Sync()
}
