package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/datallboy/gonntp/internal/app"
	"github.com/datallboy/gonntp/internal/infra/config"
	"github.com/datallboy/gonntp/internal/infra/logger"
	"github.com/datallboy/gonntp/internal/provider"
	"github.com/datallboy/gonntp/internal/store"
)

var (
	configPath string
	verbosity  int

	appCtx *app.Context
)

var rootCmd = &cobra.Command{
	Use:               "gonntp",
	Short:             "NNTP reader client and overview archiver",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: teardown,
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "log debug output to the log file")

	rootCmd.AddCommand(
		capabilitiesCmd,
		groupCmd,
		articleCmd,
		headCmd,
		statCmd,
		overviewCmd,
		syncCmd,
		fetchCmd,
		postCmd,
		serveCmd,
	)

	if err := rootCmd.Execute(); err != nil {
		if appCtx != nil {
			teardown(rootCmd, nil)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	level := logger.ParseLevel(cfg.Log.Level)
	if verbosity > 0 {
		level = logger.LevelDebug
	}
	log, err := logger.New(cfg.Log.Path, level, cfg.Log.IncludeStdout)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	appCtx = app.NewContext(cfg, log)
	appCtx.NNTP = provider.NewManager(cfg, log)
	return nil
}

func teardown(cmd *cobra.Command, args []string) {
	if appCtx == nil {
		return
	}
	appCtx.Close()
	_ = appCtx.Logger.Sync()
	appCtx = nil
}

// openStore attaches the overview archive to the app context.
func openStore(ctx context.Context) error {
	if appCtx.Store != nil {
		return nil
	}
	s, err := store.Open(ctx, appCtx.Config.Store)
	if err != nil {
		return err
	}
	appCtx.Store = s
	return nil
}
