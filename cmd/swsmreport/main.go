package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"swsmreport/internal/config"
	"swsmreport/internal/observability"
	"swsmreport/internal/store"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

// app state shared by all commands, filled in PersistentPreRunE
type app struct {
	configPath string
	dataDir    string
	verbose    bool

	cfg    *config.AppConfig
	info   config.LoadConfigInfo
	logger *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "swsmreport",
		Short: "SWSM daily water report generator",
		Long: `swsmreport turns the JJM SWSM daily export (xlsx, or the HTML table
served as .xls) into a two-sheet report: sites supplying less than the
threshold share of their daily demand, and sites with zero production.

Run "swsmreport serve" for the upload page, or "swsmreport generate" to
produce a report from the command line.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (default: config.toml next to the executable)")
	root.PersistentFlags().StringVar(&a.dataDir, "data-dir", "", "data directory (overrides the config file)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newServeCmd(a),
		newGenerateCmd(a),
		newResolveCmd(a),
		newRunsCmd(a),
	)
	return root
}

func (a *app) init() error {
	cfg, info, err := config.LoadConfigWithInfo(a.configPath)
	if err != nil {
		return err
	}
	if a.dataDir != "" {
		cfg.Data.DataDir = a.dataDir
	}
	logger, err := observability.NewLogger(cfg.Log.Level, cfg.Log.Format, a.verbose)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.info = info
	a.logger = logger
	a.logger.Debug("config loaded",
		zap.String("path", info.Path),
		zap.Bool("found", info.FileFound),
		zap.String("data_dir", config.ResolveDataDir(cfg)),
	)
	return nil
}

// openStore opens the run log, nil when it is disabled.
func (a *app) openStore() (*store.Store, error) {
	if !a.cfg.Data.RunLog {
		return nil, nil
	}
	dataDir, err := config.EnsureDataDir(a.cfg)
	if err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return store.New(filepath.Join(dataDir, store.DBFileName))
}
