package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"swsmreport/internal/api"
	"swsmreport/internal/server"
	"swsmreport/internal/util"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		port      int
		devMode   bool
		noBrowser bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the upload page and report API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// config.toml wins over --port when it sets server.port
			if port > 0 && !a.info.PortSpecified {
				a.cfg.Server.Port = port
			}
			if devMode {
				a.cfg.Server.DevMode = true
			}
			return runServe(cmd.Context(), a, !noBrowser && !a.cfg.Server.DevMode)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (ignored when config.toml sets server.port)")
	cmd.Flags().BoolVar(&devMode, "dev", false, "development mode")
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "do not open the browser")
	return cmd
}

func runServe(ctx context.Context, a *app, openBrowser bool) error {
	api.Version = version

	srv, err := server.NewServer(a.cfg, server.Options{Logger: a.logger})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run()
	}()

	url := fmt.Sprintf("http://localhost:%d", a.cfg.Server.Port)
	a.logger.Info("swsmreport ready",
		zap.String("url", url),
		zap.String("version", version),
		zap.Bool("run_log", srv.GetStore() != nil),
	)
	if openBrowser {
		if err := util.OpenBrowser(url); err != nil {
			a.logger.Warn("could not open a browser, visit the url manually", zap.String("url", url), zap.Error(err))
		}
	}

	select {
	case err := <-errCh:
		_ = srv.Shutdown(context.Background())
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
