package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/greenwave/gwupdate/internal/server"
)

func newServeCmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the probe and install API over HTTP",
		Long: `Serve starts a local HTTP API for a UI host:

  GET  /v1/probe?dir=       installation status
  POST /v1/install          synchronous install
  POST /v1/installs         asynchronous install job
  GET  /v1/installs/{id}    job progress
  POST /v1/open             open the install directory
  GET  /healthz, /metrics

The server stops on SIGINT or SIGTERM; running installs are cancelled.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), listen)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (default: server.listen from config)")

	return cmd
}

func runServe(ctx context.Context, listen string) error {
	cfg, logger, svc, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if listen == "" {
		listen = cfg.Server.Listen
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting gwupdate api",
		zap.String("version", buildVersion),
		zap.String("install_dir", cfg.InstallDir),
		zap.String("origin", cfg.Origin.URL))

	srv := server.New(svc, cfg.Server, logger.Named("api"))
	return srv.ListenAndServe(ctx, listen)
}
