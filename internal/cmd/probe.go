package cmd

import (
	"context"
	"io"

	"github.com/spf13/cobra"
)

func newProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "probe [dir]",
		Aliases: []string{"status"},
		Short:   "Report the release installed in a directory",
		Long: `Probe looks for a GreenWave release in the install directory and reports
its status, filename, version and MD5.

A directory that does not exist is created and reported as new_dir.
Without an argument the configured install_dir is probed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProbe(cmd.Context(), cmd.OutOrStdout(), dirArg(args))
		},
	}
}

func runProbe(ctx context.Context, stdout io.Writer, dir string) error {
	_, logger, svc, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	writer, err := newWriter(stdout)
	if err != nil {
		return err
	}
	return writer.Write(svc.Probe(ctx, dir))
}
