package cmd

import (
	"context"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/greenwave/gwupdate/internal/output"
	"github.com/greenwave/gwupdate/internal/probe"
	"github.com/greenwave/gwupdate/internal/watch"
)

func newWatchCmd() *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Re-probe a directory whenever it changes",
		Long: `Watch probes the install directory once, then again after every change to
it, printing each distinct result as one JSON line. Stop it with Ctrl-C.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), cmd.OutOrStdout(), dirArg(args), debounce)
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "Quiet period after the last change before re-probing")

	return cmd
}

func runWatch(ctx context.Context, stdout io.Writer, dir string, debounce time.Duration) error {
	_, logger, svc, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	writer := output.NewWriter(stdout, output.FormatNDJSON)
	w := watch.New(svc.ResolveDir(dir), svc.Probe,
		watch.WithDebounce(debounce),
		watch.WithLogger(logger.Named("watch")))

	return w.Run(ctx, func(res probe.Result) error {
		return writer.Write(res)
	})
}
