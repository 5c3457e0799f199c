package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/greenwave/gwupdate/internal/desktop"
	"github.com/greenwave/gwupdate/internal/types"
)

func newOpenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open [dir]",
		Short: "Open the install directory in the file browser",
		Long: `Open shows the install directory in the system file browser and prints
opened, or failed when the directory does not exist.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOpen(cmd.OutOrStdout(), dirArg(args))
		},
	}
}

func runOpen(stdout io.Writer, dir string) error {
	_, logger, svc, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	res := svc.Open(dir)
	if _, err := fmt.Fprintln(stdout, res); err != nil {
		return err
	}
	if res == desktop.ResultFailed {
		return &ExitError{Code: 1, Outcome: types.OutcomeFailed}
	}
	return nil
}
