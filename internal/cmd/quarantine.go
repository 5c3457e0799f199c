package cmd

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/greenwave/gwupdate/internal/interactive"
	"github.com/greenwave/gwupdate/internal/output"
	"github.com/greenwave/gwupdate/internal/quarantine"
)

func newQuarantineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quarantine",
		Short: "Inspect and discard downloads that failed verification",
		Long: `Quarantine manages downloads whose MD5 did not match the expected hash.

With install.bad_hash_policy set to quarantine (the default), such downloads
are moved out of the install directory into the quarantine directory
(~/.cache/gwupdate/quarantine unless install.quarantine_dir says otherwise),
together with a record of what was expected and what arrived.`,
	}

	cmd.AddCommand(newQuarantineListCmd())
	cmd.AddCommand(newQuarantineShowCmd())
	cmd.AddCommand(newQuarantineDeleteCmd())
	cmd.AddCommand(newQuarantinePruneCmd())

	return cmd
}

func newQuarantineListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List quarantined downloads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuarantineList(cmd.OutOrStdout())
		},
	}
}

func newQuarantineShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one quarantined download",
		Long:  `Show prints the record of a quarantined download. Use 'latest' as the ID for the most recent one.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuarantineShow(cmd.OutOrStdout(), args[0])
		},
	}
}

func newQuarantineDeleteCmd() *cobra.Command {
	var interactiveMode bool

	cmd := &cobra.Command{
		Use:   "delete [id...]",
		Short: "Delete quarantined downloads",
		Long: `Delete removes quarantined downloads by ID.

With --interactive, each entry is offered for deletion in turn:
  y - delete this entry
  n - keep it
  a - delete this and all remaining entries
  q - quit without deleting anything`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if interactiveMode {
				return runQuarantineDeleteInteractive(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
			}
			if len(args) == 0 {
				return errors.New("at least one id is required (or use --interactive)")
			}
			return runQuarantineDelete(cmd.OutOrStdout(), args)
		},
	}

	cmd.Flags().BoolVarP(&interactiveMode, "interactive", "i", false, "Choose entries to delete one by one")

	return cmd
}

func newQuarantinePruneCmd() *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove old quarantined downloads",
		Long: `Prune deletes old quarantined downloads, keeping only the most recent N.

By default keeps install.quarantine_keep entries (10 unless configured).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("keep") {
				keep = -1
			}
			return runQuarantinePrune(cmd.OutOrStdout(), keep)
		},
	}

	cmd.Flags().IntVar(&keep, "keep", quarantine.DefaultKeepCount, "Number of entries to keep")

	return cmd
}

func quarantineManager() (*quarantine.Manager, int, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, 0, err
	}
	return quarantine.NewManagerWithDir(cfg.Install.QuarantineDir), cfg.Install.QuarantineKeep, nil
}

// runQuarantineList lists all quarantined downloads.
func runQuarantineList(stdout io.Writer) error {
	manager, _, err := quarantineManager()
	if err != nil {
		return err
	}

	records, err := manager.List()
	if err != nil {
		return err
	}

	writer, err := newWriter(stdout)
	if err != nil {
		return err
	}
	if writer.Format() != output.FormatText {
		return writer.Write(records)
	}

	if len(records) == 0 {
		_, _ = fmt.Fprintln(stdout, "Quarantine is empty.")
		_, _ = fmt.Fprintf(stdout, "Quarantine directory: %s\n", manager.Dir())
		return nil
	}

	_, _ = fmt.Fprintf(stdout, "Quarantined downloads in %s:\n\n", manager.Dir())

	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tFile\tExpected\tActual\tSize")
	for _, r := range records {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			r.ID,
			r.FileName,
			r.ExpectedHash,
			r.ActualHash,
			formatSize(r.Size),
		)
	}
	return w.Flush()
}

func runQuarantineShow(stdout io.Writer, id string) error {
	manager, _, err := quarantineManager()
	if err != nil {
		return err
	}

	rec, err := manager.Get(id)
	if err != nil {
		return err
	}

	writer, err := newWriter(stdout)
	if err != nil {
		return err
	}
	return writer.Write(rec)
}

// runQuarantineDelete deletes the given entries, stopping at the first failure.
func runQuarantineDelete(stdout io.Writer, ids []string) error {
	manager, _, err := quarantineManager()
	if err != nil {
		return err
	}

	for _, id := range ids {
		if err := manager.Delete(id); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(stdout, "Deleted: %s\n", id)
	}
	return nil
}

func runQuarantineDeleteInteractive(stdin io.Reader, stdout, stderr io.Writer) error {
	manager, _, err := quarantineManager()
	if err != nil {
		return err
	}

	records, err := manager.List()
	if err != nil {
		return err
	}

	prompter := interactive.NewPrompterWithIO(stdin, stderr)
	selected, ok := prompter.SelectForDeletion(records)
	if !ok {
		return nil
	}

	for _, rec := range selected {
		if err := manager.Delete(rec.ID); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(stdout, "Deleted: %s\n", rec.ID)
	}
	return nil
}

// runQuarantinePrune removes old entries. A negative keep uses the configured count.
func runQuarantinePrune(stdout io.Writer, keep int) error {
	manager, configured, err := quarantineManager()
	if err != nil {
		return err
	}
	if keep < 0 {
		keep = configured
	}

	result, err := manager.Prune(keep)
	if err != nil {
		return err
	}

	writer, err := newWriter(stdout)
	if err != nil {
		return err
	}
	if writer.Format() != output.FormatText {
		return writer.Write(result)
	}

	if len(result.Deleted) == 0 {
		_, _ = fmt.Fprintf(stdout, "Nothing to prune. Keeping %d entries.\n", result.Kept)
		return nil
	}

	_, _ = fmt.Fprintf(stdout, "Pruned %d entries, keeping %d:\n", len(result.Deleted), result.Kept)
	for _, r := range result.Deleted {
		_, _ = fmt.Fprintf(stdout, "  - %s (%s)\n", r.ID, r.FileName)
	}
	return nil
}
