package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/greenwave/gwupdate/internal/config"
	"github.com/greenwave/gwupdate/internal/interactive"
	"github.com/greenwave/gwupdate/internal/output"
	"github.com/greenwave/gwupdate/internal/service"
	"github.com/greenwave/gwupdate/internal/types"
	"github.com/greenwave/gwupdate/internal/update"
)

// isTerminal reports whether prompts can be shown. Replaced in tests.
var isTerminal = interactive.IsTerminal

type installOptions struct {
	dir       string
	version   string
	hash      string
	replacing string
	policy    string
	yes       bool
}

func newInstallCmd() *cobra.Command {
	var opts installOptions

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Download, verify and install a release",
		Long: `Install downloads a release from the configured origin, checks its MD5
against --hash and moves it into the install directory.

The file named by --replacing is removed only after the new release is
verified and in place. Downloads that fail verification are handled by
install.bad_hash_policy (quarantine by default).

Exit status is 0 on success, 1 on failed and 2 on bad_hash.

Examples:
  gwupdate install --version 2.1.0 --hash 9e107d9d372bb6826bd81d3542a419d6
  gwupdate install --version 2.1.0 --hash 9e10... --replacing GreenWave_v2.0.0.exe --yes`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInstall(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.version, "version", "", "Version to install (required)")
	cmd.Flags().StringVar(&opts.hash, "hash", "", "Expected MD5 of the release, hex (required)")
	cmd.Flags().StringVar(&opts.replacing, "replacing", "", "Filename of the release being replaced")
	cmd.Flags().StringVarP(&opts.dir, "dir", "d", "", "Install directory (default: configured install_dir)")
	cmd.Flags().StringVar(&opts.policy, "bad-hash-policy", "", "What to do with a download that fails verification: quarantine, keep, delete")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Skip confirmation prompt")
	_ = cmd.MarkFlagRequired("version")
	_ = cmd.MarkFlagRequired("hash")

	_ = cmd.RegisterFlagCompletionFunc("bad-hash-policy", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		var policies []string
		for _, p := range types.AllBadHashPolicies() {
			policies = append(policies, p.String())
		}
		return policies, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runInstall(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, opts installOptions) error {
	_, logger, svc, err := setup(func(cfg *config.Config) error {
		if opts.policy == "" {
			return nil
		}
		policy, err := types.ParseBadHashPolicy(opts.policy)
		if err != nil {
			return err
		}
		cfg.Install.BadHashPolicy = policy
		return nil
	})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	writer, err := newWriter(stdout)
	if err != nil {
		return err
	}

	req := update.Request{
		Dir:          svc.ResolveDir(opts.dir),
		Version:      opts.version,
		ExpectedHash: opts.hash,
		Replacing:    opts.replacing,
	}

	if !opts.yes && isTerminal() {
		fileName, err := svc.FileName(req.Version)
		if err != nil {
			return err
		}
		describeCurrent(ctx, stderr, svc, req)
		prompter := interactive.NewPrompterWithIO(stdin, stderr)
		if !prompter.ConfirmInstall(req.Dir, fileName, req.Replacing) {
			_, _ = fmt.Fprintln(stderr, "Install cancelled.")
			return nil
		}
	}

	var progress update.ProgressFunc
	if writer.Format() == output.FormatText && !quiet {
		progress = phasePrinter(stderr)
	}

	res := svc.Install(ctx, req, progress)
	if err := writer.Write(res); err != nil {
		return err
	}
	if res.Outcome != types.OutcomeSuccess {
		return &ExitError{Code: res.Outcome.ExitCode(), Outcome: res.Outcome}
	}
	return nil
}

// describeCurrent tells the user how the install relates to what is already there.
// A missing directory is left alone; the install reports it.
func describeCurrent(ctx context.Context, w io.Writer, svc *service.Service, req update.Request) {
	if info, err := os.Stat(req.Dir); err != nil || !info.IsDir() {
		return
	}
	current := svc.Probe(ctx, req.Dir)
	switch {
	case req.Replacing == "" && current.Status.IsInstalled():
		_, _ = fmt.Fprintf(w, "%s is installed and will be kept (use --replacing to remove it)\n", current.FileName)
	case req.Replacing != "" && current.Status.NeedsInstall():
		_, _ = fmt.Fprintf(w, "No release is installed in %s; nothing will be removed\n", req.Dir)
	}
}

// phasePrinter reports each phase change on w, with the download size when known.
func phasePrinter(w io.Writer) update.ProgressFunc {
	var last types.Phase
	return func(e update.Event) {
		if e.Phase == last || e.Phase.IsTerminal() {
			return
		}
		last = e.Phase
		if e.Phase == types.PhaseVerifying && e.BytesDone > 0 {
			_, _ = fmt.Fprintf(w, "%s (%s downloaded)...\n", e.Phase, formatSize(e.BytesDone))
			return
		}
		_, _ = fmt.Fprintf(w, "%s...\n", e.Phase)
	}
}
