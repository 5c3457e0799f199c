package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/greenwave/gwupdate/internal/update"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Display the gwupdate version, build details and the User-Agent sent to the
release origin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersion(cmd.OutOrStdout())
		},
	}
}

type versionInfo struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	Date      string `json:"date" yaml:"date"`
	Platform  string `json:"platform" yaml:"platform"`
	UserAgent string `json:"userAgent" yaml:"user_agent"`
}

func (v versionInfo) String() string {
	return fmt.Sprintf("gwupdate version %s\n  commit:     %s\n  built:      %s\n  platform:   %s\n  user agent: %s",
		v.Version, v.Commit, v.Date, v.Platform, v.UserAgent)
}

func runVersion(stdout io.Writer) error {
	platform := update.Detect()
	info := versionInfo{
		Version:   buildVersion,
		Commit:    buildCommit,
		Date:      buildDate,
		Platform:  platform.String(),
		UserAgent: platform.UserAgent(buildVersion),
	}

	writer, err := newWriter(stdout)
	if err != nil {
		return err
	}
	return writer.Write(info)
}
