package cmd

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/greenwave/gwupdate/internal/config"
	"github.com/greenwave/gwupdate/internal/interactive"
	"github.com/greenwave/gwupdate/internal/templates"
)

const defaultTemplate = "minimal"

type initOptions struct {
	template   string
	outputPath string
	force      bool
	expand     bool
}

func newInitCmd() *cobra.Command {
	var opts initOptions

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a config file from a template",
		Long: `Create a gwupdate config file from a built-in or custom template.

Available templates:
  minimal    - Origin only, everything else default
  full       - Every option with its default value
  server     - Local HTTP API for a UI host, JSON logs

Placeholders such as ${GWUPDATE_ORIGIN} are kept and expanded each time the
config is loaded; --expand resolves them once, now.

Examples:
  gwupdate init                              # Interactive mode
  gwupdate init --template=minimal           # Direct template selection
  gwupdate init --template=https://...       # Custom template URL
  gwupdate init --config ./gwupdate.yaml     # Custom output location`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.template, "template", "t", "", "Template name or URL")
	cmd.Flags().StringVar(&opts.outputPath, "config", "", "Output path for the config file")
	cmd.Flags().BoolVar(&opts.force, "force", false, "Overwrite an existing config file")
	cmd.Flags().BoolVar(&opts.expand, "expand", false, "Expand environment placeholders before writing")

	// Register completion for template flag
	_ = cmd.RegisterFlagCompletionFunc("template", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		templateList := templates.List()
		var completions []string
		for _, name := range templateList {
			desc := templates.GetDescription(name)
			completions = append(completions, fmt.Sprintf("%s\t%s", name, desc))
		}
		return completions, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

// runInit executes the init workflow.
func runInit(stdin io.Reader, stdout, stderr io.Writer, opts initOptions) error {
	reader := bufio.NewReader(stdin)

	outputPath := opts.outputPath
	if outputPath == "" {
		var err error
		if outputPath, err = config.DefaultConfigPath(); err != nil {
			return err
		}
	}
	outputPath = expandHomePath(outputPath)

	// Check if file exists
	if _, err := os.Stat(outputPath); err == nil && !opts.force {
		_, _ = fmt.Fprintf(stderr, "Config file already exists at %s\n", outputPath)
		if !interactive.NewPrompterWithIO(reader, stderr).Confirm("Overwrite?") {
			_, _ = fmt.Fprintln(stdout, "Aborted.")
			return nil
		}
	}

	templateName := opts.template
	if templateName == "" {
		if !isTerminal() {
			templateName = defaultTemplate
		} else {
			selected, err := selectTemplateInteractive(reader, stderr)
			if err != nil {
				return err
			}
			templateName = selected
		}
	}

	// Get template content
	var content []byte
	custom := strings.HasPrefix(templateName, "http://") || strings.HasPrefix(templateName, "https://")
	if custom {
		var err error
		content, err = fetchRemoteTemplate(templateName)
		if err != nil {
			return fmt.Errorf("failed to fetch template: %w", err)
		}
	} else {
		tmpl, err := templates.Get(templateName)
		if err != nil {
			return fmt.Errorf("failed to load template: %w", err)
		}
		content = tmpl.Content
	}

	if opts.expand {
		var unresolved []string
		content, unresolved = config.ExpandEnv(content, os.LookupEnv)
		if !quiet {
			for _, name := range unresolved {
				_, _ = fmt.Fprintf(stderr, "Warning: ${%s} is unset and has no default; left empty\n", name)
			}
		}
	}

	// Validate the template content before writing
	if err := validateTemplateContent(content); err != nil {
		return fmt.Errorf("invalid template: %w", err)
	}

	if !custom && !quiet {
		previewTemplate(stdout, templateName, content)
	}

	// Ensure parent directory exists
	parentDir := filepath.Dir(outputPath)
	if err := os.MkdirAll(parentDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", parentDir, err)
	}

	if err := os.WriteFile(outputPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	_, _ = fmt.Fprintf(stdout, "\nCreated %s\n", outputPath)
	_, _ = fmt.Fprintln(stdout, "\nNext steps:")
	_, _ = fmt.Fprintln(stdout, "  1. Set origin.url (or GWUPDATE_ORIGIN) to your release server")
	_, _ = fmt.Fprintln(stdout, "  2. Run 'gwupdate probe' to check the install directory")
	_, _ = fmt.Fprintln(stdout, "  3. Run 'gwupdate serve' to start the API")

	return nil
}

// previewTemplate shows the first lines of the template.
func previewTemplate(stdout io.Writer, name string, content []byte) {
	_, _ = fmt.Fprintf(stdout, "\nPreview of '%s' template:\n", name)
	_, _ = fmt.Fprintln(stdout, strings.Repeat("-", 40))
	lines := strings.Split(string(content), "\n")
	maxLines := 20
	if len(lines) <= maxLines {
		_, _ = fmt.Fprintln(stdout, string(content))
	} else {
		for i := 0; i < maxLines; i++ {
			_, _ = fmt.Fprintln(stdout, lines[i])
		}
		_, _ = fmt.Fprintf(stdout, "... (%d more lines)\n", len(lines)-maxLines)
	}
	_, _ = fmt.Fprintln(stdout, strings.Repeat("-", 40))
}

// selectTemplateInteractive shows an interactive menu for template selection.
func selectTemplateInteractive(reader *bufio.Reader, out io.Writer) (string, error) {
	templateList := templates.List()

	_, _ = fmt.Fprintln(out, "\nSelect a config template:")
	for i, name := range templateList {
		desc := templates.GetDescription(name)
		_, _ = fmt.Fprintf(out, "  %d. %-12s - %s\n", i+1, name, desc)
	}
	_, _ = fmt.Fprintf(out, "  %d. %-12s - Provide custom template URL\n", len(templateList)+1, "custom")

	_, _ = fmt.Fprintf(out, "\nSelect [1-%d]: ", len(templateList)+1)

	answer, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read input: %w", err)
	}

	answer = strings.TrimSpace(answer)

	num, err := strconv.Atoi(answer)
	if err != nil || num < 1 || num > len(templateList)+1 {
		return "", fmt.Errorf("invalid selection: %q", answer)
	}

	if num == len(templateList)+1 {
		_, _ = fmt.Fprint(out, "Enter template URL: ")
		url, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return "", fmt.Errorf("failed to read URL: %w", err)
		}
		return strings.TrimSpace(url), nil
	}

	return templateList[num-1], nil
}

// fetchRemoteTemplate downloads a template from a URL.
func fetchRemoteTemplate(url string) ([]byte, error) {
	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return content, nil
}

// validateTemplateContent checks that content loads as a config file.
func validateTemplateContent(content []byte) error {
	// config.Load detects the format from the extension, so keep it neutral
	tmpFile, err := os.CreateTemp("", "gwupdate-*.conf")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmpFile.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmpFile.Write(content); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	_, err = config.Load(tmpName)
	return err
}

// expandHomePath expands ~ to the user's home directory.
func expandHomePath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
