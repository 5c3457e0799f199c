package cmd

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/greenwave/gwupdate/internal/config"
	"github.com/greenwave/gwupdate/internal/output"
	"github.com/greenwave/gwupdate/internal/service"
)

// loadConfig resolves the active config and applies the verbosity flags to it.
func loadConfig() (*config.Config, error) {
	cfg, _, err := config.Resolve(configPath)
	if err != nil {
		return nil, err
	}
	switch {
	case quiet:
		cfg.Logging.Level = "error"
	case verbose:
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// setup loads the config and builds the logger and service every command shares.
// overrides apply command flags to the config first. The caller must Sync the logger.
func setup(overrides ...func(*config.Config) error) (*config.Config, *zap.Logger, *service.Service, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	for _, o := range overrides {
		if err := o(cfg); err != nil {
			return nil, nil, nil, err
		}
	}
	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	svc := service.New(cfg, buildVersion, logger)
	return cfg, logger, svc, nil
}

func newWriter(w io.Writer) (*output.Writer, error) {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return nil, err
	}
	return output.NewWriter(w, format), nil
}

// dirArg returns the optional directory argument.
func dirArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}

// formatSize formats a byte size as a human-readable string.
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
