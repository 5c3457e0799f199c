// Package config handles gwupdate configuration loading and location resolution.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/greenwave/gwupdate/internal/quarantine"
	"github.com/greenwave/gwupdate/internal/types"
)

// ErrNotFound is returned by FindConfig when no config file exists in the standard locations.
var ErrNotFound = errors.New("no config file found in standard locations")

// Defaults for a fresh installation.
const (
	DefaultProduct          = "GreenWave"
	DefaultExtension        = ".exe"
	DefaultArtifact         = "{file}"
	DefaultDialTimeout      = "10s"
	DefaultHeaderTimeout    = "30s"
	DefaultListen           = "127.0.0.1:7345"
	DefaultInstallRateLimit = 10
	DefaultJobRetention     = "15m"
	DefaultLogLevel         = "info"
)

// Config represents the parsed configuration file.
type Config struct {
	Version    int           `yaml:"version" toml:"version" json:"version"`
	Product    string        `yaml:"product" toml:"product" json:"product"`
	Extension  string        `yaml:"extension" toml:"extension" json:"extension"`
	InstallDir string        `yaml:"install_dir" toml:"install_dir" json:"install_dir"`
	Origin     OriginConfig  `yaml:"origin" toml:"origin" json:"origin"`
	Install    InstallConfig `yaml:"install" toml:"install" json:"install"`
	Server     ServerConfig  `yaml:"server" toml:"server" json:"server"`
	Logging    LoggingConfig `yaml:"logging" toml:"logging" json:"logging"`
}

// OriginConfig describes where releases are downloaded from.
type OriginConfig struct {
	URL                   string `yaml:"url" toml:"url" json:"url"`
	Artifact              string `yaml:"artifact" toml:"artifact" json:"artifact"` // {file}, {product} and {version} are substituted
	DialTimeout           string `yaml:"dial_timeout" toml:"dial_timeout" json:"dial_timeout"`
	ResponseHeaderTimeout string `yaml:"response_header_timeout" toml:"response_header_timeout" json:"response_header_timeout"`
}

// InstallConfig controls what happens around an install.
type InstallConfig struct {
	BadHashPolicy  types.BadHashPolicy `yaml:"bad_hash_policy" toml:"bad_hash_policy" json:"bad_hash_policy"`
	QuarantineDir  string              `yaml:"quarantine_dir" toml:"quarantine_dir" json:"quarantine_dir"`
	QuarantineKeep int                 `yaml:"quarantine_keep" toml:"quarantine_keep" json:"quarantine_keep"`
}

// ServerConfig configures `gwupdate serve`.
type ServerConfig struct {
	Listen           string `yaml:"listen" toml:"listen" json:"listen"`
	InstallRateLimit int    `yaml:"install_rate_limit" toml:"install_rate_limit" json:"install_rate_limit"` // requests per minute per client
	JobRetention     string `yaml:"job_retention" toml:"job_retention" json:"job_retention"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string          `yaml:"level" toml:"level" json:"level"`
	Format types.LogFormat `yaml:"format" toml:"format" json:"format"`
}

// Default returns the built-in configuration used when no file exists.
func Default() *Config {
	quarantineDir, err := quarantine.DefaultDir()
	if err != nil {
		quarantineDir = filepath.Join(os.TempDir(), "gwupdate", "quarantine")
	}

	return &Config{
		Version:    1,
		Product:    DefaultProduct,
		Extension:  DefaultExtension,
		InstallDir: DefaultInstallDir(),
		Origin: OriginConfig{
			Artifact:              DefaultArtifact,
			DialTimeout:           DefaultDialTimeout,
			ResponseHeaderTimeout: DefaultHeaderTimeout,
		},
		Install: InstallConfig{
			BadHashPolicy:  types.PolicyQuarantine,
			QuarantineDir:  quarantineDir,
			QuarantineKeep: quarantine.DefaultKeepCount,
		},
		Server: ServerConfig{
			Listen:           DefaultListen,
			InstallRateLimit: DefaultInstallRateLimit,
			JobRetention:     DefaultJobRetention,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: types.LogFormatConsole,
		},
	}
}

// DefaultInstallDir returns the platform install directory.
// Windows uses C:\GreenWave, elsewhere $XDG_DATA_HOME/greenwave or ~/.local/share/greenwave.
func DefaultInstallDir() string {
	if runtime.GOOS == "windows" {
		return `C:\GreenWave`
	}
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "greenwave")
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "greenwave")
}

// DefaultConfigPath returns where `gwupdate init` writes a new config file.
func DefaultConfigPath() (string, error) {
	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to determine home directory: %w", err)
		}
		xdgConfig = filepath.Join(home, ".config")
	}
	return filepath.Join(xdgConfig, "gwupdate", "gwupdate.yaml"), nil
}

// DialTimeoutDuration returns the parsed origin dial timeout.
func (o OriginConfig) DialTimeoutDuration() time.Duration {
	return parseDurationOr(o.DialTimeout, DefaultDialTimeout)
}

// ResponseHeaderTimeoutDuration returns the parsed origin response header timeout.
func (o OriginConfig) ResponseHeaderTimeoutDuration() time.Duration {
	return parseDurationOr(o.ResponseHeaderTimeout, DefaultHeaderTimeout)
}

// JobRetentionDuration returns how long finished install jobs are kept.
func (s ServerConfig) JobRetentionDuration() time.Duration {
	return parseDurationOr(s.JobRetention, DefaultJobRetention)
}

func parseDurationOr(value, fallback string) time.Duration {
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	d, _ := time.ParseDuration(fallback)
	return d
}

// FindConfig searches for a config file in the standard locations.
// Returns the path to the first file found, or ErrNotFound.
func FindConfig(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("specified config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	// Check GWUPDATE_CONFIG environment variable
	if envPath := os.Getenv("GWUPDATE_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}

	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		xdgConfig = filepath.Join(home, ".config")
	}

	searchPaths := []string{
		filepath.Join(xdgConfig, "gwupdate"),
		filepath.Join(home, ".gwupdate"),
		home,
	}

	fileNames := []string{
		"gwupdate.yaml",
		"gwupdate.yml",
		"gwupdate.toml",
		"gwupdate.json",
		".gwupdate.yaml",
		".gwupdate.yml",
		".gwupdate.toml",
		".gwupdate.json",
	}

	for _, dir := range searchPaths {
		for _, name := range fileNames {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
				return path, nil
			}
		}
	}

	return "", ErrNotFound
}

// Load reads and parses a config file from the given path.
// Fields absent from the file keep their defaults.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	format := detectFormat(path, content)
	if format == FormatUnknown {
		return nil, fmt.Errorf("unable to detect file format for %s", path)
	}

	cfg := Default()
	if err := parse(content, format, cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Resolve finds and loads the active config.
// It returns the path that was loaded, or "" when built-in defaults apply.
func Resolve(explicitPath string) (*Config, string, error) {
	path, err := FindConfig(explicitPath)
	if errors.Is(err, ErrNotFound) {
		return Default(), "", nil
	}
	if err != nil {
		return nil, "", err
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, path, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, path, nil
}
