package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/greenwave/gwupdate/internal/release"
	"github.com/greenwave/gwupdate/internal/types"
)

// ValidationError represents a config validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the config for required fields and valid values.
// All problems are reported together.
func Validate(c *Config) error {
	var errs []ValidationError

	if c.Version != 0 && c.Version != 1 {
		errs = append(errs, ValidationError{"version", fmt.Sprintf("unsupported version %d (must be 1)", c.Version)})
	}

	if err := release.ValidateProduct(c.Product); err != nil {
		errs = append(errs, ValidationError{"product", err.Error()})
	}
	if err := release.ValidateExtension(c.Extension); err != nil {
		errs = append(errs, ValidationError{"extension", err.Error()})
	}
	if strings.TrimSpace(c.InstallDir) == "" {
		errs = append(errs, ValidationError{"install_dir", "install_dir is required"})
	}

	errs = append(errs, validateOrigin(c.Origin)...)
	errs = append(errs, validateInstall(c.Install)...)
	errs = append(errs, validateServer(c.Server)...)
	errs = append(errs, validateLogging(c.Logging)...)

	if len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(msgs, "\n  - "))
	}

	return nil
}

func validateOrigin(o OriginConfig) []ValidationError {
	var errs []ValidationError

	// An empty URL is allowed: probing works without an origin.
	if o.URL != "" {
		u, err := url.Parse(o.URL)
		switch {
		case err != nil:
			errs = append(errs, ValidationError{"origin.url", err.Error()})
		case u.Scheme != "http" && u.Scheme != "https":
			errs = append(errs, ValidationError{"origin.url", fmt.Sprintf("scheme must be http or https, got '%s'", u.Scheme)})
		case u.Host == "":
			errs = append(errs, ValidationError{"origin.url", "host is required"})
		}
	}

	if o.Artifact != "" && strings.Contains(o.Artifact, "..") {
		errs = append(errs, ValidationError{"origin.artifact", "must not contain '..'"})
	}

	errs = append(errs, validateDuration("origin.dial_timeout", o.DialTimeout)...)
	errs = append(errs, validateDuration("origin.response_header_timeout", o.ResponseHeaderTimeout)...)
	return errs
}

func validateInstall(i InstallConfig) []ValidationError {
	var errs []ValidationError

	if err := i.BadHashPolicy.Validate(); err != nil {
		errs = append(errs, ValidationError{"install.bad_hash_policy", err.Error()})
	}
	if i.BadHashPolicy.Default() == types.PolicyQuarantine && strings.TrimSpace(i.QuarantineDir) == "" {
		errs = append(errs, ValidationError{"install.quarantine_dir", "quarantine_dir is required for the quarantine policy"})
	}
	if i.QuarantineKeep < 0 {
		errs = append(errs, ValidationError{"install.quarantine_keep", "must be non-negative"})
	}
	return errs
}

func validateServer(s ServerConfig) []ValidationError {
	var errs []ValidationError

	if _, _, err := net.SplitHostPort(s.Listen); err != nil {
		errs = append(errs, ValidationError{"server.listen", fmt.Sprintf("invalid address '%s': %v", s.Listen, err)})
	}
	if s.InstallRateLimit < 0 {
		errs = append(errs, ValidationError{"server.install_rate_limit", "must be non-negative (0 disables the limit)"})
	}
	errs = append(errs, validateDuration("server.job_retention", s.JobRetention)...)
	return errs
}

func validateLogging(l LoggingConfig) []ValidationError {
	var errs []ValidationError

	if l.Level != "" {
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
			errs = append(errs, ValidationError{"logging.level", fmt.Sprintf("invalid log level '%s'", l.Level)})
		}
	}
	if err := l.Format.Validate(); err != nil {
		errs = append(errs, ValidationError{"logging.format", err.Error()})
	}
	return errs
}

func validateDuration(field, value string) []ValidationError {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return []ValidationError{{field, fmt.Sprintf("invalid duration '%s'", value)}}
	}
	if d <= 0 {
		return []ValidationError{{field, "must be positive"}}
	}
	return nil
}
