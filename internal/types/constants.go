// Package types provides type-safe constants for the gwupdate status model.
//
// This package centralizes all enumerated values that cross a boundary
// (CLI output, HTTP API, config file), replacing magic strings with typed
// constants that provide validation methods.
//
// SYNC REQUIREMENT: The literal values are part of the host contract and
// must stay in sync with:
//   - internal/server (JSON responses)
//   - internal/config/validate.go (runtime validation)
package types

import (
	"fmt"
	"strings"
)

// ProbeStatus is the installation status reported by a directory probe.
type ProbeStatus string

const (
	// StatusMissing indicates the directory holds entries but no executable.
	StatusMissing ProbeStatus = "missing"
	// StatusNewDir indicates the directory did not exist and was created.
	StatusNewDir ProbeStatus = "new_dir"
	// StatusEmptyDir indicates the directory exists and has no entries.
	StatusEmptyDir ProbeStatus = "empty_dir"
	// StatusCorruptDir indicates an executable whose name carries no version.
	StatusCorruptDir ProbeStatus = "corrupt_dir"
	// StatusFound indicates a versioned executable was found and hashed.
	StatusFound ProbeStatus = "found"
	// StatusError indicates the directory or executable could not be read.
	StatusError ProbeStatus = "error"
)

// AllProbeStatuses returns all valid probe statuses.
func AllProbeStatuses() []ProbeStatus {
	return []ProbeStatus{StatusMissing, StatusNewDir, StatusEmptyDir, StatusCorruptDir, StatusFound, StatusError}
}

// Validate checks if the ProbeStatus is a valid value.
func (s ProbeStatus) Validate() error {
	switch s {
	case StatusMissing, StatusNewDir, StatusEmptyDir, StatusCorruptDir, StatusFound, StatusError:
		return nil
	case "":
		return fmt.Errorf("probe status is required")
	default:
		return fmt.Errorf("invalid probe status '%s'", s)
	}
}

// String returns the string representation of the ProbeStatus.
func (s ProbeStatus) String() string {
	return string(s)
}

// IsInstalled returns true if a usable release was found.
func (s ProbeStatus) IsInstalled() bool {
	return s == StatusFound
}

// NeedsInstall returns true if the directory holds no release at all.
func (s ProbeStatus) NeedsInstall() bool {
	return s == StatusMissing || s == StatusNewDir || s == StatusEmptyDir
}

// Outcome is the terminal result of an install.
type Outcome string

const (
	// OutcomeSuccess indicates the release was downloaded, verified and committed.
	OutcomeSuccess Outcome = "success"
	// OutcomeBadHash indicates the downloaded bytes did not match the expected hash.
	OutcomeBadHash Outcome = "bad_hash"
	// OutcomeFailed indicates a transport or IO error before verification.
	OutcomeFailed Outcome = "failed"
)

// AllOutcomes returns all valid install outcomes.
func AllOutcomes() []Outcome {
	return []Outcome{OutcomeSuccess, OutcomeBadHash, OutcomeFailed}
}

// Validate checks if the Outcome is a valid value.
func (o Outcome) Validate() error {
	switch o {
	case OutcomeSuccess, OutcomeBadHash, OutcomeFailed:
		return nil
	case "":
		return fmt.Errorf("outcome is required")
	default:
		return fmt.Errorf("invalid outcome '%s' (must be success, bad_hash, or failed)", o)
	}
}

// String returns the string representation of the Outcome.
func (o Outcome) String() string {
	return string(o)
}

// ExitCode maps the outcome to a process exit status.
func (o Outcome) ExitCode() int {
	switch o {
	case OutcomeSuccess:
		return 0
	case OutcomeBadHash:
		return 2
	default:
		return 1
	}
}

// Phase is a state of the per-install state machine.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseDownloading Phase = "downloading"
	PhaseVerifying   Phase = "verifying"
	PhaseCleanup     Phase = "cleanup"
	PhaseSuccess     Phase = "success"
	PhaseBadHash     Phase = "bad_hash"
	PhaseFailed      Phase = "failed"
)

// String returns the string representation of the Phase.
func (p Phase) String() string {
	return string(p)
}

// IsTerminal returns true for success, bad_hash and failed.
func (p Phase) IsTerminal() bool {
	return p == PhaseSuccess || p == PhaseBadHash || p == PhaseFailed
}

// PhaseFor returns the terminal phase matching an outcome.
func PhaseFor(o Outcome) Phase {
	switch o {
	case OutcomeSuccess:
		return PhaseSuccess
	case OutcomeBadHash:
		return PhaseBadHash
	default:
		return PhaseFailed
	}
}

// BadHashPolicy decides what happens to downloaded bytes that fail verification.
type BadHashPolicy string

const (
	// PolicyQuarantine moves the file out of the install slot into the quarantine store.
	PolicyQuarantine BadHashPolicy = "quarantine"
	// PolicyKeep leaves the file at its destination path.
	PolicyKeep BadHashPolicy = "keep"
	// PolicyDelete discards the file.
	PolicyDelete BadHashPolicy = "delete"
)

// AllBadHashPolicies returns all valid bad-hash policies.
func AllBadHashPolicies() []BadHashPolicy {
	return []BadHashPolicy{PolicyQuarantine, PolicyKeep, PolicyDelete}
}

// Validate checks if the BadHashPolicy is a valid value.
// Empty policy is considered valid (defaults to quarantine).
func (p BadHashPolicy) Validate() error {
	switch p {
	case PolicyQuarantine, PolicyKeep, PolicyDelete, "":
		return nil
	default:
		return fmt.Errorf("invalid bad hash policy '%s' (must be quarantine, keep, or delete)", p)
	}
}

// String returns the string representation of the BadHashPolicy.
func (p BadHashPolicy) String() string {
	return string(p)
}

// Default returns the default policy if empty, otherwise returns the current policy.
func (p BadHashPolicy) Default() BadHashPolicy {
	if p == "" {
		return PolicyQuarantine
	}
	return p
}

// ParseBadHashPolicy parses a string into a BadHashPolicy.
func ParseBadHashPolicy(s string) (BadHashPolicy, error) {
	p := BadHashPolicy(strings.ToLower(s))
	if err := p.Validate(); err != nil {
		return "", err
	}
	return p.Default(), nil
}

// LogFormat is the encoding used for log output.
type LogFormat string

const (
	LogFormatJSON    LogFormat = "json"
	LogFormatConsole LogFormat = "console"
)

// Validate checks if the LogFormat is a valid value.
// Empty format is considered valid (defaults to console).
func (f LogFormat) Validate() error {
	switch f {
	case LogFormatJSON, LogFormatConsole, "":
		return nil
	default:
		return fmt.Errorf("invalid log format '%s' (must be json or console)", f)
	}
}

// String returns the string representation of the LogFormat.
func (f LogFormat) String() string {
	return string(f)
}
