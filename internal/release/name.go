// Package release formats and parses release filenames and computes the
// content digests used to verify them.
//
// A release file is named "<product>_v<version><ext>". The filename is the
// only record of the installed version, so names are validated when they
// are produced rather than only when they are read back.
package release

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Marker separates the product name from the version.
const Marker = "_v"

// UnknownVersion is reported when no version could be determined.
const UnknownVersion = "?.?.?"

// ErrInvalidName is returned when a release filename cannot be formed.
var ErrInvalidName = errors.New("invalid release name")

var (
	productRegex   = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)
	versionRegex   = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._+-]*$`)
	extensionRegex = regexp.MustCompile(`^\.[A-Za-z0-9]+$`)
)

// FileName returns "<product>_v<version><ext>".
// Returns ErrInvalidName if the result would not parse back to version.
func FileName(product, version, ext string) (string, error) {
	if err := ValidateExtension(ext); err != nil {
		return "", err
	}
	if err := ValidateProduct(product); err != nil {
		return "", err
	}
	if err := ValidateVersion(version, ext); err != nil {
		return "", err
	}
	return product + Marker + version + ext, nil
}

// ValidateProduct checks that product can prefix a release filename.
func ValidateProduct(product string) error {
	if !productRegex.MatchString(product) || strings.Contains(product, Marker) {
		return fmt.Errorf("%w: product %q", ErrInvalidName, product)
	}
	return nil
}

// ValidateVersion checks that version can be embedded in a release filename.
func ValidateVersion(version, ext string) error {
	if !versionRegex.MatchString(version) {
		return fmt.Errorf("%w: version %q", ErrInvalidName, version)
	}
	if strings.Contains(version, Marker) {
		return fmt.Errorf("%w: version %q contains %q", ErrInvalidName, version, Marker)
	}
	if indexFold(version, ext) >= 0 {
		return fmt.Errorf("%w: version %q contains %q", ErrInvalidName, version, ext)
	}
	return nil
}

// ValidateExtension checks that ext is a dot followed by alphanumerics.
func ValidateExtension(ext string) error {
	if !extensionRegex.MatchString(ext) {
		return fmt.Errorf("%w: extension %q (must look like .exe)", ErrInvalidName, ext)
	}
	return nil
}

// HasExtension reports whether name ends with ext, ignoring case.
func HasExtension(name, ext string) bool {
	return len(name) > len(ext) && strings.EqualFold(name[len(name)-len(ext):], ext)
}

// ParseVersion extracts the version from a release filename.
// The version is the text after the first marker, up to the next marker or
// the first occurrence of ext. Returns false if the marker is absent or the
// version would be empty.
func ParseVersion(name, ext string) (string, bool) {
	parts := strings.Split(name, Marker)
	if len(parts) < 2 {
		return "", false
	}

	version := parts[1]
	if i := indexFold(version, ext); i >= 0 {
		version = version[:i]
	}
	if version == "" {
		return "", false
	}
	return version, true
}

// indexFold is strings.Index ignoring ASCII case.
func indexFold(s, substr string) int {
	if substr == "" {
		return -1
	}
	return strings.Index(strings.ToLower(s), strings.ToLower(substr))
}
