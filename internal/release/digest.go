package release

import (
	"crypto/md5" //nolint:gosec // G501: integrity check against a server-supplied digest, not a security boundary
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// DigestSize is the digest length in bytes (128 bits).
const DigestSize = md5.Size

// Digest returns the lowercase hex MD5 of everything read from r.
func Digest(r io.Reader) (string, error) {
	//nolint:gosec // G401: see import comment
	h := md5.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// DigestFile returns the lowercase hex MD5 of the file at path.
func DigestFile(path string) (string, error) {
	//nolint:gosec // G304: path is chosen by the caller
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	sum, err := Digest(f)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return sum, nil
}

// NormalizeDigest trims and lowercases a hex digest.
func NormalizeDigest(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// SameDigest compares two hex digests after normalization.
// An empty digest never matches.
func SameDigest(a, b string) bool {
	a, b = NormalizeDigest(a), NormalizeDigest(b)
	return a != "" && a == b
}

// ValidDigest reports whether s is a well-formed hex digest of DigestSize bytes.
func ValidDigest(s string) bool {
	s = NormalizeDigest(s)
	if len(s) != hex.EncodedLen(DigestSize) {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
