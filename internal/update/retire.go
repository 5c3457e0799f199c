package update

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// retire removes the superseded release from dir.
// It returns the removed name, or "" when there was nothing to remove.
func retire(dir, replacing, installed string) (string, error) {
	replacing = strings.TrimSpace(replacing)
	if replacing == "" {
		return "", nil
	}
	if err := checkBareName(replacing); err != nil {
		return "", err
	}

	oldPath := filepath.Join(dir, replacing)
	oldInfo, err := os.Lstat(oldPath)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", replacing, err)
	}
	if !oldInfo.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s is not a regular file", ErrUnsafeName, replacing)
	}

	// Case-insensitive filesystems can resolve a differently spelled name to the new release.
	if newInfo, err := os.Stat(filepath.Join(dir, installed)); err == nil && os.SameFile(oldInfo, newInfo) {
		return "", nil
	}

	if err := os.Remove(oldPath); err != nil {
		return "", fmt.Errorf("failed to remove %s: %w", replacing, err)
	}
	return replacing, nil
}

// checkBareName rejects anything that is not a plain file name.
func checkBareName(name string) error {
	if name == "." || name == ".." || filepath.Base(name) != name || strings.ContainsAny(name, `/\`) || filepath.VolumeName(name) != "" {
		return fmt.Errorf("%w: %q must be a bare file name", ErrUnsafeName, name)
	}
	return nil
}
