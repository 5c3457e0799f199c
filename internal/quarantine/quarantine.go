// Package quarantine keeps downloads that failed hash verification out of the
// install directory so they can be inspected and later discarded.
package quarantine

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrNotFound is returned when no quarantined file has the requested id.
var ErrNotFound = errors.New("quarantine entry not found")

const (
	payloadExt  = ".bin"
	metadataExt = ".json"
)

// Record describes one quarantined download.
type Record struct {
	ID           string    `json:"id" yaml:"id"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`
	FileName     string    `json:"file_name" yaml:"file_name"`
	Version      string    `json:"version" yaml:"version"`
	InstallDir   string    `json:"install_dir" yaml:"install_dir"`
	ExpectedHash string    `json:"expected_hash" yaml:"expected_hash"`
	ActualHash   string    `json:"actual_hash" yaml:"actual_hash"`
	Size         int64     `json:"size" yaml:"size"`
	Path         string    `json:"path,omitempty" yaml:"path,omitempty"`
}

// String renders the record for text output.
func (r Record) String() string {
	return fmt.Sprintf("%s  %s\n  version:  %s\n  dir:      %s\n  expected: %s\n  actual:   %s\n  size:     %d\n  path:     %s",
		r.ID, r.FileName, r.Version, r.InstallDir, r.ExpectedHash, r.ActualHash, r.Size, r.Path)
}

// Manager stores quarantined files in a single directory.
// Each entry is a payload file plus a JSON metadata file sharing its id.
type Manager struct {
	dir       string
	now       func() time.Time
	writeFile func(name string, data []byte, perm os.FileMode) error
}

// NewManager creates a manager at the default quarantine directory.
func NewManager() (*Manager, error) {
	dir, err := DefaultDir()
	if err != nil {
		return nil, err
	}
	return NewManagerWithDir(dir), nil
}

// NewManagerWithDir creates a manager with a custom directory.
func NewManagerWithDir(dir string) *Manager {
	return &Manager{dir: dir, now: time.Now, writeFile: os.WriteFile}
}

// DefaultDir returns $XDG_CACHE_HOME/gwupdate/quarantine, falling back to ~/.cache.
func DefaultDir() (string, error) {
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to determine home directory: %w", err)
		}
		cacheDir = filepath.Join(home, ".cache")
	}
	return filepath.Join(cacheDir, "gwupdate", "quarantine"), nil
}

// Dir returns the quarantine directory path.
func (m *Manager) Dir() string {
	return m.dir
}

// Admit moves src into the store and records rec alongside it.
// ID, CreatedAt, Size and Path are filled in by the manager.
func (m *Manager) Admit(src string, rec Record) (*Record, error) {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create quarantine directory: %w", err)
	}

	now := m.now().UTC()
	id, err := m.reserve(now.Format("2006-01-02-150405.000000"))
	if err != nil {
		return nil, err
	}
	rec.ID = id
	rec.CreatedAt = now
	rec.Path = m.payloadPath(id)

	if err := moveFile(src, rec.Path); err != nil {
		_ = os.Remove(m.metadataPath(id))
		return nil, fmt.Errorf("failed to move %s into quarantine: %w", src, err)
	}
	if info, err := os.Stat(rec.Path); err == nil {
		rec.Size = info.Size()
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err == nil {
		err = m.writeFile(m.metadataPath(id), data, 0o644)
	}
	if err != nil {
		_ = os.Remove(rec.Path)
		_ = os.Remove(m.metadataPath(id))
		return nil, fmt.Errorf("failed to write quarantine record: %w", err)
	}

	return &rec, nil
}

// reserve claims an id by exclusively creating its metadata file. Entries
// admitted within the same clock tick get a numeric suffix.
func (m *Manager) reserve(base string) (string, error) {
	id := base
	for n := 1; ; n++ {
		f, err := os.OpenFile(m.metadataPath(id), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			_ = f.Close()
			return id, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("failed to reserve quarantine entry: %w", err)
		}
		id = fmt.Sprintf("%s-%d", base, n)
	}
}

// List returns all records sorted by creation time (newest first).
func (m *Manager) List() ([]Record, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Record{}, nil
		}
		return nil, fmt.Errorf("failed to read quarantine directory: %w", err)
	}

	records := []Record{}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != metadataExt {
			continue
		}
		rec, err := m.load(filepath.Join(m.dir, entry.Name()))
		if err != nil {
			continue
		}
		records = append(records, *rec)
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID > records[j].ID
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	return records, nil
}

// Get retrieves a record by id. Use "latest" for the most recent one.
func (m *Manager) Get(id string) (*Record, error) {
	if id == "latest" {
		records, err := m.List()
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			return nil, fmt.Errorf("%w: quarantine is empty", ErrNotFound)
		}
		return &records[0], nil
	}
	if err := checkID(id); err != nil {
		return nil, err
	}
	return m.load(m.metadataPath(id))
}

// Delete removes a quarantined file and its record.
func (m *Manager) Delete(id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	meta := m.metadataPath(id)
	if _, err := os.Stat(meta); os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if err := os.Remove(m.payloadPath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete quarantined file: %w", err)
	}
	if err := os.Remove(meta); err != nil {
		return fmt.Errorf("failed to delete quarantine record: %w", err)
	}
	return nil
}

func (m *Manager) load(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, strings.TrimSuffix(filepath.Base(path), metadataExt))
		}
		return nil, fmt.Errorf("failed to read quarantine record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse quarantine record: %w", err)
	}
	return &rec, nil
}

func (m *Manager) payloadPath(id string) string {
	return filepath.Join(m.dir, id+payloadExt)
}

func (m *Manager) metadataPath(id string) string {
	return filepath.Join(m.dir, id+metadataExt)
}

func checkID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("%w: invalid id %q", ErrNotFound, id)
	}
	return nil
}

// moveFile renames src to dst, copying when they live on different filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return err
	}
	_ = in.Close()
	return os.Remove(src)
}
