// Package probe inspects an install directory and reports which release,
// if any, it currently holds.
package probe

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/greenwave/gwupdate/internal/release"
	"github.com/greenwave/gwupdate/internal/types"
)

// Result is the outcome of a single probe. It is built fresh on every call.
type Result struct {
	Status   types.ProbeStatus `json:"status" yaml:"status"`
	FileName string            `json:"fileName,omitempty" yaml:"file_name,omitempty"`
	Version  string            `json:"version" yaml:"version"`
	Hash     string            `json:"hash,omitempty" yaml:"hash,omitempty"`
	Reason   string            `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// String renders the result for text output.
func (r Result) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "status:  %s\n", r.Status)
	if r.FileName != "" {
		fmt.Fprintf(&b, "file:    %s\n", r.FileName)
	}
	fmt.Fprintf(&b, "version: %s", r.Version)
	if r.Hash != "" {
		fmt.Fprintf(&b, "\nhash:    %s", r.Hash)
	}
	if r.Reason != "" {
		fmt.Fprintf(&b, "\nreason:  %s", r.Reason)
	}
	return b.String()
}

// Prober reports the installation state of a directory.
type Prober interface {
	Probe(ctx context.Context, dir string) Result
}

// FilesystemProber probes install directories on the local filesystem.
type FilesystemProber struct {
	ext    string
	logger *zap.Logger
}

// New creates a FilesystemProber matching executables with extension ext (e.g. ".exe").
func New(ext string, logger *zap.Logger) *FilesystemProber {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FilesystemProber{ext: ext, logger: logger}
}

// Probe implements Prober.
//
// A missing directory is created and reported as new_dir. Otherwise the
// entries are walked in name order and only the first non-directory entry
// carrying the executable extension is inspected; the directory is a
// single-release slot, so further candidates are never compared. Symlinks
// are followed.
func (p *FilesystemProber) Probe(ctx context.Context, dir string) Result {
	out := Result{Version: release.UnknownVersion}
	log := p.logger.With(zap.String("dir", dir))

	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Info("install directory not found, creating it")
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Warn("failed to create install directory", zap.Error(err))
		}
		out.Status = types.StatusNewDir
		return out
	case err != nil:
		return failed(out, log, fmt.Errorf("stat install directory: %w", err))
	case !info.IsDir():
		return failed(out, log, fmt.Errorf("%s is not a directory", dir))
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return failed(out, log, fmt.Errorf("read install directory: %w", err))
	}
	if len(entries) == 0 {
		log.Debug("install directory is empty")
		out.Status = types.StatusEmptyDir
		return out
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return failed(out, log, err)
		}
		name := entry.Name()
		if !release.HasExtension(name, p.ext) || isDir(dir, entry) {
			continue
		}

		version, ok := release.ParseVersion(name, p.ext)
		if !ok {
			log.Warn("could not detect file version", zap.String("file", name))
			out.Status = types.StatusCorruptDir
			out.FileName = name
			return out
		}

		hash, err := release.DigestFile(filepath.Join(dir, name))
		if err != nil {
			out.FileName = name
			return failed(out, log, err)
		}

		log.Debug("detected local version",
			zap.String("file", name),
			zap.String("version", version),
			zap.String("md5", hash),
		)
		out.Status = types.StatusFound
		out.FileName = name
		out.Version = version
		out.Hash = hash
		return out
	}

	log.Debug("no installed version found")
	out.Status = types.StatusMissing
	return out
}

// isDir reports whether entry is a directory or a symlink to one. A dangling
// link is not a directory; hashing it surfaces the error.
func isDir(dir string, entry fs.DirEntry) bool {
	if entry.Type()&fs.ModeSymlink == 0 {
		return entry.IsDir()
	}
	info, err := os.Stat(filepath.Join(dir, entry.Name()))
	return err == nil && info.IsDir()
}

func failed(out Result, log *zap.Logger, err error) Result {
	log.Error("probe failed", zap.Error(err))
	out.Status = types.StatusError
	out.Reason = err.Error()
	return out
}
