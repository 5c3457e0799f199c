package update

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/greenwave/gwupdate/internal/quarantine"
	"github.com/greenwave/gwupdate/internal/release"
	"github.com/greenwave/gwupdate/internal/types"
)

// Quarantiner takes ownership of downloads that failed verification.
type Quarantiner interface {
	Admit(src string, rec quarantine.Record) (*quarantine.Record, error)
}

// Installer downloads, verifies and commits releases into install directories.
type Installer struct {
	product    string
	ext        string
	fetcher    Fetcher
	policy     types.BadHashPolicy
	quarantine Quarantiner
	locks      *dirLocks
	logger     *zap.Logger
}

// Option configures an Installer
type Option func(*Installer)

// WithBadHashPolicy sets what happens to bytes that fail verification
func WithBadHashPolicy(p types.BadHashPolicy) Option {
	return func(i *Installer) {
		i.policy = p.Default()
	}
}

// WithQuarantine sets the store used by the quarantine policy
func WithQuarantine(q Quarantiner) Option {
	return func(i *Installer) {
		i.quarantine = q
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(i *Installer) {
		if l != nil {
			i.logger = l
		}
	}
}

// NewInstaller creates an installer for product releases ending in ext.
func NewInstaller(product, ext string, fetcher Fetcher, opts ...Option) *Installer {
	i := &Installer{
		product: product,
		ext:     ext,
		fetcher: fetcher,
		policy:  types.PolicyQuarantine,
		locks:   newDirLocks(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Install runs one install and reports its terminal outcome.
func (i *Installer) Install(ctx context.Context, req Request) Result {
	return i.InstallWithProgress(ctx, req, nil)
}

// InstallWithProgress is Install with phase and byte progress reported to progress.
// Installs into the same directory run one at a time.
func (i *Installer) InstallWithProgress(ctx context.Context, req Request, progress ProgressFunc) Result {
	emit := func(e Event) {
		if progress != nil {
			progress(e)
		}
	}
	log := i.logger.With(zap.String("dir", req.Dir), zap.String("version", req.Version))
	res := Result{Outcome: types.OutcomeFailed}

	fail := func(err error) Result {
		log.Error("install failed", zap.Error(err))
		res.Outcome = types.OutcomeFailed
		res.Reason = err.Error()
		emit(Event{Phase: types.PhaseFailed, BytesDone: res.Bytes, BytesTotal: -1})
		return res
	}

	if err := req.Validate(); err != nil {
		return fail(err)
	}
	if !release.ValidDigest(req.ExpectedHash) {
		// Still downloaded: the host learns about it as bad_hash.
		log.Warn("expected hash is not a hex md5 digest", zap.String("expected", req.ExpectedHash))
	}
	name, err := release.FileName(i.product, req.Version, i.ext)
	if err != nil {
		return fail(fmt.Errorf("%w: %v", ErrInvalidRequest, err))
	}
	res.FileName = name
	dest := filepath.Join(req.Dir, name)

	unlock, err := i.locks.acquire(ctx, req.Dir)
	if err != nil {
		return fail(fmt.Errorf("waiting for %s: %w", req.Dir, err))
	}
	defer unlock()

	emit(Event{Phase: types.PhaseDownloading, BytesTotal: -1})

	staged, err := newStagedFile(dest)
	if err != nil {
		return fail(fmt.Errorf("failed to open %s for writing: %w", name, err))
	}
	defer func() {
		if err := staged.Discard(); err != nil {
			log.Warn("failed to remove staged download", zap.String("path", staged.Name()), zap.Error(err))
		}
	}()

	dl, err := i.fetcher.Fetch(ctx, Artifact{Product: i.product, Version: req.Version, FileName: name})
	if err != nil {
		return fail(err)
	}
	log.Debug("downloading", zap.String("url", dl.URL), zap.Int64("size", dl.Size))

	n, err := transfer(staged, dl.Body, dl.Size, emit)
	_ = dl.Body.Close()
	res.Bytes = n
	if err != nil {
		return fail(fmt.Errorf("failed to download %s: %w", name, err))
	}
	if err := staged.Sync(); err != nil {
		return fail(fmt.Errorf("failed to flush %s: %w", name, err))
	}

	emit(Event{Phase: types.PhaseVerifying, BytesDone: n, BytesTotal: n})

	// Hash what actually landed on disk, not what passed through memory.
	hash, err := release.DigestFile(staged.Name())
	if err != nil {
		return fail(fmt.Errorf("failed to verify %s: %w", name, err))
	}
	res.Hash = hash

	if !release.SameDigest(hash, req.ExpectedHash) {
		log.Warn("hash mismatch",
			zap.String("file", name),
			zap.String("expected", release.NormalizeDigest(req.ExpectedHash)),
			zap.String("actual", hash))
		res.Outcome = types.OutcomeBadHash
		res.Reason = fmt.Sprintf("expected %s, got %s", release.NormalizeDigest(req.ExpectedHash), hash)
		i.rejectDownload(staged, req, &res, log)
		emit(Event{Phase: types.PhaseBadHash, BytesDone: n, BytesTotal: n})
		return res
	}

	if err := staged.Commit(); err != nil {
		return fail(fmt.Errorf("failed to commit %s: %w", name, err))
	}

	emit(Event{Phase: types.PhaseCleanup, BytesDone: n, BytesTotal: n})
	retired, err := retire(req.Dir, req.Replacing, name)
	res.Retired = retired
	if err != nil {
		log.Error("failed to remove replaced release", zap.String("replacing", req.Replacing), zap.Error(err))
		res.RetireError = err.Error()
	}

	res.Outcome = types.OutcomeSuccess
	log.Info("installed", zap.String("file", name), zap.String("hash", hash), zap.Int64("bytes", n))
	emit(Event{Phase: types.PhaseSuccess, BytesDone: n, BytesTotal: n})
	return res
}

// rejectDownload applies the bad-hash policy to a staged download.
func (i *Installer) rejectDownload(staged stagedFile, req Request, res *Result, log *zap.Logger) {
	switch i.policy {
	case types.PolicyKeep:
		if err := staged.Commit(); err != nil {
			log.Error("failed to keep unverified download", zap.Error(err))
		}
		return
	case types.PolicyDelete:
		return
	}

	if i.quarantine == nil {
		log.Warn("no quarantine store configured, discarding unverified download")
		return
	}

	tmp, err := staged.Detach()
	if err != nil {
		log.Error("failed to close unverified download", zap.Error(err))
		_ = os.Remove(tmp)
		return
	}
	rec, err := i.quarantine.Admit(tmp, quarantine.Record{
		FileName:     res.FileName,
		Version:      req.Version,
		InstallDir:   req.Dir,
		ExpectedHash: release.NormalizeDigest(req.ExpectedHash),
		ActualHash:   res.Hash,
	})
	if err != nil {
		log.Error("failed to quarantine unverified download", zap.Error(err))
		_ = os.Remove(tmp)
		return
	}
	res.Quarantined = rec.ID
	log.Info("quarantined unverified download", zap.String("id", rec.ID), zap.String("path", rec.Path))
}
