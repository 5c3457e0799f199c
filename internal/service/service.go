// Package service wires the probe, installer, quarantine store and file
// browser behind one object shared by the CLI and the HTTP API.
package service

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/greenwave/gwupdate/internal/config"
	"github.com/greenwave/gwupdate/internal/desktop"
	"github.com/greenwave/gwupdate/internal/metrics"
	"github.com/greenwave/gwupdate/internal/probe"
	"github.com/greenwave/gwupdate/internal/quarantine"
	"github.com/greenwave/gwupdate/internal/release"
	"github.com/greenwave/gwupdate/internal/types"
	"github.com/greenwave/gwupdate/internal/update"
)

// Opener shows a directory to the user.
type Opener interface {
	Open(dir string) desktop.Result
}

// Service runs probes, installs and open requests against the configured product.
type Service struct {
	cfg        *config.Config
	prober     probe.Prober
	installer  *update.Installer
	quarantine *quarantine.Manager
	opener     Opener
	logger     *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithOpener replaces the file browser used by Open.
func WithOpener(o Opener) Option {
	return func(s *Service) {
		s.opener = o
	}
}

// New builds a Service from cfg. version is reported in the origin User-Agent.
func New(cfg *config.Config, version string, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	origin := update.NewHTTPOrigin(cfg.Origin.URL,
		update.WithArtifact(cfg.Origin.Artifact),
		update.WithUserAgent(update.Detect().UserAgent(version)),
		update.WithHTTPClient(update.NewHTTPClient(
			cfg.Origin.DialTimeoutDuration(),
			cfg.Origin.ResponseHeaderTimeoutDuration(),
		)),
	)
	store := quarantine.NewManagerWithDir(cfg.Install.QuarantineDir)

	s := &Service{
		cfg:    cfg,
		prober: probe.New(cfg.Extension, logger.Named("probe")),
		installer: update.NewInstaller(cfg.Product, cfg.Extension, origin,
			update.WithBadHashPolicy(cfg.Install.BadHashPolicy),
			update.WithQuarantine(store),
			update.WithLogger(logger.Named("install")),
		),
		quarantine: store,
		opener:     desktop.NewOpener(logger.Named("desktop")),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the active configuration.
func (s *Service) Config() *config.Config {
	return s.cfg
}

// Quarantine returns the quarantine store.
func (s *Service) Quarantine() *quarantine.Manager {
	return s.quarantine
}

// ResolveDir returns dir as an absolute path, or the configured install directory when dir is empty.
func (s *Service) ResolveDir(dir string) string {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = s.cfg.InstallDir
	}
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return filepath.Clean(dir)
}

// FileName returns the release filename an install of version would produce.
func (s *Service) FileName(version string) (string, error) {
	return release.FileName(s.cfg.Product, version, s.cfg.Extension)
}

// Probe reports the installation status of dir.
func (s *Service) Probe(ctx context.Context, dir string) probe.Result {
	res := s.prober.Probe(ctx, s.ResolveDir(dir))
	metrics.IncProbe(res.Status.String())
	return res
}

// Install runs one install. progress may be nil.
func (s *Service) Install(ctx context.Context, req update.Request, progress update.ProgressFunc) update.Result {
	req.Dir = s.ResolveDir(req.Dir)

	start := time.Now()
	res := s.installer.InstallWithProgress(ctx, req, progress)
	metrics.RecordInstall(res.Outcome.String(), res.Bytes, time.Since(start))

	if res.RetireError != "" {
		metrics.IncRetireError()
	}
	if res.Quarantined != "" {
		metrics.IncQuarantined()
		s.pruneQuarantine()
	}
	if res.Outcome != types.OutcomeSuccess {
		s.logger.Info("install did not succeed", zap.String("outcome", res.Outcome.String()), zap.String("reason", res.Reason))
	}
	return res
}

// Open shows dir in the file browser.
func (s *Service) Open(dir string) desktop.Result {
	return s.opener.Open(s.ResolveDir(dir))
}

func (s *Service) pruneQuarantine() {
	pruned, err := s.quarantine.Prune(s.cfg.Install.QuarantineKeep)
	if err != nil {
		s.logger.Warn("failed to prune quarantine", zap.Error(err))
		return
	}
	if len(pruned.Deleted) > 0 {
		s.logger.Debug("pruned quarantine", zap.Int("deleted", len(pruned.Deleted)), zap.Int("kept", pruned.Kept))
	}
}
