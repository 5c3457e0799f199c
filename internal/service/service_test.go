package service

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/greenwave/gwupdate/internal/config"
	"github.com/greenwave/gwupdate/internal/desktop"
	"github.com/greenwave/gwupdate/internal/types"
	"github.com/greenwave/gwupdate/internal/update"
)

var payload = []byte("GreenWave 2.0.0")

func digest(b []byte) string {
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}

type fakeOpener struct {
	dirs []string
}

func (f *fakeOpener) Open(dir string) desktop.Result {
	f.dirs = append(f.dirs, dir)
	return desktop.ResultOpened
}

func newTestService(t *testing.T, opts ...Option) (*Service, string) {
	t.Helper()
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/GreenWave_v2.0.0.exe" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(payload)
	}))
	t.Cleanup(origin.Close)

	cfg := config.Default()
	cfg.InstallDir = filepath.Join(t.TempDir(), "greenwave")
	cfg.Origin.URL = origin.URL
	cfg.Install.QuarantineDir = filepath.Join(t.TempDir(), "quarantine")
	cfg.Install.QuarantineKeep = 1

	return New(cfg, "test", zaptest.NewLogger(t), opts...), cfg.InstallDir
}

func TestServiceProbeDefaultsToInstallDir(t *testing.T) {
	svc, dir := newTestService(t)

	if got := svc.Probe(context.Background(), ""); got.Status != types.StatusNewDir {
		t.Errorf("Probe() = %v, want new_dir", got.Status)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("install dir not created: %v", err)
	}
}

func TestServiceInstallAndProbe(t *testing.T) {
	svc, dir := newTestService(t)
	ctx := context.Background()
	svc.Probe(ctx, "")

	res := svc.Install(ctx, update.Request{Version: "2.0.0", ExpectedHash: digest(payload)}, nil)
	if res.Outcome != types.OutcomeSuccess {
		t.Fatalf("Install() = %v (%s), want success", res.Outcome, res.Reason)
	}

	got := svc.Probe(ctx, dir)
	if got.Status != types.StatusFound || got.Version != "2.0.0" || got.Hash != digest(payload) {
		t.Errorf("Probe() after install = %+v", got)
	}
}

func TestServiceInstallQuarantinePrunes(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	svc.Probe(ctx, "")

	for i := 0; i < 3; i++ {
		res := svc.Install(ctx, update.Request{Version: "2.0.0", ExpectedHash: "00000000000000000000000000000000"}, nil)
		if res.Outcome != types.OutcomeBadHash {
			t.Fatalf("Install() = %v, want bad_hash", res.Outcome)
		}
		if res.Quarantined == "" {
			t.Fatal("Install() should report the quarantine id")
		}
	}

	records, err := svc.Quarantine().List()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Errorf("quarantine holds %d entries, want 1 after pruning", len(records))
	}
}

func TestServiceResolveDir(t *testing.T) {
	svc, dir := newTestService(t)

	if got := svc.ResolveDir("  "); got != dir {
		t.Errorf("ResolveDir(blank) = %v, want %v", got, dir)
	}
	if got := svc.ResolveDir("relative"); !filepath.IsAbs(got) {
		t.Errorf("ResolveDir(relative) = %v, want absolute", got)
	}
}

func TestServiceOpen(t *testing.T) {
	opener := &fakeOpener{}
	svc, dir := newTestService(t, WithOpener(opener))

	if got := svc.Open(""); got != desktop.ResultOpened {
		t.Errorf("Open() = %v, want opened", got)
	}
	if len(opener.dirs) != 1 || opener.dirs[0] != dir {
		t.Errorf("opener called with %v, want [%s]", opener.dirs, dir)
	}
}

func TestServiceFileName(t *testing.T) {
	svc, _ := newTestService(t)

	name, err := svc.FileName("2.0.0")
	if err != nil {
		t.Fatal(err)
	}
	if name != "GreenWave_v2.0.0.exe" {
		t.Errorf("FileName() = %v", name)
	}
	if _, err := svc.FileName("2_v0"); err == nil {
		t.Error("FileName() should reject a version containing the marker")
	}
}
