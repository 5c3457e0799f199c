package probe

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/greenwave/gwupdate/internal/release"
	"github.com/greenwave/gwupdate/internal/types"
)

func newTestProber() *FilesystemProber {
	return New(".exe", zap.NewNop())
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
}

func TestProbe_Found(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		version string
	}{
		{"release", "GreenWave_v0.3.5.exe", "0.3.5"},
		{"prerelease", "app_v1.0.0-rc.1.exe", "1.0.0-rc.1"},
		{"uppercase extension", "APP_v2.0.0.EXE", "2.0.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			content := "binary for " + tt.file
			writeFile(t, dir, tt.file, content)

			want, err := release.DigestFile(filepath.Join(dir, tt.file))
			if err != nil {
				t.Fatal(err)
			}

			got := newTestProber().Probe(context.Background(), dir)
			if got.Status != types.StatusFound {
				t.Fatalf("Status = %s, want found (reason %q)", got.Status, got.Reason)
			}
			if got.Version != tt.version {
				t.Errorf("Version = %q, want %q", got.Version, tt.version)
			}
			if got.FileName != tt.file {
				t.Errorf("FileName = %q, want %q", got.FileName, tt.file)
			}
			if got.Hash != want {
				t.Errorf("Hash = %q, want %q", got.Hash, want)
			}
		})
	}
}

func TestProbe_CorruptName(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "GreenWave.exe", "no version here")
	// Sorts after the corrupt file; must not be considered.
	writeFile(t, dir, "Zed_v1.0.0.exe", "valid")

	got := newTestProber().Probe(context.Background(), dir)
	if got.Status != types.StatusCorruptDir {
		t.Fatalf("Status = %s, want corrupt_dir", got.Status)
	}
	if got.Version != release.UnknownVersion {
		t.Errorf("Version = %q, want placeholder", got.Version)
	}
	if got.Hash != "" {
		t.Errorf("Hash = %q, want empty", got.Hash)
	}
}

func TestProbe_NewDirThenEmpty(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "GreenWave")
	p := newTestProber()

	first := p.Probe(context.Background(), dir)
	if first.Status != types.StatusNewDir {
		t.Fatalf("first Status = %s, want new_dir", first.Status)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("directory was not created: %v", err)
	}

	second := p.Probe(context.Background(), dir)
	if second.Status != types.StatusEmptyDir {
		t.Errorf("second Status = %s, want empty_dir", second.Status)
	}
}

func TestProbe_Missing(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "readme.txt", "hello")
	if err := os.Mkdir(filepath.Join(dir, "logs.exe"), 0755); err != nil {
		t.Fatal(err)
	}

	got := newTestProber().Probe(context.Background(), dir)
	if got.Status != types.StatusMissing {
		t.Errorf("Status = %s, want missing", got.Status)
	}
	if got.Version != release.UnknownVersion {
		t.Errorf("Version = %q, want placeholder", got.Version)
	}
}

func TestProbe_FirstMatchOnly(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "app_v1.0.0.exe", "old")
	writeFile(t, dir, "app_v2.0.0.exe", "new")

	got := newTestProber().Probe(context.Background(), dir)
	if got.Version != "1.0.0" {
		t.Errorf("Version = %q, want first entry 1.0.0", got.Version)
	}
}

func TestProbe_Symlink(t *testing.T) {
	target := t.TempDir()
	writeFile(t, target, "payload", "linked release")
	want, err := release.DigestFile(filepath.Join(target, "payload"))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		link       string
		wantStatus types.ProbeStatus
		wantHash   string
	}{
		{"file target", filepath.Join(target, "payload"), types.StatusFound, want},
		{"dangling", filepath.Join(target, "gone"), types.StatusError, ""},
		{"directory target", target, types.StatusMissing, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if err := os.Symlink(tt.link, filepath.Join(dir, "GreenWave_v1.0.0.exe")); err != nil {
				t.Skipf("symlinks unavailable: %v", err)
			}

			got := newTestProber().Probe(context.Background(), dir)
			if got.Status != tt.wantStatus {
				t.Fatalf("Status = %s, want %s (reason %q)", got.Status, tt.wantStatus, got.Reason)
			}
			if got.Hash != tt.wantHash {
				t.Errorf("Hash = %q, want %q", got.Hash, tt.wantHash)
			}
		})
	}
}

func TestProbe_NotADirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	got := newTestProber().Probe(context.Background(), path)
	if got.Status != types.StatusError {
		t.Fatalf("Status = %s, want error", got.Status)
	}
	if got.Reason == "" {
		t.Error("Reason should be set for error status")
	}
}

func TestProbe_Idempotent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "GreenWave_v1.2.0.exe", "payload")
	writeFile(t, dir, "notes.txt", "n/a")
	p := newTestProber()

	first := p.Probe(context.Background(), dir)
	second := p.Probe(context.Background(), dir)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("probe results differ (-first +second):\n%s", diff)
	}
}

func TestProbe_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "GreenWave_v1.2.0.exe", "payload")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := newTestProber().Probe(ctx, dir)
	if got.Status != types.StatusError {
		t.Errorf("Status = %s, want error", got.Status)
	}
}

func TestResultString(t *testing.T) {
	r := Result{Status: types.StatusFound, FileName: "a_v1.exe", Version: "1", Hash: "abc"}
	want := "status:  found\nfile:    a_v1.exe\nversion: 1\nhash:    abc"
	if got := r.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
