package update

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/greenwave/gwupdate/internal/probe"
	"github.com/greenwave/gwupdate/internal/quarantine"
	"github.com/greenwave/gwupdate/internal/types"
)

var releaseBytes = []byte("GreenWave release 1.2.0 payload")

func md5Hex(b []byte) string {
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}

// newReleaseServer serves body for every request and counts hits.
func newReleaseServer(t *testing.T, body []byte) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write(body)
	}))
	t.Cleanup(server.Close)
	return server, &hits
}

func newTestInstaller(url string, opts ...Option) *Installer {
	return NewInstaller("GreenWave", ".exe", NewHTTPOrigin(url), opts...)
}

func listNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	names := []string{}
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func TestInstall_Success(t *testing.T) {
	server, _ := newReleaseServer(t, releaseBytes)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "GreenWave_v1.0.0.exe"), "old release")

	inst := newTestInstaller(server.URL)
	res := inst.Install(context.Background(), Request{
		Dir:          dir,
		Version:      "1.2.0",
		ExpectedHash: md5Hex(releaseBytes),
		Replacing:    "GreenWave_v1.0.0.exe",
	})

	if res.Outcome != types.OutcomeSuccess {
		t.Fatalf("Install() outcome = %v (%s), want success", res.Outcome, res.Reason)
	}
	if res.Retired != "GreenWave_v1.0.0.exe" {
		t.Errorf("Install() Retired = %q", res.Retired)
	}
	if res.Bytes != int64(len(releaseBytes)) {
		t.Errorf("Install() Bytes = %d, want %d", res.Bytes, len(releaseBytes))
	}
	if diff := cmp.Diff([]string{"GreenWave_v1.2.0.exe"}, listNames(t, dir)); diff != "" {
		t.Errorf("directory contents mismatch (-want +got):\n%s", diff)
	}

	data, err := os.ReadFile(filepath.Join(dir, "GreenWave_v1.2.0.exe"))
	if err != nil {
		t.Fatalf("installed file unreadable: %v", err)
	}
	if string(data) != string(releaseBytes) {
		t.Errorf("installed content = %q", data)
	}
}

func TestInstall_HashCaseInsensitive(t *testing.T) {
	server, _ := newReleaseServer(t, releaseBytes)
	dir := t.TempDir()

	res := newTestInstaller(server.URL).Install(context.Background(), Request{
		Dir:          dir,
		Version:      "1.2.0",
		ExpectedHash: "  " + strings.ToUpper(md5Hex(releaseBytes)) + "\n",
	})
	if res.Outcome != types.OutcomeSuccess {
		t.Fatalf("Install() outcome = %v (%s), want success", res.Outcome, res.Reason)
	}
	if res.Hash != md5Hex(releaseBytes) {
		t.Errorf("Install() Hash = %v, want lowercase %v", res.Hash, md5Hex(releaseBytes))
	}
}

func TestInstall_BadHashPolicies(t *testing.T) {
	tests := []struct {
		name        string
		policy      types.BadHashPolicy
		wantFiles   []string
		quarantined bool
	}{
		{
			name:        "quarantine",
			policy:      types.PolicyQuarantine,
			wantFiles:   []string{"GreenWave_v1.0.0.exe"},
			quarantined: true,
		},
		{
			name:      "keep",
			policy:    types.PolicyKeep,
			wantFiles: []string{"GreenWave_v1.0.0.exe", "GreenWave_v1.2.0.exe"},
		},
		{
			name:      "delete",
			policy:    types.PolicyDelete,
			wantFiles: []string{"GreenWave_v1.0.0.exe"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := newReleaseServer(t, releaseBytes)
			dir := t.TempDir()
			writeFile(t, filepath.Join(dir, "GreenWave_v1.0.0.exe"), "old release")
			store := quarantine.NewManagerWithDir(t.TempDir())

			inst := newTestInstaller(server.URL, WithBadHashPolicy(tt.policy), WithQuarantine(store))
			res := inst.Install(context.Background(), Request{
				Dir:          dir,
				Version:      "1.2.0",
				ExpectedHash: "deadbeefdeadbeefdeadbeefdeadbeef",
				Replacing:    "GreenWave_v1.0.0.exe",
			})

			if res.Outcome != types.OutcomeBadHash {
				t.Fatalf("Install() outcome = %v, want bad_hash", res.Outcome)
			}
			if res.Hash != md5Hex(releaseBytes) {
				t.Errorf("Install() Hash = %v, want %v", res.Hash, md5Hex(releaseBytes))
			}
			if diff := cmp.Diff(tt.wantFiles, listNames(t, dir)); diff != "" {
				t.Errorf("directory contents mismatch (-want +got):\n%s", diff)
			}

			records, err := store.List()
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if tt.quarantined {
				if len(records) != 1 {
					t.Fatalf("quarantine holds %d entries, want 1", len(records))
				}
				if res.Quarantined != records[0].ID {
					t.Errorf("Install() Quarantined = %q, want %q", res.Quarantined, records[0].ID)
				}
				if records[0].ActualHash != md5Hex(releaseBytes) {
					t.Errorf("record ActualHash = %v", records[0].ActualHash)
				}
			} else if len(records) != 0 {
				t.Errorf("quarantine holds %d entries, want 0", len(records))
			}
		})
	}
}

func TestInstall_BadHashWithoutStore(t *testing.T) {
	server, _ := newReleaseServer(t, releaseBytes)
	dir := t.TempDir()

	res := newTestInstaller(server.URL).Install(context.Background(), Request{
		Dir:          dir,
		Version:      "1.2.0",
		ExpectedHash: "wrong",
	})
	if res.Outcome != types.OutcomeBadHash {
		t.Fatalf("Install() outcome = %v, want bad_hash", res.Outcome)
	}
	if names := listNames(t, dir); len(names) != 0 {
		t.Errorf("directory should be empty, got %v", names)
	}
}

func TestInstall_NotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "GreenWave_v1.0.0.exe"), "old release")

	res := newTestInstaller(server.URL).Install(context.Background(), Request{
		Dir:          dir,
		Version:      "9.9.9",
		ExpectedHash: md5Hex(releaseBytes),
		Replacing:    "GreenWave_v1.0.0.exe",
	})

	if res.Outcome != types.OutcomeFailed {
		t.Fatalf("Install() outcome = %v, want failed", res.Outcome)
	}
	if !strings.Contains(res.Reason, "404") {
		t.Errorf("Install() Reason = %q, want status in reason", res.Reason)
	}
	if diff := cmp.Diff([]string{"GreenWave_v1.0.0.exe"}, listNames(t, dir)); diff != "" {
		t.Errorf("directory contents mismatch (-want +got):\n%s", diff)
	}
}

func TestInstall_TruncatedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(releaseBytes)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(releaseBytes[:len(releaseBytes)/2])
	}))
	defer server.Close()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "GreenWave_v1.0.0.exe"), "old release")

	res := newTestInstaller(server.URL).Install(context.Background(), Request{
		Dir:          dir,
		Version:      "1.2.0",
		ExpectedHash: md5Hex(releaseBytes),
		Replacing:    "GreenWave_v1.0.0.exe",
	})

	if res.Outcome != types.OutcomeFailed {
		t.Fatalf("Install() outcome = %v, want failed", res.Outcome)
	}
	if !strings.Contains(res.Reason, "unexpected EOF") {
		t.Errorf("Install() Reason = %q, want unexpected EOF", res.Reason)
	}
	if diff := cmp.Diff([]string{"GreenWave_v1.0.0.exe"}, listNames(t, dir)); diff != "" {
		t.Errorf("directory contents mismatch (-want +got):\n%s", diff)
	}
}

func TestInstall_CancelledContext(t *testing.T) {
	server, hits := newReleaseServer(t, releaseBytes)
	dir := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := newTestInstaller(server.URL).Install(ctx, Request{
		Dir:          dir,
		Version:      "1.2.0",
		ExpectedHash: md5Hex(releaseBytes),
	})
	if res.Outcome != types.OutcomeFailed {
		t.Fatalf("Install() outcome = %v, want failed", res.Outcome)
	}
	if hits.Load() != 0 {
		t.Errorf("origin was contacted %d times", hits.Load())
	}
	if names := listNames(t, dir); len(names) != 0 {
		t.Errorf("directory should be empty, got %v", names)
	}
}

func TestInstall_InvalidRequest(t *testing.T) {
	server, hits := newReleaseServer(t, releaseBytes)
	dir := t.TempDir()

	tests := []struct {
		name string
		req  Request
	}{
		{"missing dir", Request{Version: "1.2.0", ExpectedHash: "x"}},
		{"missing version", Request{Dir: dir, ExpectedHash: "x"}},
		{"missing hash", Request{Dir: dir, Version: "1.2.0"}},
		{"marker in version", Request{Dir: dir, Version: "1.2_v3", ExpectedHash: "x"}},
		{"path in version", Request{Dir: dir, Version: "../1.2.0", ExpectedHash: "x"}},
	}

	inst := newTestInstaller(server.URL)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := inst.Install(context.Background(), tt.req)
			if res.Outcome != types.OutcomeFailed {
				t.Errorf("Install() outcome = %v, want failed", res.Outcome)
			}
			if res.Reason == "" {
				t.Error("Install() Reason should explain the failure")
			}
		})
	}
	if hits.Load() != 0 {
		t.Errorf("origin was contacted %d times", hits.Load())
	}
}

func TestInstall_MissingDirectory(t *testing.T) {
	server, _ := newReleaseServer(t, releaseBytes)
	dir := filepath.Join(t.TempDir(), "absent")

	res := newTestInstaller(server.URL).Install(context.Background(), Request{
		Dir:          dir,
		Version:      "1.2.0",
		ExpectedHash: md5Hex(releaseBytes),
	})
	if res.Outcome != types.OutcomeFailed {
		t.Errorf("Install() outcome = %v, want failed", res.Outcome)
	}
}

func TestInstall_PathBearingReplacing(t *testing.T) {
	server, _ := newReleaseServer(t, releaseBytes)
	root := t.TempDir()
	dir := filepath.Join(root, "app")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	outside := filepath.Join(root, "precious.exe")
	writeFile(t, outside, "do not delete")

	res := newTestInstaller(server.URL).Install(context.Background(), Request{
		Dir:          dir,
		Version:      "1.2.0",
		ExpectedHash: md5Hex(releaseBytes),
		Replacing:    "../precious.exe",
	})

	if res.Outcome != types.OutcomeSuccess {
		t.Fatalf("Install() outcome = %v (%s), want success", res.Outcome, res.Reason)
	}
	if res.RetireError == "" {
		t.Error("Install() RetireError should report the rejected name")
	}
	if res.Retired != "" {
		t.Errorf("Install() Retired = %q, want empty", res.Retired)
	}
	if _, err := os.Stat(outside); err != nil {
		t.Errorf("file outside the install directory was touched: %v", err)
	}
}

func TestInstall_ReplacingSameFile(t *testing.T) {
	server, _ := newReleaseServer(t, releaseBytes)
	dir := t.TempDir()

	res := newTestInstaller(server.URL).Install(context.Background(), Request{
		Dir:          dir,
		Version:      "1.2.0",
		ExpectedHash: md5Hex(releaseBytes),
		Replacing:    "GreenWave_v1.2.0.exe",
	})
	if res.Outcome != types.OutcomeSuccess {
		t.Fatalf("Install() outcome = %v (%s), want success", res.Outcome, res.Reason)
	}
	if _, err := os.Stat(filepath.Join(dir, "GreenWave_v1.2.0.exe")); err != nil {
		t.Errorf("reinstalled release was removed: %v", err)
	}
}

func TestInstall_Progress(t *testing.T) {
	server, _ := newReleaseServer(t, releaseBytes)
	dir := t.TempDir()

	var phases []types.Phase
	var lastDone int64
	res := newTestInstaller(server.URL).InstallWithProgress(context.Background(), Request{
		Dir:          dir,
		Version:      "1.2.0",
		ExpectedHash: md5Hex(releaseBytes),
	}, func(e Event) {
		if len(phases) == 0 || phases[len(phases)-1] != e.Phase {
			phases = append(phases, e.Phase)
		}
		lastDone = e.BytesDone
	})

	if res.Outcome != types.OutcomeSuccess {
		t.Fatalf("Install() outcome = %v (%s), want success", res.Outcome, res.Reason)
	}
	want := []types.Phase{types.PhaseDownloading, types.PhaseVerifying, types.PhaseCleanup, types.PhaseSuccess}
	if diff := cmp.Diff(want, phases); diff != "" {
		t.Errorf("phase sequence mismatch (-want +got):\n%s", diff)
	}
	if lastDone != int64(len(releaseBytes)) {
		t.Errorf("final BytesDone = %d, want %d", lastDone, len(releaseBytes))
	}
}

func TestInstall_SerializedPerDirectory(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		_, _ = w.Write(releaseBytes)
	}))
	defer server.Close()

	dir := t.TempDir()
	inst := newTestInstaller(server.URL)

	var wg sync.WaitGroup
	results := make([]Result, 4)
	for n := range results {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			results[n] = inst.Install(context.Background(), Request{
				Dir:          dir,
				Version:      "1.2.0",
				ExpectedHash: md5Hex(releaseBytes),
			})
		}(n)
	}
	wg.Wait()

	for n, res := range results {
		if res.Outcome != types.OutcomeSuccess {
			t.Errorf("install %d outcome = %v (%s)", n, res.Outcome, res.Reason)
		}
	}
	if maxInFlight.Load() != 1 {
		t.Errorf("max concurrent downloads into one directory = %d, want 1", maxInFlight.Load())
	}
	if n := lockEntries(inst.locks); n != 0 {
		t.Errorf("directory locks left after installs = %d, want 0", n)
	}
	if diff := cmp.Diff([]string{"GreenWave_v1.2.0.exe"}, listNames(t, dir)); diff != "" {
		t.Errorf("directory contents mismatch (-want +got):\n%s", diff)
	}
}

func TestInstall_ProbeRoundTrip(t *testing.T) {
	server, _ := newReleaseServer(t, releaseBytes)
	dir := t.TempDir()
	prober := probe.New(".exe", nil)
	ctx := context.Background()

	if got := prober.Probe(ctx, dir); got.Status != types.StatusEmptyDir {
		t.Fatalf("Probe() before install = %v, want empty_dir", got.Status)
	}

	hash := md5Hex(releaseBytes)
	res := newTestInstaller(server.URL).Install(ctx, Request{
		Dir:          dir,
		Version:      "1.2.0",
		ExpectedHash: hash,
		Replacing:    "app_v1.0.0.exe",
	})
	if res.Outcome != types.OutcomeSuccess {
		t.Fatalf("Install() outcome = %v (%s), want success", res.Outcome, res.Reason)
	}

	want := probe.Result{
		Status:   types.StatusFound,
		FileName: "GreenWave_v1.2.0.exe",
		Version:  "1.2.0",
		Hash:     hash,
	}
	if diff := cmp.Diff(want, prober.Probe(ctx, dir)); diff != "" {
		t.Errorf("Probe() after install mismatch (-want +got):\n%s", diff)
	}
}

func TestCheckBareName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"GreenWave_v1.0.0.exe", false},
		{"app_v1.0.0.exe", false},
		{"../GreenWave_v1.0.0.exe", true},
		{"sub/GreenWave_v1.0.0.exe", true},
		{`sub\GreenWave_v1.0.0.exe`, true},
		{"/etc/passwd", true},
		{"..", true},
		{".", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkBareName(tt.name)
			if (err != nil) != tt.wantErr {
				t.Errorf("checkBareName(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrUnsafeName) {
				t.Errorf("checkBareName(%q) error = %v, want ErrUnsafeName", tt.name, err)
			}
		})
	}
}

func TestRetire(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "GreenWave_v1.2.0.exe"), "new")
	writeFile(t, filepath.Join(dir, "GreenWave_v1.0.0.exe"), "old")
	if err := os.Mkdir(filepath.Join(dir, "GreenWave_v0.9.0.exe"), 0o755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		replacing string
		want      string
		wantErr   bool
	}{
		{"empty", "", "", false},
		{"absent file", "GreenWave_v0.1.0.exe", "", false},
		{"same as installed", "GreenWave_v1.2.0.exe", "", false},
		{"directory", "GreenWave_v0.9.0.exe", "", true},
		{"old release", "GreenWave_v1.0.0.exe", "GreenWave_v1.0.0.exe", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := retire(dir, tt.replacing, "GreenWave_v1.2.0.exe")
			if (err != nil) != tt.wantErr {
				t.Fatalf("retire() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("retire() = %q, want %q", got, tt.want)
			}
		})
	}

	if _, err := os.Stat(filepath.Join(dir, "GreenWave_v1.2.0.exe")); err != nil {
		t.Errorf("installed release removed: %v", err)
	}
}
