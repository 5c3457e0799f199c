package update

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTTPOriginURL(t *testing.T) {
	a := Artifact{Product: "GreenWave", Version: "1.2.0", FileName: "GreenWave_v1.2.0.exe"}

	tests := []struct {
		name     string
		base     string
		artifact string
		want     string
		wantErr  bool
	}{
		{
			name: "default template",
			base: "https://dl.example.com",
			want: "https://dl.example.com/GreenWave_v1.2.0.exe",
		},
		{
			name: "trailing slash and prefix",
			base: "https://dl.example.com/releases/",
			want: "https://dl.example.com/releases/GreenWave_v1.2.0.exe",
		},
		{
			name:     "versioned layout",
			base:     "https://dl.example.com",
			artifact: "{product}/{version}/{file}",
			want:     "https://dl.example.com/GreenWave/1.2.0/GreenWave_v1.2.0.exe",
		},
		{
			name:     "fixed artifact with query",
			base:     "http://localhost:8080",
			artifact: "download?build={version}",
			want:     "http://localhost:8080/download?build=1.2.0",
		},
		{
			name:    "missing base",
			base:    "",
			wantErr: true,
		},
		{
			name:    "unsupported scheme",
			base:    "ftp://dl.example.com",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewHTTPOrigin(tt.base, WithArtifact(tt.artifact))
			got, err := o.URL(a)
			if (err != nil) != tt.wantErr {
				t.Fatalf("URL() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("URL() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHTTPOriginFetch_Success(t *testing.T) {
	var gotUA, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotPath = r.URL.Path
		_, _ = w.Write([]byte("release bytes"))
	}))
	defer server.Close()

	o := NewHTTPOrigin(server.URL, WithUserAgent("gwupdate/test (linux/amd64)"))
	dl, err := o.Fetch(context.Background(), Artifact{FileName: "GreenWave_v1.0.0.exe"})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	defer func() { _ = dl.Body.Close() }()

	body, err := io.ReadAll(dl.Body)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(body) != "release bytes" {
		t.Errorf("body = %q, want %q", body, "release bytes")
	}
	if dl.Size != int64(len("release bytes")) {
		t.Errorf("Size = %d, want %d", dl.Size, len("release bytes"))
	}
	if gotPath != "/GreenWave_v1.0.0.exe" {
		t.Errorf("path = %q, want /GreenWave_v1.0.0.exe", gotPath)
	}
	if gotUA != "gwupdate/test (linux/amd64)" {
		t.Errorf("User-Agent = %q", gotUA)
	}
}

func TestHTTPOriginFetch_BadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	o := NewHTTPOrigin(server.URL)
	_, err := o.Fetch(context.Background(), Artifact{FileName: "GreenWave_v9.9.9.exe"})
	if err == nil {
		t.Fatal("Fetch() should fail on 404")
	}
	if !errors.Is(err, ErrBadStatus) {
		t.Errorf("error = %v, want ErrBadStatus", err)
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("error should mention status code: %v", err)
	}
}

func TestHTTPOriginFetch_CancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := NewHTTPOrigin(server.URL)
	if _, err := o.Fetch(ctx, Artifact{FileName: "GreenWave_v1.0.0.exe"}); err == nil {
		t.Error("Fetch() should fail with cancelled context")
	}
}

func TestNewHTTPClient(t *testing.T) {
	c := NewHTTPClient(0, 0)
	if c.Timeout != 0 {
		t.Errorf("Timeout = %v, want 0 for streaming downloads", c.Timeout)
	}
	tr, ok := c.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("Transport = %T, want *http.Transport", c.Transport)
	}
	if tr.ResponseHeaderTimeout != defaultResponseHeaderTimeout {
		t.Errorf("ResponseHeaderTimeout = %v, want %v", tr.ResponseHeaderTimeout, defaultResponseHeaderTimeout)
	}
}
