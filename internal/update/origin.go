package update

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

const (
	// DefaultArtifact fetches the release by its file name.
	DefaultArtifact = "{file}"

	defaultDialTimeout           = 10 * time.Second
	defaultResponseHeaderTimeout = 30 * time.Second
	defaultIdleConnTimeout       = 30 * time.Second
)

// HTTPOrigin fetches release artifacts from a single HTTP origin
type HTTPOrigin struct {
	baseURL   string // Origin URL, artifact paths are joined onto it
	artifact  string // Path template with {file}, {product} and {version}
	userAgent string
	client    *http.Client
}

// OriginOption configures an HTTPOrigin
type OriginOption func(*HTTPOrigin)

// WithHTTPClient replaces the HTTP client used for downloads
func WithHTTPClient(c *http.Client) OriginOption {
	return func(o *HTTPOrigin) {
		if c != nil {
			o.client = c
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every request
func WithUserAgent(ua string) OriginOption {
	return func(o *HTTPOrigin) {
		o.userAgent = ua
	}
}

// WithArtifact sets the artifact path template
func WithArtifact(tmpl string) OriginOption {
	return func(o *HTTPOrigin) {
		if tmpl != "" {
			o.artifact = tmpl
		}
	}
}

// NewHTTPOrigin creates an origin rooted at baseURL
func NewHTTPOrigin(baseURL string, opts ...OriginOption) *HTTPOrigin {
	o := &HTTPOrigin{
		baseURL:   strings.TrimRight(baseURL, "/"),
		artifact:  DefaultArtifact,
		userAgent: Detect().UserAgent(""),
		client:    NewHTTPClient(0, 0),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// NewHTTPClient returns a client for artifact downloads.
// There is no overall timeout: large bodies may stream for a long time,
// so only connection setup and response headers are bounded.
func NewHTTPClient(dialTimeout, headerTimeout time.Duration) *http.Client {
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}
	if headerTimeout <= 0 {
		headerTimeout = defaultResponseHeaderTimeout
	}

	return &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          4,
			IdleConnTimeout:       defaultIdleConnTimeout,
			TLSHandshakeTimeout:   dialTimeout,
			ResponseHeaderTimeout: headerTimeout,
			ExpectContinueTimeout: time.Second,
		},
	}
}

// URL returns the download URL for an artifact
func (o *HTTPOrigin) URL(a Artifact) (string, error) {
	if o.baseURL == "" {
		return "", fmt.Errorf("origin url is not configured")
	}
	rel := strings.NewReplacer(
		"{file}", url.PathEscape(a.FileName),
		"{product}", url.PathEscape(a.Product),
		"{version}", url.PathEscape(a.Version),
	).Replace(o.artifact)

	u, err := url.Parse(o.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid origin url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid origin url %q: scheme must be http or https", o.baseURL)
	}

	ref, err := url.Parse(rel)
	if err != nil {
		return "", fmt.Errorf("invalid artifact path %q: %w", rel, err)
	}
	u.Path = path.Join("/", u.Path, ref.Path)
	u.RawPath = ""
	if ref.RawQuery != "" {
		u.RawQuery = ref.RawQuery
	}
	return u.String(), nil
}

// Fetch issues one GET for the artifact and returns the open body.
// The caller must close Download.Body.
func (o *HTTPOrigin) Fetch(ctx context.Context, a Artifact) (*Download, error) {
	target, err := o.URL(a)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if o.userAgent != "" {
		req.Header.Set("User-Agent", o.userAgent)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", target, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: %s returned %s", ErrBadStatus, target, resp.Status)
	}

	return &Download{
		Body: resp.Body,
		Size: resp.ContentLength,
		URL:  target,
	}, nil
}
