package update

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/greenwave/gwupdate/internal/types"
)

// Error variables for install failures.
var (
	ErrInvalidRequest = errors.New("invalid install request")
	ErrBadStatus      = errors.New("unexpected origin status")
	ErrUnsafeName     = errors.New("unsafe file name")
)

// Request describes one install.
type Request struct {
	Dir          string `json:"dir" yaml:"dir"`                                 // Install directory
	Version      string `json:"version" yaml:"version"`                         // Target version
	ExpectedHash string `json:"expectedHash" yaml:"expected_hash"`              // Hex MD5 of the release artifact
	Replacing    string `json:"replacing,omitempty" yaml:"replacing,omitempty"` // Filename of the release being replaced
}

// Validate checks that the request carries the fields an install needs.
func (r Request) Validate() error {
	var missing []string
	if strings.TrimSpace(r.Dir) == "" {
		missing = append(missing, "dir")
	}
	if strings.TrimSpace(r.Version) == "" {
		missing = append(missing, "version")
	}
	if strings.TrimSpace(r.ExpectedHash) == "" {
		missing = append(missing, "expectedHash")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidRequest, strings.Join(missing, ", "))
	}
	return nil
}

// Result describes how an install ended.
type Result struct {
	Outcome     types.Outcome `json:"outcome" yaml:"outcome"`
	FileName    string        `json:"fileName,omitempty" yaml:"file_name,omitempty"`
	Hash        string        `json:"hash,omitempty" yaml:"hash,omitempty"`
	Bytes       int64         `json:"bytes" yaml:"bytes"`
	Retired     string        `json:"retired,omitempty" yaml:"retired,omitempty"`
	RetireError string        `json:"retireError,omitempty" yaml:"retire_error,omitempty"`
	Quarantined string        `json:"quarantined,omitempty" yaml:"quarantined,omitempty"`
	Reason      string        `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// String renders the result for text output.
func (r Result) String() string {
	var b strings.Builder
	b.WriteString(r.Outcome.String())
	if r.FileName != "" {
		fmt.Fprintf(&b, "\nfile:        %s", r.FileName)
	}
	if r.Hash != "" {
		fmt.Fprintf(&b, "\nhash:        %s", r.Hash)
	}
	if r.Retired != "" {
		fmt.Fprintf(&b, "\nremoved:     %s", r.Retired)
	}
	if r.RetireError != "" {
		fmt.Fprintf(&b, "\nremove error: %s", r.RetireError)
	}
	if r.Quarantined != "" {
		fmt.Fprintf(&b, "\nquarantined: %s", r.Quarantined)
	}
	if r.Reason != "" {
		fmt.Fprintf(&b, "\nreason:      %s", r.Reason)
	}
	return b.String()
}

// Event reports install progress.
type Event struct {
	Phase      types.Phase `json:"phase"`
	BytesDone  int64       `json:"bytesDone"`
	BytesTotal int64       `json:"bytesTotal"` // -1 when the origin sent no length
}

// ProgressFunc receives install progress. It is called on the installing goroutine.
type ProgressFunc func(Event)

// Artifact names the release to fetch.
type Artifact struct {
	Product  string
	Version  string
	FileName string
}

// Download is an open artifact stream.
type Download struct {
	Body io.ReadCloser
	Size int64 // -1 if unknown
	URL  string
}

// Fetcher opens release artifacts from a remote origin.
type Fetcher interface {
	Fetch(ctx context.Context, a Artifact) (*Download, error)
}
