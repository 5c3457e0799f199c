//go:build !windows

package update

import (
	"fmt"
	"path/filepath"

	"github.com/google/renameio/v2"
)

type pendingStage struct {
	*renameio.PendingFile
	done bool
}

// newStagedFile creates a pending file in the destination directory.
// CloseAtomicallyReplace fsyncs before the rename.
func newStagedFile(dest string) (stagedFile, error) {
	pf, err := renameio.NewPendingFile(dest,
		renameio.WithTempDir(filepath.Dir(dest)),
		renameio.WithPermissions(0o755),
	)
	if err != nil {
		return nil, err
	}
	return &pendingStage{PendingFile: pf}, nil
}

func (s *pendingStage) Commit() error {
	if s.done {
		return fmt.Errorf("staged file %s already released", s.Name())
	}
	if err := s.CloseAtomicallyReplace(); err != nil {
		return err
	}
	s.done = true
	return nil
}

func (s *pendingStage) Detach() (string, error) {
	if s.done {
		return "", fmt.Errorf("staged file %s already released", s.Name())
	}
	s.done = true
	return s.Name(), s.Close()
}

func (s *pendingStage) Discard() error {
	if s.done {
		return nil
	}
	s.done = true
	return s.Cleanup()
}
