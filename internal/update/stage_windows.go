//go:build windows

package update

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

type tempStage struct {
	*os.File
	dest string
	done bool
}

// newStagedFile creates a temp file in the destination directory.
// os.Rename uses MoveFileEx with MOVEFILE_REPLACE_EXISTING on Windows.
func newStagedFile(dest string) (stagedFile, error) {
	f, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.partial")
	if err != nil {
		return nil, err
	}
	return &tempStage{File: f, dest: dest}, nil
}

func (s *tempStage) Commit() error {
	if s.done {
		return fmt.Errorf("staged file %s already released", s.Name())
	}
	if err := s.File.Sync(); err != nil {
		return err
	}
	if err := s.File.Close(); err != nil {
		return err
	}
	s.done = true
	if err := os.Rename(s.Name(), s.dest); err != nil {
		_ = os.Remove(s.Name())
		return err
	}
	return nil
}

func (s *tempStage) Detach() (string, error) {
	if s.done {
		return "", fmt.Errorf("staged file %s already released", s.Name())
	}
	s.done = true
	return s.Name(), s.File.Close()
}

func (s *tempStage) Discard() error {
	if s.done {
		return nil
	}
	s.done = true
	closeErr := s.File.Close()
	if err := os.Remove(s.Name()); err != nil && !os.IsNotExist(err) {
		return errors.Join(closeErr, err)
	}
	return nil
}
