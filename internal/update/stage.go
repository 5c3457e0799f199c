package update

import "io"

// stagedFile is a temporary file next to its destination. Bytes become
// visible at the destination path only after Commit.
type stagedFile interface {
	io.Writer
	// Name returns the path of the temporary file.
	Name() string
	Sync() error
	// Commit atomically moves the temporary file onto the destination.
	Commit() error
	// Detach closes the temporary file and hands ownership of it to the caller.
	Detach() (string, error)
	// Discard removes the temporary file unless it was committed or detached.
	Discard() error
}
