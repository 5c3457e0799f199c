// Package desktop opens install directories in the system file browser.
package desktop

import (
	"os"
	"os/exec"
	"runtime"

	"go.uber.org/zap"
)

// Result is what the host is told after an open request.
type Result string

const (
	ResultOpened Result = "opened"
	ResultFailed Result = "failed"
)

func (r Result) String() string {
	return string(r)
}

// CommandRunner is an interface for starting external commands.
// This allows for mocking in tests.
type CommandRunner interface {
	Start(name string, args ...string) error
}

// DefaultCommandRunner uses os/exec to start commands without waiting for them.
type DefaultCommandRunner struct{}

// Start launches the command and reaps it in the background.
func (r *DefaultCommandRunner) Start(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	// explorer.exe exits 1 even on success, so the exit status is ignored.
	go func() { _ = cmd.Wait() }()
	return nil
}

// Opener opens directories with the platform file browser.
type Opener struct {
	runner CommandRunner
	goos   string
	logger *zap.Logger
}

// NewOpener creates an Opener with the default command runner.
func NewOpener(logger *zap.Logger) *Opener {
	return NewOpenerWithRunner(&DefaultCommandRunner{}, runtime.GOOS, logger)
}

// NewOpenerWithRunner creates an Opener with a custom runner and target OS (for testing).
func NewOpenerWithRunner(runner CommandRunner, goos string, logger *zap.Logger) *Opener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Opener{runner: runner, goos: goos, logger: logger}
}

// Open shows dir in the file browser. A missing directory is reported as failed.
func (o *Opener) Open(dir string) Result {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		o.logger.Warn("cannot open install directory", zap.String("dir", dir), zap.Error(err))
		return ResultFailed
	}

	name := browserCommand(o.goos)
	if err := o.runner.Start(name, dir); err != nil {
		o.logger.Error("failed to start file browser", zap.String("command", name), zap.String("dir", dir), zap.Error(err))
		return ResultFailed
	}

	o.logger.Debug("opened install directory", zap.String("command", name), zap.String("dir", dir))
	return ResultOpened
}

func browserCommand(goos string) string {
	switch goos {
	case "windows":
		return "explorer"
	case "darwin":
		return "open"
	default:
		return "xdg-open"
	}
}
