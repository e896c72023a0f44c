// ABOUTME: Testable command execution abstraction over os/exec
// ABOUTME: Provides an OS runner with terminate-then-kill semantics and a mock for tests

package execx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// ErrNotFound indicates the executable was not found in PATH.
var ErrNotFound = exec.ErrNotFound

// ExitError indicates the command ran but exited with a nonzero status.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// Command describes one invocation.
type Command struct {
	Name string
	Args []string
	// Dir is the working directory; empty means the current directory.
	Dir string
	// StopGrace is how long to wait between SIGTERM (sent on context
	// cancellation) and SIGKILL. Zero means kill immediately on cancel.
	StopGrace time.Duration
}

// Runner executes external commands. Inject this instead of calling
// exec.Command directly.
type Runner interface {
	// Run executes a command to completion and returns stdout and stderr
	// separately. A nonzero exit reports *ExitError; a missing binary
	// reports an error matching ErrNotFound.
	Run(ctx context.Context, cmd Command) (stdout, stderr []byte, err error)
}

// OSRunner implements Runner using os/exec.
type OSRunner struct {
	// Env overrides environment variables (nil = inherit from parent)
	Env []string
}

// NewOSRunner creates a new OS-based command runner.
func NewOSRunner() *OSRunner {
	return &OSRunner{}
}

// Run executes the command, buffering both output streams. Cancelling the
// context sends SIGTERM; if the process has not exited after StopGrace it
// is killed.
func (r *OSRunner) Run(ctx context.Context, command Command) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, command.Name, command.Args...)
	cmd.Dir = command.Dir
	if r.Env != nil {
		cmd.Env = r.Env
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if command.StopGrace > 0 {
		cmd.Cancel = func() error {
			return cmd.Process.Signal(syscall.SIGTERM)
		}
		cmd.WaitDelay = command.StopGrace
	}

	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return stdout.Bytes(), stderr.Bytes(), &ExitError{Code: exitErr.ExitCode()}
		}
		return stdout.Bytes(), stderr.Bytes(), err
	}

	return stdout.Bytes(), stderr.Bytes(), nil
}

// MockRunner implements Runner for testing.
type MockRunner struct {
	mu sync.Mutex

	// Calls records all command invocations
	Calls []Command

	// Responses maps command names to canned responses
	Responses map[string]MockResponse

	// Block, when non-nil, is closed by the test to release in-flight Run
	// calls. Used for concurrency tests.
	Block chan struct{}
}

// MockResponse defines the response for a mocked command.
type MockResponse struct {
	Stdout []byte
	Stderr []byte
	Err    error
}

// NewMockRunner creates a new mock runner.
func NewMockRunner() *MockRunner {
	return &MockRunner{
		Responses: make(map[string]MockResponse),
	}
}

// AddResponse sets the response for a command name.
func (m *MockRunner) AddResponse(name string, resp MockResponse) {
	m.Responses[name] = resp
}

// Run records the call and returns the canned response.
func (m *MockRunner) Run(ctx context.Context, command Command) ([]byte, []byte, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, command)
	block := m.Block
	resp := m.Responses[command.Name]
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}

	return resp.Stdout, resp.Stderr, resp.Err
}

// CallCount returns the number of recorded invocations.
func (m *MockRunner) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
