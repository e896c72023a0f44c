// ABOUTME: Supervises Claude Code CLI invocations per conversation turn
// ABOUTME: Enforces a global concurrency bound, buffers output, and parses it into events

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/2389/claude-gateway/internal/claude"
	"github.com/2389/claude-gateway/internal/execx"
)

// ErrCapacityExceeded indicates the concurrent invocation bound was hit.
// There is no queueing; callers should retry.
var ErrCapacityExceeded = errors.New("maximum concurrent invocations reached")

// ErrBinaryNotFound indicates the Claude binary is missing from the
// configured path.
var ErrBinaryNotFound = errors.New("claude binary not found")

// ErrVersionCheckFailed indicates the version query ran but exited nonzero.
var ErrVersionCheckFailed = errors.New("claude version check failed")

// ExecutionError indicates the CLI exited nonzero. No partial output is
// trusted in this case.
type ExecutionError struct {
	ExitCode int
	Stderr   string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("claude exited with code %d: %s", e.ExitCode, e.Stderr)
}

// Options configures a Supervisor.
type Options struct {
	BinaryPath    string
	MaxConcurrent int
	RunTimeout    time.Duration
	StopGrace     time.Duration
}

// RunRequest describes one invocation of the CLI.
type RunRequest struct {
	SessionID    string
	WorkingDir   string
	Prompt       string
	Model        string
	SystemPrompt string
}

// Invocation is the completed result of one CLI run: the parsed events in
// emission order plus the usage summary accumulated while parsing.
type Invocation struct {
	// SessionID is the authoritative session id. The CLI may assign its
	// own id distinct from the caller's; the first event reporting one wins.
	SessionID  string
	WorkingDir string

	events  []*claude.Event
	summary claude.UsageSummary
}

// EventSlice returns the parsed events in emission order.
func (inv *Invocation) EventSlice() []*claude.Event {
	return inv.events
}

// Summary returns the usage totals for this invocation.
func (inv *Invocation) Summary() claude.UsageSummary {
	return inv.summary
}

// handle tracks one in-flight invocation so it can be stopped.
type handle struct {
	sessionID  string
	workingDir string
	cancel     context.CancelFunc
}

// Supervisor launches, monitors, and terminates CLI invocations. A single
// instance owns the set of in-flight processes; there is no global state.
type Supervisor struct {
	opts   Options
	runner execx.Runner
	logger *slog.Logger

	mu      sync.Mutex
	active  map[string]*handle
	running int
	wg      sync.WaitGroup
}

// New creates a Supervisor. Pass nil runner for the OS runner and nil logger
// for the default.
func New(opts Options, runner execx.Runner, logger *slog.Logger) *Supervisor {
	if runner == nil {
		runner = execx.NewOSRunner()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxConcurrent < 1 {
		opts.MaxConcurrent = 1
	}
	return &Supervisor{
		opts:   opts,
		runner: runner,
		logger: logger.With("component", "supervisor"),
		active: make(map[string]*handle),
	}
}

// Run invokes the CLI for one conversation turn, waits for it to exit, and
// parses its buffered output into events. Returns ErrCapacityExceeded when
// the concurrency bound would be exceeded, and *ExecutionError when the CLI
// exits nonzero (fail-closed: no partial events).
//
// The CLI does not emit JSON lines incrementally in a way that is safe to
// split mid-object, so the full stdout stream is buffered and split on line
// boundaries after exit.
func (s *Supervisor) Run(ctx context.Context, req RunRequest) (*Invocation, error) {
	var runCtx context.Context
	var cancel context.CancelFunc
	if s.opts.RunTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, s.opts.RunTimeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	// Capacity check and registration are atomic so the bound is never
	// transiently exceeded by concurrent callers.
	s.mu.Lock()
	if s.running >= s.opts.MaxConcurrent {
		s.mu.Unlock()
		return nil, ErrCapacityExceeded
	}
	s.running++
	s.active[req.SessionID] = &handle{
		sessionID:  req.SessionID,
		workingDir: req.WorkingDir,
		cancel:     cancel,
	}
	s.wg.Add(1)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.active, req.SessionID)
		s.running--
		s.mu.Unlock()
		s.wg.Done()
	}()

	args := buildArgs(req)

	s.logger.Info("starting claude process",
		"session_id", req.SessionID,
		"working_dir", req.WorkingDir,
		"model", req.Model,
	)

	stdout, stderr, err := s.runner.Run(runCtx, execx.Command{
		Name:      s.opts.BinaryPath,
		Args:      args,
		Dir:       req.WorkingDir,
		StopGrace: s.opts.StopGrace,
	})
	if err != nil {
		var exitErr *execx.ExitError
		if errors.As(err, &exitErr) {
			errText := strings.TrimSpace(string(stderr))
			s.logger.Error("claude process failed",
				"session_id", req.SessionID,
				"exit_code", exitErr.Code,
				"stderr", truncate(errText, 200),
			)
			return nil, &ExecutionError{ExitCode: exitErr.Code, Stderr: errText}
		}
		return nil, fmt.Errorf("running claude: %w", err)
	}

	inv := &Invocation{
		SessionID:  req.SessionID,
		WorkingDir: req.WorkingDir,
	}

	parser := claude.NewParser(s.logger)
	for _, line := range strings.Split(string(stdout), "\n") {
		event := parser.ParseLine(line)
		if event == nil {
			continue
		}
		inv.events = append(inv.events, event)
	}
	inv.summary = parser.Summary()

	// The CLI may assign its own session id; the first event reporting one
	// is authoritative for all subsequent bookkeeping.
	if id := inv.summary.SessionID; id != "" && id != req.SessionID {
		s.logger.Info("claude assigned its own session id",
			"requested", req.SessionID,
			"assigned", id,
		)
		inv.SessionID = id
	}

	s.logger.Info("claude process completed",
		"session_id", inv.SessionID,
		"events", len(inv.events),
		"total_tokens", inv.summary.TotalTokens,
	)

	return inv, nil
}

// Stop terminates the invocation serving the given session id, if any. The
// process receives a graceful terminate signal and is force-killed after the
// grace period. Always safe to call: a missing handle is a no-op, and kill
// failures are logged, never raised.
func (s *Supervisor) Stop(sessionID string) {
	s.mu.Lock()
	h, ok := s.active[sessionID]
	if ok {
		delete(s.active, sessionID)
	}
	s.mu.Unlock()

	if !ok {
		return
	}

	h.cancel()
	s.logger.Info("claude process stopped", "session_id", sessionID)
}

// Version invokes the CLI with its version-query flag and returns the
// reported version string.
func (s *Supervisor) Version(ctx context.Context) (string, error) {
	stdout, stderr, err := s.runner.Run(ctx, execx.Command{
		Name: s.opts.BinaryPath,
		Args: []string{"--version"},
	})
	if err != nil {
		if errors.Is(err, execx.ErrNotFound) {
			return "", fmt.Errorf("%w at %s", ErrBinaryNotFound, s.opts.BinaryPath)
		}
		var exitErr *execx.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("%w: %s", ErrVersionCheckFailed, strings.TrimSpace(string(stderr)))
		}
		return "", fmt.Errorf("querying claude version: %w", err)
	}
	return strings.TrimSpace(string(stdout)), nil
}

// ActiveSessions returns the session ids of in-flight invocations.
func (s *Supervisor) ActiveSessions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.active))
	for id := range s.active {
		ids = append(ids, id)
	}
	return ids
}

// Drain blocks until all in-flight invocations have completed or the
// context is cancelled.
func (s *Supervisor) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StopAll terminates every in-flight invocation.
func (s *Supervisor) StopAll() {
	for _, id := range s.ActiveSessions() {
		s.Stop(id)
	}
}

// buildArgs encodes a run request into CLI arguments. Flag order matches the
// invocation shape the CLI is known to accept.
func buildArgs(req RunRequest) []string {
	args := []string{"-p", req.Prompt}
	if req.SystemPrompt != "" {
		args = append(args, "--system-prompt", req.SystemPrompt)
	}
	if req.Model != "" {
		args = append(args, "--model", req.Model)
	}
	args = append(args,
		"--output-format", "stream-json",
		"--verbose",
		"--dangerously-skip-permissions",
	)
	return args
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
