// ABOUTME: In-memory session tracking layered over the persistent store
// ABOUTME: Handles lazy rehydration, idle expiry, and aggregate statistics

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/claude-gateway/internal/store"
)

// ErrSessionEnded is returned when an operation targets a session that
// has been explicitly ended or swept for inactivity.
var ErrSessionEnded = errors.New("session has ended")

// Active is the in-memory view of a live session. The persistent record
// in the store is the source of truth for metrics, but LastActive only
// exists here.
type Active struct {
	ID           string
	ProjectID    string
	Model        string
	SystemPrompt string
	CreatedAt    time.Time
	LastActive   time.Time
	TotalTokens  int
	TotalCost    float64
	MessageCount int
}

// Stats aggregates across all currently active sessions.
type Stats struct {
	ActiveSessions int      `json:"active_sessions"`
	TotalTokens    int      `json:"total_tokens"`
	TotalCost      float64  `json:"total_cost"`
	TotalMessages  int      `json:"total_messages"`
	Models         []string `json:"models_in_use"`
}

// Options configures a Manager.
type Options struct {
	// IdleTimeout is how long a session may go without activity before
	// the sweeper ends it. Zero disables sweeping.
	IdleTimeout time.Duration

	// CleanupInterval is how often the sweeper scans for idle sessions.
	CleanupInterval time.Duration
}

// Manager tracks active sessions in memory and mirrors their lifecycle
// to the persistent store.
type Manager struct {
	db     store.Store
	opts   Options
	logger *slog.Logger

	mu     sync.RWMutex
	active map[string]*Active

	sweepCancel context.CancelFunc
	sweepDone   chan struct{}
}

// NewManager creates a session manager backed by db.
func NewManager(db store.Store, opts Options, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		db:     db,
		opts:   opts,
		logger: logger,
		active: make(map[string]*Active),
	}
}

// Start launches the idle sweeper. It is a no-op when IdleTimeout or
// CleanupInterval is zero. Stop must be called to shut the sweeper down.
func (m *Manager) Start(ctx context.Context) {
	if m.opts.IdleTimeout <= 0 || m.opts.CleanupInterval <= 0 {
		return
	}

	sweepCtx, cancel := context.WithCancel(ctx)
	m.sweepCancel = cancel
	m.sweepDone = make(chan struct{})

	go func() {
		defer close(m.sweepDone)
		ticker := time.NewTicker(m.opts.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				m.sweepIdle(sweepCtx)
			}
		}
	}()
}

// Stop halts the idle sweeper and waits for it to exit.
func (m *Manager) Stop() {
	if m.sweepCancel == nil {
		return
	}
	m.sweepCancel()
	<-m.sweepDone
	m.sweepCancel = nil
	m.sweepDone = nil
}

// Create registers a new session in memory, then persists it. The
// session is registered before the store write so a storage fault
// never blocks the in-memory view; persist failures are logged and the
// session stays usable. When id is empty a fresh UUID is assigned.
func (m *Manager) Create(ctx context.Context, id, projectID, model, systemPrompt string) (*Active, error) {
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()

	active := &Active{
		ID:           id,
		ProjectID:    projectID,
		Model:        model,
		SystemPrompt: systemPrompt,
		CreatedAt:    now,
		LastActive:   now,
	}

	out := *active
	m.mu.Lock()
	m.active[id] = active
	m.mu.Unlock()

	record := &store.Session{
		ID:           id,
		ProjectID:    projectID,
		Model:        model,
		SystemPrompt: systemPrompt,
		CreatedAt:    now,
		UpdatedAt:    now,
		IsActive:     true,
	}
	if err := m.db.CreateSession(ctx, record); err != nil {
		m.logger.Warn("failed to persist session", "session_id", id, "error", err)
	}

	m.logger.Info("session created", "session_id", id, "project_id", projectID, "model", model)
	return &out, nil
}

// Get returns a snapshot of the active session with the given id.
// Callers never see the live entry, so reads need no lock. A session
// present in the store but absent from memory (for example after a
// restart) is rehydrated if it is still marked active; ended sessions
// report ErrSessionEnded.
func (m *Manager) Get(ctx context.Context, id string) (*Active, error) {
	m.mu.RLock()
	active, ok := m.active[id]
	if ok {
		copied := *active
		m.mu.RUnlock()
		return &copied, nil
	}
	m.mu.RUnlock()

	record, err := m.db.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if !record.IsActive {
		return nil, ErrSessionEnded
	}

	rehydrated := &Active{
		ID:           record.ID,
		ProjectID:    record.ProjectID,
		Model:        record.Model,
		SystemPrompt: record.SystemPrompt,
		CreatedAt:    record.CreatedAt,
		LastActive:   time.Now().UTC(),
		TotalTokens:  record.TotalTokens,
		TotalCost:    record.TotalCost,
		MessageCount: record.MessageCount,
	}

	m.mu.Lock()
	// Another goroutine may have rehydrated concurrently; keep theirs.
	if existing, ok := m.active[id]; ok {
		copied := *existing
		m.mu.Unlock()
		return &copied, nil
	}
	copied := *rehydrated
	m.active[id] = rehydrated
	m.mu.Unlock()

	m.logger.Debug("session rehydrated", "session_id", id)
	return &copied, nil
}

// RecordTurn appends a message to the session transcript and folds its
// usage into both the in-memory view and the persistent record.
func (m *Manager) RecordTurn(ctx context.Context, id, role, content string, inputTokens, outputTokens int, cost float64) error {
	m.mu.Lock()
	active, ok := m.active[id]
	if !ok {
		m.mu.Unlock()
		return store.ErrNotFound
	}
	tokens := inputTokens + outputTokens
	active.TotalTokens += tokens
	active.TotalCost += cost
	active.MessageCount++
	active.LastActive = time.Now().UTC()
	m.mu.Unlock()

	msg := &store.Message{
		ID:           uuid.NewString(),
		SessionID:    id,
		Role:         role,
		Content:      content,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		Cost:         cost,
		CreatedAt:    time.Now().UTC(),
	}
	if err := m.db.AppendMessage(ctx, msg); err != nil {
		return fmt.Errorf("appending message: %w", err)
	}
	if tokens > 0 || cost > 0 {
		if err := m.db.UpdateSessionMetrics(ctx, id, tokens, cost); err != nil {
			return fmt.Errorf("updating session metrics: %w", err)
		}
	}
	return nil
}

// Touch refreshes the session's activity timestamp without recording a
// message.
func (m *Manager) Touch(id string) {
	m.mu.Lock()
	if active, ok := m.active[id]; ok {
		active.LastActive = time.Now().UTC()
	}
	m.mu.Unlock()
}

// End removes the session from the active set and marks it ended in the
// store. Ending an already-ended or unknown session is a no-op.
func (m *Manager) End(ctx context.Context, id string) error {
	m.mu.Lock()
	_, wasActive := m.active[id]
	delete(m.active, id)
	m.mu.Unlock()

	if err := m.db.EndSession(ctx, id); err != nil {
		return fmt.Errorf("ending session: %w", err)
	}
	if wasActive {
		m.logger.Info("session ended", "session_id", id)
	}
	return nil
}

// List returns snapshots of all currently active sessions.
func (m *Manager) List() []*Active {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Active, 0, len(m.active))
	for _, a := range m.active {
		copied := *a
		out = append(out, &copied)
	}
	return out
}

// Stats computes aggregate statistics over the active sessions.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{ActiveSessions: len(m.active)}
	seen := make(map[string]struct{})
	for _, a := range m.active {
		stats.TotalTokens += a.TotalTokens
		stats.TotalCost += a.TotalCost
		stats.TotalMessages += a.MessageCount
		if a.Model != "" {
			if _, ok := seen[a.Model]; !ok {
				seen[a.Model] = struct{}{}
				stats.Models = append(stats.Models, a.Model)
			}
		}
	}
	return stats
}

// sweepIdle ends every session whose last activity is older than the
// idle timeout.
func (m *Manager) sweepIdle(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-m.opts.IdleTimeout)

	m.mu.RLock()
	var expired []string
	for id, a := range m.active {
		if a.LastActive.Before(cutoff) {
			expired = append(expired, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range expired {
		if err := m.End(ctx, id); err != nil {
			m.logger.Warn("failed to end idle session", "session_id", id, "error", err)
			continue
		}
		m.logger.Info("idle session swept", "session_id", id)
	}
}
