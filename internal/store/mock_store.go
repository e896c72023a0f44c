// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu       sync.RWMutex
	projects map[string]*Project  // keyed by project ID
	sessions map[string]*Session  // keyed by session ID
	messages map[string][]*Message // keyed by session ID

	// Error injection for failure-path tests
	CreateSessionErr error
	AppendMessageErr error
	UpdateMetricsErr error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		projects: make(map[string]*Project),
		sessions: make(map[string]*Session),
		messages: make(map[string][]*Message),
	}
}

// CreateProject stores a new project.
func (m *MockStore) CreateProject(ctx context.Context, project *Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.projects[project.ID]; exists {
		return ErrDuplicateProject
	}
	for _, p := range m.projects {
		if p.Path == project.Path {
			return ErrDuplicateProject
		}
	}

	// Make a copy to avoid external modification
	p := *project
	m.projects[p.ID] = &p
	return nil
}

// GetProject retrieves a project by ID.
func (m *MockStore) GetProject(ctx context.Context, id string) (*Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.projects[id]
	if !ok {
		return nil, ErrNotFound
	}

	result := *p
	return &result, nil
}

// ListProjects returns projects sorted newest first.
func (m *MockStore) ListProjects(ctx context.Context, limit int) ([]*Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	projects := make([]*Project, 0, len(m.projects))
	for _, p := range m.projects {
		cp := *p
		projects = append(projects, &cp)
	}
	sort.Slice(projects, func(i, j int) bool {
		return projects[i].CreatedAt.After(projects[j].CreatedAt)
	})
	if limit > 0 && len(projects) > limit {
		projects = projects[:limit]
	}
	return projects, nil
}

// DeleteProject removes a project.
func (m *MockStore) DeleteProject(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.projects[id]; !ok {
		return ErrNotFound
	}
	delete(m.projects, id)
	return nil
}

// CreateSession stores a new session.
func (m *MockStore) CreateSession(ctx context.Context, session *Session) error {
	if m.CreateSessionErr != nil {
		return m.CreateSessionErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[session.ID]; exists {
		return ErrDuplicateSession
	}

	s := *session
	m.sessions[s.ID] = &s
	return nil
}

// GetSession retrieves a session by ID.
func (m *MockStore) GetSession(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}

	result := *s
	return &result, nil
}

// ListSessions returns sessions, optionally filtered by project.
func (m *MockStore) ListSessions(ctx context.Context, projectID string, limit int) ([]*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		if projectID != "" && s.ProjectID != projectID {
			continue
		}
		cp := *s
		sessions = append(sessions, &cp)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	if limit > 0 && len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions, nil
}

// UpdateSessionMetrics adds to cumulative counters.
func (m *MockStore) UpdateSessionMetrics(ctx context.Context, id string, tokens int, cost float64) error {
	if m.UpdateMetricsErr != nil {
		return m.UpdateMetricsErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	s.TotalTokens += tokens
	s.TotalCost += cost
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// EndSession marks the session inactive. No-op for unknown sessions.
func (m *MockStore) EndSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok {
		s.IsActive = false
		s.UpdatedAt = time.Now().UTC()
	}
	return nil
}

// AppendMessage stores a message and increments the session's count.
func (m *MockStore) AppendMessage(ctx context.Context, msg *Message) error {
	if m.AppendMessageErr != nil {
		return m.AppendMessageErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *msg
	m.messages[cp.SessionID] = append(m.messages[cp.SessionID], &cp)
	if s, ok := m.sessions[cp.SessionID]; ok {
		s.MessageCount++
	}
	return nil
}

// GetSessionMessages retrieves messages in insertion order.
func (m *MockStore) GetSessionMessages(ctx context.Context, sessionID string, limit int) ([]*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msgs := m.messages[sessionID]
	result := make([]*Message, 0, len(msgs))
	for _, msg := range msgs {
		cp := *msg
		result = append(result, &cp)
	}
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Close is a no-op for the mock.
func (m *MockStore) Close() error {
	return nil
}
