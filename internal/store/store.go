// ABOUTME: Store interface and data types for claude-gateway persistence
// ABOUTME: Defines Project, Session, Message structs and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateProject is returned when trying to create a project whose id
// or path already exists
var ErrDuplicateProject = errors.New("project already exists")

// ErrDuplicateSession is returned when trying to create a session that
// already exists
var ErrDuplicateSession = errors.New("session already exists")

// Project represents a workspace directory the CLI runs in
type Project struct {
	ID          string
	Name        string
	Description string
	Path        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	IsActive    bool
}

// Session represents one persisted conversation context
type Session struct {
	ID           string
	ProjectID    string
	Title        string
	Model        string
	SystemPrompt string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	IsActive     bool

	// Cumulative metrics, monotonically non-decreasing while active
	TotalTokens  int
	TotalCost    float64
	MessageCount int
}

// Message represents a single conversation turn within a session.
// Rows are append-only; a message is never mutated after insertion.
type Message struct {
	ID           string
	SessionID    string
	Role         string // system, user, assistant
	Content      string
	InputTokens  int
	OutputTokens int
	Cost         float64
	Metadata     string // free-form JSON
	CreatedAt    time.Time
}

// Store defines the interface for project, session, and message persistence
type Store interface {
	// Projects
	CreateProject(ctx context.Context, project *Project) error
	GetProject(ctx context.Context, id string) (*Project, error)
	ListProjects(ctx context.Context, limit int) ([]*Project, error)
	DeleteProject(ctx context.Context, id string) error

	// Sessions
	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	ListSessions(ctx context.Context, projectID string, limit int) ([]*Session, error)
	// UpdateSessionMetrics adds to the cumulative token/cost counters and
	// advances updated_at. Idempotent on retry is assumed by callers.
	UpdateSessionMetrics(ctx context.Context, id string, tokens int, cost float64) error
	EndSession(ctx context.Context, id string) error

	// Messages (append-only conversation history)
	AppendMessage(ctx context.Context, msg *Message) error
	GetSessionMessages(ctx context.Context, sessionID string, limit int) ([]*Message, error)

	// Close releases any resources held by the store
	Close() error
}
