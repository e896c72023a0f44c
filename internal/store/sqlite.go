// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides project/session/message persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT,
			path TEXT NOT NULL UNIQUE,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1
		);

		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			project_id TEXT,
			title TEXT,
			model TEXT NOT NULL,
			system_prompt TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1,
			total_tokens INTEGER NOT NULL DEFAULT 0,
			total_cost REAL NOT NULL DEFAULT 0,
			message_count INTEGER NOT NULL DEFAULT 0,
			FOREIGN KEY (project_id) REFERENCES projects(id)
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_project_id
			ON sessions(project_id);

		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			input_tokens INTEGER NOT NULL DEFAULT 0,
			output_tokens INTEGER NOT NULL DEFAULT 0,
			cost REAL NOT NULL DEFAULT 0,
			metadata TEXT,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (session_id) REFERENCES sessions(id)
		);

		CREATE INDEX IF NOT EXISTS idx_messages_session_created
			ON messages(session_id, created_at);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// Close closes the underlying database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// CreateProject inserts a new project row.
// Returns ErrDuplicateProject if the id or path already exists.
func (s *SQLiteStore) CreateProject(ctx context.Context, project *Project) error {
	query := `
		INSERT INTO projects (id, name, description, path, created_at, updated_at, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		project.ID,
		project.Name,
		project.Description,
		project.Path,
		project.CreatedAt.UTC().Format(time.RFC3339),
		project.UpdatedAt.UTC().Format(time.RFC3339),
		boolToInt(project.IsActive),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateProject
		}
		return fmt.Errorf("inserting project: %w", err)
	}

	s.logger.Debug("created project", "id", project.ID, "path", project.Path)
	return nil
}

// GetProject retrieves a project by ID.
// Returns ErrNotFound if the project doesn't exist.
func (s *SQLiteStore) GetProject(ctx context.Context, id string) (*Project, error) {
	query := `
		SELECT id, name, description, path, created_at, updated_at, is_active
		FROM projects
		WHERE id = ?
	`

	return s.scanProject(s.db.QueryRowContext(ctx, query, id))
}

// ListProjects returns projects ordered by creation time, newest first.
func (s *SQLiteStore) ListProjects(ctx context.Context, limit int) ([]*Project, error) {
	query := `
		SELECT id, name, description, path, created_at, updated_at, is_active
		FROM projects
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var projects []*Project
	for rows.Next() {
		var p Project
		var description, createdAtStr, updatedAtStr sql.NullString
		var isActive int

		if err := rows.Scan(&p.ID, &p.Name, &description, &p.Path, &createdAtStr, &updatedAtStr, &isActive); err != nil {
			return nil, fmt.Errorf("scanning project: %w", err)
		}
		p.Description = description.String
		p.IsActive = isActive != 0
		if p.CreatedAt, err = parseTime(createdAtStr.String); err != nil {
			return nil, err
		}
		if p.UpdatedAt, err = parseTime(updatedAtStr.String); err != nil {
			return nil, err
		}
		projects = append(projects, &p)
	}
	return projects, rows.Err()
}

// DeleteProject removes a project row.
func (s *SQLiteStore) DeleteProject(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted project", "id", id)
	return nil
}

func (s *SQLiteStore) scanProject(row *sql.Row) (*Project, error) {
	var p Project
	var description, createdAtStr, updatedAtStr sql.NullString
	var isActive int

	err := row.Scan(&p.ID, &p.Name, &description, &p.Path, &createdAtStr, &updatedAtStr, &isActive)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying project: %w", err)
	}

	p.Description = description.String
	p.IsActive = isActive != 0
	if p.CreatedAt, err = parseTime(createdAtStr.String); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updatedAtStr.String); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateSession inserts a new session row.
// Returns ErrDuplicateSession if the session already exists.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *Session) error {
	query := `
		INSERT INTO sessions (
			id, project_id, title, model, system_prompt,
			created_at, updated_at, is_active,
			total_tokens, total_cost, message_count
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		session.ID,
		nullIfEmpty(session.ProjectID),
		session.Title,
		session.Model,
		session.SystemPrompt,
		session.CreatedAt.UTC().Format(time.RFC3339),
		session.UpdatedAt.UTC().Format(time.RFC3339),
		boolToInt(session.IsActive),
		session.TotalTokens,
		session.TotalCost,
		session.MessageCount,
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateSession
		}
		return fmt.Errorf("inserting session: %w", err)
	}

	s.logger.Debug("created session", "id", session.ID, "project_id", session.ProjectID)
	return nil
}

// GetSession retrieves a session by ID.
// Returns ErrNotFound if the session doesn't exist.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*Session, error) {
	query := `
		SELECT id, project_id, title, model, system_prompt,
		       created_at, updated_at, is_active,
		       total_tokens, total_cost, message_count
		FROM sessions
		WHERE id = ?
	`

	var sess Session
	var projectID, title, systemPrompt, createdAtStr, updatedAtStr sql.NullString
	var isActive int

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&sess.ID,
		&projectID,
		&title,
		&sess.Model,
		&systemPrompt,
		&createdAtStr,
		&updatedAtStr,
		&isActive,
		&sess.TotalTokens,
		&sess.TotalCost,
		&sess.MessageCount,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	sess.ProjectID = projectID.String
	sess.Title = title.String
	sess.SystemPrompt = systemPrompt.String
	sess.IsActive = isActive != 0
	if sess.CreatedAt, err = parseTime(createdAtStr.String); err != nil {
		return nil, err
	}
	if sess.UpdatedAt, err = parseTime(updatedAtStr.String); err != nil {
		return nil, err
	}

	return &sess, nil
}

// ListSessions returns sessions ordered by update time, newest first.
// An empty projectID returns sessions for all projects.
func (s *SQLiteStore) ListSessions(ctx context.Context, projectID string, limit int) ([]*Session, error) {
	query := `
		SELECT id, project_id, title, model, system_prompt,
		       created_at, updated_at, is_active,
		       total_tokens, total_cost, message_count
		FROM sessions
		WHERE (? = '' OR project_id = ?)
		ORDER BY updated_at DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, projectID, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []*Session
	for rows.Next() {
		var sess Session
		var projectID, title, systemPrompt, createdAtStr, updatedAtStr sql.NullString
		var isActive int

		if err := rows.Scan(
			&sess.ID, &projectID, &title, &sess.Model, &systemPrompt,
			&createdAtStr, &updatedAtStr, &isActive,
			&sess.TotalTokens, &sess.TotalCost, &sess.MessageCount,
		); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}

		sess.ProjectID = projectID.String
		sess.Title = title.String
		sess.SystemPrompt = systemPrompt.String
		sess.IsActive = isActive != 0
		if sess.CreatedAt, err = parseTime(createdAtStr.String); err != nil {
			return nil, err
		}
		if sess.UpdatedAt, err = parseTime(updatedAtStr.String); err != nil {
			return nil, err
		}
		sessions = append(sessions, &sess)
	}
	return sessions, rows.Err()
}

// UpdateSessionMetrics adds tokens and cost to the session's cumulative
// counters and advances updated_at.
func (s *SQLiteStore) UpdateSessionMetrics(ctx context.Context, id string, tokens int, cost float64) error {
	query := `
		UPDATE sessions
		SET total_tokens = total_tokens + ?,
		    total_cost = total_cost + ?,
		    updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query, tokens, cost, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("updating session metrics: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// EndSession marks a session inactive. Ending an already-ended session is
// a no-op.
func (s *SQLiteStore) EndSession(ctx context.Context, id string) error {
	query := `UPDATE sessions SET is_active = 0, updated_at = ? WHERE id = ?`

	if _, err := s.db.ExecContext(ctx, query, time.Now().UTC().Format(time.RFC3339), id); err != nil {
		return fmt.Errorf("ending session: %w", err)
	}

	s.logger.Debug("ended session", "id", id)
	return nil
}

// AppendMessage inserts one conversation turn and increments the owning
// session's message count.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO messages (
			id, session_id, role, content,
			input_tokens, output_tokens, cost, metadata, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	if _, err := tx.ExecContext(ctx, query,
		msg.ID,
		msg.SessionID,
		msg.Role,
		msg.Content,
		msg.InputTokens,
		msg.OutputTokens,
		msg.Cost,
		msg.Metadata,
		msg.CreatedAt.UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET message_count = message_count + 1 WHERE id = ?`,
		msg.SessionID,
	); err != nil {
		return fmt.Errorf("incrementing message count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing message: %w", err)
	}

	s.logger.Debug("appended message", "id", msg.ID, "session_id", msg.SessionID, "role", msg.Role)
	return nil
}

// GetSessionMessages retrieves messages for a session in insertion order.
func (s *SQLiteStore) GetSessionMessages(ctx context.Context, sessionID string, limit int) ([]*Message, error) {
	query := `
		SELECT id, session_id, role, content,
		       input_tokens, output_tokens, cost, metadata, created_at
		FROM messages
		WHERE session_id = ?
		ORDER BY created_at ASC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var messages []*Message
	for rows.Next() {
		var msg Message
		var metadata, createdAtStr sql.NullString

		if err := rows.Scan(
			&msg.ID, &msg.SessionID, &msg.Role, &msg.Content,
			&msg.InputTokens, &msg.OutputTokens, &msg.Cost, &metadata, &createdAtStr,
		); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}

		msg.Metadata = metadata.String
		if msg.CreatedAt, err = parseTime(createdAtStr.String); err != nil {
			return nil, err
		}
		messages = append(messages, &msg)
	}
	return messages, rows.Err()
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// nullIfEmpty stores empty strings as NULL so optional references
// pass foreign key checks.
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
