// ABOUTME: Tests for SQLite store implementation
// ABOUTME: Covers project/session CRUD, message persistence, and metric accumulation

package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	return s
}

func testProject(id string) *Project {
	now := time.Now().UTC().Truncate(time.Second)
	return &Project{
		ID:        id,
		Name:      "Project " + id,
		Path:      "/projects/" + id,
		CreatedAt: now,
		UpdatedAt: now,
		IsActive:  true,
	}
}

func testSession(id, projectID string) *Session {
	now := time.Now().UTC().Truncate(time.Second)
	return &Session{
		ID:        id,
		ProjectID: projectID,
		Title:     "Session " + id,
		Model:     "claude-3-5-haiku-20241022",
		CreatedAt: now,
		UpdatedAt: now,
		IsActive:  true,
	}
}

func TestNewSQLiteStore(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer s.Close()

	// Verify the database file was created
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "subdir", "nested", "test.db")

	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created in nested directory")
	}
}

func TestCreateAndGetProject(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	project := testProject("proj-1")
	project.Description = "a test project"

	if err := s.CreateProject(ctx, project); err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}

	got, err := s.GetProject(ctx, "proj-1")
	if err != nil {
		t.Fatalf("GetProject failed: %v", err)
	}

	if got.Name != project.Name {
		t.Errorf("Name mismatch: got %q, want %q", got.Name, project.Name)
	}
	if got.Description != "a test project" {
		t.Errorf("Description mismatch: got %q", got.Description)
	}
	if got.Path != project.Path {
		t.Errorf("Path mismatch: got %q, want %q", got.Path, project.Path)
	}
	if !got.IsActive {
		t.Error("project should be active")
	}
}

func TestCreateProject_Duplicate(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	if err := s.CreateProject(ctx, testProject("proj-1")); err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}

	err := s.CreateProject(ctx, testProject("proj-1"))
	if !errors.Is(err, ErrDuplicateProject) {
		t.Errorf("expected ErrDuplicateProject, got %v", err)
	}
}

func TestGetProject_NotFound(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	_, err := s.GetProject(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListProjects(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		p := testProject(fmt.Sprintf("proj-%d", i))
		p.CreatedAt = p.CreatedAt.Add(time.Duration(i) * time.Second)
		if err := s.CreateProject(ctx, p); err != nil {
			t.Fatalf("CreateProject failed: %v", err)
		}
	}

	projects, err := s.ListProjects(ctx, 10)
	if err != nil {
		t.Fatalf("ListProjects failed: %v", err)
	}
	if len(projects) != 3 {
		t.Fatalf("got %d projects, want 3", len(projects))
	}
	// Newest first
	if projects[0].ID != "proj-2" {
		t.Errorf("ordering: got %q first", projects[0].ID)
	}
}

func TestDeleteProject(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	if err := s.CreateProject(ctx, testProject("proj-1")); err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}
	if err := s.DeleteProject(ctx, "proj-1"); err != nil {
		t.Fatalf("DeleteProject failed: %v", err)
	}
	if _, err := s.GetProject(ctx, "proj-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("project should be gone, got %v", err)
	}
	if err := s.DeleteProject(ctx, "proj-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete should report ErrNotFound, got %v", err)
	}
}

func TestCreateAndGetSession(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	if err := s.CreateProject(ctx, testProject("proj-1")); err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}

	session := testSession("sess-1", "proj-1")
	session.SystemPrompt = "be helpful"

	if err := s.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	got, err := s.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}

	if got.ProjectID != "proj-1" {
		t.Errorf("ProjectID mismatch: got %q", got.ProjectID)
	}
	if got.Model != session.Model {
		t.Errorf("Model mismatch: got %q", got.Model)
	}
	if got.SystemPrompt != "be helpful" {
		t.Errorf("SystemPrompt mismatch: got %q", got.SystemPrompt)
	}
	if !got.IsActive {
		t.Error("session should be active")
	}
	if got.TotalTokens != 0 || got.MessageCount != 0 {
		t.Errorf("fresh session has metrics: %+v", got)
	}
}

func TestCreateSession_WithoutProject(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	if err := s.CreateSession(ctx, testSession("sess-1", "")); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	got, err := s.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.ProjectID != "" {
		t.Errorf("ProjectID: got %q, want empty", got.ProjectID)
	}

	sessions, err := s.ListSessions(ctx, "", 10)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("ListSessions: got %d sessions, want 1", len(sessions))
	}
}

func TestUpdateSessionMetrics(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	if err := s.CreateProject(ctx, testProject("proj-1")); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateSession(ctx, testSession("sess-1", "proj-1")); err != nil {
		t.Fatal(err)
	}

	if err := s.UpdateSessionMetrics(ctx, "sess-1", 100, 0.01); err != nil {
		t.Fatalf("UpdateSessionMetrics failed: %v", err)
	}
	if err := s.UpdateSessionMetrics(ctx, "sess-1", 50, 0.005); err != nil {
		t.Fatalf("UpdateSessionMetrics failed: %v", err)
	}

	got, err := s.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.TotalTokens != 150 {
		t.Errorf("TotalTokens: got %d, want 150", got.TotalTokens)
	}
	if got.TotalCost < 0.0149 || got.TotalCost > 0.0151 {
		t.Errorf("TotalCost: got %v, want 0.015", got.TotalCost)
	}

	// Unknown session reports ErrNotFound
	if err := s.UpdateSessionMetrics(ctx, "missing", 1, 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestEndSession(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	if err := s.CreateProject(ctx, testProject("proj-1")); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateSession(ctx, testSession("sess-1", "proj-1")); err != nil {
		t.Fatal(err)
	}

	if err := s.EndSession(ctx, "sess-1"); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}

	got, err := s.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.IsActive {
		t.Error("session should be inactive")
	}

	// Idempotent, including for unknown ids
	if err := s.EndSession(ctx, "sess-1"); err != nil {
		t.Errorf("re-ending session: %v", err)
	}
	if err := s.EndSession(ctx, "missing"); err != nil {
		t.Errorf("ending unknown session: %v", err)
	}
}

func TestAppendAndGetMessages(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	if err := s.CreateProject(ctx, testProject("proj-1")); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateSession(ctx, testSession("sess-1", "proj-1")); err != nil {
		t.Fatal(err)
	}

	base := time.Now().UTC().Truncate(time.Second)
	for i, role := range []string{"user", "assistant"} {
		msg := &Message{
			ID:        fmt.Sprintf("msg-%d", i),
			SessionID: "sess-1",
			Role:      role,
			Content:   fmt.Sprintf("content %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := s.AppendMessage(ctx, msg); err != nil {
			t.Fatalf("AppendMessage failed: %v", err)
		}
	}

	msgs, err := s.GetSessionMessages(ctx, "sess-1", 10)
	if err != nil {
		t.Fatalf("GetSessionMessages failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != "user" || msgs[1].Role != "assistant" {
		t.Errorf("insertion order not preserved: %q, %q", msgs[0].Role, msgs[1].Role)
	}

	// Message count incremented on the session
	sess, err := s.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatal(err)
	}
	if sess.MessageCount != 2 {
		t.Errorf("MessageCount: got %d, want 2", sess.MessageCount)
	}
}

func TestListSessions_FilterByProject(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	for _, pid := range []string{"proj-1", "proj-2"} {
		if err := s.CreateProject(ctx, testProject(pid)); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.CreateSession(ctx, testSession("sess-1", "proj-1")); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateSession(ctx, testSession("sess-2", "proj-2")); err != nil {
		t.Fatal(err)
	}

	all, err := s.ListSessions(ctx, "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("got %d sessions, want 2", len(all))
	}

	filtered, err := s.ListSessions(ctx, "proj-1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(filtered) != 1 || filtered[0].ID != "sess-1" {
		t.Errorf("filter: got %+v", filtered)
	}
}
