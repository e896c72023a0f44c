// ABOUTME: HTTP API handlers for chat completions, models, sessions, and projects
// ABOUTME: Streams completions over SSE with heartbeats while runs are in flight

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/claude-gateway/internal/claude"
	"github.com/2389/claude-gateway/internal/session"
	"github.com/2389/claude-gateway/internal/store"
	"github.com/2389/claude-gateway/internal/supervisor"
)

// handleChatCompletions handles POST /v1/chat/completions, the core
// OpenAI-compatible endpoint.
func (g *Gateway) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w, CodeInvalidRequest, "Invalid request body: "+err.Error())
		return
	}

	if len(req.Messages) == 0 {
		writeInvalidRequest(w, CodeMissingMessages, "At least one message is required")
		return
	}
	prompt := lastUserContent(req.Messages)
	if prompt == "" {
		writeInvalidRequest(w, CodeMissingUserMessage, "No user message found")
		return
	}

	// Unknown models fall back to the default rather than failing.
	model := claude.ValidateModel(req.Model)
	if req.Model == "" {
		model = g.config.Claude.DefaultModel
	}
	systemPrompt := firstSystemContent(req.Messages)

	workingDir, projectID, ok := g.resolveWorkingDir(r.Context(), w, req.ProjectID)
	if !ok {
		return
	}

	active, ok := g.resolveSession(r.Context(), w, req.SessionID, projectID, model, systemPrompt)
	if !ok {
		return
	}

	if err := g.sessions.RecordTurn(r.Context(), active.ID, "user", prompt, 0, 0, 0); err != nil {
		g.logger.Warn("failed to record user turn", "session_id", active.ID, "error", err)
	}

	runReq := supervisor.RunRequest{
		SessionID:    active.ID,
		WorkingDir:   workingDir,
		Prompt:       prompt,
		Model:        model,
		SystemPrompt: systemPrompt,
	}
	completionID := "chatcmpl-" + uuid.NewString()

	if req.Stream {
		g.streamCompletion(w, r, completionID, model, active, runReq)
		return
	}
	g.completeOnce(w, r, completionID, model, active, runReq)
}

// completeOnce runs the invocation to completion and returns a single
// aggregated JSON response.
func (g *Gateway) completeOnce(w http.ResponseWriter, r *http.Request, completionID, model string, active *session.Active, runReq supervisor.RunRequest) {
	inv, err := g.supervisor.Run(r.Context(), runReq)
	if err != nil {
		g.writeRunError(w, err)
		return
	}

	var agg Aggregator
	resp := agg.Response(completionID, model, active.ID, inv.EventSlice())
	g.recordAssistantTurn(r.Context(), active.ID, resp.Choices[0].Message.Content, inv.Summary())

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// streamCompletion runs the invocation while emitting heartbeats, then
// translates the buffered events into SSE chunks.
func (g *Gateway) streamCompletion(w http.ResponseWriter, r *http.Request, completionID, model string, active *session.Active, runReq supervisor.RunRequest) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeServerError(w, CodeStreamError, "Streaming is not supported by this connection")
		return
	}

	translator := NewStreamTranslator(w, flusher, completionID, model, g.config.Streaming.MaxContentChunks, g.logger)

	type runResult struct {
		inv *supervisor.Invocation
		err error
	}
	resultCh := make(chan runResult, 1)
	go func() {
		inv, err := g.supervisor.Run(r.Context(), runReq)
		resultCh <- runResult{inv, err}
	}()

	heartbeat := time.NewTicker(g.config.Streaming.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			g.supervisor.Stop(active.ID)
			return
		case <-heartbeat.C:
			translator.WriteHeartbeat()
		case result := <-resultCh:
			if result.err != nil {
				errType, code, message := classifyRunError(result.err)
				translator.WriteError(errType, code, message)
				return
			}
			events := result.inv.EventSlice()
			translator.StreamEvents(events)

			var agg Aggregator
			g.recordAssistantTurn(r.Context(), active.ID, agg.AggregateContent(events), result.inv.Summary())
			return
		}
	}
}

// recordAssistantTurn persists the assistant reply and folds the run's
// usage into the session.
func (g *Gateway) recordAssistantTurn(ctx context.Context, sessionID, content string, summary claude.UsageSummary) {
	err := g.sessions.RecordTurn(ctx, sessionID, "assistant", content, 0, summary.TotalTokens, summary.TotalCost)
	if err != nil {
		g.logger.Warn("failed to record assistant turn", "session_id", sessionID, "error", err)
	}
}

// resolveWorkingDir maps an optional project id to the directory the
// backing tool runs in. Without a project the run inherits the
// process's own working directory. Writes the error response itself
// on failure.
func (g *Gateway) resolveWorkingDir(ctx context.Context, w http.ResponseWriter, projectID string) (dir, resolvedID string, ok bool) {
	if projectID == "" {
		return "", "", true
	}
	project, err := g.store.GetProject(ctx, projectID)
	if errors.Is(err, store.ErrNotFound) {
		writeNotFound(w, CodeProjectNotFound, "Project not found: "+projectID)
		return "", "", false
	}
	if err != nil {
		writeServerError(w, "", "Failed to look up project")
		return "", "", false
	}
	return project.Path, project.ID, true
}

// resolveSession continues an existing session or creates a fresh one.
// Writes the error response itself on failure.
func (g *Gateway) resolveSession(ctx context.Context, w http.ResponseWriter, sessionID, projectID, model, systemPrompt string) (*session.Active, bool) {
	if sessionID != "" {
		active, err := g.sessions.Get(ctx, sessionID)
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, session.ErrSessionEnded) {
			writeNotFound(w, CodeSessionNotFound, "Session not found: "+sessionID)
			return nil, false
		}
		if err != nil {
			writeServerError(w, "", "Failed to look up session")
			return nil, false
		}
		g.sessions.Touch(active.ID)
		return active, true
	}

	active, err := g.sessions.Create(ctx, "", projectID, model, systemPrompt)
	if err != nil {
		writeServerError(w, "", "Failed to create session")
		return nil, false
	}
	return active, true
}

// writeRunError maps supervisor failures onto API error responses.
func (g *Gateway) writeRunError(w http.ResponseWriter, err error) {
	errType, code, message := classifyRunError(err)
	status := http.StatusInternalServerError
	switch code {
	case CodeCapacityExceeded:
		status = http.StatusServiceUnavailable
	}
	g.logger.Error("completion run failed", "code", code, "error", err)
	writeError(w, status, errType, code, message)
}

func classifyRunError(err error) (errType, code, message string) {
	var execErr *supervisor.ExecutionError
	switch {
	case errors.Is(err, supervisor.ErrCapacityExceeded):
		return "server_error", CodeCapacityExceeded, "Too many concurrent requests, try again later"
	case errors.Is(err, supervisor.ErrBinaryNotFound):
		return "server_error", CodeExecutionFailed, "Backing tool is not available"
	case errors.As(err, &execErr):
		return "server_error", CodeExecutionFailed, fmt.Sprintf("Completion failed: %s", execErr.Stderr)
	case errors.Is(err, context.DeadlineExceeded):
		return "server_error", CodeExecutionFailed, "Completion timed out"
	default:
		return "server_error", CodeExecutionFailed, "Completion failed"
	}
}

// lastUserContent returns the content of the most recent user message.
func lastUserContent(messages []ChatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return strings.TrimSpace(string(messages[i].Content))
		}
	}
	return ""
}

// firstSystemContent returns the content of the first system message, if any.
func firstSystemContent(messages []ChatMessage) string {
	for _, m := range messages {
		if m.Role == "system" {
			return strings.TrimSpace(string(m.Content))
		}
	}
	return ""
}

// modelCatalogEpoch is the fixed created timestamp reported for catalog
// entries, since the CLI does not expose per-model release dates.
const modelCatalogEpoch = 1715299200

// handleListModels handles GET /v1/models.
func (g *Gateway) handleListModels(w http.ResponseWriter, r *http.Request) {
	models := claude.AvailableModels()
	list := ModelList{Object: "list", Data: make([]ModelObject, 0, len(models))}
	for _, m := range models {
		list.Data = append(list.Data, ModelObject{
			ID:      m.ID,
			Object:  "model",
			Created: modelCatalogEpoch,
			OwnedBy: "anthropic",
		})
	}
	writeJSON(w, http.StatusOK, list)
}

// handleGetModel handles GET /v1/models/{id}.
func (g *Gateway) handleGetModel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	m, ok := claude.LookupModel(id)
	if !ok {
		writeNotFound(w, CodeModelNotFound, "Model not found: "+id)
		return
	}
	writeJSON(w, http.StatusOK, ModelObject{
		ID:      m.ID,
		Object:  "model",
		Created: modelCatalogEpoch,
		OwnedBy: "anthropic",
	})
}

// handleListSessions handles GET /v1/sessions. By default it reports
// the in-memory active sessions; a project_id query switches to the
// persisted records for that project, ended sessions included.
func (g *Gateway) handleListSessions(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)

	if projectID := r.URL.Query().Get("project_id"); projectID != "" {
		records, err := g.store.ListSessions(r.Context(), projectID, limit)
		if err != nil {
			writeServerError(w, "", "Failed to list sessions")
			return
		}
		list := SessionList{Sessions: make([]SessionInfo, 0, len(records)), Total: len(records)}
		for _, rec := range records {
			list.Sessions = append(list.Sessions, recordToInfo(rec))
		}
		writeJSON(w, http.StatusOK, list)
		return
	}

	active := g.sessions.List()
	list := SessionList{Sessions: make([]SessionInfo, 0, len(active)), Total: len(active)}
	for i, a := range active {
		if i >= limit {
			break
		}
		list.Sessions = append(list.Sessions, activeToInfo(a))
	}
	writeJSON(w, http.StatusOK, list)
}

// handleSessionMessages handles GET /v1/sessions/{id}/messages, the
// persisted transcript for one session.
func (g *Gateway) handleSessionMessages(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := g.store.GetSession(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeNotFound(w, CodeSessionNotFound, "Session not found: "+id)
			return
		}
		writeServerError(w, "", "Failed to look up session")
		return
	}

	msgs, err := g.store.GetSessionMessages(r.Context(), id, queryInt(r, "limit", 100))
	if err != nil {
		writeServerError(w, "", "Failed to list messages")
		return
	}

	list := MessageList{SessionID: id, Messages: make([]MessageInfo, 0, len(msgs)), Total: len(msgs)}
	for _, m := range msgs {
		list.Messages = append(list.Messages, MessageInfo{
			ID:           m.ID,
			Role:         m.Role,
			Content:      m.Content,
			InputTokens:  m.InputTokens,
			OutputTokens: m.OutputTokens,
			Cost:         m.Cost,
			CreatedAt:    m.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, list)
}

// handleCreateSession handles POST /v1/sessions.
func (g *Gateway) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w, CodeInvalidRequest, "Invalid request body: "+err.Error())
		return
	}

	model := claude.ValidateModel(req.Model)
	if req.Model == "" {
		model = g.config.Claude.DefaultModel
	}
	if req.ProjectID != "" {
		if _, err := g.store.GetProject(r.Context(), req.ProjectID); err != nil {
			writeNotFound(w, CodeProjectNotFound, "Project not found: "+req.ProjectID)
			return
		}
	}

	active, err := g.sessions.Create(r.Context(), "", req.ProjectID, model, req.SystemPrompt)
	if err != nil {
		writeServerError(w, "", "Failed to create session")
		return
	}
	writeJSON(w, http.StatusCreated, activeToInfo(active))
}

// handleGetSession handles GET /v1/sessions/{id}.
func (g *Gateway) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	active, err := g.sessions.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, session.ErrSessionEnded) {
			writeNotFound(w, CodeSessionNotFound, "Session not found: "+id)
			return
		}
		writeServerError(w, "", "Failed to look up session")
		return
	}
	writeJSON(w, http.StatusOK, activeToInfo(active))
}

// handleDeleteSession handles DELETE /v1/sessions/{id}. Any in-flight
// run for the session is stopped as well.
func (g *Gateway) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	g.supervisor.Stop(id)
	if err := g.sessions.End(r.Context(), id); err != nil && !errors.Is(err, store.ErrNotFound) {
		writeServerError(w, "", "Failed to end session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSessionStats handles GET /v1/sessions/stats.
func (g *Gateway) handleSessionStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, g.sessions.Stats())
}

// handleListProjects handles GET /v1/projects.
func (g *Gateway) handleListProjects(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)
	projects, err := g.store.ListProjects(r.Context(), limit)
	if err != nil {
		writeServerError(w, "", "Failed to list projects")
		return
	}
	list := ProjectList{Projects: make([]ProjectInfo, 0, len(projects)), Total: len(projects)}
	for _, p := range projects {
		list.Projects = append(list.Projects, projectToInfo(p))
	}
	writeJSON(w, http.StatusOK, list)
}

// handleCreateProject handles POST /v1/projects. The project directory
// is created under the configured root.
func (g *Gateway) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w, CodeInvalidRequest, "Invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeInvalidRequest(w, CodeInvalidRequest, "Project name is required")
		return
	}

	id := uuid.NewString()
	path := filepath.Join(g.config.Projects.Root, id)
	if err := os.MkdirAll(path, 0o755); err != nil {
		writeServerError(w, "", "Failed to create project directory")
		return
	}

	now := time.Now().UTC()
	project := &store.Project{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		Path:        path,
		CreatedAt:   now,
		UpdatedAt:   now,
		IsActive:    true,
	}
	if err := g.store.CreateProject(r.Context(), project); err != nil {
		writeServerError(w, "", "Failed to create project")
		return
	}
	writeJSON(w, http.StatusCreated, projectToInfo(project))
}

// handleGetProject handles GET /v1/projects/{id}.
func (g *Gateway) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	project, err := g.store.GetProject(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeNotFound(w, CodeProjectNotFound, "Project not found: "+id)
		return
	}
	if err != nil {
		writeServerError(w, "", "Failed to look up project")
		return
	}
	writeJSON(w, http.StatusOK, projectToInfo(project))
}

// handleDeleteProject handles DELETE /v1/projects/{id}. The on-disk
// directory is removed only when it lives under the configured root.
func (g *Gateway) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	project, err := g.store.GetProject(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeNotFound(w, CodeProjectNotFound, "Project not found: "+id)
		return
	}
	if err != nil {
		writeServerError(w, "", "Failed to look up project")
		return
	}

	if err := g.store.DeleteProject(r.Context(), id); err != nil {
		writeServerError(w, "", "Failed to delete project")
		return
	}
	if root := g.config.Projects.Root; root != "" && strings.HasPrefix(project.Path, root+string(filepath.Separator)) {
		if err := os.RemoveAll(project.Path); err != nil {
			g.logger.Warn("failed to remove project directory", "path", project.Path, "error", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleHealth handles GET /health.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:        "healthy",
		Version:       Version,
		ClaudeVersion: g.claudeVersion,
		ActiveRuns:    len(g.supervisor.ActiveSessions()),
	})
}

func activeToInfo(a *session.Active) SessionInfo {
	return SessionInfo{
		ID:           a.ID,
		ProjectID:    a.ProjectID,
		Model:        a.Model,
		CreatedAt:    a.CreatedAt.Format(time.RFC3339),
		LastActive:   a.LastActive.Format(time.RFC3339),
		IsActive:     true,
		TotalTokens:  a.TotalTokens,
		TotalCost:    a.TotalCost,
		MessageCount: a.MessageCount,
	}
}

func recordToInfo(s *store.Session) SessionInfo {
	return SessionInfo{
		ID:           s.ID,
		ProjectID:    s.ProjectID,
		Model:        s.Model,
		CreatedAt:    s.CreatedAt.Format(time.RFC3339),
		LastActive:   s.UpdatedAt.Format(time.RFC3339),
		IsActive:     s.IsActive,
		TotalTokens:  s.TotalTokens,
		TotalCost:    s.TotalCost,
		MessageCount: s.MessageCount,
	}
}

func projectToInfo(p *store.Project) ProjectInfo {
	return ProjectInfo{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Path:        p.Path,
		CreatedAt:   p.CreatedAt.Format(time.RFC3339),
		IsActive:    p.IsActive,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
