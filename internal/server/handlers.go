package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/fiona/folio/pkg/agent"
	"github.com/fiona/folio/pkg/layout"
	"github.com/fiona/folio/pkg/project"
)

const defaultAgentPrompt = "Assess the layout and improve hierarchy, storytelling, and polish."

const maxUploadBytes = 32 << 20

// handleProjects handles GET /api/projects
func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	projects, err := s.store.List()
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list projects")
		writeError(w, http.StatusInternalServerError, "failed to list projects")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"projects": projects})
}

// handleLayout handles GET and POST /api/layout
func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		name := project.SanitizeName(r.URL.Query().Get("project"))
		doc := s.store.Load(name)
		overlay, err := doc.Overlay()
		if err != nil {
			s.logger.Error().Err(err).Str("project", name).Msg("Failed to encode layout")
			writeError(w, http.StatusInternalServerError, "failed to encode layout")
			return
		}
		writeJSON(w, http.StatusOK, overlay)

	case http.MethodPost:
		var payload struct {
			Project string          `json:"project"`
			Layout  json.RawMessage `json:"layout"`
		}
		if err := decodeBody(r, &payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		overlay, ok := decodeObject(payload.Layout)
		if !ok {
			writeError(w, http.StatusBadRequest, "layout must be an object")
			return
		}

		name := project.SanitizeName(payload.Project)
		if _, err := s.store.SaveOverlay(name, overlay); err != nil {
			s.logger.Error().Err(err).Str("project", name).Msg("Failed to save layout")
			writeError(w, http.StatusInternalServerError, "failed to save layout")
			return
		}
		s.broadcastLayout(name)

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"project": name,
		})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleBlock handles POST /api/block
func (s *Server) handleBlock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var payload struct {
		Project   string          `json:"project"`
		Operation string          `json:"operation"`
		Block     json.RawMessage `json:"block"`
		BlockID   string          `json:"block_id"`
		Updates   json.RawMessage `json:"updates"`
	}
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	name := project.SanitizeName(payload.Project)
	session := layout.NewSession(name, s.store.Load(name), s.logger)

	var result layout.Result
	switch payload.Operation {
	case "add":
		args, ok := decodeObject(payload.Block)
		if !ok {
			writeError(w, http.StatusBadRequest, "block must be an object")
			return
		}
		result = session.CreateBlock(layout.DecodeCreateBlockArgs(args))

	case "update":
		if strings.TrimSpace(payload.BlockID) == "" {
			writeError(w, http.StatusBadRequest, "block_id is required")
			return
		}
		args, ok := decodeObject(payload.Updates)
		if !ok {
			writeError(w, http.StatusBadRequest, "updates must be an object")
			return
		}
		args["id"] = payload.BlockID
		result = session.UpdateBlock(layout.DecodeUpdateBlockArgs(args))

	case "delete":
		if strings.TrimSpace(payload.BlockID) == "" {
			writeError(w, http.StatusBadRequest, "block_id is required")
			return
		}
		result = session.DeleteBlock(map[string]any{"id": payload.BlockID})

	default:
		writeError(w, http.StatusBadRequest, "invalid operation")
		return
	}

	if msg, failed := result["error"].(string); failed && result["status"] == "error" {
		status := http.StatusBadRequest
		if strings.Contains(msg, "not found") {
			status = http.StatusNotFound
			msg = "block not found"
		}
		writeError(w, status, msg)
		return
	}

	if session.Modified() {
		if _, err := s.store.Save(name, session.Document()); err != nil {
			s.logger.Error().Err(err).Str("project", name).Msg("Failed to save layout")
			writeError(w, http.StatusInternalServerError, "failed to save layout")
			return
		}
		s.broadcastLayout(name)
	}

	response := map[string]interface{}{
		"success": true,
		"events":  session.Events(),
	}
	if block, ok := result["block"]; ok {
		response["block"] = block
	}
	writeJSON(w, http.StatusOK, response)
}

// handleUpload handles POST /api/upload
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "missing file")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file")
		return
	}
	defer file.Close()

	hint := r.FormValue("filename")
	if hint == "" {
		hint = header.Filename
	}
	if strings.TrimSpace(hint) == "" {
		writeError(w, http.StatusBadRequest, "empty filename")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	name := project.SanitizeName(r.FormValue("project"))
	filename, err := s.store.SaveMedia(name, hint, data)
	if err != nil {
		s.logger.Error().Err(err).Str("project", name).Msg("Failed to save media")
		writeError(w, http.StatusInternalServerError, "failed to save file")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"url":      fmt.Sprintf("/project-assets/%s/%s", name, filename),
		"filename": filename,
	})
}

// handleAgentRun handles POST /api/agent/run
func (s *Server) handleAgentRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.provider == nil {
		writeError(w, http.StatusServiceUnavailable, "agent backend is not configured")
		return
	}

	var payload struct {
		Project      string `json:"project"`
		Prompt       string `json:"prompt"`
		Model        string `json:"model"`
		SystemPrompt string `json:"systemPrompt"`
		Snapshot     string `json:"snapshot"`
	}
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	name := project.SanitizeName(payload.Project)
	prompt := strings.TrimSpace(payload.Prompt)
	if prompt == "" {
		prompt = defaultAgentPrompt
	}
	model := strings.TrimSpace(payload.Model)
	if model == "" {
		model = s.agentCfg.Model
	}
	systemPrompt := payload.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = s.agentCfg.SystemPrompt
	}

	session := layout.NewSession(name, s.store.Load(name), s.logger)
	registry, err := layout.NewToolRegistry(session)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to build tool registry")
		writeError(w, http.StatusInternalServerError, "failed to prepare tools")
		return
	}

	// A snapshot failure never blocks the run
	snapshotData := payload.Snapshot
	if snapshotData == "" && s.renderer != nil {
		rendered, err := s.renderer.RenderDataURL(r.Context(), name)
		if err != nil {
			s.logger.Warn().Err(err).Str("project", name).Msg("Snapshot render failed, running without one")
		} else {
			snapshotData = rendered
		}
	}

	runner, err := agent.NewRunner(agent.RunnerConfig{
		Provider:   s.provider,
		Dispatcher: registry,
		MaxTurns:   s.agentCfg.MaxTurns,
		Logger:     s.logger,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to build agent runner")
		writeError(w, http.StatusInternalServerError, "failed to prepare agent")
		return
	}

	result, runErr := runner.Run(r.Context(), agent.RunParams{
		Model:           model,
		SystemPrompt:    systemPrompt,
		Prompt:          prompt,
		SnapshotDataURL: snapshotData,
		EnableThinking:  s.agentCfg.EnableThinking,
		ThinkingBudget:  s.agentCfg.ThinkingBudget,
		MaxTokens:       s.agentCfg.MaxTokens,
	})
	if runErr != nil && !errors.Is(runErr, agent.ErrMaxTurnsExceeded) {
		s.logger.Error().Err(runErr).Str("project", name).Msg("Agent run failed")
		writeError(w, http.StatusInternalServerError, runErr.Error())
		return
	}

	modified := session.Modified()
	doc := session.Document()
	if modified {
		if _, err := s.store.Save(name, doc); err != nil {
			s.logger.Error().Err(err).Str("project", name).Msg("Failed to save layout after agent run")
			writeError(w, http.StatusInternalServerError, "failed to save layout")
			return
		}
		s.broadcastLayout(name)
	}

	overlay, err := doc.Overlay()
	if err != nil {
		s.logger.Error().Err(err).Str("project", name).Msg("Failed to encode layout")
		writeError(w, http.StatusInternalServerError, "failed to encode layout")
		return
	}

	toolCalls := result.ToolCalls
	if toolCalls == nil {
		toolCalls = []agent.ExecutedToolCall{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"project":    name,
		"layout":     overlay,
		"events":     session.Events(),
		"answer":     result.Answer,
		"reasoning":  result.Reasoning,
		"tool_calls": toolCalls,
		"modified":   modified,
	})
}

// handleProjectAsset serves uploaded media files
func (s *Server) handleProjectAsset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/project-assets/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[1] == "" {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	name := project.SanitizeName(parts[0])
	path, err := s.store.MediaPath(name, parts[1])
	if err != nil {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	http.ServeFile(w, r, path)
}

// broadcastLayout notifies live clients that a project layout changed
func (s *Server) broadcastLayout(name string) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.Broadcast("layout.updated", name, map[string]interface{}{
		"project": name,
	})
}

// decodeBody decodes a JSON request body, treating an empty body as empty input
func decodeBody(r *http.Request, dst interface{}) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, dst)
}

// decodeObject decodes raw JSON into a map, rejecting non-object values
func decodeObject(raw json.RawMessage) (map[string]interface{}, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil || out == nil {
		return nil, false
	}
	return out, true
}
