package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/rustfs-launcher/internal/process"
)

// MessageResponse carries a command's human-readable result.
type MessageResponse struct {
	Message string `json:"message"`
}

// LogsResponse is the body of the log snapshot endpoints.
type LogsResponse struct {
	Logs  []string `json:"logs"`
	Count int      `json:"count"`
}

// decodeLaunchConfig reads a LaunchConfig from the request body.
// An empty body yields the defaults.
func decodeLaunchConfig(r *http.Request) (process.LaunchConfig, error) {
	cfg := process.DefaultLaunchConfig()
	if r.Body == nil {
		return cfg, nil
	}
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, err
	}
	return cfg, nil
}

// handleLaunch starts RustFS with the posted configuration.
func (s *Server) handleLaunch(w http.ResponseWriter, r *http.Request) {
	cfg, err := decodeLaunchConfig(r)
	if err != nil {
		writeBadRequest(w, "invalid JSON: "+err.Error())
		return
	}

	msg, err := s.supervisor.Launch(r.Context(), cfg)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: msg})
}

// handleValidate checks the posted configuration without launching.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	cfg, err := decodeLaunchConfig(r)
	if err != nil {
		writeBadRequest(w, "invalid JSON: "+err.Error())
		return
	}

	valid, err := s.supervisor.Validate(cfg)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": valid})
}

// handleDiagnose runs the bundled binary with --help.
func (s *Server) handleDiagnose(w http.ResponseWriter, r *http.Request) {
	msg, err := s.supervisor.Diagnose(r.Context())
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: msg})
}

// handleTerminate kills the tracked process and waits for it to exit.
func (s *Server) handleTerminate(w http.ResponseWriter, _ *http.Request) {
	s.supervisor.Terminate()
	writeJSON(w, http.StatusOK, s.supervisor.Stats())
}

// handleAppLogs returns the launcher's own log entries.
func (s *Server) handleAppLogs(w http.ResponseWriter, _ *http.Request) {
	logs := s.supervisor.AppLogs()
	writeJSON(w, http.StatusOK, LogsResponse{Logs: logs, Count: len(logs)})
}

// handleProcessLogs returns the captured RustFS output.
func (s *Server) handleProcessLogs(w http.ResponseWriter, _ *http.Request) {
	logs := s.supervisor.ProcessLogs()
	writeJSON(w, http.StatusOK, LogsResponse{Logs: logs, Count: len(logs)})
}

// handleStatus returns the supervisor state.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.supervisor.Stats())
}

// handleListRuns returns recent launches, newest first.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeUnavailable(w, "run history is disabled")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := s.history.List(r.Context(), limit)
	if err != nil {
		s.logger.Error("listing runs failed", "error", err)
		writeInternalError(w, "failed to list runs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"count": len(runs),
	})
}

// handleGetRun returns a single launch by ID.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeUnavailable(w, "run history is disabled")
		return
	}

	run, err := s.history.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}
