package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/agentdeck/agentdeck/internal/agents/core"
	"github.com/agentdeck/agentdeck/internal/telemetry"
	"github.com/google/uuid"
)

// maxBodyBytes bounds a run request body.
const maxBodyBytes = 1 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	infos := make([]AgentInfo, 0, len(s.order))
	for _, id := range s.order {
		infos = append(infos, s.slots[id].info)
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	sl, ok := s.slots[r.PathValue("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "agent not found")
		return
	}
	writeJSON(w, http.StatusOK, sl.info)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sl, ok := s.slots[id]
	if !ok {
		writeError(w, http.StatusNotFound, "agent not found")
		return
	}

	var req RunRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.New().String()
	}

	ctx := r.Context()
	if err := sl.acquire(ctx); err != nil {
		// The client went away while another request held the agent.
		s.log.Debug("run abandoned while waiting for agent", "agent", id, "error", err)
		writeError(w, http.StatusServiceUnavailable, "request cancelled while waiting for agent")
		return
	}
	defer sl.release()

	in := core.Input{Query: req.Message, SessionID: req.SessionID, UserID: req.UserID}
	start := time.Now()
	if req.Stream {
		err := s.stream(w, r, sl, in)
		telemetry.TrackRun(s.telemetry, telemetry.SurfaceHTTP, id, time.Since(start), true, err)
		return
	}

	out, err := sl.Agent.Run(ctx, in)
	telemetry.TrackRun(s.telemetry, telemetry.SurfaceHTTP, id, time.Since(start), false, err)
	if err != nil {
		s.log.Warn("agent run failed", "agent", id, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.response(sl, in, out, time.Since(start)))
}

// stream answers with server-sent events: one data frame per fragment, then
// an "error" or "done" event.
func (s *Server) stream(w http.ResponseWriter, r *http.Request, sl *slot, in core.Input) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return errors.New("response writer cannot flush")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	start := time.Now()
	out, err := core.RunStreaming(r.Context(), sl.Agent, in, func(fragment string) {
		writeEvent(w, "", StreamChunk{Content: fragment})
		flusher.Flush()
	})
	if err != nil {
		s.log.Warn("agent stream failed", "agent", sl.ID, "error", err)
		writeEvent(w, "error", ErrorResponse{Error: err.Error()})
		flusher.Flush()
		return err
	}
	writeEvent(w, "done", s.response(sl, in, out, time.Since(start)))
	flusher.Flush()
	return nil
}

func (s *Server) response(sl *slot, in core.Input, out core.Output, d time.Duration) RunResponse {
	resp := RunResponse{
		Agent:      out.AgentName,
		Content:    out.Content,
		SessionID:  in.SessionID,
		DurationMS: d.Milliseconds(),
	}
	if resp.Agent == "" {
		resp.Agent = sl.info.Name
	}
	for _, m := range out.Members {
		resp.Members = append(resp.Members, MemberResponse{Member: m.Member, Content: m.Content})
	}
	return resp
}

func writeEvent(w io.Writer, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		payload = []byte(`{}`)
	}
	if event != "" {
		_, _ = fmt.Fprintf(w, "event: %s\n", event)
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", payload)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
