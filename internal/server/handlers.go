package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/kagent-dev/agentdesk/pkg/adk/conversation"
	apperrors "github.com/kagent-dev/agentdesk/pkg/adk/errors"
	"github.com/kagent-dev/agentdesk/pkg/adk/session"
)

// SubmitRequest is the body of POST /sessions/{id}/submit
type SubmitRequest struct {
	Text string `json:"text"`
	// Restart cancels an active run instead of failing with 409
	Restart bool `json:"restart,omitempty"`
}

// SubmitResponse identifies the started run
type SubmitResponse struct {
	SessionID string `json:"session_id"`
	RunID     string `json:"run_id"`
}

// ConversationResponse is a snapshot of a session's committed turns
type ConversationResponse struct {
	SessionID string              `json:"session_id"`
	Active    string              `json:"active_run,omitempty"`
	Turns     []conversation.Turn `json:"turns"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	ctrl, err := s.manager.Create(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": ctrl.ID()})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	list, err := s.manager.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if list == nil {
		list = []session.Info{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	ctrl, err := s.manager.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := ConversationResponse{
		SessionID: ctrl.ID(),
		Turns:     ctrl.Snapshot().Turns(),
	}
	if run := ctrl.Active(); run != nil {
		resp.Active = run.ID()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctrl, err := s.manager.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperrors.New(apperrors.ErrCodeInvalidArguments, "request body must be JSON", err))
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.writeError(w, apperrors.New(apperrors.ErrCodeInvalidArguments, "text is required", nil))
		return
	}

	submit := ctrl.Submit
	if req.Restart {
		submit = ctrl.Restart
	}
	run, err := submit(r.Context(), req.Text)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.log.V(1).Info("Run started", "session", ctrl.ID(), "run", run.ID())
	writeJSON(w, http.StatusAccepted, SubmitResponse{SessionID: ctrl.ID(), RunID: run.ID()})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	ctrl, err := s.manager.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": ctrl.CancelActive()})
}

// handleEvents streams session updates as server-sent events until the
// client disconnects or the session is closed.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	ctrl, err := s.manager.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, fmt.Errorf("streaming unsupported"))
		return
	}

	updates, unsubscribe := ctrl.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for item := range withKeepAlive(r.Context(), updates, s.keepAlive) {
		var err error
		if item.update == nil {
			_, err = fmt.Fprint(w, ": keep-alive\n\n")
		} else {
			err = writeEvent(w, *item.update)
		}
		if err != nil {
			s.log.V(1).Info("Event stream closed", "session", ctrl.ID(), "error", err.Error())
			return
		}
		flusher.Flush()
	}
}

// wireEvent is the SSE data payload of one update
type wireEvent struct {
	RunID string `json:"run_id"`
	Seq   uint64 `json:"seq"`
	Type  string `json:"type"`
	Data  any    `json:"data"`
}

func writeEvent(w http.ResponseWriter, u session.Update) error {
	data, err := json.Marshal(wireEvent{RunID: u.RunID, Seq: u.Seq, Type: u.Event.Type(), Data: u.Event})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", u.Seq, u.Event.Type(), data)
	return err
}
