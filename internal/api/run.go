package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"google.golang.org/genai"

	"tiergate/internal/agents"
	"tiergate/internal/metrics"
	"tiergate/pkg/errors"
)

const liveWriteTimeout = 10 * time.Second

// runRequest accepts snake_case and camelCase field names
type runRequest struct {
	AppName      string         `json:"app_name"`
	AppNameAlt   string         `json:"appName"`
	UserID       string         `json:"user_id"`
	UserIDAlt    string         `json:"userId"`
	SessionID    string         `json:"session_id"`
	SessionIDAlt string         `json:"sessionId"`
	NewMessage   *genai.Content `json:"new_message"`
	NewMsgAlt    *genai.Content `json:"newMessage"`
	Streaming    bool           `json:"streaming"`
}

func (r runRequest) turn() agents.TurnRequest {
	msg := r.NewMessage
	if msg == nil {
		msg = r.NewMsgAlt
	}
	if msg != nil && msg.Role == "" {
		msg.Role = string(genai.RoleUser)
	}
	return agents.TurnRequest{
		AppName:   firstNonEmpty(r.AppName, r.AppNameAlt),
		UserID:    firstNonEmpty(r.UserID, r.UserIDAlt),
		SessionID: firstNonEmpty(r.SessionID, r.SessionIDAlt),
		Message:   msg,
		Streaming: r.Streaming,
	}
}

func (s *Server) decodeRun(r *http.Request) (agents.TurnRequest, error) {
	var req runRequest
	ok, err := decodeBody(r, &req)
	if err != nil {
		return agents.TurnRequest{}, err
	}
	if !ok {
		return agents.TurnRequest{}, errors.Wrap(errors.ErrInvalidInput, "request body is required")
	}
	turn := req.turn()
	if err := s.authorizeUser(r, turn.UserID); err != nil {
		return agents.TurnRequest{}, err
	}
	return turn, nil
}

// handleRun answers with every event of the turn as one JSON array
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeRun(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	req.Streaming = false

	events, err := s.deps.Turns.Collect(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newEventViews(events))
}

// handleRunSSE streams events as "data: <json>" lines. Errors before the
// first event get a normal error response; later ones an error data line.
func (s *Server) handleRunSSE(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeRun(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	flusher, _ := w.(http.Flusher)
	started := false

	for event, err := range s.deps.Turns.Run(r.Context(), req) {
		if err != nil {
			if !started {
				s.writeError(w, r, err)
				return
			}
			s.log.Warnw("Streaming turn failed", "session", req.SessionID, "error", err)
			writeSSE(w, map[string]string{"error": err.Error()})
			break
		}

		if !started {
			h := w.Header()
			h.Set("Content-Type", "text/event-stream")
			h.Set("Cache-Control", "no-cache")
			h.Set("Connection", "keep-alive")
			w.WriteHeader(http.StatusOK)
			started = true
		}
		writeSSE(w, newEventView(event))
		if flusher != nil {
			flusher.Flush()
		}
	}

	if !started {
		// a turn without events
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
	}
	if flusher != nil {
		flusher.Flush()
	}
}

func writeSSE(w http.ResponseWriter, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		data = []byte(`{"error":"failed to encode event"}`)
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
}

// handleRunLive upgrades to a websocket. Each text frame is a user message,
// either plain text or a JSON content; each reply frame is one event.
func (s *Server) handleRunLive(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	base := agents.TurnRequest{
		AppName:   q.Get("app_name"),
		UserID:    q.Get("user_id"),
		SessionID: q.Get("session_id"),
		Streaming: true,
	}
	if base.AppName == "" || base.UserID == "" || base.SessionID == "" {
		s.writeError(w, r, errors.Wrap(errors.ErrInvalidInput, "app_name, user_id and session_id are required"))
		return
	}
	if err := s.knownApp(base.AppName); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.authorizeUser(r, base.UserID); err != nil {
		s.writeError(w, r, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnw("Websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	metrics.WebSocketConnections.Inc()
	defer metrics.WebSocketConnections.Dec()

	s.log.Infow("Live session connected", "app", base.AppName, "user", base.UserID, "session", base.SessionID)

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warnw("Live session read failed", "session", base.SessionID, "error", err)
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}

		req := base
		req.Message = liveMessage(data)
		if err := s.streamLive(r.Context(), conn, req); err != nil {
			s.log.Warnw("Live session write failed", "session", base.SessionID, "error", err)
			return
		}
	}
}

func (s *Server) streamLive(ctx context.Context, conn *websocket.Conn, req agents.TurnRequest) error {
	for event, err := range s.deps.Turns.Run(ctx, req) {
		_ = conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
		if err != nil {
			return conn.WriteJSON(map[string]string{"error": err.Error()})
		}
		if werr := conn.WriteJSON(newEventView(event)); werr != nil {
			return werr
		}
	}
	return nil
}

// liveMessage reads a frame as JSON content when it looks like one
func liveMessage(data []byte) *genai.Content {
	text := strings.TrimSpace(string(data))
	if strings.HasPrefix(text, "{") {
		var content genai.Content
		if err := json.Unmarshal(data, &content); err == nil && len(content.Parts) > 0 {
			if content.Role == "" {
				content.Role = string(genai.RoleUser)
			}
			return &content
		}
	}
	return genai.NewContentFromText(text, genai.RoleUser)
}
