package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"google.golang.org/adk/session"

	"tiergate/internal/domain/plan"
	"tiergate/internal/tools"
	"tiergate/pkg/errors"
)

// createSessionRequest is the optional body of POST .../sessions
type createSessionRequest struct {
	State        map[string]any `json:"state"`
	SessionID    string         `json:"session_id"`
	SessionIDAlt string         `json:"sessionId"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	app, user := r.PathValue("app"), r.PathValue("user")

	var req createSessionRequest
	if _, err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	id := firstNonEmpty(req.SessionID, req.SessionIDAlt)
	if id == "" {
		id = s.generatedSessionID()
	}

	create := s.sessionCreator(r)
	created, err := create(r.Context(), app, user, id, req.State)
	if errors.Is(err, errors.ErrAlreadyExists) && req.SessionID == "" && req.SessionIDAlt == "" {
		// two creations within the same second
		created, err = create(r.Context(), app, user, id+"_"+uuid.NewString()[:8], req.State)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(created))
}

// handleCreateSessionWithID takes the initial state as the whole body.
// Without a body the session starts from the user's profile.
func (s *Server) handleCreateSessionWithID(w http.ResponseWriter, r *http.Request) {
	var state map[string]any
	if _, err := decodeBody(r, &state); err != nil {
		s.writeError(w, r, err)
		return
	}

	create := s.sessionCreator(r)
	created, err := create(r.Context(), r.PathValue("app"), r.PathValue("user"), r.PathValue("session"), state)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(created))
}

type createFunc func(ctx context.Context, appName, userID, sessionID string, initial map[string]interface{}) (session.Session, error)

// sessionCreator keeps body supplied plan values only for admin callers.
// Everyone else starts at the profile's tier.
func (s *Server) sessionCreator(r *http.Request) createFunc {
	if s.isAdmin(r) {
		return s.deps.Turns.CreateSession
	}
	return s.deps.Turns.CreateUserSession
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	got, err := s.deps.Turns.Sessions().Get(r.Context(), &session.GetRequest{
		AppName:   r.PathValue("app"),
		UserID:    r.PathValue("user"),
		SessionID: r.PathValue("session"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(got.Session))
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Turns.Sessions().List(r.Context(), &session.ListRequest{
		AppName: r.PathValue("app"),
		UserID:  r.PathValue("user"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]SessionView, 0, len(list.Sessions))
	for _, sess := range list.Sessions {
		out = append(out, newSessionView(sess))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	err := s.deps.Turns.DeleteSession(r.Context(), r.PathValue("app"), r.PathValue("user"), r.PathValue("session"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// sessionToolsResponse lists what a session can call right now
type sessionToolsResponse struct {
	Plan     plan.Tier          `json:"plan"`
	PlanName string             `json:"plan_name"`
	Tools    []tools.Descriptor `json:"tools"`
}

func (s *Server) handleSessionTools(w http.ResponseWriter, r *http.Request) {
	caps, tier, err := s.deps.Turns.ResolvedTools(r.Context(), s.deps.Resolver, r.PathValue("app"), r.PathValue("user"), r.PathValue("session"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionToolsResponse{Plan: tier, PlanName: tier.Label(), Tools: tools.Describe(caps)})
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if err := s.knownApp(r.PathValue("app")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tools.Describe(s.deps.Resolver.Registry().All()))
}

// handleSetPlan injects a plan into session state. Any defined tier is
// accepted, including Team.
func (s *Server) handleSetPlan(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Plan any `json:"plan"`
	}
	ok, err := decodeBody(r, &body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	tier, valid := plan.Parse(body.Plan)
	if !ok || !valid {
		s.writeError(w, r, errors.Wrapf(errors.ErrInvalidPlanValue, "plan must be one of 1, 2, 3, got %v", body.Plan))
		return
	}

	sess, err := s.deps.Turns.SetPlan(r.Context(), r.PathValue("app"), r.PathValue("user"), r.PathValue("session"), tier)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(sess))
}

func (s *Server) generatedSessionID() string {
	return "s_" + strconv.FormatInt(s.now().Unix(), 10)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func tokenEqual(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
