package session

import (
	"context"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"

	"tiergate/pkg/errors"
	"tiergate/pkg/logger"
)

// Service provides business logic for session management
type Service struct {
	repo Repository
	log  *logger.Logger
	now  func() time.Time
}

// NewService creates a new session service
func NewService(repo Repository, log *logger.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With("component", "session_service"),
		now:  time.Now,
	}
}

// CreateSession creates a new session with initial state.
// Prefixed keys of initialState go to app and user state, temp keys are dropped.
func (s *Service) CreateSession(ctx context.Context, appName, userID, sessionID string, initialState map[string]interface{}) (*Session, error) {
	if appName == "" || userID == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "app_name and user_id are required")
	}

	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	appDelta, userDelta, sessionState := splitState(initialState)

	if len(appDelta) > 0 {
		if err := s.updateAppState(ctx, appName, appDelta); err != nil {
			return nil, errors.Wrap(err, "failed to update app state")
		}
	}
	if len(userDelta) > 0 {
		if err := s.updateUserState(ctx, appName, userID, userDelta); err != nil {
			return nil, errors.Wrap(err, "failed to update user state")
		}
	}

	now := s.now().UTC()
	session := &Session{
		ID:        uuid.New(),
		AppName:   appName,
		UserID:    userID,
		SessionID: sessionID,
		State:     sessionState,
		Events:    []Event{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, session); err != nil {
		return nil, errors.Wrap(err, "failed to create session")
	}

	if err := s.mergeStates(ctx, session); err != nil {
		return nil, errors.Wrap(err, "failed to merge states")
	}

	s.log.Infow("Created session", "app", appName, "user", userID, "session", sessionID)
	return session, nil
}

// GetSession retrieves a session with its events
func (s *Service) GetSession(ctx context.Context, appName, userID, sessionID string, opts *GetOptions) (*Session, error) {
	if appName == "" || userID == "" || sessionID == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "app_name, user_id, and session_id are required")
	}

	session, err := s.repo.Get(ctx, appName, userID, sessionID, opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get session")
	}

	if err := s.mergeStates(ctx, session); err != nil {
		return nil, errors.Wrap(err, "failed to merge states")
	}

	return session, nil
}

// ListSessions lists sessions of an app, optionally for one user
func (s *Service) ListSessions(ctx context.Context, appName, userID string) ([]*Session, error) {
	if appName == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "app_name is required")
	}

	sessions, err := s.repo.List(ctx, appName, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list sessions")
	}

	for _, session := range sessions {
		if err := s.mergeStates(ctx, session); err != nil {
			s.log.Warnw("Failed to merge states", "session", session.SessionID, "error", err)
		}
	}

	return sessions, nil
}

// DeleteSession deletes a session
func (s *Service) DeleteSession(ctx context.Context, appName, userID, sessionID string) error {
	if appName == "" || userID == "" || sessionID == "" {
		return errors.Wrap(errors.ErrInvalidInput, "app_name, user_id, and session_id are required")
	}

	if err := s.repo.Delete(ctx, appName, userID, sessionID); err != nil {
		return errors.Wrap(err, "failed to delete session")
	}

	s.log.Infow("Deleted session", "app", appName, "user", userID, "session", sessionID)
	return nil
}

// AppendEvent persists an event and applies its state delta to the store
// and to session. Partial events are not persisted.
func (s *Service) AppendEvent(ctx context.Context, session *Session, event *Event) error {
	if session == nil || event == nil {
		return errors.Wrap(errors.ErrInvalidInput, "session and event are required")
	}

	if event.Partial {
		return nil
	}

	if len(event.Actions.StateDelta) > 0 {
		appDelta, userDelta, sessionDelta := splitState(event.Actions.StateDelta)

		if len(appDelta) > 0 {
			if err := s.updateAppState(ctx, session.AppName, appDelta); err != nil {
				return errors.Wrap(err, "failed to update app state")
			}
		}
		if len(userDelta) > 0 {
			if err := s.updateUserState(ctx, session.AppName, session.UserID, userDelta); err != nil {
				return errors.Wrap(err, "failed to update user state")
			}
		}

		if session.State == nil {
			session.State = make(map[string]interface{})
		}
		for k, v := range event.Actions.StateDelta {
			if !strings.HasPrefix(k, KeyPrefixTemp) {
				session.State[k] = v
			}
		}

		if len(sessionDelta) > 0 {
			if err := s.repo.UpdateState(ctx, session.AppName, session.UserID, session.SessionID, sessionOnly(session.State)); err != nil {
				return errors.Wrap(err, "failed to update session state")
			}
		}
	}

	if err := s.repo.AppendEvent(ctx, session.ID, event); err != nil {
		return errors.Wrap(err, "failed to append event")
	}

	session.Events = append(session.Events, *event)
	session.UpdatedAt = s.now().UTC()

	return nil
}

// splitState splits a state map into app, user and session parts.
// Prefixes are stripped from app and user keys, temp keys are dropped.
func splitState(state map[string]interface{}) (app, user, session map[string]interface{}) {
	app = make(map[string]interface{})
	user = make(map[string]interface{})
	session = make(map[string]interface{})

	for key, value := range state {
		switch {
		case strings.HasPrefix(key, KeyPrefixApp):
			app[strings.TrimPrefix(key, KeyPrefixApp)] = value
		case strings.HasPrefix(key, KeyPrefixUser):
			user[strings.TrimPrefix(key, KeyPrefixUser)] = value
		case strings.HasPrefix(key, KeyPrefixTemp):
		default:
			session[key] = value
		}
	}

	return app, user, session
}

// sessionOnly drops merged app and user keys before a state write
func sessionOnly(state map[string]interface{}) map[string]interface{} {
	_, _, session := splitState(state)
	return session
}

// mergeStates adds app and user state to session state with their prefixes
func (s *Service) mergeStates(ctx context.Context, session *Session) error {
	appState, err := s.repo.GetAppState(ctx, session.AppName)
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		return errors.Wrap(err, "failed to get app state")
	}

	userState, err := s.repo.GetUserState(ctx, session.AppName, session.UserID)
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		return errors.Wrap(err, "failed to get user state")
	}

	merged := make(map[string]interface{}, len(session.State))
	maps.Copy(merged, session.State)

	if appState != nil {
		for k, v := range appState.State {
			merged[KeyPrefixApp+k] = v
		}
	}
	if userState != nil {
		for k, v := range userState.State {
			merged[KeyPrefixUser+k] = v
		}
	}

	session.State = merged
	return nil
}

func (s *Service) updateAppState(ctx context.Context, appName string, delta map[string]interface{}) error {
	appState, err := s.repo.GetAppState(ctx, appName)
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		return err
	}

	state := make(map[string]interface{})
	if appState != nil {
		maps.Copy(state, appState.State)
	}
	maps.Copy(state, delta)

	return s.repo.SetAppState(ctx, appName, state)
}

func (s *Service) updateUserState(ctx context.Context, appName, userID string, delta map[string]interface{}) error {
	userState, err := s.repo.GetUserState(ctx, appName, userID)
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		return err
	}

	state := make(map[string]interface{})
	if userState != nil {
		maps.Copy(state, userState.State)
	}
	maps.Copy(state, delta)

	return s.repo.SetUserState(ctx, appName, userID, state)
}
