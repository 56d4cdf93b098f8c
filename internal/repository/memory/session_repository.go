package memory

import (
	"context"
	"maps"
	"sort"
	"sync"

	"github.com/google/uuid"

	"tiergate/internal/domain/session"
	"tiergate/pkg/errors"
)

type sessionKey struct {
	app, user, session string
}

type userKey struct {
	app, user string
}

// SessionRepository implements session.Repository in process memory.
// Values are copied on the way in and out.
type SessionRepository struct {
	mu        sync.RWMutex
	sessions  map[sessionKey]*session.Session
	byRowID   map[uuid.UUID]sessionKey
	events    map[uuid.UUID][]session.Event
	appState  map[string]map[string]interface{}
	userState map[userKey]map[string]interface{}
}

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{
		sessions:  make(map[sessionKey]*session.Session),
		byRowID:   make(map[uuid.UUID]sessionKey),
		events:    make(map[uuid.UUID][]session.Event),
		appState:  make(map[string]map[string]interface{}),
		userState: make(map[userKey]map[string]interface{}),
	}
}

func (r *SessionRepository) Create(_ context.Context, sess *session.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := sessionKey{sess.AppName, sess.UserID, sess.SessionID}
	if _, ok := r.sessions[key]; ok {
		return errors.Wrapf(errors.ErrAlreadyExists, "session %s", sess.SessionID)
	}

	stored := *sess
	stored.State = maps.Clone(sess.State)
	if stored.State == nil {
		stored.State = make(map[string]interface{})
	}
	stored.Events = nil
	r.sessions[key] = &stored
	r.byRowID[sess.ID] = key
	return nil
}

func (r *SessionRepository) Get(ctx context.Context, appName, userID, sessionID string, opts *session.GetOptions) (*session.Session, error) {
	r.mu.RLock()
	stored, ok := r.sessions[sessionKey{appName, userID, sessionID}]
	if !ok {
		r.mu.RUnlock()
		return nil, errors.Wrap(errors.ErrNotFound, "session not found")
	}
	out := cloneSession(stored)
	r.mu.RUnlock()

	if opts == nil {
		opts = &session.GetOptions{}
	}
	events, err := r.GetEvents(ctx, out.ID, &session.GetEventsOptions{Limit: opts.NumRecentEvents, After: opts.After})
	if err != nil {
		return nil, err
	}
	out.Events = make([]session.Event, len(events))
	for i, e := range events {
		out.Events[i] = *e
	}
	return out, nil
}

func (r *SessionRepository) List(_ context.Context, appName, userID string) ([]*session.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*session.Session
	for key, stored := range r.sessions {
		if key.app != appName || (userID != "" && key.user != userID) {
			continue
		}
		sess := cloneSession(stored)
		sess.Events = []session.Event{}
		out = append(out, sess)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r *SessionRepository) Delete(_ context.Context, appName, userID, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := sessionKey{appName, userID, sessionID}
	stored, ok := r.sessions[key]
	if !ok {
		return errors.Wrap(errors.ErrNotFound, "session not found")
	}
	delete(r.sessions, key)
	delete(r.byRowID, stored.ID)
	delete(r.events, stored.ID)
	return nil
}

func (r *SessionRepository) UpdateState(_ context.Context, appName, userID, sessionID string, state map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.sessions[sessionKey{appName, userID, sessionID}]
	if !ok {
		return errors.Wrap(errors.ErrNotFound, "session not found")
	}
	stored.State = maps.Clone(state)
	return nil
}

func (r *SessionRepository) AppendEvent(_ context.Context, sessionRowID uuid.UUID, event *session.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key, ok := r.byRowID[sessionRowID]
	if !ok {
		return errors.Wrap(errors.ErrNotFound, "session not found")
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.SessionRowID = sessionRowID

	r.events[sessionRowID] = append(r.events[sessionRowID], *event)
	if event.Timestamp.After(r.sessions[key].UpdatedAt) {
		r.sessions[key].UpdatedAt = event.Timestamp
	}
	return nil
}

func (r *SessionRepository) GetEvents(_ context.Context, sessionRowID uuid.UUID, opts *session.GetEventsOptions) ([]*session.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if opts == nil {
		opts = &session.GetEventsOptions{}
	}

	var out []*session.Event
	for _, e := range r.events[sessionRowID] {
		if !opts.After.IsZero() && e.Timestamp.Before(opts.After) {
			continue
		}
		event := e
		out = append(out, &event)
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[len(out)-opts.Limit:]
	}
	return out, nil
}

func (r *SessionRepository) GetAppState(_ context.Context, appName string) (*session.AppState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.appState[appName]
	if !ok {
		return nil, errors.Wrap(errors.ErrNotFound, "app state not found")
	}
	return &session.AppState{AppName: appName, State: maps.Clone(state)}, nil
}

func (r *SessionRepository) SetAppState(_ context.Context, appName string, state map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appState[appName] = maps.Clone(state)
	return nil
}

func (r *SessionRepository) GetUserState(_ context.Context, appName, userID string) (*session.UserState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.userState[userKey{appName, userID}]
	if !ok {
		return nil, errors.Wrap(errors.ErrNotFound, "user state not found")
	}
	return &session.UserState{AppName: appName, UserID: userID, State: maps.Clone(state)}, nil
}

func (r *SessionRepository) SetUserState(_ context.Context, appName, userID string, state map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.userState[userKey{appName, userID}] = maps.Clone(state)
	return nil
}

func cloneSession(s *session.Session) *session.Session {
	out := *s
	out.State = maps.Clone(s.State)
	return &out
}

var _ session.Repository = (*SessionRepository)(nil)
