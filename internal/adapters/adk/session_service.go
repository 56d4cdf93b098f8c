package adk

import (
	"context"
	"encoding/json"
	"iter"
	"maps"
	"sync"
	"time"

	"google.golang.org/adk/session"
	"google.golang.org/genai"

	domainsession "tiergate/internal/domain/session"
	"tiergate/pkg/errors"
	"tiergate/pkg/logger"
)

// SessionService adapts the domain session service to ADK's session.Service.
// The same adapter serves the memory and Postgres backends; only the
// repository behind the domain service differs.
type SessionService struct {
	domainService *domainsession.Service
	log           *logger.Logger
}

// NewSessionService creates a new ADK session service adapter
func NewSessionService(domainService *domainsession.Service, log *logger.Logger) *SessionService {
	return &SessionService{
		domainService: domainService,
		log:           log.With("component", "adk_session_adapter"),
	}
}

// Create creates a new session
func (s *SessionService) Create(ctx context.Context, req *session.CreateRequest) (*session.CreateResponse, error) {
	if req == nil || req.AppName == "" || req.UserID == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "app_name and user_id are required")
	}

	domainSess, err := s.domainService.CreateSession(ctx, req.AppName, req.UserID, req.SessionID, req.State)
	if err != nil {
		return nil, err
	}

	return &session.CreateResponse{Session: newADKSession(domainSess)}, nil
}

// Get retrieves a session. A missing session is ErrNotFound.
func (s *SessionService) Get(ctx context.Context, req *session.GetRequest) (*session.GetResponse, error) {
	if req == nil || req.AppName == "" || req.UserID == "" || req.SessionID == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "app_name, user_id, and session_id are required")
	}

	domainSess, err := s.domainService.GetSession(ctx, req.AppName, req.UserID, req.SessionID, &domainsession.GetOptions{
		NumRecentEvents: req.NumRecentEvents,
		After:           req.After,
	})
	if err != nil {
		return nil, err
	}

	return &session.GetResponse{Session: newADKSession(domainSess)}, nil
}

// List lists sessions
func (s *SessionService) List(ctx context.Context, req *session.ListRequest) (*session.ListResponse, error) {
	if req == nil || req.AppName == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "app_name is required")
	}

	domainSessions, err := s.domainService.ListSessions(ctx, req.AppName, req.UserID)
	if err != nil {
		return nil, err
	}

	sessions := make([]session.Session, len(domainSessions))
	for i, domainSess := range domainSessions {
		sessions[i] = newADKSession(domainSess)
	}

	return &session.ListResponse{Sessions: sessions}, nil
}

// Delete deletes a session
func (s *SessionService) Delete(ctx context.Context, req *session.DeleteRequest) error {
	if req == nil || req.AppName == "" || req.UserID == "" || req.SessionID == "" {
		return errors.Wrap(errors.ErrInvalidInput, "app_name, user_id, and session_id are required")
	}

	return s.domainService.DeleteSession(ctx, req.AppName, req.UserID, req.SessionID)
}

// AppendEvent persists event and applies it to sess. The runtime keeps using
// the same session object for the rest of the invocation, so the event and its
// state delta must be visible on it, not only in the store.
func (s *SessionService) AppendEvent(ctx context.Context, sess session.Session, event *session.Event) error {
	if sess == nil || event == nil {
		return errors.Wrap(errors.ErrInvalidInput, "session and event are required")
	}
	if event.Partial {
		return nil
	}

	own, ok := sess.(*adkSession)
	if !ok {
		// a session built elsewhere; reload ours to get the row id
		resp, err := s.Get(ctx, &session.GetRequest{AppName: sess.AppName(), UserID: sess.UserID(), SessionID: sess.ID()})
		if err != nil {
			return errors.Wrap(err, "failed to load session")
		}
		own = resp.Session.(*adkSession)
	}

	domainEvent, err := toDomainEvent(event)
	if err != nil {
		return errors.Wrap(err, "failed to convert event")
	}

	own.mu.Lock()
	defer own.mu.Unlock()

	if err := s.domainService.AppendEvent(ctx, own.domain, domainEvent); err != nil {
		return err
	}

	// the domain service already applied the delta to own.domain.State
	own.events = append(own.events, event)

	s.log.Debugw("Appended event",
		"session", own.domain.SessionID,
		"author", event.Author,
		"delta_keys", len(event.Actions.StateDelta),
	)
	return nil
}

func toDomainEvent(event *session.Event) (*domainsession.Event, error) {
	var content json.RawMessage
	if event.Content != nil {
		data, err := json.Marshal(event.Content)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal content")
		}
		content = data
	}

	var usage *domainsession.UsageMetadata
	if event.UsageMetadata != nil {
		usage = &domainsession.UsageMetadata{
			PromptTokenCount:     event.UsageMetadata.PromptTokenCount,
			CandidatesTokenCount: event.UsageMetadata.CandidatesTokenCount,
			TotalTokenCount:      event.UsageMetadata.TotalTokenCount,
		}
	}

	timestamp := event.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	return &domainsession.Event{
		EventID:      event.ID,
		InvocationID: event.InvocationID,
		Author:       event.Author,
		Branch:       event.Branch,
		Content:      content,
		Timestamp:    timestamp.UTC(),
		TurnComplete: event.TurnComplete,
		ErrorCode:    event.ErrorCode,
		ErrorMessage: event.ErrorMessage,
		Actions: domainsession.EventActions{
			TransferToAgent:   event.Actions.TransferToAgent,
			Escalate:          event.Actions.Escalate,
			SkipSummarization: event.Actions.SkipSummarization,
			StateDelta:        event.Actions.StateDelta,
		},
		UsageMetadata: usage,
	}, nil
}

func fromDomainEvent(e *domainsession.Event) *session.Event {
	event := &session.Event{
		ID:           e.EventID,
		InvocationID: e.InvocationID,
		Author:       e.Author,
		Branch:       e.Branch,
		Timestamp:    e.Timestamp,
		Actions: session.EventActions{
			TransferToAgent:   e.Actions.TransferToAgent,
			Escalate:          e.Actions.Escalate,
			SkipSummarization: e.Actions.SkipSummarization,
			StateDelta:        e.Actions.StateDelta,
		},
	}

	if len(e.Content) > 0 {
		content := &genai.Content{}
		if err := json.Unmarshal(e.Content, content); err == nil {
			event.Content = content
		}
	}
	if e.UsageMetadata != nil {
		event.UsageMetadata = &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     e.UsageMetadata.PromptTokenCount,
			CandidatesTokenCount: e.UsageMetadata.CandidatesTokenCount,
			TotalTokenCount:      e.UsageMetadata.TotalTokenCount,
		}
	}
	event.TurnComplete = e.TurnComplete
	event.ErrorCode = e.ErrorCode
	event.ErrorMessage = e.ErrorMessage

	return event
}

// adkSession is the session.Session handed to the runtime. It owns the
// domain session so appends can reach its row id and state.
type adkSession struct {
	mu     sync.RWMutex
	domain *domainsession.Session
	events []*session.Event
}

func newADKSession(d *domainsession.Session) *adkSession {
	if d.State == nil {
		d.State = make(map[string]interface{})
	}
	events := make([]*session.Event, len(d.Events))
	for i := range d.Events {
		events[i] = fromDomainEvent(&d.Events[i])
	}
	return &adkSession{domain: d, events: events}
}

func (s *adkSession) AppName() string { return s.domain.AppName }
func (s *adkSession) UserID() string  { return s.domain.UserID }
func (s *adkSession) ID() string      { return s.domain.SessionID }

func (s *adkSession) State() session.State {
	return &adkState{sess: s}
}

func (s *adkSession) Events() session.Events {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return adkEvents(append([]*session.Event(nil), s.events...))
}

func (s *adkSession) LastUpdateTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.domain.UpdatedAt
}

// adkState implements session.State over the owning session's map
type adkState struct {
	sess *adkSession
}

func (s *adkState) Get(key string) (interface{}, error) {
	s.sess.mu.RLock()
	defer s.sess.mu.RUnlock()
	if val, ok := s.sess.domain.State[key]; ok {
		return val, nil
	}
	return nil, session.ErrStateKeyNotExist
}

func (s *adkState) Set(key string, val interface{}) error {
	s.sess.mu.Lock()
	defer s.sess.mu.Unlock()
	s.sess.domain.State[key] = val
	return nil
}

func (s *adkState) All() iter.Seq2[string, interface{}] {
	s.sess.mu.RLock()
	snapshot := maps.Clone(s.sess.domain.State)
	s.sess.mu.RUnlock()

	return func(yield func(string, interface{}) bool) {
		for key, val := range snapshot {
			if !yield(key, val) {
				return
			}
		}
	}
}

// adkEvents implements session.Events over a snapshot
type adkEvents []*session.Event

func (e adkEvents) Len() int {
	return len(e)
}

func (e adkEvents) At(i int) *session.Event {
	if i < 0 || i >= len(e) {
		return nil
	}
	return e[i]
}

func (e adkEvents) All() iter.Seq[*session.Event] {
	return func(yield func(*session.Event) bool) {
		for _, event := range e {
			if !yield(event) {
				return
			}
		}
	}
}

var (
	_ session.Service = (*SessionService)(nil)
	_ session.Session = (*adkSession)(nil)
)
