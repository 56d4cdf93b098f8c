package agents

import (
	"context"
	"iter"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/runner"
	"google.golang.org/adk/session"
	"google.golang.org/genai"

	"tiergate/internal/agents/state"
	"tiergate/internal/domain/plan"
	"tiergate/internal/metrics"
	"tiergate/internal/tools"
	"tiergate/internal/tools/shared"
	"tiergate/pkg/errors"
	"tiergate/pkg/logger"
)

// InitialStateSource provides the state a new session of a user starts with
type InitialStateSource interface {
	InitialState(ctx context.Context, userID string) (map[string]interface{}, error)
}

// TurnRequest is one user message sent to an agent
type TurnRequest struct {
	AppName   string
	UserID    string
	SessionID string
	Message   *genai.Content
	// Streaming forwards partial events as they arrive
	Streaming bool
}

// TurnRunnerConfig wires a TurnRunner
type TurnRunnerConfig struct {
	Agents      *Registry
	Sessions    session.Service
	Profiles    InitialStateSource        // nil starts new sessions empty
	Locker      SessionLocker             // nil means a LocalLocker
	Events      shared.PlanEventPublisher // nil disables admin plan events
	TurnTimeout time.Duration
	Log         *logger.Logger
}

// TurnRunner drives agent turns. Turns of one session never overlap.
type TurnRunner struct {
	runners  map[string]*runner.Runner
	agents   *Registry
	sessions session.Service
	profiles InitialStateSource
	locker   SessionLocker
	events   shared.PlanEventPublisher
	timeout  time.Duration
	log      *logger.Logger
}

// NewTurnRunner builds one ADK runner per registered agent
func NewTurnRunner(cfg TurnRunnerConfig) (*TurnRunner, error) {
	if cfg.Agents == nil || cfg.Sessions == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "agents and sessions are required")
	}
	if cfg.Locker == nil {
		cfg.Locker = NewLocalLocker()
	}
	if cfg.Log == nil {
		cfg.Log = logger.Get()
	}

	runners := make(map[string]*runner.Runner)
	for _, name := range cfg.Agents.List() {
		ag, _ := cfg.Agents.Get(name)
		r, err := runner.New(runner.Config{
			AppName:        name,
			Agent:          ag,
			SessionService: cfg.Sessions,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create runner for %s", name)
		}
		runners[name] = r
	}

	return &TurnRunner{
		runners:  runners,
		agents:   cfg.Agents,
		sessions: cfg.Sessions,
		profiles: cfg.Profiles,
		locker:   cfg.Locker,
		events:   cfg.Events,
		timeout:  cfg.TurnTimeout,
		log:      cfg.Log.With("component", "turn_runner"),
	}, nil
}

// Apps lists the app names turns can be sent to
func (r *TurnRunner) Apps() []string {
	return r.agents.List()
}

// Sessions returns the session service turns run against
func (r *TurnRunner) Sessions() session.Service {
	return r.sessions
}

// Run executes one turn and yields its events. The session is created from
// the user's profile when it does not exist yet. Partial events are only
// yielded for streaming requests.
func (r *TurnRunner) Run(ctx context.Context, req TurnRequest) iter.Seq2[*session.Event, error] {
	return func(yield func(*session.Event, error) bool) {
		started := time.Now()
		status := "success"
		defer func() {
			metrics.RecordAgentTurn(req.AppName, status, time.Since(started))
		}()

		fail := func(err error) {
			status = "error"
			yield(nil, err)
		}

		rn, err := r.runnerFor(req)
		if err != nil {
			fail(err)
			return
		}

		release, err := r.locker.Lock(ctx, lockKey(req.AppName, req.UserID, req.SessionID))
		if err != nil {
			fail(err)
			return
		}
		defer release()

		if _, err := r.EnsureSession(ctx, req.AppName, req.UserID, req.SessionID, nil); err != nil {
			fail(err)
			return
		}

		runCtx := ctx
		if r.timeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(ctx, r.timeout)
			defer cancel()
		}

		mode := agent.StreamingModeNone
		if req.Streaming {
			mode = agent.StreamingModeSSE
		}

		r.log.Debugw("Running turn", "app", req.AppName, "user", req.UserID, "session", req.SessionID, "streaming", req.Streaming)

		for event, err := range rn.Run(runCtx, req.UserID, req.SessionID, req.Message, agent.RunConfig{StreamingMode: mode}) {
			if err != nil {
				r.log.Errorw("Agent turn failed", "app", req.AppName, "session", req.SessionID, "error", err)
				fail(err)
				return
			}
			if event == nil || (event.Partial && !req.Streaming) {
				continue
			}
			if !yield(event, nil) {
				status = "cancelled"
				return
			}
		}
	}
}

// Collect runs a turn and returns all yielded events
func (r *TurnRunner) Collect(ctx context.Context, req TurnRequest) ([]*session.Event, error) {
	var events []*session.Event
	for event, err := range r.Run(ctx, req) {
		if err != nil {
			return events, err
		}
		events = append(events, event)
	}
	return events, nil
}

// EnsureSession returns the session, creating it when missing. A nil
// initial state is replaced by the user's profile state.
func (r *TurnRunner) EnsureSession(ctx context.Context, appName, userID, sessionID string, initial map[string]interface{}) (session.Session, error) {
	got, err := r.sessions.Get(ctx, &session.GetRequest{AppName: appName, UserID: userID, SessionID: sessionID})
	if err == nil {
		return got.Session, nil
	}
	if !errors.Is(err, errors.ErrNotFound) {
		return nil, errors.Wrap(err, "load session")
	}

	return r.CreateSession(ctx, appName, userID, sessionID, initial)
}

// CreateSession creates a session. A nil initial state is replaced by the
// user's profile state; an unknown user starts empty, which is Basic.
func (r *TurnRunner) CreateSession(ctx context.Context, appName, userID, sessionID string, initial map[string]interface{}) (session.Session, error) {
	if _, ok := r.agents.Get(appName); !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "app %s", appName)
	}

	if initial == nil {
		initial = r.profileState(ctx, userID)
	}

	created, err := r.sessions.Create(ctx, &session.CreateRequest{
		AppName:   appName,
		UserID:    userID,
		SessionID: sessionID,
		State:     initial,
	})
	if err != nil {
		return nil, err
	}
	return created.Session, nil
}

// CreateUserSession creates a session from caller supplied state. The plan
// keys of initial are replaced by the user's profile values, so callers can
// add context but never choose their own tier. A nil initial behaves like
// CreateSession.
func (r *TurnRunner) CreateUserSession(ctx context.Context, appName, userID, sessionID string, initial map[string]interface{}) (session.Session, error) {
	if initial == nil {
		return r.CreateSession(ctx, appName, userID, sessionID, nil)
	}

	clean := make(map[string]interface{}, len(initial))
	for k, v := range initial {
		if isGatingKey(k) {
			r.log.Warnw("Ignoring caller supplied plan state", "user", userID, "session", sessionID, "key", k, "value", v)
			continue
		}
		clean[k] = v
	}
	for k, v := range r.profileState(ctx, userID) {
		if isGatingKey(k) {
			clean[k] = v
		}
	}

	return r.CreateSession(ctx, appName, userID, sessionID, clean)
}

func isGatingKey(key string) bool {
	return key == plan.StateKey || key == plan.StateKeyName
}

// profileState is the user's starting state; empty (Basic) when unknown
func (r *TurnRunner) profileState(ctx context.Context, userID string) map[string]interface{} {
	if r.profiles == nil {
		return nil
	}
	st, err := r.profiles.InitialState(ctx, userID)
	if err != nil {
		r.log.Warnw("Failed to load profile state, starting empty", "user", userID, "error", err)
		return nil
	}
	return st
}

// DeleteSession removes a session once no turn of it is running
func (r *TurnRunner) DeleteSession(ctx context.Context, appName, userID, sessionID string) error {
	release, err := r.locker.Lock(ctx, lockKey(appName, userID, sessionID))
	if err != nil {
		return err
	}
	defer release()

	return r.sessions.Delete(ctx, &session.DeleteRequest{AppName: appName, UserID: userID, SessionID: sessionID})
}

// SetPlan writes tier into a session's state as an administrative event.
// This is the only way into Team. It waits for any running turn of the
// session to finish first.
func (r *TurnRunner) SetPlan(ctx context.Context, appName, userID, sessionID string, tier plan.Tier) (session.Session, error) {
	if !tier.Valid() {
		return nil, errors.Wrapf(errors.ErrInvalidPlanValue, "%d", int(tier))
	}

	release, err := r.locker.Lock(ctx, lockKey(appName, userID, sessionID))
	if err != nil {
		return nil, err
	}
	defer release()

	got, err := r.sessions.Get(ctx, &session.GetRequest{AppName: appName, UserID: userID, SessionID: sessionID})
	if err != nil {
		return nil, err
	}
	sess := got.Session
	from := state.GetPlan(sess.State())

	event := &session.Event{
		ID:           uuid.NewString(),
		InvocationID: "admin-" + uuid.NewString(),
		Author:       "admin",
		Timestamp:    time.Now(),
		Actions:      session.EventActions{StateDelta: state.PlanDelta(tier)},
	}
	if err := r.sessions.AppendEvent(ctx, sess, event); err != nil {
		return nil, errors.Wrap(err, "append plan event")
	}

	r.log.Infow("Plan set by admin", "app", appName, "user", userID, "session", sessionID, "from", from.String(), "to", tier.String())
	metrics.RecordPlanChange(from.String(), tier.String(), "admin")

	if r.events != nil && from != tier {
		err := r.events.PublishPlanChanged(ctx, shared.PlanChangedEvent{
			AppName:    appName,
			UserID:     userID,
			SessionID:  sessionID,
			From:       from,
			To:         tier,
			PlanName:   tier.Label(),
			Source:     "admin",
			OccurredAt: time.Now().UTC(),
		})
		if err != nil {
			r.log.Warnw("Failed to publish plan change", "session", sessionID, "error", err)
		}
	}

	return sess, nil
}

// ResolvedTools lists the capabilities a session currently sees
func (r *TurnRunner) ResolvedTools(ctx context.Context, resolver *tools.Resolver, appName, userID, sessionID string) ([]tools.Capability, plan.Tier, error) {
	got, err := r.sessions.Get(ctx, &session.GetRequest{AppName: appName, UserID: userID, SessionID: sessionID})
	if err != nil {
		return nil, plan.Default, err
	}
	st := got.Session.State()
	return resolver.Resolve(st), resolver.TierOf(st), nil
}

func (r *TurnRunner) runnerFor(req TurnRequest) (*runner.Runner, error) {
	if req.AppName == "" || req.UserID == "" || req.SessionID == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "app_name, user_id and session_id are required")
	}
	if req.Message == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "new_message is required")
	}
	rn, ok := r.runners[req.AppName]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "app %s", req.AppName)
	}
	return rn, nil
}

func lockKey(appName, userID, sessionID string) string {
	return appName + "/" + userID + "/" + sessionID
}

// EventText joins the text parts of an event, skipping thoughts
func EventText(event *session.Event) string {
	if event == nil || event.Content == nil {
		return ""
	}
	var parts []string
	for _, p := range event.Content.Parts {
		if p != nil && p.Text != "" && !p.Thought {
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, "")
}

// FinalText returns the text of the last non-partial agent event
func FinalText(events []*session.Event) string {
	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		if ev.Partial || ev.Author == "user" {
			continue
		}
		if text := EventText(ev); text != "" {
			return text
		}
	}
	return ""
}
