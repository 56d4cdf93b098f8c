package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"tiergate/internal/domain/session"
	"tiergate/pkg/errors"
)

const uniqueViolation = "23505"

// SessionRepository implements session.Repository using PostgreSQL
type SessionRepository struct {
	db DBTX
}

// NewSessionRepository creates a new PostgreSQL session repository
func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

type sessionRow struct {
	ID        uuid.UUID `db:"id"`
	AppName   string    `db:"app_name"`
	UserID    string    `db:"user_id"`
	SessionID string    `db:"session_id"`
	State     []byte    `db:"state"`
	UpdatedAt time.Time `db:"updated_at"`
	CreatedAt time.Time `db:"created_at"`
}

func (r sessionRow) toDomain() (*session.Session, error) {
	sess := &session.Session{
		ID:        r.ID,
		AppName:   r.AppName,
		UserID:    r.UserID,
		SessionID: r.SessionID,
		UpdatedAt: r.UpdatedAt,
		CreatedAt: r.CreatedAt,
		State:     map[string]interface{}{},
		Events:    []session.Event{},
	}
	if len(r.State) > 0 {
		if err := json.Unmarshal(r.State, &sess.State); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal state")
		}
	}
	return sess, nil
}

// Create creates a new session
func (r *SessionRepository) Create(ctx context.Context, sess *session.Session) error {
	stateJSON, err := marshalState(sess.State)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO adk_sessions (id, app_name, user_id, session_id, state, updated_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.db.ExecContext(ctx, query,
		sess.ID,
		sess.AppName,
		sess.UserID,
		sess.SessionID,
		stateJSON,
		sess.UpdatedAt,
		sess.CreatedAt,
	)
	if isUniqueViolation(err) {
		return errors.Wrapf(errors.ErrAlreadyExists, "session %s", sess.SessionID)
	}
	if err != nil {
		return errors.Wrap(err, "failed to create session")
	}

	return nil
}

// Get retrieves a session with optional event filtering
func (r *SessionRepository) Get(ctx context.Context, appName, userID, sessionID string, opts *session.GetOptions) (*session.Session, error) {
	if opts == nil {
		opts = &session.GetOptions{}
	}

	query := `
		SELECT id, app_name, user_id, session_id, state, updated_at, created_at
		FROM adk_sessions
		WHERE app_name = $1 AND user_id = $2 AND session_id = $3
	`

	var row sessionRow
	err := r.db.GetContext(ctx, &row, query, appName, userID, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrap(errors.ErrNotFound, "session not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get session")
	}

	sess, err := row.toDomain()
	if err != nil {
		return nil, err
	}

	events, err := r.GetEvents(ctx, sess.ID, &session.GetEventsOptions{
		Limit: opts.NumRecentEvents,
		After: opts.After,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get events")
	}

	sess.Events = make([]session.Event, len(events))
	for i, e := range events {
		sess.Events[i] = *e
	}

	return sess, nil
}

// List lists all sessions for an app, optionally for one user. Events are not loaded.
func (r *SessionRepository) List(ctx context.Context, appName, userID string) ([]*session.Session, error) {
	query := `
		SELECT id, app_name, user_id, session_id, state, updated_at, created_at
		FROM adk_sessions
		WHERE app_name = $1
	`
	args := []interface{}{appName}

	if userID != "" {
		query += ` AND user_id = $2`
		args = append(args, userID)
	}

	query += ` ORDER BY updated_at DESC`

	var rows []sessionRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "failed to list sessions")
	}

	sessions := make([]*session.Session, 0, len(rows))
	for _, row := range rows {
		sess, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}

	return sessions, nil
}

// Delete deletes a session and, by cascade, its events
func (r *SessionRepository) Delete(ctx context.Context, appName, userID, sessionID string) error {
	query := `
		DELETE FROM adk_sessions
		WHERE app_name = $1 AND user_id = $2 AND session_id = $3
	`

	result, err := r.db.ExecContext(ctx, query, appName, userID, sessionID)
	if err != nil {
		return errors.Wrap(err, "failed to delete session")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.Wrap(errors.ErrNotFound, "session not found")
	}

	return nil
}

// UpdateState replaces session state
func (r *SessionRepository) UpdateState(ctx context.Context, appName, userID, sessionID string, state map[string]interface{}) error {
	stateJSON, err := marshalState(state)
	if err != nil {
		return err
	}

	query := `
		UPDATE adk_sessions
		SET state = $1, updated_at = $2
		WHERE app_name = $3 AND user_id = $4 AND session_id = $5
	`

	result, err := r.db.ExecContext(ctx, query, stateJSON, time.Now().UTC(), appName, userID, sessionID)
	if err != nil {
		return errors.Wrap(err, "failed to update state")
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return errors.Wrap(errors.ErrNotFound, "session not found")
	}

	return nil
}

// AppendEvent appends an event to a session
func (r *SessionRepository) AppendEvent(ctx context.Context, sessionRowID uuid.UUID, event *session.Event) error {
	actionsJSON, err := json.Marshal(event.Actions)
	if err != nil {
		return errors.Wrap(err, "failed to marshal actions")
	}

	var usageJSON []byte
	if event.UsageMetadata != nil {
		usageJSON, err = json.Marshal(event.UsageMetadata)
		if err != nil {
			return errors.Wrap(err, "failed to marshal usage metadata")
		}
	}

	var content []byte
	if len(event.Content) > 0 {
		content = event.Content
	}

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.SessionRowID = sessionRowID

	query := `
		INSERT INTO adk_session_events (
			id, session_row_id, event_id, invocation_id, author, branch, content,
			actions, usage_metadata, turn_complete, error_code, error_message, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err = r.db.ExecContext(ctx, query,
		event.ID,
		sessionRowID,
		event.EventID,
		event.InvocationID,
		event.Author,
		event.Branch,
		content,
		actionsJSON,
		usageJSON,
		event.TurnComplete,
		event.ErrorCode,
		event.ErrorMessage,
		event.Timestamp,
	)
	if err != nil {
		return errors.Wrap(err, "failed to append event")
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE adk_sessions SET updated_at = GREATEST(updated_at, $1) WHERE id = $2`,
		event.Timestamp, sessionRowID)
	if err != nil {
		return errors.Wrap(err, "failed to touch session")
	}

	return nil
}

type eventRow struct {
	ID            uuid.UUID `db:"id"`
	SessionRowID  uuid.UUID `db:"session_row_id"`
	EventID       string    `db:"event_id"`
	InvocationID  string    `db:"invocation_id"`
	Author        string    `db:"author"`
	Branch        string    `db:"branch"`
	Content       []byte    `db:"content"`
	Actions       []byte    `db:"actions"`
	UsageMetadata []byte    `db:"usage_metadata"`
	TurnComplete  bool      `db:"turn_complete"`
	ErrorCode     string    `db:"error_code"`
	ErrorMessage  string    `db:"error_message"`
	Timestamp     time.Time `db:"timestamp"`
}

func (r eventRow) toDomain() (*session.Event, error) {
	event := &session.Event{
		ID:           r.ID,
		SessionRowID: r.SessionRowID,
		EventID:      r.EventID,
		InvocationID: r.InvocationID,
		Author:       r.Author,
		Branch:       r.Branch,
		Content:      r.Content,
		TurnComplete: r.TurnComplete,
		ErrorCode:    r.ErrorCode,
		ErrorMessage: r.ErrorMessage,
		Timestamp:    r.Timestamp,
	}
	if len(r.Actions) > 0 {
		if err := json.Unmarshal(r.Actions, &event.Actions); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal actions")
		}
	}
	if len(r.UsageMetadata) > 0 {
		var usage session.UsageMetadata
		if err := json.Unmarshal(r.UsageMetadata, &usage); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal usage metadata")
		}
		event.UsageMetadata = &usage
	}
	return event, nil
}

// GetEvents retrieves events for a session in chronological order.
// With a limit only the most recent events are returned.
func (r *SessionRepository) GetEvents(ctx context.Context, sessionRowID uuid.UUID, opts *session.GetEventsOptions) ([]*session.Event, error) {
	if opts == nil {
		opts = &session.GetEventsOptions{}
	}

	query := `
		SELECT id, session_row_id, event_id, invocation_id, author, branch, content,
		       actions, usage_metadata, turn_complete, error_code, error_message, timestamp
		FROM adk_session_events
		WHERE session_row_id = $1
	`
	args := []interface{}{sessionRowID}

	if !opts.After.IsZero() {
		args = append(args, opts.After)
		query += fmt.Sprintf(` AND timestamp >= $%d`, len(args))
	}

	query += ` ORDER BY timestamp DESC, seq DESC`

	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	var rows []eventRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "failed to get events")
	}

	events := make([]*session.Event, len(rows))
	for i, row := range rows {
		event, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		// rows are newest first
		events[len(rows)-1-i] = event
	}

	return events, nil
}

// GetAppState retrieves application-level state
func (r *SessionRepository) GetAppState(ctx context.Context, appName string) (*session.AppState, error) {
	var stateJSON []byte
	err := r.db.GetContext(ctx, &stateJSON, `SELECT state FROM adk_app_state WHERE app_name = $1`, appName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrap(errors.ErrNotFound, "app state not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get app state")
	}

	appState := &session.AppState{AppName: appName}
	if err := json.Unmarshal(stateJSON, &appState.State); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal state")
	}
	return appState, nil
}

// SetAppState sets application-level state
func (r *SessionRepository) SetAppState(ctx context.Context, appName string, state map[string]interface{}) error {
	stateJSON, err := marshalState(state)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO adk_app_state (app_name, state, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (app_name) DO UPDATE SET state = $2, updated_at = now()
	`
	if _, err := r.db.ExecContext(ctx, query, appName, stateJSON); err != nil {
		return errors.Wrap(err, "failed to set app state")
	}
	return nil
}

// GetUserState retrieves user-level state
func (r *SessionRepository) GetUserState(ctx context.Context, appName, userID string) (*session.UserState, error) {
	var stateJSON []byte
	err := r.db.GetContext(ctx, &stateJSON,
		`SELECT state FROM adk_user_state WHERE app_name = $1 AND user_id = $2`, appName, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrap(errors.ErrNotFound, "user state not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get user state")
	}

	userState := &session.UserState{AppName: appName, UserID: userID}
	if err := json.Unmarshal(stateJSON, &userState.State); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal state")
	}
	return userState, nil
}

// SetUserState sets user-level state
func (r *SessionRepository) SetUserState(ctx context.Context, appName, userID string, state map[string]interface{}) error {
	stateJSON, err := marshalState(state)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO adk_user_state (app_name, user_id, state, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (app_name, user_id) DO UPDATE SET state = $3, updated_at = now()
	`
	if _, err := r.db.ExecContext(ctx, query, appName, userID, stateJSON); err != nil {
		return errors.Wrap(err, "failed to set user state")
	}
	return nil
}

func marshalState(state map[string]interface{}) ([]byte, error) {
	if state == nil {
		state = map[string]interface{}{}
	}
	data, err := json.Marshal(state)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal state")
	}
	return data, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

var _ session.Repository = (*SessionRepository)(nil)
