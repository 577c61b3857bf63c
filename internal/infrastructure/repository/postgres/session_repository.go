package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/policy-advisor/internal/core/domain"
)

type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, session *domain.Session) error {
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	if session.UpdatedAt.IsZero() {
		session.UpdatedAt = session.CreatedAt
	}
	raw, err := json.Marshal(session.Context)
	if err != nil {
		return fmt.Errorf("marshal session context: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO chat_sessions (id, user_id, session_name, context, version, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, session.ID, session.UserID, session.Name, raw, session.Context.Version, session.CreatedAt, session.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

const sessionColumns = `id, user_id, session_name, context, version, created_at, updated_at`

func (r *SessionRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM chat_sessions WHERE id = $1`, id)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, wrapNotFound(domain.ErrSessionNotFound, "get session", id)
		}
		return nil, err
	}
	return &s, nil
}

// List returns the most recently active sessions. An empty userID lists
// sessions of every user.
func (r *SessionRepository) List(ctx context.Context, userID string, limit int) ([]domain.Session, error) {
	if limit <= 0 {
		return []domain.Session{}, nil
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+sessionColumns+`
FROM chat_sessions
WHERE $1 = '' OR user_id = $1
ORDER BY updated_at DESC
LIMIT $2
`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Session, 0, limit)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

// Delete removes a session; its messages go with it through the foreign
// key cascade.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM chat_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return ensureAffected(res, domain.ErrSessionNotFound, "delete session", id)
}

func scanSession(row rowScanner) (domain.Session, error) {
	var s domain.Session
	var raw []byte
	var version int64
	if err := row.Scan(&s.ID, &s.UserID, &s.Name, &raw, &version, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s, err
		}
		return s, fmt.Errorf("scan session: %w", err)
	}
	if err := json.Unmarshal(raw, &s.Context); err != nil {
		return s, fmt.Errorf("unmarshal session context: %w", err)
	}
	s.Context.Version = version
	return s, nil
}

// SaveContext is a compare-and-swap on the version column. A stale
// version yields ErrSessionConflict, a missing row ErrSessionNotFound.
func (r *SessionRepository) SaveContext(ctx context.Context, sessionID string, next domain.SessionContext) (domain.SessionContext, error) {
	expected := next.Version
	next.Version = expected + 1
	raw, err := json.Marshal(next)
	if err != nil {
		return domain.SessionContext{}, fmt.Errorf("marshal session context: %w", err)
	}

	var stored int64
	err = r.db.QueryRowContext(ctx, `
UPDATE chat_sessions
SET context = $2, version = version + 1, updated_at = $4
WHERE id = $1 AND version = $3
RETURNING version
`, sessionID, raw, expected, time.Now().UTC()).Scan(&stored)
	if err == nil {
		next.Version = stored
		return next, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.SessionContext{}, fmt.Errorf("save session context: %w", err)
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM chat_sessions WHERE id = $1)`, sessionID).Scan(&exists); err != nil {
		return domain.SessionContext{}, fmt.Errorf("check session exists: %w", err)
	}
	if !exists {
		return domain.SessionContext{}, wrapNotFound(domain.ErrSessionNotFound, "save session context", sessionID)
	}
	return domain.SessionContext{}, domain.WrapError(domain.ErrSessionConflict, "save session context", fmt.Errorf("expected version %d", expected))
}

func (r *SessionRepository) AppendMessage(ctx context.Context, message domain.Message) error {
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin message tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
INSERT INTO chat_messages (id, session_id, role, content, mode, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
`, message.ID, message.SessionID, string(message.Role), message.Content, nullableString(string(message.Mode)), message.CreatedAt)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE chat_sessions SET updated_at = $2 WHERE id = $1`, message.SessionID, message.CreatedAt)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if err := ensureAffected(res, domain.ErrSessionNotFound, "append message", message.SessionID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit message tx: %w", err)
	}
	return nil
}

// ListMessages returns the latest limit messages in chronological order.
func (r *SessionRepository) ListMessages(ctx context.Context, sessionID string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, session_id, role, content, COALESCE(mode, ''), created_at
FROM chat_messages
WHERE session_id = $1
ORDER BY created_at DESC
LIMIT $2
`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Message, 0, limit)
	for rows.Next() {
		var msg domain.Message
		var role, mode string
		if err := rows.Scan(&msg.ID, &msg.SessionID, &role, &msg.Content, &mode, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Role = domain.Role(role)
		msg.Mode = domain.TurnMode(mode)
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
