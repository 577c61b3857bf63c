package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/policy-advisor/internal/core/domain"
	"github.com/kirillkom/policy-advisor/internal/core/ports"
)

const (
	defaultSessionUser     = "anonymous"
	defaultHistoryMessages = 100
	defaultSessionList     = 20
)

// SessionHistory is a session with its stored messages.
type SessionHistory struct {
	Session  *domain.Session  `json:"session"`
	Messages []domain.Message `json:"messages"`
}

// TurnReply is what a persisted chat turn returns to its caller.
type TurnReply struct {
	SessionID string                `json:"session_id"`
	MessageID string                `json:"message_id"`
	Response  domain.TurnResponse   `json:"response"`
	Mode      domain.TurnMode       `json:"type"`
	Context   domain.SessionContext `json:"context"`
}

// ChatSessionUseCase persists conversation turns around a
// ConversationHandler.
type ChatSessionUseCase struct {
	sessions ports.SessionStore
	handler  ports.ConversationHandler
}

func NewChatSessionUseCase(sessions ports.SessionStore, handler ports.ConversationHandler) *ChatSessionUseCase {
	return &ChatSessionUseCase{sessions: sessions, handler: handler}
}

func (uc *ChatSessionUseCase) CreateSession(ctx context.Context, userID, name string) (*domain.Session, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		userID = defaultSessionUser
	}
	now := time.Now().UTC()
	session := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      strings.TrimSpace(name),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

// EnsureSession loads a session or creates it under the given id.
func (uc *ChatSessionUseCase) EnsureSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	session, err := uc.sessions.Get(ctx, sessionID)
	if err == nil {
		return session, nil
	}
	if !domain.IsKind(err, domain.ErrSessionNotFound) {
		return nil, fmt.Errorf("load session: %w", err)
	}
	now := time.Now().UTC()
	session = &domain.Session{ID: sessionID, UserID: defaultSessionUser, CreatedAt: now, UpdatedAt: now}
	if err := uc.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

// ListSessions returns the most recently active sessions, twenty when
// limit is not positive.
func (uc *ChatSessionUseCase) ListSessions(ctx context.Context, userID string, limit int) ([]domain.Session, error) {
	if limit <= 0 {
		limit = defaultSessionList
	}
	sessions, err := uc.sessions.List(ctx, strings.TrimSpace(userID), limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

func (uc *ChatSessionUseCase) History(ctx context.Context, sessionID string) (*SessionHistory, error) {
	session, err := uc.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	messages, err := uc.sessions.ListMessages(ctx, sessionID, defaultHistoryMessages)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	return &SessionHistory{Session: session, Messages: messages}, nil
}

func (uc *ChatSessionUseCase) DeleteSession(ctx context.Context, sessionID string) error {
	if err := uc.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Send persists the user message, runs one turn, persists the reply and
// saves the merged context when the turn changed it. A concurrent turn
// that saved first makes the save fail with ErrSessionConflict.
func (uc *ChatSessionUseCase) Send(ctx context.Context, sessionID, content string) (*TurnReply, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "send message", fmt.Errorf("empty message"))
	}

	session, err := uc.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	history, err := uc.sessions.ListMessages(ctx, sessionID, defaultHistoryMessages)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	if err := uc.sessions.AppendMessage(ctx, domain.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      domain.RoleUser,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		return nil, fmt.Errorf("append user message: %w", err)
	}

	result, err := uc.handler.HandleTurn(ctx, content, history, session.Context)
	if err != nil {
		return nil, fmt.Errorf("handle turn: %w", err)
	}

	reply := domain.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      domain.RoleAssistant,
		Content:   result.Response.Text(),
		Mode:      result.Response.Mode(),
		CreatedAt: time.Now().UTC(),
	}
	if err := uc.sessions.AppendMessage(ctx, reply); err != nil {
		return nil, fmt.Errorf("append assistant message: %w", err)
	}

	stored := session.Context
	if result.Changed {
		stored, err = uc.sessions.SaveContext(ctx, sessionID, result.Context)
		if err != nil {
			return nil, fmt.Errorf("save session context: %w", err)
		}
	}

	return &TurnReply{
		SessionID: sessionID,
		MessageID: reply.ID,
		Response:  result.Response,
		Mode:      result.Response.Mode(),
		Context:   stored,
	}, nil
}
