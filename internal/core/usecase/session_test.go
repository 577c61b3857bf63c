package usecase

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/kirillkom/policy-advisor/internal/core/domain"
	"github.com/kirillkom/policy-advisor/internal/core/ports"
)

type sessionStoreFake struct {
	sessions  map[string]*domain.Session
	messages  []domain.Message
	saves     int
	listLimit int
}

func newSessionStoreFake(sessions ...domain.Session) *sessionStoreFake {
	f := &sessionStoreFake{sessions: map[string]*domain.Session{}}
	for i := range sessions {
		s := sessions[i]
		f.sessions[s.ID] = &s
	}
	return f
}

func (f *sessionStoreFake) Create(_ context.Context, s *domain.Session) error {
	copySession := *s
	f.sessions[s.ID] = &copySession
	return nil
}

func (f *sessionStoreFake) Get(_ context.Context, id string) (*domain.Session, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrSessionNotFound, "get session", errors.New(id))
	}
	copySession := *s
	return &copySession, nil
}

func (f *sessionStoreFake) List(_ context.Context, userID string, limit int) ([]domain.Session, error) {
	f.listLimit = limit
	out := []domain.Session{}
	for _, s := range f.sessions {
		if userID == "" || s.UserID == userID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *sessionStoreFake) Delete(_ context.Context, id string) error {
	if _, ok := f.sessions[id]; !ok {
		return domain.WrapError(domain.ErrSessionNotFound, "delete session", errors.New(id))
	}
	delete(f.sessions, id)
	kept := f.messages[:0]
	for _, m := range f.messages {
		if m.SessionID != id {
			kept = append(kept, m)
		}
	}
	f.messages = kept
	return nil
}

func (f *sessionStoreFake) SaveContext(_ context.Context, id string, next domain.SessionContext) (domain.SessionContext, error) {
	s := f.sessions[id]
	if s.Context.Version != next.Version {
		return domain.SessionContext{}, domain.WrapError(domain.ErrSessionConflict, "save context", errors.New("stale version"))
	}
	f.saves++
	next.Version++
	s.Context = next
	return next, nil
}

func (f *sessionStoreFake) AppendMessage(_ context.Context, m domain.Message) error {
	f.messages = append(f.messages, m)
	return nil
}

func (f *sessionStoreFake) ListMessages(_ context.Context, id string, _ int) ([]domain.Message, error) {
	var out []domain.Message
	for _, m := range f.messages {
		if m.SessionID == id {
			out = append(out, m)
		}
	}
	return out, nil
}

type handlerFake struct {
	result  ports.TurnResult
	history []domain.Message
}

func (f *handlerFake) HandleTurn(_ context.Context, _ string, history []domain.Message, _ domain.SessionContext) (ports.TurnResult, error) {
	f.history = history
	return f.result, nil
}

func TestSendPersistsTurnAndBumpsContextVersion(t *testing.T) {
	store := newSessionStoreFake(domain.Session{ID: "s1", Context: domain.SessionContext{Version: 2}})
	store.messages = []domain.Message{{SessionID: "s1", Role: domain.RoleUser, Content: "hi"}}
	handler := &handlerFake{result: ports.TurnResult{
		Response: domain.NoResultsResponse{Message: noResultsMessage},
		Context:  domain.SessionContext{Version: 2, Budget: floatPtr(5000)},
		Changed:  true,
	}}
	uc := NewChatSessionUseCase(store, handler)

	reply, err := uc.Send(context.Background(), "s1", "budget 5000")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if len(handler.history) != 1 {
		t.Fatalf("handler should get the prior history only, got %d messages", len(handler.history))
	}
	if len(store.messages) != 3 || store.messages[2].Mode != domain.ModeNoResults || store.messages[2].Content != noResultsMessage {
		t.Fatalf("unexpected persisted messages %+v", store.messages)
	}
	if reply.Context.Version != 3 || reply.Mode != domain.ModeNoResults {
		t.Fatalf("unexpected reply %+v", reply)
	}
}

func TestSendSkipsSaveWhenContextUnchanged(t *testing.T) {
	store := newSessionStoreFake(domain.Session{ID: "s1"})
	handler := &handlerFake{result: ports.TurnResult{Response: domain.GatherResponse{Question: defaultGatherQuestion}}}
	uc := NewChatSessionUseCase(store, handler)

	if _, err := uc.Send(context.Background(), "s1", "hello"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if store.saves != 0 {
		t.Fatalf("expected no context save, got %d", store.saves)
	}
}

func TestSendReportsStaleContext(t *testing.T) {
	store := newSessionStoreFake(domain.Session{ID: "s1", Context: domain.SessionContext{Version: 5}})
	handler := &handlerFake{result: ports.TurnResult{
		Response: domain.ChatResponse{Answer: "ok"},
		Context:  domain.SessionContext{Version: 4, FamilySize: intPtr(2)},
		Changed:  true,
	}}
	uc := NewChatSessionUseCase(store, handler)

	_, err := uc.Send(context.Background(), "s1", "two of us")
	if !domain.IsKind(err, domain.ErrSessionConflict) {
		t.Fatalf("expected ErrSessionConflict, got %v", err)
	}
}

func TestEnsureSessionCreatesMissing(t *testing.T) {
	store := newSessionStoreFake()
	uc := NewChatSessionUseCase(store, &handlerFake{})

	s, err := uc.EnsureSession(context.Background(), "fresh")
	if err != nil {
		t.Fatalf("EnsureSession() error = %v", err)
	}
	if s.ID != "fresh" || s.UserID != "anonymous" {
		t.Fatalf("unexpected session %+v", s)
	}
	if _, err := uc.Send(context.Background(), "missing", "hi"); !domain.IsKind(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestListSessionsFiltersByUserNewestFirst(t *testing.T) {
	t0 := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	store := newSessionStoreFake(
		domain.Session{ID: "old", UserID: "u1", UpdatedAt: t0},
		domain.Session{ID: "new", UserID: "u1", UpdatedAt: t0.Add(time.Hour)},
		domain.Session{ID: "other", UserID: "u2", UpdatedAt: t0.Add(2 * time.Hour)},
	)
	uc := NewChatSessionUseCase(store, &handlerFake{})

	got, err := uc.ListSessions(context.Background(), " u1 ", 0)
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != "new" || got[1].ID != "old" {
		t.Fatalf("unexpected sessions: %+v", got)
	}
	if store.listLimit != defaultSessionList {
		t.Fatalf("expected default limit %d, got %d", defaultSessionList, store.listLimit)
	}
}

func TestHistoryReturnsSessionMessages(t *testing.T) {
	store := newSessionStoreFake(domain.Session{ID: "s1"}, domain.Session{ID: "s2"})
	store.messages = []domain.Message{
		{ID: "m1", SessionID: "s1", Role: domain.RoleUser, Content: "hi"},
		{ID: "m2", SessionID: "s2", Role: domain.RoleUser, Content: "other"},
	}
	uc := NewChatSessionUseCase(store, &handlerFake{})

	got, err := uc.History(context.Background(), "s1")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if got.Session.ID != "s1" || len(got.Messages) != 1 || got.Messages[0].ID != "m1" {
		t.Fatalf("unexpected history: %+v", got)
	}

	empty, err := uc.History(context.Background(), "s2")
	if err != nil || empty.Messages == nil {
		t.Fatalf("History(s2) = %+v, %v", empty, err)
	}
	if _, err := uc.History(context.Background(), "missing"); !domain.IsKind(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestDeleteSessionRemovesMessages(t *testing.T) {
	store := newSessionStoreFake(domain.Session{ID: "s1"}, domain.Session{ID: "s2"})
	store.messages = []domain.Message{{ID: "m1", SessionID: "s1"}, {ID: "m2", SessionID: "s2"}}
	uc := NewChatSessionUseCase(store, &handlerFake{})

	if err := uc.DeleteSession(context.Background(), "s1"); err != nil {
		t.Fatalf("DeleteSession() error = %v", err)
	}
	if _, ok := store.sessions["s1"]; ok || len(store.messages) != 1 || store.messages[0].ID != "m2" {
		t.Fatalf("session not removed: sessions=%v messages=%+v", store.sessions, store.messages)
	}
	if err := uc.DeleteSession(context.Background(), "s1"); !domain.IsKind(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound on second delete, got %v", err)
	}
}
