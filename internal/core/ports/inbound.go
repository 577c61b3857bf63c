package ports

import (
	"context"

	"github.com/kirillkom/policy-advisor/internal/core/domain"
)

// DocumentProcessor is the inbound contract for asynchronous document processing.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}

// CoverageAdvisor answers document-grounded coverage questions.
type CoverageAdvisor interface {
	SynthesizeVerdict(ctx context.Context, question, documentID string) (domain.Verdict, error)
}

// ConversationHandler runs one conversational turn.
type ConversationHandler interface {
	HandleTurn(ctx context.Context, message string, history []domain.Message, session domain.SessionContext) (TurnResult, error)
}

// TurnResult is the outcome of one turn and the context to persist.
type TurnResult struct {
	Response domain.TurnResponse
	Context  domain.SessionContext
	Changed  bool
}
