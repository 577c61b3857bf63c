package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/policy-advisor/internal/core/domain"
	"github.com/kirillkom/policy-advisor/internal/core/ports"
)

const (
	maxGroundingDocuments  = 3
	explainDefinitionsTopK = 2
	explainSemanticTopK    = 2
	chatReplyTopK          = 3

	defaultExplanation = "I could not find a clear explanation for that term in the policies we discussed."
	defaultChatAnswer  = "I'm not sure about that one. Could you rephrase your question?"
	noClausesMarker    = "No policy clauses available."
)

// DocumentExplainer answers free-form questions grounded in the
// documents a session was last shown.
type DocumentExplainer struct {
	embedder  ports.Embedder
	retriever *HybridRetriever
	llm       ports.LanguageModel
}

func NewDocumentExplainer(embedder ports.Embedder, retriever *HybridRetriever, llm ports.LanguageModel) *DocumentExplainer {
	return &DocumentExplainer{embedder: embedder, retriever: retriever, llm: llm}
}

// ExplainTerm explains an insurance term using definition and semantic
// evidence from up to three documents. With no documents the model gives
// a general explanation and Found is false.
func (e *DocumentExplainer) ExplainTerm(ctx context.Context, term string, documentIDs []string) (domain.ExplainResponse, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return domain.ExplainResponse{}, domain.WrapError(domain.ErrInvalidInput, "explain term", fmt.Errorf("empty term"))
	}

	var evidence []domain.SearchResult
	documentIDs = limitIDs(documentIDs, maxGroundingDocuments)
	if len(documentIDs) > 0 {
		vector, err := e.embedder.Embed(ctx, term)
		if err != nil {
			return domain.ExplainResponse{}, fmt.Errorf("embed term: %w", err)
		}
		for _, id := range documentIDs {
			definitions, err := e.retriever.SectionRestricted(ctx, id, vector, []domain.SectionType{domain.SectionDefinitions}, explainDefinitionsTopK)
			if err != nil {
				return domain.ExplainResponse{}, fmt.Errorf("definitions for %s: %w", id, err)
			}
			semantic, err := e.retriever.Semantic(ctx, id, vector, explainSemanticTopK)
			if err != nil {
				return domain.ExplainResponse{}, fmt.Errorf("semantic for %s: %w", id, err)
			}
			evidence = append(evidence, definitions...)
			evidence = append(evidence, semantic...)
		}
	}

	prompt := fmt.Sprintf("TERM: %s\n\nPOLICY CLAUSES:\n%s", term, clausesOrMarker(evidence))
	raw, err := e.llm.CompleteJSON(ctx, explainTermSystemPrompt, prompt)
	if err != nil {
		return domain.ExplainResponse{}, fmt.Errorf("complete explanation: %w", err)
	}
	return decodeExplanation(raw, len(evidence) > 0), nil
}

// ChatReply answers a follow-up question with fused evidence from each
// grounding document.
func (e *DocumentExplainer) ChatReply(ctx context.Context, question string, documentIDs []string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return defaultChatAnswer, nil
	}

	var evidence []domain.SearchResult
	documentIDs = limitIDs(documentIDs, maxGroundingDocuments)
	if len(documentIDs) > 0 {
		vector, err := e.embedder.Embed(ctx, question)
		if err != nil {
			return "", fmt.Errorf("embed question: %w", err)
		}
		for _, id := range documentIDs {
			fused, err := e.retriever.Fused(ctx, id, question, vector, chatReplyTopK)
			if err != nil {
				return "", fmt.Errorf("retrieve for %s: %w", id, err)
			}
			evidence = append(evidence, fused...)
		}
	}

	prompt := fmt.Sprintf("QUESTION: %s\n\nPOLICY CLAUSES:\n%s", question, clausesOrMarker(evidence))
	answer, err := e.llm.Complete(ctx, chatReplySystemPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("complete chat reply: %w", err)
	}
	if answer = strings.TrimSpace(answer); answer == "" {
		return defaultChatAnswer, nil
	}
	return answer, nil
}

func decodeExplanation(raw map[string]any, grounded bool) domain.ExplainResponse {
	out := domain.ExplainResponse{Explanation: defaultExplanation}
	if s, ok := stringField(raw, "explanation"); ok {
		out.Explanation = s
	}
	out.Example = nullableString(raw, "example")
	out.Citation = nullableString(raw, "citation")
	out.PolicyName = nullableString(raw, "policy_name")
	if found, ok := boolField(raw, "found"); ok {
		out.Found = found && grounded
	}
	return out
}

func clausesOrMarker(evidence []domain.SearchResult) string {
	if block := formatChunkGroup("POLICY CLAUSES", evidence); block != "" {
		return block
	}
	return noClausesMarker
}

func limitIDs(ids []string, n int) []string {
	out := make([]string, 0, n)
	for _, id := range ids {
		if id = strings.TrimSpace(id); id == "" {
			continue
		}
		out = append(out, id)
		if len(out) == n {
			break
		}
	}
	return out
}
