package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/policy-advisor/internal/core/domain"
	"github.com/kirillkom/policy-advisor/internal/core/ports"
)

const (
	defaultConfidence     = 30
	defaultPlainAnswer    = "Unable to determine coverage from the available policy text."
	defaultRecommendation = "Contact your insurer directly for clarification."
)

// VerdictSynthesizer answers a coverage question about one uploaded
// wording from retrieved clauses.
type VerdictSynthesizer struct {
	documents ports.UploadedPolicyStore
	embedder  ports.Embedder
	retriever *HybridRetriever
	llm       ports.LanguageModel
	telemetry ports.Telemetry
}

func NewVerdictSynthesizer(
	documents ports.UploadedPolicyStore,
	embedder ports.Embedder,
	retriever *HybridRetriever,
	llm ports.LanguageModel,
	telemetry ports.Telemetry,
) *VerdictSynthesizer {
	if telemetry == nil {
		telemetry = ports.NoopTelemetry{}
	}
	return &VerdictSynthesizer{
		documents: documents,
		embedder:  embedder,
		retriever: retriever,
		llm:       llm,
		telemetry: telemetry,
	}
}

func (s *VerdictSynthesizer) SynthesizeVerdict(ctx context.Context, question, documentID string) (domain.Verdict, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return domain.Verdict{}, domain.WrapError(domain.ErrInvalidInput, "synthesize verdict", fmt.Errorf("empty question"))
	}
	if s.documents != nil {
		if _, err := s.documents.GetByID(ctx, documentID); err != nil {
			return domain.Verdict{}, fmt.Errorf("load document %s: %w", documentID, err)
		}
	}

	queryVector, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return domain.Verdict{}, fmt.Errorf("embed question: %w", err)
	}

	evidence, err := s.retriever.Gather(ctx, documentID, question, queryVector)
	if err != nil {
		return domain.Verdict{}, fmt.Errorf("gather evidence: %w", err)
	}
	if evidence.Empty() {
		slog.Info("verdict_without_evidence", "document_id", documentID)
	}

	raw, err := s.llm.CompleteJSON(ctx, hiddenConditionsSystemPrompt, buildVerdictPrompt(question, evidence))
	if err != nil {
		return domain.Verdict{}, fmt.Errorf("complete verdict: %w", err)
	}

	verdict := decodeVerdict(raw)
	s.telemetry.RecordVerdict(verdict.Verdict)
	return verdict, nil
}

func buildVerdictPrompt(question string, evidence Evidence) string {
	return fmt.Sprintf(`QUESTION: %s

POLICY CLAUSES:
%s

Analyze the above policy clauses and return the JSON verdict.`, question, formatEvidence(evidence))
}

func formatEvidence(evidence Evidence) string {
	if evidence.Empty() {
		return noClausesMarker
	}
	groups := []struct {
		label  string
		chunks []domain.SearchResult
	}{
		{label: "DIRECT ANSWER CLAUSES", chunks: evidence.Direct},
		{label: "DEFINITIONS", chunks: evidence.Definitions},
		{label: "EXCLUSIONS & CONDITIONS", chunks: evidence.Risks},
	}

	parts := make([]string, 0, len(groups))
	for _, g := range groups {
		if block := formatChunkGroup(g.label, g.chunks); block != "" {
			parts = append(parts, block)
		}
	}
	return strings.Join(parts, "\n\n---\n\n")
}

func formatChunkGroup(label string, chunks []domain.SearchResult) string {
	if len(chunks) == 0 {
		return ""
	}
	parts := make([]string, 0, len(chunks)+1)
	parts = append(parts, "["+label+"]")
	for _, c := range chunks {
		section := c.SectionType
		if section == "" {
			section = domain.SectionGeneral
		}
		page := "?"
		if c.PageNumber > 0 {
			page = fmt.Sprintf("%d", c.PageNumber)
		}
		parts = append(parts, fmt.Sprintf("[Page %s | %s]\n%s", page, section, c.Content))
	}
	return strings.Join(parts, "\n\n")
}

// decodeVerdict is the single place model output becomes a Verdict. Every
// absent, mistyped or out-of-range field gets its fallback.
func decodeVerdict(raw map[string]any) domain.Verdict {
	if raw == nil {
		raw = map[string]any{}
	}
	v := domain.Verdict{
		Verdict:               domain.VerdictAmbiguous,
		PracticalClaimability: domain.ClaimabilityAmber,
		Confidence:            defaultConfidence,
		PlainAnswer:           defaultPlainAnswer,
		Conditions:            stringSlice(raw, "conditions"),
		HiddenConditions:      []domain.HiddenCondition{},
		Citations:             []domain.Citation{},
		Recommendation:        defaultRecommendation,
	}

	if s, ok := stringField(raw, "verdict"); ok {
		if parsed := domain.CoverageVerdict(strings.ToUpper(s)); parsed.Valid() {
			v.Verdict = parsed
		}
	}
	if s, ok := stringField(raw, "practical_claimability"); ok {
		if parsed := domain.Claimability(strings.ToUpper(s)); parsed.Valid() {
			v.PracticalClaimability = parsed
		}
	}
	if n, ok := numberField(raw, "confidence"); ok {
		v.Confidence = roundClamped(n, 0, 100)
	}
	if s, ok := stringField(raw, "plain_answer"); ok {
		v.PlainAnswer = s
	}
	if s, ok := stringField(raw, "recommendation"); ok {
		v.Recommendation = s
	}

	for _, item := range objectSlice(raw, "hidden_conditions") {
		kind, _ := stringField(item, "type")
		hc := domain.HiddenCondition{Type: domain.HiddenConditionType(strings.ToLower(kind))}
		if !hc.Type.Valid() {
			continue
		}
		hc.Description, _ = stringField(item, "description")
		hc.Impact, _ = stringField(item, "impact")
		v.HiddenConditions = append(v.HiddenConditions, hc)
	}

	for _, item := range objectSlice(raw, "citations") {
		c := domain.Citation{}
		c.Text, _ = stringField(item, "text")
		if c.Text == "" {
			continue
		}
		if page, ok := numberField(item, "page"); ok && page > 0 {
			c.Page = int(page)
		}
		c.Section, _ = stringField(item, "section")
		v.Citations = append(v.Citations, c)
	}

	return v
}
