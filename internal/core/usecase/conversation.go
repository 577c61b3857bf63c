package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/policy-advisor/internal/core/domain"
	"github.com/kirillkom/policy-advisor/internal/core/ports"
)

const (
	defaultGatherQuestion = "Could you tell me your health coverage needs, annual budget, and family size?"
	noResultsMessage      = "No policies in our catalog match all your hard requirements. " +
		"Try relaxing your budget, removing a specific coverage requirement, or changing the plan type."
	defaultRecommendIntro = "Here are the best policies matching your needs:"

	summaryMarker = "[EARLIER CONVERSATION SUMMARY]"
	recentMarker  = "[RECENT MESSAGES]"
)

type ConversationOptions struct {
	HistoryWindow    int
	SummaryThreshold int
	RecommendLimit   int
	EnrichTop        int
}

func (o ConversationOptions) normalize() ConversationOptions {
	if o.HistoryWindow <= 0 {
		o.HistoryWindow = 10
	}
	if o.SummaryThreshold <= 0 {
		o.SummaryThreshold = 6000
	}
	if o.RecommendLimit <= 0 {
		o.RecommendLimit = 6
	}
	if o.EnrichTop < 0 {
		o.EnrichTop = 0
	} else if o.EnrichTop == 0 {
		o.EnrichTop = 3
	}
	return o
}

// ConversationUseCase decides, per turn, whether to ask a follow-up
// question, explain, chat or recommend catalog policies.
type ConversationUseCase struct {
	llm       ports.LanguageModel
	catalog   ports.CatalogStore
	documents ports.UploadedPolicyStore
	advisor   ports.CoverageAdvisor
	explainer *DocumentExplainer
	telemetry ports.Telemetry
	opts      ConversationOptions
}

func NewConversationUseCase(
	llm ports.LanguageModel,
	catalog ports.CatalogStore,
	documents ports.UploadedPolicyStore,
	advisor ports.CoverageAdvisor,
	explainer *DocumentExplainer,
	telemetry ports.Telemetry,
	opts ConversationOptions,
) *ConversationUseCase {
	if telemetry == nil {
		telemetry = ports.NoopTelemetry{}
	}
	return &ConversationUseCase{
		llm:       llm,
		catalog:   catalog,
		documents: documents,
		advisor:   advisor,
		explainer: explainer,
		telemetry: telemetry,
		opts:      opts.normalize(),
	}
}

// HandleTurn runs one turn over an immutable snapshot of the session
// context. history holds the earlier messages, oldest first, without the
// current one. The returned context is the snapshot merged with whatever
// the turn learned.
func (uc *ConversationUseCase) HandleTurn(
	ctx context.Context,
	message string,
	history []domain.Message,
	session domain.SessionContext,
) (ports.TurnResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return ports.TurnResult{}, domain.WrapError(domain.ErrInvalidInput, "handle turn", fmt.Errorf("empty message"))
	}

	messages := make([]domain.Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, domain.Message{Role: domain.RoleUser, Content: message})

	transcript, err := uc.compactTranscript(ctx, buildTranscript(messages, uc.opts.HistoryWindow))
	if err != nil {
		return ports.TurnResult{}, err
	}

	raw, err := uc.llm.CompleteJSON(ctx, intentSystemPrompt, transcript)
	if err != nil {
		return ports.TurnResult{}, fmt.Errorf("classify intent: %w", err)
	}
	intent := decodeIntent(raw)

	response, update, err := uc.respond(ctx, message, messages, intent, session)
	if err != nil {
		return ports.TurnResult{}, err
	}
	uc.telemetry.RecordTurn(response.Mode())

	next, changed := session.Merge(update)
	return ports.TurnResult{Response: response, Context: next, Changed: changed}, nil
}

func (uc *ConversationUseCase) respond(
	ctx context.Context,
	message string,
	messages []domain.Message,
	intent domain.IntentClassification,
	session domain.SessionContext,
) (domain.TurnResponse, domain.ContextUpdate, error) {
	conversational := intent.Intent == domain.IntentExplainTerm ||
		intent.Intent == domain.IntentExplainPolicy ||
		intent.Intent == domain.IntentChatReply

	if intent.Intent == domain.IntentGatherInfo || (intent.MissingEssentials() && !conversational) {
		question := intent.NextQuestion
		if question == "" {
			question = defaultGatherQuestion
		}
		return domain.GatherResponse{Question: question}, domain.ContextUpdate{}, nil
	}

	switch intent.Intent {
	case domain.IntentExplainTerm, domain.IntentExplainPolicy:
		term := intent.TermToExplain
		if term == "" {
			term = intent.PolicyNameAsked
		}
		if term != "" {
			explained, err := uc.explainer.ExplainTerm(ctx, term, session.LastRecommendedDocumentIDs)
			if err != nil {
				return nil, domain.ContextUpdate{}, fmt.Errorf("explain %q: %w", term, err)
			}
			return explained, domain.ContextUpdate{}, nil
		}
		// Nothing to explain: answer conversationally instead.
		slog.Info("explain_without_term", "intent", intent.Intent)
		fallthrough
	case domain.IntentChatReply:
		answer, err := uc.explainer.ChatReply(ctx, message, session.LastRecommendedDocumentIDs)
		if err != nil {
			return nil, domain.ContextUpdate{}, fmt.Errorf("chat reply: %w", err)
		}
		return domain.ChatResponse{Answer: answer}, domain.ContextUpdate{}, nil
	}

	return uc.recommend(ctx, lastUserMessage(messages, message), intent.Extracted)
}

func (uc *ConversationUseCase) recommend(
	ctx context.Context,
	lastUser string,
	req domain.RequirementProfile,
) (domain.TurnResponse, domain.ContextUpdate, error) {
	req = req.Normalize()
	update := domain.ContextUpdate{
		Budget:     req.BudgetMax,
		Diseases:   req.PreexistingConditions,
		FamilySize: req.Members,
	}

	policies, err := uc.catalog.ListPolicies(ctx)
	if err != nil {
		return nil, domain.ContextUpdate{}, fmt.Errorf("list catalog: %w", err)
	}
	filtered := HardFilter(req, policies)
	if len(filtered) == 0 {
		return domain.NoResultsResponse{Message: noResultsMessage, Requirements: req}, update, nil
	}

	ranked := RankPolicies(req, filtered)
	top := ranked
	if len(top) > uc.opts.RecommendLimit {
		top = top[:uc.opts.RecommendLimit]
	}

	needs := append(append([]string{}, req.Needs...), req.PreexistingConditions...)
	uploadedIDs := make([]string, 0, uc.opts.EnrichTop)
	for i := range top {
		if i >= uc.opts.EnrichTop {
			break
		}
		top[i].Insights = uc.documentInsights(ctx, top[i].Insurer, needs)
		if top[i].Insights.Available {
			uploadedIDs = append(uploadedIDs, top[i].Insights.DocumentID)
		}
	}
	update.RecommendedDocs = uploadedIDs

	return domain.RecommendResponse{
		Message:             uc.recommendIntro(ctx, lastUser, req),
		Requirements:        req,
		Policies:            top,
		TotalFound:          len(ranked),
		UploadedDocumentIDs: uploadedIDs,
	}, update, nil
}

// documentInsights is best effort: a lookup or verdict failure leaves
// the recommendation without insights.
func (uc *ConversationUseCase) documentInsights(ctx context.Context, insurer string, needs []string) *domain.DocumentInsights {
	unavailable := &domain.DocumentInsights{Available: false}
	if strings.TrimSpace(insurer) == "" || uc.documents == nil || uc.advisor == nil {
		return unavailable
	}
	doc, err := uc.documents.FindReadyByInsurer(ctx, insurer)
	if domain.IsKind(err, domain.ErrDocumentNotFound) || (err == nil && doc == nil) {
		return unavailable
	}
	if err != nil {
		slog.Warn("insights_lookup_failed", "insurer", insurer, "error", err)
		return unavailable
	}
	verdict, err := uc.advisor.SynthesizeVerdict(ctx, insightsQuestion(needs), doc.ID)
	if err != nil {
		slog.Warn("insights_verdict_failed", "document_id", doc.ID, "error", err)
		return unavailable
	}
	return &domain.DocumentInsights{Available: true, DocumentID: doc.ID, Verdict: &verdict}
}

func insightsQuestion(needs []string) string {
	if len(needs) == 0 {
		return "What are the main exclusions, waiting periods, sub-limits and hidden conditions in this policy?"
	}
	return fmt.Sprintf("Does this policy cover %s? What waiting periods, sub-limits, exclusions or hidden conditions apply?",
		strings.Join(needs, ", "))
}

func (uc *ConversationUseCase) recommendIntro(ctx context.Context, lastUser string, req domain.RequirementProfile) string {
	extracted, _ := json.Marshal(req)
	raw, err := uc.llm.CompleteJSON(ctx, chatIntroSystemPrompt, fmt.Sprintf("User asked: %s\nExtracted needs: %s", lastUser, extracted))
	if err != nil {
		slog.Warn("recommend_intro_failed", "error", err)
		return defaultRecommendIntro
	}
	if msg, ok := stringField(raw, "message"); ok {
		return msg
	}
	return defaultRecommendIntro
}

// buildTranscript renders the last window messages as "ROLE: content"
// lines.
func buildTranscript(messages []domain.Message, window int) string {
	if window > 0 && len(messages) > window {
		messages = messages[len(messages)-window:]
	}
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		lines = append(lines, strings.ToUpper(string(m.Role))+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}

// compactTranscript leaves short transcripts untouched. Longer ones get
// their older half replaced by a model summary; the recent half is kept
// verbatim.
func (uc *ConversationUseCase) compactTranscript(ctx context.Context, transcript string) (string, error) {
	runes := []rune(transcript)
	if len(runes) <= uc.opts.SummaryThreshold {
		return transcript, nil
	}
	mid := len(runes) / 2
	older, recent := string(runes[:mid]), string(runes[mid:])

	summary, err := uc.llm.Complete(ctx, contextSummarySystemPrompt, older)
	if err != nil {
		return "", fmt.Errorf("summarize transcript: %w", err)
	}
	return fmt.Sprintf("%s\n%s\n\n%s\n%s", summaryMarker, strings.TrimSpace(summary), recentMarker, recent), nil
}

func lastUserMessage(messages []domain.Message, fallback string) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == domain.RoleUser {
			return messages[i].Content
		}
	}
	return fallback
}

// decodeIntent is the single place the classifier's output becomes an
// IntentClassification. An unknown intent is treated as gather_info.
func decodeIntent(raw map[string]any) domain.IntentClassification {
	out := domain.IntentClassification{Intent: domain.IntentGatherInfo}
	if s, ok := stringField(raw, "intent"); ok {
		switch intent := domain.Intent(strings.ToLower(s)); intent {
		case domain.IntentGatherInfo, domain.IntentRecommend, domain.IntentExplainTerm,
			domain.IntentExplainPolicy, domain.IntentChatReply:
			out.Intent = intent
		}
	}
	out.HasBudget, _ = boolField(raw, "has_budget")
	out.HasMembers, _ = boolField(raw, "has_members")
	out.HasNeedsOrConditions, _ = boolField(raw, "has_needs_or_conditions")
	out.NextQuestion = nullableString(raw, "next_question")
	out.TermToExplain = nullableString(raw, "term_to_explain")
	out.PolicyNameAsked = nullableString(raw, "policy_name_asked")
	out.Extracted = decodeRequirementProfile(objectField(raw, "extracted"))
	return out
}

// nullableString treats the literal "null" some models emit as absent.
func nullableString(raw map[string]any, key string) string {
	s, ok := stringField(raw, key)
	if !ok || strings.EqualFold(s, "null") {
		return ""
	}
	return s
}
