package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/policy-advisor/internal/core/domain"
	"github.com/kirillkom/policy-advisor/internal/core/ports"
)

// DiscoverUseCase answers a one-shot natural language query with ranked
// catalog policies.
type DiscoverUseCase struct {
	llm     ports.LanguageModel
	catalog ports.CatalogStore
	limit   int
}

func NewDiscoverUseCase(llm ports.LanguageModel, catalog ports.CatalogStore, limit int) *DiscoverUseCase {
	if limit <= 0 {
		limit = 6
	}
	return &DiscoverUseCase{llm: llm, catalog: catalog, limit: limit}
}

// Discover returns a RecommendResponse, or a NoResultsResponse when the
// hard filter leaves nothing.
func (uc *DiscoverUseCase) Discover(ctx context.Context, query string) (domain.TurnResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "discover", fmt.Errorf("empty query"))
	}

	raw, err := uc.llm.CompleteJSON(ctx, requirementsSystemPrompt, query)
	if err != nil {
		return nil, fmt.Errorf("extract requirements: %w", err)
	}
	return uc.Rank(ctx, decodeRequirementProfile(raw))
}

// Rank hard-filters and ranks the catalog for an explicit profile.
func (uc *DiscoverUseCase) Rank(ctx context.Context, req domain.RequirementProfile) (domain.TurnResponse, error) {
	req = req.Normalize()
	policies, err := uc.catalog.ListPolicies(ctx)
	if err != nil {
		return nil, fmt.Errorf("list catalog: %w", err)
	}
	filtered := HardFilter(req, policies)
	if len(filtered) == 0 {
		return domain.NoResultsResponse{Message: noResultsMessage, Requirements: req}, nil
	}

	ranked := RankPolicies(req, filtered)
	top := ranked
	if len(top) > uc.limit {
		top = top[:uc.limit]
	}
	return domain.RecommendResponse{
		Message:             defaultRecommendIntro,
		Requirements:        req,
		Policies:            top,
		TotalFound:          len(ranked),
		UploadedDocumentIDs: []string{},
	}, nil
}
