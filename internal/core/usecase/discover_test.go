package usecase

import (
	"context"
	"testing"

	"github.com/kirillkom/policy-advisor/internal/core/domain"
)

func TestDiscoverRanksFilteredCatalog(t *testing.T) {
	llm := &llmFake{jsonBySys: map[string]map[string]any{
		requirementsSystemPrompt: {"needs": []any{"opd"}, "budget_max": 20000},
	}}
	catalog := &catalogFake{policies: []domain.PolicyRecord{
		{ID: "no-opd", PremiumMin: 9000},
		{ID: "opd", PremiumMin: 11000, CoversOPD: true},
		{ID: "opd-restore", PremiumMin: 15000, CoversOPD: true, RestorationBenefit: true},
	}}
	uc := NewDiscoverUseCase(llm, catalog, 1)

	resp, err := uc.Discover(context.Background(), "OPD cover under 20k")
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	rec, ok := resp.(domain.RecommendResponse)
	if !ok {
		t.Fatalf("expected RecommendResponse, got %T", resp)
	}
	if rec.TotalFound != 2 || len(rec.Policies) != 1 || rec.Policies[0].ID != "opd-restore" {
		t.Fatalf("unexpected recommendation %+v", rec)
	}
}

func TestDiscoverNoResults(t *testing.T) {
	llm := &llmFake{jsonBySys: map[string]map[string]any{
		requirementsSystemPrompt: {"preferred_type": "senior_citizen"},
	}}
	uc := NewDiscoverUseCase(llm, &catalogFake{policies: []domain.PolicyRecord{{ID: "x", Type: domain.PolicyIndividual}}}, 0)

	resp, err := uc.Discover(context.Background(), "plan for my parents")
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if resp.Mode() != domain.ModeNoResults || resp.Text() != noResultsMessage {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestDiscoverRejectsEmptyQuery(t *testing.T) {
	uc := NewDiscoverUseCase(&llmFake{}, &catalogFake{}, 0)
	if _, err := uc.Discover(context.Background(), ""); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
