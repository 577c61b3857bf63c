package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/policy-advisor/internal/core/domain"
	"github.com/kirillkom/policy-advisor/internal/core/ports"
)

type CatalogUseCase struct {
	catalog ports.CatalogStore
}

func NewCatalogUseCase(catalog ports.CatalogStore) *CatalogUseCase {
	return &CatalogUseCase{catalog: catalog}
}

// Seed upserts every policy and stops at the first failure, reporting how
// many were written.
func (uc *CatalogUseCase) Seed(ctx context.Context, policies []domain.PolicyRecord) (int, error) {
	for i, p := range policies {
		if err := uc.catalog.UpsertPolicy(ctx, p); err != nil {
			return i, fmt.Errorf("upsert policy %s: %w", p.ID, err)
		}
	}
	return len(policies), nil
}

func (uc *CatalogUseCase) List(ctx context.Context) ([]domain.PolicyRecord, error) {
	policies, err := uc.catalog.ListPolicies(ctx)
	if err != nil {
		return nil, fmt.Errorf("list catalog: %w", err)
	}
	return policies, nil
}
