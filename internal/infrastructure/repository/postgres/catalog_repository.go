package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/policy-advisor/internal/core/domain"
)

// CatalogRepository keeps structured catalog policies. Scalar columns
// back the lookups; the full record lives in attributes.
type CatalogRepository struct {
	db *sql.DB
}

func NewCatalogRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) ListPolicies(ctx context.Context) ([]domain.PolicyRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, attributes FROM catalog_policies ORDER BY premium_min ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list catalog policies: %w", err)
	}
	defer rows.Close()

	out := make([]domain.PolicyRecord, 0)
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan catalog policy: %w", err)
		}
		p, err := decodePolicy(id, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate catalog policies: %w", err)
	}
	return out, nil
}

func (r *CatalogRepository) GetPolicy(ctx context.Context, id string) (*domain.PolicyRecord, error) {
	var raw []byte
	err := r.db.QueryRowContext(ctx, `SELECT attributes FROM catalog_policies WHERE id = $1`, id).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, wrapNotFound(domain.ErrPolicyNotFound, "get catalog policy", id)
		}
		return nil, fmt.Errorf("scan catalog policy: %w", err)
	}
	p, err := decodePolicy(id, raw)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *CatalogRepository) UpsertPolicy(ctx context.Context, policy domain.PolicyRecord) error {
	if strings.TrimSpace(policy.ID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "upsert catalog policy", fmt.Errorf("policy id is required"))
	}
	if policy.Exclusions == nil {
		policy.Exclusions = []string{}
	}
	raw, err := json.Marshal(policy)
	if err != nil {
		return fmt.Errorf("marshal catalog policy: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO catalog_policies (id, name, insurer, policy_type, premium_min, attributes, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE
SET name = EXCLUDED.name, insurer = EXCLUDED.insurer, policy_type = EXCLUDED.policy_type,
	premium_min = EXCLUDED.premium_min, attributes = EXCLUDED.attributes, updated_at = EXCLUDED.updated_at
`, policy.ID, policy.Name, policy.Insurer, string(policy.Type), policy.PremiumMin, raw, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert catalog policy: %w", err)
	}
	return nil
}

func decodePolicy(id string, raw []byte) (domain.PolicyRecord, error) {
	var p domain.PolicyRecord
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.PolicyRecord{}, fmt.Errorf("unmarshal catalog policy %s: %w", id, err)
	}
	p.ID = id
	if p.Exclusions == nil {
		p.Exclusions = []string{}
	}
	return p, nil
}
