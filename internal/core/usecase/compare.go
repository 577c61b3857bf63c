package usecase

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/kirillkom/policy-advisor/internal/core/domain"
	"github.com/kirillkom/policy-advisor/internal/core/ports"
)

const (
	minComparePolicies = 2
	maxComparePolicies = 3
	missingValue       = "-"
)

type comparisonDimension struct {
	label string
	value func(domain.PolicyRecord) string
}

var comparisonDimensions = []comparisonDimension{
	{"Insurer", func(p domain.PolicyRecord) string { return textOrMissing(p.Insurer) }},
	{"Plan Type", func(p domain.PolicyRecord) string { return textOrMissing(string(p.Type)) }},
	{"Min Premium (₹/yr)", func(p domain.PolicyRecord) string { return formatRupees(p.PremiumMin) }},
	{"Max Premium (₹/yr)", func(p domain.PolicyRecord) string { return formatRupees(p.PremiumMax) }},
	{"Min Sum Insured (₹)", func(p domain.PolicyRecord) string { return formatRupees(p.SumInsuredMin) }},
	{"Max Sum Insured (₹)", func(p domain.PolicyRecord) string { return formatRupees(p.SumInsuredMax) }},
	{"Pre-existing Wait (years)", func(p domain.PolicyRecord) string { return intOrMissing(p.WaitingPeriodPreexistingYears) }},
	{"Maternity Wait (months)", func(p domain.PolicyRecord) string { return intOrMissing(p.WaitingPeriodMaternityMonths) }},
	{"Co-pay (%)", func(p domain.PolicyRecord) string { return formatNumber(p.CoPayPercent) }},
	{"Room Rent Limit", func(p domain.PolicyRecord) string { return textOrMissing(p.RoomRentLimit) }},
	{"Maternity Coverage", func(p domain.PolicyRecord) string { return yesNo(p.CoversMaternity) }},
	{"OPD Coverage", func(p domain.PolicyRecord) string { return yesNo(p.CoversOPD) }},
	{"Mental Health", func(p domain.PolicyRecord) string { return yesNo(p.CoversMentalHealth) }},
	{"AYUSH Coverage", func(p domain.PolicyRecord) string { return yesNo(p.CoversAYUSH) }},
	{"Dental Coverage", func(p domain.PolicyRecord) string { return yesNo(p.CoversDental) }},
	{"Daycare Procedures", func(p domain.PolicyRecord) string { return yesNo(p.DaycareProcedures) }},
	{"No Claim Bonus (%)", func(p domain.PolicyRecord) string { return formatNumber(p.NCBPercent) }},
	{"Restoration Benefit", func(p domain.PolicyRecord) string { return yesNo(p.RestorationBenefit) }},
	{"Network Hospitals", func(p domain.PolicyRecord) string { return formatRupees(float64(p.NetworkHospitals)) }},
}

// CompareUseCase builds a side-by-side table of two or three catalog
// policies with a model-written summary.
type CompareUseCase struct {
	catalog ports.CatalogStore
	llm     ports.LanguageModel
}

func NewCompareUseCase(catalog ports.CatalogStore, llm ports.LanguageModel) *CompareUseCase {
	return &CompareUseCase{catalog: catalog, llm: llm}
}

// Compare ignores ids past the third and unknown ids; fewer than two
// resolved policies is an input error.
func (uc *CompareUseCase) Compare(ctx context.Context, policyIDs []string) (*domain.Comparison, error) {
	if len(policyIDs) < minComparePolicies {
		return nil, domain.WrapError(domain.ErrInvalidInput, "compare policies", fmt.Errorf("at least %d policy ids are required", minComparePolicies))
	}
	if len(policyIDs) > maxComparePolicies {
		policyIDs = policyIDs[:maxComparePolicies]
	}

	policies := make([]domain.PolicyRecord, 0, len(policyIDs))
	for _, id := range policyIDs {
		p, err := uc.catalog.GetPolicy(ctx, id)
		if err != nil {
			if domain.IsKind(err, domain.ErrPolicyNotFound) {
				continue
			}
			return nil, fmt.Errorf("load policy %s: %w", id, err)
		}
		policies = append(policies, *p)
	}
	if len(policies) < minComparePolicies {
		return nil, domain.WrapError(domain.ErrPolicyNotFound, "compare policies", fmt.Errorf("could not find the requested policies"))
	}

	rows := make([]domain.ComparisonRow, 0, len(comparisonDimensions))
	for _, dim := range comparisonDimensions {
		row := domain.ComparisonRow{Dimension: dim.label, Values: make([]string, 0, len(policies))}
		for _, p := range policies {
			row.Values = append(row.Values, dim.value(p))
		}
		rows = append(rows, row)
	}

	raw, err := uc.llm.CompleteJSON(ctx, comparisonSystemPrompt, "Compare these policies:\n"+comparisonBrief(policies))
	if err != nil {
		return nil, fmt.Errorf("complete comparison summary: %w", err)
	}
	summary, _ := stringField(raw, "summary")
	bestFor := map[string]string{}
	for name, reason := range objectField(raw, "best_for") {
		if s, ok := reason.(string); ok && strings.TrimSpace(s) != "" {
			bestFor[name] = strings.TrimSpace(s)
		}
	}

	return &domain.Comparison{
		Policies: policies,
		Rows:     rows,
		Summary:  summary,
		BestFor:  bestFor,
	}, nil
}

func comparisonBrief(policies []domain.PolicyRecord) string {
	parts := make([]string, 0, len(policies))
	for _, p := range policies {
		pedWait := "?"
		if p.WaitingPeriodPreexistingYears != nil {
			pedWait = strconv.Itoa(*p.WaitingPeriodPreexistingYears)
		}
		parts = append(parts, fmt.Sprintf(
			"Policy: %s (%s)\nPremium: ₹%s-%s/yr | PED wait: %s yrs | Maternity: %s | OPD: %s | Network: %s hospitals | Restoration: %s",
			p.Name, p.Insurer,
			formatRupees(p.PremiumMin), formatRupees(p.PremiumMax),
			pedWait, yesNo(p.CoversMaternity), yesNo(p.CoversOPD),
			formatRupees(float64(p.NetworkHospitals)), yesNo(p.RestorationBenefit),
		))
	}
	return strings.Join(parts, "\n\n")
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

func intOrMissing(v *int) string {
	if v == nil {
		return missingValue
	}
	return strconv.Itoa(*v)
}

func textOrMissing(v string) string {
	if strings.TrimSpace(v) == "" {
		return missingValue
	}
	return v
}
