package usecase

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kirillkom/policy-advisor/internal/core/domain"
)

func TestRankPoliciesReasonOrderFollowsAdjustmentOrder(t *testing.T) {
	policy := domain.PolicyRecord{
		ID:                            "a",
		PremiumMin:                    12000,
		CoversMaternity:               true,
		CoversOPD:                     true,
		Exclusions:                    []string{"Diabetes related complications"},
		WaitingPeriodPreexistingYears: intPtr(2),
		NetworkHospitals:              16500,
		RestorationBenefit:            true,
	}
	req := domain.RequirementProfile{
		Needs:                 []string{"opd", "maternity"},
		BudgetMax:             floatPtr(15000),
		PreexistingConditions: []string{"Diabetes"},
	}

	ranked := RankPolicies(req, []domain.PolicyRecord{policy})

	want := []string{
		"Within budget (from ₹12,000/yr)",
		"Covers opd",
		"Covers maternity",
		"May exclude Diabetes (check exclusions list)",
		"Short pre-existing wait (2 years)",
		"Large network (16,500 hospitals)",
		"Restoration benefit included",
	}
	if diff := cmp.Diff(want, ranked[0].MatchReasons); diff != "" {
		t.Fatalf("reason order mismatch (-want +got):\n%s", diff)
	}
	// 50 + 15 + 10 + 20 - 25 + 10 + 8 + 8
	if ranked[0].MatchScore != 96 {
		t.Fatalf("expected score 96, got %d", ranked[0].MatchScore)
	}
}

func TestRankPoliciesScoreIsClamped(t *testing.T) {
	generous := domain.PolicyRecord{
		ID:                            "max",
		PremiumMin:                    1000,
		CoversMaternity:               true,
		CoversOPD:                     true,
		CoversMentalHealth:            true,
		CoversCriticalIllness:         true,
		WaitingPeriodPreexistingYears: intPtr(1),
		NetworkHospitals:              20000,
		RestorationBenefit:            true,
	}
	harsh := domain.PolicyRecord{
		ID:         "min",
		PremiumMin: 90000,
		Exclusions: []string{"asthma", "diabetes", "hypertension"},
	}
	req := domain.RequirementProfile{
		Needs:                 []string{"maternity", "opd", "mental_health", "critical_illness"},
		BudgetMax:             floatPtr(5000),
		PreexistingConditions: []string{"asthma", "diabetes", "hypertension"},
	}

	ranked := RankPolicies(req, []domain.PolicyRecord{harsh, generous})
	if ranked[0].ID != "max" || ranked[0].MatchScore != 100 {
		t.Fatalf("expected clamped top score 100, got %+v", ranked[0])
	}
	if ranked[1].ID != "min" || ranked[1].MatchScore != 0 {
		t.Fatalf("expected clamped bottom score 0, got %+v", ranked[1])
	}
}

func TestRankPoliciesMissingWaitDefaultsToLong(t *testing.T) {
	ranked := RankPolicies(domain.RequirementProfile{}, []domain.PolicyRecord{{ID: "x"}})
	if diff := cmp.Diff([]string{"Long pre-existing wait (4 years)"}, ranked[0].MatchReasons); diff != "" {
		t.Fatalf("unexpected reasons:\n%s", diff)
	}
	if ranked[0].MatchScore != 40 {
		t.Fatalf("expected 40, got %d", ranked[0].MatchScore)
	}
}

func TestRankPoliciesStableOnTies(t *testing.T) {
	policies := []domain.PolicyRecord{{ID: "first"}, {ID: "second"}, {ID: "third", RestorationBenefit: true}}
	ranked := RankPolicies(domain.RequirementProfile{}, policies)

	got := []string{ranked[0].ID, ranked[1].ID, ranked[2].ID}
	if diff := cmp.Diff([]string{"third", "first", "second"}, got); diff != "" {
		t.Fatalf("unexpected order:\n%s", diff)
	}
}

func TestHardFilter(t *testing.T) {
	policies := []domain.PolicyRecord{
		{ID: "cheap-no-maternity", PremiumMin: 8000, Type: domain.PolicyFamilyFloater},
		{ID: "cheap-maternity", PremiumMin: 9000, Type: domain.PolicyFamilyFloater, CoversMaternity: true, SumInsuredMax: 1000000},
		{ID: "pricey-maternity", PremiumMin: 30000, Type: domain.PolicyFamilyFloater, CoversMaternity: true},
		{ID: "individual", PremiumMin: 7000, Type: domain.PolicyIndividual, CoversMaternity: true},
		{ID: "small-cover", PremiumMin: 7000, Type: domain.PolicyFamilyFloater, CoversMaternity: true, SumInsuredMax: 300000},
	}

	tests := []struct {
		name string
		req  domain.RequirementProfile
		want []string
	}{
		{
			name: "no requirements keeps everything",
			want: []string{"cheap-no-maternity", "cheap-maternity", "pricey-maternity", "individual", "small-cover"},
		},
		{
			name: "budget type maternity and sum insured",
			req: domain.RequirementProfile{
				Needs:         []string{"maternity"},
				BudgetMax:     floatPtr(10000),
				PreferredType: domain.PolicyFamilyFloater,
				SumInsuredMin: floatPtr(500000),
			},
			want: []string{"cheap-maternity"},
		},
		{
			name: "dental is not mandatory",
			req:  domain.RequirementProfile{Needs: []string{"dental"}, BudgetMax: floatPtr(8000)},
			want: []string{"cheap-no-maternity", "individual", "small-cover"},
		},
		{
			name: "impossible budget yields nothing",
			req:  domain.RequirementProfile{BudgetMax: floatPtr(100)},
			want: []string{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := HardFilter(tc.req, policies)
			ids := make([]string, 0, len(got))
			for _, p := range got {
				ids = append(ids, p.ID)
			}
			if diff := cmp.Diff(tc.want, ids); diff != "" {
				t.Fatalf("filter mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeRequirementProfile(t *testing.T) {
	got := decodeRequirementProfile(map[string]any{
		"needs":                  []any{"Maternity", " ", "OPD"},
		"budget_max":             "₹18,000",
		"members":                3.0,
		"preexisting_conditions": "diabetes",
		"preferred_type":         "Family_Floater",
		"sum_insured_min":        0,
	})
	want := domain.RequirementProfile{
		Needs:                 []string{"maternity", "opd"},
		BudgetMax:             floatPtr(18000),
		Members:               intPtr(3),
		PreexistingConditions: []string{"diabetes"},
		PreferredType:         domain.PolicyFamilyFloater,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("decoded profile mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeRequirementProfileClampsMembers(t *testing.T) {
	for raw, want := range map[float64]int{1e300: maxMembers, 2.4: 2} {
		got := decodeRequirementProfile(map[string]any{"members": raw})
		if got.Members == nil || *got.Members != want {
			t.Fatalf("members %v: expected %d, got %v", raw, want, got.Members)
		}
	}
	if got := decodeRequirementProfile(map[string]any{"members": -1e300}); got.Members != nil {
		t.Fatalf("expected negative members to be dropped, got %d", *got.Members)
	}
}
