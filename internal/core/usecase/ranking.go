package usecase

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kirillkom/policy-advisor/internal/core/domain"
)

const (
	baseMatchScore     = 50
	defaultPEDYears    = 4
	largeNetworkCutoff = 15000
)

type needWeight struct {
	keyword string
	points  int
	covered func(domain.PolicyRecord) bool
}

// needWeights is evaluated in this order for every requested need.
var needWeights = []needWeight{
	{keyword: "maternity", points: 20, covered: func(p domain.PolicyRecord) bool { return p.CoversMaternity }},
	{keyword: "opd", points: 10, covered: func(p domain.PolicyRecord) bool { return p.CoversOPD }},
	{keyword: "mental_health", points: 8, covered: func(p domain.PolicyRecord) bool { return p.CoversMentalHealth }},
	{keyword: "ayush", points: 5, covered: func(p domain.PolicyRecord) bool { return p.CoversAYUSH }},
	{keyword: "dental", points: 5, covered: func(p domain.PolicyRecord) bool { return p.CoversDental }},
	{keyword: "critical_illness", points: 15, covered: func(p domain.PolicyRecord) bool { return p.CoversCriticalIllness }},
}

// RankPolicies scores every policy against the requirements and returns
// them best first. Equal scores keep input order.
func RankPolicies(req domain.RequirementProfile, policies []domain.PolicyRecord) []domain.RankedPolicy {
	req = req.Normalize()
	ranked := make([]domain.RankedPolicy, 0, len(policies))
	for _, p := range policies {
		score, reasons := scorePolicy(req, p)
		ranked = append(ranked, domain.RankedPolicy{
			PolicyRecord: p,
			MatchScore:   score,
			MatchReasons: reasons,
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].MatchScore > ranked[j].MatchScore
	})
	return ranked
}

func scorePolicy(req domain.RequirementProfile, p domain.PolicyRecord) (int, []string) {
	score := baseMatchScore
	reasons := make([]string, 0, 8)

	if req.BudgetMax != nil && p.PremiumMin > 0 {
		if p.PremiumMin <= *req.BudgetMax {
			score += 15
			reasons = append(reasons, fmt.Sprintf("Within budget (from ₹%s/yr)", formatRupees(p.PremiumMin)))
		} else {
			score -= 20
			reasons = append(reasons, fmt.Sprintf("Exceeds budget (starts ₹%s/yr)", formatRupees(p.PremiumMin)))
		}
	}

	for _, need := range req.Needs {
		lowered := strings.ToLower(need)
		for _, w := range needWeights {
			if strings.Contains(lowered, w.keyword) && w.covered(p) {
				score += w.points
				reasons = append(reasons, "Covers "+need)
			}
		}
	}

	for _, condition := range req.PreexistingConditions {
		if excludesCondition(p.Exclusions, condition) {
			score -= 25
			reasons = append(reasons, fmt.Sprintf("May exclude %s (check exclusions list)", condition))
		}
	}

	pedYears := defaultPEDYears
	if p.WaitingPeriodPreexistingYears != nil {
		pedYears = *p.WaitingPeriodPreexistingYears
	}
	switch {
	case pedYears <= 2:
		score += 10
		reasons = append(reasons, fmt.Sprintf("Short pre-existing wait (%d years)", pedYears))
	case pedYears >= 4:
		score -= 10
		reasons = append(reasons, fmt.Sprintf("Long pre-existing wait (%d years)", pedYears))
	}

	if p.NetworkHospitals >= largeNetworkCutoff {
		score += 8
		reasons = append(reasons, fmt.Sprintf("Large network (%s hospitals)", formatRupees(float64(p.NetworkHospitals))))
	}

	if p.RestorationBenefit {
		score += 8
		reasons = append(reasons, "Restoration benefit included")
	}

	return clampInt(score, 0, 100), reasons
}

func excludesCondition(exclusions []string, condition string) bool {
	condition = strings.ToLower(strings.TrimSpace(condition))
	if condition == "" {
		return false
	}
	for _, excl := range exclusions {
		if strings.Contains(strings.ToLower(excl), condition) {
			return true
		}
	}
	return false
}

// HardFilter drops catalog policies that miss a mandatory requirement.
// Nothing is relaxed when the result is empty.
func HardFilter(req domain.RequirementProfile, policies []domain.PolicyRecord) []domain.PolicyRecord {
	req = req.Normalize()
	out := make([]domain.PolicyRecord, 0, len(policies))
	for _, p := range policies {
		if passesHardFilter(req, p) {
			out = append(out, p)
		}
	}
	return out
}

func passesHardFilter(req domain.RequirementProfile, p domain.PolicyRecord) bool {
	if req.BudgetMax != nil && p.PremiumMin > *req.BudgetMax {
		return false
	}
	if req.PreferredType != "" && p.Type != req.PreferredType {
		return false
	}
	if req.SumInsuredMin != nil && p.SumInsuredMax > 0 && p.SumInsuredMax < *req.SumInsuredMin {
		return false
	}
	for _, need := range req.Needs {
		lowered := strings.ToLower(need)
		for _, key := range mandatoryNeeds {
			if strings.Contains(lowered, key.keyword) && !key.covered(p) {
				return false
			}
		}
	}
	return true
}

// mandatoryNeeds are the needs a policy must cover to be recommended at
// all. AYUSH and dental only affect ranking.
var mandatoryNeeds = []needWeight{needWeights[0], needWeights[1], needWeights[2], needWeights[5]}
