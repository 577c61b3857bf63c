package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kirillkom/policy-advisor/internal/core/domain"
	"github.com/kirillkom/policy-advisor/internal/core/ports"
)

type coverageCheck struct {
	feature     string
	label       string
	severity    domain.Severity
	description string
	present     func(domain.PolicyRecord) bool
}

var coverageChecklist = []coverageCheck{
	{
		feature: "maternity", label: "Maternity benefit", severity: domain.SeverityHigh,
		description: "Maternity hospitalization is a common need. Without this, deliveries are fully out-of-pocket.",
		present:     func(p domain.PolicyRecord) bool { return p.CoversMaternity },
	},
	{
		feature: "opd", label: "OPD (outpatient) coverage", severity: domain.SeverityMedium,
		description: "Regular doctor visits and prescriptions are not covered. Adds significant annual expense.",
		present:     func(p domain.PolicyRecord) bool { return p.CoversOPD },
	},
	{
		feature: "mental_health", label: "Mental health coverage", severity: domain.SeverityMedium,
		description: "Psychiatric treatment not covered. IRDAI mandates this but many policies have sub-limits.",
		present:     func(p domain.PolicyRecord) bool { return p.CoversMentalHealth },
	},
	{
		feature: "ayush", label: "AYUSH (Ayurveda, Yoga, Unani, Siddha, Homeopathy)", severity: domain.SeverityLow,
		description: "Alternative medicine treatments not covered.",
		present:     func(p domain.PolicyRecord) bool { return p.CoversAYUSH },
	},
	{
		feature: "dental", label: "Dental treatment", severity: domain.SeverityLow,
		description: "Dental procedures (except accident-related) not covered.",
		present:     func(p domain.PolicyRecord) bool { return p.CoversDental },
	},
	{
		feature: "restoration", label: "Sum insured restoration", severity: domain.SeverityHigh,
		description: "If SI is exhausted mid-year, no coverage remains for the rest of the year.",
		present:     func(p domain.PolicyRecord) bool { return p.RestorationBenefit },
	},
	{
		feature: "ncb", label: "No Claim Bonus", severity: domain.SeverityMedium,
		description: "Policy does not reward claim-free years with coverage increase.",
		present:     func(p domain.PolicyRecord) bool { return p.NCBPercent > 0 },
	},
}

// referenceClaim is the claim size used to illustrate co-pay cost.
const referenceClaim = 500000

// ScanGaps compares a catalog policy against the fixed checklist and the
// waiting-period, room-rent and co-pay rules. Output is sorted by
// severity, stable within a severity.
func ScanGaps(p domain.PolicyRecord) []domain.GapFinding {
	gaps := make([]domain.GapFinding, 0, len(coverageChecklist)+3)
	for _, check := range coverageChecklist {
		if check.present(p) {
			continue
		}
		gaps = append(gaps, domain.GapFinding{
			Feature:        check.feature,
			Label:          check.label,
			Severity:       check.severity,
			Description:    check.description,
			Recommendation: fmt.Sprintf("Consider adding %s as a rider or switching to a plan that includes it.", check.label),
		})
	}

	if p.WaitingPeriodPreexistingYears != nil && *p.WaitingPeriodPreexistingYears >= 4 {
		years := *p.WaitingPeriodPreexistingYears
		gaps = append(gaps, domain.GapFinding{
			Feature:        "long_ped_wait",
			Label:          "Very long pre-existing disease waiting period",
			Severity:       domain.SeverityHigh,
			Description:    fmt.Sprintf("Pre-existing conditions have a %d-year waiting period. Any known conditions won't be covered for %d years.", years, years),
			Recommendation: "Look for policies with reduced PED waiting period (2 years) or portability options.",
		})
	}

	if strings.Contains(p.RoomRentLimit, "%") {
		gaps = append(gaps, domain.GapFinding{
			Feature:        "room_rent_cap",
			Label:          "Room rent cap (proportional deduction risk)",
			Severity:       domain.SeverityHigh,
			Description:    fmt.Sprintf("Room rent is capped at %s. If you choose a higher-category room, ALL charges (surgeon, ICU, nursing) are proportionally reduced.", p.RoomRentLimit),
			Recommendation: "Choose a room within the policy limit, or upgrade to a plan with no room rent restriction.",
		})
	}

	if p.CoPayPercent > 0 {
		gaps = append(gaps, domain.GapFinding{
			Feature:  "co_pay",
			Label:    fmt.Sprintf("Co-payment of %s%%", formatNumber(p.CoPayPercent)),
			Severity: domain.SeverityMedium,
			Description: fmt.Sprintf("You pay %s%% of every claim out-of-pocket. On a ₹5L claim, that's ₹%s.",
				formatNumber(p.CoPayPercent), formatRupees(p.CoPayPercent*referenceClaim/100)),
			Recommendation: "Consider a plan with 0% co-pay unless the premium saving justifies the risk.",
		})
	}

	sort.SliceStable(gaps, func(i, j int) bool {
		return gaps[i].Severity.Rank() < gaps[j].Severity.Rank()
	})
	return gaps
}

// GapAnalysisUseCase resolves a policy id against the catalog first and
// falls back to a document-grounded gap question for uploaded wordings.
type GapAnalysisUseCase struct {
	catalog   ports.CatalogStore
	documents ports.UploadedPolicyStore
	advisor   ports.CoverageAdvisor
}

func NewGapAnalysisUseCase(catalog ports.CatalogStore, documents ports.UploadedPolicyStore, advisor ports.CoverageAdvisor) *GapAnalysisUseCase {
	return &GapAnalysisUseCase{catalog: catalog, documents: documents, advisor: advisor}
}

const documentGapQuestion = "What coverage gaps does this policy have? " +
	"Does it lack maternity, OPD, mental health, dental, restoration, or NCB benefits? " +
	"Are there any high waiting periods, room rent caps, or co-pay requirements?"

func (uc *GapAnalysisUseCase) Analyze(ctx context.Context, policyID string) (*domain.GapReport, error) {
	policy, err := uc.catalog.GetPolicy(ctx, policyID)
	if err == nil {
		gaps := ScanGaps(*policy)
		report := &domain.GapReport{
			PolicyName:   policy.Name,
			Insurer:      policy.Insurer,
			AnalysisType: domain.GapAnalysisCatalog,
			Gaps:         gaps,
		}
		for _, g := range gaps {
			if g.Severity == domain.SeverityHigh {
				report.HighRiskCount++
			}
		}
		return report, nil
	}
	if !domain.IsKind(err, domain.ErrPolicyNotFound) {
		return nil, fmt.Errorf("load catalog policy: %w", err)
	}

	doc, err := uc.documents.GetByID(ctx, policyID)
	if err != nil {
		if domain.IsKind(err, domain.ErrDocumentNotFound) {
			return nil, domain.WrapError(domain.ErrPolicyNotFound, "gap analysis", fmt.Errorf("no catalog or uploaded policy %q", policyID))
		}
		return nil, fmt.Errorf("load uploaded policy: %w", err)
	}

	verdict, err := uc.advisor.SynthesizeVerdict(ctx, documentGapQuestion, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("document gap analysis: %w", err)
	}
	return &domain.GapReport{
		PolicyName:       labelOrDefault(doc.Label),
		Insurer:          doc.Insurer,
		AnalysisType:     domain.GapAnalysisDocument,
		Gaps:             []domain.GapFinding{},
		Summary:          verdict.PlainAnswer,
		HiddenConditions: verdict.HiddenConditions,
		Recommendation:   verdict.Recommendation,
	}, nil
}

func labelOrDefault(label string) string {
	if strings.TrimSpace(label) == "" {
		return "Unknown Policy"
	}
	return label
}
