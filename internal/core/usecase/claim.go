package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/policy-advisor/internal/core/domain"
	"github.com/kirillkom/policy-advisor/internal/core/ports"
)

const defaultTreatmentType = "hospitalization"

var claimDocumentChecklists = map[string][]string{
	"hospitalization": {
		"Duly filled claim form",
		"Discharge summary with diagnosis",
		"All original hospital bills and receipts",
		"Doctor's prescription and treatment notes",
		"Investigation reports (lab, radiology)",
		"Pre-authorization approval letter (if cashless)",
		"Policy copy and photo ID",
	},
	"surgery": {
		"Duly filled claim form",
		"Surgeon's notes and operation notes",
		"Anesthesiologist's report",
		"Discharge summary",
		"All original bills (hospital, surgeon, anesthesia)",
		"Pre-authorization approval",
		"Histopathology report (if applicable)",
		"Policy copy and photo ID",
	},
	"maternity": {
		"Duly filled claim form",
		"Delivery summary / discharge summary",
		"Pediatrician's certificate for newborn",
		"All original bills",
		"Doctor's certificate of delivery",
		"Policy copy and photo ID",
	},
	"opd": {
		"Doctor's prescription",
		"OPD receipt/bill",
		"Investigation reports (if any)",
		"Policy copy",
	},
	"critical_illness": {
		"Duly filled claim form",
		"Specialist's diagnosis certificate",
		"Histopathology / biopsy reports",
		"Hospital records confirming diagnosis",
		"Policy copy and photo ID",
	},
}

// ClaimUseCase frames a diagnosis as a coverage question against one
// uploaded wording and scores how likely a claim is to go through.
type ClaimUseCase struct {
	documents ports.UploadedPolicyStore
	advisor   ports.CoverageAdvisor
}

func NewClaimUseCase(documents ports.UploadedPolicyStore, advisor ports.CoverageAdvisor) *ClaimUseCase {
	return &ClaimUseCase{documents: documents, advisor: advisor}
}

func (uc *ClaimUseCase) CheckClaim(ctx context.Context, documentID, diagnosis, treatmentType string) (*domain.ClaimAssessment, error) {
	diagnosis = strings.TrimSpace(diagnosis)
	if diagnosis == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "check claim", fmt.Errorf("diagnosis is required"))
	}
	treatmentType = strings.ToLower(strings.TrimSpace(treatmentType))
	if treatmentType == "" {
		treatmentType = defaultTreatmentType
	}

	doc, err := uc.documents.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("load document %s: %w", documentID, err)
	}

	question := fmt.Sprintf("Is %s covered under this policy? "+
		"What are the conditions, waiting periods, sub-limits, co-pay, and required pre-authorizations? "+
		"What documents are needed to file a claim?", diagnosis)
	verdict, err := uc.advisor.SynthesizeVerdict(ctx, question, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("claim verdict: %w", err)
	}

	return &domain.ClaimAssessment{
		PolicyName:        labelOrDefault(doc.Label),
		Diagnosis:         diagnosis,
		TreatmentType:     treatmentType,
		FeasibilityScore:  ClaimFeasibility(verdict),
		RequiredDocuments: RequiredDocuments(treatmentType),
		Verdict:           verdict,
	}, nil
}

// ClaimFeasibility scores a verdict from 5 to 98. The base depends on the
// verdict; pre-authorization, sub-limit and waiting-period findings each
// deduct, and every hidden condition costs 5 more up to 20.
func ClaimFeasibility(v domain.Verdict) int {
	base := 35
	switch v.Verdict {
	case domain.VerdictCovered:
		base = 85
	case domain.VerdictPartiallyCovered:
		base = 55
	case domain.VerdictNotCovered:
		base = 10
	}

	deductions := 0
	if v.HasHidden(domain.TrapPreAuthRequired) {
		deductions += 10
	}
	if v.HasHidden(domain.TrapSubLimit) {
		deductions += 8
	}
	if v.HasHidden(domain.TrapWaitingPeriod) {
		deductions += 12
	}
	deductions += min(5*len(v.HiddenConditions), 20)

	return clampInt(base-deductions, 5, 98)
}

// RequiredDocuments returns the claim paperwork for a treatment type.
// Unknown types get the hospitalization list.
func RequiredDocuments(treatmentType string) []string {
	list, ok := claimDocumentChecklists[strings.ToLower(strings.TrimSpace(treatmentType))]
	if !ok {
		list = claimDocumentChecklists[defaultTreatmentType]
	}
	return append([]string(nil), list...)
}
