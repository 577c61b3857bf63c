package domain

type CoverageVerdict string

const (
	VerdictCovered          CoverageVerdict = "COVERED"
	VerdictNotCovered       CoverageVerdict = "NOT_COVERED"
	VerdictPartiallyCovered CoverageVerdict = "PARTIALLY_COVERED"
	VerdictAmbiguous        CoverageVerdict = "AMBIGUOUS"
)

func (v CoverageVerdict) Valid() bool {
	switch v {
	case VerdictCovered, VerdictNotCovered, VerdictPartiallyCovered, VerdictAmbiguous:
		return true
	default:
		return false
	}
}

type Claimability string

const (
	ClaimabilityGreen Claimability = "GREEN"
	ClaimabilityAmber Claimability = "AMBER"
	ClaimabilityRed   Claimability = "RED"
)

func (c Claimability) Valid() bool {
	return c == ClaimabilityGreen || c == ClaimabilityAmber || c == ClaimabilityRed
}

// HiddenConditionType names a clause pattern that obstructs a claim
// which is otherwise technically covered.
type HiddenConditionType string

const (
	TrapRoomRent              HiddenConditionType = "room_rent_trap"
	TrapPreAuthRequired       HiddenConditionType = "pre_auth_required"
	TrapProportionalDeduction HiddenConditionType = "proportional_deduction"
	TrapDefinition            HiddenConditionType = "definition_trap"
	TrapWaitingPeriod         HiddenConditionType = "waiting_period"
	TrapSubLimit              HiddenConditionType = "sub_limit"
	TrapDocumentation         HiddenConditionType = "documentation"
	TrapNetworkRestriction    HiddenConditionType = "network_restriction"
)

func (t HiddenConditionType) Valid() bool {
	switch t {
	case TrapRoomRent, TrapPreAuthRequired, TrapProportionalDeduction, TrapDefinition,
		TrapWaitingPeriod, TrapSubLimit, TrapDocumentation, TrapNetworkRestriction:
		return true
	default:
		return false
	}
}

type HiddenCondition struct {
	Type        HiddenConditionType `json:"type"`
	Description string              `json:"description"`
	Impact      string              `json:"impact"`
}

type Citation struct {
	Text    string `json:"text"`
	Page    int    `json:"page"`
	Section string `json:"section"`
}

// Verdict is always fully populated; decoding fills every absent field
// with its fallback.
type Verdict struct {
	Verdict               CoverageVerdict   `json:"verdict"`
	PracticalClaimability Claimability      `json:"practical_claimability"`
	Confidence            int               `json:"confidence"`
	PlainAnswer           string            `json:"plain_answer"`
	Conditions            []string          `json:"conditions"`
	HiddenConditions      []HiddenCondition `json:"hidden_conditions"`
	Citations             []Citation        `json:"citations"`
	Recommendation        string            `json:"recommendation"`
}

func (v Verdict) HasHidden(t HiddenConditionType) bool {
	for _, hc := range v.HiddenConditions {
		if hc.Type == t {
			return true
		}
	}
	return false
}

type ClaimAssessment struct {
	PolicyName        string   `json:"policy_name"`
	Diagnosis         string   `json:"diagnosis"`
	TreatmentType     string   `json:"treatment_type"`
	FeasibilityScore  int      `json:"claim_feasibility_score"`
	RequiredDocuments []string `json:"required_documents"`
	Verdict
}
