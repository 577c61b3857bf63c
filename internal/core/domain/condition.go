package domain

type ConditionKind string

const (
	ConditionChronic ConditionKind = "chronic"
	ConditionAcute   ConditionKind = "acute"
	ConditionGenetic ConditionKind = "genetic"
	ConditionUnknown ConditionKind = "unknown"
)

func (k ConditionKind) Valid() bool {
	switch k {
	case ConditionChronic, ConditionAcute, ConditionGenetic, ConditionUnknown:
		return true
	default:
		return false
	}
}

type ConditionSeverity string

const (
	ConditionMild            ConditionSeverity = "mild"
	ConditionModerate        ConditionSeverity = "moderate"
	ConditionSevere          ConditionSeverity = "severe"
	ConditionSeverityUnknown ConditionSeverity = "unknown"
)

func (s ConditionSeverity) Valid() bool {
	switch s {
	case ConditionMild, ConditionModerate, ConditionSevere, ConditionSeverityUnknown:
		return true
	default:
		return false
	}
}

// MedicalCondition is a diagnosis or health risk read from a medical
// report. ICDHint is a best-effort code prefix and may be empty.
type MedicalCondition struct {
	Name                string            `json:"name"`
	ICDHint             string            `json:"icd_hint,omitempty"`
	Kind                ConditionKind     `json:"type"`
	Severity            ConditionSeverity `json:"severity"`
	ExplicitlyMentioned bool              `json:"explicitly_mentioned"`
}

type ConditionReport struct {
	Conditions []MedicalCondition `json:"conditions"`
	Summary    string             `json:"summary"`
}

// ExclusionFlag ties a condition to a catalog exclusion that may deny or
// delay its claims.
type ExclusionFlag struct {
	Condition string `json:"condition"`
	Exclusion string `json:"exclusion"`
	Risk      string `json:"risk"`
}

type ConditionMatch struct {
	Policy PolicyRecord    `json:"policy"`
	Flags  []ExclusionFlag `json:"exclusion_flags"`
}

type ConditionMatchResult struct {
	Conditions     []MedicalCondition `json:"extracted_conditions"`
	Recommended    []ConditionMatch   `json:"recommended_policies"`
	TotalEvaluated int                `json:"total_evaluated"`
}
