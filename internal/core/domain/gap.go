package domain

type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
	SeverityLow    Severity = "LOW"
)

// Rank orders severities for sorting; unknown values sort last.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 0
	case SeverityMedium:
		return 1
	case SeverityLow:
		return 2
	default:
		return 3
	}
}

type GapFinding struct {
	Feature        string   `json:"feature"`
	Label          string   `json:"label"`
	Severity       Severity `json:"severity"`
	Description    string   `json:"description"`
	Recommendation string   `json:"recommendation"`
}

type GapAnalysisType string

const (
	GapAnalysisCatalog  GapAnalysisType = "catalog_based"
	GapAnalysisDocument GapAnalysisType = "rag_based"
)

type GapReport struct {
	PolicyName       string            `json:"policy_name"`
	Insurer          string            `json:"insurer,omitempty"`
	AnalysisType     GapAnalysisType   `json:"analysis_type"`
	Gaps             []GapFinding      `json:"gaps"`
	HighRiskCount    int               `json:"high_risk_count"`
	Summary          string            `json:"ai_summary,omitempty"`
	HiddenConditions []HiddenCondition `json:"hidden_conditions,omitempty"`
	Recommendation   string            `json:"recommendation,omitempty"`
}
