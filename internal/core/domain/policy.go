package domain

type PolicyType string

const (
	PolicyIndividual      PolicyType = "individual"
	PolicyFamilyFloater   PolicyType = "family_floater"
	PolicySeniorCitizen   PolicyType = "senior_citizen"
	PolicyCriticalIllness PolicyType = "critical_illness"
)

func (t PolicyType) Valid() bool {
	switch t {
	case PolicyIndividual, PolicyFamilyFloater, PolicySeniorCitizen, PolicyCriticalIllness:
		return true
	default:
		return false
	}
}

// PolicyRecord is a structured catalog entry. Zero values mean the
// attribute is absent from the catalog.
type PolicyRecord struct {
	ID                            string     `json:"id" yaml:"id"`
	Name                          string     `json:"name" yaml:"name"`
	Insurer                       string     `json:"insurer" yaml:"insurer"`
	Type                          PolicyType `json:"type" yaml:"type"`
	PremiumMin                    float64    `json:"premium_min" yaml:"premium_min"`
	PremiumMax                    float64    `json:"premium_max" yaml:"premium_max"`
	SumInsuredMin                 float64    `json:"sum_insured_min" yaml:"sum_insured_min"`
	SumInsuredMax                 float64    `json:"sum_insured_max" yaml:"sum_insured_max"`
	WaitingPeriodPreexistingYears *int       `json:"waiting_period_preexisting_years,omitempty" yaml:"waiting_period_preexisting_years"`
	WaitingPeriodMaternityMonths  *int       `json:"waiting_period_maternity_months,omitempty" yaml:"waiting_period_maternity_months"`
	CoPayPercent                  float64    `json:"co_pay_percent" yaml:"co_pay_percent"`
	RoomRentLimit                 string     `json:"room_rent_limit" yaml:"room_rent_limit"`
	CoversMaternity               bool       `json:"covers_maternity" yaml:"covers_maternity"`
	CoversOPD                     bool       `json:"covers_opd" yaml:"covers_opd"`
	CoversMentalHealth            bool       `json:"covers_mental_health" yaml:"covers_mental_health"`
	CoversAYUSH                   bool       `json:"covers_ayush" yaml:"covers_ayush"`
	CoversDental                  bool       `json:"covers_dental" yaml:"covers_dental"`
	CoversCriticalIllness         bool       `json:"covers_critical_illness" yaml:"covers_critical_illness"`
	DaycareProcedures             bool       `json:"daycare_procedures" yaml:"daycare_procedures"`
	NCBPercent                    float64    `json:"ncb_percent" yaml:"ncb_percent"`
	RestorationBenefit            bool       `json:"restoration_benefit" yaml:"restoration_benefit"`
	NetworkHospitals              int        `json:"network_hospitals" yaml:"network_hospitals"`
	Exclusions                    []string   `json:"exclusions" yaml:"exclusions"`
}

// RequirementProfile is what the user asked for. Pointer fields are nil
// when the user did not state them.
type RequirementProfile struct {
	Needs                 []string   `json:"needs"`
	BudgetMax             *float64   `json:"budget_max,omitempty"`
	Members               *int       `json:"members,omitempty"`
	PreexistingConditions []string   `json:"preexisting_conditions"`
	PreferredType         PolicyType `json:"preferred_type,omitempty"`
	SumInsuredMin         *float64   `json:"sum_insured_min,omitempty"`
}

// Normalize replaces nil collections with empty ones.
func (p RequirementProfile) Normalize() RequirementProfile {
	if p.Needs == nil {
		p.Needs = []string{}
	}
	if p.PreexistingConditions == nil {
		p.PreexistingConditions = []string{}
	}
	if p.BudgetMax != nil && *p.BudgetMax <= 0 {
		p.BudgetMax = nil
	}
	if p.Members != nil && *p.Members <= 0 {
		p.Members = nil
	}
	if p.SumInsuredMin != nil && *p.SumInsuredMin <= 0 {
		p.SumInsuredMin = nil
	}
	if !p.PreferredType.Valid() {
		p.PreferredType = ""
	}
	return p
}

// DocumentInsights is the document-grounded verdict attached to a
// recommendation when a matching uploaded wording exists.
type DocumentInsights struct {
	Available  bool     `json:"available"`
	DocumentID string   `json:"document_id,omitempty"`
	Verdict    *Verdict `json:"verdict,omitempty"`
}

type RankedPolicy struct {
	PolicyRecord
	MatchScore   int               `json:"match_score"`
	MatchReasons []string          `json:"match_reasons"`
	Insights     *DocumentInsights `json:"rag_insights,omitempty"`
}

type ComparisonRow struct {
	Dimension string   `json:"dimension"`
	Values    []string `json:"values"`
}

type Comparison struct {
	Policies []PolicyRecord    `json:"policies"`
	Rows     []ComparisonRow   `json:"comparison_table"`
	Summary  string            `json:"ai_summary"`
	BestFor  map[string]string `json:"best_for"`
}
