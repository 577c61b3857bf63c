package chunking

import (
	"regexp"

	"github.com/kirillkom/policy-advisor/internal/core/domain"
)

type sectionRule struct {
	section  domain.SectionType
	patterns []*regexp.Regexp
}

// SectionClassifier labels text blocks using ordered pattern rules. The
// first section with any matching pattern wins.
type SectionClassifier struct {
	rules []sectionRule
}

func NewSectionClassifier() *SectionClassifier {
	return &SectionClassifier{rules: defaultSectionRules()}
}

// Classify returns the first matching section or current when nothing
// matches, so unlabeled text stays pinned to the last heading seen.
func (c *SectionClassifier) Classify(text string, current domain.SectionType) domain.SectionType {
	for _, rule := range c.rules {
		for _, pattern := range rule.patterns {
			if pattern.MatchString(text) {
				return rule.section
			}
		}
	}
	if current == "" {
		return domain.SectionGeneral
	}
	return current
}

func defaultSectionRules() []sectionRule {
	return []sectionRule{
		rule(domain.SectionDefinitions,
			`Section\s+1\b`,
			`General\s+Definitions`,
			`Specific\s+Definitions`,
			`^\d+\.\s+[A-Z][a-z]+`,
		),
		rule(domain.SectionCoverage,
			`Section\s+2\b`,
			`\bBenefits?\b`,
			`\bB\d+\.\s`,
			`What\s+(is|are)\s+covered`,
			`Covered\s+Expenses`,
			`Insured\s+Benefits`,
		),
		rule(domain.SectionExclusions,
			`Section\s+3\b`,
			`\bExclusion`,
			`Code-Excl\d+`,
			`What\s+(is|are)\s+not\s+covered`,
			`General\s+Exclusions`,
			`Standard\s+Exclusions`,
			`Medical\s+Exclusions`,
			`Non-Medical\s+Exclusions`,
		),
		rule(domain.SectionWaitingPeriods,
			`Waiting\s+Period`,
			`Code-Excl0[123]`,
			`Pre.?existing\s+Diseases?\s+Waiting`,
			`30\s+Days?\s+Waiting`,
			`Specified\s+Disease.*Waiting`,
		),
		rule(domain.SectionConditions,
			`Section\s+4\b`,
			`General\s+Terms\s+and\s+Clauses`,
			`General\s+Conditions`,
			`Condition\s+Precedent`,
			`Policy\s+Conditions`,
			`Terms\s+and\s+Conditions`,
		),
		rule(domain.SectionClaims,
			`Section\s+5\b`,
			`Claims?\s+Procedure`,
			`Claims?\s+Payment`,
			`How\s+to\s+(make|file|submit)\s+a\s+[Cc]laim`,
		),
		rule(domain.SectionLimits,
			`Sub.?[Ll]imit`,
			`Room\s+Rent`,
			`Co.?[Pp]ay`,
			`Deductible`,
			`Maximum\s+(Limit|Liability)`,
			`Schedule\s+of\s+Benefits`,
		),
	}
}

func rule(section domain.SectionType, patterns ...string) sectionRule {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile(`(?im)`+p))
	}
	return sectionRule{section: section, patterns: compiled}
}
