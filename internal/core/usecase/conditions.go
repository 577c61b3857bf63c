package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/policy-advisor/internal/core/domain"
	"github.com/kirillkom/policy-advisor/internal/core/ports"
)

const (
	maxReportChars         = 8000
	minConditionKeywordLen = 4
	conditionMatchLimit    = 6

	exclusionRisk           = "This condition may be excluded or have extended waiting period"
	noReadableReportSummary = "No readable text found in PDF"
)

// ConditionExtractionUseCase reads medical conditions out of a report and
// checks them against catalog exclusions.
type ConditionExtractionUseCase struct {
	llm     ports.LanguageModel
	parser  ports.ReportParser
	catalog ports.CatalogStore
}

func NewConditionExtractionUseCase(llm ports.LanguageModel, parser ports.ReportParser, catalog ports.CatalogStore) *ConditionExtractionUseCase {
	return &ConditionExtractionUseCase{llm: llm, parser: parser, catalog: catalog}
}

// ExtractFromText asks the model for the conditions in a free-text report.
// Reports longer than 8000 characters are cut to that length.
func (uc *ConditionExtractionUseCase) ExtractFromText(ctx context.Context, text string) (domain.ConditionReport, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.ConditionReport{}, domain.WrapError(domain.ErrInvalidInput, "extract conditions", fmt.Errorf("empty report"))
	}
	raw, err := uc.llm.CompleteJSON(ctx, conditionExtractionSystemPrompt, truncateRunes(text, maxReportChars))
	if err != nil {
		return domain.ConditionReport{}, fmt.Errorf("complete condition extraction: %w", err)
	}
	return decodeConditionReport(raw), nil
}

// ExtractFromPDF parses a report PDF and extracts conditions from its
// text. A PDF without any text yields an empty report, not an error.
func (uc *ConditionExtractionUseCase) ExtractFromPDF(ctx context.Context, raw []byte) (domain.ConditionReport, error) {
	pages, err := uc.parser.ParseReport(raw)
	if err != nil {
		return domain.ConditionReport{}, fmt.Errorf("parse report: %w", err)
	}
	var b strings.Builder
	for _, page := range pages {
		b.WriteString(page.Text)
		b.WriteByte('\n')
	}
	if strings.TrimSpace(b.String()) == "" {
		return domain.ConditionReport{Conditions: []domain.MedicalCondition{}, Summary: noReadableReportSummary}, nil
	}
	return uc.ExtractFromText(ctx, b.String())
}

// Match evaluates every catalog policy against the conditions and returns
// the six with the fewest exclusion flags.
func (uc *ConditionExtractionUseCase) Match(ctx context.Context, conditions []domain.MedicalCondition) (domain.ConditionMatchResult, error) {
	policies, err := uc.catalog.ListPolicies(ctx)
	if err != nil {
		return domain.ConditionMatchResult{}, fmt.Errorf("list catalog: %w", err)
	}
	if conditions == nil {
		conditions = []domain.MedicalCondition{}
	}
	return domain.ConditionMatchResult{
		Conditions:     conditions,
		Recommended:    MatchConditions(conditions, policies, conditionMatchLimit),
		TotalEvaluated: len(policies),
	}, nil
}

// MatchConditions flags, per policy, each (condition, exclusion) pair where
// a word of the condition name longer than three characters occurs in the
// exclusion text. Policies are ordered by ascending flag count, ties kept
// in catalog order, and cut to limit when limit is positive.
func MatchConditions(conditions []domain.MedicalCondition, policies []domain.PolicyRecord, limit int) []domain.ConditionMatch {
	keywords := make([][]string, len(conditions))
	for i, c := range conditions {
		for _, word := range strings.Fields(strings.ToLower(c.Name)) {
			if utf8.RuneCountInString(word) >= minConditionKeywordLen {
				keywords[i] = append(keywords[i], word)
			}
		}
	}

	matches := make([]domain.ConditionMatch, 0, len(policies))
	for _, policy := range policies {
		flags := []domain.ExclusionFlag{}
		for i, c := range conditions {
			for _, exclusion := range policy.Exclusions {
				if containsAny(strings.ToLower(exclusion), keywords[i]) {
					flags = append(flags, domain.ExclusionFlag{Condition: c.Name, Exclusion: exclusion, Risk: exclusionRisk})
				}
			}
		}
		matches = append(matches, domain.ConditionMatch{Policy: policy, Flags: flags})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return len(matches[i].Flags) < len(matches[j].Flags)
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

func decodeConditionReport(raw map[string]any) domain.ConditionReport {
	report := domain.ConditionReport{Conditions: []domain.MedicalCondition{}}
	report.Summary, _ = stringField(raw, "summary")
	for _, item := range objectSlice(raw, "conditions") {
		name, ok := stringField(item, "name")
		if !ok {
			continue
		}
		c := domain.MedicalCondition{Name: name}
		kind, _ := stringField(item, "type")
		c.Kind = domain.ConditionKind(strings.ToLower(kind))
		severity, _ := stringField(item, "severity")
		c.Severity = domain.ConditionSeverity(strings.ToLower(severity))
		c.ICDHint, _ = stringField(item, "icd_hint")
		c.ExplicitlyMentioned, _ = boolField(item, "explicitly_mentioned")
		if !c.Kind.Valid() {
			c.Kind = domain.ConditionUnknown
		}
		if !c.Severity.Valid() {
			c.Severity = domain.ConditionSeverityUnknown
		}
		report.Conditions = append(report.Conditions, c)
	}
	return report
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
