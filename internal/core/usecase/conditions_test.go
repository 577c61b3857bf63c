package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"

	"github.com/kirillkom/policy-advisor/internal/core/domain"
)

type reportParserFake struct {
	pages []domain.PageText
	err   error
	got   []byte
}

func (f *reportParserFake) ParseReport(raw []byte) ([]domain.PageText, error) {
	f.got = raw
	return f.pages, f.err
}

func TestMatchConditions(t *testing.T) {
	diabetes := domain.MedicalCondition{Name: "Type 2 Diabetes Mellitus"}
	asthma := domain.MedicalCondition{Name: "Asthma"}
	policies := []domain.PolicyRecord{
		{ID: "strict", Exclusions: []string{"Diabetes related complications for 4 years", "Chronic ASTHMA"}},
		{ID: "clean", Exclusions: []string{"Cosmetic surgery"}},
		{ID: "partial", Exclusions: []string{"Mellitus and its complications"}},
		{ID: "none"},
	}

	cases := []struct {
		name       string
		conditions []domain.MedicalCondition
		limit      int
		wantOrder  []string
		wantFlags  map[string]int
	}{
		{
			name:       "fewest flags first",
			conditions: []domain.MedicalCondition{diabetes, asthma},
			wantOrder:  []string{"clean", "none", "partial", "strict"},
			wantFlags:  map[string]int{"strict": 2, "partial": 1, "clean": 0, "none": 0},
		},
		{
			name:       "short words never match",
			conditions: []domain.MedicalCondition{{Name: "ICU for age"}},
			wantOrder:  []string{"strict", "clean", "partial", "none"},
			wantFlags:  map[string]int{"strict": 0, "clean": 0, "partial": 0, "none": 0},
		},
		{
			name:      "no conditions keeps catalog order",
			wantOrder: []string{"strict", "clean", "partial", "none"},
			wantFlags: map[string]int{"strict": 0, "clean": 0, "partial": 0, "none": 0},
		},
		{
			name:       "limit cuts the tail",
			conditions: []domain.MedicalCondition{diabetes},
			limit:      2,
			wantOrder:  []string{"clean", "none"},
			wantFlags:  map[string]int{"clean": 0, "none": 0},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := MatchConditions(tc.conditions, policies, tc.limit)
			order := make([]string, 0, len(got))
			flags := map[string]int{}
			for _, m := range got {
				order = append(order, m.Policy.ID)
				flags[m.Policy.ID] = len(m.Flags)
			}
			if diff := cmp.Diff(tc.wantOrder, order); diff != "" {
				t.Fatalf("order mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tc.wantFlags, flags); diff != "" {
				t.Fatalf("flag counts mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMatchConditionsFlagsEachConditionExclusionPair(t *testing.T) {
	got := MatchConditions(
		[]domain.MedicalCondition{{Name: "Hypertension"}},
		[]domain.PolicyRecord{{ID: "p", Exclusions: []string{"Hypertension for 2 years", "Renal failure"}}},
		0,
	)
	want := []domain.ExclusionFlag{{Condition: "Hypertension", Exclusion: "Hypertension for 2 years", Risk: exclusionRisk}}
	if diff := cmp.Diff(want, got[0].Flags); diff != "" {
		t.Fatalf("flags mismatch (-want +got):\n%s", diff)
	}
}

func TestConditionMatchReturnsTopSixOfCatalog(t *testing.T) {
	var policies []domain.PolicyRecord
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		policies = append(policies, domain.PolicyRecord{ID: id, Exclusions: []string{"Diabetes"}})
	}
	policies[7].Exclusions = nil
	uc := NewConditionExtractionUseCase(&llmFake{}, &reportParserFake{}, &catalogFake{policies: policies})

	got, err := uc.Match(context.Background(), []domain.MedicalCondition{{Name: "Diabetes"}})
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if got.TotalEvaluated != 8 || len(got.Recommended) != conditionMatchLimit {
		t.Fatalf("expected 6 of 8 policies, got %d of %d", len(got.Recommended), got.TotalEvaluated)
	}
	if got.Recommended[0].Policy.ID != "h" {
		t.Fatalf("expected the unflagged policy first, got %s", got.Recommended[0].Policy.ID)
	}
}

func TestConditionMatchPropagatesCatalogFailure(t *testing.T) {
	uc := NewConditionExtractionUseCase(&llmFake{}, &reportParserFake{}, &catalogFake{err: errors.New("db down")})
	if _, err := uc.Match(context.Background(), nil); err == nil {
		t.Fatal("expected catalog error")
	}
}

func TestExtractFromTextDecodesConditions(t *testing.T) {
	llm := &llmFake{jsonBySys: map[string]map[string]any{
		conditionExtractionSystemPrompt: {
			"summary": "Diabetic with raised blood pressure.",
			"conditions": []any{
				map[string]any{"name": "Type 2 Diabetes", "icd_hint": "E11", "type": "CHRONIC", "severity": "moderate", "explicitly_mentioned": true},
				map[string]any{"name": "Hypertension", "type": "lifestyle", "severity": "bad"},
				map[string]any{"icd_hint": "I10"},
				"noise",
			},
		},
	}}
	uc := NewConditionExtractionUseCase(llm, &reportParserFake{}, &catalogFake{})

	got, err := uc.ExtractFromText(context.Background(), "HbA1c 8.2%, BP 150/95")
	if err != nil {
		t.Fatalf("ExtractFromText() error = %v", err)
	}
	want := domain.ConditionReport{
		Summary: "Diabetic with raised blood pressure.",
		Conditions: []domain.MedicalCondition{
			{Name: "Type 2 Diabetes", ICDHint: "E11", Kind: domain.ConditionChronic, Severity: domain.ConditionModerate, ExplicitlyMentioned: true},
			{Name: "Hypertension", Kind: domain.ConditionUnknown, Severity: domain.ConditionSeverityUnknown},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("report mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractFromTextTruncatesLongReports(t *testing.T) {
	llm := &llmFake{}
	uc := NewConditionExtractionUseCase(llm, &reportParserFake{}, &catalogFake{})

	report := strings.Repeat("é", maxReportChars+500)
	got, err := uc.ExtractFromText(context.Background(), report)
	if err != nil {
		t.Fatalf("ExtractFromText() error = %v", err)
	}
	calls := llm.callsFor(conditionExtractionSystemPrompt)
	if len(calls) != 1 || utf8.RuneCountInString(calls[0].user) != maxReportChars {
		t.Fatalf("expected one call with %d characters, got %d calls", maxReportChars, len(calls))
	}
	if got.Conditions == nil || len(got.Conditions) != 0 {
		t.Fatalf("expected an empty, non-nil condition list, got %#v", got.Conditions)
	}
}

func TestExtractFromTextRejectsBlankReport(t *testing.T) {
	uc := NewConditionExtractionUseCase(&llmFake{}, &reportParserFake{}, &catalogFake{})
	if _, err := uc.ExtractFromText(context.Background(), "  \n"); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestExtractFromPDFJoinsPages(t *testing.T) {
	llm := &llmFake{}
	parser := &reportParserFake{pages: []domain.PageText{{Number: 1, Text: "Diagnosis: asthma"}, {Number: 2}, {Number: 3, Text: "Plan: inhaler"}}}
	uc := NewConditionExtractionUseCase(llm, parser, &catalogFake{})

	if _, err := uc.ExtractFromPDF(context.Background(), []byte("%PDF")); err != nil {
		t.Fatalf("ExtractFromPDF() error = %v", err)
	}
	if string(parser.got) != "%PDF" {
		t.Fatalf("parser received %q", parser.got)
	}
	calls := llm.callsFor(conditionExtractionSystemPrompt)
	if len(calls) != 1 || calls[0].user != "Diagnosis: asthma\n\nPlan: inhaler" {
		t.Fatalf("unexpected prompt: %+v", calls)
	}
}

func TestExtractFromPDFWithoutTextSkipsModel(t *testing.T) {
	llm := &llmFake{}
	uc := NewConditionExtractionUseCase(llm, &reportParserFake{pages: []domain.PageText{{Number: 1, Text: "  "}}}, &catalogFake{})

	got, err := uc.ExtractFromPDF(context.Background(), []byte("%PDF"))
	if err != nil {
		t.Fatalf("ExtractFromPDF() error = %v", err)
	}
	if got.Summary != noReadableReportSummary || len(got.Conditions) != 0 {
		t.Fatalf("unexpected report: %+v", got)
	}
	if len(llm.callsFor(conditionExtractionSystemPrompt)) != 0 {
		t.Fatal("model must not be called for an empty report")
	}
}

func TestExtractFromPDFPropagatesParseError(t *testing.T) {
	parseErr := domain.WrapError(domain.ErrInvalidInput, "parse pdf", errors.New("bad xref"))
	uc := NewConditionExtractionUseCase(&llmFake{}, &reportParserFake{err: parseErr}, &catalogFake{})
	if _, err := uc.ExtractFromPDF(context.Background(), []byte("x")); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
