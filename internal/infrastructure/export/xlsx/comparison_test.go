package xlsx

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/policy-advisor/internal/core/domain"
)

func TestWriteComparisonProducesReadableWorkbook(t *testing.T) {
	cmp := &domain.Comparison{
		Policies: []domain.PolicyRecord{{Name: "Star Comprehensive"}, {Name: "Care Supreme"}},
		Rows: []domain.ComparisonRow{
			{Dimension: "Insurer", Values: []string{"Star Health", "Care Health"}},
			{Dimension: "Maternity Coverage", Values: []string{"Yes", "No"}},
		},
		Summary: "Star suits young families; Care is cheaper.",
		BestFor: map[string]string{"Care Supreme": "Budget buyers", "Star Comprehensive": "Families planning a child"},
	}

	var buf bytes.Buffer
	if err := WriteComparison(&buf, cmp); err != nil {
		t.Fatalf("WriteComparison() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(comparisonSheet)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[0][1] != "Star Comprehensive" || rows[2][0] != "Maternity Coverage" || rows[2][2] != "No" {
		t.Fatalf("unexpected table: %v", rows)
	}

	summary, err := f.GetCellValue(summarySheet, "B1")
	if err != nil || summary != cmp.Summary {
		t.Fatalf("summary = %q, %v", summary, err)
	}
	first, _ := f.GetCellValue(summarySheet, "A4")
	if first != "Care Supreme" {
		t.Fatalf("best-for rows should be sorted, got %q first", first)
	}
}

func TestWriteComparisonRejectsEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteComparison(&buf, &domain.Comparison{}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
