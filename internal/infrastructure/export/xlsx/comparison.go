package xlsx

import (
	"fmt"
	"io"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/policy-advisor/internal/core/domain"
)

const (
	comparisonSheet = "Comparison"
	summarySheet    = "Summary"
)

// WriteComparison renders a policy comparison as a workbook: one sheet
// with the dimension table, one with the model summary and best-for notes.
func WriteComparison(w io.Writer, c *domain.Comparison) error {
	if c == nil || len(c.Policies) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "export comparison", fmt.Errorf("comparison has no policies"))
	}

	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", comparisonSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	header := []any{"Dimension"}
	for _, p := range c.Policies {
		header = append(header, p.Name)
	}
	if err := f.SetSheetRow(comparisonSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return fmt.Errorf("header range: %w", err)
	}
	if err := f.SetCellStyle(comparisonSheet, "A1", lastCol+"1", bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, row := range c.Rows {
		values := make([]any, 0, len(row.Values)+1)
		values = append(values, row.Dimension)
		for _, v := range row.Values {
			values = append(values, v)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("row %d cell: %w", i, err)
		}
		if err := f.SetSheetRow(comparisonSheet, cell, &values); err != nil {
			return fmt.Errorf("write row %q: %w", row.Dimension, err)
		}
	}
	if err := f.SetColWidth(comparisonSheet, "A", "A", 28); err != nil {
		return fmt.Errorf("size dimension column: %w", err)
	}
	if err := f.SetColWidth(comparisonSheet, "B", lastCol, 24); err != nil {
		return fmt.Errorf("size policy columns: %w", err)
	}

	if err := writeSummary(f, c, bold); err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, c *domain.Comparison, bold int) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}
	if err := f.SetCellValue(summarySheet, "A1", "Summary"); err != nil {
		return err
	}
	if err := f.SetCellValue(summarySheet, "B1", c.Summary); err != nil {
		return err
	}
	if err := f.SetCellValue(summarySheet, "A3", "Best for"); err != nil {
		return err
	}
	if err := f.SetCellStyle(summarySheet, "A1", "A3", bold); err != nil {
		return fmt.Errorf("style summary: %w", err)
	}

	names := make([]string, 0, len(c.BestFor))
	for name := range c.BestFor {
		names = append(names, name)
	}
	sort.Strings(names)
	for i, name := range names {
		row := []any{name, c.BestFor[name]}
		cell, err := excelize.CoordinatesToCellName(1, i+4)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return fmt.Errorf("write best-for %q: %w", name, err)
		}
	}
	return f.SetColWidth(summarySheet, "A", "B", 40)
}
