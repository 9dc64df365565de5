package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	resultsSheet = "Results"
	summarySheet = "Summary"
)

var resultColumns = []string{"Suite", "Test", "Project", "Status", "Duration (s)", "Steps", "Message"}

// WriteWorkbook saves results as an XLSX file with a per-test sheet and a
// totals sheet.
func WriteWorkbook(path string, results []Result) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", resultsSheet); err != nil {
		return fmt.Errorf("report: rename sheet: %w", err)
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("report: add sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("report: style: %w", err)
	}

	header := make([]any, len(resultColumns))
	for i, c := range resultColumns {
		header[i] = c
	}
	if err := f.SetSheetRow(resultsSheet, "A1", &header); err != nil {
		return fmt.Errorf("report: header: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(resultColumns), 1)
	if err := f.SetCellStyle(resultsSheet, "A1", last, bold); err != nil {
		return fmt.Errorf("report: header style: %w", err)
	}

	for i, r := range results {
		message := ""
		if r.StatusDetails != nil {
			message = firstLine(r.StatusDetails.Message)
		}
		row := []any{
			r.Label("suite"),
			r.Name,
			r.Label("parentSuite"),
			string(r.Status),
			r.Duration().Seconds(),
			countSteps(r.Steps),
			message,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(resultsSheet, cell, &row); err != nil {
			return fmt.Errorf("report: row %d: %w", i+2, err)
		}
	}
	_ = f.SetColWidth(resultsSheet, "A", "B", 40)
	_ = f.SetColWidth(resultsSheet, "G", "G", 80)

	s := Summarize(results)
	rows := [][]any{
		{"Total", s.Total},
		{"Passed", s.Passed},
		{"Failed", s.Failed},
		{"Broken", s.Broken},
		{"Skipped", s.Skipped},
		{"Duration (s)", s.Duration.Round(time.Millisecond).Seconds()},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return fmt.Errorf("report: summary: %w", err)
		}
	}
	_ = f.SetCellStyle(summarySheet, "A1", fmt.Sprintf("A%d", len(rows)), bold)

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("report: save %s: %w", path, err)
	}
	return nil
}

func countSteps(steps []*Step) int {
	n := 0
	for _, s := range steps {
		n += 1 + countSteps(s.Steps)
	}
	return n
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
