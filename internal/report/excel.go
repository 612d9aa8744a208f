// Package report exports screening results as a spreadsheet.
package report

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/spigell/hr-screener/internal/cache"
	"github.com/spigell/hr-screener/internal/decision"
)

const (
	SummarySheet    = "Summary"
	CandidatesSheet = "Candidates"

	headerColor  = "4472C4"
	proceedColor = "C6EFCE"
	rejectColor  = "FFC7CE"
)

var candidateHeaders = []string{"File", "Email", "Similarity", "Score", "Decision", "Summary"}

var ErrNoResults = errors.New("no results to export")

// ExportExcel writes results to path, adding the .xlsx extension when
// missing, and returns the path written.
func ExportExcel(results []cache.Entry, jobURL, path string) (string, error) {
	if len(results) == 0 {
		return "", ErrNoResults
	}

	if !strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		path += ".xlsx"
	}
	path = filepath.Clean(path)

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return "", fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(CandidatesSheet); err != nil {
		return "", fmt.Errorf("create sheet: %w", err)
	}

	if err := writeSummary(f, results, jobURL); err != nil {
		return "", fmt.Errorf("summary sheet: %w", err)
	}
	if err := writeCandidates(f, results); err != nil {
		return "", fmt.Errorf("candidates sheet: %w", err)
	}

	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save %s: %w", path, err)
	}
	return path, nil
}

func writeSummary(f *excelize.File, results []cache.Entry, jobURL string) error {
	label, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	proceed := 0
	total := 0
	for _, r := range results {
		if r.Decision == decision.Proceed {
			proceed++
		}
		total += r.Score
	}

	rows := [][]any{
		{"Job posting", jobURL},
		{"Generated", time.Now().Format("2006-01-02 15:04:05")},
		{"Candidates", len(results)},
		{"Proceed", proceed},
		{"Reject", len(results) - proceed},
		{"Average score", fmt.Sprintf("%.2f", float64(total)/float64(len(results)))},
	}

	if err := f.SetColWidth(SummarySheet, "A", "A", 18); err != nil {
		return err
	}
	if err := f.SetColWidth(SummarySheet, "B", "B", 60); err != nil {
		return err
	}

	for i, row := range rows {
		cell := fmt.Sprintf("A%d", i+1)
		if err := f.SetSheetRow(SummarySheet, cell, &row); err != nil {
			return err
		}
		if err := f.SetCellStyle(SummarySheet, cell, cell, label); err != nil {
			return err
		}
	}
	return nil
}

func writeCandidates(f *excelize.File, results []cache.Entry) error {
	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{headerColor}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return err
	}

	proceedStyle, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{proceedColor}, Pattern: 1},
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	if err != nil {
		return err
	}

	rejectStyle, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{rejectColor}, Pattern: 1},
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	if err != nil {
		return err
	}

	widths := map[string]float64{"A": 30, "B": 28, "C": 12, "D": 8, "E": 22, "F": 70}
	for col, w := range widths {
		if err := f.SetColWidth(CandidatesSheet, col, col, w); err != nil {
			return err
		}
	}

	if err := f.SetSheetRow(CandidatesSheet, "A1", &candidateHeaders); err != nil {
		return err
	}
	if err := f.SetCellStyle(CandidatesSheet, "A1", "F1", header); err != nil {
		return err
	}

	for i, r := range results {
		row := i + 2

		similarity := "n/a"
		if r.Similarity != nil {
			similarity = fmt.Sprintf("%.2f", *r.Similarity)
		}

		values := []any{filepath.Base(r.FilePath), r.Email, similarity, r.Score, r.Decision.Label(), r.Summary}
		if err := f.SetSheetRow(CandidatesSheet, fmt.Sprintf("A%d", row), &values); err != nil {
			return err
		}

		style := rejectStyle
		if r.Decision == decision.Proceed {
			style = proceedStyle
		}
		if err := f.SetCellStyle(CandidatesSheet, fmt.Sprintf("A%d", row), fmt.Sprintf("F%d", row), style); err != nil {
			return err
		}
	}

	if err := f.AutoFilter(CandidatesSheet, fmt.Sprintf("A1:F%d", len(results)+1), nil); err != nil {
		return err
	}

	return f.SetPanes(CandidatesSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}
