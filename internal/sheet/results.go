package sheet

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/samber/lo"
	"github.com/xuri/excelize/v2"

	"santa/internal/models"
)

const resultsSheet = "Sheet1"

var resultsHeader = []string{"NOM Donneur", "Prénom Donneur", "NOM Destinataire", "Prénom Destinataire"}

func resultRows(assignment models.Assignment) [][]string {
	return lo.Map(assignment, func(p models.Pair, _ int) []string {
		return []string{p.Giver.LastName, p.Giver.FirstName, p.Receiver.LastName, p.Receiver.FirstName}
	})
}

// ResultsFileName returns the timestamped file name used for saved draws.
func ResultsFileName(now time.Time) string {
	return fmt.Sprintf("secret_santa_results_%s.xlsx", now.Format("20060102_150405"))
}

// SaveResults writes the assignment as a workbook in dir and returns its path.
func SaveResults(dir string, assignment models.Assignment, now time.Time) (string, error) {
	f, err := newResultsWorkbook(assignment)
	if err != nil {
		return "", err
	}
	defer f.Close()

	path := filepath.Join(dir, ResultsFileName(now))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}
	return path, nil
}

// WriteXLSX streams the assignment as a workbook.
func WriteXLSX(w io.Writer, assignment models.Assignment) error {
	f, err := newResultsWorkbook(assignment)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func newResultsWorkbook(assignment models.Assignment) (*excelize.File, error) {
	f := excelize.NewFile()
	rows := append([][]string{resultsHeader}, resultRows(assignment)...)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := f.SetSheetRow(resultsSheet, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	return f, nil
}

// WriteCSV writes the assignment as CSV, prefixed with a UTF-8 BOM so that
// Excel opens accented names correctly.
func WriteCSV(w io.Writer, assignment models.Assignment) error {
	if _, err := io.WriteString(w, "\ufeff"); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(resultsHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	if err := cw.WriteAll(resultRows(assignment)); err != nil {
		return fmt.Errorf("write csv rows: %w", err)
	}
	return nil
}
