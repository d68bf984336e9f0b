// Package sheet reads participants from, and writes draw results to,
// spreadsheet files (.xlsx and .csv).
package sheet

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"santa/internal/models"
)

// Format is a supported spreadsheet file format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

var (
	// ErrMissingColumn is returned when a required header is absent.
	ErrMissingColumn = errors.New("sheet: missing required column")
	// ErrUnsupportedFormat is returned for files that are neither .xlsx nor .csv.
	ErrUnsupportedFormat = errors.New("sheet: unsupported file format")
)

// Accepted header spellings, compared after normalizeHeader.
var (
	lastNameHeaders  = []string{"nom", "last_name", "lastname", "last name"}
	firstNameHeaders = []string{"prenom", "first_name", "firstname", "first name"}
	categoryHeaders  = []string{"categorie", "category"}
	emailHeaders     = []string{"email", "e-mail", "mail"}
)

var validate = validator.New()

// FormatFromName infers the format from a file name extension.
func FormatFromName(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx":
		return FormatXLSX, nil
	case ".csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
}

// Load reads the participant list stored at path.
func Load(path string) ([]models.Participant, error) {
	format, err := FormatFromName(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open participants file: %w", err)
	}
	defer f.Close()
	return Read(f, format)
}

// Read parses participants from r. The first row is the header; the
// category and email columns are optional.
func Read(r io.Reader, format Format) ([]models.Participant, error) {
	var rows [][]string
	var err error
	switch format {
	case FormatXLSX:
		rows, err = readXLSX(r)
	case FormatCSV:
		rows, err = readCSV(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty sheet", ErrMissingColumn)
	}

	header := lo.Map(rows[0], func(h string, _ int) string { return normalizeHeader(h) })
	lastCol := columnIndex(header, lastNameHeaders)
	firstCol := columnIndex(header, firstNameHeaders)
	if lastCol < 0 {
		return nil, fmt.Errorf("%w: NOM", ErrMissingColumn)
	}
	if firstCol < 0 {
		return nil, fmt.Errorf("%w: Prénom", ErrMissingColumn)
	}
	categoryCol := columnIndex(header, categoryHeaders)
	emailCol := columnIndex(header, emailHeaders)

	participants := make([]models.Participant, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		p := models.Participant{
			LastName:  cell(row, lastCol),
			FirstName: cell(row, firstCol),
			Category:  cell(row, categoryCol),
			Email:     cell(row, emailCol),
		}.Trimmed()
		if err := validate.Struct(p); err != nil {
			// i+2: one for the header, one for 1-based row numbers
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		participants = append(participants, p)
	}
	return participants, nil
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	}
	return rows, nil
}

// normalizeHeader lower-cases and strips accents so "Prénom" matches "prenom".
func normalizeHeader(h string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, err := transform.String(t, h)
	if err != nil {
		s = h
	}
	return strings.ToLower(strings.TrimSpace(s))
}

func columnIndex(header []string, names []string) int {
	_, idx, ok := lo.FindIndexOf(header, func(h string) bool { return lo.Contains(names, h) })
	if !ok {
		return -1
	}
	return idx
}

func cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

func isBlank(row []string) bool {
	return lo.EveryBy(row, func(c string) bool { return strings.TrimSpace(c) == "" })
}
