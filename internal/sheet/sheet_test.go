package sheet

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"santa/internal/models"
)

func TestRead_CSV(t *testing.T) {
	t.Run("french headers with category and email", func(t *testing.T) {
		in := "NOM,Prénom,Catégorie,Email\n" +
			"Martin, Alice ,Adult,alice@example.com\n" +
			"Martin,Carol,,carol@example.com\n" +
			",,,\n"

		participants, err := Read(strings.NewReader(in), FormatCSV)
		require.NoError(t, err)
		require.Len(t, participants, 2)
		assert.Equal(t, models.Participant{LastName: "Martin", FirstName: "Alice", Category: "Adult", Email: "alice@example.com"}, participants[0])
		assert.Empty(t, participants[1].Category)
	})

	t.Run("category column is optional", func(t *testing.T) {
		in := "\ufefflast_name,first_name\nDurand,Eve\nDurand,Finn\n"

		participants, err := Read(strings.NewReader(in), FormatCSV)
		require.NoError(t, err)
		require.Len(t, participants, 2)
		for _, p := range participants {
			assert.Empty(t, p.Category)
		}
	})

	t.Run("missing first name column", func(t *testing.T) {
		_, err := Read(strings.NewReader("NOM,Email\nMartin,a@example.com\n"), FormatCSV)
		assert.ErrorIs(t, err, ErrMissingColumn)
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := Read(strings.NewReader(""), FormatCSV)
		assert.ErrorIs(t, err, ErrMissingColumn)
	})

	t.Run("invalid email names the row", func(t *testing.T) {
		_, err := Read(strings.NewReader("NOM,Prénom,Email\nMartin,Alice,not-an-email\n"), FormatCSV)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "row 2")
	})

	t.Run("missing first name value", func(t *testing.T) {
		_, err := Read(strings.NewReader("NOM,Prénom\nMartin,\n"), FormatCSV)
		assert.Error(t, err)
	})
}

func TestRead_XLSX(t *testing.T) {
	f := excelize.NewFile()
	rows := [][]string{
		{"NOM", "Prénom", "Catégorie", "Email"},
		{"Martin", "Alice", "Adult", "alice@example.com"},
		{"Martin", "Carol", "Child", ""},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	require.NoError(t, f.Close())

	participants, err := Read(&buf, FormatXLSX)
	require.NoError(t, err)
	require.Len(t, participants, 2)
	assert.Equal(t, "Child", participants[1].Category)
	assert.Empty(t, participants[1].Email)
}

func TestFormatFromName(t *testing.T) {
	format, err := FormatFromName("participants.XLSX")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, format)

	_, err = FormatFromName("participants.ods")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func sampleAssignment() models.Assignment {
	alice := models.Participant{LastName: "Martin", FirstName: "Alice", Category: "Adult"}
	carol := models.Participant{LastName: "Martin", FirstName: "Carol", Category: "Child"}
	return models.Assignment{
		{Giver: alice, Receiver: carol},
		{Giver: carol, Receiver: alice},
	}
}

func TestSaveResults(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2025, 12, 1, 18, 30, 5, 0, time.UTC)

	path, err := SaveResults(dir, sampleAssignment(), now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "secret_santa_results_20251201_183005.xlsx"), path)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Sheet1")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, resultsHeader, rows[0])
	assert.Equal(t, []string{"Martin", "Alice", "Martin", "Carol"}, rows[1])
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleAssignment()))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "\ufeffNOM Donneur,"))
	assert.Contains(t, out, "Martin,Carol,Martin,Alice\n")
}
