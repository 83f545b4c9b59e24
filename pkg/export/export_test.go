package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleDataset() Dataset {
	return Dataset{
		Title: "Comparacao 2025-06-10",
		Columns: []Column{
			{Key: "linha", Label: "Linha"},
			{Key: "status", Label: "Status"},
		},
		Rows: []map[string]string{
			{"linha": "0.102", "status": "compativel"},
			{"linha": "0.103", "status": "apenas_globus"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)

	text := strings.TrimPrefix(string(out), "\ufeff")
	lines := strings.Split(strings.TrimSpace(text), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Linha;Status", lines[0])
	assert.Equal(t, "0.103;apenas_globus", lines[2])
}

func TestExportersRejectEmptyColumns(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
	_, err = NewPDFExporter().Render(Dataset{})
	assert.Error(t, err)
	_, err = NewXLSXExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestXLSXExporterRender(t *testing.T) {
	out, err := NewXLSXExporter().Render(sampleDataset())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	rows, err := f.GetRows("Comparacoes")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Linha", "Status"}, rows[0])
	assert.Equal(t, []string{"0.102", "compativel"}, rows[1])
}
