package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPDFExporterRenderGrid(t *testing.T) {
	grid := TimetableGrid{
		Title: "Class 10A",
		Days:  []string{"Monday", "Tuesday"},
		Rows: []TimetableRow{
			{Period: 1, Start: "08:00", End: "08:45", Cells: []TimetableCell{
				{Subject: "Mathematics", Teacher: "A. Rahman"},
				{},
			}},
			{Period: 2, Start: "08:45", End: "09:30", Cells: []TimetableCell{
				{},
				{Subject: "Physics", Teacher: "B. Sari"},
			}},
		},
	}

	data, err := NewPDFExporter().Render(grid)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "%PDF"))
}

func TestPDFExporterRequiresDays(t *testing.T) {
	_, err := NewPDFExporter().Render(TimetableGrid{Title: "empty"})
	assert.Error(t, err)
}

func TestCSVExporterRender(t *testing.T) {
	data, err := NewCSVExporter().Render(Dataset{
		Headers: []string{"day", "period", "subject"},
		Rows: []map[string]string{
			{"day": "Monday", "period": "1", "subject": "Mathematics"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "day,period,subject\nMonday,1,Mathematics\n", string(data))
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}
