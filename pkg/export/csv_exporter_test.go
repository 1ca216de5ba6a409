package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Headers: []string{"Date", "Start", "End", "Room"},
		Rows: []map[string]string{
			{"Date": "2026-09-07", "Start": "08:00", "End": "09:50", "Room": "r1"},
			{"Date": "2026-09-07", "Start": "10:00", "End": "11:50", "Room": "r2"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	payload, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.Contains(t, string(payload), "Date,Start,End,Room")
	assert.Contains(t, string(payload), "2026-09-07,08:00,09:50,r1")
	assert.Contains(t, string(payload), "2026-09-07,10:00,11:50,r2")
}

func TestCSVExporterRenderRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
}

func TestCSVExporterRenderMissingCellsStayEmpty(t *testing.T) {
	data := Dataset{
		Headers: []string{"Date", "Room"},
		Rows:    []map[string]string{{"Date": "2026-09-07"}},
	}
	payload, err := NewCSVExporter().Render(data)
	require.NoError(t, err)
	assert.Contains(t, string(payload), "2026-09-07,")
}

func TestPDFExporterRender(t *testing.T) {
	payload, err := NewPDFExporter().Render(sampleDataset(), "Fall draft")
	require.NoError(t, err)
	assert.True(t, len(payload) > 0)
	assert.Equal(t, "%PDF", string(payload[:4]))
}
