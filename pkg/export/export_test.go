package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Headers: []string{"id", "start"},
		Rows: []map[string]string{
			{"id": "a", "start": "0"},
			{"id": "b, c", "start": "3"},
		},
		Highlight: []bool{false, true},
		Summary:   []string{"objective: 10"},
	}
}

func TestCSVExporter(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	assert.Equal(t, []string{"id,start", "a,0", `"b, c",3`}, lines)

	_, err = NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporter(t *testing.T) {
	out, err := NewPDFExporter("Schedule").Render(sampleDataset())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), "%PDF"))
}

func TestForFormat(t *testing.T) {
	r, err := ForFormat("", "x")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", r.ContentType())

	r, err = ForFormat("PDF", "x")
	require.NoError(t, err)
	assert.Equal(t, "pdf", r.Extension())

	_, err = ForFormat("xlsx", "x")
	assert.Error(t, err)
}
