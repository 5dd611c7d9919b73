//go:build !integration

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/urbanalytics/insights-cli/internal/model"
)

func sampleScores() []model.CompositeScore {
	return []model.CompositeScore{
		{
			RegionID:   "5000-611",
			SnapshotID: "snap-1",
			Score:      72,
			Contributions: map[model.Component]float64{
				model.ComponentEducation: 1.8,
				model.ComponentCrime:     -0.4,
				model.ComponentServices:  0.9,
				model.ComponentTransit:   0.2,
				model.ComponentHousing:   -0.3,
			},
			ComputedAt: time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC),
		},
		{
			RegionID:   "3000-214",
			SnapshotID: "snap-1",
			Score:      41,
			Contributions: map[model.Component]float64{
				model.ComponentEducation: -1.1,
				model.ComponentCrime:     -2.3,
				model.ComponentServices:  0.1,
			},
			ComputedAt: time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC),
		},
	}
}

func TestTopContributions(t *testing.T) {
	scores := sampleScores()

	top := topContributions(scores[0])
	assert.Contains(t, top, "education +1.80")
	assert.Contains(t, top, "services +0.90")
	assert.NotContains(t, top, "transit")

	top = topContributions(scores[1])
	assert.Contains(t, top, "crime -2.30")
	assert.Contains(t, top, "education -1.10")
}

func TestWriteScoreCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.csv")
	f, err := os.Create(path)
	require.NoError(t, err)

	require.NoError(t, writeScoreCSV(f, sampleScores()))
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "region_id,score,education,crime,services,transit,housing,demographics", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "5000-611,72,1.800,-0.400,"))
	assert.True(t, strings.HasPrefix(lines[2], "3000-214,41,"))
}

func TestWriteScoreXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.xlsx")

	require.NoError(t, writeScoreXLSX(path, sampleScores()))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)

	sheet := f.Sheets[0]
	assert.Equal(t, "scores", sheet.Name)
	require.Len(t, sheet.Rows, 3)
	assert.Equal(t, "region_id", sheet.Rows[0].Cells[0].Value)
	assert.Equal(t, "5000-611", sheet.Rows[1].Cells[0].Value)

	score, err := sheet.Rows[1].Cells[1].Int()
	require.NoError(t, err)
	assert.Equal(t, 72, score)
}

func TestOutputScores_XLSXRequiresPath(t *testing.T) {
	err := outputScores(sampleScores(), "xlsx", "")
	assert.Error(t, err)
}
