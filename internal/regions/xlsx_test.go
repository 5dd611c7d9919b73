package regions

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func writeMetricsWorkbook(t *testing.T, sheetName string, rows [][]string) string {
	t.Helper()

	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	require.NoError(t, err)
	for _, cells := range rows {
		row := sheet.AddRow()
		for _, c := range cells {
			row.AddCell().SetString(c)
		}
	}

	path := filepath.Join(t.TempDir(), "metrics.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestLoadMetricsXLSX(t *testing.T) {
	path := writeMetricsWorkbook(t, "2026", [][]string{
		{"region_id", "population", "crime_rate_per_1000", "housing_price_per_sqm"},
		{"5000-611", "4200", "12.5", "32000"},
		{"3000-214", "6100", "", "24000"},
		{"", "1", "2", "3"},
	})

	metrics, err := LoadMetricsXLSX(path, XLSXOptions{})
	require.NoError(t, err)
	require.Len(t, metrics, 2)

	assert.Equal(t, "5000-611", metrics[0].RegionID)
	require.NotNil(t, metrics[0].Population)
	assert.InDelta(t, 4200, *metrics[0].Population, 0.001)
	require.NotNil(t, metrics[0].CrimeRatePer1000)
	assert.InDelta(t, 12.5, *metrics[0].CrimeRatePer1000, 0.001)

	// Blank cells stay missing.
	assert.Nil(t, metrics[1].CrimeRatePer1000)
	require.NotNil(t, metrics[1].HousingPricePerSqm)
	assert.InDelta(t, 24000, *metrics[1].HousingPricePerSqm, 0.001)

	// Unlisted columns stay missing everywhere.
	assert.Nil(t, metrics[0].SocioeconomicIndex)
}

func TestLoadMetricsXLSX_SkipTitleRows(t *testing.T) {
	path := writeMetricsWorkbook(t, "Sheet1", [][]string{
		{"נתוני אזורים סטטיסטיים"},
		{""},
		{"region_id", "socioeconomic_index"},
		{"5000-611", "7"},
	})

	metrics, err := LoadMetricsXLSX(path, XLSXOptions{SkipRows: 2})
	require.NoError(t, err)
	require.Len(t, metrics, 1)
	require.NotNil(t, metrics[0].SocioeconomicIndex)
	assert.InDelta(t, 7, *metrics[0].SocioeconomicIndex, 0.001)
}

func TestLoadMetricsXLSX_SheetSelection(t *testing.T) {
	path := writeMetricsWorkbook(t, "data", [][]string{
		{"region_id", "population"},
		{"5000-611", "4200"},
	})

	_, err := LoadMetricsXLSX(path, XLSXOptions{SheetName: "missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `sheet "missing" not found`)

	_, err = LoadMetricsXLSX(path, XLSXOptions{SheetIndex: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")

	metrics, err := LoadMetricsXLSX(path, XLSXOptions{SheetName: "data"})
	require.NoError(t, err)
	assert.Len(t, metrics, 1)
}

func TestLoadMetricsXLSX_MissingIDColumn(t *testing.T) {
	path := writeMetricsWorkbook(t, "data", [][]string{
		{"name", "population"},
		{"x", "1"},
	})

	_, err := LoadMetricsXLSX(path, XLSXOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "region_id column")
}
