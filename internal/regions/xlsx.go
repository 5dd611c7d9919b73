package regions

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/urbanalytics/insights-cli/internal/model"
)

// XLSXOptions selects the sheet and header row of a CBS workbook. CBS
// exports often carry title rows above the header.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
	SkipRows   int    // rows above the header row
}

// LoadMetricsXLSX reads CBS tabular metrics from an XLSX workbook. The
// first row after SkipRows is the header; recognized columns map onto
// RawMetricSet fields the same way LoadMetricsCSV maps them.
func LoadMetricsXLSX(path string, opts XLSXOptions) ([]model.RawMetricSet, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "regions: open metrics xlsx %s", path)
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}
	if len(sheet.Rows) <= opts.SkipRows {
		return nil, eris.Errorf("regions: sheet %q has no header row", sheet.Name)
	}

	header := rowToStrings(sheet.Rows[opts.SkipRows])
	col := columnIndex(header)
	idIdx := col("region_id")
	if idIdx < 0 {
		return nil, eris.New("regions: metrics xlsx requires a region_id column")
	}

	var metrics []model.RawMetricSet
	for _, row := range sheet.Rows[opts.SkipRows+1:] {
		if m, ok := metricFromRecord(col, idIdx, rowToStrings(row)); ok {
			metrics = append(metrics, m)
		}
	}
	return metrics, nil
}

func getSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("regions: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("regions: sheet index %d out of range (workbook has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}

	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
