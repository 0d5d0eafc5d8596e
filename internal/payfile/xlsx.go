package payfile

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// ReadGrid reads the first worksheet of an xlsx workbook into a cell grid.
// A workbook that cannot be opened is the only fatal condition; malformed
// rows inside the sheet are dealt with during parsing.
func ReadGrid(path string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "payfile: open workbook")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("payfile: workbook %s has no sheets", path)
	}

	sheet := f.Sheets[0]
	grid := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		grid = append(grid, cells)
	}
	return grid, nil
}
