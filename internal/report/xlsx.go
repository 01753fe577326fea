// Package report renders CRM records into spreadsheet files.
package report

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/dealdesk/internal/model"
)

// DealsSheet is the sheet name used by WriteDealsXLSX.
const DealsSheet = "Deals"

// DefaultDealColumns are written when no columns are given. createdAt is
// the renamed createdate property.
var DefaultDealColumns = []string{
	"dealname",
	"amount",
	"closedate",
	"dealstage",
	"pipeline",
	"hubspot_owner_id",
	"createdAt",
}

// WriteDealsXLSX writes a workbook with a header row of "id" plus columns,
// then one row per record. Missing properties become empty cells.
func WriteDealsXLSX(w io.Writer, records []model.Record, columns []string) error {
	if len(columns) == 0 {
		columns = DefaultDealColumns
	}

	f := xlsx.NewFile()
	sheet, err := f.AddSheet(DealsSheet)
	if err != nil {
		return eris.Wrap(err, "xlsx: add sheet")
	}

	header := sheet.AddRow()
	header.AddCell().SetString("id")
	for _, col := range columns {
		header.AddCell().SetString(col)
	}

	for _, rec := range records {
		row := sheet.AddRow()
		row.AddCell().SetString(rec.ID)
		for _, col := range columns {
			row.AddCell().SetString(rec.Properties[col])
		}
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "xlsx: write")
	}
	return nil
}

// ReadXLSX reads the named sheet of a workbook as string rows, header
// included. An empty name reads the first sheet.
func ReadXLSX(path, sheetName string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}

	sheet, err := getSheet(f, sheetName)
	if err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		rows = append(rows, rowToStrings(row))
	}
	return rows, nil
}

func getSheet(f *xlsx.File, name string) (*xlsx.Sheet, error) {
	if name != "" {
		sheet, ok := f.Sheet[name]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", name)
		}
		return sheet, nil
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("xlsx: workbook has no sheets")
	}
	return f.Sheets[0], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
