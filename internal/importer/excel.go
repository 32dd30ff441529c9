package importer

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	appErrors "github.com/unclebandit/smscampaigns/internal/errors"
)

// readExcel reads the first sheet of an .xlsx workbook.
func readExcel(data []byte) ([]sheetRow, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, appErrors.NewValidation("unreadable spreadsheet: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, appErrors.NewValidation("spreadsheet has no sheets")
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %s: %w", sheets[0], err)
	}

	rows := make([]sheetRow, 0, len(records))
	for i, record := range records {
		if len(rows) == 0 && blank(record) {
			continue
		}
		rows = append(rows, sheetRow{line: i + 1, cells: record})
	}
	return rows, nil
}
