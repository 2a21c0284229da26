package dataset

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

// DefaultSheet is the sheet written by WriteXLSX
const DefaultSheet = "traffic"

// LoadXLSX loads a Dataset from sheet of the spreadsheet at path. If
// sheet is empty, the first sheet in the workbook is used. The first row
// of the sheet must be a header naming the columns.
func LoadXLSX(path, sheet string) (Dataset, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("loadXLSX: could not open %v: %w", path, err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("loadXLSX: %v has no sheets", path)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("loadXLSX: could not read sheet %q: %w", sheet,
			err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("loadXLSX: sheet %q is empty", sheet)
	}

	data, err := parseRows(rows[0], rows[1:])
	if err != nil {
		return nil, fmt.Errorf("loadXLSX: %v", err)
	}
	return data, nil
}

// WriteXLSX writes the Dataset to a new spreadsheet at path, creating
// the parent directory if needed
func (d Dataset) WriteXLSX(path string) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(DefaultSheet)
	if err != nil {
		return fmt.Errorf("writeXLSX: could not create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("writeXLSX: %w", err)
	}

	header := Header()
	if err := f.SetSheetRow(DefaultSheet, "A1", &header); err != nil {
		return fmt.Errorf("writeXLSX: could not write header: %w", err)
	}
	for i, rec := range d {
		row := rec.row()
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(DefaultSheet, cell, &row); err != nil {
			return fmt.Errorf("writeXLSX: could not write row %d: %w", i+2, err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("writeXLSX: could not create directory: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("writeXLSX: could not save %v: %w", path, err)
	}
	return nil
}
