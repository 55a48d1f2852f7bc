package report

import (
	"encoding/csv"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"mediscan-backend/internal/faults"
	"mediscan-backend/internal/logger"
)

// SaveCSV writes the extracted table rows to a CSV file, creating the
// output directory if needed.
func SaveCSV(rows [][]string, path string) error {
	if len(rows) == 0 {
		return faults.New(faults.InputError, "no table rows to save")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return faults.Wrap(faults.ProviderError, err, "failed to create table directory")
	}

	f, err := os.Create(path)
	if err != nil {
		return faults.Wrap(faults.ProviderError, err, "failed to create CSV file")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return faults.Wrap(faults.ProviderError, err, "failed to write CSV rows")
	}

	logger.Info("Table saved as CSV", "path", path, "rows", len(rows))
	return nil
}

// SaveXLSX writes the extracted table rows to an Excel workbook with a
// single sheet named after the report table.
func SaveXLSX(rows [][]string, path string) error {
	if len(rows) == 0 {
		return faults.New(faults.InputError, "no table rows to save")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return faults.Wrap(faults.ProviderError, err, "failed to create table directory")
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			logger.Error("Failed to close Excel file", "error", err)
		}
	}()

	sheetName := "Biomarker Table"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return faults.Wrap(faults.ProviderError, err, "failed to create worksheet")
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	for r, row := range rows {
		for c, cell := range row {
			cellRef, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return faults.Wrap(faults.ProviderError, err, "failed to address cell")
			}
			f.SetCellValue(sheetName, cellRef, cell)
		}
	}

	if len(rows[0]) > 0 {
		endCol, _ := excelize.ColumnNumberToName(len(rows[0]))
		f.SetColWidth(sheetName, "A", endCol, 18)
	}

	if err := f.SaveAs(path); err != nil {
		return faults.Wrap(faults.ProviderError, err, "failed to save Excel file")
	}

	logger.Info("Table saved as XLSX", "path", path, "rows", len(rows))
	return nil
}
