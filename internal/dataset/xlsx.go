package dataset

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// ExportName is the file name used when a workbook is built from sheets.
const ExportName = "KPI_Dashboard_Under_Construction.xlsx"

// parseXLSX reads every sheet of a workbook.
func parseXLSX(name string, data []byte) (*Dataset, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrUnsupportedFormat, name, err)
	}
	defer func() { _ = f.Close() }()

	names := f.GetSheetList()
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: %s has no sheets", ErrUnsupportedFormat, name)
	}

	sheets := make(map[string][][]string, len(names))
	for _, sheet := range names {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("%w: reading sheet %q: %v", ErrUnsupportedFormat, sheet, err)
		}
		sheets[sheet] = rows
	}

	primary, err := toCSV(sheets[names[0]])
	if err != nil {
		return nil, err
	}
	return &Dataset{
		Name:       name,
		Format:     FormatXLSX,
		SheetNames: names,
		Sheets:     sheets,
		PrimaryCSV: primary,
		Raw:        data,
	}, nil
}

// Export returns a downloadable workbook for ds and its file name.
// Uploaded workbooks are returned byte for byte; everything else is
// rebuilt from the sheet set.
func Export(ds *Dataset) ([]byte, string, error) {
	if ds == nil {
		return nil, "", fmt.Errorf("no dataset loaded")
	}
	if ds.Format == FormatXLSX && len(ds.Raw) > 0 {
		return ds.Raw, ds.Name, nil
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	for i, sheet := range ds.SheetNames {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
				return nil, "", fmt.Errorf("naming sheet %q: %w", sheet, err)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return nil, "", fmt.Errorf("adding sheet %q: %w", sheet, err)
		}

		for r, row := range ds.Sheets[sheet] {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				return nil, "", err
			}
			values := make([]interface{}, len(row))
			for c, v := range row {
				values[c] = cellValue(v)
			}
			if err := f.SetSheetRow(sheet, cell, &values); err != nil {
				return nil, "", fmt.Errorf("writing %s!%s: %w", sheet, cell, err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("writing workbook: %w", err)
	}
	return buf.Bytes(), ExportName, nil
}

// cellValue keeps numbers numeric in the exported workbook.
func cellValue(s string) interface{} {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
