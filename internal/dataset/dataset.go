// Package dataset loads KPI dashboards into a tabular sheet set, exports
// them back to a workbook, and exposes them to read-only SQL.
package dataset

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned when a file cannot be parsed as a sheet set.
var ErrUnsupportedFormat = errors.New("unsupported dataset format")

// MaxFileBytes bounds what the loader will read.
const MaxFileBytes = 20 << 20

// Format records where a dataset came from.
type Format string

const (
	FormatXLSX   Format = "xlsx"
	FormatCSV    Format = "csv"
	FormatSample Format = "sample"
)

// Dataset is a parsed workbook.
type Dataset struct {
	Name       string                `json:"name"`
	Format     Format                `json:"format"`
	SheetNames []string              `json:"sheet_names"`
	Sheets     map[string][][]string `json:"sheets"`
	// PrimaryCSV is the first sheet as delimited text, used for analysis.
	PrimaryCSV string `json:"-"`
	// Raw holds the uploaded bytes so the original file can be re-exported.
	Raw []byte `json:"-"`
}

// RowCount returns the number of rows in a sheet, header included.
func (d *Dataset) RowCount(sheet string) int {
	return len(d.Sheets[sheet])
}

// Source selects what to load: the built-in sample, a file path, or
// in-memory bytes with a name whose extension picks the parser.
type Source struct {
	Sample bool
	Path   string
	Name   string
	Data   []byte
}

// Loader parses sources into datasets.
type Loader struct {
	maxBytes int64
}

// NewLoader returns a filesystem-backed loader capped at MaxFileBytes.
func NewLoader() *Loader {
	return &Loader{maxBytes: MaxFileBytes}
}

// readLimited reads at most limit+1 bytes from path, enough to tell an
// oversized file apart without buffering all of it.
func readLimited(path string, limit int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, limit+1))
}

// Load parses src. The context is checked before parsing starts; parsing
// itself is CPU-bound and short.
func (l *Loader) Load(ctx context.Context, src Source) (*Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if src.Sample {
		return Sample(), nil
	}

	name, data := src.Name, src.Data
	if src.Path != "" {
		b, err := readLimited(src.Path, l.maxBytes)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", src.Path, err)
		}
		data = b
		if name == "" {
			name = filepath.Base(src.Path)
		}
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %q is empty", ErrUnsupportedFormat, name)
	}
	if int64(len(data)) > l.maxBytes {
		return nil, fmt.Errorf("%w: %q is larger than %d bytes", ErrUnsupportedFormat, name, l.maxBytes)
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return parseXLSX(name, data)
	case ".csv":
		return parseCSV(name, data)
	}
	return nil, fmt.Errorf("%w: %q (expected .xlsx or .csv)", ErrUnsupportedFormat, name)
}

// parseCSV reads a single-sheet dataset named after the file.
func parseCSV(name string, data []byte) (*Dataset, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrUnsupportedFormat, name, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s has no rows", ErrUnsupportedFormat, name)
	}

	sheet := sheetName(strings.TrimSuffix(name, filepath.Ext(name)))
	primary, err := toCSV(rows)
	if err != nil {
		return nil, err
	}
	return &Dataset{
		Name:       name,
		Format:     FormatCSV,
		SheetNames: []string{sheet},
		Sheets:     map[string][][]string{sheet: rows},
		PrimaryCSV: primary,
		Raw:        data,
	}, nil
}

// toCSV renders rows as RFC 4180 text.
func toCSV(rows [][]string) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return "", fmt.Errorf("encoding csv: %w", err)
	}
	return buf.String(), nil
}

// sheetName fits a name to the workbook limit of 31 characters.
func sheetName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "Sheet1"
	}
	r := []rune(s)
	if len(r) > 31 {
		r = r[:31]
	}
	return string(r)
}
