package report

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Table is a CSV document with a fixed header.
type Table struct {
	Header []string
	Rows   [][]string
}

// NewTable creates an empty table with the given columns.
func NewTable(header ...string) *Table {
	return &Table{Header: header}
}

// Append adds a row. Missing trailing cells are padded with "".
func (t *Table) Append(cells ...string) {
	row := make([]string, len(t.Header))
	copy(row, cells)
	t.Rows = append(t.Rows, row)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Column returns the index of a header column, or -1.
func (t *Table) Column(name string) int {
	for i, h := range t.Header {
		if strings.TrimSpace(h) == name {
			return i
		}
	}
	return -1
}

// Cell returns the value of column name in row i, or "" when absent.
func (t *Table) Cell(i int, name string) string {
	col := t.Column(name)
	if col < 0 || i < 0 || i >= len(t.Rows) || col >= len(t.Rows[i]) {
		return ""
	}
	return t.Rows[i][col]
}

// Write encodes the table as CSV. The header is always written.
func (t *Table) Write(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("failed to write rows: %w", err)
	}
	return nil
}

// WriteCSV writes the table to path, creating parent directories.
func (t *Table) WriteCSV(path string) error {
	return writeFile(path, t.Write)
}

// ReadCSV loads a CSV file with a header row.
func ReadCSV(path string) (*Table, error) {
	// #nosec G304: path comes from CLI flags or the artifact manifest
	f, err := os.Open(path) // nolint:gosec
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrInputNotFound, path)
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidInput, path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s: missing header", ErrInvalidInput, path)
	}

	return &Table{Header: rows[0], Rows: rows[1:]}, nil
}

// WriteJSON writes v as indented JSON to path, creating parent directories.
func WriteJSON(path string, v interface{}) error {
	return writeFile(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	})
}

func writeFile(path string, fill func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// #nosec G304: output paths are derived from the configured output directory
	f, err := os.Create(path) // nolint:gosec
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := fill(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// Number renders v as a plain decimal without trailing zeros.
func Number(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Credits converts an upstream credit value (hundredths) to credits.
func Credits(v float64) float64 {
	return v / 100
}

// List joins set values for a CSV cell.
func List(values []string) string {
	return strings.Join(values, ", ")
}

// JSONList renders values as a JSON array for a CSV cell.
func JSONList(values []string) string {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(data)
}
