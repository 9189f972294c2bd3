// Package dataset holds tabular data read from and written to CSV files.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"mlengine/pkg/utils"
)

// ErrNoColumn is returned when a named column is absent.
var ErrNoColumn = errors.New("no such column")

// Frame is a header plus rows of string cells. Every row has len(Header) cells.
type Frame struct {
	Header []string
	Rows   [][]string
}

// New builds a frame, checking that every row matches the header width.
func New(header []string, rows [][]string) (*Frame, error) {
	for i, row := range rows {
		if len(row) != len(header) {
			return nil, fmt.Errorf("row %d has %d cells, header has %d", i+1, len(row), len(header))
		}
	}
	return &Frame{Header: header, Rows: rows}, nil
}

// Read parses CSV with a header line from r.
func Read(r io.Reader) (*Frame, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, errors.New("CSV has no header")
	}
	header := records[0]
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	return &Frame{Header: header, Rows: records[1:]}, nil
}

// ReadFile reads a CSV file.
func ReadFile(path string) (*Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	frame, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return frame, nil
}

// Write encodes the frame as CSV with a header line.
func (f *Frame) Write(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(f.Header); err != nil {
		return err
	}
	if err := cw.WriteAll(f.Rows); err != nil {
		return err
	}
	return cw.Error()
}

// WriteFile writes the frame to path, creating parent directories and replacing any existing file.
func (f *Frame) WriteFile(path string) error {
	return utils.WriteAtomic(path, 0644, f.Write)
}

// Len is the number of data rows.
func (f *Frame) Len() int {
	return len(f.Rows)
}

// Index returns the position of a column or -1.
func (f *Frame) Index(name string) int {
	return slices.Index(f.Header, name)
}

// Column returns a copy of a column's cells.
func (f *Frame) Column(name string) ([]string, error) {
	idx := f.Index(name)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoColumn, name)
	}
	out := make([]string, len(f.Rows))
	for i, row := range f.Rows {
		out[i] = row[idx]
	}
	return out, nil
}

// Floats parses a column as numbers.
func (f *Frame) Floats(name string) ([]float64, error) {
	cells, err := f.Column(name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(cells))
	for i, c := range cells {
		v, err := strconv.ParseFloat(strings.TrimSpace(c), 64)
		if err != nil {
			return nil, fmt.Errorf("column %s row %d: %w", name, i+1, err)
		}
		out[i] = v
	}
	return out, nil
}

// WithColumn returns a new frame with an extra column appended.
func (f *Frame) WithColumn(name string, values []string) (*Frame, error) {
	if len(values) != len(f.Rows) {
		return nil, fmt.Errorf("column %s has %d values, frame has %d rows", name, len(values), len(f.Rows))
	}
	if f.Index(name) >= 0 {
		return nil, fmt.Errorf("column %s already exists", name)
	}
	out := &Frame{
		Header: append(slices.Clone(f.Header), name),
		Rows:   make([][]string, len(f.Rows)),
	}
	for i, row := range f.Rows {
		out.Rows[i] = append(slices.Clone(row), values[i])
	}
	return out, nil
}

// Drop returns a new frame without the named columns. Every name must exist.
func (f *Frame) Drop(names ...string) (*Frame, error) {
	drop := make(map[int]bool, len(names))
	for _, name := range names {
		idx := f.Index(name)
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s", ErrNoColumn, name)
		}
		drop[idx] = true
	}
	keep := make([]int, 0, len(f.Header))
	for i := range f.Header {
		if !drop[i] {
			keep = append(keep, i)
		}
	}
	return f.project(keep), nil
}

// Select returns a new frame with only the named columns, in the given order.
func (f *Frame) Select(names ...string) (*Frame, error) {
	keep := make([]int, len(names))
	for i, name := range names {
		idx := f.Index(name)
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s", ErrNoColumn, name)
		}
		keep[i] = idx
	}
	return f.project(keep), nil
}

func (f *Frame) project(cols []int) *Frame {
	out := &Frame{
		Header: make([]string, len(cols)),
		Rows:   make([][]string, len(f.Rows)),
	}
	for j, c := range cols {
		out.Header[j] = f.Header[c]
	}
	for i, row := range f.Rows {
		cells := make([]string, len(cols))
		for j, c := range cols {
			cells[j] = row[c]
		}
		out.Rows[i] = cells
	}
	return out
}

// Take returns a new frame holding the rows at the given positions.
func (f *Frame) Take(indices []int) *Frame {
	out := &Frame{Header: slices.Clone(f.Header), Rows: make([][]string, len(indices))}
	for i, idx := range indices {
		out.Rows[i] = slices.Clone(f.Rows[idx])
	}
	return out
}

// Record returns row i as a column name to cell map.
func (f *Frame) Record(i int) map[string]string {
	rec := make(map[string]string, len(f.Header))
	for j, name := range f.Header {
		rec[name] = f.Rows[i][j]
	}
	return rec
}

// FormatFloat renders v with the shortest exact representation, keeping a decimal point
// so whole values still read as floats ("72.0").
func FormatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}
