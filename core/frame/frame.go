// Package frame holds a small column-oriented table used by the analyzer,
// the training pipeline and the prediction service.
package frame

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"ml-orchestrator/core/models"
)

// Kind is the inferred value class of a column
type Kind int

const (
	KindNumeric Kind = iota
	KindBoolean
	KindDatetime
	KindCategorical
)

func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindBoolean:
		return "boolean"
	case KindDatetime:
		return "datetime"
	default:
		return "categorical"
	}
}

// missingMarkers are the cell values read as missing
var missingMarkers = map[string]bool{
	"": true, "#N/A": true, "#N/A N/A": true, "#NA": true, "-1.#IND": true,
	"-1.#QNAN": true, "-NaN": true, "-nan": true, "1.#IND": true, "1.#QNAN": true,
	"<NA>": true, "N/A": true, "NA": true, "NULL": true, "NaN": true, "None": true,
	"n/a": true, "nan": true, "null": true,
}

// IsMissing reports whether a raw cell is a missing marker
func IsMissing(s string) bool {
	return missingMarkers[strings.TrimSpace(s)]
}

var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"}

// Column is one named column. Raw holds the cell text, Null marks missing cells.
type Column struct {
	Name  string
	Kind  Kind
	Dtype string
	Raw   []string
	Null  []bool

	floats []float64
}

// Len returns the number of cells
func (c *Column) Len() int { return len(c.Raw) }

// NullCount returns the number of missing cells
func (c *Column) NullCount() int {
	n := 0
	for _, null := range c.Null {
		if null {
			n++
		}
	}
	return n
}

// Floats returns the cells parsed as float64, NaN where missing or unparsable
func (c *Column) Floats() []float64 {
	if c.floats != nil {
		return c.floats
	}
	out := make([]float64, len(c.Raw))
	for i, s := range c.Raw {
		out[i] = math.NaN()
		if c.Null[i] {
			continue
		}
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			out[i] = v
		}
	}
	c.floats = out
	return out
}

// Valid returns the non-missing numeric values in row order
func (c *Column) Valid() []float64 {
	vals := make([]float64, 0, len(c.Raw))
	for _, v := range c.Floats() {
		if !math.IsNaN(v) {
			vals = append(vals, v)
		}
	}
	return vals
}

// Value returns the cell as a JSON-friendly value: nil when missing, float64 for numeric columns
func (c *Column) Value(i int) interface{} {
	if c.Null[i] {
		return nil
	}
	if c.Kind == KindNumeric {
		v := c.Floats()[i]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		return v
	}
	if c.Kind == KindBoolean {
		return strings.EqualFold(strings.TrimSpace(c.Raw[i]), "true")
	}
	return c.Raw[i]
}

// Frame is an ordered set of equal-length columns
type Frame struct {
	cols  []*Column
	index map[string]int
	rows  int
}

// New builds a frame from a header and string records. Short records are padded
// with missing cells; long records and duplicate names are validation errors.
func New(header []string, records [][]string) (*Frame, error) {
	if len(header) == 0 {
		return nil, models.Invalid("file", "dataset has no columns")
	}

	f := &Frame{index: make(map[string]int, len(header)), rows: len(records)}
	for i, name := range header {
		name = strings.TrimSpace(name)
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if _, dup := f.index[name]; dup {
			return nil, models.Invalid("file", "duplicate column name %q", name)
		}
		f.index[name] = i
		f.cols = append(f.cols, &Column{
			Name: name,
			Raw:  make([]string, len(records)),
			Null: make([]bool, len(records)),
		})
	}

	for r, rec := range records {
		if len(rec) > len(header) {
			return nil, models.Invalid("file", "row %d has %d fields, expected %d", r+1, len(rec), len(header))
		}
		for c, col := range f.cols {
			if c < len(rec) {
				col.Raw[r] = rec[c]
			}
			col.Null[r] = IsMissing(col.Raw[r])
		}
	}

	for _, col := range f.cols {
		infer(col)
	}
	return f, nil
}

// FromRows builds a frame from JSON-decoded rows restricted to the given columns.
// Columns absent from every row are reported as missing so callers can reject them.
func FromRows(rows []map[string]interface{}, columns []string) (*Frame, []string, error) {
	var absent []string
	for _, name := range columns {
		found := false
		for _, row := range rows {
			if _, ok := row[name]; ok {
				found = true
				break
			}
		}
		if !found {
			absent = append(absent, name)
		}
	}

	records := make([][]string, len(rows))
	for r, row := range rows {
		rec := make([]string, len(columns))
		for c, name := range columns {
			rec[c] = cellString(row[name])
		}
		records[r] = rec
	}
	f, err := New(columns, records)
	return f, absent, err
}

func cellString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		if x {
			return "True"
		}
		return "False"
	default:
		return fmt.Sprint(x)
	}
}

func infer(c *Column) {
	isInt, isFloat, isBool, isDate := true, true, true, true
	nonNull := 0
	for i, s := range c.Raw {
		if c.Null[i] {
			continue
		}
		nonNull++
		s = strings.TrimSpace(s)
		if isInt {
			if _, err := strconv.ParseInt(s, 10, 64); err != nil {
				isInt = false
			}
		}
		if isFloat {
			if _, err := strconv.ParseFloat(s, 64); err != nil {
				isFloat = false
			}
		}
		if isBool && !(strings.EqualFold(s, "true") || strings.EqualFold(s, "false")) {
			isBool = false
		}
		if isDate && !parsesAsDate(s) {
			isDate = false
		}
	}

	hasNull := nonNull < len(c.Raw)
	switch {
	case nonNull == 0, isFloat:
		c.Kind = KindNumeric
		if isInt && !hasNull && nonNull > 0 {
			c.Dtype = "int64"
		} else {
			c.Dtype = "float64"
		}
	case isBool:
		c.Kind = KindBoolean
		c.Dtype = "bool"
		if hasNull {
			c.Dtype = "object"
		}
	case isDate:
		c.Kind = KindDatetime
		c.Dtype = "datetime64[ns]"
	default:
		c.Kind = KindCategorical
		c.Dtype = "object"
	}
}

func parsesAsDate(s string) bool {
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

// NumRows returns the row count
func (f *Frame) NumRows() int { return f.rows }

// NumCols returns the column count
func (f *Frame) NumCols() int { return len(f.cols) }

// Columns returns the columns in file order
func (f *Frame) Columns() []*Column { return f.cols }

// Names returns the column names in file order
func (f *Frame) Names() []string {
	names := make([]string, len(f.cols))
	for i, c := range f.cols {
		names[i] = c.Name
	}
	return names
}

// Column looks a column up by name
func (f *Frame) Column(name string) (*Column, bool) {
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.cols[i], true
}

// Head returns up to n rows as JSON-friendly maps
func (f *Frame) Head(n int) []map[string]interface{} {
	if n > f.rows {
		n = f.rows
	}
	out := make([]map[string]interface{}, n)
	for r := 0; r < n; r++ {
		row := make(map[string]interface{}, len(f.cols))
		for _, c := range f.cols {
			row[c.Name] = c.Value(r)
		}
		out[r] = row
	}
	return out
}

// RowKey returns a string identifying the full content of row r, used for duplicate detection
func (f *Frame) RowKey(r int) string {
	var b strings.Builder
	for _, c := range f.cols {
		if c.Null[r] {
			b.WriteString("\x00NA")
		} else {
			b.WriteString(c.Raw[r])
		}
		b.WriteByte(0x1f)
	}
	return b.String()
}

// Take returns a new frame holding the given rows in the given order
func (f *Frame) Take(rows []int) *Frame {
	out := &Frame{index: f.index, rows: len(rows)}
	for _, c := range f.cols {
		nc := &Column{
			Name:  c.Name,
			Kind:  c.Kind,
			Dtype: c.Dtype,
			Raw:   make([]string, len(rows)),
			Null:  make([]bool, len(rows)),
		}
		for i, r := range rows {
			nc.Raw[i] = c.Raw[r]
			nc.Null[i] = c.Null[r]
		}
		out.cols = append(out.cols, nc)
	}
	return out
}

// MemoryUsage estimates the in-memory footprint of the table in bytes
func (f *Frame) MemoryUsage() int64 {
	total := int64(128)
	for _, c := range f.cols {
		switch c.Kind {
		case KindNumeric, KindDatetime:
			total += int64(8 * c.Len())
		case KindBoolean:
			total += int64(c.Len())
		default:
			for _, s := range c.Raw {
				total += int64(49 + len(s))
			}
		}
	}
	return total
}
