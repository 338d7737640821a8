package frame

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"ml-orchestrator/core/models"

	"github.com/xuri/excelize/v2"
)

// Format is a supported upload format
type Format string

const (
	FormatCSV   Format = "csv"
	FormatTSV   Format = "tsv"
	FormatExcel Format = "xlsx"
)

// DetectFormat maps a filename extension to a Format
func DetectFormat(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return FormatCSV, nil
	case ".tsv":
		return FormatTSV, nil
	case ".xlsx", ".xlsm":
		return FormatExcel, nil
	}
	return "", fmt.Errorf("%w: %q (supported: .csv, .tsv, .xlsx, .xlsm)", models.ErrUnsupportedFormat, filepath.Ext(filename))
}

// Read parses an uploaded file, choosing the parser from the filename
func Read(r io.Reader, filename string) (*Frame, error) {
	format, err := DetectFormat(filename)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatTSV:
		return ReadDelimited(r, '\t')
	case FormatExcel:
		return ReadExcel(r)
	default:
		return ReadDelimited(r, ',')
	}
}

// ReadDelimited parses delimited text whose first record is the header
func ReadDelimited(r io.Reader, delim rune) (*Frame, error) {
	cr := csv.NewReader(r)
	cr.Comma = delim
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, models.Invalid("file", "cannot parse delimited text: %v", err)
	}
	records = dropBlank(records)
	if len(records) == 0 {
		return nil, models.Invalid("file", "file is empty")
	}

	header := records[0]
	header[0] = strings.TrimPrefix(header[0], "\ufeff")
	return New(header, records[1:])
}

// ReadExcel parses the first sheet of an xlsx/xlsm workbook
func ReadExcel(r io.Reader) (*Frame, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, models.Invalid("file", "cannot open workbook: %v", err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, models.Invalid("file", "workbook has no sheets")
	}
	rows, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, models.Invalid("file", "cannot read sheet %q: %v", sheets[0], err)
	}
	rows = dropBlank(rows)
	if len(rows) == 0 {
		return nil, models.Invalid("file", "sheet %q is empty", sheets[0])
	}
	return New(rows[0], rows[1:])
}

func dropBlank(records [][]string) [][]string {
	out := records[:0]
	for _, rec := range records {
		blank := true
		for _, cell := range rec {
			if strings.TrimSpace(cell) != "" {
				blank = false
				break
			}
		}
		if !blank {
			out = append(out, rec)
		}
	}
	return out
}

// WriteCSV writes the frame as comma-separated text with a header row.
// Missing cells are written empty.
func (f *Frame) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(f.Names()); err != nil {
		return err
	}
	rec := make([]string, len(f.cols))
	for r := 0; r < f.rows; r++ {
		for c, col := range f.cols {
			if col.Null[r] {
				rec[c] = ""
			} else {
				rec[c] = col.Raw[r]
			}
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// EncodeCSV is WriteCSV into a byte slice
func (f *Frame) EncodeCSV() ([]byte, error) {
	var buf bytes.Buffer
	if err := f.WriteCSV(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
