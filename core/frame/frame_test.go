package frame

import (
	"errors"
	"math"
	"strings"
	"testing"

	"ml-orchestrator/core/models"

	"github.com/xuri/excelize/v2"
)

func TestReadDelimitedInference(t *testing.T) {
	data := "id,price,city,active,joined\n" +
		"1,9.5,Paris,True,2024-01-02\n" +
		"2,NA,Berlin,False,2024-02-03\n" +
		"3,4.25,,true,2024-03-04\n"

	f, err := Read(strings.NewReader(data), "sales.csv")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if f.NumRows() != 3 || f.NumCols() != 5 {
		t.Fatalf("shape = %dx%d", f.NumRows(), f.NumCols())
	}

	want := map[string]struct {
		kind  Kind
		dtype string
		nulls int
	}{
		"id":     {KindNumeric, "int64", 0},
		"price":  {KindNumeric, "float64", 1},
		"city":   {KindCategorical, "object", 1},
		"active": {KindBoolean, "bool", 0},
		"joined": {KindDatetime, "datetime64[ns]", 0},
	}
	for name, w := range want {
		c, ok := f.Column(name)
		if !ok {
			t.Fatalf("column %q missing", name)
		}
		if c.Kind != w.kind || c.Dtype != w.dtype || c.NullCount() != w.nulls {
			t.Errorf("%s: kind=%v dtype=%s nulls=%d", name, c.Kind, c.Dtype, c.NullCount())
		}
	}

	price, _ := f.Column("price")
	if !math.IsNaN(price.Floats()[1]) || price.Floats()[2] != 4.25 {
		t.Fatalf("price floats = %v", price.Floats())
	}
	if got := len(price.Valid()); got != 2 {
		t.Fatalf("valid prices = %d", got)
	}
}

func TestReadTSVAndShortRows(t *testing.T) {
	f, err := Read(strings.NewReader("a\tb\n1\n2\t3\n"), "x.tsv")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	b, _ := f.Column("b")
	if !b.Null[0] || b.Raw[1] != "3" {
		t.Fatalf("b = %v / %v", b.Raw, b.Null)
	}
}

func TestReadRejects(t *testing.T) {
	if _, err := Read(strings.NewReader("a,b"), "legacy.xls"); !errors.Is(err, models.ErrUnsupportedFormat) {
		t.Fatalf("xls: %v", err)
	}
	if _, err := Read(strings.NewReader("a,b"), "notes.txt"); !errors.Is(err, models.ErrUnsupportedFormat) {
		t.Fatalf("txt: %v", err)
	}
	if _, err := Read(strings.NewReader(""), "empty.csv"); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("empty: %v", err)
	}
	if _, err := Read(strings.NewReader("a,a\n1,2\n"), "dup.csv"); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("duplicate header: %v", err)
	}
	if _, err := Read(strings.NewReader("a\n1,2\n"), "wide.csv"); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("long row: %v", err)
	}
}

func TestReadExcel(t *testing.T) {
	wb := excelize.NewFile()
	rows := [][]interface{}{{"x", "label"}, {1, "a"}, {2, "b"}}
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			if err := wb.SetCellValue("Sheet1", cell, v); err != nil {
				t.Fatal(err)
			}
		}
	}
	buf, err := wb.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}

	f, err := Read(buf, "book.xlsx")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	x, _ := f.Column("x")
	if f.NumRows() != 2 || x.Kind != KindNumeric {
		t.Fatalf("rows=%d kind=%v", f.NumRows(), x.Kind)
	}
}

func TestWriteCSVRoundTrip(t *testing.T) {
	src := "a,b\n1,\nNA,z\n"
	f, err := ReadDelimited(strings.NewReader(src), ',')
	if err != nil {
		t.Fatal(err)
	}
	out, err := f.EncodeCSV()
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "a,b\n1,\n,z\n" {
		t.Fatalf("csv = %q", out)
	}
}

func TestFromRowsAndHead(t *testing.T) {
	rows := []map[string]interface{}{{"x": 2.0, "extra": "ignored"}, {"x": nil}}
	f, absent, err := FromRows(rows, []string{"x", "color"})
	if err != nil {
		t.Fatal(err)
	}
	if len(absent) != 1 || absent[0] != "color" {
		t.Fatalf("absent = %v", absent)
	}
	head := f.Head(5)
	if len(head) != 2 || head[0]["x"] != 2.0 || head[1]["x"] != nil {
		t.Fatalf("head = %v", head)
	}
}

func TestTakeAndRowKey(t *testing.T) {
	f, err := ReadDelimited(strings.NewReader("a,b\n1,x\n2,y\n1,x\n"), ',')
	if err != nil {
		t.Fatal(err)
	}
	if f.RowKey(0) != f.RowKey(2) || f.RowKey(0) == f.RowKey(1) {
		t.Fatal("row keys do not identify duplicates")
	}
	sub := f.Take([]int{1})
	b, _ := sub.Column("b")
	if sub.NumRows() != 1 || b.Raw[0] != "y" {
		t.Fatalf("take = %v", b.Raw)
	}
}
