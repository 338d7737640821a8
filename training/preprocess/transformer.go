// Package preprocess turns named numeric and categorical columns into a dense feature matrix.
package preprocess

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"ml-orchestrator/core/frame"
	"ml-orchestrator/core/models"

	"gonum.org/v1/gonum/stat"
)

// MissingCategory fills a categorical column that had no values at fit time
const MissingCategory = "missing"

// NumericScaler imputes the training median, then standardizes
type NumericScaler struct {
	Column string
	Median float64
	Mean   float64
	Scale  float64
}

// CategoricalEncoder imputes the most frequent training value, then one-hot encodes.
// Categories unseen at fit time encode as all zeros.
type CategoricalEncoder struct {
	Column     string
	Fill       string
	Categories []string
}

// Transformer is the fitted column-wise preprocessing stage
type Transformer struct {
	Numeric     []NumericScaler
	Categorical []CategoricalEncoder
}

// Fit learns imputation and encoding parameters from f
func Fit(f *frame.Frame, numeric, categorical []string) (*Transformer, error) {
	t := &Transformer{}
	for _, name := range numeric {
		vals, err := numericValues(f, name)
		if err != nil {
			return nil, err
		}
		t.Numeric = append(t.Numeric, fitNumeric(name, vals))
	}
	for _, name := range categorical {
		vals, err := categoricalValues(f, name)
		if err != nil {
			return nil, err
		}
		t.Categorical = append(t.Categorical, fitCategorical(name, vals))
	}
	return t, nil
}

func fitNumeric(name string, vals []float64) NumericScaler {
	var present []float64
	for _, v := range vals {
		if !math.IsNaN(v) {
			present = append(present, v)
		}
	}
	median := 0.0
	if m := len(present); m > 0 {
		sort.Float64s(present)
		median = present[m/2]
		if m%2 == 0 {
			median = (present[m/2-1] + present[m/2]) / 2
		}
	}

	imputed := make([]float64, len(vals))
	for i, v := range vals {
		if math.IsNaN(v) {
			v = median
		}
		imputed[i] = v
	}
	mean, std := stat.PopMeanStdDev(imputed, nil)
	if std == 0 || math.IsNaN(std) {
		std = 1
	}
	if math.IsNaN(mean) {
		mean = 0
	}
	return NumericScaler{Column: name, Median: median, Mean: mean, Scale: std}
}

func fitCategorical(name string, vals []*string) CategoricalEncoder {
	counts := map[string]int{}
	for _, v := range vals {
		if v != nil {
			counts[*v]++
		}
	}

	fill, best := MissingCategory, 0
	for v, c := range counts {
		if c > best || (c == best && v < fill) {
			fill, best = v, c
		}
	}
	if len(counts) == 0 {
		counts[MissingCategory] = 0
	}

	cats := make([]string, 0, len(counts))
	for v := range counts {
		cats = append(cats, v)
	}
	sort.Strings(cats)
	return CategoricalEncoder{Column: name, Fill: fill, Categories: cats}
}

// Width is the number of output features
func (t *Transformer) Width() int {
	w := len(t.Numeric)
	for _, c := range t.Categorical {
		w += len(c.Categories)
	}
	return w
}

// Sources maps every output feature back to the input column it came from
func (t *Transformer) Sources() []string {
	out := make([]string, 0, t.Width())
	for _, n := range t.Numeric {
		out = append(out, n.Column)
	}
	for _, c := range t.Categorical {
		for range c.Categories {
			out = append(out, c.Column)
		}
	}
	return out
}

// Transform produces the feature matrix for f. Missing input columns and
// non-numeric values in numeric columns are validation errors.
func (t *Transformer) Transform(f *frame.Frame) ([][]float64, error) {
	n := f.NumRows()
	width := t.Width()
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, width)
	}

	col := 0
	for _, s := range t.Numeric {
		vals, err := numericValues(f, s.Column)
		if err != nil {
			return nil, err
		}
		for i, v := range vals {
			if math.IsNaN(v) {
				v = s.Median
			}
			out[i][col] = (v - s.Mean) / s.Scale
		}
		col++
	}

	for _, e := range t.Categorical {
		vals, err := categoricalValues(f, e.Column)
		if err != nil {
			return nil, err
		}
		index := make(map[string]int, len(e.Categories))
		for k, c := range e.Categories {
			index[c] = k
		}
		for i, v := range vals {
			value := e.Fill
			if v != nil {
				value = *v
			}
			if k, ok := index[value]; ok {
				out[i][col+k] = 1
			}
		}
		col += len(e.Categories)
	}
	return out, nil
}

func numericValues(f *frame.Frame, name string) ([]float64, error) {
	c, ok := f.Column(name)
	if !ok {
		return nil, models.Invalid("columns", "feature column %q is missing", name)
	}
	vals := c.Floats()
	for i, v := range vals {
		if math.IsNaN(v) && !c.Null[i] {
			return nil, models.Invalid("columns", "column %q has non-numeric value %q at row %d", name, c.Raw[i], i)
		}
	}
	return vals, nil
}

func categoricalValues(f *frame.Frame, name string) ([]*string, error) {
	c, ok := f.Column(name)
	if !ok {
		return nil, models.Invalid("columns", "feature column %q is missing", name)
	}
	out := make([]*string, c.Len())
	for i := range c.Raw {
		if c.Null[i] {
			continue
		}
		v := categoryKey(c.Raw[i])
		out[i] = &v
	}
	return out, nil
}

// categoryKey canonicalizes a category so "2.0", "02" and a JSON 2 are one value
func categoryKey(raw string) string {
	v := strings.TrimSpace(raw)
	if f, err := strconv.ParseFloat(v, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return v
}
