// Package analyzer computes descriptive statistics over a loaded dataset.
package analyzer

import (
	"math"
	"sort"

	"ml-orchestrator/core/frame"
	"ml-orchestrator/core/models"

	"gonum.org/v1/gonum/stat"
)

// Analysis operation names
const (
	OpSummary       = "summary"
	OpCorrelation   = "correlation"
	OpMissingValues = "missing_values"
	OpOutliers      = "outliers"
	OpDistributions = "distributions"
)

// DefaultOperations is used when a request names none
var DefaultOperations = []string{OpSummary, OpCorrelation, OpMissingValues}

const (
	histogramBins   = 10
	topValueCounts  = 10
	topStatValues   = 5
	outlierIQRScale = 1.5
)

// Analyze runs the requested operations. Unknown operation names are ignored and
// each result field is only set when its operation was requested.
func Analyze(f *frame.Frame, operations []string) *models.AnalysisResult {
	requested := make(map[string]bool, len(operations))
	for _, op := range operations {
		requested[op] = true
	}

	result := &models.AnalysisResult{}
	if requested[OpSummary] {
		result.Summary = summary(f)
	}
	if requested[OpCorrelation] {
		result.Correlation = correlation(f)
	}
	if requested[OpMissingValues] {
		result.MissingValues = missingValues(f)
	}
	if requested[OpOutliers] {
		result.Outliers = outliers(f)
	}
	if requested[OpDistributions] {
		result.Distributions = distributions(f)
	}
	return result
}

func isNumber(c *frame.Column) bool { return c.Kind == frame.KindNumeric }

func isObject(c *frame.Column) bool { return c.Dtype == "object" }

func summary(f *frame.Frame) *models.DatasetSummary {
	s := &models.DatasetSummary{
		Rows:        f.NumRows(),
		Columns:     f.NumCols(),
		MemoryUsage: f.MemoryUsage(),
	}
	for _, c := range f.Columns() {
		s.MissingValues += c.NullCount()
		switch {
		case isNumber(c):
			s.NumericColumns++
		case isObject(c):
			s.CategoricalColumns++
		case c.Kind == frame.KindDatetime:
			s.DatetimeColumns++
		}
	}

	seen := make(map[string]struct{}, f.NumRows())
	for r := 0; r < f.NumRows(); r++ {
		key := f.RowKey(r)
		if _, dup := seen[key]; dup {
			s.DuplicateRows++
			continue
		}
		seen[key] = struct{}{}
	}
	return s
}

func correlation(f *frame.Frame) map[string]map[string]float64 {
	var cols []*frame.Column
	for _, c := range f.Columns() {
		if isNumber(c) {
			cols = append(cols, c)
		}
	}

	out := make(map[string]map[string]float64, len(cols))
	for _, a := range cols {
		out[a.Name] = make(map[string]float64, len(cols))
	}
	for i, a := range cols {
		for j := i; j < len(cols); j++ {
			b := cols[j]
			r := pairwiseCorrelation(a.Floats(), b.Floats())
			out[a.Name][b.Name] = r
			out[b.Name][a.Name] = r
		}
	}
	return out
}

// pairwiseCorrelation is Pearson's r over the rows where both values are present.
// Undefined results are reported as 0.
func pairwiseCorrelation(x, y []float64) float64 {
	var xs, ys []float64
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	if len(xs) < 2 {
		return 0
	}
	r := stat.Correlation(xs, ys, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return round3(r)
}

func missingValues(f *frame.Frame) map[string]int {
	out := make(map[string]int)
	for _, c := range f.Columns() {
		if n := c.NullCount(); n > 0 {
			out[c.Name] = n
		}
	}
	return out
}

func outliers(f *frame.Frame) map[string][]int {
	out := make(map[string][]int)
	for _, c := range f.Columns() {
		if !isNumber(c) {
			continue
		}
		valid := c.Valid()
		if len(valid) == 0 {
			continue
		}
		sorted := sortedCopy(valid)
		q1 := quantile(sorted, 0.25)
		q3 := quantile(sorted, 0.75)
		iqr := q3 - q1
		lower, upper := q1-outlierIQRScale*iqr, q3+outlierIQRScale*iqr

		var idx []int
		for r, v := range c.Floats() {
			if !math.IsNaN(v) && (v < lower || v > upper) {
				idx = append(idx, r)
			}
		}
		if len(idx) > 0 {
			out[c.Name] = idx
		}
	}
	return out
}

func distributions(f *frame.Frame) map[string]models.Distribution {
	out := make(map[string]models.Distribution)
	for _, c := range f.Columns() {
		switch {
		case isNumber(c):
			valid := c.Valid()
			if len(valid) == 0 {
				continue
			}
			counts, edges := histogram(valid, histogramBins)
			out[c.Name] = models.Distribution{
				Type:      "numeric",
				Histogram: &models.Histogram{Counts: counts, BinEdges: edges},
				Skewness:  skewness(valid),
				Kurtosis:  kurtosis(valid),
			}
		case isObject(c):
			counts := valueCounts(c)
			if len(counts) == 0 {
				continue
			}
			unique := len(counts)
			top := make(map[string]int)
			for i, vc := range counts {
				if i == topValueCounts {
					break
				}
				top[vc.value] = vc.count
			}
			out[c.Name] = models.Distribution{
				Type:        "categorical",
				ValueCounts: top,
				UniqueCount: &unique,
			}
		}
	}
	return out
}

// skewness is the adjusted Fisher-Pearson coefficient; nil below three values
func skewness(vals []float64) *float64 {
	if len(vals) < 3 {
		return nil
	}
	if isConstant(vals) {
		return floatPtr(0)
	}
	return finite(stat.Skew(vals, nil))
}

// kurtosis is the bias-corrected excess kurtosis; nil below four values
func kurtosis(vals []float64) *float64 {
	if len(vals) < 4 {
		return nil
	}
	if isConstant(vals) {
		return floatPtr(0)
	}
	return finite(stat.ExKurtosis(vals, nil))
}

func isConstant(vals []float64) bool {
	for _, v := range vals[1:] {
		if v != vals[0] {
			return false
		}
	}
	return true
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func floatPtr(v float64) *float64 { return &v }

type valueCount struct {
	value string
	count int
}

// valueCounts counts non-missing values, most frequent first, ties by first appearance
func valueCounts(c *frame.Column) []valueCount {
	byValue := make(map[string]*valueCount)
	var order []*valueCount
	for i, s := range c.Raw {
		if c.Null[i] {
			continue
		}
		vc, ok := byValue[s]
		if !ok {
			vc = &valueCount{value: s}
			byValue[s] = vc
			order = append(order, vc)
		}
		vc.count++
	}

	out := make([]valueCount, len(order))
	for i, vc := range order {
		out[i] = *vc
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].count > out[j].count })
	return out
}
