package analyzer

import (
	"fmt"
	"strings"

	"ml-orchestrator/core/frame"
	"ml-orchestrator/core/models"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultValuesLimit caps ColumnValues when the caller passes no limit
const DefaultValuesLimit = 100

// ColumnStats computes the per-column statistics stored with an uploaded dataset
func ColumnStats(f *frame.Frame) map[string]models.ColumnStats {
	out := make(map[string]models.ColumnStats, f.NumCols())
	for _, c := range f.Columns() {
		st := models.ColumnStats{
			Dtype:   c.Dtype,
			Count:   c.Len() - c.NullCount(),
			Missing: c.NullCount(),
		}
		switch {
		case c.Kind == frame.KindNumeric || c.Dtype == "bool":
			numericStats(&st, statValues(c))
		case c.Dtype == "object":
			categoricalStats(&st, c)
		}
		out[c.Name] = st
	}
	return out
}

// statValues returns the non-missing values as numbers, booleans as 1 and 0
func statValues(c *frame.Column) []float64 {
	if c.Kind != frame.KindBoolean {
		return c.Valid()
	}
	vals := make([]float64, 0, c.Len())
	for i, s := range c.Raw {
		if c.Null[i] {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(s), "true") {
			vals = append(vals, 1)
		} else {
			vals = append(vals, 0)
		}
	}
	return vals
}

func numericStats(st *models.ColumnStats, vals []float64) {
	if len(vals) == 0 {
		return
	}
	sorted := sortedCopy(vals)
	st.Mean = floatPtr(stat.Mean(vals, nil))
	if len(vals) > 1 {
		st.Std = finite(stat.StdDev(vals, nil))
	}
	st.Min = floatPtr(floats.Min(vals))
	st.Q25 = floatPtr(quantile(sorted, 0.25))
	st.Q50 = floatPtr(quantile(sorted, 0.5))
	st.Q75 = floatPtr(quantile(sorted, 0.75))
	st.Max = floatPtr(floats.Max(vals))
}

func categoricalStats(st *models.ColumnStats, c *frame.Column) {
	counts := valueCounts(c)
	unique := len(counts)
	st.Unique = &unique
	st.TopValues = make(map[string]int)
	for i, vc := range counts {
		if i == topStatValues {
			break
		}
		st.TopValues[vc.value] = vc.count
	}
	if len(counts) == 0 {
		return
	}

	// the mode breaks ties by the smallest value
	top, freq := counts[0].value, counts[0].count
	for _, vc := range counts[1:] {
		if vc.count == freq && vc.value < top {
			top = vc.value
		}
	}
	st.Top = &top
	st.Freq = &freq
}

// ColumnValues lists up to limit distinct non-missing values of a column in order of first appearance
func ColumnValues(f *frame.Frame, column string, limit int) (*models.ColumnValues, error) {
	c, ok := f.Column(column)
	if !ok {
		return nil, fmt.Errorf("column %q: %w", column, models.ErrNotFound)
	}
	if limit <= 0 {
		limit = DefaultValuesLimit
	}

	var firstSeen []string
	seen := make(map[string]bool)
	for i, s := range c.Raw {
		if c.Null[i] || seen[s] {
			continue
		}
		seen[s] = true
		firstSeen = append(firstSeen, s)
	}
	values := firstSeen
	if len(values) > limit {
		values = values[:limit]
	}
	if values == nil {
		values = []string{}
	}
	return &models.ColumnValues{
		Column:       column,
		UniqueValues: values,
		TotalUnique:  len(firstSeen),
		Truncated:    len(values) < len(firstSeen),
	}, nil
}
