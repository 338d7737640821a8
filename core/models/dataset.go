package models

import "time"

// DatasetMetadata is the metadata sidecar of an uploaded dataset
type DatasetMetadata struct {
	SchemaVersion int                    `json:"schema_version"`
	DatasetID     string                 `json:"dataset_id"`
	TenantID      string                 `json:"tenant_id"`
	Filename      string                 `json:"filename"`
	UploadedAt    time.Time              `json:"uploaded_at"`
	RowCount      int                    `json:"row_count"`
	ColumnCount   int                    `json:"column_count"`
	ColumnNames   []string               `json:"column_names"`
	ColumnStats   map[string]ColumnStats `json:"column_stats"`
	SizeBytes     int64                  `json:"size_bytes"`
}

// ColumnStats holds upload-time statistics of one column.
// Numeric and categorical columns populate disjoint optional fields.
type ColumnStats struct {
	Dtype   string `json:"dtype"`
	Count   int    `json:"count"`
	Missing int    `json:"missing"`

	Mean *float64 `json:"mean,omitempty"`
	Std  *float64 `json:"std,omitempty"`
	Min  *float64 `json:"min,omitempty"`
	Q25  *float64 `json:"25%,omitempty"`
	Q50  *float64 `json:"50%,omitempty"`
	Q75  *float64 `json:"75%,omitempty"`
	Max  *float64 `json:"max,omitempty"`

	Unique    *int           `json:"unique,omitempty"`
	Top       *string        `json:"top,omitempty"`
	Freq      *int           `json:"freq,omitempty"`
	TopValues map[string]int `json:"top_values,omitempty"`
}

// AnalysisResult carries the outcome of the requested analysis operations.
// A field stays nil unless its operation was requested.
type AnalysisResult struct {
	Summary       *DatasetSummary               `json:"summary"`
	Correlation   map[string]map[string]float64 `json:"correlation"`
	MissingValues map[string]int                `json:"missing_values"`
	Outliers      map[string][]int              `json:"outliers"`
	Distributions map[string]Distribution       `json:"distributions"`
}

// DatasetSummary is the "summary" analysis operation
type DatasetSummary struct {
	Rows               int   `json:"rows"`
	Columns            int   `json:"columns"`
	MissingValues      int   `json:"missing_values"`
	DuplicateRows      int   `json:"duplicate_rows"`
	NumericColumns     int   `json:"numeric_columns"`
	CategoricalColumns int   `json:"categorical_columns"`
	DatetimeColumns    int   `json:"datetime_columns"`
	MemoryUsage        int64 `json:"memory_usage"`
}

// Distribution describes one column for the "distributions" analysis operation
type Distribution struct {
	Type        string         `json:"type"`
	Histogram   *Histogram     `json:"histogram,omitempty"`
	Skewness    *float64       `json:"skewness,omitempty"`
	Kurtosis    *float64       `json:"kurtosis,omitempty"`
	ValueCounts map[string]int `json:"value_counts,omitempty"`
	UniqueCount *int           `json:"unique_count,omitempty"`
}

// Histogram is a fixed-bin histogram with len(BinEdges) == len(Counts)+1
type Histogram struct {
	Counts   []int     `json:"counts"`
	BinEdges []float64 `json:"bin_edges"`
}

// ColumnValues lists the distinct values of a dataset column
type ColumnValues struct {
	Column       string   `json:"column"`
	UniqueValues []string `json:"unique_values"`
	TotalUnique  int      `json:"total_unique"`
	Truncated    bool     `json:"truncated"`
}
