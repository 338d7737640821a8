package models

import (
	"encoding/json"
	"time"
)

// ModelType selects the estimator family of a training request
type ModelType string

const (
	ModelTypeClassification ModelType = "classification"
	ModelTypeRegression     ModelType = "regression"
	ModelTypeClustering     ModelType = "clustering"
	ModelTypeCustom         ModelType = "custom"
)

// Valid reports whether t is an accepted enum value. Accepted does not mean buildable.
func (t ModelType) Valid() bool {
	switch t {
	case ModelTypeClassification, ModelTypeRegression, ModelTypeClustering, ModelTypeCustom:
		return true
	}
	return false
}

// DataType is the declared type of a dataset column
type DataType string

const (
	DataTypeNumeric     DataType = "numeric"
	DataTypeCategorical DataType = "categorical"
	DataTypeText        DataType = "text"
	DataTypeDatetime    DataType = "datetime"
	DataTypeBoolean     DataType = "boolean"
)

// Valid reports whether d is a known data type
func (d DataType) Valid() bool {
	switch d {
	case DataTypeNumeric, DataTypeCategorical, DataTypeText, DataTypeDatetime, DataTypeBoolean:
		return true
	}
	return false
}

// ColumnDefinition is one entry of a training request's column schema
type ColumnDefinition struct {
	Name        string   `json:"name"`
	DataType    DataType `json:"data_type"`
	IsTarget    bool     `json:"is_target"`
	IsFeature   bool     `json:"is_feature"`
	Nullable    bool     `json:"nullable"`
	Description string   `json:"description,omitempty"`
}

// UnmarshalJSON applies the schema defaults (is_feature and nullable are true unless given)
func (c *ColumnDefinition) UnmarshalJSON(data []byte) error {
	type plain ColumnDefinition
	p := plain{IsFeature: true, Nullable: true}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*c = ColumnDefinition(p)
	return nil
}

// TrainingRequest asks for a model to be trained on a tenant's dataset
type TrainingRequest struct {
	TenantID       string                 `json:"tenant_id"`
	ModelName      string                 `json:"model_name"`
	ModelType      ModelType              `json:"model_type"`
	DatasetID      string                 `json:"dataset_id"`
	Columns        []ColumnDefinition     `json:"columns"`
	TrainingConfig map[string]interface{} `json:"training_config"`
	Description    string                 `json:"description,omitempty"`
	Tags           []string               `json:"tags"`
}

// Validate checks the request shape. Schema semantics (target/feature rules) are
// checked by the executor so that such requests still produce a job.
func (r *TrainingRequest) Validate() error {
	if r.ModelName == "" {
		return Invalid("model_name", "is required")
	}
	if !r.ModelType.Valid() {
		return Invalid("model_type", "unknown model type %q", r.ModelType)
	}
	for i, c := range r.Columns {
		if c.Name == "" {
			return Invalid("columns", "entry %d has no name", i)
		}
		if !c.DataType.Valid() {
			return Invalid("columns", "column %q has unknown data_type %q", c.Name, c.DataType)
		}
	}
	return nil
}

// TargetAndFeatures resolves the target column and the ordered feature set.
// The target is never part of the feature set even when flagged as a feature.
func TargetAndFeatures(columns []ColumnDefinition) (string, []ColumnDefinition, error) {
	var target string
	targets := 0
	for _, c := range columns {
		if c.IsTarget {
			target = c.Name
			targets++
		}
	}
	switch {
	case targets == 0:
		return "", nil, Invalid("columns", "no target column specified")
	case targets > 1:
		return "", nil, Invalid("columns", "exactly one target column is allowed, got %d", targets)
	}

	seen := map[string]bool{}
	var features []ColumnDefinition
	for _, c := range columns {
		if seen[c.Name] {
			return "", nil, Invalid("columns", "column %q is declared twice", c.Name)
		}
		seen[c.Name] = true
		if c.IsFeature && c.Name != target {
			features = append(features, c)
		}
	}
	if len(features) == 0 {
		return "", nil, Invalid("columns", "no feature columns specified")
	}
	return target, features, nil
}

// ModelStatusActive is the only status a persisted model carries
const ModelStatusActive = "active"

// ModelInfo is the metadata sidecar of a persisted model
type ModelInfo struct {
	SchemaVersion       int                    `json:"schema_version"`
	ModelID             string                 `json:"model_id"`
	TenantID            string                 `json:"tenant_id"`
	ModelName           string                 `json:"model_name"`
	ModelType           ModelType              `json:"model_type"`
	Description         string                 `json:"description,omitempty"`
	Tags                []string               `json:"tags"`
	CreatedAt           time.Time              `json:"created_at"`
	UpdatedAt           time.Time              `json:"updated_at"`
	Metrics             map[string]float64     `json:"metrics"`
	FeatureImportance   map[string]float64     `json:"feature_importance"`
	Status              string                 `json:"status"`
	Version             int                    `json:"version"`
	DatasetID           string                 `json:"dataset_id"`
	ColumnSchema        []ColumnDefinition     `json:"column_schema"`
	TrainingConfig      map[string]interface{} `json:"training_config"`
	FeatureColumns      []string               `json:"feature_columns"`
	TargetColumn        string                 `json:"target_column"`
	SizeBytes           int64                  `json:"size_bytes"`
	TrainingTimeSeconds float64                `json:"training_time_seconds"`
}
