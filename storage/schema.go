package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"ml-orchestrator/core/models"
)

// MetadataSchemaVersion is written into every metadata sidecar
const MetadataSchemaVersion = 2

// Records without schema_version were written by the first release of the service
// and use flat field names and naive local timestamps.
type legacyDataset struct {
	DatasetID   string                        `json:"dataset_id"`
	TenantID    string                        `json:"tenant_id"`
	Filename    string                        `json:"filename"`
	UploadTime  string                        `json:"upload_time"`
	Rows        int                           `json:"rows"`
	Columns     int                           `json:"columns"`
	ColumnNames []string                      `json:"column_names"`
	ColumnStats map[string]models.ColumnStats `json:"column_stats"`
}

type legacyModel struct {
	ModelID             string                    `json:"model_id"`
	TenantID            string                    `json:"tenant_id"`
	ModelName           string                    `json:"model_name"`
	ModelType           models.ModelType          `json:"model_type"`
	Description         string                    `json:"description"`
	Tags                []string                  `json:"tags"`
	CreatedAt           string                    `json:"created_at"`
	UpdatedAt           string                    `json:"updated_at"`
	Metrics             map[string]float64        `json:"metrics"`
	FeatureImportance   map[string]float64        `json:"feature_importance"`
	Status              string                    `json:"status"`
	Version             int                       `json:"version"`
	DatasetID           string                    `json:"dataset_id"`
	Columns             []models.ColumnDefinition `json:"columns"`
	TrainingConfig      map[string]interface{}    `json:"training_config"`
	SizeBytes           int64                     `json:"size_bytes"`
	TrainingTimeSeconds float64                   `json:"training_time_seconds"`
}

type versionProbe struct {
	SchemaVersion int `json:"schema_version"`
}

var legacyTimeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05.999999999"}

// parseLegacyTime reads an ISO-8601 timestamp; values without a zone are taken as UTC
func parseLegacyTime(s string) time.Time {
	for _, layout := range legacyTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func schemaVersion(data []byte) (int, error) {
	var probe versionProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return 0, fmt.Errorf("%w: corrupt metadata: %v", models.ErrInternal, err)
	}
	if probe.SchemaVersion > MetadataSchemaVersion {
		return 0, fmt.Errorf("%w: metadata schema_version %d is newer than supported %d",
			models.ErrInternal, probe.SchemaVersion, MetadataSchemaVersion)
	}
	return probe.SchemaVersion, nil
}

func decodeStrict(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: corrupt metadata: %v", models.ErrInternal, err)
	}
	return nil
}

// decodeDatasetMetadata reads a dataset sidecar of any supported version
func decodeDatasetMetadata(data []byte) (*models.DatasetMetadata, error) {
	version, err := schemaVersion(data)
	if err != nil {
		return nil, err
	}
	if version == MetadataSchemaVersion {
		var meta models.DatasetMetadata
		if err := decodeStrict(data, &meta); err != nil {
			return nil, err
		}
		return &meta, nil
	}

	var old legacyDataset
	if err := json.Unmarshal(data, &old); err != nil {
		return nil, fmt.Errorf("%w: corrupt legacy metadata: %v", models.ErrInternal, err)
	}
	return &models.DatasetMetadata{
		SchemaVersion: MetadataSchemaVersion,
		DatasetID:     old.DatasetID,
		TenantID:      old.TenantID,
		Filename:      old.Filename,
		UploadedAt:    parseLegacyTime(old.UploadTime),
		RowCount:      old.Rows,
		ColumnCount:   old.Columns,
		ColumnNames:   old.ColumnNames,
		ColumnStats:   old.ColumnStats,
	}, nil
}

// decodeModelInfo reads a model sidecar of any supported version
func decodeModelInfo(data []byte) (*models.ModelInfo, error) {
	version, err := schemaVersion(data)
	if err != nil {
		return nil, err
	}
	if version == MetadataSchemaVersion {
		var info models.ModelInfo
		if err := decodeStrict(data, &info); err != nil {
			return nil, err
		}
		return &info, nil
	}

	var old legacyModel
	if err := json.Unmarshal(data, &old); err != nil {
		return nil, fmt.Errorf("%w: corrupt legacy metadata: %v", models.ErrInternal, err)
	}
	info := &models.ModelInfo{
		SchemaVersion:       MetadataSchemaVersion,
		ModelID:             old.ModelID,
		TenantID:            old.TenantID,
		ModelName:           old.ModelName,
		ModelType:           old.ModelType,
		Description:         old.Description,
		Tags:                old.Tags,
		CreatedAt:           parseLegacyTime(old.CreatedAt),
		UpdatedAt:           parseLegacyTime(old.UpdatedAt),
		Metrics:             old.Metrics,
		FeatureImportance:   old.FeatureImportance,
		Status:              old.Status,
		Version:             old.Version,
		DatasetID:           old.DatasetID,
		ColumnSchema:        old.Columns,
		TrainingConfig:      old.TrainingConfig,
		SizeBytes:           old.SizeBytes,
		TrainingTimeSeconds: old.TrainingTimeSeconds,
	}
	if target, features, err := models.TargetAndFeatures(old.Columns); err == nil {
		info.TargetColumn = target
		for _, c := range features {
			if c.DataType == models.DataTypeNumeric || c.DataType == models.DataTypeCategorical {
				info.FeatureColumns = append(info.FeatureColumns, c.Name)
			}
		}
	}
	if info.Status == "" {
		info.Status = models.ModelStatusActive
	}
	if info.Version == 0 {
		info.Version = 1
	}
	return info, nil
}
