// Package storage persists tenant-scoped datasets and models with their metadata sidecars.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"ml-orchestrator/core/analyzer"
	"ml-orchestrator/core/frame"
	"ml-orchestrator/core/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DeleteOutcome classifies the result of deleting an artifact
type DeleteOutcome string

const (
	OutcomeDeleted       DeleteOutcome = "deleted"
	OutcomeNotFound      DeleteOutcome = "not_found"
	OutcomeRemovalFailed DeleteOutcome = "removal_failed"
)

const (
	datasetsPrefix = "datasets"
	modelsPrefix   = "models"
	metaSuffix     = ".meta.json"
	datasetSuffix  = ".csv"
	modelSuffix    = ".model"
)

// ArtifactStore reads and writes datasets and models keyed by (tenant, id).
// It holds no locks: ids are fresh UUIDs and artifacts are immutable.
type ArtifactStore struct {
	blobs  BlobStore
	logger *zap.Logger
	now    func() time.Time
}

// NewArtifactStore wraps a blob backend
func NewArtifactStore(blobs BlobStore, logger *zap.Logger) *ArtifactStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArtifactStore{blobs: blobs, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

func validID(id string) bool {
	parsed, err := uuid.Parse(id)
	return err == nil && parsed.String() == id
}

// keys resolves the data and metadata keys of an artifact. Anything that is not a
// canonical UUID, or a tenant that cannot name a prefix, is reported as not found.
func keys(kind, tenant, id, dataSuffix string) (string, string, error) {
	if models.ValidateTenantID(tenant) != nil || !validID(id) {
		return "", "", fmt.Errorf("%s %s: %w", strings.TrimSuffix(kind, "s"), id, models.ErrNotFound)
	}
	base := kind + "/" + tenant + "/" + id
	return base + dataSuffix, base + metaSuffix, nil
}

func encodeMeta(v interface{}) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

// PutDataset parses an upload, stores it normalized to CSV and writes its metadata.
// The parsed frame is returned alongside so callers can build a preview.
func (s *ArtifactStore) PutDataset(ctx context.Context, tenant string, data []byte, filename string) (*models.DatasetMetadata, *frame.Frame, error) {
	if err := models.ValidateTenantID(tenant); err != nil {
		return nil, nil, err
	}
	f, err := frame.Read(bytes.NewReader(data), filename)
	if err != nil {
		return nil, nil, err
	}
	normalized, err := f.EncodeCSV()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: normalize dataset: %v", models.ErrInternal, err)
	}

	meta := &models.DatasetMetadata{
		SchemaVersion: MetadataSchemaVersion,
		DatasetID:     uuid.NewString(),
		TenantID:      tenant,
		Filename:      filename,
		UploadedAt:    s.now(),
		RowCount:      f.NumRows(),
		ColumnCount:   f.NumCols(),
		ColumnNames:   f.Names(),
		ColumnStats:   analyzer.ColumnStats(f),
		SizeBytes:     int64(len(normalized)),
	}

	dataKey, metaKey, _ := keys(datasetsPrefix, tenant, meta.DatasetID, datasetSuffix)
	if err := s.putPair(ctx, dataKey, normalized, metaKey, meta); err != nil {
		return nil, nil, err
	}
	s.logger.Info("Dataset stored",
		zap.String("tenant_id", tenant),
		zap.String("dataset_id", meta.DatasetID),
		zap.Int("rows", meta.RowCount),
		zap.Int("columns", meta.ColumnCount))
	return meta, f, nil
}

// putPair writes data first and metadata last; a failed metadata write removes the data
func (s *ArtifactStore) putPair(ctx context.Context, dataKey string, data []byte, metaKey string, meta interface{}) error {
	encoded, err := encodeMeta(meta)
	if err != nil {
		return fmt.Errorf("%w: encode metadata: %v", models.ErrInternal, err)
	}
	if err := s.blobs.Put(ctx, dataKey, data); err != nil {
		return fmt.Errorf("%w: write %s: %v", models.ErrInternal, dataKey, err)
	}
	if err := s.blobs.Put(ctx, metaKey, encoded); err != nil {
		if rmErr := s.blobs.Delete(ctx, dataKey); rmErr != nil {
			s.logger.Error("Failed to remove orphaned artifact data", zap.String("key", dataKey), zap.Error(rmErr))
		}
		return fmt.Errorf("%w: write %s: %v", models.ErrInternal, metaKey, err)
	}
	return nil
}

// GetDataset loads a tenant's dataset
func (s *ArtifactStore) GetDataset(ctx context.Context, tenant, id string) (*frame.Frame, error) {
	dataKey, _, err := keys(datasetsPrefix, tenant, id, datasetSuffix)
	if err != nil {
		return nil, err
	}
	data, err := s.blobs.Get(ctx, dataKey)
	if err != nil {
		return nil, wrapGet("dataset", id, err)
	}
	f, err := frame.ReadDelimited(bytes.NewReader(data), ',')
	if err != nil {
		return nil, fmt.Errorf("%w: stored dataset %s is unreadable: %v", models.ErrInternal, id, err)
	}
	return f, nil
}

// DatasetExists reports whether both files of a dataset are present
func (s *ArtifactStore) DatasetExists(ctx context.Context, tenant, id string) (bool, error) {
	dataKey, metaKey, err := keys(datasetsPrefix, tenant, id, datasetSuffix)
	if err != nil {
		return false, nil
	}
	return s.pairExists(ctx, dataKey, metaKey)
}

// GetDatasetMetadata reads a dataset's metadata, migrating older records
func (s *ArtifactStore) GetDatasetMetadata(ctx context.Context, tenant, id string) (*models.DatasetMetadata, error) {
	_, metaKey, err := keys(datasetsPrefix, tenant, id, datasetSuffix)
	if err != nil {
		return nil, err
	}
	data, err := s.blobs.Get(ctx, metaKey)
	if err != nil {
		return nil, wrapGet("dataset", id, err)
	}
	return decodeDatasetMetadata(data)
}

// ListDatasets returns a tenant's dataset metadata, newest first. Unreadable records are skipped.
func (s *ArtifactStore) ListDatasets(ctx context.Context, tenant string) ([]*models.DatasetMetadata, error) {
	metas, err := s.listMeta(ctx, datasetsPrefix, tenant)
	if err != nil {
		return nil, err
	}
	out := make([]*models.DatasetMetadata, 0, len(metas))
	for key, data := range metas {
		meta, err := decodeDatasetMetadata(data)
		if err != nil {
			s.logger.Warn("Skipping unreadable dataset metadata", zap.String("key", key), zap.Error(err))
			continue
		}
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].UploadedAt.After(out[j].UploadedAt)
		}
		return out[i].DatasetID < out[j].DatasetID
	})
	return out, nil
}

// DeleteDataset removes a dataset's data and metadata
func (s *ArtifactStore) DeleteDataset(ctx context.Context, tenant, id string) (DeleteOutcome, error) {
	dataKey, metaKey, err := keys(datasetsPrefix, tenant, id, datasetSuffix)
	if err != nil {
		return OutcomeNotFound, err
	}
	return s.deletePair(ctx, "dataset", id, dataKey, metaKey)
}

// PutModel stores a serialized pipeline and then its metadata. SizeBytes and
// SchemaVersion are filled in here.
func (s *ArtifactStore) PutModel(ctx context.Context, tenant, id string, blob []byte, info *models.ModelInfo) error {
	dataKey, metaKey, err := keys(modelsPrefix, tenant, id, modelSuffix)
	if err != nil {
		return fmt.Errorf("%w: invalid model key: %v", models.ErrInternal, err)
	}
	info.SchemaVersion = MetadataSchemaVersion
	info.SizeBytes = int64(len(blob))
	if err := s.putPair(ctx, dataKey, blob, metaKey, info); err != nil {
		return err
	}
	s.logger.Info("Model stored",
		zap.String("tenant_id", tenant),
		zap.String("model_id", id),
		zap.Int64("size_bytes", info.SizeBytes))
	return nil
}

// GetModel returns a serialized pipeline
func (s *ArtifactStore) GetModel(ctx context.Context, tenant, id string) ([]byte, error) {
	dataKey, _, err := keys(modelsPrefix, tenant, id, modelSuffix)
	if err != nil {
		return nil, err
	}
	blob, err := s.blobs.Get(ctx, dataKey)
	if err != nil {
		return nil, wrapGet("model", id, err)
	}
	return blob, nil
}

// GetModelMetadata reads a model's metadata, migrating older records
func (s *ArtifactStore) GetModelMetadata(ctx context.Context, tenant, id string) (*models.ModelInfo, error) {
	_, metaKey, err := keys(modelsPrefix, tenant, id, modelSuffix)
	if err != nil {
		return nil, err
	}
	data, err := s.blobs.Get(ctx, metaKey)
	if err != nil {
		return nil, wrapGet("model", id, err)
	}
	return decodeModelInfo(data)
}

// ListModels returns a tenant's model metadata, newest first
func (s *ArtifactStore) ListModels(ctx context.Context, tenant string) ([]*models.ModelInfo, error) {
	metas, err := s.listMeta(ctx, modelsPrefix, tenant)
	if err != nil {
		return nil, err
	}
	out := make([]*models.ModelInfo, 0, len(metas))
	for key, data := range metas {
		info, err := decodeModelInfo(data)
		if err != nil {
			s.logger.Warn("Skipping unreadable model metadata", zap.String("key", key), zap.Error(err))
			continue
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ModelID < out[j].ModelID
	})
	return out, nil
}

// DeleteModel removes a model's blob and metadata
func (s *ArtifactStore) DeleteModel(ctx context.Context, tenant, id string) (DeleteOutcome, error) {
	dataKey, metaKey, err := keys(modelsPrefix, tenant, id, modelSuffix)
	if err != nil {
		return OutcomeNotFound, err
	}
	return s.deletePair(ctx, "model", id, dataKey, metaKey)
}

func (s *ArtifactStore) pairExists(ctx context.Context, dataKey, metaKey string) (bool, error) {
	for _, key := range []string{dataKey, metaKey} {
		ok, err := s.blobs.Exists(ctx, key)
		if err != nil {
			return false, fmt.Errorf("%w: stat %s: %v", models.ErrInternal, key, err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// deletePair removes data then metadata. If either is already missing nothing is removed.
func (s *ArtifactStore) deletePair(ctx context.Context, kind, id, dataKey, metaKey string) (DeleteOutcome, error) {
	present, err := s.pairExists(ctx, dataKey, metaKey)
	if err != nil {
		return OutcomeRemovalFailed, err
	}
	if !present {
		return OutcomeNotFound, fmt.Errorf("%s %s: %w", kind, id, models.ErrNotFound)
	}
	for _, key := range []string{dataKey, metaKey} {
		if err := s.blobs.Delete(ctx, key); err != nil {
			s.logger.Error("Artifact removal failed", zap.String("key", key), zap.Error(err))
			return OutcomeRemovalFailed, fmt.Errorf("%w: remove %s %s: %v", models.ErrInternal, kind, id, err)
		}
	}
	s.logger.Info("Artifact deleted", zap.String("kind", kind), zap.String("id", id))
	return OutcomeDeleted, nil
}

func (s *ArtifactStore) listMeta(ctx context.Context, kind, tenant string) (map[string][]byte, error) {
	if err := models.ValidateTenantID(tenant); err != nil {
		return nil, err
	}
	listed, err := s.blobs.List(ctx, kind+"/"+tenant+"/")
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", models.ErrInternal, kind, err)
	}
	out := make(map[string][]byte)
	for _, key := range listed {
		if !strings.HasSuffix(key, metaSuffix) {
			continue
		}
		data, err := s.blobs.Get(ctx, key)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("%w: read %s: %v", models.ErrInternal, key, err)
		}
		out[key] = data
	}
	return out, nil
}

func wrapGet(kind, id string, err error) error {
	if errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("%s %s: %w", kind, id, models.ErrNotFound)
	}
	return fmt.Errorf("%w: read %s %s: %v", models.ErrInternal, kind, id, err)
}
