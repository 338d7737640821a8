// Package prediction serves predictions from persisted pipelines through a bounded
// per-tenant model cache.
package prediction

import (
	"context"
	"fmt"
	"strings"

	"ml-orchestrator/core/frame"
	"ml-orchestrator/core/models"
	"ml-orchestrator/core/monitoring"
	"ml-orchestrator/training/pipeline"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// ModelSource loads serialized pipelines
type ModelSource interface {
	GetModel(ctx context.Context, tenant, id string) ([]byte, error)
}

type cacheKey struct {
	tenant  string
	modelID string
}

// Service applies persisted pipelines to new rows
type Service struct {
	models  ModelSource
	cache   *lru.Cache[cacheKey, *pipeline.Pipeline]
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// NewService creates a prediction service caching up to cacheSize decoded pipelines
func NewService(source ModelSource, cacheSize int, metrics *monitoring.Metrics, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cache, err := lru.New[cacheKey, *pipeline.Pipeline](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create model cache: %w", err)
	}
	return &Service{
		models:  source,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
	}, nil
}

// Predict scores rows with the tenant's model. Columns are matched by name; extra
// columns are ignored and missing feature columns are a validation error.
func (s *Service) Predict(ctx context.Context, tenant, modelID string, rows []map[string]interface{}) ([]interface{}, error) {
	out, err := s.predict(ctx, tenant, modelID, rows)
	if err != nil {
		s.metrics.RecordPrediction("error", 0)
		return nil, err
	}
	s.metrics.RecordPrediction("success", len(out))
	return out, nil
}

func (s *Service) predict(ctx context.Context, tenant, modelID string, rows []map[string]interface{}) ([]interface{}, error) {
	p, err := s.load(ctx, tenant, modelID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, models.Invalid("data", "at least one row is required")
	}

	input, absent, err := frame.FromRows(rows, p.FeatureColumns())
	if err != nil {
		return nil, models.Invalid("data", "%v", err)
	}
	if len(absent) > 0 {
		return nil, models.Invalid("data", "missing feature columns: %s", strings.Join(absent, ", "))
	}
	return p.Predict(input)
}

func (s *Service) load(ctx context.Context, tenant, modelID string) (*pipeline.Pipeline, error) {
	key := cacheKey{tenant: tenant, modelID: modelID}
	if p, ok := s.cache.Get(key); ok {
		s.metrics.RecordCacheLookup(true)
		return p, nil
	}
	s.metrics.RecordCacheLookup(false)

	blob, err := s.models.GetModel(ctx, tenant, modelID)
	if err != nil {
		return nil, err
	}
	p, err := pipeline.Decode(blob)
	if err != nil {
		return nil, err
	}
	if evicted := s.cache.Add(key, p); evicted {
		s.logger.Debug("Model cache evicted an entry", zap.Int("size", s.cache.Len()))
	}
	return p, nil
}

// Invalidate drops a model from the cache. Call it when the model is deleted.
func (s *Service) Invalidate(tenant, modelID string) {
	s.cache.Remove(cacheKey{tenant: tenant, modelID: modelID})
}

// Cached reports whether the tenant's model is currently held in memory
func (s *Service) Cached(tenant, modelID string) bool {
	return s.cache.Contains(cacheKey{tenant: tenant, modelID: modelID})
}
