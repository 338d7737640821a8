package prediction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"ml-orchestrator/core/frame"
	"ml-orchestrator/core/models"
	"ml-orchestrator/core/spec"
	"ml-orchestrator/training/pipeline"
)

type fakeModels struct {
	mu    sync.Mutex
	blobs map[string][]byte
	loads int
}

func (f *fakeModels) GetModel(_ context.Context, tenant, id string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	blob, ok := f.blobs[tenant+"/"+id]
	if !ok {
		return nil, fmt.Errorf("model %s: %w", id, models.ErrNotFound)
	}
	return blob, nil
}

func trained(t *testing.T, modelType models.ModelType, csv string, columns []models.ColumnDefinition) []byte {
	t.Helper()
	data, err := frame.ReadDelimited(strings.NewReader(csv), ',')
	if err != nil {
		t.Fatalf("ReadDelimited: %v", err)
	}
	cfg, err := spec.ParseTrainingConfig(modelType, map[string]interface{}{"n_estimators": 5})
	if err != nil {
		t.Fatalf("ParseTrainingConfig: %v", err)
	}
	p, err := pipeline.Build(columns, modelType, cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := p.Fit(data); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	blob, err := p.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return blob
}

func newFixture(t *testing.T) (*Service, *fakeModels) {
	t.Helper()
	regression := trained(t, models.ModelTypeRegression, "x,y\n1,10\n2,20\n3,30\n", []models.ColumnDefinition{
		{Name: "x", DataType: models.DataTypeNumeric, IsFeature: true},
		{Name: "y", DataType: models.DataTypeNumeric, IsTarget: true},
	})
	classifier := trained(t, models.ModelTypeClassification, "color,size,label\nred,1,a\nblue,5,b\nred,2,a\nblue,6,b\n", []models.ColumnDefinition{
		{Name: "color", DataType: models.DataTypeCategorical, IsFeature: true},
		{Name: "size", DataType: models.DataTypeNumeric, IsFeature: true},
		{Name: "label", DataType: models.DataTypeCategorical, IsTarget: true},
	})

	source := &fakeModels{blobs: map[string][]byte{
		"tenant_1/reg": regression,
		"tenant_1/clf": classifier,
	}}
	svc, err := NewService(source, 2, nil, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, source
}

func TestPredictRegressionReturnsFloats(t *testing.T) {
	svc, _ := newFixture(t)
	out, err := svc.Predict(context.Background(), "tenant_1", "reg", []map[string]interface{}{{"x": 2.0, "extra": "ignored"}})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("predictions = %v", out)
	}
	if _, ok := out[0].(float64); !ok {
		t.Fatalf("prediction is %T", out[0])
	}
}

func TestPredictClassificationReturnsLabels(t *testing.T) {
	svc, _ := newFixture(t)
	rows := []map[string]interface{}{
		{"color": "red", "size": 1.0},
		{"color": "blue", "size": 6.0},
	}
	out, err := svc.Predict(context.Background(), "tenant_1", "clf", rows)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("predictions = %v", out)
	}
	for _, v := range out {
		label, ok := v.(string)
		if !ok || (label != "a" && label != "b") {
			t.Fatalf("prediction %v (%T) is not a class label", v, v)
		}
	}
}

func TestPredictRejectsMissingFeatures(t *testing.T) {
	svc, _ := newFixture(t)
	_, err := svc.Predict(context.Background(), "tenant_1", "clf", []map[string]interface{}{{"color": "red"}})
	if !errors.Is(err, models.ErrValidation) || !strings.Contains(err.Error(), "size") {
		t.Fatalf("err = %v", err)
	}
	if _, err := svc.Predict(context.Background(), "tenant_1", "reg", nil); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("empty rows err = %v", err)
	}
}

func TestPredictUnknownModel(t *testing.T) {
	svc, _ := newFixture(t)
	rows := []map[string]interface{}{{"x": 1.0}}
	if _, err := svc.Predict(context.Background(), "tenant_1", "missing", rows); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
	// another tenant never sees tenant_1's model, cached or not
	if _, err := svc.Predict(context.Background(), "tenant_1", "reg", rows); err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if _, err := svc.Predict(context.Background(), "tenant_2", "reg", rows); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("cross-tenant err = %v", err)
	}
	// the model is resolved before the rows are looked at
	if _, err := svc.Predict(context.Background(), "tenant_1", "missing", nil); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("empty rows on unknown model err = %v", err)
	}
}

func TestModelCache(t *testing.T) {
	svc, source := newFixture(t)
	ctx := context.Background()
	rows := []map[string]interface{}{{"x": 1.0}}

	for i := 0; i < 3; i++ {
		if _, err := svc.Predict(ctx, "tenant_1", "reg", rows); err != nil {
			t.Fatalf("Predict: %v", err)
		}
	}
	if source.loads != 1 || !svc.Cached("tenant_1", "reg") {
		t.Fatalf("loads = %d, want 1", source.loads)
	}

	svc.Invalidate("tenant_1", "reg")
	if svc.Cached("tenant_1", "reg") {
		t.Fatal("model still cached after Invalidate")
	}
	delete(source.blobs, "tenant_1/reg")
	if _, err := svc.Predict(ctx, "tenant_1", "reg", rows); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("deleted model err = %v", err)
	}
}

func TestNewServiceRejectsBadSize(t *testing.T) {
	if _, err := NewService(&fakeModels{}, 0, nil, nil); err == nil {
		t.Fatal("cache size 0 accepted")
	}
}
