// Package pipeline builds, fits, evaluates and serializes the preprocessing plus
// random forest unit that is persisted as a model artifact.
package pipeline

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"ml-orchestrator/core/frame"
	"ml-orchestrator/core/models"
	"ml-orchestrator/core/spec"
	"ml-orchestrator/training/forest"
	"ml-orchestrator/training/preprocess"
)

// Pipeline is a column-wise preprocessor followed by a random forest
type Pipeline struct {
	ModelType   models.ModelType
	Target      string
	Numeric     []string
	Categorical []string
	Dropped     []string
	Classes     []string
	Config      spec.TrainingConfig

	Preprocessor *preprocess.Transformer
	Forest       *forest.Forest
}

// Build validates the column schema and returns an unfitted pipeline.
// Text, datetime and boolean features are dropped; only numeric and categorical features are used.
func Build(columns []models.ColumnDefinition, modelType models.ModelType, cfg *spec.TrainingConfig) (*Pipeline, error) {
	if modelType != models.ModelTypeClassification && modelType != models.ModelTypeRegression {
		return nil, fmt.Errorf("%w: %s", models.ErrUnsupportedModelType, modelType)
	}
	target, features, err := models.TargetAndFeatures(columns)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{ModelType: modelType, Target: target, Config: *cfg}
	for _, c := range features {
		switch c.DataType {
		case models.DataTypeNumeric:
			p.Numeric = append(p.Numeric, c.Name)
		case models.DataTypeCategorical:
			p.Categorical = append(p.Categorical, c.Name)
		default:
			p.Dropped = append(p.Dropped, c.Name)
		}
	}
	if len(p.Numeric)+len(p.Categorical) == 0 {
		return nil, models.Invalid("columns", "no numeric or categorical feature columns to train on")
	}
	return p, nil
}

// FeatureColumns returns the input columns the pipeline consumes, numeric first
func (p *Pipeline) FeatureColumns() []string {
	return append(append([]string(nil), p.Numeric...), p.Categorical...)
}

// Fit learns the preprocessing stage and the forest from train
func (p *Pipeline) Fit(train *frame.Frame) error {
	pre, err := preprocess.Fit(train, p.Numeric, p.Categorical)
	if err != nil {
		return err
	}
	x, err := pre.Transform(train)
	if err != nil {
		return err
	}

	var y []float64
	task := forest.Regression
	if p.ModelType == models.ModelTypeClassification {
		task = forest.Classification
		labels, err := p.labels(train)
		if err != nil {
			return err
		}
		p.Classes = uniqueSorted(labels)
		index := make(map[string]int, len(p.Classes))
		for i, c := range p.Classes {
			index[c] = i
		}
		y = make([]float64, len(labels))
		for i, l := range labels {
			y[i] = float64(index[l])
		}
	} else {
		if y, err = p.targets(train); err != nil {
			return err
		}
	}

	f := forest.New(task, forest.Params{
		NEstimators:     p.Config.NEstimators,
		MaxDepth:        p.Config.MaxDepth,
		MinSamplesSplit: p.Config.MinSamplesSplit,
		MinSamplesLeaf:  p.Config.MinSamplesLeaf,
		MaxFeatures:     p.Config.MaxFeatures.Resolve(pre.Width()),
		Bootstrap:       p.Config.Bootstrap,
		RandomState:     p.Config.RandomState,
		Criterion:       p.Config.Criterion,
	})
	if err := f.Fit(x, y, len(p.Classes)); err != nil {
		return fmt.Errorf("fit estimator: %w", err)
	}

	p.Preprocessor = pre
	p.Forest = f
	return nil
}

// Evaluate scores the fitted pipeline on a held-out frame
func (p *Pipeline) Evaluate(test *frame.Frame) (map[string]float64, error) {
	x, err := p.transform(test)
	if err != nil {
		return nil, err
	}
	raw := p.Forest.Predict(x)

	if p.ModelType == models.ModelTypeClassification {
		truth, err := p.labels(test)
		if err != nil {
			return nil, err
		}
		pred := make([]string, len(raw))
		for i, v := range raw {
			pred[i] = p.Classes[int(v)]
		}
		return ClassificationMetrics(truth, pred), nil
	}

	truth, err := p.targets(test)
	if err != nil {
		return nil, err
	}
	return RegressionMetrics(truth, raw), nil
}

// Predict applies the pipeline to f: float64 values for regression, class labels for classification
func (p *Pipeline) Predict(f *frame.Frame) ([]interface{}, error) {
	x, err := p.transform(f)
	if err != nil {
		return nil, err
	}
	raw := p.Forest.Predict(x)
	out := make([]interface{}, len(raw))
	for i, v := range raw {
		if p.ModelType == models.ModelTypeClassification {
			out[i] = p.Classes[int(v)]
		} else {
			out[i] = v
		}
	}
	return out, nil
}

// FeatureImportance sums the forest's importances per input column
func (p *Pipeline) FeatureImportance() map[string]float64 {
	if p.Forest == nil || p.Preprocessor == nil {
		return nil
	}
	out := make(map[string]float64)
	for i, src := range p.Preprocessor.Sources() {
		out[src] += p.Forest.Importances[i]
	}
	return out
}

func (p *Pipeline) transform(f *frame.Frame) ([][]float64, error) {
	if p.Forest == nil || p.Preprocessor == nil {
		return nil, fmt.Errorf("%w: pipeline is not fitted", models.ErrInternal)
	}
	return p.Preprocessor.Transform(f)
}

func (p *Pipeline) labels(f *frame.Frame) ([]string, error) {
	c, ok := f.Column(p.Target)
	if !ok {
		return nil, models.Invalid("columns", "target column %q is missing from the dataset", p.Target)
	}
	out := make([]string, c.Len())
	for i := range c.Raw {
		if c.Null[i] {
			return nil, models.Invalid("columns", "target column %q has a missing value at row %d", p.Target, i)
		}
		out[i] = strings.TrimSpace(c.Raw[i])
	}
	return out, nil
}

func (p *Pipeline) targets(f *frame.Frame) ([]float64, error) {
	labels, err := p.labels(f)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(labels))
	for i, l := range labels {
		v, err := strconv.ParseFloat(l, 64)
		if err != nil {
			return nil, models.Invalid("columns", "regression target %q has non-numeric value %q", p.Target, l)
		}
		out[i] = v
	}
	return out, nil
}

func uniqueSorted(vals []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, v := range vals {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

// Encode serializes a fitted pipeline with encoding/gob
func (p *Pipeline) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(p); err != nil {
		return nil, fmt.Errorf("encode pipeline: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode restores a pipeline written by Encode
func Decode(data []byte) (*Pipeline, error) {
	var p Pipeline
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: decode pipeline: %v", models.ErrInternal, err)
	}
	if p.Forest == nil || p.Preprocessor == nil {
		return nil, fmt.Errorf("%w: decoded pipeline is not fitted", models.ErrInternal)
	}
	return &p, nil
}
