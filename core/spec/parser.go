// Package spec decodes the free-form training_config of a training request
// into typed, validated estimator settings.
package spec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"ml-orchestrator/core/models"

	"gopkg.in/yaml.v3"
)

// Limits on estimator settings
const (
	DefaultEstimators = 100
	MaxEstimators     = 1000
	DefaultSeed       = 42
)

// Criterion names
const (
	CriterionGini         = "gini"
	CriterionEntropy      = "entropy"
	CriterionSquaredError = "squared_error"
)

// MaxFeatures is the number of features tried at each split
type MaxFeatures struct {
	Mode     string // "sqrt", "log2", "all", "count" or "fraction"
	Count    int
	Fraction float64
}

// Resolve returns the number of features to consider out of n, at least 1
func (m MaxFeatures) Resolve(n int) int {
	k := n
	switch m.Mode {
	case "sqrt":
		k = int(math.Sqrt(float64(n)))
	case "log2":
		k = int(math.Log2(float64(n)))
	case "count":
		k = m.Count
	case "fraction":
		k = int(m.Fraction * float64(n))
	}
	if k < 1 {
		k = 1
	}
	if k > n {
		k = n
	}
	return k
}

// TrainingConfig is the validated estimator configuration of a training job
type TrainingConfig struct {
	NEstimators     int         `json:"n_estimators"`
	MaxDepth        int         `json:"max_depth"` // 0 means unlimited
	MinSamplesSplit int         `json:"min_samples_split"`
	MinSamplesLeaf  int         `json:"min_samples_leaf"`
	MaxFeatures     MaxFeatures `json:"-"`
	Bootstrap       bool        `json:"bootstrap"`
	RandomState     int64       `json:"random_state"`
	Criterion       string      `json:"criterion"`
}

// rawConfig mirrors the accepted training_config keys
type rawConfig struct {
	NEstimators     *int        `yaml:"n_estimators"`
	MaxDepth        *int        `yaml:"max_depth"`
	MinSamplesSplit *int        `yaml:"min_samples_split"`
	MinSamplesLeaf  *int        `yaml:"min_samples_leaf"`
	Bootstrap       *bool       `yaml:"bootstrap"`
	RandomState     *int64      `yaml:"random_state"`
	Criterion       *string     `yaml:"criterion"`
}

var integerKeys = map[string]bool{
	"n_estimators":      true,
	"max_depth":         true,
	"min_samples_split": true,
	"min_samples_leaf":  true,
	"random_state":      true,
}

// ParseTrainingConfig validates raw against the settings known for modelType and fills defaults.
// Unknown keys and ill-typed values are validation errors.
func ParseTrainingConfig(modelType models.ModelType, raw map[string]interface{}) (*TrainingConfig, error) {
	var rc rawConfig
	var maxFeatures interface{}
	if len(raw) > 0 {
		// max_features keeps its literal: 1 is a count, 1.0 a fraction
		plain := make(map[string]interface{}, len(raw))
		for k, v := range raw {
			if k == "max_features" {
				maxFeatures = v
				continue
			}
			n := plainNumber(v)
			if f, ok := n.(float64); ok && integerKeys[k] && f != math.Trunc(f) {
				return nil, models.Invalid("training_config", "%s must be an integer, got %v", k, f)
			}
			plain[k] = n
		}
		doc, err := yaml.Marshal(plain)
		if err != nil {
			return nil, models.Invalid("training_config", "cannot encode: %v", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(doc))
		dec.KnownFields(true)
		if err := dec.Decode(&rc); err != nil {
			return nil, models.Invalid("training_config", "%v", err)
		}
	}

	cfg := &TrainingConfig{
		NEstimators:     DefaultEstimators,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Bootstrap:       true,
		RandomState:     DefaultSeed,
	}

	if rc.NEstimators != nil {
		if *rc.NEstimators < 1 || *rc.NEstimators > MaxEstimators {
			return nil, models.Invalid("training_config", "n_estimators must be between 1 and %d", MaxEstimators)
		}
		cfg.NEstimators = *rc.NEstimators
	}
	if rc.MaxDepth != nil {
		if *rc.MaxDepth < 1 {
			return nil, models.Invalid("training_config", "max_depth must be positive")
		}
		cfg.MaxDepth = *rc.MaxDepth
	}
	if rc.MinSamplesSplit != nil {
		if *rc.MinSamplesSplit < 2 {
			return nil, models.Invalid("training_config", "min_samples_split must be at least 2")
		}
		cfg.MinSamplesSplit = *rc.MinSamplesSplit
	}
	if rc.MinSamplesLeaf != nil {
		if *rc.MinSamplesLeaf < 1 {
			return nil, models.Invalid("training_config", "min_samples_leaf must be at least 1")
		}
		cfg.MinSamplesLeaf = *rc.MinSamplesLeaf
	}
	if rc.Bootstrap != nil {
		cfg.Bootstrap = *rc.Bootstrap
	}
	if rc.RandomState != nil {
		cfg.RandomState = *rc.RandomState
	}

	mf, err := parseMaxFeatures(modelType, maxFeatures)
	if err != nil {
		return nil, err
	}
	cfg.MaxFeatures = mf

	criterion, err := parseCriterion(modelType, rc.Criterion)
	if err != nil {
		return nil, err
	}
	cfg.Criterion = criterion

	return cfg, nil
}

func parseMaxFeatures(modelType models.ModelType, v interface{}) (MaxFeatures, error) {
	switch x := v.(type) {
	case nil:
		if modelType == models.ModelTypeClassification {
			return MaxFeatures{Mode: "sqrt"}, nil
		}
		return MaxFeatures{Mode: "all"}, nil
	case string:
		if x == "sqrt" || x == "log2" {
			return MaxFeatures{Mode: x}, nil
		}
	case json.Number:
		if isFractionLiteral(x.String()) {
			if f, err := x.Float64(); err == nil && f > 0 && f <= 1 {
				return MaxFeatures{Mode: "fraction", Fraction: f}, nil
			}
		} else if n, err := x.Int64(); err == nil && n >= 1 && n <= math.MaxInt32 {
			return MaxFeatures{Mode: "count", Count: int(n)}, nil
		}
	case int:
		if x >= 1 {
			return MaxFeatures{Mode: "count", Count: x}, nil
		}
	case int64:
		if x >= 1 && x <= math.MaxInt32 {
			return MaxFeatures{Mode: "count", Count: int(x)}, nil
		}
	case float64:
		if x > 0 && x <= 1 {
			return MaxFeatures{Mode: "fraction", Fraction: x}, nil
		}
		if x > 1 && x <= math.MaxInt32 && x == math.Trunc(x) {
			return MaxFeatures{Mode: "count", Count: int(x)}, nil
		}
	}
	return MaxFeatures{}, models.Invalid("training_config", "max_features must be \"sqrt\", \"log2\", a positive integer or a fraction in (0, 1], got %v", v)
}

func isFractionLiteral(s string) bool {
	return strings.ContainsAny(s, ".eE")
}

// plainNumber turns a json.Number into the int64 or float64 its literal denotes
func plainNumber(v interface{}) interface{} {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if !isFractionLiteral(n.String()) {
		if i, err := n.Int64(); err == nil {
			return i
		}
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}

// fractionLiteral renders f so it still reads back as a fraction
func fractionLiteral(f float64) json.Number {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !isFractionLiteral(s) {
		s += ".0"
	}
	return json.Number(s)
}

func parseCriterion(modelType models.ModelType, v *string) (string, error) {
	switch modelType {
	case models.ModelTypeClassification:
		if v == nil {
			return CriterionGini, nil
		}
		if *v == CriterionGini || *v == CriterionEntropy {
			return *v, nil
		}
	case models.ModelTypeRegression:
		if v == nil {
			return CriterionSquaredError, nil
		}
		if *v == CriterionSquaredError {
			return *v, nil
		}
	default:
		if v == nil {
			return "", nil
		}
		return *v, nil
	}
	return "", models.Invalid("training_config", "criterion %q is not valid for %s", *v, modelType)
}

// Describe renders the effective configuration for logs and model metadata
func (c *TrainingConfig) Describe() map[string]interface{} {
	out := map[string]interface{}{
		"n_estimators":      c.NEstimators,
		"min_samples_split": c.MinSamplesSplit,
		"min_samples_leaf":  c.MinSamplesLeaf,
		"bootstrap":         c.Bootstrap,
		"random_state":      c.RandomState,
		"criterion":         c.Criterion,
	}
	if c.MaxDepth > 0 {
		out["max_depth"] = c.MaxDepth
	} else {
		out["max_depth"] = nil
	}
	switch c.MaxFeatures.Mode {
	case "count":
		out["max_features"] = c.MaxFeatures.Count
	case "fraction":
		out["max_features"] = fractionLiteral(c.MaxFeatures.Fraction)
	case "all":
		out["max_features"] = nil
	default:
		out["max_features"] = c.MaxFeatures.Mode
	}
	return out
}

// String implements fmt.Stringer
func (c *TrainingConfig) String() string {
	return fmt.Sprintf("n_estimators=%d max_depth=%d criterion=%s seed=%d", c.NEstimators, c.MaxDepth, c.Criterion, c.RandomState)
}
