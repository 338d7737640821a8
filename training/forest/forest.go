// Package forest implements random forests of CART trees for classification and regression.
package forest

import (
	"errors"
	"fmt"
	"math/rand"
	"runtime"
	"sync"
)

// Task selects classification or regression
type Task int

const (
	Classification Task = iota
	Regression
)

// Params configures a forest. MaxFeatures is the resolved number of features tried per split.
type Params struct {
	NEstimators     int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int
	Bootstrap       bool
	RandomState     int64
	Criterion       string
}

// Forest is a fitted ensemble. All fields are exported so it can be gob encoded.
type Forest struct {
	Task        Task
	Params      Params
	NClasses    int
	NFeatures   int
	Trees       []Tree
	Importances []float64
}

// New returns an unfitted forest
func New(task Task, params Params) *Forest {
	if params.NEstimators < 1 {
		params.NEstimators = 100
	}
	if params.MinSamplesSplit < 2 {
		params.MinSamplesSplit = 2
	}
	if params.MinSamplesLeaf < 1 {
		params.MinSamplesLeaf = 1
	}
	return &Forest{Task: task, Params: params}
}

// Fit trains the forest on X (n x p). For classification y holds class indices 0..nClasses-1.
// Each tree draws from its own seeded source so results do not depend on scheduling.
func (f *Forest) Fit(x [][]float64, y []float64, nClasses int) error {
	n := len(x)
	if n == 0 {
		return errors.New("forest: empty training set")
	}
	if len(y) != n {
		return fmt.Errorf("forest: %d rows but %d targets", n, len(y))
	}
	p := len(x[0])
	if p == 0 {
		return errors.New("forest: no features")
	}
	for i := range x {
		if len(x[i]) != p {
			return fmt.Errorf("forest: row %d has %d features, expected %d", i, len(x[i]), p)
		}
	}
	if f.Task == Classification {
		if nClasses < 1 {
			return errors.New("forest: no classes")
		}
		for i, v := range y {
			if v < 0 || int(v) >= nClasses || float64(int(v)) != v {
				return fmt.Errorf("forest: target %v at row %d is not a class index", v, i)
			}
		}
	}

	f.NClasses = nClasses
	f.NFeatures = p
	maxFeatures := f.Params.MaxFeatures
	if maxFeatures < 1 || maxFeatures > p {
		maxFeatures = p
	}

	f.Trees = make([]Tree, f.Params.NEstimators)
	sem := make(chan struct{}, runtime.NumCPU())
	var wg sync.WaitGroup
	for i := 0; i < f.Params.NEstimators; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			rnd := rand.New(rand.NewSource(f.Params.RandomState + int64(idx)))
			samples := make([]int, n)
			for j := range samples {
				if f.Params.Bootstrap {
					samples[j] = rnd.Intn(n)
				} else {
					samples[j] = j
				}
			}

			b := &treeBuilder{
				task:        f.Task,
				params:      f.Params,
				nClasses:    nClasses,
				maxFeatures: maxFeatures,
				x:           x,
				y:           y,
				rnd:         rnd,
			}
			b.fit(samples)
			f.Trees[idx] = *b.tree
		}(i)
	}
	wg.Wait()

	f.Importances = f.aggregateImportances()
	return nil
}

// aggregateImportances averages the normalized per-tree importances of trees that split at least once
func (f *Forest) aggregateImportances() []float64 {
	out := make([]float64, f.NFeatures)
	used := 0
	for _, t := range f.Trees {
		total := 0.0
		for _, v := range t.Importances {
			total += v
		}
		if total <= 0 {
			continue
		}
		used++
		for j, v := range t.Importances {
			out[j] += v / total
		}
	}
	if used == 0 {
		return out
	}
	sum := 0.0
	for j := range out {
		out[j] /= float64(used)
		sum += out[j]
	}
	if sum > 0 {
		for j := range out {
			out[j] /= sum
		}
	}
	return out
}

// PredictProba averages the leaf class distributions of every tree
func (f *Forest) PredictProba(x [][]float64) [][]float64 {
	out := make([][]float64, len(x))
	for i, row := range x {
		probs := make([]float64, f.NClasses)
		for t := range f.Trees {
			for c, p := range f.Trees[t].predict(row) {
				probs[c] += p
			}
		}
		for c := range probs {
			probs[c] /= float64(len(f.Trees))
		}
		out[i] = probs
	}
	return out
}

// Predict returns class indices (classification) or averaged values (regression)
func (f *Forest) Predict(x [][]float64) []float64 {
	out := make([]float64, len(x))
	if f.Task == Classification {
		for i, probs := range f.PredictProba(x) {
			best := 0
			for c := 1; c < len(probs); c++ {
				if probs[c] > probs[best] {
					best = c
				}
			}
			out[i] = float64(best)
		}
		return out
	}

	for i, row := range x {
		sum := 0.0
		for t := range f.Trees {
			sum += f.Trees[t].predict(row)[0]
		}
		out[i] = sum / float64(len(f.Trees))
	}
	return out
}

// FeatureImportances returns the mean decrease in impurity per input feature, summing to 1
// unless no tree ever split
func (f *Forest) FeatureImportances() []float64 {
	return append([]float64(nil), f.Importances...)
}
