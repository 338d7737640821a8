package pipeline

import (
	"math"
	"sort"
)

// Metric keys reported for each model type
const (
	MetricAccuracy  = "accuracy"
	MetricPrecision = "precision"
	MetricRecall    = "recall"
	MetricF1        = "f1"
	MetricR2        = "r2_score"
	MetricMSE       = "mse"
	MetricRMSE      = "rmse"
)

// ClassificationMetrics returns accuracy plus support-weighted precision, recall and F1.
// A label with no predictions (or no support) contributes 0 rather than NaN.
func ClassificationMetrics(yTrue, yPred []string) map[string]float64 {
	n := len(yTrue)
	if n == 0 {
		return map[string]float64{MetricAccuracy: 0, MetricPrecision: 0, MetricRecall: 0, MetricF1: 0}
	}

	labelSet := map[string]bool{}
	correct := 0
	for i := range yTrue {
		labelSet[yTrue[i]] = true
		labelSet[yPred[i]] = true
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	labels := make([]string, 0, len(labelSet))
	for l := range labelSet {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	var precision, recall, f1 float64
	for _, l := range labels {
		var tp, fp, fn float64
		for i := range yTrue {
			switch {
			case yTrue[i] == l && yPred[i] == l:
				tp++
			case yPred[i] == l:
				fp++
			case yTrue[i] == l:
				fn++
			}
		}
		support := tp + fn
		if support == 0 {
			continue
		}
		p := safeDiv(tp, tp+fp)
		r := safeDiv(tp, support)
		w := support / float64(n)
		precision += w * p
		recall += w * r
		f1 += w * safeDiv(2*p*r, p+r)
	}

	return map[string]float64{
		MetricAccuracy:  float64(correct) / float64(n),
		MetricPrecision: precision,
		MetricRecall:    recall,
		MetricF1:        f1,
	}
}

// RegressionMetrics returns r2_score, mse and rmse. r2 is 1 for a perfect fit of a
// constant target and 0 for an imperfect one, so it is always finite.
func RegressionMetrics(yTrue, yPred []float64) map[string]float64 {
	mse := MSE(yTrue, yPred)
	return map[string]float64{
		MetricR2:   R2(yTrue, yPred),
		MetricMSE:  mse,
		MetricRMSE: math.Sqrt(mse),
	}
}

// MSE is the mean squared error
func MSE(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	s := 0.0
	for i := range yTrue {
		d := yPred[i] - yTrue[i]
		s += d * d
	}
	return s / float64(len(yTrue))
}

// R2 is the coefficient of determination
func R2(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	m := 0.0
	for _, v := range yTrue {
		m += v
	}
	m /= float64(len(yTrue))

	var ssTot, ssRes float64
	for i := range yTrue {
		d := yTrue[i] - m
		ssTot += d * d
		r := yTrue[i] - yPred[i]
		ssRes += r * r
	}
	if ssTot == 0 {
		if ssRes == 0 {
			return 1
		}
		return 0
	}
	return 1 - ssRes/ssTot
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}
