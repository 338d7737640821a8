package pipeline

import (
	"math"
	"math/rand"

	"ml-orchestrator/core/frame"
	"ml-orchestrator/core/models"
)

// Split parameters used for every training job
const (
	TestFraction = 0.2
	SplitSeed    = 42
)

// Split shuffles rows with a fixed seed and holds out ceil(testFraction*n) of them.
// The same frame and seed always produce the same partition.
func Split(f *frame.Frame, testFraction float64, seed int64) (train, test *frame.Frame, err error) {
	n := f.NumRows()
	nTest := int(math.Ceil(testFraction * float64(n)))
	if nTest < 1 {
		nTest = 1
	}
	if n-nTest < 1 {
		return nil, nil, models.Invalid("dataset", "need at least 2 rows to hold out a test set, got %d", n)
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	return f.Take(perm[nTest:]), f.Take(perm[:nTest]), nil
}
