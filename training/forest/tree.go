package forest

import (
	"math"
	"math/rand"
	"sort"
)

// Node is one node of a fitted tree. Children are indices into Tree.Nodes.
type Node struct {
	Leaf      bool
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Samples   int
	Value     []float64 // class probabilities, or the single mean for regression
}

// Tree is a fitted CART tree stored as a flat node slice
type Tree struct {
	Nodes       []Node
	Importances []float64
}

type treeBuilder struct {
	task        Task
	params      Params
	nClasses    int
	maxFeatures int
	x           [][]float64
	y           []float64
	rnd         *rand.Rand
	tree        *Tree
}

func (b *treeBuilder) fit(samples []int) {
	b.tree = &Tree{Importances: make([]float64, len(b.x[0]))}
	b.build(samples, 0)
}

func (b *treeBuilder) build(samples []int, depth int) int {
	id := len(b.tree.Nodes)
	b.tree.Nodes = append(b.tree.Nodes, Node{Leaf: true, Samples: len(samples), Value: b.leafValue(samples)})

	impurity := b.impurity(samples)
	if impurity <= 1e-12 ||
		len(samples) < b.params.MinSamplesSplit ||
		len(samples) < 2*b.params.MinSamplesLeaf ||
		(b.params.MaxDepth > 0 && depth >= b.params.MaxDepth) {
		return id
	}

	split, ok := b.bestSplit(samples, impurity)
	if !ok {
		return id
	}

	b.tree.Importances[split.feature] += split.gain
	left := b.build(split.left, depth+1)
	right := b.build(split.right, depth+1)

	node := &b.tree.Nodes[id]
	node.Leaf = false
	node.Feature = split.feature
	node.Threshold = split.threshold
	node.Left = left
	node.Right = right
	return id
}

type split struct {
	feature   int
	threshold float64
	gain      float64
	left      []int
	right     []int
}

// bestSplit searches a random subset of features for the split with the largest
// weighted impurity decrease. gain is expressed in samples times impurity.
func (b *treeBuilder) bestSplit(samples []int, parentImpurity float64) (split, bool) {
	nFeatures := len(b.x[0])
	candidates := b.rnd.Perm(nFeatures)[:b.maxFeatures]

	best := split{gain: 1e-12}
	found := false
	sorted := make([]int, len(samples))
	n := float64(len(samples))

	for _, f := range candidates {
		copy(sorted, samples)
		sort.SliceStable(sorted, func(i, j int) bool { return b.x[sorted[i]][f] < b.x[sorted[j]][f] })

		acc := b.newAccumulator(sorted)
		for i := 0; i < len(sorted)-1; i++ {
			acc.move(sorted[i])
			nLeft := i + 1
			nRight := len(sorted) - nLeft
			if nLeft < b.params.MinSamplesLeaf || nRight < b.params.MinSamplesLeaf {
				continue
			}
			lo, hi := b.x[sorted[i]][f], b.x[sorted[i+1]][f]
			if hi <= lo {
				continue
			}
			gain := n*parentImpurity - acc.weightedImpurity()
			if gain > best.gain {
				threshold := lo + (hi-lo)/2
				if threshold >= hi {
					threshold = lo
				}
				best = split{feature: f, threshold: threshold, gain: gain}
				found = true
			}
		}
	}
	if !found {
		return split{}, false
	}

	for _, s := range samples {
		if b.x[s][best.feature] <= best.threshold {
			best.left = append(best.left, s)
		} else {
			best.right = append(best.right, s)
		}
	}
	return best, true
}

func (b *treeBuilder) leafValue(samples []int) []float64 {
	if b.task == Regression {
		sum := 0.0
		for _, s := range samples {
			sum += b.y[s]
		}
		return []float64{sum / float64(len(samples))}
	}
	probs := make([]float64, b.nClasses)
	for _, s := range samples {
		probs[int(b.y[s])]++
	}
	for i := range probs {
		probs[i] /= float64(len(samples))
	}
	return probs
}

func (b *treeBuilder) impurity(samples []int) float64 {
	if b.task == Regression {
		var sum, sq float64
		for _, s := range samples {
			sum += b.y[s]
			sq += b.y[s] * b.y[s]
		}
		n := float64(len(samples))
		return math.Max(sq/n-(sum/n)*(sum/n), 0)
	}
	counts := make([]float64, b.nClasses)
	for _, s := range samples {
		counts[int(b.y[s])]++
	}
	return classImpurity(b.params.Criterion, counts, float64(len(samples)))
}

func classImpurity(criterion string, counts []float64, n float64) float64 {
	if n == 0 {
		return 0
	}
	if criterion == "entropy" {
		h := 0.0
		for _, c := range counts {
			if c > 0 {
				p := c / n
				h -= p * math.Log2(p)
			}
		}
		return h
	}
	g := 1.0
	for _, c := range counts {
		p := c / n
		g -= p * p
	}
	return g
}

// accumulator tracks left/right statistics while sweeping sorted samples left to right
type accumulator struct {
	b *treeBuilder

	leftCounts, rightCounts []float64
	leftSum, leftSq         float64
	rightSum, rightSq       float64
	nLeft, nRight           float64
}

func (b *treeBuilder) newAccumulator(samples []int) *accumulator {
	a := &accumulator{b: b, nRight: float64(len(samples))}
	if b.task == Regression {
		for _, s := range samples {
			a.rightSum += b.y[s]
			a.rightSq += b.y[s] * b.y[s]
		}
		return a
	}
	a.leftCounts = make([]float64, b.nClasses)
	a.rightCounts = make([]float64, b.nClasses)
	for _, s := range samples {
		a.rightCounts[int(b.y[s])]++
	}
	return a
}

func (a *accumulator) move(s int) {
	y := a.b.y[s]
	a.nLeft++
	a.nRight--
	if a.b.task == Regression {
		a.leftSum += y
		a.leftSq += y * y
		a.rightSum -= y
		a.rightSq -= y * y
		return
	}
	a.leftCounts[int(y)]++
	a.rightCounts[int(y)]--
}

// weightedImpurity returns nLeft*impurity(left) + nRight*impurity(right)
func (a *accumulator) weightedImpurity() float64 {
	if a.b.task == Regression {
		return math.Max(a.leftSq-a.leftSum*a.leftSum/a.nLeft, 0) +
			math.Max(a.rightSq-a.rightSum*a.rightSum/a.nRight, 0)
	}
	crit := a.b.params.Criterion
	return a.nLeft*classImpurity(crit, a.leftCounts, a.nLeft) +
		a.nRight*classImpurity(crit, a.rightCounts, a.nRight)
}

// predict returns the leaf value reached by row
func (t *Tree) predict(row []float64) []float64 {
	i := 0
	for {
		node := &t.Nodes[i]
		if node.Leaf {
			return node.Value
		}
		if row[node.Feature] <= node.Threshold {
			i = node.Left
		} else {
			i = node.Right
		}
	}
}
