// Package iforest implements an isolation forest outlier model with a
// contamination-parameterized decision function: points isolated by short
// random-split paths score as outliers.
package iforest

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/kiranshivaraju/threathunter/internal/ml"
)

const (
	defaultNumTrees   = 100
	defaultSampleSize = 256
)

var ErrNotFitted = errors.New("isolation forest not fitted")

// Options configures forest training.
type Options struct {
	NumTrees      int
	SampleSize    int
	Contamination float64 // expected outlier fraction in training data
	Seed          int64
}

// Node is one split in an isolation tree. Leaves carry the subsample size
// remaining at that depth so scoring can add the expected path remainder.
type Node struct {
	SplitFeature int
	SplitValue   float64
	Left, Right  *Node
	Size         int
	Depth        int
}

// Forest is a trained isolation forest. Exported fields are the trained
// state; the whole struct round-trips through encoding/gob.
type Forest struct {
	Trees       []*Node
	SampleSize  int
	NumFeatures int
	// Offset shifts raw sample scores so that roughly the contamination
	// fraction of training points fall below zero.
	Offset float64

	opts Options
	rng  *rand.Rand
}

// New creates an unfitted forest. Zero-valued options fall back to defaults.
func New(opts Options) *Forest {
	if opts.NumTrees <= 0 {
		opts.NumTrees = defaultNumTrees
	}
	if opts.SampleSize <= 0 {
		opts.SampleSize = defaultSampleSize
	}
	if opts.Contamination <= 0 {
		opts.Contamination = 0.1
	}
	return &Forest{
		opts: opts,
		rng:  rand.New(rand.NewSource(opts.Seed)),
	}
}

// Fit builds the tree ensemble over the samples and calibrates the decision
// offset from the contamination fraction.
func (f *Forest) Fit(samples [][]float64) error {
	if len(samples) == 0 {
		return fmt.Errorf("fit isolation forest: no samples")
	}
	f.NumFeatures = len(samples[0])

	f.SampleSize = f.opts.SampleSize
	if len(samples) < f.SampleSize {
		f.SampleSize = len(samples)
	}
	maxDepth := int(math.Ceil(math.Log2(float64(f.SampleSize)))) + 1

	f.Trees = make([]*Node, f.opts.NumTrees)
	for i := range f.Trees {
		f.Trees[i] = f.buildTree(f.subsample(samples), 0, maxDepth)
	}

	// Calibrate: the contamination-th percentile of the training scores
	// becomes the zero line of the decision function.
	scores := make([]float64, len(samples))
	for i, s := range samples {
		scores[i] = f.scoreSample(s)
	}
	f.Offset = ml.Percentile(scores, f.opts.Contamination*100)
	return nil
}

// Fitted reports whether the forest has a trained ensemble.
func (f *Forest) Fitted() bool { return len(f.Trees) > 0 }

// DecisionFunction returns one value per sample; more negative means more
// outlier-like, with zero at the calibrated contamination boundary.
func (f *Forest) DecisionFunction(samples [][]float64) ([]float64, error) {
	if !f.Fitted() {
		return nil, ErrNotFitted
	}
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = f.scoreSample(s) - f.Offset
	}
	return out, nil
}

// Predict classifies each sample as -1 (outlier) or 1 (inlier).
func (f *Forest) Predict(samples [][]float64) ([]int, error) {
	decisions, err := f.DecisionFunction(samples)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(decisions))
	for i, d := range decisions {
		if d < 0 {
			out[i] = -1
		} else {
			out[i] = 1
		}
	}
	return out, nil
}

// scoreSample returns the negated anomaly score -s(x), s(x) = 2^(-E[h]/c(n)),
// so values sit in (-1, 0) with more negative meaning more anomalous.
func (f *Forest) scoreSample(x []float64) float64 {
	var total float64
	for _, tree := range f.Trees {
		total += pathLength(tree, x)
	}
	avg := total / float64(len(f.Trees))

	c := averagePathLength(float64(f.SampleSize))
	if c <= 0 {
		c = 1
	}
	return -math.Pow(2, -avg/c)
}

func (f *Forest) subsample(samples [][]float64) [][]float64 {
	if f.SampleSize >= len(samples) {
		return samples
	}
	idx := f.rng.Perm(len(samples))
	out := make([][]float64, f.SampleSize)
	for i := 0; i < f.SampleSize; i++ {
		out[i] = samples[idx[i]]
	}
	return out
}

func (f *Forest) buildTree(data [][]float64, depth, maxDepth int) *Node {
	n := len(data)
	node := &Node{Size: n, Depth: depth}
	if n <= 1 || depth >= maxDepth {
		return node
	}

	// Pick a feature that still varies in this partition; identical points
	// cannot be split further.
	order := f.rng.Perm(f.NumFeatures)
	var minVal, maxVal float64
	split := -1
	for _, feat := range order {
		minVal, maxVal = data[0][feat], data[0][feat]
		for _, row := range data[1:] {
			if row[feat] < minVal {
				minVal = row[feat]
			}
			if row[feat] > maxVal {
				maxVal = row[feat]
			}
		}
		if minVal < maxVal {
			split = feat
			break
		}
	}
	if split < 0 {
		return node
	}

	node.SplitFeature = split
	node.SplitValue = minVal + f.rng.Float64()*(maxVal-minVal)

	left := make([][]float64, 0, n/2)
	right := make([][]float64, 0, n/2)
	for _, row := range data {
		if row[split] < node.SplitValue {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}
	if len(left) > 0 {
		node.Left = f.buildTree(left, depth+1, maxDepth)
	}
	if len(right) > 0 {
		node.Right = f.buildTree(right, depth+1, maxDepth)
	}
	return node
}

func pathLength(node *Node, x []float64) float64 {
	if node == nil {
		return 0
	}
	if node.Left == nil && node.Right == nil {
		// Leaf: add the expected path length of the unsplit remainder.
		return float64(node.Depth) + averagePathLength(float64(node.Size))
	}
	if x[node.SplitFeature] < node.SplitValue {
		if node.Left != nil {
			return pathLength(node.Left, x)
		}
	} else if node.Right != nil {
		return pathLength(node.Right, x)
	}
	return float64(node.Depth)
}

// averagePathLength is c(n) = 2H(n-1) - 2(n-1)/n, the expected search path
// length in a binary tree over n points. H uses the Euler-Mascheroni constant.
func averagePathLength(n float64) float64 {
	if n <= 1 {
		return 0
	}
	return 2*(math.Log(n-1)+0.5772156649) - 2*(n-1)/n
}
