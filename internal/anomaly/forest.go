// Package anomaly implements an isolation forest over small numeric
// datasets. Points that isolate in few random splits score low; the decision
// function is offset so that roughly the contamination fraction of the
// training set lands below zero.
package anomaly

import (
	"math"
	"math/rand"
	"sort"
)

const defaultSampleSize = 256

// Config controls forest construction. Zero values pick the defaults noted
// per field.
type Config struct {
	Trees         int     // number of trees, default 100
	SampleSize    int     // subsample per tree, default min(256, n)
	Seed          int64   // RNG seed, same seed gives same forest
	Contamination float64 // expected anomaly fraction, default 0.25
}

type node struct {
	left, right *node
	feature     int
	split       float64
	size        int // external node only
}

// Forest is an ensemble of isolation trees. Build one with New, then Fit.
type Forest struct {
	cfg    Config
	trees  []*node
	psi    int
	offset float64
	fitted bool
}

func New(cfg Config) *Forest {
	if cfg.Trees <= 0 {
		cfg.Trees = 100
	}
	if cfg.Contamination <= 0 || cfg.Contamination >= 0.5 {
		cfg.Contamination = 0.25
	}
	return &Forest{cfg: cfg}
}

// Fit builds the trees from points and fixes the decision threshold at the
// contamination quantile of the training scores. Fewer than two points leave
// the forest unfitted; Scores and Predict then report everything normal.
func (f *Forest) Fit(points [][]float64) {
	f.fitted = false
	if len(points) < 2 {
		return
	}

	f.psi = f.cfg.SampleSize
	if f.psi <= 0 || f.psi > len(points) {
		f.psi = len(points)
		if f.psi > defaultSampleSize {
			f.psi = defaultSampleSize
		}
	}
	heightLimit := int(math.Ceil(math.Log2(float64(f.psi))))

	rng := rand.New(rand.NewSource(f.cfg.Seed))
	f.trees = make([]*node, f.cfg.Trees)
	for i := range f.trees {
		sample := subsample(rng, points, f.psi)
		f.trees[i] = buildTree(rng, sample, 0, heightLimit)
	}
	f.fitted = true

	train := make([]float64, len(points))
	for i, p := range points {
		train[i] = f.scoreSample(p)
	}
	f.offset = quantile(train, f.cfg.Contamination)
}

// Scores returns the decision function per point: negative means anomalous,
// larger means more normal. An unfitted forest returns zeros.
func (f *Forest) Scores(points [][]float64) []float64 {
	out := make([]float64, len(points))
	if !f.fitted {
		return out
	}
	for i, p := range points {
		out[i] = f.scoreSample(p) - f.offset
	}
	return out
}

// Predict labels each point +1 (normal) or -1 (anomaly).
func (f *Forest) Predict(points [][]float64) []int {
	scores := f.Scores(points)
	out := make([]int, len(scores))
	for i, s := range scores {
		if f.fitted && s < 0 {
			out[i] = -1
		} else {
			out[i] = 1
		}
	}
	return out
}

// scoreSample is the negated anomaly score, in (-1, 0): -2^(-E[h(x)]/c(psi)).
func (f *Forest) scoreSample(p []float64) float64 {
	denom := avgPathLength(f.psi)
	if denom == 0 {
		return -0.5
	}
	var sum float64
	for _, t := range f.trees {
		sum += pathLength(t, p, 0)
	}
	mean := sum / float64(len(f.trees))
	return -math.Pow(2, -mean/denom)
}

func subsample(rng *rand.Rand, points [][]float64, n int) [][]float64 {
	if n >= len(points) {
		return points
	}
	idx := rng.Perm(len(points))[:n]
	out := make([][]float64, n)
	for i, j := range idx {
		out[i] = points[j]
	}
	return out
}

func buildTree(rng *rand.Rand, points [][]float64, depth, limit int) *node {
	if depth >= limit || len(points) <= 1 {
		return &node{size: len(points)}
	}
	dims := len(points[0])

	// pick a feature that still varies; identical points become a leaf
	feats := rng.Perm(dims)
	feature := -1
	var lo, hi float64
	for _, ft := range feats {
		lo, hi = minMax(points, ft)
		if hi > lo {
			feature = ft
			break
		}
	}
	if feature < 0 {
		return &node{size: len(points)}
	}

	split := lo + rng.Float64()*(hi-lo)
	var left, right [][]float64
	for _, p := range points {
		if p[feature] < split {
			left = append(left, p)
		} else {
			right = append(right, p)
		}
	}
	return &node{
		feature: feature,
		split:   split,
		left:    buildTree(rng, left, depth+1, limit),
		right:   buildTree(rng, right, depth+1, limit),
	}
}

func pathLength(n *node, p []float64, depth int) float64 {
	if n.left == nil {
		return float64(depth) + avgPathLength(n.size)
	}
	if p[n.feature] < n.split {
		return pathLength(n.left, p, depth+1)
	}
	return pathLength(n.right, p, depth+1)
}

const eulerGamma = 0.5772156649

// avgPathLength is c(n), the mean unsuccessful-search depth of a BST with n
// nodes. Used both to terminate truncated branches and to normalize scores.
func avgPathLength(n int) float64 {
	switch {
	case n < 2:
		return 0
	case n == 2:
		return 1
	}
	h := math.Log(float64(n-1)) + eulerGamma
	return 2*h - 2*float64(n-1)/float64(n)
}

func minMax(points [][]float64, feature int) (lo, hi float64) {
	lo, hi = points[0][feature], points[0][feature]
	for _, p := range points[1:] {
		v := p[feature]
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// quantile interpolates linearly between order statistics.
func quantile(values []float64, q float64) float64 {
	s := append([]float64(nil), values...)
	sort.Float64s(s)
	if len(s) == 1 {
		return s[0]
	}
	pos := q * float64(len(s)-1)
	i := int(math.Floor(pos))
	if i >= len(s)-1 {
		return s[len(s)-1]
	}
	frac := pos - float64(i)
	return s[i] + frac*(s[i+1]-s[i])
}
