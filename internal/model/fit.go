package model

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// FitConfig controls forest training.
type FitConfig struct {
	Trees    int
	MaxDepth int
	MinLeaf  int
	Seed     int64
}

// DefaultFitConfig returns training parameters suited to the heavily
// imbalanced fraud datasets the engine targets.
func DefaultFitConfig() FitConfig {
	return FitConfig{
		Trees:    100,
		MaxDepth: 12,
		MinLeaf:  2,
		Seed:     42,
	}
}

// Fit trains a random forest on the given vectors and binary labels.
// Class weights are balanced (w_c = n / (2 * n_c)) so the minority fraud
// class is not drowned out, matching the behaviour of the model the scoring
// pipeline was calibrated against.
func Fit(vectors [][]float64, labels []int, featureNames []string, cfg FitConfig) (*Forest, error) {
	if len(vectors) == 0 {
		return nil, errors.New("no training vectors")
	}
	if len(vectors) != len(labels) {
		return nil, fmt.Errorf("vectors/labels length mismatch: %d vs %d", len(vectors), len(labels))
	}
	for i, vec := range vectors {
		if len(vec) != len(featureNames) {
			return nil, fmt.Errorf("vector %d has %d features, expected %d", i, len(vec), len(featureNames))
		}
	}
	if cfg.Trees <= 0 {
		return nil, errors.New("tree count must be positive")
	}

	var pos, neg int
	for _, y := range labels {
		switch y {
		case 0:
			neg++
		case 1:
			pos++
		default:
			return nil, fmt.Errorf("label must be 0 or 1, got %d", y)
		}
	}
	if pos == 0 || neg == 0 {
		return nil, errors.New("training set needs both classes")
	}

	n := float64(len(labels))
	weights := [2]float64{n / (2 * float64(neg)), n / (2 * float64(pos))}

	rng := rand.New(rand.NewSource(cfg.Seed))
	mtry := int(math.Sqrt(float64(len(featureNames))))
	if mtry < 1 {
		mtry = 1
	}

	f := &Forest{
		FeatureNames: featureNames,
		Trees:        make([]Tree, cfg.Trees),
		Importances:  make([]float64, len(featureNames)),
	}

	b := &treeBuilder{
		vectors:  vectors,
		labels:   labels,
		weights:  weights,
		maxDepth: cfg.MaxDepth,
		minLeaf:  cfg.MinLeaf,
		mtry:     mtry,
		rng:      rng,
	}

	for t := 0; t < cfg.Trees; t++ {
		idx := make([]int, len(vectors))
		for i := range idx {
			idx[i] = rng.Intn(len(vectors))
		}
		f.Trees[t] = b.build(idx)
	}

	// normalize accumulated impurity decreases into importances
	var total float64
	for _, v := range b.importances() {
		total += v
	}
	if total > 0 {
		for i, v := range b.importances() {
			f.Importances[i] = v / total
		}
	}

	return f, nil
}

type treeBuilder struct {
	vectors  [][]float64
	labels   []int
	weights  [2]float64
	maxDepth int
	minLeaf  int
	mtry     int
	rng      *rand.Rand

	imp  []float64
	tree Tree
}

func (b *treeBuilder) importances() []float64 {
	return b.imp
}

func (b *treeBuilder) build(idx []int) Tree {
	if b.imp == nil {
		b.imp = make([]float64, len(b.vectors[0]))
	}
	b.tree = Tree{}
	b.grow(idx, 0)
	return b.tree
}

// grow appends a node for the sample set and returns its index.
func (b *treeBuilder) grow(idx []int, depth int) int {
	node := len(b.tree.Feature)
	b.tree.Feature = append(b.tree.Feature, -1)
	b.tree.Threshold = append(b.tree.Threshold, 0)
	b.tree.Left = append(b.tree.Left, -1)
	b.tree.Right = append(b.tree.Right, -1)
	b.tree.Prob = append(b.tree.Prob, b.leafProb(idx))

	if depth >= b.maxDepth || len(idx) < 2*b.minLeaf || b.pure(idx) {
		return node
	}

	feat, thr, gain := b.bestSplit(idx)
	if feat < 0 {
		return node
	}

	var left, right []int
	for _, i := range idx {
		if b.vectors[i][feat] <= thr {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) < b.minLeaf || len(right) < b.minLeaf {
		return node
	}

	b.imp[feat] += gain
	b.tree.Feature[node] = feat
	b.tree.Threshold[node] = thr
	b.tree.Left[node] = b.grow(left, depth+1)
	b.tree.Right[node] = b.grow(right, depth+1)
	return node
}

func (b *treeBuilder) pure(idx []int) bool {
	first := b.labels[idx[0]]
	for _, i := range idx[1:] {
		if b.labels[i] != first {
			return false
		}
	}
	return true
}

// leafProb is the class-weighted fraud probability of the sample set.
func (b *treeBuilder) leafProb(idx []int) float64 {
	var w0, w1 float64
	for _, i := range idx {
		if b.labels[i] == 1 {
			w1 += b.weights[1]
		} else {
			w0 += b.weights[0]
		}
	}
	if w0+w1 == 0 {
		return 0
	}
	return w1 / (w0 + w1)
}

func (b *treeBuilder) gini(w0, w1 float64) float64 {
	total := w0 + w1
	if total == 0 {
		return 0
	}
	p0 := w0 / total
	p1 := w1 / total
	return 1 - p0*p0 - p1*p1
}

// bestSplit scans a random feature subset for the split with the largest
// weighted Gini decrease. Returns feature -1 when no split improves.
func (b *treeBuilder) bestSplit(idx []int) (int, float64, float64) {
	d := len(b.vectors[0])
	perm := b.rng.Perm(d)[:b.mtry]

	var pw0, pw1 float64
	for _, i := range idx {
		if b.labels[i] == 1 {
			pw1 += b.weights[1]
		} else {
			pw0 += b.weights[0]
		}
	}
	parent := b.gini(pw0, pw1)
	parentW := pw0 + pw1

	bestFeat, bestThr, bestGain := -1, 0.0, 0.0
	for _, feat := range perm {
		thresholds := b.candidateThresholds(idx, feat)
		for _, thr := range thresholds {
			var lw0, lw1, rw0, rw1 float64
			for _, i := range idx {
				w := b.weights[b.labels[i]]
				if b.vectors[i][feat] <= thr {
					if b.labels[i] == 1 {
						lw1 += w
					} else {
						lw0 += w
					}
				} else {
					if b.labels[i] == 1 {
						rw1 += w
					} else {
						rw0 += w
					}
				}
			}
			lw := lw0 + lw1
			rw := rw0 + rw1
			if lw == 0 || rw == 0 {
				continue
			}
			gain := parent - (lw/parentW)*b.gini(lw0, lw1) - (rw/parentW)*b.gini(rw0, rw1)
			if gain > bestGain {
				bestFeat, bestThr, bestGain = feat, thr, gain
			}
		}
	}

	return bestFeat, bestThr, bestGain
}

// candidateThresholds samples up to 16 midpoints between random value pairs.
// Exhaustive scans do not pay off at forest scale.
func (b *treeBuilder) candidateThresholds(idx []int, feat int) []float64 {
	const maxCandidates = 16

	seen := make(map[float64]bool)
	var out []float64
	for attempt := 0; attempt < maxCandidates*2 && len(out) < maxCandidates; attempt++ {
		a := b.vectors[idx[b.rng.Intn(len(idx))]][feat]
		c := b.vectors[idx[b.rng.Intn(len(idx))]][feat]
		if a == c {
			continue
		}
		mid := (a + c) / 2
		if !seen[mid] {
			seen[mid] = true
			out = append(out, mid)
		}
	}
	return out
}
