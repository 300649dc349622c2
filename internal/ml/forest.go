package ml

import (
	"context"
	"errors"
	"math/rand"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
)

// Node is a regression tree node. Leaves carry the mean target of their samples.
type Node struct {
	Leaf      bool
	Value     float64
	Feature   int
	Threshold float64
	Left      *Node
	Right     *Node
}

func (n *Node) predict(x []float64) float64 {
	for !n.Leaf {
		if x[n.Feature] <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n.Value
}

type Forest struct {
	Trees []*Node
}

func (f *Forest) Predict(x []float64) float64 {
	if len(f.Trees) == 0 {
		return 0
	}
	sum := 0.0
	for _, t := range f.Trees {
		sum += t.predict(x)
	}
	return sum / float64(len(f.Trees))
}

// RandomForest bags regression trees. Tree i draws its bootstrap sample and
// feature subsets from its own source seeded with Seed+i, so the fitted forest
// does not depend on how the trees are scheduled.
type RandomForest struct {
	Params ForestParams
	Seed   int64
}

func (rf RandomForest) Fit(ctx context.Context, X [][]float64, y []float64) (Model, error) {
	n := len(X)
	if n == 0 || n != len(y) {
		return nil, errors.New("forest: empty or mismatched training data")
	}
	p := rf.Params
	if p.NEstimators < 1 {
		p.NEstimators = 1
	}
	if p.MinSamplesLeaf < 1 {
		p.MinSamplesLeaf = 1
	}
	nFeat := len(X[0])
	if p.MaxFeatures <= 0 || p.MaxFeatures > nFeat {
		p.MaxFeatures = nFeat
	}

	trees := make([]*Node, p.NEstimators)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range trees {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			b := &treeBuilder{
				X:      X,
				y:      y,
				params: p,
				nFeat:  nFeat,
				rng:    rand.New(rand.NewSource(rf.Seed + int64(i))),
			}
			sample := make([]int, n)
			for k := range sample {
				sample[k] = b.rng.Intn(n)
			}
			trees[i] = b.build(sample, 0)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &Forest{Trees: trees}, nil
}

type treeBuilder struct {
	X      [][]float64
	y      []float64
	params ForestParams
	nFeat  int
	rng    *rand.Rand
}

func (b *treeBuilder) build(idx []int, depth int) *Node {
	sum, sq := 0.0, 0.0
	for _, i := range idx {
		sum += b.y[i]
		sq += b.y[i] * b.y[i]
	}
	cnt := float64(len(idx))
	leaf := &Node{Leaf: true, Value: sum / cnt}
	parentSSE := sq - sum*sum/cnt

	if len(idx) < 2*b.params.MinSamplesLeaf ||
		(b.params.MaxDepth > 0 && depth >= b.params.MaxDepth) ||
		parentSSE <= 1e-12 {
		return leaf
	}

	bestFeat, bestThr, bestSSE := -1, 0.0, parentSSE
	sorted := make([]int, len(idx))
	for _, f := range b.candidateFeatures() {
		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, c int) bool { return b.X[sorted[a]][f] < b.X[sorted[c]][f] })

		lSum, lSq := 0.0, 0.0
		for k := 0; k < len(sorted)-1; k++ {
			v := b.y[sorted[k]]
			lSum += v
			lSq += v * v
			xk, xn := b.X[sorted[k]][f], b.X[sorted[k+1]][f]
			if xk == xn {
				continue
			}
			lN := float64(k + 1)
			rN := cnt - lN
			if int(lN) < b.params.MinSamplesLeaf || int(rN) < b.params.MinSamplesLeaf {
				continue
			}
			rSum, rSq := sum-lSum, sq-lSq
			sse := (lSq - lSum*lSum/lN) + (rSq - rSum*rSum/rN)
			if sse < bestSSE-1e-12 {
				bestFeat, bestThr, bestSSE = f, (xk+xn)/2, sse
			}
		}
	}
	if bestFeat < 0 {
		return leaf
	}

	var left, right []int
	for _, i := range idx {
		if b.X[i][bestFeat] <= bestThr {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return leaf
	}
	return &Node{
		Feature:   bestFeat,
		Threshold: bestThr,
		Left:      b.build(left, depth+1),
		Right:     b.build(right, depth+1),
	}
}

func (b *treeBuilder) candidateFeatures() []int {
	if b.params.MaxFeatures >= b.nFeat {
		all := make([]int, b.nFeat)
		for i := range all {
			all[i] = i
		}
		return all
	}
	feats := b.rng.Perm(b.nFeat)[:b.params.MaxFeatures]
	sort.Ints(feats)
	return feats
}
