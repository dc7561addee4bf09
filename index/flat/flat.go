// Package flat provides an exact nearest-neighbor index that scores every
// stored vector.
package flat

import (
	"fmt"
	"slices"

	"github.com/hupe1980/ccvec/distance"
	"github.com/hupe1980/ccvec/index"
	"github.com/hupe1980/ccvec/internal/queue"
	"github.com/hupe1980/ccvec/model"
)

func init() {
	index.Register(index.KindFlat, func() index.Index { return &Flat{} })
}

// Compile-time check to ensure Flat satisfies the index interface.
var _ index.Index = (*Flat)(nil)

// Options contains configuration options for the flat index.
type Options struct {
	// Metric selects squared L2 distance or cosine similarity scoring.
	Metric distance.Metric

	// NormalizeVectors enables L2 normalization for stored vectors and queries.
	// Commonly used for cosine search.
	NormalizeVectors bool
}

// DefaultOptions contains the default configuration options for the flat index.
var DefaultOptions = Options{
	Metric: distance.MetricL2,
}

// Flat stores vectors contiguously in insertion order.
type Flat struct {
	dimension int
	opts      Options
	score     distance.Func
	data      []float32 // len(data) == dimension * Len()
}

// New creates a new flat index with the given dimension and options.
func New(dimension int, optFns ...func(o *Options)) (*Flat, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if dimension <= 0 {
		return nil, fmt.Errorf("flat: dimension must be positive, got %d", dimension)
	}

	score, err := distance.Provider(opts.Metric)
	if err != nil {
		return nil, err
	}

	return &Flat{dimension: dimension, opts: opts, score: score}, nil
}

// Kind implements index.Index.
func (f *Flat) Kind() index.Kind { return index.KindFlat }

// Scale implements index.Index.
func (f *Flat) Scale() model.Scale {
	if f.opts.Metric == distance.MetricCosine {
		return model.ScaleCosine
	}
	return model.ScaleL2
}

// Dimension implements index.Index.
func (f *Flat) Dimension() int { return f.dimension }

// Len implements index.Index.
func (f *Flat) Len() int {
	if f.dimension == 0 {
		return 0
	}
	return len(f.data) / f.dimension
}

// Vector returns a copy of the vector stored at pos.
func (f *Flat) Vector(pos model.Position) ([]float32, bool) {
	i := int(pos)
	if i >= f.Len() {
		return nil, false
	}
	return slices.Clone(f.at(i)), true
}

func (f *Flat) at(i int) []float32 {
	return f.data[i*f.dimension : (i+1)*f.dimension]
}

// Add implements index.Index.
func (f *Flat) Add(v []float32) (model.Position, error) {
	if len(v) != f.dimension {
		return 0, &index.ErrDimensionMismatch{Expected: f.dimension, Actual: len(v)}
	}

	pos := model.Position(f.Len())

	start := len(f.data)
	f.data = append(f.data, v...)
	if f.opts.NormalizeVectors {
		distance.NormalizeL2InPlace(f.data[start:])
	}

	return pos, nil
}

// Search implements index.Index.
func (f *Flat) Search(q []float32, k int) ([]index.Neighbor, error) {
	if len(q) != f.dimension {
		return nil, &index.ErrDimensionMismatch{Expected: f.dimension, Actual: len(q)}
	}

	n := f.Len()
	if k <= 0 || n == 0 {
		return nil, nil
	}
	k = min(k, n)

	if f.opts.NormalizeVectors {
		if nq, ok := distance.NormalizeL2Copy(q); ok {
			q = nq
		}
	}

	higherIsBetter := f.Scale().HigherIsBetter()

	// Bounded max-queue keeps the k best, with the worst on top.
	topCandidates := queue.NewMax(k + 1)
	for i := 0; i < n; i++ {
		s := f.score(q, f.at(i))
		if higherIsBetter {
			s = -s
		}

		item := queue.Item{Node: uint32(i), Distance: s}
		if topCandidates.Len() < k {
			topCandidates.Push(item)
			continue
		}
		if worst, _ := topCandidates.Top(); queue.Less(item, worst) {
			topCandidates.Pop()
			topCandidates.Push(item)
		}
	}

	sorted := topCandidates.Sorted()
	out := make([]index.Neighbor, len(sorted))
	for i, item := range sorted {
		s := item.Distance
		if higherIsBetter {
			s = -s
		}
		out[i] = index.Neighbor{Position: item.Node, Score: s}
	}
	return out, nil
}
