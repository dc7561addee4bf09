// Package hnsw provides an approximate nearest-neighbor index based on the
// Hierarchical Navigable Small World graph.
package hnsw

import (
	"fmt"
	"math"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/ccvec/distance"
	"github.com/hupe1980/ccvec/index"
	"github.com/hupe1980/ccvec/internal/queue"
	"github.com/hupe1980/ccvec/model"
)

func init() {
	index.Register(index.KindHNSW, func() index.Index { return &HNSW{} })
}

// Compile-time check to ensure HNSW satisfies the index interface.
var _ index.Index = (*HNSW)(nil)

// Options represents the options for configuring HNSW.
type Options struct {
	// M specifies the number of established connections for every new element during construction.
	// Reasonable range for M is 2-100. Higher M works better on datasets with high intrinsic
	// dimensionality and/or high recall. The range M=12-48 is ok for most use cases.
	M int

	// EFConstruction specifies the size of the dynamic candidate list while inserting.
	EFConstruction int

	// EFSearch specifies the minimum size of the dynamic candidate list while searching.
	// Larger values improve recall at the cost of increased search time.
	EFSearch int

	// Heuristic indicates whether to use the diversity heuristic (true) or
	// plain nearest selection (false) when linking neighbours.
	Heuristic bool

	// Seed makes level assignment reproducible. A node's level is a pure
	// function of Seed and its position.
	Seed uint64
}

// DefaultOptions contains the default configuration options for HNSW.
var DefaultOptions = Options{
	M:              16,
	EFConstruction: 200,
	EFSearch:       64,
	Heuristic:      true,
	Seed:           0x9E3779B97F4A7C15,
}

// node holds the per-layer adjacency lists of one position.
type node struct {
	links [][]uint32 // links[level] for level 0..len(links)-1
}

func (n *node) level() int { return len(n.links) - 1 }

// HNSW represents the Hierarchical Navigable Small World graph.
//
// Vectors are scored by squared L2 distance.
type HNSW struct {
	dimension int
	opts      Options
	mmax      int     // Max number of connections per element/per layer
	mmax0     int     // Max for the 0 layer
	ml        float64 // Normalization factor for level generation
	ep        uint32  // Entry point on the top layer
	maxLevel  int     // Track the current max level used

	nodes   []node
	vectors []float32
}

// New creates a new HNSW instance with the given dimension and options.
func New(dimension int, optFns ...func(o *Options)) (*HNSW, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if dimension <= 0 {
		return nil, fmt.Errorf("hnsw: dimension must be positive, got %d", dimension)
	}
	if opts.M < 2 {
		// M == 1 would result in division by zero: 1 / log(1.0 * M) = 1 / 0
		opts.M = 2
	}
	opts.EFConstruction = max(opts.EFConstruction, opts.M)
	opts.EFSearch = max(opts.EFSearch, 1)

	h := &HNSW{dimension: dimension, opts: opts}
	h.init()
	return h, nil
}

func (h *HNSW) init() {
	h.mmax = h.opts.M
	h.mmax0 = 2 * h.opts.M
	h.ml = 1 / math.Log(float64(h.opts.M))
}

// Kind implements index.Index.
func (h *HNSW) Kind() index.Kind { return index.KindHNSW }

// Scale implements index.Index.
func (h *HNSW) Scale() model.Scale { return model.ScaleL2 }

// Dimension implements index.Index.
func (h *HNSW) Dimension() int { return h.dimension }

// Len implements index.Index.
func (h *HNSW) Len() int { return len(h.nodes) }

func (h *HNSW) vector(id uint32) []float32 {
	i := int(id) * h.dimension
	return h.vectors[i : i+h.dimension]
}

func (h *HNSW) dist(q []float32, id uint32) float32 {
	return distance.SquaredL2(q, h.vector(id))
}

// randomLevel draws the exponentially distributed level of a position.
func (h *HNSW) randomLevel(pos uint32) int {
	// splitmix64 of (seed, pos), mapped to (0, 1].
	z := h.opts.Seed + uint64(pos+1)*0x9E3779B97F4A7C15
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	z ^= z >> 31
	u := (float64(z>>11) + 1) / (1 << 53)
	return int(math.Floor(-math.Log(u) * h.ml))
}

// Add inserts a new element into the HNSW graph.
func (h *HNSW) Add(v []float32) (model.Position, error) {
	if len(v) != h.dimension {
		return 0, &index.ErrDimensionMismatch{Expected: h.dimension, Actual: len(v)}
	}

	id := uint32(len(h.nodes))
	level := h.randomLevel(id)

	h.vectors = append(h.vectors, v...)
	n := node{links: make([][]uint32, level+1)}

	if id == 0 {
		h.nodes = append(h.nodes, n)
		h.ep = 0
		h.maxLevel = level
		return id, nil
	}

	q := h.vector(id)

	// Find single shortest path from top layers above our current node,
	// which will be our new starting-point.
	curr := h.greedy(q, h.ep, h.maxLevel, level)

	// For all levels equal and below our current node, find the top
	// (closest) candidates and create a link.
	for l := min(level, h.maxLevel); l >= 0; l-- {
		candidates := h.searchLayer(q, curr, h.opts.EFConstruction, l)
		n.links[l] = h.selectNeighbours(candidates, h.opts.M)
		curr = candidates[0]
	}

	h.nodes = append(h.nodes, n)

	// Next link the neighbour nodes to our new node, making it visible.
	for l := min(level, h.maxLevel); l >= 0; l-- {
		for _, nb := range h.nodes[id].links[l] {
			h.link(nb, id, l)
		}
	}

	if level > h.maxLevel {
		h.ep = id
		h.maxLevel = level
	}

	return id, nil
}

// greedy descends from level top to level bottom+1, moving to the closest
// neighbour on each layer.
func (h *HNSW) greedy(q []float32, ep uint32, top, bottom int) queue.Item {
	curr := queue.Item{Node: ep, Distance: h.dist(q, ep)}

	for l := top; l > bottom; l-- {
		changed := true
		for changed {
			changed = false

			links := h.nodes[curr.Node].links
			if l >= len(links) {
				break
			}
			for _, nb := range links[l] {
				item := queue.Item{Node: nb, Distance: h.dist(q, nb)}
				if queue.Less(item, curr) {
					curr = item
					changed = true
				}
			}
		}
	}

	return curr
}

// link adds a link from first to second on level, pruning first's
// adjacency list when it exceeds the layer maximum.
func (h *HNSW) link(first, second uint32, level int) {
	maxConnections := h.mmax
	// HNSW allows double the connections for the bottom level (0)
	if level == 0 {
		maxConnections = h.mmax0
	}

	n := &h.nodes[first]
	n.links[level] = append(n.links[level], second)

	if len(n.links[level]) <= maxConnections {
		return
	}

	base := h.vector(first)
	candidates := make([]queue.Item, len(n.links[level]))
	for i, id := range n.links[level] {
		candidates[i] = queue.Item{Node: id, Distance: h.dist(base, id)}
	}
	slices.SortFunc(candidates, compareItems)

	n.links[level] = h.selectNeighbours(candidates, maxConnections)
}

// searchLayer performs a best-first search in a specified layer and returns
// up to ef items, closest first.
func (h *HNSW) searchLayer(q []float32, ep queue.Item, ef int, level int) []queue.Item {
	visited := roaring.New()
	visited.Add(ep.Node)

	candidates := queue.NewMin(ef)
	candidates.Push(ep)

	topCandidates := queue.NewMax(ef + 1)
	topCandidates.Push(ep)

	for candidates.Len() > 0 {
		candidate, _ := candidates.Pop()
		worst, _ := topCandidates.Top()
		if candidate.Distance > worst.Distance {
			break
		}

		links := h.nodes[candidate.Node].links
		if level >= len(links) {
			continue
		}

		for _, nb := range links[level] {
			if !visited.CheckedAdd(nb) {
				continue
			}

			item := queue.Item{Node: nb, Distance: h.dist(q, nb)}
			worst, _ = topCandidates.Top()

			// Add the element to topCandidates if size < EF or it beats the worst.
			if topCandidates.Len() < ef || queue.Less(item, worst) {
				candidates.Push(item)
				topCandidates.Push(item)
				if topCandidates.Len() > ef {
					topCandidates.Pop()
				}
			}
		}
	}

	return topCandidates.Sorted()
}

// selectNeighbours picks up to m ids from candidates (sorted closest first).
func (h *HNSW) selectNeighbours(candidates []queue.Item, m int) []uint32 {
	if !h.opts.Heuristic || len(candidates) <= m {
		out := make([]uint32, 0, min(m, len(candidates)))
		for _, c := range candidates[:min(m, len(candidates))] {
			out = append(out, c.Node)
		}
		return out
	}

	selected := make([]queue.Item, 0, m)
	var discarded []queue.Item

	// Keep a candidate only if it is closer to the base than to every
	// neighbour already selected.
	for _, c := range candidates {
		if len(selected) >= m {
			break
		}

		keep := true
		for _, s := range selected {
			if distance.SquaredL2(h.vector(s.Node), h.vector(c.Node)) < c.Distance {
				keep = false
				break
			}
		}

		if keep {
			selected = append(selected, c)
		} else {
			discarded = append(discarded, c)
		}
	}

	// Add any additional items from discarded if selected < m.
	for _, c := range discarded {
		if len(selected) >= m {
			break
		}
		selected = append(selected, c)
	}

	out := make([]uint32, len(selected))
	for i, s := range selected {
		out[i] = s.Node
	}
	return out
}

// Search performs a k-nearest neighbor search in the HNSW graph.
func (h *HNSW) Search(q []float32, k int) ([]index.Neighbor, error) {
	if len(q) != h.dimension {
		return nil, &index.ErrDimensionMismatch{Expected: h.dimension, Actual: len(q)}
	}
	if k <= 0 || len(h.nodes) == 0 {
		return nil, nil
	}
	k = min(k, len(h.nodes))

	ep := h.greedy(q, h.ep, h.maxLevel, 0)
	items := h.searchLayer(q, ep, max(h.opts.EFSearch, k), 0)

	if len(items) > k {
		items = items[:k]
	}

	out := make([]index.Neighbor, len(items))
	for i, item := range items {
		out[i] = index.Neighbor{Position: item.Node, Score: item.Distance}
	}
	return out, nil
}

func compareItems(a, b queue.Item) int {
	switch {
	case queue.Less(a, b):
		return -1
	case queue.Less(b, a):
		return 1
	default:
		return 0
	}
}
