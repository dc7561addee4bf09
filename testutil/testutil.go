package testutil

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/hupe1980/ccvec/model"
)

var sentiments = [...]model.Sentiment{model.SentimentPositive, model.SentimentNeutral, model.SentimentNegative}

// RNG is a seeded, goroutine-safe source of test vectors and records.
type RNG struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRNG returns an RNG whose sequence is fully determined by seed.
func NewRNG(seed uint64) *RNG {
	return &RNG{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// UniformVectors returns num vectors of dim components drawn from [0, 1).
// All vectors share one backing array.
func (g *RNG) UniformVectors(num, dim int) []model.Vector {
	g.mu.Lock()
	defer g.mu.Unlock()

	backing := make([]float32, num*dim)
	for i := range backing {
		backing[i] = g.r.Float32()
	}
	out := make([]model.Vector, num)
	for i := range out {
		out[i] = backing[i*dim : (i+1)*dim : (i+1)*dim]
	}
	return out
}

// UnitVector returns a vector drawn uniformly from the unit hypersphere.
func (g *RNG) UnitVector(dim int) model.Vector {
	g.mu.Lock()
	defer g.mu.Unlock()

	v := make(model.Vector, dim)
	var sq float64
	for i := range v {
		x := g.r.NormFloat64()
		v[i] = float32(x)
		sq += x * x
	}
	if sq == 0 {
		v[0], sq = 1, 1
	}
	inv := float32(1 / math.Sqrt(sq))
	for i := range v {
		v[i] *= inv
	}
	return v
}

// Sentiment returns a random sentiment label.
func (g *RNG) Sentiment() model.Sentiment {
	g.mu.Lock()
	defer g.mu.Unlock()
	return sentiments[g.r.IntN(len(sentiments))]
}

// Metadata returns a record with random CSAT, resolution and sentiment.
func (g *RNG) Metadata(id model.RecordID) model.Metadata {
	g.mu.Lock()
	csat := 1 + math.Round(g.r.Float64()*40)/10
	resolved := g.r.IntN(2) == 1
	g.mu.Unlock()

	return model.Metadata{ID: id, CSAT: csat, Resolved: resolved, Sentiment: g.Sentiment()}
}

// RecordIDs returns n distinct, lexically ordered transcript ids.
func RecordIDs(prefix string, n int) []model.RecordID {
	ids := make([]model.RecordID, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("%s-%05d", prefix, i)
	}
	return ids
}
