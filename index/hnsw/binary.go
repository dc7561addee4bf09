package hnsw

import (
	"fmt"

	"github.com/hupe1980/ccvec/internal/conv"
)

// Payload layout:
//
//	[dimension u32][M u32][efConstruction u32][efSearch u32][heuristic u8][seed u64]
//	[ep u32][maxLevel u32][count u32]
//	count x ([levels u32] levels x ([n u32][n x id u32]))
//	[count*dimension f32]

const maxLevels = 64

// MarshalBinary implements encoding.BinaryMarshaler.
func (h *HNSW) MarshalBinary() ([]byte, error) {
	count, err := conv.IntToUint32(len(h.nodes))
	if err != nil {
		return nil, err
	}

	w := conv.NewWriter(41 + 4*len(h.vectors) + 8*h.opts.M*len(h.nodes))
	w.Uint32(uint32(h.dimension))
	w.Uint32(uint32(h.opts.M))
	w.Uint32(uint32(h.opts.EFConstruction))
	w.Uint32(uint32(h.opts.EFSearch))
	if h.opts.Heuristic {
		w.Uint8(1)
	} else {
		w.Uint8(0)
	}
	w.Uint64(h.opts.Seed)
	w.Uint32(h.ep)
	w.Uint32(uint32(h.maxLevel))
	w.Uint32(count)

	for i := range h.nodes {
		links := h.nodes[i].links
		w.Uint32(uint32(len(links)))
		for _, l := range links {
			w.Uint32(uint32(len(l)))
			for _, id := range l {
				w.Uint32(id)
			}
		}
	}

	w.Float32s(h.vectors)
	return w.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (h *HNSW) UnmarshalBinary(data []byte) error {
	r := conv.NewReader(data)

	dim := int(r.Uint32())
	opts := Options{
		M:              int(r.Uint32()),
		EFConstruction: int(r.Uint32()),
		EFSearch:       int(r.Uint32()),
		Heuristic:      r.Uint8() == 1,
		Seed:           r.Uint64(),
	}
	ep := r.Uint32()
	maxLevel := int(r.Uint32())
	count := int(r.Uint32())
	if err := r.Err(); err != nil {
		return err
	}

	if dim <= 0 || opts.M < 2 || opts.EFSearch < 1 {
		return fmt.Errorf("hnsw: invalid parameters (dimension %d, M %d, efSearch %d)", dim, opts.M, opts.EFSearch)
	}
	if count > 0 && (int(ep) >= count || maxLevel >= maxLevels) {
		return fmt.Errorf("hnsw: invalid entry point %d (level %d) for %d nodes", ep, maxLevel, count)
	}
	// Each node needs at least its level count.
	if count > r.Remaining()/4 {
		return fmt.Errorf("hnsw: node count %d exceeds payload", count)
	}

	nodes := make([]node, count)
	for i := range nodes {
		levels := int(r.Uint32())
		if r.Err() != nil {
			return r.Err()
		}
		if levels < 1 || levels > maxLevels {
			return fmt.Errorf("hnsw: node %d has invalid level count %d", i, levels)
		}

		nodes[i].links = make([][]uint32, levels)
		for l := range nodes[i].links {
			n := int(r.Uint32())
			if r.Err() != nil {
				return r.Err()
			}
			if n > r.Remaining()/4 {
				return fmt.Errorf("hnsw: node %d level %d link count %d exceeds payload", i, l, n)
			}

			ids := make([]uint32, n)
			for j := range ids {
				ids[j] = r.Uint32()
				if int(ids[j]) >= count {
					return fmt.Errorf("hnsw: node %d links to unknown node %d", i, ids[j])
				}
			}
			nodes[i].links[l] = ids
		}
	}

	if r.Remaining() != count*dim*4 {
		return fmt.Errorf("hnsw: vector section holds %d bytes, want %d", r.Remaining(), count*dim*4)
	}
	vectors := r.Float32s(count * dim)
	if err := r.Err(); err != nil {
		return err
	}

	h.dimension = dim
	h.opts = opts
	h.ep = ep
	h.maxLevel = maxLevel
	h.nodes = nodes
	h.vectors = vectors
	h.init()
	return nil
}
