package dataflow

import (
	"sort"

	"github.com/bits-and-blooms/bitset"
	"github.com/crossbridge-vm/avm2ssa/internal/arena"
	"github.com/crossbridge-vm/avm2ssa/internal/ir"
)

// smallFuncBlockLimit is the cutover spec.md §4.3.2 draws between the two
// dominance-frontier representations: at or below it a bitset per block is
// cheap enough to keep dense; above it the per-block sets are kept sparse.
const smallFuncBlockLimit = 32

// domFrontier is f's dominance frontier, computed once per method and
// reused for every slot's iterated-dominance-frontier query.
type domFrontier struct {
	small bool
	bits  []*bitset.BitSet
	sets  []map[ir.BlockID]bool
	n     int
	a     *arena.Arena
}

// computeDomFrontier implements the classical Cytron/Ferrante/Rosen/Zadeck
// join-edge walk: for every block with two or more predecessors, each
// predecessor's ancestor chain up to (but not including) the block's
// immediate dominator has the block added to its frontier.
func computeDomFrontier(f *ir.Func, a *arena.Arena) *domFrontier {
	n := f.NumBlocks()
	df := &domFrontier{small: n <= smallFuncBlockLimit, n: n, a: a}
	if df.small {
		df.bits = make([]*bitset.BitSet, n)
		for i := range df.bits {
			df.bits[i] = bitset.New(uint(n))
		}
	} else {
		df.sets = make([]map[ir.BlockID]bool, n)
		for i := range df.sets {
			df.sets[i] = map[ir.BlockID]bool{}
		}
	}

	for bi := range f.Blocks {
		b := &f.Blocks[bi]
		if len(b.Preds) < 2 {
			continue
		}
		for _, p := range b.Preds {
			for runner := p; runner != b.Idom; runner = f.Block(runner).Idom {
				df.add(runner, b.ID)
			}
		}
	}
	return df
}

func (df *domFrontier) add(b, member ir.BlockID) {
	if df.small {
		df.bits[b].Set(uint(member))
		return
	}
	df.sets[b][member] = true
}

func (df *domFrontier) forEach(b ir.BlockID, fn func(ir.BlockID)) {
	if df.small {
		bs := df.bits[b]
		for i, e := bs.NextSet(0); e; i, e = bs.NextSet(i + 1) {
			fn(ir.BlockID(i))
		}
		return
	}
	for m := range df.sets[b] {
		fn(m)
	}
}

// idf computes the iterated dominance frontier of defs: the smallest set F
// with defs ⊆ F and DF(b) ⊆ F for every b in F. Per spec.md §4.3.2, the
// ≤32-block case iterates a bitset to a fixed point; the larger case walks
// a worklist over the sparse per-block sets instead of re-scanning a dense
// bitmask every round.
func (df *domFrontier) idf(defs map[ir.BlockID]bool) map[ir.BlockID]bool {
	if df.small {
		return df.idfBitset(defs)
	}
	return df.idfWorklist(defs)
}

func (df *domFrontier) idfBitset(defs map[ir.BlockID]bool) map[ir.BlockID]bool {
	work := bitset.New(uint(df.n))
	for b := range defs {
		work.Set(uint(b))
	}
	for changed := true; changed; {
		changed = false
		for i, e := work.NextSet(0); e; i, e = work.NextSet(i + 1) {
			df.forEach(ir.BlockID(i), func(m ir.BlockID) {
				if !work.Test(uint(m)) {
					work.Set(uint(m))
					changed = true
				}
			})
		}
	}
	out := make(map[ir.BlockID]bool, work.Count())
	for i, e := work.NextSet(0); e; i, e = work.NextSet(i + 1) {
		out[ir.BlockID(i)] = true
	}
	return out
}

// idfWorklist is the >32-block path of spec.md §4.3.2: a worklist over
// arena-backed sparse int storage rather than a dense bitmask, since a
// large method's per-call working set (one IDF query per slot) would
// otherwise re-allocate a []ir.BlockID stack on every call.
func (df *domFrontier) idfWorklist(defs map[ir.BlockID]bool) map[ir.BlockID]bool {
	out := make(map[ir.BlockID]bool, len(defs))
	var raw []int32
	if df.a != nil {
		raw = df.a.IntSets.Get()
	}
	stack := raw[:0]
	for b := range defs {
		out[b] = true
		stack = append(stack, int32(b))
	}
	for len(stack) > 0 {
		b := ir.BlockID(stack[len(stack)-1])
		stack = stack[:len(stack)-1]
		df.forEach(b, func(m ir.BlockID) {
			if !out[m] {
				out[m] = true
				stack = append(stack, int32(m))
			}
		})
	}
	if df.a != nil {
		df.a.IntSets.Put(stack)
	}
	return out
}

// phiPlacement records, per block, the phi nodes allocated there and lets
// wire.go look one up by slot without re-deriving the IDF.
type phiPlacement struct {
	byBlock map[ir.BlockID][]ir.NodeID
	bySlot  map[ir.Slot]map[ir.BlockID]ir.NodeID
}

func newPhiPlacement() *phiPlacement {
	return &phiPlacement{byBlock: map[ir.BlockID][]ir.NodeID{}, bySlot: map[ir.Slot]map[ir.BlockID]ir.NodeID{}}
}

func (p *phiPlacement) at(slot ir.Slot, block ir.BlockID) (ir.NodeID, bool) {
	m, ok := p.bySlot[slot]
	if !ok {
		return ir.NoNode, false
	}
	id, ok := m[block]
	return id, ok
}

func (p *phiPlacement) place(f *ir.Func, slot ir.Slot, block ir.BlockID) ir.NodeID {
	if id, ok := p.at(slot, block); ok {
		return id
	}
	id := f.NewPhi(slot, block, len(f.Block(block).Preds))
	f.Block(block).Flags |= ir.BlockDefinesPhi
	p.byBlock[block] = append(p.byBlock[block], id)
	if p.bySlot[slot] == nil {
		p.bySlot[slot] = map[ir.BlockID]ir.NodeID{}
	}
	p.bySlot[slot][block] = id
	return id
}

// placePhis runs spec.md §4.3.2 over every slot shape.discover() found a
// definition for: it computes that slot's IDF and allocates one phi
// DataNode per IDF block. Catch-entry blocks need no special case here —
// walkBlock already recorded them as a definer of every local, so their
// IDF naturally pulls in phis for every local live across the try region.
func placePhis(f *ir.Func, a *arena.Arena, s *shape) *phiPlacement {
	df := computeDomFrontier(f, a)
	placement := newPhiPlacement()

	placeAll := func(kind ir.SlotKind, defs map[int32]map[ir.BlockID]bool) {
		indices := make([]int32, 0, len(defs))
		for idx := range defs {
			indices = append(indices, idx)
		}
		sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
		for _, idx := range indices {
			slot := ir.Slot{Kind: kind, Index: idx}
			for block := range df.idf(defs[idx]) {
				placement.place(f, slot, block)
			}
		}
	}

	placeAll(ir.SlotStack, s.stackDefs)
	placeAll(ir.SlotScope, s.scopeDefs)
	placeAll(ir.SlotLocal, s.localDefs)
	return placement
}
