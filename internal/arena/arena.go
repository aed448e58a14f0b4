// Package arena implements the per-method scratch pooling spec.md §3's
// Lifecycles paragraph describes: "All nodes, instructions, blocks,
// handlers, and the pool-allocated arrays backing their edge lists are
// owned by a single per-method compilation arena ... freed en masse when
// compilation of the method ends." The reuse discipline follows
// cmd/compile/internal/ssa's stackalloc, which allocates one sparse set
// for the whole function (newSparseSet(f.NumValues())) and clears it per
// block instead of allocating fresh scratch in every block; the pool
// types here are this module's own, since the spec's arena has no direct
// teacher analogue.
package arena

import "github.com/crossbridge-vm/avm2ssa/internal/ir"

// IntSetPool hands out sparse int-set scratch space for a single method
// compilation, the backing store internal/dataflow's large-CFG dominance
// -frontier worklist uses (spec.md §4.3.2: ">32 blocks: sparse int sets
// backed by the arena"). Reusing buffers across many small sets collapses
// what would otherwise be one map allocation per CFG node into a handful of
// slice allocations for the whole method.
type IntSetPool struct {
	free [][]int32
}

// Get returns a zero-length int32 slice, reusing a previously Put buffer
// when one is available.
func (p *IntSetPool) Get() []int32 {
	if n := len(p.free); n > 0 {
		s := p.free[n-1]
		p.free = p.free[:n-1]
		return s[:0]
	}
	return nil
}

// Put returns s to the pool for reuse by a later Get. The caller must not
// touch s again.
func (p *IntSetPool) Put(s []int32) {
	p.free = append(p.free, s)
}

// Release drops every buffer the pool is holding. Called once when the
// owning method's Func is freed (spec.md §3: "freed en masse when
// compilation of the method ends").
func (p *IntSetPool) Release() {
	p.free = nil
}

// NodeIDPool is the analogous scratch pool for []ir.NodeID-shaped slices:
// stack/scope/local slot vectors copied at every block boundary during
// data-flow wiring (internal/dataflow/wire.go's buildEntry/wireBlock).
type NodeIDPool struct {
	free [][]ir.NodeID
}

// Get returns a slice of length n, reusing a previously Put buffer with
// enough capacity when one is available.
func (p *NodeIDPool) Get(n int) []ir.NodeID {
	for i := len(p.free) - 1; i >= 0; i-- {
		if cap(p.free[i]) >= n {
			s := p.free[i]
			p.free = append(p.free[:i], p.free[i+1:]...)
			return s[:n]
		}
	}
	return make([]ir.NodeID, n)
}

// Put returns s to the pool for reuse by a later Get. The caller must not
// touch s again.
func (p *NodeIDPool) Put(s []ir.NodeID) {
	p.free = append(p.free, s)
}

// Arena bundles the per-method scratch pools that outlive any single pass
// but not the method compile: the data-flow assembler's sparse-set
// worklist storage and node-id vector scratch. Instruction/Block/DataNode
// storage itself lives directly on ir.Func as growable slices (append is
// already a bump allocator over a single backing array); Arena exists for
// the auxiliary scratch buffers passes would otherwise reallocate on every
// call.
type Arena struct {
	IntSets  IntSetPool
	NodeIDs  NodeIDPool
}

// New returns an empty per-method Arena. One is created per worker per
// method by internal/pipeline.Compile and dropped (made eligible for GC)
// when that method's compilation returns, matching spec.md §3's Lifecycles
// and §5's "each worker owns a private compilation arena".
func New() *Arena { return &Arena{} }

// Release frees every scratch buffer the arena is holding. Compile calls
// this in a defer so a failed compilation still releases promptly.
func (a *Arena) Release() {
	a.IntSets.Release()
	a.NodeIDs.free = nil
}
