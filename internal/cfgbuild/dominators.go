package cfgbuild

import "github.com/crossbridge-vm/avm2ssa/internal/ir"

// computeRPO performs a postorder DFS from f.Entry and stores the reverse
// postorder sequence in f.RPO plus each block's postorder index, per
// spec.md §4.2: "compute reverse postorder and an immediate-dominator tree
// over a CFG whose nodes are {synthetic start, basic blocks, catch
// entries}". Catch-entry blocks are ordinary BasicBlocks here (flagged
// BlockIsCatchEntry) reached only via the exception edges cfgbuild already
// added, so a plain successor-edge DFS covers them without special-casing.
func computeRPO(f *ir.Func) {
	n := f.NumBlocks()
	visited := make([]bool, n)
	postorder := make([]ir.BlockID, 0, n)

	var visit func(ir.BlockID)
	visit = func(b ir.BlockID) {
		if visited[b] {
			return
		}
		visited[b] = true
		f.Block(b).Flags |= ir.BlockVisited
		for _, s := range f.Block(b).Succs {
			visit(s)
		}
		postorder = append(postorder, b)
	}
	visit(f.Entry)

	// Any block unreachable from Entry via ordinary edges (can happen for
	// a catch target whose whole try region was itself unreachable) still
	// needs a postorder slot so dominator math never indexes out of
	// range; append them after the reachable set.
	for id := ir.BlockID(0); int(id) < n; id++ {
		visit(id)
	}

	for i, b := range postorder {
		f.Block(b).Postorder = int32(i)
	}

	f.RPO = make([]ir.BlockID, len(postorder))
	for i, b := range postorder {
		f.RPO[len(postorder)-1-i] = b
	}
}

// computeDominators implements the iterative Cooper/Harvey/Kennedy
// algorithm over f.RPO, per spec.md §4.2: "Computed by iterative data-flow
// over the reverse postorder until convergence." Catch-entry blocks get
// their immediate dominator forced to the synthetic start afterward, per
// the spec's explicit rule.
func computeDominators(f *ir.Func) {
	rpoIndex := make(map[ir.BlockID]int, len(f.RPO))
	for i, b := range f.RPO {
		rpoIndex[b] = i
	}

	idom := make([]ir.BlockID, f.NumBlocks())
	for i := range idom {
		idom[i] = ir.NoBlock
	}
	idom[f.Entry] = f.Entry

	changed := true
	for changed {
		changed = false
		for _, b := range f.RPO {
			if b == f.Entry {
				continue
			}
			var newIdom ir.BlockID = ir.NoBlock
			for _, p := range f.Block(b).Preds {
				if idom[p] == ir.NoBlock {
					continue
				}
				if newIdom == ir.NoBlock {
					newIdom = p
					continue
				}
				newIdom = intersect(idom, rpoIndex, newIdom, p)
			}
			if newIdom != ir.NoBlock && idom[b] != newIdom {
				idom[b] = newIdom
				changed = true
			}
		}
	}

	for i := range idom {
		if idom[i] == ir.NoBlock {
			idom[i] = f.Entry // unreachable block: treat as dominated by start
		}
	}
	for bi := range f.Blocks {
		b := &f.Blocks[bi]
		if b.Flags&ir.BlockIsCatchEntry != 0 {
			b.Idom = f.Entry
		} else {
			b.Idom = idom[b.ID]
		}
	}
	f.Block(f.Entry).Idom = f.Entry
}

func intersect(idom []ir.BlockID, rpoIndex map[ir.BlockID]int, a, b ir.BlockID) ir.BlockID {
	for a != b {
		for rpoIndex[a] > rpoIndex[b] {
			a = idom[a]
		}
		for rpoIndex[b] > rpoIndex[a] {
			b = idom[b]
		}
	}
	return a
}
