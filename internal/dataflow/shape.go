// Package dataflow implements the SSA construction of spec.md §4.3: shape
// discovery (§4.3.1), iterated-dominance-frontier phi placement (§4.3.2),
// and node-id assignment with def/use wiring (§4.3.3). Teacher analogue:
// cmd/internal/gc/ssa.go's vars map plus linkForwardReferences, generalized
// from named AST variables to stack/scope/local slot indices and from a
// single forward walk to the two-pass discover-then-wire shape a
// stack machine with exception handlers requires.
package dataflow

import (
	"github.com/crossbridge-vm/avm2ssa/internal/decode"
	"github.com/crossbridge-vm/avm2ssa/internal/diag"
	"github.com/crossbridge-vm/avm2ssa/internal/ir"
)

// shape is the per-method state produced by the first pass: per-block
// entry/exit depths and, for every slot, the set of blocks that define it.
// It is discarded once phi placement and wiring have consumed it; nothing
// here survives into the produced ir.Func.
type shape struct {
	stackEntry, stackExit []int32 // indexed by BlockID
	scopeEntry, scopeExit []int32

	// defSites[kind] maps a slot index to the blocks that define it,
	// keyed by int32 index within that kind's space.
	stackDefs  map[int32]map[ir.BlockID]bool
	scopeDefs  map[int32]map[ir.BlockID]bool
	localDefs  map[int32]map[ir.BlockID]bool
	catchLocal map[ir.BlockID]bool // catch-entry blocks: all locals defined
}

func newShape(f *ir.Func) *shape {
	n := f.NumBlocks()
	return &shape{
		stackEntry: make([]int32, n), stackExit: make([]int32, n),
		scopeEntry: make([]int32, n), scopeExit: make([]int32, n),
		stackDefs: map[int32]map[ir.BlockID]bool{},
		scopeDefs: map[int32]map[ir.BlockID]bool{},
		localDefs: map[int32]map[ir.BlockID]bool{},
		catchLocal: map[ir.BlockID]bool{},
	}
}

func mark(m map[int32]map[ir.BlockID]bool, idx int32, b ir.BlockID) {
	s := m[idx]
	if s == nil {
		s = map[ir.BlockID]bool{}
		m[idx] = s
	}
	s[b] = true
}

// discover runs spec.md §4.3.1's first pass: a forward walk of the CFG
// (in RPO, iterated to a fixed point so loop headers see their back-edge
// depth before the pass settles) that tracks abstract stack/scope depth
// and which slot indices each block (re)defines.
func discover(f *ir.Func) (*shape, error) {
	s := newShape(f)
	for i := range s.stackEntry {
		s.stackEntry[i], s.stackExit[i] = -1, -1
		s.scopeEntry[i], s.scopeExit[i] = -1, -1
	}
	s.stackEntry[f.Entry], s.scopeEntry[f.Entry] = 0, 0

	changed := true
	for pass := 0; changed; pass++ {
		changed = false
		for _, bid := range f.RPO {
			b := f.Block(bid)
			if s.stackEntry[bid] < 0 {
				// No predecessor settled yet (unreached so far); skip
				// until a later pass. The synthetic start always has an
				// entry depth of 0, so this only affects blocks not yet
				// reached by a settled predecessor.
				continue
			}
			stackOut, scopeOut, err := walkBlock(f, s, b, bid)
			if err != nil {
				return nil, err
			}
			if s.stackExit[bid] != stackOut || s.scopeExit[bid] != scopeOut {
				s.stackExit[bid], s.scopeExit[bid] = stackOut, scopeOut
				changed = true
			}
			for _, succ := range b.Succs {
				if err := propagate(f, s, bid, succ, stackOut, scopeOut, &changed); err != nil {
					return nil, err
				}
			}
		}
		if pass > 4*f.NumBlocks()+8 {
			return nil, diag.Verify(diag.KindStackDepthUnbalanced, f.Name, 0,
				map[string]any{"reason": "fixed point did not converge"})
		}
	}
	return s, nil
}

func propagate(f *ir.Func, s *shape, from, to ir.BlockID, stackOut, scopeOut int32, changed *bool) error {
	if f.Block(to).Flags&ir.BlockIsCatchEntry != 0 {
		// A catch entry's state is fixed regardless of where in the try
		// region the throw happened: operand and scope stacks are cleared
		// and the exception is the sole stack slot (spec.md §4.3.1 "Catch
		// entries"). Predecessor exit depths are irrelevant here.
		if s.stackEntry[to] < 0 {
			s.stackEntry[to], s.scopeEntry[to] = 1, 0
			*changed = true
		}
		return nil
	}
	if s.stackEntry[to] < 0 {
		s.stackEntry[to], s.scopeEntry[to] = stackOut, scopeOut
		*changed = true
		return nil
	}
	if s.stackEntry[to] != stackOut {
		return diag.Verify(diag.KindStackDepthUnbalanced, f.Name, firstOffset(f, to),
			map[string]any{"from_block": from, "to_block": to, "expected": s.stackEntry[to], "got": stackOut})
	}
	if s.scopeEntry[to] != scopeOut {
		return diag.Verify(diag.KindScopeStackOverflow, f.Name, firstOffset(f, to),
			map[string]any{"reason": "scope depth mismatch", "from_block": from, "to_block": to})
	}
	return nil
}

func firstOffset(f *ir.Func, b ir.BlockID) int32 {
	return f.Instr(f.Block(b).First).Offset
}

// walkBlock simulates one block's instructions abstractly, recording
// stack/scope definition sites (spec.md §4.3.1's "special opcode
// treatment") and returns the block's exit depths.
func walkBlock(f *ir.Func, s *shape, b *ir.BasicBlock, bid ir.BlockID) (stackOut, scopeOut int32, err error) {
	depth := s.stackEntry[bid]
	scope := s.scopeEntry[bid]
	written := map[int32]bool{} // stack positions written within this block
	scopeWritten := map[int32]bool{}

	isCatch := b.Flags&ir.BlockIsCatchEntry != 0
	if isCatch {
		depth = 1 // the caught exception value
		written[0] = true
		s.catchLocal[bid] = true
	}

	first, end := b.InstrRange()
	for id := first; id < end; id++ {
		in := f.Instr(id)
		pop, push := decode.PopPush(in)

		switch in.Opcode {
		case ir.OpSwap:
			if depth < 2 {
				return 0, 0, diag.Verify(diag.KindStackUnderflow, f.Name, in.Offset, map[string]any{"op": "swap"})
			}
			// spec.md §4.3.1: swap does not consume/produce a def, but both
			// swapped slots are considered re-defined by this block — an
			// incoming value that only passed through a swap still needs
			// this block recorded as its definition site, or a merge point
			// downstream will miss the phi it forces.
			written[depth-1] = true
			written[depth-2] = true
			continue
		case ir.OpDup:
			if depth < 1 {
				return 0, 0, diag.Verify(diag.KindStackUnderflow, f.Name, in.Offset, map[string]any{"op": "dup"})
			}
			written[depth] = true
			depth++
			continue
		case ir.OpCheckFilter:
			if depth < 1 {
				return 0, 0, diag.Verify(diag.KindStackUnderflow, f.Name, in.Offset, map[string]any{"op": "checkfilter"})
			}
			continue
		case ir.OpHasNext2:
			// Local writes are recorded here; the pushed continuation bool
			// goes through the generic pop/push accounting below.
			mark(s.localDefs, in.Payload.Local0, bid)
			mark(s.localDefs, in.Payload.Local1, bid)
		case ir.OpSetLocal:
			mark(s.localDefs, in.Payload.Local0, bid)
		case ir.OpKill:
			mark(s.localDefs, in.Payload.Local0, bid)
		}

		if depth < int32(pop) {
			return 0, 0, diag.Verify(diag.KindStackUnderflow, f.Name, in.Offset,
				map[string]any{"have": depth, "need": pop})
		}
		depth -= int32(pop)
		if push > 0 {
			written[depth] = true
			depth++
			if depth > f.Limits.MaxStack {
				return 0, 0, diag.Verify(diag.KindStackOverflow, f.Name, in.Offset,
					map[string]any{"depth": depth, "max": f.Limits.MaxStack})
			}
		}

		switch in.Opcode {
		case ir.OpPushScope:
			scopeWritten[scope] = true
			scope++
		case ir.OpPushWith:
			scopeWritten[scope] = true
			scope++
		case ir.OpPopScope:
			scope--
			if scope < 0 {
				return 0, 0, diag.Verify(diag.KindScopeStackUnderflow, f.Name, in.Offset, nil)
			}
		}
		if scope > f.Limits.MaxScope {
			return 0, 0, diag.Verify(diag.KindScopeStackOverflow, f.Name, in.Offset,
				map[string]any{"depth": scope, "max": f.Limits.MaxScope})
		}
	}

	if isCatch {
		// Exceptions may arrive at arbitrary points in the try region, so
		// a catch entry is treated as (re)defining every local (spec.md
		// §4.3.1 "Catch entries").
		for i := int32(0); i < f.Limits.LocalCount; i++ {
			mark(s.localDefs, i, bid)
		}
	}

	for idx, w := range written {
		if w && idx < depth {
			mark(s.stackDefs, idx, bid)
		}
	}
	for idx, w := range scopeWritten {
		if w && idx < scope {
			mark(s.scopeDefs, idx, bid)
		}
	}
	return depth, scope, nil
}
