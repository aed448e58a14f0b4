// Package cfgbuild implements the control-flow assembler of spec.md §4.2:
// it partitions a decoded instruction stream into basic blocks, resolves
// branch targets, expands exception-handler ranges into edges, and
// computes reverse postorder plus an immediate-dominator tree. Teacher
// analogue: the block-linking half of cmd/internal/gc/ssa.go
// (startBlock/endBlock/addEdge), generalized from an AST walk to a
// decoded-instruction-stream walk.
package cfgbuild

import (
	"sort"

	"github.com/crossbridge-vm/avm2ssa/internal/diag"
	"github.com/crossbridge-vm/avm2ssa/internal/ir"
)

// HandlerSpec is the input shape for one exception-handler region, mirrored
// from the method-info's exception table (an out-of-scope collaborator;
// this is the minimal projection cfgbuild needs).
type HandlerSpec struct {
	FromOffset, ToOffset, CatchOffset int32
	ErrorType                         interface{}
	Parent                            int32 // index into the handlers slice, or -1
}

// Build runs the control-flow assembler over f (already populated by
// internal/decode) and the method's exception table, filling in f.Blocks,
// f.EH, f.RPO and each block's Idom/Postorder.
func Build(f *ir.Func, handlers []HandlerSpec) error {
	if len(f.Instrs) == 0 {
		return diag.Verify(diag.KindABCCorrupt, f.Name, 0, map[string]any{"reason": "empty method body"})
	}

	offsetToInstr := indexByOffset(f)

	starts := findBlockStarts(f, offsetToInstr, handlers)
	assignBlocks(f, starts)

	if err := linkFallthroughAndBranches(f, offsetToInstr); err != nil {
		return err
	}
	if err := buildHandlers(f, handlers, offsetToInstr); err != nil {
		return err
	}
	if err := checkFalloff(f); err != nil {
		return err
	}

	computeRPO(f)
	computeDominators(f)
	return nil
}

func indexByOffset(f *ir.Func) map[int32]ir.InstrID {
	m := make(map[int32]ir.InstrID, len(f.Instrs))
	for i := range f.Instrs {
		m[f.Instrs[i].Offset] = ir.InstrID(i)
	}
	return m
}

func resolveOffset(f *ir.Func, byOffset map[int32]ir.InstrID, off int32) (ir.InstrID, error) {
	id, ok := byOffset[off]
	if !ok {
		return ir.NoInstr, diag.Verify(diag.KindBranchOffsetInvalid, f.Name, off, map[string]any{"target": off})
	}
	return id, nil
}

// findBlockStarts collects every instruction id that begins a new block:
// instruction 0, every branch/switch target, every catch target, and every
// instruction immediately following a branch/conditional/switch/return/
// throw.
func findBlockStarts(f *ir.Func, byOffset map[int32]ir.InstrID, handlers []HandlerSpec) []ir.InstrID {
	set := map[ir.InstrID]bool{0: true}
	for _, h := range handlers {
		// An unresolvable catch offset is reported by buildHandlers.
		if id, ok := byOffset[h.CatchOffset]; ok {
			set[id] = true
		}
	}
	for i := range f.Instrs {
		in := &f.Instrs[i]
		switch in.Ctrl {
		case ir.CBranch, ir.CConditional, ir.CSwitch:
			for _, off := range in.Payload.RawTargets {
				if id, ok := byOffset[off]; ok {
					set[id] = true
				}
			}
			if in.Ctrl == ir.CConditional && i+1 < len(f.Instrs) {
				set[ir.InstrID(i+1)] = true
			}
		case ir.CReturn, ir.CThrow:
			if i+1 < len(f.Instrs) {
				set[ir.InstrID(i+1)] = true
			}
		}
		if (in.Ctrl == ir.CBranch || in.Ctrl == ir.CSwitch) && i+1 < len(f.Instrs) {
			set[ir.InstrID(i+1)] = true
		}
	}
	ids := make([]ir.InstrID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func assignBlocks(f *ir.Func, starts []ir.InstrID) {
	for i, start := range starts {
		end := ir.InstrID(len(f.Instrs))
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		b := f.NewBlock()
		blk := f.Block(b)
		blk.First = start
		blk.Count = int32(end - start)
		for id := start; id < end; id++ {
			f.Instrs[id].Block = b
		}
		f.Instrs[start].Flags |= ir.InstrBlockStart
		f.Instrs[end-1].Flags |= ir.InstrBlockEnd
	}
	f.Entry = 0
}

// blockOf returns the block id owning instruction id.
func blockOf(f *ir.Func, id ir.InstrID) ir.BlockID { return f.Instrs[id].Block }

func linkFallthroughAndBranches(f *ir.Func, byOffset map[int32]ir.InstrID) error {
	for bi := range f.Blocks {
		b := &f.Blocks[bi]
		last := f.Instrs[b.First+ir.InstrID(b.Count)-1]
		switch last.Ctrl {
		case ir.CFallthrough:
			if next := b.First + ir.InstrID(b.Count); int(next) < len(f.Instrs) {
				f.AddEdge(b.ID, blockOf(f, next))
			}
		case ir.CBranch:
			tgt, err := resolveOffset(f, byOffset, last.Payload.RawTargets[0])
			if err != nil {
				return err
			}
			f.AddEdge(b.ID, blockOf(f, tgt))
		case ir.CConditional:
			tgt, err := resolveOffset(f, byOffset, last.Payload.RawTargets[0])
			if err != nil {
				return err
			}
			if next := b.First + ir.InstrID(b.Count); int(next) < len(f.Instrs) {
				f.AddEdge(b.ID, blockOf(f, next))
			}
			f.AddEdge(b.ID, blockOf(f, tgt))
		case ir.CSwitch:
			for _, off := range last.Payload.RawTargets {
				tgt, err := resolveOffset(f, byOffset, off)
				if err != nil {
					return err
				}
				f.AddEdge(b.ID, blockOf(f, tgt))
			}
		case ir.CReturn, ir.CThrow:
			// terminal; zero edges.
		}
	}
	return nil
}

// checkFalloff reports CODE_FALLOFF for any non-terminal block whose last
// instruction has no fallthrough successor because the method body ended
// (spec.md §4.2 Failure).
func checkFalloff(f *ir.Func) error {
	for bi := range f.Blocks {
		b := &f.Blocks[bi]
		last := f.Instrs[b.First+ir.InstrID(b.Count)-1]
		next := b.First + ir.InstrID(b.Count)
		atEnd := int(next) >= len(f.Instrs)
		if !atEnd {
			continue
		}
		switch last.Ctrl {
		case ir.CReturn, ir.CThrow:
			continue
		case ir.CBranch, ir.CSwitch:
			continue // targets already resolved; no implicit fallthrough required
		default:
			return diag.Verify(diag.KindCodeFalloff, f.Name, last.Offset, nil)
		}
	}
	return nil
}
