package cfgbuild

import (
	"github.com/crossbridge-vm/avm2ssa/internal/decode"
	"github.com/crossbridge-vm/avm2ssa/internal/diag"
	"github.com/crossbridge-vm/avm2ssa/internal/ir"
)

// opcodesThatCannotThrow is the set spec.md §4.2 carves out of the
// try-region over-approximation: "unless the opcode cannot raise a
// runtime error". Kept conservative and small — pure stack/constant
// shuffles and unconditional control transfers only — per the spec's own
// instruction that the over-approximation is intentional.
var opcodesThatCannotThrow = map[ir.Opcode]bool{
	ir.OpPushByte: true, ir.OpPushShort: true, ir.OpPushInt: true, ir.OpPushUint: true,
	ir.OpPushDouble: true, ir.OpPushString: true, ir.OpPushNamespace: true,
	ir.OpPushTrue: true, ir.OpPushFalse: true, ir.OpPushNull: true,
	ir.OpPushUndefined: true, ir.OpPushNaN: true,
	ir.OpDup: true, ir.OpSwap: true, ir.OpPop: true,
	ir.OpGetLocal: true, ir.OpSetLocal: true,
	ir.OpLabel: true, ir.OpNop: true, ir.OpJump: true, ir.OpPopScope: true,
}

func buildHandlers(f *ir.Func, specs []HandlerSpec, byOffset map[int32]ir.InstrID) error {
	for _, spec := range specs {
		if spec.FromOffset >= spec.ToOffset {
			return diag.Verify(diag.KindEHRangeInvalid, f.Name, spec.FromOffset,
				map[string]any{"reason": "start >= end", "from": spec.FromOffset, "to": spec.ToOffset})
		}
		catchInstr, err := resolveOffset(f, byOffset, spec.CatchOffset)
		if err != nil {
			return diag.Verify(diag.KindEHRangeInvalid, f.Name, spec.CatchOffset,
				map[string]any{"reason": "catch target outside method"})
		}

		hid := f.NewHandler()
		h := f.Handler(hid)
		h.FromOffset, h.ToOffset, h.CatchOffset = spec.FromOffset, spec.ToOffset, spec.CatchOffset
		h.ErrorType = spec.ErrorType
		if spec.Parent >= 0 {
			h.Parent = ir.HandlerID(spec.Parent)
		}

		catchBlock := blockOf(f, catchInstr)
		f.Block(catchBlock).Flags |= ir.BlockIsCatchEntry
		h.CatchTargets = appendUnique(h.CatchTargets, catchBlock)

		var edgeAdded []ir.BlockID
		for id := range f.Instrs {
			in := &f.Instrs[id]
			if in.Offset < spec.FromOffset || in.Offset >= spec.ToOffset {
				continue
			}
			if in.Opcode == ir.OpUnknown {
				return decode.IllegalOpcode(f.Name, in.Offset, in.RawOpcode)
			}
			b := in.Block
			if f.Block(b).Handler == ir.NoHandler {
				f.Block(b).Handler = hid
			}
			if opcodesThatCannotThrow[in.Opcode] {
				continue
			}
			// One control-flow edge per covered block, not per covered
			// instruction: every reachable instruction in b can raise into
			// catchBlock, but b -> catchBlock is still a single CFG edge
			// (spec.md §4.2's over-approximation is per instruction-covered
			// block, not a multiplicity of identical edges).
			already := false
			for _, done := range edgeAdded {
				if done == b {
					already = true
					break
				}
			}
			if already {
				continue
			}
			edgeAdded = append(edgeAdded, b)
			f.AddEdge(b, catchBlock)
		}
	}
	return checkOverlap(f, specs)
}

func appendUnique(s []ir.BlockID, v ir.BlockID) []ir.BlockID {
	for _, x := range s {
		if x == v {
			return s
		}
	}
	return append(s, v)
}

// checkOverlap rejects handler regions that overlap with inconsistent
// parents, per spec.md §4.2 Failure: "overlapping handlers with
// inconsistent parents".
func checkOverlap(f *ir.Func, specs []HandlerSpec) error {
	for i, a := range specs {
		for j, b := range specs {
			if i == j {
				continue
			}
			overlap := a.FromOffset < b.ToOffset && b.FromOffset < a.ToOffset
			nested := a.FromOffset <= b.FromOffset && b.ToOffset <= a.ToOffset
			if overlap && !nested && !(b.FromOffset <= a.FromOffset && a.ToOffset <= b.ToOffset) {
				return diag.Verify(diag.KindEHRangeInvalid, f.Name, a.FromOffset,
					map[string]any{"reason": "overlapping handlers with inconsistent parents", "other": b.FromOffset})
			}
		}
	}
	return nil
}
