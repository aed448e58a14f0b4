// Package irdump implements the enable_tracing dump of spec.md §6: a
// human-readable rendering of a Func's blocks, instructions and data nodes
// printed after each pass. Teacher analogue: cmd/internal/gc/ssa.go's
// dumplist("buildssa", ...) calls, which print the same kind of per-pass
// snapshot gated by a -d ssa/... flag; here gated by Config.EnableTracing
// and routed through zap instead of a raw file writer.
package irdump

import (
	"fmt"
	"strings"

	"github.com/crossbridge-vm/avm2ssa/internal/ir"
)

// Func renders f as a multi-line string: one line per block header, one
// line per instruction showing its popped/pushed node ids, and a trailing
// summary of any DataNode still carrying dataType unknown (the dead-phi
// case spec.md §8 invariant 2 allows).
func Func(f *ir.Func) string {
	var b strings.Builder
	fmt.Fprintf(&b, "func %s (stack=%d scope=%d locals=%d)\n",
		f.Name, f.Limits.MaxStack, f.Limits.MaxScope, f.Limits.LocalCount)

	order := f.RPO
	if len(order) == 0 {
		order = make([]ir.BlockID, f.NumBlocks())
		for i := range order {
			order[i] = ir.BlockID(i)
		}
	}

	for _, bid := range order {
		blk := f.Block(bid)
		fmt.Fprintf(&b, "  b%d: preds=%v succs=%v idom=%d handler=%d%s\n",
			bid, blk.Preds, blk.Succs, blk.Idom, blk.Handler, catchSuffix(blk))
		first, end := blk.InstrRange()
		for id := first; id < end; id++ {
			in := f.Instr(id)
			fmt.Fprintf(&b, "    %04d %-16s pop=%v push=%s\n",
				in.Offset, opName(in), in.Popped(), nodeRef(in.Pushed))
		}
	}

	unresolved := 0
	for i := range f.Nodes {
		n := &f.Nodes[i]
		if n.DataType == ir.TUnknown {
			unresolved++
		}
	}
	if unresolved > 0 {
		fmt.Fprintf(&b, "  (%d node(s) still unknown — dead phi sources)\n", unresolved)
	}
	return b.String()
}

func catchSuffix(b *ir.BasicBlock) string {
	if b.Flags&ir.BlockIsCatchEntry != 0 {
		return " [catch]"
	}
	return ""
}

func opName(in *ir.Instruction) string {
	if in.Opcode == ir.OpUnknown {
		return fmt.Sprintf("unknown(0x%02x)", in.RawOpcode)
	}
	return fmt.Sprintf("%v", in.Opcode)
}

func nodeRef(id ir.NodeID) string {
	if id == ir.NoNode {
		return "-"
	}
	return fmt.Sprintf("v%d", id)
}

// Node renders a single DataNode's id, phi/value kind, slot kind and type.
// Func does not call it.
func Node(f *ir.Func, id ir.NodeID) string {
	if id == ir.NoNode {
		return "-"
	}
	n := f.Node(id)
	kind := "val"
	if n.IsPhi {
		kind = "phi"
	}
	return fmt.Sprintf("v%d[%s %s %s]", id, kind, n.Slot.Kind, n.DataType)
}
