package bind

import "github.com/crossbridge-vm/avm2ssa/internal/ir"

// backwardState is the second binder sub-pass, spec.md §4.4.5: a single
// sweep (no fixed point needed, unlike the forward pass) that back
// -propagates demanded types onto producers and marks elision/fusion
// opportunities for the code generator.
type backwardState struct {
	f   *ir.Func
	cfg Config
}

func (bs *backwardState) run() {
	bs.hoistConversions()
	bs.markConstantSinks()
	bs.markConcatTrees()
	bs.fuseIntrinsicCompares()
	bs.optimizeVectorIndex()
}

// hoistConversions implements the first bullet of spec.md §4.4.5: a
// single-use, side-effect-free primitive conversion is hoisted onto its
// producer's onPushCoerceType, and a constant producer whose converted
// form is itself constant needs no push at all.
func (bs *backwardState) hoistConversions() {
	f := bs.f
	for i := range f.Instrs {
		in := &f.Instrs[i]
		target, ok := primitiveConversionTarget(in.Opcode)
		if !ok || in.Pushed == ir.NoNode {
			continue
		}
		popped := in.Popped()
		if len(popped) != 1 || popped[0] == ir.NoNode {
			continue
		}
		producer := f.Node(popped[0])
		if producer.NumUses() != 1 {
			continue
		}
		producer.OnPushCoerceType = target

		pushed := f.Node(in.Pushed)
		if producer.Flags.Has(ir.FlagConstant) && pushed.Flags.Has(ir.FlagConstant) {
			producer.Flags |= ir.FlagNoPush
		}

		if target == ir.TInt || target == ir.TUint {
			switch {
			case isArithmeticDef(f, producer):
				promoteIntegerTree(f, producer, target)
			case isIntegerDivModRoot(f, producer):
				// divide/modulo participate only at the tree root, and only
				// when both operands are integers of the same signedness.
				producer.DataType = target
			}
		}
	}
}

func primitiveConversionTarget(op ir.Opcode) (ir.DataType, bool) {
	switch op {
	case ir.OpConvertI:
		return ir.TInt, true
	case ir.OpConvertU:
		return ir.TUint, true
	case ir.OpConvertD:
		return ir.TNumber, true
	case ir.OpConvertB:
		return ir.TBool, true
	}
	return ir.TUnknown, false
}

func isArithmeticDef(f *ir.Func, n *ir.DataNode) bool {
	if n.Def == ir.NoInstr {
		return false
	}
	switch f.Instr(n.Def).Opcode {
	case ir.OpAdd, ir.OpSubtract, ir.OpMultiply, ir.OpNegate, ir.OpIncrement, ir.OpDecrement:
		return true
	}
	return false
}

// isIntegerDivModRoot reports whether n is a divide/modulo result whose
// operands are both int or both uint, the one position those opcodes may
// occupy in an integer-promoted tree.
func isIntegerDivModRoot(f *ir.Func, n *ir.DataNode) bool {
	if n.Def == ir.NoInstr {
		return false
	}
	in := f.Instr(n.Def)
	switch in.Opcode {
	case ir.OpDivide, ir.OpModulo:
	default:
		return false
	}
	popped := in.Popped()
	if len(popped) != 2 || popped[0] == ir.NoNode || popped[1] == ir.NoNode {
		return false
	}
	a := f.Node(popped[0]).DataType
	b := f.Node(popped[1]).DataType
	return (a == ir.TInt && b == ir.TInt) || (a == ir.TUint && b == ir.TUint)
}

// promoteIntegerTree implements "Integer arithmetic promotion" (spec.md
// §4.4.5): every node in an add/subtract/multiply/negate/increment/
// decrement tree reachable through single-use edges is retyped to
// target. divide/modulo only ever appear as the tree's own root (the
// caller checks that before recursing into one), never as an internal
// node, so recursion does not descend through them.
func promoteIntegerTree(f *ir.Func, n *ir.DataNode, target ir.DataType) {
	if !n.DataType.IsNumeric() {
		return
	}
	n.DataType = target
	if n.Def == ir.NoInstr {
		return
	}
	switch f.Instr(n.Def).Opcode {
	case ir.OpAdd, ir.OpSubtract, ir.OpMultiply, ir.OpNegate, ir.OpIncrement, ir.OpDecrement:
	default:
		return
	}
	for _, p := range f.Instr(n.Def).Popped() {
		if p == ir.NoNode {
			continue
		}
		operand := f.Node(p)
		if operand.NumUses() == 1 {
			promoteIntegerTree(f, operand, target)
		}
	}
}

// markConstantSinks implements the unconditional NO_PUSH rule for
// a constant whose single consumer is setlocal, pop, returnvalue,
// callpropvoid, initproperty or setproperty (spec.md §4.4.5 third bullet).
func (bs *backwardState) markConstantSinks() {
	f := bs.f
	for i := range f.Nodes {
		n := &f.Nodes[i]
		if !n.Flags.Has(ir.FlagConstant) || n.NumUses() != 1 {
			continue
		}
		switch f.Instr(n.Uses()[0]).Opcode {
		case ir.OpSetLocal, ir.OpPop, ir.OpReturnValue, ir.OpCallPropVoid, ir.OpInitProperty, ir.OpSetProperty:
			n.Flags |= ir.FlagNoPush
		}
	}
}

// markConcatTrees implements the string-concatenation tree rule: nested
// single-use string-typed adds are flattened for the code generator's
// multi-operand concat emission (spec.md §4.4.5, scenario S5).
func (bs *backwardState) markConcatTrees() {
	f := bs.f
	for i := range f.Instrs {
		in := &f.Instrs[i]
		if in.Opcode != ir.OpAdd || in.Pushed == ir.NoNode {
			continue
		}
		pushed := f.Node(in.Pushed)
		if pushed.DataType != ir.TString || isConcatTreeInternalCandidate(f, in.Pushed) {
			continue // reached as a child from its parent add instead
		}
		pushed.Flags |= ir.FlagIsConcatTreeRoot
		markConcatChildren(f, in)
	}
}

func isConcatTreeInternalCandidate(f *ir.Func, id ir.NodeID) bool {
	n := f.Node(id)
	if n.NumUses() != 1 {
		return false
	}
	consumer := f.Instr(n.Uses()[0])
	return consumer.Opcode == ir.OpAdd && consumer.Pushed != ir.NoNode && f.Node(consumer.Pushed).DataType == ir.TString
}

func markConcatChildren(f *ir.Func, in *ir.Instruction) {
	for _, p := range in.Popped() {
		if p == ir.NoNode {
			continue
		}
		n := f.Node(p)
		if n.Def == ir.NoInstr || n.DataType != ir.TString || n.NumUses() != 1 {
			continue
		}
		child := f.Instr(n.Def)
		if child.Opcode == ir.OpAdd {
			n.Flags |= ir.FlagIsConcatTreeInternal
			markConcatChildren(f, child)
		}
	}
}

// fuseIntrinsicCompares implements the compare-fusion rule: a charAt/
// charCodeAt intrinsic compared against a matching constant collapses
// into an index-level comparison, with the comparand needing no push
// (spec.md §4.4.5).
func (bs *backwardState) fuseIntrinsicCompares() {
	f := bs.f
	for i := range f.Instrs {
		in := &f.Instrs[i]
		if in.Opcode != ir.OpEquals && in.Opcode != ir.OpStrictEquals {
			continue
		}
		popped := in.Popped()
		if len(popped) != 2 || popped[0] == ir.NoNode || popped[1] == ir.NoNode {
			continue
		}
		bs.tryFuseCompare(popped[0], popped[1])
		bs.tryFuseCompare(popped[1], popped[0])
	}
}

func (bs *backwardState) tryFuseCompare(callSide, constSide ir.NodeID) {
	f := bs.f
	cn := f.Node(callSide)
	if cn.Def == ir.NoInstr {
		return
	}
	defIn := f.Instr(cn.Def)
	if defIn.Payload.ResolvedID < 0 {
		return
	}
	rp := f.Prop(defIn.Payload.ResolvedID)
	kn := f.Node(constSide)
	if !kn.Flags.Has(ir.FlagConstant) {
		return
	}
	switch rp.Intrinsic {
	case ir.IntrinsicStringCharAt:
		if kn.DataType == ir.TString && len([]rune(kn.Const.S)) == 1 {
			rp.Intrinsic = ir.IntrinsicCharAtCompare
			kn.Flags |= ir.FlagNoPush
		}
	case ir.IntrinsicStringCharCodeAt:
		if kn.DataType == ir.TInt || kn.DataType == ir.TUint || kn.DataType == ir.TNumber {
			rp.Intrinsic = ir.IntrinsicCharCodeAtCompare
			kn.Flags |= ir.FlagNoPush
		}
	}
}

// optimizeVectorIndex implements the vector-index-fusion rule: a
// numeric-indexed access whose index is integer+integer-constant
// collapses onto an integer-indexed accessor, clearing whatever coercion
// the index argument had picked up as a generic property name (spec.md
// §4.4.5, scenario S6).
func (bs *backwardState) optimizeVectorIndex() {
	f := bs.f
	for i := range f.Instrs {
		in := &f.Instrs[i]
		if in.Opcode != ir.OpGetProperty || in.Payload.ResolvedID < 0 {
			continue
		}
		rp := f.Prop(in.Payload.ResolvedID)
		if rp.Kind != ir.ResolvedIndex || rp.IndexAccessor == "" {
			continue
		}
		popped := in.Popped()
		if len(popped) == 0 || popped[0] == ir.NoNode {
			continue
		}
		idx := f.Node(popped[0])
		idx.OnPushCoerceType = ir.TUnknown
		if idx.NumUses() != 1 || idx.Def == ir.NoInstr {
			continue
		}
		def := f.Instr(idx.Def)
		ops := def.Popped()
		if (def.Opcode != ir.OpAdd && def.Opcode != ir.OpSubtract) ||
			len(ops) != 2 || ops[0] == ir.NoNode || ops[1] == ir.NoNode {
			continue
		}
		a, b := f.Node(ops[0]), f.Node(ops[1])
		if a.DataType == ir.TInt && b.DataType == ir.TInt &&
			(a.Flags.Has(ir.FlagConstant) || b.Flags.Has(ir.FlagConstant)) {
			promoteIntegerTree(f, idx, ir.TInt)
		}
	}
}
