package bind

import (
	"math"
	"strconv"
	"strings"

	"github.com/crossbridge-vm/avm2ssa/internal/abcsrc"
	"github.com/crossbridge-vm/avm2ssa/internal/diag"
	"github.com/crossbridge-vm/avm2ssa/internal/ir"
	"github.com/crossbridge-vm/avm2ssa/internal/registry"
)

// forwardState is the first binder sub-pass of spec.md §4.4.2: a
// fixed-point walk over f.RPO, revisiting any block whose entry state
// changed, dispatching each instruction through the rules below. Teacher
// analogue: cmd/compile/internal/ssa's opt.go worklist-driven rewrite
// passes, generalized from a rewrite rule table to a type lattice.
type forwardState struct {
	f    *ir.Func
	pool abcsrc.ConstantPool
	reg  registry.Registry
	cfg  Config

	phisByBlock map[ir.BlockID][]ir.NodeID
}

func newForwardState(f *ir.Func, pool abcsrc.ConstantPool, reg registry.Registry, cfg Config) *forwardState {
	fs := &forwardState{f: f, pool: pool, reg: reg, cfg: cfg, phisByBlock: map[ir.BlockID][]ir.NodeID{}}
	for i := range f.Nodes {
		n := &f.Nodes[i]
		if n.IsPhi {
			fs.phisByBlock[n.Block] = append(fs.phisByBlock[n.Block], n.ID)
		}
	}
	return fs
}

// run drives the FIFO, touched-tagged block revisit queue of spec.md §5.
func (fs *forwardState) run() error {
	f := fs.f
	queue := append([]ir.BlockID(nil), f.RPO...)
	for _, bid := range queue {
		f.Block(bid).Flags |= ir.BlockTouched
	}
	for len(queue) > 0 {
		bid := queue[0]
		queue = queue[1:]
		f.Block(bid).Flags &^= ir.BlockTouched

		changed, err := fs.visitBlock(bid)
		if err != nil {
			return err
		}
		if !changed {
			continue
		}
		for _, succ := range f.Block(bid).Succs {
			if f.Block(succ).Flags&ir.BlockTouched == 0 {
				f.Block(succ).Flags |= ir.BlockTouched
				queue = append(queue, succ)
			}
		}
	}
	return nil
}

func (fs *forwardState) visitBlock(bid ir.BlockID) (bool, error) {
	f := fs.f
	changed := false

	for _, pid := range fs.phisByBlock[bid] {
		if fs.joinPhi(f.Node(pid)) {
			changed = true
		}
	}

	b := f.Block(bid)
	scope := append([]ir.NodeID(nil), b.Entry.Scope...)
	first, end := b.InstrRange()
	for id := first; id < end; id++ {
		in := f.Instr(id)
		c, err := fs.visitInstr(in, &scope)
		if err != nil {
			return false, err
		}
		changed = changed || c
	}
	return changed, nil
}

// joinPhi recomputes one phi node's type from its current sources. It is
// safe to call on every visit to the owning block: join is monotone, so
// repeated application before sources have settled only ever widens, never
// narrows, the phi's type.
func (fs *forwardState) joinPhi(n *ir.DataNode) bool {
	acc := unknown()
	sawUnknown := false
	for _, src := range n.PhiDefs {
		if src == ir.NoNode {
			sawUnknown = true
			continue
		}
		s := infoOf(fs.f.Node(src))
		if s.DataType == ir.TUnknown {
			sawUnknown = true
		}
		acc = join(fs.reg, acc, s)
	}
	if sawUnknown {
		// Predictive strip (spec.md §4.4.2): don't let a phi look like a
		// settled constant before every source has actually been visited.
		acc.IsConstant = false
	}
	return apply(n, acc)
}

func (fs *forwardState) visitInstr(in *ir.Instruction, scope *[]ir.NodeID) (bool, error) {
	f := fs.f

	switch in.Opcode {
	case ir.OpPushScope, ir.OpPushWith:
		popped := in.Popped()
		if len(popped) == 1 && popped[0] != ir.NoNode {
			if in.Opcode == ir.OpPushWith {
				f.Node(popped[0]).Flags |= ir.FlagWithScope
			}
		}
		*scope = append(*scope, valueOrNoNode(popped))
		return false, nil
	case ir.OpPopScope:
		if len(*scope) > 0 {
			*scope = (*scope)[:len(*scope)-1]
		}
		return false, nil
	}

	if in.Group == ir.GroupProperty || (in.Group == ir.GroupCall && in.Opcode != ir.OpCall && in.Opcode != ir.OpConstruct) {
		return fs.resolveProperty(in, *scope)
	}

	if in.Pushed == ir.NoNode {
		return false, nil
	}
	pushed := f.Node(in.Pushed)

	var ti typeInfo
	switch in.Opcode {
	case ir.OpPushByte:
		ti = constInt(int32(int8(in.Payload.PoolIndex)))
	case ir.OpPushShort:
		ti = constInt(in.Payload.PoolIndex)
	case ir.OpPushInt:
		if v, ok := fs.pool.Int(in.Payload.PoolIndex); ok {
			ti = constInt(v)
		} else {
			ti = typeInfo{DataType: ir.TInt, NotNull: true}
		}
	case ir.OpPushUint:
		if v, ok := fs.pool.UInt(in.Payload.PoolIndex); ok {
			ti = constUint(int32(v))
		} else {
			ti = typeInfo{DataType: ir.TUint, NotNull: true}
		}
	case ir.OpPushDouble:
		if v, ok := fs.pool.Double(in.Payload.PoolIndex); ok {
			ti = constDouble(v)
		} else {
			ti = typeInfo{DataType: ir.TNumber, NotNull: true}
		}
	case ir.OpPushString:
		if v, ok := fs.pool.String(in.Payload.PoolIndex); ok {
			ti = constString(v)
		} else {
			ti = typeInfo{DataType: ir.TString, NotNull: true}
		}
	case ir.OpPushNamespace:
		v, ok := fs.pool.Namespace(in.Payload.PoolIndex)
		ti = typeInfo{DataType: ir.TNamespace, NotNull: true, IsConstant: ok,
			Const: ir.Const{Kind: ir.ConstNamespace, S: v}}
	case ir.OpPushTrue:
		ti = constBool(true)
	case ir.OpPushFalse:
		ti = constBool(false)
	case ir.OpPushNull:
		ti = typeInfo{DataType: ir.TNull}
	case ir.OpPushUndefined:
		ti = typeInfo{DataType: ir.TUndefined}
	case ir.OpPushNaN:
		ti = constDouble(math.NaN())

	case ir.OpConvertI:
		ti = convertNumeric(ir.TInt, poppedInfo(f, in, 0))
	case ir.OpConvertU:
		ti = convertNumeric(ir.TUint, poppedInfo(f, in, 0))
	case ir.OpConvertD:
		ti = convertNumeric(ir.TNumber, poppedInfo(f, in, 0))
	case ir.OpConvertB:
		ti = typeInfo{DataType: ir.TBool, NotNull: true}
	case ir.OpConvertS:
		ti = typeInfo{DataType: ir.TString}
	case ir.OpConvertO:
		ti = typeInfo{DataType: ir.TObject, NotNull: true, Class: poppedInfo(f, in, 0).Class}

	case ir.OpCoerceA:
		// coerce_a passes the value through untouched, so the static type
		// survives; but when the value's class is non-final (or unknown), a
		// namespace-set lookup downstream can't bind early and must defer
		// (spec.md §4.4.2, Open Question 2: propagate conservatively).
		ti = poppedInfo(f, in, 0)
		if ti.Class == nil || !ti.Class.IsFinal {
			pushed.Flags |= ir.FlagLateMultinameBinding
		}
	case ir.OpCoerceS:
		in0 := poppedInfo(f, in, 0)
		if in0.DataType == ir.TNull || in0.DataType == ir.TUndefined {
			ti = typeInfo{DataType: ir.TNull}
		} else {
			ti = typeInfo{DataType: ir.TString}
		}
	case ir.OpCoerce:
		ti = fs.resolveCoerce(in, pushed)

	case ir.OpAdd:
		ti = fs.foldAdd(poppedInfo(f, in, 1), poppedInfo(f, in, 0))
	case ir.OpSubtract:
		ti = foldArith(fs.cfg, poppedInfo(f, in, 1), poppedInfo(f, in, 0), false, func(a, b float64) float64 { return a - b })
	case ir.OpMultiply:
		ti = foldArith(fs.cfg, poppedInfo(f, in, 1), poppedInfo(f, in, 0), false, func(a, b float64) float64 { return a * b })
	case ir.OpDivide:
		ti = foldArith(fs.cfg, poppedInfo(f, in, 1), poppedInfo(f, in, 0), false, func(a, b float64) float64 { return a / b })
	case ir.OpModulo:
		// modulo is the one arithmetic op spec.md §4.4.2 promotes to an
		// integer result under ModeDefault, not just ModeAggressive.
		ti = foldArith(fs.cfg, poppedInfo(f, in, 1), poppedInfo(f, in, 0), true, math.Mod)
	case ir.OpNegate:
		ti = typeInfo{DataType: ir.TNumber}
		if v, ok := poppedInfo(f, in, 0).asFloat64(); ok {
			ti = constDouble(-v)
		}
	case ir.OpIncrement:
		ti = typeInfo{DataType: ir.TNumber}
		if v, ok := poppedInfo(f, in, 0).asFloat64(); ok {
			ti = constDouble(v + 1)
		}
	case ir.OpDecrement:
		ti = typeInfo{DataType: ir.TNumber}
		if v, ok := poppedInfo(f, in, 0).asFloat64(); ok {
			ti = constDouble(v - 1)
		}

	case ir.OpEquals, ir.OpStrictEquals, ir.OpLessThan, ir.OpLessEquals, ir.OpGreaterThan, ir.OpGreaterEquals:
		ti = foldCompare(in.Opcode, poppedInfo(f, in, 1), poppedInfo(f, in, 0))

	case ir.OpGetScopeObject:
		idx := in.Payload.Local0
		if int(idx) < 0 || int(idx) >= len(*scope) {
			// The index is absolute and must lie inside the current scope
			// depth (spec.md §4.4.3).
			return false, diag.Verify(diag.KindScopeStackOverflow, f.Name, in.Offset,
				map[string]any{"index": idx, "depth": len(*scope)})
		}
		if (*scope)[idx] != ir.NoNode {
			ti = infoOf(f.Node((*scope)[idx]))
		} else {
			ti = typeInfo{DataType: ir.TAny}
		}
	case ir.OpGetGlobalScope:
		ti = typeInfo{DataType: ir.TGlobal, NotNull: true}
	case ir.OpGetOuterScope:
		ti = typeInfo{DataType: ir.TObject, Class: fs.reg.RootObjectClass()}

	case ir.OpGetSlot:
		// Slot tables live in the registry's out-of-scope half; without one
		// the read is late-bound and the value arrives untyped.
		ti = typeInfo{DataType: ir.TAny}
	case ir.OpHasNext2:
		ti = typeInfo{DataType: ir.TBool, NotNull: true}

	case ir.OpNewClass:
		if c, ok := fs.reg.ClassForClassInfoIndex(in.Payload.PoolIndex); ok {
			ti = typeInfo{DataType: ir.TClass, Class: c, NotNull: true}
		} else {
			ti = typeInfo{DataType: ir.TClass, NotNull: true}
		}
	case ir.OpNewFunction:
		if m, ok := fs.reg.MethodForMethodInfoIndex(in.Payload.PoolIndex); ok {
			ti = typeInfo{DataType: ir.TFunction, Method: m, NotNull: true}
		} else {
			ti = typeInfo{DataType: ir.TFunction, NotNull: true}
		}
	case ir.OpNewActivation, ir.OpNewArray, ir.OpNewObject:
		ti = typeInfo{DataType: ir.TObject, Class: fs.reg.RootObjectClass(), NotNull: true}

	case ir.OpConstruct:
		ti = fs.resolveConstruct(in)
	case ir.OpCall:
		ti = fs.resolveCall(in)

	default:
		return false, nil
	}

	return apply(pushed, ti), nil
}

func valueOrNoNode(popped []ir.NodeID) ir.NodeID {
	if len(popped) == 0 {
		return ir.NoNode
	}
	return popped[0]
}

// poppedInfo reads the typeInfo of the i-th popped operand (0 = most
// recently pushed, matching Instruction.Popped's order).
func poppedInfo(f *ir.Func, in *ir.Instruction, i int) typeInfo {
	popped := in.Popped()
	if i >= len(popped) || popped[i] == ir.NoNode {
		return unknown()
	}
	return infoOf(f.Node(popped[i]))
}

func convertNumeric(to ir.DataType, in typeInfo) typeInfo {
	out := typeInfo{DataType: to, NotNull: true}
	v, ok := in.asFloat64()
	if !ok && in.IsConstant && in.Const.Kind == ir.ConstString {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(in.Const.S), 64); err == nil {
			v, ok = parsed, true
		}
	}
	if !ok {
		return out
	}
	switch to {
	case ir.TInt:
		return constInt(int32(v))
	case ir.TUint:
		return constUint(int32(uint32(int64(v))))
	case ir.TNumber:
		return constDouble(v)
	}
	return out
}

// foldAdd implements the three-way add rule of spec.md §4.4.2: a string on
// either side yields string (two string constants fold), both sides
// numeric, bool, null or undefined yields number, anything else yields the
// root object.
// Unknown operands count as numeric until they settle so a loop-carried add
// isn't pinned to object before its phi inputs arrive.
func (fs *forwardState) foldAdd(lhs, rhs typeInfo) typeInfo {
	if lhs.DataType == ir.TString || rhs.DataType == ir.TString {
		if ls, ok := lhs.Const.S, lhs.IsConstant && lhs.Const.Kind == ir.ConstString; ok {
			if rs, ok := rhs.Const.S, rhs.IsConstant && rhs.Const.Kind == ir.ConstString; ok {
				return constString(ls + rs)
			}
		}
		return typeInfo{DataType: ir.TString}
	}
	if addNumericish(lhs.DataType) && addNumericish(rhs.DataType) {
		return foldArith(fs.cfg, lhs, rhs, false, func(a, b float64) float64 { return a + b })
	}
	return typeInfo{DataType: ir.TObject, Class: fs.reg.RootObjectClass()}
}

func addNumericish(t ir.DataType) bool {
	return t.IsNumeric() || t == ir.TNull || t == ir.TUndefined || t == ir.TBool || t == ir.TUnknown
}

// foldArith implements the integer-result-type promotion rule of spec.md
// §4.4.2 shared by add/subtract/multiply/divide/modulo: AGGRESSIVE mode
// promotes every one of them, DEFAULT mode promotes only modulo (the
// allowDefaultPromotion argument modulo's call site sets to true), and
// EXPLICIT_ONLY never promotes.
func foldArith(cfg Config, lhs, rhs typeInfo, allowDefaultPromotion bool, op func(a, b float64) float64) typeInfo {
	result := typeInfo{DataType: ir.TNumber}
	promote := cfg.IntegerArithmeticMode == ModeAggressive ||
		(allowDefaultPromotion && cfg.IntegerArithmeticMode == ModeDefault)
	if promote && lhs.DataType != ir.TNumber && rhs.DataType != ir.TNumber &&
		lhs.DataType.IsNumeric() && rhs.DataType.IsNumeric() {
		if lhs.DataType == ir.TUint && rhs.DataType == ir.TUint {
			result.DataType = ir.TUint
		} else {
			result.DataType = ir.TInt
		}
	}
	a, aok := lhs.asFloat64()
	b, bok := rhs.asFloat64()
	if !aok || !bok {
		return result
	}
	v := op(a, b)
	switch result.DataType {
	case ir.TInt:
		return constInt(int32(v))
	case ir.TUint:
		return constUint(int32(uint32(int64(v))))
	default:
		return constDouble(v)
	}
}

func foldCompare(op ir.Opcode, lhs, rhs typeInfo) typeInfo {
	a, aok := lhs.asFloat64()
	b, bok := rhs.asFloat64()
	if op == ir.OpEquals || op == ir.OpStrictEquals {
		if lhs.IsConstant && rhs.IsConstant && lhs.Const.Kind == ir.ConstString && rhs.Const.Kind == ir.ConstString {
			return constBool(lhs.Const.S == rhs.Const.S)
		}
	}
	if !aok || !bok {
		return typeInfo{DataType: ir.TBool, NotNull: true}
	}
	switch op {
	case ir.OpEquals, ir.OpStrictEquals:
		return constBool(a == b)
	case ir.OpLessThan:
		return constBool(a < b)
	case ir.OpLessEquals:
		return constBool(a <= b)
	case ir.OpGreaterThan:
		return constBool(a > b)
	case ir.OpGreaterEquals:
		return constBool(a >= b)
	}
	return typeInfo{DataType: ir.TBool, NotNull: true}
}

// resolveCoerce implements coerce <multiname>: a known primitive-wrapper
// target (int/uint/Number/String/Boolean) rewrites to the matching
// convert_* rule; anything else resolves the multiname to a class and
// coerces to it, falling back to a late-bound "*" coercion when the
// multiname carries a runtime component or doesn't resolve (spec.md
// §4.4.2: "the multiname-resolving coerce rule").
func (fs *forwardState) resolveCoerce(in *ir.Instruction, pushed *ir.DataNode) typeInfo {
	in0 := poppedInfo(fs.f, in, 0)
	// coerce decodes as an immediate (its multiname never pops runtime
	// components from the stack), so the pool index lives in PoolIndex.
	mn, ok := fs.pool.Multiname(in.Payload.PoolIndex)
	if !ok || mn.HasRuntimeNS || mn.HasRuntimeName {
		pushed.Flags |= ir.FlagLateMultinameBinding
		return typeInfo{DataType: ir.TObject, Class: fs.reg.RootObjectClass()}
	}
	// A primitive-naming coerce rewrites to the matching convert_* opcode
	// (spec.md §4.4.2); later visits and the backward hoisting pass then
	// treat it exactly as an explicit conversion.
	switch mn.Name {
	case "int":
		in.Opcode, in.Group = ir.OpConvertI, ir.GroupPlain
		return convertNumeric(ir.TInt, in0)
	case "uint":
		in.Opcode, in.Group = ir.OpConvertU, ir.GroupPlain
		return convertNumeric(ir.TUint, in0)
	case "Number":
		in.Opcode, in.Group = ir.OpConvertD, ir.GroupPlain
		return convertNumeric(ir.TNumber, in0)
	case "String":
		in.Opcode, in.Group = ir.OpConvertS, ir.GroupPlain
		return typeInfo{DataType: ir.TString}
	case "Boolean":
		in.Opcode, in.Group = ir.OpConvertB, ir.GroupPlain
		return typeInfo{DataType: ir.TBool, NotNull: true}
	}
	if c, ok := fs.reg.ClassForMultiname(mn.Namespaces, mn.Name); ok {
		return typeInfo{DataType: ir.TObject, Class: c}
	}
	pushed.Flags |= ir.FlagLateMultinameBinding
	return typeInfo{DataType: ir.TObject, Class: fs.reg.RootObjectClass()}
}

// resolveConstruct resolves construct's result to the constructed class
// when the target is a known class constant, validating the argument count
// against the class's constructor: in range binds as a trait, out of range
// keeps the trait but defers the invocation to a runtime dispatch, and an
// unknown target defers entirely (spec.md §4.4.4 "Constructor call").
func (fs *forwardState) resolveConstruct(in *ir.Instruction) typeInfo {
	f := fs.f
	if in.Payload.ResolvedID < 0 {
		in.Payload.ResolvedID = f.NewResolvedProperty()
	}
	rp := f.Prop(in.Payload.ResolvedID)

	popped := in.Popped()
	if len(popped) == 0 || popped[len(popped)-1] == ir.NoNode {
		rp.Kind = ir.ResolvedRuntime
		return typeInfo{DataType: ir.TAny}
	}
	target := infoOf(f.Node(popped[len(popped)-1]))
	if target.DataType != ir.TClass || target.Class == nil {
		rp.Kind = ir.ResolvedRuntime
		return typeInfo{DataType: ir.TObject, Class: fs.reg.RootObjectClass()}
	}
	if registry.ConstructorAccepts(target.Class, int(in.Payload.ArgCount)) {
		rp.Kind = ir.ResolvedTrait
		rp.Trait = target.Class.Constructor
	} else {
		rp.Kind = ir.ResolvedTraitRTInvoke
		rp.Trait = target.Class.Constructor
	}
	return typeInfo{DataType: ir.TObject, Class: target.Class, NotNull: true}
}

// resolveCall recognizes the coerce-via-class-call intrinsic of spec.md
// §4.4.4: calling a primitive wrapper class with a single argument is a
// conversion, folded when the argument is constant. Everything else a bare
// call can reach is a function value with no declared signature here, so
// the result stays any.
func (fs *forwardState) resolveCall(in *ir.Instruction) typeInfo {
	f := fs.f
	argc := int(in.Payload.ArgCount)
	popped := in.Popped()
	if len(popped) != argc+2 || popped[argc+1] == ir.NoNode {
		return typeInfo{DataType: ir.TAny}
	}
	fn := infoOf(f.Node(popped[argc+1]))
	if fn.DataType != ir.TClass || fn.Class == nil || argc != 1 || popped[0] == ir.NoNode {
		return typeInfo{DataType: ir.TAny}
	}
	arg := infoOf(f.Node(popped[0]))

	var ti typeInfo
	switch fn.Class.Name {
	case "int":
		ti = convertNumeric(ir.TInt, arg)
	case "uint":
		ti = convertNumeric(ir.TUint, arg)
	case "Number":
		ti = convertNumeric(ir.TNumber, arg)
	case "String":
		if v, ok := arg.asInt32(); ok {
			ti = constString(strconv.FormatInt(int64(v), 10))
		} else if arg.IsConstant && arg.Const.Kind == ir.ConstString {
			ti = constString(arg.Const.S)
		} else {
			ti = typeInfo{DataType: ir.TString}
		}
	case "Boolean":
		ti = typeInfo{DataType: ir.TBool, NotNull: true}
	default:
		return typeInfo{DataType: ir.TAny}
	}

	if in.Payload.ResolvedID < 0 {
		in.Payload.ResolvedID = f.NewResolvedProperty()
	}
	rp := f.Prop(in.Payload.ResolvedID)
	rp.Kind = ir.ResolvedIntrinsic
	rp.Intrinsic = ir.IntrinsicPrimitiveConvert
	return ti
}
