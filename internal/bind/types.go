// Package bind implements the semantic binder of spec.md §4.4: forward type
// propagation to a fixed point, property resolution, and a backward
// coercion/elision sweep. Teacher analogue: cmd/compile/internal/ssa's
// rewrite-pass dispatch tables (rewriteMIPS.go's giant opcode switch) for
// the forward pass, and stackalloc.go's liveness-style backward sweep for
// the second.
package bind

import (
	"github.com/crossbridge-vm/avm2ssa/internal/ir"
	"github.com/crossbridge-vm/avm2ssa/internal/registry"
)

// typeInfo is the (type, class, constant) triple the lattice in lattice.go
// operates on. It mirrors the fields a DataNode stores, but as a plain
// value so Join never has to mutate nodes mid-computation (spec.md §4.4.1:
// "each node's type transitions only in the upward direction" — callers
// compare the old and new typeInfo to decide whether a revisit propagated).
type typeInfo struct {
	DataType   ir.DataType
	Class      *registry.Class
	Method     registry.MethodTrait
	IsConstant bool
	Const      ir.Const
	NotNull    bool
}

func infoOf(n *ir.DataNode) typeInfo {
	ti := typeInfo{DataType: n.DataType, NotNull: n.Flags.Has(ir.FlagNotNull), IsConstant: n.Flags.Has(ir.FlagConstant)}
	if ti.IsConstant {
		ti.Const = n.Const
	}
	if c, ok := n.Class.(*registry.Class); ok {
		ti.Class = c
	}
	if m, ok := n.Method.(registry.MethodTrait); ok {
		ti.Method = m
	}
	return ti
}

// apply writes ti back onto n, returning whether anything observable
// changed (the signal the forward pass's fixed-point work queue needs).
func apply(n *ir.DataNode, ti typeInfo) bool {
	changed := n.DataType != ti.DataType
	oldConstant := n.Flags.Has(ir.FlagConstant)
	oldNotNull := n.Flags.Has(ir.FlagNotNull)
	if oldConstant != ti.IsConstant || (ti.IsConstant && !constEqual(n.Const, ti.Const)) {
		changed = true
	}
	if oldNotNull != ti.NotNull {
		changed = true
	}
	oldClass, _ := n.Class.(*registry.Class)
	if oldClass != ti.Class {
		changed = true
	}

	n.DataType = ti.DataType
	if ti.Class != nil {
		n.Class = ti.Class
	} else {
		n.Class = nil
	}
	if ti.Method != nil {
		n.Method = ti.Method
	}
	if ti.IsConstant {
		n.Flags |= ir.FlagConstant
		n.Const = ti.Const
	} else {
		n.Flags &^= ir.FlagConstant
	}
	if ti.NotNull {
		n.Flags |= ir.FlagNotNull
	} else {
		n.Flags &^= ir.FlagNotNull
	}
	return changed
}

func constInt(v int32) typeInfo {
	return typeInfo{DataType: ir.TInt, IsConstant: true, NotNull: true, Const: ir.Const{Kind: ir.ConstInt, I: v}}
}

func constUint(v int32) typeInfo {
	return typeInfo{DataType: ir.TUint, IsConstant: true, NotNull: true, Const: ir.Const{Kind: ir.ConstUint, I: v}}
}

func constDouble(v float64) typeInfo {
	return typeInfo{DataType: ir.TNumber, IsConstant: true, NotNull: true, Const: ir.Const{Kind: ir.ConstDouble, F: v}}
}

func constString(v string) typeInfo {
	return typeInfo{DataType: ir.TString, IsConstant: true, NotNull: true, Const: ir.Const{Kind: ir.ConstString, S: v}}
}

func constBool(v bool) typeInfo {
	return typeInfo{DataType: ir.TBool, IsConstant: true, NotNull: true, Const: ir.Const{Kind: ir.ConstBool, Bool: v}}
}

func unknown() typeInfo { return typeInfo{DataType: ir.TUnknown} }

func constEqual(a, b ir.Const) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case ir.ConstInt, ir.ConstUint:
		return a.I == b.I
	case ir.ConstDouble:
		return a.F == b.F
	case ir.ConstString, ir.ConstNamespace, ir.ConstQName:
		return a.S == b.S
	case ir.ConstBool:
		return a.Bool == b.Bool
	case ir.ConstClass:
		return a.Class == b.Class
	case ir.ConstMethod:
		return a.Method == b.Method
	default:
		return true
	}
}

// asInt32 extracts the constant integral value of an int/uint typeInfo,
// the common input the numeric folding rules in forward.go need.
func (t typeInfo) asInt32() (int32, bool) {
	if !t.IsConstant {
		return 0, false
	}
	switch t.Const.Kind {
	case ir.ConstInt, ir.ConstUint:
		return t.Const.I, true
	}
	return 0, false
}

func (t typeInfo) asFloat64() (float64, bool) {
	if !t.IsConstant {
		return 0, false
	}
	switch t.Const.Kind {
	case ir.ConstDouble:
		return t.Const.F, true
	case ir.ConstInt, ir.ConstUint:
		return float64(t.Const.I), true
	}
	return 0, false
}
