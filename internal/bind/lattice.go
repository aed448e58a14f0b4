package bind

import (
	"github.com/crossbridge-vm/avm2ssa/internal/ir"
	"github.com/crossbridge-vm/avm2ssa/internal/registry"
)

// join computes a ⊔ b under the lattice of spec.md §4.4.1. unknown is the
// bottom element: joining it with anything yields the other operand,
// which is what lets a phi's type start at unknown and only ever move
// upward as sources settle (termination argument in §4.4.2).
func join(reg registry.Registry, a, b typeInfo) typeInfo {
	if a.DataType == ir.TUnknown {
		return b
	}
	if b.DataType == ir.TUnknown {
		return a
	}
	if a.DataType == ir.TAny || b.DataType == ir.TAny {
		return typeInfo{DataType: ir.TAny}
	}

	if a.DataType == b.DataType {
		switch a.DataType {
		case ir.TClass:
			if a.Class == b.Class {
				return typeInfo{DataType: ir.TClass, Class: a.Class, NotNull: true}
			}
			return joinObject(reg, a.Class, b.Class)
		case ir.TObject:
			return joinObject(reg, a.Class, b.Class)
		default:
			out := typeInfo{DataType: a.DataType, NotNull: a.NotNull && b.NotNull}
			if a.IsConstant && b.IsConstant && constEqual(a.Const, b.Const) {
				out.IsConstant, out.Const = true, a.Const
			}
			return out
		}
	}

	if a.DataType.IsNumeric() && b.DataType.IsNumeric() {
		return joinNumeric(a, b)
	}
	if (a.DataType == ir.TString && b.DataType == ir.TNull) || (a.DataType == ir.TNull && b.DataType == ir.TString) {
		return typeInfo{DataType: ir.TString}
	}
	return typeInfo{DataType: ir.TObject, Class: reg.RootObjectClass()}
}

// joinObject implements the object(C1) ⊔ object(C2) row: the least common
// ancestor, falling back to the root object class when either side is an
// unrefined object, or when an interface is involved that neither side
// implements (spec.md §4.4.1: "encountering an interface on either side
// where neither is a subtype of the other yields the root object class").
func joinObject(reg registry.Registry, c1, c2 *registry.Class) typeInfo {
	if c1 == nil || c2 == nil {
		return typeInfo{DataType: ir.TObject, Class: reg.RootObjectClass()}
	}
	if lca, ok := registry.LCA(c1, c2); ok {
		return typeInfo{DataType: ir.TObject, Class: lca}
	}
	return typeInfo{DataType: ir.TObject, Class: reg.RootObjectClass()}
}

// joinNumeric implements the int/uint/number row, including the
// constant-representable-in-both-signedness carve-out: "int/uint | int/uint
// -> number, unless one side is a constant >= 0 representable in both
// signednesses -> the other side's type".
func joinNumeric(a, b typeInfo) typeInfo {
	aIU := a.DataType == ir.TInt || a.DataType == ir.TUint
	bIU := b.DataType == ir.TInt || b.DataType == ir.TUint
	if aIU && bIU {
		if v, ok := a.asInt32(); ok && v >= 0 {
			return typeInfo{DataType: b.DataType}
		}
		if v, ok := b.asInt32(); ok && v >= 0 {
			return typeInfo{DataType: a.DataType}
		}
	}
	return typeInfo{DataType: ir.TNumber}
}
