package bind

import (
	"github.com/crossbridge-vm/avm2ssa/internal/abcsrc"
	"github.com/crossbridge-vm/avm2ssa/internal/diag"
	"github.com/crossbridge-vm/avm2ssa/internal/ir"
	"github.com/crossbridge-vm/avm2ssa/internal/registry"
)

// resolveProperty implements spec.md §4.4.4 for every GroupProperty opcode
// and the GroupCall opcodes that carry a multiname (callproperty,
// constructprop). findproperty/findpropstrict/getlex take the separate
// scope-walk path in resolveFindProperty since they have no object operand
// on the stack.
func (fs *forwardState) resolveProperty(in *ir.Instruction, scope []ir.NodeID) (bool, error) {
	f := fs.f

	switch in.Opcode {
	case ir.OpFindProperty, ir.OpFindPropStrict, ir.OpGetLex:
		return fs.resolveFindProperty(in, scope)
	}

	if in.Payload.ResolvedID < 0 {
		in.Payload.ResolvedID = f.NewResolvedProperty()
	}
	rp := f.Prop(in.Payload.ResolvedID)

	popped := in.Popped()
	if len(popped) == 0 || popped[len(popped)-1] == ir.NoNode {
		return false, nil
	}
	objID := popped[len(popped)-1]
	objTI := infoOf(f.Node(objID))

	if in.Opcode == ir.OpGetSuper || in.Opcode == ir.OpSetSuper {
		if objTI.Class != nil {
			if objTI.Class.Parent == nil {
				return false, diag.Verify(diag.KindIllegalSuperExpr, f.Name, in.Offset,
					map[string]any{"class": objTI.Class.Name})
			}
			// Super accesses bind against the parent's trait table.
			objTI.Class = objTI.Class.Parent
		}
	}

	hasRuntimeParts := in.Payload.RuntimeNS || in.Payload.RuntimeName
	if !hasRuntimeParts && rp.FastPathHit(objTI.DataType, objTI.Class) {
		return fs.applyResolution(in, rp, objTI)
	}

	// Cache reuse (spec.md §9): a get/call on the very object a preceding
	// findproperty with the same multiname pushed copies that instruction's
	// settled resolution instead of re-searching the trait tables.
	if !hasRuntimeParts {
		if src := fs.findPropertyResolution(objID, in.Payload.MultinameID); src != nil {
			rp.Kind = src.Kind
			rp.Trait = src.Trait
			rp.Remember(objTI.DataType, objTI.Class)
			return fs.applyResolution(in, rp, objTI)
		}
	}

	mn, _ := fs.pool.Multiname(in.Payload.MultinameID)
	kind, trait := fs.dispatchObject(objTI, mn)
	rp.Kind = kind
	rp.Trait = trait
	if kind == ir.ResolvedIntrinsic {
		rp.Intrinsic = intrinsicFor(objTI, mn)
	}

	// Index-accessor specialisation (spec.md §4.4.4 step 3, scenario S6):
	// a runtime-name access on an indexable class whose name argument is
	// numeric selects the class's numeric-indexed accessor.
	if kind == ir.ResolvedRuntime && in.Payload.RuntimeName && !in.Payload.RuntimeNS && objTI.Class != nil {
		if elem, accessor, ok := indexAccessFor(objTI.Class); ok {
			nameAt := runtimeNamePosition(in)
			if nameAt < len(popped) && popped[nameAt] != ir.NoNode &&
				infoOf(f.Node(popped[nameAt])).DataType.IsNumeric() {
				kind = ir.ResolvedIndex
				rp.Kind = kind
				rp.IndexAccessor = accessor
				rp.IndexElem = elem
			}
		}
	}

	if in.Opcode == ir.OpConstructProp && kind == ir.ResolvedTrait {
		if t, ok := trait.(registry.Trait); ok && t != nil && t.DeclaredType() != nil {
			if !registry.ConstructorAccepts(t.DeclaredType(), int(in.Payload.ArgCount)) {
				rp.Kind = ir.ResolvedTraitRTInvoke
			}
		}
	}
	rp.Remember(objTI.DataType, objTI.Class)

	return fs.applyResolution(in, rp, objTI)
}

// runtimeNamePosition locates a runtime local-name operand in the popped
// list (pop order, top of stack first): the set forms have the stored value
// above it and the call forms have their arguments above it.
func runtimeNamePosition(in *ir.Instruction) int {
	switch in.Opcode {
	case ir.OpSetProperty, ir.OpInitProperty, ir.OpSetSuper:
		return 1
	case ir.OpCallProperty, ir.OpCallPropVoid, ir.OpConstructProp:
		return int(in.Payload.ArgCount)
	default:
		return 0
	}
}

// findPropertyResolution returns the settled trait resolution of the
// findproperty/findpropstrict instruction that pushed objID with the same
// multiname, or nil. The single-def constraint makes the push-instruction
// lookup exact: a non-phi node has exactly one producer.
func (fs *forwardState) findPropertyResolution(objID ir.NodeID, multinameID int32) *ir.ResolvedProperty {
	obj := fs.f.Node(objID)
	if obj.IsPhi || obj.Def == ir.NoInstr {
		return nil
	}
	def := fs.f.Instr(obj.Def)
	if def.Opcode != ir.OpFindProperty && def.Opcode != ir.OpFindPropStrict {
		return nil
	}
	if def.Payload.MultinameID != multinameID || def.Payload.ResolvedID < 0 {
		return nil
	}
	src := fs.f.Prop(def.Payload.ResolvedID)
	if src.Kind != ir.ResolvedTrait || src.Trait == nil {
		return nil
	}
	return src
}

// dispatchObject implements step 2 (object dispatch) plus the intrinsic
// recognition of the "Intrinsic recognition examples" paragraph.
// Index-accessor recognition (step 3) is not done here.
func (fs *forwardState) dispatchObject(obj typeInfo, mn abcsrc.Multiname) (ir.ResolvedKind, registry.Trait) {
	switch obj.DataType {
	case ir.TGlobal:
		if t, ok := fs.reg.GlobalLookup(mn.Namespaces, mn.Name); ok {
			return ir.ResolvedTrait, t
		}
		return ir.ResolvedRuntime, nil

	case ir.TClass:
		if obj.Class == nil {
			return ir.ResolvedRuntime, nil
		}
		// Static traits first, then instance traits (spec.md §4.4.4 step 2:
		// "search that class's static traits, then its instance traits").
		if t, ok := lookupInherited(obj.Class, mn.Name, true); ok {
			if tag := intrinsicFor(obj, mn); tag != ir.IntrinsicNone {
				return ir.ResolvedIntrinsic, t
			}
			return ir.ResolvedTrait, t
		}
		if t, ok := lookupInherited(obj.Class, mn.Name, false); ok {
			return ir.ResolvedTrait, t
		}
		return ir.ResolvedRuntime, nil

	case ir.TObject:
		if obj.Class == nil {
			return ir.ResolvedRuntime, nil
		}
		if t, ok := lookupInherited(obj.Class, mn.Name, false); ok {
			if tag := intrinsicFor(obj, mn); tag != ir.IntrinsicNone {
				return ir.ResolvedIntrinsic, t
			}
			return ir.ResolvedTrait, t
		}
		return ir.ResolvedRuntime, nil

	case ir.TString:
		// Primitive strings still carry the String intrinsics even without
		// a registry-visible wrapper class (spec.md §4.4.4 "Intrinsic
		// recognition examples").
		if tag := intrinsicFor(obj, mn); tag != ir.IntrinsicNone {
			return ir.ResolvedIntrinsic, nil
		}
		if c, ok := fs.reg.ClassForMultiname(nil, "String"); ok {
			if t, ok := lookupInherited(c, mn.Name, false); ok {
				return ir.ResolvedTrait, t
			}
		}
		return ir.ResolvedRuntime, nil

	default:
		// any, null, undefined, or an unrefined object: must defer to
		// runtime (spec.md §4.4.4 step 2's final bullet).
		return ir.ResolvedRuntime, nil
	}
}

// lookupInherited walks the ancestor chain for a trait, since a subclass
// instance binds its parents' members the same as its own.
func lookupInherited(c *registry.Class, name string, isStatic bool) (registry.Trait, bool) {
	for cur := c; cur != nil; cur = cur.Parent {
		if t, ok := cur.LookupTrait(name, isStatic); ok {
			return t, true
		}
	}
	return nil, false
}

func intrinsicFor(obj typeInfo, mn abcsrc.Multiname) ir.IntrinsicTag {
	className := ""
	if obj.Class != nil {
		className = obj.Class.Name
	}
	if obj.DataType == ir.TString {
		className = "String"
	}
	switch className {
	case "Math":
		switch mn.Name {
		case "min":
			return ir.IntrinsicMathMin
		case "max":
			return ir.IntrinsicMathMax
		}
	case "String":
		switch mn.Name {
		case "charAt":
			return ir.IntrinsicStringCharAt
		case "charCodeAt":
			return ir.IntrinsicStringCharCodeAt
		}
	case "Array":
		if mn.Name == "push" {
			return ir.IntrinsicArrayPush
		}
	}
	return ir.IntrinsicNone
}

// indexAccessFor reports the numeric-indexed accessor and element type a
// class exposes, per spec.md §4.4.4 step 3. The actual accessor table is an
// external (registry/runtime) concern; this recognizes the convention the
// array/vector/rest collections use.
func indexAccessFor(c *registry.Class) (ir.DataType, string, bool) {
	switch c.Name {
	case "Vector.<int>":
		return ir.TInt, c.Name + ".$index", true
	case "Vector.<uint>":
		return ir.TUint, c.Name + ".$index", true
	case "Vector.<Number>":
		return ir.TNumber, c.Name + ".$index", true
	case "Array":
		return ir.TAny, c.Name + ".$index", true
	}
	return ir.TUnknown, "", false
}

// applyResolution sets the pushed node's type (and, for
// call/constructprop, the resolved method's declared type) from the
// already-resolved ResolvedProperty record.
func (fs *forwardState) applyResolution(in *ir.Instruction, rp *ir.ResolvedProperty, obj typeInfo) (bool, error) {
	switch in.Opcode {
	case ir.OpSetProperty, ir.OpInitProperty, ir.OpSetSuper, ir.OpCallPropVoid:
		return false, nil // no push
	}
	if in.Pushed == ir.NoNode {
		return false, nil
	}
	pushed := fs.f.Node(in.Pushed)

	switch rp.Kind {
	case ir.ResolvedRuntime:
		return apply(pushed, typeInfo{DataType: ir.TAny}), nil
	case ir.ResolvedIntrinsic:
		return apply(pushed, fs.intrinsicResultType(in, rp.Intrinsic)), nil
	case ir.ResolvedIndex:
		return apply(pushed, typeInfo{DataType: rp.IndexElem}), nil
	}

	t, _ := rp.Trait.(registry.Trait)
	switch in.Opcode {
	case ir.OpGetProperty, ir.OpGetSuper, ir.OpCallProperty:
		if t == nil {
			return apply(pushed, typeInfo{DataType: ir.TAny}), nil
		}
		if m, ok := t.(registry.MethodTrait); ok && in.Opcode != ir.OpCallProperty {
			return apply(pushed, typeInfo{DataType: ir.TFunction, Method: m, NotNull: true}), nil
		}
		if t.DeclaredType() == nil {
			return apply(pushed, typeInfo{DataType: ir.TAny}), nil
		}
		return apply(pushed, typeInfo{DataType: ir.TObject, Class: t.DeclaredType()}), nil

	case ir.OpConstructProp:
		if t == nil {
			return apply(pushed, typeInfo{DataType: ir.TObject, Class: fs.reg.RootObjectClass()}), nil
		}
		return apply(pushed, typeInfo{DataType: ir.TObject, Class: t.DeclaredType(), NotNull: true}), nil
	}
	return false, nil
}

// intrinsicResultType computes an intrinsic call's result type, consulting
// the argument nodes where the specialisation depends on them: Math.min/max
// over same-signedness integers stays integer (spec.md §4.4.4 "Math.min
// (int,int) ... integer-typed result").
func (fs *forwardState) intrinsicResultType(in *ir.Instruction, tag ir.IntrinsicTag) typeInfo {
	switch tag {
	case ir.IntrinsicMathMin, ir.IntrinsicMathMax:
		argc := int(in.Payload.ArgCount)
		popped := in.Popped()
		if argc >= 1 && argc <= len(popped) {
			out := ir.TUnknown
			for _, p := range popped[:argc] {
				if p == ir.NoNode {
					out = ir.TNumber
					break
				}
				at := infoOf(fs.f.Node(p)).DataType
				switch {
				case out == ir.TUnknown:
					out = at
				case out != at:
					out = ir.TNumber
				}
			}
			if out == ir.TInt || out == ir.TUint {
				return typeInfo{DataType: out, NotNull: true}
			}
		}
		return typeInfo{DataType: ir.TNumber}
	case ir.IntrinsicStringCharAt, ir.IntrinsicCharAtCompare:
		return typeInfo{DataType: ir.TString, NotNull: true}
	case ir.IntrinsicStringCharCodeAt, ir.IntrinsicCharCodeAtCompare:
		return typeInfo{DataType: ir.TNumber}
	case ir.IntrinsicArrayPush:
		return typeInfo{DataType: ir.TUint, NotNull: true}
	}
	return typeInfo{DataType: ir.TAny}
}

// resolveFindProperty implements spec.md §4.4.4 step 4: walk the current
// scope stack top to bottom (the captured/outer scope stack is an
// external concern this pipeline does not model explicitly, so the
// search conservatively falls back to a global lookup once the visible
// scope stack is exhausted).
func (fs *forwardState) resolveFindProperty(in *ir.Instruction, scope []ir.NodeID) (bool, error) {
	f := fs.f
	if in.Payload.ResolvedID < 0 {
		in.Payload.ResolvedID = f.NewResolvedProperty()
	}
	rp := f.Prop(in.Payload.ResolvedID)

	mn, _ := fs.pool.Multiname(in.Payload.MultinameID)

	var found typeInfo
	kind := ir.ResolvedRuntime
	resolved := false
	lateBinding := false
	for i := len(scope) - 1; i >= 0; i-- {
		if scope[i] == ir.NoNode {
			continue
		}
		levelNode := f.Node(scope[i])
		levelTI := infoOf(levelNode)
		if levelNode.Flags.Has(ir.FlagWithScope) && (levelTI.Class == nil || levelTI.Class.IsDynamic) {
			// A with-scope object's dynamic members can't be ruled out at
			// compile time; stop searching and defer (spec.md §4.4.4 step 4).
			kind, resolved = ir.ResolvedRuntime, true
			break
		}
		if levelNode.Flags.Has(ir.FlagLateMultinameBinding) {
			// The level's static type was erased ahead of a late-bound use
			// (a coerce_a over a non-final class); binding a name through it
			// here would trust exactly the type information the flag says
			// not to trust. Defer, and carry the flag onto the pushed base
			// so downstream accesses stay late-bound too (spec.md §4.4.2,
			// Open Question 2: propagate conservatively).
			kind, resolved = ir.ResolvedRuntime, true
			lateBinding = true
			break
		}
		k, t := fs.dispatchObject(levelTI, mn)
		if k != ir.ResolvedRuntime {
			kind, resolved = ir.ResolvedTrait, true
			rp.Trait = t
			found = levelTI
			break
		}
	}
	if !resolved {
		if t, ok := fs.reg.GlobalLookup(mn.Namespaces, mn.Name); ok {
			kind, found = ir.ResolvedTrait, typeInfo{DataType: ir.TGlobal}
			rp.Trait = t
		}
	}
	rp.Kind = kind

	if in.Pushed == ir.NoNode {
		return false, nil
	}
	pushed := f.Node(in.Pushed)
	if lateBinding {
		pushed.Flags |= ir.FlagLateMultinameBinding
	}

	if in.Opcode == ir.OpGetLex {
		if kind == ir.ResolvedTrait {
			if t, ok := rp.Trait.(registry.Trait); ok && t.DeclaredType() != nil {
				return apply(pushed, typeInfo{DataType: ir.TObject, Class: t.DeclaredType()}), nil
			}
		}
		return apply(pushed, typeInfo{DataType: ir.TAny}), nil
	}

	// findproperty/findpropstrict push the base object the property was
	// found on, not the property's value.
	if kind == ir.ResolvedTrait {
		return apply(pushed, typeInfo{DataType: found.DataType, Class: found.Class, NotNull: true}), nil
	}
	return apply(pushed, typeInfo{DataType: ir.TObject, Class: fs.reg.RootObjectClass(), NotNull: true}), nil
}
