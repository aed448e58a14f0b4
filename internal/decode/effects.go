package decode

import "github.com/crossbridge-vm/avm2ssa/internal/ir"

// argPopCounts gives the static non-multiname pop contribution for the
// GroupProperty/GroupCall opcodes: the arguments passed, plus the
// receiver/function where the opcode's encoding implies one is already on
// the stack (spec.md §4.3.1).
func argPopCounts(in *ir.Instruction) int {
	switch in.Opcode {
	case ir.OpGetProperty:
		return 1 // object
	case ir.OpFindProperty, ir.OpFindPropStrict, ir.OpGetLex:
		return 0 // no object operand: resolved by walking the scope stack instead
	case ir.OpGetSuper:
		return 1 // object
	case ir.OpSetProperty, ir.OpInitProperty, ir.OpSetSuper:
		return 2 // object + value
	case ir.OpCallProperty, ir.OpCallPropVoid, ir.OpConstructProp:
		return 1 + int(in.Payload.ArgCount) // object + args
	case ir.OpCall:
		return 2 + int(in.Payload.ArgCount) // receiver + function + args
	case ir.OpConstruct:
		return 1 + int(in.Payload.ArgCount) // class/ctor + args
	}
	return 0
}

// PopPush reports the instruction's pop and push counts, folding in the
// runtime namespace/local-name arguments a multiname may carry (spec.md
// §4.3.1: "the instruction's pop count is the static count plus the number
// of runtime namespace/name arguments implied by the multiname kind").
func PopPush(in *ir.Instruction) (pop, push int) {
	if in.Group == ir.GroupProperty || (in.Group == ir.GroupCall && in.Opcode != ir.OpConstruct && in.Opcode != ir.OpCall) {
		pop = argPopCounts(in)
		if in.Payload.RuntimeNS {
			pop++
		}
		if in.Payload.RuntimeName {
			pop++
		}
		push = propertyPush(in.Opcode)
		return pop, push
	}
	if in.Group == ir.GroupCall {
		return argPopCounts(in), 1
	}
	if p, ok := popCount[in.Opcode]; ok {
		pop = p
	}
	if p, ok := pushCount[in.Opcode]; ok {
		push = p
	}
	return pop, push
}

func propertyPush(op ir.Opcode) int {
	switch op {
	case ir.OpGetProperty, ir.OpGetSuper, ir.OpFindProperty, ir.OpFindPropStrict, ir.OpGetLex,
		ir.OpCallProperty, ir.OpConstructProp:
		return 1
	case ir.OpSetProperty, ir.OpInitProperty, ir.OpSetSuper, ir.OpCallPropVoid:
		return 0
	}
	return 0
}
