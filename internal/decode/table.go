package decode

import "github.com/crossbridge-vm/avm2ssa/internal/ir"

// operandShape names the fixed encoding of an opcode's immediate operands,
// per spec.md §4.1 Policy: "operand count and kinds (u30 immediate, s24
// branch offset, pool index, local index pair, lookup-switch table)".
type operandShape uint8

const (
	shapeNone      operandShape = iota
	shapeU30                    // one u30 immediate (pool index, arg count, slot, local, ...)
	shapeU8                     // one raw byte (pushbyte)
	shapeS24                    // one branch target
	shapeU30U30                 // two u30s (multiname + argc, etc.)
	shapeSwitch                 // lookupswitch: default s24 + u30 case count + case s24s
	shapeLocalPair              // hasnext2: two u30 local indices
)

// descriptor is one opcode table entry: which ir.Opcode/ir.Group/
// ir.ControlKind it decodes to and how to read its operands.
type descriptor struct {
	op    ir.Opcode
	group ir.Group
	ctrl  ir.ControlKind
	shape operandShape
}

// opTable is keyed by the raw ABC opcode byte value (Adobe's AVM2 overview,
// §"ABC Instruction Set"). Only the subset the binder and CFG assembler treat
// specially (per spec.md's worked rules) is listed in full mnemonic form;
// everything else decodes to ir.OpUnknown, per spec.md §4.1 Policy.
var opTable = map[byte]descriptor{
	0x03: {ir.OpThrow, ir.GroupPlain, ir.CThrow, shapeNone},
	0x04: {ir.OpGetSuper, ir.GroupProperty, ir.CFallthrough, shapeU30},
	0x05: {ir.OpSetSuper, ir.GroupProperty, ir.CFallthrough, shapeU30},
	0x08: {ir.OpKill, ir.GroupLocal, ir.CFallthrough, shapeU30},
	0x09: {ir.OpLabel, ir.GroupPlain, ir.CFallthrough, shapeNone},

	0x10: {ir.OpJump, ir.GroupBranch, ir.CBranch, shapeS24},
	0x11: {ir.OpIfTrue, ir.GroupBranch, ir.CConditional, shapeS24},
	0x12: {ir.OpIfFalse, ir.GroupBranch, ir.CConditional, shapeS24},
	0x13: {ir.OpIfEq, ir.GroupBranch, ir.CConditional, shapeS24},
	0x14: {ir.OpIfNe, ir.GroupBranch, ir.CConditional, shapeS24},
	0x15: {ir.OpIfLt, ir.GroupBranch, ir.CConditional, shapeS24},
	0x16: {ir.OpIfLe, ir.GroupBranch, ir.CConditional, shapeS24},
	0x17: {ir.OpIfGt, ir.GroupBranch, ir.CConditional, shapeS24},
	0x18: {ir.OpIfGe, ir.GroupBranch, ir.CConditional, shapeS24},
	0x19: {ir.OpIfStrictEq, ir.GroupBranch, ir.CConditional, shapeS24},
	0x1a: {ir.OpIfStrictNe, ir.GroupBranch, ir.CConditional, shapeS24},
	0x1b: {ir.OpLookupSwitch, ir.GroupBranch, ir.CSwitch, shapeSwitch},
	0x1c: {ir.OpPushWith, ir.GroupPlain, ir.CFallthrough, shapeNone},
	0x1d: {ir.OpPopScope, ir.GroupPlain, ir.CFallthrough, shapeNone},

	0x20: {ir.OpPushNull, ir.GroupPlain, ir.CFallthrough, shapeNone},
	0x21: {ir.OpPushUndefined, ir.GroupPlain, ir.CFallthrough, shapeNone},
	0x24: {ir.OpPushByte, ir.GroupImmediate, ir.CFallthrough, shapeU8},
	0x25: {ir.OpPushShort, ir.GroupImmediate, ir.CFallthrough, shapeU30},
	0x26: {ir.OpPushTrue, ir.GroupPlain, ir.CFallthrough, shapeNone},
	0x27: {ir.OpPushFalse, ir.GroupPlain, ir.CFallthrough, shapeNone},
	0x28: {ir.OpPushNaN, ir.GroupPlain, ir.CFallthrough, shapeNone},
	0x29: {ir.OpPop, ir.GroupPlain, ir.CFallthrough, shapeNone},
	0x2a: {ir.OpDup, ir.GroupPlain, ir.CFallthrough, shapeNone},
	0x2b: {ir.OpSwap, ir.GroupDupSwap, ir.CFallthrough, shapeNone},
	0x2c: {ir.OpPushString, ir.GroupImmediate, ir.CFallthrough, shapeU30},
	0x2d: {ir.OpPushInt, ir.GroupImmediate, ir.CFallthrough, shapeU30},
	0x2e: {ir.OpPushUint, ir.GroupImmediate, ir.CFallthrough, shapeU30},
	0x2f: {ir.OpPushDouble, ir.GroupImmediate, ir.CFallthrough, shapeU30},
	0x30: {ir.OpPushScope, ir.GroupPlain, ir.CFallthrough, shapeNone},
	0x31: {ir.OpPushNamespace, ir.GroupImmediate, ir.CFallthrough, shapeU30},
	0x32: {ir.OpHasNext2, ir.GroupLocal, ir.CFallthrough, shapeLocalPair},

	0x41: {ir.OpCall, ir.GroupCall, ir.CFallthrough, shapeU30},
	0x42: {ir.OpConstruct, ir.GroupCall, ir.CFallthrough, shapeU30},
	0x46: {ir.OpCallProperty, ir.GroupProperty, ir.CFallthrough, shapeU30U30},
	0x47: {ir.OpReturnVoid, ir.GroupPlain, ir.CReturn, shapeNone},
	0x48: {ir.OpReturnValue, ir.GroupPlain, ir.CReturn, shapeNone},
	0x4a: {ir.OpConstructProp, ir.GroupProperty, ir.CFallthrough, shapeU30U30},
	0x4f: {ir.OpCallPropVoid, ir.GroupProperty, ir.CFallthrough, shapeU30U30},

	0x55: {ir.OpNewObject, ir.GroupImmediate, ir.CFallthrough, shapeU30},
	0x56: {ir.OpNewArray, ir.GroupImmediate, ir.CFallthrough, shapeU30},
	0x57: {ir.OpNewActivation, ir.GroupPlain, ir.CFallthrough, shapeNone},
	0x58: {ir.OpNewClass, ir.GroupNewClass, ir.CFallthrough, shapeU30},
	0x40: {ir.OpNewFunction, ir.GroupImmediate, ir.CFallthrough, shapeU30},

	0x5d: {ir.OpFindPropStrict, ir.GroupProperty, ir.CFallthrough, shapeU30},
	0x5e: {ir.OpFindProperty, ir.GroupProperty, ir.CFallthrough, shapeU30},
	0x60: {ir.OpGetLex, ir.GroupProperty, ir.CFallthrough, shapeU30},

	0x61: {ir.OpSetProperty, ir.GroupProperty, ir.CFallthrough, shapeU30},
	0x62: {ir.OpGetLocal, ir.GroupLocal, ir.CFallthrough, shapeU30},
	0x63: {ir.OpSetLocal, ir.GroupLocal, ir.CFallthrough, shapeU30},
	0x64: {ir.OpGetGlobalScope, ir.GroupPlain, ir.CFallthrough, shapeNone},
	0x65: {ir.OpGetScopeObject, ir.GroupLocal, ir.CFallthrough, shapeU8},
	0x66: {ir.OpGetProperty, ir.GroupProperty, ir.CFallthrough, shapeU30},
	0x67: {ir.OpGetOuterScope, ir.GroupLocal, ir.CFallthrough, shapeU30},
	0x68: {ir.OpInitProperty, ir.GroupProperty, ir.CFallthrough, shapeU30},

	0x6c: {ir.OpGetSlot, ir.GroupImmediate, ir.CFallthrough, shapeU30},
	0x6d: {ir.OpSetSlot, ir.GroupImmediate, ir.CFallthrough, shapeU30},

	0x70: {ir.OpConvertS, ir.GroupPlain, ir.CFallthrough, shapeNone},
	0x73: {ir.OpConvertI, ir.GroupPlain, ir.CFallthrough, shapeNone},
	0x74: {ir.OpConvertU, ir.GroupPlain, ir.CFallthrough, shapeNone},
	0x75: {ir.OpConvertD, ir.GroupPlain, ir.CFallthrough, shapeNone},
	0x76: {ir.OpConvertB, ir.GroupPlain, ir.CFallthrough, shapeNone},
	0x77: {ir.OpConvertO, ir.GroupPlain, ir.CFallthrough, shapeNone},
	0x78: {ir.OpCheckFilter, ir.GroupPlain, ir.CFallthrough, shapeNone},

	0x80: {ir.OpCoerce, ir.GroupImmediate, ir.CFallthrough, shapeU30},
	0x82: {ir.OpCoerceA, ir.GroupPlain, ir.CFallthrough, shapeNone},
	0x85: {ir.OpCoerceS, ir.GroupPlain, ir.CFallthrough, shapeNone},

	0x90: {ir.OpNegate, ir.GroupPlain, ir.CFallthrough, shapeNone},
	0x91: {ir.OpIncrement, ir.GroupPlain, ir.CFallthrough, shapeNone},
	0x93: {ir.OpDecrement, ir.GroupPlain, ir.CFallthrough, shapeNone},

	0xa0: {ir.OpAdd, ir.GroupPlain, ir.CFallthrough, shapeNone},
	0xa1: {ir.OpSubtract, ir.GroupPlain, ir.CFallthrough, shapeNone},
	0xa2: {ir.OpMultiply, ir.GroupPlain, ir.CFallthrough, shapeNone},
	0xa3: {ir.OpDivide, ir.GroupPlain, ir.CFallthrough, shapeNone},
	0xa4: {ir.OpModulo, ir.GroupPlain, ir.CFallthrough, shapeNone},

	0xab: {ir.OpEquals, ir.GroupPlain, ir.CFallthrough, shapeNone},
	0xac: {ir.OpStrictEquals, ir.GroupPlain, ir.CFallthrough, shapeNone},
	0xad: {ir.OpLessThan, ir.GroupPlain, ir.CFallthrough, shapeNone},
	0xae: {ir.OpLessEquals, ir.GroupPlain, ir.CFallthrough, shapeNone},
	0xaf: {ir.OpGreaterThan, ir.GroupPlain, ir.CFallthrough, shapeNone},
	0xb0: {ir.OpGreaterEquals, ir.GroupPlain, ir.CFallthrough, shapeNone},

	0xc0: {ir.OpIncrement, ir.GroupPlain, ir.CFallthrough, shapeNone},
	0xc1: {ir.OpDecrement, ir.GroupPlain, ir.CFallthrough, shapeNone},
	0xc2: {ir.OpNegate, ir.GroupPlain, ir.CFallthrough, shapeNone},
	0xc3: {ir.OpAdd, ir.GroupPlain, ir.CFallthrough, shapeNone},
	0xc4: {ir.OpSubtract, ir.GroupPlain, ir.CFallthrough, shapeNone},
	0xc5: {ir.OpMultiply, ir.GroupPlain, ir.CFallthrough, shapeNone},

	0x06: {ir.OpDXNS, ir.GroupImmediate, ir.CFallthrough, shapeU30},
	0x07: {ir.OpDXNSLate, ir.GroupPlain, ir.CFallthrough, shapeNone},

	0x02: {ir.OpNop, ir.GroupPlain, ir.CFallthrough, shapeNone},
}

// getlocal0..3/setlocal0..3 and getlocal/setlocal share ir.OpGetLocal/
// ir.OpSetLocal; the 0xd0-0xd7 short forms are folded in during decode
// rather than occupying separate ir.Opcode values, since nothing
// downstream distinguishes them once the local index is known.
const (
	byteGetLocal0 = 0xd0
	byteGetLocal3 = 0xd3
	byteSetLocal0 = 0xd4
	byteSetLocal3 = 0xd7
)

// popCount is the static operand-stack pop count for opcodes whose pop
// count does not depend on a runtime-supplied multiname component (spec.md
// §4.3.1: "the instruction's pop count is the static count plus the number
// of runtime namespace/name arguments"). GroupProperty/GroupCall
// instructions are resolved dynamically by the data-flow assembler instead
// of being listed here.
var popCount = map[ir.Opcode]int{
	ir.OpPop: 1, ir.OpSetLocal: 1, ir.OpPushWith: 1, ir.OpThrow: 1,
	ir.OpReturnValue: 1, ir.OpCoerce: 1, ir.OpCoerceA: 1, ir.OpCoerceS: 1,
	ir.OpConvertI: 1, ir.OpConvertU: 1, ir.OpConvertD: 1, ir.OpConvertS: 1,
	ir.OpConvertB: 1, ir.OpConvertO: 1,
	ir.OpNegate: 1, ir.OpIncrement: 1, ir.OpDecrement: 1,
	ir.OpIfTrue: 1, ir.OpIfFalse: 1, ir.OpGetSlot: 1, ir.OpSetSlot: 2,
	ir.OpNewClass: 1, ir.OpDXNSLate: 1,
	ir.OpAdd: 2, ir.OpSubtract: 2, ir.OpMultiply: 2, ir.OpDivide: 2, ir.OpModulo: 2,
	ir.OpEquals: 2, ir.OpStrictEquals: 2, ir.OpLessThan: 2, ir.OpLessEquals: 2,
	ir.OpGreaterThan: 2, ir.OpGreaterEquals: 2,
	ir.OpIfEq: 2, ir.OpIfNe: 2, ir.OpIfLt: 2, ir.OpIfLe: 2, ir.OpIfGt: 2, ir.OpIfGe: 2,
	ir.OpIfStrictEq: 2, ir.OpIfStrictNe: 2, ir.OpSwap: 2,
	ir.OpLookupSwitch: 1,
	ir.OpPopScope:     0,
	ir.OpPushScope:    1,
}

// pushCount reports 1 if the opcode pushes a value onto the operand stack
// when it does not also depend on a resolved property kind; GroupProperty/
// GroupCall opcodes are again handled dynamically downstream.
var pushCount = map[ir.Opcode]int{
	ir.OpPushByte: 1, ir.OpPushShort: 1, ir.OpPushInt: 1, ir.OpPushUint: 1,
	ir.OpPushDouble: 1, ir.OpPushString: 1, ir.OpPushNamespace: 1,
	ir.OpPushTrue: 1, ir.OpPushFalse: 1, ir.OpPushNull: 1, ir.OpPushUndefined: 1, ir.OpPushNaN: 1,
	ir.OpDup: 1, ir.OpGetLocal: 1, ir.OpGetGlobalScope: 1, ir.OpGetScopeObject: 1,
	ir.OpGetOuterScope: 1,
	ir.OpConvertI: 1, ir.OpConvertU: 1, ir.OpConvertD: 1, ir.OpConvertS: 1,
	ir.OpConvertB: 1, ir.OpConvertO: 1, ir.OpCoerce: 1, ir.OpCoerceA: 1, ir.OpCoerceS: 1,
	ir.OpAdd: 1, ir.OpSubtract: 1, ir.OpMultiply: 1, ir.OpDivide: 1, ir.OpModulo: 1,
	ir.OpNegate: 1, ir.OpIncrement: 1, ir.OpDecrement: 1,
	ir.OpEquals: 1, ir.OpStrictEquals: 1, ir.OpLessThan: 1, ir.OpLessEquals: 1,
	ir.OpGreaterThan: 1, ir.OpGreaterEquals: 1,
	ir.OpGetSlot: 1, ir.OpNewObject: 1, ir.OpNewArray: 1, ir.OpNewActivation: 1,
	ir.OpNewClass: 1, ir.OpNewFunction: 1, ir.OpConstruct: 1, ir.OpCall: 1,
	ir.OpHasNext2: 1,
}
