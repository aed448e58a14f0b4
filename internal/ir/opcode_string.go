package ir

import "fmt"

var opcodeNames = map[Opcode]string{
	OpUnknown: "unknown",

	OpPushByte: "pushbyte", OpPushShort: "pushshort", OpPushInt: "pushint",
	OpPushUint: "pushuint", OpPushDouble: "pushdouble", OpPushString: "pushstring",
	OpPushNamespace: "pushnamespace", OpPushTrue: "pushtrue", OpPushFalse: "pushfalse",
	OpPushNull: "pushnull", OpPushUndefined: "pushundefined", OpPushNaN: "pushnan",

	OpDup: "dup", OpSwap: "swap", OpPop: "pop", OpCheckFilter: "checkfilter",

	OpGetLocal: "getlocal", OpSetLocal: "setlocal", OpKill: "kill",
	OpPushScope: "pushscope", OpPushWith: "pushwith", OpPopScope: "popscope",
	OpGetScopeObject: "getscopeobject", OpGetGlobalScope: "getglobalscope",
	OpGetOuterScope: "getouterscope", OpHasNext2: "hasnext2",

	OpConvertI: "convert_i", OpConvertU: "convert_u", OpConvertD: "convert_d",
	OpConvertS: "convert_s", OpConvertB: "convert_b", OpConvertO: "convert_o",
	OpCoerce: "coerce", OpCoerceA: "coerce_a", OpCoerceS: "coerce_s",

	OpAdd: "add", OpSubtract: "subtract", OpMultiply: "multiply",
	OpDivide: "divide", OpModulo: "modulo", OpNegate: "negate",
	OpIncrement: "increment", OpDecrement: "decrement",
	OpEquals: "equals", OpStrictEquals: "strictequals",
	OpLessThan: "lessthan", OpLessEquals: "lessequals",
	OpGreaterThan: "greaterthan", OpGreaterEquals: "greaterequals",

	OpGetProperty: "getproperty", OpSetProperty: "setproperty",
	OpInitProperty: "initproperty", OpCallProperty: "callproperty",
	OpCallPropVoid: "callpropvoid", OpConstructProp: "constructprop",
	OpFindProperty: "findproperty", OpFindPropStrict: "findpropstrict",
	OpGetLex: "getlex", OpGetSlot: "getslot", OpSetSlot: "setslot",
	OpConstruct: "construct", OpCall: "call",
	OpGetSuper: "getsuper", OpSetSuper: "setsuper",

	OpJump: "jump", OpIfTrue: "iftrue", OpIfFalse: "iffalse",
	OpIfEq: "ifeq", OpIfNe: "ifne", OpIfLt: "iflt", OpIfLe: "ifle",
	OpIfGt: "ifgt", OpIfGe: "ifge", OpIfStrictEq: "ifstricteq", OpIfStrictNe: "ifstrictne",
	OpLookupSwitch: "lookupswitch", OpReturnValue: "returnvalue",
	OpReturnVoid: "returnvoid", OpThrow: "throw",

	OpDXNS: "dxns", OpDXNSLate: "dxnslate",

	OpNewClass: "newclass", OpNewFunction: "newfunction",
	OpNewActivation: "newactivation", OpNewArray: "newarray", OpNewObject: "newobject",

	OpLabel: "label", OpNop: "nop",
}

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("op(%d)", uint16(op))
}
