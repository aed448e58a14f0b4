package ir

// Opcode names the subset of AVM2 instructions the pipeline understands.
// It intentionally does not enumerate every ABC opcode byte (that table
// belongs to the decoder, internal/decode, which owns the ABC-byte ↔ Opcode
// mapping); it enumerates the opcodes the CFG, data-flow and binder passes
// need to treat specially.
type Opcode uint16

const (
	OpUnknown Opcode = iota

	// Literals.
	OpPushByte
	OpPushShort
	OpPushInt
	OpPushUint
	OpPushDouble
	OpPushString
	OpPushNamespace
	OpPushTrue
	OpPushFalse
	OpPushNull
	OpPushUndefined
	OpPushNaN

	// Stack shuffling.
	OpDup
	OpSwap
	OpPop
	OpCheckFilter

	// Locals / scope.
	OpGetLocal
	OpSetLocal
	OpKill
	OpPushScope
	OpPushWith
	OpPopScope
	OpGetScopeObject
	OpGetGlobalScope
	OpGetOuterScope
	OpHasNext2

	// Conversions.
	OpConvertI
	OpConvertU
	OpConvertD
	OpConvertS
	OpConvertB
	OpConvertO
	OpCoerce
	OpCoerceA
	OpCoerceS

	// Arithmetic / compare.
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpModulo
	OpNegate
	OpIncrement
	OpDecrement
	OpEquals
	OpStrictEquals
	OpLessThan
	OpLessEquals
	OpGreaterThan
	OpGreaterEquals

	// Properties.
	OpGetProperty
	OpSetProperty
	OpInitProperty
	OpCallProperty
	OpCallPropVoid
	OpConstructProp
	OpFindProperty
	OpFindPropStrict
	OpGetLex
	OpGetSlot
	OpSetSlot
	OpConstruct
	OpCall
	OpGetSuper
	OpSetSuper

	// Control flow.
	OpJump
	OpIfTrue
	OpIfFalse
	OpIfEq
	OpIfNe
	OpIfLt
	OpIfLe
	OpIfGt
	OpIfGe
	OpIfStrictEq
	OpIfStrictNe
	OpLookupSwitch
	OpReturnValue
	OpReturnVoid
	OpThrow

	OpDXNS
	OpDXNSLate

	OpNewClass
	OpNewFunction
	OpNewActivation
	OpNewArray
	OpNewObject

	OpLabel
	OpNop
)

// ControlKind classifies how an instruction's block can exit, per the edge
// rules in spec.md §4.2.
type ControlKind uint8

const (
	CFallthrough ControlKind = iota
	CBranch
	CConditional
	CSwitch
	CReturn
	CThrow
)

// Group discriminates which payload shape in Instruction.Payload is valid.
// Per the design note in spec.md §9 ("the group determines which fields are
// valid, not the opcode itself"), several opcodes share a group.
type Group uint8

const (
	GroupPlain     Group = iota // no operand payload
	GroupImmediate              // one immediate int/const-pool value
	GroupLocal                  // one or two local-slot indices
	GroupBranch                 // one or more branch targets (incl. switch)
	GroupDupSwap                // stack-position pair, no new node
	GroupProperty               // multiname id + argument count
	GroupCall                   // argument count (+ multiname id for *property variants)
	GroupNewClass               // class-info index
)
