package ir

// SlotKind distinguishes the three operand-stack-like storage spaces the
// data-flow assembler tracks per spec.md §3/§4.3: the operand stack, the
// scope stack, and local registers.
type SlotKind uint8

const (
	SlotStack SlotKind = iota
	SlotScope
	SlotLocal
)

func (k SlotKind) String() string {
	switch k {
	case SlotStack:
		return "stack"
	case SlotScope:
		return "scope"
	case SlotLocal:
		return "local"
	default:
		return "slot?"
	}
}

// Slot identifies a single stack/scope-stack/local storage location at a
// point in the abstract interpretation carried out by the data-flow and
// binder passes.
type Slot struct {
	Kind  SlotKind
	Index int32
}

// DataType is the lattice atom assigned to a DataNode, per spec.md §4.4.1.
type DataType uint8

const (
	TUnknown DataType = iota
	TAny
	TUndefined
	TNull
	TBool
	TInt
	TUint
	TNumber
	TString
	TNamespace
	TQName
	TObject
	TClass
	TFunction
	TThis
	TGlobal
	TRest
)

var dataTypeNames = [...]string{
	TUnknown: "unknown", TAny: "any", TUndefined: "undefined", TNull: "null",
	TBool: "bool", TInt: "int", TUint: "uint", TNumber: "number",
	TString: "string", TNamespace: "namespace", TQName: "qname",
	TObject: "object", TClass: "class", TFunction: "function",
	TThis: "this", TGlobal: "global", TRest: "rest",
}

func (t DataType) String() string {
	if int(t) < len(dataTypeNames) && dataTypeNames[t] != "" {
		return dataTypeNames[t]
	}
	return "dataType?"
}

// IsNumeric reports whether t is one of int/uint/number — the set the
// arithmetic and join rules in spec.md §4.4.1/§4.4.2 special-case.
func (t DataType) IsNumeric() bool {
	return t == TInt || t == TUint || t == TNumber
}

// NodeFlag is a bit in DataNode.Flags. Kept as named constants, not an
// enum, because several are combined freely (spec.md §3).
type NodeFlag uint32

const (
	FlagConstant NodeFlag = 1 << iota
	FlagNotNull
	FlagWithScope
	FlagArgument
	FlagPhiSource
	FlagLateMultinameBinding
	FlagNoPush
	FlagPushOptionalParam
	FlagHasSingleDef
	FlagHasSingleUse
	FlagIsConcatTreeRoot
	FlagIsConcatTreeInternal
)

// Has reports whether all bits in mask are set.
func (f NodeFlag) Has(mask NodeFlag) bool { return f&mask == mask }

// Const is the tagged constant payload a DataNode may carry when
// FlagConstant is set.
type Const struct {
	Kind ConstKind
	I    int32  // int/uint
	F    float64
	S    string // string/namespace/qname local-name component
	// Class/Method are opaque registry handles; see internal/registry.
	Class  interface{}
	Method interface{}
	Bool   bool
}

type ConstKind uint8

const (
	ConstNone ConstKind = iota
	ConstInt
	ConstUint
	ConstDouble
	ConstString
	ConstNamespace
	ConstQName
	ConstBool
	ConstClass
	ConstMethod
)

// defUse is the compact def/use edge list described in spec.md §3 and §9:
// the common case (one def, one or two uses) lives inline; anything larger
// spills into a plain slice owned by the node.
type defUse struct {
	inline   [2]InstrID // consumer instruction ids; unused slots hold NoInstr
	overflow []InstrID  // non-nil only once the inline slots are exhausted
}

func (d *defUse) add(consumer InstrID) {
	if d.overflow != nil {
		d.overflow = append(d.overflow, consumer)
		return
	}
	for i := range d.inline {
		if d.inline[i] == NoInstr {
			d.inline[i] = consumer
			return
		}
	}
	d.overflow = append(d.overflow, d.inline[0], d.inline[1], consumer)
	d.inline[0], d.inline[1] = NoInstr, NoInstr
}

// Uses returns every consumer instruction of this edge list, inline slots
// first, in no particular further order.
func (d *defUse) Uses() []InstrID {
	if d.overflow != nil {
		return d.overflow
	}
	out := make([]InstrID, 0, 2)
	for _, id := range d.inline {
		if id != NoInstr {
			out = append(out, id)
		}
	}
	return out
}

func newDefUse() defUse {
	return defUse{inline: [2]InstrID{NoInstr, NoInstr}}
}

// DataNode is a single SSA value: a stack, scope-stack, or local slot
// produced at one program point (spec.md §3).
type DataNode struct {
	ID   NodeID
	Slot Slot

	IsPhi bool
	// Def is the instruction that produced this node; for phi nodes Def is
	// NoInstr and PhiDefs holds one source node per predecessor edge
	// instead.
	Def     InstrID
	PhiDefs []NodeID // parallel to the owning Block's Preds, same order

	DataType DataType
	Const    Const // only meaningful when Flags.Has(FlagConstant)
	Flags    NodeFlag

	// Class/Method refine DataType TObject/TClass/TFunction to a specific
	// registry handle (spec.md §4.4.1's object(Class*)/class(Class*)/
	// function(Method*) atoms). Opaque interface{} here since internal/ir
	// does not import internal/registry (spec.md §1 Out of scope); always
	// a *registry.Class or registry.MethodTrait respectively, or nil for
	// an unrefined object/any.
	Class  interface{}
	Method interface{}

	uses defUse

	// OnPushCoerceType is the deferred coercion annotation from spec.md
	// §4.4.5: a non-zero value means the producer should emit the
	// converted value directly and the intervening conversion instruction
	// is elided.
	OnPushCoerceType DataType

	// PhiCoerceType is set when this node feeds a phi (FlagPhiSource) whose
	// joined type differs from this node's own type (spec.md §4.4.6): the
	// predecessor edge carrying this value must coerce it to PhiCoerceType.
	PhiCoerceType DataType

	// Block is the owning block, recorded so the binder can walk from a
	// node back to its block without a separate index.
	Block BlockID
}

// AddUse records that consumer reads this node. Idempotent would require a
// set; callers are expected not to double-link the same edge (each pop
// site links exactly once, per spec.md invariant 1).
func (n *DataNode) AddUse(consumer InstrID) { n.uses.add(consumer) }

// Uses returns the consumer instructions of this node.
func (n *DataNode) Uses() []InstrID { return n.uses.Uses() }

// NumUses reports the use count without allocating.
func (n *DataNode) NumUses() int {
	if n.uses.overflow != nil {
		return len(n.uses.overflow)
	}
	c := 0
	for _, id := range n.uses.inline {
		if id != NoInstr {
			c++
		}
	}
	return c
}
