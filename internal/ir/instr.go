package ir

// InstrFlag is a bit in Instruction.Flags.
type InstrFlag uint16

const (
	InstrBlockStart InstrFlag = 1 << iota
	InstrBlockEnd
	InstrSinglePopHint // popped-node list is exactly one id, stored inline
)

// Payload is the opcode-specific operand union described in spec.md §3 and
// §9: "a variant whose discriminant is the opcode group, not the opcode
// itself". Only the fields named by Instruction.Group are meaningful; the
// rest are zero. Kept as one flat struct (rather than an interface) so
// Instructions stay arena-friendly value types with no heap indirection per
// instruction, matching the teacher's ssa.Value/ssa.Aux convention of a
// small fixed-shape struct per opcode family.
type Payload struct {
	// GroupImmediate / GroupNewClass
	PoolIndex int32

	// GroupLocal
	Local0, Local1 int32

	// GroupBranch: RawTargets holds absolute byte offsets as decoded (for
	// lookupswitch, the default first, then each case); the CFG assembler
	// resolves them into block edges on BasicBlock.Succs (spec.md §4.2).
	// Targets is not filled by any pass.
	RawTargets []int32
	Targets    []BlockID

	// GroupProperty / GroupCall
	MultinameID int32
	ArgCount    int32
	ResolvedID  int32 // index into Func.Props, or -1
	RuntimeNS   bool  // multiname carries a runtime namespace operand
	RuntimeName bool  // multiname carries a runtime local-name operand

	// GroupDupSwap: stack-relative operand positions (0 = top)
	SwapA, SwapB int32
}

// smallIntPool token used by Instruction.poppedToken when the popped-node
// list has more than one element; see the comment on Instruction.Popped.
const inlinePopSentinel = -1

// Instruction is one decoded and (after CF/DF assembly) stack-resolved
// bytecode operation, per spec.md §3.
type Instruction struct {
	ID     InstrID
	Opcode Opcode
	// RawOpcode preserves the undecoded byte when Opcode == OpUnknown, so
	// the CFG pass can report which byte value was illegal (spec.md
	// §4.1 Errors).
	RawOpcode byte
	Offset    int32 // byte offset in the source method body
	Block     BlockID
	Flags     InstrFlag
	Group     Group
	Ctrl      ControlKind

	Payload Payload

	// Popped holds the node ids this instruction consumes, in pop order:
	// the top of stack first. The compact single-id case
	// is common enough (most opcodes pop 0 or 1) to skip a slice
	// allocation for it.
	poppedOne NodeID
	popped    []NodeID // used when len > 1; poppedOne holds NoNode then

	// Pushed is the node this instruction defines, or NoNode if it pushes
	// nothing (e.g. setlocal, pop, a NO_PUSH-elided producer).
	Pushed NodeID
}

// SetPopped installs the popped-node list for this instruction.
func (in *Instruction) SetPopped(ids []NodeID) {
	in.Flags &^= InstrSinglePopHint
	switch len(ids) {
	case 0:
		in.poppedOne, in.popped = NoNode, nil
	case 1:
		in.poppedOne, in.popped = ids[0], nil
		in.Flags |= InstrSinglePopHint
	default:
		in.poppedOne, in.popped = NoNode, ids
	}
}

// Popped returns the node ids this instruction consumes.
func (in *Instruction) Popped() []NodeID {
	if in.popped != nil {
		return in.popped
	}
	if in.poppedOne == NoNode {
		return nil
	}
	return []NodeID{in.poppedOne}
}

// PopCount reports len(Popped()) without allocating a slice for the common
// single-pop case.
func (in *Instruction) PopCount() int {
	if in.popped != nil {
		return len(in.popped)
	}
	if in.poppedOne == NoNode {
		return 0
	}
	return 1
}
