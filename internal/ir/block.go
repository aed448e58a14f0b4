package ir

// BlockFlag is a bit in BasicBlock.Flags.
type BlockFlag uint8

const (
	BlockVisited BlockFlag = 1 << iota
	BlockTouched                  // queued for a binder revisit; cleared once processed
	BlockDefinesPhi
	BlockIsCatchEntry
)

// EntryState holds, for one block, the node id occupying each stack/scope
// /local slot on entry — a handle to an arena-owned int array per spec.md
// §3 ("BasicBlock ... entry-state tokens").
type EntryState struct {
	Stack  []NodeID
	Scope  []NodeID
	Locals []NodeID
}

// BasicBlock is a maximal straight-line run of instructions with single
// entry and (edge-wise) exit, per spec.md §3.
type BasicBlock struct {
	ID    BlockID
	First InstrID
	Count int32

	Preds []BlockID
	Succs []BlockID

	Entry EntryState

	// ExitStack/ExitScope/ExitLocals are the slot vectors live at the end
	// of this block's instruction range, after the second data-flow pass
	// (§4.3.3). Nil until that pass runs.
	ExitStack  []NodeID
	ExitScope  []NodeID
	ExitLocals []NodeID

	Idom      BlockID
	Postorder int32

	Flags BlockFlag

	Handler HandlerID // NoHandler if not inside a try region
}

// InstrRange reports the [first, first+count) instruction id range this
// block owns.
func (b *BasicBlock) InstrRange() (InstrID, InstrID) {
	return b.First, b.First + InstrID(b.Count)
}

// ExceptionHandler is one try/catch region, per spec.md §3.
type ExceptionHandler struct {
	ID HandlerID

	FromOffset, ToOffset int32 // covered byte range [from, to)
	CatchOffset          int32

	// ErrorType is an opaque registry.Class handle (nil means "catches
	// any"), left untyped here since the class registry is an external
	// collaborator (spec.md §1 Out of scope).
	ErrorType interface{}

	Parent HandlerID // NoHandler if top-level

	CatchTargets []BlockID // flattened list of reachable catch-target blocks
	CatchStack   NodeID    // the node holding the caught exception value
}
