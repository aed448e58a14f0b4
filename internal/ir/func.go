package ir

// Limits mirrors the declared ABC method-body limits the decoder is handed
// (spec.md §4.1 Input) and that the data-flow assembler checks against
// (spec.md §4.3.1 Overflow/underflow).
type Limits struct {
	MaxStack   int32
	MaxScope   int32
	LocalCount int32

	// NeedsRest mirrors the method's NEED_REST flag: the last local is the
	// implicit variadic argument array (spec.md glossary "Rest").
	NeedsRest bool
}

// Func is the per-method compilation arena: every Instruction, BasicBlock,
// DataNode, ExceptionHandler and ResolvedProperty created while compiling
// one method lives here and is freed with it (spec.md §3 Lifecycles).
// Nothing in this struct is safe for concurrent use by more than one
// worker; internal/pipeline.Scheduler hands each worker its own Func.
type Func struct {
	Name   string
	Limits Limits

	Instrs []Instruction
	Blocks []BasicBlock
	Nodes  []DataNode
	EH     []ExceptionHandler
	Props  []ResolvedProperty

	Entry BlockID

	// RPO is the reverse-postorder block id sequence computed by
	// the CFG assembler (spec.md §4.2); the binder's forward pass walks
	// blocks in this order.
	RPO []BlockID

	// ThrowReplacement is set by internal/pipeline when
	// EarlyThrowMethodBodyErrors is false and compilation failed: a
	// synthetic one-block body that unconditionally throws the recorded
	// error at first invocation (spec.md §7).
	ThrowReplacement error
}

// NewFunc allocates an empty per-method arena.
func NewFunc(name string, limits Limits) *Func {
	return &Func{Name: name, Limits: limits, Entry: NoBlock}
}

// NewInstr appends a new Instruction and returns its id.
func (f *Func) NewInstr(op Opcode, offset int32) InstrID {
	id := InstrID(len(f.Instrs))
	f.Instrs = append(f.Instrs, Instruction{
		ID: id, Opcode: op, Offset: offset, Block: NoBlock, Pushed: NoNode,
	})
	return id
}

// Instr returns a pointer into the arena's instruction slice. The pointer
// is invalidated by further NewInstr calls, same caveat as append.
func (f *Func) Instr(id InstrID) *Instruction { return &f.Instrs[id] }

// NewBlock appends a new, edge-less BasicBlock and returns its id.
func (f *Func) NewBlock() BlockID {
	id := BlockID(len(f.Blocks))
	f.Blocks = append(f.Blocks, BasicBlock{ID: id, Idom: NoBlock, Handler: NoHandler})
	return id
}

// Block returns a pointer into the arena's block slice.
func (f *Func) Block(id BlockID) *BasicBlock { return &f.Blocks[id] }

// NewNode appends a new DataNode and returns its id.
func (f *Func) NewNode(slot Slot, def InstrID, block BlockID) NodeID {
	id := NodeID(len(f.Nodes))
	f.Nodes = append(f.Nodes, DataNode{
		ID: id, Slot: slot, Def: def, Block: block, uses: newDefUse(),
	})
	return id
}

// NewPhi appends a new phi DataNode (Def == NoInstr, IsPhi == true) with
// room for numPreds sources, filled in by the data-flow assembler's wiring
// pass.
func (f *Func) NewPhi(slot Slot, block BlockID, numPreds int) NodeID {
	id := NodeID(len(f.Nodes))
	f.Nodes = append(f.Nodes, DataNode{
		ID: id, Slot: slot, Def: NoInstr, IsPhi: true, Block: block,
		PhiDefs: make([]NodeID, numPreds), uses: newDefUse(),
	})
	for i := range f.Nodes[id].PhiDefs {
		f.Nodes[id].PhiDefs[i] = NoNode
	}
	return id
}

// Node returns a pointer into the arena's node slice.
func (f *Func) Node(id NodeID) *DataNode { return &f.Nodes[id] }

// NewHandler appends a new ExceptionHandler and returns its id.
func (f *Func) NewHandler() HandlerID {
	id := HandlerID(len(f.EH))
	f.EH = append(f.EH, ExceptionHandler{ID: id, Parent: NoHandler, CatchStack: NoNode})
	return id
}

// Handler returns a pointer into the arena's handler slice.
func (f *Func) Handler(id HandlerID) *ExceptionHandler { return &f.EH[id] }

// NewResolvedProperty appends a fresh, unresolved ResolvedProperty record
// and returns its index (spec.md §4.4.4: "allocated on first visit and
// reused on subsequent visits").
func (f *Func) NewResolvedProperty() int32 {
	id := int32(len(f.Props))
	f.Props = append(f.Props, ResolvedProperty{})
	return id
}

// Prop returns a pointer into the arena's resolved-property slice.
func (f *Func) Prop(id int32) *ResolvedProperty {
	if id < 0 {
		return nil
	}
	return &f.Props[id]
}

// NumValues reports the number of DataNodes allocated so far, the size a
// caller should use for any array indexed by NodeID (teacher analogue:
// ssa.Func.NumValues in stackalloc.go).
func (f *Func) NumValues() int { return len(f.Nodes) }

// NumBlocks reports the number of BasicBlocks allocated so far.
func (f *Func) NumBlocks() int { return len(f.Blocks) }

// AddEdge links pred -> succ, appending to both adjacency lists. Teacher
// analogue: cmd/internal/gc/ssa.go's addEdge helper.
func (f *Func) AddEdge(pred, succ BlockID) {
	f.Blocks[pred].Succs = append(f.Blocks[pred].Succs, succ)
	f.Blocks[succ].Preds = append(f.Blocks[succ].Preds, pred)
}
