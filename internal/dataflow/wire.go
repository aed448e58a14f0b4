package dataflow

import (
	"github.com/crossbridge-vm/avm2ssa/internal/arena"
	"github.com/crossbridge-vm/avm2ssa/internal/decode"
	"github.com/crossbridge-vm/avm2ssa/internal/diag"
	"github.com/crossbridge-vm/avm2ssa/internal/ir"
)

// Assemble runs spec.md §4.3 end to end over a CFG already built by
// internal/cfgbuild: shape discovery, phi placement, then the wiring pass
// that turns the instruction stream into SSA DataNodes with every def/use
// edge recorded. Teacher analogue: cmd/internal/gc/ssa.go's two-pass
// buildssa, generalized from named locals to stack/scope/local slots. a may
// be nil (tests that don't care about scratch-buffer reuse); internal
// /pipeline.Compile always supplies the method's Arena.
func Assemble(f *ir.Func, a *arena.Arena) error {
	s, err := discover(f)
	if err != nil {
		return err
	}
	placement := placePhis(f, a, s)
	return wire(f, a, s, placement)
}

// wireCtx bundles the state the wiring pass threads through every block so
// the per-block and per-instruction helpers don't each take half a dozen
// parameters.
type wireCtx struct {
	f         *ir.Func
	a         *arena.Arena
	s         *shape
	placement *phiPlacement
	rpoPos    map[ir.BlockID]int
	locals0   []ir.NodeID
}

func wire(f *ir.Func, a *arena.Arena, s *shape, placement *phiPlacement) error {
	c := &wireCtx{f: f, a: a, s: s, placement: placement, rpoPos: make(map[ir.BlockID]int, f.NumBlocks())}
	for i, bid := range f.RPO {
		c.rpoPos[bid] = i
	}

	c.locals0 = make([]ir.NodeID, f.Limits.LocalCount)
	for i := range c.locals0 {
		id := f.NewNode(ir.Slot{Kind: ir.SlotLocal, Index: int32(i)}, ir.NoInstr, f.Entry)
		n := f.Node(id)
		n.Flags |= ir.FlagArgument
		switch {
		case i == 0:
			n.DataType = ir.TThis
			n.Flags |= ir.FlagNotNull
		case f.Limits.NeedsRest && i == len(c.locals0)-1:
			n.DataType = ir.TRest
			n.Flags |= ir.FlagNotNull
		default:
			// Parameter declarations are an ABC-accessor concern the
			// pipeline doesn't consume; untyped parameters arrive as any.
			n.DataType = ir.TAny
		}
		c.locals0[i] = id
	}

	for _, bid := range f.RPO {
		if err := c.wireBlock(bid); err != nil {
			return err
		}
	}
	c.linkPhiSources()
	c.recordCatchStacks()
	return nil
}

// recordCatchStacks fills each handler's CatchStack with the node holding
// the caught exception at its catch-target block, part of the produced IR
// surface (spec.md §6: "ExceptionHandler[] with catch-stack node ids").
func (c *wireCtx) recordCatchStacks() {
	for i := range c.f.EH {
		h := c.f.Handler(ir.HandlerID(i))
		for _, target := range h.CatchTargets {
			entry := c.f.Block(target).Entry.Stack
			if len(entry) > 0 {
				h.CatchStack = entry[0]
			}
		}
	}
}

// wireBlock assigns the entry state for one block (from its phis, its sole
// predecessor, or the synthetic argument values at Entry), then replays its
// instructions to fill in Popped/Pushed and every DataNode's use list.
func (c *wireCtx) wireBlock(bid ir.BlockID) error {
	f := c.f
	b := f.Block(bid)

	stack, scope, locals := c.buildEntry(bid)
	b.Entry = ir.EntryState{
		Stack:  append([]ir.NodeID(nil), stack...),
		Scope:  append([]ir.NodeID(nil), scope...),
		Locals: append([]ir.NodeID(nil), locals...),
	}

	first, end := b.InstrRange()
	for id := first; id < end; id++ {
		in := f.Instr(id)
		if in.Opcode == ir.OpUnknown {
			return decode.IllegalOpcode(f.Name, in.Offset, in.RawOpcode)
		}
		var err error
		stack, scope, err = c.wireInstr(in, bid, stack, scope, locals)
		if err != nil {
			return err
		}
	}

	b.ExitStack = append([]ir.NodeID(nil), stack...)
	b.ExitScope = append([]ir.NodeID(nil), scope...)
	b.ExitLocals = append([]ir.NodeID(nil), locals...)

	// stack/scope/locals are scratch working copies only — Entry/Exit above
	// already hold the durable snapshots — so once this block is done with
	// them they go back to the arena for the next block to reuse (spec.md
	// §3 Lifecycles: scratch buffers are pool-allocated, not per-block heap
	// allocations).
	if c.a != nil {
		c.a.NodeIDs.Put(stack)
		c.a.NodeIDs.Put(scope)
		c.a.NodeIDs.Put(locals)
	}
	return nil
}

func (c *wireCtx) newScratch(n int) []ir.NodeID {
	if c.a != nil {
		return c.a.NodeIDs.Get(n)
	}
	return make([]ir.NodeID, n)
}

func (c *wireCtx) buildEntry(bid ir.BlockID) (stack, scope, locals []ir.NodeID) {
	f := c.f
	if bid == f.Entry {
		locals = c.newScratch(len(c.locals0))
		copy(locals, c.locals0)
		return nil, nil, locals
	}
	b := f.Block(bid)
	isCatch := b.Flags&ir.BlockIsCatchEntry != 0

	stack = c.newScratch(int(c.s.stackEntry[bid]))
	for i := range stack {
		stack[i] = c.mergeSlot(ir.Slot{Kind: ir.SlotStack, Index: int32(i)}, b)
	}
	if isCatch && len(stack) > 0 {
		// The caught value never merges across predecessors; every handler
		// entry gets a fresh node (spec.md §4.3.1 "Catch entries"). Its
		// static type is any: the handler's declared error type is a runtime
		// filter, not a compile-time bound, for the over-approximated edges.
		caught := f.NewNode(ir.Slot{Kind: ir.SlotStack, Index: 0}, ir.NoInstr, bid)
		f.Node(caught).DataType = ir.TAny
		f.Node(caught).Flags |= ir.FlagNotNull
		stack[0] = caught
	}

	scope = c.newScratch(int(c.s.scopeEntry[bid]))
	for i := range scope {
		scope[i] = c.mergeSlot(ir.Slot{Kind: ir.SlotScope, Index: int32(i)}, b)
	}

	locals = c.newScratch(int(f.Limits.LocalCount))
	for i := range locals {
		locals[i] = c.mergeSlot(ir.Slot{Kind: ir.SlotLocal, Index: int32(i)}, b)
	}
	return stack, scope, locals
}

// mergeSlot resolves one slot's value on entry to b: the phi placed there if
// any, otherwise the value carried over from whichever predecessor the
// forward walk has already settled (the earliest in RPO order, which for a
// reducible CFG is always a predecessor reached other than by a back edge).
func (c *wireCtx) mergeSlot(slot ir.Slot, b *ir.BasicBlock) ir.NodeID {
	if id, ok := c.placement.at(slot, b.ID); ok {
		return id
	}
	settled := ir.NoBlock
	for _, p := range b.Preds {
		if settled == ir.NoBlock || c.rpoPos[p] < c.rpoPos[settled] {
			settled = p
		}
	}
	if settled == ir.NoBlock || c.rpoPos[settled] >= c.rpoPos[b.ID] {
		return ir.NoNode // unreachable block: nothing ever settles this slot
	}
	return exitValue(c.f, settled, slot)
}

func exitValue(f *ir.Func, bid ir.BlockID, slot ir.Slot) ir.NodeID {
	b := f.Block(bid)
	switch slot.Kind {
	case ir.SlotStack:
		if int(slot.Index) < len(b.ExitStack) {
			return b.ExitStack[slot.Index]
		}
	case ir.SlotScope:
		if int(slot.Index) < len(b.ExitScope) {
			return b.ExitScope[slot.Index]
		}
	case ir.SlotLocal:
		if int(slot.Index) < len(b.ExitLocals) {
			return b.ExitLocals[slot.Index]
		}
	}
	return ir.NoNode
}

// wireInstr replays one instruction's stack/scope effect, recording its
// Popped/Pushed node ids and linking every consumed node's use list. Locals
// are mutated in place since they aren't part of the returned stack/scope.
func (c *wireCtx) wireInstr(in *ir.Instruction, bid ir.BlockID, stack, scope []ir.NodeID, locals []ir.NodeID) ([]ir.NodeID, []ir.NodeID, error) {
	f := c.f

	switch in.Opcode {
	case ir.OpSwap:
		if len(stack) < 2 {
			return nil, nil, diag.Verify(diag.KindStackUnderflow, f.Name, in.Offset, map[string]any{"op": "swap"})
		}
		n := len(stack)
		// swap consumes and produces nothing; the rotated pair is recorded
		// on the payload so the code generator can emit the exchange
		// (spec.md §4.3.1, §6 "dup/swap node pairs"). No use edges: the
		// values' consumers are whoever eventually pops them.
		in.Payload.SwapA, in.Payload.SwapB = 0, 1
		in.SetPopped([]ir.NodeID{stack[n-1], stack[n-2]})
		stack[n-1], stack[n-2] = stack[n-2], stack[n-1]
		return stack, scope, nil

	case ir.OpDup:
		if len(stack) < 1 {
			return nil, nil, diag.Verify(diag.KindStackUnderflow, f.Name, in.Offset, map[string]any{"op": "dup"})
		}
		top := stack[len(stack)-1]
		in.Pushed = top
		return append(stack, top), scope, nil

	case ir.OpCheckFilter:
		if len(stack) < 1 {
			return nil, nil, diag.Verify(diag.KindStackUnderflow, f.Name, in.Offset, map[string]any{"op": "checkfilter"})
		}
		// checkfilter validates the top of stack in place: record which
		// node it checks without popping or pushing (spec.md §4.3.1).
		top := stack[len(stack)-1]
		in.SetPopped([]ir.NodeID{top})
		if top != ir.NoNode {
			f.Node(top).AddUse(in.ID)
		}
		return stack, scope, nil

	case ir.OpHasNext2:
		obj := f.NewNode(ir.Slot{Kind: ir.SlotLocal, Index: in.Payload.Local0}, in.ID, bid)
		idx := f.NewNode(ir.Slot{Kind: ir.SlotLocal, Index: in.Payload.Local1}, in.ID, bid)
		// The iteration object narrows to any and the index register stays
		// an int counter; typed here since both defs are this instruction's
		// side effects on locals, which the binder's push-centric dispatch
		// never revisits.
		f.Node(obj).DataType = ir.TAny
		f.Node(idx).DataType = ir.TInt
		locals[in.Payload.Local0] = obj
		locals[in.Payload.Local1] = idx
		cont := f.NewNode(ir.Slot{Kind: ir.SlotStack, Index: int32(len(stack))}, in.ID, bid)
		in.Pushed = cont
		return append(stack, cont), scope, nil

	case ir.OpGetLocal:
		// getlocal is a pure copy: the pushed value IS the local's current
		// node, and its use edges come from whoever eventually consumes the
		// copy, so an identity body stays a single-node graph (spec.md §8
		// "Round-trip").
		src := locals[in.Payload.Local0]
		in.Pushed = src
		return append(stack, src), scope, nil

	case ir.OpSetLocal:
		if len(stack) < 1 {
			return nil, nil, diag.Verify(diag.KindStackUnderflow, f.Name, in.Offset, map[string]any{"op": "setlocal"})
		}
		val := stack[len(stack)-1]
		in.SetPopped([]ir.NodeID{val})
		if val != ir.NoNode {
			f.Node(val).AddUse(in.ID)
		}
		locals[in.Payload.Local0] = val
		return stack[:len(stack)-1], scope, nil

	case ir.OpKill:
		undef := f.NewNode(ir.Slot{Kind: ir.SlotLocal, Index: in.Payload.Local0}, in.ID, bid)
		f.Node(undef).DataType = ir.TUndefined
		locals[in.Payload.Local0] = undef
		return stack, scope, nil
	}

	pop, push := decode.PopPush(in)
	if len(stack) < pop {
		return nil, nil, diag.Verify(diag.KindStackUnderflow, f.Name, in.Offset,
			map[string]any{"have": len(stack), "need": pop})
	}
	popped := make([]ir.NodeID, pop)
	for i := 0; i < pop; i++ {
		n := stack[len(stack)-1-i]
		popped[i] = n
		if n != ir.NoNode {
			f.Node(n).AddUse(in.ID)
		}
	}
	in.SetPopped(popped)
	stack = stack[:len(stack)-pop]

	switch in.Opcode {
	case ir.OpPushScope, ir.OpPushWith:
		scope = append(scope, popped[0])
		return stack, scope, nil
	case ir.OpPopScope:
		if len(scope) < 1 {
			return nil, nil, diag.Verify(diag.KindScopeStackUnderflow, f.Name, in.Offset, nil)
		}
		return stack, scope[:len(scope)-1], nil
	}

	if push > 0 {
		id := f.NewNode(ir.Slot{Kind: ir.SlotStack, Index: int32(len(stack))}, in.ID, bid)
		in.Pushed = id
		stack = append(stack, id)
	}
	return stack, scope, nil
}

// linkPhiSources fills in every placed phi's PhiDefs, one entry per
// predecessor edge, once every block's exit state has settled. This has to
// wait until the whole function has been walked: a phi at a loop header
// needs the latch block's exit value, and the latch is only visited after
// the header in RPO order (spec.md §4.3.3).
func (c *wireCtx) linkPhiSources() {
	f := c.f
	for block, nodes := range c.placement.byBlock {
		b := f.Block(block)
		for _, nid := range nodes {
			n := f.Node(nid)
			for i, pred := range b.Preds {
				n.PhiDefs[i] = exitValue(f, pred, n.Slot)
			}
		}
	}
}
