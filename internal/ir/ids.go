// Package ir holds the per-method compilation arena's data model: the
// instruction stream, basic blocks, exception handlers and the SSA value
// graph that the decoder, CFG assembler, data-flow assembler and semantic
// binder build and mutate in place. Nothing in this package owns a pointer
// to another node; everything is addressed by integer id so the graph can
// hold cycles (through phis in loops) without a GC-visible reference cycle
// and so it can be released en masse with the arena.
package ir

// NodeID addresses a DataNode within a Func's arena. Ids start at 0;
// NoNode is used for "no value here".
type NodeID int32

// NoNode marks an absent data node, e.g. the Pushed of an instruction that
// pushes nothing.
const NoNode NodeID = -1

// BlockID addresses a BasicBlock within a Func.
type BlockID int32

// NoBlock marks an absent block, e.g. a handler with no reachable catch
// target left after unreachable-code pruning.
const NoBlock BlockID = -1

// InstrID addresses an Instruction within a Func's instruction stream.
type InstrID int32

// NoInstr marks an absent instruction reference (phi nodes have no defining
// instruction of their own).
const NoInstr InstrID = -1

// HandlerID addresses an ExceptionHandler within a Func.
type HandlerID int32

// NoHandler marks a block outside any exception-handler region.
const NoHandler HandlerID = -1
