package dataflow

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crossbridge-vm/avm2ssa/internal/abcsrc"
	"github.com/crossbridge-vm/avm2ssa/internal/abcsrc/asmtest"
	"github.com/crossbridge-vm/avm2ssa/internal/abcsrc/fixture"
	"github.com/crossbridge-vm/avm2ssa/internal/arena"
	"github.com/crossbridge-vm/avm2ssa/internal/cfgbuild"
	"github.com/crossbridge-vm/avm2ssa/internal/decode"
	"github.com/crossbridge-vm/avm2ssa/internal/ir"
)

// buildLocalMerge assembles a diamond that writes local0 differently on
// each arm and reads it back after the join, forcing a phi at the merge
// block:
//
//	getlocal1; iftrue then
//	pushbyte 10; setlocal0; jump end
//	then: pushbyte 20; setlocal0
//	end: getlocal0; returnvalue
func buildLocalMerge(t *testing.T) *ir.Func {
	t.Helper()
	asm := asmtest.New()
	asm.B(0x62).U30(1) // getlocal1                         off 0..1
	asm.B(0x11).S24(8) // iftrue -> +8                       off 2..5
	asm.B(0x24).B(10)  // pushbyte 10                        off 6..7
	asm.B(0x63).U30(0) // setlocal0                          off 8..9
	asm.B(0x10).S24(4) // jump -> +4 (end)                   off 10..13
	asm.B(0x24).B(20)  // pushbyte 20 (then)                 off 14..15
	asm.B(0x63).U30(0) // setlocal0                          off 16..17
	asm.B(0x62).U30(0) // getlocal0 (join)                   off 18..19
	asm.B(0x48)        // returnvalue                        off 20

	f := ir.NewFunc("M", ir.Limits{MaxStack: 1, LocalCount: 2})
	body := abcsrc.MethodBody{Name: "M", Bytes: asm.Bytes(), MaxStack: 1, LocalCount: 2}
	require.NoError(t, decode.Decode(f, fixture.Source{P: fixture.NewPool()}, body))
	require.NoError(t, cfgbuild.Build(f, nil))
	return f
}

func TestAssemblePlacesPhiAtJoin(t *testing.T) {
	f := buildLocalMerge(t)
	require.NoError(t, Assemble(f, arena.New()))

	var joinBlock ir.BlockID = ir.NoBlock
	for _, bid := range f.RPO {
		if len(f.Block(bid).Preds) == 2 {
			joinBlock = bid
		}
	}
	require.NotEqual(t, ir.NoBlock, joinBlock)

	found := false
	for i := range f.Nodes {
		n := &f.Nodes[i]
		if n.IsPhi && n.Block == joinBlock && n.Slot.Kind == ir.SlotLocal && n.Slot.Index == 0 {
			found = true
			require.Len(t, n.PhiDefs, 2)
			for _, src := range n.PhiDefs {
				require.NotEqual(t, ir.NoNode, src)
			}
		}
	}
	require.True(t, found, "expected a phi for local0 at the join block")
}

func TestAssembleNilArenaIsSafe(t *testing.T) {
	f := buildLocalMerge(t)
	require.NoError(t, Assemble(f, nil))
}

func TestAssembleLinksDefUseEdges(t *testing.T) {
	f := buildLocalMerge(t)
	require.NoError(t, Assemble(f, arena.New()))

	// The final getlocal0+returnvalue pair must consume whatever node
	// ends up occupying local slot 0 at the join — either the phi or
	// (in a degenerate CFG) a single definition — and that node must
	// record the consuming instruction as a use.
	last := f.Instrs[len(f.Instrs)-1]
	require.Equal(t, ir.OpReturnValue, last.Opcode)
	require.Len(t, last.Popped(), 1)
	consumed := last.Popped()[0]
	require.NotEqual(t, ir.NoNode, consumed)

	n := f.Node(consumed)
	usedByReturn := false
	for _, u := range n.Uses() {
		if u == last.ID {
			usedByReturn = true
		}
	}
	require.True(t, usedByReturn)
}
