package bind

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crossbridge-vm/avm2ssa/internal/abcsrc"
	"github.com/crossbridge-vm/avm2ssa/internal/abcsrc/asmtest"
	"github.com/crossbridge-vm/avm2ssa/internal/abcsrc/fixture"
	"github.com/crossbridge-vm/avm2ssa/internal/arena"
	"github.com/crossbridge-vm/avm2ssa/internal/cfgbuild"
	"github.com/crossbridge-vm/avm2ssa/internal/dataflow"
	"github.com/crossbridge-vm/avm2ssa/internal/decode"
	"github.com/crossbridge-vm/avm2ssa/internal/ir"
	"github.com/crossbridge-vm/avm2ssa/internal/registry"
)

// TestLoopPhiSpecializesToInt implements scenario S1 (spec.md §8):
//
//	L0: pushbyte 0; setlocal 1
//	L1: getlocal 1; pushbyte 10; iflt L3
//	L2: getlocal 1; pushbyte 1; add; setlocal 1; jump L1
//	L3: getlocal 1; returnvalue
//
// Expected: four basic blocks, a phi at L1 for local 1 with sources the
// entry constant 0 and the add result, the add specialized to integer under
// ModeAggressive, and the value returned from L3 typed int.
func TestLoopPhiSpecializesToInt(t *testing.T) {
	asm := asmtest.New()
	asm.B(0x24).B(0)   // pushbyte 0                         off 0-1
	asm.B(0x63).U30(1) // setlocal1                          off 2-3
	asm.B(0x62).U30(1) // getlocal1  (L1)                    off 4-5
	asm.B(0x24).B(10)  // pushbyte 10                        off 6-7
	asm.B(0x15).S24(11) // iflt -> L3 (off 23, rel from 12)  off 8-11
	asm.B(0x62).U30(1) // getlocal1  (L2)                    off 12-13
	asm.B(0x24).B(1)   // pushbyte 1                         off 14-15
	asm.B(0xa0)        // add                                off 16
	asm.B(0x63).U30(1) // setlocal1                          off 17-18
	asm.B(0x10).S24(-19) // jump -> L1 (off 4, rel from 23)  off 19-22
	asm.B(0x62).U30(1) // getlocal1  (L3)                    off 23-24
	asm.B(0x48)        // returnvalue                        off 25

	f := ir.NewFunc("loop", ir.Limits{MaxStack: 2, LocalCount: 2})
	body := abcsrc.MethodBody{Name: "loop", Bytes: asm.Bytes(), MaxStack: 2, LocalCount: 2}
	require.NoError(t, decode.Decode(f, fixture.Source{P: fixture.NewPool()}, body))
	require.NoError(t, cfgbuild.Build(f, nil))
	require.Len(t, f.Blocks, 4, "expected L0/L1/L2/L3")
	require.NoError(t, dataflow.Assemble(f, arena.New()))

	var loopHeader ir.BlockID = ir.NoBlock
	for _, bid := range f.RPO {
		if len(f.Block(bid).Preds) == 2 {
			loopHeader = bid
		}
	}
	require.NotEqual(t, ir.NoBlock, loopHeader, "L1 must join the entry edge and the back edge")

	var phi *ir.DataNode
	for i := range f.Nodes {
		n := &f.Nodes[i]
		if n.IsPhi && n.Block == loopHeader && n.Slot.Kind == ir.SlotLocal && n.Slot.Index == 1 {
			phi = n
		}
	}
	require.NotNil(t, phi, "expected a phi for local 1 at the loop header")
	require.Len(t, phi.PhiDefs, 2)

	reg := registry.NewStaticRegistry(registry.NewClass("Object", nil))
	require.NoError(t, Run(f, fixture.NewPool(), reg, Config{IntegerArithmeticMode: ModeAggressive}))

	require.Equal(t, ir.TInt, phi.DataType, "phi of two int sources must settle to int")

	last := f.Instrs[len(f.Instrs)-1]
	require.Equal(t, ir.OpReturnValue, last.Opcode)
	returned := f.Node(last.Popped()[0])
	require.Equal(t, ir.TInt, returned.DataType, "value returned from L3 must be int")

	addInstr := f.Instrs[7]
	require.Equal(t, ir.OpAdd, addInstr.Opcode)
	require.Equal(t, ir.TInt, f.Node(addInstr.Pushed).DataType, "add must specialize to integer under ModeAggressive")
}
