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

// TestVectorIndexAccessFusesToIntegerAccessor implements scenario S6
// (spec.md §8): reading vec[i+1] on a Vector.<int> with an int index
// selects the vector's integer-indexed accessor, clears whatever coercion
// the name argument carried, and keeps i+1 as integer addition.
func TestVectorIndexAccessFusesToIntegerAccessor(t *testing.T) {
	asm := asmtest.New()
	asm.B(0x62).U30(1) // getlocal1 (vec)
	asm.B(0x62).U30(2) // getlocal2 (i)
	asm.B(0x24).B(1)   // pushbyte 1
	asm.B(0xa0)        // add
	asm.B(0x66).U30(1) // getproperty mn#1 (runtime local name)
	asm.B(0x48)        // returnvalue

	pool := fixture.NewPool().WithMultiname(1, abcsrc.Multiname{
		Kind: abcsrc.MultinameMultinameL, HasRuntimeName: true,
	})
	f := ir.NewFunc("vecread", ir.Limits{MaxStack: 3, LocalCount: 3})
	body := abcsrc.MethodBody{Name: "vecread", Bytes: asm.Bytes(), MaxStack: 3, LocalCount: 3}
	require.NoError(t, decode.Decode(f, fixture.Source{P: pool}, body))
	require.NoError(t, cfgbuild.Build(f, nil))
	require.NoError(t, dataflow.Assemble(f, arena.New()))

	root := registry.NewClass("Object", nil)
	vecClass := registry.NewClass("Vector.<int>", root)
	reg := registry.NewStaticRegistry(root)
	reg.RegisterClass(1, vecClass)

	vecNode := f.Node(f.Instrs[0].Pushed)
	vecNode.DataType = ir.TObject
	vecNode.Class = vecClass
	idxLocal := f.Node(f.Instrs[1].Pushed)
	idxLocal.DataType = ir.TInt

	require.NoError(t, Run(f, pool, reg, Config{}))

	getProp := f.Instrs[4]
	require.Equal(t, ir.OpGetProperty, getProp.Opcode)
	require.Len(t, getProp.Popped(), 2, "runtime name plus object")
	require.GreaterOrEqual(t, getProp.Payload.ResolvedID, int32(0))

	rp := f.Prop(getProp.Payload.ResolvedID)
	require.Equal(t, ir.ResolvedIndex, rp.Kind)
	require.Equal(t, "Vector.<int>.$index", rp.IndexAccessor)
	require.Equal(t, ir.TInt, rp.IndexElem)

	require.Equal(t, ir.TInt, f.Node(getProp.Pushed).DataType, "the read element is an int")

	addNode := f.Node(f.Instrs[3].Pushed)
	require.Equal(t, ir.TInt, addNode.DataType, "i+1 stays integer addition")
	require.Equal(t, ir.TUnknown, addNode.OnPushCoerceType, "the name argument's coercion is cleared")
}
