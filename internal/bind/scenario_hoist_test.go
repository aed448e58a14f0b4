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

// TestConversionHoistingElidesConvertI implements scenario S4 (spec.md §8):
//
//	pushstring "42"; convert_i; setlocal 1
//
// Expected: the string constant's onPushCoerceType becomes int, the stored
// local is the integer constant 42, and the string producer is marked
// NO_PUSH since its sole use (convert_i) is fully elided.
func TestConversionHoistingElidesConvertI(t *testing.T) {
	asm := asmtest.New()
	asm.B(0x2c).U30(1) // pushstring #1 ("42")
	asm.B(0x73)        // convert_i
	asm.B(0x63).U30(1) // setlocal1
	asm.B(0x24).B(0)   // pushbyte 0 (keep a value live so the method is well-formed)
	asm.B(0x48)        // returnvalue

	pool := fixture.NewPool().WithString(1, "42")
	f := ir.NewFunc("hoist", ir.Limits{MaxStack: 2, LocalCount: 2})
	body := abcsrc.MethodBody{Name: "hoist", Bytes: asm.Bytes(), MaxStack: 2, LocalCount: 2}
	require.NoError(t, decode.Decode(f, fixture.Source{P: pool}, body))
	require.NoError(t, cfgbuild.Build(f, nil))
	require.NoError(t, dataflow.Assemble(f, arena.New()))

	reg := registry.NewStaticRegistry(registry.NewClass("Object", nil))
	require.NoError(t, Run(f, pool, reg, Config{}))

	pushString := f.Instrs[0]
	require.Equal(t, ir.OpPushString, pushString.Opcode)
	strNode := f.Node(pushString.Pushed)
	require.Equal(t, ir.TInt, strNode.OnPushCoerceType, "the string producer must carry the demanded int coercion")
	require.True(t, strNode.Flags.Has(ir.FlagNoPush), "the string node must be elided once convert_i is folded away")

	setLocal := f.Instrs[2]
	require.Equal(t, ir.OpSetLocal, setLocal.Opcode)
	stored := f.Node(setLocal.Popped()[0])
	require.Equal(t, ir.TInt, stored.DataType)
	require.True(t, stored.Flags.Has(ir.FlagConstant))
	require.Equal(t, int32(42), stored.Const.I)
}
