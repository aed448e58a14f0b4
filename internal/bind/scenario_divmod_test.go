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

// assembleDivideCoerceI builds getlocal1; getlocal2; divide; convert_i;
// setlocal3; pushbyte 0; returnvalue, with the two operand locals stamped
// to the given types.
func assembleDivideCoerceI(t *testing.T, lhs, rhs ir.DataType) *ir.Func {
	t.Helper()
	asm := asmtest.New()
	asm.B(0x62).U30(1) // getlocal1
	asm.B(0x62).U30(2) // getlocal2
	asm.B(0xa3)        // divide
	asm.B(0x73)        // convert_i
	asm.B(0x63).U30(3) // setlocal3
	asm.B(0x24).B(0)   // pushbyte 0
	asm.B(0x48)        // returnvalue

	f := ir.NewFunc("divroot", ir.Limits{MaxStack: 2, LocalCount: 4})
	body := abcsrc.MethodBody{Name: "divroot", Bytes: asm.Bytes(), MaxStack: 2, LocalCount: 4}
	require.NoError(t, decode.Decode(f, fixture.Source{P: fixture.NewPool()}, body))
	require.NoError(t, cfgbuild.Build(f, nil))
	require.NoError(t, dataflow.Assemble(f, arena.New()))

	f.Node(f.Instrs[0].Pushed).DataType = lhs
	f.Node(f.Instrs[1].Pushed).DataType = rhs
	return f
}

// TestDivideAtTreeRootPromotesWhenOperandsMatchSignedness covers the
// divide/modulo clause of the integer-promotion rule (spec.md §4.4.5):
// a divide coerced to int at the tree root operates in the integer type
// when both operands are integers of the same signedness.
func TestDivideAtTreeRootPromotesWhenOperandsMatchSignedness(t *testing.T) {
	f := assembleDivideCoerceI(t, ir.TInt, ir.TInt)
	reg := registry.NewStaticRegistry(registry.NewClass("Object", nil))
	require.NoError(t, Run(f, fixture.NewPool(), reg, Config{}))

	div := f.Instrs[2]
	require.Equal(t, ir.OpDivide, div.Opcode)
	divNode := f.Node(div.Pushed)
	require.Equal(t, ir.TInt, divNode.DataType, "int/int divide under an int coercion operates as int")
	require.Equal(t, ir.TInt, divNode.OnPushCoerceType, "the coercion is hoisted onto the divide")
}

// TestDivideAtTreeRootStaysNumberOnMixedSignedness pins the rule's guard:
// mixed int/uint operands keep the divide a Number and leave only the
// hoisted coercion behind.
func TestDivideAtTreeRootStaysNumberOnMixedSignedness(t *testing.T) {
	f := assembleDivideCoerceI(t, ir.TInt, ir.TUint)
	reg := registry.NewStaticRegistry(registry.NewClass("Object", nil))
	require.NoError(t, Run(f, fixture.NewPool(), reg, Config{}))

	divNode := f.Node(f.Instrs[2].Pushed)
	require.Equal(t, ir.TNumber, divNode.DataType)
	require.Equal(t, ir.TInt, divNode.OnPushCoerceType)
}
