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

// ctorStub is a MethodTrait stub for constructor/intrinsic tests.
type ctorStub struct {
	name               string
	static             bool
	requiredArgs, args int
	rest               bool
}

func (c ctorStub) Name() string                  { return c.name }
func (c ctorStub) IsStatic() bool                { return c.static }
func (c ctorStub) DeclaredType() *registry.Class { return nil }
func (c ctorStub) RequiredArgs() int             { return c.requiredArgs }
func (c ctorStub) DeclaredArgs() int             { return c.args }
func (c ctorStub) HasRest() bool                 { return c.rest }

func assembleAndWire(t *testing.T, name string, bytes []byte, limits ir.Limits, pool *fixture.Pool) *ir.Func {
	t.Helper()
	f := ir.NewFunc(name, limits)
	body := abcsrc.MethodBody{Name: name, Bytes: bytes,
		MaxStack: limits.MaxStack, MaxScope: limits.MaxScope, LocalCount: limits.LocalCount}
	require.NoError(t, decode.Decode(f, fixture.Source{P: pool}, body))
	require.NoError(t, cfgbuild.Build(f, nil))
	require.NoError(t, dataflow.Assemble(f, arena.New()))
	return f
}

// TestCharAtCompareFusesToIndexComparison covers the intrinsic compare
// fusion of spec.md §4.4.5: s.charAt(3) == "x" rewrites to an index-level
// comparison with the one-character comparand needing no push.
func TestCharAtCompareFusesToIndexComparison(t *testing.T) {
	asm := asmtest.New()
	asm.B(0x62).U30(1)        // getlocal1 (a string)
	asm.B(0x24).B(3)          // pushbyte 3
	asm.B(0x46).U30(1).U30(1) // callproperty "charAt", 1 arg
	asm.B(0x2c).U30(2)        // pushstring "x"
	asm.B(0xab)               // equals
	asm.B(0x48)               // returnvalue

	pool := fixture.NewPool().
		WithMultiname(1, abcsrc.Multiname{Name: "charAt"}).
		WithString(2, "x")
	f := assembleAndWire(t, "charat", asm.Bytes(), ir.Limits{MaxStack: 2, LocalCount: 2}, pool)
	f.Node(f.Instrs[0].Pushed).DataType = ir.TString

	reg := registry.NewStaticRegistry(registry.NewClass("Object", nil))
	require.NoError(t, Run(f, pool, reg, Config{}))

	call := f.Instrs[2]
	require.Equal(t, ir.OpCallProperty, call.Opcode)
	require.GreaterOrEqual(t, call.Payload.ResolvedID, int32(0))

	rp := f.Prop(call.Payload.ResolvedID)
	require.Equal(t, ir.ResolvedIntrinsic, rp.Kind)
	require.Equal(t, ir.IntrinsicCharAtCompare, rp.Intrinsic, "charAt + 1-char compare fuses")

	comparand := f.Node(f.Instrs[3].Pushed)
	require.True(t, comparand.Flags.Has(ir.FlagNoPush), "the comparand constant needs no push")
}

// TestMathMinOnIntegersStaysInteger covers the Math.min(int,int) intrinsic
// of spec.md §4.4.4: the call resolves to the specialised intrinsic and the
// result keeps the integer type.
func TestMathMinOnIntegersStaysInteger(t *testing.T) {
	asm := asmtest.New()
	asm.B(0x20)               // pushnull (newclass base)
	asm.B(0x58).U30(1)        // newclass #1 (Math)
	asm.B(0x24).B(3)          // pushbyte 3
	asm.B(0x24).B(4)          // pushbyte 4
	asm.B(0x46).U30(2).U30(2) // callproperty "min", 2 args
	asm.B(0x48)               // returnvalue

	pool := fixture.NewPool().WithMultiname(2, abcsrc.Multiname{Name: "min"})
	f := assembleAndWire(t, "mathmin", asm.Bytes(), ir.Limits{MaxStack: 3, LocalCount: 1}, pool)

	root := registry.NewClass("Object", nil)
	math := registry.NewClass("Math", root)
	math.AddTrait(ctorStub{name: "min", static: true, requiredArgs: 2, args: 2})
	reg := registry.NewStaticRegistry(root)
	reg.RegisterClass(1, math)

	require.NoError(t, Run(f, pool, reg, Config{}))

	call := f.Instrs[4]
	rp := f.Prop(call.Payload.ResolvedID)
	require.Equal(t, ir.ResolvedIntrinsic, rp.Kind)
	require.Equal(t, ir.IntrinsicMathMin, rp.Intrinsic)
	require.Equal(t, ir.TInt, f.Node(call.Pushed).DataType, "min over two ints stays int")
}

// TestPrimitiveClassCallFoldsConversion covers the coerce-via-class-call
// intrinsic of spec.md §4.4.4: int("7") is a conversion, folded since the
// argument is constant.
func TestPrimitiveClassCallFoldsConversion(t *testing.T) {
	asm := asmtest.New()
	asm.B(0x20)        // pushnull (newclass base)
	asm.B(0x58).U30(1) // newclass #1 (int)
	asm.B(0x20)        // pushnull (receiver)
	asm.B(0x2c).U30(1) // pushstring "7"
	asm.B(0x41).U30(1) // call, 1 arg
	asm.B(0x48)        // returnvalue

	pool := fixture.NewPool().WithString(1, "7")
	f := assembleAndWire(t, "intcall", asm.Bytes(), ir.Limits{MaxStack: 3, LocalCount: 1}, pool)

	root := registry.NewClass("Object", nil)
	intClass := registry.NewClass("int", root)
	reg := registry.NewStaticRegistry(root)
	reg.RegisterClass(1, intClass)

	require.NoError(t, Run(f, pool, reg, Config{}))

	call := f.Instrs[4]
	require.Equal(t, ir.OpCall, call.Opcode)
	require.GreaterOrEqual(t, call.Payload.ResolvedID, int32(0))
	require.Equal(t, ir.IntrinsicPrimitiveConvert, f.Prop(call.Payload.ResolvedID).Intrinsic)

	result := f.Node(call.Pushed)
	require.Equal(t, ir.TInt, result.DataType)
	require.True(t, result.Flags.Has(ir.FlagConstant))
	require.Equal(t, int32(7), result.Const.I)
}

// TestConstructWithWrongArityDefersInvocation covers the constructor-call
// rule of spec.md §4.4.4: the class is known but the argument count falls
// outside [required, declared], so the binding keeps the trait while the
// invocation defers to a runtime dispatch.
func TestConstructWithWrongArityDefersInvocation(t *testing.T) {
	asm := asmtest.New()
	asm.B(0x20)        // pushnull (newclass base)
	asm.B(0x58).U30(1) // newclass #1 (Point)
	asm.B(0x24).B(1)   // pushbyte 1
	asm.B(0x42).U30(1) // construct, 1 arg
	asm.B(0x48)        // returnvalue

	f := assembleAndWire(t, "construct", asm.Bytes(), ir.Limits{MaxStack: 2, LocalCount: 1}, fixture.NewPool())

	root := registry.NewClass("Object", nil)
	point := registry.NewClass("Point", root)
	point.Constructor = ctorStub{name: "Point", requiredArgs: 2, args: 2}
	reg := registry.NewStaticRegistry(root)
	reg.RegisterClass(1, point)

	require.NoError(t, Run(f, fixture.NewPool(), reg, Config{}))

	construct := f.Instrs[3]
	require.Equal(t, ir.OpConstruct, construct.Opcode)
	rp := f.Prop(construct.Payload.ResolvedID)
	require.Equal(t, ir.ResolvedTraitRTInvoke, rp.Kind)

	result := f.Node(construct.Pushed)
	require.Equal(t, ir.TObject, result.DataType)
	require.Equal(t, point, result.Class)
}
