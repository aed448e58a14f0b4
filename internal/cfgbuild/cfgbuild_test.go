package cfgbuild

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crossbridge-vm/avm2ssa/internal/abcsrc"
	"github.com/crossbridge-vm/avm2ssa/internal/abcsrc/asmtest"
	"github.com/crossbridge-vm/avm2ssa/internal/abcsrc/fixture"
	"github.com/crossbridge-vm/avm2ssa/internal/decode"
	"github.com/crossbridge-vm/avm2ssa/internal/ir"
)

// buildDiamond assembles:
//
//	getlocal1; iftrue then
//	pushbyte 10; jump end
//	then: pushbyte 20
//	end: returnvalue
//
// a minimal if/else that rejoins at a single successor, the shape the
// dominator and phi-placement passes both need to exercise a real merge
// point.
func buildDiamond(t *testing.T) *ir.Func {
	t.Helper()
	asm := asmtest.New()
	asm.B(0x62).U30(1)  // getlocal1
	asm.B(0x11).S24(6)  // iftrue -> +6 from here (lands on the then-branch)
	asm.B(0x24).B(10)   // pushbyte 10
	asm.B(0x10).S24(2)  // jump -> +2 from here (lands on returnvalue)
	asm.B(0x24).B(20)   // pushbyte 20 (then-branch)
	asm.B(0x48)         // returnvalue

	f := ir.NewFunc("M", ir.Limits{MaxStack: 1, LocalCount: 2})
	body := abcsrc.MethodBody{Name: "M", Bytes: asm.Bytes(), MaxStack: 1, LocalCount: 2}
	require.NoError(t, decode.Decode(f, fixture.Source{P: fixture.NewPool()}, body))
	return f
}

func TestBuildDiamondShape(t *testing.T) {
	f := buildDiamond(t)
	require.NoError(t, Build(f, nil))

	require.Equal(t, 4, f.NumBlocks(), "entry, else-branch, then-branch, join")
	require.Len(t, f.RPO, 4)

	entry := f.Block(f.Entry)
	require.Len(t, entry.Succs, 2)

	// Every block but entry has exactly one predecessor except the join,
	// which has two (the else-fallthrough-jump and the then-fallthrough).
	joins := 0
	for _, bid := range f.RPO {
		b := f.Block(bid)
		if len(b.Preds) == 2 {
			joins++
		}
	}
	require.Equal(t, 1, joins)
}

func TestBuildDiamondDominators(t *testing.T) {
	f := buildDiamond(t)
	require.NoError(t, Build(f, nil))

	for _, bid := range f.RPO {
		if bid == f.Entry {
			continue
		}
		b := f.Block(bid)
		if len(b.Preds) == 1 {
			require.Equal(t, b.Preds[0], b.Idom)
		} else {
			// the join's immediate dominator must be entry: neither
			// branch dominates the other.
			require.Equal(t, f.Entry, b.Idom)
		}
	}
}

func TestBuildRejectsFalloff(t *testing.T) {
	asm := asmtest.New()
	asm.B(0x24).B(5) // pushbyte 5, then falls off the end with no return

	f := ir.NewFunc("M", ir.Limits{MaxStack: 1})
	body := abcsrc.MethodBody{Name: "M", Bytes: asm.Bytes(), MaxStack: 1}
	require.NoError(t, decode.Decode(f, fixture.Source{P: fixture.NewPool()}, body))

	err := Build(f, nil)
	require.Error(t, err)
}

// TestBuildLookupSwitchEdges exercises the lookupswitch edge rule of
// spec.md §4.2: one edge to the default target and one per case target,
// all offsets relative to the lookupswitch instruction itself.
func TestBuildLookupSwitchEdges(t *testing.T) {
	asm := asmtest.New()
	asm.B(0x62).U30(1) // getlocal1                              off 0-1
	base := asm.Off()  // lookupswitch at off 2
	asm.B(0x1b).S24(11).U30(1).S24(14).S24(17) // default off 13, cases off 16, 19
	asm.B(0x24).B(1) // pushbyte 1 (default)                     off 13-14
	asm.B(0x48)      // returnvalue                              off 15
	asm.B(0x24).B(2) // pushbyte 2 (case 0)                      off 16-17
	asm.B(0x48)      // returnvalue                              off 18
	asm.B(0x24).B(3) // pushbyte 3 (case 1)                      off 19-20
	asm.B(0x48)      // returnvalue                              off 21

	f := ir.NewFunc("M", ir.Limits{MaxStack: 1, LocalCount: 2})
	body := abcsrc.MethodBody{Name: "M", Bytes: asm.Bytes(), MaxStack: 1, LocalCount: 2}
	require.NoError(t, decode.Decode(f, fixture.Source{P: fixture.NewPool()}, body))

	sw := f.Instrs[1]
	require.Equal(t, ir.OpLookupSwitch, sw.Opcode)
	require.Equal(t, []int32{base + 11, base + 14, base + 17}, sw.Payload.RawTargets)

	require.NoError(t, Build(f, nil))

	swBlock := f.Block(f.Instrs[1].Block)
	require.Len(t, swBlock.Succs, 3, "default plus both case targets")
	seen := map[ir.BlockID]bool{}
	for _, s := range swBlock.Succs {
		seen[s] = true
	}
	require.Len(t, seen, 3, "all three switch targets are distinct blocks")
}
