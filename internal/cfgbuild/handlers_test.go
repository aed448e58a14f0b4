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

// TestHandlerEdgeNotDuplicatedWithinOneBlock covers a try region whose
// protected range has two throwing instructions ("add") that both land in
// the same basic block (no branch separates them). buildHandlers must still
// record a single try-block -> catch-block edge, not one per covered
// instruction: the try block can only ever actually transfer control to the
// catch block once.
func TestHandlerEdgeNotDuplicatedWithinOneBlock(t *testing.T) {
	asm := asmtest.New()
	asm.B(0x24).B(1) // pushbyte 1
	asm.B(0x24).B(2) // pushbyte 2
	asm.B(0xa0)      // add (can throw)
	asm.B(0x24).B(3) // pushbyte 3
	asm.B(0xa0)      // add (can throw)
	tryEnd := asm.Off()
	asm.B(0x10).S24(2) // jump -> +2 from here (skip the catch block, to returnvalue)
	catchStart := asm.Off()
	asm.B(0x24).B(9) // pushbyte 9 (catch handler body)
	asm.B(0x48)      // returnvalue

	f := ir.NewFunc("M", ir.Limits{MaxStack: 2})
	body := abcsrc.MethodBody{Name: "M", Bytes: asm.Bytes(), MaxStack: 2}
	require.NoError(t, decode.Decode(f, fixture.Source{P: fixture.NewPool()}, body))

	handlers := []HandlerSpec{
		{FromOffset: 0, ToOffset: tryEnd, CatchOffset: catchStart, Parent: -1},
	}
	require.NoError(t, Build(f, handlers))

	catchBlock := f.Block(blockOfOffset(f, catchStart))
	tryBlock := f.Entry // the whole try range falls in the entry block

	count := 0
	for _, p := range catchBlock.Preds {
		if p == tryBlock {
			count++
		}
	}
	require.Equal(t, 1, count, "try block must appear exactly once in the catch block's predecessor list")
}

func blockOfOffset(f *ir.Func, off int32) ir.BlockID {
	for i := range f.Instrs {
		if f.Instrs[i].Offset == off {
			return f.Instrs[i].Block
		}
	}
	return ir.NoBlock
}
