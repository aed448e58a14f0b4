// Package asmtest is a tiny byte-level assembler used only by this
// module's own tests to hand-encode method bodies, the way
// cmd/internal/ssa/func_test.go's Fun/Bloc/Valu helpers stand in for a
// real frontend when exercising a single pass in isolation. It encodes
// exactly the operand shapes internal/decode/reader.go decodes: u30
// LEB128 and little-endian signed s24 branch offsets.
package asmtest

// Builder accumulates raw method-body bytes one instruction at a time and
// tracks byte offsets so callers can compute s24 branch targets without
// hand-counting bytes.
type Builder struct {
	buf []byte
}

// New returns an empty Builder.
func New() *Builder { return &Builder{} }

// Off reports the current write offset, the value a forward Jump/IfXxx
// should compute its branch target relative to (spec.md §4.1: "signed,
// relative to the first byte following the instruction").
func (b *Builder) Off() int32 { return int32(len(b.buf)) }

// B appends a single raw byte (an opcode or a u8 operand such as pushbyte's
// immediate).
func (b *Builder) B(v byte) *Builder {
	b.buf = append(b.buf, v)
	return b
}

// U30 appends v LEB128-encoded.
func (b *Builder) U30(v uint32) *Builder {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b.buf = append(b.buf, c|0x80)
			continue
		}
		b.buf = append(b.buf, c)
		break
	}
	return b
}

// S24 appends v as a little-endian 24-bit two's-complement value.
func (b *Builder) S24(v int32) *Builder {
	u := uint32(v)
	b.buf = append(b.buf, byte(u), byte(u>>8), byte(u>>16))
	return b
}

// Bytes returns the accumulated method body.
func (b *Builder) Bytes() []byte { return b.buf }

// Len reports how many bytes have been written so far.
func (b *Builder) Len() int32 { return int32(len(b.buf)) }
