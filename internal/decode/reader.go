// Package decode implements the instruction decoder of spec.md §4.1: a
// linear scan of ABC method-body bytes into an Instruction[] with no type
// information and no block assignment yet. The byte-level varint/branch
// encodings below are the standard AVM2 ABC operand encodings (u30 LEB128,
// s24 little-endian signed, u8 immediates); decoding them is this
// package's job even though the surrounding container format (constant
// pool layout, method-info records) is an out-of-scope collaborator per
// spec.md §1.
package decode

import "github.com/crossbridge-vm/avm2ssa/internal/diag"

// byteReader is a minimal cursor over a method body's bytes, mirroring the
// teacher's cmd/asm/internal/lex token cursor in spirit (read-ahead with an
// explicit position, not an io.Reader, since operand shapes are known from
// the opcode table rather than self-describing).
type byteReader struct {
	buf []byte
	pos int32
}

func (r *byteReader) atEnd() bool { return int(r.pos) >= len(r.buf) }

func (r *byteReader) u8(method string) (byte, error) {
	if int(r.pos) >= len(r.buf) {
		return 0, diag.Verify(diag.KindABCCorrupt, method, r.pos, map[string]any{"reason": "truncated u8"})
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

// u30 reads an unsigned LEB128-encoded value as specified by the ABC file
// format (up to 5 encoding bytes for a 32-bit result).
func (r *byteReader) u30(method string) (uint32, error) {
	var result uint32
	var shift uint
	for i := 0; i < 5; i++ {
		b, err := r.u8(method)
		if err != nil {
			return 0, err
		}
		result |= uint32(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
	}
	return 0, diag.Verify(diag.KindABCCorrupt, method, r.pos, map[string]any{"reason": "u30 too long"})
}

func (r *byteReader) s30(method string) (int32, error) {
	v, err := r.u30(method)
	return int32(v), err
}

// s24 reads a little-endian 24-bit signed branch offset.
func (r *byteReader) s24(method string) (int32, error) {
	if int(r.pos)+3 > len(r.buf) {
		return 0, diag.Verify(diag.KindABCCorrupt, method, r.pos, map[string]any{"reason": "truncated s24"})
	}
	b0, b1, b2 := r.buf[r.pos], r.buf[r.pos+1], r.buf[r.pos+2]
	r.pos += 3
	v := int32(b0) | int32(b1)<<8 | int32(b2)<<16
	if v&0x800000 != 0 {
		v |= ^int32(0xffffff) // sign-extend
	}
	return v, nil
}
