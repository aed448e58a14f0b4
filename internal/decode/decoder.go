package decode

import (
	"github.com/crossbridge-vm/avm2ssa/internal/abcsrc"
	"github.com/crossbridge-vm/avm2ssa/internal/diag"
	"github.com/crossbridge-vm/avm2ssa/internal/ir"
)

// Decode performs the linear scan of spec.md §4.1: it turns body.Bytes
// into f.Instrs in source order, with opcode, byte offset and
// opcode-specific payload filled in. No block assignment and no type
// information is produced here; that is the CFG and binder passes' job.
func Decode(f *ir.Func, src abcsrc.Source, body abcsrc.MethodBody) error {
	r := &byteReader{buf: body.Bytes}
	pool := src.Pool()
	for !r.atEnd() {
		offset := r.pos
		opByte, err := r.u8(f.Name)
		if err != nil {
			return err
		}

		desc, known := lookup(opByte)
		id := f.NewInstr(desc.op, offset)
		in := f.Instr(id)
		in.Group = desc.group
		in.Ctrl = desc.ctrl
		in.Payload.ResolvedID = -1
		if !known {
			in.Opcode = ir.OpUnknown
			in.RawOpcode = opByte
		}

		if err := decodeOperands(r, f.Name, desc, opByte, in); err != nil {
			return err
		}
		if in.Group == ir.GroupProperty {
			annotateMultiname(pool, in)
		}
		if (in.Opcode == ir.OpDXNS || in.Opcode == ir.OpDXNSLate) && !body.SetDXNS {
			// spec.md §7: dxns in a method lacking the SET_DXNS flag is one
			// of the two compile-time type errors.
			return diag.Type(diag.KindDXNSWithoutFlag, f.Name, offset, nil)
		}
	}
	return nil
}

// annotateMultiname records whether the multiname a property-access
// instruction names carries a runtime namespace and/or local-name
// component, so later passes can compute its true pop count without
// re-touching the constant pool (spec.md §4.3.1's "multiname-consuming
// opcodes" rule and §4.4.4 step 1).
func annotateMultiname(pool abcsrc.ConstantPool, in *ir.Instruction) {
	mn, ok := pool.Multiname(in.Payload.MultinameID)
	if !ok {
		return
	}
	in.Payload.RuntimeNS = mn.HasRuntimeNS
	in.Payload.RuntimeName = mn.HasRuntimeName
}

// lookup resolves a raw opcode byte, folding the getlocal0-3/setlocal0-3
// short forms into the general GroupLocal shape with an implied index.
func lookup(b byte) (descriptor, bool) {
	if b >= byteGetLocal0 && b <= byteGetLocal3 {
		return descriptor{ir.OpGetLocal, ir.GroupLocal, ir.CFallthrough, shapeNone}, true
	}
	if b >= byteSetLocal0 && b <= byteSetLocal3 {
		return descriptor{ir.OpSetLocal, ir.GroupLocal, ir.CFallthrough, shapeNone}, true
	}
	d, ok := opTable[b]
	return d, ok
}

func decodeOperands(r *byteReader, method string, desc descriptor, opByte byte, in *ir.Instruction) error {
	switch {
	case opByte >= byteGetLocal0 && opByte <= byteGetLocal3:
		in.Payload.Local0 = int32(opByte - byteGetLocal0)
		return nil
	case opByte >= byteSetLocal0 && opByte <= byteSetLocal3:
		in.Payload.Local0 = int32(opByte - byteSetLocal0)
		return nil
	}

	switch desc.shape {
	case shapeNone:
		return nil

	case shapeU8:
		v, err := r.u8(method)
		if err != nil {
			return err
		}
		if desc.group == ir.GroupLocal {
			in.Payload.Local0 = int32(v) // getscopeobject's scope index
		} else {
			in.Payload.PoolIndex = int32(v)
		}
		return nil

	case shapeU30:
		v, err := r.s30(method)
		if err != nil {
			return err
		}
		switch desc.group {
		case ir.GroupLocal:
			in.Payload.Local0 = v
		case ir.GroupProperty:
			in.Payload.MultinameID = v
		case ir.GroupCall:
			in.Payload.ArgCount = v
		default:
			in.Payload.PoolIndex = v
		}
		return nil

	case shapeU30U30:
		a, err := r.s30(method)
		if err != nil {
			return err
		}
		b, err := r.s30(method)
		if err != nil {
			return err
		}
		in.Payload.MultinameID = a
		in.Payload.ArgCount = b
		return nil

	case shapeS24:
		target, err := r.s24(method)
		if err != nil {
			return err
		}
		abs := target + r.pos // relative to byte after the operand, per ABC
		in.Payload.RawTargets = []int32{abs}
		return nil

	case shapeSwitch:
		return decodeSwitch(r, method, in)

	case shapeLocalPair:
		a, err := r.s30(method)
		if err != nil {
			return err
		}
		b, err := r.s30(method)
		if err != nil {
			return err
		}
		in.Payload.Local0, in.Payload.Local1 = a, b
		return nil
	}
	return nil
}

func decodeSwitch(r *byteReader, method string, in *ir.Instruction) error {
	base := in.Offset
	def, err := r.s24(method)
	if err != nil {
		return err
	}
	count, err := r.u30(method)
	if err != nil {
		return err
	}
	targets := make([]int32, 0, count+1)
	for i := uint32(0); i <= count; i++ {
		t, err := r.s24(method)
		if err != nil {
			return err
		}
		targets = append(targets, base+t)
	}
	in.Payload.RawTargets = append([]int32{base + def}, targets...)
	return nil
}

// IllegalOpcode returns an ILLEGAL_OPCODE verify error for an unknown opcode actually
// reached in the CFG, per spec.md §4.1 Errors: "validation is deferred to
// the CF pass, which fails with ILLEGAL_OPCODE if such an instruction is
// actually reached".
func IllegalOpcode(method string, offset int32, raw byte) error {
	return diag.Verify(diag.KindIllegalOpcode, method, offset, map[string]any{"byte": raw})
}
