// Package fixture is an in-memory abcsrc.Source used only by tests, the
// way cmd/internal/ssa/func_test.go's Fun/Bloc/Valu builders stand in for a
// real method body without parsing real ABC bytes.
package fixture

import "github.com/crossbridge-vm/avm2ssa/internal/abcsrc"

// Pool is a trivially indexed in-memory constant pool.
type Pool struct {
	Ints       map[int32]int32
	UInts      map[int32]uint32
	Doubles    map[int32]float64
	Strings    map[int32]string
	Namespaces map[int32]string
	Multinames map[int32]abcsrc.Multiname
}

// NewPool returns an empty Pool ready to be filled via its With* helpers.
func NewPool() *Pool {
	return &Pool{
		Ints: map[int32]int32{}, UInts: map[int32]uint32{},
		Doubles: map[int32]float64{}, Strings: map[int32]string{},
		Namespaces: map[int32]string{}, Multinames: map[int32]abcsrc.Multiname{},
	}
}

func (p *Pool) WithInt(idx int32, v int32) *Pool    { p.Ints[idx] = v; return p }
func (p *Pool) WithString(idx int32, v string) *Pool { p.Strings[idx] = v; return p }
func (p *Pool) WithMultiname(idx int32, m abcsrc.Multiname) *Pool {
	p.Multinames[idx] = m
	return p
}

func (p *Pool) Int(idx int32) (int32, bool)       { v, ok := p.Ints[idx]; return v, ok }
func (p *Pool) UInt(idx int32) (uint32, bool)     { v, ok := p.UInts[idx]; return v, ok }
func (p *Pool) Double(idx int32) (float64, bool)  { v, ok := p.Doubles[idx]; return v, ok }
func (p *Pool) String(idx int32) (string, bool)   { v, ok := p.Strings[idx]; return v, ok }
func (p *Pool) Namespace(idx int32) (string, bool) { v, ok := p.Namespaces[idx]; return v, ok }
func (p *Pool) Multiname(idx int32) (abcsrc.Multiname, bool) {
	v, ok := p.Multinames[idx]
	return v, ok
}

// Source wraps a Pool to satisfy abcsrc.Source.
type Source struct{ P *Pool }

func (s Source) Pool() abcsrc.ConstantPool { return s.P }
