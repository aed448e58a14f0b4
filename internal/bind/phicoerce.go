package bind

import (
	"github.com/crossbridge-vm/avm2ssa/internal/ir"
	"github.com/crossbridge-vm/avm2ssa/internal/registry"
)

// coercePhiSources implements spec.md §4.4.6: after the backward pass,
// any phi source whose type doesn't already match the phi's joined type
// is flagged as needing a coercion on its predecessor edge. This is how
// two differently-typed branch outcomes (e.g. one arm yields `int`, the
// other `Number`) get reconciled at the join without the phi itself
// carrying mixed-type inputs into the code generator.
func coercePhiSources(f *ir.Func) {
	for i := range f.Nodes {
		n := &f.Nodes[i]
		if !n.IsPhi {
			continue
		}
		phiType := infoOf(n)
		for _, src := range n.PhiDefs {
			if src == ir.NoNode || src == n.ID {
				continue
			}
			s := f.Node(src)
			if phiSourceMatches(s, phiType) {
				continue
			}
			s.Flags |= ir.FlagPhiSource
			s.PhiCoerceType = phiType.DataType
		}
	}
}

func phiSourceMatches(s *ir.DataNode, phiType typeInfo) bool {
	if s.DataType != phiType.DataType {
		return false
	}
	if phiType.DataType != ir.TObject && phiType.DataType != ir.TClass {
		return true
	}
	sc, _ := s.Class.(*registry.Class)
	return sc == phiType.Class
}
