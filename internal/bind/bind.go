package bind

import (
	"github.com/crossbridge-vm/avm2ssa/internal/abcsrc"
	"github.com/crossbridge-vm/avm2ssa/internal/ir"
	"github.com/crossbridge-vm/avm2ssa/internal/registry"
)

// IntegerArithmeticMode gates the integer-result promotion rules of
// spec.md §4.4.2/§4.4.5.
type IntegerArithmeticMode uint8

const (
	ModeExplicitOnly IntegerArithmeticMode = iota
	ModeDefault
	ModeAggressive
)

// Config is the subset of spec.md §6's recognised options the binder
// consults directly; internal/pipeline.Config carries the full set and
// passes this projection through.
type Config struct {
	IntegerArithmeticMode           IntegerArithmeticMode
	UseNativeDoubleToIntConversions bool
}

// Run executes both binder sub-passes plus phi-source coercion over f,
// exactly as spec.md §4.4 orders them: forward fixed point, property
// resolution (folded into the forward pass per instruction), backward
// demand/elision, then phi-source coercion.
func Run(f *ir.Func, pool abcsrc.ConstantPool, reg registry.Registry, cfg Config) error {
	fs := newForwardState(f, pool, reg, cfg)
	if err := fs.run(); err != nil {
		return err
	}
	bs := &backwardState{f: f, cfg: cfg}
	bs.run()
	coercePhiSources(f)
	return nil
}
