// Package pipeline orchestrates the four passes of spec.md §2 into a
// single per-method Compile call: decode -> cfgbuild -> dataflow -> bind,
// in that strict sequential order (spec.md §5: "Within a method, the
// pipeline is strictly sequential"). Teacher analogue: cmd/internal/gc's
// buildssa entry point, which the same lineage's cmd/internal/gc/ssa.go
// wires up the same way (decode AST -> build blocks -> build SSA -> run
// passes) before handing the result to the code generator.
package pipeline

import (
	"github.com/crossbridge-vm/avm2ssa/internal/abcsrc"
	"github.com/crossbridge-vm/avm2ssa/internal/arena"
	"github.com/crossbridge-vm/avm2ssa/internal/bind"
	"github.com/crossbridge-vm/avm2ssa/internal/cfgbuild"
	"github.com/crossbridge-vm/avm2ssa/internal/dataflow"
	"github.com/crossbridge-vm/avm2ssa/internal/decode"
	"github.com/crossbridge-vm/avm2ssa/internal/diag"
	"github.com/crossbridge-vm/avm2ssa/internal/ir"
	"github.com/crossbridge-vm/avm2ssa/internal/ir/irdump"
	"github.com/crossbridge-vm/avm2ssa/internal/registry"
	"go.uber.org/zap"
)

// IntegerArithmeticMode re-exports bind.IntegerArithmeticMode so callers
// configuring a pipeline never need to import internal/bind directly.
type IntegerArithmeticMode = bind.IntegerArithmeticMode

const (
	ModeExplicitOnly = bind.ModeExplicitOnly
	ModeDefault      = bind.ModeDefault
	ModeAggressive   = bind.ModeAggressive
)

// Config is the full set of recognised options from spec.md §6.
type Config struct {
	IntegerArithmeticMode           IntegerArithmeticMode
	UseNativeDoubleToIntConversions bool
	EnableTracing                   bool
	EarlyThrowMethodBodyErrors      bool
}

// DefaultConfig matches the teacher's usual zero-value-is-sane-default
// posture: explicit-only promotion, ECMA-compliant double->int conversion,
// tracing off, errors thrown at compile time.
func DefaultConfig() Config {
	return Config{
		IntegerArithmeticMode:      ModeExplicitOnly,
		EarlyThrowMethodBodyErrors: true,
	}
}

// Result is what Compile hands back: either a fully bound *ir.Func, or
// (when compilation failed and EarlyThrowMethodBodyErrors is false) a
// *ir.Func carrying only a ThrowReplacement, per spec.md §7's propagation
// rule.
type Result struct {
	Func *ir.Func
	Err  error
}

// Compile runs the full pipeline over one method body, per spec.md §2's
// dependency order and §5's strict sequencing. The arena.Arena backing the
// passes' scratch buffers is released before Compile returns; the returned
// *ir.Func holds no arena memory and has no separate Free call.
func Compile(body abcsrc.MethodBody, src abcsrc.Source, handlers []cfgbuild.HandlerSpec, reg registry.Registry, cfg Config, log *zap.Logger) Result {
	if log == nil {
		log = zap.NewNop()
	}
	f := ir.NewFunc(body.Name, ir.Limits{
		MaxStack: body.MaxStack, MaxScope: body.MaxScope,
		LocalCount: body.LocalCount, NeedsRest: body.NeedsRest,
	})
	a := arena.New()
	defer a.Release()

	err := runPasses(f, a, src, body, handlers, reg, cfg, log)
	if err == nil {
		return Result{Func: f}
	}

	if cfg.EarlyThrowMethodBodyErrors {
		return Result{Func: f, Err: err}
	}

	// spec.md §7: "the caught error is encoded into a replacement emitted
	// body that throws the same error at first invocation". Build a fresh,
	// minimal Func rather than trying to salvage whatever partial state the
	// failing pass left behind.
	replacement := ir.NewFunc(body.Name, f.Limits)
	replacement.ThrowReplacement = err
	log.Warn("method body compile failed; emitting throw replacement",
		zap.String("method", body.Name), zap.Error(err))
	return Result{Func: replacement}
}

func runPasses(f *ir.Func, a *arena.Arena, src abcsrc.Source, body abcsrc.MethodBody, handlers []cfgbuild.HandlerSpec, reg registry.Registry, cfg Config, log *zap.Logger) error {
	if err := decode.Decode(f, src, body); err != nil {
		return err
	}
	traceDump(log, cfg, "decode", f)

	if err := cfgbuild.Build(f, handlers); err != nil {
		return err
	}
	traceDump(log, cfg, "cfgbuild", f)

	if err := dataflow.Assemble(f, a); err != nil {
		return err
	}
	traceDump(log, cfg, "dataflow", f)

	bcfg := bind.Config{
		IntegerArithmeticMode:           cfg.IntegerArithmeticMode,
		UseNativeDoubleToIntConversions: cfg.UseNativeDoubleToIntConversions,
	}
	if err := bind.Run(f, src.Pool(), reg, bcfg); err != nil {
		return err
	}
	traceDump(log, cfg, "bind", f)
	return nil
}

// AsCompileError unwraps err (if any) into its diag.CompileError for
// callers that branch on Category/Kind, mirroring diag.As.
func AsCompileError(err error) (*diag.CompileError, bool) { return diag.As(err) }

// traceDump logs f's current state under the given pass name when tracing
// is enabled, per spec.md §6's enable_tracing option. Teacher analogue:
// cmd/internal/gc/ssa.go's Func.Logf dumps gated by -d ssa/<phase>/dump;
// here gated by a single Config flag and always routed through the
// supplied zap.Logger rather than stderr.
func traceDump(log *zap.Logger, cfg Config, pass string, f *ir.Func) {
	if !cfg.EnableTracing {
		return
	}
	log.Info("ir dump", zap.String("pass", pass), zap.String("method", f.Name), zap.String("ir", irdump.Func(f)))
}
