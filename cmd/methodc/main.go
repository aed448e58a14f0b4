// Command methodc compiles a single AVM2 method body, described by a
// fixture JSON file, through the decode -> cfgbuild -> dataflow -> bind
// pipeline and prints the result. Teacher analogue: cmd/asm's main.go,
// which wires flags to a single-file driver the same way this wires
// flags to a single-method driver.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/crossbridge-vm/avm2ssa/internal/ir/irdump"
	"github.com/crossbridge-vm/avm2ssa/internal/pipeline"
	"github.com/crossbridge-vm/avm2ssa/internal/registry"
)

var (
	flagTrace      bool
	flagIntMode    string
	flagNativeD2I  bool
	flagThrowEarly bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "methodc <fixture.json>",
		Short:         "Compile one AVM2 method body to SSA form",
		SilenceUsage:  true,
		SilenceErrors: false,
		Args:          cobra.ExactArgs(1),
		RunE:          runCompile,
	}
	root.PersistentFlags().BoolVar(&flagTrace, "trace", false, "dump the IR after each pass")
	root.PersistentFlags().StringVar(&flagIntMode, "int-mode", "explicit",
		"integer arithmetic promotion mode: explicit, default, or aggressive")
	root.PersistentFlags().BoolVar(&flagNativeD2I, "native-d2i", false,
		"use native double-to-int truncation instead of ECMA ToInt32 semantics")
	root.PersistentFlags().BoolVar(&flagThrowEarly, "throw-early", true,
		"fail compilation immediately on a method body error instead of emitting a throw replacement")
	return root
}

func runCompile(cmd *cobra.Command, args []string) error {
	log, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer log.Sync()

	mode, err := parseIntMode(flagIntMode)
	if err != nil {
		return err
	}

	body, src, handlers, reg, err := loadFixture(args[0])
	if err != nil {
		return err
	}
	reg = registry.NewCachingRegistry(reg, 0)

	cfg := pipeline.Config{
		IntegerArithmeticMode:           mode,
		UseNativeDoubleToIntConversions: flagNativeD2I,
		EnableTracing:                   flagTrace,
		EarlyThrowMethodBodyErrors:      flagThrowEarly,
	}

	res := pipeline.Compile(body, src, handlers, reg, cfg, log)
	if res.Err != nil {
		if ce, ok := pipeline.AsCompileError(res.Err); ok {
			return fmt.Errorf("%s: %s: %s", ce.Category, ce.Kind, ce.Error())
		}
		return res.Err
	}

	fmt.Fprint(cmd.OutOrStdout(), irdump.Func(res.Func))
	return nil
}

func parseIntMode(s string) (pipeline.IntegerArithmeticMode, error) {
	switch s {
	case "explicit":
		return pipeline.ModeExplicitOnly, nil
	case "default":
		return pipeline.ModeDefault, nil
	case "aggressive":
		return pipeline.ModeAggressive, nil
	default:
		return 0, fmt.Errorf("unrecognized --int-mode %q (want explicit, default, or aggressive)", s)
	}
}
