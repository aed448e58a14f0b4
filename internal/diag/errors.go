// Package diag implements the four compile-error categories of spec.md §7:
// verify, type, reference, and argument errors. Each carries the method
// name and instruction byte offset plus kind-specific fields, and is
// wrapped with github.com/cockroachdb/errors at the point of origin so a
// failure surfaces with a stack trace the way the teacher's
// cmd/asm/internal/asm/parse.go errorf attaches file:line context — here
// done as structured fields instead of a formatted string, since callers
// (internal/pipeline) need to inspect the Kind programmatically to decide
// the early-throw-vs-deferred policy of spec.md §7.
package diag

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Category distinguishes the four error families of spec.md §7.
type Category uint8

const (
	CategoryVerify Category = iota
	CategoryType
	CategoryReference
	CategoryArgument
)

func (c Category) String() string {
	switch c {
	case CategoryVerify:
		return "verify"
	case CategoryType:
		return "type"
	case CategoryReference:
		return "reference"
	case CategoryArgument:
		return "argument"
	default:
		return "error"
	}
}

// Kind enumerates the specific error conditions named across spec.md
// §4.1–§4.4 and §7.
type Kind string

const (
	KindABCCorrupt            Kind = "ABC_CORRUPT"
	KindBranchOffsetInvalid   Kind = "BRANCH_OFFSET_INVALID"
	KindIllegalOpcode         Kind = "ILLEGAL_OPCODE"
	KindCodeFalloff           Kind = "CODE_FALLOFF"
	KindEHRangeInvalid        Kind = "EH_RANGE_INVALID"
	KindStackOverflow         Kind = "STACK_OVERFLOW"
	KindStackUnderflow        Kind = "STACK_UNDERFLOW"
	KindScopeStackOverflow    Kind = "SCOPE_STACK_OVERFLOW"
	KindScopeStackUnderflow   Kind = "SCOPE_STACK_UNDERFLOW"
	KindStackDepthUnbalanced  Kind = "STACK_DEPTH_UNBALANCED"
	KindIllegalRegisterAccess Kind = "ILLEGAL_REGISTER_ACCESS"
	KindIllegalMultinameUse   Kind = "ILLEGAL_MULTINAME_USE"
	KindIllegalSuperExpr      Kind = "ILLEGAL_SUPER_EXPR"
	KindIllegalEarlyBinding   Kind = "ILLEGAL_EARLY_BINDING"
	KindIllegalNewClassBase   Kind = "ILLEGAL_NEWCLASS_BASE"
	KindDXNSWithoutFlag       Kind = "DXNS_WITHOUT_SET_DXNS_FLAG"
	KindMultinameKindMisuse   Kind = "MULTINAME_KIND_MISUSE"
	KindTraitNotFound         Kind = "TRAIT_NOT_FOUND"
	KindInvalidConfigValue    Kind = "INVALID_CONFIG_VALUE"
)

// CompileError is the common shape of every error this package produces.
type CompileError struct {
	Category Category
	Kind     Kind

	Method string
	Offset int32 // byte offset of the offending instruction, -1 if n/a

	// Detail carries kind-specific integers/strings, e.g. the illegal
	// opcode value or the mismatched stack depths (spec.md §7: "Each
	// carries method name, instruction byte offset, and kind-specific
	// integers/strings").
	Detail map[string]any

	cause error
}

func (e *CompileError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("%s: %s error %s at offset %d: %v", e.Method, e.Category, e.Kind, e.Offset, e.detailOrNil())
	}
	return fmt.Sprintf("%s: %s error %s: %v", e.Method, e.Category, e.Kind, e.detailOrNil())
}

func (e *CompileError) detailOrNil() map[string]any {
	if len(e.Detail) == 0 {
		return nil
	}
	return e.Detail
}

func (e *CompileError) Unwrap() error { return e.cause }

// New builds a CompileError wrapped with a captured stack trace, the way
// the pack's cockroachdb/errors-based compilers (ARR4N-specops,
// ethereum-go-ethereum) attach provenance to structured errors.
func New(cat Category, kind Kind, method string, offset int32, detail map[string]any) error {
	ce := &CompileError{Category: cat, Kind: kind, Method: method, Offset: offset, Detail: detail}
	return errors.WithStackDepth(ce, 1)
}

// Verify builds a verify-category error (spec.md §7: stack/scope depth,
// illegal opcode, branch target, register access, exception ranges, ...).
func Verify(kind Kind, method string, offset int32, detail map[string]any) error {
	return New(CategoryVerify, kind, method, offset, detail)
}

// Type builds a type-category error. Per spec.md §7 these arise only from
// multiname-kind misuse and dxns-without-SET_DXNS.
func Type(kind Kind, method string, offset int32, detail map[string]any) error {
	return New(CategoryType, kind, method, offset, detail)
}

// Reference builds a reference-category error: compile-time only when a
// trait cannot be located under mandatory early binding.
func Reference(kind Kind, method string, offset int32, detail map[string]any) error {
	return New(CategoryReference, kind, method, offset, detail)
}

// Argument builds an argument-category error: invalid configuration values.
func Argument(detail map[string]any) error {
	return New(CategoryArgument, KindInvalidConfigValue, "", -1, detail)
}

// As recovers the *CompileError from a (possibly wrapped) error, mirroring
// the standard errors.As but routed through cockroachdb/errors so it also
// unwraps the stack-trace wrapper New attaches.
func As(err error) (*CompileError, bool) {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
