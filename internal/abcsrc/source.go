// Package abcsrc declares the ABC file accessor the pipeline consumes
// (spec.md §1 Out of scope: "ABC file parsing ... is consumed; file format
// parsing is pre-existing"). Only the narrow surface the decoder needs is
// declared here; a real implementation lives outside this module, the same
// way cmd/asm consumes cmd/internal/obj without owning it.
package abcsrc

// ConstKind tags the kind of constant a pool index resolves to.
type ConstKind uint8

const (
	ConstInt ConstKind = iota
	ConstUint
	ConstDouble
	ConstString
	ConstNamespace
	ConstNamespaceSet
	ConstMultiname
)

// Multiname describes one constant-pool multiname entry: its compile-time
// namespace set (possibly empty), its local name (possibly empty when the
// name is runtime-supplied), and whether either component is runtime
// -supplied — the distinctions spec.md §4.4.4 step 1 needs.
type Multiname struct {
	Kind           MultinameKind
	Namespaces     []string // compile-time namespace URIs, if any
	Name           string   // compile-time local name, if any
	HasRuntimeNS   bool
	HasRuntimeName bool
}

// MultinameKind distinguishes the ABC multiname encodings.
type MultinameKind uint8

const (
	MultinameQName MultinameKind = iota
	MultinameRTQName
	MultinameRTQNameL
	MultinameMultiname
	MultinameMultinameL
	MultinameTypename // parameterized (e.g. Vector.<T>)
)

// MethodBody is the byte range and declared limits of one method, the
// decoder's Input per spec.md §4.1.
type MethodBody struct {
	Name       string
	Bytes      []byte
	MaxStack   int32
	MaxScope   int32
	LocalCount int32
	NeedsRest  bool
	SetDXNS    bool
}

// ConstantPool resolves constant-pool indices to their decoded values.
// Index 0 is conventionally invalid in ABC pools; implementations should
// return ok=false for it.
type ConstantPool interface {
	Int(idx int32) (int32, bool)
	UInt(idx int32) (uint32, bool)
	Double(idx int32) (float64, bool)
	String(idx int32) (string, bool)
	Namespace(idx int32) (string, bool)
	Multiname(idx int32) (Multiname, bool)
}

// Source is the full external collaborator the decoder is handed: a
// method's body bytes plus its owning constant pool.
type Source interface {
	Pool() ConstantPool
}
