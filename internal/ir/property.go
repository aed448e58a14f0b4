package ir

// ResolvedKind classifies how a property access was bound, per spec.md
// §4.4.4.
type ResolvedKind uint8

const (
	ResolvedNone ResolvedKind = iota
	ResolvedTrait
	ResolvedIntrinsic
	ResolvedIndex
	ResolvedTraitRTInvoke
	ResolvedRuntime
)

func (k ResolvedKind) String() string {
	switch k {
	case ResolvedTrait:
		return "trait"
	case ResolvedIntrinsic:
		return "intrinsic"
	case ResolvedIndex:
		return "index"
	case ResolvedTraitRTInvoke:
		return "trait-rt-invoke"
	case ResolvedRuntime:
		return "runtime"
	default:
		return "none"
	}
}

// IntrinsicTag names a recognized built-in with a specialized emission
// path, per spec.md §4.4.4's "Intrinsic recognition examples".
type IntrinsicTag uint8

const (
	IntrinsicNone IntrinsicTag = iota
	IntrinsicMathMin
	IntrinsicMathMax
	IntrinsicStringCharAt
	IntrinsicStringCharCodeAt
	IntrinsicArrayPush
	IntrinsicPrimitiveConvert
	IntrinsicCharAtCompare    // §4.4.5 fusion: charAt(i) == "x"
	IntrinsicCharCodeAtCompare // §4.4.5 fusion: charCodeAt(i) == code
)

// ResolvedProperty is the per-access binding decision record of spec.md
// §4.4.4, allocated once per instruction and reused across binder visits
// when the fast-path conditions hold.
type ResolvedProperty struct {
	Kind ResolvedKind

	// Trait is an opaque registry.Trait/registry.MethodTrait/
	// registry.FieldTrait handle; the registry package, not this one, owns
	// its shape (spec.md §1 Out of scope).
	Trait interface{}

	Intrinsic IntrinsicTag

	// IndexAccessor names which numeric-indexed accessor was selected
	// (e.g. "Vector.<int>.$index"); left as a string tag since the accessor
	// table belongs to the registry/runtime collaborators. IndexElem is the
	// element type the accessor reads/writes, which is what the pushed node
	// gets typed as.
	IndexAccessor string
	IndexElem     DataType

	// last-visit memo for the fast path in spec.md §4.4.4: "unchanged
	// since the last visit" is checked against these two fields.
	lastObjectType  DataType
	lastObjectClass interface{}
}

// FastPathHit reports whether the object node's type/class are unchanged
// since the last resolution, letting the binder skip full re-resolution.
func (rp *ResolvedProperty) FastPathHit(objType DataType, objClass interface{}) bool {
	return rp.Kind != ResolvedNone && rp.lastObjectType == objType && rp.lastObjectClass == objClass
}

// Remember records the object node's type/class for the next FastPathHit
// check.
func (rp *ResolvedProperty) Remember(objType DataType, objClass interface{}) {
	rp.lastObjectType, rp.lastObjectClass = objType, objClass
}
