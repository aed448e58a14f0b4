// Package registry declares the class/trait registry the pipeline consumes
// as a read-only symbol table keyed by multiname (spec.md §1 Out of scope,
// §6 Consumed). It also provides StaticRegistry, an in-memory
// implementation used by tests and by cmd/methodc's fixtures — never by
// the real compiler, which would be handed a registry backed by the
// loaded application domain.
package registry

import "sync"

// Trait is the common shape of a class member: field, method, or
// accessor pair. The binder only needs to know its declared type and
// whether it is static; everything else is opaque to this module (spec.md
// §1 Out of scope).
type Trait interface {
	Name() string
	IsStatic() bool
	DeclaredType() *Class
}

// MethodTrait is a Trait that is callable; the binder consults
// RequiredArgs/HasRest to validate constructor and call argument counts
// (spec.md §4.4.4 "Constructor call").
type MethodTrait interface {
	Trait
	RequiredArgs() int
	DeclaredArgs() int
	HasRest() bool
}

// FieldTrait is a Trait backing a plain data member.
type FieldTrait interface {
	Trait
}

// Class is an opaque class/interface handle. IsInterface/IsDynamic/IsFinal
// are the three bits the lattice join rule and property resolution need
// (spec.md §4.4.1, §4.4.4).
type Class struct {
	Name        string
	Parent      *Class
	IsInterface bool
	Implements  []*Class
	IsDynamic   bool
	IsFinal     bool

	// Constructor is the class's instance constructor, or nil when the
	// class has none; construct/constructprop argument counts are
	// validated against it (spec.md §4.4.4 "Constructor call").
	Constructor MethodTrait

	staticTraits   map[string]Trait
	instanceTraits map[string]Trait
}

// NewClass constructs a Class handle. Traits are added with AddTrait.
func NewClass(name string, parent *Class) *Class {
	return &Class{Name: name, Parent: parent,
		staticTraits: map[string]Trait{}, instanceTraits: map[string]Trait{}}
}

// AddTrait registers a trait under its name in either the static or
// instance trait table.
func (c *Class) AddTrait(t Trait) {
	if t.IsStatic() {
		c.staticTraits[t.Name()] = t
	} else {
		c.instanceTraits[t.Name()] = t
	}
}

// LookupTrait searches this class (not its ancestors) for a trait by
// unqualified name, per spec.md §6's class.lookup_trait.
func (c *Class) LookupTrait(name string, isStatic bool) (Trait, bool) {
	if isStatic {
		t, ok := c.staticTraits[name]
		return t, ok
	}
	t, ok := c.instanceTraits[name]
	return t, ok
}

// IsSubtypeOf reports whether c is s or a descendant/implementor of s,
// walking the parent chain and interface list — the primitive the lca
// computation in spec.md §4.4.1 is built from.
func (c *Class) IsSubtypeOf(s *Class) bool {
	for cur := c; cur != nil; cur = cur.Parent {
		if cur == s {
			return true
		}
		for _, iface := range cur.Implements {
			if iface == s || iface.IsSubtypeOf(s) {
				return true
			}
		}
	}
	return false
}

// Registry is the narrow external-collaborator surface the binder needs,
// matching spec.md §6's four Consumed operations.
type Registry interface {
	ClassForMultiname(namespaces []string, name string) (*Class, bool)
	ClassForClassInfoIndex(idx int32) (*Class, bool)
	MethodForMethodInfoIndex(idx int32) (MethodTrait, bool)
	GlobalLookup(namespaces []string, name string) (Trait, bool)
	RootObjectClass() *Class
}

// StaticRegistry is an in-memory Registry backed by plain maps, guarded by
// a single mutex held only for the duration of one lookup (spec.md §5:
// "The lock must be held for the duration of a single lookup"). Lookups
// return pointers (*Class) that remain valid for the process lifetime,
// satisfying "returns pointers into long-lived structures that remain
// valid for the method's compilation lifetime" trivially since nothing is
// ever evicted from a StaticRegistry.
type StaticRegistry struct {
	mu         sync.Mutex
	byName     map[string]*Class
	byInfoIdx  map[int32]*Class
	methods    map[int32]MethodTrait
	globals    map[string]Trait
	rootObject *Class
}

// NewStaticRegistry builds an empty registry; root is the class used as
// the "root object class" join target in spec.md §4.4.1's lattice table.
func NewStaticRegistry(root *Class) *StaticRegistry {
	return &StaticRegistry{
		byName: map[string]*Class{}, byInfoIdx: map[int32]*Class{},
		methods: map[int32]MethodTrait{}, globals: map[string]Trait{},
		rootObject: root,
	}
}

// RegisterClass makes c resolvable both by qualified name and by a
// class-info pool index.
func (r *StaticRegistry) RegisterClass(infoIdx int32, c *Class) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[c.Name] = c
	r.byInfoIdx[infoIdx] = c
}

// RegisterMethod makes m resolvable by a method-info pool index.
func (r *StaticRegistry) RegisterMethod(infoIdx int32, m MethodTrait) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.methods[infoIdx] = m
}

// RegisterGlobal makes t resolvable as an application-domain global.
func (r *StaticRegistry) RegisterGlobal(name string, t Trait) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.globals[name] = t
}

func (r *StaticRegistry) ClassForMultiname(_ []string, name string) (*Class, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byName[name]
	return c, ok
}

func (r *StaticRegistry) ClassForClassInfoIndex(idx int32) (*Class, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byInfoIdx[idx]
	return c, ok
}

func (r *StaticRegistry) MethodForMethodInfoIndex(idx int32) (MethodTrait, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.methods[idx]
	return m, ok
}

func (r *StaticRegistry) GlobalLookup(_ []string, name string) (Trait, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.globals[name]
	return t, ok
}

func (r *StaticRegistry) RootObjectClass() *Class { return r.rootObject }

// ConstructorAccepts reports whether constructing c with argc arguments
// binds statically: the constructor must exist and argc must fall in
// [required, hasRest ? ∞ : declared] (spec.md §4.4.4 "Constructor call").
func ConstructorAccepts(c *Class, argc int) bool {
	m := c.Constructor
	if m == nil {
		return false
	}
	if argc < m.RequiredArgs() {
		return false
	}
	return m.HasRest() || argc <= m.DeclaredArgs()
}

// LCA walks both parent chains to find the least common ancestor class,
// per spec.md §4.4.1's join rule for object(C1) ⊔ object(C2). If either
// side is an interface and neither is a subtype of the other, the caller
// should fall back to the root object class per the spec's rule — LCA
// itself returns (nil, false) in that case so the caller can apply that
// policy without LCA needing the registry's root handle.
func LCA(a, b *Class) (*Class, bool) {
	if a == nil || b == nil {
		return nil, false
	}
	if a.IsSubtypeOf(b) {
		return b, true
	}
	if b.IsSubtypeOf(a) {
		return a, true
	}
	if a.IsInterface || b.IsInterface {
		return nil, false
	}
	ancestors := map[*Class]bool{}
	for cur := a; cur != nil; cur = cur.Parent {
		ancestors[cur] = true
	}
	for cur := b; cur != nil; cur = cur.Parent {
		if ancestors[cur] {
			return cur, true
		}
	}
	return nil, false
}
