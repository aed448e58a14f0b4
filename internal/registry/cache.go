package registry

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachingRegistry wraps a Registry with a bounded LRU over its two
// namespace+name keyed lookups, ClassForMultiname and GlobalLookup. A
// StaticRegistry's own maps are already O(1), so the cache earns nothing
// there; it exists for the Registry a real application domain backs,
// where resolving a multiname can walk an import graph. Grounded on
// spec.md's Open Question 1 resolution: a bounded generic-lookup cache
// keyed by the resolved name, sized once and shared by every worker
// (internal/pipeline.Scheduler hands every job the one registry it was
// built with, so a *CachingRegistry passed to it is shared),
// the way nspcc-dev-neo-go's compiler reuses a single
// hashicorp/golang-lru cache across its symbol resolution paths instead
// of growing one unboundedly per compile.
type CachingRegistry struct {
	inner Registry
	cls   *lru.Cache[string, classLookup]
	glob  *lru.Cache[string, globalLookup]
}

type classLookup struct {
	class *Class
	ok    bool
}

type globalLookup struct {
	trait Trait
	ok    bool
}

// NewCachingRegistry wraps inner with two LRU caches of the given size
// (size <= 0 defaults to 1024, comfortably larger than any one method's
// distinct multiname count).
func NewCachingRegistry(inner Registry, size int) *CachingRegistry {
	if size <= 0 {
		size = 1024
	}
	cls, _ := lru.New[string, classLookup](size)
	glob, _ := lru.New[string, globalLookup](size)
	return &CachingRegistry{inner: inner, cls: cls, glob: glob}
}

func lookupKey(namespaces []string, name string) string {
	var b strings.Builder
	for _, ns := range namespaces {
		b.WriteString(ns)
		b.WriteByte('\x00')
	}
	b.WriteString(name)
	return b.String()
}

func (r *CachingRegistry) ClassForMultiname(namespaces []string, name string) (*Class, bool) {
	key := lookupKey(namespaces, name)
	if v, ok := r.cls.Get(key); ok {
		return v.class, v.ok
	}
	c, ok := r.inner.ClassForMultiname(namespaces, name)
	r.cls.Add(key, classLookup{class: c, ok: ok})
	return c, ok
}

func (r *CachingRegistry) ClassForClassInfoIndex(idx int32) (*Class, bool) {
	return r.inner.ClassForClassInfoIndex(idx)
}

func (r *CachingRegistry) MethodForMethodInfoIndex(idx int32) (MethodTrait, bool) {
	return r.inner.MethodForMethodInfoIndex(idx)
}

func (r *CachingRegistry) GlobalLookup(namespaces []string, name string) (Trait, bool) {
	key := lookupKey(namespaces, name)
	if v, ok := r.glob.Get(key); ok {
		return v.trait, v.ok
	}
	t, ok := r.inner.GlobalLookup(namespaces, name)
	r.glob.Add(key, globalLookup{trait: t, ok: ok})
	return t, ok
}

func (r *CachingRegistry) RootObjectClass() *Class { return r.inner.RootObjectClass() }
