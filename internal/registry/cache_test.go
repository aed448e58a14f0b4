package registry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// countingRegistry counts ClassForMultiname/GlobalLookup calls so tests
// can assert the cache actually shields the inner registry from repeat
// lookups.
type countingRegistry struct {
	inner       Registry
	classCalls  int
	globalCalls int
}

func (c *countingRegistry) ClassForMultiname(ns []string, name string) (*Class, bool) {
	c.classCalls++
	return c.inner.ClassForMultiname(ns, name)
}
func (c *countingRegistry) ClassForClassInfoIndex(idx int32) (*Class, bool) {
	return c.inner.ClassForClassInfoIndex(idx)
}
func (c *countingRegistry) MethodForMethodInfoIndex(idx int32) (MethodTrait, bool) {
	return c.inner.MethodForMethodInfoIndex(idx)
}
func (c *countingRegistry) GlobalLookup(ns []string, name string) (Trait, bool) {
	c.globalCalls++
	return c.inner.GlobalLookup(ns, name)
}
func (c *countingRegistry) RootObjectClass() *Class { return c.inner.RootObjectClass() }

func TestCachingRegistryDeduplicatesRepeatedLookups(t *testing.T) {
	root := NewClass("Object", nil)
	base := NewStaticRegistry(root)
	foo := NewClass("Foo", root)
	base.RegisterClass(1, foo)
	base.RegisterGlobal("trace", stubField{name: "trace", static: true})

	counting := &countingRegistry{inner: base}
	cached := NewCachingRegistry(counting, 0)

	for i := 0; i < 5; i++ {
		c, ok := cached.ClassForMultiname([]string{"ns"}, "Foo")
		require.True(t, ok)
		require.Equal(t, foo, c)
	}
	require.Equal(t, 1, counting.classCalls)

	for i := 0; i < 5; i++ {
		g, ok := cached.GlobalLookup(nil, "trace")
		require.True(t, ok)
		require.Equal(t, "trace", g.Name())
	}
	require.Equal(t, 1, counting.globalCalls)

	require.Equal(t, root, cached.RootObjectClass())
}

func TestCachingRegistryCachesMisses(t *testing.T) {
	root := NewClass("Object", nil)
	base := NewStaticRegistry(root)
	counting := &countingRegistry{inner: base}
	cached := NewCachingRegistry(counting, 0)

	_, ok := cached.ClassForMultiname(nil, "Missing")
	require.False(t, ok)
	_, ok = cached.ClassForMultiname(nil, "Missing")
	require.False(t, ok)
	require.Equal(t, 1, counting.classCalls)
}
