package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notimplife/cels-cc/pkg/diag"
)

// testSymbol is a minimal symbol for scope tests.
type testSymbol struct {
	Base
}

func newTestSymbol(name string) func(*Scope) Symbol {
	return func(s *Scope) Symbol {
		sym := &testSymbol{}
		sym.Init(name, s)
		return sym
	}
}

// ownerSymbol owns a scope of its own name, like struct types do.
type ownerSymbol struct {
	Base
}

func (*ownerSymbol) OwnsScope() {}

func newOwnerSymbol(name string) func(*Scope) Symbol {
	return func(s *Scope) Symbol {
		sym := &ownerSymbol{}
		sym.Init(name, s)
		return sym
	}
}

func TestFullNames(t *testing.T) {
	root := NewRoot()
	s, err := root.GetSubscope("a::b", GetOrCreate)
	require.NoError(t, err)
	assert.Equal(t, "::a::b", s.FullName())
	assert.Equal(t, []string{"", "a", "b"}, s.Path())

	sym, err := s.AddSymbol(newTestSymbol("x"))
	require.NoError(t, err)
	assert.Equal(t, "::a::b::x", sym.FullName())
}

func TestGetSubscopeStrategies(t *testing.T) {
	root := NewRoot()
	_, err := root.GetSubscope("pkg", Get)
	require.Error(t, err, "Get must not create")

	created, err := root.GetSubscope("pkg", Create)
	require.NoError(t, err)

	_, err = root.GetSubscope("pkg", Create)
	require.Error(t, err, "Create must not reuse")

	got, err := root.GetSubscope("pkg", GetOrCreate)
	require.NoError(t, err)
	assert.Same(t, created, got)
}

func TestScopeSymbolCollision(t *testing.T) {
	root := NewRoot()
	_, err := root.AddSymbol(newTestSymbol("x"))
	require.NoError(t, err)
	_, err = root.GetSubscope("x", Create)
	require.Error(t, err, "a scope may not shadow a plain symbol")

	_, err = root.AddSymbol(newOwnerSymbol("S"))
	require.NoError(t, err)
	_, err = root.GetSubscope("S", Create)
	assert.NoError(t, err, "scope-owning symbols share their name with their scope")
}

func TestDuplicateSymbolRejected(t *testing.T) {
	root := NewRoot()
	_, err := root.AddSymbol(newTestSymbol("x"))
	require.NoError(t, err)
	_, err = root.AddSymbol(newTestSymbol("x"))
	require.Error(t, err)
	assert.True(t, diag.IsKind(err, diag.Scope))
}

func TestResolveShadowing(t *testing.T) {
	root := NewRoot()
	outer, err := root.AddSymbol(newTestSymbol("x"))
	require.NoError(t, err)

	inner, err := root.GetSubscope("f", Create)
	require.NoError(t, err)
	shadow, err := inner.AddSymbol(newTestSymbol("x"))
	require.NoError(t, err)

	// The nearest scope wins.
	got, err := inner.Resolve("x")
	require.NoError(t, err)
	assert.Same(t, shadow, got)

	got, err = root.Resolve("x")
	require.NoError(t, err)
	assert.Same(t, outer, got)
}

func TestResolvePath(t *testing.T) {
	root := NewRoot()
	pkg, err := root.GetSubscope("pkg::sub", GetOrCreate)
	require.NoError(t, err)
	sym, err := pkg.AddSymbol(newTestSymbol("v"))
	require.NoError(t, err)

	// A qualified path resolves from an unrelated scope via the parent
	// chain.
	other, err := root.GetSubscope("other", Create)
	require.NoError(t, err)
	got, err := other.Resolve("pkg::sub::v")
	require.NoError(t, err)
	assert.Same(t, sym, got)

	_, err = other.Resolve("pkg::missing::v")
	require.Error(t, err)
	assert.True(t, diag.IsKind(err, diag.Scope))
}

func TestVisibleScopes(t *testing.T) {
	root := NewRoot()
	lib, err := root.GetSubscope("lib", Create)
	require.NoError(t, err)
	sym, err := lib.AddSymbol(newTestSymbol("helper"))
	require.NoError(t, err)

	user, err := root.GetSubscope("user", Create)
	require.NoError(t, err)
	_, err = user.Resolve("helper")
	require.Error(t, err)

	user.AddVisibleScope(lib)
	got, err := user.Resolve("helper")
	require.NoError(t, err)
	assert.Same(t, sym, got)
}

func TestTryResolveImmediate(t *testing.T) {
	root := NewRoot()
	sym, err := root.AddSymbol(newTestSymbol("x"))
	require.NoError(t, err)

	got, err := root.TryResolveImmediate("x")
	require.NoError(t, err)
	assert.Same(t, sym, got)

	got, err = root.TryResolveImmediate("y")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStack(t *testing.T) {
	root := NewRoot()
	st := NewStack(root)
	assert.Same(t, root, st.Peek())

	s, err := st.Push("a", Create)
	require.NoError(t, err)
	assert.Same(t, s, st.Peek())

	popped, err := st.Pop()
	require.NoError(t, err)
	assert.Same(t, s, popped)
	assert.Same(t, root, st.Peek())

	_, err = st.Pop()
	assert.Error(t, err, "the global scope never pops")
}

func TestEnumerateSymbolsRecursive(t *testing.T) {
	root := NewRoot()
	_, err := root.AddSymbol(newTestSymbol("a"))
	require.NoError(t, err)
	sub, err := root.GetSubscope("s", Create)
	require.NoError(t, err)
	_, err = sub.AddSymbol(newTestSymbol("b"))
	require.NoError(t, err)

	assert.Len(t, root.EnumerateSymbols(false), 1)
	assert.Len(t, root.EnumerateSymbols(true), 2)
}

func TestNameProvider(t *testing.T) {
	p := &NameProvider{}
	assert.Equal(t, "@1", p.NewName())
	assert.Equal(t, "@2", p.NewName())
}
