package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notimplife/cels-cc/pkg/symbols"
)

func TestPrimitivesResolvable(t *testing.T) {
	e, err := New()
	require.NoError(t, err)

	for _, name := range []string{"int", "uint", "short", "ushort", "float", "bool", "string", "void"} {
		sym, err := e.Global.Resolve(name)
		require.NoError(t, err, "primitive %s", name)
		_, ok := sym.(*symbols.PrimitiveType)
		assert.True(t, ok)
	}
}

func TestDefaultOperators(t *testing.T) {
	e, err := NewDefault()
	require.NoError(t, err)

	op, err := e.Ops.ResolveBinary("+", e.DtypeInt, e.DtypeInt)
	require.NoError(t, err)
	assert.True(t, symbols.Same(op.Result, e.DtypeInt))

	cmp, err := e.Ops.ResolveBinary("<", e.DtypeInt, e.DtypeInt)
	require.NoError(t, err)
	assert.True(t, symbols.Same(cmp.Result, e.DtypeBool))

	_, err = e.Ops.ResolveBinary("%", e.DtypeFloat, e.DtypeFloat)
	assert.Error(t, err, "no float modulo")

	not, err := e.Ops.ResolveUnary("not", e.DtypeBool, symbols.Prefix)
	require.NoError(t, err)
	assert.True(t, symbols.Same(not.Result, e.DtypeBool))

	// and/or have no lexical tokens, so the environment does not define
	// them.
	_, err = e.Ops.ResolveBinary("and", e.DtypeBool, e.DtypeBool)
	assert.Error(t, err)
}

func TestDefaultConverters(t *testing.T) {
	e, err := NewDefault()
	require.NoError(t, err)
	assert.True(t, e.Ops.CanConvert(e.DtypeInt, e.DtypeFloat))
	assert.True(t, e.Ops.CanConvert(e.DtypeShort, e.DtypeInt))
	assert.False(t, e.Ops.CanConvert(e.DtypeFloat, e.DtypeInt))
}

func TestArrayIndexer(t *testing.T) {
	e, err := NewDefault()
	require.NoError(t, err)

	arr := symbols.MakeArray(e.DtypeFloat, 8)
	ix, err := e.Ops.ResolveIndexer(arr, e.DtypeInt, e.DtypeInt)
	require.NoError(t, err)
	assert.True(t, symbols.Same(ix.Output, e.DtypeFloat))

	_, err = e.Ops.ResolveIndexer(arr, e.DtypeFloat, e.DtypeInt)
	assert.Error(t, err, "arrays index by int only")
}

func TestSIDsMonotonic(t *testing.T) {
	e, err := New()
	require.NoError(t, err)
	a, err := e.AddSymbol(e.Global, symbols.NewVariable("a", e.DtypeInt))
	require.NoError(t, err)
	b, err := e.AddSymbol(e.Global, symbols.NewVariable("b", e.DtypeInt))
	require.NoError(t, err)
	assert.Greater(t, b.SID(), a.SID())
}

func TestEnvironmentsAreIndependent(t *testing.T) {
	e1, err := NewDefault()
	require.NoError(t, err)
	e2, err := NewDefault()
	require.NoError(t, err)

	_, err = e1.AddSymbol(e1.Global, symbols.NewVariable("only_in_e1", e1.DtypeInt))
	require.NoError(t, err)

	_, err = e2.Global.Resolve("only_in_e1")
	assert.Error(t, err, "environments must not share state")
}

func TestGenerateLambdaFunction(t *testing.T) {
	e, err := NewDefault()
	require.NoError(t, err)
	fn, s, err := e.GenerateLambdaFunction()
	require.NoError(t, err)
	assert.Contains(t, fn.Name(), "icels_lambda_")
	assert.Contains(t, s.Name(), "@"+fn.Name())
	assert.Same(t, fn, s.Assoc)

	fn2, _, err := e.GenerateLambdaFunction()
	require.NoError(t, err)
	assert.NotEqual(t, fn.Name(), fn2.Name())
}

func TestInternalVarNames(t *testing.T) {
	e, err := New()
	require.NoError(t, err)
	n1 := e.InternalVarName()
	n2 := e.InternalVarName()
	assert.Contains(t, n1, "cels_s")
	assert.NotEqual(t, n1, n2)
}
