package symbols

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notimplife/cels-cc/pkg/scope"
)

func primitives(t *testing.T) (*scope.Scope, *PrimitiveType, *PrimitiveType) {
	t.Helper()
	root := scope.NewRoot()
	intSym, err := root.AddSymbol(NewPrimitiveType("int"))
	require.NoError(t, err)
	floatSym, err := root.AddSymbol(NewPrimitiveType("float"))
	require.NoError(t, err)
	return root, intSym.(*PrimitiveType), floatSym.(*PrimitiveType)
}

func TestDataTypeEqualityByFullName(t *testing.T) {
	_, intType, floatType := primitives(t)

	assert.True(t, Same(intType, intType))
	assert.False(t, Same(intType, floatType))

	// Derived types are value-equal across independent derivations.
	assert.True(t, Same(MakePointer(intType), MakePointer(intType)))
	assert.True(t, Same(MakeArray(intType, 4), MakeArray(intType, 4)))
	assert.False(t, Same(MakeArray(intType, 4), MakeArray(intType, 5)))
	assert.True(t, Same(MakeTask(intType), MakeTask(intType)))
	assert.False(t, Same(MakePointer(intType), MakePointer(floatType)))
}

func TestDerivedTypeNames(t *testing.T) {
	_, intType, _ := primitives(t)
	assert.Equal(t, "::int*", MakePointer(intType).TypeName())
	assert.Equal(t, "::int[3]", MakeArray(intType, 3).TypeName())
	assert.Equal(t, "task<::int>", MakeTask(intType).TypeName())
	assert.Equal(t, "::int**", MakePointer(MakePointer(intType)).TypeName())
}

func TestStructMembers(t *testing.T) {
	root, intType, _ := primitives(t)
	sym, err := root.AddSymbol(NewStructType("P"))
	require.NoError(t, err)
	st := sym.(*StructType)

	inner, err := root.GetSubscope("P", scope.Create)
	require.NoError(t, err)
	inner.Assoc = st
	st.SetInnerScope(inner)

	fieldSym, err := inner.AddSymbol(NewField("x", intType))
	require.NoError(t, err)
	field := fieldSym.(*Field)
	assert.Same(t, st, field.Declaring)

	st.AddMember(field)
	st.AddMember(field)
	assert.Len(t, st.Members(), 1, "members deduplicate")
}

func TestOverloadRegistration(t *testing.T) {
	root, intType, floatType := primitives(t)
	fnSym, err := root.AddSymbol(NewFunction("f", nil))
	require.NoError(t, err)
	fn := fnSym.(*Function)

	ovScope, err := root.GetSubscope("@f_ov1", scope.Create)
	require.NoError(t, err)
	p1, err := ovScope.AddSymbol(NewFormalParameter("a", intType))
	require.NoError(t, err)

	_, err = fn.AddOverload(&FunctionOverload{
		Params:     []*FormalParameter{p1.(*FormalParameter)},
		ReturnType: intType,
	})
	require.NoError(t, err)

	// Same parameter-type sequence: rejected even with a different
	// return type.
	ovScope2, err := root.GetSubscope("@f_ov2", scope.Create)
	require.NoError(t, err)
	p2, err := ovScope2.AddSymbol(NewFormalParameter("b", intType))
	require.NoError(t, err)
	_, err = fn.AddOverload(&FunctionOverload{
		Params:     []*FormalParameter{p2.(*FormalParameter)},
		ReturnType: floatType,
	})
	require.Error(t, err)

	// Different parameter types extend the set.
	ovScope3, err := root.GetSubscope("@f_ov3", scope.Create)
	require.NoError(t, err)
	p3, err := ovScope3.AddSymbol(NewFormalParameter("a", floatType))
	require.NoError(t, err)
	_, err = fn.AddOverload(&FunctionOverload{
		Params:     []*FormalParameter{p3.(*FormalParameter)},
		ReturnType: intType,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, fn.OverloadCount())
}

func TestOperatorSolverBinary(t *testing.T) {
	_, intType, floatType := primitives(t)
	s := NewOperatorSolver()

	_, err := s.RegisterBinary("+", intType, intType, intType)
	require.NoError(t, err)
	_, err = s.RegisterBinary("+", intType, intType, intType)
	require.Error(t, err, "duplicate registration rejected")

	op, err := s.ResolveBinary("+", intType, intType)
	require.NoError(t, err)
	assert.True(t, Same(op.Result, intType))

	_, err = s.ResolveBinary("+", intType, floatType)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no definition for")
}

func TestOperatorSolverUnary(t *testing.T) {
	_, intType, _ := primitives(t)
	s := NewOperatorSolver()

	_, err := s.RegisterUnary("-", intType, Prefix, intType)
	require.NoError(t, err)
	_, err = s.RegisterUnary("-", intType, Prefix, intType)
	require.Error(t, err)

	// Fixity is part of the key.
	_, err = s.RegisterUnary("-", intType, Postfix, intType)
	require.NoError(t, err)

	_, err = s.ResolveUnary("-", intType, Prefix)
	assert.NoError(t, err)
}

func TestConverters(t *testing.T) {
	_, intType, floatType := primitives(t)
	s := NewOperatorSolver()

	_, err := s.RegisterConverter(intType, floatType)
	require.NoError(t, err)
	_, err = s.RegisterConverter(intType, floatType)
	require.Error(t, err)

	assert.True(t, s.CanConvert(intType, floatType))
	assert.False(t, s.CanConvert(floatType, intType))

	_, err = s.ResolveConverter(floatType, intType)
	require.Error(t, err)
}

func TestIndexerArchetypeOrder(t *testing.T) {
	_, intType, floatType := primitives(t)
	s := NewOperatorSolver()

	s.RegisterIndexerArchetype(&IndexerArchetype{
		Name:      "first",
		Condition: func(element, key DataType) bool { return true },
		Create: func(arch *IndexerArchetype, element, key DataType) *Indexer {
			return &Indexer{Archetype: arch, Element: element, Key: key, Output: intType}
		},
	})
	s.RegisterIndexerArchetype(&IndexerArchetype{
		Name:      "second",
		Condition: func(element, key DataType) bool { return true },
		Create: func(arch *IndexerArchetype, element, key DataType) *Indexer {
			return &Indexer{Archetype: arch, Element: element, Key: key, Output: floatType}
		},
	})

	ix, err := s.ResolveIndexer(intType, intType, intType)
	require.NoError(t, err)
	assert.Equal(t, "first", ix.Archetype.Name, "registration order wins")
}

func TestPointerIndexerFallback(t *testing.T) {
	_, intType, floatType := primitives(t)
	s := NewOperatorSolver()

	ptr := MakePointer(floatType)
	ix, err := s.ResolveIndexer(ptr, intType, intType)
	require.NoError(t, err)
	assert.True(t, Same(ix.Output, floatType))
	assert.True(t, Same(ix.Key, intType))
	assert.Equal(t, "pointer", ix.Archetype.Name)

	_, err = s.ResolveIndexer(floatType, intType, intType)
	require.Error(t, err, "no indexer for plain primitives")
}
