// Package env assembles a compilation environment: the global scope
// with its primitive types, the operator solver with the default
// operator/converter/indexer registrations, and the id providers for
// symbols and compiler-generated names. Environments are built once per
// compilation and passed explicitly; there are no process-wide
// singletons, which keeps test suites re-entrant.
package env

import (
	"fmt"

	"github.com/notimplife/cels-cc/pkg/scope"
	"github.com/notimplife/cels-cc/pkg/symbols"
)

// Environment is the shared state of one compilation.
type Environment struct {
	Global *scope.Scope
	Ops    *symbols.OperatorSolver

	ScopeNames *scope.NameProvider

	DtypeInt    *symbols.PrimitiveType
	DtypeUint   *symbols.PrimitiveType
	DtypeShort  *symbols.PrimitiveType
	DtypeUshort *symbols.PrimitiveType
	DtypeFloat  *symbols.PrimitiveType
	DtypeBool   *symbols.PrimitiveType
	DtypeString *symbols.PrimitiveType
	DtypeVoid   *symbols.PrimitiveType

	// Callable marker types: only expressions typed with one of these
	// may appear as a call target.
	DtypeFunction       *symbols.PrimitiveType
	DtypeInstanceMethod *symbols.PrimitiveType
	DtypeClosure        *symbols.PrimitiveType

	nextSID      int
	nextInternal int
}

// New builds an environment with the primitive types installed and an
// empty operator solver.
func New() (*Environment, error) {
	e := &Environment{
		Global:     scope.NewRoot(),
		Ops:        symbols.NewOperatorSolver(),
		ScopeNames: &scope.NameProvider{},
	}
	prim := func(name string) (*symbols.PrimitiveType, error) {
		sym, err := e.AddSymbol(e.Global, symbols.NewPrimitiveType(name))
		if err != nil {
			return nil, err
		}
		return sym.(*symbols.PrimitiveType), nil
	}
	var err error
	if e.DtypeInt, err = prim("int"); err != nil {
		return nil, err
	}
	if e.DtypeUint, err = prim("uint"); err != nil {
		return nil, err
	}
	if e.DtypeShort, err = prim("short"); err != nil {
		return nil, err
	}
	if e.DtypeUshort, err = prim("ushort"); err != nil {
		return nil, err
	}
	if e.DtypeFloat, err = prim("float"); err != nil {
		return nil, err
	}
	if e.DtypeBool, err = prim("bool"); err != nil {
		return nil, err
	}
	if e.DtypeString, err = prim("string"); err != nil {
		return nil, err
	}
	if e.DtypeVoid, err = prim("void"); err != nil {
		return nil, err
	}
	if e.DtypeFunction, err = prim("builtin@function"); err != nil {
		return nil, err
	}
	if e.DtypeInstanceMethod, err = prim("builtin@instance_method"); err != nil {
		return nil, err
	}
	if e.DtypeClosure, err = prim("builtin@closure_function"); err != nil {
		return nil, err
	}
	return e, nil
}

// NewDefault builds an environment with the default operators,
// converters and indexer archetypes registered.
func NewDefault() (*Environment, error) {
	e, err := New()
	if err != nil {
		return nil, err
	}
	ops := e.Ops

	arith := []string{"+", "-", "*", "/", "%"}
	compare := []string{"<", "<=", ">", ">=", "==", "!="}

	numeric := []*symbols.PrimitiveType{e.DtypeInt, e.DtypeUint, e.DtypeShort, e.DtypeUshort}
	for _, t := range numeric {
		for _, op := range arith {
			if _, err := ops.RegisterBinary(op, t, t, t); err != nil {
				return nil, err
			}
		}
		for _, op := range compare {
			if _, err := ops.RegisterBinary(op, t, t, e.DtypeBool); err != nil {
				return nil, err
			}
		}
	}
	for _, op := range []string{"+", "-", "*", "/"} {
		if _, err := ops.RegisterBinary(op, e.DtypeFloat, e.DtypeFloat, e.DtypeFloat); err != nil {
			return nil, err
		}
	}
	for _, op := range compare {
		if _, err := ops.RegisterBinary(op, e.DtypeFloat, e.DtypeFloat, e.DtypeBool); err != nil {
			return nil, err
		}
	}
	for _, op := range []string{"==", "!="} {
		if _, err := ops.RegisterBinary(op, e.DtypeBool, e.DtypeBool, e.DtypeBool); err != nil {
			return nil, err
		}
		if _, err := ops.RegisterBinary(op, e.DtypeString, e.DtypeString, e.DtypeBool); err != nil {
			return nil, err
		}
	}
	if _, err := ops.RegisterBinary("+", e.DtypeString, e.DtypeString, e.DtypeString); err != nil {
		return nil, err
	}

	// The token table defines `not` but no and/or keywords, so `not` is
	// the only boolean operator registered here.
	if _, err := ops.RegisterUnary("not", e.DtypeBool, symbols.Prefix, e.DtypeBool); err != nil {
		return nil, err
	}

	if _, err := ops.RegisterConverter(e.DtypeInt, e.DtypeFloat); err != nil {
		return nil, err
	}
	if _, err := ops.RegisterConverter(e.DtypeShort, e.DtypeInt); err != nil {
		return nil, err
	}
	if _, err := ops.RegisterConverter(e.DtypeUshort, e.DtypeInt); err != nil {
		return nil, err
	}
	if _, err := ops.RegisterConverter(e.DtypeUshort, e.DtypeUint); err != nil {
		return nil, err
	}
	if _, err := ops.RegisterConverter(e.DtypeUint, e.DtypeFloat); err != nil {
		return nil, err
	}

	ops.RegisterIndexerArchetype(&symbols.IndexerArchetype{
		Name: "static_array",
		Condition: func(element, key symbols.DataType) bool {
			_, isArray := symbols.IsStaticArray(element)
			return isArray && symbols.Same(key, e.DtypeInt)
		},
		Create: func(arch *symbols.IndexerArchetype, element, key symbols.DataType) *symbols.Indexer {
			arr, _ := symbols.IsStaticArray(element)
			return &symbols.Indexer{Archetype: arch, Element: element, Key: key, Output: arr.Element}
		},
	})

	return e, nil
}

// AddSymbol installs a symbol in s and assigns its sid.
func (e *Environment) AddSymbol(s *scope.Scope, creator func(*scope.Scope) scope.Symbol) (scope.Symbol, error) {
	sym, err := s.AddSymbol(creator)
	if err != nil {
		return nil, err
	}
	e.nextSID++
	sym.AssignSID(e.nextSID)
	return sym, nil
}

// NextInternalID returns the next compiler-internal id, used for
// generated variables and lambda names.
func (e *Environment) NextInternalID() int {
	e.nextInternal++
	return e.nextInternal
}

// InternalVarName generates a fresh name for an extracted temporary.
func (e *Environment) InternalVarName() string {
	return fmt.Sprintf("cels_s%d", e.NextInternalID())
}

// GenerateLambdaFunction creates the synthetic global function symbol
// and overload scope backing a lambda literal.
func (e *Environment) GenerateLambdaFunction() (*symbols.Function, *scope.Scope, error) {
	name := fmt.Sprintf("icels_lambda_%d", e.NextInternalID())
	sym, err := e.AddSymbol(e.Global, symbols.NewFunction(name, nil))
	if err != nil {
		return nil, nil, err
	}
	fn := sym.(*symbols.Function)
	scopeName := fmt.Sprintf("@%s_ov%d", name, fn.OverloadCount()+1)
	s, err := e.Global.GetSubscope(scopeName, scope.Create)
	if err != nil {
		return nil, nil, err
	}
	s.Assoc = fn
	return fn, s, nil
}

// EnumerateSymbols yields every symbol of the compilation in
// declaration order.
func (e *Environment) EnumerateSymbols() []scope.Symbol {
	return e.Global.EnumerateSymbols(true)
}
