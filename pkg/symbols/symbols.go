package symbols

import (
	"fmt"
	"strings"

	"github.com/notimplife/cels-cc/pkg/diag"
	"github.com/notimplife/cels-cc/pkg/scope"
)

// Variable is a local or global variable.
type Variable struct {
	scope.Base
	Type DataType
}

// NewVariable returns a creator for scope.AddSymbol.
func NewVariable(name string, t DataType) func(*scope.Scope) scope.Symbol {
	return func(s *scope.Scope) scope.Symbol {
		v := &Variable{Type: t}
		v.Init(name, s)
		return v
	}
}

// FormalParameter is a function or lambda parameter.
type FormalParameter struct {
	scope.Base
	Type DataType
}

// NewFormalParameter returns a creator for scope.AddSymbol.
func NewFormalParameter(name string, t DataType) func(*scope.Scope) scope.Symbol {
	return func(s *scope.Scope) scope.Symbol {
		p := &FormalParameter{Type: t}
		p.Init(name, s)
		return p
	}
}

// Field is a struct member variable.
type Field struct {
	scope.Base
	Type      DataType
	Declaring *StructType
}

// NewField returns a creator for scope.AddSymbol; the scope must be a
// struct's inner scope.
func NewField(name string, t DataType) func(*scope.Scope) scope.Symbol {
	return func(s *scope.Scope) scope.Symbol {
		f := &Field{Type: t}
		if st, ok := s.Assoc.(*StructType); ok {
			f.Declaring = st
		}
		f.Init(name, s)
		return f
	}
}

// DataTypeOf returns the declared type of value-bearing symbols, nil
// for others.
func DataTypeOf(sym scope.Symbol) DataType {
	switch v := sym.(type) {
	case *Variable:
		return v.Type
	case *FormalParameter:
		return v.Type
	case *Field:
		return v.Type
	default:
		return nil
	}
}

// FunctionOverload is one concrete signature of a Function. The
// implementation is an AST block owned by the overload (typed loosely
// to keep the symbol model independent of the AST package).
type FunctionOverload struct {
	Func           *Function
	Params         []*FormalParameter
	ReturnType     DataType
	Implementation any
	IsMultiframe   bool
	IsExtern       bool
	CppInclude     string // empty when absent
	// OwnScope is the overload's parameter scope (@name_ov<n>).
	OwnScope *scope.Scope
}

func (o *FunctionOverload) String() string {
	params := make([]string, len(o.Params))
	for i, p := range o.Params {
		params[i] = fmt.Sprintf("%s:%s", p.Name(), p.Type)
	}
	return fmt.Sprintf("%s(%s):%s", o.Func.FullName(), strings.Join(params, ", "), o.ReturnType)
}

// signature is the parameter-type sequence used for overload identity.
func (o *FunctionOverload) signature() string {
	parts := make([]string, len(o.Params))
	for i, p := range o.Params {
		parts[i] = p.Type.TypeName()
	}
	return strings.Join(parts, ",")
}

// Function is a named overload set, optionally a method of a declaring
// type.
type Function struct {
	scope.Base
	Declaring DataType // non-nil for methods
	overloads []*FunctionOverload
}

// NewFunction returns a creator for scope.AddSymbol.
func NewFunction(name string, declaring DataType) func(*scope.Scope) scope.Symbol {
	return func(s *scope.Scope) scope.Symbol {
		f := &Function{Declaring: declaring}
		f.Init(name, s)
		return f
	}
}

// IsMethod reports whether the function has a declaring type.
func (f *Function) IsMethod() bool { return f.Declaring != nil }

// Overloads returns the overload set in declaration order.
func (f *Function) Overloads() []*FunctionOverload { return f.overloads }

// OverloadCount returns the number of registered overloads.
func (f *Function) OverloadCount() int { return len(f.overloads) }

// AddOverload registers an overload; two overloads of one function must
// differ in their parameter-type sequence.
func (f *Function) AddOverload(o *FunctionOverload) (*FunctionOverload, error) {
	o.Func = f
	for _, existing := range f.overloads {
		if existing.signature() == o.signature() {
			return nil, diag.Errorf(diag.Type, "function overload already exists: %s", o)
		}
	}
	f.overloads = append(f.overloads, o)
	return o, nil
}
