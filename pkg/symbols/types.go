// Package symbols defines the data-type algebra and the symbol variants
// the scope tree can hold: primitive and struct types, derived pointer,
// static-array and task types, variables, parameters, fields and
// functions with overload sets, plus the operator/converter solver.
package symbols

import (
	"fmt"

	"github.com/notimplife/cels-cc/pkg/scope"
)

// DataType is any Celesta type. Types are compared by full name, so
// pointer/array/task types are value-equal across scopes.
type DataType interface {
	TypeName() string
	fmt.Stringer
}

// Same reports type equality by full name.
func Same(a, b DataType) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.TypeName() == b.TypeName()
}

// typeName carries the precomputed full name of a derived type.
type typeName struct {
	full string
}

func (t typeName) TypeName() string { return t.full }
func (t typeName) String() string   { return t.full }

// PrimitiveType is a named built-in type symbol: int, uint, short,
// ushort, float, bool, string, void and the synthetic callable markers.
type PrimitiveType struct {
	scope.Base
}

// NewPrimitiveType returns a creator for scope.AddSymbol.
func NewPrimitiveType(name string) func(*scope.Scope) scope.Symbol {
	return func(s *scope.Scope) scope.Symbol {
		p := &PrimitiveType{}
		p.Init(name, s)
		return p
	}
}

func (p *PrimitiveType) TypeName() string { return p.FullName() }
func (p *PrimitiveType) String() string   { return p.FullName() }

// StructType is a named struct with an inner member scope. Member
// order follows symbol sids.
type StructType struct {
	scope.Base
	inner   *scope.Scope
	members []scope.Symbol
}

// NewStructType returns a creator for scope.AddSymbol.
func NewStructType(name string) func(*scope.Scope) scope.Symbol {
	return func(s *scope.Scope) scope.Symbol {
		t := &StructType{}
		t.Init(name, s)
		return t
	}
}

func (t *StructType) TypeName() string { return t.FullName() }
func (t *StructType) String() string   { return t.FullName() }

// OwnsScope marks the struct as the legitimate owner of the scope
// sharing its name.
func (t *StructType) OwnsScope() {}

// InnerScope returns the member scope, nil until associated.
func (t *StructType) InnerScope() *scope.Scope { return t.inner }

// SetInnerScope associates the member scope.
func (t *StructType) SetInnerScope(s *scope.Scope) { t.inner = s }

// AddMember records a field or method symbol.
func (t *StructType) AddMember(sym scope.Symbol) {
	for _, m := range t.members {
		if m == sym {
			return
		}
	}
	t.members = append(t.members, sym)
}

// Members returns the member symbols.
func (t *StructType) Members() []scope.Symbol { return t.members }

// PointerType is the anonymous derived type T*.
type PointerType struct {
	typeName
	Element DataType
}

// MakePointer derives T*.
func MakePointer(element DataType) *PointerType {
	return &PointerType{typeName: typeName{element.TypeName() + "*"}, Element: element}
}

// StaticArrayType is the anonymous derived type T[n].
type StaticArrayType struct {
	typeName
	Element DataType
	Length  int
}

// MakeArray derives T[n].
func MakeArray(element DataType, length int) *StaticArrayType {
	return &StaticArrayType{
		typeName: typeName{fmt.Sprintf("%s[%d]", element.TypeName(), length)},
		Element:  element,
		Length:   length,
	}
}

// TaskType is the anonymous derived type task<T> produced by taskstart.
type TaskType struct {
	typeName
	Element DataType
}

// MakeTask derives task<T>.
func MakeTask(element DataType) *TaskType {
	return &TaskType{typeName: typeName{"task<" + element.TypeName() + ">"}, Element: element}
}

// IsPointer reports whether t is a pointer type, returning its element.
func IsPointer(t DataType) (*PointerType, bool) {
	p, ok := t.(*PointerType)
	return p, ok
}

// IsStaticArray reports whether t is a static array type.
func IsStaticArray(t DataType) (*StaticArrayType, bool) {
	a, ok := t.(*StaticArrayType)
	return a, ok
}

// IsTask reports whether t is a task type.
func IsTask(t DataType) (*TaskType, bool) {
	tt, ok := t.(*TaskType)
	return tt, ok
}

// IsStruct reports whether t is a struct type.
func IsStruct(t DataType) (*StructType, bool) {
	s, ok := t.(*StructType)
	return s, ok
}
