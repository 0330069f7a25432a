// Package scope implements the hierarchical scope tree. A scope owns
// ordered child scopes and ordered child symbols, plus a set of visible
// scopes for using-like injection. Full names join path components with
// the `::` separator.
package scope

import (
	"fmt"
	"sort"
	"strings"

	"github.com/notimplife/cels-cc/pkg/diag"
)

// Separator joins scope path components in full names.
const Separator = "::"

// Symbol is anything a scope can hold: types, variables, parameters,
// fields, functions. Concrete symbols embed Base.
type Symbol interface {
	Name() string
	FullName() string
	Scope() *Scope
	SID() int
	AssignSID(int)
}

// Base carries the common symbol state; embed it in concrete symbols
// and initialise it with Init.
type Base struct {
	name     string
	scope    *Scope
	fullName string
	sid      int
}

// Init wires a symbol base into its owning scope.
func (b *Base) Init(name string, s *Scope) {
	b.name = name
	b.scope = s
	b.fullName = s.FullName() + Separator + name
}

func (b *Base) Name() string     { return b.name }
func (b *Base) FullName() string { return b.fullName }
func (b *Base) Scope() *Scope    { return b.scope }
func (b *Base) SID() int         { return b.sid }
func (b *Base) AssignSID(id int) { b.sid = id }

// ScopeOwner marks symbols that legitimately own a scope of their own
// name, such as struct types with their member scope.
type ScopeOwner interface {
	OwnsScope()
}

// IsInScope reports whether the symbol's scope is s or a descendant of
// s.
func IsInScope(sym Symbol, s *Scope) bool {
	for cur := sym.Scope(); cur != nil; cur = cur.Parent() {
		if cur == s {
			return true
		}
	}
	return false
}

// ResolveStrategy selects get-or-create behaviour for GetSubscope.
type ResolveStrategy uint8

const (
	// Get only finds existing scopes.
	Get ResolveStrategy = 1 << iota
	// Create only creates fresh scopes.
	Create
	// GetOrCreate finds or creates.
	GetOrCreate = Get | Create
)

// Scope is one node of the scope tree.
type Scope struct {
	name         string
	parent       *Scope
	childScopes  []*Scope
	childSymbols []Symbol
	visible      []*Scope

	fullName string

	// IsPackage marks scopes introduced by package declarations; the
	// emitter maps them to C++ namespaces.
	IsPackage bool
	// Assoc is the symbol this scope belongs to (a struct type or a
	// function overload's owner), when any.
	Assoc Symbol
}

// NewRoot returns a fresh root scope (empty name).
func NewRoot() *Scope {
	return &Scope{}
}

func (s *Scope) Name() string   { return s.name }
func (s *Scope) Parent() *Scope { return s.parent }

// FullName returns the `::`-joined path from the root.
func (s *Scope) FullName() string { return s.fullName }

// Path returns the name components from the root down to s.
func (s *Scope) Path() []string {
	var path []string
	for cur := s; cur != nil; cur = cur.parent {
		path = append(path, cur.name)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// Subscopes returns the child scopes in declaration order.
func (s *Scope) Subscopes() []*Scope { return s.childScopes }

// Symbols returns the child symbols in declaration order.
func (s *Scope) Symbols() []Symbol { return s.childSymbols }

// SymbolsBySID returns the child symbols ordered by sid.
func (s *Scope) SymbolsBySID() []Symbol {
	out := append([]Symbol(nil), s.childSymbols...)
	sort.Slice(out, func(i, j int) bool { return out[i].SID() < out[j].SID() })
	return out
}

// AddVisibleScope injects another scope into lookup.
func (s *Scope) AddVisibleScope(v *Scope) {
	for _, existing := range s.visible {
		if existing == v {
			return
		}
	}
	s.visible = append(s.visible, v)
}

// GetSubscope walks (or creates) the `::`-separated path below s.
func (s *Scope) GetSubscope(path string, strategy ResolveStrategy) (*Scope, error) {
	return s.getSubscope(strings.Split(path, Separator), strategy)
}

func (s *Scope) getSubscope(path []string, strategy ResolveStrategy) (*Scope, error) {
	if len(path) == 0 {
		return s, nil
	}
	name := path[0]
	var found *Scope
	for _, child := range s.childScopes {
		if child.name == name {
			if found != nil {
				return nil, diag.NameErrorf(s.fullName+Separator+name, "duplicate scope definition: %s", s.fullName+Separator+name)
			}
			found = child
		}
	}
	if found == nil {
		if strategy&Create == 0 {
			return nil, diag.NameErrorf(s.fullName+Separator+name, "scope does not exist: %s", s.fullName+Separator+name)
		}
		// A scope may not shadow a sibling symbol, except for symbols
		// that own a scope of their own name (struct types).
		for _, sym := range s.childSymbols {
			if sym.Name() == name {
				if _, owns := sym.(ScopeOwner); !owns {
					return nil, diag.NameErrorf(s.fullName+Separator+name,
						"scope name collides with symbol: %s", s.fullName+Separator+name)
				}
			}
		}
		child := &Scope{name: name, parent: s}
		if s.fullName == "" && s.parent == nil {
			child.fullName = Separator + name
		} else {
			child.fullName = s.fullName + Separator + name
		}
		s.childScopes = append(s.childScopes, child)
		return child.getSubscope(path[1:], strategy)
	}
	if strategy&Get == 0 {
		return nil, diag.NameErrorf(found.fullName, "scope already exists: %s", found.fullName)
	}
	return found.getSubscope(path[1:], strategy)
}

// AddSymbol creates a symbol inside s through creator, rejecting
// duplicate names.
func (s *Scope) AddSymbol(creator func(*Scope) Symbol) (Symbol, error) {
	sym := creator(s)
	for _, existing := range s.childSymbols {
		if existing.Name() == sym.Name() {
			return nil, diag.NameErrorf(sym.FullName(), "duplicate symbol: %s under %s", sym.Name(), s.fullName)
		}
	}
	s.childSymbols = append(s.childSymbols, sym)
	return sym, nil
}

// resolveHere matches a whole path strictly below s: intermediate
// components walk child scopes, the final one matches child symbols.
func (s *Scope) resolveHere(path []string) []Symbol {
	if len(path) == 0 {
		return nil
	}
	if len(path) == 1 {
		var out []Symbol
		for _, sym := range s.childSymbols {
			if sym.Name() == path[0] {
				out = append(out, sym)
			}
		}
		return out
	}
	for _, child := range s.childScopes {
		if child.name == path[0] {
			return child.resolveHere(path[1:])
		}
	}
	return nil
}

// TryResolveImmediate finds a direct child symbol by name, nil when
// absent. Several matches are ambiguous.
func (s *Scope) TryResolveImmediate(name string) (Symbol, error) {
	matches := s.resolveHere([]string{name})
	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		return matches[0], nil
	default:
		return nil, ambiguous(name, matches)
	}
}

// Resolve looks up a `::`-separated path: first up the parent chain,
// stopping at the nearest scope with matches (shadowing), then through
// the visible scopes.
func (s *Scope) Resolve(path string) (Symbol, error) {
	components := strings.Split(path, Separator)
	var matches []Symbol
	for cur := s; cur != nil && len(matches) == 0; cur = cur.parent {
		matches = append(matches, cur.resolveHere(components)...)
	}
	for _, v := range s.visible {
		matches = append(matches, v.resolveHere(components)...)
	}
	matches = dedupe(matches)
	switch len(matches) {
	case 0:
		return nil, diag.NameErrorf(path, "symbol could not be identified: %s under %s", path, s.fullName)
	case 1:
		return matches[0], nil
	default:
		return nil, ambiguous(path, matches)
	}
}

func dedupe(symbols []Symbol) []Symbol {
	seen := map[Symbol]struct{}{}
	out := symbols[:0]
	for _, sym := range symbols {
		if _, ok := seen[sym]; !ok {
			seen[sym] = struct{}{}
			out = append(out, sym)
		}
	}
	return out
}

func ambiguous(path string, matches []Symbol) error {
	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = m.FullName()
	}
	return diag.NameErrorf(path, "ambiguous symbol %s; found matches: %s", path, strings.Join(names, ", "))
}

// EnumerateSymbols yields the scope's symbols, recursively when asked,
// in declaration order.
func (s *Scope) EnumerateSymbols(recursive bool) []Symbol {
	out := append([]Symbol(nil), s.childSymbols...)
	if recursive {
		for _, child := range s.childScopes {
			out = append(out, child.EnumerateSymbols(true)...)
		}
	}
	return out
}

func (s *Scope) String() string {
	if s.parent == nil {
		return "[root]"
	}
	return s.fullName
}

// Stack tracks the current scope during parsing.
type Stack struct {
	stack []*Scope
}

// NewStack returns a stack rooted at global.
func NewStack(global *Scope) *Stack {
	return &Stack{stack: []*Scope{global}}
}

// Push enters (creating per strategy) the named subscope of the top.
func (st *Stack) Push(name string, strategy ResolveStrategy) (*Scope, error) {
	top := st.Peek()
	s, err := top.GetSubscope(name, strategy)
	if err != nil {
		return nil, err
	}
	st.stack = append(st.stack, s)
	return s, nil
}

// Peek returns the current scope.
func (st *Stack) Peek() *Scope { return st.stack[len(st.stack)-1] }

// Pop leaves the current scope; popping the global scope is a bug.
func (st *Stack) Pop() (*Scope, error) {
	if len(st.stack) == 1 {
		return nil, diag.Errorf(diag.Internal, "scope pop with only the global scope left")
	}
	top := st.Peek()
	st.stack = st.stack[:len(st.stack)-1]
	return top, nil
}

// NameProvider generates names for anonymous scopes: @1, @2, ...
type NameProvider struct {
	counter int
}

// NewName returns the next anonymous scope name.
func (p *NameProvider) NewName() string {
	p.counter++
	return fmt.Sprintf("@%d", p.counter)
}
