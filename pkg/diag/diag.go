// Package diag defines the compiler's error taxonomy.
//
// Every stage reports failures as *diag.Error values carrying the error
// class, a message, and whatever context makes the error actionable: a
// source position for lexical/syntax/type errors, a fully qualified name
// for scope errors. The first error aborts the pipeline; there is no
// recovery.
package diag

import (
	"errors"
	"fmt"
)

// Kind classifies a compile error.
type Kind uint8

const (
	// Lexical covers unknown characters, unterminated literals and
	// forbidden token adjacency.
	Lexical Kind = iota
	// Syntax covers parser table misses.
	Syntax
	// Scope covers duplicate names, unknown identifiers and ambiguous paths.
	Scope
	// Type covers missing operators/converters/indexers, non-callable
	// targets, wrong arity, ambiguous overloads and bad dereferences.
	Type
	// Grammar covers LR(1) conflicts and invalid action arity.
	Grammar
	// IO covers missing source dirs, unreadable files and unwritable output.
	IO
	// Internal marks an invariant breach: a compiler bug.
	Internal
)

func (k Kind) String() string {
	switch k {
	case Lexical:
		return "lexical error"
	case Syntax:
		return "syntax error"
	case Scope:
		return "scope error"
	case Type:
		return "type error"
	case Grammar:
		return "grammar error"
	case IO:
		return "io error"
	case Internal:
		return "internal error"
	default:
		return "unknown error"
	}
}

// Position is a location in source text. Line and Column are 1-based,
// Offset is a 0-based byte offset.
type Position struct {
	Offset int
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Error is a classified compile error.
type Error struct {
	Kind Kind
	Msg  string
	Pos  *Position // set for position-bearing errors
	Name string    // fully qualified name, set for scope errors
	Err  error     // wrapped cause, may be nil
}

func (e *Error) Error() string {
	if e.Pos != nil {
		return fmt.Sprintf("%s at %s: %s", e.Kind, e.Pos, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds an Error with no position.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// PosErrorf builds an Error anchored at pos.
func PosErrorf(kind Kind, pos Position, format string, args ...any) *Error {
	p := pos
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Pos: &p}
}

// NameErrorf builds a scope Error for the qualified name.
func NameErrorf(name, format string, args ...any) *Error {
	return &Error{Kind: Scope, Msg: fmt.Sprintf(format, args...), Name: name}
}

// Wrap attaches a cause to err and returns it.
func Wrap(err *Error, cause error) *Error {
	err.Err = cause
	return err
}

// KindOf reports the Kind of err if it is (or wraps) a *diag.Error.
func KindOf(err error) (Kind, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return 0, false
}

// IsKind reports whether err is a *diag.Error of the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
