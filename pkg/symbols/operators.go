package symbols

import (
	"github.com/notimplife/cels-cc/pkg/diag"
)

// BinaryOperator is a registered binary operator instance.
type BinaryOperator struct {
	Symbol string
	Left   DataType
	Right  DataType
	Result DataType
}

func (op *BinaryOperator) String() string {
	return "operator " + op.Symbol + "(" + op.Left.TypeName() + ", " + op.Right.TypeName() + "):" + op.Result.TypeName()
}

// Fixity places a unary operator before or after its operand.
type Fixity uint8

const (
	Prefix Fixity = iota
	Postfix
)

// UnaryOperator is a registered unary operator instance.
type UnaryOperator struct {
	Symbol  string
	Operand DataType
	Fix     Fixity
	Result  DataType
}

func (op *UnaryOperator) String() string {
	return "operator " + op.Symbol + "(" + op.Operand.TypeName() + "):" + op.Result.TypeName()
}

// TypeConverter is a registered implicit conversion.
type TypeConverter struct {
	From DataType
	To   DataType
}

func (c *TypeConverter) String() string {
	return "conv(" + c.From.TypeName() + "):" + c.To.TypeName()
}

// IndexerArchetype manufactures indexers for element/key type pairs its
// predicate accepts. Archetypes are consulted in registration order.
type IndexerArchetype struct {
	Name      string
	Condition func(element, key DataType) bool
	Create    func(arch *IndexerArchetype, element, key DataType) *Indexer
}

// Indexer resolves an element[key] access to an output type.
type Indexer struct {
	Archetype *IndexerArchetype
	Element   DataType
	Key       DataType
	Output    DataType
}

func (ix *Indexer) String() string {
	return "indexer " + ix.Element.TypeName() + "[" + ix.Key.TypeName() + "]:" + ix.Output.TypeName()
}

type binKey struct {
	symbol      string
	left, right string
}

type unKey struct {
	symbol  string
	operand string
	fix     Fixity
}

type convKey struct {
	from, to string
}

// OperatorSolver registers and resolves operators, converters and
// indexers over the type algebra.
type OperatorSolver struct {
	binary     map[binKey]*BinaryOperator
	unary      map[unKey]*UnaryOperator
	converters map[convKey]*TypeConverter
	archetypes []*IndexerArchetype
}

// NewOperatorSolver returns an empty solver with the built-in pointer
// indexer installed as the final fallback.
func NewOperatorSolver() *OperatorSolver {
	return &OperatorSolver{
		binary:     map[binKey]*BinaryOperator{},
		unary:      map[unKey]*UnaryOperator{},
		converters: map[convKey]*TypeConverter{},
	}
}

// RegisterBinary registers symbol(left, right) -> result, rejecting
// duplicates.
func (s *OperatorSolver) RegisterBinary(symbol string, left, right, result DataType) (*BinaryOperator, error) {
	key := binKey{symbol, left.TypeName(), right.TypeName()}
	if _, ok := s.binary[key]; ok {
		return nil, diag.Errorf(diag.Type, "operator %s(%s, %s) is already defined", symbol, left, right)
	}
	op := &BinaryOperator{Symbol: symbol, Left: left, Right: right, Result: result}
	s.binary[key] = op
	return op, nil
}

// ResolveBinary finds symbol(left, right).
func (s *OperatorSolver) ResolveBinary(symbol string, left, right DataType) (*BinaryOperator, error) {
	if op, ok := s.binary[binKey{symbol, left.TypeName(), right.TypeName()}]; ok {
		return op, nil
	}
	return nil, diag.Errorf(diag.Type, "no definition for operator %s(%s, %s)", symbol, left, right)
}

// RegisterUnary registers symbol(operand) -> result at the given
// fixity, rejecting duplicates.
func (s *OperatorSolver) RegisterUnary(symbol string, operand DataType, fix Fixity, result DataType) (*UnaryOperator, error) {
	key := unKey{symbol, operand.TypeName(), fix}
	if _, ok := s.unary[key]; ok {
		return nil, diag.Errorf(diag.Type, "operator %s(%s) is already defined", symbol, operand)
	}
	op := &UnaryOperator{Symbol: symbol, Operand: operand, Fix: fix, Result: result}
	s.unary[key] = op
	return op, nil
}

// ResolveUnary finds symbol(operand) at the given fixity.
func (s *OperatorSolver) ResolveUnary(symbol string, operand DataType, fix Fixity) (*UnaryOperator, error) {
	if op, ok := s.unary[unKey{symbol, operand.TypeName(), fix}]; ok {
		return op, nil
	}
	return nil, diag.Errorf(diag.Type, "no definition for operator %s(%s)", symbol, operand)
}

// RegisterConverter registers from -> to, rejecting duplicates.
func (s *OperatorSolver) RegisterConverter(from, to DataType) (*TypeConverter, error) {
	key := convKey{from.TypeName(), to.TypeName()}
	if _, ok := s.converters[key]; ok {
		return nil, diag.Errorf(diag.Type, "converter from %s to %s already exists", from, to)
	}
	c := &TypeConverter{From: from, To: to}
	s.converters[key] = c
	return c, nil
}

// ResolveConverter finds from -> to.
func (s *OperatorSolver) ResolveConverter(from, to DataType) (*TypeConverter, error) {
	if c, ok := s.converters[convKey{from.TypeName(), to.TypeName()}]; ok {
		return c, nil
	}
	return nil, diag.Errorf(diag.Type, "could not convert %s to %s", from, to)
}

// CanConvert reports whether a converter from -> to is registered.
func (s *OperatorSolver) CanConvert(from, to DataType) bool {
	_, ok := s.converters[convKey{from.TypeName(), to.TypeName()}]
	return ok
}

// RegisterIndexerArchetype appends an archetype; earlier registrations
// win on lookup.
func (s *OperatorSolver) RegisterIndexerArchetype(arch *IndexerArchetype) {
	s.archetypes = append(s.archetypes, arch)
}

// pointerArchetype is the built-in fallback: any pointer indexes by int
// to its element type.
var pointerArchetype = &IndexerArchetype{
	Name: "pointer",
	Condition: func(element, key DataType) bool {
		_, ok := IsPointer(element)
		return ok
	},
}

// ResolveIndexer consults archetypes in registration order; the first
// whose predicate holds manufactures the indexer. Pointers fall through
// to the built-in pointer indexer.
func (s *OperatorSolver) ResolveIndexer(element, key DataType, intType DataType) (*Indexer, error) {
	for _, arch := range s.archetypes {
		if arch.Condition(element, key) {
			return arch.Create(arch, element, key), nil
		}
	}
	if p, ok := IsPointer(element); ok {
		return &Indexer{Archetype: pointerArchetype, Element: element, Key: intType, Output: p.Element}, nil
	}
	return nil, diag.Errorf(diag.Type, "no indexer found for %s[%s]", element, key)
}
