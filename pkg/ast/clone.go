package ast

import "github.com/notimplife/cels-cc/pkg/diag"

// CloneExpr deep-copies an expression tree. The multiframe pass clones
// extracted call sites so the while-condition re-read gets its own
// nodes; declaration nodes are deliberately not clonable.
func CloneExpr(e Expr) (Expr, error) {
	switch n := e.(type) {
	case *Literal:
		return NewLiteral(n.Value, n.Type()), nil
	case *SymbolTerm:
		return NewSymbolTerm(n.Sym, n.Type()), nil
	case *BinaryOp:
		left, err := CloneExpr(n.Left())
		if err != nil {
			return nil, err
		}
		right, err := CloneExpr(n.Right())
		if err != nil {
			return nil, err
		}
		return NewBinaryOp(n.Op, left, right), nil
	case *UnaryOp:
		operand, err := CloneExpr(n.Operand())
		if err != nil {
			return nil, err
		}
		return NewUnaryOp(n.Op, operand), nil
	case *TypeConvert:
		inner, err := CloneExpr(n.Expression())
		if err != nil {
			return nil, err
		}
		return NewTypeConvert(inner, n.Conv), nil
	case *AddressOf:
		operand, err := CloneExpr(n.Operand())
		if err != nil {
			return nil, err
		}
		addr, ok := operand.(Addressable)
		if !ok {
			return nil, diag.Errorf(diag.Internal, "clone produced non-addressable operand")
		}
		return NewAddressOf(addr), nil
	case *Dereference:
		operand, err := CloneExpr(n.Operand())
		if err != nil {
			return nil, err
		}
		return NewDereference(operand, n.Type()), nil
	case *FieldAccessor:
		element, err := CloneExpr(n.Element())
		if err != nil {
			return nil, err
		}
		return NewFieldAccessor(element, n.Field), nil
	case *IndexAccess:
		element, err := CloneExpr(n.Element())
		if err != nil {
			return nil, err
		}
		key, err := CloneExpr(n.Key())
		if err != nil {
			return nil, err
		}
		return NewIndexAccess(element, key, n.Indexer), nil
	case *Call:
		args := n.Args()
		cloned := make([]Expr, len(args))
		for i, a := range args {
			c, err := CloneExpr(a)
			if err != nil {
				return nil, err
			}
			cloned[i] = c
		}
		return NewCall(n.Overload, cloned, false), nil
	default:
		return nil, diag.Errorf(diag.Internal, "cannot clone node %T", e)
	}
}
