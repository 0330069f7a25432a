// Package multiframe lowers multiframe function bodies into explicit
// control-flow graphs partitioned into functional components, one per
// stretch of execution between suspension points. The emitter turns
// each component into one state-machine entry point of the generated
// C++ struct.
package multiframe

import (
	"github.com/notimplife/cels-cc/pkg/ast"
	"github.com/notimplife/cels-cc/pkg/diag"
	"github.com/notimplife/cels-cc/pkg/env"
	"github.com/notimplife/cels-cc/pkg/symbols"
)

// ExtractCalls rewrites every multiframe call nested inside a larger
// expression into a fresh temporary assigned immediately before the
// enclosing statement, so that each multiframe call ends up alone on
// the right-hand side of an assignment (or as a bare statement). A call
// in a while condition additionally gets a re-read appended at the end
// of the loop body.
func ExtractCalls(root ast.Node, e *env.Environment) error {
	stack := []ast.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		var calls []*ast.Call
		ast.Walk(n, func(child ast.Node) bool {
			if call, ok := child.(*ast.Call); ok && call.Overload.IsMultiframe {
				calls = append(calls, call)
				return true
			}
			return false
		})
		for _, call := range calls {
			extracted, err := extractCall(call, e)
			if err != nil {
				return err
			}
			for _, x := range extracted {
				stack = append(stack, ast.Children(x)...)
			}
		}
	}
	return nil
}

// extractCall rewrites one multiframe call site. It returns the call
// nodes whose arguments still need scanning (the original, plus the
// clone of a while-condition re-read).
func extractCall(call *ast.Call, e *env.Environment) ([]ast.Node, error) {
	// Climb to the enclosing block, remembering the statement that
	// holds the call and whether the call sits in a while condition.
	var instr ast.Node = call
	var block *ast.Block
	var loop *ast.While
	for cur := call.Base().Parent(); cur != nil; cur = cur.Base().Parent() {
		if b, ok := cur.(*ast.Block); ok {
			block = b
			break
		}
		if w, ok := cur.(*ast.While); ok && instr == ast.Node(w.Condition()) {
			loop = w
		}
		instr = cur
	}
	if block == nil {
		return nil, diag.Errorf(diag.Internal, "multiframe call does not have a block among its parents")
	}

	result := []ast.Node{call}
	var lhs *ast.SymbolTerm

	if instr != ast.Node(call) {
		if block.Scope == nil {
			return nil, diag.Errorf(diag.Internal, "block without scope during multiframe extraction")
		}
		sym, err := e.AddSymbol(block.Scope, symbols.NewVariable(e.InternalVarName(), call.Overload.ReturnType))
		if err != nil {
			return nil, err
		}
		tmp := sym.(*symbols.Variable)

		lhs = ast.NewSymbolTerm(tmp, nil)
		ref := ast.NewSymbolTerm(tmp, nil)
		ast.ReplaceWith(call, ref)

		ast.InsertBefore(instr, ast.NewVDecl(tmp))
		ast.InsertBefore(instr, ast.NewAssign(lhs, call))
	}

	// while(MF) do BLOCK ==> var c = MF; while(c) do begin BLOCK; c = MF; end
	if loop != nil {
		if lhs == nil {
			return nil, diag.Errorf(diag.Internal, "while condition call extracted without a temporary")
		}
		lhsClone, err := ast.CloneExpr(lhs)
		if err != nil {
			return nil, err
		}
		callClone, err := ast.CloneExpr(call)
		if err != nil {
			return nil, err
		}
		body, ok := loop.Body().(*ast.Block)
		if !ok {
			return nil, diag.Errorf(diag.Internal, "while body is not a block")
		}
		body.Append(ast.NewAssign(lhsClone, callClone))
		result = append(result, callClone)
	}
	return result, nil
}
