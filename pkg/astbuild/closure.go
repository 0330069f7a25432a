package astbuild

import (
	"strings"

	"github.com/notimplife/cels-cc/pkg/ast"
	"github.com/notimplife/cels-cc/pkg/diag"
	"github.com/notimplife/cels-cc/pkg/scope"
	"github.com/notimplife/cels-cc/pkg/symbols"
)

// lambdaHeader is the parsed head of a lambda literal: its parameter
// scope and the parameter symbols created in it.
type lambdaHeader struct {
	scope  *scope.Scope
	params []*symbols.FormalParameter
}

func (b *Builder) reduceLambdaHeader(scopeV, paramsV any) (lambdaHeader, error) {
	s, ok := scopeV.(*scope.Scope)
	if !ok {
		return lambdaHeader{}, diag.Errorf(diag.Internal, "expected scope, got %T", scopeV)
	}
	params, err := paramList(paramsV)
	if err != nil {
		return lambdaHeader{}, err
	}
	header := lambdaHeader{scope: s}
	for _, pd := range params {
		sym, err := b.Env.AddSymbol(s, symbols.NewFormalParameter(pd.name, pd.typ))
		if err != nil {
			return lambdaHeader{}, err
		}
		header.params = append(header.params, sym.(*symbols.FormalParameter))
	}
	return header, nil
}

// reduceLambda lowers a lambda literal into a synthetic global function
// whose leading parameters are pointers to the captured symbols,
// followed by the lambda's own parameters. Captured references become
// dereferences of the new parameters; an expression body is wrapped in
// a return. The result is a closure expression holding address-of
// arguments for the captures.
func (b *Builder) reduceLambda(headerV, implV any, returnType symbols.DataType) (*ast.FunctionClosure, error) {
	header, ok := headerV.(lambdaHeader)
	if !ok {
		return nil, diag.Errorf(diag.Internal, "expected lambda header, got %T", headerV)
	}
	impl, err := node(implV)
	if err != nil {
		return nil, err
	}

	if returnType == nil {
		if e, ok := impl.(ast.Expr); ok {
			returnType = e.Type()
		} else {
			returnType = b.Env.DtypeVoid
		}
	}

	// Identify captured references, the lambda's own parameter
	// references, and whether the body makes any multiframe call.
	var capturedNodes []*ast.SymbolTerm
	var argNodes []*ast.SymbolTerm
	isMultiframe := false
	ast.Walk(impl, func(n ast.Node) bool {
		switch v := n.(type) {
		case *ast.SymbolTerm:
			sym := v.Sym
			if scope.IsInScope(sym, header.scope) {
				if p, ok := sym.(*symbols.FormalParameter); ok && p.Scope() == header.scope {
					argNodes = append(argNodes, v)
				}
			} else if strings.Contains(sym.FullName(), "@") {
				// Globals with plain dotted names stay referable by
				// name; everything else must be captured.
				capturedNodes = append(capturedNodes, v)
			}
		case *ast.Call:
			if v.Overload.IsMultiframe {
				isMultiframe = true
			}
		}
		return false
	})

	// Deduplicate captures preserving first-encounter order.
	var captures []scope.Symbol
	captureTypes := map[scope.Symbol]symbols.DataType{}
	for _, n := range capturedNodes {
		if _, seen := captureTypes[n.Sym]; !seen {
			captures = append(captures, n.Sym)
			captureTypes[n.Sym] = symbols.MakePointer(n.Type())
		}
	}

	fn, lambdaScope, err := b.Env.GenerateLambdaFunction()
	if err != nil {
		return nil, err
	}

	captureParams := map[scope.Symbol]*symbols.FormalParameter{}
	var lambdaParams []*symbols.FormalParameter
	for _, captured := range captures {
		sym, err := b.Env.AddSymbol(lambdaScope, symbols.NewFormalParameter(captured.Name(), captureTypes[captured]))
		if err != nil {
			return nil, err
		}
		p := sym.(*symbols.FormalParameter)
		captureParams[captured] = p
		lambdaParams = append(lambdaParams, p)
	}
	argParams := map[*symbols.FormalParameter]*symbols.FormalParameter{}
	for _, old := range header.params {
		sym, err := b.Env.AddSymbol(lambdaScope, symbols.NewFormalParameter(old.Name(), old.Type))
		if err != nil {
			return nil, err
		}
		p := sym.(*symbols.FormalParameter)
		argParams[old] = p
		lambdaParams = append(lambdaParams, p)
	}

	overload, err := fn.AddOverload(&symbols.FunctionOverload{
		Params:       lambdaParams,
		ReturnType:   returnType,
		IsMultiframe: isMultiframe,
		OwnScope:     lambdaScope,
	})
	if err != nil {
		return nil, err
	}

	// An expression body becomes `return <expr>` before any reference
	// rewriting, so the expression root has a parent to replace under.
	if e, ok := impl.(ast.Expr); ok {
		block := ast.NewBlock(ast.NewReturn(e))
		block.Scope = header.scope
		impl = block
	}

	// Rewrite the body: captured refs become *p_i, parameter refs are
	// retargeted to the fresh symbols.
	for _, n := range capturedNodes {
		p := captureParams[n.Sym]
		term := ast.NewSymbolTerm(p, nil)
		deref, err := b.reduceDereference(term)
		if err != nil {
			return nil, err
		}
		ast.ReplaceWith(n, deref)
	}
	for _, n := range argNodes {
		old := n.Sym.(*symbols.FormalParameter)
		ast.ReplaceWith(n, ast.NewSymbolTerm(argParams[old], nil))
	}

	overload.Implementation = impl

	capturedArgs := make([]ast.Expr, len(captures))
	for i, captured := range captures {
		term, err := b.reduceSymbolTerm(captured)
		if err != nil {
			return nil, err
		}
		addr, err := b.reduceAddressOf(term)
		if err != nil {
			return nil, err
		}
		capturedArgs[i] = addr
	}
	return ast.NewFunctionClosure(overload, b.Env.DtypeClosure, capturedArgs), nil
}
