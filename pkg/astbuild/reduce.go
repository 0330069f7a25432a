package astbuild

import (
	"strconv"
	"strings"

	"github.com/notimplife/cels-cc/pkg/ast"
	"github.com/notimplife/cels-cc/pkg/diag"
	"github.com/notimplife/cels-cc/pkg/lexer"
	"github.com/notimplife/cels-cc/pkg/scope"
	"github.com/notimplife/cels-cc/pkg/symbols"
)

// reduceList prepends head to an optional tail list.
func reduceList(head any, tail any) ([]any, error) {
	if tail == nil {
		return []any{head}, nil
	}
	list, ok := tail.([]any)
	if !ok {
		return nil, diag.Errorf(diag.Internal, "expected list, got %T", tail)
	}
	return append([]any{head}, list...), nil
}

// paramData is a parsed formal parameter before symbol creation.
type paramData struct {
	name string
	typ  symbols.DataType
}

// funcSpec is one parsed function specifier.
type funcSpec struct {
	kind   string // "multiframe", "extern", "cpp_include"
	header string // for cpp_include
}

func (b *Builder) asDataType(v any) (symbols.DataType, error) {
	if v == nil {
		return nil, nil
	}
	dt, ok := v.(symbols.DataType)
	if !ok {
		return nil, diag.Errorf(diag.Type, "data type expected, got %T", v)
	}
	return dt, nil
}

func (b *Builder) reduceBlock(v any) (*ast.Block, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, diag.Errorf(diag.Internal, "expected statement list, got %T", v)
	}
	nodes := make([]ast.Node, 0, len(list))
	for _, it := range list {
		n, err := node(it)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	block := ast.NewBlock(nodes...)
	block.Scope = b.currentScope()
	return block, nil
}

func (b *Builder) reduceVDecl(nameV, typeV any) (*ast.VDecl, error) {
	nameTok, err := token(nameV)
	if err != nil {
		return nil, err
	}
	dt, err := b.asDataType(typeV)
	if err != nil {
		return nil, err
	}
	sym, err := b.Env.AddSymbol(b.currentScope(), symbols.NewVariable(nameTok.Lexeme, dt))
	if err != nil {
		return nil, err
	}
	return ast.NewVDecl(sym.(*symbols.Variable)), nil
}

// reduceVDeclWithExpr lowers `var x [: T] = e` to VDecl(x,T); Assign(x,e)
// with T defaulting to e's type.
func (b *Builder) reduceVDeclWithExpr(nameV, typeV, exprV any) (ast.Node, error) {
	e, err := expr(exprV)
	if err != nil {
		return nil, err
	}
	dt, err := b.asDataType(typeV)
	if err != nil {
		return nil, err
	}
	if dt == nil {
		dt = e.Type()
	}
	vdecl, err := b.reduceVDecl(nameV, dt)
	if err != nil {
		return nil, err
	}
	assign, err := b.makeAssign(ast.NewSymbolTerm(vdecl.Var, nil), e)
	if err != nil {
		return nil, err
	}
	block := ast.NewBlock(vdecl, assign)
	block.Scope = b.currentScope()
	return block, nil
}

func (b *Builder) reduceReturn(v any) (*ast.Return, error) {
	if v == nil {
		return ast.NewReturn(nil), nil
	}
	e, err := expr(v)
	if err != nil {
		return nil, err
	}
	return ast.NewReturn(e), nil
}

// makeAssign inserts the implicit conversion on a type mismatch.
func (b *Builder) makeAssign(left, right ast.Expr) (*ast.Assign, error) {
	if !symbols.Same(left.Type(), right.Type()) {
		conv, err := b.Env.Ops.ResolveConverter(right.Type(), left.Type())
		if err != nil {
			return nil, err
		}
		right = ast.NewTypeConvert(right, conv)
	}
	return ast.NewAssign(left, right), nil
}

func (b *Builder) reduceAssign(leftV, rightV any) (*ast.Assign, error) {
	left, err := expr(leftV)
	if err != nil {
		return nil, err
	}
	right, err := expr(rightV)
	if err != nil {
		return nil, err
	}
	return b.makeAssign(left, right)
}

func (b *Builder) reduceBinaryOp(leftV, opV, rightV any) (*ast.BinaryOp, error) {
	left, err := expr(leftV)
	if err != nil {
		return nil, err
	}
	right, err := expr(rightV)
	if err != nil {
		return nil, err
	}
	opTok, err := token(opV)
	if err != nil {
		return nil, err
	}
	op, err := b.Env.Ops.ResolveBinary(opTok.Lexeme, left.Type(), right.Type())
	if err != nil {
		return nil, err
	}
	return ast.NewBinaryOp(op, left, right), nil
}

func (b *Builder) reduceUnaryOp(opV, operandV any) (*ast.UnaryOp, error) {
	operand, err := expr(operandV)
	if err != nil {
		return nil, err
	}
	opTok, err := token(opV)
	if err != nil {
		return nil, err
	}
	op, err := b.Env.Ops.ResolveUnary(opTok.Lexeme, operand.Type(), symbols.Prefix)
	if err != nil {
		return nil, err
	}
	return ast.NewUnaryOp(op, operand), nil
}

func (b *Builder) reduceAddressOf(v any) (*ast.AddressOf, error) {
	e, err := expr(v)
	if err != nil {
		return nil, err
	}
	addr, ok := e.(ast.Addressable)
	if !ok {
		return nil, diag.Errorf(diag.Type, "cannot take the address of %s", e)
	}
	return ast.NewAddressOf(addr), nil
}

func (b *Builder) reduceDereference(v any) (*ast.Dereference, error) {
	e, err := expr(v)
	if err != nil {
		return nil, err
	}
	ptr, ok := symbols.IsPointer(e.Type())
	if !ok {
		return nil, diag.Errorf(diag.Type, "dereference operator called on non-pointer %s", e.Type())
	}
	return ast.NewDereference(e, ptr.Element), nil
}

func (b *Builder) reduceIf(condV, thenV, elseV any) (*ast.If, error) {
	cond, err := expr(condV)
	if err != nil {
		return nil, err
	}
	then, err := node(thenV)
	if err != nil {
		return nil, err
	}
	var els ast.Node
	if elseV != nil {
		if els, err = node(elseV); err != nil {
			return nil, err
		}
	}
	return ast.NewIf(cond, then, els), nil
}

// reduceCall type-checks a call target and resolves the overload. Only
// the three callable marker types are accepted.
func (b *Builder) reduceCall(targetV, argsV any) (ast.Expr, error) {
	target, err := expr(targetV)
	if err != nil {
		return nil, err
	}
	argList, ok := argsV.([]any)
	if !ok {
		return nil, diag.Errorf(diag.Internal, "expected argument list, got %T", argsV)
	}
	args := make([]ast.Expr, len(argList))
	for i, a := range argList {
		if args[i], err = expr(a); err != nil {
			return nil, err
		}
	}

	switch {
	case symbols.Same(target.Type(), b.Env.DtypeFunction):
		term, ok := target.(*ast.SymbolTerm)
		if !ok {
			return nil, diag.Errorf(diag.Type, "expression of type function must be a symbol")
		}
		fn, ok := term.Sym.(*symbols.Function)
		if !ok {
			return nil, diag.Errorf(diag.Type, "symbol %s is not a function", term.Sym.FullName())
		}
		overload, err := b.matchOverload(fn, argTypes(args))
		if err != nil {
			return nil, err
		}
		if err := b.convertArgs(overload, args); err != nil {
			return nil, err
		}
		return ast.NewCall(overload, args, false), nil

	case symbols.Same(target.Type(), b.Env.DtypeClosure):
		closure, ok := target.(*ast.FunctionClosure)
		if !ok {
			return nil, diag.Errorf(diag.Type, "expression of type closure must be explicit: (lambda (params)=>(...))(args)")
		}
		overload := closure.Overload
		all := append(closure.CapturedArgs(), args...)
		if len(all) != len(overload.Params) {
			return nil, diag.Errorf(diag.Type, "wrong arity calling %s: %d arguments, want %d",
				overload, len(all), len(overload.Params))
		}
		if err := b.convertArgs(overload, all); err != nil {
			return nil, err
		}
		// The implementation rides along so AST walks reach the lambda
		// body.
		return ast.NewCall(overload, all, true), nil

	case symbols.Same(target.Type(), b.Env.DtypeInstanceMethod):
		accessor, ok := target.(*ast.MethodAccessor)
		if !ok {
			return nil, diag.Errorf(diag.Type, "expected method accessor, got %T", target)
		}
		receiver, ok := accessor.Element().(ast.Addressable)
		if !ok {
			return nil, diag.Errorf(diag.Type, "method receiver is not addressable")
		}
		all := append([]ast.Expr{ast.NewAddressOf(receiver)}, args...)
		overload, err := b.matchOverload(accessor.Method, argTypes(all))
		if err != nil {
			return nil, err
		}
		if err := b.convertArgs(overload, all); err != nil {
			return nil, err
		}
		return ast.NewCall(overload, all, false), nil
	}

	return nil, diag.Errorf(diag.Type, "object of type %s is not callable", target.Type())
}

func argTypes(args []ast.Expr) []symbols.DataType {
	out := make([]symbols.DataType, len(args))
	for i, a := range args {
		out[i] = a.Type()
	}
	return out
}

// convertArgs wraps non-matching arguments in type conversions, in
// place.
func (b *Builder) convertArgs(overload *symbols.FunctionOverload, args []ast.Expr) error {
	for i, a := range args {
		want := overload.Params[i].Type
		if symbols.Same(a.Type(), want) {
			continue
		}
		conv, err := b.Env.Ops.ResolveConverter(a.Type(), want)
		if err != nil {
			return err
		}
		args[i] = ast.NewTypeConvert(a, conv)
	}
	return nil
}

func (b *Builder) reduceFieldDecl(nameV, typeV any) (*ast.FieldDecl, error) {
	nameTok, err := token(nameV)
	if err != nil {
		return nil, err
	}
	dt, err := b.asDataType(typeV)
	if err != nil {
		return nil, err
	}
	structScope := b.currentScope()
	structType, ok := structScope.Assoc.(*symbols.StructType)
	if !ok {
		return nil, diag.Errorf(diag.Type, "struct expected, field %s declared outside a struct scope", nameTok.Lexeme)
	}
	sym, err := b.Env.AddSymbol(structScope, symbols.NewField(nameTok.Lexeme, dt))
	if err != nil {
		return nil, err
	}
	field := sym.(*symbols.Field)
	structType.AddMember(field)
	return ast.NewFieldDecl(field), nil
}

func (b *Builder) reduceStructDecl(typeV, membersV any) (*ast.StructDecl, error) {
	structType, ok := typeV.(*symbols.StructType)
	if !ok {
		return nil, diag.Errorf(diag.Internal, "expected struct type, got %T", typeV)
	}
	memberList, ok := membersV.([]any)
	if !ok {
		return nil, diag.Errorf(diag.Internal, "expected member list, got %T", membersV)
	}
	members := make([]ast.Node, 0, len(memberList))
	for _, m := range memberList {
		n, err := node(m)
		if err != nil {
			return nil, err
		}
		members = append(members, n)
	}
	return ast.NewStructDecl(structType, members), nil
}

func (b *Builder) reduceFormalParameterData(nameV, typeV any) (paramData, error) {
	nameTok, err := token(nameV)
	if err != nil {
		return paramData{}, err
	}
	dt, err := b.asDataType(typeV)
	if err != nil {
		return paramData{}, err
	}
	return paramData{name: nameTok.Lexeme, typ: dt}, nil
}

func (b *Builder) reduceFuncDecl(overloadV, implV any) (*ast.FuncDecl, error) {
	overload, ok := overloadV.(*symbols.FunctionOverload)
	if !ok {
		return nil, diag.Errorf(diag.Internal, "expected function overload, got %T", overloadV)
	}
	if implV != nil {
		impl, err := node(implV)
		if err != nil {
			return nil, err
		}
		overload.Implementation = impl
	}
	return ast.NewFuncDecl(overload), nil
}

// reduceStructMethodHeader prepends the implicit `this: S*` parameter
// and records the method on its struct.
func (b *Builder) reduceStructMethodHeader(nameV, paramsV, retV, specsV any) (*symbols.FunctionOverload, error) {
	structScope := b.currentScope()
	structType, ok := structScope.Assoc.(*symbols.StructType)
	if !ok {
		return nil, diag.Errorf(diag.Type, "struct expected for method declaration")
	}
	params, err := paramList(paramsV)
	if err != nil {
		return nil, err
	}
	params = append([]paramData{{name: "this", typ: symbols.MakePointer(structType)}}, params...)
	overload, err := b.makeFuncHeader(nameV, params, retV, specsV, structType)
	if err != nil {
		return nil, err
	}
	structType.AddMember(overload.Func)
	return overload, nil
}

func (b *Builder) reduceFuncHeader(nameV, paramsV, retV, specsV any, declaring symbols.DataType) (*symbols.FunctionOverload, error) {
	params, err := paramList(paramsV)
	if err != nil {
		return nil, err
	}
	return b.makeFuncHeader(nameV, params, retV, specsV, declaring)
}

func paramList(v any) ([]paramData, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, diag.Errorf(diag.Internal, "expected parameter list, got %T", v)
	}
	out := make([]paramData, len(list))
	for i, p := range list {
		pd, ok := p.(paramData)
		if !ok {
			return nil, diag.Errorf(diag.Internal, "expected parameter, got %T", p)
		}
		out[i] = pd
	}
	return out, nil
}

// makeFuncHeader creates (or extends) the function symbol, pushes the
// overload scope and installs the formal parameters.
func (b *Builder) makeFuncHeader(nameV any, params []paramData, retV, specsV any, declaring symbols.DataType) (*symbols.FunctionOverload, error) {
	nameTok, err := token(nameV)
	if err != nil {
		return nil, err
	}
	retType, err := b.asDataType(retV)
	if err != nil {
		return nil, err
	}

	overload := &symbols.FunctionOverload{ReturnType: retType}
	if specsV != nil {
		specList, ok := specsV.([]any)
		if !ok {
			return nil, diag.Errorf(diag.Internal, "expected specifier list, got %T", specsV)
		}
		for _, s := range specList {
			spec, ok := s.(funcSpec)
			if !ok {
				return nil, diag.Errorf(diag.Internal, "expected function specifier, got %T", s)
			}
			switch spec.kind {
			case "multiframe":
				overload.IsMultiframe = true
			case "extern":
				overload.IsExtern = true
			case "cpp_include":
				overload.CppInclude = spec.header
			}
		}
	}

	name := nameTok.Lexeme
	existing, err := b.currentScope().TryResolveImmediate(name)
	if err != nil {
		return nil, err
	}
	var fn *symbols.Function
	if existing == nil {
		sym, err := b.Env.AddSymbol(b.currentScope(), symbols.NewFunction(name, declaring))
		if err != nil {
			return nil, err
		}
		fn = sym.(*symbols.Function)
	} else if fn, _ = existing.(*symbols.Function); fn == nil {
		return nil, diag.NameErrorf(existing.FullName(), "symbol %s is not a function", existing.FullName())
	}

	overloadScope, err := b.Scopes.Push("@"+name+"_ov"+strconv.Itoa(fn.OverloadCount()+1), scope.Create)
	if err != nil {
		return nil, err
	}
	overloadScope.Assoc = fn
	overload.OwnScope = overloadScope

	for _, pd := range params {
		sym, err := b.Env.AddSymbol(overloadScope, symbols.NewFormalParameter(pd.name, pd.typ))
		if err != nil {
			return nil, err
		}
		overload.Params = append(overload.Params, sym.(*symbols.FormalParameter))
	}
	return fn.AddOverload(overload)
}

func (b *Builder) reduceIndexAccess(elemV, keyV any) (*ast.IndexAccess, error) {
	elem, err := expr(elemV)
	if err != nil {
		return nil, err
	}
	key, err := expr(keyV)
	if err != nil {
		return nil, err
	}
	indexer, err := b.Env.Ops.ResolveIndexer(elem.Type(), key.Type(), b.Env.DtypeInt)
	if err != nil {
		return nil, err
	}
	return ast.NewIndexAccess(elem, key, indexer), nil
}

func (b *Builder) reducePointerMemberAccess(elemV, fieldV any) (ast.Expr, error) {
	deref, err := b.reduceDereference(elemV)
	if err != nil {
		return nil, err
	}
	return b.reduceMemberAccess(deref, fieldV)
}

func (b *Builder) reduceMemberAccess(elemV, fieldV any) (ast.Expr, error) {
	elem, err := expr(elemV)
	if err != nil {
		return nil, err
	}
	var fieldName string
	if tk, ok := fieldV.(lexer.Token); ok {
		fieldName = tk.Lexeme
	} else if s, ok := fieldV.(string); ok {
		fieldName = s
	} else {
		return nil, diag.Errorf(diag.Internal, "expected member name, got %T", fieldV)
	}

	structType, ok := symbols.IsStruct(elem.Type())
	if !ok {
		return nil, diag.Errorf(diag.Type, "invalid accessor: %s for type %s", fieldName, elem.Type())
	}
	member, err := structType.InnerScope().Resolve(fieldName)
	if err != nil {
		return nil, err
	}
	switch m := member.(type) {
	case *symbols.Field:
		return ast.NewFieldAccessor(elem, m), nil
	case *symbols.Function:
		if !m.IsMethod() {
			return nil, diag.Errorf(diag.Type, "non-member function %s called on object", m.FullName())
		}
		return ast.NewMethodAccessor(elem, m, b.Env.DtypeInstanceMethod), nil
	default:
		return nil, diag.Errorf(diag.Type, "member accessor of type %T is not supported", member)
	}
}

func (b *Builder) reduceCppInclude(v any) (funcSpec, error) {
	tok, err := token(v)
	if err != nil {
		return funcSpec{}, err
	}
	header, err := unquote(tok.Lexeme)
	if err != nil {
		return funcSpec{}, err
	}
	return funcSpec{kind: "cpp_include", header: header}, nil
}

func (b *Builder) reduceSimpleFuncSpec(v any) (funcSpec, error) {
	tok, err := token(v)
	if err != nil {
		return funcSpec{}, err
	}
	return funcSpec{kind: tok.Lexeme}, nil
}

// reduceSymbol resolves a `::`-separated identifier chain.
func (b *Builder) reduceSymbol(v any) (scope.Symbol, error) {
	chain, ok := v.([]any)
	if !ok {
		return nil, diag.Errorf(diag.Internal, "expected symbol chain, got %T", v)
	}
	parts := make([]string, len(chain))
	for i, c := range chain {
		tk, err := token(c)
		if err != nil {
			return nil, err
		}
		parts[i] = tk.Lexeme
	}
	return b.currentScope().Resolve(strings.Join(parts, scope.Separator))
}

// reduceSymbolTerm wraps a resolved symbol as an expression. Bare field
// references inside methods lower to (*this).field; function symbols
// get the @function marker type.
func (b *Builder) reduceSymbolTerm(v any) (ast.Expr, error) {
	sym, ok := v.(scope.Symbol)
	if !ok {
		return nil, diag.Errorf(diag.Internal, "expected symbol, got %T", v)
	}
	switch s := sym.(type) {
	case *symbols.Field:
		this, err := b.currentScope().Resolve("this")
		if err != nil {
			return nil, diag.NameErrorf(s.FullName(), "field %s referenced outside a method", s.FullName())
		}
		thisTerm := ast.NewSymbolTerm(this, nil)
		deref, err := b.reduceDereference(thisTerm)
		if err != nil {
			return nil, err
		}
		return b.reduceMemberAccess(deref, s.Name())
	case *symbols.Function:
		return ast.NewSymbolTerm(s, b.Env.DtypeFunction), nil
	case *symbols.Variable, *symbols.FormalParameter:
		return ast.NewSymbolTerm(sym, nil), nil
	default:
		return nil, diag.Errorf(diag.Type, "symbol is not allowed in expressions: %s", sym.FullName())
	}
}

func (b *Builder) reduceImport(v any) (ast.Node, error) {
	lit, err := b.reduceStringLiteral(v)
	if err != nil {
		return nil, err
	}
	path := lit.Value.(string)
	block, err := b.ImportSolver(path)
	if err != nil {
		return nil, err
	}
	if block == nil {
		empty := ast.NewBlock()
		empty.Scope = b.currentScope()
		return empty, nil
	}
	return block, nil
}

func (b *Builder) reducePackage(nameV, blockV, scopeV any) (*ast.Package, error) {
	nameTok, err := token(nameV)
	if err != nil {
		return nil, err
	}
	block, ok := blockV.(*ast.Block)
	if !ok {
		return nil, diag.Errorf(diag.Internal, "expected block, got %T", blockV)
	}
	pkgScope, ok := scopeV.(*scope.Scope)
	if !ok {
		return nil, diag.Errorf(diag.Internal, "expected scope, got %T", scopeV)
	}
	pkgScope.IsPackage = true
	return ast.NewPackage(nameTok.Lexeme, block, pkgScope), nil
}

func (b *Builder) reduceIDDefinesScope(v any) (any, error) {
	tok, err := token(v)
	if err != nil {
		return nil, err
	}
	b.namedScope = append(b.namedScope, tok.Lexeme)
	return tok, nil
}

// reduceIDDefinesScopedStruct creates the struct symbol and pushes its
// member scope.
func (b *Builder) reduceIDDefinesScopedStruct(v any) (*symbols.StructType, error) {
	tok, err := token(v)
	if err != nil {
		return nil, err
	}
	sym, err := b.Env.AddSymbol(b.currentScope(), symbols.NewStructType(tok.Lexeme))
	if err != nil {
		return nil, err
	}
	structType := sym.(*symbols.StructType)
	structScope, err := b.Scopes.Push(tok.Lexeme, scope.Create)
	if err != nil {
		return nil, err
	}
	structScope.Assoc = structType
	structType.SetInnerScope(structScope)
	return structType, nil
}

func (b *Builder) reduceDataTypeArray(typeV, lenV any) (symbols.DataType, error) {
	dt, err := b.asDataType(typeV)
	if err != nil {
		return nil, err
	}
	lit, err := b.reduceIntLiteral(lenV)
	if err != nil {
		return nil, err
	}
	return symbols.MakeArray(dt, lit.Value.(int)), nil
}

func (b *Builder) reduceDataTypeFromSymbol(v any) (symbols.DataType, error) {
	sym, ok := v.(scope.Symbol)
	if !ok {
		return nil, diag.Errorf(diag.Internal, "expected symbol, got %T", v)
	}
	dt, ok := sym.(symbols.DataType)
	if !ok {
		return nil, diag.Errorf(diag.Type, "symbol is not a datatype: %s", sym.FullName())
	}
	return dt, nil
}

func (b *Builder) reduceDataTypeFromToken(v any) (symbols.DataType, error) {
	tok, err := token(v)
	if err != nil {
		return nil, err
	}
	sym, err := b.currentScope().Resolve(tok.Lexeme)
	if err != nil {
		return nil, err
	}
	dt, ok := sym.(symbols.DataType)
	if !ok {
		return nil, diag.Errorf(diag.Type, "invalid symbol: expected data type, got %s", sym.FullName())
	}
	return dt, nil
}

func (b *Builder) reduceIntLiteral(v any) (*ast.Literal, error) {
	tok, err := token(v)
	if err != nil {
		return nil, err
	}
	value, err := strconv.Atoi(tok.Lexeme)
	if err != nil {
		return nil, diag.PosErrorf(diag.Lexical, tok.Pos, "invalid integer literal %q", tok.Lexeme)
	}
	return ast.NewLiteral(value, b.Env.DtypeInt), nil
}

func (b *Builder) reduceDecLiteral(v any) (*ast.Literal, error) {
	tok, err := token(v)
	if err != nil {
		return nil, err
	}
	value, err := strconv.ParseFloat(tok.Lexeme, 64)
	if err != nil {
		return nil, diag.PosErrorf(diag.Lexical, tok.Pos, "invalid decimal literal %q", tok.Lexeme)
	}
	return ast.NewLiteral(value, b.Env.DtypeFloat), nil
}

func (b *Builder) reduceStringLiteral(v any) (*ast.Literal, error) {
	tok, err := token(v)
	if err != nil {
		return nil, err
	}
	value, err := unquote(tok.Lexeme)
	if err != nil {
		return nil, diag.PosErrorf(diag.Lexical, tok.Pos, "invalid string literal %s", tok.Lexeme)
	}
	return ast.NewLiteral(value, b.Env.DtypeString), nil
}

// unquote strips the surrounding quotes and resolves the \" escape, the
// only escape the string-literal rule admits.
func unquote(lexeme string) (string, error) {
	if len(lexeme) < 2 || lexeme[0] != '"' || lexeme[len(lexeme)-1] != '"' {
		return "", diag.Errorf(diag.Lexical, "unterminated string literal")
	}
	return strings.ReplaceAll(lexeme[1:len(lexeme)-1], `\"`, `"`), nil
}

func (b *Builder) reduceBoolLiteral(v any) (*ast.Literal, error) {
	tok, err := token(v)
	if err != nil {
		return nil, err
	}
	return ast.NewLiteral(tok.Lexeme == "true", b.Env.DtypeBool), nil
}

func (b *Builder) reducePushScope() (*scope.Scope, error) {
	return b.Scopes.Push(b.Env.ScopeNames.NewName(), scope.Create)
}

func (b *Builder) reduceNamedScopePush() (any, error) {
	if len(b.namedScope) == 0 {
		return nil, diag.Errorf(diag.Internal, "named scope push without a pending name")
	}
	name := b.namedScope[len(b.namedScope)-1]
	b.namedScope = b.namedScope[:len(b.namedScope)-1]
	// Re-opening an existing package scope is allowed.
	if _, err := b.Scopes.Push(name, scope.GetOrCreate); err != nil {
		return nil, err
	}
	return nil, nil
}

func (b *Builder) reducePopScope() (*scope.Scope, error) {
	return b.Scopes.Pop()
}

func (b *Builder) reduceTaskReady(v any) (*ast.TaskReady, error) {
	task, err := expr(v)
	if err != nil {
		return nil, err
	}
	if _, ok := symbols.IsTask(task.Type()); !ok {
		return nil, diag.Errorf(diag.Type, "taskready expects a task, got %s", task.Type())
	}
	return ast.NewTaskReady(task, b.Env.DtypeBool), nil
}

func (b *Builder) reduceTaskResult(v any) (*ast.TaskResult, error) {
	task, err := expr(v)
	if err != nil {
		return nil, err
	}
	tt, ok := symbols.IsTask(task.Type())
	if !ok {
		return nil, diag.Errorf(diag.Type, "taskresult expects a task, got %s", task.Type())
	}
	return ast.NewTaskResult(task, tt.Element), nil
}

func (b *Builder) reduceTaskStart(v any) (*ast.TaskStart, error) {
	closure, ok := v.(*ast.FunctionClosure)
	if !ok {
		return nil, diag.Errorf(diag.Type, "taskstart expects a lambda literal")
	}
	// Tasks run on their own controller frame, so the body always
	// lowers to a state machine.
	closure.Overload.IsMultiframe = true
	return ast.NewTaskStart(closure, symbols.MakeTask(closure.Overload.ReturnType)), nil
}
