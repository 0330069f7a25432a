package astbuild

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notimplife/cels-cc/pkg/ast"
	"github.com/notimplife/cels-cc/pkg/diag"
	"github.com/notimplife/cels-cc/pkg/env"
	"github.com/notimplife/cels-cc/pkg/symbols"
)

func newBuilder(t *testing.T) (*Builder, *env.Environment) {
	t.Helper()
	e, err := env.NewDefault()
	require.NoError(t, err)
	b, err := New(e, "")
	require.NoError(t, err)
	return b, e
}

func build(t *testing.T, source string) (*ast.Block, *env.Environment) {
	t.Helper()
	b, e := newBuilder(t)
	block, err := b.BuildAST(source)
	require.NoError(t, err, "source: %s", source)
	return block, e
}

// findNode returns the first node of the walk for which pred holds.
func findNode[T ast.Node](root ast.Node) (T, bool) {
	var found T
	ok := false
	ast.Walk(root, func(n ast.Node) bool {
		if v, isT := n.(T); isT && !ok {
			found = v
			ok = true
		}
		return false
	})
	return found, ok
}

func TestArithmeticPrecedence(t *testing.T) {
	block, e := build(t, "var r: int = 1 + 2 * 3;")

	children := block.Children()
	require.Len(t, children, 2)
	vdecl, ok := children[0].(*ast.VDecl)
	require.True(t, ok)
	assert.Equal(t, "r", vdecl.Var.Name())
	assert.True(t, symbols.Same(vdecl.Var.Type, e.DtypeInt))

	assign, ok := children[1].(*ast.Assign)
	require.True(t, ok)
	add, ok := assign.Right().(*ast.BinaryOp)
	require.True(t, ok)
	assert.Equal(t, "+", add.Op.Symbol)

	lhs, ok := add.Left().(*ast.Literal)
	require.True(t, ok)
	assert.Equal(t, 1, lhs.Value)

	mul, ok := add.Right().(*ast.BinaryOp)
	require.True(t, ok, "multiplication binds tighter")
	assert.Equal(t, "*", mul.Op.Symbol)
}

func TestImplicitConversionOnAssignment(t *testing.T) {
	block, e := build(t, "var f: float = 1;")

	children := block.Children()
	require.Len(t, children, 2)
	assign := children[1].(*ast.Assign)
	conv, ok := assign.Right().(*ast.TypeConvert)
	require.True(t, ok, "int literal converts to float")
	assert.True(t, symbols.Same(conv.Type(), e.DtypeFloat))
	lit, ok := conv.Expression().(*ast.Literal)
	require.True(t, ok)
	assert.Equal(t, 1, lit.Value)
}

func TestAssignmentWithoutConverterFails(t *testing.T) {
	b, _ := newBuilder(t)
	_, err := b.BuildAST(`var i: int = 1.5;`)
	require.Error(t, err)
	assert.True(t, diag.IsKind(err, diag.Type))
}

func TestStructMethodImplicitThis(t *testing.T) {
	source := `struct P begin var x: int; function get(): int begin return x; end; end;`
	block, e := build(t, source)
	_ = block

	sym, err := e.Global.Resolve("P")
	require.NoError(t, err)
	structType := sym.(*symbols.StructType)

	getSym, err := structType.InnerScope().Resolve("get")
	require.NoError(t, err)
	fn := getSym.(*symbols.Function)
	require.Len(t, fn.Overloads(), 1)
	overload := fn.Overloads()[0]

	require.NotEmpty(t, overload.Params)
	this := overload.Params[0]
	assert.Equal(t, "this", this.Name())
	ptr, ok := symbols.IsPointer(this.Type)
	require.True(t, ok)
	assert.True(t, symbols.Same(ptr.Element, structType))

	// The bare `x` in the body lowered to (*this).x.
	impl := overload.Implementation.(ast.Node)
	ret, ok := findNode[*ast.Return](impl)
	require.True(t, ok)
	access, ok := ret.Value().(*ast.FieldAccessor)
	require.True(t, ok)
	assert.Equal(t, "x", access.Field.Name())
	_, isDeref := access.Element().(*ast.Dereference)
	assert.True(t, isDeref)
}

func TestOverloadSelectionByConversionCount(t *testing.T) {
	source := `function f(a: int): void begin end;
function f(a: float): void begin end;
f(1);`
	block, e := build(t, source)

	call, ok := findNode[*ast.Call](block)
	require.True(t, ok)
	assert.True(t, symbols.Same(call.Overload.Params[0].Type, e.DtypeInt),
		"zero conversions beat one")
	// No conversion wrapper on the argument.
	_, isLit := call.Args()[0].(*ast.Literal)
	assert.True(t, isLit)
}

func TestOverloadSelectsUniqueConvertible(t *testing.T) {
	source := `function f(a: float): void begin end;
f(1);`
	block, e := build(t, source)

	call, ok := findNode[*ast.Call](block)
	require.True(t, ok)
	assert.True(t, symbols.Same(call.Overload.Params[0].Type, e.DtypeFloat))
	_, isConv := call.Args()[0].(*ast.TypeConvert)
	assert.True(t, isConv, "argument wrapped in the int->float conversion")
}

func TestOverloadAmbiguity(t *testing.T) {
	e, err := env.NewDefault()
	require.NoError(t, err)
	// With int convertible to both float and uint, f(1) has two
	// one-conversion candidates.
	_, err = e.Ops.RegisterConverter(e.DtypeInt, e.DtypeUint)
	require.NoError(t, err)
	b, err := New(e, "")
	require.NoError(t, err)

	_, err = b.BuildAST(`function f(a: float): void begin end;
function f(a: uint): void begin end;
f(1);`)
	require.Error(t, err)
	assert.True(t, diag.IsKind(err, diag.Type))
	assert.Contains(t, err.Error(), "ambiguous")
}

func TestOverloadNoMatch(t *testing.T) {
	b, _ := newBuilder(t)
	_, err := b.BuildAST(`function f(a: int): void begin end;
f("text");`)
	require.Error(t, err)
	assert.True(t, diag.IsKind(err, diag.Type))
	assert.Contains(t, err.Error(), "no match")
}

func TestNonCallableRejected(t *testing.T) {
	b, _ := newBuilder(t)
	_, err := b.BuildAST(`var v: int;
v(1);`)
	require.Error(t, err)
	assert.True(t, diag.IsKind(err, diag.Type))
	assert.Contains(t, err.Error(), "not callable")
}

func TestUnknownSymbol(t *testing.T) {
	b, _ := newBuilder(t)
	_, err := b.BuildAST(`mystery;`)
	require.Error(t, err)
	assert.True(t, diag.IsKind(err, diag.Scope))
}

func TestDuplicateVariable(t *testing.T) {
	b, _ := newBuilder(t)
	_, err := b.BuildAST(`var x: int;
var x: int;`)
	require.Error(t, err)
	assert.True(t, diag.IsKind(err, diag.Scope))
}

func TestPackageScoping(t *testing.T) {
	source := `package core begin var version: int; end;`
	block, e := build(t, source)

	pkg, ok := findNode[*ast.Package](block)
	require.True(t, ok)
	assert.Equal(t, "core", pkg.Name)
	assert.True(t, pkg.Scope.IsPackage)

	sym, err := e.Global.Resolve("core::version")
	require.NoError(t, err)
	assert.Equal(t, "::core::version", sym.FullName())
}

func TestPointerTypesAndDereference(t *testing.T) {
	source := `var x: int;
var p: int* = &x;
var y: int = *p;`
	block, e := build(t, source)

	var derefs []*ast.Dereference
	ast.Walk(block, func(n ast.Node) bool {
		if d, ok := n.(*ast.Dereference); ok {
			derefs = append(derefs, d)
		}
		return false
	})
	require.Len(t, derefs, 1)
	assert.True(t, symbols.Same(derefs[0].Type(), e.DtypeInt))

	sym, err := e.Global.Resolve("p")
	require.NoError(t, err)
	_, isPtr := symbols.IsPointer(sym.(*symbols.Variable).Type)
	assert.True(t, isPtr)
}

func TestDereferenceNonPointerFails(t *testing.T) {
	b, _ := newBuilder(t)
	_, err := b.BuildAST(`var x: int;
var y: int = *x;`)
	require.Error(t, err)
	assert.True(t, diag.IsKind(err, diag.Type))
}

func TestStaticArrayIndexing(t *testing.T) {
	source := `var buf: int[8];
var v: int = buf[3];`
	block, e := build(t, source)

	ix, ok := findNode[*ast.IndexAccess](block)
	require.True(t, ok)
	assert.True(t, symbols.Same(ix.Type(), e.DtypeInt))
	assert.Equal(t, "static_array", ix.Indexer.Archetype.Name)
}

func TestWhileIfStatements(t *testing.T) {
	source := `var n: int = 3;
while n > 0 do begin
  if n == 1 then begin break; end;
  else begin n = n - 1; end;
  fi;
end;`
	block, _ := build(t, source)

	loop, ok := findNode[*ast.While](block)
	require.True(t, ok)
	cond, ok := loop.Condition().(*ast.BinaryOp)
	require.True(t, ok)
	assert.Equal(t, ">", cond.Op.Symbol)

	cndl, ok := findNode[*ast.If](block)
	require.True(t, ok)
	assert.NotNil(t, cndl.Else())

	_, hasBreak := findNode[*ast.Break](block)
	assert.True(t, hasBreak)
}

func TestUnaryNot(t *testing.T) {
	source := `var b: bool = not true;`
	block, e := build(t, source)
	not, ok := findNode[*ast.UnaryOp](block)
	require.True(t, ok)
	assert.Equal(t, "not", not.Op.Symbol)
	assert.True(t, symbols.Same(not.Type(), e.DtypeBool))
}

func TestLambdaCaptureLowering(t *testing.T) {
	source := `function outer(): void begin
  var a: int;
  var h = lambda (x: int) => (x + a);
end;`
	block, e := build(t, source)

	closure, ok := findNode[*ast.FunctionClosure](block)
	require.True(t, ok)
	overload := closure.Overload

	// One captured pointer parameter, then the lambda's own parameter.
	require.Len(t, overload.Params, 2)
	capturedParam := overload.Params[0]
	assert.Equal(t, "a", capturedParam.Name())
	ptr, isPtr := symbols.IsPointer(capturedParam.Type)
	require.True(t, isPtr)
	assert.True(t, symbols.Same(ptr.Element, e.DtypeInt))
	assert.Equal(t, "x", overload.Params[1].Name())

	// The capture argument takes the original symbol's address.
	captured := closure.CapturedArgs()
	require.Len(t, captured, 1)
	addr, isAddr := captured[0].(*ast.AddressOf)
	require.True(t, isAddr)
	term := addr.Operand().(*ast.SymbolTerm)
	assert.Equal(t, "a", term.Sym.Name())

	// The expression body became return (x + *a).
	impl := overload.Implementation.(ast.Node)
	ret, hasRet := findNode[*ast.Return](impl)
	require.True(t, hasRet)
	addExpr := ret.Value().(*ast.BinaryOp)
	_, leftIsTerm := addExpr.Left().(*ast.SymbolTerm)
	assert.True(t, leftIsTerm)
	deref, rightIsDeref := addExpr.Right().(*ast.Dereference)
	require.True(t, rightIsDeref, "captured reference dereferences the pointer parameter")
	derefTerm := deref.Operand().(*ast.SymbolTerm)
	assert.Same(t, capturedParam, derefTerm.Sym)

	// The synthetic function lives in the global scope.
	assert.Contains(t, overload.Func.Name(), "icels_lambda_")
}

func TestLambdaGlobalNotCaptured(t *testing.T) {
	source := `var g: int;
function outer(): void begin
  var h = lambda (x: int) => (x + g);
end;`
	block, _ := build(t, source)

	closure, ok := findNode[*ast.FunctionClosure](block)
	require.True(t, ok)
	// Only the lambda's own parameter: globals with plain dotted names
	// stay referable.
	assert.Len(t, closure.Overload.Params, 1)
	assert.Empty(t, closure.CapturedArgs())
}

func TestLambdaMultiframeDetection(t *testing.T) {
	source := `multiframe function g(): int;
function outer(): void begin
  var h = lambda () => begin g(); end;
end;`
	block, _ := build(t, source)
	closure, ok := findNode[*ast.FunctionClosure](block)
	require.True(t, ok)
	assert.True(t, closure.Overload.IsMultiframe)
}

func TestMultiframeSpecs(t *testing.T) {
	source := `multiframe function g(): int;
extern cppinclude("math.h") function sqrtf(v: float): float;`
	_, e := build(t, source)

	gSym, err := e.Global.Resolve("g")
	require.NoError(t, err)
	g := gSym.(*symbols.Function).Overloads()[0]
	assert.True(t, g.IsMultiframe)
	assert.False(t, g.IsExtern)

	sSym, err := e.Global.Resolve("sqrtf")
	require.NoError(t, err)
	s := sSym.(*symbols.Function).Overloads()[0]
	assert.True(t, s.IsExtern)
	assert.Equal(t, "math.h", s.CppInclude)
}

func TestTaskOperations(t *testing.T) {
	source := `multiframe function worker(): void begin
  var tk = taskstart lambda () : int => begin return 1; end;
  while not taskready(tk) do begin suspend; end;
  var r: int = taskresult(tk);
end;`
	block, e := build(t, source)
	_ = block

	workerSym, err := e.Global.Resolve("worker")
	require.NoError(t, err)
	impl := workerSym.(*symbols.Function).Overloads()[0].Implementation.(ast.Node)

	start, ok := findNode[*ast.TaskStart](impl)
	require.True(t, ok)
	taskType, isTask := symbols.IsTask(start.Type())
	require.True(t, isTask)
	assert.True(t, symbols.Same(taskType.Element, e.DtypeInt))

	ready, ok := findNode[*ast.TaskReady](impl)
	require.True(t, ok)
	assert.True(t, symbols.Same(ready.Type(), e.DtypeBool))

	result, ok := findNode[*ast.TaskResult](impl)
	require.True(t, ok)
	assert.True(t, symbols.Same(result.Type(), e.DtypeInt))
}

func TestSymbolChains(t *testing.T) {
	source := `package a begin package b begin var deep: int; end; end;
var v: int = a::b::deep;`
	block, _ := build(t, source)
	terms := []*ast.SymbolTerm{}
	ast.Walk(block, func(n ast.Node) bool {
		if s, ok := n.(*ast.SymbolTerm); ok {
			terms = append(terms, s)
		}
		return false
	})
	found := false
	for _, term := range terms {
		if term.Sym.FullName() == "::a::b::deep" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestSyntaxErrorPosition(t *testing.T) {
	b, _ := newBuilder(t)
	_, err := b.BuildAST("var : int;")
	require.Error(t, err)
	assert.True(t, diag.IsKind(err, diag.Syntax))
	var de *diag.Error
	require.ErrorAs(t, err, &de)
	assert.NotNil(t, de.Pos)
}

func TestImportSolverHook(t *testing.T) {
	b, e := newBuilder(t)
	b.ImportSolver = func(path string) (ast.Node, error) {
		assert.Equal(t, "lib/util", path)
		return b.BuildAST("var imported: int;")
	}
	_, err := b.BuildAST(`import "lib/util";`)
	require.NoError(t, err)

	_, err = e.Global.Resolve("imported")
	assert.NoError(t, err)
}
