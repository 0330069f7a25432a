package cppgen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notimplife/cels-cc/pkg/astbuild"
	"github.com/notimplife/cels-cc/pkg/env"
	"github.com/notimplife/cels-cc/pkg/multiframe"
)

func emit(t *testing.T, source string) string {
	t.Helper()
	e, err := env.NewDefault()
	require.NoError(t, err)
	b, err := astbuild.New(e, "")
	require.NoError(t, err)
	block, err := b.BuildAST(source)
	require.NoError(t, err, "source: %s", source)
	require.NoError(t, multiframe.ExtractCalls(block, e))

	em := New(e)
	code, err := em.EmitProgram(block)
	require.NoError(t, err)
	return code
}

func TestEmitArithmetic(t *testing.T) {
	code := emit(t, "var r: int = 1 + 2 * 3;")
	assert.Contains(t, code, "int r;")
	assert.Contains(t, code, "r = (1 + (2 * 3));")
}

func TestEmitConversion(t *testing.T) {
	code := emit(t, "var f: float = 1;")
	assert.Contains(t, code, "float f;")
	assert.Contains(t, code, "f = ((float)(1));")
}

func TestEmitDefaultPrologue(t *testing.T) {
	code := emit(t, "var x: int;")
	assert.True(t, strings.HasPrefix(code, "#include <Celesta>"))
}

func TestEmitIncludeOverrides(t *testing.T) {
	e, err := env.NewDefault()
	require.NoError(t, err)
	b, err := astbuild.New(e, "")
	require.NoError(t, err)
	block, err := b.BuildAST("var x: int;")
	require.NoError(t, err)

	em := New(e)
	em.SystemIncludes = []string{"vector"}
	em.LocalIncludes = []string{"mylib.h"}
	code, err := em.EmitProgram(block)
	require.NoError(t, err)
	assert.Contains(t, code, "#include <vector>")
	assert.Contains(t, code, "#include \"mylib.h\"")
	assert.NotContains(t, code, "#include <Celesta>")
}

func TestEmitPackageNamespace(t *testing.T) {
	code := emit(t, "package core begin var version: int; end;")
	assert.Contains(t, code, "namespace core")
	assert.Contains(t, code, "int version;")
}

func TestEmitFunction(t *testing.T) {
	code := emit(t, `function add(a: int, b: int): int begin return a + b; end;`)
	assert.Contains(t, code, "int add(int a, int b)")
	assert.Contains(t, code, "return (a + b);")
}

func TestEmitExternDeclaration(t *testing.T) {
	code := emit(t, `extern cppinclude("math.h") function sqrtf(v: float): float;`)
	assert.Contains(t, code, "float sqrtf(float v);")
	assert.Contains(t, code, "#include \"math.h\"")
}

func TestEmitStructWithMethod(t *testing.T) {
	code := emit(t, `struct P begin var x: int; function get(): int begin return x; end; end;`)
	assert.Contains(t, code, "struct P")
	assert.Contains(t, code, "int x;")
	assert.Contains(t, code, "int get()")
	assert.Contains(t, code, "(*(this)).x")
}

func TestEmitWhileAndIf(t *testing.T) {
	code := emit(t, `function count(n: int): int begin
  var s: int = 0;
  while n > 0 do begin
    if n == 1 then begin s = s + 1; end;
    fi;
    n = n - 1;
  end;
  return s;
end;`)
	assert.Contains(t, code, "while ((n > 0))")
	assert.Contains(t, code, "if ((n == 1))")
}

func TestEmitMultiframeStruct(t *testing.T) {
	code := emit(t, `multiframe function m(a: int): int begin
  var x: int = a;
  suspend;
  return x;
end;`)

	assert.Contains(t, code, "struct m")
	assert.Contains(t, code, "} params;")
	assert.Contains(t, code, "int a;")
	assert.Contains(t, code, "int return_value;")
	assert.Contains(t, code, "int x;", "locals hoist into the frame")
	assert.Contains(t, code, "inline static void f1(void* _ctx, Celesta::ExecutionController* ctrl)")
	assert.Contains(t, code, "ctrl->suspend();")
	assert.Contains(t, code, "inline static void f_cleanup(void* _ctx, Celesta::ExecutionController* ctrl)")
	assert.Contains(t, code, "ctx->return_value = ctx->x;")
	assert.Contains(t, code, "ctrl->ret(); return;")
	assert.Contains(t, code, "goto L_")
}

func TestEmitMultiframeCallProtocol(t *testing.T) {
	code := emit(t, `multiframe function g(v: int): int begin return v; end;
multiframe function m(): void begin var a: int = g(7); end;`)

	assert.Contains(t, code, "ctrl->push<g>()")
	assert.Contains(t, code, "f->params.v = 7;")
	assert.Contains(t, code, "ctrl->call(f, g::f0, ctx, m::f")
	assert.Contains(t, code, "ctrl->peek<g>()")
	assert.Contains(t, code, "= f->return_value;")
	assert.Contains(t, code, "ctrl->pop();")
	assert.Contains(t, code, "ctrl->jump(ctx, m::f")
}

func TestEmitTaskLifecycle(t *testing.T) {
	code := emit(t, `multiframe function m(): void begin
  var tk = taskstart lambda () : int => begin return 5; end;
  while not taskready(tk) do begin suspend; end;
  var r: int = taskresult(tk);
end;`)

	assert.Contains(t, code, "Celesta::TaskData<int> tk;")
	assert.Contains(t, code, ".ready()")
	assert.Contains(t, code, ".result()")
	assert.Contains(t, code, "ctx->tk.detach();", "cleanup detaches the task slot")
	assert.Contains(t, code, ".attach(ctrl, f,")
}

func TestEmitNonVoidWithoutParams(t *testing.T) {
	code := emit(t, `multiframe function n(): int begin return 3; end;`)
	assert.NotContains(t, code, "} params;", "no params struct when there are no parameters")
	assert.Contains(t, code, "int return_value;")
}

func TestSortFragments(t *testing.T) {
	a := &Fragment{Name: "A", Code: "A", order: 1}
	b := &Fragment{Name: "B", Deps: []string{"A"}, Code: "B", order: 0}
	c := &Fragment{Name: "C", Deps: []string{"B"}, Code: "C", order: 2}

	sorted, err := sortFragments([]*Fragment{b, a, c})
	require.NoError(t, err)
	order := map[string]int{}
	for i, f := range sorted {
		order[f.Name] = i
	}
	assert.Less(t, order["A"], order["B"])
	assert.Less(t, order["B"], order["C"])
}

func TestSortFragmentsCycle(t *testing.T) {
	a := &Fragment{Name: "A", Deps: []string{"B"}}
	b := &Fragment{Name: "B", Deps: []string{"A"}}
	_, err := sortFragments([]*Fragment{a, b})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cyclic")
}

func TestSortFragmentsSelfReferenceAllowed(t *testing.T) {
	// A linked-list node points to itself; that is not a cycle between
	// fragments.
	a := &Fragment{Name: "A", Deps: []string{"A"}}
	sorted, err := sortFragments([]*Fragment{a})
	require.NoError(t, err)
	assert.Len(t, sorted, 1)
}

func TestStructDependencyOrder(t *testing.T) {
	code := emit(t, `struct Inner begin var v: int; end;
struct Outer begin var content: Inner; end;
var o: Outer;`)
	innerAt := strings.Index(code, "struct Inner")
	outerAt := strings.Index(code, "struct Outer")
	require.GreaterOrEqual(t, innerAt, 0)
	require.GreaterOrEqual(t, outerAt, 0)
	assert.Less(t, innerAt, outerAt)
}

func TestEmitTopLevelStatementsKeepOrder(t *testing.T) {
	code := emit(t, `var a: int = 1;
var b: int = 2;`)
	first := strings.Index(code, "a = 1;")
	second := strings.Index(code, "b = 2;")
	require.GreaterOrEqual(t, first, 0)
	require.GreaterOrEqual(t, second, 0)
	assert.Less(t, first, second)
}

func TestEmitStringLiteral(t *testing.T) {
	code := emit(t, `var s: string = "hi";`)
	assert.Contains(t, code, "Celesta::string s;")
	assert.Contains(t, code, `s = "hi";`)
}

func TestEmitArrayDeclarator(t *testing.T) {
	code := emit(t, `var buf: int[8];
var v: int = buf[3];`)
	assert.Contains(t, code, "int buf[8];")
	assert.Contains(t, code, "v = buf[3];")
}

func TestEmitBool(t *testing.T) {
	code := emit(t, `var b: bool = not true;`)
	assert.Contains(t, code, "bool b;")
	assert.Contains(t, code, "b = (!true);")
}
