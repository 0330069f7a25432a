package multiframe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notimplife/cels-cc/pkg/ast"
	"github.com/notimplife/cels-cc/pkg/astbuild"
	"github.com/notimplife/cels-cc/pkg/env"
	"github.com/notimplife/cels-cc/pkg/symbols"
)

func compile(t *testing.T, source string) (*ast.Block, *env.Environment) {
	t.Helper()
	e, err := env.NewDefault()
	require.NoError(t, err)
	b, err := astbuild.New(e, "")
	require.NoError(t, err)
	block, err := b.BuildAST(source)
	require.NoError(t, err, "source: %s", source)
	return block, e
}

func overloadOf(t *testing.T, e *env.Environment, name string) *symbols.FunctionOverload {
	t.Helper()
	sym, err := e.Global.Resolve(name)
	require.NoError(t, err)
	fn := sym.(*symbols.Function)
	require.NotEmpty(t, fn.Overloads())
	return fn.Overloads()[0]
}

func TestExtractNestedCall(t *testing.T) {
	block, e := compile(t, `multiframe function g(): int;
function h(): void begin var a: int = g() + 1; end;`)
	require.NoError(t, ExtractCalls(block, e))

	impl := overloadOf(t, e, "h").Implementation.(*ast.Block)
	children := impl.Children()
	require.Len(t, children, 4)

	// var a; var cels_sN; cels_sN = g(); a = cels_sN + 1
	declA, ok := children[0].(*ast.VDecl)
	require.True(t, ok)
	assert.Equal(t, "a", declA.Var.Name())

	declTmp, ok := children[1].(*ast.VDecl)
	require.True(t, ok)
	assert.Contains(t, declTmp.Var.Name(), "cels_s")
	assert.True(t, symbols.Same(declTmp.Var.Type, e.DtypeInt))

	callAssign, ok := children[2].(*ast.Assign)
	require.True(t, ok)
	call, ok := callAssign.Right().(*ast.Call)
	require.True(t, ok)
	assert.True(t, call.Overload.IsMultiframe)

	finalAssign, ok := children[3].(*ast.Assign)
	require.True(t, ok)
	add, ok := finalAssign.Right().(*ast.BinaryOp)
	require.True(t, ok)
	ref, ok := add.Left().(*ast.SymbolTerm)
	require.True(t, ok)
	assert.Same(t, declTmp.Var, ref.Sym, "the call site now reads the temporary")
}

func TestExtractWhileCondition(t *testing.T) {
	block, e := compile(t, `multiframe function g(): bool;
multiframe function m(): void begin while g() do begin suspend; end; end;`)
	require.NoError(t, ExtractCalls(block, e))

	impl := overloadOf(t, e, "m").Implementation.(*ast.Block)
	children := impl.Children()
	require.Len(t, children, 3)

	_, ok := children[0].(*ast.VDecl)
	require.True(t, ok)
	initAssign, ok := children[1].(*ast.Assign)
	require.True(t, ok)
	_, ok = initAssign.Right().(*ast.Call)
	require.True(t, ok, "condition read once before the loop")

	loop, ok := children[2].(*ast.While)
	require.True(t, ok)
	_, ok = loop.Condition().(*ast.SymbolTerm)
	require.True(t, ok, "loop now tests the temporary")

	// The loop body re-reads the condition at its end.
	body := loop.Body().(*ast.Block)
	bodyChildren := body.Children()
	require.NotEmpty(t, bodyChildren)
	last, ok := bodyChildren[len(bodyChildren)-1].(*ast.Assign)
	require.True(t, ok)
	reread, ok := last.Right().(*ast.Call)
	require.True(t, ok)
	assert.True(t, reread.Overload.IsMultiframe)
}

func TestBareCallNotExtracted(t *testing.T) {
	block, e := compile(t, `multiframe function g(): int;
function h(): void begin g(); end;`)
	require.NoError(t, ExtractCalls(block, e))

	impl := overloadOf(t, e, "h").Implementation.(*ast.Block)
	children := impl.Children()
	require.Len(t, children, 1, "a statement-position call stays in place")
	_, ok := children[0].(*ast.Call)
	assert.True(t, ok)
}

func buildCFG(t *testing.T, e *env.Environment, block *ast.Block, name string) (*CFG, map[int]*Component) {
	t.Helper()
	require.NoError(t, ExtractCalls(block, e))
	overload := overloadOf(t, e, name)
	cfg, err := NewCFG(overload)
	require.NoError(t, err)
	require.NoError(t, cfg.Ungroup())
	components, err := cfg.FindComponents()
	require.NoError(t, err)
	return cfg, components
}

func TestComponentsStraightLine(t *testing.T) {
	block, e := compile(t, `multiframe function m(): int begin
  var a: int = 1;
  return a;
end;`)
	_, components := buildCFG(t, e, block, "m")

	// No suspension point: the pre-entry component and the single body
	// component.
	require.Len(t, components, 2)
	assert.NotNil(t, components[0])
	assert.NotNil(t, components[1], "the entry component has id 1")
}

func TestComponentsSplitAtSuspend(t *testing.T) {
	block, e := compile(t, `multiframe function m(): void begin
  var a: int = 1;
  suspend;
  a = 2;
end;`)
	_, components := buildCFG(t, e, block, "m")
	assert.GreaterOrEqual(t, len(components), 3,
		"suspension separates the code before and after")

	// Every f-node routes into a component that exists.
	for _, comp := range components {
		for _, n := range EnumerateNodes(comp.Head) {
			if n.Type == NodeFuncJump {
				require.NotNil(t, n.Comp)
				assert.Contains(t, components, n.Comp.ID)
			}
		}
	}
}

func TestCallSplitsIntoPrePost(t *testing.T) {
	block, e := compile(t, `multiframe function g(): int;
multiframe function m(): void begin var a: int = g(); end;`)
	_, components := buildCFG(t, e, block, "m")

	var pres []*PreCall
	var posts []*PostCall
	// Linear-path collapse may merge the Post half with the statement
	// after it, so merged blocks are searched too.
	for _, comp := range components {
		for _, n := range EnumerateNodes(comp.Head) {
			if n.AST == nil {
				continue
			}
			ast.Walk(n.AST, func(child ast.Node) bool {
				switch v := child.(type) {
				case *PreCall:
					pres = append(pres, v)
				case *PostCall:
					posts = append(posts, v)
				}
				return false
			})
		}
	}
	require.Len(t, pres, 1)
	require.Len(t, posts, 1)
	assert.NotNil(t, posts[0].ResultLHS, "assigned call keeps its left-hand side")
	assert.Contains(t, components, pres[0].JumpF, "the pre half records its resume component")
	assert.NotZero(t, pres[0].JumpF)
}

func TestCollapseLeavesNoMergeablePairs(t *testing.T) {
	block, e := compile(t, `multiframe function m(): void begin
  var a: int = 1;
  var b: int = 2;
  a = a + b;
  suspend;
  b = a;
end;`)
	_, components := buildCFG(t, e, block, "m")

	for _, comp := range components {
		preds := map[int]int{}
		for _, n := range EnumerateNodes(comp.Head) {
			for _, succ := range n.Next {
				preds[succ.ID]++
			}
		}
		for _, n := range EnumerateNodes(comp.Head) {
			if n.Type != NodeInstr || n.AST == nil || len(n.Next) != 1 || preds[n.ID] > 1 {
				continue
			}
			if isSuspension(n) {
				continue
			}
			succ := n.Next[0]
			mergeable := succ.Type == NodeInstr && succ.AST != nil &&
				preds[succ.ID] <= 1 && !isSuspension(succ)
			assert.False(t, mergeable, "nodes %d -> %d should have merged", n.ID, succ.ID)
		}
	}
}

func TestConditionalsPreserved(t *testing.T) {
	block, e := compile(t, `multiframe function m(): void begin
  var a: int = 1;
  if a > 0 then begin suspend; end;
  fi;
  a = 2;
end;`)
	_, components := buildCFG(t, e, block, "m")

	var conditionals []*Node
	for _, comp := range components {
		for _, n := range EnumerateNodes(comp.Head) {
			if n.Type == NodeConditional {
				conditionals = append(conditionals, n)
			}
		}
	}
	require.NotEmpty(t, conditionals)
	for _, c := range conditionals {
		assert.Len(t, c.Next, 2, "conditionals keep false and true successors")
	}
}

func TestBreakContinueRouting(t *testing.T) {
	block, e := compile(t, `multiframe function m(): void begin
  var i: int = 0;
  while i < 10 do begin
    i = i + 1;
    if i == 5 then begin break; end;
    fi;
  end;
end;`)
	require.NoError(t, ExtractCalls(block, e))
	overload := overloadOf(t, e, "m")
	cfg, err := NewCFG(overload)
	require.NoError(t, err)
	require.NoError(t, cfg.Ungroup())

	// The ungrouped graph terminates: the end node stays reachable and
	// the loop's conditional has both exits.
	var endNodes, conditionals int
	for _, n := range EnumerateNodes(cfg.Start()) {
		switch n.Type {
		case NodeEnd:
			endNodes++
		case NodeConditional:
			conditionals++
			assert.Len(t, n.Next, 2)
		}
	}
	assert.Equal(t, 1, endNodes)
	assert.Equal(t, 2, conditionals, "while condition and if condition")
}
