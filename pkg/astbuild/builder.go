// Package astbuild turns Celesta token streams into a typed AST and a
// populated scope tree. The grammar's semantic actions run during LR(1)
// reductions: they create symbols and scopes, resolve names and
// overloads, insert implicit conversions, and lower lambda literals
// into synthetic functions with explicit captures.
package astbuild

import (
	"github.com/notimplife/cels-cc/pkg/ast"
	"github.com/notimplife/cels-cc/pkg/diag"
	"github.com/notimplife/cels-cc/pkg/env"
	"github.com/notimplife/cels-cc/pkg/grammar"
	"github.com/notimplife/cels-cc/pkg/lexer"
	"github.com/notimplife/cels-cc/pkg/lr1"
	"github.com/notimplife/cels-cc/pkg/scope"
)

// ImportSolver resolves an import path to an AST block, or nil when the
// import contributes nothing. The CLI installs a file-based solver; the
// default rejects imports.
type ImportSolver func(path string) (ast.Node, error)

// Builder owns the grammar, parser and scope state of one compilation.
type Builder struct {
	Env    *env.Environment
	Scopes *scope.Stack

	// ImportSolver handles `import "p"` statements.
	ImportSolver ImportSolver

	factory    *grammar.Factory
	parser     *lr1.Parser
	lex        *lexer.CelsLexer
	namedScope []string
}

// New builds the grammar and its LR(1) parser. When cachePath is
// non-empty the analysis table is loaded from (or persisted to) it.
func New(e *env.Environment, cachePath string) (*Builder, error) {
	b := &Builder{
		Env:     e,
		Scopes:  scope.NewStack(e.Global),
		factory: grammar.NewFactory(),
		lex:     lexer.NewCelsLexer(),
	}
	b.ImportSolver = func(path string) (ast.Node, error) {
		return nil, diag.Errorf(diag.Scope, "imports are not available here: %q", path)
	}
	g, err := b.buildGrammar()
	if err != nil {
		return nil, err
	}
	parser, err := lr1.NewParser(g, cachePath)
	if err != nil {
		return nil, err
	}
	b.parser = parser
	return b, nil
}

// BuildAST lexes and parses source text, returning the program block.
func (b *Builder) BuildAST(source string) (*ast.Block, error) {
	tokens, err := b.lex.Parse(source)
	if err != nil {
		return nil, err
	}
	return b.ParseTokens(tokens)
}

// ParseTokens runs the LR(1) driver over an already-lexed stream.
func (b *Builder) ParseTokens(tokens []lexer.Token) (*ast.Block, error) {
	infos := make([]lr1.TokenInfo, len(tokens))
	for i, tk := range tokens {
		infos[i] = lr1.TokenInfo{
			Terminal: b.factory.Terminal(tk.Kind.String()),
			Value:    tk,
			Pos:      tk.Pos,
			Text:     tk.Lexeme,
		}
	}
	value, err := b.parser.Parse(infos)
	if err != nil {
		return nil, err
	}
	block, ok := value.(*ast.Block)
	if !ok {
		return nil, diag.Errorf(diag.Internal, "parser produced %T, want block", value)
	}
	return block, nil
}

// currentScope returns the scope under construction.
func (b *Builder) currentScope() *scope.Scope { return b.Scopes.Peek() }

// token casts a reduction child to its lexer token.
func token(v any) (lexer.Token, error) {
	tk, ok := v.(lexer.Token)
	if !ok {
		return lexer.Token{}, diag.Errorf(diag.Internal, "expected token, got %T", v)
	}
	return tk, nil
}

// expr casts a reduction child to an expression.
func expr(v any) (ast.Expr, error) {
	e, ok := v.(ast.Expr)
	if !ok {
		return nil, diag.Errorf(diag.Type, "expression expected")
	}
	return e, nil
}

// node casts a reduction child to an AST node.
func node(v any) (ast.Node, error) {
	n, ok := v.(ast.Node)
	if !ok {
		return nil, diag.Errorf(diag.Internal, "expected AST node, got %T", v)
	}
	return n, nil
}
