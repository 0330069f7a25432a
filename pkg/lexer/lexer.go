// Package lexer tokenizes Celesta source text. The engine holds an
// ordered list of rules, each a token kind with a compiled DFA; at each
// offset the rule with the longest non-empty match wins, earlier rules
// breaking ties. The Celesta lexer adds the token table of token.go and
// a post-pass rejecting adjacent literals/keywords.
package lexer

import (
	"github.com/notimplife/cels-cc/pkg/automata"
	"github.com/notimplife/cels-cc/pkg/diag"
	"github.com/notimplife/cels-cc/pkg/regex"
)

// Rule pairs a token kind with its compiled automaton.
type Rule struct {
	Kind Kind
	DFA  *automata.Automaton
}

// Lexer is the generic longest-match tokenizer.
type Lexer struct {
	rules []Rule
}

// AddRule appends a rule; pattern is compiled and determinized.
func (l *Lexer) AddRule(kind Kind, pattern string) error {
	nfa, err := regex.Compile(pattern)
	if err != nil {
		return err
	}
	l.rules = append(l.rules, Rule{Kind: kind, DFA: nfa.Determinize()})
	return nil
}

// Parse tokenizes text. The returned tokens include whitespace and
// comments; filtering is the caller's concern.
func (l *Lexer) Parse(text string) ([]Token, error) {
	var tokens []Token
	pos := diag.Position{Offset: 0, Line: 1, Column: 1}
	for pos.Offset < len(text) {
		best := -1
		var kind Kind
		for _, rule := range l.rules {
			if n := rule.DFA.LongestMatch(text, pos.Offset); n > best {
				best = n
				kind = rule.Kind
			}
		}
		if best <= 0 {
			return tokens, diag.PosErrorf(diag.Lexical, pos, "invalid token")
		}
		lexeme := text[pos.Offset : pos.Offset+best]
		tokens = append(tokens, Token{Kind: kind, Lexeme: lexeme, Pos: pos})
		pos = advance(pos, lexeme)
	}
	return tokens, nil
}

// advance moves pos past lexeme, tracking line and column.
func advance(pos diag.Position, lexeme string) diag.Position {
	pos.Offset += len(lexeme)
	for _, c := range lexeme {
		if c == '\n' {
			pos.Line++
			pos.Column = 1
		} else {
			pos.Column++
		}
	}
	return pos
}

// CelsLexer tokenizes Celesta with the built-in token table.
type CelsLexer struct {
	Lexer
}

// NewCelsLexer compiles the Celesta token table. The table patterns are
// trusted; a compile failure is a bug.
func NewCelsLexer() *CelsLexer {
	l := &CelsLexer{}
	for _, r := range celsRules {
		if err := l.AddRule(r.kind, r.pattern); err != nil {
			panic(err)
		}
	}
	return l
}

// Parse tokenizes text, enforces the literal/keyword separation rule,
// and drops whitespace and comment tokens.
func (l *CelsLexer) Parse(text string) ([]Token, error) {
	tokens, err := l.Lexer.Parse(text)
	if err != nil {
		return nil, err
	}
	for i := 0; i+1 < len(tokens); i++ {
		if spaceRequired(tokens[i].Kind, tokens[i+1].Kind) {
			return nil, diag.PosErrorf(diag.Lexical, tokens[i+1].Pos,
				"missing whitespace between consecutive literals and/or keywords")
		}
	}
	kept := tokens[:0]
	for _, tk := range tokens {
		if tk.Kind == WS || tk.Kind == COMMENT {
			continue
		}
		kept = append(kept, tk)
	}
	return kept, nil
}

// spaceRequired reports whether two adjacent tokens of these kinds must
// be whitespace-separated: a literal next to a literal or keyword, in
// either order.
func spaceRequired(a, b Kind) bool {
	h := func(x, y Kind) bool {
		return x.IsLiteral() && (y.IsLiteral() || y.IsKeyword())
	}
	return h(a, b) || h(b, a)
}
