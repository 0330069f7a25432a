// Package regex compiles a conventional regular-expression string into
// a nondeterministic finite automaton. Supported syntax: literals (with
// backslash escapes), implicit concatenation, alternation `|`, `*`,
// `+`, grouping `(...)`, and character classes `[...]` / `[^...]` with
// ranges `a-z` and escapes.
package regex

import (
	"github.com/notimplife/cels-cc/pkg/automata"
	"github.com/notimplife/cels-cc/pkg/charset"
	"github.com/notimplife/cels-cc/pkg/diag"
)

// Stack markers for the shunting-yard-like parser. The parser runs in
// two modes: outside a character class (items are automata and
// operator markers) and inside one (items are literals and ranges).
type item interface{ isItem() }

type marker uint8

const (
	mLeftBracket marker = iota
	mRangeOp
	mAlternate
	mLeftParen
	mComplement
)

func (marker) isItem() {}

type literal struct{ char rune }

func (literal) isItem() {}

type classItem struct{ set charset.Set }

func (classItem) isItem() {}

type faItem struct{ fa *automata.Automaton }

func (faItem) isItem() {}

// Compile parses pattern and returns the equivalent NFA.
func Compile(pattern string) (*automata.Automaton, error) {
	p := &parser{pattern: pattern}
	return p.parse()
}

// unescape resolves a backslash escape: the usual control-character
// names decode, anything else stands for itself.
func unescape(c rune) rune {
	switch c {
	case 't':
		return '\t'
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	default:
		return c
	}
}

// MustCompile is Compile that panics on malformed patterns; for use
// with the built-in token table.
func MustCompile(pattern string) *automata.Automaton {
	fa, err := Compile(pattern)
	if err != nil {
		panic(err)
	}
	return fa
}

type parser struct {
	pattern string
	stack   []item
}

func (p *parser) push(it item) { p.stack = append(p.stack, it) }
func (p *parser) top() (item, bool) {
	if len(p.stack) == 0 {
		return nil, false
	}
	return p.stack[len(p.stack)-1], true
}
func (p *parser) pop() item {
	it := p.stack[len(p.stack)-1]
	p.stack = p.stack[:len(p.stack)-1]
	return it
}

func (p *parser) topIs(m marker) bool {
	it, ok := p.top()
	if !ok {
		return false
	}
	mm, ok := it.(marker)
	return ok && mm == m
}

// popUntil pops items until marker m, returning them in original order.
func (p *parser) popUntil(m marker) ([]item, error) {
	var res []item
	for len(p.stack) > 0 {
		it := p.pop()
		if mm, ok := it.(marker); ok && mm == m {
			for i, j := 0, len(res)-1; i < j; i, j = i+1, j-1 {
				res[i], res[j] = res[j], res[i]
			}
			return res, nil
		}
		res = append(res, it)
	}
	return nil, diag.Errorf(diag.Lexical, "regex %q: unbalanced bracket", p.pattern)
}

func single(set charset.Set) *automata.Automaton {
	return automata.New(map[automata.State][]automata.Edge{
		0: {{On: set, To: 1}},
	}, 0, []automata.State{1})
}

func (p *parser) parse() (*automata.Automaton, error) {
	escaped := false
	inClass := false
	for _, c := range p.pattern {
		var err error
		if inClass {
			inClass, err = p.classChar(c, &escaped)
		} else {
			err = p.exprChar(c, &escaped, &inClass)
		}
		if err != nil {
			return nil, err
		}
	}
	if escaped {
		return nil, diag.Errorf(diag.Lexical, "regex %q: trailing escape", p.pattern)
	}
	if inClass {
		return nil, diag.Errorf(diag.Lexical, "regex %q: unterminated character class", p.pattern)
	}
	fa, err := reduce(p.stack)
	if err != nil {
		return nil, diag.Errorf(diag.Lexical, "regex %q: %v", p.pattern, err)
	}
	return fa, nil
}

// exprChar consumes one character outside a character class.
func (p *parser) exprChar(c rune, escaped *bool, inClass *bool) error {
	if *escaped {
		*escaped = false
		p.push(faItem{single(charset.Single(unescape(c)))})
		return nil
	}
	switch c {
	case '\\':
		*escaped = true
	case '*', '+':
		it, ok := p.top()
		fa, isFA := it.(faItem)
		if !ok || !isFA {
			return diag.Errorf(diag.Lexical, "regex %q: %q must follow an expression", p.pattern, c)
		}
		p.pop()
		if c == '*' {
			p.push(faItem{automata.Star(fa.fa)})
		} else {
			p.push(faItem{automata.Plus(fa.fa)})
		}
	case '|':
		p.push(mAlternate)
	case '(':
		p.push(mLeftParen)
	case ')':
		items, err := p.popUntil(mLeftParen)
		if err != nil {
			return err
		}
		fa, err := reduce(items)
		if err != nil {
			return diag.Errorf(diag.Lexical, "regex %q: %v", p.pattern, err)
		}
		p.push(faItem{fa})
	case '[':
		p.push(mLeftBracket)
		*inClass = true
	default:
		p.push(faItem{single(charset.Single(c))})
	}
	return nil
}

// classChar consumes one character inside a class; it returns whether
// the class is still open.
func (p *parser) classChar(c rune, escaped *bool) (bool, error) {
	if *escaped {
		*escaped = false
		return true, p.classLiteral(unescape(c))
	}
	switch c {
	case '\\':
		*escaped = true
		return true, nil
	case '-':
		if p.topIs(mRangeOp) {
			return true, diag.Errorf(diag.Lexical, "regex %q: duplicate range operator", p.pattern)
		}
		p.push(mRangeOp)
		return true, nil
	case '^':
		if p.topIs(mLeftBracket) {
			p.push(mComplement)
			return true, nil
		}
		return true, p.classLiteral(c)
	case ']':
		items, err := p.popUntil(mLeftBracket)
		if err != nil {
			return false, err
		}
		set := charset.Empty()
		negate := false
		for _, it := range items {
			switch v := it.(type) {
			case classItem:
				set = set.Union(v.set)
			case literal:
				set = set.Union(charset.Single(v.char))
			case marker:
				if v == mComplement {
					negate = true
				}
			}
		}
		if negate {
			set = set.Complement()
		}
		p.push(faItem{single(set)})
		return false, nil
	default:
		return true, p.classLiteral(c)
	}
}

func (p *parser) classLiteral(c rune) error {
	if p.topIs(mRangeOp) {
		p.pop()
		it, ok := p.top()
		lo, isLit := it.(literal)
		if !ok || !isLit {
			return diag.Errorf(diag.Lexical, "regex %q: range must follow a literal", p.pattern)
		}
		p.pop()
		p.push(classItem{charset.OfRange(lo.char, c)})
		return nil
	}
	p.push(literal{c})
	return nil
}

// reduce concatenates runs of automata and unions the runs separated by
// alternation markers.
func reduce(items []item) (*automata.Automaton, error) {
	var alternatives []*automata.Automaton
	cur := automata.Empty()
	flush := func() {
		alternatives = append(alternatives, cur)
		cur = automata.Empty()
	}
	for _, it := range items {
		switch v := it.(type) {
		case faItem:
			cur = automata.Concat(cur, v.fa)
		case marker:
			if v == mAlternate {
				flush()
			} else {
				return nil, diag.Errorf(diag.Lexical, "unexpected token in expression")
			}
		default:
			return nil, diag.Errorf(diag.Lexical, "unexpected token in expression")
		}
	}
	flush()
	out := alternatives[0]
	for _, alt := range alternatives[1:] {
		out = automata.Union(out, alt)
	}
	return out, nil
}
