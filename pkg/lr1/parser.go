package lr1

import (
	"strings"

	"github.com/notimplife/cels-cc/pkg/diag"
	"github.com/notimplife/cels-cc/pkg/grammar"
)

// TokenInfo is one driver input: the terminal a token matches, the
// value pushed on shift, and position/text for error messages.
type TokenInfo struct {
	Terminal *grammar.Terminal
	Value    any
	Pos      diag.Position
	Text     string
}

// Parser is the generic shift/reduce driver over a conflict-free
// analysis table.
type Parser struct {
	Grammar *grammar.Grammar
	Table   *Table
}

// NewParser builds (or loads) the analysis table and refuses to run on
// conflicts. When cachePath is non-empty, a persisted table with a
// matching checksum is reused; otherwise the table is recomputed and
// rewritten.
func NewParser(g *grammar.Grammar, cachePath string) (*Parser, error) {
	var table *Table
	if cachePath != "" {
		loaded, err := Load(g, cachePath)
		if err != nil {
			return nil, err
		}
		table = loaded
	}
	if table == nil {
		table = NewTable(g)
		if cachePath != "" {
			if err := table.Save(cachePath); err != nil {
				return nil, err
			}
		}
	}
	if conflicts := table.FindConflicts(); len(conflicts) > 0 {
		parts := make([]string, len(conflicts))
		for i, c := range conflicts {
			parts[i] = c.String()
		}
		return nil, diag.Errorf(diag.Grammar, "conflicts in LR(1) analysis table:\n  %s",
			strings.Join(parts, "\n  "))
	}
	return &Parser{Grammar: g, Table: table}, nil
}

// stackSym is one (symbol, value) slot of the work stack.
type stackSym struct {
	value any
}

// Parse runs the driver over tokens and returns the value of the start
// rule's single right-hand-side symbol. Accept takes the place of the
// reduction by the start rule, so that rule's action is not run; a start
// rule with more than one body symbol ends in an internal error.
func (p *Parser) Parse(tokens []TokenInfo) (any, error) {
	states := []int{0}
	var syms []stackSym
	pos := 0

	lookColumn := func() Column {
		if pos < len(tokens) {
			return TermColumn(tokens[pos].Terminal)
		}
		return EOWColumn()
	}
	syntaxErr := func() error {
		if pos >= len(tokens) {
			return diag.Errorf(diag.Syntax, "unexpected end of input")
		}
		tk := tokens[pos]
		return diag.PosErrorf(diag.Syntax, tk.Pos, "unexpected token `%s`", tk.Text)
	}

	for {
		actions := p.Table.Actions(states[len(states)-1], lookColumn())
		if len(actions) == 0 {
			return nil, syntaxErr()
		}
		act := actions[0]
		switch act.Type {
		case ActShift:
			syms = append(syms, stackSym{value: tokens[pos].Value})
			states = append(states, act.Value)
			pos++

		case ActReduce:
			rule := p.Grammar.Rules[act.Value]
			n := len(rule.RHS)
			children := make([]any, n)
			for i := 0; i < n; i++ {
				children[i] = syms[len(syms)-n+i].value
			}
			syms = syms[:len(syms)-n]
			states = states[:len(states)-n]

			value, err := rule.Apply(children)
			if err != nil {
				return nil, p.annotate(err, pos, tokens)
			}
			gotoActions := p.Table.Actions(states[len(states)-1], NonTermColumn(rule.LHS))
			if len(gotoActions) == 0 || gotoActions[0].Type != ActShift {
				return nil, syntaxErr()
			}
			syms = append(syms, stackSym{value: value})
			states = append(states, gotoActions[0].Value)

		case ActAccept:
			if len(syms) != 1 {
				return nil, diag.Errorf(diag.Internal, "accept with %d values on the stack", len(syms))
			}
			return syms[0].value, nil
		}
	}
}

// annotate attaches the current token position to errors raised by
// semantic actions, keeping their original kind.
func (p *Parser) annotate(err error, pos int, tokens []TokenInfo) error {
	de, ok := err.(*diag.Error)
	if !ok {
		kind := diag.Syntax
		de = diag.Errorf(kind, "%v", err)
	}
	if de.Pos == nil && pos < len(tokens) {
		tk := tokens[pos]
		out := diag.PosErrorf(de.Kind, tk.Pos, "%s (near `%s`)", de.Msg, tk.Text)
		out.Err = de.Err
		out.Name = de.Name
		return out
	}
	return de
}
