package lr1

import (
	"fmt"
	"sort"
	"strings"

	"github.com/notimplife/cels-cc/pkg/diag"
	"github.com/notimplife/cels-cc/pkg/grammar"
)

// Column kinds in the analysis table and its on-disk form.
const (
	ColTerminal    = 't'
	ColNonTerminal = 'n'
	ColEndOfWord   = 'e'
)

// Column identifies an analysis-table column: a terminal, a
// non-terminal, or the end-of-word marker.
type Column struct {
	Kind    byte
	Payload string // terminal value or non-terminal name; "$" for end-of-word
}

// TermColumn returns the column of a terminal.
func TermColumn(t *grammar.Terminal) Column {
	return Column{Kind: ColTerminal, Payload: t.Value}
}

// NonTermColumn returns the column of a non-terminal.
func NonTermColumn(n *grammar.NonTerminal) Column {
	return Column{Kind: ColNonTerminal, Payload: n.Name}
}

// EOWColumn returns the end-of-word column.
func EOWColumn() Column { return Column{Kind: ColEndOfWord, Payload: "$"} }

func (c Column) String() string { return c.Payload }

// Action kinds.
const (
	ActShift  = 's'
	ActReduce = 'r'
	ActAccept = 'a'
)

// Action is one analysis-table cell entry: shift to a state, reduce by
// a rule, or accept.
type Action struct {
	Type  byte
	Value int
}

func (a Action) String() string {
	if a.Type == ActAccept {
		return "a"
	}
	return fmt.Sprintf("%c%d", a.Type, a.Value)
}

func parseAction(s string) (Action, error) {
	if s == "a" {
		return Action{Type: ActAccept, Value: -1}, nil
	}
	if len(s) > 1 && (s[0] == ActShift || s[0] == ActReduce) {
		var v int
		if _, err := fmt.Sscanf(s[1:], "%d", &v); err == nil {
			return Action{Type: s[0], Value: v}, nil
		}
	}
	return Action{}, diag.Errorf(diag.Grammar, "invalid table action %q", s)
}

// cellKey addresses one table cell.
type cellKey struct {
	State int
	Col   Column
}

// Table is the LR(1) analysis table. A cell may hold several actions
// until conflict detection rejects the grammar.
type Table struct {
	Grammar    *grammar.Grammar
	cells      map[cellKey][]Action
	collection *Collection // nil when the table was loaded from disk
}

// NewTable builds the analysis table from the canonical collection.
func NewTable(g *grammar.Grammar) *Table {
	t := &Table{Grammar: g, cells: map[cellKey][]Action{}}
	cc := NewCollection(g)
	t.collection = cc

	// Shifts over terminals; gotos over non-terminals share the shift
	// encoding, the driver interprets them by column kind.
	for key, target := range cc.Transitions {
		var col Column
		switch comp := key.Comp.(type) {
		case *grammar.Terminal:
			col = TermColumn(comp)
		case *grammar.NonTerminal:
			col = NonTermColumn(comp)
		default:
			continue
		}
		t.add(cellKey{State: key.State, Col: col}, Action{Type: ActShift, Value: target})
	}

	// Reductions and accept from completed items.
	for _, state := range cc.States {
		for it := range state.Closure {
			if !it.AtEnd() {
				continue
			}
			look := it.Look
			switch {
			case look.EOW && it.Rule.LHS == g.Start:
				t.add(cellKey{State: state.ID, Col: EOWColumn()}, Action{Type: ActAccept, Value: -1})
			case look.EOW:
				t.add(cellKey{State: state.ID, Col: EOWColumn()}, Action{Type: ActReduce, Value: it.Rule.ID})
			case !look.Empty:
				t.add(cellKey{State: state.ID, Col: TermColumn(look.Term)},
					Action{Type: ActReduce, Value: it.Rule.ID})
			}
		}
	}
	return t
}

func (t *Table) add(key cellKey, a Action) {
	for _, existing := range t.cells[key] {
		if existing == a {
			return
		}
	}
	t.cells[key] = append(t.cells[key], a)
}

// Actions returns the cell for (state, col); empty means error entry.
func (t *Table) Actions(state int, col Column) []Action {
	return t.cells[cellKey{State: state, Col: col}]
}

// Conflict describes one multi-entry cell.
type Conflict struct {
	State   int
	Col     Column
	Actions []Action
	Rules   []*grammar.Rule // rules of the state's items, for reporting
}

func (c Conflict) String() string {
	kinds := make([]string, len(c.Actions))
	for i, a := range c.Actions {
		switch a.Type {
		case ActShift:
			kinds[i] = "shift"
		case ActReduce:
			kinds[i] = "reduce"
		case ActAccept:
			kinds[i] = "acc"
		}
	}
	rules := make([]string, len(c.Rules))
	for i, r := range c.Rules {
		rules[i] = r.String()
	}
	return fmt.Sprintf("state %d on %s: %s (rules: %s)",
		c.State, c.Col, strings.Join(kinds, "/"), strings.Join(rules, "; "))
}

// FindConflicts returns every cell holding more than one action.
func (t *Table) FindConflicts() []Conflict {
	var out []Conflict
	for key, actions := range t.cells {
		if len(actions) <= 1 {
			continue
		}
		c := Conflict{State: key.State, Col: key.Col, Actions: actions}
		if t.collection != nil && key.State < len(t.collection.States) {
			seen := map[*grammar.Rule]struct{}{}
			for it := range t.collection.States[key.State].Kernel {
				if _, ok := seen[it.Rule]; !ok {
					seen[it.Rule] = struct{}{}
					c.Rules = append(c.Rules, it.Rule)
				}
			}
			sort.Slice(c.Rules, func(i, j int) bool { return c.Rules[i].ID < c.Rules[j].ID })
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].State != out[j].State {
			return out[i].State < out[j].State
		}
		return out[i].Col.Payload < out[j].Col.Payload
	})
	return out
}

// sortedKeys returns the cell keys in a stable order for persistence.
func (t *Table) sortedKeys() []cellKey {
	keys := make([]cellKey, 0, len(t.cells))
	for k := range t.cells {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].State != keys[j].State {
			return keys[i].State < keys[j].State
		}
		if keys[i].Col.Kind != keys[j].Col.Kind {
			return keys[i].Col.Kind < keys[j].Col.Kind
		}
		return keys[i].Col.Payload < keys[j].Col.Payload
	})
	return keys
}
