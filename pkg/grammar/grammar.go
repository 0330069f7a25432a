// Package grammar models context-free grammars with per-rule semantic
// actions and computes the FIRST₁ and FOLLOW₁ sets the LR(1) table
// construction needs. Terminals and non-terminals are interned through
// a Factory, so component equality is pointer equality.
package grammar

import (
	"fmt"
	"strings"

	"github.com/minio/highwayhash"
	"github.com/notimplife/cels-cc/pkg/diag"
)

// Component is a rule right-hand-side element: a Terminal, a
// NonTerminal, or Epsilon.
type Component interface {
	fmt.Stringer
	component()
}

// Terminal matches one token kind; Value is the token kind name.
type Terminal struct {
	Value string
}

func (*Terminal) component()       {}
func (t *Terminal) String() string { return t.Value }

// NonTerminal is a grammar variable.
type NonTerminal struct {
	Name string
}

func (*NonTerminal) component()       {}
func (n *NonTerminal) String() string { return n.Name }

// Epsilon is the empty symbol; it is dropped from rule bodies at
// construction and only matters for writing empty productions.
type Epsilon struct{}

func (*Epsilon) component()     {}
func (*Epsilon) String() string { return "eps" }

// Factory interns grammar components.
type Factory struct {
	terminals    map[string]*Terminal
	nonTerminals map[string]*NonTerminal
	epsilon      *Epsilon
}

// NewFactory returns an empty component factory.
func NewFactory() *Factory {
	return &Factory{
		terminals:    map[string]*Terminal{},
		nonTerminals: map[string]*NonTerminal{},
		epsilon:      &Epsilon{},
	}
}

// Terminal returns the interned terminal for value.
func (f *Factory) Terminal(value string) *Terminal {
	if t, ok := f.terminals[value]; ok {
		return t
	}
	t := &Terminal{Value: value}
	f.terminals[value] = t
	return t
}

// NonTerminal returns the interned non-terminal named name.
func (f *Factory) NonTerminal(name string) *NonTerminal {
	if n, ok := f.nonTerminals[name]; ok {
		return n
	}
	n := &NonTerminal{Name: name}
	f.nonTerminals[name] = n
	return n
}

// Epsilon returns the empty symbol.
func (f *Factory) Epsilon() *Epsilon { return f.epsilon }

// Action computes a rule's value from the values of its right-hand
// side, in source order.
type Action func(children []any) (any, error)

// Rule is one production with its semantic action. IDs are assigned in
// declaration order by NewGrammar.
type Rule struct {
	ID     int
	LHS    *NonTerminal
	RHS    []Component
	action Action
}

// NewRule builds a production; epsilon components are dropped from the
// body.
func NewRule(lhs *NonTerminal, rhs []Component, action Action) *Rule {
	body := make([]Component, 0, len(rhs))
	for _, c := range rhs {
		if _, ok := c.(*Epsilon); ok {
			continue
		}
		body = append(body, c)
	}
	return &Rule{ID: -1, LHS: lhs, RHS: body, action: action}
}

// Apply invokes the rule's semantic action.
func (r *Rule) Apply(children []any) (any, error) {
	if r.action == nil {
		return nil, diag.Errorf(diag.Grammar, "rule %d (%s) has no semantic action", r.ID, r)
	}
	if len(children) != len(r.RHS) {
		return nil, diag.Errorf(diag.Grammar, "rule %d (%s): action called with %d values, want %d",
			r.ID, r, len(children), len(r.RHS))
	}
	return r.action(children)
}

func (r *Rule) String() string {
	parts := make([]string, len(r.RHS))
	for i, c := range r.RHS {
		parts[i] = c.String()
	}
	return fmt.Sprintf("%s <- %s", r.LHS, strings.Join(parts, " "))
}

// Lookahead is a FIRST/FOLLOW element: a terminal, the end-of-word
// marker, or the empty word.
type Lookahead struct {
	Term  *Terminal
	EOW   bool
	Empty bool
}

// LookTerm wraps a terminal as a lookahead.
func LookTerm(t *Terminal) Lookahead { return Lookahead{Term: t} }

// LookEOW is the end-of-word lookahead `$`.
var LookEOW = Lookahead{EOW: true}

// LookEmpty is the empty-word element.
var LookEmpty = Lookahead{Empty: true}

func (l Lookahead) String() string {
	switch {
	case l.EOW:
		return "$"
	case l.Empty:
		return "''"
	default:
		return l.Term.Value
	}
}

// LookSet is a set of lookaheads.
type LookSet map[Lookahead]struct{}

func (s LookSet) add(l Lookahead) bool {
	if _, ok := s[l]; ok {
		return false
	}
	s[l] = struct{}{}
	return true
}

// Has reports membership.
func (s LookSet) Has(l Lookahead) bool {
	_, ok := s[l]
	return ok
}

// Grammar is a validated rule set with FIRST₁/FOLLOW₁ tables.
type Grammar struct {
	Rules        []*Rule
	Start        *NonTerminal
	nonTerminals []*NonTerminal
	terminals    []*Terminal
	derivations  map[*NonTerminal][]*Rule
	first1       map[*NonTerminal]LookSet
	follow1      map[*NonTerminal]LookSet
}

// NewGrammar validates rules and computes the prediction tables. The
// start symbol is the first rule's left-hand side.
func NewGrammar(rules []*Rule) (*Grammar, error) {
	if len(rules) == 0 {
		return nil, diag.Errorf(diag.Grammar, "grammar must contain at least one rule")
	}
	g := &Grammar{Rules: rules, derivations: map[*NonTerminal][]*Rule{}}
	for i, r := range rules {
		r.ID = i
		g.derivations[r.LHS] = append(g.derivations[r.LHS], r)
	}
	g.Start = rules[0].LHS

	seenNT := map[*NonTerminal]struct{}{}
	seenT := map[*Terminal]struct{}{}
	for _, r := range rules {
		if _, ok := seenNT[r.LHS]; !ok {
			seenNT[r.LHS] = struct{}{}
			g.nonTerminals = append(g.nonTerminals, r.LHS)
		}
	}
	var undefined []string
	for _, r := range rules {
		for _, c := range r.RHS {
			switch v := c.(type) {
			case *Terminal:
				if _, ok := seenT[v]; !ok {
					seenT[v] = struct{}{}
					g.terminals = append(g.terminals, v)
				}
			case *NonTerminal:
				if _, ok := seenNT[v]; !ok {
					seenNT[v] = struct{}{}
					undefined = append(undefined, v.Name)
				}
			}
		}
	}
	if len(undefined) > 0 {
		return nil, diag.Errorf(diag.Grammar, "no rules to define non-terminal symbols: %s",
			strings.Join(undefined, ", "))
	}

	g.buildFirst1()
	g.buildFollow1()
	return g, nil
}

// Terminals returns the terminals in first-use order.
func (g *Grammar) Terminals() []*Terminal { return g.terminals }

// NonTerminals returns the non-terminals in first-definition order.
func (g *Grammar) NonTerminals() []*NonTerminal { return g.nonTerminals }

// Derivations returns the rules with lhs n.
func (g *Grammar) Derivations(n *NonTerminal) []*Rule { return g.derivations[n] }

// TerminalByValue resolves a terminal by its value, for table loading.
func (g *Grammar) TerminalByValue(value string) (*Terminal, bool) {
	for _, t := range g.terminals {
		if t.Value == value {
			return t, true
		}
	}
	return nil, false
}

// NonTerminalByName resolves a non-terminal by name, for table loading.
func (g *Grammar) NonTerminalByName(name string) (*NonTerminal, bool) {
	for _, n := range g.nonTerminals {
		if n.Name == name {
			return n, true
		}
	}
	return nil, false
}

// First1 returns FIRST₁(n).
func (g *Grammar) First1(n *NonTerminal) LookSet { return g.first1[n] }

// Follow1 returns FOLLOW₁(n).
func (g *Grammar) Follow1(n *NonTerminal) LookSet { return g.follow1[n] }

// buildFirst1 runs the usual fixed point: FIRST(A) accumulates
// FIRST(α) over every rule A → α, propagating the empty word only when
// every prefix is nullable.
func (g *Grammar) buildFirst1() {
	g.first1 = map[*NonTerminal]LookSet{}
	for _, n := range g.nonTerminals {
		g.first1[n] = LookSet{}
	}
	changed := true
	for changed {
		changed = false
		for _, r := range g.Rules {
			for _, l := range g.FirstOfSequence(r.RHS) {
				if g.first1[r.LHS].add(l) {
					changed = true
				}
			}
		}
	}
}

// FirstOfSequence returns FIRST₁ over a component sequence.
func (g *Grammar) FirstOfSequence(components []Component) []Lookahead {
	set := LookSet{}
	for _, c := range components {
		switch v := c.(type) {
		case *Terminal:
			set.add(LookTerm(v))
			return set.slice()
		case *NonTerminal:
			f1 := g.first1[v]
			for l := range f1 {
				if !l.Empty {
					set.add(l)
				}
			}
			if !f1.Has(LookEmpty) {
				return set.slice()
			}
		}
	}
	set.add(LookEmpty)
	return set.slice()
}

func (s LookSet) slice() []Lookahead {
	out := make([]Lookahead, 0, len(s))
	for l := range s {
		out = append(out, l)
	}
	return out
}

// buildFollow1 runs the fixed point seeded with FOLLOW(S) = {$}: for
// each A → α B β, FOLLOW(B) gains FIRST(β)\{ε}, and FOLLOW(A) when β is
// nullable.
func (g *Grammar) buildFollow1() {
	g.follow1 = map[*NonTerminal]LookSet{}
	for _, n := range g.nonTerminals {
		g.follow1[n] = LookSet{}
	}
	g.follow1[g.Start].add(LookEOW)
	changed := true
	for changed {
		changed = false
		for _, r := range g.Rules {
			for i, c := range r.RHS {
				b, ok := c.(*NonTerminal)
				if !ok {
					continue
				}
				beta := r.RHS[i+1:]
				firstBeta := g.FirstOfSequence(beta)
				nullable := false
				for _, l := range firstBeta {
					if l.Empty {
						nullable = true
						continue
					}
					if g.follow1[b].add(l) {
						changed = true
					}
				}
				if nullable {
					for l := range g.follow1[r.LHS] {
						if g.follow1[b].add(l) {
							changed = true
						}
					}
				}
			}
		}
	}
}

// hashKey feeds highwayhash; any fixed 32 bytes will do, it only has to
// be stable across runs so persisted tables stay valid.
var hashKey = []byte("cels-cc/grammar-checksum-key-v1!")

// Checksum fingerprints the grammar for the LR(1) table cache: the rule
// count plus a content hash over every rule's rendered form. A mismatch
// invalidates a persisted table.
func (g *Grammar) Checksum() string {
	h, err := highwayhash.New64(hashKey)
	if err != nil {
		panic(err)
	}
	for _, r := range g.Rules {
		h.Write([]byte(r.String()))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%d-%016x", len(g.Rules), h.Sum64())
}

func (g *Grammar) String() string {
	parts := make([]string, len(g.Rules))
	for i, r := range g.Rules {
		parts[i] = r.String()
	}
	return strings.Join(parts, "\n")
}
