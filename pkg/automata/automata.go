// Package automata implements finite automata whose transitions are
// labelled with charsets rather than single characters. NFAs are built
// by the regex package through the combinators in combine.go and made
// deterministic by subset construction before matching.
package automata

import (
	"fmt"
	"sort"
	"strings"

	"github.com/notimplife/cels-cc/pkg/charset"
)

// State identifies an automaton state.
type State = int

// Edge is a transition labelled with a charset.
type Edge struct {
	On charset.Set
	To State
}

// Automaton is a finite automaton over charset-labelled edges.
type Automaton struct {
	edges   map[State][]Edge
	initial State
	finals  map[State]struct{}
}

// New builds an automaton from explicit transitions.
func New(edges map[State][]Edge, initial State, finals []State) *Automaton {
	a := &Automaton{
		edges:   make(map[State][]Edge, len(edges)),
		initial: initial,
		finals:  make(map[State]struct{}, len(finals)),
	}
	for q, es := range edges {
		a.edges[q] = append([]Edge(nil), es...)
	}
	for _, f := range finals {
		a.finals[f] = struct{}{}
	}
	return a
}

// Empty returns the automaton accepting exactly the empty word.
func Empty() *Automaton {
	return New(nil, 0, []State{0})
}

func (a *Automaton) addEdge(from State, on charset.Set, to State) {
	for _, e := range a.edges[from] {
		if e.To == to && e.On.Equal(on) {
			return
		}
	}
	if a.edges == nil {
		a.edges = make(map[State][]Edge)
	}
	a.edges[from] = append(a.edges[from], Edge{On: on, To: to})
}

// Initial returns the initial state.
func (a *Automaton) Initial() State { return a.initial }

// IsFinal reports whether q is an accepting state.
func (a *Automaton) IsFinal(q State) bool {
	_, ok := a.finals[q]
	return ok
}

// Finals returns the accepting states in ascending order.
func (a *Automaton) Finals() []State {
	fs := make([]State, 0, len(a.finals))
	for f := range a.finals {
		fs = append(fs, f)
	}
	sort.Ints(fs)
	return fs
}

// Edges returns the outgoing edges of q. Callers must not mutate the
// result.
func (a *Automaton) Edges(q State) []Edge { return a.edges[q] }

// States returns every state mentioned by the automaton, ascending.
func (a *Automaton) States() []State {
	seen := map[State]struct{}{a.initial: {}}
	for f := range a.finals {
		seen[f] = struct{}{}
	}
	for q, es := range a.edges {
		seen[q] = struct{}{}
		for _, e := range es {
			seen[e.To] = struct{}{}
		}
	}
	states := make([]State, 0, len(seen))
	for q := range seen {
		states = append(states, q)
	}
	sort.Ints(states)
	return states
}

// IsDeterministic reports whether no state has two outgoing edges whose
// charsets overlap.
func (a *Automaton) IsDeterministic() bool {
	for _, es := range a.edges {
		for i := 0; i < len(es); i++ {
			for j := i + 1; j < len(es); j++ {
				if !es[i].On.Intersect(es[j].On).IsEmpty() {
					return false
				}
			}
		}
	}
	return true
}

// next returns the successor of q on code point c, or -1.
func (a *Automaton) next(q State, c rune) State {
	for _, e := range a.edges[q] {
		if e.On.Contains(c) {
			return e.To
		}
	}
	return -1
}

// Accepts reports whether the automaton accepts input. The automaton
// must be deterministic.
func (a *Automaton) Accepts(input string) bool {
	q := a.initial
	for _, c := range input {
		q = a.next(q, c)
		if q < 0 {
			return false
		}
	}
	return a.IsFinal(q)
}

// LongestMatch returns the byte length of the longest prefix of
// text[start:] accepted by the automaton, or -1 if no prefix (not even
// the empty one) is accepted. It never consumes beyond the match. The
// automaton must be deterministic.
func (a *Automaton) LongestMatch(text string, start int) int {
	q := a.initial
	best := -1
	if a.IsFinal(q) {
		best = 0
	}
	for i, c := range text[start:] {
		q = a.next(q, c)
		if q < 0 {
			break
		}
		if a.IsFinal(q) {
			best = i + len(string(c))
		}
	}
	return best
}

func (a *Automaton) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "initial: %d\nfinals: %v\n", a.initial, a.Finals())
	for _, q := range a.States() {
		for _, e := range a.edges[q] {
			fmt.Fprintf(&b, "  %d %s -> %d\n", q, e.On, e.To)
		}
	}
	return b.String()
}
