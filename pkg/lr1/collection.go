// Package lr1 implements a canonical LR(1) parser generator: the item
// collection, the action/goto analysis table with conflict detection
// and on-disk caching, and the generic shift/reduce driver.
package lr1

import (
	"fmt"
	"sort"
	"strings"

	"github.com/notimplife/cels-cc/pkg/grammar"
)

// Item is an LR(1) analysis element: a rule, a dot position within its
// body, and one lookahead.
type Item struct {
	Rule *grammar.Rule
	Dot  int
	Look grammar.Lookahead
}

// AfterDot returns the component right of the dot, or nil at the end.
func (it Item) AfterDot() grammar.Component {
	if it.Dot >= len(it.Rule.RHS) {
		return nil
	}
	return it.Rule.RHS[it.Dot]
}

// AtEnd reports whether the dot is past the whole body.
func (it Item) AtEnd() bool { return it.Dot == len(it.Rule.RHS) }

// Advance returns the item with the dot moved one component right.
func (it Item) Advance() Item { return Item{Rule: it.Rule, Dot: it.Dot + 1, Look: it.Look} }

func (it Item) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s -> ", it.Rule.LHS)
	for i, c := range it.Rule.RHS {
		if i == it.Dot {
			b.WriteString(". ")
		}
		b.WriteString(c.String())
		b.WriteByte(' ')
	}
	if it.AtEnd() {
		b.WriteString(". ")
	}
	fmt.Fprintf(&b, ", %s]", it.Look)
	return b.String()
}

// State is one node of the canonical collection. States compare by
// kernel item set.
type State struct {
	ID      int
	Kernel  map[Item]struct{}
	Closure map[Item]struct{}
}

// kernelKey canonically names a kernel item set.
func kernelKey(kernel map[Item]struct{}) string {
	parts := make([]string, 0, len(kernel))
	for it := range kernel {
		parts = append(parts, fmt.Sprintf("%d.%d.%s", it.Rule.ID, it.Dot, it.Look))
	}
	sort.Strings(parts)
	return strings.Join(parts, "|")
}

// Collection is the canonical LR(1) collection with its GOTO relation.
type Collection struct {
	Grammar     *grammar.Grammar
	States      []*State
	Transitions map[transKey]int

	byKernel map[string]*State
}

type transKey struct {
	State int
	Comp  grammar.Component
}

// NewCollection builds the canonical collection from
// closure({[S' → •S, $]}) outward. S' is implicit: the start kernel
// holds [S → •α, $] for every rule of the start symbol.
func NewCollection(g *grammar.Grammar) *Collection {
	c := &Collection{Grammar: g, Transitions: map[transKey]int{}, byKernel: map[string]*State{}}
	start := map[Item]struct{}{}
	for _, r := range g.Derivations(g.Start) {
		start[Item{Rule: r, Dot: 0, Look: grammar.LookEOW}] = struct{}{}
	}
	c.getOrCreate(start)

	// States grow while iterating; index-based loop doubles as the
	// worklist.
	for i := 0; i < len(c.States); i++ {
		state := c.States[i]
		for _, comp := range c.transitionSymbols(state) {
			kernel := c.gotoKernel(state, comp)
			target := c.getOrCreate(kernel)
			c.Transitions[transKey{State: state.ID, Comp: comp}] = target.ID
		}
	}
	return c
}

// getOrCreate interns a state by kernel, computing its closure when
// fresh.
func (c *Collection) getOrCreate(kernel map[Item]struct{}) *State {
	key := kernelKey(kernel)
	if s, ok := c.byKernel[key]; ok {
		return s
	}
	s := &State{ID: len(c.States), Kernel: kernel}
	s.Closure = c.closure(kernel)
	c.States = append(c.States, s)
	c.byKernel[key] = s
	return s
}

// closure saturates the kernel: for [A → α•Bβ, a] and each rule B → γ,
// add [B → •γ, b] for every b ∈ FIRST(βa).
func (c *Collection) closure(kernel map[Item]struct{}) map[Item]struct{} {
	out := make(map[Item]struct{}, len(kernel))
	queue := make([]Item, 0, len(kernel))
	for it := range kernel {
		out[it] = struct{}{}
		queue = append(queue, it)
	}
	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]
		next, ok := it.AfterDot().(*grammar.NonTerminal)
		if !ok {
			continue
		}
		beta := c.Grammar.FirstOfSequence(it.Rule.RHS[it.Dot+1:])
		looks := make([]grammar.Lookahead, 0, len(beta))
		sawEmpty := len(beta) == 0
		for _, l := range beta {
			if l.Empty {
				sawEmpty = true
				continue
			}
			looks = append(looks, l)
		}
		if sawEmpty {
			looks = append(looks, it.Look)
		}
		for _, rule := range c.Grammar.Derivations(next) {
			for _, b := range looks {
				cand := Item{Rule: rule, Dot: 0, Look: b}
				if _, seen := out[cand]; !seen {
					out[cand] = struct{}{}
					queue = append(queue, cand)
				}
			}
		}
	}
	return out
}

// transitionSymbols returns the after-dot components of the state's
// closure, deterministically ordered.
func (c *Collection) transitionSymbols(s *State) []grammar.Component {
	seen := map[grammar.Component]struct{}{}
	var comps []grammar.Component
	for it := range s.Closure {
		if comp := it.AfterDot(); comp != nil {
			if _, ok := seen[comp]; !ok {
				seen[comp] = struct{}{}
				comps = append(comps, comp)
			}
		}
	}
	sort.Slice(comps, func(i, j int) bool { return comps[i].String() < comps[j].String() })
	return comps
}

// gotoKernel advances the dot past comp over the state's closure.
func (c *Collection) gotoKernel(s *State, comp grammar.Component) map[Item]struct{} {
	kernel := map[Item]struct{}{}
	for it := range s.Closure {
		if it.AfterDot() == comp {
			kernel[it.Advance()] = struct{}{}
		}
	}
	return kernel
}
