package automata

// Thompson-style combinators without epsilon transitions: instead of
// linking sub-automata with empty moves, edges leaving an initial state
// are duplicated onto the accepting states of the predecessor. All
// combinators return NFAs; callers determinize when needed.

// statePool renumbers states of combined automata into a fresh space.
type statePool struct {
	ids  map[[2]int]State
	next State
}

func newStatePool() *statePool {
	return &statePool{ids: make(map[[2]int]State)}
}

func (p *statePool) get(tag int, q State) State {
	key := [2]int{tag, q}
	if id, ok := p.ids[key]; ok {
		return id
	}
	id := p.next
	p.next++
	p.ids[key] = id
	return id
}

// alias maps several (tag, state) keys onto one fresh id.
func (p *statePool) alias(keys ...[2]int) State {
	id := p.next
	p.next++
	for _, k := range keys {
		p.ids[k] = id
	}
	return id
}

// Union returns an NFA accepting L(a) ∪ L(b). The two initial states
// are fused into one.
func Union(a, b *Automaton) *Automaton {
	pool := newStatePool()
	pool.alias([2]int{1, a.initial}, [2]int{2, b.initial})

	out := &Automaton{edges: map[State][]Edge{}, finals: map[State]struct{}{}}
	for _, q := range a.States() {
		for _, e := range a.edges[q] {
			out.addEdge(pool.get(1, q), e.On, pool.get(1, e.To))
		}
	}
	for _, q := range b.States() {
		for _, e := range b.edges[q] {
			out.addEdge(pool.get(2, q), e.On, pool.get(2, e.To))
		}
	}
	out.initial = pool.get(1, a.initial)
	for f := range a.finals {
		out.finals[pool.get(1, f)] = struct{}{}
	}
	for f := range b.finals {
		out.finals[pool.get(2, f)] = struct{}{}
	}
	return out
}

// Concat returns an NFA accepting L(a)·L(b). Edges leaving b's initial
// state are re-sourced from every accepting state of a.
func Concat(a, b *Automaton) *Automaton {
	pool := newStatePool()
	out := &Automaton{edges: map[State][]Edge{}, finals: map[State]struct{}{}}

	for _, q := range a.States() {
		for _, e := range a.edges[q] {
			out.addEdge(pool.get(1, q), e.On, pool.get(1, e.To))
		}
	}
	for _, q := range b.States() {
		for _, e := range b.edges[q] {
			if q == b.initial {
				for f := range a.finals {
					if e.To == b.initial {
						out.addEdge(pool.get(1, f), e.On, pool.get(1, f))
					} else {
						out.addEdge(pool.get(1, f), e.On, pool.get(2, e.To))
					}
				}
			} else {
				out.addEdge(pool.get(2, q), e.On, pool.get(2, e.To))
			}
		}
	}
	out.initial = pool.get(1, a.initial)
	for f := range b.finals {
		if f != b.initial {
			out.finals[pool.get(2, f)] = struct{}{}
		}
	}
	if b.IsFinal(b.initial) {
		for f := range a.finals {
			out.finals[pool.get(1, f)] = struct{}{}
		}
	}
	return out
}

// Star returns an NFA accepting L(a)*. A fresh accepting initial state
// receives copies of the old initial's out-edges, and every accepting
// state loops back the same way.
func Star(a *Automaton) *Automaton {
	pool := newStatePool()
	out := &Automaton{edges: map[State][]Edge{}, finals: map[State]struct{}{}}

	for _, q := range a.States() {
		pool.get(0, q)
	}
	entry := pool.get(1, a.initial)

	for _, q := range a.States() {
		for _, e := range a.edges[q] {
			if q == a.initial {
				out.addEdge(entry, e.On, pool.get(0, e.To))
				for f := range a.finals {
					out.addEdge(pool.get(0, f), e.On, pool.get(0, e.To))
				}
			} else {
				out.addEdge(pool.get(0, q), e.On, pool.get(0, e.To))
			}
		}
	}
	out.initial = entry
	out.finals[entry] = struct{}{}
	for f := range a.finals {
		out.finals[pool.get(0, f)] = struct{}{}
	}
	return out
}

// Plus returns an NFA accepting L(a)+.
func Plus(a *Automaton) *Automaton {
	return Concat(a, Star(a))
}

// Repeat returns an NFA accepting L(a) concatenated n times. Repeat
// with n = 0 accepts only the empty word.
func Repeat(a *Automaton, n int) *Automaton {
	out := Empty()
	for i := 0; i < n; i++ {
		out = Concat(out, a)
	}
	return out
}
