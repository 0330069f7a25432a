package automata

import (
	"sort"
	"strconv"
	"strings"

	"github.com/notimplife/cels-cc/pkg/charset"
)

// symbolClasses re-partitions the charsets of all transitions into
// pairwise-disjoint classes. Subset construction reasons per class, not
// per character, so every transition charset must be expressible as a
// union of classes. The partition is built from the boundary points of
// every range involved.
func symbolClasses(a *Automaton) []charset.Set {
	type boundary struct {
		at    rune
		close bool
	}
	var bounds []boundary
	for _, es := range a.edges {
		for _, e := range es {
			for _, r := range e.On.Ranges() {
				bounds = append(bounds, boundary{r.Lo, false}, boundary{r.Hi, true})
			}
		}
	}
	if len(bounds) == 0 {
		return nil
	}
	// Cut points: starts open an interval at their position, ends close
	// one just after theirs.
	cuts := map[rune]struct{}{}
	for _, b := range bounds {
		if b.close {
			cuts[b.at+1] = struct{}{}
		} else {
			cuts[b.at] = struct{}{}
		}
	}
	points := make([]rune, 0, len(cuts))
	for p := range cuts {
		points = append(points, p)
	}
	sort.Slice(points, func(i, j int) bool { return points[i] < points[j] })

	covered := charset.Empty()
	for _, es := range a.edges {
		for _, e := range es {
			covered = covered.Union(e.On)
		}
	}

	var classes []charset.Set
	for i := 0; i < len(points); i++ {
		lo := points[i]
		hi := rune(0)
		if i+1 < len(points) {
			hi = points[i+1] - 1
		} else {
			break
		}
		atom := charset.OfRange(lo, hi).Intersect(covered)
		if !atom.IsEmpty() {
			classes = append(classes, atom)
		}
	}
	return classes
}

// stateSetKey canonically names a set of NFA states.
func stateSetKey(states []State) string {
	sorted := append([]State(nil), states...)
	sort.Ints(sorted)
	parts := make([]string, len(sorted))
	for i, q := range sorted {
		parts[i] = strconv.Itoa(q)
	}
	return strings.Join(parts, ",")
}

// Determinize returns an equivalent deterministic automaton built by
// subset construction over the partitioned symbol classes. States not
// reachable from the initial state are never created; states from which
// no accepting state is reachable are dropped afterwards.
func (a *Automaton) Determinize() *Automaton {
	classes := symbolClasses(a)

	type subset struct {
		id      State
		members []State
	}
	start := subset{id: 0, members: []State{a.initial}}
	byKey := map[string]*subset{stateSetKey(start.members): &start}
	queue := []*subset{&start}
	nextID := State(1)

	d := &Automaton{
		edges:   make(map[State][]Edge),
		initial: 0,
		finals:  make(map[State]struct{}),
	}
	markFinal := func(s *subset) {
		for _, q := range s.members {
			if a.IsFinal(q) {
				d.finals[s.id] = struct{}{}
				return
			}
		}
	}
	markFinal(&start)

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, class := range classes {
			targets := map[State]struct{}{}
			for _, q := range cur.members {
				for _, e := range a.edges[q] {
					// Classes partition the transition charsets, so a
					// non-empty overlap means the class is contained.
					if !e.On.Intersect(class).IsEmpty() {
						targets[e.To] = struct{}{}
					}
				}
			}
			if len(targets) == 0 {
				continue
			}
			members := make([]State, 0, len(targets))
			for q := range targets {
				members = append(members, q)
			}
			key := stateSetKey(members)
			succ, ok := byKey[key]
			if !ok {
				succ = &subset{id: nextID, members: members}
				nextID++
				byKey[key] = succ
				markFinal(succ)
				queue = append(queue, succ)
			}
			d.addEdge(cur.id, class, succ.id)
		}
	}

	d.mergeParallelEdges()
	d.dropUnproductive()
	return d
}

// mergeParallelEdges unions the charsets of edges sharing source and
// target.
func (a *Automaton) mergeParallelEdges() {
	for q, es := range a.edges {
		byTarget := map[State]charset.Set{}
		order := []State{}
		for _, e := range es {
			if _, ok := byTarget[e.To]; !ok {
				order = append(order, e.To)
				byTarget[e.To] = e.On
			} else {
				byTarget[e.To] = byTarget[e.To].Union(e.On)
			}
		}
		merged := make([]Edge, 0, len(order))
		for _, to := range order {
			merged = append(merged, Edge{On: byTarget[to], To: to})
		}
		a.edges[q] = merged
	}
}

// dropUnproductive removes states from which no accepting state is
// reachable, along with their transitions.
func (a *Automaton) dropUnproductive() {
	// Reverse reachability from the accepting states.
	preds := map[State][]State{}
	for q, es := range a.edges {
		for _, e := range es {
			preds[e.To] = append(preds[e.To], q)
		}
	}
	productive := map[State]struct{}{}
	var queue []State
	for f := range a.finals {
		productive[f] = struct{}{}
		queue = append(queue, f)
	}
	for len(queue) > 0 {
		q := queue[0]
		queue = queue[1:]
		for _, p := range preds[q] {
			if _, ok := productive[p]; !ok {
				productive[p] = struct{}{}
				queue = append(queue, p)
			}
		}
	}
	for q, es := range a.edges {
		if _, ok := productive[q]; !ok {
			delete(a.edges, q)
			continue
		}
		kept := es[:0]
		for _, e := range es {
			if _, ok := productive[e.To]; ok {
				kept = append(kept, e)
			}
		}
		a.edges[q] = kept
	}
}
