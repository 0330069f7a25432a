package cppgen

import (
	"sort"

	"github.com/notimplife/cels-cc/pkg/diag"
	"github.com/notimplife/cels-cc/pkg/symbols"
)

// Fragment is one unit of emitted C++ carried through dependency
// sorting: a struct definition, a function, or a variable declaration.
type Fragment struct {
	// Name is the declared entity's full type/symbol name; fragments
	// with no declared name (top-level statements) leave it empty.
	Name string
	// Deps lists the full names of named types appearing in the
	// entity's signature.
	Deps []string
	// NS is the namespace path the fragment lives in.
	NS []string
	// Code is the emitted text.
	Code string
	// Headers are includes the fragment requires.
	Headers []string
	// order is the declaration index, used as a stable tie-break.
	order int
}

// namedTypeDeps accumulates the named types a data type mentions,
// recursing through pointer/array/task element types.
func namedTypeDeps(t symbols.DataType, out map[string]struct{}) {
	switch v := t.(type) {
	case *symbols.PointerType:
		namedTypeDeps(v.Element, out)
	case *symbols.StaticArrayType:
		namedTypeDeps(v.Element, out)
	case *symbols.TaskType:
		namedTypeDeps(v.Element, out)
	case *symbols.StructType:
		out[v.TypeName()] = struct{}{}
	}
}

// signatureDeps returns the named-type dependencies of an overload's
// signature: parameter types and return type.
func signatureDeps(o *symbols.FunctionOverload) []string {
	set := map[string]struct{}{}
	for _, p := range o.Params {
		namedTypeDeps(p.Type, set)
	}
	namedTypeDeps(o.ReturnType, set)
	return setToSlice(set)
}

func setToSlice(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// sortFragments topologically orders fragments so that every fragment
// follows the fragments it depends on. A synthetic root collects
// fragments with no dependencies; ties break on declaration order.
// Dependency cycles are an error.
func sortFragments(fragments []*Fragment) ([]*Fragment, error) {
	byName := map[string]*Fragment{}
	for _, f := range fragments {
		if f.Name != "" {
			byName[f.Name] = f
		}
	}

	indegree := map[*Fragment]int{}
	dependents := map[*Fragment][]*Fragment{}
	for _, f := range fragments {
		indegree[f] = 0
	}
	for _, f := range fragments {
		for _, dep := range f.Deps {
			target, ok := byName[dep]
			if !ok || target == f {
				continue
			}
			dependents[target] = append(dependents[target], f)
			indegree[f]++
		}
	}

	// The root sentinel: everything with indegree zero, in declaration
	// order.
	var ready []*Fragment
	for _, f := range fragments {
		if indegree[f] == 0 {
			ready = append(ready, f)
		}
	}
	sort.SliceStable(ready, func(i, j int) bool { return ready[i].order < ready[j].order })

	var out []*Fragment
	for len(ready) > 0 {
		f := ready[0]
		ready = ready[1:]
		out = append(out, f)
		next := dependents[f]
		sort.SliceStable(next, func(i, j int) bool { return next[i].order < next[j].order })
		for _, d := range next {
			indegree[d]--
			if indegree[d] == 0 {
				ready = append(ready, d)
			}
		}
	}
	if len(out) != len(fragments) {
		var stuck []string
		for _, f := range fragments {
			if indegree[f] > 0 {
				stuck = append(stuck, f.Name)
			}
		}
		sort.Strings(stuck)
		return nil, diag.Errorf(diag.Type, "cyclic type dependencies between: %v", stuck)
	}
	return out, nil
}
