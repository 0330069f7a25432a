package astbuild

import (
	"strings"

	"github.com/notimplife/cels-cc/pkg/diag"
	"github.com/notimplife/cels-cc/pkg/symbols"
)

// compatibility returns the number of conversions needed to call
// overload with the argument types, or -1 when some argument has
// neither an exact match nor a registered converter.
func (b *Builder) compatibility(overload *symbols.FunctionOverload, args []symbols.DataType) int {
	if len(overload.Params) != len(args) {
		return -1
	}
	conversions := 0
	for i, arg := range args {
		want := overload.Params[i].Type
		if symbols.Same(arg, want) {
			continue
		}
		if !b.Env.Ops.CanConvert(arg, want) {
			return -1
		}
		conversions++
	}
	return conversions
}

// matchOverload selects the overload minimising conversion count. A
// unique minimum wins; several candidates at the minimum are ambiguous;
// no candidate is a no-match.
func (b *Builder) matchOverload(fn *symbols.Function, args []symbols.DataType) (*symbols.FunctionOverload, error) {
	type candidate struct {
		overload    *symbols.FunctionOverload
		conversions int
	}
	var candidates []candidate
	for _, overload := range fn.Overloads() {
		if n := b.compatibility(overload, args); n >= 0 {
			candidates = append(candidates, candidate{overload, n})
		}
	}
	if len(candidates) == 0 {
		return nil, diag.Errorf(diag.Type, "no match for calling %s with argument types (%s)",
			fn.FullName(), typeNames(args))
	}
	best := candidates[0]
	bestCount := 1
	for _, c := range candidates[1:] {
		switch {
		case c.conversions < best.conversions:
			best = c
			bestCount = 1
		case c.conversions == best.conversions:
			bestCount++
		}
	}
	if bestCount > 1 {
		var matches []string
		for _, c := range candidates {
			if c.conversions == best.conversions {
				matches = append(matches, c.overload.String())
			}
		}
		return nil, diag.Errorf(diag.Type, "ambiguous call for %s with types (%s); possible matches: %s",
			fn.FullName(), typeNames(args), strings.Join(matches, "; "))
	}
	return best.overload, nil
}

func typeNames(types []symbols.DataType) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = t.TypeName()
	}
	return strings.Join(parts, ", ")
}
