package automata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notimplife/cels-cc/pkg/charset"
)

// letter builds the single-transition NFA for one character.
func letter(c rune) *Automaton {
	return New(map[State][]Edge{0: {{On: charset.Single(c), To: 1}}}, 0, []State{1})
}

func digits() *Automaton {
	return New(map[State][]Edge{0: {{On: charset.Digits(), To: 1}}}, 0, []State{1})
}

func TestAcceptsSimple(t *testing.T) {
	d := letter('a').Determinize()
	assert.True(t, d.Accepts("a"))
	assert.False(t, d.Accepts(""))
	assert.False(t, d.Accepts("aa"))
	assert.False(t, d.Accepts("b"))
}

func TestDeterminizeEquivalence(t *testing.T) {
	// (ab)|(ac): nondeterministic on 'a'.
	nfa := New(map[State][]Edge{
		0: {{On: charset.Single('a'), To: 1}, {On: charset.Single('a'), To: 2}},
		1: {{On: charset.Single('b'), To: 3}},
		2: {{On: charset.Single('c'), To: 3}},
	}, 0, []State{3})
	require.False(t, nfa.IsDeterministic())

	d := nfa.Determinize()
	require.True(t, d.IsDeterministic())
	for input, want := range map[string]bool{
		"ab": true, "ac": true, "a": false, "b": false, "abc": false, "": false,
	} {
		assert.Equal(t, want, d.Accepts(input), "input %q", input)
	}
}

func TestDeterminizeOverlappingCharsets(t *testing.T) {
	// [a-m] goes to 1, [k-z] goes to 2; overlapping labels must be
	// re-partitioned before subset construction.
	nfa := New(map[State][]Edge{
		0: {
			{On: charset.OfRange('a', 'm'), To: 1},
			{On: charset.OfRange('k', 'z'), To: 2},
		},
		1: {{On: charset.Single('1'), To: 3}},
		2: {{On: charset.Single('2'), To: 3}},
	}, 0, []State{3})
	d := nfa.Determinize()
	require.True(t, d.IsDeterministic())

	assert.True(t, d.Accepts("a1"))
	assert.True(t, d.Accepts("z2"))
	assert.True(t, d.Accepts("k1"))
	assert.True(t, d.Accepts("k2"))
	assert.False(t, d.Accepts("a2"))
	assert.False(t, d.Accepts("z1"))
}

func TestDeterminizeDropsUnproductive(t *testing.T) {
	nfa := New(map[State][]Edge{
		0: {{On: charset.Single('a'), To: 1}, {On: charset.Single('b'), To: 2}},
		// State 2 never reaches an accepting state.
		2: {{On: charset.Single('b'), To: 2}},
	}, 0, []State{1})
	d := nfa.Determinize()
	for _, q := range d.States() {
		if d.IsFinal(q) {
			continue
		}
		assert.NotEmpty(t, d.Edges(q), "state %d should be productive or final", q)
	}
	assert.True(t, d.Accepts("a"))
	assert.False(t, d.Accepts("b"))
}

func TestConcat(t *testing.T) {
	d := Concat(letter('a'), letter('b')).Determinize()
	assert.True(t, d.Accepts("ab"))
	assert.False(t, d.Accepts("a"))
	assert.False(t, d.Accepts("b"))
	assert.False(t, d.Accepts("abb"))
}

func TestUnion(t *testing.T) {
	d := Union(letter('a'), letter('b')).Determinize()
	assert.True(t, d.Accepts("a"))
	assert.True(t, d.Accepts("b"))
	assert.False(t, d.Accepts("ab"))
	assert.False(t, d.Accepts(""))
}

func TestStar(t *testing.T) {
	d := Star(letter('a')).Determinize()
	assert.True(t, d.Accepts(""))
	assert.True(t, d.Accepts("a"))
	assert.True(t, d.Accepts("aaaa"))
	assert.False(t, d.Accepts("ab"))
}

func TestPlus(t *testing.T) {
	d := Plus(digits()).Determinize()
	assert.False(t, d.Accepts(""))
	assert.True(t, d.Accepts("7"))
	assert.True(t, d.Accepts("2024"))
	assert.False(t, d.Accepts("12a"))
}

func TestRepeat(t *testing.T) {
	d := Repeat(letter('x'), 3).Determinize()
	assert.True(t, d.Accepts("xxx"))
	assert.False(t, d.Accepts("xx"))
	assert.False(t, d.Accepts("xxxx"))

	zero := Repeat(letter('x'), 0).Determinize()
	assert.True(t, zero.Accepts(""))
	assert.False(t, zero.Accepts("x"))
}

func TestLongestMatch(t *testing.T) {
	number := Plus(digits()).Determinize()

	tests := []struct {
		text  string
		start int
		want  int
	}{
		{"123abc", 0, 3},
		{"a99", 0, -1},
		{"a99", 1, 2},
		{"", 0, -1},
		{"7", 0, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, number.LongestMatch(tt.text, tt.start),
			"text %q start %d", tt.text, tt.start)
	}

	// An automaton accepting the empty word reports a zero-length match
	// rather than -1.
	star := Star(letter('a')).Determinize()
	assert.Equal(t, 0, star.LongestMatch("b", 0))
	assert.Equal(t, 2, star.LongestMatch("aab", 0))
}

func TestLongestMatchMultibyte(t *testing.T) {
	greek := New(map[State][]Edge{0: {{On: charset.OfRange('α', 'ω'), To: 1}}}, 0, []State{1})
	d := Plus(greek).Determinize()
	// Match lengths are byte lengths.
	assert.Equal(t, len("αβ"), d.LongestMatch("αβ!", 0))
}
