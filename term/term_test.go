package term_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rupertlssmith/lojix-sub007/term"
)

func TestIndicator(t *testing.T) {
	name, arity, ok := term.Indicator(term.Atom("foo"))
	require.True(t, ok)
	require.Equal(t, "foo", name)
	require.Equal(t, 0, arity)

	name, arity, ok = term.Indicator(term.Of("bar", term.Var{Name: "X"}, term.Int(1)))
	require.True(t, ok)
	require.Equal(t, "bar", name)
	require.Equal(t, 2, arity)

	_, _, ok = term.Indicator(term.Var{Name: "X"})
	require.False(t, ok)
}

func TestVarsOrderAndRepeats(t *testing.T) {
	// f(X, g(Y, X))
	f := term.Of("f", term.Var{Name: "X"}, term.Of("g", term.Var{Name: "Y"}, term.Var{Name: "X"}))
	vars := term.Vars(f)
	names := make([]string, len(vars))
	for i, v := range vars {
		names[i] = v.Name
	}
	require.Equal(t, []string{"X", "Y", "X"}, names)
}

func TestWalkPaths(t *testing.T) {
	f := term.Of("f", term.Atom("a"), term.Of("g", term.Atom("b")))
	var paths []string
	term.Walk(f, "0", func(_ term.Term, path string) {
		paths = append(paths, path)
	}, nil)
	require.Equal(t, []string{"0", "0.0", "0.1", "0.1.0"}, paths)
}

func TestClauseGoalsFactVsRule(t *testing.T) {
	fact := term.Clause{Head: term.Atom("p")}
	require.True(t, fact.IsFact())
	require.Equal(t, []term.Term{term.Atom("p")}, fact.Goals())

	rule := term.Clause{
		Head: term.Of("p", term.Var{Name: "X"}),
		Body: []term.Term{term.Of("q", term.Var{Name: "X"})},
	}
	require.False(t, rule.IsFact())
	require.Len(t, rule.Goals(), 2)

	query := term.Clause{Body: []term.Term{term.Of("p", term.Var{Name: "X"})}}
	require.True(t, query.IsQuery())
}
