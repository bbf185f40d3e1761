package lojix_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rupertlssmith/lojix-sub007/lojix"
	"github.com/rupertlssmith/lojix-sub007/term"
)

func likesClauses() []term.Clause {
	mary, wine, beer := term.Atom("mary"), term.Atom("wine"), term.Atom("beer")
	return []term.Clause{
		{Head: term.Of("likes", mary, wine)},
		{Head: term.Of("likes", mary, beer)},
	}
}

// Facts + query, spec.md section 8 scenario 1: successive solutions in
// clause-definition order, then exhaustion.
func TestQueryBacktracksInClauseOrder(t *testing.T) {
	s, err := lojix.New()
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Consult(likesClauses()...))

	x := term.Var{Name: "X"}
	q := s.Query(context.Background(), term.Of("likes", term.Atom("mary"), x))
	defer q.Close()

	require.True(t, q.Next(context.Background()))
	require.Equal(t, term.Atom("wine"), q.Current().Solution["X"])

	require.True(t, q.Next(context.Background()))
	require.Equal(t, term.Atom("beer"), q.Current().Solution["X"])

	require.False(t, q.Next(context.Background()))
	require.NoError(t, q.Err())
}

func TestQueryOnceReturnsErrFailureWhenNoSolution(t *testing.T) {
	s, err := lojix.New()
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Consult(likesClauses()...))

	_, err = s.QueryOnce(context.Background(), term.Of("likes", term.Atom("mary"), term.Atom("soda")))
	require.ErrorIs(t, err, lojix.ErrFailure)
}

func TestQueryOnceThrowsOnUndefinedPredicate(t *testing.T) {
	s, err := lojix.New()
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Consult(likesClauses()...))

	_, err = s.QueryOnce(context.Background(), term.Of("nope", term.Atom("x")))
	var thrown lojix.ErrThrow
	require.ErrorAs(t, err, &thrown)
}

// Clone shares the parent's clauses at fork time but later Consult calls
// on either session diverge, mirroring trealla_test.go's TestClone.
func TestCloneIsolatesLaterConsults(t *testing.T) {
	s, err := lojix.New()
	require.NoError(t, err)
	defer s.Close()

	abc := term.Clause{Head: term.Of("abc", term.Atom("xyz"))}
	require.NoError(t, s.Consult(abc))

	clone, err := s.Clone()
	require.NoError(t, err)
	defer clone.Close()

	ans, err := clone.QueryOnce(context.Background(), term.Of("abc", term.Var{Name: "X"}))
	require.NoError(t, err)
	require.Equal(t, term.Atom("xyz"), ans.Solution["X"])

	foo := term.Clause{Head: term.Of("foo", term.Atom("bar"))}
	require.NoError(t, s.Consult(foo))

	_, err = clone.QueryOnce(context.Background(), term.Of("foo", term.Var{Name: "X"}))
	var thrown lojix.ErrThrow
	require.ErrorAs(t, err, &thrown)
}

func TestClosedSessionRejectsFurtherWork(t *testing.T) {
	s, err := lojix.New()
	require.NoError(t, err)
	require.NoError(t, s.Close())

	require.ErrorIs(t, s.Consult(term.Clause{Head: term.Atom("flag")}), lojix.ErrClosed)

	_, err = s.QueryOnce(context.Background(), term.Atom("flag"))
	require.ErrorIs(t, err, lojix.ErrClosed)
}

// Recursive list membership, spec.md section 8 scenario 2.
func TestRecursiveMemberSucceedsOnceForPresentElement(t *testing.T) {
	s, err := lojix.New()
	require.NoError(t, err)
	defer s.Close()

	x, rest, h, tail := term.Var{Name: "X"}, term.Var{Name: "_"}, term.Var{Name: "H"}, term.Var{Name: "T"}
	clauses := []term.Clause{
		{Head: term.Of("member", x, term.Of("cons", x, rest))},
		{
			Head: term.Of("member", x, term.Of("cons", h, tail)),
			Body: []term.Term{term.Of("member", x, tail)},
		},
	}
	require.NoError(t, s.Consult(clauses...))

	list := term.Of("cons", term.Int(1), term.Of("cons", term.Int(2), term.Of("cons", term.Int(3), term.Atom("nil"))))
	q := s.Query(context.Background(), term.Of("member", term.Int(2), list))
	defer q.Close()

	require.True(t, q.Next(context.Background()))
	require.False(t, q.Next(context.Background()))
}

func TestStatsReportsInternedFunctorsAndCodeSize(t *testing.T) {
	s, err := lojix.New()
	require.NoError(t, err)
	defer s.Close()

	before := s.Stats()
	require.NoError(t, s.Consult(likesClauses()...))
	after := s.Stats()

	require.Greater(t, after.CodeSize, before.CodeSize)
	require.GreaterOrEqual(t, after.Functors, before.Functors)
}
