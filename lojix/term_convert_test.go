package lojix

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rupertlssmith/lojix-sub007/intern"
	"github.com/rupertlssmith/lojix-sub007/term"
	"github.com/rupertlssmith/lojix-sub007/wam"
)

// fakeStore is a minimal walker backing reify's tests directly against a
// hand-built cell graph, without going through a full Resolver.
type fakeStore map[int32]wam.Cell

func (f fakeStore) Load(addr int32) wam.Cell { return f[addr] }

func (f fakeStore) Walk(c wam.Cell) (int32, wam.Cell, bool) {
	if c.Tag != wam.TagRef {
		return 0, c, false
	}
	addr := c.Val
	cell := c
	for {
		if wam.IsUnbound(cell, addr) {
			return addr, cell, true
		}
		next := f[cell.Val]
		if next.Tag != wam.TagRef {
			return cell.Val, next, true
		}
		addr = cell.Val
		cell = next
	}
}

func TestReifyRebuildsCompoundFromHeap(t *testing.T) {
	tbl := intern.New()
	fooFun := tbl.InternFunctor("foo", 1)
	barAtom := tbl.InternFunctor("bar", 0)

	// structure at address 0: [FUN foo/1][CON bar]
	store := fakeStore{
		0: wam.Fun(fooFun),
		1: wam.Con(barAtom),
	}

	got, err := reify(store, tbl, wam.Str(0))
	require.NoError(t, err)
	require.Equal(t, &term.Compound{Functor: "foo", Args: []term.Term{term.Atom("bar")}}, got)
}

func TestReifyRebuildsListAsDottedPair(t *testing.T) {
	tbl := intern.New()
	nilAtom := tbl.InternFunctor("nil", 0)

	// [1 | nil] at address 0
	store := fakeStore{
		0: wam.Int(1),
		1: wam.Con(nilAtom),
	}

	got, err := reify(store, tbl, wam.Lis(0))
	require.NoError(t, err)
	require.Equal(t, &term.Compound{Functor: ".", Args: []term.Term{term.Int(1), term.Atom("nil")}}, got)
}

func TestReifyUnboundVariableYieldsFreshVar(t *testing.T) {
	tbl := intern.New()
	store := fakeStore{5: wam.Ref(5)}

	got, err := reify(store, tbl, wam.Ref(5))
	require.NoError(t, err)
	require.Equal(t, term.Var{Name: "_G5"}, got)
}

// A self-referential structure (foo's sole argument is foo itself) must
// not recurse forever: reify breaks the cycle at the revisit instead of
// looping (spec.md section 9 "Cyclic term graphs").
func TestReifyBreaksCyclicStructure(t *testing.T) {
	tbl := intern.New()
	fooFun := tbl.InternFunctor("foo", 1)

	store := fakeStore{
		0: wam.Fun(fooFun),
		1: wam.Str(0), // argument points back at the structure itself
	}

	done := make(chan struct{})
	var got term.Term
	var err error
	go func() {
		got, err = reify(store, tbl, wam.Str(0))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reify did not terminate on a cyclic structure")
	}

	require.NoError(t, err)
	comp, ok := got.(*term.Compound)
	require.True(t, ok)
	require.Equal(t, "foo", comp.Functor)
}
