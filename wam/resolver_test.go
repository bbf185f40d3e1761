package wam_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rupertlssmith/lojix-sub007/intern"
	"github.com/rupertlssmith/lojix-sub007/isa"
	"github.com/rupertlssmith/lojix-sub007/machine"
	"github.com/rupertlssmith/lojix-sub007/wam"
)

// defineFact reserves a single-clause (no choicepoint) predicate directly
// in the code area, bypassing the compiler so the resolver
// can be exercised against hand-assembled clauses, per spec.md section 8's
// literal end-to-end scenarios.
func defineFact(t *testing.T, code *machine.CodeArea, name string, arity int, body []isa.Instruction) {
	t.Helper()
	data, err := isa.EncodeAll(body)
	require.NoError(t, err)
	addr := code.Reserve(name, arity, len(data))
	require.NoError(t, code.WriteAt(addr, data))
}

// defineTwoClause reserves a two-clause predicate with a try_me_else/
// trust_me choicepoint chain, patching the try instruction's Label to the
// second clause's computed start address.
func defineTwoClause(t *testing.T, code *machine.CodeArea, name string, arity int, clause1, clause2 []isa.Instruction) {
	t.Helper()
	c1Len := 0
	for _, ins := range clause1 {
		c1Len += ins.Size()
	}
	c2Len := 0
	for _, ins := range clause2 {
		c2Len += ins.Size()
	}
	base := code.Reserve(name, arity, c1Len+c2Len)
	clause1[0].Label = base + isa.Label(c1Len)

	flat := append(append([]isa.Instruction{}, clause1...), clause2...)
	data, err := isa.EncodeAll(flat)
	require.NoError(t, err)
	require.NoError(t, code.WriteAt(base, data))
}

func TestResolveGroundFactSucceedsOnce(t *testing.T) {
	tbl := intern.New()
	mary := tbl.InternFunctor("mary", 0)
	wine := tbl.InternFunctor("wine", 0)
	likes := tbl.InternFunctor("likes", 2)

	code := machine.NewCodeArea()
	defineFact(t, code, "likes", 2, []isa.Instruction{
		{Op: isa.OpGetConst, Functor: mary, Reg1: 1},
		{Op: isa.OpGetConst, Functor: wine, Reg1: 2},
		{Op: isa.OpProceed},
	})

	r := wam.NewResolver(code, tbl)
	require.NoError(t, r.SetQuery([]isa.Instruction{
		{Op: isa.OpPutConst, Functor: mary, Reg1: 1},
		{Op: isa.OpPutConst, Functor: wine, Reg1: 2},
		{Op: isa.OpCall, Functor: likes, Count: 0},
		{Op: isa.OpStop},
	}))

	require.NoError(t, r.Resolve(context.Background()))
	require.ErrorIs(t, r.Resolve(context.Background()), wam.ErrNoMoreSolutions)
}

func TestResolveBacktracksIntoSecondClauseOnRedo(t *testing.T) {
	tbl := intern.New()
	mary := tbl.InternFunctor("mary", 0)
	wine := tbl.InternFunctor("wine", 0)
	beer := tbl.InternFunctor("beer", 0)
	likes := tbl.InternFunctor("likes", 2)

	code := machine.NewCodeArea()
	defineTwoClause(t, code, "likes", 2,
		[]isa.Instruction{
			{Op: isa.OpTryMeElse},
			{Op: isa.OpGetConst, Functor: mary, Reg1: 1},
			{Op: isa.OpGetConst, Functor: wine, Reg1: 2},
			{Op: isa.OpProceed},
		},
		[]isa.Instruction{
			{Op: isa.OpTrustMe},
			{Op: isa.OpGetConst, Functor: mary, Reg1: 1},
			{Op: isa.OpGetConst, Functor: beer, Reg1: 2},
			{Op: isa.OpProceed},
		},
	)

	r := wam.NewResolver(code, tbl)
	const xReg = 10
	require.NoError(t, r.SetQuery([]isa.Instruction{
		{Op: isa.OpPutConst, Functor: mary, Reg1: 1},
		{Op: isa.OpPutVar, Reg1: xReg, Reg2: 2},
		{Op: isa.OpCall, Functor: likes, Count: 0},
		{Op: isa.OpStop},
	}))

	require.NoError(t, r.Resolve(context.Background()))
	_, cell, _ := r.Walk(r.Reg(xReg))
	require.Equal(t, wam.Con(wine), cell)

	require.NoError(t, r.Resolve(context.Background()))
	_, cell, _ = r.Walk(r.Reg(xReg))
	require.Equal(t, wam.Con(beer), cell)

	require.ErrorIs(t, r.Resolve(context.Background()), wam.ErrNoMoreSolutions)
}

func TestNeckCutPrunesRemainingClauses(t *testing.T) {
	tbl := intern.New()
	mary := tbl.InternFunctor("mary", 0)
	wine := tbl.InternFunctor("wine", 0)
	beer := tbl.InternFunctor("beer", 0)
	likes := tbl.InternFunctor("likes", 2)

	code := machine.NewCodeArea()
	defineTwoClause(t, code, "likes", 2,
		[]isa.Instruction{
			{Op: isa.OpTryMeElse},
			{Op: isa.OpGetConst, Functor: mary, Reg1: 1},
			{Op: isa.OpNeckCut},
			{Op: isa.OpGetConst, Functor: wine, Reg1: 2},
			{Op: isa.OpProceed},
		},
		[]isa.Instruction{
			{Op: isa.OpTrustMe},
			{Op: isa.OpGetConst, Functor: mary, Reg1: 1},
			{Op: isa.OpGetConst, Functor: beer, Reg1: 2},
			{Op: isa.OpProceed},
		},
	)

	r := wam.NewResolver(code, tbl)
	const xReg = 10
	require.NoError(t, r.SetQuery([]isa.Instruction{
		{Op: isa.OpPutConst, Functor: mary, Reg1: 1},
		{Op: isa.OpPutVar, Reg1: xReg, Reg2: 2},
		{Op: isa.OpCall, Functor: likes, Count: 0},
		{Op: isa.OpStop},
	}))

	require.NoError(t, r.Resolve(context.Background()))
	_, cell, _ := r.Walk(r.Reg(xReg))
	require.Equal(t, wam.Con(wine), cell)

	require.ErrorIs(t, r.Resolve(context.Background()), wam.ErrNoMoreSolutions)
}

func TestGetStrucReadModeUnifiesArguments(t *testing.T) {
	tbl := intern.New()
	a := tbl.InternFunctor("a", 0)
	b := tbl.InternFunctor("b", 0)
	foo2 := tbl.InternFunctor("foo", 2)
	wrap1 := tbl.InternFunctor("wrap", 1)

	code := machine.NewCodeArea()
	// wrap(foo(X, b)) :- X = a.  -- expressed directly via head unification:
	// wrap(foo(a,b)).
	defineFact(t, code, "wrap", 1, []isa.Instruction{
		{Op: isa.OpGetStruc, Functor: foo2, Reg1: 1},
		{Op: isa.OpUnifyVar, Reg1: 20},
		{Op: isa.OpUnifyConst, Functor: b},
		{Op: isa.OpGetConst, Functor: a, Reg1: 20},
		{Op: isa.OpProceed},
	})

	r := wam.NewResolver(code, tbl)
	require.NoError(t, r.SetQuery([]isa.Instruction{
		{Op: isa.OpPutStruc, Functor: foo2, Reg1: 1},
		{Op: isa.OpSetConst, Functor: a},
		{Op: isa.OpSetConst, Functor: b},
		{Op: isa.OpCall, Functor: wrap1, Count: 0},
		{Op: isa.OpStop},
	}))

	require.NoError(t, r.Resolve(context.Background()))

	// The structure built by put_struc/set_const must land at its own
	// header's contiguous argument cells, not be shadowed by stray
	// placeholder cells elsewhere on the heap.
	_, regCell, _ := r.Walk(r.Reg(1))
	require.Equal(t, wam.TagStr, regCell.Tag)
	header := r.Load(regCell.Val)
	require.Equal(t, wam.Fun(foo2), header)
	require.Equal(t, wam.Con(a), r.Load(regCell.Val+1))
	require.Equal(t, wam.Con(b), r.Load(regCell.Val+2))

	require.ErrorIs(t, r.Resolve(context.Background()), wam.ErrNoMoreSolutions)
}

// TestPutListBuildsContiguousCons exercises put_list followed by two
// write-mode unify_val instructions, and checks the two cells they write
// land at the address the list cell points to rather than being shadowed
// by reserved-but-unwritten placeholders.
func TestPutListBuildsContiguousCons(t *testing.T) {
	tbl := intern.New()
	one := tbl.InternFunctor("1", 0)
	nilAtom := tbl.InternFunctor("nil", 0)
	id1 := tbl.InternFunctor("id", 1)

	code := machine.NewCodeArea()
	defineFact(t, code, "id", 1, []isa.Instruction{
		{Op: isa.OpGetVar, Reg1: 20, Reg2: 1},
		{Op: isa.OpProceed},
	})

	r := wam.NewResolver(code, tbl)
	require.NoError(t, r.SetQuery([]isa.Instruction{
		{Op: isa.OpPutConst, Functor: one, Reg1: 2},
		{Op: isa.OpPutConst, Functor: nilAtom, Reg1: 3},
		{Op: isa.OpPutList, Reg1: 1},
		{Op: isa.OpUnifyVal, Reg1: 2},
		{Op: isa.OpUnifyVal, Reg1: 3},
		{Op: isa.OpCall, Functor: id1, Count: 0},
		{Op: isa.OpStop},
	}))

	require.NoError(t, r.Resolve(context.Background()))

	_, regCell, _ := r.Walk(r.Reg(1))
	require.Equal(t, wam.TagLis, regCell.Tag)
	require.Equal(t, wam.Con(one), r.Load(regCell.Val))
	require.Equal(t, wam.Con(nilAtom), r.Load(regCell.Val+1))

	require.ErrorIs(t, r.Resolve(context.Background()), wam.ErrNoMoreSolutions)
}
