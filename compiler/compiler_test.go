package compiler_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rupertlssmith/lojix-sub007/compiler"
	"github.com/rupertlssmith/lojix-sub007/intern"
	"github.com/rupertlssmith/lojix-sub007/isa"
	"github.com/rupertlssmith/lojix-sub007/machine"
	"github.com/rupertlssmith/lojix-sub007/symtab"
	"github.com/rupertlssmith/lojix-sub007/term"
	"github.com/rupertlssmith/lojix-sub007/wam"
)

// likes(mary, wine). likes(mary, beer).
// ?- likes(mary, X).
// Exercises the full pipeline: Annotate -> codegen -> peephole ->
// try/retry/trust wrapping -> Linker.Link (including choice-point
// relocation) -> Resolver.
func TestCompileFactsAndBacktrackIntoSecondClause(t *testing.T) {
	tbl := intern.New()
	c := compiler.New(tbl)

	mary, wine, beer := term.Atom("mary"), term.Atom("wine"), term.Atom("beer")
	clauses := []term.Clause{
		{Head: term.Of("likes", mary, wine)},
		{Head: term.Of("likes", mary, beer)},
	}
	pred := c.CompilePredicate(clauses)
	require.Equal(t, "likes", pred.Name)
	require.Equal(t, 2, pred.Arity)

	code := machine.NewCodeArea()
	linker := machine.NewLinker(code, tbl)
	require.NoError(t, linker.Link([]isa.Predicate{pred}))

	queryInstrs, sym := c.CompileQuery([]term.Term{term.Of("likes", mary, term.Var{Name: "X"})})

	r := wam.NewResolver(code, tbl)
	require.NoError(t, r.SetQuery(queryInstrs))

	xSlot, ok := sym.Get(sym.SymbolKeyFor("var:X"), symtab.FieldRegister)
	require.True(t, ok)
	xIndex := xSlot.(int) - int(compiler.YBase)

	readX := func() wam.Cell {
		base, n, ok := r.QueryEnv()
		require.True(t, ok)
		require.Greater(t, n, xIndex)
		_, cell, _ := r.Walk(r.Load(base + int32(xIndex)))
		return cell
	}

	require.NoError(t, r.Resolve(context.Background()))
	require.Equal(t, wam.Con(tbl.InternFunctor("wine", 0)), readX())

	require.NoError(t, r.Resolve(context.Background()))
	require.Equal(t, wam.Con(tbl.InternFunctor("beer", 0)), readX())

	require.ErrorIs(t, r.Resolve(context.Background()), wam.ErrNoMoreSolutions)
}

// p(a) :- q(a). must disassemble to get_const/put_const, never get_struc
// a/0 (spec.md section 8 scenario 6): a zero-arity functor argument is a
// constant, not a one-element structure.
func TestCompileZeroArityArgumentDisassemblesAsConst(t *testing.T) {
	tbl := intern.New()
	c := compiler.New(tbl)

	a := term.Atom("a")
	clauses := []term.Clause{
		{Head: term.Of("p", a), Body: []term.Term{term.Of("q", a)}},
	}
	pred := c.CompilePredicate(clauses)

	out := isa.Disassemble(tbl, pred.Flatten())
	require.Contains(t, out, "get_const a, A1")
	require.Contains(t, out, "put_const a, A1")
	require.NotContains(t, out, "get_struc")
}

// A single clause with a deep cut: p(X) :- q(X), !, r(X).
// exercises get_level/cut emission and permanent-variable survival across
// the cut.
func TestCompileDeepCutEmitsGetLevelAndCut(t *testing.T) {
	tbl := intern.New()
	c := compiler.New(tbl)

	x := term.Var{Name: "X"}
	clauses := []term.Clause{
		{
			Head: term.Of("p", x),
			Body: []term.Term{
				term.Of("q", x),
				term.Atom("!"),
				term.Of("r", x),
			},
		},
	}
	pred := c.CompilePredicate(clauses)
	out := isa.Disassemble(tbl, pred.Flatten())
	require.Contains(t, out, "get_level")
	require.Contains(t, out, "cut")
}

// A fact with no permanent variables and no choicepoint compiles to a
// straight-line listing with no allocate/deallocate/try_me_else at all.
func TestCompileSingleFactHasNoEnvironmentOrChoicePoint(t *testing.T) {
	tbl := intern.New()
	c := compiler.New(tbl)

	clauses := []term.Clause{
		{Head: term.Of("flag", term.Atom("on"))},
	}
	pred := c.CompilePredicate(clauses)
	require.Len(t, pred.Clauses, 1)
	for _, ins := range pred.Clauses[0] {
		require.NotEqual(t, isa.OpAllocate, ins.Op)
		require.NotEqual(t, isa.OpTryMeElse, ins.Op)
	}
}

// Peephole must merge adjacent void-count instructions and never touch a
// put_var whose Xn happens to equal Ai, since put_var allocates a fresh
// cell rather than moving one (unlike get_var, which is a pure copy and
// is dropped by TestPeepholeDropsSelfMoves below).
func TestPeepholeMergesVoidRunsAndKeepsFirstOccurrenceMoves(t *testing.T) {
	in := []isa.Instruction{
		{Op: isa.OpSetVoid, Count: 1},
		{Op: isa.OpSetVoid, Count: 1},
		{Op: isa.OpSetVoid, Count: 2},
		{Op: isa.OpPutVar, Reg1: 5, Reg2: 5},
		{Op: isa.OpProceed},
	}
	out := compiler.Peephole(in)

	require.Len(t, out, 3)
	require.Equal(t, isa.OpSetVoid, out[0].Op)
	require.Equal(t, 4, out[0].Count)
	require.Equal(t, isa.OpPutVar, out[1].Op)
	require.Equal(t, isa.OpProceed, out[2].Op)
}

// put_val/get_val/get_var collapse when Xn == Ai, since all three are pure
// data moves and a self-move does nothing; put_var keeps its Reg1==Reg2
// form in TestPeepholeMergesVoidRunsAndKeepsFirstOccurrenceMoves above
// since it allocates a fresh cell rather than moving one.
func TestPeepholeDropsSelfMoves(t *testing.T) {
	in := []isa.Instruction{
		{Op: isa.OpGetVal, Reg1: 3, Reg2: 3},
		{Op: isa.OpPutVal, Reg1: 7, Reg2: 9},
		{Op: isa.OpGetVar, Reg1: 4, Reg2: 4},
		{Op: isa.OpProceed},
	}
	out := compiler.Peephole(in)
	require.Len(t, out, 2)
	require.Equal(t, isa.OpPutVal, out[0].Op)
	require.Equal(t, isa.OpProceed, out[1].Op)
}

// cons(X, nil) built with the reserved list functor "."/2 must disassemble
// to put_list in the body and get_list in the head (spec.md section 4.5
// rule 5), never get_struc/put_struc — which would otherwise route through
// the heap layout a plain compound uses instead of a two-cell list pair.
func TestCompileConsCellDisassemblesAsList(t *testing.T) {
	tbl := intern.New()
	c := compiler.New(tbl)

	x, nilAtom := term.Var{Name: "X"}, term.Atom("nil")
	cons := func(h, t term.Term) *term.Compound { return &term.Compound{Functor: ".", Args: []term.Term{h, t}} }

	clauses := []term.Clause{
		{
			Head: term.Of("p", x),
			Body: []term.Term{term.Of("q", cons(x, nilAtom))},
		},
	}
	pred := c.CompilePredicate(clauses)
	out := isa.Disassemble(tbl, pred.Flatten())
	require.Contains(t, out, "put_list")
	require.NotContains(t, out, "put_struc")

	headClauses := []term.Clause{
		{Head: term.Of("first", cons(x, term.Var{Name: "_"}))},
	}
	headPred := c.CompilePredicate(headClauses)
	headOut := isa.Disassemble(tbl, headPred.Flatten())
	require.Contains(t, headOut, "get_list")
	require.NotContains(t, headOut, "get_struc")
}

// A variable occurring exactly once in a clause, nested inside a
// structure argument, compiles to set_void/unify_void rather than
// set_var/unify_var (spec.md section 4.5's singleton-to-void rule) since
// nothing in the clause ever reads it back.
func TestCompileSingletonNestedVariableCompilesToVoid(t *testing.T) {
	tbl := intern.New()
	c := compiler.New(tbl)

	wrap := func(t term.Term) *term.Compound { return &term.Compound{Functor: "wrap", Args: []term.Term{t}} }
	clauses := []term.Clause{
		{
			Head: term.Of("p", term.Var{Name: "X"}),
			Body: []term.Term{term.Of("q", wrap(term.Var{Name: "Y"}))},
		},
	}
	pred := c.CompilePredicate(clauses)
	out := isa.Disassemble(tbl, pred.Flatten())
	require.Contains(t, out, "set_void")
	require.NotContains(t, out, "set_var")
}

// A singleton variable in a head's top-level argument position emits no
// instruction at all: the argument register already holds the caller's
// value and nothing in the clause reads it again.
func TestCompileSingletonHeadArgumentEmitsNoInstruction(t *testing.T) {
	tbl := intern.New()
	c := compiler.New(tbl)

	clauses := []term.Clause{
		{Head: term.Of("p", term.Var{Name: "Ignored"}, term.Atom("ok"))},
	}
	pred := c.CompilePredicate(clauses)
	for _, ins := range pred.Clauses[0] {
		require.NotEqual(t, isa.OpGetVar, ins.Op)
		require.NotEqual(t, isa.OpGetVal, ins.Op)
	}
}
