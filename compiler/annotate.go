// Package compiler turns a parsed term.Clause into a compiled isa.Predicate:
// symbol-key annotation (occurrence counts, permanent-variable detection,
// register allocation), clause body generation, try/retry/trust wrapping
// for multi-clause predicates, and a peephole optimizer. See spec.md
// sections 4.2, 4.3, 4.5.
package compiler

import (
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/rupertlssmith/lojix-sub007/isa"
	"github.com/rupertlssmith/lojix-sub007/symtab"
	"github.com/rupertlssmith/lojix-sub007/term"
)

// varInfo is one clause-local variable's analysis, attached to sym via
// well-known symtab field names (spec.md section 4.3.2).
type varInfo struct {
	name        string
	firstGoal   int
	lastGoal    int
	occurrences int
	permanent   bool
	reg         isa.Reg // physical X register, or a Y slot if permanent (see yBase)
}

// yBase mirrors wam.yBase: Reg values at or above it address a permanent
// variable slot rather than the physical register file. Duplicated here
// (rather than imported) to keep compiler independent of wam, matching
// the package layering in spec.md section 10 (compiler emits isa, never
// touches wam directly).
const yBase isa.Reg = 200

// YBase is yBase exported for callers (tests, a future lojix facade) that
// need to turn a variable's recorded register back into a permanent-slot
// index: slot = int(reg) - int(YBase).
const YBase = yBase

// annotation is the per-clause result of Annotate: every source variable's
// analysis, plus the first free physical register a literal (non-variable)
// argument or nested subterm can safely use.
type annotation struct {
	vars       map[string]*varInfo
	order      []string // first-occurrence order, for deterministic Y slot/X register assignment
	firstFree  isa.Reg  // first register number not reserved for an Ai slot of any goal
	permCount  int
}

// Annotate runs the occurrence-count / permanent-variable / register
// allocation pass over clause (spec.md section 4.3.2), recording its
// findings in sym under the well-known field names so other compiler
// stages (and a future disassembler-driven debugger) can inspect them
// without re-deriving the analysis.
//
// Grounded on symtab.Table's own doc contract and spec.md's occurrence
// counting algorithm; register assignment is a single linear scan over
// first-occurrence order (spec.md section 9 Open Question: "simplest
// correct choice, not a liveness-optimal allocator") reseeded fresh for
// every clause, using golang.org/x/exp/slices for the one place this pass
// needs a stable sort (permanent-variable Y slot order).
func Annotate(sym *symtab.Table, clause term.Clause) *annotation {
	goals := clause.Goals()

	maxArity := 0
	for _, g := range goals {
		if _, arity, ok := term.Indicator(g); ok && arity > maxArity {
			maxArity = arity
		}
	}

	a := &annotation{vars: make(map[string]*varInfo), firstFree: isa.Reg(maxArity + 1)}

	anon := 0
	for gi, g := range goals {
		for _, v := range term.Vars(g) {
			key := v.Name
			if key == "_" {
				key = fmt.Sprintf("_#%d", anon)
				anon++
			}
			vi, ok := a.vars[key]
			if !ok {
				vi = &varInfo{name: v.Name, firstGoal: gi, lastGoal: gi}
				a.vars[key] = vi
				a.order = append(a.order, key)
			}
			vi.occurrences++
			if gi > vi.lastGoal {
				vi.lastGoal = gi
			}
			sym.Put(sym.SymbolKeyFor("var:"+key), symtab.FieldOccurrenceCount, vi.occurrences)
		}
	}

	slices.SortStableFunc(a.order, func(i, j string) bool {
		return a.vars[i].firstGoal < a.vars[j].firstGoal
	})

	nextX := a.firstFree
	nextY := isa.Reg(0)
	for _, key := range a.order {
		vi := a.vars[key]
		vi.permanent = vi.firstGoal != vi.lastGoal
		sym.Put(sym.SymbolKeyFor("var:"+key), symtab.FieldPermanent, vi.permanent)
		sym.Put(sym.SymbolKeyFor("var:"+key), symtab.FieldNonArgOnly, vi.firstGoal > 0)

		if vi.permanent {
			vi.reg = yBase + nextY
			nextY++
		} else {
			vi.reg = nextX
			nextX++
		}
		sym.Put(sym.SymbolKeyFor("var:"+key), symtab.FieldRegister, int(vi.reg))
	}
	a.permCount = int(nextY)

	return a
}

// keyFor returns the variable-info lookup key for a term.Var occurrence,
// matching Annotate's "_" disambiguation. Only valid when walking the same
// goal sequence Annotate saw, in the same order, since anonymous variables
// are keyed by occurrence index rather than by name.
type varKeyer struct {
	anon int
}

func (k *varKeyer) keyFor(v term.Var) string {
	if v.Name != "_" {
		return v.Name
	}
	key := fmt.Sprintf("_#%d", k.anon)
	k.anon++
	return key
}
