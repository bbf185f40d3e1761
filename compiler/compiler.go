package compiler

import (
	"fmt"

	"github.com/rupertlssmith/lojix-sub007/intern"
	"github.com/rupertlssmith/lojix-sub007/isa"
	"github.com/rupertlssmith/lojix-sub007/symtab"
	"github.com/rupertlssmith/lojix-sub007/term"
)

// Compiler turns parsed clauses into isa.Predicate listings, interning
// every functor it meets against tbl so the resolver can later resolve
// call targets and the disassembler can render names back out.
//
// Grounded on trealla/prolog.go's Consult/Register pipeline: a single
// long-lived value a caller feeds clauses into one predicate at a time.
type Compiler struct {
	tbl *intern.Table
}

// New creates a Compiler interning functors against tbl.
func New(tbl *intern.Table) *Compiler {
	return &Compiler{tbl: tbl}
}

// CompilePredicate compiles every clause of one predicate (all sharing
// name/arity) into a linkable isa.Predicate: per-clause body code,
// try/retry/trust choice-point wrapping when there is more than one
// clause, and a peephole pass over each clause's raw listing (spec.md
// section 4.5).
//
// clauses must be non-empty and share one head indicator; CompilePredicate
// panics otherwise, since that is a caller bug, not a run-time condition.
func (c *Compiler) CompilePredicate(clauses []term.Clause) isa.Predicate {
	if len(clauses) == 0 {
		panic("compiler: CompilePredicate: no clauses")
	}
	name, arity := clauses[0].Indicator()

	unopt := make([][]isa.Instruction, len(clauses))
	opt := make([][]isa.Instruction, len(clauses))
	for i, cl := range clauses {
		n, a := cl.Indicator()
		if n != name || a != arity {
			panic(fmt.Sprintf("compiler: CompilePredicate: clause %d is %s/%d, want %s/%d", i, n, a, name, arity))
		}
		sym := symtab.New().EnterScope(fmt.Sprintf("%s/%d#%d", name, arity, i))
		ann := Annotate(sym, cl)
		body := c.compileClauseBody(sym, ann, cl)
		unopt[i] = append([]isa.Instruction(nil), body...)
		opt[i] = Peephole(body)
	}

	wrapChoicePoints(opt)

	return isa.Predicate{Name: name, Arity: arity, Clauses: opt, Unoptimized: unopt}
}

// wrapChoicePoints prepends try_me_else/retry_me_else/trust_me to each
// clause's listing in place when there is more than one clause (spec.md
// section 4.3.4 "Predicate assembly"). Labels are left as this-batch-relative
// placeholders: the offset, within the flattened listing, of the next
// clause's first instruction; Predicate.Flatten lays clauses out
// contiguously so a caller adds the predicate's own base address once,
// after CodeArea.Reserve has fixed it, to get an absolute isa.Label.
func wrapChoicePoints(clauses [][]isa.Instruction) {
	if len(clauses) < 2 {
		return
	}

	offsets := make([]isa.Label, len(clauses)+1)
	for i, cl := range clauses {
		n := 0
		for _, ins := range cl {
			n += ins.Size()
		}
		offsets[i+1] = offsets[i] + isa.Label(n)
	}
	// Correct for the choice-point instruction each clause is about to
	// gain: recompute offsets after prefixing, below.

	prefixed := make([][]isa.Instruction, len(clauses))
	for i := range clauses {
		var lead isa.Instruction
		switch i {
		case 0:
			lead = isa.Instruction{Op: isa.OpTryMeElse}
		case len(clauses) - 1:
			lead = isa.Instruction{Op: isa.OpTrustMe}
		default:
			lead = isa.Instruction{Op: isa.OpRetryMeElse}
		}
		prefixed[i] = append([]isa.Instruction{lead}, clauses[i]...)
	}

	offsets[0] = 0
	for i, cl := range prefixed {
		n := 0
		for _, ins := range cl {
			n += ins.Size()
		}
		offsets[i+1] = offsets[i] + isa.Label(n)
	}
	for i := range prefixed {
		if i == len(prefixed)-1 {
			break // trust_me carries no Label
		}
		prefixed[i][0].Label = offsets[i+1]
	}

	copy(clauses, prefixed)
}

// compileClauseBody emits one clause's straight-line instruction listing
// (head unification followed by body goals), unwrapped by any choice-point
// instructions, which wrapChoicePoints adds afterward once every clause's
// length is known.
//
// Grounded on the standard WAM compilation scheme (Warren 1983, section
// 4, "Compiling Clauses"), applied over this repository's isa.Instruction
// set rather than the classic mnemonic table.
func (c *Compiler) compileClauseBody(sym *symtab.Table, ann *annotation, cl term.Clause) []isa.Instruction {
	var out []isa.Instruction
	needsEnv := ann.permCount > 0 || len(cl.Body) > 1

	deepCut := false
	for gi, g := range cl.Body {
		if atom, ok := g.(term.Atom); ok && atom == "!" && gi > 0 {
			deepCut = true
		}
	}
	cutSlot := isa.PermSlot(ann.permCount)
	if deepCut {
		needsEnv = true
		sym.Put(sym.SymbolKeyFor("cut_barrier"), symtab.FieldPermanentSlot, int(cutSlot))
		ann.permCount++
	}

	if needsEnv {
		out = append(out, isa.Instruction{Op: isa.OpAllocate, Count: ann.permCount})
	}
	if deepCut {
		out = append(out, isa.Instruction{Op: isa.OpGetLevel, Perm: cutSlot})
	}

	seen := make(map[string]bool)
	key := &varKeyer{}
	f := newFlattener(c, sym, ann, key, seen)

	if cl.Head != nil {
		if ca, ok := cl.Head.(*term.Compound); ok {
			for i, arg := range ca.Args {
				out = append(out, c.compileHeadArg(f, arg, isa.Reg(i+1))...)
			}
		}
	}

	for gi, g := range cl.Body {
		last := gi == len(cl.Body)-1
		if atom, ok := g.(term.Atom); ok && atom == "!" {
			out = append(out, c.compileCut(sym, gi == 0))
			continue
		}
		out = append(out, c.compileBodyGoal(f, g)...)
		name, arity, _ := term.Indicator(g)
		functor := c.tbl.InternFunctor(name, arity)
		if last {
			out = append(out, isa.Instruction{Op: isa.OpExecute, Functor: functor, Count: arity})
		} else {
			out = append(out, isa.Instruction{Op: isa.OpCall, Functor: functor, Count: liveCount(ann, gi)})
		}
	}

	endsInCut := false
	if n := len(cl.Body); n > 0 {
		if atom, ok := cl.Body[n-1].(term.Atom); ok && atom == "!" {
			endsInCut = true
		}
	}

	if len(cl.Body) == 0 || endsInCut {
		if needsEnv {
			out = append(out, isa.Instruction{Op: isa.OpDeallocate})
		}
		out = append(out, isa.Instruction{Op: isa.OpProceed})
	} else if needsEnv {
		// The last body goal emitted OpExecute above (last-call
		// optimization skips an explicit deallocate/proceed pair: the
		// callee's own proceed returns through CP, which deallocate
		// already restored). Insert deallocate just before that
		// execute so the environment is freed before the tail call.
		insertDeallocateBeforeLastExecute(&out)
	}

	return out
}

// liveCount is the number of permanent variables still needed after goal
// gi completes — the Count operand OpCall documents as "live permanent
// variable count for garbage collection", not the callee's arity. This
// implementation never reclaims trail/stack space mid-clause (spec.md
// section 9 Open Question: garbage collection is out of scope), so it
// conservatively reports every permanent variable of the clause.
func liveCount(ann *annotation, _ int) int {
	return ann.permCount
}

func insertDeallocateBeforeLastExecute(out *[]isa.Instruction) {
	for i := len(*out) - 1; i >= 0; i-- {
		if (*out)[i].Op == isa.OpExecute {
			dealloc := isa.Instruction{Op: isa.OpDeallocate}
			*out = append((*out)[:i], append([]isa.Instruction{dealloc}, (*out)[i:]...)...)
			return
		}
	}
}

func (c *Compiler) compileCut(sym *symtab.Table, neck bool) isa.Instruction {
	if neck {
		return isa.Instruction{Op: isa.OpNeckCut}
	}
	slot, ok := sym.Get(sym.SymbolKeyFor("cut_barrier"), symtab.FieldPermanentSlot)
	if !ok {
		panic("compiler: deep cut with no get_level slot reserved")
	}
	return isa.Instruction{Op: isa.OpCut, Perm: isa.PermSlot(slot.(int))}
}

// CompileQuery compiles a top-level goal list into the synthetic
// call-point body the resolver drives via SetQuery (spec.md section 4.3.3
// "Queries compile as a body with a synthetic head-less start"):
// allocate, one call per goal (never execute/LCO'd, so the environment
// outlives every goal call), then a terminal $stop so the driver can read
// bindings back out of the query's own permanent variables before
// choosing whether to ask for another solution.
//
// Every variable appearing in goals is treated as permanent regardless of
// how many goals it spans, unlike CompilePredicate's clauses: a query
// variable must survive past its last mentioning goal so the caller can
// read its binding afterward, which Annotate's span test alone would not
// guarantee for a variable that happens to occur in only one goal.
func (c *Compiler) CompileQuery(goals []term.Term) ([]isa.Instruction, *symtab.Table) {
	sym := symtab.New().EnterScope("$query")
	cl := term.Clause{Body: goals}
	ann := annotateQuery(sym, cl)

	var out []isa.Instruction
	out = append(out, isa.Instruction{Op: isa.OpAllocate, Count: ann.permCount})

	seen := make(map[string]bool)
	key := &varKeyer{}
	f := newFlattener(c, sym, ann, key, seen)
	for _, g := range goals {
		out = append(out, c.compileBodyGoal(f, g)...)
		name, arity, _ := term.Indicator(g)
		functor := c.tbl.InternFunctor(name, arity)
		out = append(out, isa.Instruction{Op: isa.OpCall, Functor: functor, Count: ann.permCount})
	}
	out = append(out, isa.Instruction{Op: isa.OpStop})

	return out, sym
}

// annotateQuery is Annotate's query-mode twin: every variable is
// unconditionally permanent (see CompileQuery's doc comment), so it skips
// Annotate's first-goal/last-goal span test rather than special-casing it
// there for every ordinary clause compile.
func annotateQuery(sym *symtab.Table, cl term.Clause) *annotation {
	goals := cl.Goals()
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
				vi = &varInfo{name: v.Name, firstGoal: gi, lastGoal: gi, permanent: true}
				a.vars[key] = vi
				a.order = append(a.order, key)
			}
			vi.occurrences++
		}
	}

	for _, key := range a.order {
		vi := a.vars[key]
		vi.reg = yBase + isa.Reg(a.permCount)
		sym.Put(sym.SymbolKeyFor("var:"+key), symtab.FieldRegister, int(vi.reg))
		sym.Put(sym.SymbolKeyFor("var:"+key), symtab.FieldPermanent, true)
		a.permCount++
	}

	return a
}

// regOf returns the X-or-Y operand encoding for a variable's assigned
// register, looked up by its annotation key.
func (a *annotation) regOf(key string) (isa.Reg, bool) {
	vi, ok := a.vars[key]
	if !ok {
		return 0, false
	}
	return vi.reg, true
}

// singleton reports whether key names a variable that occurs exactly once
// in the whole clause and was not forced permanent (spec.md section 4.5's
// singleton-to-void peephole rule). A variable spanning more than one goal
// is never a true singleton (Annotate only marks it permanent when it
// does), and annotateQuery forces every query variable permanent
// regardless of occurrence count so its binding stays readable after
// resolution — both cases fall through to false here, leaving flatten.go's
// ordinary var/val emission in place.
func (a *annotation) singleton(key string) bool {
	vi, ok := a.vars[key]
	return ok && vi.occurrences == 1 && !vi.permanent
}
