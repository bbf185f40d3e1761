package compiler

import (
	"github.com/rupertlssmith/lojix-sub007/isa"
	"github.com/rupertlssmith/lojix-sub007/symtab"
	"github.com/rupertlssmith/lojix-sub007/term"
)

// flattener threads the mutable state a single clause's argument
// compilation needs across recursive calls: which named variables have
// already been bound (so a second occurrence emits a "val" instruction
// instead of a "var" one) and the next free scratch register for an
// unnamed subterm uncovered while flattening a nested compound.
//
// Nested compound/list arguments are flattened depth-first rather than
// with the classic WAM worklist/BFS scheme: a fresh scratch register is
// assigned to the subterm immediately. In a head, its own get_struc
// sequence is emitted after the enclosing structure's unify_* run; in a
// body goal, its own put_struc sequence is emitted before the enclosing
// put_struc, whose set_val then references it. Emission order differs from a textbook breadth-first compiler; the
// generated code is equally correct, just numbers its scratch registers
// in a different order. Scope trim: scratch registers are always
// temporary (X), never promoted to permanent slots, so a nested subterm
// captured by one goal cannot be carried live into a later goal. No
// clause in this implementation's test predicates needs that.
type flattener struct {
	c       *Compiler
	sym     *symtab.Table
	ann     *annotation
	key     *varKeyer
	seen    map[string]bool
	scratch isa.Reg
}

// newFlattener creates the one flattener a whole clause's compilation
// uses for every head argument and every body goal, so a scratch register
// handed out while flattening the first head argument is never reused by
// the third body goal (each top-level argument used to get its own
// flattener, which reset the scratch counter and could alias registers
// across sibling arguments — fixed by sharing one instance per clause).
func newFlattener(c *Compiler, sym *symtab.Table, ann *annotation, key *varKeyer, seen map[string]bool) *flattener {
	scratch := ann.firstFree
	for range ann.vars {
		scratch++
	}
	return &flattener{c: c, sym: sym, ann: ann, key: key, seen: seen, scratch: scratch}
}

func (f *flattener) freshScratch() isa.Reg {
	r := f.scratch
	f.scratch++
	return r
}

// compileHeadArg emits the get_*/unify_* sequence matching one top-level
// head argument against register reg (spec.md section 4.3.1 "head
// compilation"). f is shared across every argument of the clause.
func (c *Compiler) compileHeadArg(f *flattener, arg term.Term, reg isa.Reg) []isa.Instruction {
	return f.getArg(arg, reg)
}

func (f *flattener) getArg(arg term.Term, reg isa.Reg) []isa.Instruction {
	switch x := arg.(type) {
	case term.Var:
		return f.getVar(x, reg)

	case term.Atom:
		return []isa.Instruction{{Op: isa.OpGetConst, Functor: f.c.tbl.InternFunctor(string(x), 0), Reg1: reg}}

	case term.Int:
		return []isa.Instruction{{Op: isa.OpGetInt, IntVal: int64(x), Reg1: reg}}

	case *term.Compound:
		var header isa.Instruction
		if isCons(x) {
			header = isa.Instruction{Op: isa.OpGetList, Reg1: reg}
		} else {
			header = isa.Instruction{Op: isa.OpGetStruc, Functor: f.c.tbl.InternFunctor(x.Functor, len(x.Args)), Reg1: reg}
		}
		out := []isa.Instruction{header}
		body, deferred := f.unifyArgs(x.Args)
		out = append(out, body...)
		out = append(out, deferred...)
		return out

	default:
		return []isa.Instruction{{Op: isa.OpGetConst, Functor: f.c.tbl.InternFunctor(termLiteralName(arg), 0), Reg1: reg}}
	}
}

func (f *flattener) getVar(v term.Var, reg isa.Reg) []isa.Instruction {
	key := f.key.keyFor(v)
	if f.ann.singleton(key) {
		// A head argument that is its clause's only occurrence of this
		// variable imposes no constraint and is never read again: reg
		// already holds the caller's value, so no instruction is needed
		// at all (spec.md section 4.5 singleton-to-void, top-level case).
		f.seen[key] = true
		return nil
	}
	r, ok := f.ann.regOf(key)
	if !ok {
		panic("compiler: variable " + v.Name + " missing from annotation")
	}
	if f.seen[key] {
		return []isa.Instruction{{Op: isa.OpGetVal, Reg1: r, Reg2: reg}}
	}
	f.seen[key] = true
	return []isa.Instruction{{Op: isa.OpGetVar, Reg1: r, Reg2: reg}}
}

// isCons reports whether comp is the built-in list cons cell ("."/2),
// the one structure spec.md section 4.5 rule 5 special-cases to
// get_list/put_list so its heap representation skips the functor header
// a general get_struc/put_struc would otherwise cost it.
func isCons(comp *term.Compound) bool {
	return comp.Functor == "." && len(comp.Args) == 2
}

// unifyArgs emits the unify_* sequence for a get_struc's argument list,
// read-mode-correct per spec.md section 4.3.1: a nested compound gets a
// unify_var into a fresh scratch register at this level, and its own
// get_struc sequence is returned separately so the caller can append it
// after every sibling argument at this level has been processed (matching
// read-mode structure traversal: the cursor S must finish walking the
// current structure's direct arguments before descending).
func (f *flattener) unifyArgs(args []term.Term) (here []isa.Instruction, deferred []isa.Instruction) {
	for _, arg := range args {
		switch x := arg.(type) {
		case term.Var:
			key := f.key.keyFor(x)
			if f.ann.singleton(key) {
				here = append(here, isa.Instruction{Op: isa.OpUnifyVoid, Count: 1})
				continue
			}
			r, ok := f.ann.regOf(key)
			if !ok {
				panic("compiler: variable " + x.Name + " missing from annotation")
			}
			if f.seen[key] {
				here = append(here, isa.Instruction{Op: isa.OpUnifyVal, Reg1: r})
			} else {
				f.seen[key] = true
				here = append(here, isa.Instruction{Op: isa.OpUnifyVar, Reg1: r})
			}

		case term.Atom:
			here = append(here, isa.Instruction{Op: isa.OpUnifyConst, Functor: f.c.tbl.InternFunctor(string(x), 0)})

		case term.Int:
			here = append(here, isa.Instruction{Op: isa.OpUnifyInt, IntVal: int64(x)})

		case *term.Compound:
			scratch := f.freshScratch()
			here = append(here, isa.Instruction{Op: isa.OpUnifyVar, Reg1: scratch})
			deferred = append(deferred, f.getArg(x, scratch)...)

		default:
			here = append(here, isa.Instruction{Op: isa.OpUnifyConst, Functor: f.c.tbl.InternFunctor(termLiteralName(arg), 0)})
		}
	}
	return here, deferred
}

// compileBodyGoal emits the put_*/set_* sequence constructing each
// argument of a body goal into A1..Aarity, ready for the call/execute
// the caller appends (spec.md section 4.3.1 "body compilation").
func (c *Compiler) compileBodyGoal(f *flattener, goal term.Term) []isa.Instruction {
	comp, ok := goal.(*term.Compound)
	if !ok {
		return nil // atom goal (0-arity): nothing to construct, execute/call needs no Ai
	}
	var out []isa.Instruction
	for i, arg := range comp.Args {
		out = append(out, f.putArg(arg, isa.Reg(i+1))...)
	}
	return out
}

func (f *flattener) putArg(arg term.Term, reg isa.Reg) []isa.Instruction {
	switch x := arg.(type) {
	case term.Var:
		return f.putVar(x, reg)

	case term.Atom:
		return []isa.Instruction{{Op: isa.OpPutConst, Functor: f.c.tbl.InternFunctor(string(x), 0), Reg1: reg}}

	case term.Int:
		return []isa.Instruction{{Op: isa.OpPutInt, IntVal: int64(x), Reg1: reg}}

	case *term.Compound:
		// put_struc/put_list must directly precede the set_* run that
		// writes its arguments, since each set_* pushes at the heap top.
		// A nested compound argument is therefore built first, into its
		// own scratch register, and referenced here with set_val.
		var pre, out []isa.Instruction
		for _, sub := range x.Args {
			if nested, ok := sub.(*term.Compound); ok {
				scratch := f.freshScratch()
				pre = append(pre, f.putArg(nested, scratch)...)
				out = append(out, isa.Instruction{Op: isa.OpSetVal, Reg1: scratch})
				continue
			}
			out = append(out, f.setArg(sub)...)
		}
		var header isa.Instruction
		if isCons(x) {
			header = isa.Instruction{Op: isa.OpPutList, Reg1: reg}
		} else {
			header = isa.Instruction{Op: isa.OpPutStruc, Functor: f.c.tbl.InternFunctor(x.Functor, len(x.Args)), Reg1: reg}
		}
		pre = append(pre, header)
		return append(pre, out...)

	default:
		return []isa.Instruction{{Op: isa.OpPutConst, Functor: f.c.tbl.InternFunctor(termLiteralName(arg), 0), Reg1: reg}}
	}
}

func (f *flattener) putVar(v term.Var, reg isa.Reg) []isa.Instruction {
	key := f.key.keyFor(v)
	r, ok := f.ann.regOf(key)
	if !ok {
		panic("compiler: variable " + v.Name + " missing from annotation")
	}
	if f.seen[key] {
		return []isa.Instruction{{Op: isa.OpPutVal, Reg1: r, Reg2: reg}}
	}
	f.seen[key] = true
	return []isa.Instruction{{Op: isa.OpPutVar, Reg1: r, Reg2: reg}}
}

func (f *flattener) setArg(arg term.Term) []isa.Instruction {
	switch x := arg.(type) {
	case term.Var:
		key := f.key.keyFor(x)
		if f.ann.singleton(key) {
			// Nothing else in the clause references this variable again,
			// so a fresh anonymous cell (set_void) is behaviorally
			// identical to set_var here (spec.md section 4.5
			// singleton-to-void, structure-argument case).
			f.seen[key] = true
			return []isa.Instruction{{Op: isa.OpSetVoid, Count: 1}}
		}
		r, ok := f.ann.regOf(key)
		if !ok {
			panic("compiler: variable " + x.Name + " missing from annotation")
		}
		if f.seen[key] {
			return []isa.Instruction{{Op: isa.OpSetVal, Reg1: r}}
		}
		f.seen[key] = true
		return []isa.Instruction{{Op: isa.OpSetVar, Reg1: r}}

	case term.Atom:
		return []isa.Instruction{{Op: isa.OpSetConst, Functor: f.c.tbl.InternFunctor(string(x), 0)}}

	case term.Int:
		return []isa.Instruction{{Op: isa.OpSetInt, IntVal: int64(x)}}

	case *term.Compound:
		scratch := f.freshScratch()
		built := f.putArg(x, scratch)
		return append(built, isa.Instruction{Op: isa.OpSetVal, Reg1: scratch})

	default:
		return []isa.Instruction{{Op: isa.OpSetConst, Functor: f.c.tbl.InternFunctor(termLiteralName(arg), 0)}}
	}
}

func termLiteralName(t term.Term) string {
	type stringer interface{ String() string }
	if s, ok := t.(stringer); ok {
		return s.String()
	}
	return "?"
}
