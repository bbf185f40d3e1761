package compiler

import "github.com/rupertlssmith/lojix-sub007/isa"

// Peephole runs a small forward scan over a clause's raw instruction
// listing, merging and dropping the handful of redundancies straight-line
// codegen leaves behind (spec.md section 4.5 "a peephole pass runs after
// annotation and before assembly"). It must run after Annotate/codegen
// (register numbers have to be final) and before CompilePredicate hands
// clauses to wrapChoicePoints (choice-point labels are byte-offset
// sensitive, so rewriting after they're computed would invalidate them).
//
// Grounded on the classic WAM peephole set (Warren 1983 section 4.7,
// "void compression" and "redundant move elimination"). The other two
// rewrites spec.md section 4.5's table asks for — collapsing a 0-arity
// get_struc/put_struc to get_const/put_const, and get_struc/put_struc on
// the list functor "."/2 to get_list/put_list, along with the
// singleton-to-void conversion half of void compression — are applied
// directly by compiler/flatten.go while it emits each clause's raw
// instructions, not rewritten here after the fact: flatten.go already
// knows an argument's term shape and its variable's occurrence count at
// the point it decides which opcode to emit, so doing it there avoids
// re-deriving that information from the flat instruction stream a second
// time. This pass does not attempt the more invasive last-call-
// specialization rewrites some WAM compilers fold into the same pass,
// since compileClauseBody already decides allocate/deallocate placement
// directly.
func Peephole(in []isa.Instruction) []isa.Instruction {
	out := make([]isa.Instruction, 0, len(in))
	for i := 0; i < len(in); i++ {
		ins := in[i]

		if ins.Op == isa.OpSetVoid || ins.Op == isa.OpUnifyVoid {
			total := ins.Count
			j := i + 1
			for j < len(in) && in[j].Op == ins.Op {
				total += in[j].Count
				j++
			}
			ins.Count = total
			i = j - 1
			out = append(out, ins)
			continue
		}

		if isRedundantMove(ins) {
			continue
		}

		out = append(out, ins)
	}
	return out
}

// isRedundantMove reports whether ins copies an existing value between Xn
// and Ai when the annotator happened to assign them the same register
// number. get_val/put_val/get_var all qualify: despite its name, get_var's
// actual effect (resolver.go's OpGetVar: r.writeOperand(Reg1, r.regs[Reg2]))
// is a pure copy exactly like get_val, not an allocation — put_var is the
// one that allocates a fresh cell (resolver.go's OpPutVar calls
// pushFreshVar), so it alone keeps its side effect and is excluded here
// even when Reg1 == Reg2.
func isRedundantMove(ins isa.Instruction) bool {
	switch ins.Op {
	case isa.OpGetVal, isa.OpPutVal, isa.OpGetVar:
		return ins.Reg1 == ins.Reg2
	default:
		return false
	}
}
