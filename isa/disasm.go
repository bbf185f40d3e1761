package isa

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/rupertlssmith/lojix-sub007/intern"
)

// Disassemble renders a predicate's current instruction listing as
// human-readable text, one mnemonic per line, resolving functor ids
// back to name/arity via tbl. This exists to satisfy spec.md section
// 8 scenario 6: compiling `p(a) :- q(a).` must emit get_const/put_const
// and "the disassembler must render it that way" — never get_struc a/0.
//
// Grounded on axone-protocol-prolog's instruction.String()/Opcode.String()
// pair (_examples/other_examples/..._engine-vm.go.go).
func Disassemble(tbl *intern.Table, instrs []Instruction) string {
	var sb strings.Builder
	for _, ins := range instrs {
		sb.WriteString(disassembleOne(tbl, ins))
		sb.WriteByte('\n')
	}
	return sb.String()
}

func disassembleOne(tbl *intern.Table, ins Instruction) string {
	f := func(id intern.FunctorID) string {
		if fn, ok := tbl.FunctorOf(id); ok {
			if fn.Arity == 0 {
				return fn.Name
			}
			return fn.String()
		}
		return fmt.Sprintf("<?%d>", id)
	}

	switch ins.Op {
	case OpPutVar, OpPutVal, OpGetVar, OpGetVal:
		return fmt.Sprintf("%s X%d, A%d", ins.Op, ins.Reg1, ins.Reg2)
	case OpPutConst, OpGetConst:
		return fmt.Sprintf("%s %s, A%d", ins.Op, f(ins.Functor), ins.Reg1)
	case OpPutInt, OpGetInt:
		return fmt.Sprintf("%s %d, A%d", ins.Op, ins.IntVal, ins.Reg1)
	case OpSetInt, OpUnifyInt:
		return fmt.Sprintf("%s %d", ins.Op, ins.IntVal)
	case OpPutStruc, OpGetStruc:
		return fmt.Sprintf("%s %s, A%d", ins.Op, f(ins.Functor), ins.Reg1)
	case OpPutList, OpGetList:
		return fmt.Sprintf("%s A%d", ins.Op, ins.Reg1)
	case OpSetVar, OpSetVal, OpUnifyVar, OpUnifyVal:
		return fmt.Sprintf("%s X%d", ins.Op, ins.Reg1)
	case OpSetConst, OpUnifyConst:
		return fmt.Sprintf("%s %s", ins.Op, f(ins.Functor))
	case OpSetVoid, OpUnifyVoid:
		return fmt.Sprintf("%s %d", ins.Op, ins.Count)
	case OpAllocate:
		return fmt.Sprintf("%s %d", ins.Op, ins.Count)
	case OpDeallocate, OpProceed, OpNeckCut, OpStop:
		return ins.Op.String()
	case OpCall, OpExecute:
		return fmt.Sprintf("%s %s, %d", ins.Op, f(ins.Functor), ins.Count)
	case OpTryMeElse, OpRetryMeElse, OpTrustMe:
		return fmt.Sprintf("%s %d", ins.Op, ins.Label)
	case OpCut, OpGetLevel:
		return fmt.Sprintf("%s Y%d", ins.Op, ins.Perm)
	case OpSwitchOnTerm:
		return fmt.Sprintf("%s V:%d, C:%d, L:%d, S:%d", ins.Op, ins.VarLabel, ins.ConLabel, ins.ListLabel, ins.StrucLabel)
	case OpSwitchOnConstant, OpSwitchOnStructure:
		keys := make([]intern.FunctorID, 0, len(ins.Table))
		for k := range ins.Table {
			keys = append(keys, k)
		}
		slices.SortFunc(keys, func(i, j intern.FunctorID) bool { return i < j })
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s->%d", f(k), ins.Table[k])
		}
		return fmt.Sprintf("%s {%s}", ins.Op, strings.Join(parts, ", "))
	default:
		return fmt.Sprintf("<unknown op %d>", ins.Op)
	}
}
