// Package isa is the WAM instruction set: a tagged IR with a byte-size
// contract per instruction and a byte encoder/decoder/disassembler.
// See spec.md section 4.4.
//
// The instruction set is closed and finite (spec.md section 9 design
// note), so dispatch is a type switch on Op rather than a dynamic
// visitor hierarchy — grounded on axone-protocol-prolog's
// Opcode/instruction{opcode, operand} shape
// (_examples/other_examples/..._engine-vm.go.go), generalized here to
// carry the several distinct operand kinds (register, functor id,
// label, permanent-variable slot, count) spec.md's table requires
// instead of a single Term operand.
package isa

import (
	"fmt"

	"github.com/rupertlssmith/lojix-sub007/intern"
)

// Reg is a machine register index. For argument/temporary registers
// this is Xn (spec.md section 3 "Registers"); the same type is used for
// the Ai operand of the put_*/get_* family since X and A share one
// array in this implementation, as spec.md section 3 permits
// ("simplest: a separate fixed-size array").
type Reg uint8

// PermSlot is a permanent-variable index Yn within the current
// environment frame.
type PermSlot uint8

// Label is a code address. A try_me_else/retry_me_else Label produced by
// the compiler is a byte offset relative to the predicate's first
// instruction until machine.Linker adds the predicate's base address.
type Label int32

// Op is a WAM opcode.
type Op uint8

const (
	OpPutVar Op = iota
	OpPutVal
	OpPutConst
	OpPutStruc
	OpPutList
	OpSetVar
	OpSetVal
	OpSetConst
	OpSetVoid

	// OpPutInt/OpGetInt/OpSetInt/OpUnifyInt mirror the *Const family for
	// integer literal arguments. Not split out in spec.md's instruction
	// table (which treats "constant" as one kind), but an interned
	// FunctorID cannot carry an arbitrary integer value, so literal
	// integers need their own operand width (IntVal, 8 bytes) rather than
	// overloading Functor.
	OpPutInt
	OpGetInt
	OpSetInt
	OpUnifyInt

	OpGetVar
	OpGetVal
	OpGetConst
	OpGetStruc
	OpGetList
	OpUnifyVar
	OpUnifyVal
	OpUnifyConst
	OpUnifyVoid

	OpAllocate
	OpDeallocate

	OpCall
	OpExecute
	OpProceed

	OpTryMeElse
	OpRetryMeElse
	OpTrustMe

	OpNeckCut
	OpCut

	// OpGetLevel saves the current cut barrier (the resolver's B0
	// register) into permanent slot Yn, so a deep cut ("!" appearing
	// after earlier body goals have run and overwritten B0) can still
	// cut back to the choicepoint in effect at clause entry. Standard
	// WAM instruction, not itemised in spec.md's opcode table but
	// required by OpCut's own contract there (a PermSlot operand with
	// nothing upstream to populate it).
	OpGetLevel

	OpSwitchOnTerm
	OpSwitchOnConstant
	OpSwitchOnStructure

	// OpStop is not part of spec.md's instruction table; it terminates a
	// compiled query's synthetic top-level body (spec.md section 4.3.3
	// item 6) by suspending the resolver with the query environment
	// still live, so its permanent variables can be read as the
	// solution. Never emitted for an ordinary predicate clause.
	OpStop

	numOps
)

var mnemonics = [numOps]string{
	OpPutVar:            "put_var",
	OpPutVal:             "put_val",
	OpPutConst:           "put_const",
	OpPutStruc:           "put_struc",
	OpPutList:            "put_list",
	OpSetVar:             "set_var",
	OpSetVal:             "set_val",
	OpSetConst:           "set_const",
	OpSetVoid:            "set_void",
	OpPutInt:             "put_int",
	OpGetInt:             "get_int",
	OpSetInt:             "set_int",
	OpUnifyInt:           "unify_int",
	OpGetVar:             "get_var",
	OpGetVal:             "get_val",
	OpGetConst:           "get_const",
	OpGetStruc:           "get_struc",
	OpGetList:            "get_list",
	OpUnifyVar:           "unify_var",
	OpUnifyVal:           "unify_val",
	OpUnifyConst:         "unify_const",
	OpUnifyVoid:          "unify_void",
	OpAllocate:           "allocate",
	OpDeallocate:         "deallocate",
	OpCall:               "call",
	OpExecute:            "execute",
	OpProceed:            "proceed",
	OpTryMeElse:          "try_me_else",
	OpRetryMeElse:        "retry_me_else",
	OpTrustMe:            "trust_me",
	OpNeckCut:            "neck_cut",
	OpCut:                "cut",
	OpGetLevel:           "get_level",
	OpSwitchOnTerm:       "switch_on_term",
	OpSwitchOnConstant:   "switch_on_constant",
	OpSwitchOnStructure:  "switch_on_structure",
	OpStop:               "$stop",
}

func (op Op) String() string {
	if op >= numOps {
		return fmt.Sprintf("op(%d)", byte(op))
	}
	return mnemonics[op]
}

// Instruction is a single WAM instruction carrying whichever operands
// its Op uses; unused fields are zero. A Case in encode.go/decode.go
// states exactly which fields each Op reads or writes.
type Instruction struct {
	Op Op

	Reg1 Reg // Xn, or the sole register operand
	Reg2 Reg // Ai, when an instruction has two register operands

	Functor intern.FunctorID // functor id for put_struc/get_struc/call/execute, or atom id for *_const
	Perm    PermSlot          // Yn, for cut
	Count   int               // set_void/unify_void count, allocate's N, call's live-count N
	Label   Label             // branch target: try_me_else/retry_me_else
	IntVal  int64             // literal value for the put_int/get_int/set_int/unify_int family

	// switch_on_term carries four targets; switch_on_constant and
	// switch_on_structure carry a hash table from functor id to label.
	VarLabel   Label
	ConLabel   Label
	ListLabel  Label
	StrucLabel Label
	Table      map[intern.FunctorID]Label
}

// Size returns the instruction's length in bytes when encoded, per the
// fixed-width field contract in spec.md section 6. The call-point
// reservation step (machine.CodeArea.Reserve) sums Size over a
// predicate's instructions before any byte is written, so forward
// references within a linking batch can be resolved in a second pass.
func (i Instruction) Size() int {
	const (
		opcodeW = 1
		regW    = 1
		permW   = 1
		funcW   = 4
		labelW  = 4
		countW  = 2
		intW    = 8
	)
	switch i.Op {
	case OpPutVar, OpPutVal, OpGetVar, OpGetVal:
		return opcodeW + regW + regW
	case OpPutConst, OpGetConst:
		return opcodeW + funcW + regW
	case OpPutInt, OpGetInt:
		return opcodeW + intW + regW
	case OpPutStruc, OpGetStruc:
		return opcodeW + funcW + regW
	case OpPutList, OpGetList:
		return opcodeW + regW
	case OpSetVar, OpSetVal, OpUnifyVar, OpUnifyVal:
		return opcodeW + regW
	case OpSetConst, OpUnifyConst:
		return opcodeW + funcW
	case OpSetInt, OpUnifyInt:
		return opcodeW + intW
	case OpSetVoid, OpUnifyVoid:
		return opcodeW + countW
	case OpAllocate:
		return opcodeW + countW
	case OpDeallocate, OpProceed, OpNeckCut, OpStop:
		return opcodeW
	case OpCall, OpExecute:
		return opcodeW + funcW + countW
	case OpTryMeElse, OpRetryMeElse, OpTrustMe:
		return opcodeW + labelW
	case OpCut, OpGetLevel:
		return opcodeW + permW
	case OpSwitchOnTerm:
		return opcodeW + labelW*4
	case OpSwitchOnConstant, OpSwitchOnStructure:
		return opcodeW + countW + len(i.Table)*(funcW+labelW)
	default:
		panic(fmt.Sprintf("isa: unknown opcode %v", i.Op))
	}
}

// Predicate is a compiled, assembled listing for one predicate: the
// optimized instruction sequence plus (for debugging, spec.md section
// 4.5 "optimized and unoptimized listings are both retained") the
// pre-optimization sequence.
type Predicate struct {
	Name         string
	Arity        int
	Clauses      [][]Instruction // one instruction slice per source clause, post try/retry/trust wrapping
	Unoptimized  [][]Instruction
}

// Flatten concatenates a predicate's per-clause instruction slices into
// the single stream the encoder lays out contiguously at the
// predicate's call-point (spec.md section 4.3.4 "Predicate assembly").
func (p Predicate) Flatten() []Instruction {
	var out []Instruction
	for _, clause := range p.Clauses {
		out = append(out, clause...)
	}
	return out
}

// ByteLen returns the total encoded length of the predicate's current
// (optimized) instruction stream.
func (p Predicate) ByteLen() int {
	n := 0
	for _, ins := range p.Flatten() {
		n += ins.Size()
	}
	return n
}
