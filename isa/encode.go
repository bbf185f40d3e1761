package isa

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/rupertlssmith/lojix-sub007/intern"
)

// Encode serializes ins into buf per the fixed-width field contract of
// spec.md section 6: a one-byte opcode header, then operands in the
// order declared below, each at its declared width (register index 1
// byte, functor id 4 bytes, code address 4 bytes, permanent-variable
// index 1 byte, short count 2 bytes).
func Encode(buf *bytes.Buffer, ins Instruction) error {
	buf.WriteByte(byte(ins.Op))

	switch ins.Op {
	case OpPutVar, OpPutVal, OpGetVar, OpGetVal:
		buf.WriteByte(byte(ins.Reg1))
		buf.WriteByte(byte(ins.Reg2))

	case OpPutConst, OpGetConst:
		writeFunctor(buf, ins.Functor)
		buf.WriteByte(byte(ins.Reg1))

	case OpPutInt, OpGetInt:
		writeInt64(buf, ins.IntVal)
		buf.WriteByte(byte(ins.Reg1))

	case OpSetInt, OpUnifyInt:
		writeInt64(buf, ins.IntVal)

	case OpPutStruc, OpGetStruc:
		writeFunctor(buf, ins.Functor)
		buf.WriteByte(byte(ins.Reg1))

	case OpPutList, OpGetList:
		buf.WriteByte(byte(ins.Reg1))

	case OpSetVar, OpSetVal, OpUnifyVar, OpUnifyVal:
		buf.WriteByte(byte(ins.Reg1))

	case OpSetConst, OpUnifyConst:
		writeFunctor(buf, ins.Functor)

	case OpSetVoid, OpUnifyVoid:
		writeCount(buf, ins.Count)

	case OpAllocate:
		writeCount(buf, ins.Count)

	case OpDeallocate, OpProceed, OpNeckCut, OpStop:
		// no operands

	case OpCall, OpExecute:
		writeFunctor(buf, ins.Functor)
		writeCount(buf, ins.Count)

	case OpTryMeElse, OpRetryMeElse, OpTrustMe:
		writeLabel(buf, ins.Label)

	case OpCut, OpGetLevel:
		buf.WriteByte(byte(ins.Perm))

	case OpSwitchOnTerm:
		writeLabel(buf, ins.VarLabel)
		writeLabel(buf, ins.ConLabel)
		writeLabel(buf, ins.ListLabel)
		writeLabel(buf, ins.StrucLabel)

	case OpSwitchOnConstant, OpSwitchOnStructure:
		writeCount(buf, len(ins.Table))
		keys := make([]intern.FunctorID, 0, len(ins.Table))
		for k := range ins.Table {
			keys = append(keys, k)
		}
		slices.SortFunc(keys, func(i, j intern.FunctorID) bool { return i < j })
		for _, k := range keys {
			writeFunctor(buf, k)
			writeLabel(buf, ins.Table[k])
		}

	default:
		return fmt.Errorf("isa: encode: unknown opcode %v", ins.Op)
	}
	return nil
}

func writeInt64(buf *bytes.Buffer, v int64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	buf.Write(b[:])
}

func writeFunctor(buf *bytes.Buffer, id intern.FunctorID) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(id))
	buf.Write(b[:])
}

func writeLabel(buf *bytes.Buffer, l Label) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(l))
	buf.Write(b[:])
}

func writeCount(buf *bytes.Buffer, n int) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], uint16(n))
	buf.Write(b[:])
}

// EncodeAll encodes a sequence of instructions into a single byte slice,
// in order, as the encoder does when writing a predicate into the code
// area at its reserved call-point (spec.md section 4.6 step 4).
func EncodeAll(instrs []Instruction) ([]byte, error) {
	var buf bytes.Buffer
	for _, ins := range instrs {
		if err := Encode(&buf, ins); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
