package isa

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/rupertlssmith/lojix-sub007/intern"
)

// Decode reads a single instruction from buf, advancing it past the
// bytes consumed. Decode(Encode(i)) == i is a testable property
// (spec.md section 8 "Round-trip encoding").
func Decode(buf *bytes.Reader) (Instruction, error) {
	opb, err := buf.ReadByte()
	if err != nil {
		return Instruction{}, err
	}
	op := Op(opb)
	if op >= numOps {
		return Instruction{}, fmt.Errorf("isa: decode: unknown opcode byte %d", opb)
	}

	var ins Instruction
	ins.Op = op

	switch op {
	case OpPutVar, OpPutVal, OpGetVar, OpGetVal:
		ins.Reg1, err = readReg(buf)
		if err != nil {
			return ins, err
		}
		ins.Reg2, err = readReg(buf)

	case OpPutConst, OpGetConst, OpPutStruc, OpGetStruc:
		ins.Functor, err = readFunctor(buf)
		if err != nil {
			return ins, err
		}
		ins.Reg1, err = readReg(buf)

	case OpPutList, OpGetList, OpSetVar, OpSetVal, OpUnifyVar, OpUnifyVal:
		ins.Reg1, err = readReg(buf)

	case OpPutInt, OpGetInt:
		ins.IntVal, err = readInt64(buf)
		if err != nil {
			return ins, err
		}
		ins.Reg1, err = readReg(buf)

	case OpSetInt, OpUnifyInt:
		ins.IntVal, err = readInt64(buf)

	case OpSetConst, OpUnifyConst:
		ins.Functor, err = readFunctor(buf)

	case OpSetVoid, OpUnifyVoid, OpAllocate:
		ins.Count, err = readCount(buf)

	case OpDeallocate, OpProceed, OpNeckCut, OpStop:
		// no operands

	case OpCall, OpExecute:
		ins.Functor, err = readFunctor(buf)
		if err != nil {
			return ins, err
		}
		ins.Count, err = readCount(buf)

	case OpTryMeElse, OpRetryMeElse, OpTrustMe:
		ins.Label, err = readLabel(buf)

	case OpCut, OpGetLevel:
		var b byte
		b, err = buf.ReadByte()
		ins.Perm = PermSlot(b)

	case OpSwitchOnTerm:
		if ins.VarLabel, err = readLabel(buf); err != nil {
			return ins, err
		}
		if ins.ConLabel, err = readLabel(buf); err != nil {
			return ins, err
		}
		if ins.ListLabel, err = readLabel(buf); err != nil {
			return ins, err
		}
		ins.StrucLabel, err = readLabel(buf)

	case OpSwitchOnConstant, OpSwitchOnStructure:
		var n int
		n, err = readCount(buf)
		if err != nil {
			return ins, err
		}
		if n > 0 {
			ins.Table = make(map[intern.FunctorID]Label, n)
		}
		for k := 0; k < n; k++ {
			f, ferr := readFunctor(buf)
			if ferr != nil {
				return ins, ferr
			}
			l, lerr := readLabel(buf)
			if lerr != nil {
				return ins, lerr
			}
			ins.Table[f] = l
		}

	default:
		return ins, fmt.Errorf("isa: decode: unhandled opcode %v", op)
	}

	return ins, err
}

// DecodeAll decodes a byte slice produced by EncodeAll back into an
// instruction sequence.
func DecodeAll(data []byte) ([]Instruction, error) {
	r := bytes.NewReader(data)
	var out []Instruction
	for r.Len() > 0 {
		ins, err := Decode(r)
		if err != nil {
			return nil, err
		}
		out = append(out, ins)
	}
	return out, nil
}

func readInt64(buf *bytes.Reader) (int64, error) {
	var b [8]byte
	if _, err := buf.Read(b[:]); err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

func readReg(buf *bytes.Reader) (Reg, error) {
	b, err := buf.ReadByte()
	return Reg(b), err
}

func readFunctor(buf *bytes.Reader) (intern.FunctorID, error) {
	var b [4]byte
	if _, err := buf.Read(b[:]); err != nil {
		return 0, err
	}
	return intern.FunctorID(binary.LittleEndian.Uint32(b[:])), nil
}

func readLabel(buf *bytes.Reader) (Label, error) {
	var b [4]byte
	if _, err := buf.Read(b[:]); err != nil {
		return 0, err
	}
	return Label(binary.LittleEndian.Uint32(b[:])), nil
}

func readCount(buf *bytes.Reader) (int, error) {
	var b [2]byte
	if _, err := buf.Read(b[:]); err != nil {
		return 0, err
	}
	return int(binary.LittleEndian.Uint16(b[:])), nil
}
