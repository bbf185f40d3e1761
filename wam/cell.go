// Package wam is the Warren Abstract Machine runtime: tagged cells, the
// heap, the interleaved environment/choicepoint stack, the trail,
// unification, and the instruction interpreter (the "resolver").
// See spec.md sections 3, 4.7, 5, and 6.
package wam

import (
	"fmt"

	"github.com/rupertlssmith/lojix-sub007/intern"
)

// Tag is a cell's 3-bit WAM tag (spec.md section 3 "Cells"), widened to
// a byte since Go has no sub-byte field packing worth the complexity
// here.
type Tag uint8

const (
	// TagRef marks an unbound variable (self-referencing cell) or a
	// bound reference to another cell.
	TagRef Tag = iota
	// TagStr's Val is the address of a TagFun header cell.
	TagStr
	// TagCon's Val is an interned atom id (a FunctorID of arity 0).
	TagCon
	// TagLis's Val is the address of a two-cell [head, tail] block.
	TagLis
	// TagInt's Val is an immediate, sign-extended integer.
	TagInt
	// TagFun is a functor header: Val is the interned (name, arity) id;
	// the following Arity cells are the structure's arguments.
	TagFun
)

func (t Tag) String() string {
	switch t {
	case TagRef:
		return "REF"
	case TagStr:
		return "STR"
	case TagCon:
		return "CON"
	case TagLis:
		return "LIS"
	case TagInt:
		return "INT"
	case TagFun:
		return "FUN"
	default:
		return fmt.Sprintf("TAG(%d)", byte(t))
	}
}

// Cell is a single tagged runtime value (spec.md section 3 "Cells").
type Cell struct {
	Tag Tag
	Val int32
}

// Ref builds an unbound variable cell: a REF that self-references addr
// (spec.md section 3 "if V = A the cell is an unbound variable").
func Ref(addr int32) Cell { return Cell{Tag: TagRef, Val: addr} }

// IsUnbound reports whether a REF cell found at address addr is
// unbound (self-referencing).
func IsUnbound(c Cell, addr int32) bool {
	return c.Tag == TagRef && c.Val == addr
}

// Con builds an atom cell for the given interned atom id.
func Con(id intern.FunctorID) Cell { return Cell{Tag: TagCon, Val: int32(id)} }

// Int builds an immediate integer cell. Values are truncated to 32 bits,
// matching the "32 bits recommended" cell width in spec.md section 3.
func Int(v int64) Cell { return Cell{Tag: TagInt, Val: int32(v)} }

// Str builds a structure-pointer cell referencing a FUN-header at addr.
func Str(addr int32) Cell { return Cell{Tag: TagStr, Val: addr} }

// Lis builds a list-cell pointer referencing a [head, tail] block at addr.
func Lis(addr int32) Cell { return Cell{Tag: TagLis, Val: addr} }

// Fun builds a functor header cell for the given interned (name, arity) id.
func Fun(id intern.FunctorID) Cell { return Cell{Tag: TagFun, Val: int32(id)} }
