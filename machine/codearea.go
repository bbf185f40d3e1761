// Package machine is the code area: the contiguous byte buffer predicates
// are assembled into, and the call-point table mapping a predicate's
// name/arity to its entry address (spec.md section 4.6 "Code area").
package machine

import (
	"bytes"
	"fmt"

	"github.com/rupertlssmith/lojix-sub007/isa"
)

// key identifies a predicate by name and arity, the call-point table's
// lookup key (spec.md section 4.1 "resolve(functor_id) -> call_point").
type key struct {
	Name  string
	Arity int
}

// callPoint records where a predicate's current definition lives.
type callPoint struct {
	Addr isa.Label
	Len  int
}

// CodeArea is the assembled byte buffer plus its call-point table.
// Redefining a predicate (consulting a file twice, asserting over a
// previous definition) reserves a fresh region and repoints the call-point
// at it; the old bytes are left in place, unreachable — an orphan, per
// spec.md section 4.6 "Call-point replacement leaves orphaned code; no
// compaction is attempted."
//
// Grounded on the teacher's db.go predicate-indicator keying
// (_examples/trealla-prolog-go/trealla/db.go), generalized from a
// clause-text map to a byte-addressed call-point table.
type CodeArea struct {
	buf    []byte
	points map[key]callPoint
}

// NewCodeArea creates an empty code area.
func NewCodeArea() *CodeArea {
	return &CodeArea{points: make(map[key]callPoint)}
}

// Reserve appends n zero bytes to the buffer and records a call-point for
// name/arity at the resulting address, orphaning any previous definition
// (spec.md section 4.6 steps 1-3: "reserve all call points across a
// linking batch before resolving any call/execute operand").
func (c *CodeArea) Reserve(name string, arity, n int) isa.Label {
	addr := isa.Label(len(c.buf))
	c.buf = append(c.buf, make([]byte, n)...)
	c.points[key{name, arity}] = callPoint{Addr: addr, Len: n}
	return addr
}

// WriteAt copies data into the buffer starting at addr. addr must have
// been obtained from Reserve and data must fit within the reserved span.
func (c *CodeArea) WriteAt(addr isa.Label, data []byte) error {
	end := int(addr) + len(data)
	if int(addr) < 0 || end > len(c.buf) {
		return fmt.Errorf("machine: write at %d (%d bytes) out of bounds (len=%d)", addr, len(data), len(c.buf))
	}
	copy(c.buf[addr:end], data)
	return nil
}

// Resolve looks up the current call-point for name/arity (spec.md section
// 4.1 "resolve(functor_id) -> call_point", section 4.6 "call/execute carry
// the target's functor id; the resolver looks it up against the current
// call-point table at the moment it executes, so redefinition is visible
// to call sites transparently without re-linking them").
func (c *CodeArea) Resolve(name string, arity int) (isa.Label, bool) {
	cp, ok := c.points[key{name, arity}]
	return cp.Addr, ok
}

// Defined reports whether name/arity currently has a call-point.
func (c *CodeArea) Defined(name string, arity int) bool {
	_, ok := c.points[key{name, arity}]
	return ok
}

// InstructionAt decodes a single instruction starting at addr, returning
// the address immediately following it.
func (c *CodeArea) InstructionAt(addr isa.Label) (isa.Instruction, isa.Label, error) {
	if int(addr) < 0 || int(addr) >= len(c.buf) {
		return isa.Instruction{}, 0, fmt.Errorf("machine: instruction address %d out of bounds (len=%d)", addr, len(c.buf))
	}
	r := bytes.NewReader(c.buf[addr:])
	ins, err := isa.Decode(r)
	if err != nil {
		return isa.Instruction{}, 0, fmt.Errorf("machine: decode at %d: %w", addr, err)
	}
	next := int(addr) + (len(c.buf[addr:]) - r.Len())
	return ins, isa.Label(next), nil
}

// Len returns the current size of the code buffer.
func (c *CodeArea) Len() int { return len(c.buf) }

// Clone returns an independent copy of the code area, used when a
// session forks (lojix.Session.Clone): the clone may consult new clauses
// or redefine predicates without affecting the parent's call-points,
// mirroring intern.Table.Clone and symtab.Table.Clone's copy-on-fork
// contract applied to the byte buffer and call-point table instead of a
// name or field map.
func (c *CodeArea) Clone() *CodeArea {
	clone := &CodeArea{
		buf:    append([]byte(nil), c.buf...),
		points: make(map[key]callPoint, len(c.points)),
	}
	for k, v := range c.points {
		clone.points[k] = v
	}
	return clone
}
