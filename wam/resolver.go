package wam

import (
	"context"
	"fmt"

	"github.com/rupertlssmith/lojix-sub007/intern"
	"github.com/rupertlssmith/lojix-sub007/isa"
	"github.com/rupertlssmith/lojix-sub007/machine"
)

// maxRegs bounds the shared X/A register file; isa.Reg is a byte, so this
// is the largest index any instruction can address.
const maxRegs = 256

// unifyMode is the structure read/write cursor state entered by
// get_struc/get_list/put_struc/put_list and consumed by the following
// run of unify_*/set_* instructions (spec.md section 4.7 "Read/write
// mode").
type unifyMode uint8

const (
	modeNone unifyMode = iota
	modeRead
	modeWrite
)

// Option configures a Resolver at construction, following the teacher's
// functional-options idiom (_examples/trealla-prolog-go/trealla/prolog.go
// WithBinary/WithLibrary/...).
type Option func(*Resolver)

// WithMonitor attaches a lifecycle observer (spec.md section 5/6).
func WithMonitor(m Monitor) Option {
	return func(r *Resolver) { r.monitor = m }
}

// WithTrace enables per-instruction OnStep notifications; without it only
// OnReset/OnExecute fire, matching spec.md section 6's "step tracing is
// opt-in, off by default for throughput".
func WithTrace(on bool) Option {
	return func(r *Resolver) { r.trace = on }
}

// Resolver is the WAM instruction interpreter: the register file plus the
// P/CP/E/B/B0/HB/LB state variables of spec.md section 4.7, driving a
// Store, Frames and Trail against a linked machine.CodeArea.
type Resolver struct {
	store  *Store
	frames *Frames
	trail  *Trail
	code   *machine.CodeArea
	tbl    *intern.Table

	monitor Monitor
	trace   bool

	regs [maxRegs]Cell

	P  isa.Label // program counter
	CP isa.Label // continuation pointer
	E  int32     // current environment
	B  int32     // current choicepoint
	B0 int32     // cut barrier: B on entry to the predicate currently executing

	HB int32 // heap top at the current choicepoint (0 if B == NoFrame)
	LB int32 // local-stack top at the current choicepoint (StackBase if B == NoFrame)

	mode unifyMode
	S    int32 // structure argument read/write cursor

	curArity int // arity of the predicate last entered via call/execute, for try/retry/trust argument saves

	awaitingRedo bool
	halted       bool
}

// NewResolver creates a resolver executing against code, resolving
// functor ids against tbl.
func NewResolver(code *machine.CodeArea, tbl *intern.Table, opts ...Option) *Resolver {
	r := &Resolver{
		store:  NewStore(),
		frames: NewFrames(),
		trail:  NewTrail(),
		code:   code,
		tbl:    tbl,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetQuery installs instrs as the query to resolve (spec.md section 6
// "Resolver API": "set_query(instructions) — installs a fresh query").
// instrs must end with an OpStop (the compiler's synthetic query body,
// spec.md section 4.3.3 item 6); whatever permanent variables it
// allocates remain live across calls to Resolve so their bindings can be
// read back after a success.
//
// Re-querying reuses the "$query"/0 call-point, orphaning the previous
// query's code exactly as a predicate redefinition would (machine.CodeArea
// .Reserve).
func (r *Resolver) SetQuery(instrs []isa.Instruction) error {
	n := 0
	for _, ins := range instrs {
		n += ins.Size()
	}
	addr := r.code.Reserve("$query", 0, n)
	data, err := isa.EncodeAll(instrs)
	if err != nil {
		return fmt.Errorf("wam: set_query: %w", err)
	}
	if err := r.code.WriteAt(addr, data); err != nil {
		return fmt.Errorf("wam: set_query: %w", err)
	}

	r.store.Reset()
	r.frames.Reset()
	r.trail.Reset()
	r.regs = [maxRegs]Cell{}

	r.P = addr
	r.CP = 0
	r.E = NoFrame
	r.B = NoFrame
	r.B0 = NoFrame
	r.HB = 0
	r.LB = StackBase
	r.mode = modeNone
	r.S = 0
	r.curArity = 0
	r.awaitingRedo = false
	r.halted = false

	if r.monitor != nil {
		r.monitor.OnReset(r.state())
	}
	return nil
}

// Resolve steps the machine until the query succeeds (returns nil, with
// bindings readable via Reg/QueryEnv/Load), is exhausted (ErrNoMoreSolutions),
// fails fatally on a type/existence error, or ctx is canceled
// (ErrCanceled). Calling Resolve again after a success forces failure
// into the choicepoint left behind by that success and searches for the
// next one (spec.md section 6 "resolve() -> next solution, or none").
func (r *Resolver) Resolve(ctx context.Context) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			if ie, ok := rec.(InvariantError); ok {
				r.halted = true
				err = ie
				return
			}
			panic(rec)
		}
	}()

	if r.halted {
		return ErrNoMoreSolutions
	}
	if r.awaitingRedo {
		r.awaitingRedo = false
		if !r.backtrack() {
			r.halted = true
			return ErrNoMoreSolutions
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ErrCanceled
		default:
		}

		ins, next, derr := r.code.InstructionAt(r.P)
		if derr != nil {
			panic(InvariantError{"resolver: " + derr.Error()})
		}

		if r.monitor != nil && r.trace {
			r.monitor.OnStep(r.state())
		}

		ok, done, serr := r.step(ins, next)
		if serr != nil {
			r.halted = true
			return serr
		}
		if done {
			r.awaitingRedo = true
			return nil
		}
		if !ok {
			if !r.backtrack() {
				r.halted = true
				return ErrNoMoreSolutions
			}
		}
	}
}

// state snapshots the current registers for a Monitor callback.
func (r *Resolver) state() State {
	return State{P: int32(r.P), CP: int32(r.CP), E: r.E, B: r.B, H: r.store.H(), TR: r.trail.Top(), store: r.store}
}

// Reg reads the current content of a shared X/A register.
func (r *Resolver) Reg(reg isa.Reg) Cell { return r.regs[reg] }

// Load reads a cell directly from the store by address.
func (r *Resolver) Load(addr int32) Cell { return r.store.Get(addr) }

// Walk dereferences c against the current store, for callers reconstructing
// a solution term.
func (r *Resolver) Walk(c Cell) (int32, Cell, bool) { return Deref(r.store, c) }

// QueryEnv reports the base address and permanent-variable count of the
// current environment, for reading a successful query's bindings back out
// of its synthetic top-level environment frame. ok is false at top level
// with no environment (an empty query body).
func (r *Resolver) QueryEnv() (base int32, n int, ok bool) {
	if r.E == NoFrame {
		return 0, 0, false
	}
	env := r.frames.Env(r.E)
	return env.Base, env.N, true
}

func (r *Resolver) refreshBoundary() {
	if r.B == NoFrame {
		r.HB = 0
		r.LB = StackBase
		return
	}
	cp := r.frames.Choice(r.B)
	r.HB = cp.H
	r.LB = cp.LB
}

// backtrack restores machine state from the current choicepoint and
// resumes at its saved alternative address (spec.md section 4.7
// "Backtrack"). Returns false if there is no choicepoint left, meaning
// the search is exhausted.
func (r *Resolver) backtrack() bool {
	if r.B == NoFrame {
		return false
	}
	cp := r.frames.Choice(r.B)

	r.store.TruncateHeap(cp.H)
	r.store.TruncateLocal(cp.LB)
	r.trail.Unwind(r.store, cp.TR)
	copy(r.regs[1:1+len(cp.Args)], cp.Args)

	r.E = cp.E
	r.CP = cp.CP
	r.B0 = cp.CutB
	r.P = cp.NextAddr
	r.HB = cp.H
	r.LB = cp.LB

	r.frames.Truncate(r.B + 1)
	return true
}

// step executes a single instruction. ok is false when the instruction
// itself fails (a get_*/unify_* mismatch, or a switch with no matching
// branch) and the caller should backtrack; done is true once an OpStop is
// reached; err is non-nil for a fatal type/existence error that aborts
// the whole resolution (spec.md section 7 category 3).
func (r *Resolver) step(ins isa.Instruction, next isa.Label) (ok bool, done bool, err error) {
	switch ins.Op {

	case isa.OpPutVar:
		addr := r.pushFreshVar()
		r.writeOperand(ins.Reg1, Ref(addr))
		r.regs[ins.Reg2] = Ref(addr)
		r.P = next

	case isa.OpPutVal:
		r.regs[ins.Reg2] = r.readOperand(ins.Reg1)
		r.P = next

	case isa.OpPutConst:
		r.regs[ins.Reg1] = Con(ins.Functor)
		r.P = next

	case isa.OpPutInt:
		r.regs[ins.Reg1] = Int(ins.IntVal)
		r.P = next

	case isa.OpPutStruc:
		header := r.store.Push(Fun(ins.Functor))
		r.regs[ins.Reg1] = Str(header)
		r.mode = modeWrite
		r.S = r.store.H()
		r.P = next

	case isa.OpPutList:
		base := r.store.H()
		r.regs[ins.Reg1] = Lis(base)
		r.mode = modeWrite
		r.S = base
		r.P = next

	case isa.OpSetVar:
		addr := r.pushFreshVar()
		r.writeOperand(ins.Reg1, Ref(addr))
		r.P = next

	case isa.OpSetVal:
		r.store.Push(r.readOperand(ins.Reg1))
		r.P = next

	case isa.OpSetConst:
		r.store.Push(Con(ins.Functor))
		r.P = next

	case isa.OpSetInt:
		r.store.Push(Int(ins.IntVal))
		r.P = next

	case isa.OpSetVoid:
		for i := 0; i < ins.Count; i++ {
			r.pushFreshVar()
		}
		r.P = next

	case isa.OpGetVar:
		r.writeOperand(ins.Reg1, r.regs[ins.Reg2])
		r.P = next

	case isa.OpGetVal:
		if !Unify(r.store, r.trail, r.tbl, r.readOperand(ins.Reg1), r.regs[ins.Reg2], r.HB, r.LB) {
			return false, false, nil
		}
		r.P = next

	case isa.OpGetConst:
		addr, cell, hasAddr := Deref(r.store, r.regs[ins.Reg1])
		switch {
		case hasAddr && IsUnbound(cell, addr):
			Bind(r.store, r.trail, addr, Con(ins.Functor), r.HB, r.LB)
		case cell.Tag == TagCon && cell.Val == int32(ins.Functor):
			// already equal
		default:
			return false, false, nil
		}
		r.P = next

	case isa.OpGetInt:
		addr, cell, hasAddr := Deref(r.store, r.regs[ins.Reg1])
		switch {
		case hasAddr && IsUnbound(cell, addr):
			Bind(r.store, r.trail, addr, Int(ins.IntVal), r.HB, r.LB)
		case cell.Tag == TagInt && int64(cell.Val) == ins.IntVal:
			// already equal
		default:
			return false, false, nil
		}
		r.P = next

	case isa.OpGetStruc:
		addr, cell, hasAddr := Deref(r.store, r.regs[ins.Reg1])
		switch {
		case hasAddr && IsUnbound(cell, addr):
			header := r.store.Push(Fun(ins.Functor))
			Bind(r.store, r.trail, addr, Str(header), r.HB, r.LB)
			r.mode = modeWrite
			r.S = r.store.H()
		case cell.Tag == TagStr:
			fa := r.store.Get(cell.Val)
			if fa.Val != int32(ins.Functor) {
				return false, false, nil
			}
			r.mode = modeRead
			r.S = cell.Val + 1
		default:
			return false, false, nil
		}
		r.P = next

	case isa.OpGetList:
		addr, cell, hasAddr := Deref(r.store, r.regs[ins.Reg1])
		switch {
		case hasAddr && IsUnbound(cell, addr):
			base := r.store.H()
			Bind(r.store, r.trail, addr, Lis(base), r.HB, r.LB)
			r.mode = modeWrite
			r.S = base
		case cell.Tag == TagLis:
			r.mode = modeRead
			r.S = cell.Val
		default:
			return false, false, nil
		}
		r.P = next

	case isa.OpUnifyVar:
		switch r.mode {
		case modeRead:
			r.writeOperand(ins.Reg1, r.store.Get(r.S))
		default:
			addr := r.pushCell(Cell{})
			r.store.Set(addr, Ref(addr))
			r.writeOperand(ins.Reg1, Ref(addr))
		}
		r.S++
		r.P = next

	case isa.OpUnifyVal:
		switch r.mode {
		case modeRead:
			if !Unify(r.store, r.trail, r.tbl, r.readOperand(ins.Reg1), r.store.Get(r.S), r.HB, r.LB) {
				return false, false, nil
			}
		default:
			r.pushCell(r.readOperand(ins.Reg1))
		}
		r.S++
		r.P = next

	case isa.OpUnifyConst:
		switch r.mode {
		case modeRead:
			if !Unify(r.store, r.trail, r.tbl, Con(ins.Functor), r.store.Get(r.S), r.HB, r.LB) {
				return false, false, nil
			}
		default:
			r.pushCell(Con(ins.Functor))
		}
		r.S++
		r.P = next

	case isa.OpUnifyInt:
		switch r.mode {
		case modeRead:
			if !Unify(r.store, r.trail, r.tbl, Int(ins.IntVal), r.store.Get(r.S), r.HB, r.LB) {
				return false, false, nil
			}
		default:
			r.pushCell(Int(ins.IntVal))
		}
		r.S++
		r.P = next

	case isa.OpUnifyVoid:
		if r.mode == modeWrite {
			for i := 0; i < ins.Count; i++ {
				addr := r.pushCell(Cell{})
				r.store.Set(addr, Ref(addr))
			}
		}
		r.S += int32(ins.Count)
		r.P = next

	case isa.OpAllocate:
		env := EnvFrame{CP: r.CP, CE: r.E, Base: r.store.ReserveLocal(ins.Count), N: ins.Count}
		r.E = r.frames.PushEnv(env)
		r.P = next

	case isa.OpDeallocate:
		env := r.frames.Env(r.E)
		r.CP = env.CP
		r.E = env.CE
		r.P = next

	case isa.OpCall:
		addr, ferr := r.resolveCallTarget(ins.Functor)
		if ferr != nil {
			return false, false, ferr
		}
		r.B0 = r.B
		r.CP = next
		r.P = addr

	case isa.OpExecute:
		addr, ferr := r.resolveCallTarget(ins.Functor)
		if ferr != nil {
			return false, false, ferr
		}
		r.B0 = r.B
		r.P = addr
		if r.monitor != nil {
			r.monitor.OnExecute(r.state())
		}

	case isa.OpProceed:
		r.P = r.CP

	case isa.OpTryMeElse:
		args := append([]Cell(nil), r.regs[1:1+r.curArity]...)
		cp := ChoiceFrame{
			Args: args, E: r.E, CP: r.CP, B: r.B,
			NextAddr: ins.Label, TR: r.trail.Top(), H: r.store.H(), LB: r.store.LocalTop(),
			CutB: r.B0,
		}
		r.B = r.frames.PushChoice(cp)
		r.HB = cp.H
		r.LB = cp.LB
		r.P = next

	case isa.OpRetryMeElse:
		cp := r.frames.Choice(r.B)
		cp.NextAddr = ins.Label
		r.P = next

	case isa.OpTrustMe:
		cp := r.frames.Choice(r.B)
		prevB := cp.B
		r.frames.Truncate(r.B)
		r.B = prevB
		r.refreshBoundary()
		r.P = next

	case isa.OpNeckCut:
		r.B = r.B0
		r.refreshBoundary()
		r.P = next

	case isa.OpGetLevel:
		env := r.frames.Env(r.E)
		r.store.Set(env.Base+int32(ins.Perm), Cell{Tag: TagInt, Val: r.B0})
		r.P = next

	case isa.OpCut:
		env := r.frames.Env(r.E)
		saved := r.store.Get(env.Base + int32(ins.Perm))
		r.B = saved.Val
		r.refreshBoundary()
		r.P = next

	case isa.OpSwitchOnTerm:
		_, cell, _ := Deref(r.store, r.regs[1])
		switch cell.Tag {
		case TagRef:
			r.P = ins.VarLabel
		case TagCon, TagInt:
			r.P = ins.ConLabel
		case TagLis:
			r.P = ins.ListLabel
		case TagStr:
			r.P = ins.StrucLabel
		default:
			return false, false, nil
		}

	case isa.OpSwitchOnConstant:
		_, cell, _ := Deref(r.store, r.regs[1])
		if cell.Tag != TagCon {
			return false, false, nil
		}
		label, found := ins.Table[intern.FunctorID(cell.Val)]
		if !found {
			return false, false, nil
		}
		r.P = label

	case isa.OpSwitchOnStructure:
		_, cell, _ := Deref(r.store, r.regs[1])
		if cell.Tag != TagStr {
			return false, false, nil
		}
		header := r.store.Get(cell.Val)
		label, found := ins.Table[intern.FunctorID(header.Val)]
		if !found {
			return false, false, nil
		}
		r.P = label

	case isa.OpStop:
		return true, true, nil

	default:
		panic(InvariantError{fmt.Sprintf("resolver: unhandled opcode %v", ins.Op)})
	}

	return true, false, nil
}

// resolveCallTarget looks the called predicate's current call-point up by
// name/arity (spec.md section 4.1 "resolve(functor_id) -> call_point") and
// records its arity for the choicepoints its clause selection will push.
func (r *Resolver) resolveCallTarget(functor intern.FunctorID) (isa.Label, error) {
	fn, found := r.tbl.FunctorOf(functor)
	if !found {
		panic(InvariantError{"resolver: call: unknown functor id"})
	}
	addr, ok := r.code.Resolve(fn.Name, fn.Arity)
	if !ok {
		return 0, ExistenceError{Name: fn.Name, Arity: fn.Arity}
	}
	r.curArity = fn.Arity
	return addr, nil
}

// yBase splits the Reg operand space: values below it address the
// physical X/A register file directly, values at or above it address
// permanent variable Y(reg-yBase) in the current environment. This lets
// put_value/get_value/set_value/unify_value (whose Reg1 is logically
// "any variable's current register", spec.md section 4.4) carry a
// permanent variable as readily as a temporary one, without a second copy
// of each opcode for the Y case — the compiler's register allocator
// (compiler.annotate) is responsible for never handing out an X number
// at or above yBase, and for never handing out more than yBase permanent
// slots in one clause.
const yBase isa.Reg = 200

// readOperand reads a Reg1-style "any variable" operand.
func (r *Resolver) readOperand(reg isa.Reg) Cell {
	if reg < yBase {
		return r.regs[reg]
	}
	env := r.frames.Env(r.E)
	return r.store.Get(env.Base + int32(reg-yBase))
}

// writeOperand writes a Reg1-style "any variable" operand.
func (r *Resolver) writeOperand(reg isa.Reg, c Cell) {
	if reg < yBase {
		r.regs[reg] = c
		return
	}
	env := r.frames.Env(r.E)
	r.store.Set(env.Base+int32(reg-yBase), c)
}

// pushFreshVar pushes a new self-referencing (unbound) cell and returns
// its address.
func (r *Resolver) pushFreshVar() int32 {
	addr := r.store.Push(Cell{})
	r.store.Set(addr, Ref(addr))
	return addr
}

// pushCell appends c to the heap, returning its address; used while
// building a structure's arguments in write mode.
func (r *Resolver) pushCell(c Cell) int32 {
	return r.store.Push(c)
}

