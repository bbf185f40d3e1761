package wam

import "github.com/rupertlssmith/lojix-sub007/isa"

// NoFrame is the null frame pointer, used for both E (no environment,
// top level) and B (no choicepoint, the search is exhausted).
const NoFrame int32 = -1

// EnvFrame is pushed by `allocate` and popped by `deallocate`
// (spec.md section 3 "Environment frame").
type EnvFrame struct {
	CP   isa.Label // continuation pointer: return code address
	CE   int32     // continuation environment pointer
	Base int32     // address of Y1 in the Store's permanent-variable region
	N    int       // number of permanent variables
}

// ChoiceFrame is pushed by try_me_else/try, updated by
// retry_me_else/retry, and popped by trust_me/trust
// (spec.md section 3 "Choicepoint frame").
type ChoiceFrame struct {
	Args     []Cell    // saved argument registers, length = arity of the guarded predicate
	E        int32     // saved environment pointer
	CP       isa.Label // saved continuation pointer
	B        int32     // saved (previous) choicepoint pointer
	NextAddr isa.Label // the alternative clause's entry address
	TR       int       // saved trail top
	H        int32     // saved heap top
	LB       int32     // saved local (permanent-variable) stack top
	CutB     int32     // saved cut pointer (B0 on entry to the guarded predicate)
}

// frameKind tags which payload a Frame holds.
type frameKind uint8

const (
	kindEnv frameKind = iota
	kindChoice
)

// Frame is one slot of the interleaved environment/choicepoint stack
// (spec.md section 3 "Stack: Interleaved environment frames and
// choicepoint frames"). E and B are indices into a single Frames slice,
// matching the WAM's real interleaving: choicepoints created during a
// call sit between the environments of caller and callee exactly as
// they were pushed.
type Frame struct {
	Kind   frameKind
	Env    EnvFrame
	Choice ChoiceFrame
}

// Frames is the interleaved environment/choicepoint stack.
type Frames struct {
	slots []Frame
}

// NewFrames creates an empty control stack.
func NewFrames() *Frames { return &Frames{} }

// Reset empties the stack, as done at resolver entry.
func (f *Frames) Reset() { f.slots = f.slots[:0] }

// PushEnv pushes a new environment frame and returns its index (the new E).
func (f *Frames) PushEnv(env EnvFrame) int32 {
	idx := int32(len(f.slots))
	f.slots = append(f.slots, Frame{Kind: kindEnv, Env: env})
	return idx
}

// PushChoice pushes a new choicepoint frame and returns its index (the new B).
func (f *Frames) PushChoice(cp ChoiceFrame) int32 {
	idx := int32(len(f.slots))
	f.slots = append(f.slots, Frame{Kind: kindChoice, Choice: cp})
	return idx
}

// Env returns the environment frame at idx. Panics if idx does not hold
// an environment frame; this is an internal invariant (spec.md section
// 7 "internal invariant breach... is fatal").
func (f *Frames) Env(idx int32) *EnvFrame {
	if idx == NoFrame {
		panic(InvariantError{"wam: dereferencing NoFrame as environment"})
	}
	fr := &f.slots[idx]
	if fr.Kind != kindEnv {
		panic(InvariantError{"wam: frame is not an environment frame"})
	}
	return &fr.Env
}

// Choice returns the choicepoint frame at idx.
func (f *Frames) Choice(idx int32) *ChoiceFrame {
	if idx == NoFrame {
		panic(InvariantError{"wam: dereferencing NoFrame as choicepoint"})
	}
	fr := &f.slots[idx]
	if fr.Kind != kindChoice {
		panic(InvariantError{"wam: choicepoint stack underflow or corruption"})
	}
	return &fr.Choice
}

// Top returns the index just past the last pushed frame (for truncation bookkeeping).
func (f *Frames) Top() int32 { return int32(len(f.slots)) }

// Truncate drops every frame at or above idx, used when trust_me/trust
// pops a choicepoint.
func (f *Frames) Truncate(idx int32) {
	f.slots = f.slots[:idx]
}
