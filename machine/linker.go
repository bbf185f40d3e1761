package machine

import (
	"fmt"

	"github.com/rupertlssmith/lojix-sub007/intern"
	"github.com/rupertlssmith/lojix-sub007/isa"
)

// Linker assembles a batch of compiled predicates into a CodeArea in two
// passes, per spec.md section 4.6: "reserve all call points across a
// batch, then resolve and encode" — so predicates that call each other in
// either direction within one consult link correctly regardless of
// definition order.
//
// Call targets are not baked into the encoded call/execute bytes as
// absolute addresses; instead the functor id is kept and the resolver
// looks it up against the CodeArea's call-point table at the moment it
// executes (see CodeArea.Resolve). This keeps predicate redefinition
// (re-consulting a file, asserting a new clause) transparent to every
// existing call site without re-linking them, at the cost of one map
// lookup per call/execute — judged an acceptable trade in an
// interpreter that is not claiming competitive throughput.
//
// Link still performs eager validation of every call/execute target so
// that an undefined predicate is a link-time failure (spec.md section
// 4.6 "undefined predicate reference is a link-time failure, reported at
// emit rather than deferred to a run-time lookup miss") rather than
// surfacing only when that call path is actually taken at run time.
type Linker struct {
	code *CodeArea
	tbl  *intern.Table
}

// NewLinker creates a linker writing into code, resolving functor ids
// against tbl.
func NewLinker(code *CodeArea, tbl *intern.Table) *Linker {
	return &Linker{code: code, tbl: tbl}
}

// LinkError reports an undefined predicate referenced by a call/execute
// instruction, discovered during Link's validation pass.
type LinkError struct {
	Name  string
	Arity int
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("machine: link: undefined predicate %s/%d", e.Name, e.Arity)
}

// Link reserves call-points for every predicate in preds, encodes each
// one's flattened instruction stream into its reserved span, and then
// validates that every call/execute operand in the whole batch resolves
// against the (now fully reserved) call-point table. Predicates already
// defined in an earlier Link call remain visible, so later batches can
// reference earlier ones and vice versa within this batch.
func (l *Linker) Link(preds []isa.Predicate) error {
	type pending struct {
		pred []isa.Instruction
		addr isa.Label
	}
	reserved := make([]pending, 0, len(preds))

	for _, p := range preds {
		flat := p.Flatten()
		n := 0
		for _, ins := range flat {
			n += ins.Size()
		}
		addr := l.code.Reserve(p.Name, p.Arity, n)
		relocateChoicePoints(flat, addr)
		reserved = append(reserved, pending{pred: flat, addr: addr})
	}

	for _, r := range reserved {
		data, err := isa.EncodeAll(r.pred)
		if err != nil {
			return fmt.Errorf("machine: link: encode: %w", err)
		}
		if err := l.code.WriteAt(r.addr, data); err != nil {
			return fmt.Errorf("machine: link: write: %w", err)
		}
	}

	for _, r := range reserved {
		for _, ins := range r.pred {
			if ins.Op != isa.OpCall && ins.Op != isa.OpExecute {
				continue
			}
			fn, ok := l.tbl.FunctorOf(ins.Functor)
			if !ok {
				return &LinkError{Name: fmt.Sprintf("<?%d>", ins.Functor), Arity: -1}
			}
			if !l.code.Defined(fn.Name, fn.Arity) {
				return &LinkError{Name: fn.Name, Arity: fn.Arity}
			}
		}
	}

	return nil
}

// relocateChoicePoints rebases a compiled predicate's try_me_else/
// retry_me_else alternative addresses, which compiler.CompilePredicate
// emits relative to the predicate's own first instruction (it has no way
// to know the predicate's eventual code-area base address), into the
// absolute isa.Label the resolver's backtrack path expects to jump to
// directly. trust_me carries no alternative and needs no relocation.
func relocateChoicePoints(flat []isa.Instruction, base isa.Label) {
	for i := range flat {
		if flat[i].Op == isa.OpTryMeElse || flat[i].Op == isa.OpRetryMeElse {
			flat[i].Label += base
		}
	}
}
