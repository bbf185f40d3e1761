package lojix

import (
	"fmt"

	"github.com/rupertlssmith/lojix-sub007/intern"
	"github.com/rupertlssmith/lojix-sub007/term"
	"github.com/rupertlssmith/lojix-sub007/wam"
)

// walker is the subset of *wam.Resolver term_convert needs to
// reconstruct a solution term from the heap (spec.md section 4.7
// "reconstructing a value from the heap, following STR/LIS transitively").
// Kept as an interface rather than taking *wam.Resolver directly so
// term_convert_test.go can exercise reify against a fake store.
type walker interface {
	Walk(c wam.Cell) (addr int32, cell wam.Cell, hasAddr bool)
	Load(addr int32) wam.Cell
}

// reify dereferences c and rebuilds it as a term.Term, the reverse of
// what compileHeadArg/compileBodyGoal flatten onto the heap. Cyclic term
// graphs (spec.md section 9 "Cyclic term graphs (rational trees)") are
// broken by a visited-address set: a STR/LIS cell revisited while still
// being expanded reifies as the anonymous variable it would dereference
// to, rather than recursing forever.
func reify(r walker, tbl *intern.Table, c wam.Cell) (term.Term, error) {
	return reifyVisiting(r, tbl, c, make(map[int32]bool))
}

func reifyVisiting(r walker, tbl *intern.Table, c wam.Cell, visiting map[int32]bool) (term.Term, error) {
	addr, cell, hasAddr := r.Walk(c)

	if hasAddr && wam.IsUnbound(cell, addr) {
		return term.Var{Name: fmt.Sprintf("_G%d", addr)}, nil
	}

	switch cell.Tag {
	case wam.TagCon:
		fn, ok := tbl.FunctorOf(intern.FunctorID(cell.Val))
		if !ok {
			return nil, fmt.Errorf("lojix: reify: unknown atom id %d", cell.Val)
		}
		return term.Atom(fn.Name), nil

	case wam.TagInt:
		return term.Int(cell.Val), nil

	case wam.TagStr:
		if visiting[cell.Val] {
			return term.Var{Name: fmt.Sprintf("_G%d", cell.Val)}, nil
		}
		visiting[cell.Val] = true
		defer delete(visiting, cell.Val)

		header := r.Load(cell.Val)
		fn, ok := tbl.FunctorOf(intern.FunctorID(header.Val))
		if !ok {
			return nil, fmt.Errorf("lojix: reify: unknown functor id %d", header.Val)
		}
		args := make([]term.Term, fn.Arity)
		for i := 0; i < fn.Arity; i++ {
			argCell := r.Load(cell.Val + 1 + int32(i))
			arg, err := reifyVisiting(r, tbl, argCell, visiting)
			if err != nil {
				return nil, err
			}
			args[i] = arg
		}
		return &term.Compound{Functor: fn.Name, Args: args}, nil

	case wam.TagLis:
		if visiting[cell.Val] {
			return term.Var{Name: fmt.Sprintf("_G%d", cell.Val)}, nil
		}
		visiting[cell.Val] = true
		defer delete(visiting, cell.Val)

		head, err := reifyVisiting(r, tbl, r.Load(cell.Val), visiting)
		if err != nil {
			return nil, err
		}
		tail, err := reifyVisiting(r, tbl, r.Load(cell.Val+1), visiting)
		if err != nil {
			return nil, err
		}
		return &term.Compound{Functor: ".", Args: []term.Term{head, tail}}, nil

	default:
		return nil, fmt.Errorf("lojix: reify: unexpected cell tag %v", cell.Tag)
	}
}
