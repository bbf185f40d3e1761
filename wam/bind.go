package wam

import "github.com/rupertlssmith/lojix-sub007/intern"

// Deref follows a chain of REF cells starting from c until it reaches a
// non-REF cell or a self-referencing (unbound) REF, per spec.md section
// 4.7 "Dereference". If c is not itself a REF (e.g. an immediate INT or
// CON copied straight into a register by put_const), there is no
// backing address and hasAddr is false.
//
// Termination (spec.md section 8 "Dereference terminates") holds
// because binding always orients a REF chain toward strictly decreasing
// addresses (see bindVariable below) or toward a non-REF, so no cycle of REF
// cells can ever be constructed.
func Deref(store *Store, c Cell) (addr int32, cell Cell, hasAddr bool) {
	if c.Tag != TagRef {
		return 0, c, false
	}
	addr = c.Val
	cell = c
	for {
		if IsUnbound(cell, addr) {
			return addr, cell, true
		}
		next := store.Get(cell.Val)
		if next.Tag != TagRef {
			return cell.Val, next, true
		}
		addr = cell.Val
		cell = next
		if IsUnbound(cell, addr) {
			return addr, cell, true
		}
	}
}

// DerefAddr is Deref starting directly from an address rather than a
// register cell, used when walking structure arguments already known
// to live in the store.
func DerefAddr(store *Store, addr int32) (int32, Cell) {
	a, c, _ := Deref(store, Ref(addr))
	return a, c
}

// Bind writes val into the unbound variable cell at addr, trailing it
// first if it is older than the enclosing choicepoint's boundary
// (spec.md section 4.7 "Bind", section 3 "conditional binding").
// hb/lb are the heap-top-at-B and local-top-at-B boundaries (0 and
// StackBase when there is no enclosing choicepoint, in which case nothing
// is ever trailed since there is nothing to backtrack to).
func Bind(store *Store, trail *Trail, addr int32, val Cell, hb, lb int32) {
	if ShouldTrail(addr, hb, lb) {
		trail.Push(addr)
	}
	store.Set(addr, val)
}

// bindVariable orients two unbound REF addresses per spec.md section
// 4.7 "Bind": "the one with the larger address points to the smaller".
func bindVariable(store *Store, trail *Trail, a, b int32, hb, lb int32) {
	if a == b {
		return
	}
	if a > b {
		Bind(store, trail, a, Ref(b), hb, lb)
	} else {
		Bind(store, trail, b, Ref(a), hb, lb)
	}
}

// Unify attempts to unify cells x and y (which may be register contents
// or store cells), per spec.md section 4.7 "Unify": worklist-driven,
// dereferencing each pair, binding unbound variables, recursing
// structurally into compatible STR/LIS pairs, comparing CON/INT leaves.
// No occurs check is performed, matching the standard Prolog contract
// (spec.md section 9).
func Unify(store *Store, trail *Trail, tbl *intern.Table, x, y Cell, hb, lb int32) bool {
	worklist := []Cell{x, y}
	for len(worklist) > 0 {
		n := len(worklist)
		b := worklist[n-1]
		a := worklist[n-2]
		worklist = worklist[:n-2]

		ax, ca, _ := Deref(store, a)
		ay, cb, _ := Deref(store, b)

		aUnbound := ca.Tag == TagRef && IsUnbound(ca, ax)
		bUnbound := cb.Tag == TagRef && IsUnbound(cb, ay)

		switch {
		case aUnbound && bUnbound:
			bindVariable(store, trail, ax, ay, hb, lb)
		case aUnbound:
			Bind(store, trail, ax, cb, hb, lb)
		case bUnbound:
			Bind(store, trail, ay, ca, hb, lb)
		case ca.Tag != cb.Tag:
			return false
		default:
			switch ca.Tag {
			case TagCon:
				if ca.Val != cb.Val {
					return false
				}
			case TagInt:
				if ca.Val != cb.Val {
					return false
				}
			case TagStr:
				fa := store.Get(ca.Val)
				fb := store.Get(cb.Val)
				if fa.Val != fb.Val {
					return false
				}
				arity := functorArity(tbl, fa.Val)
				for i := arity - 1; i >= 0; i-- {
					worklist = append(worklist, store.Get(ca.Val+1+int32(i)), store.Get(cb.Val+1+int32(i)))
				}
			case TagLis:
				worklist = append(worklist,
					store.Get(ca.Val), store.Get(cb.Val),
					store.Get(ca.Val+1), store.Get(cb.Val+1),
				)
			default:
				return false
			}
		}
	}
	return true
}

func functorArity(tbl *intern.Table, id int32) int {
	fn, ok := tbl.FunctorOf(intern.FunctorID(id))
	if !ok {
		panic(InvariantError{"wam: unify: unknown functor id in STR header"})
	}
	return fn.Arity
}
