package wam

// Trail is the stack of addresses bound during the current search
// branch, so a later backtrack can undo exactly the bindings younger
// than a saved choicepoint (spec.md section 3 "Trail").
type Trail struct {
	entries []int32
}

// NewTrail creates an empty trail.
func NewTrail() *Trail { return &Trail{} }

// Reset empties the trail.
func (t *Trail) Reset() { t.entries = t.entries[:0] }

// Top returns the current trail length (the TR state variable).
func (t *Trail) Top() int { return len(t.entries) }

// Push records addr as bound during this branch.
func (t *Trail) Push(addr int32) { t.entries = append(t.entries, addr) }

// Unwind resets every trailed cell above saved back to an unbound
// self-reference, then truncates the trail to saved (spec.md section
// 4.7 "Backtrack": "restore H, TR (unwinding trail entries above saved
// TR)").
func (t *Trail) Unwind(store *Store, saved int) {
	for i := len(t.entries) - 1; i >= saved; i-- {
		addr := t.entries[i]
		store.Set(addr, Ref(addr))
	}
	t.entries = t.entries[:saved]
}

// ShouldTrail reports whether binding the cell at addr needs recording,
// per spec.md section 3's conditional-binding rule: an address is
// trailed only if it is "older" than the current choicepoint's saved
// boundary for its region (saved heap top for heap cells, saved local
// top for stack cells); younger bindings are undone for free when H or
// the local-stack top retreats on backtrack.
func ShouldTrail(addr int32, savedH, savedLocalTop int32) bool {
	if IsStackAddr(addr) {
		return addr < savedLocalTop
	}
	return addr < savedH
}
