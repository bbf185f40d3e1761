package wam

// StackBase separates the two regions of the unified cell address space:
// addresses below StackBase are heap cells (spec.md section 3 "Heap"),
// addresses at or above it are permanent-variable (Y register) cells
// living in the current environment's slice of the local stack
// (spec.md section 3 "Registers" / "Environment frame"). A single
// address space lets a REF cell's Val point indifferently at a heap
// cell or a stack cell, which is required for unify/dereference to be
// address-tag-agnostic (spec.md section 4.7 "Bind"/"Dereference").
//
// This is an implementation choice spec.md leaves open ("a separate
// fixed-size array, or map indices into the stack" — section 3); 1<<30
// leaves a full 1Gi-cell heap region before stack addresses begin, far
// beyond what any resolution in this implementation can grow to.
const StackBase int32 = 1 << 30

// IsStackAddr reports whether addr names a permanent-variable cell
// rather than a heap cell.
func IsStackAddr(addr int32) bool { return addr >= StackBase }

// Store is the unified, monotonically growing cell memory backing both
// the heap and the permanent-variable region of the local stack
// (spec.md section 3 "Heap", "Lifecycles: Heap, stacks, trail: reset at
// resolver entry; grown during resolution; unwound on backtrack").
type Store struct {
	heap  []Cell
	local []Cell
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Reset empties both regions, as done at resolver entry (spec.md
// section 3 "Lifecycles").
func (s *Store) Reset() {
	s.heap = s.heap[:0]
	s.local = s.local[:0]
}

// H returns the current heap top (spec.md section 4.7 state variable H).
func (s *Store) H() int32 { return int32(len(s.heap)) }

// LocalTop returns the current top of the permanent-variable region, as
// an address in the unified space.
func (s *Store) LocalTop() int32 { return StackBase + int32(len(s.local)) }

// Push appends a cell to the heap and returns its address, advancing H.
func (s *Store) Push(c Cell) int32 {
	addr := s.H()
	s.heap = append(s.heap, c)
	return addr
}

// ReserveLocal appends n zero cells to the permanent-variable region and
// returns the address of the first one (used by `allocate N`).
func (s *Store) ReserveLocal(n int) int32 {
	base := s.LocalTop()
	for i := 0; i < n; i++ {
		s.local = append(s.local, Cell{})
	}
	return base
}

// Get reads the cell at addr, whichever region it falls in.
func (s *Store) Get(addr int32) Cell {
	if IsStackAddr(addr) {
		return s.local[addr-StackBase]
	}
	return s.heap[addr]
}

// Set writes the cell at addr, whichever region it falls in.
func (s *Store) Set(addr int32, c Cell) {
	if IsStackAddr(addr) {
		s.local[addr-StackBase] = c
		return
	}
	s.heap[addr] = c
}

// TruncateHeap resets the heap top to addr, discarding everything above
// it. Used on backtrack to restore a choicepoint's saved H (spec.md
// section 8 "Heap monotonicity within a branch").
func (s *Store) TruncateHeap(addr int32) {
	s.heap = s.heap[:addr]
}

// TruncateLocal resets the permanent-variable region's top to addr.
func (s *Store) TruncateLocal(addr int32) {
	s.local = s.local[:addr-StackBase]
}
