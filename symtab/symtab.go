// Package symtab provides the nested, scoped key/field store the
// compiler uses to attach per-term analysis (occurrence counts, register
// assignment, permanent-variable flags...) without mutating the term
// tree it walks. See spec.md section 4.2.
package symtab

import "golang.org/x/exp/maps"

// Key is an opaque handle produced by EnterScope/SymbolKeyFor. It
// subsumes the whole scope chain (predicate name, clause index, goal
// index, variable id...) so the compiler can attach fields cheaply with
// a single map lookup instead of re-walking the chain.
type Key struct {
	path string
}

func rootKey() Key { return Key{} }

func (k Key) child(segment string) Key {
	if k.path == "" {
		return Key{path: segment}
	}
	return Key{path: k.path + "\x00" + segment}
}

// Table is a scoped symbol table: a tree of maps with a parent link,
// realized here as a single flat map keyed by the path-hashed Key
// (spec.md section 9 "Scoped symbol table" accepts either realization).
type Table struct {
	parent *Table
	prefix Key
	fields map[Key]map[string]any
}

// New creates an empty root symbol table.
func New() *Table {
	return &Table{fields: make(map[Key]map[string]any)}
}

// EnterScope returns a child table whose keys are namespaced under
// segment, so keys produced within it never collide with the parent's
// (spec.md section 9's only contract for this type). The child shares the
// parent's field store rather than copying it: a field put through the
// child lands in the same map, under a child-namespaced key, so the
// parent's own keys are left untouched. Use Clone for an independent copy.
func (t *Table) EnterScope(segment string) *Table {
	return &Table{
		parent: t,
		prefix: t.prefix.child(segment),
		fields: t.fields,
	}
}

// SymbolKeyFor returns the opaque key for a path relative to this
// table's scope: e.g. a clause scope's SymbolKeyFor("0") is the head,
// SymbolKeyFor("1") is the first body goal, SymbolKeyFor("var:X") is
// every occurrence of variable X in the clause.
func (t *Table) SymbolKeyFor(segment string) Key {
	return t.prefix.child(segment)
}

// Put attaches a field value to key.
func (t *Table) Put(key Key, field string, value any) {
	m, ok := t.fields[key]
	if !ok {
		m = make(map[string]any)
		t.fields[key] = m
	}
	m[field] = value
}

// Get retrieves a field value previously Put for key.
func (t *Table) Get(key Key, field string) (any, bool) {
	m, ok := t.fields[key]
	if !ok {
		return nil, false
	}
	v, ok := m[field]
	return v, ok
}

// GetInt is a convenience accessor for integer-valued fields, returning
// 0 if absent or of the wrong type.
func (t *Table) GetInt(key Key, field string) int {
	v, ok := t.Get(key, field)
	if !ok {
		return 0
	}
	n, _ := v.(int)
	return n
}

// GetBool is a convenience accessor for boolean-valued fields.
func (t *Table) GetBool(key Key, field string) bool {
	v, ok := t.Get(key, field)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Clone returns an independent copy of the whole field store, used when
// forking a compilation session so concurrent compiles never share
// mutable analysis state.
func (t *Table) Clone() *Table {
	c := &Table{parent: t.parent, prefix: t.prefix, fields: make(map[Key]map[string]any, len(t.fields))}
	for k, m := range t.fields {
		c.fields[k] = maps.Clone(m)
	}
	return c
}

// Well-known field names used by the compiler's annotation pass
// (spec.md section 4.3.2 and the Open Question in section 9).
const (
	FieldOccurrenceCount  = "occurrence_count"
	FieldNonArgOnly       = "non_arg_only"
	FieldPermanent        = "permanent"
	FieldFirstGoal        = "first_goal"
	FieldLastGoal         = "last_goal"
	FieldRegister         = "register"
	FieldPermanentSlot    = "permanent_slot"
	FieldCallPoint        = "call_point"
	FieldClauseCount      = "clause_count"
)
