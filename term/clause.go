package term

// Clause is `Head :- Body1, ..., BodyN.` A fact has an empty Body. A
// Query is represented the same way with Head == nil (spec.md section
// 4.3.3 "Queries compile as a body with a synthetic head-less start").
type Clause struct {
	Head Term   // nil for a query
	Body []Term // body goals in source order
}

// IsFact reports whether the clause has no body goals.
func (c Clause) IsFact() bool { return len(c.Body) == 0 }

// IsQuery reports whether the clause has no head (a bare goal list).
func (c Clause) IsQuery() bool { return c.Head == nil }

// Indicator returns the head's procedure indicator. Panics if called on
// a query, which has no head.
func (c Clause) Indicator() (name string, arity int) {
	name, arity, ok := Indicator(c.Head)
	if !ok {
		panic("term: clause has no head indicator")
	}
	return name, arity
}

// Goals returns the full goal sequence of a clause for annotation
// purposes: the head counts as goal 0 (spec.md section 4.3.2 "head
// counts as goal 0"), followed by each body goal.
func (c Clause) Goals() []Term {
	if c.Head == nil {
		return c.Body
	}
	goals := make([]Term, 0, len(c.Body)+1)
	goals = append(goals, c.Head)
	goals = append(goals, c.Body...)
	return goals
}
