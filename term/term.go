// Package term is the parsed-clause term model that sits between the
// (out of scope) lexer/grammar front-end and the compiler: variables,
// functors (name + argument vector), and integer/float/string literals,
// traversable in pre- and post-order with a positional context.
// See spec.md section 3 "Clause terms" and section 4.3.1.
//
// Shaped after trealla/term.go's Term/Atom/Compound/Variable union, but
// here a Term is what the compiler consumes from a parse tree rather
// than what crosses a WASM boundary: Variable carries the source name
// only (no attribute list) and there is no JSON marshalling.
package term

import (
	"fmt"
	"strings"
)

// Term is any parsed clause node: Var, Atom, *Compound, Int, Float, or Str.
type Term interface {
	isTerm()
}

// Var is an occurrence of a source-level variable. Name "_" marks an
// anonymous variable; the annotator never treats two "_" occurrences as
// the same variable even though they compare equal as values, since
// annotation keys on the clause position, not on the Go value.
type Var struct {
	Name string
}

func (Var) isTerm() {}

func (v Var) String() string { return v.Name }

// Atom is a zero-arity functor.
type Atom string

func (Atom) isTerm() {}

func (a Atom) String() string { return string(a) }

// Compound is a functor applied to one or more arguments.
type Compound struct {
	Functor string
	Args    []Term
}

func (*Compound) isTerm() {}

// Of builds a compound with the given functor and arguments.
func Of(functor string, args ...Term) *Compound {
	return &Compound{Functor: functor, Args: args}
}

func (c *Compound) Arity() int { return len(c.Args) }

func (c *Compound) String() string {
	if len(c.Args) == 0 {
		return c.Functor
	}
	var sb strings.Builder
	sb.WriteString(c.Functor)
	sb.WriteByte('(')
	for i, a := range c.Args {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(fmt.Sprint(a))
	}
	sb.WriteByte(')')
	return sb.String()
}

// Int is an integer literal.
type Int int64

func (Int) isTerm() {}

func (i Int) String() string { return fmt.Sprintf("%d", int64(i)) }

// Float is a floating point literal.
type Float float64

func (Float) isTerm() {}

func (f Float) String() string { return fmt.Sprintf("%g", float64(f)) }

// Str is a string literal (Prolog "double quoted" text, kept as an
// opaque literal here; list-of-codes expansion is a front-end concern).
type Str string

func (Str) isTerm() {}

func (s Str) String() string { return string(s) }

// Indicator returns the functor/arity procedure indicator of any term
// that has one: Atom is name/0, *Compound is name/len(Args). Variables
// and numbers have no indicator.
func Indicator(t Term) (name string, arity int, ok bool) {
	switch x := t.(type) {
	case Atom:
		return string(x), 0, true
	case *Compound:
		return x.Functor, len(x.Args), true
	default:
		return "", 0, false
	}
}

// Walk visits t and, for compounds, each argument in left-to-right
// order, calling visit with the term and its positional path from the
// walk's root (e.g. "0", "0.1" for the second argument of the head).
// Pre is called before descending into a compound's arguments, Post
// after. Either callback may be nil.
func Walk(t Term, path string, pre, post func(Term, string)) {
	if pre != nil {
		pre(t, path)
	}
	if c, ok := t.(*Compound); ok {
		for i, arg := range c.Args {
			Walk(arg, fmt.Sprintf("%s.%d", path, i), pre, post)
		}
	}
	if post != nil {
		post(t, path)
	}
}

// Vars returns every Var node within t, in left-to-right occurrence
// order, including repeats.
func Vars(t Term) []Var {
	var out []Var
	Walk(t, "", func(n Term, _ string) {
		if v, ok := n.(Var); ok {
			out = append(out, v)
		}
	}, nil)
	return out
}
