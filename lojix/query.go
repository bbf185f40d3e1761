package lojix

import (
	"context"
	"errors"
	"fmt"

	"github.com/rupertlssmith/lojix-sub007/compiler"
	"github.com/rupertlssmith/lojix-sub007/symtab"
	"github.com/rupertlssmith/lojix-sub007/term"
	"github.com/rupertlssmith/lojix-sub007/wam"
)

// Query is a resolution iterator (spec.md section 6 "resolve() -> next
// solution, or none", modeled on trealla/query.go's Query interface).
type Query interface {
	// Next drives the resolver to the next solution. False means the
	// search is exhausted (check Err to distinguish from a fatal error).
	Next(ctx context.Context) bool
	// Current returns the solution Next just produced.
	Current() Answer
	// Close abandons the query. Safe to call after exhaustion; harmless
	// to call more than once.
	Close() error
	// Err reports a fatal resolution error (spec.md section 7 category
	// 3), nil on ordinary exhaustion.
	Err() error
}

// query drives one goal list against a Session's shared resolver. Only
// one query may be live per session at a time (spec.md section 5 "one
// goroutine per resolution"); Session.Query enforces this with its mutex,
// held from Query until Close or until Next returns false, rather than
// per-call, matching
// the teacher's pl.mu scope in trealla/query.go's start/redo.
type query struct {
	s    *session
	goal []term.Term
	sym  *symtab.Table
	vars []string

	cur    Answer
	err    error
	done   bool
	closed bool
	locked bool
}

func newQuery(s *session, goal []term.Term) *query {
	q := &query{s: s, goal: goal, locked: true}

	instrs, sym := s.compiler.CompileQuery(goal)
	q.sym = sym
	q.vars = distinctVarNames(goal)

	if err := s.resolver.SetQuery(instrs); err != nil {
		q.err = fmt.Errorf("lojix: query: %w", err)
		q.done = true
	}
	return q
}

func (q *query) Next(ctx context.Context) (ok bool) {
	// Once no further solution can come, release the session lock, so a
	// caller that iterates to exhaustion need not call Close.
	defer func() {
		if !ok {
			q.Close()
		}
	}()
	if q.err != nil || q.done || q.closed {
		return false
	}

	err := q.s.resolver.Resolve(ctx)
	switch {
	case err == nil:
		sol, rerr := readSolution(q.s.resolver, q.s.tbl, q.vars, q.regOf)
		if rerr != nil {
			q.err = rerr
			q.done = true
			return false
		}
		q.cur = Answer{Goal: q.goal, Solution: sol}
		return true

	case errors.Is(err, wam.ErrNoMoreSolutions):
		q.done = true
		return false

	case errors.Is(err, wam.ErrCanceled):
		q.err = err
		q.done = true
		return false

	default:
		q.err = ErrThrow{Ball: err}
		q.done = true
		return false
	}
}

func (q *query) Current() Answer { return q.cur }

func (q *query) Close() error {
	if q.closed {
		return nil
	}
	q.closed = true
	if q.locked {
		q.s.mu.Unlock()
	}
	return nil
}

func (q *query) Err() error { return q.err }

func (q *query) regOf(name string) (int32, bool) {
	slot, ok := q.sym.Get(q.sym.SymbolKeyFor("var:"+name), symtab.FieldRegister)
	if !ok {
		return 0, false
	}
	return int32(slot.(int) - int(compiler.YBase)), true
}

// distinctVarNames returns every non-anonymous variable name mentioned in
// goals, in first-occurrence order, deduplicated.
func distinctVarNames(goals []term.Term) []string {
	seen := make(map[string]bool)
	var out []string
	for _, g := range goals {
		for _, v := range term.Vars(g) {
			if v.Name == "_" || seen[v.Name] {
				continue
			}
			seen[v.Name] = true
			out = append(out, v.Name)
		}
	}
	return out
}

var _ Query = (*query)(nil)
