// Package lojix is the public facade over the WAM toolchain: a Session
// type bundling one interner, code area and resolver, a Query iterator,
// and the functional-option configuration the rest of this repository's
// packages are deliberately silent about (spec.md section 1 treats
// lexers, front-ends and "interactive top-level shells, command-line
// entry points, logging" as out of scope collaborators — this package is
// where a caller that built its own clause trees plugs in).
//
// Shaped after trealla/prolog.go's Prolog/prolog pair: a long-lived,
// mutex-guarded session a caller configures with options, consults
// clauses into, and drives queries against. Where the teacher's Consult/
// ConsultText take Prolog source text and hand it to an embedded WASM
// parser, this package's Consult takes already-parsed term.Clause values
// directly — there is no lexer/grammar front-end in this repository's
// scope (spec.md section 1), so there is no text to parse; term.Clause
// is exactly the "parsed clause tree with interned names" spec.md says a
// front-end delivers.
package lojix

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/rupertlssmith/lojix-sub007/compiler"
	"github.com/rupertlssmith/lojix-sub007/intern"
	"github.com/rupertlssmith/lojix-sub007/isa"
	"github.com/rupertlssmith/lojix-sub007/machine"
	"github.com/rupertlssmith/lojix-sub007/term"
	"github.com/rupertlssmith/lojix-sub007/wam"
)

// Session is a Prolog resolution session: one interner, one code area,
// one resolver, consulted into incrementally and queried repeatedly.
type Session interface {
	// Query executes goal, returning an iterator over its solutions.
	// The returned Query holds the session lock until Close or until
	// Next returns false (spec.md section 5: only one resolution runs at
	// a time per session) — callers must iterate to exhaustion or call
	// Close explicitly.
	Query(ctx context.Context, goal ...term.Term) Query
	// QueryOnce runs goal, retrieves at most one solution, and releases
	// the session lock before returning.
	QueryOnce(ctx context.Context, goal ...term.Term) (Answer, error)
	// Consult compiles and links clauses into the session's code area.
	// Clauses sharing a predicate indicator may appear in any order and
	// are linked together as one batch (spec.md section 4.6 "two-phase
	// linking... for a batch of mutually recursive predicates"); a
	// second Consult call redefining a predicate orphans its previous
	// code, per spec.md section 4.6 "Call-point replacement".
	Consult(clauses ...term.Clause) error
	// Clone creates an independent session sharing no mutable state with
	// this one, seeded from this session's current interner and code
	// area (spec.md section 5 "Shared resources").
	Clone() (Session, error)
	// Close releases the session. A closed session's methods return
	// ErrClosed.
	Close() error
	// Stats reports diagnostic counters.
	Stats() Stats
}

// Stats is diagnostic information about a session, mirroring
// trealla.Stats's shape but for the native code area instead of WASM
// linear memory.
type Stats struct {
	// CodeSize is the size in bytes of the compiled code area.
	CodeSize int
	// Functors is the number of distinct name/arity pairs interned.
	Functors int
}

type session struct {
	mu *sync.Mutex

	tbl      *intern.Table
	code     *machine.CodeArea
	compiler *compiler.Compiler
	resolver *wam.Resolver

	stdout *log.Logger
	stderr *log.Logger
	debug  *log.Logger
	trace  bool
	monitor wam.Monitor

	closed bool
}

// Option configures a Session at construction, following the teacher's
// functional-options idiom (trealla/prolog.go's Option).
type Option func(*session)

// WithStdoutLog stores logger as the session's stdout logger. Nothing in
// this package writes to it; it is carried over to clones.
func WithStdoutLog(logger *log.Logger) Option {
	return func(s *session) { s.stdout = logger }
}

// WithStderrLog stores logger as the session's stderr logger. Nothing in
// this package writes to it; it is carried over to clones.
func WithStderrLog(logger *log.Logger) Option {
	return func(s *session) { s.stderr = logger }
}

// WithDebugLog stores logger as the session's debug logger. Nothing in
// this package writes to it (no disassembly or linking output is
// logged); it is carried over to clones.
func WithDebugLog(logger *log.Logger) Option {
	return func(s *session) { s.debug = logger }
}

// WithTrace enables per-instruction monitor notifications for every
// query this session runs (spec.md section 6 "on_step", opt-in per
// wam.WithTrace's doc comment).
func WithTrace() Option {
	return func(s *session) { s.trace = true }
}

// WithMonitor attaches m to every resolver this session drives, for a
// caller implementing its own step-level debugger or tracer.
func WithMonitor(m wam.Monitor) Option {
	return func(s *session) { s.monitor = m }
}

// New creates an empty session: no clauses, a fresh interner and code
// area.
func New(opts ...Option) (Session, error) {
	s := &session{
		mu:       new(sync.Mutex),
		tbl:      intern.New(),
		code:     machine.NewCodeArea(),
		closed:   false,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.compiler = compiler.New(s.tbl)
	s.resolver = s.newResolver()
	return s, nil
}

func (s *session) newResolver() *wam.Resolver {
	var wopts []wam.Option
	if s.monitor != nil {
		wopts = append(wopts, wam.WithMonitor(s.monitor))
	}
	if s.trace {
		wopts = append(wopts, wam.WithTrace(true))
	}
	return wam.NewResolver(s.code, s.tbl, wopts...)
}

func (s *session) Consult(clauses ...term.Clause) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if len(clauses) == 0 {
		return nil
	}

	order := make([]string, 0)
	groups := make(map[string][]term.Clause)
	for _, cl := range clauses {
		if cl.IsQuery() {
			return fmt.Errorf("lojix: consult: clause has no head")
		}
		name, arity := cl.Indicator()
		key := fmt.Sprintf("%s/%d", name, arity)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], cl)
	}

	preds := make([]isa.Predicate, 0, len(order))
	for _, key := range order {
		preds = append(preds, s.compiler.CompilePredicate(groups[key]))
	}

	linker := machine.NewLinker(s.code, s.tbl)
	if err := linker.Link(preds); err != nil {
		return fmt.Errorf("lojix: consult: %w", err)
	}
	return nil
}

func (s *session) Query(ctx context.Context, goal ...term.Term) Query {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return &query{err: ErrClosed, done: true, closed: true}
	}
	return newQuery(s, goal)
}

func (s *session) QueryOnce(ctx context.Context, goal ...term.Term) (Answer, error) {
	q := s.Query(ctx, goal...)
	defer q.Close()
	if q.Next(ctx) {
		return q.Current(), nil
	}
	if err := q.Err(); err != nil {
		return Answer{}, err
	}
	return Answer{}, ErrFailure
}

func (s *session) Clone() (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	clone := &session{
		mu:      new(sync.Mutex),
		tbl:     s.tbl.Clone(),
		code:    s.code.Clone(),
		stdout:  s.stdout,
		stderr:  s.stderr,
		debug:   s.debug,
		trace:   s.trace,
		monitor: s.monitor,
	}
	clone.compiler = compiler.New(clone.tbl)
	clone.resolver = clone.newResolver()
	return clone, nil
}

func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{CodeSize: s.code.Len(), Functors: s.tbl.FunctorCount()}
}
