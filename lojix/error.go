package lojix

import "fmt"

// ErrFailure is returned when a query fails outright: the goal has no
// solutions at all, so Next never got a chance to push one (spec.md
// section 7 category 3 "unification failures are the normal control-flow
// mechanism... not surfaced as errors" — here surfaced once, at the
// point a caller asked QueryOnce and got nothing, mirroring
// trealla/error.go's ErrFailure for the same "no answer" case).
var ErrFailure = fmt.Errorf("lojix: query failed")

// ErrClosed is returned by any Session or Query method used after Close.
var ErrClosed = fmt.Errorf("lojix: use of closed session")

// ErrThrow reports a runtime type or existence error that aborted a
// resolution (spec.md section 7 category 3: "abort the entire
// resolution... reported to the caller as a single fatal condition").
// Ball is the resolver's error (for example a wam.ExistenceError), not a
// Prolog throw/1 ball in the ISO sense, since catch/throw is not part of
// this instruction set.
type ErrThrow struct {
	Ball error
}

func (e ErrThrow) Error() string {
	return fmt.Sprintf("lojix: resolution aborted: %v", e.Ball)
}

func (e ErrThrow) Unwrap() error { return e.Ball }
