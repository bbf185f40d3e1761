package lojix

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rupertlssmith/lojix-sub007/intern"
	"github.com/rupertlssmith/lojix-sub007/term"
	"github.com/rupertlssmith/lojix-sub007/wam"
)

// Substitution is a mapping of variable names to the terms they were
// bound to by a successful resolution, indexed by the source name the
// query goal used (spec.md section 4.7 "returns the current bindings of
// the query's free variables").
//
// Grounded on trealla/substitution.go's Substitution; the reflect-based
// Scan/struct-tag conversion that file builds on top has no analog here
// since there is no ISO type-conversion surface in this spec, so it is
// left out (see DESIGN.md).
type Substitution map[string]term.Term

// String renders the substitution the way ISO's variable_names/1 option
// does: "[X = foo, Y = bar]".
func (s Substitution) String() string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteByte('[')
	for i, name := range names {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s = %v", name, s[name])
	}
	sb.WriteByte(']')
	return sb.String()
}

// Answer is one solution to a query (spec.md section 6 "resolve() ->
// next solution").
type Answer struct {
	// Goal is the original query goal list.
	Goal []term.Term
	// Solution binds every variable named in the query to the term it
	// resolved to.
	Solution Substitution
}

// readSolution reifies every permanent variable symtab registered under
// "var:<name>" in sym, using the resolver's current environment — the
// same mechanism compiler_test.go exercises directly against the
// lower-level packages, wrapped here as a reusable helper for query.go.
func readSolution(r *wam.Resolver, tbl *intern.Table, names []string, regOf func(name string) (int32, bool)) (Substitution, error) {
	base, n, ok := r.QueryEnv()
	sol := make(Substitution, len(names))
	for _, name := range names {
		slot, found := regOf(name)
		if !found {
			continue
		}
		if !ok || slot < 0 || int(slot) >= n {
			return nil, fmt.Errorf("lojix: reify: variable %q has no live environment slot", name)
		}
		t, err := reify(r, tbl, r.Load(base+slot))
		if err != nil {
			return nil, fmt.Errorf("lojix: reify: variable %q: %w", name, err)
		}
		sol[name] = t
	}
	return sol, nil
}
