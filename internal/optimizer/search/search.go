// Package search is a pure-Go optimizer backend.
//
// Programs shaped like a single-resource schedule (optional intervals that
// pairwise exclude each other, fixed intervals blocking some of them, and
// every other decision private to one interval) are solved by a sequencing
// branch and bound: the next interval on the resource is chosen at each node,
// and only starts where that interval's objective contribution changes are
// tried. Any other Program falls back to a depth-first branch and bound over
// the decision variables.
//
// In the fallback, variables that are the target of a functional constraint
// (division, abs, multiplication, min, max, or a unit-coefficient linear
// equality) are not branched on; their value is computed as soon as every
// input is fixed. Every other constraint is checked at the deepest decision
// level among its variables.
package search

import (
	"context"
	"sort"
	"time"

	"github.com/noah-isme/task-scheduler-api/internal/optimizer"
)

// Name is the registry name of this backend.
const Name = "search"

// ctxCheckEvery is the node period at which the deadline is polled.
const ctxCheckEvery = 1024

func init() {
	optimizer.Register(Name, func(params optimizer.Params) optimizer.Solver {
		return New(params)
	})
}

// Solver implements optimizer.Solver.
type Solver struct {
	params optimizer.Params
}

// New returns a search solver.
func New(params optimizer.Params) *Solver {
	return &Solver{params: params}
}

// Name implements optimizer.Solver.
func (s *Solver) Name() string {
	return Name
}

// Solve implements optimizer.Solver.
func (s *Solver) Solve(ctx context.Context, program *optimizer.Program) (*optimizer.Solution, error) {
	if err := program.Validate(); err != nil {
		return nil, err
	}
	started := time.Now()
	c := compile(program)

	st := &state{
		compiled: c,
		ctx:      ctx,
		values:   make([]int64, len(program.Vars)),
	}
	if s.params.TimeLimit > 0 {
		st.deadline = started.Add(s.params.TimeLimit)
	}
	st.run()

	sol := &optimizer.Solution{
		Stats: optimizer.Stats{
			Branches:  st.nodes,
			Conflicts: st.conflicts,
			WallTime:  time.Since(started),
		},
	}
	switch {
	case st.stop == stopCancelled:
		sol.Status = optimizer.StatusUnknown
	case st.stop == stopTimeLimit && st.hasBest:
		sol.Status = optimizer.StatusFeasible
	case st.stop == stopTimeLimit:
		sol.Status = optimizer.StatusUnknown
	case st.hasBest:
		sol.Status = optimizer.StatusOptimal
	default:
		sol.Status = optimizer.StatusInfeasible
	}
	if sol.Status.Found() {
		sol.Values = st.best
		sol.Objective = st.bestObjective
	}
	return sol, nil
}

type checkKind int

const (
	checkConstraint checkKind = iota
	checkPair
	checkInterval
)

type check struct {
	kind checkKind
	ci   int
	a, b optimizer.Interval
}

type linearDef struct {
	target optimizer.Var
	coeff  int64
}

// compiled is the static search plan derived from a Program.
type compiled struct {
	prog *optimizer.Program

	// level is the decision depth after which a variable is fixed; -1 is root.
	level     []int
	rootFixed []optimizer.Var
	decisions []optimizer.Var

	// defsAt[l+1] and checksAt[l+1] run right after decision l is assigned.
	defsAt   [][]int
	checksAt [][]check

	linearDefs map[int]linearDef
	defTarget  map[int]optimizer.Var
	defined    []bool
}

func compile(prog *optimizer.Program) *compiled {
	n := len(prog.Vars)
	defBy := make([]int, n)
	for i := range defBy {
		defBy[i] = -1
	}
	linearDefs := map[int]linearDef{}
	defTarget := map[int]optimizer.Var{}

	for ci, c := range prog.Constraints {
		switch c.Kind {
		case optimizer.KindDivision, optimizer.KindAbs, optimizer.KindMultiplication, optimizer.KindMin, optimizer.KindMax:
			if defBy[c.Target] != -1 || exprsReference(c.Exprs, c.Target) {
				continue
			}
			defBy[c.Target] = ci
			defTarget[ci] = c.Target
		case optimizer.KindLinear:
			if c.Lower != c.Upper || len(c.Enforcement) > 0 {
				continue
			}
			coeffs := netCoefficients(c.Exprs[0])
			target, coeff, ok := pickLinearTarget(coeffs, defBy)
			if !ok {
				continue
			}
			defBy[target] = ci
			defTarget[ci] = target
			linearDefs[ci] = linearDef{target: target, coeff: coeff}
		}
	}

	inputs := func(ci int) []optimizer.Var {
		target := defTarget[ci]
		var vars []optimizer.Var
		for _, e := range prog.Constraints[ci].Exprs {
			for _, t := range e.Terms {
				if t.Var != target {
					vars = append(vars, t.Var)
				}
			}
		}
		return vars
	}

	order := topoOrder(n, defBy, inputs, defTarget, linearDefs)

	used := make([]bool, n)
	markExpr := func(e optimizer.LinearExpr) {
		for _, t := range e.Terms {
			used[t.Var] = true
		}
	}
	for _, c := range prog.Constraints {
		for _, e := range c.Exprs {
			markExpr(e)
		}
		if c.Kind != optimizer.KindLinear && c.Kind != optimizer.KindNoOverlap {
			used[c.Target] = true
		}
		for _, l := range c.Enforcement {
			used[l.Var] = true
		}
	}
	for _, iv := range prog.Intervals {
		used[iv.Start] = true
		used[iv.End] = true
		if iv.Presence != nil {
			used[iv.Presence.Var] = true
		}
	}
	markExpr(prog.Objective)

	c := &compiled{
		prog:       prog,
		level:      make([]int, n),
		linearDefs: linearDefs,
		defTarget:  defTarget,
		defined:    make([]bool, n),
	}
	for _, target := range defTarget {
		c.defined[target] = true
	}
	var branching []optimizer.Var
	for v := 0; v < n; v++ {
		if defBy[v] != -1 {
			continue
		}
		def := prog.Vars[v]
		if def.Lower == def.Upper || !used[v] {
			c.level[v] = -1
			c.rootFixed = append(c.rootFixed, optimizer.Var(v))
			continue
		}
		branching = append(branching, optimizer.Var(v))
	}
	for i, v := range branching {
		c.level[v] = i
	}
	c.decisions = branching

	c.defsAt = make([][]int, len(branching)+1)
	for _, ci := range order {
		lvl := -1
		for _, v := range inputs(ci) {
			if c.level[v] > lvl {
				lvl = c.level[v]
			}
		}
		c.level[defTarget[ci]] = lvl
		c.defsAt[lvl+1] = append(c.defsAt[lvl+1], ci)
	}

	c.checksAt = make([][]check, len(branching)+1)
	maxLevel := func(vars ...optimizer.Var) int {
		lvl := -1
		for _, v := range vars {
			if c.level[v] > lvl {
				lvl = c.level[v]
			}
		}
		return lvl
	}
	intervalVars := func(iv optimizer.Interval) []optimizer.Var {
		def := prog.Intervals[iv]
		vars := []optimizer.Var{def.Start, def.End}
		if def.Presence != nil {
			vars = append(vars, def.Presence.Var)
		}
		return vars
	}
	for ci, con := range prog.Constraints {
		if _, isDef := defTarget[ci]; isDef {
			continue
		}
		if con.Kind == optimizer.KindNoOverlap {
			for i := 0; i < len(con.Intervals); i++ {
				for j := i + 1; j < len(con.Intervals); j++ {
					a, b := con.Intervals[i], con.Intervals[j]
					vars := append(intervalVars(a), intervalVars(b)...)
					lvl := maxLevel(vars...)
					c.checksAt[lvl+1] = append(c.checksAt[lvl+1], check{kind: checkPair, a: a, b: b})
				}
			}
			continue
		}
		lvl := maxLevel(constraintVars(con)...)
		c.checksAt[lvl+1] = append(c.checksAt[lvl+1], check{kind: checkConstraint, ci: ci})
	}
	for iv := range prog.Intervals {
		lvl := maxLevel(intervalVars(optimizer.Interval(iv))...)
		c.checksAt[lvl+1] = append(c.checksAt[lvl+1], check{kind: checkInterval, a: optimizer.Interval(iv)})
	}
	return c
}

// topoOrder returns definitions in evaluation order. Definitions caught in a
// dependency cycle are demoted to plain checked constraints.
func topoOrder(n int, defBy []int, inputs func(int) []optimizer.Var, defTarget map[int]optimizer.Var, linearDefs map[int]linearDef) []int {
	const (
		unvisited = iota
		visiting
		done
	)
	mark := make([]int, n)
	var order []int
	var visit func(v optimizer.Var) bool
	visit = func(v optimizer.Var) bool {
		ci := defBy[v]
		if ci == -1 {
			return true
		}
		switch mark[v] {
		case done:
			return true
		case visiting:
			return false
		}
		mark[v] = visiting
		for _, in := range inputs(ci) {
			if !visit(in) {
				defBy[v] = -1
				delete(defTarget, ci)
				delete(linearDefs, ci)
				mark[v] = done
				return true
			}
		}
		mark[v] = done
		order = append(order, ci)
		return true
	}
	for v := 0; v < n; v++ {
		visit(optimizer.Var(v))
	}
	return order
}

func constraintVars(c optimizer.Constraint) []optimizer.Var {
	var vars []optimizer.Var
	for _, e := range c.Exprs {
		vars = append(vars, e.Vars()...)
	}
	if c.Kind != optimizer.KindLinear && c.Kind != optimizer.KindNoOverlap {
		vars = append(vars, c.Target)
	}
	for _, l := range c.Enforcement {
		vars = append(vars, l.Var)
	}
	return vars
}

func exprsReference(exprs []optimizer.LinearExpr, v optimizer.Var) bool {
	for _, e := range exprs {
		for _, t := range e.Terms {
			if t.Var == v {
				return true
			}
		}
	}
	return false
}

func netCoefficients(e optimizer.LinearExpr) map[optimizer.Var]int64 {
	coeffs := make(map[optimizer.Var]int64, len(e.Terms))
	for _, t := range e.Terms {
		coeffs[t.Var] += t.Coeff
	}
	return coeffs
}

// pickLinearTarget chooses the most recently created free variable with a
// unit coefficient, so that later derived variables are computed from
// earlier decisions.
func pickLinearTarget(coeffs map[optimizer.Var]int64, defBy []int) (optimizer.Var, int64, bool) {
	vars := make([]optimizer.Var, 0, len(coeffs))
	for v := range coeffs {
		vars = append(vars, v)
	}
	sort.Slice(vars, func(i, j int) bool { return vars[i] > vars[j] })
	for _, v := range vars {
		coeff := coeffs[v]
		if (coeff == 1 || coeff == -1) && defBy[v] == -1 {
			return v, coeff, true
		}
	}
	return 0, 0, false
}

type stopReason int

const (
	stopNone stopReason = iota
	stopTimeLimit
	stopCancelled
	stopSatisfied
)

type state struct {
	*compiled
	ctx      context.Context
	deadline time.Time

	values        []int64
	best          []int64
	bestObjective int64
	hasBest       bool

	nodes     int64
	conflicts int64
	stop      stopReason
}

func (s *state) run() {
	for _, v := range s.rootFixed {
		s.values[v] = s.prog.Vars[v].Lower
	}
	if !s.propagate(-1) {
		s.conflicts++
		return
	}
	if q, ok := newSequencer(s); ok {
		if q.prepare() {
			q.explore(q.origin, 0)
		}
		return
	}
	s.dfs(0)
}

func (s *state) dfs(depth int) {
	if depth == len(s.decisions) {
		s.record()
		return
	}
	v := s.decisions[depth]
	def := s.prog.Vars[v]

	try := func(value int64) bool {
		s.nodes++
		if s.nodes%ctxCheckEvery == 0 && s.interrupted() {
			return false
		}
		s.values[v] = value
		if !s.propagate(depth) {
			s.conflicts++
			return true
		}
		if s.hasBest && s.prog.HasObjective && s.bound(depth) <= s.bestObjective {
			return true
		}
		s.dfs(depth + 1)
		return s.stop == stopNone
	}

	if def.Bool {
		for _, value := range []int64{1, 0} {
			if !try(value) {
				return
			}
		}
		return
	}
	for value := def.Lower; value <= def.Upper; value++ {
		if !try(value) {
			return
		}
	}
}

func (s *state) interrupted() bool {
	if s.stop != stopNone {
		return true
	}
	if s.ctx != nil && s.ctx.Err() != nil {
		s.stop = stopCancelled
		return true
	}
	if !s.deadline.IsZero() && time.Now().After(s.deadline) {
		s.stop = stopTimeLimit
		return true
	}
	return false
}

func (s *state) record() {
	objective := s.eval(s.prog.Objective)
	if !s.hasBest || objective > s.bestObjective {
		if s.best == nil {
			s.best = make([]int64, len(s.values))
		}
		copy(s.best, s.values)
		s.bestObjective = objective
		s.hasBest = true
	}
	if !s.prog.HasObjective {
		s.stop = stopSatisfied
	}
}

// propagate computes definitions and verifies checks that become fully fixed
// at the given decision depth.
func (s *state) propagate(depth int) bool {
	for _, ci := range s.defsAt[depth+1] {
		target := s.defTarget[ci]
		value, ok := s.evalDefinition(ci)
		if !ok {
			return false
		}
		def := s.prog.Vars[target]
		if value < def.Lower || value > def.Upper {
			return false
		}
		s.values[target] = value
	}
	for _, ch := range s.checksAt[depth+1] {
		if !s.holds(ch) {
			return false
		}
	}
	return true
}

func (s *state) evalDefinition(ci int) (int64, bool) {
	c := s.prog.Constraints[ci]
	if ld, ok := s.linearDefs[ci]; ok {
		s.values[ld.target] = 0
		rest := s.eval(c.Exprs[0])
		return (c.Lower - rest) * ld.coeff, true
	}
	return s.function(c)
}

// function evaluates the right-hand side of a functional constraint.
func (s *state) function(c optimizer.Constraint) (int64, bool) {
	switch c.Kind {
	case optimizer.KindDivision:
		return s.eval(c.Exprs[0]) / c.Denominator, true
	case optimizer.KindAbs:
		v := s.eval(c.Exprs[0])
		if v < 0 {
			v = -v
		}
		return v, true
	case optimizer.KindMultiplication:
		product := int64(1)
		for _, e := range c.Exprs {
			product *= s.eval(e)
		}
		return product, true
	case optimizer.KindMin, optimizer.KindMax:
		result := s.eval(c.Exprs[0])
		for _, e := range c.Exprs[1:] {
			v := s.eval(e)
			if (c.Kind == optimizer.KindMin && v < result) || (c.Kind == optimizer.KindMax && v > result) {
				result = v
			}
		}
		return result, true
	}
	return 0, false
}

func (s *state) holds(ch check) bool {
	switch ch.kind {
	case checkPair:
		return s.disjoint(ch.a, ch.b)
	case checkInterval:
		iv := s.prog.Intervals[ch.a]
		if !s.active(iv) {
			return true
		}
		return s.values[iv.End] == s.values[iv.Start]+iv.Size
	}
	c := s.prog.Constraints[ch.ci]
	if c.Kind == optimizer.KindLinear {
		for _, l := range c.Enforcement {
			if !l.Holds(s.values[l.Var]) {
				return true
			}
		}
		v := s.eval(c.Exprs[0])
		return v >= c.Lower && v <= c.Upper
	}
	value, ok := s.function(c)
	return ok && value == s.values[c.Target]
}

func (s *state) active(iv optimizer.IntervalDef) bool {
	if iv.Presence == nil {
		return true
	}
	return iv.Presence.Holds(s.values[iv.Presence.Var])
}

func (s *state) disjoint(a, b optimizer.Interval) bool {
	ia, ib := s.prog.Intervals[a], s.prog.Intervals[b]
	if !s.active(ia) || !s.active(ib) {
		return true
	}
	if ia.Size == 0 || ib.Size == 0 {
		return true
	}
	return s.values[ia.End] <= s.values[ib.Start] || s.values[ib.End] <= s.values[ia.Start]
}

// bound is an optimistic objective value given decisions up to depth.
func (s *state) bound(depth int) int64 {
	total := s.prog.Objective.Offset
	for _, t := range s.prog.Objective.Terms {
		switch {
		case s.level[t.Var] <= depth:
			total += t.Coeff * s.values[t.Var]
		case t.Coeff > 0:
			total += t.Coeff * s.prog.Vars[t.Var].Upper
		default:
			total += t.Coeff * s.prog.Vars[t.Var].Lower
		}
	}
	return total
}

func (s *state) eval(e optimizer.LinearExpr) int64 {
	total := e.Offset
	for _, t := range e.Terms {
		total += t.Coeff * s.values[t.Var]
	}
	return total
}
