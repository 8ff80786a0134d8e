package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/task-scheduler-api/internal/optimizer"
)

func solve(t *testing.T, p *optimizer.Program, params optimizer.Params) *optimizer.Solution {
	t.Helper()
	sol, err := New(params).Solve(context.Background(), p)
	require.NoError(t, err)
	return sol
}

func TestSolveLinearMaximum(t *testing.T) {
	p := optimizer.NewProgram()
	x := p.NewIntVar(0, 10, "x")
	y := p.NewIntVar(0, 10, "y")
	p.AddLinearConstraint(x.Expr().Plus(y, 2), 0, 12)
	p.Maximize(x.Expr().Plus(y, 3))

	sol := solve(t, p, optimizer.Params{})
	assert.Equal(t, optimizer.StatusOptimal, sol.Status)
	assert.Equal(t, int64(18), sol.Objective)
	assert.Equal(t, int64(0), sol.Value(x))
	assert.Equal(t, int64(6), sol.Value(y))
}

func TestSolveInfeasible(t *testing.T) {
	p := optimizer.NewProgram()
	x := p.NewIntVar(0, 5, "x")
	p.AddLinearConstraint(x.Expr(), 7, 9)
	p.Maximize(x.Expr())

	sol := solve(t, p, optimizer.Params{})
	assert.Equal(t, optimizer.StatusInfeasible, sol.Status)
	assert.Nil(t, sol.Values)
}

func TestSolveWithoutObjectiveStopsAtFirstSolution(t *testing.T) {
	p := optimizer.NewProgram()
	x := p.NewIntVar(0, 100, "x")
	p.AddLinearConstraint(x.Expr(), 40, 100)

	sol := solve(t, p, optimizer.Params{})
	assert.Equal(t, optimizer.StatusOptimal, sol.Status)
	assert.Equal(t, int64(40), sol.Value(x))
}

func TestSolveFunctionalConstraints(t *testing.T) {
	p := optimizer.NewProgram()
	x := p.NewIntVar(-7, -7, "x")
	quotient := p.NewIntVar(-10, 10, "quotient")
	p.AddDivisionEquality(quotient, x.Expr(), 2)
	abs := p.NewIntVar(0, 10, "abs")
	p.AddAbsEquality(abs, x.Expr())
	product := p.NewIntVar(-100, 100, "product")
	p.AddMultiplicationEquality(product, x.Expr(), optimizer.Const(3))
	lowest := p.NewIntVar(-10, 10, "min")
	p.AddMinEquality(lowest, x.Expr(), optimizer.Const(-2))
	highest := p.NewIntVar(-10, 10, "max")
	p.AddMaxEquality(highest, x.Expr(), optimizer.Const(-2))

	sol := solve(t, p, optimizer.Params{})
	require.True(t, sol.Status.Found())
	assert.Equal(t, int64(-3), sol.Value(quotient), "division rounds toward zero")
	assert.Equal(t, int64(7), sol.Value(abs))
	assert.Equal(t, int64(-21), sol.Value(product))
	assert.Equal(t, int64(-7), sol.Value(lowest))
	assert.Equal(t, int64(-2), sol.Value(highest))
}

func TestSolveDefinitionOutsideDomainIsRejected(t *testing.T) {
	p := optimizer.NewProgram()
	x := p.NewIntVar(0, 9, "x")
	square := p.NewIntVar(0, 20, "square")
	p.AddMultiplicationEquality(square, x.Expr(), x.Expr())
	p.Maximize(x.Expr())

	sol := solve(t, p, optimizer.Params{})
	assert.Equal(t, int64(4), sol.Value(x))
	assert.Equal(t, int64(16), sol.Value(square))
}

func TestSolveEnforcedConstraint(t *testing.T) {
	p := optimizer.NewProgram()
	flag := p.NewBoolVar("flag")
	x := p.NewIntVar(0, 10, "x")
	p.AddLinearConstraint(x.Expr(), 0, 3, flag.Lit())
	p.AddLinearConstraint(x.Expr(), 8, 10, flag.Not())
	p.Maximize(optimizer.Const(0).Plus(flag, 20).Plus(x, 1))

	sol := solve(t, p, optimizer.Params{})
	assert.True(t, sol.BoolValue(flag))
	assert.Equal(t, int64(3), sol.Value(x))
	assert.Equal(t, int64(23), sol.Objective)
}

func TestSolveNoOverlapWithOptionalIntervals(t *testing.T) {
	p := optimizer.NewProgram()
	var intervals []optimizer.Interval
	objective := optimizer.LinearExpr{}
	for i, size := range []int64{3, 3, 3} {
		start := p.NewIntVar(0, 7-size, "start")
		end := p.NewIntVar(0, 7, "end")
		present := p.NewBoolVar("present")
		p.AddLinearConstraint(end.Expr().Plus(start, -1), size, size)
		intervals = append(intervals, p.NewOptionalIntervalVar(start, size, end, present.Lit(), "task"))
		objective = objective.Plus(present, int64(i+1))
	}
	p.AddNoOverlap(intervals...)
	blocked := p.NewFixedIntervalVar(3, 1, "blocked")
	for _, iv := range intervals {
		p.AddNoOverlap(iv, blocked)
	}
	p.Maximize(objective)

	sol := solve(t, p, optimizer.Params{})
	assert.Equal(t, optimizer.StatusOptimal, sol.Status)
	// only two tasks of size 3 fit around the blocked slot: [0,3) and [4,7)
	assert.Equal(t, int64(5), sol.Objective)
	assert.False(t, sol.BoolValue(p.Intervals[0].Presence.Var))
}

// staircaseProgram places three optional intervals of size 5 on [0, 1000],
// each scoring end/100 when present.
func staircaseProgram() *optimizer.Program {
	p := optimizer.NewProgram()
	var intervals []optimizer.Interval
	objective := optimizer.LinearExpr{}
	for range 3 {
		start := p.NewIntVar(0, 995, "start")
		end := p.NewIntVar(0, 1000, "end")
		present := p.NewBoolVar("present")
		p.AddLinearConstraint(end.Expr().Plus(start, -1), 5, 5)
		intervals = append(intervals, p.NewOptionalIntervalVar(start, 5, end, present.Lit(), "task"))
		step := p.NewIntVar(0, 10, "step")
		p.AddDivisionEquality(step, end.Expr(), 100)
		score := p.NewIntVar(0, 10, "score")
		p.AddMultiplicationEquality(score, present.Expr(), step.Expr())
		objective = objective.Plus(score, 1)
	}
	p.AddNoOverlap(intervals...)
	p.Maximize(objective)
	return p
}

func TestSolveSequencesLongHorizonToOptimality(t *testing.T) {
	first := solve(t, staircaseProgram(), optimizer.Params{TimeLimit: 5 * time.Second})
	require.Equal(t, optimizer.StatusOptimal, first.Status)
	// ends 1000, 995 and 990 score 10+9+9
	assert.Equal(t, int64(28), first.Objective)
	assert.Less(t, first.Stats.Branches, int64(1000))

	second := solve(t, staircaseProgram(), optimizer.Params{TimeLimit: 5 * time.Second})
	require.Equal(t, optimizer.StatusOptimal, second.Status)
	assert.Equal(t, first.Objective, second.Objective)
	assert.Equal(t, first.Stats.Branches, second.Stats.Branches)
}

func TestSolveSequencingRespectsFixedIntervals(t *testing.T) {
	p := optimizer.NewProgram()
	start := p.NewIntVar(0, 95, "start")
	end := p.NewIntVar(0, 100, "end")
	present := p.NewBoolVar("present")
	p.AddLinearConstraint(end.Expr().Plus(start, -1), 5, 5)
	iv := p.NewOptionalIntervalVar(start, 5, end, present.Lit(), "task")
	p.AddNoOverlap(iv, p.NewFixedIntervalVar(0, 40, "busy"))
	p.AddNoOverlap(iv, p.NewFixedIntervalVar(42, 10, "meeting"))
	p.Maximize(optimizer.Const(0).Plus(present, 1))

	sol := solve(t, p, optimizer.Params{})
	require.Equal(t, optimizer.StatusOptimal, sol.Status)
	assert.True(t, sol.BoolValue(present))
	assert.Equal(t, int64(52), sol.Value(start))
	assert.Equal(t, int64(57), sol.Value(end))
}

func TestSolveTimeLimitKeepsIncumbent(t *testing.T) {
	p := optimizer.NewProgram()
	a := p.NewIntVar(0, 100, "a")
	b := p.NewIntVar(0, 100, "b")
	c := p.NewIntVar(0, 100, "c")
	p.AddLinearConstraint(a.Expr().Plus(b, 1).Plus(c, 1), 0, 150)
	p.Maximize(a.Expr().Plus(b, 1).Plus(c, 1))

	sol := solve(t, p, optimizer.Params{TimeLimit: time.Nanosecond})
	assert.Equal(t, optimizer.StatusFeasible, sol.Status)
	assert.NotNil(t, sol.Values)
	assert.Less(t, sol.Objective, int64(150))
}

func TestSolveCancelledContextIsUnknown(t *testing.T) {
	p := optimizer.NewProgram()
	a := p.NewIntVar(0, 100, "a")
	b := p.NewIntVar(0, 100, "b")
	p.AddLinearConstraint(a.Expr().Plus(b, 1), -5, -1)
	p.Maximize(a.Expr())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sol, err := New(optimizer.Params{}).Solve(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, optimizer.StatusUnknown, sol.Status)
	assert.False(t, sol.Status.Found())
}

func TestSolveRejectsInvalidProgram(t *testing.T) {
	p := optimizer.NewProgram()
	x := p.NewIntVar(5, 1, "x")
	p.Maximize(x.Expr())

	_, err := New(optimizer.Params{}).Solve(context.Background(), p)
	var invalid *optimizer.ErrInvalidProgram
	require.True(t, errors.As(err, &invalid))
}

func TestRegisteredInRegistry(t *testing.T) {
	solver, err := optimizer.New(Name, optimizer.Params{})
	require.NoError(t, err)
	assert.Equal(t, Name, solver.Name())
	assert.Contains(t, optimizer.Backends(), Name)
}
