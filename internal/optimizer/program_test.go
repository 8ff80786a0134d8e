package optimizer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinearExprBuildersDoNotAlias(t *testing.T) {
	base := Const(4).Plus(Var(0), 2)
	a := base.Plus(Var(1), 1)
	b := base.Plus(Var(2), 5).PlusConst(3)

	require.Len(t, base.Terms, 1)
	assert.Equal(t, Var(1), a.Terms[1].Var)
	assert.Equal(t, Var(2), b.Terms[1].Var)
	assert.Equal(t, int64(7), b.Offset)

	values := map[Var]int64{0: 1, 1: 10, 2: 100}
	assert.Equal(t, int64(4+2+10), a.Eval(func(v Var) int64 { return values[v] }))
}

func TestLiteralHolds(t *testing.T) {
	v := Var(3)
	assert.True(t, v.Lit().Holds(1))
	assert.False(t, v.Lit().Holds(0))
	assert.True(t, v.Not().Holds(0))
	assert.Equal(t, v.Lit(), v.Not().Not())
}

func TestProgramValidate(t *testing.T) {
	valid := NewProgram()
	x := valid.NewIntVar(0, 5, "x")
	flag := valid.NewBoolVar("flag")
	iv := valid.NewOptionalIntervalVar(x, 2, valid.NewIntVar(0, 7, "end"), flag.Lit(), "iv")
	valid.AddNoOverlap(iv, valid.NewFixedIntervalVar(4, 1, "fixed"))
	valid.AddDivisionEquality(valid.NewIntVar(0, 5, "q"), x.Expr(), 2)
	valid.Maximize(x.Expr())
	require.NoError(t, valid.Validate())
	assert.Len(t, valid.Intervals, 2)
	assert.Equal(t, "fixed_start", valid.Vars[valid.Intervals[1].Start].Name)

	cases := map[string]func(p *Program){
		"empty domain": func(p *Program) { p.NewIntVar(3, 1, "bad") },
		"zero denominator": func(p *Program) {
			v := p.NewIntVar(0, 1, "v")
			p.AddDivisionEquality(v, v.Expr(), 0)
		},
		"unknown variable": func(p *Program) { p.AddLinearConstraint(Var(42).Expr(), 0, 1) },
		"unknown interval": func(p *Program) { p.AddNoOverlap(Interval(9)) },
		"no operands": func(p *Program) {
			v := p.NewIntVar(0, 1, "v")
			p.AddMaxEquality(v)
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := NewProgram()
			mutate(p)
			var invalid *ErrInvalidProgram
			require.True(t, errors.As(p.Validate(), &invalid))
		})
	}
}

type stubSolver struct{ name string }

func (s stubSolver) Name() string { return s.name }

func (s stubSolver) Solve(context.Context, *Program) (*Solution, error) {
	return &Solution{Status: StatusUnknown}, nil
}

func TestRegistry(t *testing.T) {
	Register("stub-registry", func(Params) Solver { return stubSolver{name: "stub-registry"} })

	solver, err := New("stub-registry", Params{})
	require.NoError(t, err)
	assert.Equal(t, "stub-registry", solver.Name())
	assert.Contains(t, Backends(), "stub-registry")

	_, err = New("missing", Params{})
	assert.Error(t, err)

	assert.Panics(t, func() {
		Register("stub-registry", func(Params) Solver { return stubSolver{} })
	})
}

func TestStatus(t *testing.T) {
	assert.True(t, StatusOptimal.Found())
	assert.True(t, StatusFeasible.Found())
	assert.False(t, StatusInfeasible.Found())
	assert.False(t, StatusUnknown.Found())
	assert.Equal(t, "FEASIBLE", StatusFeasible.String())

	var nilSolution *Solution
	assert.Zero(t, nilSolution.Value(0))
}
