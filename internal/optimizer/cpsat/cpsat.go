//go:build ortools

// Package cpsat translates a Program into an OR-Tools CP-SAT model.
//
// Building with `-tags ortools` requires the OR-Tools C++ library to be
// available to cgo.
package cpsat

import (
	"context"
	"fmt"
	"time"

	"github.com/google/or-tools/ortools/sat/go/cpmodel"
	cmpb "github.com/google/or-tools/ortools/sat/proto/cpmodel"
	sppb "github.com/google/or-tools/ortools/sat/proto/satparameters"
	"google.golang.org/protobuf/proto"

	"github.com/noah-isme/task-scheduler-api/internal/optimizer"
)

// Name is the registry name of this backend.
const Name = "cpsat"

func init() {
	optimizer.Register(Name, func(params optimizer.Params) optimizer.Solver {
		return New(params)
	})
}

// Solver implements optimizer.Solver on top of CP-SAT.
type Solver struct {
	params optimizer.Params
}

// New returns a CP-SAT solver.
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
	t, err := translate(program)
	if err != nil {
		return nil, err
	}
	m, err := t.builder.Model()
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate the CP model: %w", err)
	}

	params := &sppb.SatParameters{}
	if s.params.TimeLimit > 0 {
		params.MaxTimeInSeconds = proto.Float64(s.params.TimeLimit.Seconds())
	}
	if s.params.Workers > 0 {
		params.NumWorkers = proto.Int32(int32(s.params.Workers))
	}

	interrupt := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			close(interrupt)
		case <-finished:
		}
	}()
	response, err := cpmodel.SolveCpModelInterruptibleWithParameters(m, params, interrupt)
	close(finished)
	if err != nil {
		return nil, fmt.Errorf("failed to solve the model: %w", err)
	}

	sol := &optimizer.Solution{
		Status: mapStatus(response.GetStatus()),
		Stats: optimizer.Stats{
			Branches:  response.GetNumBranches(),
			Conflicts: response.GetNumConflicts(),
			WallTime:  time.Duration(response.GetWallTime() * float64(time.Second)),
		},
	}
	if response.GetStatus() == cmpb.CpSolverStatus_MODEL_INVALID {
		return nil, &optimizer.ErrInvalidProgram{Reason: response.GetSolutionInfo()}
	}
	if ctx.Err() != nil {
		sol.Status = optimizer.StatusUnknown
	}
	if !sol.Status.Found() {
		return sol, nil
	}

	sol.Objective = int64(response.GetObjectiveValue())
	sol.Values = make([]int64, len(program.Vars))
	for i, def := range program.Vars {
		if def.Bool {
			if cpmodel.SolutionBooleanValue(response, t.bools[i]) {
				sol.Values[i] = 1
			}
			continue
		}
		sol.Values[i] = cpmodel.SolutionIntegerValue(response, t.ints[i])
	}
	return sol, nil
}

func mapStatus(status cmpb.CpSolverStatus) optimizer.Status {
	switch status {
	case cmpb.CpSolverStatus_OPTIMAL:
		return optimizer.StatusOptimal
	case cmpb.CpSolverStatus_FEASIBLE:
		return optimizer.StatusFeasible
	case cmpb.CpSolverStatus_INFEASIBLE:
		return optimizer.StatusInfeasible
	default:
		return optimizer.StatusUnknown
	}
}

type translation struct {
	builder   *cpmodel.Builder
	program   *optimizer.Program
	ints      []cpmodel.IntVar
	bools     []cpmodel.BoolVar
	intervals []cpmodel.IntervalVar
}

func translate(p *optimizer.Program) (*translation, error) {
	t := &translation{
		builder: cpmodel.NewCpModelBuilder(),
		program: p,
		ints:    make([]cpmodel.IntVar, len(p.Vars)),
		bools:   make([]cpmodel.BoolVar, len(p.Vars)),
	}
	for i, def := range p.Vars {
		if def.Bool {
			t.bools[i] = t.builder.NewBoolVar().WithName(def.Name)
			continue
		}
		t.ints[i] = t.builder.NewIntVar(def.Lower, def.Upper).WithName(def.Name)
	}

	for _, iv := range p.Intervals {
		size := cpmodel.NewConstant(iv.Size)
		if iv.Presence == nil {
			t.intervals = append(t.intervals, t.builder.NewIntervalVar(t.arg(iv.Start), size, t.arg(iv.End)))
			continue
		}
		presence, err := t.literal(*iv.Presence)
		if err != nil {
			return nil, err
		}
		t.intervals = append(t.intervals, t.builder.NewOptionalIntervalVar(t.arg(iv.Start), size, t.arg(iv.End), presence))
	}

	for i, c := range p.Constraints {
		if err := t.addConstraint(c); err != nil {
			return nil, fmt.Errorf("constraint %d (%s): %w", i, c.Kind, err)
		}
	}

	if p.HasObjective {
		t.builder.Maximize(t.expr(p.Objective))
	}
	return t, nil
}

func (t *translation) addConstraint(c optimizer.Constraint) error {
	switch c.Kind {
	case optimizer.KindLinear:
		ct := t.builder.AddLinearConstraint(t.expr(c.Exprs[0]), c.Lower, c.Upper)
		if len(c.Enforcement) > 0 {
			lits := make([]cpmodel.BoolVar, 0, len(c.Enforcement))
			for _, l := range c.Enforcement {
				lit, err := t.literal(l)
				if err != nil {
					return err
				}
				lits = append(lits, lit)
			}
			ct.OnlyEnforceIf(lits...)
		}
	case optimizer.KindNoOverlap:
		ivs := make([]cpmodel.IntervalVar, 0, len(c.Intervals))
		for _, iv := range c.Intervals {
			ivs = append(ivs, t.intervals[iv])
		}
		t.builder.AddNoOverlap(ivs...)
	case optimizer.KindDivision:
		t.builder.AddDivisionEquality(t.arg(c.Target), t.expr(c.Exprs[0]), cpmodel.NewConstant(c.Denominator))
	case optimizer.KindAbs:
		t.builder.AddAbsEquality(t.arg(c.Target), t.expr(c.Exprs[0]))
	case optimizer.KindMultiplication:
		t.builder.AddMultiplicationEquality(t.arg(c.Target), t.exprs(c.Exprs)...)
	case optimizer.KindMin:
		t.builder.AddMinEquality(t.arg(c.Target), t.exprs(c.Exprs)...)
	case optimizer.KindMax:
		t.builder.AddMaxEquality(t.arg(c.Target), t.exprs(c.Exprs)...)
	default:
		return fmt.Errorf("unsupported constraint kind %d", c.Kind)
	}
	return nil
}

func (t *translation) arg(v optimizer.Var) cpmodel.LinearArgument {
	if t.program.Vars[v].Bool {
		return t.bools[v]
	}
	return t.ints[v]
}

func (t *translation) literal(l optimizer.Literal) (cpmodel.BoolVar, error) {
	if !t.program.Vars[l.Var].Bool {
		return cpmodel.BoolVar{}, fmt.Errorf("variable %s is not boolean", t.program.Vars[l.Var].Name)
	}
	if l.Negated {
		return t.bools[l.Var].Not(), nil
	}
	return t.bools[l.Var], nil
}

func (t *translation) expr(e optimizer.LinearExpr) *cpmodel.LinearExpr {
	le := cpmodel.NewLinearExpr()
	for _, term := range e.Terms {
		le.AddTerm(t.arg(term.Var), term.Coeff)
	}
	le.AddConstant(e.Offset)
	return le
}

func (t *translation) exprs(es []optimizer.LinearExpr) []cpmodel.LinearArgument {
	out := make([]cpmodel.LinearArgument, 0, len(es))
	for _, e := range es {
		out = append(out, t.expr(e))
	}
	return out
}
