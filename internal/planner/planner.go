// Package planner turns scheduling requests into constraint models, hands them
// to an optimizer backend and decodes the answer.
//
// The pipeline is Normalize, Build, Solve, Decode. Every call records its own
// Program so concurrent plans share nothing.
package planner

import (
	"context"
	"fmt"

	"github.com/noah-isme/task-scheduler-api/internal/dto"
	"github.com/noah-isme/task-scheduler-api/internal/optimizer"
)

// Planner runs the scheduling pipeline against one solver backend.
type Planner struct {
	solver optimizer.Solver
	opts   Options
}

// New constructs a Planner.
func New(solver optimizer.Solver, opts Options) *Planner {
	return &Planner{solver: solver, opts: opts}
}

// Options returns the normalization options in use.
func (p *Planner) Options() Options {
	return p.opts
}

// Plan normalizes a raw request and solves it.
func (p *Planner) Plan(ctx context.Context, req dto.ScheduleRequest) (*Problem, *Result, error) {
	problem, err := Normalize(req, p.opts)
	if err != nil {
		return nil, nil, err
	}
	res, err := p.Solve(ctx, problem)
	return problem, res, err
}

// Solve builds the model of a normalized problem and calls the solver once.
// An empty problem is answered without a model.
func (p *Planner) Solve(ctx context.Context, problem *Problem) (*Result, error) {
	if len(problem.Tasks) == 0 {
		return &Result{
			Found:       true,
			Status:      optimizer.StatusOptimal,
			Horizon:     problem.Horizon,
			Assignments: Decode(nil, nil).Assignments,
		}, nil
	}

	program := optimizer.NewProgram()
	f, err := Build(program, problem)
	if err != nil {
		return nil, err
	}

	sol, err := p.solver.Solve(ctx, program)
	if err != nil {
		return nil, fmt.Errorf("solve with %s: %w", p.solver.Name(), err)
	}

	res := Decode(f, sol)
	if err := Audit(problem, res); err != nil {
		return nil, fmt.Errorf("%s returned an inconsistent schedule: %w", p.solver.Name(), err)
	}
	return res, nil
}
