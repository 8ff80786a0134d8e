// Package optimizer defines the narrow capability set the scheduling core uses
// to describe a constraint model, and the contract solver backends fulfil.
//
// The core records a Program through the Model interface and hands it to a
// Solver exactly once. Backends are swappable: anything able to interpret the
// Program's constraint kinds can serve.
package optimizer

import (
	"context"
	"fmt"
	"time"
)

// Status is the outcome of a solve call.
type Status int

const (
	StatusUnknown Status = iota
	StatusOptimal
	StatusFeasible
	StatusInfeasible
)

// String returns the canonical upper-case status name.
func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "OPTIMAL"
	case StatusFeasible:
		return "FEASIBLE"
	case StatusInfeasible:
		return "INFEASIBLE"
	default:
		return "UNKNOWN"
	}
}

// Found reports whether the status carries a usable assignment.
func (s Status) Found() bool {
	return s == StatusOptimal || s == StatusFeasible
}

// Model is the capability set used to build a constraint model.
type Model interface {
	NewIntVar(lb, ub int64, name string) Var
	NewBoolVar(name string) Var
	NewOptionalIntervalVar(start Var, size int64, end Var, presence Literal, name string) Interval
	NewFixedIntervalVar(start, size int64, name string) Interval
	AddNoOverlap(intervals ...Interval)
	AddLinearConstraint(expr LinearExpr, lb, ub int64, enforcedBy ...Literal)
	AddDivisionEquality(target Var, numerator LinearExpr, denominator int64)
	AddAbsEquality(target Var, expr LinearExpr)
	AddMultiplicationEquality(target Var, factors ...LinearExpr)
	AddMinEquality(target Var, exprs ...LinearExpr)
	AddMaxEquality(target Var, exprs ...LinearExpr)
	Maximize(objective LinearExpr)
}

// Solver solves a recorded Program.
type Solver interface {
	Name() string
	Solve(ctx context.Context, program *Program) (*Solution, error)
}

// Params bounds a backend's own search effort.
type Params struct {
	// TimeLimit is the solver-side search budget. Hitting it with a solution in
	// hand yields StatusFeasible; the caller's context deadline yields StatusUnknown.
	TimeLimit time.Duration
	// Workers is a parallelism hint for backends that search concurrently.
	Workers int
}

// Stats are diagnostic counters reported by a backend.
type Stats struct {
	Branches  int64
	Conflicts int64
	WallTime  time.Duration
}

// Solution is a solver response. Values are only meaningful when Status.Found().
type Solution struct {
	Status    Status
	Objective int64
	Values    []int64
	Stats     Stats
}

// Value returns the assigned value of v.
func (s *Solution) Value(v Var) int64 {
	if s == nil || int(v) < 0 || int(v) >= len(s.Values) {
		return 0
	}
	return s.Values[v]
}

// BoolValue returns the assigned value of a boolean variable.
func (s *Solution) BoolValue(v Var) bool {
	return s.Value(v) != 0
}

// ErrInvalidProgram is returned by backends for structurally broken programs.
type ErrInvalidProgram struct {
	Reason string
}

func (e *ErrInvalidProgram) Error() string {
	return fmt.Sprintf("invalid program: %s", e.Reason)
}
