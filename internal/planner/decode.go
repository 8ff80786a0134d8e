package planner

import (
	"github.com/noah-isme/task-scheduler-api/internal/models"
	"github.com/noah-isme/task-scheduler-api/internal/optimizer"
)

// Result is the decoded outcome of one request.
type Result struct {
	Found       bool
	Status      optimizer.Status
	Objective   int64
	Horizon     int64
	Assignments []models.Assignment
	Stats       optimizer.Stats
}

// Decode turns a solver response into assignments, in task input order.
// Non-success statuses yield a not-found result with no assignments.
func Decode(f *Formulation, sol *optimizer.Solution) *Result {
	res := &Result{Assignments: []models.Assignment{}}
	if f != nil && f.Problem != nil {
		res.Horizon = f.Problem.Horizon
	}
	if sol == nil {
		return res
	}
	res.Status = sol.Status
	res.Stats = sol.Stats
	if !sol.Status.Found() || f == nil {
		return res
	}

	res.Found = true
	res.Assignments = make([]models.Assignment, 0, len(f.Tasks))
	for _, tv := range f.Tasks {
		a := models.Assignment{
			ID:        tv.Task.ID,
			Start:     sol.Value(tv.Start) + f.Problem.Offset,
			IsPresent: sol.BoolValue(tv.Present),
			Duration:  tv.Task.Duration,
			Priority:  sol.Value(tv.Priority),
		}
		if tv.Kind == models.DueSoftWindow {
			a.Delay = sol.Value(tv.Delay)
			a.IsLate = sol.BoolValue(tv.Late)
		}
		res.Objective += a.Priority
		res.Assignments = append(res.Assignments, a)
	}
	return res
}
