package planner

import (
	"fmt"

	"github.com/noah-isme/task-scheduler-api/internal/models"
	"github.com/noah-isme/task-scheduler-api/internal/optimizer"
)

// TaskVars holds the model handles of one task.
type TaskVars struct {
	Task     models.Task
	Kind     models.DueKind
	Raw      int64
	Start    optimizer.Var
	End      optimizer.Var
	Present  optimizer.Var
	Priority optimizer.Var
	Interval optimizer.Interval

	// Delay and Late exist only for soft-window tasks.
	Delay optimizer.Var
	Late  optimizer.Var
}

// Formulation links a recorded model back to the problem it encodes.
type Formulation struct {
	Problem *Problem
	Tasks   []TaskVars
	// Windows counts the reserved intervals that entered the model.
	Windows int
}

// Build records the scheduling model of p into m.
func Build(m optimizer.Model, p *Problem) (*Formulation, error) {
	horizon := p.Horizon
	priorityCap := PriorityCap(len(p.Tasks))
	f := &Formulation{Problem: p, Tasks: make([]TaskVars, 0, len(p.Tasks))}

	objective := optimizer.LinearExpr{}
	intervals := make([]optimizer.Interval, 0, len(p.Tasks))
	for i, task := range p.Tasks {
		if task.Duration > horizon {
			return nil, &ModelingError{
				TaskID:  task.ID,
				Message: fmt.Sprintf("duration %d exceeds the horizon %d", task.Duration, horizon),
			}
		}
		raw := RawPriority(task.Impact, task.Duration)
		if raw > priorityCap {
			raw = priorityCap
		}
		tv := buildTask(m, i, task, raw, horizon)
		f.Tasks = append(f.Tasks, tv)
		intervals = append(intervals, tv.Interval)
		objective = objective.Plus(tv.Priority, 1)
	}

	if len(intervals) > 1 {
		m.AddNoOverlap(intervals...)
	}

	for wi, w := range p.Windows {
		if w.Start >= horizon {
			continue
		}
		var reserved optimizer.Interval
		created := false
		for _, tv := range f.Tasks {
			if w.Admits(tv.Task.Tags) {
				continue
			}
			if !created {
				reserved = m.NewFixedIntervalVar(w.Start, w.End-w.Start, fmt.Sprintf("window%d", wi))
				created = true
				f.Windows++
			}
			m.AddNoOverlap(tv.Interval, reserved)
		}
	}

	for bi, b := range p.Busy {
		if b.Start >= horizon || len(f.Tasks) == 0 {
			continue
		}
		busy := m.NewFixedIntervalVar(b.Start, b.End-b.Start, fmt.Sprintf("busy%d", bi))
		f.Windows++
		for _, tv := range f.Tasks {
			m.AddNoOverlap(tv.Interval, busy)
		}
	}

	m.Maximize(objective)
	return f, nil
}

func buildTask(m optimizer.Model, i int, task models.Task, raw, horizon int64) TaskVars {
	name := func(suffix string) string { return fmt.Sprintf("task%d_%s", i, suffix) }
	d := task.Duration

	tv := TaskVars{Task: task, Kind: task.DueKind(), Raw: raw}
	tv.Start = m.NewIntVar(0, horizon-d, name("start"))
	tv.End = m.NewIntVar(0, horizon, name("end"))
	tv.Present = m.NewBoolVar(name("present"))
	tv.Interval = m.NewOptionalIntervalVar(tv.Start, d, tv.End, tv.Present.Lit(), name("interval"))
	m.AddLinearConstraint(tv.End.Expr().Plus(tv.Start, -1), d, d)
	if task.Mandatory() {
		m.AddLinearConstraint(tv.Present.Expr(), 1, 1)
	}

	if tv.Kind != models.DueSoftWindow {
		tv.Priority = m.NewIntVar(0, raw*OnTimeFactor, name("priority"))
		m.AddLinearConstraint(tv.Priority.Expr().Plus(tv.Present, -raw*OnTimeFactor), 0, 0)
		return tv
	}

	due, window := *task.DueDate, *task.MaxDueDate-*task.DueDate

	// (due-end)*100 is shifted by k*window to stay non-negative over the
	// whole end domain, so that truncating division floors.
	k := int64(0)
	if lowest := (due - horizon) * DelayScale; lowest < 0 {
		k = (-lowest + window - 1) / window
	}
	numerator := optimizer.Const(due*DelayScale+k*window).Plus(tv.End, -DelayScale)
	highest := due*DelayScale + k*window
	quotient := m.NewIntVar(0, highest/window, name("quotient"))
	m.AddDivisionEquality(quotient, numerator, window)

	capped := m.NewIntVar(-k, DelayScale, name("delay_capped"))
	m.AddMinEquality(capped, quotient.Expr().PlusConst(-k), optimizer.Const(DelayScale))
	tv.Delay = m.NewIntVar(-DelayScale, DelayScale, name("delay"))
	m.AddMaxEquality(tv.Delay, capped.Expr(), optimizer.Const(-DelayScale))

	tv.Late = m.NewBoolVar(name("late"))
	m.AddLinearConstraint(tv.Delay.Expr(), -DelayScale, -1, tv.Late.Lit())
	m.AddLinearConstraint(tv.Delay.Expr(), 0, DelayScale, tv.Late.Not())

	magnitude := m.NewIntVar(0, DelayScale, name("delay_abs"))
	m.AddAbsEquality(magnitude, tv.Delay.Expr())
	optional := m.NewIntVar(0, DelayScale, name("delay_optional"))
	m.AddMultiplicationEquality(optional, tv.Present.Expr(), magnitude.Expr())

	tv.Priority = m.NewIntVar(0, raw*DelayScale*OnTimeFactor, name("priority"))
	m.AddMultiplicationEquality(tv.Priority,
		optimizer.LinearExpr{Terms: []optimizer.Term{{Var: optional, Coeff: raw}}},
		optimizer.Const(OnTimeFactor).Plus(tv.Late, LateFactor-OnTimeFactor),
	)
	return tv
}
