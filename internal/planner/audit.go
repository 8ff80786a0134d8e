package planner

import (
	"fmt"
	"sort"
)

// Audit re-checks a found result against the problem without the solver:
// placement bounds, mutual exclusion, tag and busy reservations, mandatory
// presence and the scored contributions. It returns the first violation.
func Audit(p *Problem, res *Result) error {
	if res == nil || !res.Found {
		return nil
	}
	if len(res.Assignments) != len(p.Tasks) {
		return fmt.Errorf("expected %d assignments, got %d", len(p.Tasks), len(res.Assignments))
	}

	priorityCap := PriorityCap(len(p.Tasks))
	type span struct {
		id         string
		start, end int64
	}
	var placed []span
	var objective int64
	for i, task := range p.Tasks {
		a := res.Assignments[i]
		if a.ID != task.ID {
			return fmt.Errorf("assignment %d is for %q, expected %q", i, a.ID, task.ID)
		}
		if task.Mandatory() && !a.IsPresent {
			return fmt.Errorf("task %s has a due bound but is absent", task.ID)
		}
		start := a.Start - p.Offset
		end := start + task.Duration
		raw := RawPriority(task.Impact, task.Duration)
		if raw > priorityCap {
			raw = priorityCap
		}

		if a.IsPresent {
			if start < 0 || end > p.Horizon {
				return fmt.Errorf("task %s runs [%d, %d) outside [0, %d]", task.ID, start, end, p.Horizon)
			}
			for _, w := range p.Windows {
				if !w.Admits(task.Tags) && overlaps(start, end, w.Start, w.End) {
					return fmt.Errorf("task %s overlaps a window reserved for %v", task.ID, w.Tags.Sorted())
				}
			}
			for _, b := range p.Busy {
				if overlaps(start, end, b.Start, b.End) {
					return fmt.Errorf("task %s overlaps busy interval %s", task.ID, b.ID)
				}
			}
			placed = append(placed, span{id: task.ID, start: start, end: end})
		}

		delay, late := Lateness(task, end)
		if a.Delay != delay || a.IsLate != late {
			return fmt.Errorf("task %s reports delay %d late=%t, expected %d late=%t", task.ID, a.Delay, a.IsLate, delay, late)
		}
		want := Contribution(task, raw, a.IsPresent, delay, late)
		if a.Priority != want {
			return fmt.Errorf("task %s reports priority %d, expected %d", task.ID, a.Priority, want)
		}
		objective += want
	}

	sort.Slice(placed, func(i, j int) bool { return placed[i].start < placed[j].start })
	for i := 1; i < len(placed); i++ {
		if placed[i].start < placed[i-1].end {
			return fmt.Errorf("tasks %s and %s overlap", placed[i-1].id, placed[i].id)
		}
	}
	if objective != res.Objective {
		return fmt.Errorf("objective %d does not match the contributions %d", res.Objective, objective)
	}
	return nil
}

func overlaps(aStart, aEnd, bStart, bEnd int64) bool {
	return aStart < bEnd && bStart < aEnd
}
