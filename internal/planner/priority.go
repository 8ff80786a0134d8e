package planner

import (
	"math"

	"github.com/noah-isme/task-scheduler-api/internal/models"
)

const (
	// MinHorizon is the default floor of the scheduling horizon.
	MinHorizon int64 = 1000
	// MaxObjective bounds the sum of every task's best contribution.
	MaxObjective int64 = 1 << 50
	// DelayScale is the magnitude of a fully early or fully late delay.
	DelayScale int64 = 100
	// OnTimeFactor weights contributions of tasks finishing by their due date.
	OnTimeFactor int64 = 11
	// LateFactor weights contributions of late tasks.
	LateFactor int64 = 8
)

// RawPriority is the impact per unit of time, floor(impact*100/duration).
func RawPriority(impact float64, duration int64) int64 {
	if duration <= 0 || impact <= 0 {
		return 0
	}
	v := math.Floor(impact * float64(DelayScale) / float64(duration))
	if v >= float64(MaxObjective) {
		return MaxObjective
	}
	return int64(v)
}

// PriorityCap is the largest raw priority a task may carry in a request of n
// tasks so that the aggregate objective stays within MaxObjective.
func PriorityCap(n int) int64 {
	if n <= 0 {
		n = 1
	}
	return MaxObjective / (OnTimeFactor * DelayScale * int64(n))
}

// Lateness grades a completion time against the task's due window. Only
// soft-window tasks have a graded lateness; every other task reports (0, false).
func Lateness(task models.Task, end int64) (delay int64, late bool) {
	if task.DueKind() != models.DueSoftWindow {
		return 0, false
	}
	due, maxDue := *task.DueDate, *task.MaxDueDate
	delay = floorDiv((due-end)*DelayScale, maxDue-due)
	if delay > DelayScale {
		delay = DelayScale
	}
	if delay < -DelayScale {
		delay = -DelayScale
	}
	return delay, delay < 0
}

// Contribution is the objective term of one task.
func Contribution(task models.Task, raw int64, present bool, delay int64, late bool) int64 {
	if !present {
		return 0
	}
	magnitude := int64(1)
	if task.DueKind() == models.DueSoftWindow {
		magnitude = delay
		if magnitude < 0 {
			magnitude = -magnitude
		}
	}
	factor := OnTimeFactor
	if late {
		factor = LateFactor
	}
	return raw * magnitude * factor
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
