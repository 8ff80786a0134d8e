package planner

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/noah-isme/task-scheduler-api/internal/dto"
	"github.com/noah-isme/task-scheduler-api/internal/models"
)

// ValueLimit bounds every time value accepted from a request.
const ValueLimit = int64(1) << 40

// Options tune normalization.
type Options struct {
	// MinHorizon is the floor of the derived horizon.
	MinHorizon int64
	// MaxTasks rejects requests with more events; zero disables the check.
	MaxTasks int
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{MinHorizon: MinHorizon}
}

// Problem is a validated request. All times are relative to Offset, so the
// timeline origin 0 is the request's start.
type Problem struct {
	Tasks   []models.Task
	Windows []models.ReservedTagWindow
	Busy    []models.ReservedInterval
	Offset  int64
	Horizon int64
}

// Normalize validates raw records and converts them into a Problem.
func Normalize(req dto.ScheduleRequest, opts Options) (*Problem, error) {
	if opts.MinHorizon <= 0 {
		opts.MinHorizon = MinHorizon
	}
	if opts.MaxTasks > 0 && len(req.Events) > opts.MaxTasks {
		return nil, invalid("events", "at most %d events are accepted, got %d", opts.MaxTasks, len(req.Events))
	}

	offset, _, err := parseInteger(req.Start, "start")
	if err != nil {
		return nil, err
	}

	problem := &Problem{
		Tasks:   make([]models.Task, 0, len(req.Events)),
		Windows: make([]models.ReservedTagWindow, 0, len(req.ReservedTags)),
		Offset:  offset,
	}

	seen := make(map[string]int, len(req.Events))
	for i, ev := range req.Events {
		task, err := normalizeTask(ev, fmt.Sprintf("events[%d]", i), offset)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[task.ID]; dup {
			return nil, invalid(fmt.Sprintf("events[%d].id", i), "duplicates events[%d].id %q", prev, task.ID)
		}
		seen[task.ID] = i
		problem.Tasks = append(problem.Tasks, task)
	}

	for i, raw := range req.ReservedTags {
		field := fmt.Sprintf("reservedTags[%d]", i)
		start, end, err := parseRange(raw.Start, raw.End, field)
		if err != nil {
			return nil, err
		}
		tags := models.NewTagSet(raw.Tags...)
		if len(tags) == 0 {
			return nil, invalid(field+".tags", "must contain at least one tag")
		}
		start, end, keep := rebase(start, end, offset)
		if !keep {
			continue
		}
		problem.Windows = append(problem.Windows, models.ReservedTagWindow{Start: start, End: end, Tags: tags})
	}
	if req.MergeReservedTags {
		problem.Windows = MergeTagWindows(problem.Windows)
	}

	for i, raw := range req.ReservedIntervals {
		if raw.IsTransparent {
			continue
		}
		field := fmt.Sprintf("reservedIntervals[%d]", i)
		start, end, err := parseRange(raw.Start, raw.End, field)
		if err != nil {
			return nil, err
		}
		start, end, keep := rebase(start, end, offset)
		if !keep {
			continue
		}
		id := strings.TrimSpace(string(raw.ID))
		if id == "" {
			id = strconv.Itoa(i)
		}
		problem.Busy = append(problem.Busy, models.ReservedInterval{ID: id, Start: start, End: end})
	}

	problem.Horizon = opts.MinHorizon
	for _, task := range problem.Tasks {
		if task.MaxDueDate != nil && *task.MaxDueDate > problem.Horizon {
			problem.Horizon = *task.MaxDueDate
		}
	}
	return problem, nil
}

func normalizeTask(ev dto.ScheduleEvent, field string, offset int64) (models.Task, error) {
	id := strings.TrimSpace(string(ev.ID))
	if id == "" {
		return models.Task{}, invalid(field+".id", "is required")
	}

	duration, present, err := parseInteger(ev.Duration, field+".duration")
	if err != nil {
		return models.Task{}, err
	}
	if !present {
		return models.Task{}, invalid(field+".duration", "is required")
	}
	if duration <= 0 {
		return models.Task{}, invalid(field+".duration", "must be greater than zero, got %d", duration)
	}

	var impact float64
	if ev.Impact.Present() {
		impact, err = strconv.ParseFloat(strings.TrimSpace(string(ev.Impact)), 64)
		if err != nil || math.IsNaN(impact) || math.IsInf(impact, 0) {
			return models.Task{}, invalid(field+".impact", "must be a number, got %q", string(ev.Impact))
		}
		if impact < 0 {
			return models.Task{}, invalid(field+".impact", "must not be negative")
		}
	}

	task := models.Task{
		ID:       id,
		Duration: duration,
		Impact:   impact,
		Tags:     models.NewTagSet(ev.Tags...),
	}

	due, hasDue, err := parseInteger(ev.DueDate, field+".dueDate")
	if err != nil {
		return models.Task{}, err
	}
	maxDue, hasMaxDue, err := parseInteger(ev.MaxDueDate, field+".maxDueDate")
	if err != nil {
		return models.Task{}, err
	}
	if hasDue && hasMaxDue && maxDue < due {
		return models.Task{}, invalid(field+".maxDueDate", "must not precede dueDate (%d < %d)", maxDue, due)
	}
	if hasDue {
		v := due - offset
		task.DueDate = &v
	}
	if hasMaxDue {
		v := maxDue - offset
		task.MaxDueDate = &v
	}
	return task, nil
}

func parseRange(rawStart, rawEnd dto.Scalar, field string) (int64, int64, error) {
	start, ok, err := parseInteger(rawStart, field+".start")
	if err != nil {
		return 0, 0, err
	}
	if !ok {
		return 0, 0, invalid(field+".start", "is required")
	}
	end, ok, err := parseInteger(rawEnd, field+".end")
	if err != nil {
		return 0, 0, err
	}
	if !ok {
		return 0, 0, invalid(field+".end", "is required")
	}
	if end <= start {
		return 0, 0, invalid(field+".end", "must be after start (%d <= %d)", end, start)
	}
	return start, end, nil
}

// rebase moves a range onto the timeline origin. Ranges that ended before the
// origin are dropped and ranges straddling it are clipped.
func rebase(start, end, offset int64) (int64, int64, bool) {
	start -= offset
	end -= offset
	if end <= 0 {
		return 0, 0, false
	}
	if start < 0 {
		start = 0
	}
	return start, end, true
}

// parseInteger reads an optional integral value. Integral floats such as
// "3.0" are accepted.
func parseInteger(raw dto.Scalar, field string) (int64, bool, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return 0, false, nil
	}
	value, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(text, 64)
		if ferr != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, true, invalid(field, "must be an integer, got %q", text)
		}
		if f != math.Trunc(f) {
			return 0, true, invalid(field, "must be an integer, got %q", text)
		}
		if math.Abs(f) > float64(ValueLimit) {
			return 0, true, invalid(field, "must be within ±%d", ValueLimit)
		}
		value = int64(f)
	}
	if value > ValueLimit || value < -ValueLimit {
		return 0, true, invalid(field, "must be within ±%d", ValueLimit)
	}
	return value, true, nil
}

// MergeTagWindows splits overlapping windows into disjoint segments, each
// carrying the union of the tags of the windows covering it. Adjacent
// segments with equal tags are joined.
func MergeTagWindows(windows []models.ReservedTagWindow) []models.ReservedTagWindow {
	if len(windows) < 2 {
		return windows
	}
	points := make([]int64, 0, 2*len(windows))
	for _, w := range windows {
		points = append(points, w.Start, w.End)
	}
	sort.Slice(points, func(i, j int) bool { return points[i] < points[j] })

	var out []models.ReservedTagWindow
	for i := 0; i+1 < len(points); i++ {
		lo, hi := points[i], points[i+1]
		if lo == hi {
			continue
		}
		tags := models.TagSet{}
		for _, w := range windows {
			if w.Start <= lo && hi <= w.End {
				tags = tags.Union(w.Tags)
			}
		}
		if len(tags) == 0 {
			continue
		}
		if n := len(out); n > 0 && out[n-1].End == lo && out[n-1].Tags.Equal(tags) {
			out[n-1].End = hi
			continue
		}
		out = append(out, models.ReservedTagWindow{Start: lo, End: hi, Tags: tags})
	}
	return out
}
