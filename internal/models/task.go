package models

import (
	"sort"
	"strings"
)

// TagSet is an unordered set of tag names.
type TagSet map[string]struct{}

// NewTagSet builds a set from raw tag names, trimming blanks.
func NewTagSet(tags ...string) TagSet {
	set := make(TagSet, len(tags))
	for _, tag := range tags {
		trimmed := strings.TrimSpace(tag)
		if trimmed == "" {
			continue
		}
		set[trimmed] = struct{}{}
	}
	return set
}

// Has reports membership.
func (s TagSet) Has(tag string) bool {
	_, ok := s[tag]
	return ok
}

// Intersects reports whether the two sets share at least one tag.
func (s TagSet) Intersects(other TagSet) bool {
	small, large := s, other
	if len(small) > len(large) {
		small, large = large, small
	}
	for tag := range small {
		if large.Has(tag) {
			return true
		}
	}
	return false
}

// Union returns a new set holding the tags of both sets.
func (s TagSet) Union(other TagSet) TagSet {
	out := make(TagSet, len(s)+len(other))
	for tag := range s {
		out[tag] = struct{}{}
	}
	for tag := range other {
		out[tag] = struct{}{}
	}
	return out
}

// Equal reports whether both sets hold the same tags.
func (s TagSet) Equal(other TagSet) bool {
	if len(s) != len(other) {
		return false
	}
	for tag := range s {
		if !other.Has(tag) {
			return false
		}
	}
	return true
}

// Sorted returns the tags in lexical order.
func (s TagSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for tag := range s {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// DueKind classifies a task's due-date configuration.
type DueKind int

const (
	// DueNone means no maxDueDate: the task is optional and never late.
	DueNone DueKind = iota
	// DueSoftWindow means dueDate < maxDueDate: lateness is graded inside the window.
	DueSoftWindow
	// DueHardPoint means maxDueDate is set without a graded window.
	DueHardPoint
)

func (k DueKind) String() string {
	switch k {
	case DueSoftWindow:
		return "soft_window"
	case DueHardPoint:
		return "hard_point"
	default:
		return "none"
	}
}

// Task is a unit of work to place on the timeline.
type Task struct {
	ID         string
	Duration   int64
	Impact     float64
	DueDate    *int64
	MaxDueDate *int64
	Tags       TagSet
}

// DueKind resolves the task's due-date variant.
func (t Task) DueKind() DueKind {
	if t.MaxDueDate == nil {
		return DueNone
	}
	if t.DueDate != nil && *t.DueDate != *t.MaxDueDate {
		return DueSoftWindow
	}
	return DueHardPoint
}

// Mandatory reports whether the task must be present in any schedule.
func (t Task) Mandatory() bool {
	return t.MaxDueDate != nil
}

// ReservedTagWindow is a time range reserved for tasks sharing one of its tags.
type ReservedTagWindow struct {
	Start int64
	End   int64
	Tags  TagSet
}

// Admits reports whether a task with the given tags may run inside the window.
func (w ReservedTagWindow) Admits(tags TagSet) bool {
	return w.Tags.Intersects(tags)
}

// ReservedInterval is a busy range of the timeline. Opaque intervals block
// every task; transparent ones are informational.
type ReservedInterval struct {
	ID          string
	Start       int64
	End         int64
	Transparent bool
}

// Assignment is the placement decided for one task.
type Assignment struct {
	ID        string `json:"id" yaml:"id"`
	Start     int64  `json:"start" yaml:"start"`
	IsPresent bool   `json:"isPresent" yaml:"isPresent"`
	IsLate    bool   `json:"isLate" yaml:"isLate"`
	Duration  int64  `json:"duration" yaml:"duration"`
	Priority  int64  `json:"priority" yaml:"priority"`
	Delay     int64  `json:"delay" yaml:"delay"`
}

// End returns the exclusive end of the assignment.
func (a Assignment) End() int64 {
	return a.Start + a.Duration
}
