package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/noah-isme/task-scheduler-api/internal/models"
)

// Response headers carried by every solved schedule.
const (
	HeaderScheduleStatus = "X-Schedule-Status"
	HeaderScheduleRunID  = "X-Schedule-Run-Id"
)

// Scalar keeps a JSON/YAML scalar as raw text so numeric fields can be
// validated by the normalizer instead of failing at decode time. The empty
// value means absent or null.
type Scalar string

// UnmarshalJSON accepts numbers, strings and null.
func (s *Scalar) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*s = ""
		return nil
	}
	switch trimmed[0] {
	case '"':
		var str string
		if err := json.Unmarshal(trimmed, &str); err != nil {
			return err
		}
		*s = Scalar(str)
	case '{', '[':
		return fmt.Errorf("expected a scalar value, got %s", string(trimmed))
	default:
		*s = Scalar(trimmed)
	}
	return nil
}

// UnmarshalYAML accepts any scalar node.
func (s *Scalar) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a scalar value", node.Line)
	}
	if node.Tag == "!!null" {
		*s = ""
		return nil
	}
	*s = Scalar(node.Value)
	return nil
}

// Present reports whether a value was supplied.
func (s Scalar) Present() bool {
	return s != ""
}

// ScheduleEvent is a raw task record.
type ScheduleEvent struct {
	ID         Scalar   `json:"id" yaml:"id" validate:"required"`
	Duration   Scalar   `json:"duration" yaml:"duration" validate:"required"`
	Impact     Scalar   `json:"impact" yaml:"impact"`
	DueDate    Scalar   `json:"dueDate" yaml:"dueDate"`
	MaxDueDate Scalar   `json:"maxDueDate" yaml:"maxDueDate"`
	Tags       []string `json:"tags" yaml:"tags"`
}

// ReservedTagWindow is a raw reserved tag window record.
type ReservedTagWindow struct {
	ID    Scalar   `json:"id,omitempty" yaml:"id,omitempty"`
	Start Scalar   `json:"start" yaml:"start" validate:"required"`
	End   Scalar   `json:"end" yaml:"end" validate:"required"`
	Tags  []string `json:"tags" yaml:"tags"`
}

// ReservedInterval is a raw busy interval record.
type ReservedInterval struct {
	ID            Scalar `json:"id" yaml:"id"`
	Start         Scalar `json:"start" yaml:"start" validate:"required"`
	End           Scalar `json:"end" yaml:"end" validate:"required"`
	IsTransparent bool   `json:"isTransparent" yaml:"isTransparent"`
}

// ScheduleRequest asks for one schedule.
type ScheduleRequest struct {
	Events            []ScheduleEvent     `json:"events" yaml:"events" validate:"dive"`
	ReservedTags      []ReservedTagWindow `json:"reservedTags" yaml:"reservedTags" validate:"dive"`
	ReservedIntervals []ReservedInterval  `json:"reservedIntervals" yaml:"reservedIntervals" validate:"dive"`
	Start             Scalar              `json:"start" yaml:"start"`
	MergeReservedTags bool                `json:"mergeReservedTags" yaml:"mergeReservedTags"`
}

// ScheduleResponse is the schedule outcome. Tasks is empty when Found is false.
type ScheduleResponse struct {
	Found bool                `json:"found" yaml:"found"`
	Tasks []models.Assignment `json:"tasks" yaml:"tasks"`
}

// ScheduleMeta carries solver diagnostics.
type ScheduleMeta struct {
	RunID      string `json:"runId" yaml:"runId"`
	Status     string `json:"status" yaml:"status"`
	Objective  int64  `json:"objective" yaml:"objective"`
	Horizon    int64  `json:"horizon" yaml:"horizon"`
	Solver     string `json:"solver" yaml:"solver"`
	Branches   int64  `json:"branches" yaml:"branches"`
	Conflicts  int64  `json:"conflicts" yaml:"conflicts"`
	WallTimeMs int64  `json:"wallTimeMs" yaml:"wallTimeMs"`
	CacheHit   bool   `json:"cacheHit" yaml:"cacheHit"`
}

// ScheduleResult bundles the response with diagnostics.
type ScheduleResult struct {
	Response ScheduleResponse `json:"response" yaml:"response"`
	Meta     ScheduleMeta     `json:"meta" yaml:"meta"`
}

// MetricsSnapshot summarises service counters.
type MetricsSnapshot struct {
	RequestsTotal      uint64    `json:"requestsTotal"`
	SolvesTotal        uint64    `json:"solvesTotal"`
	FoundRatio         float64   `json:"foundRatio"`
	AverageSolveTimeMs float64   `json:"averageSolveTimeMs"`
	CacheHits          uint64    `json:"cacheHits"`
	CacheMisses        uint64    `json:"cacheMisses"`
	CacheHitRatio      float64   `json:"cacheHitRatio"`
	Goroutines         int       `json:"goroutines"`
	GeneratedAt        time.Time `json:"generatedAt"`
}
