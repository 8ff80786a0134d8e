package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/noah-isme/task-scheduler-api/internal/dto"
	"github.com/noah-isme/task-scheduler-api/internal/planner"
	appErrors "github.com/noah-isme/task-scheduler-api/pkg/errors"
	"github.com/noah-isme/task-scheduler-api/pkg/export"
	"github.com/noah-isme/task-scheduler-api/pkg/logger"
)

// SchedulePlanner runs the scheduling pipeline for one request.
type SchedulePlanner interface {
	Plan(ctx context.Context, req dto.ScheduleRequest) (*planner.Problem, *planner.Result, error)
}

// TaskSchedulerConfig tunes the scheduling service.
type TaskSchedulerConfig struct {
	// SolverName labels logs, metrics and response meta.
	SolverName string
	// Timeout is the per-request deadline handed to the solver.
	Timeout time.Duration
	// CachePrefix namespaces result cache keys.
	CachePrefix string
	CacheTTL    time.Duration
	// MaxConcurrent caps in-flight solves. Zero disables the limit.
	MaxConcurrent int
}

// TaskSchedulerService validates requests, runs the planner and shapes results.
type TaskSchedulerService struct {
	planner   SchedulePlanner
	validator *validator.Validate
	cache     *CacheService
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       TaskSchedulerConfig
	slots     *semaphore.Weighted
}

// NewTaskSchedulerService constructs the service.
func NewTaskSchedulerService(p SchedulePlanner, validate *validator.Validate, cache *CacheService, metrics *MetricsService, logger *zap.Logger, cfg TaskSchedulerConfig) *TaskSchedulerService {
	if validate == nil {
		validate = validator.New()
	}
	validate.RegisterTagNameFunc(jsonFieldName)
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CachePrefix == "" {
		cfg.CachePrefix = "schedule:" + cfg.SolverName
	}
	svc := &TaskSchedulerService{
		planner:   p,
		validator: validate,
		cache:     cache,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
	}
	if cfg.MaxConcurrent > 0 {
		svc.slots = semaphore.NewWeighted(int64(cfg.MaxConcurrent))
	}
	return svc
}

func jsonFieldName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return field.Name
	}
	return name
}

// validationError names the first failing field by its payload path, e.g.
// "events[0].duration: is required".
func validationError(err error) *appErrors.Error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}
	fe := fieldErrs[0]
	path := fe.Namespace()
	if i := strings.Index(path, "."); i >= 0 {
		path = path[i+1:]
	}
	msg := fmt.Sprintf("%s: failed the %q rule", path, fe.Tag())
	if fe.Tag() == "required" {
		msg = path + ": is required"
	}
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, msg)
}

// Schedule answers one scheduling request. Infeasible or timed out requests
// are a normal outcome with Found=false; only malformed or unmodelable
// requests and internal faults return errors.
func (s *TaskSchedulerService) Schedule(ctx context.Context, req dto.ScheduleRequest) (result *dto.ScheduleResult, err error) {
	log := logger.ForContext(ctx, s.logger)
	defer func() {
		if r := recover(); r != nil {
			log.Error("schedule panicked",
				zap.Any("panic", r),
				zap.Int("task_count", len(req.Events)),
				zap.Int("window_count", len(req.ReservedTags)),
				zap.Int("interval_count", len(req.ReservedIntervals)),
			)
			result = nil
			err = appErrors.Clone(appErrors.ErrInternal, "")
		}
	}()

	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}

	runID := uuid.NewString()
	log = log.With(zap.String("run_id", runID))

	cacheKey := ""
	if s.cache.Enabled() {
		if key, keyErr := CacheKey(s.cfg.CachePrefix, req); keyErr == nil {
			cacheKey = key
			var cached dto.ScheduleResult
			if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
				cached.Meta.RunID = runID
				cached.Meta.CacheHit = true
				log.Debug("schedule served from cache", zap.String("key", cacheKey))
				return &cached, nil
			}
		}
	}

	solveCtx := ctx
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		solveCtx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	if s.slots != nil {
		if err := s.slots.Acquire(solveCtx, 1); err != nil {
			log.Warn("schedule rejected, solver slots exhausted",
				zap.Int("max_concurrent", s.cfg.MaxConcurrent),
				zap.Error(err),
			)
			return nil, appErrors.Wrap(err, appErrors.ErrSolverBusy.Code, appErrors.ErrSolverBusy.Status, appErrors.ErrSolverBusy.Message)
		}
		defer s.slots.Release(1)
	}

	started := time.Now()
	problem, res, err := s.planner.Plan(solveCtx, req)
	elapsed := time.Since(started)
	if err != nil {
		return nil, s.classify(log, req, problem, err)
	}

	out := &dto.ScheduleResult{
		Response: dto.ScheduleResponse{Found: res.Found, Tasks: res.Assignments},
		Meta: dto.ScheduleMeta{
			RunID:      runID,
			Status:     res.Status.String(),
			Objective:  res.Objective,
			Horizon:    res.Horizon,
			Solver:     s.cfg.SolverName,
			Branches:   res.Stats.Branches,
			Conflicts:  res.Stats.Conflicts,
			WallTimeMs: elapsed.Milliseconds(),
		},
	}

	log.Info("schedule_solved",
		zap.String("solver", s.cfg.SolverName),
		zap.String("status", out.Meta.Status),
		zap.Bool("found", res.Found),
		zap.Int64("objective", res.Objective),
		zap.Int64("horizon", res.Horizon),
		zap.Int("task_count", len(problem.Tasks)),
		zap.Int("window_count", len(problem.Windows)),
		zap.Int("interval_count", len(problem.Busy)),
		zap.Int64("branches", res.Stats.Branches),
		zap.Int64("conflicts", res.Stats.Conflicts),
		zap.Duration("wall_time", res.Stats.WallTime),
		zap.Duration("elapsed", elapsed),
	)
	s.metrics.ObserveSolve(s.cfg.SolverName, out.Meta.Status, len(problem.Tasks), res.Stats.Branches, res.Found, elapsed)

	// FEASIBLE and UNKNOWN depend on the time budget, so only proven answers are reused.
	if cacheKey != "" && res.Status.String() == "OPTIMAL" {
		_ = s.cache.Set(ctx, cacheKey, out, s.cfg.CacheTTL)
	}
	return out, nil
}

func (s *TaskSchedulerService) classify(log *zap.Logger, req dto.ScheduleRequest, problem *planner.Problem, err error) error {
	var vErr *planner.ValidationError
	if errors.As(err, &vErr) {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, vErr.Error())
	}
	var mErr *planner.ModelingError
	if errors.As(err, &mErr) {
		return appErrors.Wrap(err, appErrors.ErrUnschedulable.Code, appErrors.ErrUnschedulable.Status, mErr.Error())
	}

	fields := []zap.Field{
		zap.Error(err),
		zap.Int("task_count", len(req.Events)),
		zap.Int("window_count", len(req.ReservedTags)),
		zap.Int("interval_count", len(req.ReservedIntervals)),
	}
	if problem != nil {
		fields = append(fields, zap.Int64("horizon", problem.Horizon))
	}
	log.Error("schedule failed", fields...)
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, appErrors.ErrInternal.Message)
}

// ScheduleExport is a rendered schedule document.
type ScheduleExport struct {
	Filename    string
	ContentType string
	Body        []byte
	Meta        dto.ScheduleMeta
}

// Export solves req and renders the assignment table in format.
func (s *TaskSchedulerService) Export(ctx context.Context, req dto.ScheduleRequest, format string) (*ScheduleExport, error) {
	renderer, err := export.ForFormat(format, "Task schedule")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	result, err := s.Schedule(ctx, req)
	if err != nil {
		return nil, err
	}

	body, err := renderer.Render(ScheduleDataset(result))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, appErrors.ErrInternal.Message)
	}
	return &ScheduleExport{
		Filename:    fmt.Sprintf("schedule-%s.%s", result.Meta.RunID, renderer.Extension()),
		ContentType: renderer.ContentType(),
		Body:        body,
		Meta:        result.Meta,
	}, nil
}

// ScheduleDataset lays out a result as an export table. Late tasks are highlighted.
func ScheduleDataset(result *dto.ScheduleResult) export.Dataset {
	data := export.Dataset{
		Headers: []string{"id", "start", "end", "duration", "present", "late", "delay", "priority"},
		Summary: []string{
			fmt.Sprintf("Status: %s  Found: %t  Solver: %s", result.Meta.Status, result.Response.Found, result.Meta.Solver),
			fmt.Sprintf("Objective: %d  Horizon: %d", result.Meta.Objective, result.Meta.Horizon),
		},
	}
	for _, task := range result.Response.Tasks {
		row := map[string]string{
			"id":       task.ID,
			"start":    strconv.FormatInt(task.Start, 10),
			"end":      strconv.FormatInt(task.End(), 10),
			"duration": strconv.FormatInt(task.Duration, 10),
			"present":  strconv.FormatBool(task.IsPresent),
			"late":     strconv.FormatBool(task.IsLate),
			"delay":    strconv.FormatInt(task.Delay, 10),
			"priority": strconv.FormatInt(task.Priority, 10),
		}
		if !task.IsPresent {
			row["start"], row["end"] = "", ""
		}
		data.Rows = append(data.Rows, row)
		data.Highlight = append(data.Highlight, task.IsLate && task.IsPresent)
	}
	return data
}
