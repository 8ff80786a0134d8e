package planner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/task-scheduler-api/internal/models"
	"github.com/noah-isme/task-scheduler-api/internal/optimizer"
	"github.com/noah-isme/task-scheduler-api/internal/optimizer/search"
)

type countingSolver struct {
	inner optimizer.Solver
	calls int
}

func (s *countingSolver) Name() string { return "counting" }

func (s *countingSolver) Solve(ctx context.Context, program *optimizer.Program) (*optimizer.Solution, error) {
	s.calls++
	if s.inner == nil {
		return &optimizer.Solution{Status: optimizer.StatusUnknown}, nil
	}
	return s.inner.Solve(ctx, program)
}

type fixedSolver struct {
	solution *optimizer.Solution
	err      error
}

func (s fixedSolver) Name() string { return "fixed" }

func (s fixedSolver) Solve(context.Context, *optimizer.Program) (*optimizer.Solution, error) {
	return s.solution, s.err
}

func newTestPlanner(minHorizon int64) (*Planner, *countingSolver) {
	solver := &countingSolver{inner: search.New(optimizer.Params{TimeLimit: 5 * time.Second})}
	return New(solver, Options{MinHorizon: minHorizon}), solver
}

func requireValidSchedule(t *testing.T, problem *Problem, res *Result) {
	t.Helper()
	require.True(t, res.Found)
	require.NoError(t, Audit(problem, res))
	for _, a := range res.Assignments {
		if !a.IsPresent {
			continue
		}
		start := a.Start - problem.Offset
		assert.GreaterOrEqual(t, start, int64(0), a.ID)
		assert.LessOrEqual(t, start+a.Duration, problem.Horizon, a.ID)
	}
}

func TestPlanTwoIndependentTasks(t *testing.T) {
	planner, _ := newTestPlanner(MinHorizon)
	req := decodeRequest(t, `{"events": [
		{"id": "a", "duration": 3, "impact": 10},
		{"id": "b", "duration": 2, "impact": 10}
	], "reservedTags": [], "start": 0}`)

	problem, res, err := planner.Plan(context.Background(), req)
	require.NoError(t, err)
	requireValidSchedule(t, problem, res)
	assert.Equal(t, optimizer.StatusOptimal, res.Status)

	require.Len(t, res.Assignments, 2)
	a, b := res.Assignments[0], res.Assignments[1]
	assert.Equal(t, "a", a.ID)
	assert.Equal(t, "b", b.ID)
	assert.True(t, a.IsPresent)
	assert.True(t, b.IsPresent)
	assert.True(t, a.End() <= b.Start || b.End() <= a.Start)
	assert.Equal(t, int64(3), a.Duration)
	assert.Equal(t, int64(333*11), a.Priority)
	assert.Equal(t, int64(500*11), b.Priority)
	assert.Equal(t, int64(333*11+500*11), res.Objective)
}

func TestPlanLateTaskUsesLateFactor(t *testing.T) {
	planner, _ := newTestPlanner(30)
	req := decodeRequest(t, `{
		"events": [{"id": "late", "duration": 2, "impact": 10, "dueDate": 10, "maxDueDate": 20}],
		"reservedTags": [{"start": 0, "end": 23, "tags": ["X"]}]
	}`)

	problem, res, err := planner.Plan(context.Background(), req)
	require.NoError(t, err)
	requireValidSchedule(t, problem, res)

	task := res.Assignments[0]
	assert.True(t, task.IsPresent)
	assert.GreaterOrEqual(t, task.Start, int64(23))
	assert.True(t, task.IsLate)
	assert.Less(t, task.Delay, int64(0))
	assert.Equal(t, int64(-100), task.Delay)
	assert.Equal(t, int64(500*100*LateFactor), task.Priority)
}

func TestPlanOnTimeSoftWindow(t *testing.T) {
	planner, _ := newTestPlanner(30)
	req := decodeRequest(t, `{"events": [{"id": "soon", "duration": 2, "impact": 10, "dueDate": 10, "maxDueDate": 20}]}`)

	problem, res, err := planner.Plan(context.Background(), req)
	require.NoError(t, err)
	requireValidSchedule(t, problem, res)

	task := res.Assignments[0]
	assert.Equal(t, int64(0), task.Start)
	assert.False(t, task.IsLate)
	assert.Equal(t, int64(80), task.Delay)
	assert.Equal(t, int64(500*80*OnTimeFactor), task.Priority)
}

func TestPlanRespectsReservedTagWindow(t *testing.T) {
	planner, _ := newTestPlanner(20)
	req := decodeRequest(t, `{
		"events": [{"id": "b", "duration": 2, "impact": 1, "tags": ["B"]}],
		"reservedTags": [{"start": 0, "end": 5, "tags": ["A"]}]
	}`)

	problem, res, err := planner.Plan(context.Background(), req)
	require.NoError(t, err)
	requireValidSchedule(t, problem, res)

	task := res.Assignments[0]
	assert.True(t, task.IsPresent)
	assert.GreaterOrEqual(t, task.Start, int64(5))
}

func TestPlanMatchingTagMayUseWindow(t *testing.T) {
	planner, _ := newTestPlanner(20)
	req := decodeRequest(t, `{
		"events": [{"id": "a", "duration": 2, "impact": 1, "tags": ["A", "C"]}],
		"reservedTags": [{"start": 0, "end": 5, "tags": ["A"]}]
	}`)

	_, res, err := planner.Plan(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Assignments[0].Start)
}

func TestPlanEmptyRequestSkipsSolver(t *testing.T) {
	planner, solver := newTestPlanner(MinHorizon)

	_, res, err := planner.Plan(context.Background(), decodeRequest(t, `{"events": [], "reservedTags": []}`))
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.NotNil(t, res.Assignments)
	assert.Empty(t, res.Assignments)
	assert.Zero(t, solver.calls)
}

func TestPlanShiftsStartsBackToOffset(t *testing.T) {
	planner, _ := newTestPlanner(30)
	req := decodeRequest(t, `{
		"events": [{"id": "a", "duration": 2, "impact": 10, "dueDate": 110, "maxDueDate": 120}],
		"reservedTags": [{"start": 95, "end": 105, "tags": ["A"]}],
		"start": 100
	}`)

	problem, res, err := planner.Plan(context.Background(), req)
	require.NoError(t, err)
	requireValidSchedule(t, problem, res)

	// ending at maxDueDate (|delay| 100, late factor) outscores starting at 105 (delay 30)
	task := res.Assignments[0]
	assert.Equal(t, int64(118), task.Start)
	assert.Equal(t, int64(-100), task.Delay)
	assert.True(t, task.IsLate)
}

func TestPlanAvoidsBusyIntervals(t *testing.T) {
	planner, _ := newTestPlanner(20)
	req := decodeRequest(t, `{
		"events": [{"id": "a", "duration": 3, "impact": 1, "tags": ["A"]}],
		"reservedIntervals": [
			{"id": "meeting", "start": 0, "end": 4},
			{"id": "tentative", "start": 4, "end": 10, "isTransparent": true}
		]
	}`)

	problem, res, err := planner.Plan(context.Background(), req)
	require.NoError(t, err)
	requireValidSchedule(t, problem, res)
	assert.Equal(t, int64(4), res.Assignments[0].Start)
}

func TestPlanMandatoryTaskWithoutRoomIsNotFound(t *testing.T) {
	planner, solver := newTestPlanner(20)
	req := decodeRequest(t, `{
		"events": [{"id": "a", "duration": 3, "impact": 1, "maxDueDate": 20}],
		"reservedIntervals": [{"id": "all-day", "start": 0, "end": 20}]
	}`)

	_, res, err := planner.Plan(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Equal(t, optimizer.StatusInfeasible, res.Status)
	assert.Empty(t, res.Assignments)
	assert.Equal(t, 1, solver.calls)
}

func TestPlanOptionalTaskIsDroppedWhenItCannotFit(t *testing.T) {
	planner, _ := newTestPlanner(10)
	req := decodeRequest(t, `{
		"events": [
			{"id": "keep", "duration": 6, "impact": 60, "maxDueDate": 10},
			{"id": "drop", "duration": 5, "impact": 1}
		]
	}`)

	problem, res, err := planner.Plan(context.Background(), req)
	require.NoError(t, err)
	requireValidSchedule(t, problem, res)
	assert.True(t, res.Assignments[0].IsPresent)
	assert.False(t, res.Assignments[1].IsPresent)
	assert.Zero(t, res.Assignments[1].Priority)
}

func TestPlanDurationBeyondHorizon(t *testing.T) {
	planner, solver := newTestPlanner(20)
	req := decodeRequest(t, `{"events": [{"id": "long", "duration": 50}]}`)

	_, _, err := planner.Plan(context.Background(), req)
	var mErr *ModelingError
	require.True(t, errors.As(err, &mErr))
	assert.Equal(t, "long", mErr.TaskID)
	assert.Zero(t, solver.calls)
}

func TestPlanIsDeterministicInObjective(t *testing.T) {
	body := `{
		"events": [
			{"id": "a", "duration": 2, "impact": 5, "tags": ["x"]},
			{"id": "b", "duration": 3, "impact": 9, "tags": ["y"]},
			{"id": "c", "duration": 1, "impact": 2, "dueDate": 4, "maxDueDate": 8, "tags": ["x", "y"]}
		],
		"reservedTags": [{"start": 0, "end": 3, "tags": ["y"]}, {"start": 6, "end": 8, "tags": ["x"]}]
	}`
	planner, _ := newTestPlanner(12)

	problem, first, err := planner.Plan(context.Background(), decodeRequest(t, body))
	require.NoError(t, err)
	requireValidSchedule(t, problem, first)

	_, second, err := planner.Plan(context.Background(), decodeRequest(t, body))
	require.NoError(t, err)
	assert.Equal(t, first.Objective, second.Objective)
}

func newDefaultPlanner() *Planner {
	return New(search.New(optimizer.Params{TimeLimit: 5 * time.Second}), DefaultOptions())
}

func TestPlanLateScenarioAtDefaultHorizon(t *testing.T) {
	req := decodeRequest(t, `{
		"events": [{"id": "late", "duration": 2, "impact": 10, "dueDate": 10, "maxDueDate": 20}],
		"reservedTags": [{"start": 0, "end": 23, "tags": ["X"]}]
	}`)

	problem, res, err := newDefaultPlanner().Plan(context.Background(), req)
	require.NoError(t, err)
	requireValidSchedule(t, problem, res)
	assert.Equal(t, MinHorizon, problem.Horizon)
	require.Equal(t, optimizer.StatusOptimal, res.Status)

	task := res.Assignments[0]
	assert.Equal(t, int64(23), task.Start)
	assert.Equal(t, int64(25), task.End())
	assert.True(t, task.IsLate)
	assert.Equal(t, int64(-100), task.Delay)
	assert.Equal(t, int64(500*100*LateFactor), task.Priority)
}

func TestPlanReservedWindowAtDefaultHorizon(t *testing.T) {
	req := decodeRequest(t, `{
		"events": [{"id": "b", "duration": 2, "impact": 1, "tags": ["B"]}],
		"reservedTags": [{"start": 0, "end": 5, "tags": ["A"]}]
	}`)

	problem, res, err := newDefaultPlanner().Plan(context.Background(), req)
	require.NoError(t, err)
	requireValidSchedule(t, problem, res)
	require.Equal(t, optimizer.StatusOptimal, res.Status)
	assert.Equal(t, int64(5), res.Assignments[0].Start)
}

func TestPlanHardPointForcesPresenceWithoutBoundingEnd(t *testing.T) {
	req := decodeRequest(t, `{
		"events": [{"id": "pinned", "duration": 5, "impact": 4, "dueDate": 10, "maxDueDate": 10}],
		"reservedIntervals": [{"id": "busy", "start": 0, "end": 50}]
	}`)

	problem, res, err := newDefaultPlanner().Plan(context.Background(), req)
	require.NoError(t, err)
	requireValidSchedule(t, problem, res)
	require.Equal(t, optimizer.StatusOptimal, res.Status)
	require.True(t, res.Found)

	task := res.Assignments[0]
	assert.True(t, task.IsPresent)
	assert.GreaterOrEqual(t, task.Start, int64(50))
	assert.Greater(t, task.End(), int64(10))
	assert.Zero(t, task.Delay)
	assert.False(t, task.IsLate)
}

func TestPlanCompetingSoftWindowsAtDefaultHorizon(t *testing.T) {
	req := decodeRequest(t, `{"events": [
		{"id": "a", "duration": 5, "impact": 10, "dueDate": 10, "maxDueDate": 20},
		{"id": "b", "duration": 5, "impact": 10, "dueDate": 10, "maxDueDate": 20},
		{"id": "c", "duration": 5, "impact": 10, "dueDate": 10, "maxDueDate": 20}
	]}`)

	problem, res, err := newDefaultPlanner().Plan(context.Background(), req)
	require.NoError(t, err)
	requireValidSchedule(t, problem, res)
	require.Equal(t, optimizer.StatusOptimal, res.Status)

	// each task scores 200*100*8 once it ends at or after maxDueDate
	assert.Equal(t, int64(3*160000), res.Objective)
	for _, a := range res.Assignments {
		assert.True(t, a.IsLate, a.ID)
		assert.Equal(t, int64(-100), a.Delay, a.ID)
		assert.GreaterOrEqual(t, a.End(), int64(20), a.ID)
	}
}

const offsetBusyRequest = `{
	"start": 5700000,
	"events": [
		{"id": "e1", "duration": 30, "impact": 3, "dueDate": 5700040, "maxDueDate": 5700100},
		{"id": "e2", "duration": 45, "impact": 5, "dueDate": 5700050, "maxDueDate": 5700150},
		{"id": "e3", "duration": 20, "impact": 2, "dueDate": 5700020, "maxDueDate": 5700080},
		{"id": "e4", "duration": 60, "impact": 8, "dueDate": 5700090, "maxDueDate": 5700240},
		{"id": "e5", "duration": 15, "impact": 1, "dueDate": 5700010, "maxDueDate": 5700060}
	],
	"reservedTags": [],
	"reservedIntervals": [
		{"id": "standup", "start": 5700100, "end": 5700200},
		{"id": "review", "start": 5700300, "end": 5700310}
	]
}`

func TestPlanOffsetRequestWithBusyIntervalsIsOptimal(t *testing.T) {
	problem, res, err := newDefaultPlanner().Plan(context.Background(), decodeRequest(t, offsetBusyRequest))
	require.NoError(t, err)
	requireValidSchedule(t, problem, res)
	require.Equal(t, optimizer.StatusOptimal, res.Status)

	// raw priorities 10, 11, 10, 13 and 6, each at |delay| 100 with the late factor
	assert.Equal(t, int64(50*100*LateFactor), res.Objective)
	for _, a := range res.Assignments {
		assert.True(t, a.IsPresent, a.ID)
		assert.True(t, a.IsLate, a.ID)
		assert.Equal(t, int64(-100), a.Delay, a.ID)
	}
}

func TestPlanRepeatedSolveIsStableAtDefaultHorizon(t *testing.T) {
	planner := newDefaultPlanner()

	_, first, err := planner.Plan(context.Background(), decodeRequest(t, offsetBusyRequest))
	require.NoError(t, err)
	_, second, err := planner.Plan(context.Background(), decodeRequest(t, offsetBusyRequest))
	require.NoError(t, err)

	require.Equal(t, optimizer.StatusOptimal, first.Status)
	require.Equal(t, optimizer.StatusOptimal, second.Status)
	assert.Equal(t, first.Objective, second.Objective)
	assert.Equal(t, first.Stats.Branches, second.Stats.Branches)
	assert.Equal(t, first.Assignments, second.Assignments)
}

func TestSolvePropagatesSolverError(t *testing.T) {
	planner := New(fixedSolver{err: errors.New("backend down")}, Options{MinHorizon: 10})
	problem := &Problem{Tasks: []models.Task{{ID: "a", Duration: 1}}, Horizon: 10}

	_, err := planner.Solve(context.Background(), problem)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend down")
}

func TestSolveRejectsInconsistentSolution(t *testing.T) {
	problem := &Problem{
		Tasks: []models.Task{
			{ID: "a", Duration: 4, Impact: 4},
			{ID: "b", Duration: 4, Impact: 4},
		},
		Horizon: 10,
	}
	program := optimizer.NewProgram()
	f, err := Build(program, problem)
	require.NoError(t, err)

	values := make([]int64, len(program.Vars))
	for _, tv := range f.Tasks {
		values[tv.Start] = 0
		values[tv.End] = 4
		values[tv.Present] = 1
		values[tv.Priority] = tv.Raw * OnTimeFactor
	}
	sol := &optimizer.Solution{Status: optimizer.StatusFeasible, Values: values}

	planner := New(fixedSolver{solution: sol}, Options{MinHorizon: 10})
	_, err = planner.Solve(context.Background(), problem)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overlap")
}

func TestDecodeNotFound(t *testing.T) {
	problem := &Problem{Tasks: []models.Task{{ID: "a", Duration: 1}}, Horizon: 10}
	program := optimizer.NewProgram()
	f, err := Build(program, problem)
	require.NoError(t, err)

	for _, status := range []optimizer.Status{optimizer.StatusInfeasible, optimizer.StatusUnknown} {
		res := Decode(f, &optimizer.Solution{Status: status, Values: make([]int64, len(program.Vars))})
		assert.False(t, res.Found)
		assert.NotNil(t, res.Assignments)
		assert.Empty(t, res.Assignments)
		assert.Equal(t, int64(10), res.Horizon)
	}
}

func TestPlanUnknownStatusIsNotFound(t *testing.T) {
	solver := &countingSolver{}
	planner := New(solver, Options{MinHorizon: 10})

	_, res, err := planner.Plan(context.Background(), decodeRequest(t, `{"events": [{"id": "a", "duration": 1}]}`))
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Equal(t, optimizer.StatusUnknown, res.Status)
	assert.Empty(t, res.Assignments)
	assert.Equal(t, 1, solver.calls)
}
