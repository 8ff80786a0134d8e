package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/task-scheduler-api/internal/dto"
	"github.com/noah-isme/task-scheduler-api/internal/ingest"
	"github.com/noah-isme/task-scheduler-api/internal/optimizer"
	"github.com/noah-isme/task-scheduler-api/internal/planner"
	"github.com/noah-isme/task-scheduler-api/internal/service"
)

type solveOptions struct {
	input     string
	tables    ingest.Tables
	backend   string
	timeLimit time.Duration
	timeout   time.Duration
	workers   int
	output    string
	withMeta  bool
}

func newSolveCmd(root *rootOptions) *cobra.Command {
	opts := &solveOptions{}

	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Solve a scheduling request",
		Long: `Solve reads one request, either a JSON/YAML document (--input) or a set of
semicolon separated tables (--tasks, --tags, --intervals), and prints the schedule.

A request without a feasible schedule is not an error: the output reports found=false.`,
		Example: `  scheduler-cli solve --input request.yaml --output table
  scheduler-cli solve --tasks data/tasks.csv --tags data/tags.csv --start 0`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := opts.request(cmd.InOrStdin())
			if err != nil {
				return err
			}
			svc, err := opts.service(root)
			if err != nil {
				return err
			}
			result, err := svc.Schedule(cmd.Context(), req)
			if err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), opts.output, opts.withMeta, result)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.input, "input", "i", "", "Request document (.json, .yaml, .yml, or - for JSON on stdin)")
	f.StringVar(&opts.tables.Tasks, "tasks", "", "Semicolon separated task table")
	f.StringVar(&opts.tables.Tags, "tags", "", "Semicolon separated reserved tag window table")
	f.StringVar(&opts.tables.Intervals, "intervals", "", "Semicolon separated busy interval table")
	f.StringVar(&opts.tables.Start, "start", "0", "Timeline origin for table input")
	f.BoolVar(&opts.tables.Merge, "merge-tags", false, "Merge overlapping reserved tag windows")
	f.StringVar(&opts.backend, "backend", "", "Optimizer backend (default SOLVER_BACKEND)")
	f.DurationVar(&opts.timeLimit, "time-limit", 0, "Solver search budget (default SOLVER_TIME_LIMIT)")
	f.DurationVar(&opts.timeout, "timeout", 0, "Overall deadline (default SOLVE_TIMEOUT)")
	f.IntVar(&opts.workers, "workers", 0, "Solver worker hint (default SOLVER_WORKERS)")
	f.StringVarP(&opts.output, "output", "o", "json", "Output format (json, yaml, table)")
	f.BoolVar(&opts.withMeta, "meta", false, "Include solver diagnostics in json/yaml output")
	cmd.MarkFlagsMutuallyExclusive("input", "tasks")

	return cmd
}

func (o *solveOptions) request(stdin io.Reader) (dto.ScheduleRequest, error) {
	switch {
	case o.input != "":
		return ingest.LoadRequest(o.input, stdin)
	case o.tables.Tasks != "":
		return ingest.LoadTables(o.tables)
	default:
		return dto.ScheduleRequest{}, errors.New("either --input or --tasks is required")
	}
}

func (o *solveOptions) service(root *rootOptions) (*service.TaskSchedulerService, error) {
	cfg := root.cfg
	backend := cfg.Solver.Backend
	if o.backend != "" {
		backend = o.backend
	}
	params := optimizer.Params{TimeLimit: cfg.Solver.TimeLimit, Workers: cfg.Solver.Workers}
	if o.timeLimit > 0 {
		params.TimeLimit = o.timeLimit
	}
	if o.workers > 0 {
		params.Workers = o.workers
	}
	timeout := cfg.Solver.Timeout
	if o.timeout > 0 {
		timeout = o.timeout
	}

	solver, err := optimizer.New(backend, params)
	if err != nil {
		return nil, fmt.Errorf("%w (available: %v)", err, optimizer.Backends())
	}
	p := planner.New(solver, planner.Options{MinHorizon: cfg.Scheduler.MinHorizon, MaxTasks: cfg.Scheduler.MaxTasks})
	return service.NewTaskSchedulerService(p, validator.New(), nil, nil, root.log, service.TaskSchedulerConfig{
		SolverName: solver.Name(),
		Timeout:    timeout,
	}), nil
}

func writeResult(w io.Writer, format string, withMeta bool, result *dto.ScheduleResult) error {
	var payload interface{} = result.Response
	if withMeta {
		payload = result
	}

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(payload); err != nil {
			return err
		}
		return enc.Close()
	case "table":
		return writeTable(w, result)
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

func writeTable(w io.Writer, result *dto.ScheduleResult) error {
	meta := result.Meta
	fmt.Fprintf(w, "found=%t status=%s objective=%d horizon=%d solver=%s time=%dms\n",
		result.Response.Found, meta.Status, meta.Objective, meta.Horizon, meta.Solver, meta.WallTimeMs)
	if len(result.Response.Tasks) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTART\tEND\tDURATION\tPRESENT\tLATE\tDELAY\tPRIORITY")
	for _, task := range result.Response.Tasks {
		start, end := "-", "-"
		if task.IsPresent {
			start = strconv.FormatInt(task.Start, 10)
			end = strconv.FormatInt(task.End(), 10)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%t\t%t\t%d\t%d\n",
			task.ID, start, end, task.Duration, task.IsPresent, task.IsLate, task.Delay, task.Priority)
	}
	return tw.Flush()
}
