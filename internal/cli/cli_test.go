package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/task-scheduler-api/internal/dto"
	_ "github.com/noah-isme/task-scheduler-api/internal/optimizer/backends"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("SCHEDULER_MIN_HORIZON", "40")
	t.Setenv("SOLVER_BACKEND", "search")
	t.Setenv("LOG_LEVEL", "error")

	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func testdata(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestSolveJSONInput(t *testing.T) {
	input := testdata(t, "request.json", `{"events":[{"id":"a","duration":5,"impact":2},{"id":"b","duration":4,"impact":1}],"reservedTags":[],"start":0}`)

	out, err := runCLI(t, "solve", "--input", input)
	require.NoError(t, err)

	var resp dto.ScheduleResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Found)
	require.Len(t, resp.Tasks, 2)
	assert.Equal(t, "a", resp.Tasks[0].ID)
	assert.True(t, resp.Tasks[0].IsPresent)
	assert.True(t, resp.Tasks[1].IsPresent)
}

func TestSolveTablesToYAML(t *testing.T) {
	tasks := testdata(t, "tasks.csv", "id;duration;impact;dueDate;maxDueDate;tags\na;5;1;;;x\n")
	tags := testdata(t, "tags.csv", "start;end;tags\n0;10;y\n")

	out, err := runCLI(t, "solve", "--tasks", tasks, "--tags", tags, "--output", "yaml", "--meta")
	require.NoError(t, err)

	var result dto.ScheduleResult
	require.NoError(t, yaml.Unmarshal([]byte(out), &result))
	assert.True(t, result.Response.Found)
	require.Len(t, result.Response.Tasks, 1)
	assert.GreaterOrEqual(t, result.Response.Tasks[0].Start, int64(10))
	assert.Equal(t, "OPTIMAL", result.Meta.Status)
	assert.Equal(t, "search", result.Meta.Solver)
}

func TestSolveTableOutput(t *testing.T) {
	input := testdata(t, "request.yaml", "events:\n  - id: only\n    duration: 3\n    impact: 1\nstart: 100\n")

	out, err := runCLI(t, "solve", "-i", input, "-o", "table")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "found=true status=OPTIMAL"))
	assert.Contains(t, out, "PRIORITY")
	assert.Contains(t, out, "only")
}

func TestSolveErrors(t *testing.T) {
	_, err := runCLI(t, "solve")
	assert.Error(t, err)

	input := testdata(t, "bad.json", `{"events":[{"id":"a","duration":"x"}]}`)
	_, err = runCLI(t, "solve", "--input", input)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "events[0].duration")

	good := testdata(t, "ok.json", `{"events":[]}`)
	_, err = runCLI(t, "solve", "--input", good, "--backend", "missing")
	assert.Error(t, err)

	_, err = runCLI(t, "solve", "--input", good, "--output", "xml")
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "scheduler-cli dev")
	assert.Contains(t, out, "search")
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-secret")
	out, err := runCLI(t, "token", "--client", "batch")
	require.NoError(t, err)
	assert.Equal(t, 3, len(strings.Split(strings.TrimSpace(out), ".")))

	_, err = runCLI(t, "token")
	assert.Error(t, err)
}
