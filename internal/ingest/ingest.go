// Package ingest loads scheduling requests from files: JSON or YAML request
// documents, or semicolon separated task and tag tables.
package ingest

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/noah-isme/task-scheduler-api/internal/dto"
)

// Format names a request document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath infers the document format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("cannot infer request format from %q: use .json, .yaml or .yml", path)
	}
}

// LoadRequest reads a request document from path. "-" reads JSON from stdin.
func LoadRequest(path string, stdin io.Reader) (dto.ScheduleRequest, error) {
	if path == "-" {
		return DecodeRequest(stdin, FormatJSON)
	}
	format, err := FormatFromPath(path)
	if err != nil {
		return dto.ScheduleRequest{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return dto.ScheduleRequest{}, fmt.Errorf("open request: %w", err)
	}
	defer f.Close()
	return DecodeRequest(f, format)
}

// DecodeRequest decodes one request document.
func DecodeRequest(r io.Reader, format Format) (dto.ScheduleRequest, error) {
	var req dto.ScheduleRequest
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(r)
		if err := dec.Decode(&req); err != nil {
			return req, fmt.Errorf("decode json request: %w", err)
		}
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			return req, fmt.Errorf("decode yaml request: %w", err)
		}
	default:
		return req, fmt.Errorf("unsupported request format %q", format)
	}
	return req, nil
}

// Tables names the files of a table based request. Intervals is optional.
type Tables struct {
	Tasks     string
	Tags      string
	Intervals string
	Start     string
	Merge     bool
}

// LoadTables assembles a request from semicolon separated tables.
func LoadTables(t Tables) (dto.ScheduleRequest, error) {
	req := dto.ScheduleRequest{Start: dto.Scalar(strings.TrimSpace(t.Start)), MergeReservedTags: t.Merge}

	if t.Tasks == "" {
		return req, errors.New("a tasks table is required")
	}
	if err := withFile(t.Tasks, func(r io.Reader) (err error) {
		req.Events, err = ReadTasks(r)
		return err
	}); err != nil {
		return req, err
	}
	if t.Tags != "" {
		if err := withFile(t.Tags, func(r io.Reader) (err error) {
			req.ReservedTags, err = ReadTagWindows(r)
			return err
		}); err != nil {
			return req, err
		}
	}
	if t.Intervals != "" {
		if err := withFile(t.Intervals, func(r io.Reader) (err error) {
			req.ReservedIntervals, err = ReadIntervals(r)
			return err
		}); err != nil {
			return req, err
		}
	}
	return req, nil
}

func withFile(path string, fn func(io.Reader) error) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := fn(bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return nil
}

// ReadTasks parses a task table with columns id, duration, impact, dueDate,
// maxDueDate and tags. Only id and duration are required. Tags inside a cell
// are comma separated.
func ReadTasks(r io.Reader) ([]dto.ScheduleEvent, error) {
	tbl, err := readTable(r, "id", "duration")
	if err != nil {
		return nil, err
	}
	events := make([]dto.ScheduleEvent, 0, len(tbl.rows))
	for _, row := range tbl.rows {
		events = append(events, dto.ScheduleEvent{
			ID:         tbl.scalar(row, "id"),
			Duration:   tbl.scalar(row, "duration"),
			Impact:     tbl.scalar(row, "impact"),
			DueDate:    tbl.scalar(row, "duedate"),
			MaxDueDate: tbl.scalar(row, "maxduedate"),
			Tags:       splitTags(tbl.cell(row, "tags")),
		})
	}
	return events, nil
}

// ReadTagWindows parses a reserved window table with columns start, end and tags.
func ReadTagWindows(r io.Reader) ([]dto.ReservedTagWindow, error) {
	tbl, err := readTable(r, "start", "end", "tags")
	if err != nil {
		return nil, err
	}
	windows := make([]dto.ReservedTagWindow, 0, len(tbl.rows))
	for _, row := range tbl.rows {
		windows = append(windows, dto.ReservedTagWindow{
			ID:    tbl.scalar(row, "id"),
			Start: tbl.scalar(row, "start"),
			End:   tbl.scalar(row, "end"),
			Tags:  splitTags(tbl.cell(row, "tags")),
		})
	}
	return windows, nil
}

// ReadIntervals parses a busy interval table with columns id, start, end and
// an optional isTransparent flag.
func ReadIntervals(r io.Reader) ([]dto.ReservedInterval, error) {
	tbl, err := readTable(r, "start", "end")
	if err != nil {
		return nil, err
	}
	intervals := make([]dto.ReservedInterval, 0, len(tbl.rows))
	for i, row := range tbl.rows {
		transparent := false
		if raw := tbl.cell(row, "istransparent"); raw != "" {
			transparent, err = strconv.ParseBool(raw)
			if err != nil {
				return nil, fmt.Errorf("row %d: isTransparent: %w", i+2, err)
			}
		}
		intervals = append(intervals, dto.ReservedInterval{
			ID:            tbl.scalar(row, "id"),
			Start:         tbl.scalar(row, "start"),
			End:           tbl.scalar(row, "end"),
			IsTransparent: transparent,
		})
	}
	return intervals, nil
}

type table struct {
	columns map[string]int
	rows    [][]string
}

func readTable(r io.Reader, required ...string) (*table, error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse table: %w", err)
	}
	if len(records) == 0 {
		return nil, errors.New("table has no header row")
	}

	tbl := &table{columns: make(map[string]int, len(records[0]))}
	for i, name := range records[0] {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if key != "" {
			tbl.columns[key] = i
		}
	}
	for _, name := range required {
		if _, ok := tbl.columns[name]; !ok {
			return nil, fmt.Errorf("missing required column %q", name)
		}
	}
	for _, record := range records[1:] {
		if blank(record) {
			continue
		}
		tbl.rows = append(tbl.rows, record)
	}
	return tbl, nil
}

func (t *table) cell(row []string, column string) string {
	idx, ok := t.columns[column]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func (t *table) scalar(row []string, column string) dto.Scalar {
	return dto.Scalar(t.cell(row, column))
}

func blank(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

func splitTags(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		if tag := strings.TrimSpace(part); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
