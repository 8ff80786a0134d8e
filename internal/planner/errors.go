package planner

import "fmt"

// ValidationError reports a malformed or inconsistent input record.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ModelingError reports a well-formed request that cannot be turned into a
// model, such as a task longer than the horizon.
type ModelingError struct {
	TaskID  string
	Message string
}

func (e *ModelingError) Error() string {
	if e.TaskID == "" {
		return e.Message
	}
	return fmt.Sprintf("task %s: %s", e.TaskID, e.Message)
}
