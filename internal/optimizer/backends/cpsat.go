//go:build ortools

package backends

import (
	_ "github.com/noah-isme/task-scheduler-api/internal/optimizer/cpsat"
)
