// Package backends registers every optimizer backend compiled into the binary.
// Import it for side effects.
package backends

import (
	// pure-Go branch and bound, always available
	_ "github.com/noah-isme/task-scheduler-api/internal/optimizer/search"
)
