package app

import (
	"time"

	"github.com/google/uuid"
)

// Operation identifies one CLI invocation. Its ID tags every line the
// invocation writes to the log file.
type Operation struct {
	Name      string
	ID        string
	StartedAt time.Time
}

// NewOperation starts an Operation named after the CLI command.
func NewOperation(name string, now time.Time) Operation {
	now = now.UTC()
	return Operation{
		Name:      name,
		ID:        name + "-" + now.Format("20060102T150405Z") + "-" + uuid.NewString()[:8],
		StartedAt: now,
	}
}
