package checks

import (
	"context"

	"github.com/pulsewatch/pulsewatch/internal/db"
)

// Result is the unified outcome of a single probe. A failed probe is a
// normal business outcome, never an error: timeouts, refused
// connections and non-2xx responses all land here with Success=false.
type Result struct {
	Success        bool
	StatusCode     *int
	ResponseTimeMs int
	Message        string
	Metrics        db.JSONB
}

// Runner executes one protocol-specific probe against a monitor's
// target. Implementations must honor ctx cancellation and deadline.
type Runner interface {
	Run(ctx context.Context, monitor *db.Monitor) *Result
}
