package scheduler

import (
	"errors"

	"github.com/adanyl0v/go-planner/internal/graph"
)

var (
	ErrInvalidWindow     = errors.New("invalid scheduling window")
	ErrInvalidStrategy   = errors.New("unknown scheduling strategy")
	ErrRunBudgetExceeded = errors.New("scheduling run exceeded its budget")
)

// Code maps run-fatal errors to their machine-readable code. Graph
// integrity errors keep the codes assigned by the graph package.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrInvalidWindow):
		return "INVALID_WINDOW"
	case errors.Is(err, ErrInvalidStrategy):
		return "INVALID_STRATEGY"
	case errors.Is(err, ErrRunBudgetExceeded):
		return "RUN_BUDGET_EXCEEDED"
	}
	return graph.Code(err)
}
