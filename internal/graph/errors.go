package graph

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSelfDependency      = errors.New("task cannot depend on itself")
	ErrCircularDependency  = errors.New("dependency would create a cycle")
	ErrChainTooDeep        = errors.New("dependency chain too deep")
	ErrCycleDetected       = errors.New("dependency cycle detected")
	ErrEdgeNotFound        = errors.New("dependency not found")
	ErrDuplicateDependency = errors.New("dependency already exists")
)

// GraphError carries the offending task ids alongside one of the
// sentinel errors above. errors.Is matches against Kind.
type GraphError struct {
	Kind error
	Msg  string
}

func (e *GraphError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *GraphError) Unwrap() error { return e.Kind }

func newError(kind error, format string, args ...any) error {
	return &GraphError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func pathError(kind error, path []string) error {
	return &GraphError{Kind: kind, Msg: strings.Join(path, " -> ")}
}

// Code returns the stable machine-readable code for a graph error,
// or an empty string if err is not one.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrSelfDependency):
		return "SELF_DEPENDENCY"
	case errors.Is(err, ErrCircularDependency):
		return "CIRCULAR_DEPENDENCY"
	case errors.Is(err, ErrChainTooDeep):
		return "DEPENDENCY_CHAIN_TOO_DEEP"
	case errors.Is(err, ErrCycleDetected):
		return "CYCLE_DETECTED"
	case errors.Is(err, ErrEdgeNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrDuplicateDependency):
		return "DUPLICATE_DEPENDENCY"
	}
	return ""
}
