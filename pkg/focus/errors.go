package focus

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned by FocusConfig.Validate and NewController.
	ErrInvalidConfig = errors.New("invalid focus config")
	ErrInvalidRole   = errors.New("invalid turn role")
	ErrInvalidBudget = errors.New("invalid token budget")

	// ErrDependency matches every failure of a VectorEncoder or
	// TextShortener surfaced by the store or the controller.
	ErrDependency = errors.New("focus dependency failed")
)

// DependencyError wraps a collaborator failure with the operation that
// triggered it. TurnID is 0 when no stored turn was involved.
type DependencyError struct {
	Op     string
	TurnID int
	Err    error
}

func (e *DependencyError) Error() string {
	if e.TurnID > 0 {
		return fmt.Sprintf("%s (turn %d): %v", e.Op, e.TurnID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *DependencyError) Unwrap() []error {
	return []error{ErrDependency, e.Err}
}
