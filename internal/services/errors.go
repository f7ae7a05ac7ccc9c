package services

import (
	"errors"
	"fmt"
	"strings"

	"weft/internal/account"
	"weft/internal/journal"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrUnauthorized  = errors.New("not authorized")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// Wrap builds an error message that includes the operation context while tagging
// it with the provided marker for later state classification. The marker should
// be one of the exported sentinel errors above.
func Wrap(marker error, operation, step, message string, err error) error {
	detail := buildDetail(operation, step, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// FailureState maps a job error to the journal state the worker should persist.
// Work the worker refused to run is recorded as rejected; everything else failed.
func FailureState(err error) journal.State {
	switch {
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrValidation):
		return journal.StateRejected
	case errors.Is(err, ErrConfiguration), account.IsConfiguration(err):
		return journal.StateRejected
	default:
		return journal.StateFailed
	}
}

func buildDetail(operation, step, message string) string {
	parts := make([]string, 0, 3)
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if step = strings.TrimSpace(step); step != "" {
		parts = append(parts, step)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "worker failure"
	}
	return strings.Join(parts, ": ")
}
