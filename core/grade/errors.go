package grade

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo/core"
)

var (
	// errors
	ErrNotFound              = errors.New("not found")
	ErrInvalidScore          = errors.New("score must be between 0 and the maximum score of the assessment")
	ErrConstraintViolation   = errors.New("constraint violation")
	ErrDownstreamUnavailable = errors.New("downstream service unavailable")
	ErrTimeout               = errors.New("operation timed out")
	ErrAssessmentLocked      = errors.New("assessment is published; scores can no longer be edited")
	ErrImmutableField        = errors.New("this field cannot be changed once scores exist")

	// ErrStateUnchanged is returned by a Repository when a publish transition finds the assessment already in the target state.
	ErrStateUnchanged = errors.New("assessment already in the requested state")
)

func invalidScoreError(score, max float64) error {
	return core.NewValidationError(ErrInvalidScore, core.FieldError{
		Field: "score",
		Error: fmt.Sprintf("score %g is out of range [0, %g]", score, max),
	})
}

func immutableFieldError(field string) error {
	return core.NewValidationError(ErrImmutableField, core.FieldError{Field: field, Error: ErrImmutableField.Error()})
}

// storeErr maps an expired deadline to ErrTimeout and wraps anything else with msg.
// ctx is the bounded context the failed call ran under.
func storeErr(ctx context.Context, err error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.Wrap(ErrTimeout, msg)
	}
	return errors.Wrap(err, msg)
}
