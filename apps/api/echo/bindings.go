package echoapi

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// SaveScoreRequest is the body of a score cell edit. A nil Score is a missing one, not a zero.
type SaveScoreRequest struct {
	Score *float64 `json:"score" validate:"required"`
}

func (r SaveScoreRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(r)
}

// SemesterQuery scopes the aggregation endpoints.
type SemesterQuery struct {
	SemesterID string `json:"semester_id" query:"semester_id" validate:"required,notblank"`
}

func (q *SemesterQuery) Bind(ctx echo.Context, validate *validator.Validate) error {
	q.SemesterID = ctx.QueryParam("semester_id")
	return errors.WithStack(validate.Struct(q))
}

// AverageQuery optionally scopes a subject average to one semester.
type AverageQuery struct {
	SemesterID string `json:"semester_id" query:"semester_id" validate:"omitempty,notblank"`
}

func (q *AverageQuery) Bind(ctx echo.Context, validate *validator.Validate) error {
	q.SemesterID = ctx.QueryParam("semester_id")
	return errors.WithStack(validate.Struct(q))
}
