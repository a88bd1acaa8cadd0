package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo/core/grade"
)

type gradeApi struct {
	deps ServerDeps
}

func registerGradeAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := gradeApi{deps: deps}

	ag := g.Group("", jwt)

	// assessments & score cells
	asg := ag.Group("/assessments")
	asg.POST("", api.createAssessment, staffMiddleware())
	asg.GET("/:id", api.retrieveAssessment)
	asg.PATCH("/:id", api.updateAssessment, staffMiddleware())
	asg.PUT("/:id/scores/:student_id", api.saveScore, staffMiddleware())
	asg.POST("/:id/publish", api.publish, staffMiddleware())
	asg.POST("/:id/unpublish", api.unpublish, staffMiddleware())
	asg.POST("/:id/sweep", api.sweep, staffMiddleware())

	// aggregation
	ag.GET("/students/:id/subjects/:subject_id/average", api.subjectAverage)
	ag.GET("/students/:id/transcript", api.transcript)
	ag.GET("/classes/:id/ranking", api.ranking)
	ag.GET("/classes/:id/leaderboard", api.leaderboard)
}

// Handlers

func (api *gradeApi) createAssessment(ctx echo.Context) error {
	var data grade.NewAssessment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssessment")
	}

	a, err := api.deps.Assessments.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating assessment")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *gradeApi) retrieveAssessment(ctx echo.Context) error {
	a, err := api.deps.Assessments.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting assessment")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *gradeApi) updateAssessment(ctx echo.Context) error {
	var data grade.UpdateAssessment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAssessment")
	}

	a, err := api.deps.Assessments.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating assessment")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *gradeApi) saveScore(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}

	var data SaveScoreRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SaveScoreRequest")
	}
	if err = data.Validate(api.deps.Validate); err != nil {
		return err
	}

	g, err := api.deps.Writer.SaveScore(ctx.Request().Context(), grade.SaveScore{
		AssessmentID: ctx.Param("id"),
		StudentID:    ctx.Param("student_id"),
		Score:        *data.Score,
		ActorID:      actor.ID,
	})
	if err != nil {
		return errors.Wrap(err, "saving score")
	}
	return ctx.JSON(http.StatusOK, g)
}

func (api *gradeApi) publish(ctx echo.Context) error {
	return api.transition(ctx, api.deps.Publisher.Publish, "publishing assessment")
}

func (api *gradeApi) unpublish(ctx echo.Context) error {
	return api.transition(ctx, api.deps.Publisher.Unpublish, "unpublishing assessment")
}

func (api *gradeApi) sweep(ctx echo.Context) error {
	return api.transition(ctx, api.deps.Publisher.Sweep, "publishing late grades")
}

type transitionFunc func(ctx context.Context, assessmentID, actorID string) (grade.PublishResult, error)

func (api *gradeApi) transition(ctx echo.Context, fn transitionFunc, msg string) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}

	res, err := fn(ctx.Request().Context(), ctx.Param("id"), actor.ID)
	if err != nil {
		return errors.Wrap(err, msg)
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *gradeApi) subjectAverage(ctx echo.Context) error {
	var q AverageQuery
	if err := q.Bind(ctx, api.deps.Validate); err != nil {
		return err
	}

	avg, err := api.deps.Engine.SubjectAverage(ctx.Request().Context(), ctx.Param("id"), ctx.Param("subject_id"), q.SemesterID)
	if err != nil {
		return errors.Wrap(err, "computing subject average")
	}
	return ctx.JSON(http.StatusOK, avg)
}

func (api *gradeApi) ranking(ctx echo.Context) error {
	var q SemesterQuery
	if err := q.Bind(ctx, api.deps.Validate); err != nil {
		return err
	}

	rows, err := api.deps.Engine.ClassRanking(ctx.Param("id"), q.SemesterID).All(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "ranking class")
	}
	if rows == nil {
		rows = []grade.ClassRankRow{}
	}
	return ctx.JSON(http.StatusOK, rows)
}

func (api *gradeApi) transcript(ctx echo.Context) error {
	var q SemesterQuery
	if err := q.Bind(ctx, api.deps.Validate); err != nil {
		return err
	}

	tr, err := api.deps.Reports.Transcript(ctx.Request().Context(), ctx.Param("id"), q.SemesterID)
	if err != nil {
		return errors.Wrap(err, "building transcript")
	}
	return ctx.JSON(http.StatusOK, tr)
}

func (api *gradeApi) leaderboard(ctx echo.Context) error {
	var q SemesterQuery
	if err := q.Bind(ctx, api.deps.Validate); err != nil {
		return err
	}

	lb, err := api.deps.Reports.Leaderboard(ctx.Request().Context(), ctx.Param("id"), q.SemesterID)
	if err != nil {
		return errors.Wrap(err, "building leaderboard")
	}
	return ctx.JSON(http.StatusOK, lb)
}
