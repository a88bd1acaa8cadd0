package grade_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo/core"
	"github.com/trezcool/masomo/core/grade"
)

func TestService_Create(t *testing.T) {
	e := newEnv(t)

	na := e.fx.NewAssessment(e.fx.EnglishCS, "  Essay  ", 20, 30)
	na.Type = " Project "
	a, err := e.svc.Create(context.Background(), na)
	require.NoError(t, err)

	assert.NotEmpty(t, a.ID)
	assert.Equal(t, "Essay", a.Title)
	assert.Equal(t, grade.TypeProject, a.Type)
	assert.Equal(t, e.fx.ClassID, a.ClassID)
	assert.Equal(t, e.fx.English.ID, a.SubjectID)
	assert.Equal(t, e.fx.TeacherID, a.TeacherID)
	assert.Equal(t, e.fx.AcademicYearID, a.AcademicYearID)
	assert.False(t, a.IsPublished)
	assert.Equal(t, frozenNow, a.CreatedAt)
}

func TestService_Create_invalid(t *testing.T) {
	e := newEnv(t)

	tests := []struct {
		name      string
		edit      func(*grade.NewAssessment)
		wantField string
	}{
		{name: "blank title", edit: func(na *grade.NewAssessment) { na.Title = " " }, wantField: "title"},
		{name: "unknown type", edit: func(na *grade.NewAssessment) { na.Type = "vibes" }, wantField: "type"},
		{name: "zero max score", edit: func(na *grade.NewAssessment) { na.MaxScore = 0 }, wantField: "max_score"},
		{name: "negative weight", edit: func(na *grade.NewAssessment) { na.Weight = -1 }, wantField: "weight"},
		{name: "no date", edit: func(na *grade.NewAssessment) { na.Date = time.Time{} }, wantField: "date"},
		{name: "no semester", edit: func(na *grade.NewAssessment) { na.SemesterID = "" }, wantField: "semester_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			na := e.fx.NewAssessment(e.fx.MathCS, "Quiz", 10, 10)
			tt.edit(&na)
			_, err := e.svc.Create(context.Background(), na)

			var verrs validator.ValidationErrors
			require.True(t, errors.As(err, &verrs), "Create() error = %v", err)
			assert.Equal(t, tt.wantField, verrs[0].Field())
		})
	}

	t.Run("unknown class subject", func(t *testing.T) {
		_, err := e.svc.Create(context.Background(), e.fx.NewAssessment(grade.ClassSubject{ID: "cs-nope"}, "Quiz", 10, 10))
		var verr *core.ValidationError
		require.True(t, errors.As(err, &verr), "Create() error = %v", err)
		assert.Equal(t, "class_subject_id", verr.Fields[0].Field)
	})
}

func TestService_Update(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	a := e.createAssessment(t, e.fx.MathCS, "Quiz", 20, 10)
	title, weight := "Quiz 1", 15.0
	got, err := e.svc.Update(ctx, a.ID, grade.UpdateAssessment{Title: &title, Weight: &weight})
	require.NoError(t, err)
	assert.Equal(t, "Quiz 1", got.Title)
	assert.Equal(t, 15.0, got.Weight)
	assert.Equal(t, 20.0, got.MaxScore)

	// no score yet: the assessment may move to another class subject
	cs := e.fx.EnglishCS.ID
	got, err = e.svc.Update(ctx, a.ID, grade.UpdateAssessment{ClassSubjectID: &cs})
	require.NoError(t, err)
	assert.Equal(t, e.fx.English.ID, got.SubjectID)

	e.save(t, got, e.fx.Alice, 18)
	back := e.fx.MathCS.ID
	_, err = e.svc.Update(ctx, a.ID, grade.UpdateAssessment{ClassSubjectID: &back})
	assert.True(t, errors.Is(err, grade.ErrImmutableField), "Update() error = %v", err)

	_, err = e.svc.Update(ctx, "nope", grade.UpdateAssessment{Title: &title})
	assert.True(t, errors.Is(err, grade.ErrNotFound), "Update() error = %v", err)
}

func TestService_Update_classSubjectFrozenByStore(t *testing.T) {
	e := newEnv(t, withRepo(func(r grade.Repository) grade.Repository { return staleCountRepo{Repository: r} }))
	ctx := context.Background()

	a := e.createAssessment(t, e.fx.MathCS, "Quiz", 20, 10)
	e.save(t, a, e.fx.Alice, 18)

	cs := e.fx.EnglishCS.ID
	_, err := e.svc.Update(ctx, a.ID, grade.UpdateAssessment{ClassSubjectID: &cs})
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr), "Update() error = %v", err)
	assert.Equal(t, "class_subject_id", vErr.Fields[0].Field)

	got, err := e.svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, e.fx.Math.ID, got.SubjectID)
}

func TestService_Update_maxScore(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	a := e.createAssessment(t, e.fx.MathCS, "Quiz", 20, 10)
	e.save(t, a, e.fx.Alice, 18) // 90%
	e.save(t, a, e.fx.Bob, 12)   // 60%

	max := 40.0
	got, err := e.svc.Update(ctx, a.ID, grade.UpdateAssessment{MaxScore: &max})
	require.NoError(t, err)
	assert.Equal(t, 40.0, got.MaxScore)

	alice, err := e.repo.GetGrade(ctx, a.ID, e.fx.Alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 18.0, alice.Score)
	assert.Equal(t, 45, alice.Percentage)
	assert.Equal(t, "F", alice.LetterGrade)

	tooLow := 15.0
	_, err = e.svc.Update(ctx, a.ID, grade.UpdateAssessment{MaxScore: &tooLow})
	assert.True(t, errors.Is(err, grade.ErrInvalidScore), "Update() error = %v", err)

	unchanged, err := e.svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 40.0, unchanged.MaxScore, "a refused update changes nothing")
	bob, err := e.repo.GetGrade(ctx, a.ID, e.fx.Bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 30, bob.Percentage)
}
