package echoapi_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo/core"
	"github.com/trezcool/masomo/core/grade"
)

func (app *testApp) createAssessment(t *testing.T, cs grade.ClassSubject, title string, max, weight float64) grade.Assessment {
	t.Helper()
	a, err := app.svc.Create(context.Background(), app.fx.NewAssessment(cs, title, max, weight))
	require.NoError(t, err)
	return a
}

func scorePath(a grade.Assessment, st grade.Student) string {
	return fmt.Sprintf("/v1/assessments/%s/scores/%s", a.ID, st.ID)
}

func scoreBody(score float64) []byte {
	return []byte(fmt.Sprintf(`{"score": %g}`, score))
}

func Test_gradeApi_auth(t *testing.T) {
	app := setup(t)
	a := app.createAssessment(t, app.fx.MathCS, "Fractions", 50, 1)
	guardianToken := app.getToken(t, app.guardian)

	tests := []httpTest{
		{
			name: "Auth required", method: http.MethodPut, path: scorePath(a, app.fx.Alice), body: scoreBody(45),
			wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken),
		},
		{
			name: "Staff required to save", method: http.MethodPut, path: scorePath(a, app.fx.Alice), body: scoreBody(45),
			token: guardianToken, wantCode: http.StatusForbidden, wantData: marshallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Staff required to publish", method: http.MethodPost, path: "/v1/assessments/" + a.ID + "/publish",
			token: guardianToken, wantCode: http.StatusForbidden, wantData: marshallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Reads are open to any user", path: "/v1/assessments/" + a.ID,
			token: guardianToken, wantCode: http.StatusOK, wantData: marshallObj(t, a),
		},
		{
			name: "Token without subject", method: http.MethodPut, path: scorePath(a, app.fx.Alice), body: scoreBody(45),
			token: app.getToken(t, core.Actor{}, "teacher"), wantCode: http.StatusUnauthorized,
			wantData: marshallObj(t, httpErr{Error: "user not authenticated"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, app.serve(tt))
		})
	}
	assert.Empty(t, app.db.AuditEntries())
}

func Test_gradeApi_saveScore(t *testing.T) {
	app := setup(t)
	a := app.createAssessment(t, app.fx.MathCS, "Fractions", 50, 1)
	token := app.getToken(t, app.teacher, "teacher")

	tests := []httpTest{
		{
			name: "invalid: above max", method: http.MethodPut, path: scorePath(a, app.fx.Alice), body: scoreBody(55),
			token: token, wantCode: http.StatusBadRequest, wantData: []byte(`{"score": "score 55 is out of range [0, 50]"}`),
		},
		{
			name: "invalid: negative", method: http.MethodPut, path: scorePath(a, app.fx.Alice), body: scoreBody(-1),
			token: token, wantCode: http.StatusBadRequest, wantData: []byte(`{"score": "score -1 is out of range [0, 50]"}`),
		},
		{
			name: "invalid: missing score", method: http.MethodPut, path: scorePath(a, app.fx.Alice), body: []byte(`{}`),
			token: token, wantCode: http.StatusBadRequest, wantData: []byte(`{"score": "this field is required"}`),
		},
		{
			name: "unknown assessment", method: http.MethodPut, path: scorePath(grade.Assessment{ID: "nope"}, app.fx.Alice),
			body: scoreBody(10), token: token, wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "not found"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, app.serve(tt))
		})
	}
	_, err := app.repo.GetGrade(context.Background(), a.ID, app.fx.Alice.ID)
	assert.True(t, errors.Is(err, grade.ErrNotFound), "rejected saves write nothing")

	t.Run("valid", func(t *testing.T) {
		for _, score := range []float64{40, 45} { // the second save updates the same cell
			tt := httpTest{method: http.MethodPut, path: scorePath(a, app.fx.Alice), body: scoreBody(score), token: token, wantCode: http.StatusOK}
			rec := app.serve(tt)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			saved, err := app.repo.GetGrade(context.Background(), a.ID, app.fx.Alice.ID)
			require.NoError(t, err)
			tt.wantData = marshallObj(t, saved)
			checkCodeAndData(t, tt, rec)
		}

		saved, err := app.repo.GetGrade(context.Background(), a.ID, app.fx.Alice.ID)
		require.NoError(t, err)
		assert.Equal(t, 45.0, saved.Score)
		assert.Equal(t, 90, saved.Percentage)
		assert.Equal(t, "A", saved.LetterGrade)
		assert.Equal(t, app.teacher.ID, saved.TeacherID, "actor comes from the token")
		assert.False(t, saved.IsPublished)
	})
}

func Test_gradeApi_publishFlow(t *testing.T) {
	app := setup(t)
	a := app.createAssessment(t, app.fx.MathCS, "Fractions", 50, 1)
	token := app.getToken(t, app.teacher, "teacher")
	guardianToken := app.getToken(t, app.guardian)

	rec := app.serve(httpTest{method: http.MethodPut, path: scorePath(a, app.fx.Alice), body: scoreBody(45), token: token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	semester := "?semester_id=" + app.fx.SemesterID
	averagePath := fmt.Sprintf("/v1/students/%s/subjects/%s/average", app.fx.Alice.ID, app.fx.Math.ID)
	draftAverage := grade.SubjectAverage{StudentID: app.fx.Alice.ID, SubjectID: app.fx.Math.ID, SemesterID: app.fx.SemesterID}
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marshallObj(t, draftAverage)},
		app.serve(httpTest{path: averagePath + semester, token: guardianToken}))

	publish := func() grade.PublishResult {
		rec := app.serve(httpTest{method: http.MethodPost, path: "/v1/assessments/" + a.ID + "/publish", token: token})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var res grade.PublishResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		return res
	}

	res := publish()
	assert.Equal(t, grade.ActionPublish, res.Action)
	assert.Equal(t, 1, res.GradesAffected)
	assert.Equal(t, 1, res.Notified)
	assert.NotNil(t, res.PublishedAt)
	require.Len(t, app.notifier.Notices(), 1)
	assert.Equal(t, 90, app.notifier.Notices()[0].Percentage)

	res = publish()
	assert.True(t, res.AlreadyPublished)
	assert.Len(t, app.notifier.Notices(), 1, "publishing twice notifies once")

	audit := app.db.AuditEntries()
	require.Len(t, audit, 1)
	assert.Equal(t, app.teacher.ID, audit[0].ActorID)

	tests := []httpTest{
		{
			name: "average", path: averagePath + semester, token: guardianToken, wantCode: http.StatusOK,
			wantData: marshallObj(t, grade.SubjectAverage{
				StudentID: app.fx.Alice.ID, SubjectID: app.fx.Math.ID, SemesterID: app.fx.SemesterID,
				Average: 90, AssessmentsConsidered: 1, HasData: true,
			}),
		},
		{
			name: "average across semesters", path: averagePath, token: guardianToken, wantCode: http.StatusOK,
			wantData: marshallObj(t, grade.SubjectAverage{
				StudentID: app.fx.Alice.ID, SubjectID: app.fx.Math.ID,
				Average: 90, AssessmentsConsidered: 1, HasData: true,
			}),
		},
		{
			name: "average with a blank semester", path: averagePath + "?semester_id=%20", token: guardianToken,
			wantCode: http.StatusBadRequest, wantData: []byte(`{"semester_id": "semester_id must not be blank"}`),
		},
		{
			name: "ranking without semester", path: "/v1/classes/" + app.fx.ClassID + "/ranking", token: guardianToken,
			wantCode: http.StatusBadRequest, wantData: []byte(`{"semester_id": "this field is required"}`),
		},
		{
			name: "transcript of unknown student", path: "/v1/students/nobody/transcript" + semester, token: guardianToken,
			wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "not found"}),
		},
		{
			name: "ranking of an unknown class", path: "/v1/classes/nope/ranking" + semester, token: guardianToken,
			wantCode: http.StatusOK, wantData: []byte(`[]`),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, app.serve(tt))
		})
	}

	t.Run("ranking", func(t *testing.T) {
		rec := app.serve(httpTest{path: "/v1/classes/" + app.fx.ClassID + "/ranking" + semester, token: guardianToken})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var rows []grade.ClassRankRow
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
		require.Len(t, rows, 3, "withdrawn students are not ranked")
		assert.Equal(t, app.fx.Alice.ID, rows[0].StudentID)
		assert.Equal(t, 1, rows[0].Rank)
		assert.Equal(t, 90.0, rows[0].Average)
		assert.Equal(t, 0, rows[1].Rank)
		assert.Equal(t, 0, rows[2].Rank)
	})

	t.Run("leaderboard", func(t *testing.T) {
		rec := app.serve(httpTest{path: "/v1/classes/" + app.fx.ClassID + "/leaderboard" + semester, token: guardianToken})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var lb grade.Leaderboard
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lb))
		assert.Equal(t, []grade.Subject{app.fx.English, app.fx.Math}, lb.Subjects)
		require.Len(t, lb.Rows, 3)
	})

	t.Run("transcript", func(t *testing.T) {
		rec := app.serve(httpTest{path: "/v1/students/" + app.fx.Alice.ID + "/transcript" + semester, token: guardianToken})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var tr grade.Transcript
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tr))
		assert.Equal(t, app.fx.Alice.Name, tr.StudentName)
		require.NotNil(t, tr.OverallAverage)
		assert.Equal(t, 90.0, *tr.OverallAverage)
	})

	t.Run("unpublish", func(t *testing.T) {
		path := "/v1/assessments/" + a.ID + "/unpublish"
		rec := app.serve(httpTest{method: http.MethodPost, path: path, token: token})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var res grade.PublishResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.Equal(t, grade.ActionUnpublish, res.Action)
		assert.Equal(t, 1, res.GradesAffected)

		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marshallObj(t, draftAverage)},
			app.serve(httpTest{path: averagePath + semester, token: guardianToken}))
	})
}

func Test_gradeApi_sweep(t *testing.T) {
	app := setup(t)
	a := app.createAssessment(t, app.fx.MathCS, "Fractions", 50, 1)
	token := app.getToken(t, app.teacher, "teacher")

	sweep := func() grade.PublishResult {
		rec := app.serve(httpTest{method: http.MethodPost, path: "/v1/assessments/" + a.ID + "/sweep", token: token})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var res grade.PublishResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		return res
	}

	assert.True(t, sweep().AlreadyDraft)

	rec := app.serve(httpTest{method: http.MethodPost, path: "/v1/assessments/" + a.ID + "/publish", token: token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// a late grade stays a draft until swept
	rec = app.serve(httpTest{method: http.MethodPut, path: scorePath(a, app.fx.Bob), body: scoreBody(30), token: token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Empty(t, app.notifier.Notices())

	res := sweep()
	assert.Equal(t, grade.ActionPublishLate, res.Action)
	assert.Equal(t, 1, res.GradesAffected)
	require.Len(t, app.notifier.Notices(), 1)
	assert.Equal(t, app.fx.Bob.ID, app.notifier.Notices()[0].StudentID)
}

func Test_gradeApi_assessments(t *testing.T) {
	app := setup(t)
	token := app.getToken(t, app.teacher, "teacher")

	body := marshallObj(t, app.fx.NewAssessment(app.fx.MathCS, "Fractions", 50, 1))
	rec := app.serve(httpTest{method: http.MethodPost, path: "/v1/assessments", body: body, token: token})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var a grade.Assessment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &a))
	assert.Equal(t, app.fx.ClassID, a.ClassID)
	assert.Equal(t, app.fx.Math.ID, a.SubjectID)
	assert.False(t, a.IsPublished)

	rec = app.serve(httpTest{method: http.MethodPut, path: scorePath(a, app.fx.Alice), body: scoreBody(45), token: token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	tests := []httpTest{
		{
			name: "create: invalid type", method: http.MethodPost, path: "/v1/assessments",
			body: []byte(`{"title": "Pop", "type": "party", "class_subject_id": "cs-math", "semester_id": "2024-s1", "max_score": 10, "weight": 1, "date": "2024-03-04T00:00:00Z"}`),
			token: token, wantCode: http.StatusBadRequest,
			wantData: []byte(`{"type": "invalid assessment type; expected one of: quiz, test, assignment, project, midterm, exam"}`),
		},
		{
			name: "create: unknown class subject", method: http.MethodPost, path: "/v1/assessments",
			body: []byte(`{"title": "Pop", "type": "quiz", "class_subject_id": "cs-art", "semester_id": "2024-s1", "max_score": 10, "weight": 1, "date": "2024-03-04T00:00:00Z"}`),
			token: token, wantCode: http.StatusBadRequest, wantData: []byte(`{"class_subject_id": "class subject assignment not found"}`),
		},
		{
			name: "update: class subject frozen by scores", method: http.MethodPatch, path: "/v1/assessments/" + a.ID,
			body: []byte(`{"class_subject_id": "cs-eng"}`), token: token, wantCode: http.StatusBadRequest,
			wantData: []byte(`{"class_subject_id": "this field cannot be changed once scores exist"}`),
		},
		{
			name: "update: max score below an existing score", method: http.MethodPatch, path: "/v1/assessments/" + a.ID,
			body: []byte(`{"max_score": 40}`), token: token, wantCode: http.StatusBadRequest,
			wantData: []byte(`{"max_score": "an existing score exceeds the new maximum score"}`),
		},
		{name: "get: unknown", path: "/v1/assessments/nope", token: token, wantCode: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, app.serve(tt))
		})
	}

	t.Run("update: new max score re-derives grades", func(t *testing.T) {
		rec := app.serve(httpTest{method: http.MethodPatch, path: "/v1/assessments/" + a.ID, body: []byte(`{"max_score": 90}`), token: token})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		g, err := app.repo.GetGrade(context.Background(), a.ID, app.fx.Alice.ID)
		require.NoError(t, err)
		assert.Equal(t, 50, g.Percentage)
		assert.Equal(t, "F", g.LetterGrade)
	})
}

// blockingRepo never answers an assessment read before the caller gives up.
type blockingRepo struct {
	grade.Repository
}

func (r blockingRepo) GetAssessment(ctx context.Context, _ string) (grade.Assessment, error) {
	<-ctx.Done()
	return grade.Assessment{}, ctx.Err()
}

// brokenRepo fails every upsert.
type brokenRepo struct {
	grade.Repository
}

func (brokenRepo) UpsertGrade(context.Context, grade.Grade, grade.Assessment) (grade.Grade, error) {
	return grade.Grade{}, errors.New("disk I/O error")
}

func Test_gradeApi_errors(t *testing.T) {
	t.Run("locked after publish", func(t *testing.T) {
		app := setup(t, withPolicy(grade.Policy{AllowEditAfterPublish: false}))
		a := app.createAssessment(t, app.fx.MathCS, "Fractions", 50, 1)
		token := app.getToken(t, app.teacher, "teacher")

		rec := app.serve(httpTest{method: http.MethodPost, path: "/v1/assessments/" + a.ID + "/publish", token: token})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		tt := httpTest{
			method: http.MethodPut, path: scorePath(a, app.fx.Alice), body: scoreBody(45), token: token,
			wantCode: http.StatusConflict, wantData: marshallObj(t, httpErr{Error: grade.ErrAssessmentLocked.Error()}),
		}
		checkCodeAndData(t, tt, app.serve(tt))
	})

	t.Run("store timeout", func(t *testing.T) {
		app := setup(t,
			withPolicy(grade.Policy{AllowEditAfterPublish: true, StoreTimeout: 20 * time.Millisecond}),
			withRepo(func(repo grade.Repository) grade.Repository { return blockingRepo{repo} }),
		)
		token := app.getToken(t, app.teacher, "teacher")

		tt := httpTest{
			method: http.MethodPut, path: "/v1/assessments/a1/scores/" + app.fx.Alice.ID, body: scoreBody(45), token: token,
			wantCode: http.StatusServiceUnavailable, wantData: marshallObj(t, httpErr{Error: grade.ErrTimeout.Error()}),
		}
		rec := app.serve(tt)
		checkCodeAndData(t, tt, rec)
		assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	})

	t.Run("server error is logged with the actor", func(t *testing.T) {
		app := setup(t, withRepo(func(repo grade.Repository) grade.Repository { return brokenRepo{repo} }))
		a := app.createAssessment(t, app.fx.MathCS, "Fractions", 50, 1)
		token := app.getToken(t, app.teacher, "teacher")

		tt := httpTest{
			method: http.MethodPut, path: scorePath(a, app.fx.Alice), body: scoreBody(45), token: token,
			wantCode: http.StatusInternalServerError, wantData: marshallObj(t, httpErr{Error: "Internal Server Error"}),
		}
		checkCodeAndData(t, tt, app.serve(tt))

		logged := app.logger.Entries("error")
		require.Len(t, logged, 1)
		assert.Contains(t, logged[0].Args, app.teacher)
	})
}
