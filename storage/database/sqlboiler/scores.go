package boiledrepos

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/boil"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/trezcool/masomo/core/grade"
)

type scoreRow struct {
	StudentID       string    `boil:"student_id"`
	ClassID         string    `boil:"class_id"`
	SubjectID       string    `boil:"subject_id"`
	SemesterID      string    `boil:"semester_id"`
	AssessmentID    string    `boil:"assessment_id"`
	AssessmentTitle string    `boil:"assessment_title"`
	AssessmentType  string    `boil:"assessment_type"`
	Date            time.Time `boil:"assessment_date"`
	Weight          float64   `boil:"weight"`
	MaxScore        float64   `boil:"max_score"`
	Score           float64   `boil:"score"`
	Percentage      int       `boil:"percentage"`
	LetterGrade     string    `boil:"letter_grade"`
	PublishedAt     null.Time `boil:"published_at"`
}

func (row scoreRow) unboil() grade.ScoreRow {
	return grade.ScoreRow{
		StudentID:       row.StudentID,
		ClassID:         row.ClassID,
		SubjectID:       row.SubjectID,
		SemesterID:      row.SemesterID,
		AssessmentID:    row.AssessmentID,
		AssessmentTitle: row.AssessmentTitle,
		AssessmentType:  row.AssessmentType,
		Date:            row.Date.UTC(),
		Weight:          row.Weight,
		MaxScore:        row.MaxScore,
		Score:           row.Score,
		Percentage:      row.Percentage,
		LetterGrade:     row.LetterGrade,
		PublishedAt:     row.PublishedAt.Time.UTC(),
	}
}

// scoreReader answers the read side of the gradebook with raw queries.
// Only grades that are published on a published assessment are ever returned.
type scoreReader struct {
	exec   boil.ContextExecutor
	rebind func(string) string
}

var _ grade.ScoreReader = (*scoreReader)(nil) // interface compliance check

func NewScoreReader(db *sqlx.DB) *scoreReader {
	return &scoreReader{exec: db, rebind: db.Rebind}
}

const publishedScoresQuery = `SELECT g.student_id, a.class_id, a.subject_id, a.semester_id, a.id AS assessment_id,
	a.title AS assessment_title, a.type AS assessment_type, a.assessment_date, a.weight, a.max_score,
	g.score, g.percentage, g.letter_grade, a.published_at
	FROM grades g
	JOIN assessments a ON a.id = g.assessment_id
	WHERE g.is_published = ? AND a.is_published = ?`

func (r *scoreReader) PublishedScores(ctx context.Context, filter grade.ScoreFilter) ([]grade.ScoreRow, error) {
	var q strings.Builder
	q.WriteString(publishedScoresQuery)
	args := []interface{}{true, true}

	for _, cond := range []struct{ col, val string }{
		{"a.class_id", filter.ClassID},
		{"g.student_id", filter.StudentID},
		{"a.subject_id", filter.SubjectID},
		{"a.semester_id", filter.SemesterID},
	} {
		if cond.val == "" {
			continue
		}
		q.WriteString(" AND " + cond.col + " = ?")
		args = append(args, cond.val)
	}
	q.WriteString(" ORDER BY g.student_id, a.id")

	var rows []scoreRow
	// queries.Raw leaves placeholders untouched
	if err := queries.Raw(r.rebind(q.String()), args...).Bind(ctx, r.exec, &rows); err != nil {
		return nil, errors.Wrap(err, "selecting published scores")
	}

	scores := make([]grade.ScoreRow, 0, len(rows))
	for _, row := range rows {
		scores = append(scores, row.unboil())
	}
	return scores, nil
}
