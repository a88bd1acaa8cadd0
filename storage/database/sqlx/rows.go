package sqlxrepos

import (
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo/core/grade"
	"github.com/trezcool/masomo/storage/database"
)

const (
	assessmentColumns = `id, title, type, class_subject_id, class_id, subject_id, teacher_id, academic_year_id,
		semester_id, max_score, weight, assessment_date, is_published, published_at, created_at, updated_at`
	gradeColumns = `id, student_id, assessment_id, score, percentage, letter_grade, is_published, teacher_id,
		class_id, subject_id, academic_year_id, semester_id, created_at, updated_at`
)

type assessmentRow struct {
	ID             string     `db:"id"`
	Title          string     `db:"title"`
	Type           string     `db:"type"`
	ClassSubjectID string     `db:"class_subject_id"`
	ClassID        string     `db:"class_id"`
	SubjectID      string     `db:"subject_id"`
	TeacherID      string     `db:"teacher_id"`
	AcademicYearID string     `db:"academic_year_id"`
	SemesterID     string     `db:"semester_id"`
	MaxScore       float64    `db:"max_score"`
	Weight         float64    `db:"weight"`
	Date           time.Time  `db:"assessment_date"`
	IsPublished    bool       `db:"is_published"`
	PublishedAt    *time.Time `db:"published_at"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

func toAssessmentRow(a grade.Assessment) assessmentRow {
	row := assessmentRow(a)
	row.Date = a.Date.UTC()
	row.CreatedAt = a.CreatedAt.UTC()
	row.UpdatedAt = a.UpdatedAt.UTC()
	if a.PublishedAt != nil {
		at := a.PublishedAt.UTC()
		row.PublishedAt = &at
	}
	return row
}

func (row assessmentRow) unwrap() grade.Assessment {
	a := grade.Assessment(row)
	a.Date = row.Date.UTC()
	a.CreatedAt = row.CreatedAt.UTC()
	a.UpdatedAt = row.UpdatedAt.UTC()
	if row.PublishedAt != nil {
		at := row.PublishedAt.UTC()
		a.PublishedAt = &at
	}
	return a
}

type gradeRow struct {
	ID             string    `db:"id"`
	StudentID      string    `db:"student_id"`
	AssessmentID   string    `db:"assessment_id"`
	Score          float64   `db:"score"`
	Percentage     int       `db:"percentage"`
	LetterGrade    string    `db:"letter_grade"`
	IsPublished    bool      `db:"is_published"`
	TeacherID      string    `db:"teacher_id"`
	ClassID        string    `db:"class_id"`
	SubjectID      string    `db:"subject_id"`
	AcademicYearID string    `db:"academic_year_id"`
	SemesterID     string    `db:"semester_id"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func toGradeRow(g grade.Grade) gradeRow {
	row := gradeRow(g)
	row.CreatedAt = g.CreatedAt.UTC()
	row.UpdatedAt = g.UpdatedAt.UTC()
	return row
}

func (row gradeRow) unwrap() grade.Grade {
	g := grade.Grade(row)
	g.CreatedAt = row.CreatedAt.UTC()
	g.UpdatedAt = row.UpdatedAt.UTC()
	return g
}

func unwrapGrades(rows []gradeRow) []grade.Grade {
	grades := make([]grade.Grade, 0, len(rows))
	for _, r := range rows {
		grades = append(grades, r.unwrap())
	}
	return grades
}

// trapErr maps "no rows" to grade.ErrNotFound and duplicate keys to grade.ErrConstraintViolation.
func trapErr(err error, msg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return grade.ErrNotFound
	case database.IsUniqueViolation(err):
		return errors.Wrapf(grade.ErrConstraintViolation, "%s: %v", msg, err)
	}
	return errors.Wrap(err, msg)
}
