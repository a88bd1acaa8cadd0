package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo/core"
	"github.com/trezcool/masomo/core/grade"
)

type gradeRepository struct {
	db core.DB
}

var _ grade.Repository = (*gradeRepository)(nil) // interface compliance check

func NewGradeRepository(db core.DB) *gradeRepository {
	return &gradeRepository{db: db}
}

// inTx runs fn in a transaction, rolled back on any error.
func (repo *gradeRepository) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

func getAssessment(ctx context.Context, q core.DBExecutor, id string) (grade.Assessment, error) {
	return selectAssessment(ctx, q, id, "")
}

// lockAssessment reads an assessment inside tx. On postgres the row stays locked in mode
// ("SHARE" or "UPDATE") until tx ends; SQLite already serializes writers.
func lockAssessment(ctx context.Context, tx *sqlx.Tx, id, mode string) (grade.Assessment, error) {
	if tx.DriverName() != core.EnginePostgres {
		mode = ""
	}
	return selectAssessment(ctx, tx, id, mode)
}

func selectAssessment(ctx context.Context, q core.DBExecutor, id, lockMode string) (grade.Assessment, error) {
	query := `SELECT ` + assessmentColumns + ` FROM assessments WHERE id = ?`
	if lockMode != "" {
		query += ` FOR ` + lockMode
	}
	var row assessmentRow
	if err := q.GetContext(ctx, &row, q.Rebind(query), id); err != nil {
		return grade.Assessment{}, trapErr(err, "selecting assessment")
	}
	return row.unwrap(), nil
}

func (repo *gradeRepository) GetAssessment(ctx context.Context, id string) (grade.Assessment, error) {
	return getAssessment(ctx, repo.db, id)
}

func (repo *gradeRepository) CreateAssessment(ctx context.Context, a grade.Assessment) (grade.Assessment, error) {
	q := `INSERT INTO assessments (` + assessmentColumns + `) VALUES (:id, :title, :type, :class_subject_id, :class_id,
		:subject_id, :teacher_id, :academic_year_id, :semester_id, :max_score, :weight, :assessment_date, :is_published,
		:published_at, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, toAssessmentRow(a)); err != nil {
		return grade.Assessment{}, trapErr(err, "inserting assessment")
	}
	return repo.GetAssessment(ctx, a.ID)
}

func (repo *gradeRepository) UpdateAssessment(ctx context.Context, a grade.Assessment, rederive func(grade.Grade) (grade.Grade, error)) (grade.Assessment, error) {
	err := repo.inTx(ctx, func(tx *sqlx.Tx) error {
		orig, err := lockAssessment(ctx, tx, a.ID, "UPDATE")
		if err != nil {
			return err
		}
		if a.ClassSubjectID != orig.ClassSubjectID {
			var n int
			cnt := tx.Rebind(`SELECT COUNT(*) FROM grades WHERE assessment_id = ?`)
			if err = tx.GetContext(ctx, &n, cnt, a.ID); err != nil {
				return errors.Wrap(err, "counting grades")
			}
			if n > 0 {
				return grade.ErrImmutableField
			}
		}

		q := `UPDATE assessments SET title = :title, type = :type, class_subject_id = :class_subject_id,
			class_id = :class_id, subject_id = :subject_id, teacher_id = :teacher_id, academic_year_id = :academic_year_id,
			max_score = :max_score, weight = :weight, assessment_date = :assessment_date, updated_at = :updated_at
			WHERE id = :id`
		res, err := tx.NamedExecContext(ctx, q, toAssessmentRow(a))
		if err != nil {
			return trapErr(err, "updating assessment")
		}
		if n, err := res.RowsAffected(); err != nil {
			return errors.Wrap(err, "updating assessment")
		} else if n == 0 {
			return grade.ErrNotFound
		}

		if rederive == nil {
			return nil
		}
		var rows []gradeRow
		sel := tx.Rebind(`SELECT ` + gradeColumns + ` FROM grades WHERE assessment_id = ? ORDER BY student_id`)
		if err := tx.SelectContext(ctx, &rows, sel, a.ID); err != nil {
			return errors.Wrap(err, "selecting grades")
		}
		upd := tx.Rebind(`UPDATE grades SET percentage = ?, letter_grade = ?, updated_at = ? WHERE id = ?`)
		for _, row := range rows {
			g, err := rederive(row.unwrap())
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, upd, g.Percentage, g.LetterGrade, g.UpdatedAt.UTC(), g.ID); err != nil {
				return errors.Wrap(err, "re-deriving grade")
			}
		}
		return nil
	})
	if err != nil {
		return grade.Assessment{}, err
	}
	return repo.GetAssessment(ctx, a.ID)
}

func (repo *gradeRepository) CountGrades(ctx context.Context, assessmentID string) (int, error) {
	var n int
	q := repo.db.Rebind(`SELECT COUNT(*) FROM grades WHERE assessment_id = ?`)
	if err := repo.db.GetContext(ctx, &n, q, assessmentID); err != nil {
		return 0, errors.Wrap(err, "counting grades")
	}
	return n, nil
}

func getGrade(ctx context.Context, q core.DBExecutor, assessmentID, studentID string) (grade.Grade, error) {
	var row gradeRow
	query := q.Rebind(`SELECT ` + gradeColumns + ` FROM grades WHERE assessment_id = ? AND student_id = ?`)
	if err := q.GetContext(ctx, &row, query, assessmentID, studentID); err != nil {
		return grade.Grade{}, trapErr(err, "selecting grade")
	}
	return row.unwrap(), nil
}

func (repo *gradeRepository) GetGrade(ctx context.Context, assessmentID, studentID string) (grade.Grade, error) {
	return getGrade(ctx, repo.db, assessmentID, studentID)
}

// selectGrades returns the grades of an assessment, or only those with the given ids, sorted by student.
func selectGrades(ctx context.Context, tx *sqlx.Tx, assessmentID string, ids ...string) ([]grade.Grade, error) {
	q, args := `SELECT `+gradeColumns+` FROM grades WHERE assessment_id = ?`, []interface{}{assessmentID}
	if len(ids) > 0 {
		var err error
		q, args, err = sqlx.In(q+` AND id IN (?)`, assessmentID, ids)
		if err != nil {
			return nil, errors.Wrap(err, "expanding grade ids")
		}
	}
	var rows []gradeRow
	if err := tx.SelectContext(ctx, &rows, tx.Rebind(q+` ORDER BY student_id`), args...); err != nil {
		return nil, errors.Wrap(err, "selecting grades")
	}
	return unwrapGrades(rows), nil
}

// UpsertGrade relies on the (assessment_id, student_id) unique key: concurrent first saves of a cell
// resolve to one row, the loser updating it in place. An edit never unpublishes a grade.
// The assessment is re-read in the same transaction and must still match basis.
func (repo *gradeRepository) UpsertGrade(ctx context.Context, g grade.Grade, basis grade.Assessment) (grade.Grade, error) {
	q := `INSERT INTO grades (` + gradeColumns + `) VALUES (:id, :student_id, :assessment_id, :score, :percentage,
		:letter_grade, :is_published, :teacher_id, :class_id, :subject_id, :academic_year_id, :semester_id,
		:created_at, :updated_at)
		ON CONFLICT (assessment_id, student_id) DO UPDATE SET
			score = excluded.score,
			percentage = excluded.percentage,
			letter_grade = excluded.letter_grade,
			is_published = (grades.is_published OR excluded.is_published),
			teacher_id = excluded.teacher_id,
			class_id = excluded.class_id,
			subject_id = excluded.subject_id,
			academic_year_id = excluded.academic_year_id,
			semester_id = excluded.semester_id,
			updated_at = excluded.updated_at`

	var saved grade.Grade
	err := repo.inTx(ctx, func(tx *sqlx.Tx) error {
		a, err := lockAssessment(ctx, tx, g.AssessmentID, "SHARE")
		if err != nil {
			return err
		}
		if !a.SameGradingBasis(basis) {
			return errors.Wrap(grade.ErrConstraintViolation, "assessment changed since the grade was derived")
		}

		if _, err = tx.NamedExecContext(ctx, q, toGradeRow(g)); err != nil {
			return trapErr(err, "upserting grade")
		}
		saved, err = getGrade(ctx, tx, g.AssessmentID, g.StudentID)
		return err
	})
	if err != nil {
		return grade.Grade{}, err
	}
	return saved, nil
}

func (repo *gradeRepository) PublishAssessment(ctx context.Context, id string, at time.Time) ([]grade.Grade, error) {
	return repo.transition(ctx, id, at, true)
}

func (repo *gradeRepository) UnpublishAssessment(ctx context.Context, id string, at time.Time) ([]grade.Grade, error) {
	return repo.transition(ctx, id, at, false)
}

// transition flips the assessment then its grades in one transaction.
// The conditional update makes a concurrent identical transition find nothing to do.
func (repo *gradeRepository) transition(ctx context.Context, id string, at time.Time, publish bool) ([]grade.Grade, error) {
	at = at.UTC()
	var publishedAt *time.Time
	if publish {
		publishedAt = &at
	}

	var grades []grade.Grade
	err := repo.inTx(ctx, func(tx *sqlx.Tx) error {
		q := tx.Rebind(`UPDATE assessments SET is_published = ?, published_at = ?, updated_at = ?
			WHERE id = ? AND is_published = ?`)
		res, err := tx.ExecContext(ctx, q, publish, publishedAt, at, id, !publish)
		if err != nil {
			return errors.Wrap(err, "updating assessment")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return errors.Wrap(err, "updating assessment")
		}
		if n == 0 {
			if _, err := getAssessment(ctx, tx, id); err != nil {
				return err
			}
			return grade.ErrStateUnchanged
		}

		q = tx.Rebind(`UPDATE grades SET is_published = ?, updated_at = ? WHERE assessment_id = ?`)
		if _, err = tx.ExecContext(ctx, q, publish, at, id); err != nil {
			return errors.Wrap(err, "updating grades")
		}
		grades, err = selectGrades(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return grades, nil
}

func (repo *gradeRepository) PublishPendingGrades(ctx context.Context, id string, at time.Time) ([]grade.Grade, error) {
	at = at.UTC()
	var grades []grade.Grade
	err := repo.inTx(ctx, func(tx *sqlx.Tx) error {
		a, err := getAssessment(ctx, tx, id)
		if err != nil {
			return err
		}
		if !a.IsPublished {
			return nil
		}

		var ids []string
		q := tx.Rebind(`SELECT id FROM grades WHERE assessment_id = ? AND is_published = ?`)
		if err = tx.SelectContext(ctx, &ids, q, id, false); err != nil {
			return errors.Wrap(err, "selecting pending grades")
		}
		if len(ids) == 0 {
			return nil
		}

		q, args, err := sqlx.In(`UPDATE grades SET is_published = ?, updated_at = ? WHERE id IN (?)`, true, at, ids)
		if err != nil {
			return errors.Wrap(err, "expanding grade ids")
		}
		if _, err = tx.ExecContext(ctx, tx.Rebind(q), args...); err != nil {
			return errors.Wrap(err, "publishing pending grades")
		}
		grades, err = selectGrades(ctx, tx, id, ids...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return grades, nil
}
