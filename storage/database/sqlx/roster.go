package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo/core"
	"github.com/trezcool/masomo/core/grade"
)

const enrollmentActive = "active"

// rosterRepository reads the reference data tables owned by the rest of the school system.
type rosterRepository struct {
	db core.DB
}

var (
	_ grade.Roster            = (*rosterRepository)(nil)
	_ grade.GuardianDirectory = (*rosterRepository)(nil)
)

func NewRoster(db core.DB) *rosterRepository {
	return &rosterRepository{db: db}
}

func (repo *rosterRepository) EnrolledStudents(ctx context.Context, classID, semesterID string) ([]grade.Student, error) {
	students := make([]grade.Student, 0)
	q := repo.db.Rebind(`SELECT s.id, s.name FROM students s
		JOIN enrollments e ON e.student_id = s.id
		WHERE e.class_id = ? AND e.semester_id = ? AND e.status = ?
		ORDER BY s.id`)
	if err := repo.db.SelectContext(ctx, &students, q, classID, semesterID, enrollmentActive); err != nil {
		return nil, errors.Wrap(err, "selecting enrolled students")
	}
	return students, nil
}

func (repo *rosterRepository) ClassSubjects(ctx context.Context, classID string) ([]grade.Subject, error) {
	subjects := make([]grade.Subject, 0)
	q := repo.db.Rebind(`SELECT DISTINCT s.id, s.name FROM subjects s
		JOIN class_subject_assignments csa ON csa.subject_id = s.id
		WHERE csa.class_id = ?
		ORDER BY s.id`)
	if err := repo.db.SelectContext(ctx, &subjects, q, classID); err != nil {
		return nil, errors.Wrap(err, "selecting class subjects")
	}
	return subjects, nil
}

func (repo *rosterRepository) GetClassSubject(ctx context.Context, id string) (grade.ClassSubject, error) {
	var cs grade.ClassSubject
	q := repo.db.Rebind(`SELECT id, class_id, subject_id, teacher_id, academic_year_id
		FROM class_subject_assignments WHERE id = ?`)
	if err := repo.db.GetContext(ctx, &cs, q, id); err != nil {
		return grade.ClassSubject{}, trapErr(err, "selecting class subject")
	}
	return cs, nil
}

func (repo *rosterRepository) GetStudent(ctx context.Context, id string) (grade.Student, error) {
	var st grade.Student
	if err := repo.db.GetContext(ctx, &st, repo.db.Rebind(`SELECT id, name FROM students WHERE id = ?`), id); err != nil {
		return grade.Student{}, trapErr(err, "selecting student")
	}
	return st, nil
}

func (repo *rosterRepository) GetSubject(ctx context.Context, id string) (grade.Subject, error) {
	var sub grade.Subject
	if err := repo.db.GetContext(ctx, &sub, repo.db.Rebind(`SELECT id, name FROM subjects WHERE id = ?`), id); err != nil {
		return grade.Subject{}, trapErr(err, "selecting subject")
	}
	return sub, nil
}

func (repo *rosterRepository) GuardiansOf(ctx context.Context, studentID string) ([]grade.Guardian, error) {
	guardians := make([]grade.Guardian, 0)
	q := repo.db.Rebind(`SELECT g.id, g.name, g.email FROM guardians g
		JOIN student_guardians sg ON sg.guardian_id = g.id
		WHERE sg.student_id = ?
		ORDER BY g.name, g.id`)
	if err := repo.db.SelectContext(ctx, &guardians, q, studentID); err != nil {
		return nil, errors.Wrap(err, "selecting guardians")
	}
	return guardians, nil
}

// Reference data is maintained outside the gradebook; these seeders stand in for it in tests and dev setups.

func (repo *rosterRepository) AddSubject(ctx context.Context, s grade.Subject) error {
	_, err := repo.db.NamedExecContext(ctx, `INSERT INTO subjects (id, name) VALUES (:id, :name)`, s)
	return trapErr(err, "inserting subject")
}

func (repo *rosterRepository) AddStudent(ctx context.Context, s grade.Student) error {
	_, err := repo.db.NamedExecContext(ctx, `INSERT INTO students (id, name) VALUES (:id, :name)`, s)
	return trapErr(err, "inserting student")
}

func (repo *rosterRepository) AddClassSubject(ctx context.Context, cs grade.ClassSubject) error {
	_, err := repo.db.NamedExecContext(ctx, `INSERT INTO class_subject_assignments
		(id, class_id, subject_id, teacher_id, academic_year_id)
		VALUES (:id, :class_id, :subject_id, :teacher_id, :academic_year_id)`, cs)
	return trapErr(err, "inserting class subject")
}

func (repo *rosterRepository) Enroll(ctx context.Context, classID, semesterID, studentID string, active bool) error {
	status := "withdrawn"
	if active {
		status = enrollmentActive
	}
	q := repo.db.Rebind(`INSERT INTO enrollments (class_id, semester_id, student_id, status) VALUES (?, ?, ?, ?)`)
	_, err := repo.db.ExecContext(ctx, q, classID, semesterID, studentID, status)
	return trapErr(err, "inserting enrollment")
}

func (repo *rosterRepository) AddGuardian(ctx context.Context, studentID string, g grade.Guardian) error {
	return trapErr(func() error {
		tx, err := repo.db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		q := tx.Rebind(`INSERT INTO guardians (id, name, email) VALUES (?, ?, ?) ON CONFLICT (id) DO NOTHING`)
		if _, err = tx.ExecContext(ctx, q, g.ID, g.Name, g.Email); err != nil {
			return err
		}
		q = tx.Rebind(`INSERT INTO student_guardians (student_id, guardian_id) VALUES (?, ?)`)
		if _, err = tx.ExecContext(ctx, q, studentID, g.ID); err != nil {
			return err
		}
		return tx.Commit()
	}(), "inserting guardian")
}
