package grade

import (
	"context"
	"time"
)

type (
	AssessmentProvider interface {
		GetAssessment(ctx context.Context, id string) (Assessment, error)
	}

	// Repository is the score cell store.
	// Every method is atomic: a reader never observes a half-applied call.
	Repository interface {
		AssessmentProvider

		CreateAssessment(ctx context.Context, a Assessment) (Assessment, error)
		// UpdateAssessment saves a and, when rederive is not nil, rewrites every grade of the assessment
		// with rederive's result, in the same transaction. An error from rederive aborts the update.
		// Moving an assessment that has grades to another class subject fails with ErrImmutableField.
		UpdateAssessment(ctx context.Context, a Assessment, rederive func(Grade) (Grade, error)) (Assessment, error)
		CountGrades(ctx context.Context, assessmentID string) (int, error)

		GetGrade(ctx context.Context, assessmentID, studentID string) (Grade, error)
		// UpsertGrade inserts g or updates the existing row of (g.AssessmentID, g.StudentID) in place.
		// The existing row keeps its ID and CreatedAt. basis is the assessment g was derived from:
		// when the stored assessment no longer has the same grading basis, nothing is written
		// and ErrConstraintViolation is returned.
		UpsertGrade(ctx context.Context, g Grade, basis Assessment) (Grade, error)

		// PublishAssessment flips the assessment and all its grades to published and returns those grades.
		// It returns ErrStateUnchanged if the assessment is already published.
		PublishAssessment(ctx context.Context, id string, at time.Time) ([]Grade, error)
		// UnpublishAssessment reverts the assessment and its grades to draft and returns those grades.
		// It returns ErrStateUnchanged if the assessment is a draft.
		UnpublishAssessment(ctx context.Context, id string, at time.Time) ([]Grade, error)
		// PublishPendingGrades publishes the draft grades of a published assessment and returns them.
		PublishPendingGrades(ctx context.Context, id string, at time.Time) ([]Grade, error)
	}

	// ScoreReader reads published scores of published assessments only.
	ScoreReader interface {
		PublishedScores(ctx context.Context, filter ScoreFilter) ([]ScoreRow, error)
	}

	// Roster gives access to reference data maintained elsewhere.
	Roster interface {
		// EnrolledStudents returns the students actively enrolled in the class during the semester.
		EnrolledStudents(ctx context.Context, classID, semesterID string) ([]Student, error)
		// ClassSubjects returns the distinct subjects assigned to the class, across all teachers.
		ClassSubjects(ctx context.Context, classID string) ([]Subject, error)
		GetClassSubject(ctx context.Context, id string) (ClassSubject, error)
		GetStudent(ctx context.Context, id string) (Student, error)
		GetSubject(ctx context.Context, id string) (Subject, error)
	}

	// GuardianDirectory resolves who must hear about a student's grades.
	GuardianDirectory interface {
		GuardiansOf(ctx context.Context, studentID string) ([]Guardian, error)
	}

	GuardianNotifier interface {
		NotifyGuardians(ctx context.Context, notice GradeNotice) error
	}

	Auditor interface {
		RecordAudit(ctx context.Context, entry AuditEntry) error
	}
)
