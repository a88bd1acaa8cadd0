package grade

import (
	"time"

	"github.com/trezcool/masomo/core"
)

// Assessment types
const (
	TypeQuiz       = "quiz"
	TypeTest       = "test"
	TypeAssignment = "assignment"
	TypeProject    = "project"
	TypeMidterm    = "midterm"
	TypeExam       = "exam"
)

var AssessmentTypes = []string{TypeQuiz, TypeTest, TypeAssignment, TypeProject, TypeMidterm, TypeExam}

// Audit actions
const (
	ActionPublish     = "PUBLISH"
	ActionUnpublish   = "UNPUBLISH"
	ActionPublishLate = "PUBLISH_LATE"
)

type Assessment struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Type           string     `json:"type"`
	ClassSubjectID string     `json:"class_subject_id"`
	ClassID        string     `json:"class_id"`
	SubjectID      string     `json:"subject_id"`
	TeacherID      string     `json:"teacher_id"`
	AcademicYearID string     `json:"academic_year_id"`
	SemesterID     string     `json:"semester_id"`
	MaxScore       float64    `json:"max_score"`
	Weight         float64    `json:"weight"`
	Date           time.Time  `json:"date"`
	IsPublished    bool       `json:"is_published"`
	PublishedAt    *time.Time `json:"published_at"`
	CreatedAt      time.Time  `json:"created_at"` // UTC
	UpdatedAt      time.Time  `json:"updated_at"` // UTC
}

// SameGradingBasis reports whether grades derived from a still hold against b:
// same maximum score, class-subject assignment and publish state.
func (a Assessment) SameGradingBasis(b Assessment) bool {
	return a.MaxScore == b.MaxScore && a.ClassSubjectID == b.ClassSubjectID && a.IsPublished == b.IsPublished
}

// Grade is one score cell: the score of a student for an assessment.
// There is at most one Grade per (AssessmentID, StudentID).
type Grade struct {
	ID             string    `json:"id"`
	StudentID      string    `json:"student_id"`
	AssessmentID   string    `json:"assessment_id"`
	Score          float64   `json:"score"`
	Percentage     int       `json:"percentage"`
	LetterGrade    string    `json:"letter_grade"`
	IsPublished    bool      `json:"is_published"`
	TeacherID      string    `json:"teacher_id"` // last actor who saved the score
	ClassID        string    `json:"class_id"`
	SubjectID      string    `json:"subject_id"`
	AcademicYearID string    `json:"academic_year_id"`
	SemesterID     string    `json:"semester_id"`
	CreatedAt      time.Time `json:"created_at"` // UTC
	UpdatedAt      time.Time `json:"updated_at"` // UTC
}

// ClassSubject is the assignment of a subject to a class, taught by a teacher for an academic year.
type ClassSubject struct {
	ID             string `json:"id" db:"id"`
	ClassID        string `json:"class_id" db:"class_id"`
	SubjectID      string `json:"subject_id" db:"subject_id"`
	TeacherID      string `json:"teacher_id" db:"teacher_id"`
	AcademicYearID string `json:"academic_year_id" db:"academic_year_id"`
}

type Subject struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

type Student struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

type Guardian struct {
	ID    string `json:"id" db:"id"`
	Name  string `json:"name" db:"name"`
	Email string `json:"email" db:"email"`
}

// SaveScore is a single score cell edit.
type SaveScore struct {
	AssessmentID string  `json:"assessment_id" validate:"required,notblank"`
	StudentID    string  `json:"student_id" validate:"required,notblank"`
	Score        float64 `json:"score"`
	ActorID      string  `json:"actor_id" validate:"required,notblank"`
}

func (s *SaveScore) Clean() {
	s.AssessmentID = core.CleanString(s.AssessmentID)
	s.StudentID = core.CleanString(s.StudentID)
	s.ActorID = core.CleanString(s.ActorID)
}

// NewAssessment contains information needed to create a new Assessment.
type NewAssessment struct {
	Title          string    `json:"title" validate:"required,notblank,max=200"`
	Type           string    `json:"type" validate:"required,assessment_type"`
	ClassSubjectID string    `json:"class_subject_id" validate:"required,notblank"`
	SemesterID     string    `json:"semester_id" validate:"required,notblank"`
	MaxScore       float64   `json:"max_score" validate:"gt=0"`
	Weight         float64   `json:"weight" validate:"gte=0,lte=100"`
	Date           time.Time `json:"date" validate:"required"`
}

func (na *NewAssessment) Clean() {
	na.Title = core.CleanString(na.Title)
	na.Type = core.CleanString(na.Type, true /* lower */)
	na.ClassSubjectID = core.CleanString(na.ClassSubjectID)
	na.SemesterID = core.CleanString(na.SemesterID)
}

// UpdateAssessment defines what information may be provided to modify an existing Assessment.
// Nil fields are left untouched.
type UpdateAssessment struct {
	Title          *string    `json:"title" validate:"omitempty,notblank,max=200"`
	Type           *string    `json:"type" validate:"omitempty,assessment_type"`
	ClassSubjectID *string    `json:"class_subject_id" validate:"omitempty,notblank"`
	MaxScore       *float64   `json:"max_score" validate:"omitempty,gt=0"`
	Weight         *float64   `json:"weight" validate:"omitempty,gte=0,lte=100"`
	Date           *time.Time `json:"date"`
}

func (ua *UpdateAssessment) Clean() {
	if ua.Title != nil {
		title := core.CleanString(*ua.Title)
		ua.Title = &title
	}
	if ua.Type != nil {
		typ := core.CleanString(*ua.Type, true /* lower */)
		ua.Type = &typ
	}
	if ua.ClassSubjectID != nil {
		id := core.CleanString(*ua.ClassSubjectID)
		ua.ClassSubjectID = &id
	}
}

// GradeNotice is what guardians are told about a newly published grade.
type GradeNotice struct {
	StudentID       string    `json:"student_id"`
	AssessmentID    string    `json:"assessment_id"`
	AssessmentTitle string    `json:"assessment_title"`
	AssessmentType  string    `json:"assessment_type"`
	ClassID         string    `json:"class_id"`
	SubjectID       string    `json:"subject_id"`
	SemesterID      string    `json:"semester_id"`
	Score           float64   `json:"score"`
	MaxScore        float64   `json:"max_score"`
	Percentage      int       `json:"percentage"`
	LetterGrade     string    `json:"letter_grade"`
	PublishedAt     time.Time `json:"published_at"`
}

func newGradeNotice(a Assessment, g Grade, at time.Time) GradeNotice {
	return GradeNotice{
		StudentID:       g.StudentID,
		AssessmentID:    a.ID,
		AssessmentTitle: a.Title,
		AssessmentType:  a.Type,
		ClassID:         a.ClassID,
		SubjectID:       a.SubjectID,
		SemesterID:      a.SemesterID,
		Score:           g.Score,
		MaxScore:        a.MaxScore,
		Percentage:      g.Percentage,
		LetterGrade:     g.LetterGrade,
		PublishedAt:     at,
	}
}

type AuditEntry struct {
	ID           string    `json:"id"`
	Action       string    `json:"action"`
	AssessmentID string    `json:"assessment_id"`
	ActorID      string    `json:"actor_id"`
	GradeCount   int       `json:"grade_count"`
	CreatedAt    time.Time `json:"created_at"` // UTC
}

// PublishResult reports what a publish transition did.
type PublishResult struct {
	AssessmentID        string     `json:"assessment_id"`
	Action              string     `json:"action"`
	AlreadyPublished    bool       `json:"already_published,omitempty"`
	AlreadyDraft        bool       `json:"already_draft,omitempty"`
	GradesAffected      int        `json:"grades_affected"`
	Notified            int        `json:"notified"`
	NotificationsFailed int        `json:"notifications_failed"`
	AuditFailed         bool       `json:"audit_failed,omitempty"`
	PublishedAt         *time.Time `json:"published_at,omitempty"`
}

// ScoreRow is a published score joined with its assessment, as read by the aggregation engine.
type ScoreRow struct {
	StudentID       string    `json:"student_id"`
	ClassID         string    `json:"class_id"`
	SubjectID       string    `json:"subject_id"`
	SemesterID      string    `json:"semester_id"`
	AssessmentID    string    `json:"assessment_id"`
	AssessmentTitle string    `json:"assessment_title"`
	AssessmentType  string    `json:"assessment_type"`
	Date            time.Time `json:"date"`
	Weight          float64   `json:"weight"`
	MaxScore        float64   `json:"max_score"`
	Score           float64   `json:"score"`
	Percentage      int       `json:"percentage"`
	LetterGrade     string    `json:"letter_grade"`
	PublishedAt     time.Time `json:"published_at"` // of the assessment
}

// ScoreFilter narrows PublishedScores. Empty fields are ignored; SemesterID is always set by the engine.
type ScoreFilter struct {
	ClassID    string
	StudentID  string
	SubjectID  string
	SemesterID string
}
