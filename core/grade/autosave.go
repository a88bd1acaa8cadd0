package grade

import (
	"context"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo/core"
)

// Writer saves score cells as teachers type them.
type Writer struct {
	repo     Repository
	scale    GradingScale
	validate *validator.Validate
	logger   core.Logger
	policy   Policy
	locks    *keyLock[cell]
}

func NewWriter(repo Repository, scale GradingScale, validate *validator.Validate, logger core.Logger, policy Policy) *Writer {
	return &Writer{
		repo:     repo,
		scale:    scale,
		validate: validate,
		logger:   logger,
		policy:   policy,
		locks:    newKeyLock[cell](),
	}
}

// SaveScore creates or updates the score cell of (cmd.AssessmentID, cmd.StudentID).
// Saves of the same cell are applied one at a time; a save never publishes the grade
// unless the assessment is already published and late grades are auto-published.
func (w *Writer) SaveScore(ctx context.Context, cmd SaveScore) (Grade, error) {
	cmd.Clean()
	if err := w.validate.Struct(cmd); err != nil {
		return Grade{}, err
	}

	key := cell{cmd.AssessmentID, cmd.StudentID}
	unlock, err := w.locks.Lock(ctx, key)
	if err != nil {
		return Grade{}, storeErr(ctx, err, "waiting for score cell")
	}
	defer unlock()

	g, err := w.save(ctx, cmd)
	if errors.Is(err, ErrConstraintViolation) {
		w.logger.Warn(fmt.Sprintf("grade.Writer: retrying save of %s: %v", key, err))
		g, err = w.save(ctx, cmd)
	}
	return g, err
}

func (w *Writer) save(ctx context.Context, cmd SaveScore) (Grade, error) {
	a, err := w.getAssessment(ctx, cmd.AssessmentID)
	if err != nil {
		return Grade{}, err
	}
	if a.IsPublished && !w.policy.AllowEditAfterPublish {
		return Grade{}, ErrAssessmentLocked
	}
	if !validScore(cmd.Score, a.MaxScore) {
		return Grade{}, invalidScoreError(cmd.Score, a.MaxScore)
	}

	now := nowFunc()
	g, err := w.getGrade(ctx, a.ID, cmd.StudentID)
	if errors.Is(err, ErrNotFound) {
		g = Grade{
			ID:           newIDFunc(),
			StudentID:    cmd.StudentID,
			AssessmentID: a.ID,
			CreatedAt:    now,
		}
	} else if err != nil {
		return Grade{}, err
	}

	g.Score = cmd.Score
	g.Percentage = Percentage(cmd.Score, a.MaxScore)
	g.LetterGrade = w.scale.LetterGradeFor(g.Percentage)
	g.TeacherID = cmd.ActorID
	g.ClassID = a.ClassID
	g.SubjectID = a.SubjectID
	g.AcademicYearID = a.AcademicYearID
	g.SemesterID = a.SemesterID
	g.UpdatedAt = now
	if a.IsPublished && w.policy.AutoPublishLateGrades {
		g.IsPublished = true
	}

	sctx, cancel := core.WithTimeout(ctx, w.policy.StoreTimeout)
	defer cancel()
	saved, err := w.repo.UpsertGrade(sctx, g, a)
	if err != nil {
		return Grade{}, storeErr(sctx, err, "upserting grade")
	}
	return saved, nil
}

func (w *Writer) getAssessment(ctx context.Context, id string) (Assessment, error) {
	sctx, cancel := core.WithTimeout(ctx, w.policy.StoreTimeout)
	defer cancel()
	a, err := w.repo.GetAssessment(sctx, id)
	return a, storeErr(sctx, err, "getting assessment")
}

func (w *Writer) getGrade(ctx context.Context, assessmentID, studentID string) (Grade, error) {
	sctx, cancel := core.WithTimeout(ctx, w.policy.StoreTimeout)
	defer cancel()
	g, err := w.repo.GetGrade(sctx, assessmentID, studentID)
	return g, storeErr(sctx, err, "getting grade")
}

func validScore(score, max float64) bool {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return false
	}
	return score >= 0 && score <= max
}
