package grade

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo/core"
)

// Service manages assessments.
type Service struct {
	repo     Repository
	roster   Roster
	scale    GradingScale
	validate *validator.Validate
	policy   Policy
}

func NewService(repo Repository, roster Roster, scale GradingScale, validate *validator.Validate, policy Policy) *Service {
	return &Service{
		repo:     repo,
		roster:   roster,
		scale:    scale,
		validate: validate,
		policy:   policy,
	}
}

func (svc *Service) Get(ctx context.Context, id string) (Assessment, error) {
	sctx, cancel := core.WithTimeout(ctx, svc.policy.StoreTimeout)
	defer cancel()
	a, err := svc.repo.GetAssessment(sctx, id)
	return a, storeErr(sctx, err, "getting assessment")
}

// Create adds a draft assessment. Class, subject, teacher and academic year come from the class-subject assignment.
func (svc *Service) Create(ctx context.Context, na NewAssessment) (Assessment, error) {
	na.Clean()
	if err := svc.validate.Struct(na); err != nil {
		return Assessment{}, err
	}

	cs, err := svc.getClassSubject(ctx, na.ClassSubjectID)
	if err != nil {
		return Assessment{}, err
	}

	now := nowFunc()
	a := Assessment{
		ID:         newIDFunc(),
		Title:      na.Title,
		Type:       na.Type,
		SemesterID: na.SemesterID,
		MaxScore:   na.MaxScore,
		Weight:     na.Weight,
		Date:       na.Date.UTC(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	a.assign(cs)

	sctx, cancel := core.WithTimeout(ctx, svc.policy.StoreTimeout)
	defer cancel()
	a, err = svc.repo.CreateAssessment(sctx, a)
	return a, storeErr(sctx, err, "creating assessment")
}

// Update edits an assessment. The class-subject assignment is frozen once any score exists;
// a new maximum score re-derives every existing grade and is refused if a score would exceed it.
func (svc *Service) Update(ctx context.Context, id string, ua UpdateAssessment) (Assessment, error) {
	ua.Clean()
	if err := svc.validate.Struct(ua); err != nil {
		return Assessment{}, err
	}

	a, err := svc.Get(ctx, id)
	if err != nil {
		return Assessment{}, err
	}

	if ua.ClassSubjectID != nil && *ua.ClassSubjectID != a.ClassSubjectID {
		count, err := svc.countGrades(ctx, id)
		if err != nil {
			return Assessment{}, err
		}
		if count > 0 {
			return Assessment{}, immutableFieldError("class_subject_id")
		}
		cs, err := svc.getClassSubject(ctx, *ua.ClassSubjectID)
		if err != nil {
			return Assessment{}, err
		}
		a.assign(cs)
	}

	if ua.Title != nil {
		a.Title = *ua.Title
	}
	if ua.Type != nil {
		a.Type = *ua.Type
	}
	if ua.Weight != nil {
		a.Weight = *ua.Weight
	}
	if ua.Date != nil {
		a.Date = ua.Date.UTC()
	}

	now := nowFunc()
	var rederive func(Grade) (Grade, error)
	if ua.MaxScore != nil && *ua.MaxScore != a.MaxScore {
		max := *ua.MaxScore
		a.MaxScore = max
		rederive = func(g Grade) (Grade, error) {
			if g.Score > max {
				return Grade{}, core.NewValidationError(ErrInvalidScore, core.FieldError{
					Field: "max_score",
					Error: "an existing score exceeds the new maximum score",
				})
			}
			g.Percentage = Percentage(g.Score, max)
			g.LetterGrade = svc.scale.LetterGradeFor(g.Percentage)
			g.UpdatedAt = now
			return g, nil
		}
	}
	a.UpdatedAt = now

	sctx, cancel := core.WithTimeout(ctx, svc.policy.StoreTimeout)
	defer cancel()
	a, err = svc.repo.UpdateAssessment(sctx, a, rederive)
	if errors.Is(err, ErrImmutableField) {
		// a score landed after the count above
		return Assessment{}, immutableFieldError("class_subject_id")
	}
	return a, storeErr(sctx, err, "updating assessment")
}

func (svc *Service) getClassSubject(ctx context.Context, id string) (ClassSubject, error) {
	sctx, cancel := core.WithTimeout(ctx, svc.policy.StoreTimeout)
	defer cancel()
	cs, err := svc.roster.GetClassSubject(sctx, id)
	if errors.Is(err, ErrNotFound) {
		return ClassSubject{}, core.NewValidationError(err, core.FieldError{
			Field: "class_subject_id",
			Error: "class subject assignment not found",
		})
	}
	return cs, storeErr(sctx, err, "getting class subject")
}

func (svc *Service) countGrades(ctx context.Context, id string) (int, error) {
	sctx, cancel := core.WithTimeout(ctx, svc.policy.StoreTimeout)
	defer cancel()
	n, err := svc.repo.CountGrades(sctx, id)
	return n, storeErr(sctx, err, "counting grades")
}

func (a *Assessment) assign(cs ClassSubject) {
	a.ClassSubjectID = cs.ID
	a.ClassID = cs.ClassID
	a.SubjectID = cs.SubjectID
	a.TeacherID = cs.TeacherID
	a.AcademicYearID = cs.AcademicYearID
}
