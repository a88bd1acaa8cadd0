package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/masomo/core/grade"
)

type gradeRepository struct {
	db *DB
}

var (
	_ grade.Repository  = (*gradeRepository)(nil) // interface compliance check
	_ grade.ScoreReader = (*gradeRepository)(nil)
)

func NewGradeRepository(db *DB) *gradeRepository {
	return &gradeRepository{db: db}
}

func (repo *gradeRepository) GetAssessment(ctx context.Context, id string) (grade.Assessment, error) {
	if err := ctx.Err(); err != nil {
		return grade.Assessment{}, err
	}
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	a, ok := repo.db.assessments[id]
	if !ok {
		return grade.Assessment{}, grade.ErrNotFound
	}
	return a, nil
}

func (repo *gradeRepository) CreateAssessment(ctx context.Context, a grade.Assessment) (grade.Assessment, error) {
	if err := ctx.Err(); err != nil {
		return grade.Assessment{}, err
	}
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.assessments[a.ID]; ok {
		return grade.Assessment{}, grade.ErrConstraintViolation
	}
	repo.db.assessments[a.ID] = a
	return a, nil
}

func (repo *gradeRepository) UpdateAssessment(ctx context.Context, a grade.Assessment, rederive func(grade.Grade) (grade.Grade, error)) (grade.Assessment, error) {
	if err := ctx.Err(); err != nil {
		return grade.Assessment{}, err
	}
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.assessments[a.ID]
	if !ok {
		return grade.Assessment{}, grade.ErrNotFound
	}
	if a.ClassSubjectID != orig.ClassSubjectID && len(repo.db.gradesOf(a.ID)) > 0 {
		return grade.Assessment{}, grade.ErrImmutableField
	}
	// publish state only changes through the publish transitions
	a.IsPublished = orig.IsPublished
	a.PublishedAt = orig.PublishedAt
	a.CreatedAt = orig.CreatedAt

	if rederive != nil {
		updated := make([]grade.Grade, 0)
		for _, g := range repo.db.gradesOf(a.ID) {
			ng, err := rederive(g)
			if err != nil {
				return grade.Assessment{}, err
			}
			updated = append(updated, ng)
		}
		for _, g := range updated {
			repo.db.grades[cellKey{g.AssessmentID, g.StudentID}] = g
		}
	}
	repo.db.assessments[a.ID] = a
	return a, nil
}

func (repo *gradeRepository) CountGrades(ctx context.Context, assessmentID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return len(repo.db.gradesOf(assessmentID)), nil
}

func (repo *gradeRepository) GetGrade(ctx context.Context, assessmentID, studentID string) (grade.Grade, error) {
	if err := ctx.Err(); err != nil {
		return grade.Grade{}, err
	}
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	g, ok := repo.db.grades[cellKey{assessmentID, studentID}]
	if !ok {
		return grade.Grade{}, grade.ErrNotFound
	}
	return g, nil
}

func (repo *gradeRepository) UpsertGrade(ctx context.Context, g grade.Grade, basis grade.Assessment) (grade.Grade, error) {
	if err := ctx.Err(); err != nil {
		return grade.Grade{}, err
	}
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	a, ok := repo.db.assessments[g.AssessmentID]
	if !ok {
		return grade.Grade{}, grade.ErrNotFound
	}
	if !a.SameGradingBasis(basis) {
		return grade.Grade{}, grade.ErrConstraintViolation
	}
	key := cellKey{g.AssessmentID, g.StudentID}
	if existing, ok := repo.db.grades[key]; ok {
		g.ID = existing.ID
		g.CreatedAt = existing.CreatedAt
		g.IsPublished = g.IsPublished || existing.IsPublished
	}
	repo.db.grades[key] = g
	return g, nil
}

func (repo *gradeRepository) PublishAssessment(ctx context.Context, id string, at time.Time) ([]grade.Grade, error) {
	return repo.transition(ctx, id, at, true)
}

func (repo *gradeRepository) UnpublishAssessment(ctx context.Context, id string, at time.Time) ([]grade.Grade, error) {
	return repo.transition(ctx, id, at, false)
}

func (repo *gradeRepository) transition(ctx context.Context, id string, at time.Time, publish bool) ([]grade.Grade, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	a, ok := repo.db.assessments[id]
	if !ok {
		return nil, grade.ErrNotFound
	}
	if a.IsPublished == publish {
		return nil, grade.ErrStateUnchanged
	}

	a.IsPublished = publish
	if publish {
		a.PublishedAt = &at
	} else {
		a.PublishedAt = nil
	}
	a.UpdatedAt = at
	repo.db.assessments[id] = a

	grades := repo.db.gradesOf(id)
	for i := range grades {
		grades[i].IsPublished = publish
		grades[i].UpdatedAt = at
		repo.db.grades[cellKey{id, grades[i].StudentID}] = grades[i]
	}
	return grades, nil
}

func (repo *gradeRepository) PublishPendingGrades(ctx context.Context, id string, at time.Time) ([]grade.Grade, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	a, ok := repo.db.assessments[id]
	if !ok {
		return nil, grade.ErrNotFound
	}
	if !a.IsPublished {
		return nil, nil
	}

	pending := make([]grade.Grade, 0)
	for _, g := range repo.db.gradesOf(id) {
		if g.IsPublished {
			continue
		}
		g.IsPublished = true
		g.UpdatedAt = at
		repo.db.grades[cellKey{id, g.StudentID}] = g
		pending = append(pending, g)
	}
	return pending, nil
}

func (repo *gradeRepository) PublishedScores(ctx context.Context, filter grade.ScoreFilter) ([]grade.ScoreRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	rows := make([]grade.ScoreRow, 0)
	for _, g := range repo.db.grades {
		a, ok := repo.db.assessments[g.AssessmentID]
		if !ok || !a.IsPublished || !g.IsPublished {
			continue
		}
		if (filter.ClassID != "" && a.ClassID != filter.ClassID) ||
			(filter.StudentID != "" && g.StudentID != filter.StudentID) ||
			(filter.SubjectID != "" && a.SubjectID != filter.SubjectID) ||
			(filter.SemesterID != "" && a.SemesterID != filter.SemesterID) {
			continue
		}
		row := grade.ScoreRow{
			StudentID:       g.StudentID,
			ClassID:         a.ClassID,
			SubjectID:       a.SubjectID,
			SemesterID:      a.SemesterID,
			AssessmentID:    a.ID,
			AssessmentTitle: a.Title,
			AssessmentType:  a.Type,
			Date:            a.Date,
			Weight:          a.Weight,
			MaxScore:        a.MaxScore,
			Score:           g.Score,
			Percentage:      g.Percentage,
			LetterGrade:     g.LetterGrade,
		}
		if a.PublishedAt != nil {
			row.PublishedAt = *a.PublishedAt
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].StudentID != rows[j].StudentID {
			return rows[i].StudentID < rows[j].StudentID
		}
		return rows[i].AssessmentID < rows[j].AssessmentID
	})
	return rows, nil
}
