package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/masomo/core/grade"
)

type rosterRepository struct {
	db *DB
}

var (
	_ grade.Roster            = (*rosterRepository)(nil)
	_ grade.GuardianDirectory = (*rosterRepository)(nil)
	_ grade.Auditor           = (*auditLog)(nil)
)

func NewRoster(db *DB) *rosterRepository {
	return &rosterRepository{db: db}
}

func (repo *rosterRepository) EnrolledStudents(ctx context.Context, classID, semesterID string) ([]grade.Student, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	students := make([]grade.Student, 0)
	for id, active := range repo.db.enrollments[termKey{classID, semesterID}] {
		if !active {
			continue
		}
		if st, ok := repo.db.students[id]; ok {
			students = append(students, st)
		}
	}
	sort.Slice(students, func(i, j int) bool { return students[i].ID < students[j].ID })
	return students, nil
}

func (repo *rosterRepository) ClassSubjects(ctx context.Context, classID string) ([]grade.Subject, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	seen := make(map[string]bool)
	subjects := make([]grade.Subject, 0)
	for _, cs := range repo.db.classSubjects {
		if cs.ClassID != classID || seen[cs.SubjectID] {
			continue
		}
		seen[cs.SubjectID] = true
		sub, ok := repo.db.subjects[cs.SubjectID]
		if !ok {
			sub = grade.Subject{ID: cs.SubjectID, Name: cs.SubjectID}
		}
		subjects = append(subjects, sub)
	}
	sort.Slice(subjects, func(i, j int) bool { return subjects[i].ID < subjects[j].ID })
	return subjects, nil
}

func (repo *rosterRepository) GetClassSubject(ctx context.Context, id string) (grade.ClassSubject, error) {
	if err := ctx.Err(); err != nil {
		return grade.ClassSubject{}, err
	}
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	cs, ok := repo.db.classSubjects[id]
	if !ok {
		return grade.ClassSubject{}, grade.ErrNotFound
	}
	return cs, nil
}

func (repo *rosterRepository) GetStudent(ctx context.Context, id string) (grade.Student, error) {
	if err := ctx.Err(); err != nil {
		return grade.Student{}, err
	}
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	st, ok := repo.db.students[id]
	if !ok {
		return grade.Student{}, grade.ErrNotFound
	}
	return st, nil
}

func (repo *rosterRepository) GetSubject(ctx context.Context, id string) (grade.Subject, error) {
	if err := ctx.Err(); err != nil {
		return grade.Subject{}, err
	}
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	sub, ok := repo.db.subjects[id]
	if !ok {
		return grade.Subject{}, grade.ErrNotFound
	}
	return sub, nil
}

func (repo *rosterRepository) GuardiansOf(ctx context.Context, studentID string) ([]grade.Guardian, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	guardians := make([]grade.Guardian, len(repo.db.guardians[studentID]))
	copy(guardians, repo.db.guardians[studentID])
	return guardians, nil
}

type auditLog struct {
	db *DB
}

func NewAuditLog(db *DB) *auditLog {
	return &auditLog{db: db}
}

func (l *auditLog) RecordAudit(ctx context.Context, entry grade.AuditEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.db.mu.Lock()
	defer l.db.mu.Unlock()
	l.db.audit = append(l.db.audit, entry)
	return nil
}
