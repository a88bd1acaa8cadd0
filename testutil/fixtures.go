package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/trezcool/masomo/core/grade"
	"github.com/trezcool/masomo/storage/database/inmem"
)

// Seeder loads the reference data the gradebook reads but never writes.
type Seeder interface {
	AddSubject(ctx context.Context, s grade.Subject) error
	AddStudent(ctx context.Context, s grade.Student) error
	AddClassSubject(ctx context.Context, cs grade.ClassSubject) error
	Enroll(ctx context.Context, classID, semesterID, studentID string, active bool) error
	AddGuardian(ctx context.Context, studentID string, g grade.Guardian) error
}

type memSeeder struct {
	db *inmemdb.DB
}

// MemSeeder seeds an in-memory database.
func MemSeeder(db *inmemdb.DB) Seeder {
	return memSeeder{db: db}
}

func (s memSeeder) AddSubject(_ context.Context, sub grade.Subject) error {
	s.db.AddSubject(sub)
	return nil
}

func (s memSeeder) AddStudent(_ context.Context, st grade.Student) error {
	s.db.AddStudent(st)
	return nil
}

func (s memSeeder) AddClassSubject(_ context.Context, cs grade.ClassSubject) error {
	s.db.AddClassSubject(cs)
	return nil
}

func (s memSeeder) Enroll(_ context.Context, classID, semesterID, studentID string, active bool) error {
	s.db.Enroll(classID, semesterID, studentID, active)
	return nil
}

func (s memSeeder) AddGuardian(_ context.Context, studentID string, g grade.Guardian) error {
	s.db.AddGuardian(studentID, g)
	return nil
}

// ClassFixture is a small class: two subjects taught by one teacher, three enrolled students
// (Alice, Bob, Chloé) and a withdrawn one (Dan). Bob withdraws for the next semester.
// Alice has two guardians, Bob one, Chloé none.
type ClassFixture struct {
	ClassID        string
	SemesterID     string
	NextSemesterID string
	AcademicYearID string
	TeacherID      string

	Math    grade.Subject
	English grade.Subject

	MathCS    grade.ClassSubject
	EnglishCS grade.ClassSubject

	Alice, Bob, Chloe, Dan grade.Student

	AliceMother, AliceFather, BobGuardian grade.Guardian
}

func SeedClass(t *testing.T, s Seeder) ClassFixture {
	t.Helper()

	fx := ClassFixture{
		ClassID:        "class-7a",
		SemesterID:     "2024-s1",
		NextSemesterID: "2024-s2",
		AcademicYearID: "2024",
		TeacherID:      "teacher-1",
		Math:           grade.Subject{ID: "math", Name: "Mathematics"},
		English:        grade.Subject{ID: "eng", Name: "English"},
		Alice:          grade.Student{ID: "st-alice", Name: "Alice"},
		Bob:            grade.Student{ID: "st-bob", Name: "Bob"},
		Chloe:          grade.Student{ID: "st-chloe", Name: "Chloé"},
		Dan:            grade.Student{ID: "st-dan", Name: "Dan"},
		AliceMother:    grade.Guardian{ID: "g-alice-1", Name: "Ada", Email: "ada@example.com"},
		AliceFather:    grade.Guardian{ID: "g-alice-2", Name: "Abe", Email: "abe@example.com"},
		BobGuardian:    grade.Guardian{ID: "g-bob-1", Name: "Bea", Email: "bea@example.com"},
	}
	fx.MathCS = grade.ClassSubject{
		ID:             "cs-math",
		ClassID:        fx.ClassID,
		SubjectID:      fx.Math.ID,
		TeacherID:      fx.TeacherID,
		AcademicYearID: fx.AcademicYearID,
	}
	fx.EnglishCS = grade.ClassSubject{
		ID:             "cs-eng",
		ClassID:        fx.ClassID,
		SubjectID:      fx.English.ID,
		TeacherID:      fx.TeacherID,
		AcademicYearID: fx.AcademicYearID,
	}

	ctx := context.Background()
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("SeedClass() failed: %v", err)
		}
	}
	must(s.AddSubject(ctx, fx.Math))
	must(s.AddSubject(ctx, fx.English))
	must(s.AddClassSubject(ctx, fx.MathCS))
	must(s.AddClassSubject(ctx, fx.EnglishCS))
	for _, st := range []grade.Student{fx.Alice, fx.Bob, fx.Chloe, fx.Dan} {
		must(s.AddStudent(ctx, st))
		must(s.Enroll(ctx, fx.ClassID, fx.SemesterID, st.ID, st.ID != fx.Dan.ID))
		// Bob leaves the class after the first semester
		must(s.Enroll(ctx, fx.ClassID, fx.NextSemesterID, st.ID, st.ID != fx.Dan.ID && st.ID != fx.Bob.ID))
	}
	must(s.AddGuardian(ctx, fx.Alice.ID, fx.AliceMother))
	must(s.AddGuardian(ctx, fx.Alice.ID, fx.AliceFather))
	must(s.AddGuardian(ctx, fx.Bob.ID, fx.BobGuardian))
	return fx
}

// NewAssessment returns a valid assessment draft for cs.
func (fx ClassFixture) NewAssessment(cs grade.ClassSubject, title string, max, weight float64) grade.NewAssessment {
	return grade.NewAssessment{
		Title:          title,
		Type:           grade.TypeTest,
		ClassSubjectID: cs.ID,
		SemesterID:     fx.SemesterID,
		MaxScore:       max,
		Weight:         weight,
		Date:           time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC),
	}
}
