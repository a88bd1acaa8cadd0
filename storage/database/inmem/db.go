package inmemdb

import (
	"sort"
	"sync"

	"github.com/trezcool/masomo/core/grade"
)

// DB is a process-local gradebook database, used by the `memory` engine and tests.
// A single RWMutex guards every table so that multi-table writes are atomic.
type DB struct {
	mu sync.RWMutex

	assessments   map[string]grade.Assessment
	grades        map[cellKey]grade.Grade
	subjects      map[string]grade.Subject
	students      map[string]grade.Student
	classSubjects map[string]grade.ClassSubject
	enrollments   map[termKey]map[string]bool // {studentID: active}
	guardians     map[string][]grade.Guardian
	audit         []grade.AuditEntry
}

func Open() *DB {
	return &DB{
		assessments:   make(map[string]grade.Assessment),
		grades:        make(map[cellKey]grade.Grade),
		subjects:      make(map[string]grade.Subject),
		students:      make(map[string]grade.Student),
		classSubjects: make(map[string]grade.ClassSubject),
		enrollments:   make(map[termKey]map[string]bool),
		guardians:     make(map[string][]grade.Guardian),
	}
}

type cellKey struct {
	assessmentID, studentID string
}

// termKey identifies the roll of a class for one semester.
type termKey struct {
	classID, semesterID string
}

// Reference data is maintained outside the gradebook; these seeders stand in for it.

func (db *DB) AddSubject(s grade.Subject) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.subjects[s.ID] = s
}

func (db *DB) AddStudent(s grade.Student) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.students[s.ID] = s
}

func (db *DB) AddClassSubject(cs grade.ClassSubject) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.classSubjects[cs.ID] = cs
}

func (db *DB) Enroll(classID, semesterID, studentID string, active bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	key := termKey{classID, semesterID}
	if db.enrollments[key] == nil {
		db.enrollments[key] = make(map[string]bool)
	}
	db.enrollments[key][studentID] = active
}

func (db *DB) AddGuardian(studentID string, g grade.Guardian) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.guardians[studentID] = append(db.guardians[studentID], g)
}

// AuditEntries returns a copy of the audit log, oldest first.
func (db *DB) AuditEntries() []grade.AuditEntry {
	db.mu.RLock()
	defer db.mu.RUnlock()
	entries := make([]grade.AuditEntry, len(db.audit))
	copy(entries, db.audit)
	return entries
}

// gradesOf returns the grades of an assessment sorted by student. Callers hold the lock.
func (db *DB) gradesOf(assessmentID string) []grade.Grade {
	grades := make([]grade.Grade, 0)
	for _, g := range db.grades {
		if g.AssessmentID == assessmentID {
			grades = append(grades, g)
		}
	}
	sort.Slice(grades, func(i, j int) bool { return grades[i].StudentID < grades[j].StudentID })
	return grades
}
