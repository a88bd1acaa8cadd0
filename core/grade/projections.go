package grade

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
)

// Reports builds read-only views of published grades.
type Reports struct {
	engine *Engine
	scores ScoreReader
	roster Roster
	scale  GradingScale
}

func NewReports(engine *Engine, scores ScoreReader, roster Roster, scale GradingScale) *Reports {
	return &Reports{engine: engine, scores: scores, roster: roster, scale: scale}
}

type TranscriptEntry struct {
	AssessmentID string    `json:"assessment_id"`
	Title        string    `json:"title"`
	Type         string    `json:"type"`
	Date         time.Time `json:"date"`
	Weight       float64   `json:"weight"`
	Score        float64   `json:"score"`
	MaxScore     float64   `json:"max_score"`
	Percentage   int       `json:"percentage"`
	LetterGrade  string    `json:"letter_grade"`
	PublishedAt  time.Time `json:"published_at"`
}

type TranscriptSubject struct {
	SubjectID             string            `json:"subject_id"`
	SubjectName           string            `json:"subject_name"`
	Entries               []TranscriptEntry `json:"entries"`
	Average               *float64          `json:"average"`
	LetterGrade           string            `json:"letter_grade"`
	AssessmentsConsidered int               `json:"assessments_considered"`
}

type Transcript struct {
	StudentID        string              `json:"student_id"`
	StudentName      string              `json:"student_name"`
	SemesterID       string              `json:"semester_id"`
	Subjects         []TranscriptSubject `json:"subjects"`
	OverallAverage   *float64            `json:"overall_average"`
	SubjectsWithData int                 `json:"subjects_with_data"`
}

type Leaderboard struct {
	ClassID    string         `json:"class_id"`
	SemesterID string         `json:"semester_id"`
	Subjects   []Subject      `json:"subjects"`
	Rows       []ClassRankRow `json:"rows"`
}

// Transcript lists the published scores of a student for a semester, grouped by subject.
func (r *Reports) Transcript(ctx context.Context, studentID, semesterID string) (Transcript, error) {
	st, err := r.roster.GetStudent(ctx, studentID)
	if err != nil {
		return Transcript{}, storeErr(ctx, err, "getting student")
	}
	rows, err := r.scores.PublishedScores(ctx, ScoreFilter{StudentID: studentID, SemesterID: semesterID})
	if err != nil {
		return Transcript{}, storeErr(ctx, err, "reading published scores")
	}

	tr := Transcript{
		StudentID:   st.ID,
		StudentName: st.Name,
		SemesterID:  semesterID,
		Subjects:    make([]TranscriptSubject, 0),
	}

	bySubject := make(map[string]*TranscriptSubject)
	avgs := make(map[string]*weighted)
	for _, row := range rows {
		ts, ok := bySubject[row.SubjectID]
		if !ok {
			ts = &TranscriptSubject{SubjectID: row.SubjectID, SubjectName: row.SubjectID}
			if sub, err := r.roster.GetSubject(ctx, row.SubjectID); err == nil {
				ts.SubjectName = sub.Name
			} else if !errors.Is(err, ErrNotFound) {
				return Transcript{}, storeErr(ctx, err, "getting subject")
			}
			bySubject[row.SubjectID] = ts
			avgs[row.SubjectID] = new(weighted)
		}
		ts.Entries = append(ts.Entries, TranscriptEntry{
			AssessmentID: row.AssessmentID,
			Title:        row.AssessmentTitle,
			Type:         row.AssessmentType,
			Date:         row.Date,
			Weight:       row.Weight,
			Score:        row.Score,
			MaxScore:     row.MaxScore,
			Percentage:   row.Percentage,
			LetterGrade:  row.LetterGrade,
			PublishedAt:  row.PublishedAt,
		})
		avgs[row.SubjectID].add(row)
	}

	var total float64
	for id, ts := range bySubject {
		sort.SliceStable(ts.Entries, func(i, j int) bool {
			if !ts.Entries[i].Date.Equal(ts.Entries[j].Date) {
				return ts.Entries[i].Date.Before(ts.Entries[j].Date)
			}
			return ts.Entries[i].Title < ts.Entries[j].Title
		})
		if avg, ok := avgs[id].value(); ok {
			rounded := round1(avg)
			ts.Average = &rounded
			ts.LetterGrade = r.scale.LetterGradeFor(int(rounded + 0.5))
			ts.AssessmentsConsidered = avgs[id].count
			total += avg
			tr.SubjectsWithData++
		}
		tr.Subjects = append(tr.Subjects, *ts)
	}
	sort.Slice(tr.Subjects, func(i, j int) bool {
		if tr.Subjects[i].SubjectName != tr.Subjects[j].SubjectName {
			return tr.Subjects[i].SubjectName < tr.Subjects[j].SubjectName
		}
		return tr.Subjects[i].SubjectID < tr.Subjects[j].SubjectID
	})
	if tr.SubjectsWithData > 0 {
		overall := round1(total / float64(tr.SubjectsWithData))
		tr.OverallAverage = &overall
	}
	return tr, nil
}

// Leaderboard materializes the class ranking with its subject headers.
func (r *Reports) Leaderboard(ctx context.Context, classID, semesterID string) (Leaderboard, error) {
	subjects, rows, err := r.engine.rank(ctx, classID, semesterID)
	if err != nil {
		return Leaderboard{}, err
	}
	sort.Slice(subjects, func(i, j int) bool { return subjects[i].Name < subjects[j].Name })
	return Leaderboard{
		ClassID:    classID,
		SemesterID: semesterID,
		Subjects:   subjects,
		Rows:       rows,
	}, nil
}
