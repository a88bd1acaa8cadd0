package grade

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Engine computes weighted subject averages and class ranks from published scores.
// It never writes and holds no lock.
type Engine struct {
	scores ScoreReader
	roster Roster
}

func NewEngine(scores ScoreReader, roster Roster) *Engine {
	return &Engine{scores: scores, roster: roster}
}

type SubjectAverage struct {
	StudentID             string  `json:"student_id"`
	SubjectID             string  `json:"subject_id"`
	SemesterID            string  `json:"semester_id"`
	Average               float64 `json:"average"` // rounded to one decimal
	AssessmentsConsidered int     `json:"assessments_considered"`
	HasData               bool    `json:"has_data"`
}

// ClassRankRow is the standing of one enrolled student.
// A nil SubjectAverages entry means the student has no published score in that subject.
type ClassRankRow struct {
	StudentID        string              `json:"student_id"`
	StudentName      string              `json:"student_name"`
	SubjectAverages  map[string]*float64 `json:"subject_averages"`
	Total            float64             `json:"total"`
	Average          float64             `json:"average"`
	Rank             int                 `json:"rank"` // 0 when unranked
	SubjectsWithData int                 `json:"subjects_with_data"`
}

// weighted is a running Σ(percentage×weight) / Σweight.
type weighted struct {
	sum     float64
	weights float64
	count   int
}

// add ignores rows of zero (or negative) weight: they cannot move the average.
func (w *weighted) add(r ScoreRow) {
	if r.Weight <= 0 {
		return
	}
	w.sum += float64(r.Percentage) * r.Weight
	w.weights += r.Weight
	w.count++
}

func (w weighted) value() (avg float64, ok bool) {
	if w.weights == 0 {
		return 0, false
	}
	return w.sum / w.weights, true
}

// SubjectAverage is the weighted mean of the student's published percentages in the subject.
// Assessments the student has no published score for are left out, not counted as zero.
func (e *Engine) SubjectAverage(ctx context.Context, studentID, subjectID, semesterID string) (SubjectAverage, error) {
	res := SubjectAverage{StudentID: studentID, SubjectID: subjectID, SemesterID: semesterID}

	rows, err := e.scores.PublishedScores(ctx, ScoreFilter{StudentID: studentID, SubjectID: subjectID, SemesterID: semesterID})
	if err != nil {
		return res, storeErr(ctx, err, "reading published scores")
	}

	var w weighted
	for _, r := range rows {
		if r.StudentID == studentID && r.SubjectID == subjectID {
			w.add(r)
		}
	}
	if avg, ok := w.value(); ok {
		res.Average = round1(avg)
		res.AssessmentsConsidered = w.count
		res.HasData = true
	}
	return res, nil
}

// RankingSeq is a lazily computed class ranking. Every All or Range call recomputes it from the store.
type RankingSeq struct {
	engine     *Engine
	classID    string
	semesterID string
}

// ClassRanking ranks the students enrolled in the class over all the subjects assigned to it.
func (e *Engine) ClassRanking(classID, semesterID string) RankingSeq {
	return RankingSeq{engine: e, classID: classID, semesterID: semesterID}
}

func (s RankingSeq) All(ctx context.Context) ([]ClassRankRow, error) {
	_, rows, err := s.engine.rank(ctx, s.classID, s.semesterID)
	return rows, err
}

// Range calls fn for each row in rank order until fn returns false.
func (s RankingSeq) Range(ctx context.Context, fn func(ClassRankRow) bool) error {
	_, rows, err := s.engine.rank(ctx, s.classID, s.semesterID)
	if err != nil {
		return err
	}
	for _, r := range rows {
		if !fn(r) {
			break
		}
	}
	return nil
}

func (e *Engine) rank(ctx context.Context, classID, semesterID string) ([]Subject, []ClassRankRow, error) {
	var (
		subjects []Subject
		students []Student
		scores   []ScoreRow
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		subjects, err = e.roster.ClassSubjects(gctx, classID)
		return storeErr(gctx, err, "getting class subjects")
	})
	g.Go(func() (err error) {
		students, err = e.roster.EnrolledStudents(gctx, classID, semesterID)
		return storeErr(gctx, err, "getting enrolled students")
	})
	g.Go(func() (err error) {
		scores, err = e.scores.PublishedScores(gctx, ScoreFilter{ClassID: classID, SemesterID: semesterID})
		return storeErr(gctx, err, "reading published scores")
	})
	if err := g.Wait(); err != nil {
		return nil, nil, errors.Wrap(err, "ranking class")
	}

	return subjects, rankStudents(subjects, students, scores), nil
}

// rankStudents applies standard competition ranking ("1224") on the one-decimal average.
// Students without any data come last, unranked.
func rankStudents(subjects []Subject, students []Student, scores []ScoreRow) []ClassRankRow {
	known := make(map[string]bool, len(subjects))
	for _, s := range subjects {
		known[s.ID] = true
	}

	acc := make(map[string]map[string]*weighted, len(students)) // {studentID: {subjectID: avg}}
	for _, st := range students {
		acc[st.ID] = make(map[string]*weighted, len(subjects))
	}
	for _, r := range scores {
		bySubject, ok := acc[r.StudentID]
		if !ok || !known[r.SubjectID] {
			continue
		}
		w, ok := bySubject[r.SubjectID]
		if !ok {
			w = new(weighted)
			bySubject[r.SubjectID] = w
		}
		w.add(r)
	}

	rows := make([]ClassRankRow, 0, len(students))
	for _, st := range students {
		row := ClassRankRow{
			StudentID:       st.ID,
			StudentName:     st.Name,
			SubjectAverages: make(map[string]*float64, len(subjects)),
		}
		var total float64
		for _, sub := range subjects {
			row.SubjectAverages[sub.ID] = nil
			w, ok := acc[st.ID][sub.ID]
			if !ok {
				continue
			}
			if avg, ok := w.value(); ok {
				total += avg
				row.SubjectsWithData++
				rounded := round1(avg)
				row.SubjectAverages[sub.ID] = &rounded
			}
		}
		if row.SubjectsWithData > 0 {
			row.Total = round1(total)
			row.Average = round1(total / float64(row.SubjectsWithData))
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		ri, rj := rows[i], rows[j]
		if (ri.SubjectsWithData > 0) != (rj.SubjectsWithData > 0) {
			return ri.SubjectsWithData > 0
		}
		if ri.Average != rj.Average {
			return ri.Average > rj.Average
		}
		if ri.StudentName != rj.StudentName {
			return ri.StudentName < rj.StudentName
		}
		return ri.StudentID < rj.StudentID
	})

	for i := range rows {
		if rows[i].SubjectsWithData == 0 {
			break
		}
		if i > 0 && rows[i].Average == rows[i-1].Average {
			rows[i].Rank = rows[i-1].Rank
		} else {
			rows[i].Rank = i + 1
		}
	}
	return rows
}
