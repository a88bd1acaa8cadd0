package grade_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A teacher types a score, corrects it, publishes, and the student's average follows.
func TestGradebook_saveThenPublish(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	a := e.createAssessment(t, e.fx.MathCS, "Algebra test", 50, 20)
	e.save(t, a, e.fx.Bob, 40)
	g := e.save(t, a, e.fx.Bob, 45)
	assert.Equal(t, 90, g.Percentage)
	assert.Equal(t, "A", g.LetterGrade)

	avg, err := e.engine.SubjectAverage(ctx, e.fx.Bob.ID, e.fx.Math.ID, e.fx.SemesterID)
	require.NoError(t, err)
	assert.False(t, avg.HasData, "drafts do not count")

	res := e.publish(t, a)
	assert.Equal(t, 1, res.GradesAffected)
	assert.Equal(t, 1, res.Notified)

	notices := e.notifier.Notices()
	require.Len(t, notices, 1)
	assert.Equal(t, e.fx.Bob.ID, notices[0].StudentID)
	assert.Equal(t, e.fx.Math.ID, notices[0].SubjectID)
	assert.Equal(t, "A", notices[0].LetterGrade)
	assert.Equal(t, 45.0, notices[0].Score)
	assert.Equal(t, 90, notices[0].Percentage)

	avg, err = e.engine.SubjectAverage(ctx, e.fx.Bob.ID, e.fx.Math.ID, e.fx.SemesterID)
	require.NoError(t, err)
	assert.True(t, avg.HasData)
	assert.Equal(t, 90.0, avg.Average)
	assert.Equal(t, 1, avg.AssessmentsConsidered)

	rows, err := e.engine.ClassRanking(e.fx.ClassID, e.fx.SemesterID).All(ctx)
	require.NoError(t, err)
	assert.Equal(t, e.fx.Bob.ID, rows[0].StudentID)
	assert.Equal(t, 1, rows[0].Rank)
}
