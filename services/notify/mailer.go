package notifysvc

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo/core"
	"github.com/trezcool/masomo/core/grade"
)

const gradePublishedTemplate = "grade_published"

type gradePublishedData struct {
	GuardianName    string
	StudentName     string
	SubjectName     string
	AssessmentTitle string
	LetterGrade     string
	Percentage      int
}

// GuardianMailer emails every guardian of a student when one of the student's grades is published.
type GuardianMailer struct {
	guardians grade.GuardianDirectory
	roster    grade.Roster
	mailSvc   core.EmailService
}

var _ grade.GuardianNotifier = (*GuardianMailer)(nil)

func NewGuardianMailer(guardians grade.GuardianDirectory, roster grade.Roster, mailSvc core.EmailService) *GuardianMailer {
	return &GuardianMailer{guardians: guardians, roster: roster, mailSvc: mailSvc}
}

// NotifyGuardians sends one email per guardian. It tries every guardian and returns the first failure.
func (m *GuardianMailer) NotifyGuardians(ctx context.Context, notice grade.GradeNotice) error {
	guardians, err := m.guardians.GuardiansOf(ctx, notice.StudentID)
	if err != nil {
		return errors.Wrap(err, "getting guardians")
	}
	if len(guardians) == 0 {
		return nil
	}

	studentName := notice.StudentID
	if st, err := m.roster.GetStudent(ctx, notice.StudentID); err == nil {
		studentName = st.Name
	} else if !errors.Is(err, grade.ErrNotFound) {
		return errors.Wrap(err, "getting student")
	}
	subjectName := notice.SubjectID
	if sub, err := m.roster.GetSubject(ctx, notice.SubjectID); err == nil {
		subjectName = sub.Name
	} else if !errors.Is(err, grade.ErrNotFound) {
		return errors.Wrap(err, "getting subject")
	}

	var firstErr error
	for _, g := range guardians {
		if g.Email == "" {
			continue
		}
		msg := &core.EmailMessage{
			To:           []mail.Address{{Name: g.Name, Address: g.Email}},
			Subject:      fmt.Sprintf("New grade for %s: %s", studentName, notice.AssessmentTitle),
			TemplateName: gradePublishedTemplate,
			TemplateData: gradePublishedData{
				GuardianName:    g.Name,
				StudentName:     studentName,
				SubjectName:     subjectName,
				AssessmentTitle: notice.AssessmentTitle,
				LetterGrade:     notice.LetterGrade,
				Percentage:      notice.Percentage,
			},
		}
		if err := m.mailSvc.SendMessage(ctx, msg); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "emailing guardian %s", g.ID)
		}
	}
	return firstErr
}
