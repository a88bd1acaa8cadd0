package notifysvc

import (
	"context"
	"fmt"

	"github.com/trezcool/masomo/core"
	"github.com/trezcool/masomo/core/grade"
)

// LogAuditor reports every audit entry to the logger before storing it.
type LogAuditor struct {
	next   grade.Auditor
	logger core.Logger
}

var _ grade.Auditor = (*LogAuditor)(nil)

func NewLogAuditor(next grade.Auditor, logger core.Logger) *LogAuditor {
	return &LogAuditor{next: next, logger: logger}
}

func (a *LogAuditor) RecordAudit(ctx context.Context, entry grade.AuditEntry) error {
	a.logger.Info(
		fmt.Sprintf("audit: %s of assessment %s (%d grades)", entry.Action, entry.AssessmentID, entry.GradeCount),
		map[string]interface{}{"audit_id": entry.ID, "at": entry.CreatedAt},
		core.Actor{ID: entry.ActorID},
	)
	if a.next == nil {
		return nil
	}
	return a.next.RecordAudit(ctx, entry)
}
