package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo/core"
	"github.com/trezcool/masomo/core/grade"
)

type auditRow struct {
	ID           string    `db:"id"`
	Action       string    `db:"action"`
	AssessmentID string    `db:"assessment_id"`
	ActorID      string    `db:"actor_id"`
	GradeCount   int       `db:"grade_count"`
	CreatedAt    time.Time `db:"created_at"`
}

// AuditLog is the grade_audit_log table.
type AuditLog struct {
	db core.DB
}

var _ grade.Auditor = (*AuditLog)(nil)

func NewAuditLog(db core.DB) *AuditLog {
	return &AuditLog{db: db}
}

func (l *AuditLog) RecordAudit(ctx context.Context, entry grade.AuditEntry) error {
	row := auditRow(entry)
	row.CreatedAt = entry.CreatedAt.UTC()
	q := `INSERT INTO grade_audit_log (id, action, assessment_id, actor_id, grade_count, created_at)
		VALUES (:id, :action, :assessment_id, :actor_id, :grade_count, :created_at)`
	if _, err := l.db.NamedExecContext(ctx, q, row); err != nil {
		return errors.Wrap(err, "inserting audit entry")
	}
	return nil
}

// Entries returns the audit trail of an assessment, oldest first.
func (l *AuditLog) Entries(ctx context.Context, assessmentID string) ([]grade.AuditEntry, error) {
	var rows []auditRow
	q := l.db.Rebind(`SELECT id, action, assessment_id, actor_id, grade_count, created_at
		FROM grade_audit_log WHERE assessment_id = ? ORDER BY created_at, id`)
	if err := l.db.SelectContext(ctx, &rows, q, assessmentID); err != nil {
		return nil, errors.Wrap(err, "selecting audit entries")
	}
	entries := make([]grade.AuditEntry, 0, len(rows))
	for _, r := range rows {
		e := grade.AuditEntry(r)
		e.CreatedAt = r.CreatedAt.UTC()
		entries = append(entries, e)
	}
	return entries, nil
}
