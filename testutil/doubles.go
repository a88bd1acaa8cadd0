package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo/core"
	"github.com/trezcool/masomo/core/grade"
)

// LogEntry is one call recorded by Logger.
type LogEntry struct {
	Level string
	Msg   string
	Args  []interface{}
}

// Logger records every call instead of printing it.
type Logger struct {
	mu      sync.Mutex
	entries []LogEntry
}

var _ core.Logger = (*Logger)(nil)

func (l *Logger) record(level, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, LogEntry{Level: level, Msg: msg, Args: args})
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.record("debug", msg, args) }
func (l *Logger) Info(msg string, args ...interface{})  { l.record("info", msg, args) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.record("warn", msg, args) }
func (l *Logger) Error(msg string, args ...interface{}) { l.record("error", msg, args) }
func (l *Logger) Fatal(msg string, args ...interface{}) { l.record("fatal", msg, args) }

// Entries returns the recorded calls of level, or all of them if level is empty.
func (l *Logger) Entries(level string) []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	entries := make([]LogEntry, 0, len(l.entries))
	for _, e := range l.entries {
		if level == "" || e.Level == level {
			entries = append(entries, e)
		}
	}
	return entries
}

// Notifier records notices. Students listed in FailFor make it fail.
type Notifier struct {
	FailFor map[string]bool

	mu      sync.Mutex
	notices []grade.GradeNotice
}

var _ grade.GuardianNotifier = (*Notifier)(nil)

func (n *Notifier) NotifyGuardians(_ context.Context, notice grade.GradeNotice) error {
	if n.FailFor[notice.StudentID] {
		return errors.Errorf("mailbox of %s is unreachable", notice.StudentID)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
	return nil
}

// Notices returns the delivered notices sorted by student.
func (n *Notifier) Notices() []grade.GradeNotice {
	n.mu.Lock()
	defer n.mu.Unlock()
	notices := make([]grade.GradeNotice, len(n.notices))
	copy(notices, n.notices)
	sort.Slice(notices, func(i, j int) bool { return notices[i].StudentID < notices[j].StudentID })
	return notices
}

// FailingAuditor refuses every audit entry.
type FailingAuditor struct{}

var _ grade.Auditor = FailingAuditor{}

func (FailingAuditor) RecordAudit(context.Context, grade.AuditEntry) error {
	return errors.New("audit store is down")
}
