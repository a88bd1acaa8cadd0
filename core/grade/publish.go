package grade

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/masomo/core"
)

// Publisher moves assessments between draft and published, then audits and notifies.
type Publisher struct {
	repo     Repository
	notifier GuardianNotifier
	auditor  Auditor
	logger   core.Logger
	policy   Policy
	locks    *keyLock[string]
}

func NewPublisher(repo Repository, notifier GuardianNotifier, auditor Auditor, logger core.Logger, policy Policy) *Publisher {
	return &Publisher{
		repo:     repo,
		notifier: notifier,
		auditor:  auditor,
		logger:   logger,
		policy:   policy,
		locks:    newKeyLock[string](),
	}
}

// Publish publishes the assessment and all its grades at once.
// Publishing a published assessment is a no-op: nothing is audited and nobody is notified.
// Audit and notification failures are logged and reported in the result, never returned.
func (p *Publisher) Publish(ctx context.Context, assessmentID, actorID string) (PublishResult, error) {
	res := PublishResult{AssessmentID: assessmentID, Action: ActionPublish}

	a, unlock, err := p.begin(ctx, assessmentID, actorID)
	if err != nil {
		return res, err
	}
	defer unlock()

	if a.IsPublished {
		res.AlreadyPublished = true
		res.PublishedAt = a.PublishedAt
		return res, nil
	}

	now := nowFunc()
	grades, err := p.transition(ctx, "publishing assessment", func(ctx context.Context) ([]Grade, error) {
		return p.repo.PublishAssessment(ctx, assessmentID, now)
	})
	if errors.Is(err, ErrStateUnchanged) {
		res.AlreadyPublished = true
		return res, nil
	} else if err != nil {
		return res, err
	}

	res.GradesAffected = len(grades)
	res.PublishedAt = &now
	res.AuditFailed = !p.audit(ctx, ActionPublish, assessmentID, actorID, len(grades), now)
	res.Notified, res.NotificationsFailed = p.notify(ctx, a, grades, now)
	return res, nil
}

// Unpublish reverts a published assessment and its grades to draft. Grades are kept and nobody is notified.
func (p *Publisher) Unpublish(ctx context.Context, assessmentID, actorID string) (PublishResult, error) {
	res := PublishResult{AssessmentID: assessmentID, Action: ActionUnpublish}

	a, unlock, err := p.begin(ctx, assessmentID, actorID)
	if err != nil {
		return res, err
	}
	defer unlock()

	if !a.IsPublished {
		res.AlreadyDraft = true
		return res, nil
	}

	now := nowFunc()
	grades, err := p.transition(ctx, "unpublishing assessment", func(ctx context.Context) ([]Grade, error) {
		return p.repo.UnpublishAssessment(ctx, assessmentID, now)
	})
	if errors.Is(err, ErrStateUnchanged) {
		res.AlreadyDraft = true
		return res, nil
	} else if err != nil {
		return res, err
	}

	res.GradesAffected = len(grades)
	res.AuditFailed = !p.audit(ctx, ActionUnpublish, assessmentID, actorID, len(grades), now)
	return res, nil
}

// Sweep publishes the grades entered after their assessment was published and notifies those students only.
// It does nothing on a draft assessment or when there is nothing left to publish.
func (p *Publisher) Sweep(ctx context.Context, assessmentID, actorID string) (PublishResult, error) {
	res := PublishResult{AssessmentID: assessmentID, Action: ActionPublishLate}

	a, unlock, err := p.begin(ctx, assessmentID, actorID)
	if err != nil {
		return res, err
	}
	defer unlock()

	if !a.IsPublished {
		res.AlreadyDraft = true
		return res, nil
	}
	res.PublishedAt = a.PublishedAt

	now := nowFunc()
	grades, err := p.transition(ctx, "publishing pending grades", func(ctx context.Context) ([]Grade, error) {
		return p.repo.PublishPendingGrades(ctx, assessmentID, now)
	})
	if err != nil {
		return res, err
	}
	if len(grades) == 0 {
		return res, nil
	}

	res.GradesAffected = len(grades)
	res.AuditFailed = !p.audit(ctx, ActionPublishLate, assessmentID, actorID, len(grades), now)
	res.Notified, res.NotificationsFailed = p.notify(ctx, a, grades, now)
	return res, nil
}

// begin takes the transition lock of the assessment and reads it.
func (p *Publisher) begin(ctx context.Context, assessmentID, actorID string) (Assessment, func(), error) {
	if core.CleanString(actorID) == "" {
		return Assessment{}, nil, core.NewValidationError(nil, core.FieldError{Field: "actor_id", Error: "this field is required"})
	}

	unlock, err := p.locks.Lock(ctx, assessmentID)
	if err != nil {
		return Assessment{}, nil, storeErr(ctx, err, "waiting for assessment")
	}

	sctx, cancel := core.WithTimeout(ctx, p.policy.StoreTimeout)
	defer cancel()
	a, err := p.repo.GetAssessment(sctx, assessmentID)
	if err != nil {
		unlock()
		return Assessment{}, nil, storeErr(sctx, err, "getting assessment")
	}
	return a, unlock, nil
}

func (p *Publisher) transition(ctx context.Context, msg string, fn func(context.Context) ([]Grade, error)) ([]Grade, error) {
	sctx, cancel := core.WithTimeout(ctx, p.policy.StoreTimeout)
	defer cancel()
	grades, err := fn(sctx)
	if errors.Is(err, ErrStateUnchanged) {
		return nil, err
	}
	return grades, storeErr(sctx, err, msg)
}

func (p *Publisher) audit(ctx context.Context, action, assessmentID, actorID string, count int, at time.Time) bool {
	if p.auditor == nil {
		return true
	}
	entry := AuditEntry{
		ID:           newIDFunc(),
		Action:       action,
		AssessmentID: assessmentID,
		ActorID:      actorID,
		GradeCount:   count,
		CreatedAt:    at,
	}
	if err := p.auditor.RecordAudit(ctx, entry); err != nil {
		err = errors.Wrapf(ErrDownstreamUnavailable, "recording %s audit: %v", action, err)
		p.logger.Error(fmt.Sprintf("grade.Publisher: %v", err), err, core.Actor{ID: actorID})
		return false
	}
	return true
}

// notify sends one notice per student, at most policy.NotifyConcurrency at a time.
func (p *Publisher) notify(ctx context.Context, a Assessment, grades []Grade, at time.Time) (sent, failed int) {
	if p.notifier == nil || len(grades) == 0 {
		return 0, 0
	}

	var nSent, nFailed int64
	var g errgroup.Group
	g.SetLimit(p.policy.notifyConcurrency())

	seen := make(map[string]bool, len(grades))
	for _, gr := range grades {
		if seen[gr.StudentID] {
			continue
		}
		seen[gr.StudentID] = true

		notice := newGradeNotice(a, gr, at)
		g.Go(func() error {
			if err := p.notifier.NotifyGuardians(ctx, notice); err != nil {
				atomic.AddInt64(&nFailed, 1)
				err = errors.Wrapf(ErrDownstreamUnavailable, "notifying guardians of %s: %v", notice.StudentID, err)
				p.logger.Error(fmt.Sprintf("grade.Publisher: %v", err), err)
				return nil
			}
			atomic.AddInt64(&nSent, 1)
			return nil
		})
	}
	_ = g.Wait()
	return int(nSent), int(nFailed)
}
