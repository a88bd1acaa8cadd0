package grade_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo/core"
	"github.com/trezcool/masomo/core/grade"
	"github.com/trezcool/masomo/storage/database/inmem"
	"github.com/trezcool/masomo/testutil"
)

var frozenNow = time.Date(2024, time.March, 11, 9, 30, 0, 0, time.UTC)

type env struct {
	db       *inmemdb.DB
	fx       testutil.ClassFixture
	repo     grade.Repository
	logger   *testutil.Logger
	notifier *testutil.Notifier

	svc       *grade.Service
	writer    *grade.Writer
	publisher *grade.Publisher
	engine    *grade.Engine
	reports   *grade.Reports
}

type envOption func(*envConfig)

type envConfig struct {
	policy  grade.Policy
	repo    func(grade.Repository) grade.Repository
	auditor grade.Auditor
}

func withPolicy(p grade.Policy) envOption {
	return func(c *envConfig) { c.policy = p }
}

// withRepo decorates the in-memory repository.
func withRepo(wrap func(grade.Repository) grade.Repository) envOption {
	return func(c *envConfig) { c.repo = wrap }
}

func withAuditor(a grade.Auditor) envOption {
	return func(c *envConfig) { c.auditor = a }
}

func newEnv(t *testing.T, opts ...envOption) *env {
	t.Helper()
	restore := grade.SetNowFunc(func() time.Time { return frozenNow })
	t.Cleanup(restore)

	db := inmemdb.Open()
	cfg := envConfig{
		policy:  grade.Policy{AllowEditAfterPublish: true},
		auditor: inmemdb.NewAuditLog(db),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	var repo grade.Repository = inmemdb.NewGradeRepository(db)
	if cfg.repo != nil {
		repo = cfg.repo(repo)
	}
	scores := inmemdb.NewGradeRepository(db)
	roster := inmemdb.NewRoster(db)

	validate, translator := core.NewValidator()
	grade.InitValidators(validate, translator)

	e := &env{
		db:       db,
		fx:       testutil.SeedClass(t, testutil.MemSeeder(db)),
		repo:     repo,
		logger:   new(testutil.Logger),
		notifier: new(testutil.Notifier),
	}
	e.svc = grade.NewService(repo, roster, grade.DefaultScale, validate, cfg.policy)
	e.writer = grade.NewWriter(repo, grade.DefaultScale, validate, e.logger, cfg.policy)
	e.publisher = grade.NewPublisher(repo, e.notifier, cfg.auditor, e.logger, cfg.policy)
	e.engine = grade.NewEngine(scores, roster)
	e.reports = grade.NewReports(e.engine, scores, roster, grade.DefaultScale)
	return e
}

func (e *env) createAssessment(t *testing.T, cs grade.ClassSubject, title string, max, weight float64) grade.Assessment {
	t.Helper()
	a, err := e.svc.Create(context.Background(), e.fx.NewAssessment(cs, title, max, weight))
	require.NoError(t, err)
	return a
}

func (e *env) save(t *testing.T, a grade.Assessment, st grade.Student, score float64) grade.Grade {
	t.Helper()
	g, err := e.writer.SaveScore(context.Background(), grade.SaveScore{
		AssessmentID: a.ID,
		StudentID:    st.ID,
		Score:        score,
		ActorID:      e.fx.TeacherID,
	})
	require.NoError(t, err)
	return g
}

func (e *env) publish(t *testing.T, a grade.Assessment) grade.PublishResult {
	t.Helper()
	res, err := e.publisher.Publish(context.Background(), a.ID, e.fx.TeacherID)
	require.NoError(t, err)
	return res
}

// slowRepo blocks every assessment read until its context is done.
type slowRepo struct {
	grade.Repository
}

func (r slowRepo) GetAssessment(ctx context.Context, _ string) (grade.Assessment, error) {
	<-ctx.Done()
	return grade.Assessment{}, ctx.Err()
}

// conflictingRepo fails the first n upserts as if another writer had inserted the row first.
type conflictingRepo struct {
	grade.Repository
	n int32
}

func (r *conflictingRepo) UpsertGrade(ctx context.Context, g grade.Grade, basis grade.Assessment) (grade.Grade, error) {
	if atomic.AddInt32(&r.n, -1) >= 0 {
		return grade.Grade{}, grade.ErrConstraintViolation
	}
	return r.Repository.UpsertGrade(ctx, g, basis)
}

// gatedRepo holds upserts back until release is closed. reached is closed by the first upsert.
type gatedRepo struct {
	grade.Repository
	once    sync.Once
	reached chan struct{}
	release chan struct{}
}

func newGatedRepo(repo grade.Repository) *gatedRepo {
	return &gatedRepo{Repository: repo, reached: make(chan struct{}), release: make(chan struct{})}
}

func (r *gatedRepo) UpsertGrade(ctx context.Context, g grade.Grade, basis grade.Assessment) (grade.Grade, error) {
	r.once.Do(func() { close(r.reached) })
	<-r.release
	return r.Repository.UpsertGrade(ctx, g, basis)
}

// staleCountRepo reports no grades, as a count taken before a concurrent save landed would.
type staleCountRepo struct {
	grade.Repository
}

func (staleCountRepo) CountGrades(context.Context, string) (int, error) {
	return 0, nil
}
