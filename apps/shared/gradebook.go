// Package shared wires the gradebook for the apps: stores by database engine, then the core services.
package shared

import (
	"context"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo/core"
	"github.com/trezcool/masomo/core/grade"
	notifysvc "github.com/trezcool/masomo/services/notify"
	"github.com/trezcool/masomo/storage/database"
	inmemdb "github.com/trezcool/masomo/storage/database/inmem"
	boiledrepos "github.com/trezcool/masomo/storage/database/sqlboiler"
	sqlxrepos "github.com/trezcool/masomo/storage/database/sqlx"
)

// Stores are the storage ports of the gradebook. DB is nil for the memory engine.
type Stores struct {
	DB        *sqlx.DB
	Repo      grade.Repository
	Scores    grade.ScoreReader
	Roster    grade.Roster
	Guardians grade.GuardianDirectory
	Auditor   grade.Auditor
}

func (s *Stores) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// OpenStores connects the stores of the configured engine. SQL databases are created if needed,
// and migrated when migrate is set.
func OpenStores(ctx context.Context, conf *core.Config, migrate bool) (*Stores, error) {
	if conf.Database.Engine == core.EngineMemory {
		db := inmemdb.Open()
		roster := inmemdb.NewRoster(db)
		return &Stores{
			Repo:      inmemdb.NewGradeRepository(db),
			Scores:    inmemdb.NewGradeRepository(db),
			Roster:    roster,
			Guardians: roster,
			Auditor:   inmemdb.NewAuditLog(db),
		}, nil
	}

	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return nil, errors.Wrap(err, "creating database")
	}
	db, err := database.Open(conf)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if err = database.Ping(ctx, db); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "pinging database")
	}
	if migrate {
		if err = database.Migrate(db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	roster := sqlxrepos.NewRoster(db)
	return &Stores{
		DB:        db,
		Repo:      sqlxrepos.NewGradeRepository(db),
		Scores:    boiledrepos.NewScoreReader(db),
		Roster:    roster,
		Guardians: roster,
		Auditor:   sqlxrepos.NewAuditLog(db),
	}, nil
}

// Gradebook holds the core services, ready to serve.
type Gradebook struct {
	Validate   *validator.Validate
	Translator ut.Translator

	Assessments *grade.Service
	Writer      *grade.Writer
	Publisher   *grade.Publisher
	Engine      *grade.Engine
	Reports     *grade.Reports
}

func NewGradebook(conf *core.Config, stores *Stores, logger core.Logger, mailSvc core.EmailService) (*Gradebook, error) {
	scale, err := grade.ParseBandScale(conf.Grading.Scale)
	if err != nil {
		return nil, errors.Wrap(err, "parsing grading scale")
	}
	policy := grade.PolicyFromConfig(conf)

	validate, translator := core.NewValidator()
	grade.InitValidators(validate, translator)

	notifier := notifysvc.NewGuardianMailer(stores.Guardians, stores.Roster, mailSvc)
	auditor := notifysvc.NewLogAuditor(stores.Auditor, logger)
	engine := grade.NewEngine(stores.Scores, stores.Roster)

	return &Gradebook{
		Validate:    validate,
		Translator:  translator,
		Assessments: grade.NewService(stores.Repo, stores.Roster, scale, validate, policy),
		Writer:      grade.NewWriter(stores.Repo, scale, validate, logger, policy),
		Publisher:   grade.NewPublisher(stores.Repo, notifier, auditor, logger, policy),
		Engine:      engine,
		Reports:     grade.NewReports(engine, stores.Scores, stores.Roster, scale),
	}, nil
}
