package grade

import (
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/masomo/core"
)

var (
	nowFunc   = func() time.Time { return time.Now().UTC() } // mockable
	newIDFunc = func() string { return uuid.New().String() }
)

const defaultNotifyConcurrency = 8

// Policy holds the school-level switches of the gradebook.
type Policy struct {
	// AutoPublishLateGrades publishes scores entered after their assessment was published.
	AutoPublishLateGrades bool
	// AllowEditAfterPublish lets teachers edit scores of a published assessment.
	AllowEditAfterPublish bool
	// StoreTimeout bounds every store call. Zero means no bound.
	StoreTimeout time.Duration
	// NotifyConcurrency caps the guardian notifications sent at once.
	NotifyConcurrency int
}

func PolicyFromConfig(conf *core.Config) Policy {
	return Policy{
		AutoPublishLateGrades: conf.Grading.AutoPublishLateGrades,
		AllowEditAfterPublish: conf.Grading.AllowEditAfterPublish,
		StoreTimeout:          conf.Database.StoreTimeout,
		NotifyConcurrency:     conf.Grading.NotifyConcurrency,
	}
}

func (p Policy) notifyConcurrency() int {
	if p.NotifyConcurrency <= 0 {
		return defaultNotifyConcurrency
	}
	return p.NotifyConcurrency
}
