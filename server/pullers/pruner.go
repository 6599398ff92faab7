package pullers

import (
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	netlabutil "github.com/grimm00/networking-learning-sub003/util"
)

// How often the retention sweep runs.
const pruneInterval = time.Hour

// Storage operations the retention pruner needs.
type RetentionStore interface {
	DeleteReportsBefore(before time.Time) (int, error)
	DeleteEventsBefore(before time.Time) (int, error)
}

// RetentionPruner periodically removes reports and events older than
// the configured age so the database does not grow without bound.
type RetentionPruner struct {
	store    RetentionStore
	age      time.Duration
	executor *netlabutil.PeriodicExecutor
}

// Creates the pruner and starts its periodic executor.
func NewRetentionPruner(store RetentionStore, age time.Duration) *RetentionPruner {
	pruner := &RetentionPruner{
		store: store,
		age:   age,
	}
	pruner.executor = netlabutil.NewPeriodicExecutor("retention pruner", pruneInterval, pruner.prune)
	return pruner
}

// Stops the pruner.
func (pruner *RetentionPruner) Shutdown() {
	pruner.executor.Shutdown()
}

// One retention sweep over reports and events.
func (pruner *RetentionPruner) prune() error {
	before := netlabutil.UTCNow().Add(-pruner.age)

	reports, err := pruner.store.DeleteReportsBefore(before)
	if err != nil {
		return errors.WithMessage(err, "cannot prune old reports")
	}
	events, err := pruner.store.DeleteEventsBefore(before)
	if err != nil {
		return errors.WithMessage(err, "cannot prune old events")
	}
	if reports > 0 || events > 0 {
		log.WithFields(log.Fields{
			"reports": reports,
			"events":  events,
		}).Info("Pruned records older than the retention window")
	}
	return nil
}
