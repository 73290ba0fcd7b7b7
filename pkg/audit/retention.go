package audit

import (
	"database/sql"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jobtrail/jobtrail/pkg/observability"
)

// DefaultRetentionDays is how long activity entries are kept when no
// retention period is configured.
const DefaultRetentionDays = 90

// Pruner periodically deletes activity log entries past the retention
// period. Invitation expiry is not handled here; it is evaluated lazily
// on access.
type Pruner struct {
	db            *sql.DB
	store         *Store
	retentionDays int
	schedule      string
	logger        *observability.Logger
	metrics       *observability.Metrics
	cron          *cron.Cron
}

// NewPruner creates a retention pruner. An empty schedule defaults to a
// nightly run; metrics may be nil.
func NewPruner(db *sql.DB, store *Store, retentionDays int, schedule string, logger *observability.Logger, metrics *observability.Metrics) *Pruner {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	if schedule == "" {
		schedule = "0 3 * * *"
	}
	return &Pruner{
		db:            db,
		store:         store,
		retentionDays: retentionDays,
		schedule:      schedule,
		logger:        logger,
		metrics:       metrics,
	}
}

// Start schedules the pruning job.
func (p *Pruner) Start() error {
	p.cron = cron.New()
	if _, err := p.cron.AddFunc(p.schedule, p.runOnce); err != nil {
		return err
	}
	p.cron.Start()
	p.logger.WithField("schedule", p.schedule).
		WithField("retention_days", p.retentionDays).
		Info("activity log pruner started")
	return nil
}

// Stop halts the pruning job and waits for a running invocation.
func (p *Pruner) Stop() {
	if p.cron != nil {
		<-p.cron.Stop().Done()
	}
}

func (p *Pruner) runOnce() {
	cutoff := time.Now().AddDate(0, 0, -p.retentionDays)
	pruned, err := p.store.Prune(p.db, cutoff)
	if err != nil {
		p.logger.WithError(err).Error("activity log prune failed")
		return
	}
	if p.metrics != nil {
		p.metrics.ActivityPrunedTotal.Add(float64(pruned))
	}
	p.logger.WithField("pruned", pruned).
		WithField("cutoff", cutoff.Format(time.RFC3339)).
		Info("activity log pruned")
}
