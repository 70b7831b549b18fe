// Package jobs holds the background jobs run on a cron schedule.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Purger deletes audit logs older than a retention window.
type Purger interface {
	PurgeOlderThan(ctx context.Context, retention time.Duration) (int64, error)
}

// RetentionJob deletes audit logs past the configured age.
type RetentionJob struct {
	purger Purger
	days   int
	log    logrus.FieldLogger
}

// NewRetentionJob creates a job keeping days of audit history. A
// non-positive days disables the purge.
func NewRetentionJob(purger Purger, days int, log logrus.FieldLogger) *RetentionJob {
	return &RetentionJob{purger: purger, days: days, log: log}
}

// Run performs one purge.
func (j *RetentionJob) Run(ctx context.Context) error {
	if j.days <= 0 {
		return nil
	}

	deleted, err := j.purger.PurgeOlderThan(ctx, time.Duration(j.days)*24*time.Hour)
	if err != nil {
		j.log.WithError(err).Error("Audit retention purge failed")
		return err
	}
	j.log.WithFields(logrus.Fields{
		"deleted":        deleted,
		"retention_days": j.days,
	}).Info("Audit retention purge completed")
	return nil
}

// Schedule registers the job on c under spec.
func (j *RetentionJob) Schedule(c *cron.Cron, spec string) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		_ = j.Run(ctx)
	})
}
