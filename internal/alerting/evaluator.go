package alerting

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yukikurage/rocks-tracker-api/internal/models"
	"github.com/yukikurage/rocks-tracker-api/internal/observability"
)

const evaluationTimeout = 30 * time.Second

// Evaluator matches audit logs against alert configs and dispatches the
// matches outside the request path.
type Evaluator struct {
	cache      *ConfigCache
	cooldown   CooldownTracker
	dispatcher *Dispatcher
	log        logrus.FieldLogger
	metrics    *observability.Metrics
	wg         sync.WaitGroup
}

// NewEvaluator creates a new Evaluator.
func NewEvaluator(cache *ConfigCache, cooldown CooldownTracker, dispatcher *Dispatcher, log logrus.FieldLogger, metrics *observability.Metrics) *Evaluator {
	return &Evaluator{
		cache:      cache,
		cooldown:   cooldown,
		dispatcher: dispatcher,
		log:        log,
		metrics:    metrics,
	}
}

// Notify evaluates log in the background. Errors are logged.
func (e *Evaluator) Notify(log models.AuditLog) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				e.log.WithField("audit_log_id", log.ID).Errorf("Alert evaluation panicked: %v", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), evaluationTimeout)
		defer cancel()
		if err := e.Evaluate(ctx, log); err != nil {
			e.log.WithError(err).WithField("audit_log_id", log.ID).Warn("Alert evaluation failed")
		}
	}()
}

// Wait blocks until every pending evaluation finished.
func (e *Evaluator) Wait() {
	e.wg.Wait()
}

// Evaluate dispatches every matching config whose cooldown elapsed. The
// cooldown is marked before dispatching so concurrent events for the same
// pair dispatch once.
func (e *Evaluator) Evaluate(ctx context.Context, log models.AuditLog) error {
	configs, err := e.cache.Get(ctx, log.OrganizationID)
	if err != nil {
		return err
	}

	for _, config := range configs {
		if !Matches(config, log.Action, log.EntityType) {
			continue
		}
		e.metrics.AlertsMatched.WithLabelValues(log.EntityType).Inc()

		cooldown := time.Duration(config.CooldownMinutes) * time.Minute
		acquired, err := e.cooldown.TryAcquire(ctx, config.ID, log.EntityID, cooldown)
		if err != nil {
			e.log.WithError(err).WithField("alert_config_id", config.ID).Warn("Failed to check alert cooldown")
			continue
		}
		if !acquired {
			e.metrics.AlertCooldownSkips.Inc()
			continue
		}

		if err := e.dispatcher.Dispatch(ctx, config, log); err != nil {
			e.log.WithError(err).WithFields(logrus.Fields{
				"alert_config_id": config.ID,
				"audit_log_id":    log.ID,
			}).Warn("Alert dispatched with errors")
		}
	}
	return nil
}
