// Package notify delivers fired alert notifications from the redis job
// queue to their owners.
package notify

import (
	"context"
	"fmt"
	"strconv"

	"CropPulse/internal/domain/models"
	"CropPulse/internal/domain/repository"
	applogger "CropPulse/pkg/logger"
	"CropPulse/pkg/queue"
)

// DeliveryJob consumes fired alert events. Delivery here is a structured
// log line; SMS and push channels plug in behind the same job.
type DeliveryJob struct {
	logger  *applogger.Logger
	metrics repository.Metrics
}

var _ queue.Job = (*DeliveryJob)(nil)

// NewDeliveryJob creates the notification delivery job.
func NewDeliveryJob(l *applogger.Logger, m repository.Metrics) *DeliveryJob {
	return &DeliveryJob{logger: l, metrics: m}
}

func (j *DeliveryJob) Name() string { return "notification-delivery" }

func (j *DeliveryJob) Type() string { return models.NotificationTopic }

func (j *DeliveryJob) Handle(ctx context.Context, payload interface{}) error {
	ev, err := queue.ParsePayload[models.NotificationEvent](payload)
	if err != nil {
		j.metrics.RecordDispatch("delivery", "error")
		return fmt.Errorf("parse notification event: %w", err)
	}

	j.logger.Info("notification delivered",
		applogger.String("event_id", strconv.FormatInt(ev.EventID, 10)),
		applogger.String("rule_id", ev.RuleID),
		applogger.String("owner_id", ev.OwnerID),
		applogger.String("kind", string(ev.Kind)),
		applogger.String("commodity", ev.Point.Commodity),
		applogger.String("market", ev.Point.Market),
		applogger.String("observed", ev.Observed.String()),
	)
	j.metrics.RecordDispatch("delivery", "ok")
	return nil
}
