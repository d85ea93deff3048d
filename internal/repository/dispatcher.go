package repository

import (
	"context"
	"strconv"

	"CropPulse/internal/domain/models"
	"CropPulse/internal/domain/repository"
	pkgkafka "CropPulse/pkg/kafka"
	applogger "CropPulse/pkg/logger"
	"CropPulse/pkg/queue"
)

// KafkaDispatcher hands notification events to the outbound Kafka topic.
// Keyed by rule id so one rule's events stay ordered per partition.
type KafkaDispatcher struct {
	producer *pkgkafka.Producer
	topic    string
	metrics  repository.Metrics
}

// NewKafkaDispatcher creates a Kafka-backed dispatcher.
func NewKafkaDispatcher(producer *pkgkafka.Producer, topic string, metrics repository.Metrics) repository.Dispatcher {
	return &KafkaDispatcher{producer: producer, topic: topic, metrics: metrics}
}

func (d *KafkaDispatcher) Dispatch(ctx context.Context, ev models.NotificationEvent) error {
	err := d.producer.Publish(ctx, d.topic, []byte(ev.RuleID), ev)
	if err != nil {
		d.metrics.RecordDispatch("kafka", "error")
		return err
	}
	d.metrics.RecordDispatch("kafka", "ok")
	return nil
}

func (d *KafkaDispatcher) Close() error {
	if d.producer != nil {
		return d.producer.Close()
	}
	return nil
}

// QueueDispatcher hands notification events to the redis job queue, for
// deployments without a Kafka cluster.
type QueueDispatcher struct {
	q       queue.QueueService
	metrics repository.Metrics
}

// NewQueueDispatcher creates a queue-backed dispatcher.
func NewQueueDispatcher(q queue.QueueService, metrics repository.Metrics) repository.Dispatcher {
	return &QueueDispatcher{q: q, metrics: metrics}
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, ev models.NotificationEvent) error {
	err := d.q.PublishMessage(ctx, models.NotificationTopic, ev)
	if err != nil {
		d.metrics.RecordDispatch("redis", "error")
		return err
	}
	d.metrics.RecordDispatch("redis", "ok")
	return nil
}

func (d *QueueDispatcher) Close() error { return nil }

// LogDispatcher writes events to the application log. Default backend for
// development and the memory store profile.
type LogDispatcher struct {
	logger  *applogger.Logger
	metrics repository.Metrics
}

// NewLogDispatcher creates a log-only dispatcher.
func NewLogDispatcher(l *applogger.Logger, metrics repository.Metrics) repository.Dispatcher {
	return &LogDispatcher{logger: l, metrics: metrics}
}

func (d *LogDispatcher) Dispatch(ctx context.Context, ev models.NotificationEvent) error {
	d.logger.Info("alert fired",
		applogger.String("event_id", strconv.FormatInt(ev.EventID, 10)),
		applogger.String("rule_id", ev.RuleID),
		applogger.String("kind", string(ev.Kind)),
		applogger.String("commodity", ev.Point.Commodity),
		applogger.String("market", ev.Point.Market),
		applogger.String("threshold", ev.Threshold.String()),
		applogger.String("observed", ev.Observed.String()),
	)
	d.metrics.RecordDispatch("log", "ok")
	return nil
}

func (d *LogDispatcher) Close() error { return nil }
