package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"CropPulse/internal/domain/models"
	mid "CropPulse/internal/middleware"
	"CropPulse/pkg/kafka"
)

// ObservationsMessage is the wire shape on the ingest topic.
type ObservationsMessage struct {
	Source       string                  `json:"source"`
	Observations []models.RawObservation `json:"observations"`
}

// KafkaObservationsHandler consumes observation batches published to the
// ingest topic and forwards them through the pipeline.
type KafkaObservationsHandler struct {
	topic string
	pipe  *mid.IngestPipeline
}

func NewKafkaObservationsHandler(topic string, pipe *mid.IngestPipeline) *KafkaObservationsHandler {
	return &KafkaObservationsHandler{topic: topic, pipe: pipe}
}

func (h *KafkaObservationsHandler) Topic() string { return h.topic }

func (h *KafkaObservationsHandler) Handle(ctx context.Context, payload []byte) error {
	var msg ObservationsMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("decode observations message: %w", err)
	}
	if msg.Source == "" {
		return fmt.Errorf("observations message missing source")
	}
	return h.pipe.Process(ctx, msg.Source, msg.Observations)
}

var _ kafka.MessageHandler = (*KafkaObservationsHandler)(nil)
