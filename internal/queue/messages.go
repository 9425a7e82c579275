package queue

import (
	"encoding/json"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// IngestJob asks the worker to extract and commit one archived note.
type IngestJob struct {
	OwnerID    string    `json:"owner_id"`
	EvidenceID string    `json:"evidence_id"`
	ObservedAt time.Time `json:"observed_at"`
}

// MetricsJob asks the worker to rescore one relationship from its full
// contact history.
type MetricsJob struct {
	OwnerID  string `json:"owner_id"`
	PersonID string `json:"person_id"`
}

func PublishIngestJob(ch *amqp091.Channel, job IngestJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return PublishFIFO(ch, IngestQueue, data)
}

func PublishMetricsJob(ch *amqp091.Channel, job MetricsJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return PublishFIFO(ch, MetricsQueue, data)
}
