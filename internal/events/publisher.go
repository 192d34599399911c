package events

import (
	"encoding/json"
	"fmt"
	"time"

	"catalog-import-service/internal/models"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

const subjectImportCompleted = "catalog.import.completed"

// ImportCompletedEvent is published once per finished import job
type ImportCompletedEvent struct {
	JobID        string                 `json:"jobId"`
	TenantID     string                 `json:"tenantId"`
	Status       models.ImportJobStatus `json:"status"`
	TotalRows    int                    `json:"totalRows"`
	SuccessCount int                    `json:"successCount"`
	FailedCount  int                    `json:"failedCount"`
	CompletedAt  time.Time              `json:"completedAt"`
}

// Publisher publishes import lifecycle events over NATS
type Publisher struct {
	nc     *nats.Conn
	logger *logrus.Entry
}

// NewPublisher connects to NATS and creates a new events publisher
func NewPublisher(natsURL string, logger *logrus.Logger) (*Publisher, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("catalog-import-service"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &Publisher{
		nc:     nc,
		logger: logger.WithField("component", "import-events"),
	}, nil
}

// Close drains and closes the NATS connection
func (p *Publisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
	}
}

// PublishImportCompleted publishes a catalog.import.completed event.
// Publishing happens asynchronously so a slow broker never blocks the pipeline.
func (p *Publisher) PublishImportCompleted(job *models.ImportJob) {
	event := ImportCompletedEvent{
		JobID:        job.ID.String(),
		TenantID:     job.TenantID,
		Status:       job.Status,
		TotalRows:    job.TotalRows,
		SuccessCount: job.SuccessCount,
		FailedCount:  job.FailedCount,
		CompletedAt:  time.Now(),
	}

	go func() {
		data, err := json.Marshal(event)
		if err != nil {
			p.logger.WithError(err).Error("Failed to marshal import event")
			return
		}
		if err := p.nc.Publish(subjectImportCompleted, data); err != nil {
			p.logger.WithFields(logrus.Fields{
				"jobId":    event.JobID,
				"tenantId": event.TenantID,
			}).WithError(err).Error("Failed to publish import completed event")
			return
		}
		p.logger.WithFields(logrus.Fields{
			"jobId":    event.JobID,
			"tenantId": event.TenantID,
			"status":   event.Status,
		}).Info("Import completed event published")
	}()
}
