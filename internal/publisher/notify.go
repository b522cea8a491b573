// Package publisher announces extracted leads to downstream consumers.
package publisher

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/scrape"
)

// EventLeadExtracted names the notification sent for every persisted record.
const EventLeadExtracted = "lead.extracted"

// LeadExtracted is the notification payload.
type LeadExtracted struct {
	JobID       string    `json:"jobId"`
	LeadID      string    `json:"leadId"`
	URL         string    `json:"url"`
	Name        string    `json:"name"`
	SourceURL   string    `json:"sourceUrl"`
	ExtractedAt time.Time `json:"extractedAt"`
}

// OrderingKey keeps one job's notifications ordered.
func (e LeadExtracted) OrderingKey() string { return e.JobID }

// NotifyingSink persists through the wrapped sink, then publishes one
// LeadExtracted per record. Publish failures are logged; the records are
// already stored and are not reported as failed.
type NotifyingSink struct {
	next   scrape.ResultSink
	pub    scrape.Publisher
	logger *zap.Logger
}

// NewNotifyingSink wraps next.
func NewNotifyingSink(next scrape.ResultSink, pub scrape.Publisher, logger *zap.Logger) *NotifyingSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotifyingSink{next: next, pub: pub, logger: logger.Named("lead_notifier")}
}

// Persist implements scrape.ResultSink.
func (s *NotifyingSink) Persist(ctx context.Context, records []scrape.ExtractedRecord) (int, error) {
	inserted, err := s.next.Persist(ctx, records)
	if err != nil {
		return inserted, err
	}
	for _, rec := range records {
		evt := LeadExtracted{
			JobID:       rec.JobID,
			LeadID:      rec.ID,
			URL:         rec.URL,
			Name:        rec.Name,
			SourceURL:   rec.SourceURL,
			ExtractedAt: rec.ExtractedAt,
		}
		if _, err := s.pub.Publish(ctx, EventLeadExtracted, evt); err != nil {
			s.logger.Warn("publish lead failed", zap.String("job_id", rec.JobID), zap.String("lead_id", rec.ID), zap.Error(err))
		}
	}
	return inserted, nil
}
