package publisher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	memorypublisher "github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/publisher/memory"
	"github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/scrape"
	"github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/storage/memory"
)

type brokenSink struct{}

func (brokenSink) Persist(context.Context, []scrape.ExtractedRecord) (int, error) {
	return 0, errors.New("connection refused")
}

func TestNotifyingSinkPublishesAfterPersist(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	pub := memorypublisher.New()
	results := memory.NewResultStore()
	sink := NewNotifyingSink(results, pub, zap.NewNop())

	n, err := sink.Persist(context.Background(), []scrape.ExtractedRecord{
		{ID: "https://x/in/a", URL: "https://x/in/a", Name: "Alice", JobID: "job-1", ExtractedAt: at},
	})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Len(t, results.Records(), 1)

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, EventLeadExtracted, msgs[0].Event)
	evt, ok := msgs[0].Payload.(LeadExtracted)
	require.True(t, ok)
	require.Equal(t, "job-1", evt.OrderingKey())
	require.Equal(t, "Alice", evt.Name)
}

func TestNotifyingSinkSkipsPublishOnPersistError(t *testing.T) {
	t.Parallel()

	pub := memorypublisher.New()
	_, err := NewNotifyingSink(brokenSink{}, pub, nil).Persist(context.Background(), []scrape.ExtractedRecord{{ID: "a"}})
	require.ErrorContains(t, err, "connection refused")
	require.Empty(t, pub.Messages())
}

func TestNotifyingSinkLogsPublishFailures(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.WarnLevel)
	pub := memorypublisher.New()
	pub.FailWith(errors.New("topic not found"))

	n, err := NewNotifyingSink(memory.NewResultStore(), pub, zap.New(core)).Persist(context.Background(),
		[]scrape.ExtractedRecord{{ID: "a", JobID: "job-1"}})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, 1, logs.FilterMessage("publish lead failed").Len())
}
