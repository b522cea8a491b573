package memory

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/scrape"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte(`[{"id":"a"}]`)
	uri, err := store.PutObject(context.Background(), "results/job-1/worker-0.json", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, "memory://results/job-1/worker-0.json", uri)

	payload[0] = '{'
	got, ok := store.Get("results/job-1/worker-0.json")
	require.True(t, ok)
	require.Equal(t, `[{"id":"a"}]`, string(got))
	require.Equal(t, []string{"results/job-1/worker-0.json"}, store.Paths())

	_, err = store.PutObject(context.Background(), " ", "", bytes.NewReader(nil))
	require.Error(t, err)
}

func TestCredentialStore(t *testing.T) {
	t.Parallel()

	store := NewCredentialStore(map[string]string{"jane@example.com": "pw", "empty@example.com": ""})
	secret, err := store.FetchCredentialSecret(context.Background(), "jane@example.com")
	require.NoError(t, err)
	require.Equal(t, "pw", secret)

	_, err = store.FetchCredentialSecret(context.Background(), "empty@example.com")
	require.ErrorIs(t, err, scrape.ErrNotFound)
	_, err = store.FetchCredentialSecret(context.Background(), "missing@example.com")
	require.ErrorIs(t, err, scrape.ErrNotFound)
}

func TestTargetStoreFiltersAndOrders(t *testing.T) {
	t.Parallel()

	day := func(d int) time.Time { return time.Date(2025, 1, d, 12, 0, 0, 0, time.UTC) }
	targets := NewTargetStore(
		Lead{URL: "https://x/in/c", Tag: "cto", CreatedAt: day(3)},
		Lead{URL: "https://x/in/a", Tag: "cto", CreatedAt: day(1)},
		Lead{URL: "https://x/in/b", Tag: "cfo", CreatedAt: day(2)},
		Lead{URL: "https://x/in/d", Tag: "cto", CreatedAt: day(9)},
		Lead{URL: "https://x/in/e", Tag: "cto", CreatedAt: day(2), Scraped: true},
	)

	all, err := targets.FetchCandidateTargets(context.Background(), scrape.TargetFilter{})
	require.NoError(t, err)
	require.Equal(t, []scrape.WorkItem{"https://x/in/a", "https://x/in/b", "https://x/in/c", "https://x/in/d"}, all)

	got, err := targets.FetchCandidateTargets(context.Background(), scrape.TargetFilter{
		From: day(1), To: day(5), Tags: []string{"cto"},
	})
	require.NoError(t, err)
	require.Equal(t, []scrape.WorkItem{"https://x/in/a", "https://x/in/c"}, got)
}

func TestResultStoreUpsertsAndMarksTargets(t *testing.T) {
	t.Parallel()

	targets := NewTargetStore(Lead{URL: "https://x/in/a"}, Lead{URL: "https://x/in/b"})
	results := NewResultStore().MarkingTargets(targets)

	n, err := results.Persist(context.Background(), []scrape.ExtractedRecord{
		{ID: "https://x/in/a", URL: "https://x/in/a", Name: "A"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = results.Persist(context.Background(), []scrape.ExtractedRecord{
		{ID: "https://x/in/a", URL: "https://x/in/a", Name: "A2"},
	})
	require.NoError(t, err)
	require.Zero(t, n)
	require.Len(t, results.Records(), 1)
	require.Equal(t, "A2", results.Records()[0].Name)

	left, err := targets.FetchCandidateTargets(context.Background(), scrape.TargetFilter{})
	require.NoError(t, err)
	require.Equal(t, []scrape.WorkItem{"https://x/in/b"}, left)

	_, err = results.Persist(context.Background(), []scrape.ExtractedRecord{{Name: "no id"}})
	require.ErrorIs(t, err, scrape.ErrInvalidInput)
}
