package chromedpbrowser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/scrape"
)

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := Config{Selectors: Selectors{LoadMoreButton: "button.more"}}.withDefaults()
	require.Equal(t, defaultNavigationTimeout, cfg.NavigationTimeout)
	require.Equal(t, defaultLoginTimeout, cfg.LoginTimeout)
	require.Equal(t, defaultProbeTimeout, cfg.ProbeTimeout)
	require.Equal(t, "button.more", cfg.Selectors.LoadMoreButton)
	require.Equal(t, "#username", cfg.Selectors.UsernameInput)
	require.Equal(t, "#global-nav", cfg.Selectors.LoggedInMarker)
}

func TestAllocatorOptionsHonorHeadless(t *testing.T) {
	t.Parallel()

	b := New(Config{UserAgent: "scraper-test", ExtraFlags: map[string]any{"lang": "en-US"}}, nil)
	headless := b.allocatorOptions(true)
	headed := b.allocatorOptions(false)
	require.Len(t, headed, len(headless)+1)
}

func TestVisibilityScriptQuotesSelector(t *testing.T) {
	t.Parallel()

	script, err := visibilityScript(`button[aria-label="Load more"]`)
	require.NoError(t, err)
	require.Contains(t, script, `document.querySelector("button[aria-label=\"Load more\"]")`)
	require.Contains(t, script, "offsetParent")
}

func TestClassifyMarksDeadlines(t *testing.T) {
	t.Parallel()

	require.NoError(t, classify(context.Background(), context.Background(), nil))

	expired, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	err := classify(context.Background(), expired, errors.New("wait visible"))
	require.ErrorIs(t, err, scrape.ErrTimeout)

	err = classify(context.Background(), context.Background(), errors.New("node not found"))
	require.Error(t, err)
	require.NotErrorIs(t, err, scrape.ErrTimeout)
}

func TestForwardCancelPropagatesParent(t *testing.T) {
	t.Parallel()

	parent, cancelParent := context.WithCancel(context.Background())
	child, cancelChild := context.WithCancel(context.Background())
	defer cancelChild()

	stop := forwardCancel(parent, cancelChild)
	defer stop()
	cancelParent()

	select {
	case <-child.Done():
	case <-time.After(time.Second):
		t.Fatal("child context was not canceled")
	}
}

func TestOpenRejectsCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(Config{}, nil).Open(ctx, scrape.SessionOptions{Headless: true})
	require.ErrorIs(t, err, context.Canceled)
}
