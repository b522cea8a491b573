package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/scrape"
)

// ExitReason names why the pagination sub-loop stopped. None of them fails
// the item.
type ExitReason string

const (
	// ExitQuiet means the load-more control stayed absent for the quiet period.
	ExitQuiet ExitReason = "quiet"
	// ExitCap means the harvest hit its wall-time cap.
	ExitCap ExitReason = "cap"
	// ExitTimeout means a page-scope deadline ended the loop.
	ExitTimeout ExitReason = "timeout"
)

// Pager is the slice of a browser session the harvester drives.
type Pager interface {
	LoadMoreVisible(ctx context.Context) (bool, error)
	LoadMore(ctx context.Context) error
}

// HarvestResult summarizes one harvest.
type HarvestResult struct {
	Exit    ExitReason
	Rounds  int
	Elapsed time.Duration
}

type harvester struct {
	clock  Clock
	quiet  time.Duration
	cap    time.Duration
	poll   time.Duration
	logger *zap.Logger
}

// run keeps clicking "load more" until the control has been absent for the
// quiet period or the cap elapses. lastSeen starts at the harvest start, so a
// list with no control at all exits after one quiet period.
func (h harvester) run(ctx context.Context, pager Pager) HarvestResult {
	start := h.clock.Now()
	lastSeen := start
	rounds := 0
	result := func(exit ExitReason) HarvestResult {
		return HarvestResult{Exit: exit, Rounds: rounds, Elapsed: h.clock.Now().Sub(start)}
	}

	for {
		now := h.clock.Now()
		if now.Sub(start) >= h.cap {
			return result(ExitCap)
		}
		visible, err := pager.LoadMoreVisible(ctx)
		if err != nil {
			if pageScopeDone(ctx, err) {
				return result(ExitTimeout)
			}
			h.logger.Debug("load more probe failed", zap.Error(err))
			visible = false
		}
		if visible {
			lastSeen = now
			if err := pager.LoadMore(ctx); err != nil {
				if pageScopeDone(ctx, err) {
					return result(ExitTimeout)
				}
				h.logger.Debug("load more click failed", zap.Error(err))
			} else {
				rounds++
			}
		} else if now.Sub(lastSeen) >= h.quiet {
			return result(ExitQuiet)
		}
		if err := h.clock.Sleep(ctx, h.poll); err != nil {
			return result(ExitTimeout)
		}
	}
}

func pageScopeDone(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, scrape.ErrTimeout)
}
