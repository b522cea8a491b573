// Package worker runs one credential's partition inside one browser session.
//
// A worker logs in once, then walks its items in order. Each item is either a
// profile page (one record) or a post whose reactions list is paginated and
// harvested (many records). Item failures are counted and skipped; only a
// failure to open the session or authenticate ends the run early.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/extract"
	"github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/scrape"
)

// Clock is the time source for pacing the harvest loop.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// Extractor turns DOM snapshots into records.
type Extractor interface {
	Profile(html, pageURL string) (scrape.ExtractedRecord, error)
	Reactors(html, postURL string) ([]scrape.ExtractedRecord, error)
}

// Config controls Worker behavior.
type Config struct {
	// QuietPeriod ends a harvest once "load more" has been absent this long.
	QuietPeriod time.Duration
	// HarvestCap bounds a single harvest's wall time.
	HarvestCap time.Duration
	// PollInterval is the pause between load-more probes.
	PollInterval time.Duration
	// ItemTimeout bounds all work on one item.
	ItemTimeout time.Duration
	// CollectTimeout bounds the snapshot and persist step when ItemTimeout
	// ended a harvest early.
	CollectTimeout time.Duration
	// ItemsPerMinute is the pace applied when an assignment asks for minute pacing.
	ItemsPerMinute float64
	// BlobPrefix is the object prefix for per-worker JSON artifacts.
	BlobPrefix string
}

const (
	defaultQuietPeriod    = 3 * time.Second
	defaultHarvestCap     = 60 * time.Second
	defaultPollInterval   = 500 * time.Millisecond
	defaultItemTimeout    = 90 * time.Second
	defaultCollectTimeout = 15 * time.Second
	defaultItemsPerMinute = 6
	defaultBlobPrefix     = "results"
)

// Worker executes assignments. One Worker value may run many assignments;
// per-run state lives in run.
type Worker struct {
	browser   scrape.Browser
	extractor Extractor
	sink      scrape.ResultSink
	blobs     scrape.BlobStore
	clock     Clock
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Worker. blobs may be nil when artifacts are not wanted.
func New(
	browser scrape.Browser,
	extractor Extractor,
	sink scrape.ResultSink,
	blobs scrape.BlobStore,
	clock Clock,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if cfg.QuietPeriod <= 0 {
		cfg.QuietPeriod = defaultQuietPeriod
	}
	if cfg.HarvestCap <= 0 {
		cfg.HarvestCap = defaultHarvestCap
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.ItemTimeout <= 0 {
		cfg.ItemTimeout = defaultItemTimeout
	}
	if cfg.CollectTimeout <= 0 {
		cfg.CollectTimeout = defaultCollectTimeout
	}
	if cfg.ItemsPerMinute <= 0 {
		cfg.ItemsPerMinute = defaultItemsPerMinute
	}
	if cfg.BlobPrefix == "" {
		cfg.BlobPrefix = defaultBlobPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		browser:   browser,
		extractor: extractor,
		sink:      sink,
		blobs:     blobs,
		clock:     clock,
		cfg:       cfg,
		logger:    logger.Named("worker"),
	}
}

// Run processes the assignment and reports through emit. It returns an error
// only when the run ended on an unrecoverable failure, after emitting the
// matching error message.
func (w *Worker) Run(ctx context.Context, a scrape.Assignment, emit scrape.Emit) error {
	r := &run{
		w:      w,
		a:      a,
		emit:   emit,
		state:  StateInit,
		seen:   make(map[string]struct{}),
		logger: w.logger.With(zap.String("job_id", a.JobID), zap.Int("worker", a.WorkerIndex), zap.String("credential", a.Credential.Masked())),
	}
	if a.Options.MinutePacing {
		r.limiter = rate.NewLimiter(rate.Limit(w.cfg.ItemsPerMinute/60), 1)
	}
	return r.execute(ctx)
}

type run struct {
	w       *Worker
	a       scrape.Assignment
	emit    scrape.Emit
	state   State
	success int
	failure int
	seen    map[string]struct{}
	records []scrape.ExtractedRecord
	limiter *rate.Limiter
	logger  *zap.Logger
}

func (r *run) transition(next State) {
	if !CanTransition(r.state, next) {
		r.logger.Warn("unexpected worker transition", zap.String("from", string(r.state)), zap.String("to", string(next)))
	}
	r.logger.Debug("worker state", zap.String("from", string(r.state)), zap.String("to", string(next)))
	r.state = next
}

func (r *run) execute(ctx context.Context) error {
	r.transition(StateAuthenticating)
	sess, err := r.w.browser.Open(ctx, scrape.SessionOptions{Headless: r.a.Options.Headless})
	if err != nil {
		return r.fail(fmt.Errorf("open browser session: %w", err))
	}
	defer func() {
		if sess != nil {
			if err := sess.Close(); err != nil {
				r.logger.Warn("close browser session failed", zap.Error(err))
			}
		}
	}()

	if err := sess.Login(ctx, r.a.Credential); err != nil {
		if !errors.Is(err, scrape.ErrAuthentication) {
			err = fmt.Errorf("%w: %w", scrape.ErrAuthentication, err)
		}
		return r.fail(err)
	}
	r.transition(StateReady)
	r.logger.Info("worker authenticated", zap.Int("items", len(r.a.Items)))

	for i, item := range r.a.Items {
		if err := ctx.Err(); err != nil {
			return r.fail(fmt.Errorf("worker canceled after %d items: %w", i, err))
		}
		r.transition(StateProcessingItem)
		if err := r.processItem(ctx, sess, item); err != nil {
			r.failure++
			r.logger.Warn("item failed", zap.Int("item", i), zap.String("url", string(item)), zap.Error(err))
		} else {
			r.success++
		}
		r.transition(StateItemComplete)
		r.emit(scrape.ProgressMessage(r.success, r.failure))
	}

	r.writeArtifact(ctx)
	closeErr := sess.Close()
	sess = nil
	if closeErr != nil {
		r.logger.Warn("close browser session failed", zap.Error(closeErr))
	}
	r.transition(StateDone)
	r.logger.Info("worker finished", zap.Int("success", r.success), zap.Int("failure", r.failure), zap.Int("records", len(r.records)))
	r.emit(scrape.DoneMessage(r.success, r.failure))
	return nil
}

func (r *run) fail(err error) error {
	r.transition(StateFailed)
	r.logger.Error("worker failed", zap.Error(err))
	r.emit(scrape.ErrorMessage(err))
	return err
}

func (r *run) processItem(ctx context.Context, sess scrape.Session, item scrape.WorkItem) error {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return itemFailure("pace", err)
		}
	}
	itemCtx, cancel := context.WithTimeout(ctx, r.w.cfg.ItemTimeout)
	defer cancel()

	url := string(item)
	if err := sess.Navigate(itemCtx, url); err != nil {
		return itemFailure("navigate", err)
	}
	r.transition(StateExtractingPage)

	var (
		found []scrape.ExtractedRecord
		err   error
	)
	switch r.a.Options.Mode {
	case scrape.ModeReactions:
		found, err = r.harvestReactions(ctx, itemCtx, sess, url)
	default:
		found, err = r.extractProfile(itemCtx, sess, url)
	}
	if err != nil {
		return err
	}

	fresh := r.merge(dedupeByIdentity(found))
	if len(fresh) == 0 {
		return nil
	}
	persistCtx, cancelPersist := r.collectContext(ctx, itemCtx)
	defer cancelPersist()
	inserted, err := r.w.sink.Persist(persistCtx, fresh)
	if err != nil {
		return itemFailure("persist", err)
	}
	r.logger.Debug("records persisted", zap.String("url", url), zap.Int("found", len(found)), zap.Int("inserted", inserted))
	return nil
}

func (r *run) extractProfile(ctx context.Context, sess scrape.Session, url string) ([]scrape.ExtractedRecord, error) {
	html, err := sess.HTML(ctx)
	if err != nil {
		return nil, itemFailure("snapshot", err)
	}
	rec, err := r.w.extractor.Profile(html, url)
	if err != nil {
		return nil, itemFailure("extract profile", err)
	}
	return []scrape.ExtractedRecord{r.stamp(rec)}, nil
}

func (r *run) harvestReactions(ctx, itemCtx context.Context, sess scrape.Session, url string) ([]scrape.ExtractedRecord, error) {
	if err := sess.OpenReactions(itemCtx); err != nil {
		return nil, itemFailure("open reactions", err)
	}
	r.transition(StateHarvesting)
	h := harvester{
		clock:  r.w.clock,
		quiet:  r.w.cfg.QuietPeriod,
		cap:    r.w.cfg.HarvestCap,
		poll:   r.w.cfg.PollInterval,
		logger: r.logger,
	}
	result := h.run(itemCtx, sess)
	r.logger.Debug("harvest finished",
		zap.String("url", url),
		zap.String("exit", string(result.Exit)),
		zap.Int("rounds", result.Rounds),
		zap.Duration("elapsed", result.Elapsed))

	// Whatever loaded before the item deadline is still on the page.
	snapCtx, cancel := r.collectContext(ctx, itemCtx)
	defer cancel()
	html, err := sess.HTML(snapCtx)
	if err != nil {
		return nil, itemFailure("snapshot", err)
	}
	recs, err := r.w.extractor.Reactors(html, url)
	if err != nil {
		return nil, itemFailure("extract reactors", err)
	}
	for i := range recs {
		recs[i] = r.stamp(recs[i])
	}
	return recs, nil
}

// collectContext returns itemCtx while it is live. Once the item deadline has
// passed it returns a short context derived from the worker ctx instead, so a
// worker cancellation still stops the step.
func (r *run) collectContext(ctx, itemCtx context.Context) (context.Context, context.CancelFunc) {
	if itemCtx.Err() == nil {
		return itemCtx, func() {}
	}
	return context.WithTimeout(ctx, r.w.cfg.CollectTimeout)
}

func (r *run) stamp(rec scrape.ExtractedRecord) scrape.ExtractedRecord {
	rec.JobID = r.a.JobID
	if rec.ExtractedAt.IsZero() {
		rec.ExtractedAt = r.w.clock.Now()
	}
	return rec
}

// merge adds records not yet seen in this run to the running set and returns
// only the new ones.
func (r *run) merge(recs []scrape.ExtractedRecord) []scrape.ExtractedRecord {
	fresh := make([]scrape.ExtractedRecord, 0, len(recs))
	for _, rec := range recs {
		if _, dup := r.seen[rec.ID]; dup {
			continue
		}
		r.seen[rec.ID] = struct{}{}
		r.records = append(r.records, rec)
		fresh = append(fresh, rec)
	}
	return fresh
}

func (r *run) writeArtifact(ctx context.Context) {
	if !r.a.Options.WriteJSON || r.w.blobs == nil {
		return
	}
	records := r.records
	if records == nil {
		records = []scrape.ExtractedRecord{}
	}
	body, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		r.logger.Warn("marshal result artifact failed", zap.Error(err))
		return
	}
	key := ArtifactPath(r.w.cfg.BlobPrefix, r.a.JobID, r.a.WorkerIndex)
	uri, err := r.w.blobs.PutObject(ctx, key, "application/json", bytes.NewReader(body))
	if err != nil {
		r.logger.Warn("write result artifact failed", zap.String("path", key), zap.Error(err))
		return
	}
	r.logger.Info("result artifact written", zap.String("uri", uri), zap.Int("records", len(records)))
}

// ArtifactPath is the object key of a worker's JSON artifact.
func ArtifactPath(prefix, jobID string, worker int) string {
	return path.Join(strings.Trim(prefix, "/"), jobID, fmt.Sprintf("worker-%d.json", worker))
}

// dedupeByIdentity collapses records that point at the same person within one
// item, keyed by normalized identity. The first occurrence wins.
func dedupeByIdentity(recs []scrape.ExtractedRecord) []scrape.ExtractedRecord {
	byIdentity := make(map[string]struct{}, len(recs))
	out := make([]scrape.ExtractedRecord, 0, len(recs))
	for _, rec := range recs {
		key := identityKey(rec)
		if key == "" {
			continue
		}
		if _, dup := byIdentity[key]; dup {
			continue
		}
		byIdentity[key] = struct{}{}
		if rec.ID == "" {
			rec.ID = key
		}
		out = append(out, rec)
	}
	return out
}

func identityKey(rec scrape.ExtractedRecord) string {
	raw := rec.ID
	if raw == "" {
		raw = rec.URL
	}
	if norm, err := extract.NormalizeProfileURL(raw); err == nil {
		return norm
	}
	return strings.ToLower(strings.TrimSpace(raw))
}

func itemFailure(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, scrape.ErrTimeout) {
		return fmt.Errorf("%w: %s: %w: %w", scrape.ErrItemExtraction, op, scrape.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %s: %w", scrape.ErrItemExtraction, op, err)
}
