package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	chromedpbrowser "github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/browser/chromedp"
	"github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/clock/system"
	"github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/config"
	"github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/extract"
	"github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/publisher"
	gcppublisher "github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/publisher/pubsub"
	"github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/scrape"
	gcsstorage "github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/storage/gcs"
	localstorage "github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/storage/local"
	memorystorage "github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/storage/memory"
	pgstore "github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/storage/postgres"
	"github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/worker"
)

// resources are the external clients shared by the API process and worker
// processes. Fields stay nil when the matching backend is not configured.
type resources struct {
	cfg    *config.Config
	logger *zap.Logger

	db              *pgstore.Store
	gcs             *storage.Client
	pubsubClient    *pubsub.Client
	pubsubPublisher *pubsub.Publisher

	blobs scrape.BlobStore
	sink  scrape.ResultSink
}

func openResources(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*resources, error) {
	res := &resources{cfg: cfg, logger: logger}
	if err := res.setupDatabase(ctx); err != nil {
		res.close()
		return nil, err
	}
	if err := res.setupStorage(ctx); err != nil {
		res.close()
		return nil, err
	}
	pub, err := res.setupPublisher(ctx)
	if err != nil {
		res.close()
		return nil, err
	}

	var sink scrape.ResultSink
	if res.db != nil {
		sink = res.db
	} else {
		logger.Warn("no database configured, extracted records stay in memory")
		sink = memorystorage.NewResultStore()
	}
	if pub != nil {
		sink = publisher.NewNotifyingSink(sink, pub, logger.Named("notify"))
	}
	res.sink = sink
	return res, nil
}

func (r *resources) setupDatabase(ctx context.Context) error {
	if r.cfg.Database.DSN == "" {
		r.logger.Warn("no DSN specified for database, using in-memory result sink")
		return nil
	}
	db, err := pgstore.New(ctx, pgstore.Config{
		DSN:             r.cfg.Database.DSN,
		MaxConns:        r.cfg.Database.MaxConns,
		MinConns:        r.cfg.Database.MinConns,
		MaxConnLifetime: time.Duration(r.cfg.Database.MaxConnLifetimeMinutes) * time.Minute,
	})
	if err != nil {
		return fmt.Errorf("postgres store init failed: %w", err)
	}
	r.db = db
	r.logger.Info("postgres store initialized")
	return nil
}

func (r *resources) setupStorage(ctx context.Context) error {
	var err error
	switch r.cfg.Storage.Backend {
	case config.StorageGCS:
		r.logger.Info("using GCS storage backend", zap.String("bucket", r.cfg.Storage.Bucket))
		r.gcs, err = storage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("gcs client init failed: %w", err)
		}
		r.blobs, err = gcsstorage.New(r.gcs, gcsstorage.Config{
			Bucket:       r.cfg.Storage.Bucket,
			Prefix:       r.cfg.Storage.Prefix,
			CacheControl: r.cfg.Storage.CacheControl,
		})
		if err != nil {
			return fmt.Errorf("gcs blob store init failed: %w", err)
		}
	case config.StorageLocal:
		r.logger.Info("using local storage backend", zap.String("path", r.cfg.Storage.Local.BaseDir))
		r.blobs, err = localstorage.New(localstorage.Config{BaseDir: r.cfg.Storage.Local.BaseDir})
		if err != nil {
			return fmt.Errorf("local blob store init failed: %w", err)
		}
	default:
		r.logger.Info("using in-memory storage backend")
		r.blobs = memorystorage.NewBlobStore()
	}
	return nil
}

func (r *resources) setupPublisher(ctx context.Context) (scrape.Publisher, error) {
	if r.cfg.PubSub.TopicName == "" || r.cfg.PubSub.ProjectID == "" {
		r.logger.Info("no Pub/Sub topic configured, lead notifications disabled")
		return nil, nil
	}
	var err error
	r.pubsubClient, err = pubsub.NewClient(ctx, r.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	r.pubsubPublisher = r.pubsubClient.Publisher(r.cfg.PubSub.TopicName)
	r.pubsubPublisher.EnableMessageOrdering = r.cfg.PubSub.Ordering
	r.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", r.cfg.PubSub.ProjectID),
		zap.String("topic", r.cfg.PubSub.TopicName),
		zap.Bool("ordering", r.cfg.PubSub.Ordering),
	)
	return gcppublisher.New(r.pubsubPublisher), nil
}

// newWorker builds the scraping worker on top of the shared resources.
func (r *resources) newWorker() *worker.Worker {
	clock := system.New()
	browser := chromedpbrowser.New(r.cfg.BrowserSettings(), r.logger)
	extractor := extract.New(r.cfg.Extract.Selectors, clock)
	wc := worker.Config{
		QuietPeriod:    r.cfg.Worker.QuietPeriod(),
		HarvestCap:     r.cfg.Worker.HarvestCap(),
		PollInterval:   r.cfg.Worker.PollInterval(),
		ItemTimeout:    r.cfg.Worker.ItemTimeout(),
		CollectTimeout: r.cfg.Worker.CollectTimeout(),
		ItemsPerMinute: r.cfg.Worker.ItemsPerMinute,
		BlobPrefix:     r.cfg.Worker.BlobPrefix,
	}
	r.logger.Info("worker config",
		zap.Duration("quiet_period", wc.QuietPeriod),
		zap.Duration("harvest_cap", wc.HarvestCap),
		zap.Duration("item_timeout", wc.ItemTimeout),
		zap.Float64("items_per_minute", wc.ItemsPerMinute),
		zap.String("blob_prefix", wc.BlobPrefix),
	)
	return worker.New(browser, extractor, r.sink, r.blobs, clock, wc, r.logger)
}

func (r *resources) close() {
	if r.pubsubPublisher != nil {
		r.pubsubPublisher.Stop()
	}
	if r.pubsubClient != nil {
		if err := r.pubsubClient.Close(); err != nil {
			r.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if r.gcs != nil {
		if err := r.gcs.Close(); err != nil {
			r.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if r.db != nil {
		r.db.Close()
	}
}

// WorkerRuntime is the worker side of a process runner: one assignment in,
// one message stream out.
type WorkerRuntime struct {
	res    *resources
	worker *worker.Worker
}

// BuildWorker opens the resources a worker process needs.
func BuildWorker(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*WorkerRuntime, error) {
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	res, err := openResources(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &WorkerRuntime{res: res, worker: res.newWorker()}, nil
}

// Run executes one assignment.
func (w *WorkerRuntime) Run(ctx context.Context, a scrape.Assignment, emit scrape.Emit) error {
	if err := w.worker.Run(ctx, a, emit); err != nil {
		return fmt.Errorf("run assignment: %w", err)
	}
	return nil
}

// Close flushes publishers and closes clients.
func (w *WorkerRuntime) Close() {
	w.res.close()
}
