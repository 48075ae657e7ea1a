package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"tenderwatch/internal/config"
	"tenderwatch/internal/domain"
	"tenderwatch/internal/infrastructure/cache"
	"tenderwatch/internal/infrastructure/llm"
	"tenderwatch/internal/infrastructure/notify"
	"tenderwatch/internal/infrastructure/scheduler"
	"tenderwatch/internal/infrastructure/scraper"
	"tenderwatch/internal/infrastructure/storage"
	"tenderwatch/internal/logging"
	"tenderwatch/internal/pipeline"
	"tenderwatch/internal/ports"
)

// Application wires configuration to the pipeline and its adapters.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	db       *sql.DB
	store    *storage.Store
	seen     *cache.RedisSeenCache
	fetcher  ports.PageFetcher
	notifier ports.Notifier
	sched    ports.Scheduler
}

// New builds a runnable application: it connects to Postgres, prepares the
// schema, registers configured sources and seeds the keyword taxonomies.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	db, err := storage.Open(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	store := storage.NewStore(db)
	if err := store.InitSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	for _, src := range cfg.Sources {
		if _, err := store.EnsureSource(ctx, src.URL, src.Name); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := store.SeedKeywords(ctx, domain.CategoryESG, cfg.Keywords.ESG); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := store.SeedKeywords(ctx, domain.CategoryCreditRating, cfg.Keywords.CreditRating); err != nil {
		_ = db.Close()
		return nil, err
	}

	var seen *cache.RedisSeenCache
	if cfg.Redis.Addr != "" {
		seen, err = cache.NewRedisSeenCache(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.SeenTTL)
		if err != nil {
			baseLogger.Warn("seen cache unavailable, continuing without it", "error", err)
			seen = nil
		}
	}

	return &Application{
		cfg:      cfg,
		logger:   baseLogger,
		db:       db,
		store:    store,
		seen:     seen,
		fetcher:  scraper.NewHTTPFetcher(cfg.Pipeline.FetchTimeout),
		notifier: notify.NewEmailNotifier(cfg.Email),
		sched:    scheduler.NewCronScheduler(cfg.Scheduler.CronExpression, cfg.Scheduler.Location(), cfg.Scheduler.RunOnStart),
	}, nil
}

// RunOnce crawls every active source through the full pipeline, then sweeps
// pending notifications. unfiltered disables the date gates for this run.
func (a *Application) RunOnce(ctx context.Context, unfiltered bool) error {
	esg, err := a.store.Keywords(ctx, domain.CategoryESG)
	if err != nil {
		return fmt.Errorf("load esg keywords: %w", err)
	}
	credit, err := a.store.Keywords(ctx, domain.CategoryCreditRating)
	if err != nil {
		return fmt.Errorf("load credit keywords: %w", err)
	}

	sources, err := a.store.ActiveSources(ctx)
	if err != nil {
		return fmt.Errorf("load sources: %w", err)
	}
	if len(sources) == 0 {
		a.logger.Warn("no active sources configured")
		return nil
	}

	orch := a.newOrchestrator(unfiltered)

	var firstErr error
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := a.crawlSource(ctx, orch, src, esg, credit); err != nil {
			a.logger.Error("source crawl failed", "source", src.Name, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if err := a.notifyPending(ctx); err != nil {
		a.logger.Error("notification sweep failed", "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Serve runs on the configured cron schedule until the context is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	err := a.sched.Start(ctx, func(at time.Time) {
		a.logger.Info("scheduled crawl starting", "at", at.Format(time.RFC3339))
		if err := a.RunOnce(ctx, false); err != nil {
			a.logger.Error("scheduled crawl failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return a.sched.Stop(stopCtx)
}

// Close releases database and cache connections.
func (a *Application) Close() error {
	if a.seen != nil {
		_ = a.seen.Close()
	}
	return a.db.Close()
}

func (a *Application) newOrchestrator(unfiltered bool) *pipeline.Orchestrator {
	classifier := llm.NewOpenAIClassifier(a.cfg.OpenAI)
	detector := pipeline.NewDetector(a.store, a.seenCache(), a.logger.With("component", "dedup"))

	return pipeline.NewOrchestrator(pipeline.Deps{
		Classifier: classifier,
		Fetcher:    a.fetcher,
		Store:      a.store,
		Detector:   detector,
		Fallback:   scraper.NewHeuristicExtractor(),
		Logger:     a.logger.With("component", "pipeline"),
	}, pipeline.Config{
		MaxDaysOld:          a.cfg.Pipeline.MaxDaysOld,
		UrgentDaysThreshold: a.cfg.Pipeline.UrgentDaysThreshold,
		EnableDateFiltering: !a.cfg.Pipeline.DisableDateFiltering && !unfiltered,
	})
}

// seenCache narrows the concrete cache to the port, keeping the nil check in
// one place.
func (a *Application) seenCache() ports.SeenCache {
	if a.seen == nil {
		return nil
	}
	return a.seen
}

func (a *Application) crawlSource(ctx context.Context, orch *pipeline.Orchestrator, src domain.Source, esg, credit []string) error {
	started := time.Now()

	page, err := a.fetcher.Fetch(ctx, src.URL)
	if err != nil {
		_ = a.store.LogCrawl(ctx, domain.CrawlLog{
			SourceID: src.ID,
			Status:   "failed",
			Error:    err.Error(),
			At:       started,
		})
		return fmt.Errorf("fetch listing: %w", err)
	}

	result, err := orch.Run(ctx, src, page, esg, credit)
	entry := domain.CrawlLog{
		SourceID:     src.ID,
		Status:       "success",
		TendersFound: result.Counts.TotalFound,
		At:           started,
	}
	if err != nil {
		entry.Status = "failed"
		entry.Error = err.Error()
	}
	if logErr := a.store.LogCrawl(ctx, entry); logErr != nil {
		a.logger.Warn("crawl log write failed", "source", src.Name, "error", logErr)
	}
	if err != nil {
		return err
	}

	if touchErr := a.store.TouchSource(ctx, src.ID, started); touchErr != nil {
		a.logger.Warn("source touch failed", "source", src.Name, "error", touchErr)
	}
	return nil
}

// notifyPending sends each category's unnotified tenders to its team and
// marks delivered rows one by one, so a partial failure never re-sends what
// already went out.
func (a *Application) notifyPending(ctx context.Context) error {
	for _, category := range []domain.Category{domain.CategoryESG, domain.CategoryCreditRating} {
		tenders, err := a.store.UnnotifiedTenders(ctx, category)
		if err != nil {
			return fmt.Errorf("load unnotified %s: %w", category, err)
		}
		if len(tenders) == 0 {
			continue
		}

		if err := a.notifier.NotifyTeam(ctx, category, tenders); err != nil {
			return fmt.Errorf("notify %s team: %w", category, err)
		}
		for _, t := range tenders {
			if err := a.store.MarkNotified(ctx, t.ID); err != nil {
				return fmt.Errorf("mark notified %d: %w", t.ID, err)
			}
		}

		a.logger.Info("notification sent", "category", category, "tenders", len(tenders))
	}
	return nil
}
