package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/finwise/internal/ai"
	"github.com/xxxsen/finwise/internal/classify"
	"github.com/xxxsen/finwise/internal/config"
	"github.com/xxxsen/finwise/internal/db"
	"github.com/xxxsen/finwise/internal/embedcache"
	"github.com/xxxsen/finwise/internal/filestore"
	"github.com/xxxsen/finwise/internal/job"
	"github.com/xxxsen/finwise/internal/mathsolver"
	"github.com/xxxsen/finwise/internal/quote"
	"github.com/xxxsen/finwise/internal/repo"
	"github.com/xxxsen/finwise/internal/schedule"
	"github.com/xxxsen/finwise/internal/service"
	"github.com/xxxsen/finwise/internal/websearch"
)

type app struct {
	cfg       *config.Config
	db        *sql.DB
	docs      *service.DocStoreService
	router    *service.RouterService
	scheduler *schedule.CronScheduler
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", path))
	return cfg, nil
}

func buildApp(cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, scheduler: schedule.NewCronScheduler()}
	var (
		cacheRepo   *repo.EmbeddingCacheRepo
		sessionRepo *repo.SessionRepo
	)
	if cfg.Database.Enabled() {
		conn, err := db.Open(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		if err := db.ApplyMigrations(conn); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
		a.db = conn
		cacheRepo = repo.NewEmbeddingCacheRepo(conn)
	}

	generator, err := ai.BuildGenerator(cfg.AI.Generators)
	if err != nil {
		return nil, err
	}
	embedder, err := ai.BuildEmbedder(cfg.AI.Embedders)
	if err != nil {
		return nil, err
	}
	cacheOpts := embedcache.Options{
		LRUSize: cfg.AI.EmbedCacheSize,
		LRUTTL:  time.Duration(cfg.AI.EmbedCacheTTL) * time.Second,
	}
	if cfg.AI.EmbedDBCache && cacheRepo != nil {
		cacheOpts.Store = cacheRepo
	}
	manager := ai.NewManager(generator, embedcache.Wrap(embedder, cacheOpts), ai.ManagerConfig{
		Timeout:       cfg.AI.Timeout,
		MaxInputChars: cfg.AI.MaxInputChars,
	})

	var index service.VectorIndex
	switch cfg.Index.Type {
	case "memory":
		index = repo.NewMemoryIndex()
	default:
		index = repo.NewChunkRepo(a.db)
	}
	var sessions service.SessionStore
	switch cfg.Session.Store {
	case "memory":
		sessions = repo.NewMemorySessionStore(cfg.Session.MaxEntries, time.Duration(cfg.Session.TTLHours)*time.Hour)
	default:
		sessionRepo = repo.NewSessionRepo(a.db)
		sessions = sessionRepo
	}

	archive, err := filestore.New(cfg.FileStore)
	if err != nil {
		return nil, fmt.Errorf("init file store: %w", err)
	}
	a.docs, err = service.NewDocStoreService(index, manager, manager, archive, service.DocStoreConfig{
		ChunkSize:    cfg.Ingest.ChunkSize,
		ChunkOverlap: cfg.Ingest.ChunkOverlap,
		BatchSize:    cfg.Ingest.BatchSize,
		TopK:         cfg.Ingest.TopK,
	})
	if err != nil {
		return nil, fmt.Errorf("init document store: %w", err)
	}

	var classifier classify.Classifier = classify.NewKeywordClassifier()
	if cfg.AI.Classifier == "model" {
		classifier = classify.NewModelClassifier(generator, classifier, time.Duration(cfg.AI.Timeout)*time.Second)
	}
	prices := quote.New(quote.Config{
		Endpoint:   cfg.Quote.Endpoint,
		Timeout:    time.Duration(cfg.Quote.Timeout) * time.Second,
		CacheTTL:   time.Duration(cfg.Quote.CacheTTL) * time.Second,
		RatePerSec: cfg.Quote.RatePerSec,
		Aliases:    cfg.Quote.Aliases,
	})
	web := websearch.NewAdapter(websearch.NewDuckDuckGo(websearch.DuckDuckGoConfig{
		Endpoint:   cfg.Search.Endpoint,
		MaxResults: cfg.Search.MaxResults,
		Timeout:    time.Duration(cfg.Search.Timeout) * time.Second,
		RatePerSec: cfg.Search.RatePerSec,
	}), manager)
	a.router, err = service.NewRouterService(service.RouterDeps{
		Sessions:        sessions,
		Classifier:      classifier,
		Retriever:       a.docs,
		Math:            mathsolver.New(),
		Prices:          prices,
		Web:             web,
		Advisor:         manager,
		RetrieveTimeout: time.Duration(cfg.Ingest.RetrieveTimeout) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("init router: %w", err)
	}

	if cacheRepo != nil {
		if err := a.scheduler.AddJob(job.NewEmbeddingCacheCleanupJob(cacheRepo, cfg.Jobs.EmbedCacheMaxAgeDays), cronSpec(cfg.Jobs.EmbedCacheCleanupSpec, "30 3 * * *")); err != nil {
			return nil, err
		}
	}
	if sessionRepo != nil {
		idle := time.Duration(cfg.Session.TTLHours) * time.Hour
		if err := a.scheduler.AddJob(job.NewSessionCleanupJob(sessionRepo, idle), cronSpec(cfg.Jobs.SessionCleanupSpec, "0 * * * *")); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func cronSpec(spec, fallback string) string {
	if spec == "" {
		return fallback
	}
	return spec
}

func (a *app) Close() {
	if a.db != nil {
		_ = a.db.Close()
	}
}
