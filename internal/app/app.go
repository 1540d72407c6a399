package app

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/novaops/nova-control/internal/config"
	"github.com/novaops/nova-control/internal/core"
	db "github.com/novaops/nova-control/internal/core/database"
	"github.com/novaops/nova-control/internal/core/llm"
	"github.com/novaops/nova-control/internal/core/objectstore"
	"github.com/novaops/nova-control/internal/core/paycache"
	"github.com/novaops/nova-control/internal/services"
)

// App owns every long-lived component: the store, the optional cache/LLM/S3
// clients, the services and the HTTP server.
type App struct {
	Store     core.Store
	Cache     *paycache.Cache
	LLM       core.LLMProvider
	Objects   core.ObjectClient
	Retention *services.RetentionService
	Server    *Server

	log *logrus.Logger
}

func NewApp(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	store, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	log.Info("database initialized and migrated")

	cache, err := paycache.New(appCtx, cfg.RedisURL, log)
	if err != nil {
		log.WithError(err).Warn("redis unavailable, payment cache disabled")
		cache = nil
	}

	// Gemini and S3 are optional: the related endpoints answer 503 when the
	// keys are not configured.
	var llmProvider core.LLMProvider
	if cfg.AIAPIKey != "" {
		llmProvider, err = llm.NewGeminiLLM(appCtx, cfg.AIAPIKey, cfg.GenModel)
		if err != nil {
			return nil, err
		}
		log.Info("gemini provider ready")
	}

	var objects core.ObjectClient
	if cfg.AwsAccessKey != "" {
		s3Client, err := objectstore.NewS3Client(appCtx, cfg)
		if err != nil {
			return nil, err
		}
		objects = s3Client
		log.Info("object storage ready")
	}

	var payCache core.PaymentCache
	if cache != nil {
		payCache = cache
	}
	billing := services.NewBillingService(store, payCache, cfg.ProfilePrice, cfg.TrialDays)
	stats := services.NewStatsService(store)
	retention := services.NewRetentionService(store, store, cfg.RetentionDays, log)

	server := NewServer(cfg, store, billing, stats, llmProvider, objects, log)

	return &App{
		Store:     store,
		Cache:     cache,
		LLM:       llmProvider,
		Objects:   objects,
		Retention: retention,
		Server:    server,
		log:       log,
	}, nil
}

func (a *App) Close() {
	if a.Retention != nil {
		_ = a.Retention.Stop()
	}
	if a.LLM != nil {
		_ = a.LLM.Close()
	}
	if a.Cache != nil {
		_ = a.Cache.Close()
	}
	if a.Store != nil {
		_ = a.Store.Close()
	}
}
