// Package bootstrap wires configuration into running API, worker and CLI
// processes. Every external store is optional: without DATABASE_URL the
// embedded SQLite store is used, and the Redis, MongoDB and Neo4j adapters
// are attached only when their URLs are set.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/adapter/out/graph"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/adapter/out/messaging"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/adapter/out/mongodb"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/adapter/out/persistence"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/adapter/out/provider"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/adapter/out/sqlite"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/config"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/agent/llm"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/port/out"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/service/category"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/service/classification"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/service/source"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/infra/database"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/pkg/cache"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/pkg/crypto"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/pkg/logger"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/pkg/ratelimit"

	"github.com/jmoiron/sqlx"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

const connectTimeout = 15 * time.Second

type Dependencies struct {
	Config *config.Config

	SQLDB   *sqlx.DB // postgres, nil on the embedded store
	LocalDB *sqlx.DB // sqlite, nil when postgres is configured
	Redis   *redis.Client
	MongoDB *mongo.Client
	Neo4j   neo4j.DriverWithContext

	Store        out.CategoryStore
	Orchestrator *classification.Orchestrator
	Producer     *messaging.RedisProducer
	Limiter      *ratelimit.SlidingWindowLimiter
	Connector    *source.ConnectService

	Service *category.Service
}

// NewDependencies opens every configured backend and builds the
// classification service on top of them.
func NewDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	return newDependencies(cfg, false)
}

// NewLocalDependencies builds a service on the embedded store only. offline
// disables the language model so every run is rule scored.
func NewLocalDependencies(cfg *config.Config, offline bool) (*Dependencies, func(), error) {
	local := *cfg
	local.DatabaseURL, local.RedisURL, local.MongoDBURL, local.Neo4jURL = "", "", "", ""
	return newDependencies(&local, offline)
}

func newDependencies(cfg *config.Config, offline bool) (*Dependencies, func(), error) {
	deps := &Dependencies{Config: cfg}
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	// Category store: postgres when configured, otherwise the embedded file.
	if cfg.DatabaseURL != "" {
		db, err := database.NewSQLX(ctx, cfg.DatabaseURL, database.DefaultPostgresConfig())
		if err != nil {
			return fail(err)
		}
		deps.SQLDB = db
		cleanups = append(cleanups, func() { db.Close() })

		store := persistence.NewCategoryAdapter(db)
		if err := store.Migrate(ctx); err != nil {
			return fail(fmt.Errorf("failed to migrate categories: %w", err))
		}
		deps.Store = store
		logger.Info("Category store: postgres")
	} else {
		db, err := database.NewSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return fail(err)
		}
		deps.LocalDB = db
		cleanups = append(cleanups, func() { db.Close() })

		store := sqlite.New(db)
		if err := store.Migrate(ctx); err != nil {
			return fail(fmt.Errorf("failed to migrate sqlite store: %w", err))
		}
		deps.Store = store
		logger.Info("Category store: sqlite (%s)", cfg.SQLitePath)
	}

	svcDeps := category.Deps{Store: deps.Store}

	// Run reports: MongoDB when configured; the embedded store keeps its own.
	if cfg.MongoDBURL != "" {
		client, db, err := mongodb.Connect(ctx, cfg.MongoDBURL, cfg.MongoDBName)
		if err != nil {
			return fail(err)
		}
		deps.MongoDB = client
		cleanups = append(cleanups, func() { _ = client.Disconnect(context.Background()) })

		reports := mongodb.NewRunReportAdapter(db)
		if err := reports.EnsureIndexes(ctx); err != nil {
			logger.WithError(err).Warn("Failed to ensure run report indexes")
		}
		svcDeps.Reports = reports
	} else if store, ok := deps.Store.(*sqlite.Store); ok {
		svcDeps.Reports = store
	}

	// Sender patterns: Neo4j.
	if cfg.Neo4jURL != "" {
		driver, err := graph.Connect(ctx, graph.DriverOptions{
			URL:      cfg.Neo4jURL,
			Username: cfg.Neo4jUsername,
			Password: cfg.Neo4jPassword,
			PoolSize: 10,
		})
		if err != nil {
			logger.WithError(err).Warn("Neo4j unavailable, sender patterns disabled")
		} else {
			deps.Neo4j = driver
			cleanups = append(cleanups, func() { _ = driver.Close(context.Background()) })

			patterns := graph.NewSenderPatternAdapter(driver, cfg.Neo4jDatabase)
			if err := patterns.EnsureIndexes(ctx); err != nil {
				logger.WithError(err).Warn("Failed to ensure sender pattern indexes")
			}
			svcDeps.Patterns = patterns
		}
	}

	// Redis: category cache, event and job streams, rate limits, OAuth state.
	if cfg.RedisURL != "" {
		client, err := database.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fail(err)
		}
		deps.Redis = client
		cleanups = append(cleanups, func() { _ = client.Close() })

		deps.Producer = messaging.NewRedisProducer(client, cfg.EventStream, cfg.JobStream)
		deps.Limiter = ratelimit.NewSlidingWindowLimiter(client, ratelimit.DefaultConfig())
		svcDeps.Cache = cache.NewCategoryCache(client, cfg.CategoryCacheTTL)
		svcDeps.Events = deps.Producer
	}

	sources, err := deps.threadSources(ctx)
	if err != nil {
		return fail(err)
	}
	svcDeps.Sources = sources

	orchestrator, err := NewOrchestrator(cfg, offline)
	if err != nil {
		return fail(err)
	}
	deps.Orchestrator = orchestrator
	svcDeps.Orchestrator = orchestrator

	deps.Service = category.NewService(svcDeps)
	return deps, cleanup, nil
}

// threadSources builds the configured sources. Gmail needs postgres for its
// encrypted token store and Redis for pending OAuth states.
func (d *Dependencies) threadSources(ctx context.Context) ([]out.ThreadSource, error) {
	cfg := d.Config
	var sources []out.ThreadSource

	if cfg.GoogleClientID != "" && cfg.GoogleClientSecret != "" {
		if d.SQLDB == nil || d.Redis == nil {
			logger.Warn("Gmail source needs DATABASE_URL and REDIS_URL, skipping")
		} else {
			enc, err := crypto.NewEncryptor([]byte(cfg.EncryptionKey))
			if err != nil {
				return nil, fmt.Errorf("failed to create token encryptor: %w", err)
			}
			tokens := persistence.NewOAuthAdapter(d.SQLDB, enc)
			if err := tokens.Migrate(ctx); err != nil {
				return nil, fmt.Errorf("failed to migrate oauth tokens: %w", err)
			}

			gmail := provider.NewGmailSource(&provider.GmailConfig{
				ClientID:     cfg.GoogleClientID,
				ClientSecret: cfg.GoogleClientSecret,
				RedirectURL:  cfg.GoogleRedirectURL,
			}, tokens)
			sources = append(sources, gmail)
			d.Connector = source.NewConnectService(persistence.NewRedisOAuthStateStore(d.Redis), tokens, gmail)
		}
	}

	if cfg.IMAPServer != "" {
		sources = append(sources, provider.NewIMAPSource(provider.IMAPConfig{
			Server:   cfg.IMAPServer,
			Port:     cfg.IMAPPort,
			Username: cfg.IMAPUsername,
			Password: cfg.IMAPPassword,
			Mailbox:  cfg.IMAPMailbox,
		}))
	}
	return sources, nil
}

// NewOrchestrator builds the rule scorer and, unless offline or no API key is
// set, the model classifier.
func NewOrchestrator(cfg *config.Config, offline bool) (*classification.Orchestrator, error) {
	policy := classification.DefaultScoringPolicy()
	if cfg.ScoringPolicyFile != "" {
		loaded, err := classification.LoadScoringPolicy(cfg.ScoringPolicyFile)
		if err != nil {
			return nil, err
		}
		policy = loaded
	}
	scorer := classification.NewRuleScorer(policy)

	if offline || cfg.OpenAIAPIKey == "" {
		logger.Info("Language model disabled, classifying with rules only")
		return classification.NewOrchestrator(scorer, nil), nil
	}

	gen := llm.NewClientWithConfig(llm.ClientConfig{
		APIKey:      cfg.OpenAIAPIKey,
		BaseURL:     cfg.LLMBaseURL,
		Model:       cfg.LLMModel,
		MaxTokens:   cfg.LLMMaxTokens,
		Temperature: cfg.LLMTemperature,
		Timeout:     time.Duration(cfg.LLMTimeoutSec) * time.Second,
	})
	model := classification.NewModelClassifier(gen, scorer, classification.ModelClassifierConfig{
		BatchSize:     cfg.ClassifyBatchSize,
		ModelCap:      cfg.ClassifyModelCap,
		RetryCooldown: cfg.ClassifyRetryCooldown,
		BatchPause:    cfg.ClassifyBatchPause,
		Format:        out.ParseResponseFormat(cfg.LLMResponseFormat),
		Temperature:   float32(cfg.LLMTemperature),
		MaxTokens:     cfg.LLMMaxTokens,
	})
	return classification.NewOrchestrator(scorer, model), nil
}
