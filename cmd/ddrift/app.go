package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/redis/go-redis/v9"

	"github.com/docdrift/docdrift/internal/claims"
	"github.com/docdrift/docdrift/internal/compare"
	"github.com/docdrift/docdrift/internal/config"
	"github.com/docdrift/docdrift/internal/correlate"
	"github.com/docdrift/docdrift/internal/docs"
	"github.com/docdrift/docdrift/internal/evidence"
	"github.com/docdrift/docdrift/internal/fingerprint"
	"github.com/docdrift/docdrift/internal/ingest"
	"github.com/docdrift/docdrift/internal/llm"
	"github.com/docdrift/docdrift/internal/notify"
	"github.com/docdrift/docdrift/internal/patch"
	"github.com/docdrift/docdrift/internal/pipeline"
	"github.com/docdrift/docdrift/internal/policy"
	"github.com/docdrift/docdrift/internal/queue"
	"github.com/docdrift/docdrift/internal/routing"
	"github.com/docdrift/docdrift/internal/storage"
	"github.com/docdrift/docdrift/internal/writeback"
)

// app is the wired object graph shared by serve and worker
type app struct {
	store    storage.Store
	queue    queue.Queue
	machine  *pipeline.Machine
	worker   *pipeline.Worker
	actions  *pipeline.Actions
	ingest   *ingest.Server
	registry *docs.Registry
	closers  []func() error
}

func buildStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Type {
	case "postgres":
		s, err := storage.NewPostgresStore(cfg.Storage.PostgresDSN, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "sqlite":
		return storage.NewSQLiteStore(cfg.Storage.LocalPath, logger)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}
}

func buildQueue(ctx context.Context, cfg *config.Config) (queue.Queue, error) {
	switch cfg.Queue.Type {
	case "redis":
		return queue.NewRedisQueue(ctx, cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password)
	case "memory":
		return queue.NewMemoryQueue(), nil
	default:
		// Local mode keeps tasks on disk so a restart resumes in-flight drifts
		return queue.NewBoltQueue(filepath.Join(filepath.Dir(cfg.Storage.LocalPath), "queue.db"))
	}
}

func buildApp(ctx context.Context) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := buildStore(cfg)
	if err != nil {
		return nil, err
	}
	q, err := buildQueue(ctx, cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	a := &app{store: store, queue: q}
	a.closers = append(a.closers, store.Close, q.Close)

	registry := docs.NewRegistry()
	if cfg.GitHub.Token != "" {
		gh := docs.NewGitHubAdapter(cfg.GitHub.Token, cfg.GitHub.RateLimit)
		registry.Register("github_readme", gh)
		registry.Register("swagger", gh)
		registry.Register("backstage", gh)
	}
	if cfg.Confluence.BaseURL != "" {
		registry.Register("confluence", docs.NewConfluenceAdapter(
			cfg.Confluence.BaseURL, cfg.Confluence.Email, cfg.Confluence.Token))
	}
	if cfg.Notion.Token != "" {
		registry.Register("notion", docs.NewNotionAdapter(cfg.Notion.Token))
	}
	a.registry = registry

	catalog, err := docs.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		a.close()
		return nil, err
	}

	var limiter routing.RateLimiter
	if cfg.Queue.Type == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
		})
		a.closers = append(a.closers, client.Close)
		limiter = routing.NewRedisRateLimiter(client, cfg.Pipeline.NotifyHourlyCap)
	} else {
		limiter = routing.NewMemoryRateLimiter(cfg.Pipeline.NotifyHourlyCap)
	}

	var edges correlate.EdgeWriter
	if cfg.Neo4j.Enabled {
		writer, err := correlate.NewNeo4jEdgeWriter(ctx, cfg.Neo4j.URI, cfg.Neo4j.User, cfg.Neo4j.Password)
		if err != nil {
			a.close()
			return nil, err
		}
		a.closers = append(a.closers, func() error { return writer.Close(context.Background()) })
		edges = writer
	}

	llmClient, err := llm.NewClient(ctx, cfg)
	if err != nil {
		a.close()
		return nil, err
	}

	var sink notify.Sink = notify.NewNoopSink()
	if cfg.Slack.BotToken != "" {
		sink = notify.NewSlackSink(cfg.Slack.BotToken)
	}

	generator := patch.NewGenerator(llmClient)
	executor := writeback.NewExecutor(store, registry, generator, claimsBudgets())
	suppressor := fingerprint.NewSuppressor(store)

	a.machine = pipeline.NewMachine(pipeline.Deps{
		Store:      store,
		Queue:      q,
		Builder:    evidence.NewBuilder(),
		Joiner:     correlate.NewJoiner(store, edges, cfg.Pipeline.JoinWindow),
		Suppressor: suppressor,
		Resolver:   docs.NewResolver(registry, catalog, cfg.Pipeline.AdapterConcurrency),
		Registry:   registry,
		Engine:     compare.NewEngine(),
		Evaluator:  policy.NewEvaluator(policy.NewRegistry()),
		Router:     routing.NewRouter(limiter),
		Planner:    patch.NewPlanner(),
		Generator:  generator,
		Sink:       sink,
		Executor:   executor,
		Config:     cfg.Pipeline,
	})
	a.worker = pipeline.NewWorker(store, q, a.machine, sink)
	a.actions = pipeline.NewActions(store, suppressor, executor, sink)
	a.ingest = ingest.NewServer(store, q)
	return a, nil
}

func claimsBudgets() claims.Budgets {
	return claims.Budgets{
		MaxDocChars:     cfg.Pipeline.MaxDocCharsToLLM,
		MaxSections:     cfg.Pipeline.MaxSections,
		MaxSectionChars: cfg.Pipeline.MaxSectionChars,
	}
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.WithError(err).Warn("close failed")
		}
	}
}
