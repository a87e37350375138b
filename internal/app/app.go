// Package app wires configuration, storage and use cases for both binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/user/knowledge-service/internal/adapter/chromedp_crawler"
	"github.com/user/knowledge-service/internal/adapter/embedding"
	"github.com/user/knowledge-service/internal/adapter/extractor"
	"github.com/user/knowledge-service/internal/adapter/memory"
	"github.com/user/knowledge-service/internal/adapter/postgres"
	redisadapter "github.com/user/knowledge-service/internal/adapter/redis"
	"github.com/user/knowledge-service/internal/adapter/twitter"
	"github.com/user/knowledge-service/internal/adapter/vector"
	"github.com/user/knowledge-service/internal/adapter/web"
	"github.com/user/knowledge-service/internal/adapter/youtube"
	"github.com/user/knowledge-service/internal/chunker"
	"github.com/user/knowledge-service/internal/delivery/http/handler"
	"github.com/user/knowledge-service/internal/delivery/http/router"
	"github.com/user/knowledge-service/internal/entity"
	"github.com/user/knowledge-service/internal/ranking"
	"github.com/user/knowledge-service/internal/repository"
	"github.com/user/knowledge-service/internal/synthesis"
	"github.com/user/knowledge-service/internal/usecase"
	"github.com/user/knowledge-service/pkg/config"
	"github.com/user/knowledge-service/pkg/logger"
	"github.com/user/knowledge-service/pkg/metrics"
)

const connectAttempts = 5

// App holds the wired use cases. Worker is nil when the queue is disabled.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	Ingest   *usecase.IngestUseCase
	Worker   *usecase.IngestWorker
	Search   *usecase.SearchUseCase
	Settings *usecase.SettingsUseCase
	Health   *usecase.HealthUseCase
	Jobs     *usecase.JobUseCase

	closers []func()
}

type stores struct {
	sources   repository.SourceRepository
	chunks    repository.ChunkRepository
	relations repository.RelationRepository
	jobs      repository.JobRepository
	settings  repository.SettingsRepository
	logs      repository.ObservabilityRepository
	queue     repository.QueueRepository
	cache     repository.SourceCacheRepository
	vectors   repository.VectorIndex
}

// New builds every dependency from cfg. Call Close when done.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	log = logger.OrNop(log)
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a := &App{
		Config:   cfg,
		Logger:   log,
		Registry: reg,
		Metrics:  metrics.New(reg),
	}

	st, err := a.openStores(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	weights, err := ranking.ParseWeights(cfg.RankingWeightsJSON)
	if err != nil {
		a.Close()
		return nil, err
	}
	overrides, err := ranking.ParseOverrides(cfg.SourceWeightOverridesJSON)
	if err != nil {
		a.Close()
		return nil, err
	}
	ranker := ranking.New(ranking.Config{
		Weights:      weights,
		Profile:      cfg.SourceWeightProfile,
		Overrides:    overrides,
		HalfLifeDays: cfg.RecencyHalfLifeDays,
	})
	catalog, err := synthesis.ParseCatalog(cfg.OfferCatalogJSON)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Settings = usecase.NewSettingsUseCase(st.settings, entity.Settings{
		BrowserRelayFallbackEnabled: cfg.BrowserRelayFallbackEnabled,
	}, log)

	embedder := a.newEmbedder()
	a.Ingest = usecase.NewIngestUseCase(usecase.IngestDeps{
		Sources:   st.sources,
		Chunks:    st.chunks,
		Relations: st.relations,
		Jobs:      st.jobs,
		Logs:      st.logs,
		Extractor: a.newExtractor(),
		Embedder:  embedder,
		Vectors:   st.vectors,
		Dedup:     usecase.NewDedupIndex(st.sources, st.cache, cfg.DedupCacheTTL(), log),
		Chunker: chunker.New(
			chunker.WithMaxTokens(cfg.ChunkMaxTokens),
			chunker.WithOverlap(cfg.ChunkOverlapTokens),
			chunker.WithSectionMaxTokens(cfg.SectionMaxTokens),
		),
		Ranker:  ranker,
		Metrics: a.Metrics,
	}, usecase.IngestConfig{
		ExtractTimeout: cfg.IngestTimeoutDuration(),
		MaxDepth:       cfg.MaxRelatedDepth,
		MaxSources:     cfg.MaxSourcesPerIngest,
	}, log)

	a.Search = usecase.NewSearchUseCase(st.chunks, st.sources, embedder, st.vectors, ranker,
		synthesis.New(synthesis.WithCatalog(catalog)), cfg.SearchLimit, a.Metrics, log)
	a.Jobs = usecase.NewJobUseCase(st.jobs, st.logs)

	var queue repository.QueueRepository
	if cfg.QueueEnabled {
		queue = st.queue
		a.Worker = usecase.NewIngestWorker(queue, a.Ingest, cfg.QueuePollInterval(), a.Metrics, log)
	}
	a.Health = usecase.NewHealthUseCase(st.sources, st.chunks, st.jobs, queue, st.vectors, log)

	log.Info("Application wired",
		zap.String("store", cfg.StoreDriver),
		zap.String("vector_index", st.vectors.Name()),
		zap.Bool("queue_enabled", cfg.QueueEnabled),
		zap.String("ranking_profile", ranker.ProfileName()),
	)
	return a, nil
}

// Handler returns the HTTP API for this app.
func (a *App) Handler() http.Handler {
	deps := handler.Deps{
		Ingester: a.Ingest,
		Search:   a.Search,
		Settings: a.Settings,
		Health:   a.Health,
		Jobs:     a.Jobs,
	}
	if a.Worker != nil {
		deps.Queue = a.Worker
	}
	return router.New(handler.NewHandler(deps, a.Logger), a.Metrics, a.Registry, a.Logger)
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) openStores(ctx context.Context) (*stores, error) {
	cfg := a.Config
	if strings.EqualFold(cfg.StoreDriver, "memory") {
		return a.memoryStores()
	}

	db, err := connectPostgres(ctx, cfg.PostgresURL, a.Logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db.Close)
	a.Logger.Info("PostgreSQL connection pool established")

	if err := postgres.Migrate(db, a.Logger); err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	a.closers = append(a.closers, func() { _ = rdb.Close() })
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("unable to connect to redis at %s: %w", cfg.RedisAddr, err)
	}
	a.Logger.Info("Redis connection established")

	vectors, err := a.pickVectorIndex(ctx, db)
	if err != nil {
		return nil, err
	}
	return &stores{
		sources:   postgres.NewSourceRepo(db),
		chunks:    postgres.NewChunkRepo(db),
		relations: postgres.NewRelationRepo(db),
		jobs:      postgres.NewJobRepo(db),
		settings:  postgres.NewSettingsRepo(db),
		logs:      postgres.NewObservabilityRepo(db),
		queue:     redisadapter.NewQueueRepo(rdb),
		cache:     redisadapter.NewSourceCacheRepo(rdb),
		vectors:   vectors,
	}, nil
}

func (a *App) memoryStores() (*stores, error) {
	if strings.EqualFold(a.Config.VectorIndex, postgres.PgVectorName) {
		return nil, fmt.Errorf("VECTOR_INDEX=pgvector requires STORE_DRIVER=postgres")
	}
	store := memory.NewStore()
	a.Logger.Warn("Using in-memory store, data is lost on exit")
	return &stores{
		sources:   memory.NewSourceRepo(store),
		chunks:    memory.NewChunkRepo(store),
		relations: memory.NewRelationRepo(store),
		jobs:      memory.NewJobRepo(store),
		settings:  memory.NewSettingsRepo(store),
		logs:      memory.NewObservabilityRepo(store),
		queue:     memory.NewQueueRepo(),
		cache:     memory.NewSourceCacheRepo(),
		vectors:   vector.NewLinear(),
	}, nil
}

// pickVectorIndex selects the similarity strategy once per process.
func (a *App) pickVectorIndex(ctx context.Context, db *pgxpool.Pool) (repository.VectorIndex, error) {
	switch strings.ToLower(a.Config.VectorIndex) {
	case vector.LinearName:
		return vector.NewLinear(), nil
	case postgres.PgVectorName:
		idx, err := postgres.NewPgVectorIndex(ctx, db)
		if err != nil {
			return nil, fmt.Errorf("failed to enable pgvector: %w", err)
		}
		return idx, nil
	default:
		idx, err := postgres.NewPgVectorIndex(ctx, db)
		if err != nil {
			if !errors.Is(err, postgres.ErrVectorUnavailable) {
				a.Logger.Warn("Vector extension probe failed", zap.Error(err))
			}
			a.Logger.Info("Using linear similarity scan")
			return vector.NewLinear(), nil
		}
		return idx, nil
	}
}

func (a *App) newEmbedder() repository.Embedder {
	cfg := a.Config
	if cfg.OpenAIAPIKey == "" {
		return embedding.NewLocalEmbedder(cfg.EmbeddingDims)
	}
	return embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIEmbeddingModel,
		Dims:    cfg.EmbeddingDims,
	}, a.Logger)
}

// newExtractor routes status URLs to the X/Twitter API extractor, video URLs
// to the transcript extractor and everything else to the web extractor with
// its browser relay fallback. The web extractor also reads PDFs.
func (a *App) newExtractor() repository.ExtractorRepository {
	cfg := a.Config
	fetcher := web.NewFetcher(cfg.PageLoadTimeoutDuration())

	relay := chromedp_crawler.NewBrowserRelay(cfg.BrowserRelayConcurrency, cfg.PageLoadTimeoutDuration(), cfg.MaxOutboundLinks, a.Logger)
	a.closers = append(a.closers, relay.Close)

	webExtractor := web.NewExtractor(fetcher,
		web.WithBrowserRelay(relay, a.Settings),
		web.WithMinReadableChars(cfg.MinReadableChars),
		web.WithMaxLinks(cfg.MaxOutboundLinks),
		web.WithLogger(a.Logger),
	)
	tw := twitter.NewExtractor(fetcher, cfg.TwitterSyndicationURL)
	yt := youtube.NewExtractor(nil, cfg.YouTubeTranscriptLang, a.Logger)

	return extractor.NewRouter(webExtractor, a.Metrics, a.Logger,
		extractor.Route{Name: "twitter", Match: tw.Supports, Extractor: tw},
		extractor.Route{Name: "youtube", Match: yt.Supports, Extractor: yt},
	)
}

func connectPostgres(ctx context.Context, connStr string, log *zap.Logger) (*pgxpool.Pool, error) {
	attempt := 0
	return backoff.Retry(ctx, func() (*pgxpool.Pool, error) {
		attempt++
		db, err := postgres.Connect(ctx, connStr)
		if err != nil {
			log.Warn("PostgreSQL not ready", zap.Int("attempt", attempt), zap.Error(err))
			return nil, err
		}
		return db, nil
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(connectAttempts),
		backoff.WithMaxElapsedTime(30*time.Second),
	)
}
