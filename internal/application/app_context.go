// Package application builds the process-wide dependency graph once at startup.
package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"imagegen-dashboard/internal/config"
	"imagegen-dashboard/internal/domain/ports/adapter"
	"imagegen-dashboard/internal/infra/adapters/compute"
	"imagegen-dashboard/internal/infra/adapters/objectstore"
	"imagegen-dashboard/internal/infra/adapters/rowlog"
	pg "imagegen-dashboard/internal/infra/db/postgres"
	"imagegen-dashboard/internal/infra/gcp"
	"imagegen-dashboard/internal/infra/httpx"
	red "imagegen-dashboard/internal/infra/redis"
	"imagegen-dashboard/internal/infra/retry"
	"imagegen-dashboard/internal/infra/scheduler"
	"imagegen-dashboard/internal/infra/web"
	"imagegen-dashboard/internal/infra/worker"
	"imagegen-dashboard/internal/usecase"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"
)

// AppContext owns every collaborator of the running service.
type AppContext struct {
	Config *config.Config
	Log    *zerolog.Logger

	Compute adapter.ComputeClient
	Store   adapter.ObjectStore
	RowLog  adapter.RowLog
	CSV     *rowlog.CSVLog
	Fetcher *httpx.Fetcher

	Stats      usecase.StatsUseCase
	Metadata   usecase.MetadataStore
	Folder     *usecase.FolderResolver
	Library    usecase.LibraryUseCase
	Uploader   usecase.UploaderUseCase
	Resolver   *usecase.Resolver
	Persister  *usecase.Persister
	Generation usecase.GenerationUseCase

	Pool      *worker.Pool
	Refresher *scheduler.Scheduler
	Server    *web.Server

	redis   *red.Client
	pgPool  *pgxpool.Pool
	closers []io.Closer
}

// New connects the configured backends and wires the use cases.
func New(ctx context.Context, cfg *config.Config, log *zerolog.Logger) (*AppContext, error) {
	a := &AppContext{Config: cfg, Log: log}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	if cfg.Redis.URL != "" {
		c, err := red.NewClient(ctx, red.Options{Addr: cfg.Redis.URL, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.redis = c
		a.closers = append(a.closers, c)
	}

	var err error
	if a.Compute, err = buildCompute(ctx, cfg, log); err != nil {
		return nil, fmt.Errorf("compute: %w", err)
	}
	if a.Store, err = buildStore(ctx, cfg, log); err != nil {
		return nil, fmt.Errorf("object store: %w", err)
	}
	if a.RowLog, err = a.buildRowLog(ctx); err != nil {
		return nil, fmt.Errorf("row log: %w", err)
	}
	a.CSV = rowlog.NewCSVLog()
	a.Fetcher = httpx.NewFetcher(cfg.Store.FetchTimeout)

	policy := retry.Policy{MaxAttempts: cfg.Retry.MaxAttempts, Backoff: cfg.Retry.Backoff}

	var lock usecase.DistributedLock
	if a.redis != nil {
		lock = red.NewLocker(a.redis)
	}

	a.Stats = usecase.NewStatsUseCase()
	a.Metadata = usecase.NewMetadataStore()
	a.Folder = usecase.NewFolderResolver(a.Store, cfg.Store.FolderName, lock, log)
	a.Library = usecase.NewLibraryUseCase(a.Store, a.Folder, a.Metadata, usecase.LibraryConfig{
		TTL:              cfg.Store.MirrorTTL,
		MaxCachedObjects: cfg.Store.MaxCachedObjects,
		Retry:            policy,
	}, log)
	a.Uploader = usecase.NewUploaderUseCase(a.Store, a.Fetcher, a.Folder, a.Library, a.Stats, log)
	a.Resolver = usecase.NewResolver(a.Library, a.Fetcher, cfg.Store.SourceMaxAge, log)
	a.Persister = usecase.NewPersister(a.Uploader, a.RowLog, a.CSV, a.Stats, usecase.PersistConfig{
		AutoUpload: cfg.AutoUpload(),
		AutoLog:    cfg.AutoLog(),
	}, log)

	a.Pool = worker.NewPool(cfg.Workers, log)
	poller := usecase.NewPoller(a.Compute, usecase.PollerConfig{
		MaxAttempts: cfg.Poll.MaxAttempts,
		Delay:       cfg.Poll.Delay,
		Deadline:    cfg.Poll.Deadline,
	}, policy, log)
	a.Generation = usecase.NewGenerationUseCase(a.Compute, poller, a.Persister, a.Stats, a.Pool, cfg.Compute.DefaultModel, log)

	if cfg.Store.RefreshInterval > 0 && adapter.IsConnected(a.Store) {
		a.Refresher = scheduler.NewScheduler("mirror_refresh", cfg.Store.RefreshInterval, a.Library, log)
	}

	deps := web.Deps{
		Generation: a.Generation,
		Library:    a.Library,
		Uploader:   a.Uploader,
		Resolver:   a.Resolver,
		Metadata:   a.Metadata,
		Stats:      a.Stats,
		CSV:        a.CSV,
	}
	if reader, isReader := a.RowLog.(adapter.RowReader); isReader {
		deps.RowReader = reader
	}
	if a.redis != nil {
		deps.Limiter = red.NewRateLimiter(a.redis)
	}
	a.Server = web.NewServer(web.Config{
		Port:       cfg.HTTP.Port,
		RateLimit:  cfg.HTTP.RateLimit,
		RateWindow: cfg.HTTP.RateWindow,
	}, deps, web.NewAuthManager(cfg.HTTP.APIKey, cfg.HTTP.JWTSecret, cfg.HTTP.TokenTTL), log)

	ok = true
	return a, nil
}

// Run starts background work and serves HTTP until ctx is done.
func (a *AppContext) Run(ctx context.Context) error {
	a.Pool.Start(ctx)
	defer a.Pool.Stop()

	if a.Refresher != nil {
		a.Refresher.Start(ctx)
		defer a.Refresher.Stop()
	}
	if a.pgPool != nil {
		go pg.ReportPoolStats(ctx, a.pgPool, 15*time.Second, a.Log)
	}
	return a.Server.Start(ctx)
}

// Close releases backend connections.
func (a *AppContext) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.Log.Warn().Err(err).Msg("close failed")
		}
	}
	a.closers = nil
	if a.pgPool != nil {
		a.pgPool.Close()
		a.pgPool = nil
	}
}

func buildCompute(ctx context.Context, cfg *config.Config, log *zerolog.Logger) (adapter.ComputeClient, error) {
	cc := cfg.Compute
	var client adapter.ComputeClient
	switch cc.Provider {
	case "kie":
		k, err := compute.NewKieAdapter(cc.APIKey, cc.BaseURL, cc.RequestTimeout, log)
		if err != nil {
			return nil, err
		}
		client = k.WithCallbackURL(cc.CallbackURL)
	case "openai":
		o, err := compute.NewOpenAIImagesAdapter(cc.OpenAIKey, cc.OpenAIBaseURL, cc.DefaultModel, cc.RequestTimeout, log)
		if err != nil {
			return nil, err
		}
		client = o
	case "gemini":
		g, err := compute.NewGeminiImagesAdapter(ctx, cc.GeminiKey, cc.GeminiBaseURL, cc.DefaultModel, cc.RequestTimeout, log)
		if err != nil {
			return nil, err
		}
		client = g
	case "multi":
		k, err := compute.NewKieAdapter(cc.APIKey, cc.BaseURL, cc.RequestTimeout, log)
		if err != nil {
			return nil, err
		}
		byProvider := map[string]adapter.ComputeClient{"kie": k.WithCallbackURL(cc.CallbackURL)}
		if cc.OpenAIKey != "" {
			o, err := compute.NewOpenAIImagesAdapter(cc.OpenAIKey, cc.OpenAIBaseURL, "", cc.RequestTimeout, log)
			if err != nil {
				return nil, err
			}
			byProvider["openai"] = o
		}
		if cc.GeminiKey != "" {
			g, err := compute.NewGeminiImagesAdapter(ctx, cc.GeminiKey, cc.GeminiBaseURL, "", cc.RequestTimeout, log)
			if err != nil {
				return nil, err
			}
			byProvider["gemini"] = g
		}
		client = compute.NewMultiCompute("kie", byProvider, cc.ModelProviders)
	case "noop":
		client = compute.NewNoopComputeAdapter(2, log)
	default:
		return nil, fmt.Errorf("unknown provider %q", cc.Provider)
	}
	return compute.NewLimitedCompute(client, cc.ConcurrentLimit), nil
}

func buildStore(ctx context.Context, cfg *config.Config, log *zerolog.Logger) (adapter.ObjectStore, error) {
	sc := cfg.Store
	switch sc.Backend {
	case "drive":
		return objectstore.NewDriveStore(ctx, log, gcp.ClientOptions(sc.Drive.CredentialsFile)...)
	case "minio":
		m := sc.Minio
		return objectstore.NewMinioStore(ctx, objectstore.MinioConfig{
			Endpoint:      m.Endpoint,
			AccessKey:     m.AccessKey,
			SecretKey:     m.SecretKey,
			Bucket:        m.Bucket,
			Region:        m.Region,
			Secure:        m.Secure,
			PublicBaseURL: m.PublicBaseURL,
			CDNBaseURL:    m.CDNBaseURL,
		}, log)
	case "memory":
		return objectstore.NewMemoryStore(sc.MemoryBaseURL), nil
	case "none":
		log.Warn().Msg("no object store configured; uploads are disabled")
		return objectstore.NoopStore{}, nil
	}
	return nil, errors.New("unknown backend " + sc.Backend)
}

func (a *AppContext) buildRowLog(ctx context.Context) (adapter.RowLog, error) {
	rc := a.Config.RowLog
	switch rc.Backend {
	case "sheets":
		s, err := rowlog.NewSheetsLog(ctx, rc.Sheets.SpreadsheetID, rc.Sheets.Range, a.Log, gcp.ClientOptions(rc.Sheets.CredentialsFile)...)
		if err != nil {
			return nil, err
		}
		a.Log.Info().Str("spreadsheet_id", s.SpreadsheetID()).Msg("sheets row log ready")
		return s, nil
	case "redis":
		if a.redis == nil {
			return nil, errors.New("redis.url is required")
		}
		return red.NewGenerationLog(a.redis, rc.RedisKey), nil
	case "postgres":
		pool, err := pg.Connect(ctx, rc.Postgres.URL)
		if err != nil {
			return nil, err
		}
		a.pgPool = pool
		if err := pg.EnsureSchema(ctx, pool); err != nil {
			return nil, err
		}
		return pg.NewGenerationLogRepo(pool), nil
	case "none":
		return rowlog.NoopLog{}, nil
	}
	return nil, errors.New("unknown backend " + rc.Backend)
}
