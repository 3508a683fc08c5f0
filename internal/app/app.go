// Package app wires configuration, storage, cache and handlers into one
// runnable service. The CLI commands share it so that "serve", "report" and
// "export" see the same store and the same analysis settings.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/almuhajirin/hafalan-hub/config"
	"github.com/almuhajirin/hafalan-hub/internal/application/command"
	"github.com/almuhajirin/hafalan-hub/internal/application/query"
	"github.com/almuhajirin/hafalan-hub/internal/domain/clustering"
	"github.com/almuhajirin/hafalan-hub/internal/domain/hafalan"
	"github.com/almuhajirin/hafalan-hub/internal/infrastructure/metrics"
	"github.com/almuhajirin/hafalan-hub/internal/infrastructure/persistence/memory"
	"github.com/almuhajirin/hafalan-hub/internal/infrastructure/persistence/postgres"
	"github.com/almuhajirin/hafalan-hub/internal/infrastructure/persistence/redis"
	"github.com/almuhajirin/hafalan-hub/internal/infrastructure/persistence/sqlite"
	"github.com/almuhajirin/hafalan-hub/internal/infrastructure/scheduler"
	"github.com/almuhajirin/hafalan-hub/internal/infrastructure/scheduler/jobs"
	httpserver "github.com/almuhajirin/hafalan-hub/internal/interface/http"
	"github.com/almuhajirin/hafalan-hub/internal/interface/http/handlers"
	"github.com/almuhajirin/hafalan-hub/pkg/logger"
	"github.com/almuhajirin/hafalan-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER SETS
// ══════════════════════════════════════════════════════════════════════════════

// Commands groups the write-side handlers.
type Commands struct {
	AddStudent    *command.AddStudentHandler
	DeleteStudent *command.DeleteStudentHandler
	SaveRecord    *command.SaveDailyRecordHandler
	DeleteRecord  *command.DeleteDailyRecordHandler
	UpsertSummary *command.UpsertMonthlySummaryHandler
	DeleteSummary *command.DeleteMonthlySummaryHandler
}

// Queries groups the read-side handlers.
type Queries struct {
	ListStudents   *query.ListStudentsHandler
	RecordsByDate  *query.RecordsByDateHandler
	StudentHistory *query.StudentHistoryHandler
	ListSummaries  *query.ListSummariesHandler
	RunAnalysis    *query.RunAnalysisHandler
	Export         *query.ExportHandler
}

// ══════════════════════════════════════════════════════════════════════════════
// APP
// ══════════════════════════════════════════════════════════════════════════════

// App owns every long-lived dependency.
type App struct {
	Config   *config.Config
	Log      *logger.Logger
	Store    hafalan.Store
	Cache    query.ReportCache
	Metrics  *metrics.Metrics
	Health   *handlers.CompositeHealthChecker
	Commands Commands
	Queries  Queries

	closers []func() error
}

// Options tweak New for commands that need less than the full service.
type Options struct {
	// SkipCache leaves Redis out even when it is enabled.
	SkipCache bool
}

// New opens the store, connects the optional cache and builds all handlers.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, opts Options) (*App, error) {
	if log == nil {
		log = logger.Default()
	}
	a := &App{Config: cfg, Log: log}

	store, err := OpenStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	a.Store = store
	a.closers = append(a.closers, store.Close)

	a.Health = handlers.NewCompositeHealthChecker(cfg.App.Version)
	a.Health.AddCheck("store", handlers.PingCheck(store))

	a.Cache = query.NopCache()
	if cfg.Redis.Enabled && !opts.SkipCache {
		a.connectCache(ctx)
	}

	if cfg.Observability.MetricsEnabled {
		mcfg := metrics.DefaultConfig()
		if cfg.Observability.SlowRequestThreshold > 0 {
			mcfg.SlowRequestThreshold = cfg.Observability.SlowRequestThreshold
		}
		mcfg.OnSlowRequest = func(route string, took time.Duration) {
			log.Warn("slow request", logger.String("route", route), logger.Latency(took))
		}
		a.Metrics = metrics.New(mcfg)
	}

	a.buildHandlers()
	return a, nil
}

// OpenStore opens the configured document store. Postgres connects with
// retries and applies pending migrations.
func OpenStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (hafalan.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		log.Warn("using in-memory store; data is lost on exit")
		return memory.New(), nil

	case config.DriverSQLite:
		s, err := sqlite.Open(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.Store.Path, err)
		}
		log.Info("sqlite store opened", logger.String("path", cfg.Store.Path))
		return s, nil

	case config.DriverPostgres:
		conn, err := ConnectPostgres(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		applied, err := postgres.NewMigrator(conn).Migrate(ctx)
		if err != nil {
			conn.Close()
			return nil, err
		}
		log.Info("postgres store ready", logger.Int("migrations_applied", applied))
		return postgres.NewStore(conn), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

// ConnectPostgres dials the database under the startup retry policy.
func ConnectPostgres(ctx context.Context, cfg *config.Config, log *logger.Logger) (*postgres.Connection, error) {
	pcfg := postgres.DefaultConfig()
	pcfg.URL = cfg.Store.URL
	if cfg.Store.MaxConns > 0 {
		pcfg.MaxConns = cfg.Store.MaxConns
	}

	var conn *postgres.Connection
	err := retry.StoreConnect(cfg.Store.ConnectRetries, onRetry(log, "postgres")).Do(ctx, func(ctx context.Context) error {
		c, err := postgres.NewConnection(ctx, pcfg)
		if err != nil {
			return err
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return conn, nil
}

// connectCache falls back to no caching when Redis stays unreachable.
func (a *App) connectCache(ctx context.Context) {
	rcfg := redis.DefaultConfig()
	rcfg.Addr = a.Config.Redis.Addr
	rcfg.Password = a.Config.Redis.Password
	rcfg.DB = a.Config.Redis.DB
	if a.Config.Redis.PoolSize > 0 {
		rcfg.PoolSize = a.Config.Redis.PoolSize
	}
	if a.Config.Redis.TTL > 0 {
		rcfg.TTL = a.Config.Redis.TTL
	}

	var cache *redis.Cache
	err := retry.StoreConnect(a.Config.Store.ConnectRetries, onRetry(a.Log, "redis")).Do(ctx, func(context.Context) error {
		c, err := redis.NewCache(rcfg)
		if err != nil {
			return err
		}
		cache = c
		return nil
	})
	if err != nil {
		a.Log.Warn("redis unavailable, report caching disabled", logger.Err(err))
		return
	}

	a.closers = append(a.closers, cache.Close)
	a.Health.AddOptionalCheck("cache", handlers.PingCheck(cache))
	a.Cache = redis.NewGuardedCache(cache, a.Log)
	a.Log.Info("redis report cache connected", logger.String("addr", rcfg.Addr))
}

func onRetry(log *logger.Logger, target string) func(int, error, time.Duration) {
	return func(attempt int, err error, delay time.Duration) {
		log.Warn("connect failed, retrying",
			logger.String("target", target),
			logger.Int("attempt", attempt),
			logger.Duration("delay", delay),
			logger.Err(err),
		)
	}
}

func (a *App) buildHandlers() {
	st := a.Store
	log := a.Log
	normalizer := hafalan.NewNormalizer(a.Config.Analysis.ScaleMax)
	engine := clustering.NewEngine(a.Config.Analysis.Seed, clustering.WithNInit(a.Config.Analysis.NInit))

	var invalidator command.ReportInvalidator = a.Cache

	var recorder query.Recorder
	if a.Metrics != nil {
		recorder = a.Metrics
	}

	a.Commands = Commands{
		AddStudent:    command.NewAddStudentHandler(st.Students(), log),
		DeleteStudent: command.NewDeleteStudentHandler(st.Students(), st.Records(), st.Summaries(), log),
		SaveRecord:    command.NewSaveDailyRecordHandler(st.Students(), st.Records(), invalidator, a.Config.Analysis.ScaleMax, log),
		DeleteRecord:  command.NewDeleteDailyRecordHandler(st.Records(), invalidator, log),
		UpsertSummary: command.NewUpsertMonthlySummaryHandler(st.Students(), st.Summaries(), invalidator, log),
		DeleteSummary: command.NewDeleteMonthlySummaryHandler(st.Summaries(), invalidator, log),
	}
	a.Queries = Queries{
		ListStudents:   query.NewListStudentsHandler(st.Students()),
		RecordsByDate:  query.NewRecordsByDateHandler(st.Records(), normalizer),
		StudentHistory: query.NewStudentHistoryHandler(st.Students(), st.Records(), st.Summaries(), normalizer),
		ListSummaries:  query.NewListSummariesHandler(st.Summaries()),
		RunAnalysis:    query.NewRunAnalysisHandler(st.Records(), normalizer, engine, a.Cache, recorder, log),
		Export:         query.NewExportHandler(st),
	}
}

// HTTPServer builds the API server from the app's handlers.
func (a *App) HTTPServer() (*httpserver.Server, error) {
	auth, err := handlers.NewCoachKeyAuth(a.Config.Auth.CoachKeyHash)
	if err != nil {
		return nil, fmt.Errorf("coach key hash: %w", err)
	}
	if !auth.Enabled() {
		a.Log.Warn("no coach key configured; write endpoints are open")
	}

	cfg := httpserver.DefaultConfig()
	cfg.Host = a.Config.HTTP.Host
	cfg.Port = a.Config.HTTP.Port
	cfg.ReadTimeout = a.Config.HTTP.ReadTimeout
	cfg.WriteTimeout = a.Config.HTTP.WriteTimeout
	cfg.RateLimitPerMinute = a.Config.HTTP.RateLimitPerMinute
	if len(a.Config.HTTP.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = a.Config.HTTP.AllowedOrigins
	}
	cfg.DefaultK = a.Config.Analysis.DefaultK
	cfg.DefaultFeatureSet = a.Config.Analysis.FeatureSet
	cfg.DefaultWinsorize = a.Config.Analysis.WinsorizeLimit
	cfg.Version = a.Config.App.Version

	return httpserver.NewServer(cfg, httpserver.Dependencies{
		AddStudent:    a.Commands.AddStudent,
		DeleteStudent: a.Commands.DeleteStudent,
		SaveRecord:    a.Commands.SaveRecord,
		DeleteRecord:  a.Commands.DeleteRecord,
		UpsertSummary: a.Commands.UpsertSummary,
		DeleteSummary: a.Commands.DeleteSummary,

		ListStudents:   a.Queries.ListStudents,
		RecordsByDate:  a.Queries.RecordsByDate,
		StudentHistory: a.Queries.StudentHistory,
		ListSummaries:  a.Queries.ListSummaries,
		RunAnalysis:    a.Queries.RunAnalysis,
		Export:         a.Queries.Export,

		Logger:        a.Log,
		HealthChecker: a.Health,
		Metrics:       a.Metrics,
		CoachAuth:     auth,
	}), nil
}

// Scheduler returns a scheduler with the report warm-up job registered,
// or nil when background jobs are disabled.
func (a *App) Scheduler() (*scheduler.Scheduler, error) {
	if !a.Config.Scheduler.Enabled {
		return nil, nil
	}
	s := scheduler.New(scheduler.Config{
		Tick:       time.Second,
		RunOnStart: true,
		Logger:     a.Log,
	})
	job := jobs.NewWarmReportJob(a.Queries.RunAnalysis, jobs.WarmReportConfig{
		K:          a.Config.Analysis.DefaultK,
		FeatureSet: a.Config.Analysis.FeatureSet,
		Timeout:    time.Minute,
	}, a.Log)
	if err := s.Register(job, scheduler.Every(a.Config.Scheduler.WarmInterval)); err != nil {
		return nil, err
	}
	return s, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
