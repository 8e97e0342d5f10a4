package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"fundscore/internal/alerting"
	"fundscore/internal/analytics"
	"fundscore/internal/config"
	"fundscore/internal/fetcher"
	"fundscore/internal/pipeline"
	"fundscore/internal/policy"
	"fundscore/internal/scheduler"
	"fundscore/internal/source"
	"fundscore/internal/storage"
	"fundscore/internal/telemetry"
	"fundscore/internal/version"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Enabled && a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// newProvider assembles the input collaborators. Universe, mappings and
// portfolio attributes always come from the database; price history may come
// from the HTTP history API instead.
func (a *App) newProvider(store *storage.Store) (source.Provider, error) {
	if store == nil {
		return nil, errors.New("database.dsn 未配置，无法读取基金数据")
	}
	switch a.Config.Source.Kind {
	case "http":
		client := fetcher.New(fetcher.Options{
			BaseURL:   a.Config.Source.BaseURL,
			Timeout:   a.Config.Source.RequestTimeout,
			UserAgent: a.Config.Source.UserAgent,
		}, a.Logger)
		return source.Composite{
			NavSource:       client,
			BenchmarkSource: client,
			MappingSource:   store,
			UniverseSource:  store,
			PortfolioSource: store,
		}, nil
	default:
		return store, nil
	}
}

func (a *App) loadPolicies() (*policy.Registry, policy.BenchmarkOverrides, error) {
	registry, err := policy.LoadRegistry(a.Config.Scoring.PoliciesFile)
	if err != nil {
		return nil, policy.BenchmarkOverrides{}, err
	}
	overrides, err := policy.LoadBenchmarkOverrides(a.Config.Scoring.BenchmarkOverridesFile)
	if err != nil {
		return nil, policy.BenchmarkOverrides{}, err
	}
	return registry, overrides, nil
}

func (a *App) analyticsOptions() analytics.Options {
	sc := a.Config.Scoring
	opts := analytics.DefaultOptions()
	opts.MinDailyPoints = sc.MinDailyPoints
	opts.RiskAdjusted.LookbackMonths = sc.LookbackMonths
	opts.RiskAdjusted.MinOverlapMonths = sc.MinOverlapMonths
	opts.RiskAdjusted.MinRegimeMonths = sc.MinRegimeMonths
	opts.RiskAdjusted.RiskFreeRate = sc.RiskFreeRate
	return opts
}

// newService wires a scoring service. sink may differ from provider, e.g. an
// in-memory sink for dry runs.
func (a *App) newService(provider source.Provider, sink storage.ResultSink, metrics *telemetry.Metrics, workers int, dryRun bool) (*pipeline.Service, error) {
	registry, overrides, err := a.loadPolicies()
	if err != nil {
		return nil, err
	}
	resolver := policy.NewBenchmarkResolver(provider, overrides)
	if v := resolver.Version(); v != "" {
		a.Logger.Info().Str("overrides_version", v).Msg("benchmark overrides loaded")
	}

	return pipeline.New(pipeline.Dependencies{
		Provider: provider,
		Sink:     sink,
		Registry: registry,
		Resolver: resolver,
		Notifier: a.newNotifier(),
		Metrics:  metrics,
	}, pipeline.Options{
		Workers:         a.Config.ResolveWorkers(workers),
		MinPeers:        a.Config.Scoring.MinPeers,
		Analytics:       a.analyticsOptions(),
		LockKey:         a.Config.Scheduler.AdvisoryLockKey,
		DryRun:          dryRun,
		NotifyOnSuccess: a.Config.Alerting.OnSuccess,
		Location:        a.Config.Location(),
	}, a.Logger), nil
}

// Run executes the long-running scoring daemon.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}
	provider, err := a.newProvider(store)
	if err != nil {
		return err
	}

	var metrics *telemetry.Metrics
	if a.Config.Metrics.Enabled {
		metrics = telemetry.New()
		stop := a.serveMetrics(metrics)
		defer stop()
	}

	svc, err := a.newService(provider, store, metrics, 0, false)
	if err != nil {
		return err
	}

	sched, err := scheduler.New(scheduler.Options{
		Spec:         a.Config.Scheduler.Spec,
		Location:     a.Config.Location(),
		StartupDelay: a.Config.Scheduler.StartupDelay,
		RunOnStart:   a.Config.Scheduler.RunOnStart,
	}, a.Logger)
	if err != nil {
		return err
	}

	a.Logger.Info().Str("spec", a.Config.Scheduler.Spec).
		Str("version", version.Version).
		Time("next_run", sched.Next(time.Now())).
		Msg("starting scoring service")
	err = sched.Run(ctx, func(ctx context.Context, _ time.Time) error {
		return outcomesError(svc.RunCategories(ctx, a.Config.Scheduler.Categories, time.Time{}))
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("scoring service stopped")
	return nil
}

func (a *App) serveMetrics(metrics *telemetry.Metrics) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              a.Config.Metrics.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.Logger.Info().Str("listen", srv.Addr).Msg("metrics endpoint listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error().Err(err).Msg("metrics endpoint stopped")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// outcomesError folds per-category failures into one error.
func outcomesError(outcomes []pipeline.Outcome) error {
	var errs []error
	for _, o := range outcomes {
		if o.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", o.Category, o.Err))
		}
	}
	return errors.Join(errs...)
}

// ScoreOptions configure a one-shot scoring run.
type ScoreOptions struct {
	Categories []string
	AsOf       time.Time
	DryRun     bool
	Workers    int
}

// ExportOptions hold parameters for exporting category rankings.
type ExportOptions struct {
	Category string
	PNGPath  string
	CSVPath  string
	XLSXPath string
	MaxRows  int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Category string
	Limit    int
	Runs     bool
}
