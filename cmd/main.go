package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/fitrec/internal/adapters/http/api"
	"github.com/okian/fitrec/internal/adapters/http/site"
	"github.com/okian/fitrec/internal/adapters/http/swagger"
	"github.com/okian/fitrec/internal/adapters/llm"
	"github.com/okian/fitrec/internal/adapters/repository"
	app "github.com/okian/fitrec/internal/app"
	"github.com/okian/fitrec/internal/config"
	"github.com/okian/fitrec/pkg/logger"
	"github.com/okian/fitrec/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// HTTP server timeout constants. Plan generation runs inline on /generate,
// so writes get as long as the generator timeout plus slack.
const (
	readTimeout               = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	writeSlack                = 10 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.Get().Error(ctx, "fitrec exited", logger.Error(err))
		stop()
		os.Exit(1)
	}
}

// run loads configuration, starts the service and serves HTTP until ctx is
// canceled.
func run(ctx context.Context) error {
	log := logger.Get()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if cfg.LogFormat != logger.FormatText {
		if err := logger.InitWithFormat(os.Stdout, cfg.LogFormat); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		log = logger.Get()
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	if cfg.OpenAIAPIKey == "" {
		log.Warn(ctx, "openai_api_key is empty; plan generation will fail until FITREC_OPENAI_API_KEY is set")
	}

	svc, err := newService(cfg, log)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      cfg.OpenAITimeout() + writeSlack,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(gctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		startSystemMetricsUpdater(gctx)
		return nil
	})
	g.Go(func() error {
		startServiceMetricsUpdater(gctx, svc)
		return nil
	})
	g.Go(func() error {
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		reloadOnSignal(gctx, hup, svc, log)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info(gctx, "shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
		if err := svc.Stop(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		log.Info(shutdownCtx, "server stopped")
		return errors.Join(errs...)
	})
	return g.Wait()
}

// newService builds the recommender from cfg.
func newService(cfg *config.Config, log logger.Logger) (*app.Service, error) {
	return app.New(
		app.WithLogger(log.Named("service")),
		app.WithSources(repository.Sources{
			Exercises:  cfg.ExercisesPath,
			Joined:     cfg.JoinedPath,
			Similarity: cfg.SimilarityPath,
		}),
		app.WithSimilarityThreshold(cfg.SimilarityThreshold),
		app.WithNeighborLimit(cfg.NeighborLimit),
		app.WithIncludeSelf(cfg.IncludeSelf),
		app.WithMaxResults(cfg.MaxResults),
		app.WithCacheSize(cfg.CacheSize),
		app.WithQueueSize(cfg.QueueSize),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithJobStoreSize(cfg.JobStoreSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithOpenAI(
			llm.WithAPIKey(cfg.OpenAIAPIKey),
			llm.WithBaseURL(cfg.OpenAIBaseURL),
			llm.WithModel(cfg.OpenAIModel),
			llm.WithMaxTokens(cfg.OpenAIMaxTokens),
			llm.WithMaxRetries(cfg.OpenAIMaxRetries),
			llm.WithTimeout(cfg.OpenAITimeout()),
		),
		app.WithBreaker(
			llm.WithHalfOpenRequests(uint32(cfg.BreakerMaxRequests)), //nolint:gosec // validated positive
			llm.WithOpenTimeout(cfg.BreakerTimeout()),
			llm.WithTripPolicy(uint32(cfg.BreakerMinRequests), cfg.BreakerFailureRatio), //nolint:gosec // validated positive
		),
	)
}

// newMux registers every route: the JSON API, its documentation and the
// plan form at "/".
func newMux(ctx context.Context, svc *app.Service) *http.ServeMux {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc).Register(ctx, mux)
	site.Register(ctx, mux)
	return mux
}

type reloader interface {
	Reload(ctx context.Context) error
}

// reloadOnSignal rereads the dataset each time sig fires, until ctx is done.
// A failed reload is logged and the process keeps serving.
func reloadOnSignal(ctx context.Context, sig <-chan os.Signal, svc reloader, log logger.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sig:
			if err := svc.Reload(ctx); err != nil {
				log.Error(ctx, "dataset reload failed", logger.Error(err))
				continue
			}
			log.Info(ctx, "dataset reloaded on SIGHUP")
		}
	}
}

// startSystemMetricsUpdater updates process metrics until ctx is done.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater refreshes service gauges until ctx is done.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics refreshes gauges GetStats does not already set.
func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()
	if workerCount, ok := stats["workerCount"].(int); ok {
		metrics.UpdateWorkerCount(workerCount)
	}
	if queueSize, ok := stats["queueSize"].(int); ok {
		metrics.UpdateQueueCapacity(queueSize)
		if queueLen, ok := stats["queueLength"].(int); ok && queueSize > 0 {
			metrics.UpdateQueueUtilization(float64(queueLen) / float64(queueSize))
		}
	}
}
