package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/fitrec/internal/loadtest"
	"github.com/okian/fitrec/pkg/logger"
)

// Default configuration constants.
const (
	defaultRecommendations = 1000
	defaultDuplicateEvery  = 5
	defaultMaxResults      = 100
	defaultWorkers         = 2 // multiplier for runtime.NumCPU()
	defaultTimeout         = 30 * time.Second
	defaultRunTimeout      = 10 * time.Minute
)

func main() {
	var (
		baseURL         = flag.String("url", "http://localhost:9080", "Base URL of the service")
		recommendations = flag.Int("recommendations", defaultRecommendations, "Number of /recommendations requests")
		plans           = flag.Int("plans", 0, "Number of /plans submissions")
		duplicateEvery  = flag.Int("duplicate-every", defaultDuplicateEvery, "Every Nth plan reuses the previous idempotency key")
		maxResults      = flag.Int("max-results", defaultMaxResults, "Row cap the service runs with")
		workers         = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent requests")
		seed            = flag.Uint64("seed", 1, "Seed for query generation")
		timeout         = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		pollTimeout     = flag.Duration("poll-timeout", loadtest.DefaultPollTimeout, "How long to wait for plan jobs")
		outputFile      = flag.String("output", "", "Output file for generated queries")
		logFile         = flag.String("log", "", "Log file (default: loadtest_TIMESTAMP.log)")
		verbose         = flag.Bool("verbose", false, "Log individual failures")
		help            = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		loadtest.ShowHelp(os.Stdout)
		return
	}
	if *recommendations < 0 || *plans < 0 || *workers < 1 {
		os.Stderr.WriteString("recommendations and plans must not be negative; workers must be positive\n")
		os.Exit(2)
	}

	closer, err := loadtest.SetupLogging(*logFile)
	if err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = closer.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	config := &loadtest.Config{
		BaseURL:         *baseURL,
		Recommendations: *recommendations,
		Plans:           *plans,
		DuplicateEvery:  *duplicateEvery,
		MaxResults:      *maxResults,
		Workers:         *workers,
		Seed:            *seed,
		Timeout:         *timeout,
		PollInterval:    loadtest.DefaultPollInterval,
		PollTimeout:     *pollTimeout,
		OutputFile:      *outputFile,
		LogFile:         *logFile,
		Verbose:         *verbose,
	}

	if _, err := loadtest.Run(ctx, config); err != nil {
		logger.Get().Error(ctx, "load run failed", logger.Error(err))
		code := 1
		if errors.Is(err, loadtest.ErrViolations) {
			code = 3
		}
		stop()
		cancel()
		_ = closer.Close()
		os.Exit(code)
	}
}
