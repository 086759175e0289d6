package loadtest

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/fitrec/pkg/logger"
)

const logFilePermission = 0o600

// SetupLogging initializes the global logger writing to stdout and to
// logFile. An empty logFile gets a timestamped name. The returned closer
// flushes the file.
func SetupLogging(logFile string) (io.Closer, error) {
	if logFile == "" {
		logFile = "loadtest_" + time.Now().Format("20060102_150405") + ".log"
	}
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission) //nolint:gosec // operator supplied path
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}
	if err := logger.InitWithWriter(io.MultiWriter(os.Stdout, file)); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return file, nil
}

// ShowHelp prints usage information for the load tool.
func ShowHelp(w io.Writer) {
	_, _ = io.WriteString(w, `fitrec load tool
================

Drives concurrent recommendation and plan traffic against a running fitrec
service and checks every answer: ratings must never increase down a
recommendation, the row cap must hold, and plan submissions sharing an
Idempotency-Key must share a job.

Usage:
  go run ./cmd/loadtest [options]

Options:
  -url string            Base URL of the service (default "http://localhost:9080")
  -recommendations int   Number of /recommendations requests (default 1000)
  -plans int             Number of /plans submissions; 0 skips plans (default 0)
  -duplicate-every int   Every Nth plan reuses the previous key (default 5)
  -max-results int       Row cap the service runs with (default 100)
  -workers int           Concurrent requests (default CPU cores * 2)
  -seed uint             Seed for query generation (default 1)
  -timeout duration      HTTP request timeout (default 30s)
  -poll-timeout duration How long to wait for plan jobs (default 2m)
  -output string         Write generated queries to this JSON file
  -log string            Log file (default: loadtest_TIMESTAMP.log)
  -verbose               Log individual failures
  -help                  Show this help message

Plans call the configured generator; keep -plans small against a real
OpenAI key.
`)
}
