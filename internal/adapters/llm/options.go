// Package llm turns a plan prompt into plan text through a chat completion
// service.
package llm

import (
	"net/http"
	"time"

	"github.com/okian/fitrec/pkg/logger"
)

// Option applies a configuration option to the OpenAI client.
type Option func(*OpenAI)

// WithAPIKey sets the API key sent with every request.
func WithAPIKey(key string) Option {
	return func(c *OpenAI) {
		c.apiKey = key
	}
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(c *OpenAI) {
		c.baseURL = url
	}
}

// WithModel sets the chat model.
func WithModel(model string) Option {
	return func(c *OpenAI) {
		if model != "" {
			c.model = model
		}
	}
}

// WithMaxTokens caps the completion length. Zero leaves it to the service.
func WithMaxTokens(n int) Option {
	return func(c *OpenAI) {
		if n >= 0 {
			c.maxTokens = n
		}
	}
}

// WithMaxRetries sets how many times a failed call is retried with backoff.
func WithMaxRetries(n int) Option {
	return func(c *OpenAI) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithTimeout bounds a single call, retries included.
func WithTimeout(d time.Duration) Option {
	return func(c *OpenAI) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient overrides the transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *OpenAI) {
		c.httpClient = hc
	}
}

// WithLogger sets the client logger.
func WithLogger(l logger.Logger) Option {
	return func(c *OpenAI) {
		if l != nil {
			c.log = l
		}
	}
}

// BreakerOption applies a configuration option to the Breaker.
type BreakerOption func(*Breaker)

// WithBreakerName names the breaker in logs and metrics.
func WithBreakerName(name string) BreakerOption {
	return func(b *Breaker) {
		if name != "" {
			b.name = name
		}
	}
}

// WithHalfOpenRequests sets how many trial requests pass while half-open.
func WithHalfOpenRequests(n uint32) BreakerOption {
	return func(b *Breaker) {
		if n > 0 {
			b.maxRequests = n
		}
	}
}

// WithOpenTimeout sets how long the breaker stays open before probing.
func WithOpenTimeout(d time.Duration) BreakerOption {
	return func(b *Breaker) {
		if d > 0 {
			b.openTimeout = d
		}
	}
}

// WithTripPolicy opens the breaker once at least minRequests calls were
// seen in the window and the failure ratio reaches ratio.
func WithTripPolicy(minRequests uint32, ratio float64) BreakerOption {
	return func(b *Breaker) {
		if minRequests > 0 {
			b.minRequests = minRequests
		}
		if ratio > 0 && ratio <= 1 {
			b.failureRatio = ratio
		}
	}
}

// WithBreakerLogger sets the breaker logger.
func WithBreakerLogger(l logger.Logger) BreakerOption {
	return func(b *Breaker) {
		if l != nil {
			b.log = l
		}
	}
}
