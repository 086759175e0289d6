package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/okian/fitrec/pkg/logger"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// Default client settings.
const (
	DefaultModel      = "gpt-4"
	defaultTimeout    = 60 * time.Second
	defaultMaxRetries = 2
)

// Generator produces plan text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// OpenAI is a Generator backed by the chat completions API.
type OpenAI struct {
	client     openai.Client
	apiKey     string
	baseURL    string
	model      string
	maxTokens  int
	maxRetries int
	timeout    time.Duration
	httpClient *http.Client
	log        logger.Logger
}

// NewOpenAI creates a client. The API key is taken only from options;
// the process environment is never consulted.
func NewOpenAI(opts ...Option) *OpenAI {
	c := &OpenAI{
		model:      DefaultModel,
		maxRetries: defaultMaxRetries,
		timeout:    defaultTimeout,
		log:        logger.Default().Named("llm"),
	}
	for _, opt := range opts {
		opt(c)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(c.apiKey),
		option.WithMaxRetries(c.maxRetries),
	}
	if c.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(c.baseURL))
	}
	if c.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(c.httpClient))
	}
	c.client = openai.NewClient(reqOpts...)
	return c
}

// Model returns the configured chat model.
func (c *OpenAI) Model() string { return c.model }

func (c *OpenAI) params(prompt string) openai.ChatCompletionNewParams {
	p := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(prompt),
					},
				},
			},
		},
	}
	if c.maxTokens > 0 {
		p.MaxTokens = openai.Int(int64(c.maxTokens))
	}
	return p
}

// Generate sends prompt as a single user message and returns the first
// choice. Transport and API failures wrap ErrUnavailable.
func (c *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.Chat.Completions.New(ctx, c.params(prompt))
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			c.log.Warn(ctx, "chat completion rejected",
				logger.Int("status", apiErr.StatusCode),
				logger.String("model", c.model))
			return "", fmt.Errorf("%w: status %d: %w", ErrUnavailable, apiErr.StatusCode, err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("%w: %w", ErrUnavailable, ctxErr)
		}
		c.log.Warn(ctx, "chat completion failed", logger.Error(err))
		return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	c.log.Debug(ctx, "chat completion done",
		logger.String("model", resp.Model),
		logger.Int("completion_tokens", int(resp.Usage.CompletionTokens)))
	return text, nil
}
