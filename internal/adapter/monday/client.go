package monday

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/iho/boardbalance/internal/domain"
	"github.com/iho/boardbalance/internal/infrastructure/metrics"
)

const (
	DefaultURL        = "https://api.monday.com/v2"
	DefaultAPIVersion = "2024-10"
	DefaultBatchSize  = 25
	DefaultTimeout    = 30 * time.Second
)

// Config holds board API client settings.
type Config struct {
	URL               string
	Token             string
	APIVersion        string
	Timeout           time.Duration
	RequestsPerSecond float64
	MaxRetries        int
	WriteBatchSize    int
}

// Client talks to the board platform's GraphQL endpoint. It implements
// usecase.BoardSource and usecase.BoardWriter.
type Client struct {
	http      *resty.Client
	url       string
	limiter   *rate.Limiter
	retrier   *Retrier
	batchSize int
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// NewClient creates a new Client. m may be nil.
func NewClient(cfg Config, m *metrics.Metrics, logger zerolog.Logger) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.WriteBatchSize <= 0 {
		cfg.WriteBatchSize = DefaultBatchSize
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	httpClient := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Authorization", cfg.Token).
		SetHeader("API-Version", cfg.APIVersion).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(0)

	return &Client{
		http:      httpClient,
		url:       cfg.URL,
		limiter:   rate.NewLimiter(limit, 1),
		retrier:   NewRetrier(cfg.MaxRetries, logger),
		batchSize: cfg.WriteBatchSize,
		metrics:   m,
		logger:    logger,
	}
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func (e graphQLError) code() string {
	if code, ok := e.Extensions["code"].(string); ok {
		return code
	}
	return ""
}

type graphQLResponse struct {
	Data         json.RawMessage `json:"data"`
	Errors       []graphQLError  `json:"errors,omitempty"`
	ErrorCode    string          `json:"error_code,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

func (r *graphQLResponse) hasData() bool {
	d := bytes.TrimSpace(r.Data)
	return len(d) > 0 && !bytes.Equal(d, []byte("null"))
}

func (r *graphQLResponse) apiError() *APIError {
	if r.ErrorCode == "" && len(r.Errors) == 0 {
		return nil
	}

	apiErr := &APIError{Code: r.ErrorCode}
	if r.ErrorMessage != "" {
		apiErr.Messages = append(apiErr.Messages, r.ErrorMessage)
	}
	for _, e := range r.Errors {
		apiErr.Messages = append(apiErr.Messages, e.Message)
		if apiErr.Code == "" {
			apiErr.Code = e.code()
		}
	}
	return apiErr
}

// do sends one GraphQL request, retrying transient failures. A response that
// carries errors but also data is returned as is so callers can inspect
// partial results.
func (c *Client) do(ctx context.Context, operation string, req graphQLRequest) (*graphQLResponse, error) {
	var out *graphQLResponse
	attempt := 0

	err := c.retrier.Retry(ctx, func() error {
		attempt++
		if attempt > 1 && c.metrics != nil {
			c.metrics.UpstreamRetries.WithLabelValues(operation).Inc()
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		start := time.Now()
		resp, err := c.send(ctx, req)
		c.observe(operation, err, time.Since(start))
		if err != nil {
			return err
		}

		out = resp
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}

	return out, nil
}

func (c *Client) send(ctx context.Context, req graphQLRequest) (*graphQLResponse, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		Post(c.url)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &TransportError{Err: err}
	}

	if resp.IsError() {
		return nil, &StatusError{StatusCode: resp.StatusCode(), Body: truncate(resp.String(), 512)}
	}

	var out graphQLResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("%w: decode body: %v", domain.ErrMalformedResponse, err)
	}

	if !out.hasData() {
		if apiErr := out.apiError(); apiErr != nil {
			return nil, apiErr
		}
		return nil, fmt.Errorf("%w: response has no data", domain.ErrMalformedResponse)
	}

	return &out, nil
}

func (c *Client) observe(operation string, err error, d time.Duration) {
	if c.metrics == nil {
		return
	}

	outcome := "ok"
	var statusErr *StatusError
	var apiErr *APIError
	switch {
	case err == nil:
	case errors.As(err, &statusErr):
		outcome = fmt.Sprintf("http_%d", statusErr.StatusCode)
	case errors.As(err, &apiErr):
		outcome = "api_error"
	case errors.Is(err, domain.ErrMalformedResponse):
		outcome = "malformed"
	default:
		outcome = "transport"
	}
	c.metrics.ObserveUpstream(operation, outcome, d)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
