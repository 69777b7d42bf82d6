package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"dualswap/pkg/logger"
	"dualswap/pkg/types"
)

// Options configures an aggregator or catalog HTTP client
type Options struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration // 0 means no client-side timeout
	RateLimit float64       // requests per second, 0 means unlimited
	Logger    *logrus.Logger
}

// HTTPError is returned for non-2xx responses
type HTTPError struct {
	Service    string
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	b := strings.TrimSpace(string(e.Body))
	if len(b) > 300 {
		b = b[:300] + "..."
	}
	if b == "" {
		return fmt.Sprintf("%s http %d", e.Service, e.StatusCode)
	}
	return fmt.Sprintf("%s http %d: %s", e.Service, e.StatusCode, b)
}

// Unwrap classifies HTTP failures as network errors
func (e *HTTPError) Unwrap() error {
	return types.ErrNetwork
}

type baseClient struct {
	service string
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	log     *logrus.Entry
}

func newBaseClient(service, defaultURL string, opts Options) baseClient {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultURL
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}

	return baseClient{
		service: service,
		baseURL: baseURL,
		apiKey:  strings.TrimSpace(opts.APIKey),
		http:    &http.Client{Timeout: opts.Timeout},
		limiter: limiter,
		log:     logger.Component(opts.Logger, service),
	}
}

// do sends the request and decodes a JSON body into out.
// Transport and status failures wrap types.ErrNetwork, undecodable bodies wrap types.ErrSwapData.
func (c *baseClient) do(ctx context.Context, req *http.Request, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %s rate limiter: %w", types.ErrNetwork, c.service, err)
		}
	}

	req.Header.Set("Accept", "application/json")

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s request failed: %w", types.ErrNetwork, c.service, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read %s response: %w", types.ErrNetwork, c.service, err)
	}

	c.log.WithFields(logrus.Fields{
		"method":  req.Method,
		"path":    req.URL.Path,
		"status":  res.StatusCode,
		"elapsed": time.Since(start).String(),
	}).Debug("aggregator call")

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return &HTTPError{Service: c.service, StatusCode: res.StatusCode, Body: body}
	}

	if decoder, ok := out.(interface{ decode([]byte) error }); ok {
		return decoder.decode(body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: failed to decode %s response: %w", types.ErrSwapData, c.service, err)
	}
	return nil
}
