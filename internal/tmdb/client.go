// Cinegraph - External Content Metadata Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinegraph

/*
Package tmdb implements the typed provider API client.

Every call follows the same path: build a canonical request fingerprint
(endpoint plus sorted parameters, credentials excluded), consult the response
cache, and on a hit return the decoded payload without touching the network
or the rate limiter. On a miss the rate limiter decides admission — a denial
surfaces as a RateLimited error carrying the suggested wait, the client never
blocks — then the HTTP call runs inside a circuit breaker, the outcome is
recorded to the limiter win or lose, failures are classified through the
error taxonomy, and successful payloads are cached under the type-appropriate
TTL.

Thread safety: the client is safe for concurrent use; each request builds its
own http.Request and the cache and limiter synchronize internally.
*/
package tmdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/cinegraph/internal/config"
	"github.com/tomtom215/cinegraph/internal/logging"
	"github.com/tomtom215/cinegraph/internal/metrics"
	dto "github.com/tomtom215/cinegraph/internal/models/tmdb"
	"github.com/tomtom215/cinegraph/internal/respcache"
	"github.com/tomtom215/cinegraph/internal/syncerr"
)

// maxErrorBodySize limits how much of an error response body is read for
// diagnostics, preventing unbounded allocation on large error pages.
const maxErrorBodySize = 64 * 1024

// defaultTimeout bounds each network call when the configuration leaves
// the timeout unset.
const defaultTimeout = 30 * time.Second

// AdmissionController is the rate-limiter surface the client consumes.
// Satisfied by both ratelimit.Limiter and ratelimit.AdaptiveLimiter.
type AdmissionController interface {
	Allow(endpoint string) bool
	RecordOutcome(endpoint string, success bool)
	WaitSeconds(endpoint string) int
}

// Client is the provider API client. Construct with New.
type Client struct {
	cfg     config.Provider
	http    *http.Client
	cache   *respcache.Cache
	limiter AdmissionController
	breaker *gobreaker.CircuitBreaker[[]byte]
}

// New creates a provider client composing the given response cache and
// admission controller.
//
// Circuit breaker configuration mirrors the provider's failure modes:
//   - Opens after a 60% failure rate with at least 10 requests
//   - 1 minute measurement window, 2 minute open period
//   - 3 probe requests allowed in half-open state
//
// Provider-answered errors (not-found, invalid request, bad credentials)
// do not count toward tripping the breaker; only transport failures and
// server-side trouble do.
func New(cfg config.Provider, cache *respcache.Cache, limiter AdmissionController) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	cbName := "provider-api"
	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0)

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.6
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			switch syncerr.KindOf(err) {
			case syncerr.NotFound, syncerr.InvalidRequest, syncerr.InvalidCredentials:
				// The provider answered; the circuit is healthy.
				return true
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("from", from.String()).Str("to", to.String()).Msg("Provider circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		cache:   cache,
		limiter: limiter,
		breaker: breaker,
	}
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}

// defaultParams returns params extended with the configured language and
// region. The input is not modified.
func (c *Client) defaultParams(params url.Values) url.Values {
	out := url.Values{}
	for k, vs := range params {
		for _, v := range vs {
			out.Add(k, v)
		}
	}
	if c.cfg.Language != "" && out.Get("language") == "" {
		out.Set("language", c.cfg.Language)
	}
	if c.cfg.Region != "" && out.Get("region") == "" {
		out.Set("region", c.cfg.Region)
	}
	return out
}

// get runs the full request pipeline for endpoint and decodes the payload
// into out. The fingerprint is computed before credentials are attached, so
// the API key never reaches the cache.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, typeTag string, out interface{}) error {
	params = c.defaultParams(params)
	fingerprint := respcache.Fingerprint(endpoint, params)

	if payload, ok := c.cache.Get(fingerprint, typeTag); ok {
		if err := json.Unmarshal(payload, out); err == nil {
			return nil
		}
		// Undecodable cached payload: drop it and fall through to the
		// network for a fresh copy.
		c.cache.Invalidate(fingerprint)
	}

	if !c.limiter.Allow(endpoint) {
		wait := c.limiter.WaitSeconds(endpoint)
		logging.Debug().Str("endpoint", endpoint).Int("wait_seconds", wait).Msg("Request denied by rate limiter")
		return syncerr.Limited(endpoint, wait)
	}

	body, err := c.fetch(ctx, endpoint, params)
	c.limiter.RecordOutcome(endpoint, err == nil)
	if err != nil {
		if se := syncerr.As(err); se != nil {
			metrics.ProviderErrors.WithLabelValues(endpoint, se.Kind.String()).Inc()
		}
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		metrics.ProviderErrors.WithLabelValues(endpoint, syncerr.MalformedResponse.String()).Inc()
		return syncerr.Malformed(endpoint, err)
	}

	c.cache.Set(fingerprint, body, typeTag)
	return nil
}

// fetch performs one HTTP GET inside the circuit breaker and returns the
// raw 2xx body, or a classified error.
func (c *Client) fetch(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	start := time.Now()
	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.do(ctx, endpoint, params)
	})
	metrics.ProviderRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.ProviderRequests.WithLabelValues(endpoint, "error").Inc()
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, syncerr.Transport(endpoint, err)
		}
		return nil, err
	}
	metrics.ProviderRequests.WithLabelValues(endpoint, "success").Inc()
	return body, nil
}

// do executes the raw HTTP request and classifies any failure.
func (c *Client) do(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	params.Set("api_key", c.cfg.APIKey)
	reqURL := strings.TrimSuffix(c.cfg.BaseURL, "/") + endpoint + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, syncerr.Local(endpoint, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, syncerr.Transport(endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return nil, classifyErrorBody(endpoint, resp.StatusCode, body)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, syncerr.Transport(endpoint, fmt.Errorf("failed to read response body: %w", err))
	}
	// The provider sometimes answers 2xx with its error envelope in the
	// body. Surface it as the classified error instead of handing callers
	// a zero-valued payload.
	if se := embeddedStatusError(endpoint, resp.StatusCode, body); se != nil {
		return nil, se
	}
	return body, nil
}

func (c *Client) userAgent() string {
	if c.cfg.UserAgent != "" {
		return c.cfg.UserAgent
	}
	return "Cinegraph/1.0 (+https://github.com/tomtom215/cinegraph)"
}

// classifyErrorBody converts a non-2xx response into a taxonomy error,
// refining the HTTP status with the provider's embedded status_code when
// the body carries one.
func classifyErrorBody(endpoint string, httpStatus int, body []byte) *syncerr.SyncError {
	var status dto.Status
	var cause error
	if err := json.Unmarshal(body, &status); err == nil && status.StatusMessage != "" {
		cause = fmt.Errorf("provider: %s", status.StatusMessage)
	}
	return syncerr.ClassifyHTTP(endpoint, httpStatus, status.StatusCode, cause)
}

// embeddedStatusError detects the provider's error envelope inside a 2xx
// body. A payload is an envelope when success is explicitly false or a
// provider status_code is present; ordinary detail and page payloads carry
// neither field.
func embeddedStatusError(endpoint string, httpStatus int, body []byte) *syncerr.SyncError {
	var status dto.Status
	if err := json.Unmarshal(body, &status); err != nil {
		return nil
	}
	failed := status.Success != nil && !*status.Success
	if !failed && status.StatusCode == 0 {
		return nil
	}
	var cause error
	if status.StatusMessage != "" {
		cause = fmt.Errorf("provider: %s", status.StatusMessage)
	}
	return syncerr.ClassifyHTTP(endpoint, httpStatus, status.StatusCode, cause)
}
