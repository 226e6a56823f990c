// Package api implements the commerce API client consumed by the
// checkout/cart core. Every payload is parsed into a validated, closed
// type at this boundary; nothing loosely typed flows inward.
package api

import (
	"bytes"
	"context"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/velora/storefront/errs"
	"github.com/velora/storefront/internal/telemetry"
)

const (
	pathFetchCart      = "/marketplace/cart/my-cart"
	pathToggleWallet   = "/marketplace/order/use_wallet/"
	pathShippingRates  = "/marketplace/cart/shipping-rates"
	pathResolveVariant = "/catalog/products/get-variation-by-attribute"
	pathAddToCart      = "/marketplace/cart/add-to-cart"
	pathUpdateQuantity = "/marketplace/cart/update-quantity-cart"
	pathRemoveItem     = "/marketplace/cart/remove-item/"
	pathRemoveVoucher  = "/marketplace/cart/delete-voucher/"
	pathAddresses      = "/marketplace/address"
)

// TokenSource supplies the bearer credential for authenticated calls.
// The auth collaborator itself is outside this core.
type TokenSource func(ctx context.Context) (string, error)

// StaticToken wraps a fixed credential in a TokenSource.
func StaticToken(token string) TokenSource {
	return func(context.Context) (string, error) { return token, nil }
}

// Options configures the API client.
type Options struct {
	BaseURL           string
	Token             TokenSource
	Timeout           time.Duration
	RequestsPerSecond float64
	MaxTries          int
	MaxElapsed        time.Duration
	HTTPClient        *http.Client
	Logger            *log.Logger
	Metrics           *telemetry.Metrics
}

// Client is the request/response commerce API collaborator. Transient
// failures are retried with bounded exponential backoff; validation
// rejections are returned immediately.
type Client struct {
	baseURL    string
	token      TokenSource
	http       *http.Client
	limiter    *rate.Limiter
	maxTries   int
	maxElapsed time.Duration
	logger     *log.Logger
	metrics    *telemetry.Metrics
}

// NewClient constructs an API client from options, filling defaults for
// anything unset.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 8
	}
	maxTries := opts.MaxTries
	if maxTries < 1 {
		maxTries = 1
	}
	maxElapsed := opts.MaxElapsed
	if maxElapsed <= 0 {
		maxElapsed = 30 * time.Second
	}
	token := opts.Token
	if token == nil {
		token = StaticToken("")
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		token:      token,
		http:       httpClient,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		maxTries:   maxTries,
		maxElapsed: maxElapsed,
		logger:     logger,
		metrics:    opts.Metrics,
	}
}

// do performs one API exchange with throttling, auth, correlation IDs
// and retry, and decodes the response body into out when non-nil.
func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return errs.New("api"+path, errs.CodeValidation,
				errs.WithMessage("encode request body"), errs.WithCause(err))
		}
		payload = encoded
	}

	operation := func() ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(errs.New("api"+path, errs.CodeNetwork,
				errs.WithMessage("request throttled past deadline"), errs.WithCause(err)))
		}
		data, err := c.exchange(ctx, method, path, payload)
		if err != nil && !errs.Transient(err) {
			return nil, backoff.Permanent(err)
		}
		return data, err
	}

	data, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uint(c.maxTries)),
		backoff.WithMaxElapsedTime(c.maxElapsed),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.metrics.HTTPRetry(ctx, path)
			c.logger.Printf("api: retrying %s %s in %s: %v", method, path, next.Round(time.Millisecond), err)
		}),
	)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errs.New("api"+path, errs.CodeValidation,
			errs.WithMessage("decode response body"), errs.WithCause(err))
	}
	return nil
}

// exchange performs a single HTTP round trip and classifies the outcome.
func (c *Client) exchange(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, errs.New("api"+path, errs.CodeValidation,
			errs.WithMessage("create request"), errs.WithCause(err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	token, err := c.token(ctx)
	if err != nil {
		return nil, errs.New("api"+path, errs.CodeAuth,
			errs.WithMessage("obtain bearer credential"), errs.WithCause(err))
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errs.New("api"+path, errs.CodeNetwork, errs.WithCause(err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.New("api"+path, errs.CodeNetwork,
			errs.WithMessage("read response body"), errs.WithCause(err))
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return data, nil
	}
	return nil, c.classify(path, resp.StatusCode, data)
}

func (c *Client) classify(path string, status int, body []byte) error {
	var remote remoteError
	_ = json.Unmarshal(body, &remote)

	opts := []errs.Option{errs.WithHTTP(status)}
	if remote.Code != "" {
		opts = append(opts, errs.WithRawCode(remote.Code))
	}
	if remote.Message != "" {
		opts = append(opts, errs.WithRawMessage(remote.Message))
	}

	scope := "api" + path
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errs.New(scope, errs.CodeAuth, opts...)
	case status == http.StatusNotFound:
		return errs.New(scope, errs.CodeNotFound, opts...)
	case status == http.StatusTooManyRequests:
		return errs.New(scope, errs.CodeRateLimited, opts...)
	case status >= 500:
		return errs.New(scope, errs.CodeRemote, opts...)
	default:
		return errs.New(scope, errs.CodeValidation, opts...)
	}
}

type remoteError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }
