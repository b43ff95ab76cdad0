// Package marketapi provides the client for the rate-limited marketplace price API.
// Every response carries the current rate-limit window in the
// X-RateLimit-Remaining and X-RateLimit-Reset headers.
package marketapi

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	resty "github.com/go-resty/resty/v2"

	"github.com/partdex/partdex/internal/pkg/model"
)

const (
	idleConnTimeout = 90 * time.Second
	keepAlive       = 30 * time.Second
	maxIdleConns    = 64

	headerRemaining = "X-RateLimit-Remaining"
	headerReset     = "X-RateLimit-Reset"
)

// RateLimit is the state of the remote quota window.
type RateLimit struct {
	Remaining int
	ResetAt   time.Time
}

// Listing is one marketplace listing returned by the API.
type Listing struct {
	ItemID      string          `json:"itemId"`
	Marketplace string          `json:"marketplace"`
	Price       Price           `json:"price"`
	ObservedAt  time.Time       `json:"observedAt"`
	Condition   model.Condition `json:"condition"`
	Active      bool            `json:"active"`
}

type Price struct {
	Amount   int64  `json:"amount"` // minor currency units
	Currency string `json:"currency"`
}

// Observation converts the listing to a price observation keyed by the identifier.
func (l Listing) Observation(identifier string) model.PriceObservation {
	condition := l.Condition
	if condition == "" {
		condition = model.ConditionUnknown
	}
	return model.PriceObservation{
		MarketplaceDomain: l.Marketplace,
		MarketplaceItemID: l.ItemID,
		Identifier:        identifier,
		Amount:            l.Price.Amount,
		Currency:          l.Price.Currency,
		ObservedAt:        l.ObservedAt,
		Condition:         condition,
	}
}

type searchResponse struct {
	Items []Listing `json:"items"`
}

type rateLimitResponse struct {
	Remaining int   `json:"remaining"`
	ResetAt   int64 `json:"resetAt"`
}

type Client struct {
	http *resty.Client
}

func NewClient(cfg Config) *Client {
	c := resty.New()
	c.SetBaseURL(cfg.BaseURL)
	c.SetTimeout(cfg.RequestTimeout)
	c.SetTransport(createTransport())
	if cfg.Token != "" {
		c.SetAuthToken(cfg.Token)
	}
	c.SetRetryCount(cfg.RetryCount)
	c.SetRetryWaitTime(cfg.RetryWaitTime)
	c.SetRetryMaxWaitTime(cfg.RetryWaitTimeMax)
	// HTTP 429 is intentionally not retried, quota exhaustion is flow control,
	// the sweep loop must see it immediately.
	c.AddRetryCondition(func(response *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		switch response.StatusCode() {
		case
			http.StatusRequestTimeout,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		default:
			return false
		}
	})
	return &Client{http: c}
}

func createTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: keepAlive,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          maxIdleConns,
		MaxIdleConnsPerHost:   maxIdleConns,
		IdleConnTimeout:       idleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// SearchCompleted returns closed sales for the identifier.
func (c *Client) SearchCompleted(ctx context.Context, identifier, currency string) ([]Listing, RateLimit, error) {
	return c.search(ctx, "/v1/listings/completed", identifier, currency)
}

// SearchActive returns currently active listings for the identifier.
func (c *Client) SearchActive(ctx context.Context, identifier, currency string) ([]Listing, RateLimit, error) {
	return c.search(ctx, "/v1/listings/active", identifier, currency)
}

func (c *Client) search(ctx context.Context, endpoint, identifier, currency string) ([]Listing, RateLimit, error) {
	result := &searchResponse{}
	response, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("identifier", identifier).
		SetQueryParam("currency", currency).
		SetResult(result).
		Get(endpoint)
	if err != nil {
		return nil, RateLimit{}, &RemoteUnavailableError{Endpoint: endpoint, Err: err}
	}

	limit := rateLimitFromHeaders(response)
	switch {
	case response.StatusCode() == http.StatusTooManyRequests:
		return nil, limit, &QuotaExhaustedError{ResetAt: limit.ResetAt}
	case response.IsError():
		return nil, limit, &RemoteUnavailableError{
			Endpoint: endpoint,
			Err:      errorFromStatus(response.StatusCode()),
		}
	}
	return result.Items, limit, nil
}

// RateLimit queries the rate-limit introspection endpoint.
func (c *Client) RateLimit(ctx context.Context) (RateLimit, error) {
	const endpoint = "/v1/ratelimit"
	result := &rateLimitResponse{}
	response, err := c.http.R().
		SetContext(ctx).
		SetResult(result).
		Get(endpoint)
	if err != nil {
		return RateLimit{}, &RemoteUnavailableError{Endpoint: endpoint, Err: err}
	}
	if response.IsError() {
		return RateLimit{}, &RemoteUnavailableError{Endpoint: endpoint, Err: errorFromStatus(response.StatusCode())}
	}
	return RateLimit{Remaining: result.Remaining, ResetAt: time.Unix(result.ResetAt, 0)}, nil
}

func rateLimitFromHeaders(response *resty.Response) RateLimit {
	limit := RateLimit{Remaining: -1}
	if v, err := strconv.Atoi(response.Header().Get(headerRemaining)); err == nil {
		limit.Remaining = v
	}
	if v, err := strconv.ParseInt(response.Header().Get(headerReset), 10, 64); err == nil {
		limit.ResetAt = time.Unix(v, 0)
	}
	return limit
}

func errorFromStatus(code int) error {
	return &statusError{code: code}
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return "unexpected HTTP status " + strconv.Itoa(e.code) + " " + http.StatusText(e.code)
}
