package marketapi

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partdex/partdex/internal/pkg/model"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	cfg := NewConfig()
	cfg.BaseURL = "https://api.market.example.com"
	cfg.RetryCount = 0 // keep failure tests fast
	client := NewClient(cfg)
	httpmock.ActivateNonDefault(client.http.GetClient())
	t.Cleanup(httpmock.DeactivateAndReset)
	return client
}

func listingsResponder(remaining, reset string, body string) httpmock.Responder {
	return func(*http.Request) (*http.Response, error) {
		response := httpmock.NewStringResponse(http.StatusOK, body)
		response.Header.Set("Content-Type", "application/json")
		response.Header.Set("X-RateLimit-Remaining", remaining)
		response.Header.Set("X-RateLimit-Reset", reset)
		return response, nil
	}
}

func TestClient_SearchCompleted(t *testing.T) {
	client := testClient(t)
	httpmock.RegisterResponder(
		http.MethodGet,
		"https://api.market.example.com/v1/listings/completed",
		listingsResponder("42", "1767225600", `{
			"items": [
				{
					"itemId": "item-1",
					"marketplace": "ebay.de",
					"price": {"amount": 15999, "currency": "EUR"},
					"observedAt": "2026-08-30T12:00:00Z",
					"condition": "used",
					"active": false
				}
			]
		}`),
	)

	listings, limit, err := client.SearchCompleted(context.Background(), "0730143312042", "EUR")
	require.NoError(t, err)

	require.Len(t, listings, 1)
	assert.Equal(t, "item-1", listings[0].ItemID)
	assert.Equal(t, int64(15999), listings[0].Price.Amount)
	assert.Equal(t, model.ConditionUsed, listings[0].Condition)

	assert.Equal(t, 42, limit.Remaining)
	assert.Equal(t, time.Unix(1767225600, 0), limit.ResetAt)

	info := httpmock.GetCallCountInfo()
	assert.Equal(t, 1, info["GET https://api.market.example.com/v1/listings/completed"])
}

func TestClient_Search_QuotaExhausted(t *testing.T) {
	client := testClient(t)
	httpmock.RegisterResponder(
		http.MethodGet,
		"https://api.market.example.com/v1/listings/completed",
		func(*http.Request) (*http.Response, error) {
			response := httpmock.NewStringResponse(http.StatusTooManyRequests, "")
			response.Header.Set("X-RateLimit-Remaining", "0")
			response.Header.Set("X-RateLimit-Reset", "1767225600")
			return response, nil
		},
	)

	_, limit, err := client.SearchCompleted(context.Background(), "0730143312042", "EUR")
	require.Error(t, err)
	assert.True(t, IsQuotaExhausted(err))

	var quotaErr *QuotaExhaustedError
	require.ErrorAs(t, err, &quotaErr)
	assert.Equal(t, time.Unix(1767225600, 0), quotaErr.ResetAt)
	assert.Equal(t, 0, limit.Remaining)

	// A 429 is flow control, it must not be retried
	info := httpmock.GetCallCountInfo()
	assert.Equal(t, 1, info["GET https://api.market.example.com/v1/listings/completed"])
}

func TestClient_Search_ServerError(t *testing.T) {
	client := testClient(t)
	httpmock.RegisterResponder(
		http.MethodGet,
		"https://api.market.example.com/v1/listings/active",
		httpmock.NewStringResponder(http.StatusInternalServerError, "boom"),
	)

	_, _, err := client.SearchActive(context.Background(), "0730143312042", "EUR")
	require.Error(t, err)
	assert.False(t, IsQuotaExhausted(err))

	var remoteErr *RemoteUnavailableError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, "/v1/listings/active", remoteErr.Endpoint)
	assert.Contains(t, remoteErr.Error(), "500")
}

func TestClient_Search_MissingRateLimitHeaders(t *testing.T) {
	client := testClient(t)
	httpmock.RegisterResponder(
		http.MethodGet,
		"https://api.market.example.com/v1/listings/completed",
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]any{"items": []any{}}),
	)

	listings, limit, err := client.SearchCompleted(context.Background(), "0730143312042", "EUR")
	require.NoError(t, err)
	assert.Empty(t, listings)

	// Missing headers leave the quota unknown, not zero
	assert.Equal(t, -1, limit.Remaining)
	assert.True(t, limit.ResetAt.IsZero())
}

func TestClient_RateLimit(t *testing.T) {
	client := testClient(t)
	httpmock.RegisterResponder(
		http.MethodGet,
		"https://api.market.example.com/v1/ratelimit",
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]any{"remaining": 17, "resetAt": 1767225600}),
	)

	limit, err := client.RateLimit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 17, limit.Remaining)
	assert.Equal(t, time.Unix(1767225600, 0), limit.ResetAt)
}

func TestListing_Observation(t *testing.T) {
	t.Parallel()
	observedAt := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	l := Listing{
		ItemID:      "item-1",
		Marketplace: "ebay.de",
		Price:       Price{Amount: 15999, Currency: "EUR"},
		ObservedAt:  observedAt,
	}

	o := l.Observation("0730143312042")
	assert.Equal(t, "ebay.de", o.MarketplaceDomain)
	assert.Equal(t, "item-1", o.MarketplaceItemID)
	assert.Equal(t, "0730143312042", o.Identifier)
	assert.Equal(t, int64(15999), o.Amount)
	assert.Equal(t, "EUR", o.Currency)
	assert.Equal(t, observedAt, o.ObservedAt)
	// A listing without a condition maps to the unknown condition
	assert.Equal(t, model.ConditionUnknown, o.Condition)
}
