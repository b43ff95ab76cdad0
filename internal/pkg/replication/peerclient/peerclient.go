// Package peerclient is the HTTP client for the replication endpoints of peer nodes.
package peerclient

import (
	"context"
	"net/http"
	"strconv"
	"time"

	resty "github.com/go-resty/resty/v2"

	"github.com/partdex/partdex/internal/pkg/model"
	"github.com/partdex/partdex/internal/pkg/utils/errors"
)

type Config struct {
	RequestTimeout time.Duration `configKey:"requestTimeout" configUsage:"Timeout of one replication upload." validate:"required"`
	Token          string        `configKey:"token" configUsage:"Shared token authorizing uploads to peers." sensitive:"true"`
}

func NewConfig() Config {
	return Config{
		RequestTimeout: 60 * time.Second,
	}
}

// BulkResult is the peer's report of one bulk upload.
type BulkResult struct {
	SavedCount  int      `json:"savedCount"`
	FailedCount int      `json:"failedCount"`
	Errors      []string `json:"errors,omitempty"`
}

type Client struct {
	http *resty.Client
}

func NewClient(cfg Config) *Client {
	c := resty.New()
	c.SetTimeout(cfg.RequestTimeout)
	if cfg.Token != "" {
		c.SetAuthToken(cfg.Token)
	}
	return &Client{http: c}
}

// UploadOne replicates a single entity and returns the peer's version of it.
func (c *Client) UploadOne(ctx context.Context, peer string, t model.HardwareType, entity *model.HardwareRecord) (*model.HardwareRecord, error) {
	result := &model.HardwareRecord{}
	response, err := c.http.R().
		SetContext(ctx).
		SetBody(entity).
		SetResult(result).
		Post(peer + "/v1/replication/" + string(t))
	if err != nil {
		return nil, err
	}
	if response.IsError() {
		return nil, unexpectedStatus(response)
	}
	return result, nil
}

// UploadBulk replicates a chunk of entities of one type and returns the
// peer's report. A partial failure reported by the peer counts as a failed
// call, the report is returned alongside the error.
func (c *Client) UploadBulk(ctx context.Context, peer string, t model.HardwareType, entities []*model.HardwareRecord) (BulkResult, error) {
	result := BulkResult{}
	response, err := c.http.R().
		SetContext(ctx).
		SetBody(entities).
		SetResult(&result).
		Post(peer + "/v1/replication/" + string(t) + "/bulk")
	if err != nil {
		return BulkResult{}, err
	}
	if response.IsError() {
		return BulkResult{}, unexpectedStatus(response)
	}
	if result.FailedCount > 0 {
		return result, errors.Errorf(
			`peer rejected "%d" of "%d" entities: %s`,
			result.FailedCount, len(entities), firstOrEmpty(result.Errors),
		)
	}
	return result, nil
}

func unexpectedStatus(response *resty.Response) error {
	return errors.New("unexpected HTTP status " + strconv.Itoa(response.StatusCode()) + " " + http.StatusText(response.StatusCode()))
}

func firstOrEmpty(messages []string) string {
	if len(messages) == 0 {
		return "no details"
	}
	return messages[0]
}
