package healthplanet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/2beens/healthdash/internal/telemetry/metrics"
	"github.com/2beens/healthdash/internal/telemetry/tracing"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"
)

// api docs: https://www.healthplanet.jp/apis/api.html

const (
	DefaultBaseURL = "https://www.healthplanet.jp"
	innerscanPath  = "/status/innerscan.json"

	TagWeight  = "6021"
	TagBodyFat = "6022"

	// raw responses are kept for the background revalidation window
	cacheExpireSeconds = 5 * 60
)

var ErrAccessTokenNotSet = errors.New("health planet access token not configured")

type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
	cache       *freecache.Cache
	metrics     *metrics.Manager
}

func NewClient(
	baseURL string,
	accessToken string,
	httpClient *http.Client,
	metricsManager *metrics.Manager,
) *Client {
	megabyte := 1024 * 1024
	return &Client{
		baseURL:     baseURL,
		accessToken: accessToken,
		httpClient:  httpClient,
		cache:       freecache.NewCache(10 * megabyte),
		metrics:     metricsManager,
	}
}

// GetInnerscan returns the raw innerscan response body for the given
// YYYYMMDD range, serving it from cache when a recent fetch exists.
// The tag parameter is optional and narrows the response to one metric.
func (c *Client) GetInnerscan(ctx context.Context, from, to, tag string) ([]byte, error) {
	return c.fetch(ctx, from, to, tag, false)
}

// RefreshInnerscan skips the cache read, always hitting the API;
// a fresh response still lands in the cache for subsequent reads
func (c *Client) RefreshInnerscan(ctx context.Context, from, to, tag string) ([]byte, error) {
	return c.fetch(ctx, from, to, tag, true)
}

// GetMeasurements returns the parsed innerscan samples for both metrics.
func (c *Client) GetMeasurements(ctx context.Context, from, to string) ([]Measurement, error) {
	respBytes, err := c.GetInnerscan(ctx, from, to, "")
	if err != nil {
		return nil, err
	}
	return unmarshalMeasurements(respBytes)
}

// RefreshMeasurements is GetMeasurements with the cache read skipped.
func (c *Client) RefreshMeasurements(ctx context.Context, from, to string) ([]Measurement, error) {
	respBytes, err := c.RefreshInnerscan(ctx, from, to, "")
	if err != nil {
		return nil, err
	}
	return unmarshalMeasurements(respBytes)
}

func unmarshalMeasurements(respBytes []byte) ([]Measurement, error) {
	var innerscanResponse InnerscanResponse
	if err := json.Unmarshal(respBytes, &innerscanResponse); err != nil {
		return nil, fmt.Errorf("unmarshal innerscan response bytes: %w", err)
	}
	return innerscanResponse.Data, nil
}

func (c *Client) fetch(ctx context.Context, from, to, tag string, skipCache bool) (_ []byte, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "healthplanet.fetch")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if c.accessToken == "" {
		return nil, ErrAccessTokenNotSet
	}

	cacheKey := []byte(fmt.Sprintf("innerscan::%s::%s::%s", from, to, tag))
	if !skipCache {
		if respBytes, err := c.cache.Get(cacheKey); err == nil {
			log.Tracef("found innerscan data for [%s - %s] in cache", from, to)
			c.metrics.CounterUpstreamCacheHits.Inc()
			return respBytes, nil
		}
		log.Debugf("innerscan data for [%s - %s] not cached, calling health planet", from, to)
	}

	params := url.Values{}
	params.Set("access_token", c.accessToken)
	params.Set("date", "1")
	params.Set("from", expandDate(from, "000000"))
	params.Set("to", expandDate(to, "235959"))
	if tag != "" {
		params.Set("tag", tag)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+innerscanPath,
		strings.NewReader(params.Encode()),
	)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	c.metrics.CounterUpstreamFetches.Inc()
	fetchStart := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.CounterUpstreamErrors.Inc()
		return nil, fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	c.metrics.HistUpstreamFetchSeconds.Observe(time.Since(fetchStart).Seconds())

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.CounterUpstreamErrors.Inc()
		return nil, fmt.Errorf("read innerscan response bytes: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.metrics.CounterUpstreamErrors.Inc()
		return nil, apiError(resp.StatusCode, respBytes)
	}

	if err = c.cache.Set(cacheKey, respBytes, cacheExpireSeconds); err != nil {
		log.Errorf("failed to cache innerscan data for [%s - %s]: %s", from, to, err)
	} else {
		log.Debugf("innerscan cache set for [%s - %s]", from, to)
	}

	return respBytes, nil
}

// apiError surfaces the upstream-provided error message when present,
// else a generic one with the status code
func apiError(statusCode int, respBytes []byte) error {
	var errResp ErrorResponse
	if err := json.Unmarshal(respBytes, &errResp); err == nil && errResp.Error != "" {
		return errors.New(errResp.Error)
	}
	return fmt.Errorf("API error: %d", statusCode)
}

// the innerscan endpoint expects 14-digit YYYYMMDDHHMMSS dates
func expandDate(date, timeOfDay string) string {
	if len(date) == 8 {
		return date + timeOfDay
	}
	return date
}
