package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/roryk/backend/internal/config"
	"go.uber.org/zap"
)

const (
	apiKeyHeader        = "X-API-Key"
	maxVehicleBodyBytes = 1 << 20
)

// VehicleDataProvider fetches vehicle information from the upstream data service.
type VehicleDataProvider interface {
	Lookup(ctx context.Context, req CheckRequest) (json.RawMessage, error)
}

// VehicleClient calls the upstream vehicle data API. Network errors, 5xx and
// 429 responses are retried with exponential backoff; other 4xx responses
// fail immediately.
type VehicleClient struct {
	baseURL       string
	apiKey        string
	httpClient    *http.Client
	maxRetries    uint64
	retryInterval time.Duration
	logger        *zap.Logger
}

func NewVehicleClient(cfg config.VehicleConfig, logger *zap.Logger) *VehicleClient {
	return &VehicleClient{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:        cfg.APIKey,
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		maxRetries:    cfg.MaxRetries,
		retryInterval: 500 * time.Millisecond,
		logger:        logger.Named("vehicle_client"),
	}
}

func (c *VehicleClient) Lookup(ctx context.Context, req CheckRequest) (json.RawMessage, error) {
	endpoint := c.endpoint(req)

	var body json.RawMessage
	operation := func() error {
		data, err := c.get(ctx, endpoint)
		if err != nil {
			return err
		}
		body = data
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, c.maxRetries), ctx)

	notify := func(err error, wait time.Duration) {
		c.logger.Warn("vehicle lookup failed, retrying",
			zap.String("service_type", string(req.ServiceType)),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		if errors.Is(err, ErrVehicleNotFound) || errors.Is(err, ErrUpstreamUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	return body, nil
}

func (c *VehicleClient) endpoint(req CheckRequest) string {
	u := c.baseURL + "/" + url.PathEscape(string(req.ServiceType)) + "/" + url.PathEscape(req.Identifier)

	q := url.Values{}
	if req.Odometer != nil {
		q.Set("odometer", strconv.Itoa(*req.Odometer))
	}
	if req.OdometerUnknown {
		q.Set("odometerUnknown", "true")
	}
	if req.ValidNCT != nil {
		q.Set("validNct", strconv.FormatBool(*req.ValidNCT))
	}
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func (c *VehicleClient) get(ctx context.Context, endpoint string) (json.RawMessage, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxVehicleBodyBytes))
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, backoff.Permanent(ErrVehicleNotFound)
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return nil, fmt.Errorf("upstream returned %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, backoff.Permanent(fmt.Errorf("%w: upstream returned %d", ErrUpstreamUnavailable, resp.StatusCode))
	}

	if !json.Valid(data) {
		return nil, backoff.Permanent(fmt.Errorf("%w: invalid JSON from upstream", ErrUpstreamUnavailable))
	}
	return json.RawMessage(data), nil
}
