// Package mfapi provides a client for the mfapi.in mutual-fund registry
package mfapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/novus/internal/common"
	"github.com/bobmcallan/novus/internal/interfaces"
	"github.com/bobmcallan/novus/internal/models"
)

// flexFloat64 handles JSON values that may be either a number or a string.
type flexFloat64 float64

func (f *flexFloat64) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = flexFloat64(num)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		num, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = flexFloat64(num)
		return nil
	}
	*f = 0
	return nil
}

// flexCode accepts a scheme code published as either a number or a string.
type flexCode string

func (c *flexCode) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = flexCode(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		*c = ""
		return nil
	}
	*c = flexCode(n.String())
	return nil
}

const (
	DefaultBaseURL   = "https://api.mfapi.in"
	DefaultTimeout   = 12 * time.Second
	DefaultRateLimit = 5
)

// Client implements interfaces.FundRegistry
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new mfapi.in client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:     common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents an API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mfapi error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().Str("path", path).Msg("mfapi request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Message: string(body), Endpoint: path}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

type schemeResponse struct {
	SchemeCode flexCode `json:"schemeCode"`
	SchemeName string   `json:"schemeName"`
}

// ListSchemes returns every scheme in the registry. Rows without a code or
// name are dropped.
func (c *Client) ListSchemes(ctx context.Context) ([]models.Scheme, error) {
	var rows []schemeResponse
	if err := c.get(ctx, "/mf", &rows); err != nil {
		return nil, err
	}

	schemes := make([]models.Scheme, 0, len(rows))
	for _, r := range rows {
		if r.SchemeCode == "" || strings.TrimSpace(r.SchemeName) == "" {
			continue
		}
		schemes = append(schemes, models.Scheme{Code: string(r.SchemeCode), Name: r.SchemeName})
	}
	return schemes, nil
}

type navResponse struct {
	Status string `json:"status"`
	Data   []struct {
		Date string      `json:"date"`
		NAV  flexFloat64 `json:"nav"`
	} `json:"data"`
}

// GetNavHistory returns the published NAV rows for a scheme, newest first.
func (c *Client) GetNavHistory(ctx context.Context, code string) ([]models.NavRow, error) {
	path := "/mf/" + code
	var resp navResponse
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, &APIError{StatusCode: http.StatusOK, Message: "no NAV data", Endpoint: path}
	}

	rows := make([]models.NavRow, 0, len(resp.Data))
	for _, d := range resp.Data {
		rows = append(rows, models.NavRow{Date: d.Date, NAV: float64(d.NAV)})
	}
	return rows, nil
}

// Ensure Client implements FundRegistry
var _ interfaces.FundRegistry = (*Client)(nil)
