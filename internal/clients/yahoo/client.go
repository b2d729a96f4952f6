// Package yahoo provides a client for the Yahoo Finance chart and search APIs
package yahoo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/novus/internal/common"
	"github.com/bobmcallan/novus/internal/interfaces"
	"github.com/bobmcallan/novus/internal/models"
)

const (
	DefaultBaseURL   = "https://query1.finance.yahoo.com"
	DefaultTimeout   = 12 * time.Second
	DefaultRateLimit = 5 // requests per second
	DefaultUserAgent = "Mozilla/5.0 (compatible; novus/1.0)"
)

// hijackPrefix matches the anti-JSON-hijacking guard some relays prepend.
var hijackPrefix = regexp.MustCompile(`^\)\]\}',?\s*`)

// Client implements interfaces.QuoteSource
type Client struct {
	baseURL    string
	userAgent  string
	retries    int
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
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

// WithRetries sets how many times a 429 response is retried
func WithRetries(n int) ClientOption {
	return func(c *Client) {
		c.retries = n
	}
}

// NewClient creates a new Yahoo Finance client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:   DefaultBaseURL,
		userAgent: DefaultUserAgent,
		retries:   1,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
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
	return fmt.Sprintf("Yahoo API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// ErrNoData is returned when a chart response carries no usable closes.
var ErrNoData = errors.New("no data for symbol")

// get performs a rate-limited GET request and decodes the (possibly
// prefix-guarded) JSON body into result.
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var body []byte
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")

		c.logger.Debug().Str("url", c.baseURL+path).Int("attempt", attempt+1).Msg("Yahoo API request")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to execute request: %w", err)
		}
		body, err = io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt < c.retries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt+1) * 500 * time.Millisecond):
			}
			continue
		}

		if resp.StatusCode != http.StatusOK {
			return &APIError{
				StatusCode: resp.StatusCode,
				Message:    string(bytes.TrimSpace(body)),
				Endpoint:   path,
			}
		}
		break
	}

	body = hijackPrefix.ReplaceAll(bytes.TrimSpace(body), nil)
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// chartResponse mirrors v8/finance/chart. Closes are nullable.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string   `json:"symbol"`
				RegularMarketPrice *float64 `json:"regularMarketPrice"`
				ChartPreviousClose *float64 `json:"chartPreviousClose"`
				PreviousClose      *float64 `json:"previousClose"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (c *Client) chart(ctx context.Context, symbol, rangeKey, interval string) (*chartResponse, error) {
	params := url.Values{}
	params.Set("range", rangeKey)
	params.Set("interval", interval)

	var resp chartResponse
	if err := c.get(ctx, "/v8/finance/chart/"+url.PathEscape(symbol), params, &resp); err != nil {
		return nil, err
	}
	if resp.Chart.Error != nil {
		return nil, &APIError{StatusCode: http.StatusOK, Message: resp.Chart.Error.Description, Endpoint: "/v8/finance/chart/" + symbol}
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, symbol)
	}
	return &resp, nil
}

// GetSeries returns the ascending, de-duplicated close series. Null and
// non-finite closes are dropped.
func (c *Client) GetSeries(ctx context.Context, symbol, rangeKey, interval string) ([]models.PricePoint, error) {
	resp, err := c.chart(ctx, symbol, rangeKey, interval)
	if err != nil {
		return nil, err
	}

	result := resp.Chart.Result[0]
	var closes []*float64
	if len(result.Indicators.Quote) > 0 {
		closes = result.Indicators.Quote[0].Close
	}

	points := make([]models.PricePoint, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		v := *closes[i]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		points = append(points, models.PricePoint{Timestamp: ts * 1000, Price: v})
	}

	points = normalizeSeries(points)
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, symbol)
	}

	c.logger.Debug().Str("symbol", symbol).Str("range", rangeKey).Int("points", len(points)).Msg("Yahoo series fetched")
	return points, nil
}

// normalizeSeries sorts by timestamp and keeps the last point for any
// repeated timestamp.
func normalizeSeries(points []models.PricePoint) []models.PricePoint {
	sort.SliceStable(points, func(i, j int) bool { return points[i].Timestamp < points[j].Timestamp })
	out := points[:0]
	for _, p := range points {
		if n := len(out); n > 0 && out[n-1].Timestamp == p.Timestamp {
			out[n-1] = p
			continue
		}
		out = append(out, p)
	}
	return out
}

// GetQuote returns the latest price and previous close from a short chart.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	resp, err := c.chart(ctx, symbol, "5d", "1d")
	if err != nil {
		return nil, err
	}
	result := resp.Chart.Result[0]

	var closes []float64
	if len(result.Indicators.Quote) > 0 {
		for _, v := range result.Indicators.Quote[0].Close {
			if v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0) {
				closes = append(closes, *v)
			}
		}
	}

	q := &models.Quote{Symbol: symbol}
	switch {
	case result.Meta.RegularMarketPrice != nil:
		q.Price = *result.Meta.RegularMarketPrice
	case len(closes) > 0:
		q.Price = closes[len(closes)-1]
	default:
		return nil, fmt.Errorf("%w: %s", ErrNoData, symbol)
	}

	switch {
	case result.Meta.ChartPreviousClose != nil:
		q.PreviousClose = *result.Meta.ChartPreviousClose
	case result.Meta.PreviousClose != nil:
		q.PreviousClose = *result.Meta.PreviousClose
	case len(closes) > 1:
		q.PreviousClose = closes[len(closes)-2]
	}
	if result.Meta.Symbol != "" {
		q.Symbol = result.Meta.Symbol
	}
	return q, nil
}

type searchResponse struct {
	Quotes []struct {
		Symbol    string `json:"symbol"`
		QuoteType string `json:"quoteType"`
		Exchange  string `json:"exchange"`
		ShortName string `json:"shortname"`
		LongName  string `json:"longname"`
	} `json:"quotes"`
}

// Search returns instruments matching query. Entries without a symbol are
// dropped.
func (c *Client) Search(ctx context.Context, query string, count int) ([]models.SearchQuote, error) {
	if count <= 0 {
		count = 8
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("quotesCount", fmt.Sprintf("%d", count))
	params.Set("newsCount", "0")

	var resp searchResponse
	if err := c.get(ctx, "/v1/finance/search", params, &resp); err != nil {
		return nil, err
	}

	quotes := make([]models.SearchQuote, 0, len(resp.Quotes))
	for _, q := range resp.Quotes {
		if q.Symbol == "" {
			continue
		}
		name := q.ShortName
		if name == "" {
			name = q.LongName
		}
		quotes = append(quotes, models.SearchQuote{
			Symbol:    q.Symbol,
			QuoteType: q.QuoteType,
			Exchange:  q.Exchange,
			ShortName: name,
		})
	}
	return quotes, nil
}

// Ensure Client implements QuoteSource
var _ interfaces.QuoteSource = (*Client)(nil)
