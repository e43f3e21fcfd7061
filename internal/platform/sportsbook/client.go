// Package sportsbook fetches decimal head-to-head prices from a bookmaker
// aggregation API.
package sportsbook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jakeharveyy/tipengine/internal/domain"
)

// Client is the REST client for the odds aggregation API.
type Client struct {
	baseURL    string
	apiKey     string
	sport      string
	httpClient *http.Client
}

// NewClient creates a new odds feed client.
//
// baseURL is the API root, e.g. "https://api.the-odds-api.com". sport is the
// feed's sport key, e.g. "rugbyleague_nrl".
func NewClient(baseURL, apiKey, sport string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		sport:   sport,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ListOdds returns every upcoming event in the sport with both head-to-head
// prices. Events no bookmaker has fully priced are dropped.
func (c *Client) ListOdds(ctx context.Context) ([]Event, error) {
	params := url.Values{}
	params.Set("apiKey", c.apiKey)
	params.Set("regions", "au")
	params.Set("markets", "h2h")
	params.Set("oddsFormat", "decimal")

	path := fmt.Sprintf("/v4/sports/%s/odds?%s", url.PathEscape(c.sport), params.Encode())

	body, err := c.doGet(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("sportsbook: list odds: %w", err)
	}

	var apiEvents []APIEvent
	if err := json.Unmarshal(body, &apiEvents); err != nil {
		return nil, fmt.Errorf("sportsbook: decode odds: %w", err)
	}

	events := make([]Event, 0, len(apiEvents))
	for i := range apiEvents {
		if ev, ok := apiEvents[i].ToEvent(); ok {
			events = append(events, ev)
		}
	}

	return events, nil
}

func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}

	return body, nil
}

// checkHTTPStatus maps non-2xx status codes to appropriate domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}
