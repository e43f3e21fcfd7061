// Package nrl fetches the season draw: fixtures, kickoff times, venues,
// scores, and the head-to-head prices embedded alongside them.
package nrl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jakeharveyy/tipengine/internal/domain"
)

// Client is the REST client for the draw data feed behind nrl.com's fixture
// pages.
type Client struct {
	baseURL     string
	competition int
	httpClient  *http.Client
}

// NewClient creates a new draw feed client.
//
// baseURL is the site root, e.g. "https://www.nrl.com". competition selects
// the league; 111 is the NRL premiership.
func NewClient(baseURL string, competition int) *Client {
	return &Client{
		baseURL:     baseURL,
		competition: competition,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// FetchRound returns the parsed fixtures for one round of a season. Entries
// that are not matches, or that are missing team names, are dropped.
func (c *Client) FetchRound(ctx context.Context, round, season int) ([]Fixture, error) {
	params := url.Values{}
	params.Set("competition", strconv.Itoa(c.competition))
	params.Set("round", strconv.Itoa(round))
	params.Set("season", strconv.Itoa(season))

	path := "/draw/data?" + params.Encode()

	body, err := c.doGet(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("nrl: fetch round %d/%d: %w", round, season, err)
	}

	var draw drawResponse
	if err := json.Unmarshal(body, &draw); err != nil {
		return nil, fmt.Errorf("nrl: decode round %d/%d: %w", round, season, err)
	}

	fixtures := make([]Fixture, 0, len(draw.Fixtures))
	for i := range draw.Fixtures {
		if f, ok := draw.Fixtures[i].ToFixture(season, round); ok {
			fixtures = append(fixtures, f)
		}
	}

	return fixtures, nil
}

func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64)")

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
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}
