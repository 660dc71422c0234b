// Package tmdb is a thin client for The Movie Database v3 API. Responses are
// returned as raw JSON; callers decode what they need.
package tmdb

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

	"go.uber.org/zap"

	"github.com/user/tmdb-ratelimit/internal/limiter"
)

const (
	DefaultBaseURL = "https://api.themoviedb.org/3"
	DefaultTimeout = 10 * time.Second
	DefaultMaxWait = 30 * time.Second
)

// ErrRateLimited is returned when the limiter did not admit a call in time.
var ErrRateLimited = errors.New("tmdb: rate limiter did not admit request")

// APIError is a non-2xx response from TMDb.
type APIError struct {
	StatusCode int
	Endpoint   string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tmdb: %s returned %d", e.Endpoint, e.StatusCode)
}

// Options configure a Client.
type Options struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger

	// Limiter gates every call when set. Leave nil when admission is done
	// upstream of the client, for example by the HTTP middleware.
	Limiter  limiter.RateLimiter
	Priority limiter.Priority
	MaxWait  time.Duration
}

// Client calls the TMDb API.
type Client struct {
	apiKey   string
	baseURL  string
	http     *http.Client
	logger   *zap.Logger
	limiter  limiter.RateLimiter
	priority limiter.Priority
	maxWait  time.Duration
}

// NewClient builds a Client, filling unset options with defaults.
func NewClient(opts Options) *Client {
	c := &Client{
		apiKey:   opts.APIKey,
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		http:     opts.HTTPClient,
		logger:   opts.Logger,
		limiter:  opts.Limiter,
		priority: opts.Priority,
		maxWait:  opts.MaxWait,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.http == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		c.http = &http.Client{Timeout: timeout}
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.priority == "" {
		c.priority = limiter.PriorityMedium
	}
	if c.maxWait <= 0 {
		c.maxWait = DefaultMaxWait
	}
	return c
}

// WithPriority returns a copy of c whose calls use priority p.
func (c *Client) WithPriority(p limiter.Priority) *Client {
	cp := *c
	cp.priority = p
	return &cp
}

// SearchMovies searches movies by title.
func (c *Client) SearchMovies(ctx context.Context, query string, page int) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("page", strconv.Itoa(pageOrFirst(page)))
	params.Set("include_adult", "false")
	return c.get(ctx, "search/movie", params)
}

// MovieDetails fetches a single movie.
func (c *Client) MovieDetails(ctx context.Context, movieID int) (json.RawMessage, error) {
	return c.get(ctx, fmt.Sprintf("movie/%d", movieID), nil)
}

// Recommendations fetches recommendations based on movieID.
func (c *Client) Recommendations(ctx context.Context, movieID int, page int) (json.RawMessage, error) {
	return c.get(ctx, fmt.Sprintf("movie/%d/recommendations", movieID), pageParams(page))
}

// Genres fetches the movie genre list.
func (c *Client) Genres(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "genre/movie/list", nil)
}

// List identifies one of the paged movie lists.
type List string

const (
	ListPopular    List = "popular"
	ListTopRated   List = "top_rated"
	ListNowPlaying List = "now_playing"
	ListUpcoming   List = "upcoming"
)

// Lists are all supported movie lists.
var Lists = []List{ListPopular, ListTopRated, ListNowPlaying, ListUpcoming}

// ParseList validates a list name, accepting dashes for underscores.
func ParseList(s string) (List, error) {
	s = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for _, l := range Lists {
		if string(l) == s {
			return l, nil
		}
	}
	return "", fmt.Errorf("unknown movie list %q", s)
}

// MovieList fetches one page of a movie list.
func (c *Client) MovieList(ctx context.Context, list List, page int) (json.RawMessage, error) {
	return c.get(ctx, "movie/"+string(list), pageParams(page))
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values) (json.RawMessage, error) {
	if c.limiter != nil && !c.limiter.WaitIfNeeded(ctx, c.priority, c.maxWait) {
		return nil, ErrRateLimited
	}

	body, err := c.do(ctx, endpoint, params)

	if c.limiter != nil {
		if IsUpstreamFailure(err) {
			c.limiter.RecordError(ErrorType(err))
		} else {
			c.limiter.RecordSuccess()
		}
	}
	return body, err
}

func (c *Client) do(ctx context.Context, endpoint string, params url.Values) (json.RawMessage, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.apiKey)

	u := c.baseURL + "/" + endpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("TMDb API request failed", zap.String("endpoint", endpoint), zap.Error(err))
		return nil, fmt.Errorf("tmdb %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", endpoint, err)
	}

	c.logger.Debug("TMDb API response",
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Endpoint: endpoint, Body: string(body)}
		c.logger.Error("TMDb API request failed", zap.String("endpoint", endpoint), zap.Error(apiErr))
		return nil, apiErr
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("tmdb %s: invalid JSON response", endpoint)
	}
	return json.RawMessage(body), nil
}

func pageOrFirst(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

func pageParams(page int) url.Values {
	params := url.Values{}
	params.Set("page", strconv.Itoa(pageOrFirst(page)))
	return params
}
