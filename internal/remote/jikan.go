// Package remote is the Jikan v4 REST client used as the catalog's source of truth.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"animesync/internal/logging"
	"animesync/internal/model"

	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public Jikan v4 endpoint.
const DefaultBaseURL = "https://api.jikan.moe/v4"

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	RPS        int
	MaxRetries int
	UserAgent  string

	// HTTPClient overrides the transport; Timeout is ignored when set.
	HTTPClient *http.Client
	Logger     logging.Logger
}

type Client struct {
	httpClient *http.Client
	userAgent  string
	baseURL    string
	limiter    *rate.Limiter
	maxRetries int
	log        logging.Logger

	// backoff returns the wait before retry attempt i (i >= 1).
	backoff func(i int) time.Duration
}

func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.RPS <= 0 {
		opts.RPS = 3
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "animesync/1.0"
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: opts.Timeout,
		}
	}

	return &Client{
		httpClient: httpClient,
		userAgent:  opts.UserAgent,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		limiter:    rate.NewLimiter(rate.Every(time.Second/time.Duration(opts.RPS)), 1),
		maxRetries: opts.MaxRetries,
		log:        opts.Logger.With("component", "jikan"),
		backoff: func(i int) time.Duration {
			// Backoff: 1s, 2s, 4s...
			return time.Duration(1<<uint(i-1)) * time.Second
		},
	}
}

// animeResponse matches anime/{id}
type animeResponse struct {
	Data *model.Anime `json:"data"`
}

// FetchTop returns one page of the top-ranked listing (top/anime?page=N).
func (c *Client) FetchTop(ctx context.Context, page int) (*model.AnimePage, error) {
	if page < 1 {
		page = 1
	}
	u := fmt.Sprintf("%s/top/anime?page=%s", c.baseURL, url.QueryEscape(strconv.Itoa(page)))

	var res model.AnimePage
	if err := c.get(ctx, u, &res); err != nil {
		return nil, err
	}
	for i := range res.Data {
		stripLocal(&res.Data[i])
	}
	c.log.Debug(ctx, "fetched top anime", "page", page, "count", len(res.Data))
	return &res, nil
}

// FetchAnime returns one title by MyAnimeList ID (anime/{id}).
func (c *Client) FetchAnime(ctx context.Context, id int) (*model.Anime, error) {
	if id <= 0 {
		return nil, fmt.Errorf("anime id %d: %w", id, model.ErrInvalidArgument)
	}
	u := fmt.Sprintf("%s/anime/%d", c.baseURL, id)

	var res animeResponse
	if err := c.get(ctx, u, &res); err != nil {
		return nil, err
	}
	if res.Data == nil {
		return nil, fmt.Errorf("anime %d: empty data: %w", id, model.ErrRemoteFormat)
	}
	stripLocal(res.Data)
	return res.Data, nil
}

// stripLocal clears fields the remote never owns.
func stripLocal(a *model.Anime) {
	a.Favorite = false
	a.LastUpdated = time.Time{}
}

func (c *Client) get(ctx context.Context, url string, target interface{}) error {
	var lastErr error
	for i := 0; i <= c.maxRetries; i++ {
		if i > 0 {
			select {
			case <-time.After(c.backoff(i)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		body, retry, err := c.do(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if retry {
				c.log.Warn(ctx, "request failed", "url", url, "attempt", i+1, "error", err)
				continue
			}
			return err
		}

		if err := json.Unmarshal(body, target); err != nil {
			return fmt.Errorf("decode %s: %v: %w", url, err, model.ErrRemoteFormat)
		}
		return nil
	}
	if c.maxRetries == 0 {
		return lastErr
	}
	return fmt.Errorf("after %d retries: %w", c.maxRetries, lastErr)
}

// do performs one GET and reports whether a failure is worth retrying.
func (c *Client) do(ctx context.Context, url string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("GET %s: %v: %w", url, err, model.ErrRemoteUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		retry := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, retry, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("read %s: %v: %w", url, err, model.ErrRemoteUnavailable)
	}
	return body, false, nil
}

// StatusError is returned for non-2xx responses. It matches
// model.ErrRemoteUnavailable, and model.ErrNotFound for 404s.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status code: %d", e.URL, e.StatusCode)
}

func (e *StatusError) Is(target error) bool {
	switch target {
	case model.ErrRemoteUnavailable:
		return true
	case model.ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}
