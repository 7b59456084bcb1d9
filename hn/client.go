// Package hn provides a client for the public Hacker News Firebase API:
// item lookup, paged top-story listings, bounded comment-tree traversal,
// and readable-text extraction for linked articles.
package hn

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"

	"github.com/c360studio/vector/metrics"
)

// DefaultBaseURL is the public Hacker News API endpoint.
const DefaultBaseURL = "https://hacker-news.firebaseio.com/v0"

// maxItemResponseSize limits item API response bodies. Items are small JSON
// objects; anything larger indicates a broken endpoint.
const maxItemResponseSize = 1 * 1024 * 1024 // 1MB

// Client fetches stories, comments, and linked articles. A zero-value Client
// is not usable; construct one with NewClient.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	converter  *md.Converter
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the Hacker News API base URL.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a Hacker News client with a 10 second request timeout.
func NewClient(opts ...Option) *Client {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())

	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger:    slog.Default(),
		converter: converter,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// FetchItem retrieves a single item by id. Callers treat an error as "item
// absent" and filter the result out rather than aborting the flow.
func (c *Client) FetchItem(ctx context.Context, id int) (*Item, error) {
	url := fmt.Sprintf("%s/item/%d.json", c.baseURL, id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Item fetch failed", "id", id, "error", err)
		metrics.HNFetches.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("fetch item %d: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("Item fetch failed", "id", id, "status", resp.StatusCode)
		metrics.HNFetches.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("fetch item %d: HTTP %d", id, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxItemResponseSize))
	if err != nil {
		metrics.HNFetches.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("read item %d: %w", id, err)
	}

	// The API returns literal null for unknown ids.
	var item *Item
	if err := json.Unmarshal(body, &item); err != nil {
		metrics.HNFetches.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("parse item %d: %w", id, err)
	}
	if item == nil {
		metrics.HNFetches.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("item %d not found", id)
	}

	metrics.HNFetches.WithLabelValues("ok").Inc()
	return item, nil
}

// FetchTopStories retrieves one page of the globally ranked top-story list.
// Pages are 1-based. Item fetches for the page run concurrently; ids whose
// fetch fails are dropped, and rank order is preserved for the rest.
func (c *Client) FetchTopStories(ctx context.Context, page, limit int) ([]*Item, error) {
	if page < 1 {
		page = 1
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/topstories.json", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch top stories: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch top stories: HTTP %d", resp.StatusCode)
	}

	var allIDs []int
	if err := json.NewDecoder(resp.Body).Decode(&allIDs); err != nil {
		return nil, fmt.Errorf("parse top stories: %w", err)
	}

	start := (page - 1) * limit
	if start >= len(allIDs) {
		return nil, nil
	}
	end := start + limit
	if end > len(allIDs) {
		end = len(allIDs)
	}
	ids := allIDs[start:end]

	results := make([]*Item, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i, id int) {
			defer wg.Done()
			item, err := c.FetchItem(ctx, id)
			if err != nil {
				return
			}
			results[i] = item
		}(i, id)
	}
	wg.Wait()

	stories := make([]*Item, 0, len(results))
	for _, item := range results {
		if item != nil {
			stories = append(stories, item)
		}
	}
	return stories, nil
}
