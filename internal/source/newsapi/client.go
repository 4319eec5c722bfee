package newsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"newsdesk/internal/domain"
)

const (
	SourceID   = "newsapi"
	SourceName = "NewsAPI"

	statusOK = "ok"
)

// Config holds NewsAPI client configuration.
type Config struct {
	APIKey            string
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// Client fetches single pages of top headlines. It never retries; a failed
// category is picked up again by the next sync run.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	apiKey     string
	baseURL    string
	logger     *slog.Logger
}

// New creates a new NewsAPI client.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, domain.ErrMissingAPIKey
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: rate.NewLimiter(limit, 1),
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		logger:  logger.With("source", SourceID),
	}, nil
}

// ID returns the source identifier.
func (c *Client) ID() string {
	return SourceID
}

// Name returns human-readable name.
func (c *Client) Name() string {
	return SourceName
}

// FetchPage fetches one page of top headlines for a category. Every failure is
// reported as a *domain.ProviderFetchError.
func (c *Client) FetchPage(ctx context.Context, category domain.Category, country string, pageSize int) ([]domain.RawArticle, error) {
	resp, err := c.fetch(ctx, category, country, pageSize)
	if err != nil {
		return nil, &domain.ProviderFetchError{Category: category, Message: err.Error()}
	}

	c.logger.Debug("fetched page",
		"category", category,
		"articles", len(resp.Articles),
		"total_results", resp.TotalResults,
	)

	return transform(resp.Articles), nil
}

func (c *Client) fetch(ctx context.Context, category domain.Category, country string, pageSize int) (*APIResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for rate limiter: %w", err)
	}

	query := url.Values{}
	query.Set("apiKey", c.apiKey)
	query.Set("category", string(category))
	query.Set("country", country)
	query.Set("pageSize", strconv.Itoa(pageSize))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/top-headlines?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Newsdesk/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("news api error: %w", redact(err, c.apiKey))
	}
	defer resp.Body.Close()

	var apiResp APIResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&apiResp)

	if resp.StatusCode != http.StatusOK {
		if decodeErr == nil && apiResp.Message != "" {
			return nil, fmt.Errorf("news api error: %s", apiResp.Message)
		}
		return nil, fmt.Errorf("news api error: unexpected status %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode response: %w", decodeErr)
	}
	if apiResp.Status != statusOK {
		if apiResp.Message != "" {
			return nil, fmt.Errorf("news api returned error status: %s", apiResp.Message)
		}
		return nil, fmt.Errorf("news api returned error status %q", apiResp.Status)
	}

	return &apiResp, nil
}

// redact keeps the api key out of url.Error messages that end up in sync logs.
func redact(err error, apiKey string) error {
	msg := err.Error()
	if !strings.Contains(msg, apiKey) {
		return err
	}
	return fmt.Errorf("%s", strings.ReplaceAll(msg, apiKey, "REDACTED"))
}

func transform(articles []Article) []domain.RawArticle {
	raw := make([]domain.RawArticle, 0, len(articles))
	for _, a := range articles {
		raw = append(raw, domain.RawArticle{
			Title:       a.Title,
			Description: a.Description,
			Content:     a.Content,
			URL:         a.URL,
			URLToImage:  a.URLToImage,
			SourceName:  a.Source.Name,
			Author:      a.Author,
			PublishedAt: a.PublishedAt,
		})
	}
	return raw
}
