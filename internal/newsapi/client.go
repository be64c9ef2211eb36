package newsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/amityadav/clipping/internal/search"
	"github.com/amityadav/clipping/internal/store"
	"go.uber.org/zap"
)

const defaultBaseURL = "https://newsapi.org/v2"

// Client is a NewsAPI.org client
type Client struct {
	baseURL string
	client  *http.Client
	log     *zap.Logger
}

var _ search.Source = (*Client)(nil)

// NewClient creates a new NewsAPI client. An empty baseURL selects the
// public endpoint.
func NewClient(baseURL string, log *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     log.Named("newsapi"),
	}
}

// Article is a single item of the articles array
type Article struct {
	Source struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"source"`
	Author      string `json:"author"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	URLToImage  string `json:"urlToImage"`
	PublishedAt string `json:"publishedAt"`
}

// Response is the envelope of both endpoints
type Response struct {
	Status       string    `json:"status"`
	TotalResults int       `json:"totalResults"`
	Articles     []Article `json:"articles"`
	Code         string    `json:"code,omitempty"`
	Message      string    `json:"message,omitempty"`
}

func (c *Client) Name() string { return "newsapi" }

func (c *Client) Class() store.SourceClass { return store.ClassNewsAPI }

func (c *Client) NeedsKey() bool { return true }

// Search uses full-text search for international scope and localized top
// headlines otherwise.
func (c *Client) Search(ctx context.Context, q search.Query) ([]store.Article, error) {
	max := q.MaxResults
	if max <= 0 || max > 100 {
		max = 20
	}

	params := url.Values{}
	params.Set("q", q.Keyword)
	params.Set("pageSize", strconv.Itoa(max))

	endpoint := c.baseURL + "/top-headlines"
	if q.International() {
		endpoint = c.baseURL + "/everything"
		params.Set("sortBy", "publishedAt")
		params.Set("searchIn", "title,description,content")
	} else {
		params.Set("country", "br")
	}

	resp, err := c.get(ctx, endpoint+"?"+params.Encode(), q.APIKey)
	if err != nil {
		return nil, err
	}

	articles := make([]store.Article, 0, len(resp.Articles))
	for _, a := range resp.Articles {
		if a.URL == "" || a.Title == "[Removed]" {
			continue
		}
		articles = append(articles, store.Article{
			Title:       a.Title,
			Description: a.Description,
			URL:         a.URL,
			Source:      store.Source{Name: a.Source.Name},
			Author:      a.Author,
			PublishedAt: parseTime(a.PublishedAt),
			ImageURL:    a.URLToImage,
			SourceType:  store.ClassNewsAPI,
		})
	}
	c.log.Debug("search finished",
		zap.String("keyword", q.Keyword),
		zap.Bool("international", q.International()),
		zap.Int("results", len(articles)))
	return articles, nil
}

func (c *Client) get(ctx context.Context, rawURL, apiKey string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Api-Key", apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("api error: %d %s", resp.StatusCode, string(bodyBytes))
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if out.Status == "error" {
		return nil, fmt.Errorf("api error: %s %s", out.Code, out.Message)
	}
	return &out, nil
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseTime(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
