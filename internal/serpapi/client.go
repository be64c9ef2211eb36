package serpapi

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/amityadav/clipping/internal/search"
	"github.com/amityadav/clipping/internal/store"
	g "github.com/serpapi/google-search-results-golang"
	"go.uber.org/zap"
)

const engine = "google_news"

// Client queries the Google News aggregator through SerpApi
type Client struct {
	log *zap.Logger
}

var _ search.Source = (*Client)(nil)

func NewClient(log *zap.Logger) *Client {
	return &Client{log: log.Named("serpapi")}
}

func (c *Client) Name() string { return "gnews" }

func (c *Client) Class() store.SourceClass { return store.ClassGNews }

func (c *Client) NeedsKey() bool { return true }

// Search performs a Google News search and maps news_results to articles.
func (c *Client) Search(ctx context.Context, q search.Query) ([]store.Article, error) {
	if q.APIKey == "" {
		return nil, fmt.Errorf("SerpApi API key is not set")
	}

	parameter := map[string]string{
		"engine": engine,
		"q":      q.Keyword,
		"gl":     "br",
		"hl":     "pt-br",
	}
	if q.International() {
		parameter["gl"] = "us"
		parameter["hl"] = "en"
	}

	srch := g.NewGoogleSearch(parameter, q.APIKey)
	srch.Engine = engine

	// The SerpApi client has no context support; run it aside so
	// cancellation still returns promptly.
	type result struct {
		data map[string]interface{}
		err  error
	}
	done := make(chan result, 1)
	go func() {
		data, err := srch.GetJSON()
		done <- result{data: data, err: err}
	}()

	var res result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-done:
	}
	if res.err != nil {
		return nil, fmt.Errorf("serpapi search failed: %w", res.err)
	}
	if errMsg, ok := res.data["error"].(string); ok && errMsg != "" {
		return nil, fmt.Errorf("serpapi search failed: %s", errMsg)
	}

	articles := parseNewsResults(res.data, q.MaxResults)
	c.log.Debug("search finished", zap.String("keyword", q.Keyword), zap.Int("results", len(articles)))
	return articles, nil
}

// parseNewsResults flattens news_results, including clustered stories.
func parseNewsResults(results map[string]interface{}, max int) []store.Article {
	if errMsg, ok := results["error"].(string); ok && errMsg != "" {
		return nil
	}
	items, ok := results["news_results"].([]interface{})
	if !ok {
		return nil
	}

	var articles []store.Article
	add := func(res map[string]interface{}) {
		if max > 0 && len(articles) >= max {
			return
		}
		title, _ := res["title"].(string)
		link, _ := res["link"].(string)
		if title == "" || link == "" {
			return
		}
		snippet, _ := res["snippet"].(string)
		thumb, _ := res["thumbnail"].(string)
		a := store.Article{
			Title:       title,
			Description: snippet,
			URL:         link,
			ImageURL:    thumb,
			SourceType:  store.ClassGNews,
			PublishedAt: parseDate(res),
		}
		switch src := res["source"].(type) {
		case map[string]interface{}:
			a.Source.Name, _ = src["name"].(string)
			if authors, ok := src["authors"].([]interface{}); ok && len(authors) > 0 {
				a.Author, _ = authors[0].(string)
			}
		case string:
			a.Source.Name = src
		}
		articles = append(articles, a)
	}

	for _, item := range items {
		res, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		if stories, ok := res["stories"].([]interface{}); ok {
			for _, s := range stories {
				if story, ok := s.(map[string]interface{}); ok {
					add(story)
				}
			}
			continue
		}
		add(res)
	}
	return articles
}

func parseDate(res map[string]interface{}) time.Time {
	if iso, ok := res["iso_date"].(string); ok {
		if t, err := time.Parse(time.RFC3339, iso); err == nil {
			return t.UTC()
		}
	}
	if date, ok := res["date"].(string); ok {
		if t, err := time.Parse("01/02/2006, 03:04 PM, -0700 MST", date); err == nil {
			return t.UTC()
		}
	}
	if ts, ok := res["timestamp"].(float64); ok {
		return time.Unix(int64(ts), 0).UTC()
	}
	if ts, ok := res["timestamp"].(string); ok {
		if n, err := strconv.ParseInt(ts, 10, 64); err == nil {
			return time.Unix(n, 0).UTC()
		}
	}
	return time.Time{}
}
