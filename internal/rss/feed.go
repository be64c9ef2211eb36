package rss

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/amityadav/clipping/internal/scraper"
	"github.com/amityadav/clipping/internal/search"
	"github.com/amityadav/clipping/internal/store"
	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"
)

// Reader pulls the configured feeds and keeps items mentioning the keyword.
type Reader struct {
	client *http.Client
	log    *zap.Logger
}

var _ search.Source = (*Reader)(nil)

func NewReader(log *zap.Logger) *Reader {
	return &Reader{
		client: &http.Client{Timeout: 30 * time.Second},
		log:    log.Named("rss"),
	}
}

func (r *Reader) Name() string { return "rss" }

func (r *Reader) Class() store.SourceClass { return store.ClassRSS }

func (r *Reader) NeedsKey() bool { return false }

// Search reads every feed in q.Endpoints. A feed that cannot be fetched or
// parsed is skipped; the call fails only when every feed failed.
func (r *Reader) Search(ctx context.Context, q search.Query) ([]store.Article, error) {
	if len(q.Endpoints) == 0 {
		return nil, nil
	}
	var (
		out  []store.Article
		errs []error
	)
	for _, feedURL := range q.Endpoints {
		arts, err := r.readFeed(ctx, feedURL, q.Original)
		if err != nil {
			errs = append(errs, fmt.Errorf("feed %s: %w", feedURL, err))
			r.log.Warn("feed failed", zap.String("feed", feedURL), zap.Error(err))
			continue
		}
		out = append(out, arts...)
		if q.MaxResults > 0 && len(out) >= q.MaxResults {
			out = out[:q.MaxResults]
			break
		}
	}
	if len(errs) == len(q.Endpoints) {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

func (r *Reader) readFeed(ctx context.Context, feedURL, keyword string) ([]store.Article, error) {
	fp := gofeed.NewParser()
	fp.Client = r.client
	feed, err := fp.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	var out []store.Article
	for _, item := range feed.Items {
		if a, ok := itemToArticle(item, feed.Title, feedURL, keyword); ok {
			out = append(out, a)
		}
	}
	r.log.Debug("feed read",
		zap.String("feed", feedURL),
		zap.Int("items", len(feed.Items)),
		zap.Int("kept", len(out)))
	return out, nil
}

func itemToArticle(item *gofeed.Item, feedTitle, feedURL, keyword string) (store.Article, bool) {
	if item == nil || item.Link == "" {
		return store.Article{}, false
	}
	raw := item.Content
	if raw == "" {
		raw = item.Description
	}
	title := scraper.PlainText(item.Title)
	body := scraper.PlainText(raw)
	if !search.MatchesKeyword(keyword, title, body) {
		return store.Article{}, false
	}

	a := store.Article{
		Title:       title,
		Description: search.Truncate(body, search.DescriptionLimit),
		URL:         strings.TrimSpace(item.Link),
		Source:      store.Source{Name: feedTitle, URL: feedURL},
		PublishedAt: publishedAt(item),
		ImageURL:    imageOf(item, raw),
		SourceType:  store.ClassRSS,
	}
	if item.Author != nil {
		a.Author = item.Author.Name
	}
	return a, true
}

func publishedAt(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC()
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed.UTC()
	}
	return time.Time{}
}

func imageOf(item *gofeed.Item, raw string) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	for _, enc := range item.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") {
			return enc.URL
		}
	}
	return scraper.FirstImage(raw)
}
