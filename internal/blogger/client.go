package blogger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amityadav/clipping/internal/scraper"
	"github.com/amityadav/clipping/internal/search"
	"github.com/amityadav/clipping/internal/store"
	"go.uber.org/zap"
	bg "google.golang.org/api/blogger/v3"
	"google.golang.org/api/option"
)

// Client searches posts of configured Blogger blogs.
type Client struct {
	endpoint string
	log      *zap.Logger
}

var _ search.Source = (*Client)(nil)

func NewClient(endpoint string, log *zap.Logger) *Client {
	return &Client{endpoint: endpoint, log: log.Named("blogger")}
}

func (c *Client) Name() string { return "blogger" }

func (c *Client) Class() store.SourceClass { return store.ClassBlogger }

func (c *Client) NeedsKey() bool { return true }

// Search resolves every configured blog URL and searches its posts. A blog
// that fails is skipped; the call fails only when every blog failed.
func (c *Client) Search(ctx context.Context, q search.Query) ([]store.Article, error) {
	if len(q.Endpoints) == 0 {
		return nil, nil
	}
	opts := []option.ClientOption{option.WithAPIKey(q.APIKey)}
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}
	svc, err := bg.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create blogger service: %w", err)
	}

	var (
		out  []store.Article
		errs []error
	)
	for _, blogURL := range q.Endpoints {
		arts, err := c.searchBlog(ctx, svc, blogURL, q)
		if err != nil {
			errs = append(errs, fmt.Errorf("blog %s: %w", blogURL, err))
			c.log.Warn("blog search failed", zap.String("blog", blogURL), zap.Error(err))
			continue
		}
		out = append(out, arts...)
	}
	if len(errs) == len(q.Endpoints) {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

func (c *Client) searchBlog(ctx context.Context, svc *bg.Service, blogURL string, q search.Query) ([]store.Article, error) {
	blog, err := svc.Blogs.GetByUrl(blogURL).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve blog: %w", err)
	}
	posts, err := svc.Posts.Search(blog.Id, q.Original).
		FetchBodies(true).
		OrderBy("published").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to search posts: %w", err)
	}

	var out []store.Article
	for _, p := range posts.Items {
		if q.MaxResults > 0 && len(out) >= q.MaxResults {
			break
		}
		if a, ok := postToArticle(p, blog.Name, blogURL, q.Original); ok {
			out = append(out, a)
		}
	}
	c.log.Debug("blog searched",
		zap.String("blog", blogURL),
		zap.Int("posts", len(posts.Items)),
		zap.Int("kept", len(out)))
	return out, nil
}

// postToArticle keeps a post only when the original keyword appears in its
// title or markup-free body.
func postToArticle(p *bg.Post, blogName, blogURL, keyword string) (store.Article, bool) {
	if p == nil || p.Url == "" {
		return store.Article{}, false
	}
	body := scraper.PlainText(p.Content)
	if !search.MatchesKeyword(keyword, p.Title, body) {
		return store.Article{}, false
	}
	published, _ := time.Parse(time.RFC3339, p.Published)
	a := store.Article{
		Title:       p.Title,
		Description: search.Truncate(body, search.DescriptionLimit),
		URL:         p.Url,
		Source:      store.Source{Name: blogName, URL: blogURL},
		PublishedAt: published.UTC(),
		ImageURL:    scraper.FirstImage(p.Content),
		SourceType:  store.ClassBlogger,
	}
	if p.Author != nil {
		a.Author = p.Author.DisplayName
	}
	return a, true
}
