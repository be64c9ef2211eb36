package youtube

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amityadav/clipping/internal/search"
	"github.com/amityadav/clipping/internal/store"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"
)

const watchURL = "https://www.youtube.com/watch?v="

// Client searches videos through the YouTube Data API. The same client
// serves plain keyword search and the channel-restricted variant.
type Client struct {
	class    store.SourceClass
	endpoint string
	log      *zap.Logger
}

var _ search.Source = (*Client)(nil)

// NewSearchClient searches all of YouTube for the keyword.
func NewSearchClient(endpoint string, log *zap.Logger) *Client {
	return &Client{class: store.ClassYouTube, endpoint: endpoint, log: log.Named("youtube")}
}

// NewChannelClient searches only inside the configured channels.
func NewChannelClient(endpoint string, log *zap.Logger) *Client {
	return &Client{class: store.ClassYouTubeChannels, endpoint: endpoint, log: log.Named("youtube_channels")}
}

func (c *Client) Name() string { return string(c.class) }

func (c *Client) Class() store.SourceClass { return c.class }

func (c *Client) NeedsKey() bool { return true }

func (c *Client) service(ctx context.Context, apiKey string) (*yt.Service, error) {
	opts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}
	svc, err := yt.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create youtube service: %w", err)
	}
	return svc, nil
}

func (c *Client) Search(ctx context.Context, q search.Query) ([]store.Article, error) {
	svc, err := c.service(ctx, q.APIKey)
	if err != nil {
		return nil, err
	}

	if c.class == store.ClassYouTube {
		return c.searchOnce(ctx, svc, q, "")
	}

	if len(q.Endpoints) == 0 {
		return nil, nil
	}
	var (
		out    []store.Article
		failed int
		errs   []error
	)
	for _, channelID := range q.Endpoints {
		arts, err := c.searchOnce(ctx, svc, q, channelID)
		if err != nil {
			failed++
			errs = append(errs, fmt.Errorf("channel %s: %w", channelID, err))
			c.log.Warn("channel search failed", zap.String("channel", channelID), zap.Error(err))
			continue
		}
		out = append(out, arts...)
	}
	if failed == len(q.Endpoints) {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

func (c *Client) searchOnce(ctx context.Context, svc *yt.Service, q search.Query, channelID string) ([]store.Article, error) {
	max := q.MaxResults
	if max <= 0 || max > 50 {
		max = 20
	}
	call := svc.Search.List([]string{"snippet"}).
		Q(q.Keyword).
		Type("video").
		Order("date").
		MaxResults(int64(max))
	if !q.International() {
		call = call.RegionCode("BR").RelevanceLanguage("pt")
	}
	if channelID != "" {
		call = call.ChannelId(channelID)
	}

	resp, err := call.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("youtube search failed: %w", err)
	}

	articles := make([]store.Article, 0, len(resp.Items))
	for _, item := range resp.Items {
		if a, ok := videoToArticle(item, c.class); ok {
			articles = append(articles, a)
		}
	}
	c.log.Debug("search finished",
		zap.String("keyword", q.Keyword),
		zap.String("channel", channelID),
		zap.Int("results", len(articles)))
	return articles, nil
}

func videoToArticle(item *yt.SearchResult, class store.SourceClass) (store.Article, bool) {
	if item == nil || item.Id == nil || item.Id.VideoId == "" || item.Snippet == nil {
		return store.Article{}, false
	}
	sn := item.Snippet
	published, _ := time.Parse(time.RFC3339, sn.PublishedAt)
	return store.Article{
		Title:       sn.Title,
		Description: sn.Description,
		URL:         watchURL + item.Id.VideoId,
		Source: store.Source{
			Name: "YouTube - " + sn.ChannelTitle,
			URL:  "https://www.youtube.com/channel/" + sn.ChannelId,
		},
		Author:      sn.ChannelTitle,
		PublishedAt: published.UTC(),
		ImageURL:    bestThumbnail(sn.Thumbnails),
		SourceType:  class,
	}, true
}

func bestThumbnail(t *yt.ThumbnailDetails) string {
	if t == nil {
		return ""
	}
	for _, th := range []*yt.Thumbnail{t.Maxres, t.Standard, t.High, t.Medium, t.Default} {
		if th != nil && th.Url != "" {
			return th.Url
		}
	}
	return ""
}
