package youtube

import (
	"testing"

	"github.com/amityadav/clipping/internal/store"
	"go.uber.org/zap"
	yt "google.golang.org/api/youtube/v3"
)

func TestVideoToArticle(t *testing.T) {
	item := &yt.SearchResult{
		Id: &yt.ResourceId{VideoId: "abc123"},
		Snippet: &yt.SearchResultSnippet{
			Title:        "Acme na TV",
			Description:  "Entrevista",
			ChannelTitle: "Canal Economia",
			ChannelId:    "UC1",
			PublishedAt:  "2024-05-01T12:00:00Z",
			Thumbnails: &yt.ThumbnailDetails{
				Default: &yt.Thumbnail{Url: "https://i.ytimg.com/default.jpg"},
				High:    &yt.Thumbnail{Url: "https://i.ytimg.com/high.jpg"},
			},
		},
	}

	a, ok := videoToArticle(item, store.ClassYouTube)
	if !ok {
		t.Fatal("expected article")
	}
	if a.URL != "https://www.youtube.com/watch?v=abc123" {
		t.Errorf("url = %q", a.URL)
	}
	if a.Source.Name != "YouTube - Canal Economia" {
		t.Errorf("source = %q", a.Source.Name)
	}
	if a.ImageURL != "https://i.ytimg.com/high.jpg" {
		t.Errorf("image = %q, want the best available thumbnail", a.ImageURL)
	}
	if a.PublishedAt.IsZero() || a.SourceType != store.ClassYouTube {
		t.Errorf("article = %+v", a)
	}
}

func TestVideoToArticleSkipsChannelsAndPlaylists(t *testing.T) {
	item := &yt.SearchResult{
		Id:      &yt.ResourceId{ChannelId: "UC1"},
		Snippet: &yt.SearchResultSnippet{Title: "canal"},
	}
	if _, ok := videoToArticle(item, store.ClassYouTube); ok {
		t.Error("non-video result should be skipped")
	}
}

func TestClientClasses(t *testing.T) {
	if NewSearchClient("", zap.NewNop()).Class() != store.ClassYouTube {
		t.Error("search client class")
	}
	if NewChannelClient("", zap.NewNop()).Class() != store.ClassYouTubeChannels {
		t.Error("channel client class")
	}
}
