package rss

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/amityadav/clipping/internal/search"
	"go.uber.org/zap"
)

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Jornal Local</title>
  <item>
    <title>Acme inaugura centro</title>
    <link>https://jornal.example.com/acme-centro</link>
    <description><![CDATA[<p>A empresa inaugurou...</p><img src="https://jornal.example.com/foto.jpg">]]></description>
    <pubDate>Wed, 01 May 2024 10:00:00 -0300</pubDate>
  </item>
  <item>
    <title>Trânsito na capital</title>
    <link>https://jornal.example.com/transito</link>
    <description>Nenhuma menção relevante.</description>
  </item>
  <item>
    <title>Mercado</title>
    <link>https://jornal.example.com/mercado</link>
    <description><![CDATA[<p>Analistas comentam a <b>ACME</b> e concorrentes.</p>]]></description>
  </item>
</channel>
</rss>`

func newFeedServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/feed.xml":
			w.Header().Set("Content-Type", "application/rss+xml")
			w.Write([]byte(feedXML))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSearchFiltersByOriginalKeyword(t *testing.T) {
	srv := newFeedServer(t)
	r := NewReader(zap.NewNop())

	arts, err := r.Search(context.Background(), search.Query{
		Keyword:   "acme São Paulo",
		Original:  "acme",
		Endpoints: []string{srv.URL + "/feed.xml"},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(arts) != 2 {
		t.Fatalf("got %d articles, want 2 matching items", len(arts))
	}
	if arts[0].Source.Name != "Jornal Local" || arts[0].ImageURL != "https://jornal.example.com/foto.jpg" {
		t.Errorf("first article = %+v", arts[0])
	}
	if arts[0].PublishedAt.IsZero() {
		t.Error("pubDate not parsed")
	}
	for _, a := range arts {
		if strings.Contains(a.Description, "<") {
			t.Errorf("description keeps markup: %q", a.Description)
		}
	}
}

func TestSearchSkipsFailingFeed(t *testing.T) {
	srv := newFeedServer(t)
	r := NewReader(zap.NewNop())

	arts, err := r.Search(context.Background(), search.Query{
		Original:  "acme",
		Endpoints: []string{srv.URL + "/broken", srv.URL + "/feed.xml"},
	})
	if err != nil {
		t.Fatalf("one bad feed must not fail the source: %v", err)
	}
	if len(arts) != 2 {
		t.Errorf("got %d articles", len(arts))
	}

	if _, err := r.Search(context.Background(), search.Query{
		Original:  "acme",
		Endpoints: []string{srv.URL + "/broken"},
	}); err == nil {
		t.Error("expected error when every feed fails")
	}
}
