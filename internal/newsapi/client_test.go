package newsapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/amityadav/clipping/internal/search"
	"github.com/amityadav/clipping/internal/store"
	"go.uber.org/zap"
)

const body = `{
  "status": "ok",
  "totalResults": 2,
  "articles": [
    {"source": {"id": null, "name": "Folha"}, "author": "Ana", "title": "Acme cresce",
     "description": "desc", "url": "https://folha.uol.com.br/a", "urlToImage": "https://img/a.jpg",
     "publishedAt": "2024-05-01T10:00:00Z"},
    {"source": {"name": "x"}, "title": "[Removed]", "url": "https://removed.com"}
  ]
}`

func TestSearchPicksEndpointByScope(t *testing.T) {
	var gotPath, gotKey, gotCountry string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-Api-Key")
		gotCountry = r.URL.Query().Get("country")
		w.Write([]byte(body))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, zap.NewNop())

	arts, err := c.Search(context.Background(), search.Query{Keyword: "acme", Scope: store.ScopeBrazil, APIKey: "k1"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if gotPath != "/top-headlines" || gotCountry != "br" || gotKey != "k1" {
		t.Errorf("domestic request path=%s country=%s key=%s", gotPath, gotCountry, gotKey)
	}
	if len(arts) != 1 {
		t.Fatalf("got %d articles, want 1 (removed item dropped)", len(arts))
	}
	a := arts[0]
	if a.Source.Name != "Folha" || a.Author != "Ana" || a.ImageURL != "https://img/a.jpg" || a.PublishedAt.IsZero() {
		t.Errorf("article mapped wrong: %+v", a)
	}

	if _, err := c.Search(context.Background(), search.Query{Keyword: "acme", Scope: store.ScopeInternational, APIKey: "k1"}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if gotPath != "/everything" || gotCountry != "" {
		t.Errorf("international request path=%s country=%s", gotPath, gotCountry)
	}
}

func TestSearchReportsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"status":"error","code":"apiKeyInvalid","message":"bad key"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, zap.NewNop()).Search(context.Background(), search.Query{Keyword: "acme", APIKey: "bad"})
	if err == nil {
		t.Fatal("expected error")
	}
}
