package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestArticleIDStableAndDistinct(t *testing.T) {
	a := ArticleID("https://g1.globo.com/economia/noticia/1.html")
	b := ArticleID("https://g1.globo.com/economia/noticia/1.html")
	c := ArticleID("https://g1.globo.com/economia/noticia/2.html")

	if a != b {
		t.Fatalf("same url produced different ids: %q vs %q", a, b)
	}
	if a == c {
		t.Fatalf("different urls produced the same id %q", a)
	}
	for _, r := range a {
		if r == '/' || r == '+' || r == '=' {
			t.Fatalf("id %q contains %q, not valid as a document id", a, r)
		}
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	art := Article{
		ID:        ArticleID("https://example.com/a"),
		URL:       "https://example.com/a",
		Title:     "Acme abre fábrica",
		Sentiment: &Sentiment{Score: 0.4, Magnitude: 1.2},
		Entities:  []string{"Acme"},
	}

	for i := 0; i < 2; i++ {
		n, err := s.UpsertArticles(ctx, "acme", []Article{art})
		if err != nil {
			t.Fatalf("upsert %d: %v", i, err)
		}
		if n != 1 {
			t.Fatalf("upsert %d wrote %d articles, want 1", i, n)
		}
	}

	got, err := s.ListArticles(ctx, "acme")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d articles after repeated upsert, want 1", len(got))
	}
	if got[0].Title != art.Title || got[0].Sentiment.Score != 0.4 {
		t.Errorf("stored article = %+v, want fields of latest write", got[0])
	}
}

func TestExistingArticleIDs(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	known := Article{ID: ArticleID("https://example.com/known"), URL: "https://example.com/known"}
	if _, err := s.UpsertArticles(ctx, "acme", []Article{known}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	found, err := s.ExistingArticleIDs(ctx, "acme", []string{known.ID, ArticleID("https://example.com/new")})
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !found[known.ID] || len(found) != 1 {
		t.Errorf("found = %v, want only %s", found, known.ID)
	}

	other, err := s.ExistingArticleIDs(ctx, "other", []string{known.ID})
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("articles leaked across tenants: %v", other)
	}
}

func TestFixLockMutualExclusion(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		acquired int
		held     int
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.AcquireFixLock(ctx, "worker", now)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				acquired++
			case errors.Is(err, ErrLockHeld):
				held++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if acquired != 1 || held != 1 {
		t.Fatalf("acquired=%d held=%d, want exactly one of each", acquired, held)
	}

	if err := s.ReleaseFixLock(ctx, now.Add(time.Minute)); err != nil {
		t.Fatalf("release: %v", err)
	}
	lock, err := s.GetFixLock(ctx)
	if err != nil {
		t.Fatalf("get lock: %v", err)
	}
	if lock.Running {
		t.Errorf("lock still running after release")
	}
	if _, err := s.AcquireFixLock(ctx, "worker", now); err != nil {
		t.Errorf("re-acquire after release: %v", err)
	}
}

func TestMarkSourceRunKeepsOtherFields(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.SaveGlobalSettings(ctx, &GlobalSettings{RSSFeeds: "https://feed"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	if err := s.MarkSourceRun(ctx, ClassRSS, at); err != nil {
		t.Fatalf("mark: %v", err)
	}

	gs, err := s.GetGlobalSettings(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if gs.RSSFeeds != "https://feed" {
		t.Errorf("rssFeeds = %q, lost on lastRun write", gs.RSSFeeds)
	}
	if last, ok := gs.LastRunOf(ClassRSS); !ok || !last.Equal(at) {
		t.Errorf("lastRun[rss] = %v (%v), want %v", last, ok, at)
	}
	if _, ok := gs.LastRunOf(ClassYouTube); ok {
		t.Errorf("lastRun[youtube] set without a run")
	}
}

func TestMissingGlobalSettings(t *testing.T) {
	_, err := NewMemoryStore().GetGlobalSettings(context.Background())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestChunkStrings(t *testing.T) {
	ids := make([]string, 65)
	chunks := chunkStrings(ids, 30)
	if len(chunks) != 3 || len(chunks[0]) != 30 || len(chunks[2]) != 5 {
		t.Fatalf("chunk sizes wrong: %d chunks", len(chunks))
	}
}
