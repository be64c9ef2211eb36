package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

// Runs against a disposable database, e.g.
// TEST_DATABASE_URL=postgres://localhost:5432/clipping_test?sslmode=disable
func newTestPostgres(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	s, err := NewPostgresStore(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	for _, table := range []string{"articles", "keywords", "tenants", "settings", "fix_lock"} {
		if _, err := s.db.Exec(ctx, "DELETE FROM "+table); err != nil {
			t.Fatalf("reset %s: %v", table, err)
		}
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPostgresUpsertAndLookup(t *testing.T) {
	s := newTestPostgres(t)
	ctx := context.Background()
	if err := s.PutTenant(ctx, Tenant{ID: "acme", Name: "Acme", Active: true}, Keyword{ID: "k1", Word: "acme"}); err != nil {
		t.Fatalf("put tenant: %v", err)
	}

	art := Article{
		ID:        ArticleID("https://example.com/a"),
		URL:       "https://example.com/a",
		Title:     "first",
		FetchedAt: time.Now().UTC(),
	}
	if _, err := s.UpsertArticles(ctx, "acme", []Article{art}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	art.Title = "second"
	art.Sentiment = &Sentiment{Score: 0.2, Magnitude: 0.5}
	if _, err := s.UpsertArticles(ctx, "acme", []Article{art}); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}

	got, err := s.ListArticles(ctx, "acme")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].Title != "second" || got[0].Sentiment == nil {
		t.Fatalf("articles = %+v, want one article equal to the latest write", got)
	}

	found, err := s.ExistingArticleIDs(ctx, "acme", []string{art.ID, "missing"})
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !found[art.ID] || found["missing"] {
		t.Errorf("found = %v", found)
	}
}

func TestPostgresSettingsMerge(t *testing.T) {
	s := newTestPostgres(t)
	ctx := context.Background()

	if _, err := s.GetGlobalSettings(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := s.SaveGlobalSettings(ctx, &GlobalSettings{RSSFrequencyMinutes: 30}); err != nil {
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
	if gs.RSSFrequencyMinutes != 30 {
		t.Errorf("frequency lost: %+v", gs)
	}
	if last, ok := gs.LastRunOf(ClassRSS); !ok || !last.Equal(at) {
		t.Errorf("lastRun[rss] = %v, want %v", last, at)
	}

	if err := s.SetNewAlerts(ctx, "acme", true); err != nil {
		t.Fatalf("set alerts: %v", err)
	}
	st, err := s.GetTenantSettings(ctx, "acme")
	if err != nil {
		t.Fatalf("tenant settings: %v", err)
	}
	if !st.NewAlerts || st.SearchScope != ScopeBrazil {
		t.Errorf("tenant settings = %+v", st)
	}
}

func TestPostgresFixLock(t *testing.T) {
	s := newTestPostgres(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := s.AcquireFixLock(ctx, "a", now); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, err := s.AcquireFixLock(ctx, "b", now); !errors.Is(err, ErrLockHeld) {
		t.Fatalf("second acquire err = %v, want ErrLockHeld", err)
	}
	if err := s.ReleaseFixLock(ctx, now); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := s.AcquireFixLock(ctx, "b", now); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
}
