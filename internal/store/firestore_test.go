package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
)

// Runs against the Firestore emulator, e.g.
// FIRESTORE_EMULATOR_HOST=localhost:8081
func newTestFirestore(t *testing.T) *FirestoreStore {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	project := fmt.Sprintf("clipping-test-%d", time.Now().UnixNano())
	client, err := firestore.NewClient(context.Background(), project)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	s := NewFirestoreStore(client)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestFirestoreUpsertLookupAndFix(t *testing.T) {
	s := newTestFirestore(t)
	ctx := context.Background()

	var batch []Article
	for i := 0; i < 45; i++ {
		url := fmt.Sprintf("https://example.com/%d", i)
		batch = append(batch, Article{ID: ArticleID(url), URL: url, Title: "t", Source: Source{Name: "ex", URL: "https://example.com"}})
	}
	if n, err := s.UpsertArticles(ctx, "acme", batch); err != nil || n != 45 {
		t.Fatalf("upsert = %d, %v", n, err)
	}

	// More ids than one "in" query accepts.
	ids := []string{"missing"}
	for _, a := range batch {
		ids = append(ids, a.ID)
	}
	found, err := s.ExistingArticleIDs(ctx, "acme", ids)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(found) != 45 || found["missing"] {
		t.Errorf("found %d ids", len(found))
	}

	if _, err := s.ApplyArticleFixes(ctx, "acme", []ArticleFix{{ID: batch[0].ID, SourceName: "Example", Author: "Ana"}}); err != nil {
		t.Fatalf("fix: %v", err)
	}
	arts, err := s.ListArticles(ctx, "acme")
	if err != nil {
		t.Fatal(err)
	}
	for _, a := range arts {
		if a.ID == batch[0].ID && (a.Source.Name != "Example" || a.Source.URL == "" || a.Author != "Ana") {
			t.Errorf("fix did not merge: %+v", a)
		}
	}
}

func TestFirestoreFixLock(t *testing.T) {
	s := newTestFirestore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := s.AcquireFixLock(ctx, "a", now); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	held, err := s.AcquireFixLock(ctx, "b", now)
	if !errors.Is(err, ErrLockHeld) || held.Owner != "a" {
		t.Fatalf("second acquire = %+v, %v", held, err)
	}
	if err := s.ReleaseFixLock(ctx, now); err != nil {
		t.Fatal(err)
	}
	if lock, _ := s.GetFixLock(ctx); lock.Running {
		t.Error("lock still running after release")
	}
}

func TestFirestoreTenantWithoutActiveFlag(t *testing.T) {
	s := newTestFirestore(t)
	ctx := context.Background()

	tenants := s.client.Collection(tenantsCollection)
	if _, err := tenants.Doc("acme").Set(ctx, map[string]interface{}{"name": "Acme"}); err != nil {
		t.Fatalf("write acme: %v", err)
	}
	if _, err := tenants.Doc("globex").Set(ctx, map[string]interface{}{"name": "Globex", "active": false}); err != nil {
		t.Fatalf("write globex: %v", err)
	}

	got, err := s.ListTenants(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	active := map[string]bool{}
	for _, tn := range got {
		active[tn.ID] = tn.Active
	}
	if len(active) != 2 || !active["acme"] || active["globex"] {
		t.Fatalf("tenants = %+v, want acme active and globex inactive", got)
	}
}
