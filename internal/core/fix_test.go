package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/amityadav/clipping/internal/store"
	"go.uber.org/zap"
)

func seedArticles(t *testing.T, st *store.MemoryStore, tenantID string, arts ...store.Article) {
	t.Helper()
	for i := range arts {
		arts[i].ID = store.ArticleID(arts[i].URL)
	}
	if _, err := st.UpsertArticles(context.Background(), tenantID, arts); err != nil {
		t.Fatal(err)
	}
}

func TestFixAllNormalizesAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	st.PutTenant(store.Tenant{ID: "acme", Active: true}, store.TenantSettings{})
	st.PutTenant(store.Tenant{ID: "beta", Active: true}, store.TenantSettings{})
	seedArticles(t, st, "acme",
		store.Article{URL: "https://g1.globo.com/economia/noticia.html", Source: store.Source{Name: "globo.com"}},
		store.Article{URL: "https://www.estadao.com.br/autor/maria-silva/acme", Source: store.Source{Name: "Estadão"}},
	)
	seedArticles(t, st, "beta",
		store.Article{URL: "https://jornal.example.com.br/x", Source: store.Source{Name: "Jornal Exemplo"}, Author: "Ana"},
	)

	fix := NewFixCore(st, "test", zap.NewNop())
	report, err := fix.FixAll(ctx)
	if err != nil {
		t.Fatalf("FixAll: %v", err)
	}
	if report.TotalCompanies != 2 || report.TotalProcessed != 3 || report.TotalUpdated != 2 {
		t.Fatalf("report = %+v", report)
	}

	again, err := fix.FixAll(ctx)
	if err != nil {
		t.Fatalf("second FixAll: %v", err)
	}
	if again.TotalUpdated != 0 {
		t.Errorf("second pass updated %d, want 0", again.TotalUpdated)
	}

	status, err := fix.LockStatus(ctx)
	if err != nil || status.Running {
		t.Fatalf("lock left running: %+v %v", status, err)
	}
}

func TestFixRejectsConcurrentRun(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	if _, err := st.AcquireFixLock(ctx, "other", started); err != nil {
		t.Fatal(err)
	}

	fix := NewFixCore(st, "test", zap.NewNop())
	fix.now = func() time.Time { return started.Add(15 * time.Minute) }
	if _, err := fix.FixAll(ctx); !errors.Is(err, ErrLockConflict) {
		t.Fatalf("FixAll err = %v, want ErrLockConflict", err)
	}
	if _, err := fix.FixOne(ctx, "acme"); !errors.Is(err, ErrLockConflict) {
		t.Fatalf("FixOne err = %v, want ErrLockConflict", err)
	}

	status, err := fix.LockStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !status.Running || status.MinutesRunning != 15 || status.Owner != "other" {
		t.Errorf("status = %+v", status)
	}

	if err := fix.ReleaseLock(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := fix.FixOne(ctx, "acme"); err != nil {
		t.Fatalf("FixOne after release: %v", err)
	}
}

type failingArticles struct {
	*store.MemoryStore
}

func (f failingArticles) ListArticles(ctx context.Context, tenantID string) ([]store.Article, error) {
	return nil, errors.New("read failed")
}

func TestFixReleasesLockAfterFailure(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	fix := NewFixCore(failingArticles{mem}, "test", zap.NewNop())

	r, err := fix.FixOne(ctx, "acme")
	if err != nil {
		t.Fatalf("FixOne: %v", err)
	}
	if len(r.Errors) != 1 || r.Processed != 0 {
		t.Errorf("report = %+v", r)
	}
	lock, _ := mem.GetFixLock(ctx)
	if lock.Running {
		t.Error("lock still held after failed correction")
	}
}

func TestFixOneRequiresTenant(t *testing.T) {
	fix := NewFixCore(store.NewMemoryStore(), "", zap.NewNop())
	if _, err := fix.FixOne(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty tenant id")
	}
}
