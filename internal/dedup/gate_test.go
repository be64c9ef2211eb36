package dedup

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/amityadav/clipping/internal/store"
)

type fakeLookup struct {
	limit    int
	stored   map[string]bool
	calls    int
	maxChunk int
	err      error
}

func (f *fakeLookup) MaxLookupIDs() int { return f.limit }

func (f *fakeLookup) ExistingArticleIDs(ctx context.Context, tenantID string, ids []string) (map[string]bool, error) {
	f.calls++
	if len(ids) > f.maxChunk {
		f.maxChunk = len(ids)
	}
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]bool)
	for _, id := range ids {
		if f.stored[id] {
			out[id] = true
		}
	}
	return out, nil
}

func article(url string) store.Article {
	return store.Article{URL: url}
}

func TestFilterNewReturnsDifference(t *testing.T) {
	stored := store.ArticleID("https://a.com/1")
	lookup := &fakeLookup{limit: 30, stored: map[string]bool{stored: true}}
	g := NewGate(lookup)

	in := []store.Article{article("https://a.com/1"), article("https://a.com/2"), article("https://a.com/3")}
	out, err := g.FilterNew(context.Background(), "acme", in)
	if err != nil {
		t.Fatalf("FilterNew: %v", err)
	}
	if len(out) != 2 || out[0].URL != "https://a.com/2" || out[1].URL != "https://a.com/3" {
		t.Fatalf("out = %+v, want the two unseen articles in order", out)
	}
	if out[0].ID != store.ArticleID("https://a.com/2") {
		t.Errorf("id not assigned: %q", out[0].ID)
	}
}

func TestFilterNewChunksLookups(t *testing.T) {
	lookup := &fakeLookup{limit: 30, stored: map[string]bool{}}
	g := NewGate(lookup)

	var in []store.Article
	for i := 0; i < 75; i++ {
		in = append(in, article(fmt.Sprintf("https://a.com/%d", i)))
	}
	out, err := g.FilterNew(context.Background(), "acme", in)
	if err != nil {
		t.Fatalf("FilterNew: %v", err)
	}
	if len(out) != 75 {
		t.Errorf("got %d articles, want 75", len(out))
	}
	if lookup.calls != 3 || lookup.maxChunk > 30 {
		t.Errorf("calls=%d maxChunk=%d, want 3 calls of at most 30 ids", lookup.calls, lookup.maxChunk)
	}
}

func TestFilterNewPropagatesLookupError(t *testing.T) {
	g := NewGate(&fakeLookup{limit: 30, err: errors.New("unavailable")})
	if _, err := g.FilterNew(context.Background(), "acme", []store.Article{article("https://a.com/1")}); err == nil {
		t.Fatal("expected error")
	}
}

func TestFilterNewEmpty(t *testing.T) {
	lookup := &fakeLookup{limit: 30}
	out, err := NewGate(lookup).FilterNew(context.Background(), "acme", nil)
	if err != nil || len(out) != 0 || lookup.calls != 0 {
		t.Fatalf("out=%v err=%v calls=%d", out, err, lookup.calls)
	}
}
