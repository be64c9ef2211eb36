package dedup

import (
	"context"
	"fmt"

	"github.com/amityadav/clipping/internal/store"
)

// Lookup is the slice of the store the gate needs.
type Lookup interface {
	MaxLookupIDs() int
	ExistingArticleIDs(ctx context.Context, tenantID string, ids []string) (map[string]bool, error)
}

// Gate drops articles a tenant already has stored.
type Gate struct {
	lookup Lookup
}

func NewGate(lookup Lookup) *Gate {
	return &Gate{lookup: lookup}
}

// FilterNew returns the articles whose id is not yet stored for the tenant,
// in their original order. Ids are assigned from URLs when missing. Lookups
// are split into chunks no larger than the store accepts in one query.
func (g *Gate) FilterNew(ctx context.Context, tenantID string, articles []store.Article) ([]store.Article, error) {
	if len(articles) == 0 {
		return articles, nil
	}
	ids := make([]string, 0, len(articles))
	seen := make(map[string]bool, len(articles))
	for i := range articles {
		if articles[i].ID == "" {
			articles[i].ID = store.ArticleID(articles[i].URL)
		}
		if !seen[articles[i].ID] {
			seen[articles[i].ID] = true
			ids = append(ids, articles[i].ID)
		}
	}

	limit := g.lookup.MaxLookupIDs()
	if limit <= 0 {
		limit = len(ids)
	}
	existing := make(map[string]bool)
	for start := 0; start < len(ids); start += limit {
		end := start + limit
		if end > len(ids) {
			end = len(ids)
		}
		found, err := g.lookup.ExistingArticleIDs(ctx, tenantID, ids[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to check existing articles: %w", err)
		}
		for id := range found {
			existing[id] = true
		}
	}

	out := make([]store.Article, 0, len(articles))
	for _, a := range articles {
		if !existing[a.ID] {
			out = append(out, a)
		}
	}
	return out, nil
}
