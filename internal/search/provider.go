package search

import (
	"context"

	"github.com/amityadav/clipping/internal/store"
)

// Query is what the orchestrator hands every source for one keyword.
type Query struct {
	// Keyword is the localized keyword sent to remote search APIs.
	Keyword string
	// Original is the keyword as the tenant configured it. Local filters
	// match against it, never against the localized form.
	Original string
	Scope    store.SearchScope
	State    string
	APIKey   string
	// Endpoints lists feed URLs, blog URLs or channel ids for sources that
	// fan out over configured endpoints.
	Endpoints  []string
	MaxResults int
}

// International reports whether the query targets worldwide coverage.
func (q Query) International() bool {
	return q.Scope == store.ScopeInternational
}

// Source is the contract every adapter implements.
type Source interface {
	// Name returns the provider identifier (e.g., "newsapi", "rss")
	Name() string
	Class() store.SourceClass
	// NeedsKey reports whether the source is skipped when no API key resolves.
	NeedsKey() bool
	Search(ctx context.Context, q Query) ([]store.Article, error)
}
