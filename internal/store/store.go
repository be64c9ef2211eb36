package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a requested document does not exist.
	ErrNotFound = errors.New("not found")
	// ErrLockHeld is returned by AcquireFixLock when another holder is active.
	ErrLockHeld = errors.New("fix lock already held")
)

// Store is the persistence contract shared by the Firestore, Postgres and
// in-memory backends.
type Store interface {
	ListTenants(ctx context.Context) ([]Tenant, error)
	ListKeywords(ctx context.Context, tenantID string) ([]Keyword, error)

	GetGlobalSettings(ctx context.Context) (*GlobalSettings, error)
	SaveGlobalSettings(ctx context.Context, gs *GlobalSettings) error
	MarkSourceRun(ctx context.Context, class SourceClass, at time.Time) error
	GetTenantSettings(ctx context.Context, tenantID string) (*TenantSettings, error)
	SetNewAlerts(ctx context.Context, tenantID string, value bool) error

	// MaxLookupIDs is the largest id set ExistingArticleIDs accepts in one call.
	MaxLookupIDs() int
	ExistingArticleIDs(ctx context.Context, tenantID string, ids []string) (map[string]bool, error)
	// UpsertArticles field-merges the batch atomically and returns the number written.
	UpsertArticles(ctx context.Context, tenantID string, articles []Article) (int, error)
	ListArticles(ctx context.Context, tenantID string) ([]Article, error)
	ApplyArticleFixes(ctx context.Context, tenantID string, fixes []ArticleFix) (int, error)

	AcquireFixLock(ctx context.Context, owner string, now time.Time) (*FixLock, error)
	GetFixLock(ctx context.Context) (*FixLock, error)
	ReleaseFixLock(ctx context.Context, now time.Time) error

	Close() error
}

// articleFields is the field-merge payload of an upsert. Absent enrichment
// is written as null so the record equals the latest write.
func articleFields(a Article) map[string]interface{} {
	var sentiment interface{}
	if a.Sentiment != nil {
		sentiment = map[string]interface{}{
			"score":     a.Sentiment.Score,
			"magnitude": a.Sentiment.Magnitude,
		}
	}
	var entities, labels interface{}
	if a.Entities != nil {
		entities = a.Entities
	}
	if a.ImageLabels != nil {
		labels = a.ImageLabels
	}
	return map[string]interface{}{
		"id":          a.ID,
		"tenantId":    a.TenantID,
		"title":       a.Title,
		"description": a.Description,
		"url":         a.URL,
		"source": map[string]interface{}{
			"name": a.Source.Name,
			"url":  a.Source.URL,
		},
		"author":      a.Author,
		"publishedAt": a.PublishedAt,
		"keyword":     a.Keyword,
		"sourceType":  string(a.SourceType),
		"imageUrl":    a.ImageURL,
		"sentiment":   sentiment,
		"entities":    entities,
		"imageLabels": labels,
		"fetchedAt":   a.FetchedAt,
	}
}

func chunkStrings(ids []string, size int) [][]string {
	if size <= 0 {
		size = len(ids)
	}
	var out [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}
	return out
}
