package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	tenantsCollection  = "tenants"
	settingsCollection = "settings"
	keywordsCollection = "keywords"
	articlesCollection = "articles"
	globalSettingsDoc  = "global"
	fixLockDoc         = "fixLock"

	// Firestore rejects "in" filters with more than 30 values.
	firestoreInLimit = 30
	// Firestore rejects transactions with more than 500 writes.
	firestoreWriteLimit = 500
)

// FirestoreStore persists tenants, settings and articles in Cloud Firestore.
type FirestoreStore struct {
	client *firestore.Client
}

var _ Store = (*FirestoreStore)(nil)

func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func (s *FirestoreStore) ListTenants(ctx context.Context) ([]Tenant, error) {
	docs, err := s.client.Collection(tenantsCollection).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	tenants := make([]Tenant, 0, len(docs))
	for _, doc := range docs {
		var t Tenant
		if err := doc.DataTo(&t); err != nil {
			return nil, fmt.Errorf("failed to decode tenant %s: %w", doc.Ref.ID, err)
		}
		t.ID = doc.Ref.ID
		// Tenant documents written without the flag are active.
		if _, set := doc.Data()["active"]; !set {
			t.Active = true
		}
		tenants = append(tenants, t)
	}
	return tenants, nil
}

func (s *FirestoreStore) ListKeywords(ctx context.Context, tenantID string) ([]Keyword, error) {
	col := s.client.Collection(tenantsCollection).Doc(tenantID).Collection(keywordsCollection)
	docs, err := col.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list keywords for %s: %w", tenantID, err)
	}
	keywords := make([]Keyword, 0, len(docs))
	for _, doc := range docs {
		var k Keyword
		if err := doc.DataTo(&k); err != nil {
			return nil, fmt.Errorf("failed to decode keyword %s: %w", doc.Ref.ID, err)
		}
		k.ID = doc.Ref.ID
		keywords = append(keywords, k)
	}
	// Not every keyword document carries a position, so order in memory
	// instead of with OrderBy, which would drop those documents.
	sort.SliceStable(keywords, func(i, j int) bool { return keywords[i].Position < keywords[j].Position })
	return keywords, nil
}

func (s *FirestoreStore) GetGlobalSettings(ctx context.Context) (*GlobalSettings, error) {
	snap, err := s.client.Collection(settingsCollection).Doc(globalSettingsDoc).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get global settings: %w", err)
	}
	var gs GlobalSettings
	if err := snap.DataTo(&gs); err != nil {
		return nil, fmt.Errorf("failed to decode global settings: %w", err)
	}
	return &gs, nil
}

func (s *FirestoreStore) SaveGlobalSettings(ctx context.Context, gs *GlobalSettings) error {
	_, err := s.client.Collection(settingsCollection).Doc(globalSettingsDoc).Set(ctx, gs)
	if err != nil {
		return fmt.Errorf("failed to save global settings: %w", err)
	}
	return nil
}

func (s *FirestoreStore) MarkSourceRun(ctx context.Context, class SourceClass, at time.Time) error {
	data := map[string]interface{}{
		"lastRun": map[string]interface{}{string(class): at},
	}
	_, err := s.client.Collection(settingsCollection).Doc(globalSettingsDoc).Set(ctx, data, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to mark %s run: %w", class, err)
	}
	return nil
}

func (s *FirestoreStore) GetTenantSettings(ctx context.Context, tenantID string) (*TenantSettings, error) {
	st := DefaultTenantSettings()
	snap, err := s.client.Collection(settingsCollection).Doc(tenantID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return &st, nil
		}
		return nil, fmt.Errorf("failed to get settings for %s: %w", tenantID, err)
	}
	if err := snap.DataTo(&st); err != nil {
		return nil, fmt.Errorf("failed to decode settings for %s: %w", tenantID, err)
	}
	if st.SearchScope == "" {
		st.SearchScope = ScopeBrazil
	}
	return &st, nil
}

func (s *FirestoreStore) SetNewAlerts(ctx context.Context, tenantID string, value bool) error {
	_, err := s.client.Collection(settingsCollection).Doc(tenantID).
		Set(ctx, map[string]interface{}{"newAlerts": value}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to set newAlerts for %s: %w", tenantID, err)
	}
	return nil
}

func (s *FirestoreStore) MaxLookupIDs() int { return firestoreInLimit }

func (s *FirestoreStore) articles(tenantID string) *firestore.CollectionRef {
	return s.client.Collection(tenantsCollection).Doc(tenantID).Collection(articlesCollection)
}

func (s *FirestoreStore) ExistingArticleIDs(ctx context.Context, tenantID string, ids []string) (map[string]bool, error) {
	found := make(map[string]bool)
	col := s.articles(tenantID)
	for _, chunk := range chunkStrings(ids, firestoreInLimit) {
		refs := make([]*firestore.DocumentRef, len(chunk))
		for i, id := range chunk {
			refs[i] = col.Doc(id)
		}
		iter := col.Where(firestore.DocumentID, "in", refs).Select().Documents(ctx)
		for {
			doc, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				break
			}
			if err != nil {
				iter.Stop()
				return nil, fmt.Errorf("failed to look up articles for %s: %w", tenantID, err)
			}
			found[doc.Ref.ID] = true
		}
		iter.Stop()
	}
	return found, nil
}

func (s *FirestoreStore) UpsertArticles(ctx context.Context, tenantID string, articles []Article) (int, error) {
	if len(articles) == 0 {
		return 0, nil
	}
	col := s.articles(tenantID)
	written := 0
	// Each transaction is all-or-nothing; batches above the write limit are
	// split and committed in order.
	for start := 0; start < len(articles); start += firestoreWriteLimit {
		end := start + firestoreWriteLimit
		if end > len(articles) {
			end = len(articles)
		}
		part := articles[start:end]
		err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
			for _, a := range part {
				if err := tx.Set(col.Doc(a.ID), articleFields(a), firestore.MergeAll); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return written, fmt.Errorf("failed to upsert articles for %s: %w", tenantID, err)
		}
		written += len(part)
	}
	return written, nil
}

func (s *FirestoreStore) ListArticles(ctx context.Context, tenantID string) ([]Article, error) {
	iter := s.articles(tenantID).Documents(ctx)
	defer iter.Stop()
	var out []Article
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list articles for %s: %w", tenantID, err)
		}
		var a Article
		if err := doc.DataTo(&a); err != nil {
			return nil, fmt.Errorf("failed to decode article %s: %w", doc.Ref.ID, err)
		}
		a.ID = doc.Ref.ID
		out = append(out, a)
	}
	return out, nil
}

func (s *FirestoreStore) ApplyArticleFixes(ctx context.Context, tenantID string, fixes []ArticleFix) (int, error) {
	col := s.articles(tenantID)
	written := 0
	for start := 0; start < len(fixes); start += firestoreWriteLimit {
		end := start + firestoreWriteLimit
		if end > len(fixes) {
			end = len(fixes)
		}
		part := fixes[start:end]
		err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
			for _, f := range part {
				data := map[string]interface{}{
					"source": map[string]interface{}{"name": f.SourceName},
					"author": f.Author,
				}
				if err := tx.Set(col.Doc(f.ID), data, firestore.MergeAll); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return written, fmt.Errorf("failed to apply fixes for %s: %w", tenantID, err)
		}
		written += len(part)
	}
	return written, nil
}

func (s *FirestoreStore) lockRef() *firestore.DocumentRef {
	return s.client.Collection(settingsCollection).Doc(fixLockDoc)
}

// AcquireFixLock flips running to true inside a transaction, which makes the
// read-check-write a compare-and-set across instances.
func (s *FirestoreStore) AcquireFixLock(ctx context.Context, owner string, now time.Time) (*FixLock, error) {
	var held FixLock
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(s.lockRef())
		if err != nil && !isNotFound(err) {
			return err
		}
		if snap != nil && snap.Exists() {
			var cur FixLock
			if err := snap.DataTo(&cur); err != nil {
				return err
			}
			if cur.Running {
				held = cur
				return ErrLockHeld
			}
		}
		held = FixLock{Running: true, StartedAt: now, Owner: owner}
		return tx.Set(s.lockRef(), map[string]interface{}{
			"running":   true,
			"startedAt": now,
			"owner":     owner,
		}, firestore.MergeAll)
	})
	if errors.Is(err, ErrLockHeld) {
		return &held, ErrLockHeld
	}
	if err != nil {
		return nil, fmt.Errorf("failed to acquire fix lock: %w", err)
	}
	return &held, nil
}

func (s *FirestoreStore) GetFixLock(ctx context.Context) (*FixLock, error) {
	snap, err := s.lockRef().Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return &FixLock{}, nil
		}
		return nil, fmt.Errorf("failed to read fix lock: %w", err)
	}
	var l FixLock
	if err := snap.DataTo(&l); err != nil {
		return nil, fmt.Errorf("failed to decode fix lock: %w", err)
	}
	return &l, nil
}

func (s *FirestoreStore) ReleaseFixLock(ctx context.Context, now time.Time) error {
	_, err := s.lockRef().Set(ctx, map[string]interface{}{
		"running":    false,
		"releasedAt": now,
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to release fix lock: %w", err)
	}
	return nil
}
