package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps everything in process memory. It backs local dry runs
// and the orchestration tests.
type MemoryStore struct {
	mu       sync.Mutex
	tenants  map[string]Tenant
	keywords map[string][]Keyword
	tenantSt map[string]TenantSettings
	global   *GlobalSettings
	articles map[string]map[string]Article
	lock     FixLock
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tenants:  make(map[string]Tenant),
		keywords: make(map[string][]Keyword),
		tenantSt: make(map[string]TenantSettings),
		articles: make(map[string]map[string]Article),
	}
}

// PutTenant registers a tenant with its keywords and settings.
func (s *MemoryStore) PutTenant(t Tenant, settings TenantSettings, keywords ...Keyword) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants[t.ID] = t
	s.tenantSt[t.ID] = settings
	s.keywords[t.ID] = append([]Keyword(nil), keywords...)
}

func (s *MemoryStore) ListTenants(ctx context.Context) ([]Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Tenant, 0, len(s.tenants))
	for _, t := range s.tenants {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) ListKeywords(ctx context.Context, tenantID string) ([]Keyword, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]Keyword(nil), s.keywords[tenantID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (s *MemoryStore) GetGlobalSettings(ctx context.Context) (*GlobalSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.global == nil {
		return nil, ErrNotFound
	}
	gs := *s.global
	gs.LastRun = copyTimes(s.global.LastRun)
	return &gs, nil
}

func (s *MemoryStore) SaveGlobalSettings(ctx context.Context, gs *GlobalSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *gs
	cp.LastRun = copyTimes(gs.LastRun)
	s.global = &cp
	return nil
}

func (s *MemoryStore) MarkSourceRun(ctx context.Context, class SourceClass, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.global == nil {
		s.global = &GlobalSettings{}
	}
	if s.global.LastRun == nil {
		s.global.LastRun = make(map[string]time.Time)
	}
	s.global.LastRun[string(class)] = at
	return nil
}

func (s *MemoryStore) GetTenantSettings(ctx context.Context, tenantID string) (*TenantSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.tenantSt[tenantID]
	if !ok {
		st = DefaultTenantSettings()
	}
	return &st, nil
}

func (s *MemoryStore) SetNewAlerts(ctx context.Context, tenantID string, value bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.tenantSt[tenantID]
	if !ok {
		st = DefaultTenantSettings()
	}
	st.NewAlerts = value
	s.tenantSt[tenantID] = st
	return nil
}

func (s *MemoryStore) MaxLookupIDs() int { return 500 }

func (s *MemoryStore) ExistingArticleIDs(ctx context.Context, tenantID string, ids []string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	found := make(map[string]bool)
	for _, id := range ids {
		if _, ok := s.articles[tenantID][id]; ok {
			found[id] = true
		}
	}
	return found, nil
}

func (s *MemoryStore) UpsertArticles(ctx context.Context, tenantID string, articles []Article) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.articles[tenantID]
	if !ok {
		bucket = make(map[string]Article)
		s.articles[tenantID] = bucket
	}
	for _, a := range articles {
		bucket[a.ID] = cloneArticle(a)
	}
	return len(articles), nil
}

func (s *MemoryStore) ListArticles(ctx context.Context, tenantID string) ([]Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Article, 0, len(s.articles[tenantID]))
	for _, a := range s.articles[tenantID] {
		out = append(out, cloneArticle(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) ApplyArticleFixes(ctx context.Context, tenantID string, fixes []ArticleFix) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, f := range fixes {
		a, ok := s.articles[tenantID][f.ID]
		if !ok {
			continue
		}
		a.Source.Name = f.SourceName
		a.Author = f.Author
		s.articles[tenantID][f.ID] = a
		n++
	}
	return n, nil
}

func (s *MemoryStore) AcquireFixLock(ctx context.Context, owner string, now time.Time) (*FixLock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lock.Running {
		held := s.lock
		return &held, ErrLockHeld
	}
	s.lock = FixLock{Running: true, StartedAt: now, Owner: owner}
	held := s.lock
	return &held, nil
}

func (s *MemoryStore) GetFixLock(ctx context.Context) (*FixLock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.lock
	return &l, nil
}

func (s *MemoryStore) ReleaseFixLock(ctx context.Context, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lock.Running = false
	s.lock.ReleasedAt = now
	return nil
}

func (s *MemoryStore) Close() error { return nil }

func cloneArticle(a Article) Article {
	if a.Sentiment != nil {
		sent := *a.Sentiment
		a.Sentiment = &sent
	}
	if a.Entities != nil {
		a.Entities = append([]string(nil), a.Entities...)
	}
	if a.ImageLabels != nil {
		a.ImageLabels = append([]string(nil), a.ImageLabels...)
	}
	return a
}

func copyTimes(m map[string]time.Time) map[string]time.Time {
	if m == nil {
		return nil
	}
	out := make(map[string]time.Time, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
