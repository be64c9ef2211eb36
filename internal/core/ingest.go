package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/amityadav/clipping/internal/admission"
	"github.com/amityadav/clipping/internal/dedup"
	"github.com/amityadav/clipping/internal/search"
	"github.com/amityadav/clipping/internal/settings"
	"github.com/amityadav/clipping/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// IngestStore is the slice of the store an ingestion run needs.
type IngestStore interface {
	ListTenants(ctx context.Context) ([]store.Tenant, error)
	ListKeywords(ctx context.Context, tenantID string) ([]store.Keyword, error)
	GetGlobalSettings(ctx context.Context) (*store.GlobalSettings, error)
	GetTenantSettings(ctx context.Context, tenantID string) (*store.TenantSettings, error)
	MarkSourceRun(ctx context.Context, class store.SourceClass, at time.Time) error
	UpsertArticles(ctx context.Context, tenantID string, articles []store.Article) (int, error)
	dedup.Lookup
}

// Enricher annotates articles. Enrichment failures never drop an article.
type Enricher interface {
	EnrichAll(ctx context.Context, articles []store.Article) []store.Article
}

// Notifier raises the new-alerts signal for a tenant.
type Notifier interface {
	Notify(ctx context.Context, tenant store.Tenant, hasNew bool) (bool, error)
}

type IngestOptions struct {
	TenantConcurrency int
	SourceTimeout     time.Duration
	MaxResults        int
}

// IngestCore runs the harvest: tenants in parallel, keywords of a tenant in
// order, sources of a keyword in parallel.
type IngestCore struct {
	store   IngestStore
	sources *search.Registry
	dedup   *dedup.Gate
	enrich  Enricher
	notify  Notifier
	gate    *admission.Gate
	opts    IngestOptions
	now     func() time.Time
	log     *zap.Logger
}

func NewIngestCore(st IngestStore, sources *search.Registry, enricher Enricher, notifier Notifier, gate *admission.Gate, opts IngestOptions, log *zap.Logger) *IngestCore {
	if opts.TenantConcurrency <= 0 {
		opts.TenantConcurrency = 4
	}
	if opts.SourceTimeout <= 0 {
		opts.SourceTimeout = 30 * time.Second
	}
	return &IngestCore{
		store:   st,
		sources: sources,
		dedup:   dedup.NewGate(st),
		enrich:  enricher,
		notify:  notifier,
		gate:    gate,
		opts:    opts,
		now:     time.Now,
		log:     log.Named("ingest"),
	}
}

// Run executes one ingestion pass. It returns ErrConfigMissing, or a
// tenant-list error, with a failed report. Every later failure is recorded
// in the report and the run still succeeds.
func (c *IngestCore) Run(ctx context.Context) (*RunReport, error) {
	started := c.now()
	report := &RunReport{
		RunID:     uuid.NewString(),
		StartedAt: started,
		Errors:    []string{},
		Tenants:   []TenantReport{},
	}
	log := c.log.With(zap.String("run_id", report.RunID))

	global, err := c.store.GetGlobalSettings(ctx)
	if err != nil {
		report.FinishedAt = c.now()
		if errors.Is(err, store.ErrNotFound) {
			report.Message = ErrConfigMissing.Error()
			log.Error("run aborted", zap.Error(ErrConfigMissing))
			return report, ErrConfigMissing
		}
		report.Message = fmt.Sprintf("failed to load global settings: %v", err)
		return report, fmt.Errorf("failed to load global settings: %w", err)
	}

	var active []search.Source
	report.Skipped = make(map[store.SourceClass]string)
	for class, d := range c.gate.Eligible(global, started) {
		if !d.Allowed {
			report.Skipped[class] = d.Reason
			continue
		}
		if d.Reason != "" {
			log.Warn("admission", zap.String("reason", d.Reason))
		}
		active = append(active, c.sources.ByClass(class)...)
	}
	sort.Slice(active, func(i, j int) bool { return active[i].Name() < active[j].Name() })
	log.Info("run started", zap.Int("sources", len(active)), zap.Int("skipped_classes", len(report.Skipped)))

	tenants, err := c.store.ListTenants(ctx)
	if err != nil {
		report.FinishedAt = c.now()
		report.Message = fmt.Sprintf("failed to list tenants: %v", err)
		return report, fmt.Errorf("failed to list tenants: %w", err)
	}

	var mu sync.Mutex
	succeeded := make(map[store.SourceClass]bool)
	markOK := func(class store.SourceClass) {
		mu.Lock()
		succeeded[class] = true
		mu.Unlock()
	}

	results := make([]*TenantReport, len(tenants))
	var g errgroup.Group
	g.SetLimit(c.opts.TenantConcurrency)
	for i, t := range tenants {
		if !t.Active {
			log.Debug("skipping inactive tenant", zap.String("tenant", t.ID))
			continue
		}
		g.Go(func() error {
			results[i] = c.runTenant(ctx, t, global, active, started, markOK)
			return nil
		})
	}
	_ = g.Wait()

	for _, tr := range results {
		if tr == nil {
			continue
		}
		report.Tenants = append(report.Tenants, *tr)
		report.ArticlesStored += tr.Stored
		for _, e := range tr.Errors {
			report.Errors = append(report.Errors, tr.TenantID+": "+e)
		}
		for _, kr := range tr.Keywords {
			for _, se := range kr.SourceErrors {
				report.SourceErrors++
				report.Errors = append(report.Errors, se.String())
			}
			if kr.Error != "" {
				report.Errors = append(report.Errors, fmt.Sprintf("%s/%s: %s", tr.TenantID, kr.Keyword, kr.Error))
			}
		}
	}

	// lastRun is stamped with the run start so the next gate check measures
	// from when this run saw the class as due.
	for _, class := range store.AllClasses() {
		if !succeeded[class] {
			continue
		}
		if err := c.store.MarkSourceRun(ctx, class, started); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("failed to record last run of %s: %v", class, err))
		}
	}

	if err := ctx.Err(); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("run interrupted: %v", err))
	}

	report.Success = true
	report.FinishedAt = c.now()
	report.Message = fmt.Sprintf("processed %d tenants, stored %d articles, %d source errors",
		len(report.Tenants), report.ArticlesStored, report.SourceErrors)
	log.Info("run finished",
		zap.Int("tenants", len(report.Tenants)),
		zap.Int("stored", report.ArticlesStored),
		zap.Int("source_errors", report.SourceErrors),
		zap.Duration("took", report.FinishedAt.Sub(started)))
	return report, nil
}

func (c *IngestCore) runTenant(ctx context.Context, t store.Tenant, global *store.GlobalSettings, sources []search.Source, now time.Time, markOK func(store.SourceClass)) *TenantReport {
	tr := &TenantReport{TenantID: t.ID, TenantName: t.Name, Keywords: []KeywordReport{}}
	log := c.log.With(zap.String("tenant", t.ID))

	ts, err := c.store.GetTenantSettings(ctx, t.ID)
	if err != nil {
		tr.Errors = append(tr.Errors, fmt.Sprintf("failed to load settings: %v", err))
		return tr
	}
	keywords, err := c.store.ListKeywords(ctx, t.ID)
	if err != nil {
		tr.Errors = append(tr.Errors, fmt.Sprintf("failed to list keywords: %v", err))
		return tr
	}

	for _, kw := range keywords {
		if err := ctx.Err(); err != nil {
			tr.Errors = append(tr.Errors, fmt.Sprintf("stopped before %q: %v", kw.Word, err))
			break
		}
		kr := c.runKeyword(ctx, t, kw, global, ts, sources, now, markOK)
		tr.Keywords = append(tr.Keywords, kr)
		tr.Stored += kr.Stored
	}

	if tr.Stored > 0 && c.notify != nil {
		published, err := c.notify.Notify(ctx, t, true)
		if err != nil {
			tr.Errors = append(tr.Errors, err.Error())
		}
		tr.Notified = published
	}
	log.Info("tenant done", zap.Int("keywords", len(tr.Keywords)), zap.Int("stored", tr.Stored))
	return tr
}

func (c *IngestCore) runKeyword(ctx context.Context, t store.Tenant, kw store.Keyword, global *store.GlobalSettings, ts *store.TenantSettings, sources []search.Source, now time.Time, markOK func(store.SourceClass)) KeywordReport {
	kr := KeywordReport{Keyword: kw.Word}
	q := search.NewQuery(kw.Word, *ts)
	q.MaxResults = c.opts.MaxResults

	var (
		mu     sync.Mutex
		merged []store.Article
		g      errgroup.Group
	)
	for _, src := range sources {
		sq := q
		sq.APIKey = settings.APIKey(src.Class(), global, ts)
		if src.NeedsKey() && sq.APIKey == "" {
			continue
		}
		if settings.UsesEndpoints(src.Class()) {
			sq.Endpoints = search.SplitLines(settings.Endpoints(src.Class(), global))
			if len(sq.Endpoints) == 0 {
				continue
			}
		}
		g.Go(func() error {
			sctx, cancel := context.WithTimeout(ctx, c.opts.SourceTimeout)
			defer cancel()
			arts, err := src.Search(sctx, sq)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				kr.SourceErrors = append(kr.SourceErrors, SourceError{
					TenantID: t.ID,
					Keyword:  kw.Word,
					Source:   src.Name(),
					Class:    src.Class(),
					Message:  err.Error(),
				})
				c.log.Warn("source failed",
					zap.String("tenant", t.ID), zap.String("keyword", kw.Word),
					zap.String("source", src.Name()), zap.Error(err))
				return nil
			}
			markOK(src.Class())
			merged = append(merged, arts...)
			return nil
		})
	}
	_ = g.Wait()
	kr.Fetched = len(merged)

	batch := stamp(merged, t.ID, kw.Word, now)
	if ts.FetchOnlyNew && len(batch) > 0 {
		fresh, err := c.dedup.FilterNew(ctx, t.ID, batch)
		if err != nil {
			kr.Error = fmt.Sprintf("dedup lookup failed: %v", err)
			return kr
		}
		batch = fresh
	}
	kr.New = len(batch)
	if len(batch) == 0 {
		return kr
	}

	if c.enrich != nil {
		batch = c.enrich.EnrichAll(ctx, batch)
	}
	n, err := c.store.UpsertArticles(ctx, t.ID, batch)
	if err != nil {
		kr.Error = fmt.Sprintf("failed to store articles: %v", err)
		return kr
	}
	kr.Stored = n
	return kr
}

// stamp assigns identity and ownership and collapses in-batch duplicates.
// Articles without a URL have no identity and are dropped.
func stamp(articles []store.Article, tenantID, keyword string, now time.Time) []store.Article {
	seen := make(map[string]bool, len(articles))
	out := make([]store.Article, 0, len(articles))
	for _, a := range articles {
		if a.URL == "" {
			continue
		}
		a.ID = store.ArticleID(a.URL)
		if seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		a.TenantID = tenantID
		a.Keyword = keyword
		a.FetchedAt = now
		out = append(out, a)
	}
	return out
}
