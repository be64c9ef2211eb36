package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amityadav/clipping/internal/store"
	"go.uber.org/zap"
)

// FixStore is the slice of the store the correction job needs.
type FixStore interface {
	ListTenants(ctx context.Context) ([]store.Tenant, error)
	ListArticles(ctx context.Context, tenantID string) ([]store.Article, error)
	ApplyArticleFixes(ctx context.Context, tenantID string, fixes []store.ArticleFix) (int, error)
	AcquireFixLock(ctx context.Context, owner string, now time.Time) (*store.FixLock, error)
	GetFixLock(ctx context.Context) (*store.FixLock, error)
	ReleaseFixLock(ctx context.Context, now time.Time) error
}

// FixCore rewrites source and author of stored articles from URL
// heuristics. At most one correction runs at a time across all instances.
type FixCore struct {
	store FixStore
	owner string
	now   func() time.Time
	log   *zap.Logger
}

func NewFixCore(st FixStore, owner string, log *zap.Logger) *FixCore {
	if owner == "" {
		owner = "clipping"
	}
	return &FixCore{store: st, owner: owner, now: time.Now, log: log.Named("fix")}
}

// FixAll corrects every tenant under the lock.
func (c *FixCore) FixAll(ctx context.Context) (*FixAllReport, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	defer c.releaseAfterRun()

	tenants, err := c.store.ListTenants(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}

	report := &FixAllReport{TotalCompanies: len(tenants), Results: []FixTenantReport{}}
	for _, t := range tenants {
		if ctx.Err() != nil {
			break
		}
		r := c.fixTenant(ctx, t.ID)
		report.TotalProcessed += r.Processed
		report.TotalUpdated += r.Updated
		report.Results = append(report.Results, r)
	}
	c.log.Info("correction finished",
		zap.Int("tenants", report.TotalCompanies),
		zap.Int("processed", report.TotalProcessed),
		zap.Int("updated", report.TotalUpdated))
	return report, nil
}

// FixOne corrects a single tenant under the same lock as FixAll.
func (c *FixCore) FixOne(ctx context.Context, tenantID string) (*FixTenantReport, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenant id is required")
	}
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	defer c.releaseAfterRun()

	r := c.fixTenant(ctx, tenantID)
	return &r, nil
}

// LockStatus reports whether a correction is running and for how long.
func (c *FixCore) LockStatus(ctx context.Context) (*LockStatus, error) {
	lock, err := c.store.GetFixLock(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read lock: %w", err)
	}
	status := &LockStatus{Running: lock.Running}
	if lock.Running {
		started := lock.StartedAt
		status.StartedAt = &started
		status.MinutesRunning = int(c.now().Sub(started).Minutes())
		status.Owner = lock.Owner
	}
	return status, nil
}

// ReleaseLock clears the lock unconditionally. It exists for operators to
// recover from a crashed holder and must not be called while a job runs.
func (c *FixCore) ReleaseLock(ctx context.Context) error {
	if err := c.store.ReleaseFixLock(ctx, c.now()); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	c.log.Warn("lock released manually")
	return nil
}

func (c *FixCore) acquire(ctx context.Context) error {
	lock, err := c.store.AcquireFixLock(ctx, c.owner, c.now())
	if errors.Is(err, store.ErrLockHeld) {
		return fmt.Errorf("%w (since %s)", ErrLockConflict, lockSince(lock))
	}
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	return nil
}

// releaseAfterRun uses its own context so a cancelled request still frees
// the lock.
func (c *FixCore) releaseAfterRun() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.store.ReleaseFixLock(ctx, c.now()); err != nil {
		c.log.Error("failed to release lock", zap.Error(err))
	}
}

func (c *FixCore) fixTenant(ctx context.Context, tenantID string) FixTenantReport {
	r := FixTenantReport{TenantID: tenantID, Errors: []string{}}
	articles, err := c.store.ListArticles(ctx, tenantID)
	if err != nil {
		r.Errors = append(r.Errors, fmt.Sprintf("failed to list articles: %v", err))
		return r
	}

	var fixes []store.ArticleFix
	for _, a := range articles {
		r.Processed++
		name, author := Normalize(a.URL, a.Source.Name, a.Author)
		if name == a.Source.Name && author == a.Author {
			continue
		}
		fixes = append(fixes, store.ArticleFix{ID: a.ID, SourceName: name, Author: author})
	}
	if len(fixes) == 0 {
		return r
	}

	n, err := c.store.ApplyArticleFixes(ctx, tenantID, fixes)
	if err != nil {
		r.Errors = append(r.Errors, fmt.Sprintf("failed to apply fixes: %v", err))
	}
	r.Updated = n
	c.log.Info("tenant corrected", zap.String("tenant", tenantID), zap.Int("processed", r.Processed), zap.Int("updated", n))
	return r
}

func lockSince(lock *store.FixLock) string {
	if lock == nil || lock.StartedAt.IsZero() {
		return "unknown"
	}
	return lock.StartedAt.UTC().Format(time.RFC3339)
}
