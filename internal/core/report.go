package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/amityadav/clipping/internal/store"
)

var (
	// ErrConfigMissing aborts a run before any tenant is processed.
	ErrConfigMissing = errors.New("global settings are not configured")
	// ErrLockConflict is returned when a correction job is already running.
	ErrLockConflict = errors.New("a correction job is already running")
)

// SourceError records one adapter failure. It never aborts the run.
type SourceError struct {
	TenantID string            `json:"tenantId"`
	Keyword  string            `json:"keyword"`
	Source   string            `json:"source"`
	Class    store.SourceClass `json:"class"`
	Message  string            `json:"message"`
}

func (e SourceError) String() string {
	return fmt.Sprintf("%s/%s/%s: %s", e.TenantID, e.Keyword, e.Source, e.Message)
}

// KeywordReport counts one keyword pass for one tenant.
type KeywordReport struct {
	Keyword      string        `json:"keyword"`
	Fetched      int           `json:"fetched"`
	New          int           `json:"new"`
	Stored       int           `json:"stored"`
	SourceErrors []SourceError `json:"sourceErrors,omitempty"`
	Error        string        `json:"error,omitempty"`
}

type TenantReport struct {
	TenantID   string          `json:"tenantId"`
	TenantName string          `json:"tenantName"`
	Keywords   []KeywordReport `json:"keywords"`
	Stored     int             `json:"stored"`
	Notified   bool            `json:"notified"`
	Errors     []string        `json:"errors,omitempty"`
}

// RunReport summarizes a whole ingestion run. Success is false only when
// the run could not start.
type RunReport struct {
	RunID          string                       `json:"runId"`
	Success        bool                         `json:"success"`
	Message        string                       `json:"message"`
	StartedAt      time.Time                    `json:"startedAt"`
	FinishedAt     time.Time                    `json:"finishedAt"`
	Skipped        map[store.SourceClass]string `json:"skipped,omitempty"`
	Tenants        []TenantReport               `json:"tenants"`
	Errors         []string                     `json:"errors"`
	ArticlesStored int                          `json:"articlesStored"`
	SourceErrors   int                          `json:"sourceErrors"`
}

// FixTenantReport is the outcome of correcting one tenant.
type FixTenantReport struct {
	TenantID  string   `json:"tenantId"`
	Processed int      `json:"processed"`
	Updated   int      `json:"updated"`
	Errors    []string `json:"errors"`
}

type FixAllReport struct {
	TotalCompanies int               `json:"totalCompanies"`
	TotalProcessed int               `json:"totalProcessed"`
	TotalUpdated   int               `json:"totalUpdated"`
	Results        []FixTenantReport `json:"results"`
}

// LockStatus is the externally visible state of the correction lock.
type LockStatus struct {
	Running        bool       `json:"running"`
	StartedAt      *time.Time `json:"startedAt,omitempty"`
	MinutesRunning int        `json:"minutesRunning"`
	Owner          string     `json:"owner,omitempty"`
}
