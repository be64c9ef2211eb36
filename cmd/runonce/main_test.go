package main

import (
	"context"
	"errors"
	"testing"

	"github.com/amityadav/clipping/internal/core"
)

var errStore = errors.New("store unavailable")

type brokenFixer struct{}

func (brokenFixer) FixAll(ctx context.Context) (*core.FixAllReport, error) { return nil, errStore }
func (brokenFixer) FixOne(ctx context.Context, tenantID string) (*core.FixTenantReport, error) {
	return nil, errStore
}
func (brokenFixer) LockStatus(ctx context.Context) (*core.LockStatus, error) { return nil, errStore }
func (brokenFixer) ReleaseLock(ctx context.Context) error                    { return errStore }

type stubIngester struct {
	report *core.RunReport
	err    error
}

func (s stubIngester) Run(ctx context.Context) (*core.RunReport, error) { return s.report, s.err }

type stubSeeder struct{}

func (stubSeeder) Seed(ctx context.Context) (bool, error) { return true, nil }

func TestExecuteReturnsNothingToPrintOnError(t *testing.T) {
	ctx := context.Background()
	cases := map[string]cli{
		"lock-status":  {lockStatus: true},
		"release-lock": {releaseLock: true},
		"fix-all":      {fixAll: true},
		"fix-tenant":   {fixTenant: "acme"},
		"run":          {},
	}
	for name, c := range cases {
		out, err := execute(ctx, c, stubIngester{err: errStore}, brokenFixer{}, stubSeeder{})
		if !errors.Is(err, errStore) {
			t.Errorf("%s: err = %v", name, err)
		}
		if out != nil {
			t.Errorf("%s: out = %#v, want nil", name, out)
		}
	}
}

func TestExecuteKeepsFailedRunReport(t *testing.T) {
	failed := &core.RunReport{Message: "global settings missing"}
	out, err := execute(context.Background(), cli{}, stubIngester{report: failed, err: core.ErrConfigMissing}, brokenFixer{}, stubSeeder{})
	if !errors.Is(err, core.ErrConfigMissing) {
		t.Fatalf("err = %v", err)
	}
	if out != failed {
		t.Fatalf("out = %#v, want the failed report", out)
	}
}

func TestExecuteSeed(t *testing.T) {
	out, err := execute(context.Background(), cli{seed: true}, stubIngester{}, brokenFixer{}, stubSeeder{})
	if err != nil {
		t.Fatal(err)
	}
	if m, ok := out.(map[string]bool); !ok || !m["seeded"] {
		t.Fatalf("out = %#v", out)
	}
}
