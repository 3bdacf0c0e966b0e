package quota_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/raysh454/comply/internal/model"
	"github.com/raysh454/comply/internal/quota"
)

func account(tier model.Tier, scans, projects int) model.Account {
	return model.Account{
		ID:   "acct",
		Tier: tier,
		Usage: model.UsageStats{
			ScansThisMonth:  scans,
			ProjectsCreated: projects,
		},
	}
}

func TestGuard_CanScan(t *testing.T) {
	tests := []struct {
		name  string
		acct  model.Account
		allow bool
	}{
		{name: "free under limit", acct: account(model.TierFree, 9, 0), allow: true},
		{name: "free at limit", acct: account(model.TierFree, 10, 0), allow: false},
		{name: "free over limit", acct: account(model.TierFree, 11, 0), allow: false},
		{name: "pro under limit", acct: account(model.TierPro, 99, 0), allow: true},
		{name: "pro at limit", acct: account(model.TierPro, 100, 0), allow: false},
		{name: "enterprise huge", acct: account(model.TierEnterprise, 1_000_000, 0), allow: true},
		{name: "unknown tier treated as free", acct: account("gold", 10, 0), allow: false},
	}

	var g quota.Guard
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := g.CanScan(tt.acct)
			if d.Allowed != tt.allow {
				t.Fatalf("CanScan allowed=%v, want %v (reason %q)", d.Allowed, tt.allow, d.Reason)
			}
			if !d.Allowed && d.Reason == "" {
				t.Fatal("denial must carry a reason")
			}
		})
	}
}

func TestGuard_CanCreateProject(t *testing.T) {
	var g quota.Guard

	d := g.CanCreateProject(account(model.TierFree, 0, 3))
	if d.Allowed {
		t.Fatal("free tier with 3 projects should be denied")
	}
	if !strings.Contains(d.Reason, "Project limit of 3") {
		t.Fatalf("reason should name the limit, got %q", d.Reason)
	}

	if !g.CanCreateProject(account(model.TierFree, 0, 2)).Allowed {
		t.Fatal("free tier with 2 projects should be allowed")
	}
	if g.CanCreateProject(account(model.TierPro, 0, 20)).Allowed {
		t.Fatal("pro tier with 20 projects should be denied")
	}
	if !g.CanCreateProject(account(model.TierEnterprise, 0, 500)).Allowed {
		t.Fatal("enterprise is unlimited")
	}
}

func TestGuard_DoesNotMutate(t *testing.T) {
	var g quota.Guard
	a := account(model.TierFree, 5, 1)
	before := a
	g.CanScan(a)
	g.CanCreateProject(a)
	if a != before {
		t.Fatalf("guard mutated account: %+v -> %+v", before, a)
	}
}

func TestGuard_CheckErrors(t *testing.T) {
	var g quota.Guard

	if err := g.CheckScan(account(model.TierFree, 0, 0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := g.CheckScan(account(model.TierFree, 10, 0))
	var qe *model.QuotaExceededError
	if !errors.As(err, &qe) {
		t.Fatalf("expected QuotaExceededError, got %v", err)
	}
	if qe.Resource != quota.ResourceScans || qe.Limit != 10 || qe.Tier != model.TierFree {
		t.Fatalf("unexpected error payload: %+v", qe)
	}

	err = g.CheckProject(account(model.TierPro, 0, 20))
	if !errors.As(err, &qe) || qe.Resource != quota.ResourceProjects {
		t.Fatalf("expected project QuotaExceededError, got %v", err)
	}
}

func TestLimitsFor(t *testing.T) {
	if l := quota.LimitsFor(model.TierEnterprise); l.ScansPerMonth != quota.Unlimited || l.Projects != quota.Unlimited {
		t.Fatalf("enterprise limits = %+v", l)
	}
	if l := quota.LimitsFor(model.TierPro); l.ScansPerMonth != 100 || l.Projects != 20 {
		t.Fatalf("pro limits = %+v", l)
	}
}
