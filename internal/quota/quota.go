// Package quota decides whether an account may start a scan or create a
// project under its subscription tier. The checks are pure: counters are
// read from the account and never modified here.
package quota

import (
	"fmt"

	"github.com/raysh454/comply/internal/model"
)

// Unlimited marks a limit that is never reached.
const Unlimited = -1

// Resource names used in denial errors.
const (
	ResourceScans    = "scans"
	ResourceProjects = "projects"
)

// Limits are the per-tier allowances.
type Limits struct {
	ScansPerMonth int `json:"scans_per_month"`
	Projects      int `json:"projects"`
}

var tierLimits = map[model.Tier]Limits{
	model.TierFree:       {ScansPerMonth: 10, Projects: 3},
	model.TierPro:        {ScansPerMonth: 100, Projects: 20},
	model.TierEnterprise: {ScansPerMonth: Unlimited, Projects: Unlimited},
}

// LimitsFor returns the allowances of tier. Unknown tiers get the free
// allowances.
func LimitsFor(tier model.Tier) Limits {
	if l, ok := tierLimits[tier]; ok {
		return l
	}
	return tierLimits[model.TierFree]
}

// Decision is the outcome of a quota check.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	Limit   int    `json:"limit"`
}

// Guard evaluates quota decisions. The zero value is ready to use.
type Guard struct{}

// CanScan reports whether account may start another scan this month.
func (Guard) CanScan(account model.Account) Decision {
	limit := LimitsFor(account.Tier).ScansPerMonth
	if limit == Unlimited || account.Usage.ScansThisMonth < limit {
		return Decision{Allowed: true, Limit: limit}
	}
	return Decision{
		Limit:  limit,
		Reason: fmt.Sprintf("Monthly scan limit of %d reached for the %s tier. Upgrade your plan for more scans.", limit, account.Tier),
	}
}

// CanCreateProject reports whether account may create another project.
func (Guard) CanCreateProject(account model.Account) Decision {
	limit := LimitsFor(account.Tier).Projects
	if limit == Unlimited || account.Usage.ProjectsCreated < limit {
		return Decision{Allowed: true, Limit: limit}
	}
	return Decision{
		Limit:  limit,
		Reason: fmt.Sprintf("Project limit of %d reached for the %s tier. Upgrade your plan to create more projects.", limit, account.Tier),
	}
}

// CheckScan is CanScan returning a *model.QuotaExceededError on denial.
func (g Guard) CheckScan(account model.Account) error {
	return asError(account.Tier, ResourceScans, g.CanScan(account))
}

// CheckProject is CanCreateProject returning a *model.QuotaExceededError on
// denial.
func (g Guard) CheckProject(account model.Account) error {
	return asError(account.Tier, ResourceProjects, g.CanCreateProject(account))
}

func asError(tier model.Tier, resource string, d Decision) error {
	if d.Allowed {
		return nil
	}
	return &model.QuotaExceededError{Tier: tier, Resource: resource, Limit: d.Limit, Reason: d.Reason}
}
