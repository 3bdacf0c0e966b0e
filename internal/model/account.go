package model

import "time"

// Tier is an account's subscription level. It is supplied by billing and
// read-only to this system.
type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierPro, TierEnterprise:
		return true
	}
	return false
}

// UsageStats are the rolling monthly counters of an account.
type UsageStats struct {
	ScansThisMonth  int       `json:"scans_this_month"`
	ProjectsCreated int       `json:"projects_created"`
	LastResetDate   time.Time `json:"last_reset_date"`
}

// Account is the quota-bearing owner of projects, definitions and scans.
type Account struct {
	ID        string     `json:"id"`
	Tier      Tier       `json:"tier"`
	Usage     UsageStats `json:"usage"`
	CreatedAt time.Time  `json:"created_at"`
}
