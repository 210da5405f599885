// Package rules evaluates per-event quota and zone rules. Rules are checked in
// priority order and the first match wins.
package rules

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
)

// Zone rule match fields.
const (
	MatchJobTitle  = "job_title"
	MatchMediaType = "media_type"
)

// QuotaRule caps approved registrations for a media type, optionally
// restricted to one organization.
type QuotaRule struct {
	ID               uuid.UUID
	EventID          uuid.UUID
	MediaType        string
	Organization     string // empty matches any organization
	MaxRegistrations int
	Priority         int
	CreatedAt        time.Time
}

// ZoneRule assigns a venue zone by job title or media type.
type ZoneRule struct {
	ID         uuid.UUID
	EventID    uuid.UUID
	MatchField string
	MatchValue string
	Zone       string
	Priority   int
	CreatedAt  time.Time
}

// QuotaCheck is the outcome of evaluating a quota rule against its usage.
type QuotaCheck struct {
	Rule      *QuotaRule
	Used      int
	Remaining int
	Exceeded  bool
}

// Key normalizes a value for rule matching. Casers are stateful, so one is
// created per call.
func Key(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

func sameKey(a, b string) bool {
	return Key(a) == Key(b)
}

// sortQuota orders rules by ascending priority, keeping input order for ties.
func sortQuota(rs []QuotaRule) []QuotaRule {
	out := append([]QuotaRule(nil), rs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}

func sortZone(rs []ZoneRule) []ZoneRule {
	out := append([]ZoneRule(nil), rs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}

// MatchQuota returns the first rule, in priority order, whose media type
// matches and whose organization is empty or matches. It returns nil when no
// rule applies.
func MatchQuota(rs []QuotaRule, mediaType, organization string) *QuotaRule {
	for _, r := range sortQuota(rs) {
		if !sameKey(r.MediaType, mediaType) {
			continue
		}
		if Key(r.Organization) == "" || sameKey(r.Organization, organization) {
			rule := r
			return &rule
		}
	}
	return nil
}

// ResolveZone returns the zone of the first job-title rule matching jobTitle,
// else of the first media-type rule matching mediaType, else "".
func ResolveZone(rs []ZoneRule, jobTitle, mediaType string) string {
	sorted := sortZone(rs)
	for _, r := range sorted {
		if r.MatchField == MatchJobTitle && sameKey(r.MatchValue, jobTitle) {
			return r.Zone
		}
	}
	for _, r := range sorted {
		if r.MatchField == MatchMediaType && sameKey(r.MatchValue, mediaType) {
			return r.Zone
		}
	}
	return ""
}

// Evaluate computes remaining capacity for a rule. Remaining never goes
// below zero and the quota is exceeded once used reaches the maximum.
func Evaluate(rule *QuotaRule, used int) QuotaCheck {
	remaining := rule.MaxRegistrations - used
	if remaining < 0 {
		remaining = 0
	}
	return QuotaCheck{
		Rule:      rule,
		Used:      used,
		Remaining: remaining,
		Exceeded:  used >= rule.MaxRegistrations,
	}
}
