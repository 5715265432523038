// Package policy holds the static retention table: how long each category
// stays fresh, when it is evicted and whether it revalidates when the
// window regains focus.
package policy

import (
	"fmt"
	"time"

	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/domain/record"
	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/errors"
)

// Tier groups categories that share a retention profile.
type Tier string

const (
	TierVolatile   Tier = "volatile"
	TierStable     Tier = "stable"
	TierHistorical Tier = "historical"
)

// RetentionPolicy describes the lifetime of an entry of one category.
// StaleAfter < EvictAfter always holds.
type RetentionPolicy struct {
	Tier                Tier
	StaleAfter          time.Duration
	EvictAfter          time.Duration
	RevalidateOnRefocus bool
}

// IsStale reports whether an entry fetched at fetchedAt is stale at now.
func (p RetentionPolicy) IsStale(fetchedAt, now time.Time) bool {
	return now.Sub(fetchedAt) >= p.StaleAfter
}

// IsExpired reports whether an entry fetched at fetchedAt must be evicted at now.
func (p RetentionPolicy) IsExpired(fetchedAt, now time.Time) bool {
	return now.Sub(fetchedAt) >= p.EvictAfter
}

func volatile(stale, evict time.Duration) RetentionPolicy {
	return RetentionPolicy{Tier: TierVolatile, StaleAfter: stale, EvictAfter: evict, RevalidateOnRefocus: true}
}

func stable(stale, evict time.Duration) RetentionPolicy {
	return RetentionPolicy{Tier: TierStable, StaleAfter: stale, EvictAfter: evict}
}

func historical(stale, evict time.Duration) RetentionPolicy {
	return RetentionPolicy{Tier: TierHistorical, StaleAfter: stale, EvictAfter: evict}
}

// table is indexed by record.Category. A zero entry means the category has
// no policy, which Validate reports and For treats as fatal.
var table = [...]RetentionPolicy{
	record.SoapDrafts:        volatile(2*time.Minute, 5*time.Minute),
	record.TodayMeasurements: volatile(30*time.Second, 10*time.Minute),

	record.Profile:        stable(10*time.Minute, 30*time.Minute),
	record.Goals:          stable(5*time.Minute, 30*time.Minute),
	record.Pathologies:    stable(10*time.Minute, 30*time.Minute),
	record.SoapRecords:    stable(5*time.Minute, 15*time.Minute),
	record.Measurements:   stable(5*time.Minute, 15*time.Minute),
	record.ExercisePlan:   stable(10*time.Minute, 30*time.Minute),
	record.Attachments:    stable(10*time.Minute, 30*time.Minute),
	record.MedicalReturns: stable(10*time.Minute, 30*time.Minute),

	record.Surgeries:            historical(30*time.Minute, 60*time.Minute),
	record.RequiredMeasurements: historical(30*time.Minute, 60*time.Minute),
}

// For returns the policy of category. It panics with a
// POLICY_MISCONFIGURATION error when the category has none.
func For(category record.Category) RetentionPolicy {
	p, err := lookup(category)
	if err != nil {
		panic(err)
	}
	return p
}

func lookup(category record.Category) (RetentionPolicy, error) {
	if int(category) >= len(table) || table[category] == (RetentionPolicy{}) {
		return RetentionPolicy{}, errors.PolicyMisconfiguration(errors.CodeUnknownCategory, "no retention policy for category").
			WithOperation("policy.For").
			WithResource(category.String()).
			Build()
	}
	return table[category], nil
}

// Validate checks that every category has a policy and that every policy
// is well formed.
func Validate() error {
	for _, c := range record.AllCategories() {
		p, err := lookup(c)
		if err != nil {
			return err
		}
		if p.StaleAfter <= 0 || p.EvictAfter <= 0 || p.StaleAfter >= p.EvictAfter {
			return errors.PolicyMisconfiguration(errors.CodeInvalidPolicy, "stale window must be positive and shorter than eviction window").
				WithOperation("policy.Validate").
				WithResource(c.String()).
				WithDetails(fmt.Sprintf("stale=%s evict=%s", p.StaleAfter, p.EvictAfter)).
				Build()
		}
	}
	return nil
}
