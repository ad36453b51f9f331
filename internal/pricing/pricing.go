// Package pricing computes the amount due for a selected-session set.
// All functions are pure: price is a function of the selection, the current
// time, and the event's pricing configuration.
package pricing

import (
	"time"

	"github.com/acroflow/workshop-registration/internal/model"
)

// Deal labels surfaced to the sign-up form.
const (
	DealEarlyBird            = "Early Bird"
	DealEarlyBirdFullWeekend = "Early Bird Full Weekend"
	DealFullWeekendBundle    = "Full Weekend Bundle"
)

// Compute prices the given session ids at the given instant.
//
// The early-bird deadline is inclusive: a selection priced exactly at the
// deadline still gets early-bird rates. Selecting exactly the full-weekend
// threshold count always routes through the bundle branch, never through
// per-session multiplication. Duplicate ids count once.
func Compute(selectedSessionIDs []string, now time.Time, cfg model.PricingConfig) model.PricingResult {
	count := uniqueCount(selectedSessionIDs)
	isEarlyBird := !now.After(cfg.EarlyBirdDeadline)

	res := model.PricingResult{
		SessionCount:   count,
		IsEarlyBird:    isEarlyBird,
		IsFullWeekend:  count == cfg.FullWeekendThreshold,
		ReferencePrice: int64(count) * cfg.RegularSingle,
	}

	switch {
	case res.IsFullWeekend:
		if isEarlyBird {
			res.ActualPrice = cfg.EarlyBirdFullWeekend
			res.AppliedDeal = DealEarlyBirdFullWeekend
		} else {
			res.ActualPrice = cfg.RegularFullWeekend
			res.AppliedDeal = DealFullWeekendBundle
		}
	case count > 0:
		perSession := cfg.RegularSingle
		if isEarlyBird {
			perSession = cfg.EarlyBirdSingle
			res.AppliedDeal = DealEarlyBird
		}
		res.ActualPrice = int64(count) * perSession
	}

	res.Savings = res.ReferencePrice - res.ActualPrice
	return res
}

func uniqueCount(ids []string) int {
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		seen[id] = true
	}
	return len(seen)
}
