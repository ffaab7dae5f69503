package engine

import "card-rewards-api/internal/models"

// Reward computes the money value of the rebate a rule yields for the event.
// A spending cap limits the amount eligible for the rate; a reward cap
// limits the rebate value itself. PriorPeriodSpend on the context shrinks
// the remaining headroom of monthly, quarterly, and annual caps; without an
// external ledger it is zero and the cap applies to the event alone.
func Reward(rule models.RewardRule, ctx models.SpendingContext) (float64, bool) {
	amount := ctx.Amount
	rate := rule.Percentage / 100

	if rule.Cap == nil {
		return amount * rate, false
	}

	prior := 0.0
	switch rule.CapPeriod {
	case models.PeriodMonthly, models.PeriodQuarterly, models.PeriodAnnual:
		prior = ctx.PriorPeriodSpend
	}

	switch rule.CapType {
	case models.CapReward:
		remaining := *rule.Cap - prior*rate
		if remaining < 0 {
			remaining = 0
		}
		reward := amount * rate
		if reward > remaining {
			return remaining, true
		}
		return reward, false
	default: // spending cap
		remaining := *rule.Cap - prior
		if remaining < 0 {
			remaining = 0
		}
		if amount > remaining {
			return remaining * rate, true
		}
		return amount * rate, false
	}
}

// CapAsSpending expresses a rule's cap as a spending ceiling for display.
// Reward caps are converted through the rule's rate; rules without a cap
// return nil.
func CapAsSpending(rule models.RewardRule) *float64 {
	if rule.Cap == nil {
		return nil
	}
	if rule.CapType == models.CapReward {
		if rule.Percentage <= 0 {
			return nil
		}
		v := *rule.Cap / rule.Percentage * 100
		return &v
	}
	v := *rule.Cap
	return &v
}
