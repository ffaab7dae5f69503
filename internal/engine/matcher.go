package engine

import (
	"errors"
	"fmt"
	"time"

	"card-rewards-api/internal/models"
)

// ErrNoBaseRule indicates a catalog card without a base rule. Every card is
// expected to carry one as the fallback of last resort; its absence is a
// content authoring bug, not a condition to recover from.
var ErrNoBaseRule = errors.New("card has no base rule")

// mobileWallets are payment methods a rule value of "mobile" stands for.
var mobileWallets = map[string]bool{
	"apple_pay":   true,
	"google_pay":  true,
	"samsung_pay": true,
	"boc_pay":     true,
}

// SelectRule returns the single reward rule applicable to the card for the
// given spending event. Match tiers are tried from most to least specific
// (merchant, category, payment method, base); within a tier the rule
// appearing earliest in the card's rule order wins. A candidate that fails
// its validity conditions is skipped and the search degrades to the next
// tier, so the base rule is always the terminal answer.
func SelectRule(card models.Card, ctx models.SpendingContext) (models.RewardRule, error) {
	when := ctx.EvaluationDate
	if when.IsZero() {
		when = time.Now()
	}

	if ctx.MerchantID != "" {
		for _, rule := range card.Rules {
			if rule.MatchType != models.MatchMerchant {
				continue
			}
			if contains(rule.MatchValues, ctx.MerchantID) && ruleApplies(rule, ctx, when) {
				return rule, nil
			}
		}
	}

	for _, rule := range card.Rules {
		if rule.MatchType != models.MatchCategory {
			continue
		}
		if !matchesCategoryTier(rule, ctx) {
			continue
		}
		if ruleApplies(rule, ctx, when) {
			return rule, nil
		}
	}

	if ctx.PaymentMethod != "" {
		for _, rule := range card.Rules {
			if rule.MatchType != models.MatchPaymentMethod {
				continue
			}
			if !matchesPaymentMethod(rule.MatchValues, ctx.PaymentMethod) {
				continue
			}
			if ruleApplies(rule, ctx, when) {
				return rule, nil
			}
		}
	}

	var fallback *models.RewardRule
	for i, rule := range card.Rules {
		if rule.MatchType != models.MatchBase {
			continue
		}
		if fallback == nil {
			fallback = &card.Rules[i]
		}
		if ruleApplies(rule, ctx, when) {
			return rule, nil
		}
	}

	// A base rule exists but carries conditions the event does not meet.
	// Totality still holds: the first base rule is the answer of last resort.
	if fallback != nil {
		return *fallback, nil
	}

	return models.RewardRule{}, fmt.Errorf("card %s: %w", card.ID, ErrNoBaseRule)
}

// ruleApplies checks the validity conditions shared by every match tier.
func ruleApplies(rule models.RewardRule, ctx models.SpendingContext, when time.Time) bool {
	if rule.IsForeignCurrency && !ctx.IsForeignCurrency {
		return false
	}

	if ctx.CategoryID != "" && contains(rule.ExcludeCategories, ctx.CategoryID) {
		return false
	}

	if r := rule.ValidDateRange; r != nil {
		if !r.Start.IsZero() && when.Before(r.Start) {
			return false
		}
		if !r.End.IsZero() && when.After(r.End) {
			return false
		}
	}

	if len(rule.ValidDays) > 0 || len(rule.ValidDates) > 0 {
		dayOK := containsInt(rule.ValidDays, int(when.Weekday()))
		dateOK := containsInt(rule.ValidDates, when.Day())
		if !dayOK && !dateOK {
			return false
		}
	}

	if ctx.Amount < rule.MinSpend {
		return false
	}
	// No spend ledger is available here, so the recurring floor is checked
	// against the transaction amount.
	if ctx.Amount < rule.MonthlyMinSpend {
		return false
	}

	return true
}

func matchesCategoryTier(rule models.RewardRule, ctx models.SpendingContext) bool {
	if ctx.CategoryID != "" && contains(rule.MatchValues, ctx.CategoryID) {
		return true
	}
	// Online purchases match "online" category rules even when the caller
	// identifies the event by merchant or payment method only.
	if ctx.IsOnline && contains(rule.MatchValues, "online") {
		return true
	}
	return false
}

func matchesPaymentMethod(values []string, method string) bool {
	if contains(values, method) {
		return true
	}
	// "mobile" in a rule stands for any mobile wallet.
	if contains(values, "mobile") && mobileWallets[method] {
		return true
	}
	return false
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

func containsInt(values []int, v int) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
