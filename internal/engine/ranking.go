package engine

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"card-rewards-api/internal/category"
	"card-rewards-api/internal/models"
)

// ErrUnknownCategory indicates a ranking request for a category id that is
// not in the configured table.
var ErrUnknownCategory = errors.New("unknown ranking category")

// RankCategory produces the Top-N leaderboard for a ranking category.
// Each non-hidden card is evaluated under a category-representative spending
// context; a card whose matched rule falls outside the category's rule
// family is excluded, not downgraded. Cash and net-cash categories sort by
// rate descending, miles categories by dollars-per-mile ascending. Ties
// keep catalog order.
func RankCategory(categoryID string, topN int, catalog []models.Card) ([]models.RankingResult, error) {
	cfg, ok := category.ByID(categoryID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, categoryID)
	}
	if topN <= 0 {
		topN = cfg.DefaultLimit
	}

	ctxs := representativeContexts(cfg, catalog)

	var results []models.RankingResult
	for _, card := range catalog {
		if card.Hidden {
			continue
		}
		var best *models.RankingResult
		for _, ctx := range ctxs {
			rule, err := SelectRule(card, ctx)
			if err != nil {
				return nil, err
			}
			if !ruleQualifies(cfg, card, rule) {
				continue
			}
			res := buildResult(cfg, card, rule)
			if best == nil || better(cfg, res, *best) {
				best = &res
			}
		}
		if best != nil {
			results = append(results, *best)
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return better(cfg, results[i], results[j])
	})

	if len(results) > topN {
		results = results[:topN]
	}
	return results, nil
}

// RankAll computes the leaderboard for every configured category.
// A topN of zero or less lets each category use its own default limit.
func RankAll(topN int, catalog []models.Card) (map[string][]models.RankingResult, error) {
	all := make(map[string][]models.RankingResult, len(category.Categories))
	for _, cfg := range category.Categories {
		results, err := RankCategory(cfg.ID, topN, catalog)
		if err != nil {
			return nil, err
		}
		all[cfg.ID] = results
	}
	return all, nil
}

// representativeContexts builds the synthetic spending events a category is
// ranked under. The probe amount is irrelevant to rate comparison but must
// clear every minimum-spend floor present in the catalog so no rule is
// trivially rejected. Payment-method categories yield one context per
// concrete wallet: a rule may enumerate wallets explicitly instead of using
// the generic "mobile" value, and a single probe method would miss it.
func representativeContexts(cfg category.Config, catalog []models.Card) []models.SpendingContext {
	probe := cfg.TypicalSpend
	if probe <= 0 {
		probe = 1
	}
	for _, card := range catalog {
		for _, rule := range card.Rules {
			if rule.MinSpend > probe {
				probe = rule.MinSpend
			}
			if rule.MonthlyMinSpend > probe {
				probe = rule.MonthlyMinSpend
			}
		}
	}

	base := models.SpendingContext{
		Amount:         probe,
		EvaluationDate: time.Now(),
	}
	switch cfg.Kind {
	case category.KindCategory:
		if len(cfg.MatchCategories) > 0 {
			base.CategoryID = cfg.MatchCategories[0]
		}
	case category.KindPaymentMethod:
		var ctxs []models.SpendingContext
		for _, method := range cfg.PaymentMethods {
			// "mobile" is a rule-side alias, not a wallet a customer pays
			// with; any concrete wallet probe reaches "mobile" rules.
			if method == "mobile" {
				continue
			}
			ctx := base
			ctx.PaymentMethod = method
			ctxs = append(ctxs, ctx)
		}
		if len(ctxs) == 0 && len(cfg.PaymentMethods) > 0 {
			ctx := base
			ctx.PaymentMethod = cfg.PaymentMethods[0]
			ctxs = append(ctxs, ctx)
		}
		return ctxs
	case category.KindForeignCurrency:
		base.IsForeignCurrency = true
	}
	return []models.SpendingContext{base}
}

// ruleQualifies reports whether the matched rule belongs to the rule family
// the category ranks. Discount rules never qualify; leaderboards compare
// rebates only.
func ruleQualifies(cfg category.Config, card models.Card, rule models.RewardRule) bool {
	if rule.IsDiscount {
		return false
	}

	switch cfg.Kind {
	case category.KindForeignCurrency:
		return rule.IsForeignCurrency
	case category.KindMiles:
		return card.MilesConversion != nil &&
			card.MilesConversion.UnitsPerMile > 0 &&
			rule.Percentage > 0 &&
			!rule.IsForeignCurrency
	case category.KindBase:
		return rule.MatchType == models.MatchBase && !rule.IsForeignCurrency
	case category.KindPaymentMethod:
		return rule.MatchType == models.MatchPaymentMethod &&
			intersects(rule.MatchValues, cfg.PaymentMethods)
	default:
		return rule.MatchType == models.MatchCategory &&
			intersects(rule.MatchValues, cfg.MatchCategories)
	}
}

// buildResult derives the display fields the presentation layer must not
// recompute: net rate, dollars-per-mile, and the cap as a spending ceiling.
func buildResult(cfg category.Config, card models.Card, rule models.RewardRule) models.RankingResult {
	result := models.RankingResult{
		Card:            card,
		Rule:            rule,
		Percentage:      rule.Percentage,
		CapAsSpending:   CapAsSpending(rule),
		MinSpend:        rule.MinSpend,
		MonthlyMinSpend: rule.MonthlyMinSpend,
	}

	switch cfg.Kind {
	case category.KindForeignCurrency:
		fee := 0.0
		if card.ForeignCurrencyFee != nil {
			fee = *card.ForeignCurrencyFee
			result.ForeignCurrencyFee = card.ForeignCurrencyFee
		}
		// May go negative for low-rebate, high-fee cards; preserved so the
		// sort stays truthful.
		net := rule.Percentage - fee
		result.NetPercentage = &net
	case category.KindMiles:
		dpm := 1 / (rule.Percentage / 100 * card.MilesConversion.UnitsPerMile)
		result.DollarsPerMile = &dpm
		result.MilesProgram = card.MilesConversion.SourceUnit
	}

	return result
}

func better(cfg category.Config, a, b models.RankingResult) bool {
	switch cfg.Kind {
	case category.KindMiles:
		return *a.DollarsPerMile < *b.DollarsPerMile
	case category.KindForeignCurrency:
		return *a.NetPercentage > *b.NetPercentage
	default:
		return a.Percentage > b.Percentage
	}
}

func intersects(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
