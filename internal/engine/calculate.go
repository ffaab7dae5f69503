package engine

import (
	"sort"

	"card-rewards-api/internal/models"
)

// Calculate evaluates one card against one spending event and reports the
// matched rule with its reward value. For foreign-currency events the card's
// FX fee is netted out of the reward, floored at zero.
func Calculate(card models.Card, ctx models.SpendingContext) (models.CalculationResult, error) {
	rule, err := SelectRule(card, ctx)
	if err != nil {
		return models.CalculationResult{}, err
	}

	reward, capped := Reward(rule, ctx)

	// Effective rate reflects capping when an amount is given.
	percentage := rule.Percentage
	if ctx.Amount > 0 {
		percentage = reward / ctx.Amount * 100
	}

	result := models.CalculationResult{
		Card:            card,
		Rule:            rule,
		Percentage:      percentage,
		RewardAmount:    reward,
		NetRewardAmount: reward,
		NetPercentage:   percentage,
		IsCapped:        capped,
	}

	if ctx.IsForeignCurrency && card.ForeignCurrencyFee != nil {
		fee := *card.ForeignCurrencyFee
		result.FXFee = fee
		net := reward - ctx.Amount*fee/100
		if net < 0 {
			net = 0
		}
		result.NetRewardAmount = net
		if ctx.Amount > 0 {
			result.NetPercentage = net / ctx.Amount * 100
		}
	}

	return result, nil
}

// CalculateAll evaluates every non-hidden card in the catalog against the
// event and returns the results ordered best-first by net reward. Ties keep
// catalog order.
func CalculateAll(catalog []models.Card, ctx models.SpendingContext) ([]models.CalculationResult, error) {
	results := make([]models.CalculationResult, 0, len(catalog))
	for _, card := range catalog {
		if card.Hidden {
			continue
		}
		res, err := Calculate(card, ctx)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].NetRewardAmount > results[j].NetRewardAmount
	})

	return results, nil
}
