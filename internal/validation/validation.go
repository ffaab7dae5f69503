package validation

import (
	"fmt"
	"strings"
	"unicode"

	"card-rewards-api/internal/models"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

var matchTypes = map[models.MatchType]bool{
	models.MatchBase:          true,
	models.MatchCategory:      true,
	models.MatchMerchant:      true,
	models.MatchPaymentMethod: true,
}

var capTypes = map[models.CapType]bool{
	models.CapSpending: true,
	models.CapReward:   true,
}

var capPeriods = map[models.CapPeriod]bool{
	models.PeriodTransaction: true,
	models.PeriodMonthly:     true,
	models.PeriodQuarterly:   true,
	models.PeriodAnnual:      true,
}

// ValidateCard checks a catalog card before it is accepted into the store.
// The one invariant the engine cannot tolerate being broken is the base
// rule: every card must carry exactly one unconditioned base rebate rule.
func ValidateCard(card models.Card) error {
	if card.ID == "" {
		return &ValidationError{Field: "id", Message: "is required"}
	}
	if card.Name == "" {
		return &ValidationError{Field: "name", Message: "is required"}
	}
	if card.Bank == "" {
		return &ValidationError{Field: "bank", Message: "is required"}
	}
	if card.AnnualFee < 0 {
		return &ValidationError{Field: "annual_fee", Message: "must be non-negative"}
	}
	if card.MinIncome < 0 {
		return &ValidationError{Field: "min_income", Message: "must be non-negative"}
	}
	if card.ForeignCurrencyFee != nil && *card.ForeignCurrencyFee < 0 {
		return &ValidationError{Field: "foreign_currency_fee", Message: "must be non-negative"}
	}
	if mc := card.MilesConversion; mc != nil {
		if mc.SourceUnit == "" {
			return &ValidationError{Field: "miles_conversion.source_unit", Message: "is required"}
		}
		if mc.UnitsPerMile <= 0 {
			return &ValidationError{Field: "miles_conversion.units_per_mile", Message: "must be positive"}
		}
	}

	if len(card.Rules) == 0 {
		return &ValidationError{Field: "rules", Message: "at least one rule is required"}
	}

	baseCount := 0
	for i, rule := range card.Rules {
		if err := validateRule(rule); err != nil {
			return &ValidationError{
				Field:   fmt.Sprintf("rules[%d]", i),
				Message: err.Error(),
			}
		}
		if rule.MatchType == models.MatchBase && !rule.IsForeignCurrency {
			baseCount++
		}
	}
	if baseCount == 0 {
		return &ValidationError{Field: "rules", Message: "a base rule is required"}
	}
	if baseCount > 1 {
		return &ValidationError{Field: "rules", Message: "only one base rule is allowed"}
	}

	return nil
}

func validateRule(rule models.RewardRule) error {
	if !matchTypes[rule.MatchType] {
		return &ValidationError{Field: "match_type", Message: fmt.Sprintf("unknown match type %q", rule.MatchType)}
	}
	if rule.MatchType != models.MatchBase && len(rule.MatchValues) == 0 {
		return &ValidationError{Field: "match_values", Message: "required for non-base rules"}
	}
	if rule.MatchType == models.MatchBase && len(rule.MatchValues) > 0 {
		return &ValidationError{Field: "match_values", Message: "must be empty for base rules"}
	}
	if rule.Percentage < 0 {
		return &ValidationError{Field: "percentage", Message: "must be non-negative"}
	}
	if rule.MinSpend < 0 {
		return &ValidationError{Field: "min_spend", Message: "must be non-negative"}
	}
	if rule.MonthlyMinSpend < 0 {
		return &ValidationError{Field: "monthly_min_spend", Message: "must be non-negative"}
	}

	if rule.Cap != nil {
		if *rule.Cap <= 0 {
			return &ValidationError{Field: "cap", Message: "must be positive"}
		}
		if !capTypes[rule.CapType] {
			return &ValidationError{Field: "cap_type", Message: fmt.Sprintf("unknown cap type %q", rule.CapType)}
		}
		if rule.CapPeriod != "" && !capPeriods[rule.CapPeriod] {
			return &ValidationError{Field: "cap_period", Message: fmt.Sprintf("unknown cap period %q", rule.CapPeriod)}
		}
	}

	for _, d := range rule.ValidDays {
		if d < 0 || d > 6 {
			return &ValidationError{Field: "valid_days", Message: "weekday numbers must be 0-6"}
		}
	}
	for _, d := range rule.ValidDates {
		if d < 1 || d > 31 {
			return &ValidationError{Field: "valid_dates", Message: "day-of-month numbers must be 1-31"}
		}
	}

	if r := rule.ValidDateRange; r != nil {
		if r.Start.IsZero() && r.End.IsZero() {
			return &ValidationError{Field: "valid_date_range", Message: "start or end is required"}
		}
		if !r.Start.IsZero() && !r.End.IsZero() && !r.Start.Before(r.End) {
			return &ValidationError{Field: "valid_date_range", Message: "start must be before end"}
		}
	}

	return nil
}

// ValidateContext checks a spending context supplied by a caller.
func ValidateContext(ctx models.SpendingContext) error {
	if ctx.Amount < 0 {
		return &ValidationError{Field: "amount", Message: "must be non-negative"}
	}
	if ctx.PriorPeriodSpend < 0 {
		return &ValidationError{Field: "prior_period_spend", Message: "must be non-negative"}
	}
	return nil
}

// SanitizeString strips control characters and trims whitespace.
func SanitizeString(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)

	return strings.TrimSpace(s)
}

// SanitizeCard sanitizes the user-supplied string fields of a card payload.
func SanitizeCard(card *models.Card) {
	card.ID = SanitizeString(card.ID)
	card.Name = SanitizeString(card.Name)
	card.Bank = SanitizeString(card.Bank)
	for i := range card.Rules {
		rule := &card.Rules[i]
		rule.Description = SanitizeString(rule.Description)
		for j := range rule.MatchValues {
			rule.MatchValues[j] = SanitizeString(rule.MatchValues[j])
		}
		for j := range rule.ExcludeCategories {
			rule.ExcludeCategories[j] = SanitizeString(rule.ExcludeCategories[j])
		}
	}
}
