package models

import "time"

// MatchType classifies how a reward rule is matched against a spending event.
type MatchType string

const (
	MatchBase          MatchType = "base"
	MatchCategory      MatchType = "category"
	MatchMerchant      MatchType = "merchant"
	MatchPaymentMethod MatchType = "paymentMethod"
)

// CapType says what a rule's cap limits: the spend amount eligible for the
// rate, or the money value of the rebate itself.
type CapType string

const (
	CapSpending CapType = "spending"
	CapReward   CapType = "reward"
)

// CapPeriod is the window a cap applies over.
type CapPeriod string

const (
	PeriodTransaction CapPeriod = "transaction"
	PeriodMonthly     CapPeriod = "monthly"
	PeriodQuarterly   CapPeriod = "quarterly"
	PeriodAnnual      CapPeriod = "annual"
)

// DateRange is an absolute promotional window.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// RewardRule is a single reward condition attached to a card.
// A card's rules are ordered: within a match tier, the earlier rule wins.
type RewardRule struct {
	Description string    `json:"description"`
	MatchType   MatchType `json:"match_type"`
	// MatchValues holds category ids, merchant ids, or payment method ids
	// depending on MatchType. Empty for base rules.
	MatchValues []string `json:"match_values,omitempty"`
	// Percentage is the rebate rate as a percent of spend, e.g. 5 for 5%.
	Percentage float64 `json:"percentage"`
	// IsDiscount marks an instant price reduction rather than a rebate.
	// Discount rules never compete in rankings.
	IsDiscount bool      `json:"is_discount,omitempty"`
	Cap        *float64  `json:"cap,omitempty"`
	CapType    CapType   `json:"cap_type,omitempty"`
	CapPeriod  CapPeriod `json:"cap_period,omitempty"`
	MinSpend   float64   `json:"min_spend,omitempty"`
	// MonthlyMinSpend is a recurring floor; with no spend ledger available it
	// is checked against the transaction amount.
	MonthlyMinSpend   float64    `json:"monthly_min_spend,omitempty"`
	ExcludeCategories []string   `json:"exclude_categories,omitempty"`
	ValidDateRange    *DateRange `json:"valid_date_range,omitempty"`
	// ValidDays holds weekday numbers 0 (Sunday) through 6 (Saturday).
	ValidDays []int `json:"valid_days,omitempty"`
	// ValidDates holds day-of-month numbers 1-31.
	ValidDates []int `json:"valid_dates,omitempty"`
	// IsForeignCurrency restricts the rule to foreign-currency spend.
	IsForeignCurrency bool `json:"is_foreign_currency,omitempty"`
}

// MilesConversion describes how a card's reward currency converts to miles.
type MilesConversion struct {
	// SourceUnit is the reward program, e.g. "Asia Miles" or "Avios".
	SourceUnit string `json:"source_unit"`
	// UnitsPerMile is the factor between reward value and miles.
	UnitsPerMile float64 `json:"units_per_mile"`
}

// Card is an immutable catalog record. It is authored by the content
// management side and read-only to the engine.
type Card struct {
	ID                 string           `json:"id"`
	Name               string           `json:"name"`
	Bank               string           `json:"bank"`
	AnnualFee          float64          `json:"annual_fee"`
	MinIncome          float64          `json:"min_income,omitempty"`
	ForeignCurrencyFee *float64         `json:"foreign_currency_fee,omitempty"` // percent, e.g. 1.95
	MilesConversion    *MilesConversion `json:"miles_conversion,omitempty"`
	// Hidden excludes the card from every computation.
	Hidden bool         `json:"hidden,omitempty"`
	Rules  []RewardRule `json:"rules"`
}

// SpendingContext describes a single spending event under evaluation.
type SpendingContext struct {
	CategoryID        string    `json:"category_id,omitempty"`
	MerchantID        string    `json:"merchant_id,omitempty"`
	PaymentMethod     string    `json:"payment_method,omitempty"`
	Amount            float64   `json:"amount"`
	IsOnline          bool      `json:"is_online,omitempty"`
	IsForeignCurrency bool      `json:"is_foreign_currency,omitempty"`
	EvaluationDate    time.Time `json:"evaluation_date,omitempty"`
	// PriorPeriodSpend is spend already counted against a rule's cap period,
	// supplied by an external ledger when one exists. Zero means no history.
	PriorPeriodSpend float64 `json:"prior_period_spend,omitempty"`
}

// RankingResult is one leaderboard entry. It is derived and ephemeral,
// recomputed on every query.
type RankingResult struct {
	Card       Card       `json:"card"`
	Rule       RewardRule `json:"rule"`
	Percentage float64    `json:"percentage"`
	// NetPercentage is the rate after subtracting the card's FX fee.
	// Only set for foreign-currency categories; may be negative.
	NetPercentage *float64 `json:"net_percentage,omitempty"`
	// DollarsPerMile is the cost to earn one mile. Only set for miles
	// categories; lower is better.
	DollarsPerMile     *float64 `json:"dollars_per_mile,omitempty"`
	MilesProgram       string   `json:"miles_program,omitempty"`
	ForeignCurrencyFee *float64 `json:"foreign_currency_fee,omitempty"`
	// CapAsSpending is the rule's cap expressed as a spending ceiling.
	CapAsSpending   *float64 `json:"cap_as_spending,omitempty"`
	MinSpend        float64  `json:"min_spend,omitempty"`
	MonthlyMinSpend float64  `json:"monthly_min_spend,omitempty"`
}

// CalculationResult is the outcome of evaluating one card against one
// spending event, used by calculator views.
type CalculationResult struct {
	Card            Card       `json:"card"`
	Rule            RewardRule `json:"rule"`
	Percentage      float64    `json:"percentage"`
	RewardAmount    float64    `json:"reward_amount"`
	NetRewardAmount float64    `json:"net_reward_amount"`
	NetPercentage   float64    `json:"net_percentage"`
	FXFee           float64    `json:"fx_fee,omitempty"`
	IsCapped        bool       `json:"is_capped,omitempty"`
}

// CalculateRequest is the request body for POST /calculate.
type CalculateRequest struct {
	// CardID limits the calculation to one card; empty evaluates the catalog.
	CardID  string          `json:"card_id,omitempty"`
	Context SpendingContext `json:"context"`
}

// CalculateResponse is the response payload for a calculation.
type CalculateResponse struct {
	Results []CalculationResult `json:"results"`
}

// RankingResponse is the response payload for a category leaderboard.
type RankingResponse struct {
	CategoryID string          `json:"category_id"`
	Results    []RankingResult `json:"results"`
}

// CardListResponse is the response payload when listing the catalog.
type CardListResponse struct {
	Cards []Card `json:"cards"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}
