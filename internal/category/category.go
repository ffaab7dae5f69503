package category

// Kind selects the family of rules a ranking category accepts.
type Kind string

const (
	// KindCategory accepts category-match rules whose values intersect
	// MatchCategories.
	KindCategory Kind = "category"
	// KindPaymentMethod accepts payment-method rules whose values intersect
	// PaymentMethods.
	KindPaymentMethod Kind = "paymentMethod"
	// KindForeignCurrency accepts foreign-currency rules; ranking nets out
	// the card's FX fee.
	KindForeignCurrency Kind = "foreignCurrency"
	// KindMiles accepts rules on cards with a miles conversion; ranking
	// compares dollars-per-mile, lower is better.
	KindMiles Kind = "miles"
	// KindBase accepts non-FX base rules.
	KindBase Kind = "base"
)

// Config is a static ranking-category definition. The table is engine
// configuration, not computed data.
type Config struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Slug            string   `json:"slug"`
	Kind            Kind     `json:"kind"`
	MatchCategories []string `json:"match_categories,omitempty"`
	PaymentMethods  []string `json:"payment_methods,omitempty"`
	// TypicalSpend seeds the probe amount for the category-representative
	// spending context.
	TypicalSpend float64 `json:"typical_spend,omitempty"`
	// DefaultLimit is the leaderboard size when the caller does not ask for
	// a specific N.
	DefaultLimit int `json:"default_limit"`
}

// Categories is the fixed table of supported ranking categories.
var Categories = []Config{
	{
		ID:              "dining",
		Name:            "Dining",
		Slug:            "best-dining-cards",
		Kind:            KindCategory,
		MatchCategories: []string{"dining"},
		TypicalSpend:    500,
		DefaultLimit:    10,
	},
	{
		ID:              "hkd_online",
		Name:            "HKD Online Shopping",
		Slug:            "best-hkd-online-cards",
		Kind:            KindCategory,
		MatchCategories: []string{"online"},
		TypicalSpend:    800,
		DefaultLimit:    10,
	},
	{
		ID:           "foreign_online",
		Name:         "Foreign Online Shopping",
		Slug:         "best-foreign-online-cards",
		Kind:         KindForeignCurrency,
		TypicalSpend: 800,
		DefaultLimit: 10,
	},
	{
		ID:              "supermarket",
		Name:            "Supermarket",
		Slug:            "best-supermarket-cards",
		Kind:            KindCategory,
		MatchCategories: []string{"supermarket"},
		TypicalSpend:    400,
		DefaultLimit:    10,
	},
	{
		ID:              "travel",
		Name:            "Travel",
		Slug:            "best-travel-cards",
		Kind:            KindCategory,
		MatchCategories: []string{"travel"},
		TypicalSpend:    3000,
		DefaultLimit:    10,
	},
	{
		ID:           "overseas",
		Name:         "Overseas",
		Slug:         "best-overseas-cards",
		Kind:         KindForeignCurrency,
		TypicalSpend: 2000,
		DefaultLimit: 10,
	},
	{
		ID:             "mobile_payment",
		Name:           "Mobile Payment",
		Slug:           "best-mobile-payment-cards",
		Kind:           KindPaymentMethod,
		PaymentMethods: []string{"mobile", "apple_pay", "google_pay"},
		TypicalSpend:   300,
		DefaultLimit:   10,
	},
	{
		ID:           "miles",
		Name:         "Miles",
		Slug:         "best-miles-cards",
		Kind:         KindMiles,
		TypicalSpend: 2000,
		DefaultLimit: 10,
	},
	{
		ID:           "all_round",
		Name:         "All Round",
		Slug:         "best-all-round-cards",
		Kind:         KindBase,
		TypicalSpend: 500,
		DefaultLimit: 10,
	},
}

// ByID returns the category with the given id.
func ByID(id string) (Config, bool) {
	for _, c := range Categories {
		if c.ID == id {
			return c, true
		}
	}
	return Config{}, false
}

// BySlug returns the category with the given URL slug.
func BySlug(slug string) (Config, bool) {
	for _, c := range Categories {
		if c.Slug == slug {
			return c, true
		}
	}
	return Config{}, false
}
