package engine

import (
	"errors"
	"fmt"
	"testing"

	"card-rewards-api/internal/category"
	"card-rewards-api/internal/models"
)

func diningCard(id string, pct float64) models.Card {
	return models.Card{
		ID: id, Name: id, Bank: "Test Bank",
		Rules: []models.RewardRule{
			{MatchType: models.MatchCategory, MatchValues: []string{"dining"}, Percentage: pct},
			baseRule(0.4),
		},
	}
}

func TestRankCategory_OrderAndTruncation(t *testing.T) {
	rates := []float64{2, 5, 1, 4, 3, 7, 6}
	catalog := make([]models.Card, 0, len(rates))
	for i, pct := range rates {
		catalog = append(catalog, diningCard(fmt.Sprintf("card-%d", i), pct))
	}

	results, err := RankCategory("dining", 5, catalog)
	if err != nil {
		t.Fatalf("RankCategory failed: %v", err)
	}
	if len(results) != 5 {
		t.Fatalf("Expected exactly 5 results, got %d", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Percentage >= results[i-1].Percentage {
			t.Errorf("Expected strictly descending rates, got %v then %v",
				results[i-1].Percentage, results[i].Percentage)
		}
	}
	if results[0].Percentage != 7 {
		t.Errorf("Expected best rate 7%%, got %v%%", results[0].Percentage)
	}
}

func TestRankCategory_UnknownCategory(t *testing.T) {
	_, err := RankCategory("no-such-category", 5, nil)
	if err == nil {
		t.Fatal("Expected error for unknown category")
	}
	if !errors.Is(err, ErrUnknownCategory) {
		t.Errorf("Expected ErrUnknownCategory, got %v", err)
	}
}

func TestRankCategory_HiddenCardExcluded(t *testing.T) {
	best := diningCard("best", 10)
	best.Hidden = true
	catalog := []models.Card{best, diningCard("other", 2)}

	results, err := RankCategory("dining", 5, catalog)
	if err != nil {
		t.Fatalf("RankCategory failed: %v", err)
	}
	for _, r := range results {
		if r.Card.ID == "best" {
			t.Error("Hidden card must never appear in rankings")
		}
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
}

func TestRankCategory_MilesInversion(t *testing.T) {
	// 4% with 12.5 units per mile => $2.00/mile.
	cheap := models.Card{
		ID:              "cheap-miles",
		MilesConversion: &models.MilesConversion{SourceUnit: "Asia Miles", UnitsPerMile: 12.5},
		Rules:           []models.RewardRule{baseRule(4)},
	}
	// 5% with 5 units per mile => $4.00/mile despite the higher raw rate.
	pricey := models.Card{
		ID:              "pricey-miles",
		MilesConversion: &models.MilesConversion{SourceUnit: "Avios", UnitsPerMile: 5},
		Rules:           []models.RewardRule{baseRule(5)},
	}

	results, err := RankCategory("miles", 5, []models.Card{pricey, cheap})
	if err != nil {
		t.Fatalf("RankCategory failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if results[0].Card.ID != "cheap-miles" {
		t.Errorf("Expected $2.00/mile card first, got %s", results[0].Card.ID)
	}
	if results[0].DollarsPerMile == nil || *results[0].DollarsPerMile != 2 {
		t.Errorf("Expected $2.00/mile, got %v", results[0].DollarsPerMile)
	}
	if results[1].DollarsPerMile == nil || *results[1].DollarsPerMile != 4 {
		t.Errorf("Expected $4.00/mile, got %v", results[1].DollarsPerMile)
	}
	if results[0].MilesProgram != "Asia Miles" {
		t.Errorf("Expected miles program carried through, got %q", results[0].MilesProgram)
	}
}

func TestRankCategory_NonMilesCardExcludedFromMiles(t *testing.T) {
	cashOnly := diningCard("cash-only", 10)

	results, err := RankCategory("miles", 5, []models.Card{cashOnly})
	if err != nil {
		t.Fatalf("RankCategory failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Expected cash-only card excluded from miles category, got %d results", len(results))
	}
}

func TestRankCategory_ForeignCurrencyNetsOutFee(t *testing.T) {
	highRateHighFee := models.Card{
		ID:                 "high-fee",
		ForeignCurrencyFee: fptr(1.95),
		Rules: []models.RewardRule{
			{MatchType: models.MatchBase, Percentage: 2, IsForeignCurrency: true},
			baseRule(0.4),
		},
	}
	noFee := models.Card{
		ID:                 "no-fee",
		ForeignCurrencyFee: fptr(0),
		Rules: []models.RewardRule{
			{MatchType: models.MatchBase, Percentage: 1.5, IsForeignCurrency: true},
			baseRule(0.4),
		},
	}

	results, err := RankCategory("overseas", 5, []models.Card{highRateHighFee, noFee})
	if err != nil {
		t.Fatalf("RankCategory failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	// 1.5 net beats 2 - 1.95 = 0.05 net.
	if results[0].Card.ID != "no-fee" {
		t.Errorf("Expected fee-free card to rank first, got %s", results[0].Card.ID)
	}
	if results[0].NetPercentage == nil || *results[0].NetPercentage != 1.5 {
		t.Errorf("Expected net 1.5, got %v", results[0].NetPercentage)
	}
}

func TestRankCategory_NegativeNetPercentagePreserved(t *testing.T) {
	card := models.Card{
		ID:                 "low-rebate",
		ForeignCurrencyFee: fptr(1.95),
		Rules: []models.RewardRule{
			{MatchType: models.MatchBase, Percentage: 0.4, IsForeignCurrency: true},
			baseRule(0.4),
		},
	}

	results, err := RankCategory("overseas", 5, []models.Card{card})
	if err != nil {
		t.Fatalf("RankCategory failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
	net := results[0].NetPercentage
	if net == nil {
		t.Fatal("Expected net percentage to be set")
	}
	// 0.4 - 1.95: negative, deliberately not floored at zero.
	if *net > -1.54 || *net < -1.56 {
		t.Errorf("Expected net around -1.55, got %v", *net)
	}
}

func TestRankCategory_HigherPriorityCashRuleExcludesNotDowngrades(t *testing.T) {
	// The merchant rule outranks the FX base rule under the representative
	// context, and it is not in the foreign-currency family. The card is
	// excluded, not ranked by some lower-priority FX rule.
	card := models.Card{
		ID:                 "mixed",
		ForeignCurrencyFee: fptr(1.95),
		Rules: []models.RewardRule{
			{MatchType: models.MatchBase, Percentage: 2},
			{MatchType: models.MatchBase, Percentage: 4, IsForeignCurrency: true},
		},
	}

	results, err := RankCategory("overseas", 5, []models.Card{card})
	if err != nil {
		t.Fatalf("RankCategory failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Expected card excluded when the matched rule is outside the family, got %d results", len(results))
	}
}

func TestRankCategory_DiscountRulesNeverRank(t *testing.T) {
	card := models.Card{
		ID: "discount-card",
		Rules: []models.RewardRule{
			{MatchType: models.MatchCategory, MatchValues: []string{"dining"}, Percentage: 8, IsDiscount: true},
			baseRule(0.4),
		},
	}

	results, err := RankCategory("dining", 5, []models.Card{card})
	if err != nil {
		t.Fatalf("RankCategory failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Expected discount rule not to qualify for rankings, got %d results", len(results))
	}
}

func TestRankCategory_TieKeepsCatalogOrder(t *testing.T) {
	catalog := []models.Card{
		diningCard("first", 3),
		diningCard("second", 3),
		diningCard("third", 3),
	}

	results, err := RankCategory("dining", 5, catalog)
	if err != nil {
		t.Fatalf("RankCategory failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}
	for i, id := range []string{"first", "second", "third"} {
		if results[i].Card.ID != id {
			t.Errorf("Expected catalog order preserved at %d, got %s", i, results[i].Card.ID)
		}
	}
}

func TestRankCategory_ProbeAmountClearsMinSpendFloors(t *testing.T) {
	bigSpender := models.Card{
		ID: "big-spender",
		Rules: []models.RewardRule{
			{MatchType: models.MatchCategory, MatchValues: []string{"dining"}, Percentage: 6, MinSpend: 50000},
			baseRule(0.4),
		},
	}

	results, err := RankCategory("dining", 5, []models.Card{bigSpender})
	if err != nil {
		t.Fatalf("RankCategory failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected the high-floor rule to survive the probe amount, got %d results", len(results))
	}
	if results[0].MinSpend != 50000 {
		t.Errorf("Expected min spend carried through for display, got %v", results[0].MinSpend)
	}
}

func TestRankCategory_MobilePaymentCategory(t *testing.T) {
	card := models.Card{
		ID: "wallet-card",
		Rules: []models.RewardRule{
			{MatchType: models.MatchPaymentMethod, MatchValues: []string{"mobile"}, Percentage: 4},
			baseRule(0.4),
		},
	}

	results, err := RankCategory("mobile_payment", 5, []models.Card{card})
	if err != nil {
		t.Fatalf("RankCategory failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
	if results[0].Percentage != 4 {
		t.Errorf("Expected 4%%, got %v%%", results[0].Percentage)
	}
}

func TestRankCategory_ExplicitWalletRuleRanks(t *testing.T) {
	// Catalog rules often enumerate wallets instead of using the generic
	// "mobile" value; they must still rank.
	card := models.Card{
		ID: "explicit-wallets",
		Rules: []models.RewardRule{
			{MatchType: models.MatchPaymentMethod, MatchValues: []string{"apple_pay", "boc_pay"}, Percentage: 2},
			baseRule(0.4),
		},
	}

	results, err := RankCategory("mobile_payment", 5, []models.Card{card})
	if err != nil {
		t.Fatalf("RankCategory failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
	if results[0].Percentage != 2 {
		t.Errorf("Expected 2%%, got %v%%", results[0].Percentage)
	}
}

func TestRankCategory_SingleWalletRuleRanks(t *testing.T) {
	// A rule for one specific wallet ranks even when another wallet probe
	// would only reach the base rule.
	card := models.Card{
		ID: "google-only",
		Rules: []models.RewardRule{
			{MatchType: models.MatchPaymentMethod, MatchValues: []string{"google_pay"}, Percentage: 5},
			baseRule(0.4),
		},
	}

	results, err := RankCategory("mobile_payment", 5, []models.Card{card})
	if err != nil {
		t.Fatalf("RankCategory failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
	if results[0].Percentage != 5 {
		t.Errorf("Expected the wallet rule's 5%%, got %v%%", results[0].Percentage)
	}
}

func TestRankCategory_CapCarriedAsSpending(t *testing.T) {
	card := models.Card{
		ID: "capped",
		Rules: []models.RewardRule{
			{
				MatchType:   models.MatchCategory,
				MatchValues: []string{"dining"},
				Percentage:  5,
				Cap:         fptr(100),
				CapType:     models.CapReward,
				CapPeriod:   models.PeriodMonthly,
			},
			baseRule(0.4),
		},
	}

	results, err := RankCategory("dining", 5, []models.Card{card})
	if err != nil {
		t.Fatalf("RankCategory failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
	if results[0].CapAsSpending == nil || *results[0].CapAsSpending != 2000 {
		t.Errorf("Expected reward cap 100 at 5%% shown as 2000 spend, got %v", results[0].CapAsSpending)
	}
}

func TestRankAll_CoversEveryCategory(t *testing.T) {
	catalog := []models.Card{diningCard("card-1", 3)}

	all, err := RankAll(5, catalog)
	if err != nil {
		t.Fatalf("RankAll failed: %v", err)
	}
	if len(all) != len(category.Categories) {
		t.Errorf("Expected %d categories, got %d", len(category.Categories), len(all))
	}
	if len(all["dining"]) != 1 {
		t.Errorf("Expected dining to rank the card, got %d results", len(all["dining"]))
	}
	if len(all["miles"]) != 0 {
		t.Errorf("Expected no miles results, got %d", len(all["miles"]))
	}
}
