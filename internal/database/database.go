package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"card-rewards-api/internal/models"
)

// DB wraps the catalog database connection. The content-management side
// writes cards through it; the engine only ever consumes the loaded catalog
// as a value.
type DB struct {
	conn *sql.DB
}

// NewDB opens the catalog database and initializes the schema.
func NewDB(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// initSchema creates the necessary tables if they don't exist.
func (db *DB) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS cards (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			bank TEXT NOT NULL,
			annual_fee REAL NOT NULL DEFAULT 0,
			min_income REAL NOT NULL DEFAULT 0,
			foreign_currency_fee REAL,
			miles_source_unit TEXT,
			miles_units_per_mile REAL,
			hidden INTEGER NOT NULL DEFAULT 0,
			sort_order INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS card_rules (
			card_id TEXT NOT NULL REFERENCES cards(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			description TEXT NOT NULL,
			match_type TEXT NOT NULL,
			match_values TEXT NOT NULL,
			percentage REAL NOT NULL,
			is_discount INTEGER NOT NULL DEFAULT 0,
			cap REAL,
			cap_type TEXT,
			cap_period TEXT,
			min_spend REAL NOT NULL DEFAULT 0,
			monthly_min_spend REAL NOT NULL DEFAULT 0,
			exclude_categories TEXT NOT NULL,
			valid_from TEXT,
			valid_until TEXT,
			valid_days TEXT NOT NULL,
			valid_dates TEXT NOT NULL,
			is_foreign_currency INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (card_id, position)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rules_card_id ON card_rules(card_id)`,
		`CREATE INDEX IF NOT EXISTS idx_rules_match_type ON card_rules(match_type)`,
		`CREATE INDEX IF NOT EXISTS idx_cards_hidden ON cards(hidden)`,
	}

	for _, query := range queries {
		if _, err := db.conn.Exec(query); err != nil {
			return fmt.Errorf("failed to execute schema query: %w", err)
		}
	}

	return nil
}

// UpsertCard creates or replaces a card and its ordered rules in one
// transaction. Rule order is the catalog author's priority order and is
// preserved through the position column.
func (db *DB) UpsertCard(card models.Card) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var fxFee interface{}
	if card.ForeignCurrencyFee != nil {
		fxFee = *card.ForeignCurrencyFee
	}
	var milesUnit, milesRatio interface{}
	if card.MilesConversion != nil {
		milesUnit = card.MilesConversion.SourceUnit
		milesRatio = card.MilesConversion.UnitsPerMile
	}

	_, err = tx.Exec(`INSERT INTO cards (
		id, name, bank, annual_fee, min_income, foreign_currency_fee,
		miles_source_unit, miles_units_per_mile, hidden, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		bank = excluded.bank,
		annual_fee = excluded.annual_fee,
		min_income = excluded.min_income,
		foreign_currency_fee = excluded.foreign_currency_fee,
		miles_source_unit = excluded.miles_source_unit,
		miles_units_per_mile = excluded.miles_units_per_mile,
		hidden = excluded.hidden,
		updated_at = excluded.updated_at`,
		card.ID, card.Name, card.Bank, card.AnnualFee, card.MinIncome,
		fxFee, milesUnit, milesRatio, card.Hidden,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert card: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM card_rules WHERE card_id = ?`, card.ID); err != nil {
		return fmt.Errorf("failed to clear card rules: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO card_rules (
		card_id, position, description, match_type, match_values, percentage,
		is_discount, cap, cap_type, cap_period, min_spend, monthly_min_spend,
		exclude_categories, valid_from, valid_until, valid_days, valid_dates,
		is_foreign_currency
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare rule statement: %w", err)
	}
	defer stmt.Close()

	for i, rule := range card.Rules {
		var cap, capType, capPeriod interface{}
		if rule.Cap != nil {
			cap = *rule.Cap
			capType = string(rule.CapType)
			capPeriod = string(rule.CapPeriod)
		}
		var validFrom, validUntil interface{}
		if r := rule.ValidDateRange; r != nil {
			if !r.Start.IsZero() {
				validFrom = r.Start.Format(time.RFC3339)
			}
			if !r.End.IsZero() {
				validUntil = r.End.Format(time.RFC3339)
			}
		}

		_, err := stmt.Exec(
			card.ID, i, rule.Description, string(rule.MatchType),
			serializeStrings(rule.MatchValues), rule.Percentage,
			rule.IsDiscount, cap, capType, capPeriod,
			rule.MinSpend, rule.MonthlyMinSpend,
			serializeStrings(rule.ExcludeCategories),
			validFrom, validUntil,
			serializeInts(rule.ValidDays), serializeInts(rule.ValidDates),
			rule.IsForeignCurrency,
		)
		if err != nil {
			return fmt.Errorf("failed to insert rule %d for card %s: %w", i, card.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// DeleteCard removes a card and its rules. It reports whether the card
// existed.
func (db *DB) DeleteCard(cardID string) (bool, error) {
	res, err := db.conn.Exec(`DELETE FROM cards WHERE id = ?`, cardID)
	if err != nil {
		return false, fmt.Errorf("failed to delete card: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// GetCard loads one card with its ordered rules. Returns sql.ErrNoRows
// when the card does not exist.
func (db *DB) GetCard(cardID string) (models.Card, error) {
	row := db.conn.QueryRow(`SELECT id, name, bank, annual_fee, min_income,
		foreign_currency_fee, miles_source_unit, miles_units_per_mile, hidden
		FROM cards WHERE id = ?`, cardID)

	card, err := scanCard(row)
	if err != nil {
		return models.Card{}, err
	}

	rules, err := db.loadRules(cardID)
	if err != nil {
		return models.Card{}, err
	}
	card.Rules = rules

	return card, nil
}

// LoadCatalog loads every card with its ordered rules, in catalog order.
func (db *DB) LoadCatalog() ([]models.Card, error) {
	rows, err := db.conn.Query(`SELECT id, name, bank, annual_fee, min_income,
		foreign_currency_fee, miles_source_unit, miles_units_per_mile, hidden
		FROM cards ORDER BY sort_order, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}
	defer rows.Close()

	var catalog []models.Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		catalog = append(catalog, card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cards: %w", err)
	}

	for i := range catalog {
		rules, err := db.loadRules(catalog[i].ID)
		if err != nil {
			return nil, err
		}
		catalog[i].Rules = rules
	}

	return catalog, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCard(row rowScanner) (models.Card, error) {
	var card models.Card
	var fxFee sql.NullFloat64
	var milesUnit sql.NullString
	var milesRatio sql.NullFloat64

	err := row.Scan(
		&card.ID, &card.Name, &card.Bank, &card.AnnualFee, &card.MinIncome,
		&fxFee, &milesUnit, &milesRatio, &card.Hidden,
	)
	if err != nil {
		return models.Card{}, err
	}

	if fxFee.Valid {
		card.ForeignCurrencyFee = &fxFee.Float64
	}
	if milesUnit.Valid && milesRatio.Valid {
		card.MilesConversion = &models.MilesConversion{
			SourceUnit:   milesUnit.String,
			UnitsPerMile: milesRatio.Float64,
		}
	}

	return card, nil
}

func (db *DB) loadRules(cardID string) ([]models.RewardRule, error) {
	rows, err := db.conn.Query(`SELECT description, match_type, match_values,
		percentage, is_discount, cap, cap_type, cap_period, min_spend,
		monthly_min_spend, exclude_categories, valid_from, valid_until,
		valid_days, valid_dates, is_foreign_currency
		FROM card_rules WHERE card_id = ? ORDER BY position`, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules for card %s: %w", cardID, err)
	}
	defer rows.Close()

	var rules []models.RewardRule
	for rows.Next() {
		var rule models.RewardRule
		var matchValues, excludeCategories, validDays, validDates string
		var cap sql.NullFloat64
		var capType, capPeriod, validFrom, validUntil sql.NullString

		err := rows.Scan(
			&rule.Description, &rule.MatchType, &matchValues,
			&rule.Percentage, &rule.IsDiscount, &cap, &capType, &capPeriod,
			&rule.MinSpend, &rule.MonthlyMinSpend, &excludeCategories,
			&validFrom, &validUntil, &validDays, &validDates,
			&rule.IsForeignCurrency,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}

		rule.MatchValues = deserializeStrings(matchValues)
		rule.ExcludeCategories = deserializeStrings(excludeCategories)
		rule.ValidDays = deserializeInts(validDays)
		rule.ValidDates = deserializeInts(validDates)

		if cap.Valid {
			rule.Cap = &cap.Float64
			rule.CapType = models.CapType(capType.String)
			rule.CapPeriod = models.CapPeriod(capPeriod.String)
		}

		if validFrom.Valid || validUntil.Valid {
			var dr models.DateRange
			if validFrom.Valid {
				dr.Start, err = time.Parse(time.RFC3339, validFrom.String)
				if err != nil {
					return nil, fmt.Errorf("failed to parse valid_from: %w", err)
				}
			}
			if validUntil.Valid {
				dr.End, err = time.Parse(time.RFC3339, validUntil.String)
				if err != nil {
					return nil, fmt.Errorf("failed to parse valid_until: %w", err)
				}
			}
			rule.ValidDateRange = &dr
		}

		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}

	return rules, nil
}

// serializeStrings converts a slice of identifiers to a JSON string.
func serializeStrings(list []string) string {
	if len(list) == 0 {
		return "[]"
	}
	data, err := json.Marshal(list)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// deserializeStrings converts a serialized identifier list back to a slice.
func deserializeStrings(serialized string) []string {
	if serialized == "" || serialized == "[]" {
		return nil
	}
	var result []string
	if err := json.Unmarshal([]byte(serialized), &result); err != nil {
		return nil
	}
	return result
}

func serializeInts(list []int) string {
	if len(list) == 0 {
		return "[]"
	}
	data, err := json.Marshal(list)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func deserializeInts(serialized string) []int {
	if serialized == "" || serialized == "[]" {
		return nil
	}
	var result []int
	if err := json.Unmarshal([]byte(serialized), &result); err != nil {
		return nil
	}
	return result
}
