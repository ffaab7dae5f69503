package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"card-rewards-api/internal/cache"
	"card-rewards-api/internal/category"
	"card-rewards-api/internal/database"
	"card-rewards-api/internal/engine"
	"card-rewards-api/internal/events"
	"card-rewards-api/internal/features"
	"card-rewards-api/internal/models"
	"card-rewards-api/internal/validation"
)

// ErrCardNotFound is returned when a card lookup misses.
var ErrCardNotFound = errors.New("card not found")

// Service provides business logic for the card rewards API.
type Service struct {
	db       *database.DB
	cache    cache.Cache
	cacheTTL time.Duration
	events   *events.Manager
	features *features.Manager
}

// NewService creates a new service instance.
func NewService(db *database.DB, c cache.Cache, cacheTTL time.Duration, ev *events.Manager, ff *features.Manager) *Service {
	return &Service{
		db:       db,
		cache:    c,
		cacheTTL: cacheTTL,
		events:   ev,
		features: ff,
	}
}

// SaveCard validates and stores a card, replacing any existing card with the
// same ID. The catalog and leaderboard caches are invalidated on success.
func (s *Service) SaveCard(ctx context.Context, card models.Card) error {
	validation.SanitizeCard(&card)
	if err := validation.ValidateCard(card); err != nil {
		return err
	}

	if err := s.db.UpsertCard(card); err != nil {
		return fmt.Errorf("failed to save card: %w", err)
	}

	s.invalidateCaches(ctx)
	s.events.PublishCardUpdated(ctx, card)
	return nil
}

// DeleteCard removes a card from the catalog.
func (s *Service) DeleteCard(ctx context.Context, cardID string) error {
	existed, err := s.db.DeleteCard(cardID)
	if err != nil {
		return fmt.Errorf("failed to delete card: %w", err)
	}
	if !existed {
		return ErrCardNotFound
	}

	s.invalidateCaches(ctx)
	s.events.PublishCardDeleted(ctx, cardID)
	return nil
}

// GetCard returns a single card by ID.
func (s *Service) GetCard(ctx context.Context, cardID string) (models.Card, error) {
	card, err := s.db.GetCard(cardID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Card{}, ErrCardNotFound
		}
		return models.Card{}, fmt.Errorf("failed to get card: %w", err)
	}
	return card, nil
}

// LoadCatalog returns every card in catalog order, serving from cache when
// the catalog cache is enabled.
func (s *Service) LoadCatalog(ctx context.Context) ([]models.Card, error) {
	useCache := s.cache != nil && s.features.IsEnabled(features.FeatureCacheEnabled)

	if useCache {
		var cards []models.Card
		if err := cache.GetJSON(ctx, s.cache, cache.CatalogKey, &cards); err == nil {
			return cards, nil
		}
	}

	cards, err := s.db.LoadCatalog()
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	if useCache {
		// Best effort: a cold cache on the next request is acceptable.
		_ = cache.SetJSON(ctx, s.cache, cache.CatalogKey, cards, s.cacheTTL)
	}

	return cards, nil
}

// Calculate evaluates a spending event. When req.CardID is set, only that
// card is evaluated; otherwise the whole catalog is ranked by net reward.
func (s *Service) Calculate(ctx context.Context, req models.CalculateRequest) (models.CalculateResponse, error) {
	if err := validation.ValidateContext(req.Context); err != nil {
		return models.CalculateResponse{}, err
	}

	spendCtx := req.Context
	if !s.features.IsEnabled(features.FeaturePriorSpendCaps) {
		spendCtx.PriorPeriodSpend = 0
	}

	var results []models.CalculationResult

	if req.CardID != "" {
		card, err := s.GetCard(ctx, req.CardID)
		if err != nil {
			return models.CalculateResponse{}, err
		}
		result, err := engine.Calculate(card, spendCtx)
		if err != nil {
			return models.CalculateResponse{}, err
		}
		results = []models.CalculationResult{result}
	} else {
		catalog, err := s.LoadCatalog(ctx)
		if err != nil {
			return models.CalculateResponse{}, err
		}
		results, err = engine.CalculateAll(catalog, spendCtx)
		if err != nil {
			return models.CalculateResponse{}, err
		}
	}

	s.events.PublishCalculationPerformed(ctx, spendCtx, results)
	return models.CalculateResponse{Results: results}, nil
}

// RankCategory returns the top-N cards for one leaderboard category. The
// category may be named by id or by its page slug. Computed leaderboards are
// cached per (category, topN) pair.
func (s *Service) RankCategory(ctx context.Context, categoryID string, topN int) (models.RankingResponse, error) {
	cfg, ok := category.ByID(categoryID)
	if !ok {
		cfg, ok = category.BySlug(categoryID)
	}
	if !ok {
		return models.RankingResponse{}, fmt.Errorf("%w: %s", engine.ErrUnknownCategory, categoryID)
	}
	if topN <= 0 {
		topN = cfg.DefaultLimit
	}

	useCache := s.cache != nil && s.features.IsEnabled(features.FeatureRankingCache)
	key := cache.RankingKey(cfg.ID, topN)

	if useCache {
		var cached models.RankingResponse
		if err := cache.GetJSON(ctx, s.cache, key, &cached); err == nil {
			return cached, nil
		}
	}

	catalog, err := s.LoadCatalog(ctx)
	if err != nil {
		return models.RankingResponse{}, err
	}

	results, err := engine.RankCategory(cfg.ID, topN, catalog)
	if err != nil {
		return models.RankingResponse{}, err
	}

	resp := models.RankingResponse{
		CategoryID: cfg.ID,
		Results:    results,
	}

	if useCache {
		_ = cache.SetJSON(ctx, s.cache, key, resp, s.cacheTTL)
	}

	s.events.PublishRankingComputed(ctx, cfg.ID, topN, results)
	return resp, nil
}

// RankAll computes every category's leaderboard at its default limit.
func (s *Service) RankAll(ctx context.Context) (map[string][]models.RankingResult, error) {
	catalog, err := s.LoadCatalog(ctx)
	if err != nil {
		return nil, err
	}
	return engine.RankAll(0, catalog)
}

// invalidateCaches drops the catalog entry and every cached leaderboard.
// Clear is used because ranking keys are parameterized by limit.
func (s *Service) invalidateCaches(ctx context.Context) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Clear(ctx)
}
