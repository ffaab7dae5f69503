package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"card-rewards-api/internal/cache"
	"card-rewards-api/internal/database"
	"card-rewards-api/internal/events"
	"card-rewards-api/internal/features"
	"card-rewards-api/internal/models"
	"card-rewards-api/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func setupTestHandler(t *testing.T) (*Handler, func()) {
	dbPath := "./test_handler_" + uuid.New().String() + ".db"
	db, err := database.NewDB(dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	svc := service.NewService(db, cache.NewInMemoryCache(), 5*time.Minute, events.NewManager(false), features.NewManager())
	h := NewHandler(svc)

	cleanup := func() {
		db.Close()
		os.Remove(dbPath)
	}

	return h, cleanup
}

func setupRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Post("/cards", h.SaveCard)
	r.Get("/cards", h.ListCards)
	r.Get("/cards/{card_id}", h.GetCard)
	r.Delete("/cards/{card_id}", h.DeleteCard)
	r.Post("/calculate", h.Calculate)
	r.Get("/rankings", h.ListRankings)
	r.Get("/rankings/{category_id}", h.GetRanking)
	r.Get("/categories", h.ListCategories)
	r.Get("/health", h.Health)
	return r
}

func sampleCard(id string, diningRate float64) models.Card {
	return models.Card{
		ID:   id,
		Name: "Sample " + id,
		Bank: "Sample Bank",
		Rules: []models.RewardRule{
			{
				Description: "Dining",
				MatchType:   models.MatchCategory,
				MatchValues: []string{"dining"},
				Percentage:  diningRate,
			},
			{
				Description: "Base",
				MatchType:   models.MatchBase,
				Percentage:  0.4,
			},
		},
	}
}

func postCard(t *testing.T, r *chi.Mux, card models.Card) {
	t.Helper()
	body, _ := json.Marshal(card)
	req := httptest.NewRequest("POST", "/cards", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201 creating card, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestHealthCheck(t *testing.T) {
	h, cleanup := setupTestHandler(t)
	defer cleanup()
	r := setupRouter(h)

	req := httptest.NewRequest("GET", "/health", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}
}

func TestSaveCard_Created(t *testing.T) {
	h, cleanup := setupTestHandler(t)
	defer cleanup()
	r := setupRouter(h)

	postCard(t, r, sampleCard("visa-gold", 4))

	req := httptest.NewRequest("GET", "/cards/visa-gold", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}

	var got models.Card
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if got.Name != "Sample visa-gold" {
		t.Errorf("Expected card name to round-trip, got %q", got.Name)
	}
}

func TestSaveCard_EmptyBody(t *testing.T) {
	h, cleanup := setupTestHandler(t)
	defer cleanup()
	r := setupRouter(h)

	req := httptest.NewRequest("POST", "/cards", bytes.NewReader(nil))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rr.Code)
	}
}

func TestSaveCard_InvalidJSON(t *testing.T) {
	h, cleanup := setupTestHandler(t)
	defer cleanup()
	r := setupRouter(h)

	req := httptest.NewRequest("POST", "/cards", bytes.NewReader([]byte("{not json")))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rr.Code)
	}
}

func TestSaveCard_MissingBaseRule(t *testing.T) {
	h, cleanup := setupTestHandler(t)
	defer cleanup()
	r := setupRouter(h)

	card := sampleCard("no-base", 4)
	card.Rules = card.Rules[:1]
	body, _ := json.Marshal(card)

	req := httptest.NewRequest("POST", "/cards", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for card without base rule, got %d", rr.Code)
	}
}

func TestGetCard_NotFound(t *testing.T) {
	h, cleanup := setupTestHandler(t)
	defer cleanup()
	r := setupRouter(h)

	req := httptest.NewRequest("GET", "/cards/"+uuid.New().String(), nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rr.Code)
	}
}

func TestDeleteCard(t *testing.T) {
	h, cleanup := setupTestHandler(t)
	defer cleanup()
	r := setupRouter(h)

	postCard(t, r, sampleCard("temp", 2))

	req := httptest.NewRequest("DELETE", "/cards/temp", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d", rr.Code)
	}

	req = httptest.NewRequest("DELETE", "/cards/temp", nil)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 on second delete, got %d", rr.Code)
	}
}

func TestListCards(t *testing.T) {
	h, cleanup := setupTestHandler(t)
	defer cleanup()
	r := setupRouter(h)

	postCard(t, r, sampleCard("one", 2))
	postCard(t, r, sampleCard("two", 3))

	req := httptest.NewRequest("GET", "/cards", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}

	var resp models.CardListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if len(resp.Cards) != 2 {
		t.Errorf("Expected 2 cards, got %d", len(resp.Cards))
	}
}

func TestCalculate_RanksCatalog(t *testing.T) {
	h, cleanup := setupTestHandler(t)
	defer cleanup()
	r := setupRouter(h)

	postCard(t, r, sampleCard("weak", 1))
	postCard(t, r, sampleCard("strong", 5))

	body, _ := json.Marshal(models.CalculateRequest{
		Context: models.SpendingContext{CategoryID: "dining", Amount: 100},
	})
	req := httptest.NewRequest("POST", "/calculate", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp models.CalculateResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(resp.Results))
	}
	if resp.Results[0].Card.ID != "strong" {
		t.Errorf("Expected best card first, got %s", resp.Results[0].Card.ID)
	}
}

func TestCalculate_UnknownCard(t *testing.T) {
	h, cleanup := setupTestHandler(t)
	defer cleanup()
	r := setupRouter(h)

	body, _ := json.Marshal(models.CalculateRequest{
		CardID:  uuid.New().String(),
		Context: models.SpendingContext{Amount: 50},
	})
	req := httptest.NewRequest("POST", "/calculate", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rr.Code)
	}
}

func TestCalculate_NegativeAmount(t *testing.T) {
	h, cleanup := setupTestHandler(t)
	defer cleanup()
	r := setupRouter(h)

	body, _ := json.Marshal(models.CalculateRequest{
		Context: models.SpendingContext{Amount: -10},
	})
	req := httptest.NewRequest("POST", "/calculate", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rr.Code)
	}
}

func TestGetRanking_ReturnsLeaderboard(t *testing.T) {
	h, cleanup := setupTestHandler(t)
	defer cleanup()
	r := setupRouter(h)

	postCard(t, r, sampleCard("card-a", 3))
	postCard(t, r, sampleCard("card-b", 6))

	req := httptest.NewRequest("GET", "/rankings/dining?limit=1", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp models.RankingResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("Expected 1 result with limit=1, got %d", len(resp.Results))
	}
	if resp.Results[0].Card.ID != "card-b" {
		t.Errorf("Expected card-b first, got %s", resp.Results[0].Card.ID)
	}
}

func TestGetRanking_BySlug(t *testing.T) {
	h, cleanup := setupTestHandler(t)
	defer cleanup()
	r := setupRouter(h)

	postCard(t, r, sampleCard("sluggish", 3))

	req := httptest.NewRequest("GET", "/rankings/best-dining-cards", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp models.RankingResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp.CategoryID != "dining" {
		t.Errorf("Expected the slug to resolve to dining, got %s", resp.CategoryID)
	}
	if len(resp.Results) != 1 {
		t.Errorf("Expected 1 result, got %d", len(resp.Results))
	}
}

func TestGetRanking_UnknownCategory(t *testing.T) {
	h, cleanup := setupTestHandler(t)
	defer cleanup()
	r := setupRouter(h)

	req := httptest.NewRequest("GET", "/rankings/nonexistent", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rr.Code)
	}
}

func TestGetRanking_InvalidLimit(t *testing.T) {
	h, cleanup := setupTestHandler(t)
	defer cleanup()
	r := setupRouter(h)

	req := httptest.NewRequest("GET", "/rankings/dining?limit=abc", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rr.Code)
	}
}

func TestListRankings(t *testing.T) {
	h, cleanup := setupTestHandler(t)
	defer cleanup()
	r := setupRouter(h)

	postCard(t, r, sampleCard("lone", 2))

	req := httptest.NewRequest("GET", "/rankings", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}

	var rankings map[string][]models.RankingResult
	if err := json.Unmarshal(rr.Body.Bytes(), &rankings); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if _, ok := rankings["dining"]; !ok {
		t.Error("Expected a dining leaderboard in the response")
	}
}

func TestListCategories(t *testing.T) {
	h, cleanup := setupTestHandler(t)
	defer cleanup()
	r := setupRouter(h)

	req := httptest.NewRequest("GET", "/categories", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}

	var cats []map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &cats); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if len(cats) == 0 {
		t.Error("Expected at least one category")
	}
}
