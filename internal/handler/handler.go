package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"card-rewards-api/internal/category"
	"card-rewards-api/internal/engine"
	"card-rewards-api/internal/models"
	"card-rewards-api/internal/service"
	"card-rewards-api/internal/validation"
)

// Handler provides HTTP handlers for the API.
type Handler struct {
	service     *service.Service
	maxBodySize int64
}

// NewHandlerOptions holds options for creating a handler.
type NewHandlerOptions struct {
	MaxBodySize int64
}

// DefaultHandlerOptions returns default handler options.
func DefaultHandlerOptions() NewHandlerOptions {
	return NewHandlerOptions{
		MaxBodySize: 10 << 20, // 10MB default
	}
}

// NewHandler creates a new handler instance.
func NewHandler(svc *service.Service) *Handler {
	return NewHandlerWithOptions(svc, DefaultHandlerOptions())
}

// NewHandlerWithOptions creates a new handler instance with custom options.
func NewHandlerWithOptions(svc *service.Service, opts NewHandlerOptions) *Handler {
	return &Handler{
		service:     svc,
		maxBodySize: opts.MaxBodySize,
	}
}

// SaveCard handles POST /cards
func (h *Handler) SaveCard(w http.ResponseWriter, r *http.Request) {
	// Limit request body size to prevent abuse
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var card models.Card
	if err := json.NewDecoder(r.Body).Decode(&card); err != nil {
		if err == io.EOF {
			h.respondError(w, http.StatusBadRequest, "request body is required")
			return
		}
		h.respondError(w, http.StatusBadRequest, "invalid JSON in request body")
		return
	}

	if err := h.service.SaveCard(r.Context(), card); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.respondJSON(w, http.StatusCreated, card)
}

// ListCards handles GET /cards
func (h *Handler) ListCards(w http.ResponseWriter, r *http.Request) {
	cards, err := h.service.LoadCatalog(r.Context())
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.respondJSON(w, http.StatusOK, models.CardListResponse{Cards: cards})
}

// GetCard handles GET /cards/{card_id}
func (h *Handler) GetCard(w http.ResponseWriter, r *http.Request) {
	cardID := validation.SanitizeString(chi.URLParam(r, "card_id"))
	if cardID == "" {
		h.respondError(w, http.StatusBadRequest, "card_id is required")
		return
	}

	card, err := h.service.GetCard(r.Context(), cardID)
	if err != nil {
		if errors.Is(err, service.ErrCardNotFound) {
			h.respondError(w, http.StatusNotFound, "card not found")
			return
		}
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.respondJSON(w, http.StatusOK, card)
}

// DeleteCard handles DELETE /cards/{card_id}
func (h *Handler) DeleteCard(w http.ResponseWriter, r *http.Request) {
	cardID := validation.SanitizeString(chi.URLParam(r, "card_id"))
	if cardID == "" {
		h.respondError(w, http.StatusBadRequest, "card_id is required")
		return
	}

	if err := h.service.DeleteCard(r.Context(), cardID); err != nil {
		if errors.Is(err, service.ErrCardNotFound) {
			h.respondError(w, http.StatusNotFound, "card not found")
			return
		}
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Calculate handles POST /calculate
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	// Limit request body size to prevent abuse
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var req models.CalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err == io.EOF {
			h.respondError(w, http.StatusBadRequest, "request body is required")
			return
		}
		h.respondError(w, http.StatusBadRequest, "invalid JSON in request body")
		return
	}

	req.CardID = validation.SanitizeString(req.CardID)
	req.Context.CategoryID = validation.SanitizeString(req.Context.CategoryID)
	req.Context.MerchantID = validation.SanitizeString(req.Context.MerchantID)
	req.Context.PaymentMethod = validation.SanitizeString(req.Context.PaymentMethod)

	resp, err := h.service.Calculate(r.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrCardNotFound) {
			h.respondError(w, http.StatusNotFound, "card not found")
			return
		}
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// ListRankings handles GET /rankings
func (h *Handler) ListRankings(w http.ResponseWriter, r *http.Request) {
	rankings, err := h.service.RankAll(r.Context())
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.respondJSON(w, http.StatusOK, rankings)
}

// GetRanking handles GET /rankings/{category_id}?limit=N
func (h *Handler) GetRanking(w http.ResponseWriter, r *http.Request) {
	categoryID := validation.SanitizeString(chi.URLParam(r, "category_id"))
	if categoryID == "" {
		h.respondError(w, http.StatusBadRequest, "category_id is required")
		return
	}

	limit := 0
	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		parsed, err := strconv.Atoi(limitParam)
		if err != nil || parsed <= 0 {
			h.respondError(w, http.StatusBadRequest, "invalid 'limit' parameter, must be a positive integer")
			return
		}
		limit = parsed
	}

	resp, err := h.service.RankCategory(r.Context(), categoryID, limit)
	if err != nil {
		if errors.Is(err, engine.ErrUnknownCategory) {
			h.respondError(w, http.StatusNotFound, "unknown ranking category")
			return
		}
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// ListCategories handles GET /categories
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, category.Categories)
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// respondJSON sends a JSON response with the given status code.
func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response with the given status code and message.
func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, models.ErrorResponse{Error: message})
}
