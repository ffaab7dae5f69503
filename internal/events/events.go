package events

import (
	"context"
	"sync"
	"time"

	"card-rewards-api/internal/models"
)

// EventType represents the type of event.
type EventType string

const (
	// EventCardUpdated is emitted when a catalog card is created or updated
	EventCardUpdated EventType = "card.updated"
	// EventCardDeleted is emitted when a catalog card is removed
	EventCardDeleted EventType = "card.deleted"
	// EventCalculationPerformed is emitted when a spending event is evaluated
	EventCalculationPerformed EventType = "calculation.performed"
	// EventRankingComputed is emitted when a category leaderboard is computed
	EventRankingComputed EventType = "ranking.computed"
)

// Event represents an event in the system.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Data      interface{}
}

// CardUpdatedData contains data for card updated events.
type CardUpdatedData struct {
	Card models.Card
}

// CardDeletedData contains data for card deleted events.
type CardDeletedData struct {
	CardID string
}

// CalculationPerformedData contains data for calculation events.
type CalculationPerformedData struct {
	Context models.SpendingContext
	Results []models.CalculationResult
}

// RankingComputedData contains data for ranking events.
type RankingComputedData struct {
	CategoryID string
	TopN       int
	Results    []models.RankingResult
	ComputedAt time.Time
}

// Handler is a function that handles events.
type Handler func(ctx context.Context, event Event) error

// Manager manages event handlers and event publishing.
type Manager struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	enabled  bool
}

// NewManager creates a new event manager.
func NewManager(enabled bool) *Manager {
	return &Manager{
		handlers: make(map[EventType][]Handler),
		enabled:  enabled,
	}
}

// Subscribe subscribes a handler to a specific event type.
func (m *Manager) Subscribe(eventType EventType, handler Handler) {
	if !m.enabled {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.handlers[eventType] = append(m.handlers[eventType], handler)
}

// Publish publishes an event to all subscribed handlers.
func (m *Manager) Publish(ctx context.Context, eventType EventType, data interface{}) {
	if !m.enabled {
		return
	}

	m.mu.RLock()
	handlers := m.handlers[eventType]
	m.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	event := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}

	// Execute handlers asynchronously to avoid blocking the request path
	for _, handler := range handlers {
		go func(h Handler) {
			if err := h(ctx, event); err != nil {
				// Handler errors are the subscriber's problem, not the
				// request's.
				_ = err
			}
		}(handler)
	}
}

// PublishCardUpdated publishes a card updated event.
func (m *Manager) PublishCardUpdated(ctx context.Context, card models.Card) {
	m.Publish(ctx, EventCardUpdated, CardUpdatedData{Card: card})
}

// PublishCardDeleted publishes a card deleted event.
func (m *Manager) PublishCardDeleted(ctx context.Context, cardID string) {
	m.Publish(ctx, EventCardDeleted, CardDeletedData{CardID: cardID})
}

// PublishCalculationPerformed publishes a calculation event.
func (m *Manager) PublishCalculationPerformed(ctx context.Context, spendCtx models.SpendingContext, results []models.CalculationResult) {
	m.Publish(ctx, EventCalculationPerformed, CalculationPerformedData{
		Context: spendCtx,
		Results: results,
	})
}

// PublishRankingComputed publishes a ranking computed event.
func (m *Manager) PublishRankingComputed(ctx context.Context, categoryID string, topN int, results []models.RankingResult) {
	m.Publish(ctx, EventRankingComputed, RankingComputedData{
		CategoryID: categoryID,
		TopN:       topN,
		Results:    results,
		ComputedAt: time.Now(),
	})
}

// Shutdown shuts down the event manager.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.enabled = false
	m.handlers = make(map[EventType][]Handler)
}
