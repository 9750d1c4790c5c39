package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/example/plant-store/internal/domain/aggregate"
	"github.com/example/plant-store/internal/domain/cart"
	"github.com/example/plant-store/internal/domain/wishlist"
	"github.com/example/plant-store/internal/logger"
)

// Stats is a snapshot of what the handler has seen.
type Stats struct {
	Events  map[string]int64 `json:"events"`
	Users   int              `json:"users"`
	Skipped int64            `json:"skipped"`
}

// Handler consumes cart and wishlist activity events and keeps counters.
type Handler struct {
	log *logger.Logger

	mu       sync.Mutex
	counts   map[string]int64
	lastSeen map[string]int64 // user -> last version seen per aggregate
	skipped  int64
}

func NewHandler(log *logger.Logger) *Handler {
	return &Handler{
		log:      log.With("component", "activity"),
		counts:   make(map[string]int64),
		lastSeen: make(map[string]int64),
	}
}

// HandleEvent processes an event from Kafka
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var event aggregate.Event
	if err := json.Unmarshal(value, &event); err != nil {
		h.skip()
		return fmt.Errorf("decode activity event: %w", err)
	}

	var err error
	switch event.AggregateType {
	case cart.AggregateType:
		err = h.handleCartEvent(event)
	case wishlist.AggregateType:
		err = h.handleWishlistEvent(event)
	default:
		h.skip()
		return nil
	}
	if err != nil {
		h.skip()
		return err
	}

	h.record(event)
	return nil
}

func (h *Handler) handleCartEvent(event aggregate.Event) error {
	switch event.EventType {
	case cart.EventItemAdded:
		var e cart.ItemAdded
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		h.log.Info("cart item added", "user_id", event.UserID, "plant_id", e.PlantID,
			"quantity", e.Quantity, "merged", e.Merged, "total_items", e.TotalItems)

	case cart.EventItemQuantityUpdated:
		var e cart.ItemQuantityUpdated
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		h.log.Info("cart quantity updated", "user_id", event.UserID, "plant_id", e.PlantID, "quantity", e.Quantity)

	case cart.EventItemRemoved:
		var e cart.ItemRemoved
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		h.log.Info("cart item removed", "user_id", event.UserID, "plant_id", e.PlantID, "total_items", e.TotalItems)

	case cart.EventCartCleared:
		var e cart.Cleared
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		h.log.Info("cart cleared", "user_id", event.UserID, "removed_items", e.RemovedItems)

	default:
		return fmt.Errorf("unknown cart event %q", event.EventType)
	}
	return nil
}

func (h *Handler) handleWishlistEvent(event aggregate.Event) error {
	switch event.EventType {
	case wishlist.EventPlantAdded:
		var e wishlist.PlantAdded
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		h.log.Info("wishlist plant added", "user_id", event.UserID, "plant_id", e.PlantID, "total_items", e.TotalItems)

	case wishlist.EventPlantRemoved:
		var e wishlist.PlantRemoved
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		h.log.Info("wishlist plant removed", "user_id", event.UserID, "plant_id", e.PlantID, "total_items", e.TotalItems)

	default:
		return fmt.Errorf("unknown wishlist event %q", event.EventType)
	}
	return nil
}

func (h *Handler) record(event aggregate.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.counts[event.EventType]++
	key := event.AggregateType + ":" + event.UserID
	if prev, ok := h.lastSeen[key]; ok && event.Version <= prev {
		// Redelivery or reordering; the store version is authoritative.
		h.log.Debug("out of order activity event", "key", key, "version", event.Version, "last", prev)
		return
	}
	h.lastSeen[key] = event.Version
}

func (h *Handler) skip() {
	h.mu.Lock()
	h.skipped++
	h.mu.Unlock()
}

// Stats returns a copy of the current counters.
func (h *Handler) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	events := make(map[string]int64, len(h.counts))
	for k, v := range h.counts {
		events[k] = v
	}
	users := make(map[string]struct{})
	for key := range h.lastSeen {
		_, user, _ := strings.Cut(key, ":")
		users[user] = struct{}{}
	}
	return Stats{Events: events, Users: len(users), Skipped: h.skipped}
}
