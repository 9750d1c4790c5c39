package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/example/plant-store/internal/apperr"
	"github.com/example/plant-store/internal/domain/plant"
	"github.com/example/plant-store/internal/logger"
)

// DefaultMutationAttempts bounds how often a read-modify-write is re-run
// after losing a version race.
const DefaultMutationAttempts = 3

// Mutate runs one read-modify-write cycle, re-running it from the load when
// the store reports a version conflict. Any other error ends the loop.
func Mutate(ctx context.Context, attempts int, fn func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return apperr.Transient("request cancelled", ctxErr)
		}
		err = fn(ctx)
		if err == nil || !errors.Is(err, apperr.ErrConflict) {
			return err
		}
	}
	return err
}

// Hydrate resolves each distinct id against the catalog. Ids that no longer
// resolve are absent from the result; that is not an error.
func Hydrate(ctx context.Context, catalog plant.Catalog, ids []string) (map[string]*plant.Plant, error) {
	if len(ids) == 0 {
		return map[string]*plant.Plant{}, nil
	}
	seen := make(map[string]struct{}, len(ids))
	distinct := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		distinct = append(distinct, id)
	}
	plants, err := catalog.ResolveMany(ctx, distinct)
	if err != nil {
		return nil, fmt.Errorf("hydrate plants: %w", err)
	}
	if plants == nil {
		plants = map[string]*plant.Plant{}
	}
	return plants, nil
}

// ResolveForMutation looks up a plant before it is referenced by a mutation.
func ResolveForMutation(ctx context.Context, catalog plant.Catalog, plantID string) (*plant.Plant, error) {
	if err := plant.ValidateID(plantID); err != nil {
		return nil, err
	}
	p, err := catalog.Resolve(ctx, plantID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, plant.ErrPlantNotFound
	}
	return p, nil
}

// Event is an activity record published after an aggregate is persisted.
type Event struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	EventType     string          `json:"event_type"`
	UserID        string          `json:"user_id"`
	Version       int64           `json:"version"`
	Data          json.RawMessage `json:"data"`
	Timestamp     time.Time       `json:"timestamp"`
}

func NewEvent(aggregateType, eventType, userID string, version int64, data any) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:            uuid.New().String(),
		AggregateType: aggregateType,
		EventType:     eventType,
		UserID:        userID,
		Version:       version,
		Data:          raw,
		Timestamp:     time.Now().UTC(),
	}, nil
}

// Publisher delivers activity events keyed by user.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// Emit publishes an activity event. The aggregate is already persisted at
// this point, so failures are logged and swallowed.
func Emit(ctx context.Context, pub Publisher, log *logger.Logger, aggregateType, eventType, userID string, version int64, data any) {
	if pub == nil {
		return
	}
	event, err := NewEvent(aggregateType, eventType, userID, version, data)
	if err != nil {
		log.Warn("build activity event", "event_type", eventType, "user_id", userID, "error", err)
		return
	}
	if err := pub.Publish(ctx, userID, event); err != nil {
		log.Warn("publish activity event", "event_type", eventType, "user_id", userID, "error", err)
	}
}
