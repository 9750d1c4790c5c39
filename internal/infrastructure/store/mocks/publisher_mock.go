package mocks

import (
	"context"
	"sync"

	"github.com/example/plant-store/internal/domain/aggregate"
)

// MockPublisher records published activity events
type MockPublisher struct {
	mu     sync.Mutex
	Events []aggregate.Event
	Keys   []string

	PublishErr error
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, key string, event any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.PublishErr != nil {
		return m.PublishErr
	}
	m.Keys = append(m.Keys, key)
	if e, ok := event.(aggregate.Event); ok {
		m.Events = append(m.Events, e)
	}
	return nil
}

// EventTypes returns the published event types in order
func (m *MockPublisher) EventTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]string, 0, len(m.Events))
	for _, e := range m.Events {
		types = append(types, e.EventType)
	}
	return types
}
