package mocks

import (
	"context"
	"sync"

	"github.com/example/plant-store/internal/apperr"
	"github.com/example/plant-store/internal/domain/cart"
)

// MockCartRepository is an in-memory cart.Repository with the same
// conditional-write semantics as the real stores.
type MockCartRepository struct {
	mu    sync.Mutex
	carts map[string]*cart.Cart

	// For tracking calls in tests
	LoadCalls []string
	SaveCalls []cart.Cart

	LoadErr error
	SaveErr error
	// BeforeSave runs without the lock held, before the version check.
	BeforeSave func(c *cart.Cart)
}

// NewMockCartRepository creates a new MockCartRepository
func NewMockCartRepository() *MockCartRepository {
	return &MockCartRepository{
		carts: make(map[string]*cart.Cart),
	}
}

// Load returns a copy of the stored cart, or nil when there is none
func (m *MockCartRepository) Load(ctx context.Context, userID string) (*cart.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LoadCalls = append(m.LoadCalls, userID)
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	stored, ok := m.carts[userID]
	if !ok {
		return nil, nil
	}
	return copyCart(stored), nil
}

// Save stores a copy when the version matches and advances c.Version
func (m *MockCartRepository) Save(ctx context.Context, c *cart.Cart) error {
	if m.BeforeSave != nil {
		m.BeforeSave(c)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.SaveCalls = append(m.SaveCalls, *copyCart(c))
	if m.SaveErr != nil {
		return m.SaveErr
	}

	stored, exists := m.carts[c.UserID]
	switch {
	case c.Version == 0 && exists:
		return apperr.Conflict("cart already exists")
	case c.Version != 0 && (!exists || stored.Version != c.Version):
		return apperr.Conflict("cart was modified concurrently")
	}

	c.Version++
	m.carts[c.UserID] = copyCart(c)
	return nil
}

// Put stores a cart as-is, bypassing the version check
func (m *MockCartRepository) Put(c *cart.Cart) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[c.UserID] = copyCart(c)
}

// Stored returns the raw stored cart for assertions
func (m *MockCartRepository) Stored(userID string) *cart.Cart {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.carts[userID]
	if !ok {
		return nil
	}
	return copyCart(stored)
}

func copyCart(c *cart.Cart) *cart.Cart {
	out := *c
	out.Items = append([]cart.CartItem(nil), c.Items...)
	if out.Items == nil {
		out.Items = []cart.CartItem{}
	}
	return &out
}
