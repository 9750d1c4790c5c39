package mocks

import (
	"context"
	"sync"

	"github.com/example/plant-store/internal/apperr"
	"github.com/example/plant-store/internal/domain/wishlist"
)

// MockWishlistRepository is an in-memory wishlist.Repository
type MockWishlistRepository struct {
	mu        sync.Mutex
	wishlists map[string]*wishlist.Wishlist

	LoadCalls []string
	SaveCalls []wishlist.Wishlist

	LoadErr    error
	SaveErr    error
	BeforeSave func(w *wishlist.Wishlist)
}

// NewMockWishlistRepository creates a new MockWishlistRepository
func NewMockWishlistRepository() *MockWishlistRepository {
	return &MockWishlistRepository{
		wishlists: make(map[string]*wishlist.Wishlist),
	}
}

func (m *MockWishlistRepository) Load(ctx context.Context, userID string) (*wishlist.Wishlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LoadCalls = append(m.LoadCalls, userID)
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	stored, ok := m.wishlists[userID]
	if !ok {
		return nil, nil
	}
	return copyWishlist(stored), nil
}

func (m *MockWishlistRepository) Save(ctx context.Context, w *wishlist.Wishlist) error {
	if m.BeforeSave != nil {
		m.BeforeSave(w)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.SaveCalls = append(m.SaveCalls, *copyWishlist(w))
	if m.SaveErr != nil {
		return m.SaveErr
	}

	stored, exists := m.wishlists[w.UserID]
	switch {
	case w.Version == 0 && exists:
		return apperr.Conflict("wishlist already exists")
	case w.Version != 0 && (!exists || stored.Version != w.Version):
		return apperr.Conflict("wishlist was modified concurrently")
	}

	w.Version++
	m.wishlists[w.UserID] = copyWishlist(w)
	return nil
}

// Put stores a wishlist as-is, bypassing the version check
func (m *MockWishlistRepository) Put(w *wishlist.Wishlist) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wishlists[w.UserID] = copyWishlist(w)
}

// Stored returns the raw stored wishlist for assertions
func (m *MockWishlistRepository) Stored(userID string) *wishlist.Wishlist {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.wishlists[userID]
	if !ok {
		return nil
	}
	return copyWishlist(stored)
}

func copyWishlist(w *wishlist.Wishlist) *wishlist.Wishlist {
	out := *w
	out.Plants = append([]wishlist.WishlistItem(nil), w.Plants...)
	if out.Plants == nil {
		out.Plants = []wishlist.WishlistItem{}
	}
	return &out
}
