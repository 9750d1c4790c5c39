package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/plant-store/internal/apperr"
	"github.com/example/plant-store/internal/domain/cart"
	"github.com/example/plant-store/internal/domain/wishlist"
)

const (
	KindCart     = "cart"
	KindWishlist = "wishlist"
)

// Document is an aggregate serialized as JSON, keyed by kind and user.
type Document struct {
	Kind      string
	UserID    string
	Version   int64
	Body      json.RawMessage
	UpdatedAt time.Time
}

// DocumentStore is implemented by stores that hold aggregates as opaque JSON.
type DocumentStore interface {
	// LoadDocument returns (nil, nil) when nothing is stored.
	LoadDocument(ctx context.Context, kind, userID string) (*Document, error)
	// SaveDocument writes doc only if the stored version equals expected;
	// expected zero means the document must not exist yet.
	SaveDocument(ctx context.Context, doc *Document, expected int64) error
}

// DocumentCartRepository adapts a DocumentStore to cart.Repository
type DocumentCartRepository struct {
	docs DocumentStore
}

func NewDocumentCartRepository(docs DocumentStore) *DocumentCartRepository {
	return &DocumentCartRepository{docs: docs}
}

func (r *DocumentCartRepository) Load(ctx context.Context, userID string) (*cart.Cart, error) {
	doc, err := r.docs.LoadDocument(ctx, KindCart, userID)
	if err != nil || doc == nil {
		return nil, err
	}
	var c cart.Cart
	if err := json.Unmarshal(doc.Body, &c); err != nil {
		return nil, apperr.Internal("", fmt.Errorf("decode cart %s: %w", userID, err))
	}
	c.Version = doc.Version
	return &c, nil
}

func (r *DocumentCartRepository) Save(ctx context.Context, c *cart.Cart) error {
	next := *c
	next.Version = c.Version + 1
	body, err := json.Marshal(&next)
	if err != nil {
		return apperr.Internal("", fmt.Errorf("encode cart %s: %w", c.UserID, err))
	}
	doc := &Document{Kind: KindCart, UserID: c.UserID, Version: next.Version, Body: body, UpdatedAt: c.UpdatedAt}
	if err := r.docs.SaveDocument(ctx, doc, c.Version); err != nil {
		return err
	}
	c.Version = next.Version
	return nil
}

// DocumentWishlistRepository adapts a DocumentStore to wishlist.Repository
type DocumentWishlistRepository struct {
	docs DocumentStore
}

func NewDocumentWishlistRepository(docs DocumentStore) *DocumentWishlistRepository {
	return &DocumentWishlistRepository{docs: docs}
}

func (r *DocumentWishlistRepository) Load(ctx context.Context, userID string) (*wishlist.Wishlist, error) {
	doc, err := r.docs.LoadDocument(ctx, KindWishlist, userID)
	if err != nil || doc == nil {
		return nil, err
	}
	var w wishlist.Wishlist
	if err := json.Unmarshal(doc.Body, &w); err != nil {
		return nil, apperr.Internal("", fmt.Errorf("decode wishlist %s: %w", userID, err))
	}
	w.Version = doc.Version
	return &w, nil
}

func (r *DocumentWishlistRepository) Save(ctx context.Context, w *wishlist.Wishlist) error {
	next := *w
	next.Version = w.Version + 1
	body, err := json.Marshal(&next)
	if err != nil {
		return apperr.Internal("", fmt.Errorf("encode wishlist %s: %w", w.UserID, err))
	}
	doc := &Document{Kind: KindWishlist, UserID: w.UserID, Version: next.Version, Body: body, UpdatedAt: w.UpdatedAt}
	if err := r.docs.SaveDocument(ctx, doc, w.Version); err != nil {
		return err
	}
	w.Version = next.Version
	return nil
}
