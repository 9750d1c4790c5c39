package cart

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/plant-store/internal/apperr"
	"github.com/example/plant-store/internal/domain/aggregate"
	"github.com/example/plant-store/internal/domain/plant"
	"github.com/example/plant-store/internal/logger"
	"github.com/example/plant-store/internal/readmodel"
)

const AggregateType = "Cart"

var (
	ErrCartNotFound    = apperr.New(apperr.KindNotFound, "Cart not found")
	ErrItemNotFound    = apperr.New(apperr.KindNotFound, "Item not found in cart")
	ErrInvalidQuantity = apperr.New(apperr.KindInvalidArgument, "Quantity must be greater than 0")
	ErrUserIDRequired  = apperr.New(apperr.KindInvalidArgument, "User ID is required")
)

type CartItem struct {
	PlantID  string          `json:"plantId"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	AddedAt  time.Time       `json:"addedAt"`
}

// Cart is one user's cart. TotalItems and TotalAmount are derived from Items
// and are recomputed before every save.
type Cart struct {
	UserID      string          `json:"userId"`
	Items       []CartItem      `json:"items"`
	TotalItems  int             `json:"totalItems"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Version     int64           `json:"version"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func New(userID string, now time.Time) *Cart {
	return &Cart{
		UserID:      userID,
		Items:       []CartItem{},
		TotalAmount: decimal.Zero,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Recalculate derives the totals from the current items.
func (c *Cart) Recalculate() {
	totalItems := 0
	totalAmount := decimal.Zero
	for _, item := range c.Items {
		totalItems += item.Quantity
		totalAmount = totalAmount.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	c.TotalItems = totalItems
	c.TotalAmount = totalAmount
}

// Validate checks the cart before it is persisted.
func (c *Cart) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return ErrUserIDRequired
	}
	seen := make(map[string]struct{}, len(c.Items))
	for _, item := range c.Items {
		if err := plant.ValidateID(item.PlantID); err != nil {
			return err
		}
		if _, dup := seen[item.PlantID]; dup {
			return apperr.InvalidArgument("duplicate cart line for plant %s", item.PlantID)
		}
		seen[item.PlantID] = struct{}{}
		if item.Quantity < 1 {
			return ErrInvalidQuantity
		}
		if item.Price.IsNegative() {
			return apperr.InvalidArgument("cart line price cannot be negative")
		}
	}
	return nil
}

// PlantIDs returns the referenced plant ids in item order.
func (c *Cart) PlantIDs() []string {
	ids := make([]string, 0, len(c.Items))
	for _, item := range c.Items {
		ids = append(ids, item.PlantID)
	}
	return ids
}

func (c *Cart) indexOf(plantID string) int {
	for i, item := range c.Items {
		if item.PlantID == plantID {
			return i
		}
	}
	return -1
}

// add merges into an existing line (keeping its captured price) or appends a new one.
func (c *Cart) add(plantID string, quantity int, price decimal.Decimal, now time.Time) bool {
	if i := c.indexOf(plantID); i >= 0 {
		c.Items[i].Quantity += quantity
		return true
	}
	c.Items = append(c.Items, CartItem{
		PlantID:  plantID,
		Quantity: quantity,
		Price:    price,
		AddedAt:  now,
	})
	return false
}

func (c *Cart) setQuantity(plantID string, quantity int) error {
	i := c.indexOf(plantID)
	if i < 0 {
		return ErrItemNotFound
	}
	c.Items[i].Quantity = quantity
	return nil
}

func (c *Cart) remove(plantID string) error {
	before := len(c.Items)
	kept := make([]CartItem, 0, before)
	for _, item := range c.Items {
		if item.PlantID != plantID {
			kept = append(kept, item)
		}
	}
	if len(kept) == before {
		return ErrItemNotFound
	}
	c.Items = kept
	return nil
}

// Repository persists one cart document per user.
type Repository interface {
	// Load returns (nil, nil) when the user has no cart.
	Load(ctx context.Context, userID string) (*Cart, error)
	// Save replaces the stored cart only if its version still equals c.Version,
	// returning an apperr Conflict otherwise. On success c.Version is advanced.
	Save(ctx context.Context, c *Cart) error
}

// Totals is returned by every mutating operation.
type Totals struct {
	TotalItems  int             `json:"totalItems"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

type AddResult struct {
	Totals
	AddedItem string `json:"addedItem"`
}

type Service struct {
	repo      Repository
	catalog   plant.Catalog
	publisher aggregate.Publisher
	log       *logger.Logger
	attempts  int
	now       func() time.Time
}

type Option func(*Service)

func WithPublisher(p aggregate.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithMutationAttempts(n int) Option {
	return func(s *Service) { s.attempts = n }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, catalog plant.Catalog, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		catalog:  catalog,
		log:      log.With("component", "cart"),
		attempts: aggregate.DefaultMutationAttempts,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the hydrated cart. A user without a cart gets an empty one.
// Lines whose plant no longer resolves are left out of the view but stay stored.
func (s *Service) Get(ctx context.Context, userID string) (*readmodel.CartView, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUserIDRequired
	}
	c, err := s.repo.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return &readmodel.CartView{Items: []readmodel.CartItemView{}, TotalAmount: decimal.Zero}, nil
	}

	plants, err := aggregate.Hydrate(ctx, s.catalog, c.PlantIDs())
	if err != nil {
		return nil, err
	}

	items := make([]readmodel.CartItemView, 0, len(c.Items))
	for _, item := range c.Items {
		p, ok := plants[item.PlantID]
		if !ok {
			continue
		}
		items = append(items, readmodel.CartItemView{
			PlantSummary: readmodel.NewPlantSummary(p),
			Quantity:     item.Quantity,
			CartPrice:    item.Price,
			AddedAt:      item.AddedAt,
		})
	}
	if dropped := len(c.Items) - len(items); dropped > 0 {
		s.log.Debug("cart has dangling plant references", "user_id", userID, "dropped", dropped)
	}

	updatedAt := c.UpdatedAt
	return &readmodel.CartView{
		Items:       items,
		TotalItems:  c.TotalItems,
		TotalAmount: c.TotalAmount,
		UpdatedAt:   &updatedAt,
	}, nil
}

// AddItem adds quantity of a plant. An existing line for the plant is merged
// by incrementing its quantity; its captured price is kept.
func (s *Service) AddItem(ctx context.Context, userID, plantID string, quantity int) (*AddResult, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUserIDRequired
	}
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	p, err := aggregate.ResolveForMutation(ctx, s.catalog, plantID)
	if err != nil {
		return nil, err
	}
	if !p.IsAvailable {
		return nil, plant.ErrPlantUnavailable
	}

	var saved *Cart
	var merged bool
	err = aggregate.Mutate(ctx, s.attempts, func(ctx context.Context) error {
		now := s.now()
		c, err := s.repo.Load(ctx, userID)
		if err != nil {
			return err
		}
		if c == nil {
			c = New(userID, now)
		}
		merged = c.add(plantID, quantity, p.Price, now)
		if err := s.persist(ctx, c, now); err != nil {
			return err
		}
		saved = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("cart item added", "user_id", userID, "plant_id", plantID, "quantity", quantity, "merged", merged)
	aggregate.Emit(ctx, s.publisher, s.log, AggregateType, EventItemAdded, userID, saved.Version, ItemAdded{
		PlantID:     plantID,
		Quantity:    quantity,
		Price:       p.Price,
		Merged:      merged,
		TotalItems:  saved.TotalItems,
		TotalAmount: saved.TotalAmount,
	})

	return &AddResult{Totals: totalsOf(saved), AddedItem: p.Name}, nil
}

// UpdateQuantity replaces the quantity of an existing line. Use RemoveItem to delete it.
func (s *Service) UpdateQuantity(ctx context.Context, userID, plantID string, quantity int) (*Totals, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUserIDRequired
	}
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	if err := plant.ValidateID(plantID); err != nil {
		return nil, err
	}

	saved, err := s.mutateExisting(ctx, userID, func(c *Cart) error {
		return c.setQuantity(plantID, quantity)
	})
	if err != nil {
		return nil, err
	}

	aggregate.Emit(ctx, s.publisher, s.log, AggregateType, EventItemQuantityUpdated, userID, saved.Version, ItemQuantityUpdated{
		PlantID:     plantID,
		Quantity:    quantity,
		TotalItems:  saved.TotalItems,
		TotalAmount: saved.TotalAmount,
	})
	totals := totalsOf(saved)
	return &totals, nil
}

func (s *Service) RemoveItem(ctx context.Context, userID, plantID string) (*Totals, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUserIDRequired
	}
	if err := plant.ValidateID(plantID); err != nil {
		return nil, err
	}

	saved, err := s.mutateExisting(ctx, userID, func(c *Cart) error {
		return c.remove(plantID)
	})
	if err != nil {
		return nil, err
	}

	aggregate.Emit(ctx, s.publisher, s.log, AggregateType, EventItemRemoved, userID, saved.Version, ItemRemoved{
		PlantID:     plantID,
		TotalItems:  saved.TotalItems,
		TotalAmount: saved.TotalAmount,
	})
	totals := totalsOf(saved)
	return &totals, nil
}

// Clear empties an existing cart. Clearing an already empty cart succeeds.
func (s *Service) Clear(ctx context.Context, userID string) (*Totals, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUserIDRequired
	}

	var removed int
	saved, err := s.mutateExisting(ctx, userID, func(c *Cart) error {
		removed = len(c.Items)
		c.Items = []CartItem{}
		return nil
	})
	if err != nil {
		return nil, err
	}

	aggregate.Emit(ctx, s.publisher, s.log, AggregateType, EventCartCleared, userID, saved.Version, Cleared{RemovedItems: removed})
	totals := totalsOf(saved)
	return &totals, nil
}

// mutateExisting runs fn against the stored cart, failing when there is none.
func (s *Service) mutateExisting(ctx context.Context, userID string, fn func(c *Cart) error) (*Cart, error) {
	var saved *Cart
	err := aggregate.Mutate(ctx, s.attempts, func(ctx context.Context) error {
		c, err := s.repo.Load(ctx, userID)
		if err != nil {
			return err
		}
		if c == nil {
			return ErrCartNotFound
		}
		if err := fn(c); err != nil {
			return err
		}
		if err := s.persist(ctx, c, s.now()); err != nil {
			return err
		}
		saved = c
		return nil
	})
	return saved, err
}

// persist recomputes the totals, validates and saves.
func (s *Service) persist(ctx context.Context, c *Cart, now time.Time) error {
	c.Recalculate()
	if err := c.Validate(); err != nil {
		return err
	}
	c.UpdatedAt = now
	return s.repo.Save(ctx, c)
}

func totalsOf(c *Cart) Totals {
	return Totals{TotalItems: c.TotalItems, TotalAmount: c.TotalAmount}
}
