package wishlist

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/example/plant-store/internal/apperr"
	"github.com/example/plant-store/internal/domain/aggregate"
	"github.com/example/plant-store/internal/domain/plant"
	"github.com/example/plant-store/internal/logger"
	"github.com/example/plant-store/internal/readmodel"
)

const (
	AggregateType  = "Wishlist"
	MaxNotesLength = 500
)

var (
	ErrWishlistNotFound   = apperr.New(apperr.KindNotFound, "Wishlist not found")
	ErrPlantNotInWishlist = apperr.New(apperr.KindNotFound, "Plant not found in wishlist")
	ErrNotesTooLong       = apperr.New(apperr.KindInvalidArgument, "Notes cannot exceed 500 characters")
	ErrUserIDRequired     = apperr.New(apperr.KindInvalidArgument, "User ID is required")
)

// ErrAlreadyInWishlist reports the current membership state in its details.
var ErrAlreadyInWishlist = apperr.New(apperr.KindAlreadyExists, "Plant already in wishlist").
	WithDetails(map[string]any{"isInWishlist": true})

type WishlistItem struct {
	PlantID string    `json:"plantId"`
	Notes   string    `json:"notes"`
	AddedAt time.Time `json:"addedAt"`
}

// Wishlist is one user's saved plants. Each plant appears at most once.
type Wishlist struct {
	UserID    string         `json:"userId"`
	Plants    []WishlistItem `json:"plants"`
	Version   int64          `json:"version"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

func New(userID string, now time.Time) *Wishlist {
	return &Wishlist{
		UserID:    userID,
		Plants:    []WishlistItem{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (w *Wishlist) Contains(plantID string) bool {
	for _, item := range w.Plants {
		if item.PlantID == plantID {
			return true
		}
	}
	return false
}

func (w *Wishlist) PlantIDs() []string {
	ids := make([]string, 0, len(w.Plants))
	for _, item := range w.Plants {
		ids = append(ids, item.PlantID)
	}
	return ids
}

func (w *Wishlist) Validate() error {
	if strings.TrimSpace(w.UserID) == "" {
		return ErrUserIDRequired
	}
	seen := make(map[string]struct{}, len(w.Plants))
	for _, item := range w.Plants {
		if err := plant.ValidateID(item.PlantID); err != nil {
			return err
		}
		if _, dup := seen[item.PlantID]; dup {
			return ErrAlreadyInWishlist
		}
		seen[item.PlantID] = struct{}{}
		if utf8.RuneCountInString(item.Notes) > MaxNotesLength {
			return ErrNotesTooLong
		}
	}
	return nil
}

func (w *Wishlist) remove(plantID string) error {
	before := len(w.Plants)
	kept := make([]WishlistItem, 0, before)
	for _, item := range w.Plants {
		if item.PlantID != plantID {
			kept = append(kept, item)
		}
	}
	if len(kept) == before {
		return ErrPlantNotInWishlist
	}
	w.Plants = kept
	return nil
}

// Repository persists one wishlist document per user.
type Repository interface {
	// Load returns (nil, nil) when the user has no wishlist.
	Load(ctx context.Context, userID string) (*Wishlist, error)
	// Save is a conditional write on w.Version; see cart.Repository.
	Save(ctx context.Context, w *Wishlist) error
}

type AddResult struct {
	TotalItems int    `json:"totalItems"`
	AddedItem  string `json:"addedItem"`
}

type RemoveResult struct {
	TotalItems int `json:"totalItems"`
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
		log:      log.With("component", "wishlist"),
		attempts: aggregate.DefaultMutationAttempts,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the saved plants that still resolve in the catalog.
// TotalItems counts only those plants.
func (s *Service) Get(ctx context.Context, userID string) (*readmodel.WishlistView, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUserIDRequired
	}
	w, err := s.repo.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return &readmodel.WishlistView{Plants: []readmodel.WishlistPlantView{}}, nil
	}

	plants, err := aggregate.Hydrate(ctx, s.catalog, w.PlantIDs())
	if err != nil {
		return nil, err
	}

	views := make([]readmodel.WishlistPlantView, 0, len(w.Plants))
	for _, item := range w.Plants {
		p, ok := plants[item.PlantID]
		if !ok {
			continue
		}
		views = append(views, readmodel.WishlistPlantView{
			PlantSummary: readmodel.NewPlantSummary(p),
			Notes:        item.Notes,
			AddedAt:      item.AddedAt,
		})
	}

	updatedAt := w.UpdatedAt
	return &readmodel.WishlistView{
		Plants:     views,
		TotalItems: len(views),
		UpdatedAt:  &updatedAt,
	}, nil
}

// AddPlant saves a plant. Adding a plant that is already saved fails with
// ErrAlreadyInWishlist and leaves the existing entry and its notes alone.
// Unavailable plants may be saved.
func (s *Service) AddPlant(ctx context.Context, userID, plantID, notes string) (*AddResult, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUserIDRequired
	}
	if utf8.RuneCountInString(notes) > MaxNotesLength {
		return nil, ErrNotesTooLong
	}
	p, err := aggregate.ResolveForMutation(ctx, s.catalog, plantID)
	if err != nil {
		return nil, err
	}

	var saved *Wishlist
	err = aggregate.Mutate(ctx, s.attempts, func(ctx context.Context) error {
		now := s.now()
		w, err := s.repo.Load(ctx, userID)
		if err != nil {
			return err
		}
		if w == nil {
			w = New(userID, now)
		}
		if w.Contains(plantID) {
			return ErrAlreadyInWishlist
		}
		w.Plants = append(w.Plants, WishlistItem{PlantID: plantID, Notes: notes, AddedAt: now})
		if err := s.persist(ctx, w, now); err != nil {
			return err
		}
		saved = w
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("wishlist plant added", "user_id", userID, "plant_id", plantID)
	aggregate.Emit(ctx, s.publisher, s.log, AggregateType, EventPlantAdded, userID, saved.Version, PlantAdded{
		PlantID:    plantID,
		HasNotes:   notes != "",
		TotalItems: len(saved.Plants),
	})

	return &AddResult{TotalItems: len(saved.Plants), AddedItem: p.Name}, nil
}

func (s *Service) RemovePlant(ctx context.Context, userID, plantID string) (*RemoveResult, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUserIDRequired
	}
	if err := plant.ValidateID(plantID); err != nil {
		return nil, err
	}

	var saved *Wishlist
	err := aggregate.Mutate(ctx, s.attempts, func(ctx context.Context) error {
		w, err := s.repo.Load(ctx, userID)
		if err != nil {
			return err
		}
		if w == nil {
			return ErrWishlistNotFound
		}
		if err := w.remove(plantID); err != nil {
			return err
		}
		if err := s.persist(ctx, w, s.now()); err != nil {
			return err
		}
		saved = w
		return nil
	})
	if err != nil {
		return nil, err
	}

	aggregate.Emit(ctx, s.publisher, s.log, AggregateType, EventPlantRemoved, userID, saved.Version, PlantRemoved{
		PlantID:    plantID,
		TotalItems: len(saved.Plants),
	})
	return &RemoveResult{TotalItems: len(saved.Plants)}, nil
}

func (s *Service) persist(ctx context.Context, w *Wishlist, now time.Time) error {
	if err := w.Validate(); err != nil {
		return err
	}
	w.UpdatedAt = now
	return s.repo.Save(ctx, w)
}
