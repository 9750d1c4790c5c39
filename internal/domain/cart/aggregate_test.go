package cart_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/plant-store/internal/apperr"
	"github.com/example/plant-store/internal/domain/cart"
	"github.com/example/plant-store/internal/domain/plant"
	"github.com/example/plant-store/internal/infrastructure/store/mocks"
	"github.com/example/plant-store/internal/logger"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type cartFixture struct {
	service   *cart.Service
	repo      *mocks.MockCartRepository
	catalog   *mocks.MockCatalog
	publisher *mocks.MockPublisher
	fern      *plant.Plant
	monstera  *plant.Plant
}

func newCartFixture() *cartFixture {
	fern := &plant.Plant{
		ID:          plant.NewID(),
		Name:        "Boston Fern",
		Price:       decimal.NewFromInt(299),
		Categories:  []plant.Category{plant.CategoryIndoor},
		IsAvailable: true,
	}
	monstera := &plant.Plant{
		ID:          plant.NewID(),
		Name:        "Monstera Deliciosa",
		Price:       decimal.RequireFromString("549.50"),
		Categories:  []plant.Category{plant.CategoryIndoor, plant.CategoryFoliage},
		IsAvailable: true,
	}
	repo := mocks.NewMockCartRepository()
	catalog := mocks.NewMockCatalog(fern, monstera)
	publisher := mocks.NewMockPublisher()
	service := cart.NewService(repo, catalog, logger.NewNop(),
		cart.WithPublisher(publisher),
		cart.WithClock(func() time.Time { return fixedNow }),
	)
	return &cartFixture{
		service:   service,
		repo:      repo,
		catalog:   catalog,
		publisher: publisher,
		fern:      fern,
		monstera:  monstera,
	}
}

func assertTotalsConsistent(t *testing.T, c *cart.Cart) {
	t.Helper()
	items := 0
	amount := decimal.Zero
	for _, item := range c.Items {
		items += item.Quantity
		amount = amount.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	assert.Equal(t, items, c.TotalItems)
	assert.True(t, amount.Equal(c.TotalAmount), "totalAmount %s, want %s", c.TotalAmount, amount)
}

// ============================================
// Get Tests
// ============================================

func TestService_Get_NoCartReturnsEmpty(t *testing.T) {
	f := newCartFixture()

	view, err := f.service.Get(context.Background(), "nobody")

	require.NoError(t, err)
	assert.Empty(t, view.Items)
	assert.NotNil(t, view.Items)
	assert.Equal(t, 0, view.TotalItems)
	assert.True(t, view.TotalAmount.IsZero())
	assert.Nil(t, view.UpdatedAt)
}

func TestService_Get_HydratesItems(t *testing.T) {
	f := newCartFixture()
	ctx := context.Background()
	_, err := f.service.AddItem(ctx, "alice", f.fern.ID, 2)
	require.NoError(t, err)

	view, err := f.service.Get(ctx, "alice")

	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, f.fern.ID, view.Items[0].ID)
	assert.Equal(t, "Boston Fern", view.Items[0].Name)
	assert.Equal(t, 2, view.Items[0].Quantity)
	assert.True(t, view.Items[0].CartPrice.Equal(decimal.NewFromInt(299)))
	assert.Equal(t, 2, view.TotalItems)
	require.NotNil(t, view.UpdatedAt)
	assert.Equal(t, fixedNow, *view.UpdatedAt)
}

func TestService_Get_DanglingReferenceIsHiddenButKept(t *testing.T) {
	f := newCartFixture()
	ctx := context.Background()
	_, err := f.service.AddItem(ctx, "alice", f.fern.ID, 1)
	require.NoError(t, err)
	_, err = f.service.AddItem(ctx, "alice", f.monstera.ID, 1)
	require.NoError(t, err)

	f.catalog.Delete(f.monstera.ID)
	view, err := f.service.Get(ctx, "alice")

	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, f.fern.ID, view.Items[0].ID)

	stored := f.repo.Stored("alice")
	require.NotNil(t, stored)
	assert.Len(t, stored.Items, 2)
	assert.Equal(t, f.monstera.ID, stored.Items[1].PlantID)
}

func TestService_Get_DanglingItemCanStillBeRemoved(t *testing.T) {
	f := newCartFixture()
	ctx := context.Background()
	_, err := f.service.AddItem(ctx, "alice", f.monstera.ID, 1)
	require.NoError(t, err)
	f.catalog.Delete(f.monstera.ID)

	totals, err := f.service.RemoveItem(ctx, "alice", f.monstera.ID)

	require.NoError(t, err)
	assert.Equal(t, 0, totals.TotalItems)
	assert.Empty(t, f.repo.Stored("alice").Items)
}

func TestService_Get_StoreError(t *testing.T) {
	f := newCartFixture()
	f.repo.LoadErr = apperr.Transient("store timeout", context.DeadlineExceeded)

	_, err := f.service.Get(context.Background(), "alice")

	assert.ErrorIs(t, err, apperr.ErrTransient)
}

func TestService_Get_EmptyUserID(t *testing.T) {
	f := newCartFixture()

	_, err := f.service.Get(context.Background(), " ")

	assert.ErrorIs(t, err, cart.ErrUserIDRequired)
}

// ============================================
// Add Item Tests
// ============================================

func TestService_AddItem_CreatesCart(t *testing.T) {
	f := newCartFixture()

	result, err := f.service.AddItem(context.Background(), "alice", f.fern.ID, 1)

	require.NoError(t, err)
	assert.Equal(t, 1, result.TotalItems)
	assert.True(t, result.TotalAmount.Equal(decimal.NewFromInt(299)))
	assert.Equal(t, "Boston Fern", result.AddedItem)

	stored := f.repo.Stored("alice")
	require.NotNil(t, stored)
	assert.Equal(t, int64(1), stored.Version)
	assert.Equal(t, fixedNow, stored.CreatedAt)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, fixedNow, stored.Items[0].AddedAt)
	assertTotalsConsistent(t, stored)

	assert.Equal(t, []string{cart.EventItemAdded}, f.publisher.EventTypes())
	assert.Equal(t, cart.AggregateType, f.publisher.Events[0].AggregateType)
	assert.Equal(t, "alice", f.publisher.Keys[0])
}

func TestService_AddItem_MergesAndKeepsFirstPrice(t *testing.T) {
	f := newCartFixture()
	ctx := context.Background()
	_, err := f.service.AddItem(ctx, "alice", f.fern.ID, 1)
	require.NoError(t, err)

	repriced := *f.fern
	repriced.Price = decimal.NewFromInt(350)
	f.catalog.Put(&repriced)

	result, err := f.service.AddItem(ctx, "alice", f.fern.ID, 2)

	require.NoError(t, err)
	assert.Equal(t, 3, result.TotalItems)
	assert.True(t, result.TotalAmount.Equal(decimal.NewFromInt(897)))

	stored := f.repo.Stored("alice")
	require.Len(t, stored.Items, 1)
	assert.Equal(t, 3, stored.Items[0].Quantity)
	assert.True(t, stored.Items[0].Price.Equal(decimal.NewFromInt(299)))
	assertTotalsConsistent(t, stored)
}

func TestService_AddItem_AppendsNewPlant(t *testing.T) {
	f := newCartFixture()
	ctx := context.Background()
	_, err := f.service.AddItem(ctx, "alice", f.fern.ID, 1)
	require.NoError(t, err)

	result, err := f.service.AddItem(ctx, "alice", f.monstera.ID, 2)

	require.NoError(t, err)
	assert.Equal(t, 3, result.TotalItems)
	assert.True(t, result.TotalAmount.Equal(decimal.RequireFromString("1398")))
	assertTotalsConsistent(t, f.repo.Stored("alice"))
}

func TestService_AddItem_Validation(t *testing.T) {
	tests := []struct {
		name     string
		plantID  func(f *cartFixture) string
		quantity int
		wantErr  error
	}{
		{"zero quantity", func(f *cartFixture) string { return f.fern.ID }, 0, cart.ErrInvalidQuantity},
		{"negative quantity", func(f *cartFixture) string { return f.fern.ID }, -3, cart.ErrInvalidQuantity},
		{"missing plant id", func(f *cartFixture) string { return "" }, 1, plant.ErrPlantIDRequired},
		{"malformed plant id", func(f *cartFixture) string { return "plant-1" }, 1, plant.ErrInvalidPlantID},
		{"unknown plant", func(f *cartFixture) string { return plant.NewID() }, 1, plant.ErrPlantNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCartFixture()

			_, err := f.service.AddItem(context.Background(), "alice", tt.plantID(f), tt.quantity)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, f.repo.SaveCalls)
			assert.Empty(t, f.publisher.Events)
		})
	}
}

func TestService_AddItem_UnavailablePlant(t *testing.T) {
	f := newCartFixture()
	soldOut := *f.fern
	soldOut.IsAvailable = false
	f.catalog.Put(&soldOut)

	_, err := f.service.AddItem(context.Background(), "alice", f.fern.ID, 1)

	assert.ErrorIs(t, err, plant.ErrPlantUnavailable)
	assert.ErrorIs(t, err, apperr.ErrUnavailable)
	assert.Nil(t, f.repo.Stored("alice"))
}

func TestService_AddItem_CatalogError(t *testing.T) {
	f := newCartFixture()
	f.catalog.ResolveErr = apperr.Transient("catalog unreachable", errors.New("dial tcp"))

	_, err := f.service.AddItem(context.Background(), "alice", f.fern.ID, 1)

	assert.ErrorIs(t, err, apperr.ErrTransient)
}

func TestService_AddItem_PublishFailureDoesNotFail(t *testing.T) {
	f := newCartFixture()
	f.publisher.PublishErr = errors.New("broker down")

	result, err := f.service.AddItem(context.Background(), "alice", f.fern.ID, 1)

	require.NoError(t, err)
	assert.Equal(t, 1, result.TotalItems)
	assert.NotNil(t, f.repo.Stored("alice"))
}

// ============================================
// Concurrency Tests
// ============================================

func TestService_AddItem_RetriesAfterConflict(t *testing.T) {
	f := newCartFixture()
	calls := 0
	f.repo.BeforeSave = func(c *cart.Cart) {
		calls++
		if calls > 1 {
			return
		}
		// Another writer creates the cart first.
		concurrent := cart.New("alice", fixedNow)
		concurrent.Items = []cart.CartItem{{PlantID: f.monstera.ID, Quantity: 1, Price: f.monstera.Price, AddedAt: fixedNow}}
		concurrent.Recalculate()
		concurrent.Version = 1
		f.repo.Put(concurrent)
	}

	result, err := f.service.AddItem(context.Background(), "alice", f.fern.ID, 1)

	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalItems)
	assert.Len(t, f.repo.SaveCalls, 2)

	stored := f.repo.Stored("alice")
	assert.Len(t, stored.Items, 2)
	assert.Equal(t, int64(2), stored.Version)
	assertTotalsConsistent(t, stored)
}

func TestService_AddItem_ConflictAfterAllAttempts(t *testing.T) {
	f := newCartFixture()
	f.service = cart.NewService(f.repo, f.catalog, logger.NewNop(), cart.WithMutationAttempts(2))
	f.repo.BeforeSave = func(c *cart.Cart) {
		stored := f.repo.Stored("alice")
		if stored == nil {
			stored = cart.New("alice", fixedNow)
		}
		stored.Version++
		f.repo.Put(stored)
	}

	_, err := f.service.AddItem(context.Background(), "alice", f.fern.ID, 1)

	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Len(t, f.repo.SaveCalls, 2)
}

func TestService_AddItem_TransientErrorIsNotRetried(t *testing.T) {
	f := newCartFixture()
	f.repo.SaveErr = apperr.Transient("store timeout", context.DeadlineExceeded)

	_, err := f.service.AddItem(context.Background(), "alice", f.fern.ID, 1)

	assert.ErrorIs(t, err, apperr.ErrTransient)
	assert.Len(t, f.repo.SaveCalls, 1)
}

func TestService_AddItem_CancelledContext(t *testing.T) {
	f := newCartFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.service.AddItem(ctx, "alice", f.fern.ID, 1)

	assert.ErrorIs(t, err, apperr.ErrTransient)
	assert.Empty(t, f.repo.SaveCalls)
}

// ============================================
// Update / Remove / Clear Tests
// ============================================

func TestService_Scenario_AddUpdateRemove(t *testing.T) {
	f := newCartFixture()
	ctx := context.Background()

	added, err := f.service.AddItem(ctx, "alice", f.fern.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, added.TotalItems)
	assert.True(t, added.TotalAmount.Equal(decimal.NewFromInt(299)))

	updated, err := f.service.UpdateQuantity(ctx, "alice", f.fern.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, updated.TotalItems)
	assert.True(t, updated.TotalAmount.Equal(decimal.NewFromInt(897)))

	removed, err := f.service.RemoveItem(ctx, "alice", f.fern.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, removed.TotalItems)
	assert.True(t, removed.TotalAmount.IsZero())

	_, err = f.service.RemoveItem(ctx, "alice", f.fern.ID)
	assert.ErrorIs(t, err, cart.ErrItemNotFound)

	assert.Equal(t, []string{
		cart.EventItemAdded,
		cart.EventItemQuantityUpdated,
		cart.EventItemRemoved,
	}, f.publisher.EventTypes())
}

func TestService_UpdateQuantity_Errors(t *testing.T) {
	f := newCartFixture()
	ctx := context.Background()

	_, err := f.service.UpdateQuantity(ctx, "alice", f.fern.ID, 2)
	assert.ErrorIs(t, err, cart.ErrCartNotFound)

	_, err = f.service.AddItem(ctx, "alice", f.fern.ID, 1)
	require.NoError(t, err)

	_, err = f.service.UpdateQuantity(ctx, "alice", f.monstera.ID, 2)
	assert.ErrorIs(t, err, cart.ErrItemNotFound)

	_, err = f.service.UpdateQuantity(ctx, "alice", f.fern.ID, 0)
	assert.ErrorIs(t, err, cart.ErrInvalidQuantity)

	_, err = f.service.UpdateQuantity(ctx, "alice", "not-an-id", 2)
	assert.ErrorIs(t, err, plant.ErrInvalidPlantID)

	assert.Equal(t, 1, f.repo.Stored("alice").TotalItems)
}

func TestService_RemoveItem_NoCart(t *testing.T) {
	f := newCartFixture()

	_, err := f.service.RemoveItem(context.Background(), "alice", f.fern.ID)

	assert.ErrorIs(t, err, cart.ErrCartNotFound)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestService_Clear(t *testing.T) {
	f := newCartFixture()
	ctx := context.Background()

	_, err := f.service.Clear(ctx, "alice")
	assert.ErrorIs(t, err, cart.ErrCartNotFound)

	_, err = f.service.AddItem(ctx, "alice", f.fern.ID, 2)
	require.NoError(t, err)
	_, err = f.service.AddItem(ctx, "alice", f.monstera.ID, 1)
	require.NoError(t, err)

	totals, err := f.service.Clear(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, totals.TotalItems)
	assert.True(t, totals.TotalAmount.IsZero())

	totals, err = f.service.Clear(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, totals.TotalItems)

	stored := f.repo.Stored("alice")
	assert.Empty(t, stored.Items)
	assertTotalsConsistent(t, stored)
}

// ============================================
// Cart Tests
// ============================================

func TestCart_Recalculate(t *testing.T) {
	c := cart.New("alice", fixedNow)
	c.Items = []cart.CartItem{
		{PlantID: plant.NewID(), Quantity: 2, Price: decimal.RequireFromString("10.10")},
		{PlantID: plant.NewID(), Quantity: 3, Price: decimal.RequireFromString("0.30")},
	}

	c.Recalculate()

	assert.Equal(t, 5, c.TotalItems)
	assert.True(t, c.TotalAmount.Equal(decimal.RequireFromString("21.10")))
}

func TestCart_Validate(t *testing.T) {
	id := plant.NewID()
	tests := []struct {
		name    string
		items   []cart.CartItem
		wantErr bool
	}{
		{"empty", nil, false},
		{"valid line", []cart.CartItem{{PlantID: id, Quantity: 1, Price: decimal.NewFromInt(5)}}, false},
		{"zero quantity", []cart.CartItem{{PlantID: id, Quantity: 0, Price: decimal.NewFromInt(5)}}, true},
		{"bad plant id", []cart.CartItem{{PlantID: "x", Quantity: 1}}, true},
		{"negative price", []cart.CartItem{{PlantID: id, Quantity: 1, Price: decimal.NewFromInt(-1)}}, true},
		{"duplicate plant", []cart.CartItem{
			{PlantID: id, Quantity: 1, Price: decimal.NewFromInt(5)},
			{PlantID: id, Quantity: 2, Price: decimal.NewFromInt(5)},
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := cart.New("alice", fixedNow)
			c.Items = tt.items

			err := c.Validate()

			if tt.wantErr {
				assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
