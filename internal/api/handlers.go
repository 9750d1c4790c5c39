package api

import (
	"encoding/json"
	"net/http"

	"github.com/example/plant-store/internal/domain/cart"
	"github.com/example/plant-store/internal/domain/wishlist"
	"github.com/example/plant-store/internal/query"
)

type Handlers struct {
	carts     *cart.Service
	wishlists *wishlist.Service
	plants    *query.Handler
	resp      *Responder
}

func NewHandlers(carts *cart.Service, wishlists *wishlist.Service, plants *query.Handler, resp *Responder) *Handlers {
	return &Handlers{
		carts:     carts,
		wishlists: wishlists,
		plants:    plants,
		resp:      resp,
	}
}

// Cart Handlers

type addToCartRequest struct {
	PlantID  string          `json:"plantId"`
	Quantity json.RawMessage `json:"quantity"`
}

type updateCartRequest struct {
	Quantity json.RawMessage `json:"quantity"`
}

func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request) {
	view, err := h.carts.Get(r.Context(), r.PathValue("userId"))
	if err != nil {
		h.resp.Fail(w, r, err, "Failed to retrieve cart")
		return
	}
	h.resp.OK(w, "", view)
}

func (h *Handlers) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req addToCartRequest
	if err := decodeJSON(r, &req); err != nil {
		h.resp.Fail(w, r, err, "Failed to add item to cart")
		return
	}
	quantity, err := parseQuantity(req.Quantity, 1)
	if err != nil {
		h.resp.Fail(w, r, err, "Failed to add item to cart")
		return
	}

	result, err := h.carts.AddItem(r.Context(), r.PathValue("userId"), req.PlantID, quantity)
	if err != nil {
		h.resp.Fail(w, r, err, "Failed to add item to cart")
		return
	}
	h.resp.Created(w, "Item added to cart successfully", result)
}

func (h *Handlers) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var req updateCartRequest
	if err := decodeJSON(r, &req); err != nil {
		h.resp.Fail(w, r, err, "Failed to update cart")
		return
	}
	quantity, err := parseQuantity(req.Quantity, 0)
	if err != nil {
		h.resp.Fail(w, r, err, "Failed to update cart")
		return
	}

	totals, err := h.carts.UpdateQuantity(r.Context(), r.PathValue("userId"), r.PathValue("plantId"), quantity)
	if err != nil {
		h.resp.Fail(w, r, err, "Failed to update cart")
		return
	}
	h.resp.OK(w, "Cart updated successfully", totals)
}

func (h *Handlers) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	totals, err := h.carts.RemoveItem(r.Context(), r.PathValue("userId"), r.PathValue("plantId"))
	if err != nil {
		h.resp.Fail(w, r, err, "Failed to remove item from cart")
		return
	}
	h.resp.OK(w, "Item removed from cart", totals)
}

func (h *Handlers) ClearCart(w http.ResponseWriter, r *http.Request) {
	totals, err := h.carts.Clear(r.Context(), r.PathValue("userId"))
	if err != nil {
		h.resp.Fail(w, r, err, "Failed to clear cart")
		return
	}
	h.resp.OK(w, "Cart cleared successfully", totals)
}

// Wishlist Handlers

type addToWishlistRequest struct {
	PlantID string `json:"plantId"`
	Notes   string `json:"notes"`
}

func (h *Handlers) GetWishlist(w http.ResponseWriter, r *http.Request) {
	view, err := h.wishlists.Get(r.Context(), r.PathValue("userId"))
	if err != nil {
		h.resp.Fail(w, r, err, "Failed to retrieve wishlist")
		return
	}
	h.resp.OK(w, "", view)
}

func (h *Handlers) AddToWishlist(w http.ResponseWriter, r *http.Request) {
	var req addToWishlistRequest
	if err := decodeJSON(r, &req); err != nil {
		h.resp.Fail(w, r, err, "Failed to add plant to wishlist")
		return
	}

	result, err := h.wishlists.AddPlant(r.Context(), r.PathValue("userId"), req.PlantID, req.Notes)
	if err != nil {
		h.resp.Fail(w, r, err, "Failed to add plant to wishlist")
		return
	}
	h.resp.Created(w, "Plant added to wishlist successfully", result)
}

func (h *Handlers) RemoveFromWishlist(w http.ResponseWriter, r *http.Request) {
	result, err := h.wishlists.RemovePlant(r.Context(), r.PathValue("userId"), r.PathValue("plantId"))
	if err != nil {
		h.resp.Fail(w, r, err, "Failed to remove plant from wishlist")
		return
	}
	h.resp.OK(w, "Plant removed from wishlist", result)
}

// Plant Handlers

func (h *Handlers) ListPlants(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.plants.ListPlants(r.Context(), query.ListRequest{
		Search:    q.Get("search"),
		Category:  q.Get("category"),
		InStock:   q.Get("inStock"),
		Page:      q.Get("page"),
		Limit:     q.Get("limit"),
		SortBy:    q.Get("sortBy"),
		SortOrder: q.Get("sortOrder"),
	})
	if err != nil {
		h.resp.Fail(w, r, err, "Error fetching plants")
		return
	}
	respondJSON(w, http.StatusOK, Envelope{
		Success:    true,
		Data:       page.Plants,
		Pagination: &page.Pagination,
	})
}

func (h *Handlers) GetPlant(w http.ResponseWriter, r *http.Request) {
	p, err := h.plants.GetPlant(r.Context(), r.PathValue("id"))
	if err != nil {
		h.resp.Fail(w, r, err, "Error fetching plant")
		return
	}
	h.resp.OK(w, "", p)
}

func (h *Handlers) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.plants.ListCategories(r.Context())
	if err != nil {
		h.resp.Fail(w, r, err, "Error fetching categories")
		return
	}
	h.resp.OK(w, "", categories)
}
