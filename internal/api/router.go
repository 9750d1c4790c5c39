package api

import (
	"net/http"
	"time"

	"github.com/example/plant-store/internal/api/middleware"
	"github.com/example/plant-store/internal/logger"
)

type RouterConfig struct {
	Handlers       *Handlers
	Log            *logger.Logger
	Env            string
	ExposeErrors   bool
	AllowedOrigins []string
	// RateLimiter is optional; nil disables rate limiting.
	RateLimiter  *middleware.RateLimiter
	MaxBodyBytes int64
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()
	h := cfg.Handlers

	// Cart
	mux.HandleFunc("GET /api/cart/{userId}", h.GetCart)
	mux.HandleFunc("POST /api/cart/{userId}", h.AddToCart)
	mux.HandleFunc("DELETE /api/cart/{userId}", h.ClearCart)
	mux.HandleFunc("PUT /api/cart/{userId}/{plantId}", h.UpdateCartItem)
	mux.HandleFunc("DELETE /api/cart/{userId}/{plantId}", h.RemoveFromCart)

	// Wishlist
	mux.HandleFunc("GET /api/wishlist/{userId}", h.GetWishlist)
	mux.HandleFunc("POST /api/wishlist/{userId}", h.AddToWishlist)
	mux.HandleFunc("DELETE /api/wishlist/{userId}/{plantId}", h.RemoveFromWishlist)

	// Plants
	mux.HandleFunc("GET /api/plants", h.ListPlants)
	mux.HandleFunc("GET /api/plants/categories/list", h.ListCategories)
	mux.HandleFunc("GET /api/plants/{id}", h.GetPlant)

	mux.HandleFunc("GET /api/health", healthHandler(cfg.Env))
	mux.HandleFunc("/", notFound)

	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = middleware.DefaultMaxBodyBytes
	}

	chain := []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.Logging(cfg.Log),
		middleware.Recover(cfg.Log, cfg.ExposeErrors),
		middleware.CORS(cfg.AllowedOrigins),
	}
	if cfg.RateLimiter != nil {
		chain = append(chain, cfg.RateLimiter.Middleware)
	}
	chain = append(chain, middleware.BodyLimit(maxBody))

	return middleware.Chain(mux, chain...)
}

type healthResponse struct {
	Success     bool      `json:"success"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	Environment string    `json:"environment"`
}

func healthHandler(env string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, healthResponse{
			Success:     true,
			Message:     "Plant Store API is running!",
			Timestamp:   time.Now().UTC(),
			Environment: env,
		})
	}
}

func notFound(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusNotFound, Envelope{
		Success: false,
		Message: "Route " + r.URL.RequestURI() + " not found",
	})
}
