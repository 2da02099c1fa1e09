package http

import (
	"net/http"
	"time"

	"github.com/fjod/jewel_cart/internal/repository"
	"github.com/fjod/jewel_cart/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type RouterConfig struct {
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
	AllowedOrigins     []string
	// checkout endpoints only
	CheckoutRatePerMinute int
	CheckoutBurst         int
}

type Dependencies struct {
	Sessions  *session.Manager
	Products  ProductCatalog
	Addresses repository.AddressRepository
	Logger    *zap.Logger
	// optional; built from RouterConfig when nil
	Limiter *RateLimiter
}

func NewRouter(cfg RouterConfig, deps Dependencies) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	cartHandler := NewCartHandler(deps.Sessions, deps.Products, cfg.RequestTimeout)
	wishlistHandler := NewWishlistHandler(deps.Sessions, deps.Products, cfg.RequestTimeout)
	checkoutHandler := NewCheckoutHandler(deps.Sessions, deps.Products, deps.Addresses, cfg.RequestTimeout)
	limiter := deps.Limiter
	if limiter == nil {
		limiter = NewRateLimiter(cfg.CheckoutRatePerMinute, cfg.CheckoutBurst)
	}

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(deps.Logger))
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	if cfg.MaxRequestBodySize > 0 {
		r.Use(middleware.RequestSize(cfg.MaxRequestBodySize))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(SessionMiddleware)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{key}", cartHandler.UpdateQuantity)
			r.Delete("/items/{key}", cartHandler.RemoveItem)
			r.Post("/items/{key}/increment", cartHandler.Increment)
			r.Post("/items/{key}/decrement", cartHandler.Decrement)
		})

		r.Route("/wishlist", func(r chi.Router) {
			r.Get("/", wishlistHandler.GetWishlist)
			r.Post("/items", wishlistHandler.AddItem)
			r.Delete("/items/{key}", wishlistHandler.RemoveItem)
			r.Post("/items/{key}/move-to-cart", wishlistHandler.MoveToCart)
		})

		if deps.Addresses != nil {
			addressHandler := NewAddressHandler(deps.Addresses, cfg.RequestTimeout)
			r.Route("/addresses", func(r chi.Router) {
				r.Get("/", addressHandler.ListAddresses)
				r.Post("/", addressHandler.CreateAddress)
				r.Delete("/{id}", addressHandler.DeleteAddress)
			})
		}

		r.Route("/checkout", func(r chi.Router) {
			r.Get("/", checkoutHandler.GetCheckout)
			r.Group(func(r chi.Router) {
				r.Use(limiter.Limit)
				r.Post("/", checkoutHandler.CheckoutCart)
				r.Post("/buy-now", checkoutHandler.BuyNow)
			})
			r.Post("/cancel", checkoutHandler.Cancel)
			r.Post("/reset", checkoutHandler.Reset)
			r.Post("/callback", checkoutHandler.Callback)
		})
	})

	allowed := cfg.AllowedOrigins
	if len(allowed) == 0 {
		allowed = []string{"*"}
	}
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: allowed,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", HeaderSessionID, HeaderRequestID},
		ExposedHeaders: []string{HeaderSessionID, HeaderRequestID},
	}).Handler(r)

	return otelhttp.NewHandler(corsHandler, "storefront",
		otelhttp.WithFilter(func(r *http.Request) bool { return r.URL.Path != "/health" }),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return "HTTP " + r.Method + " " + r.URL.Path
		}))
}
