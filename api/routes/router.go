package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront-checkout/api/controllers"
	"github.com/angelmondragon/storefront-checkout/api/middleware"
	"github.com/angelmondragon/storefront-checkout/internal/events"
	"github.com/angelmondragon/storefront-checkout/internal/storage"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

// Deps is everything the storefront edge routes need.
type Deps struct {
	Config    *config.Config
	Logger    *logger.Logger
	KV        storage.KV
	Bus       events.Bus
	Carts     controllers.CartOpener
	Products  controllers.ProductLookup
	Lookups   controllers.StoreLookup
	Profiles  controllers.ProfileLookup
	Checkout  controllers.CheckoutRegistry
	Readiness map[string]controllers.Pinger
	// Metrics serves /metrics when set.
	Metrics http.Handler
}

func NewRouter(d Deps) http.Handler {
	logg := d.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(d.Config.CORS.AllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(d.Config))
		r.Get("/ready", controllers.HealthReady(d.Config, logg, d.Readiness))
	})
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	r.Route("/store/{tenant}", func(r chi.Router) {
		r.Use(middleware.Tenant(logg))
		r.Use(middleware.Device(logg))

		r.Get("/info", controllers.StoreInfo(d.Lookups, logg))
		r.Get("/search/suggestions", controllers.SearchSuggestions(d.Lookups, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartGet(d.Carts, logg))
			r.Delete("/", controllers.CartClear(d.Carts, logg))
			r.Get("/events", controllers.CartEvents(d.Bus, logg))
			r.Post("/items", controllers.CartAddItem(d.Carts, d.Products, logg))
			r.Patch("/items/{productId}", controllers.CartUpdateItem(d.Carts, logg))
			r.Delete("/items/{productId}", controllers.CartRemoveItem(d.Carts, logg))
		})

		r.Route("/customer/session", func(r chi.Router) {
			r.Get("/", controllers.CustomerSessionGet(d.KV, logg))
			r.Put("/", controllers.CustomerSessionPut(d.KV, d.Profiles, logg))
			r.Delete("/", controllers.CustomerSessionDelete(d.KV, logg))
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", controllers.CheckoutOpen(d.Checkout, d.Carts, d.KV, logg))
			r.Route("/{sessionId}", func(r chi.Router) {
				r.Get("/", controllers.CheckoutGet(d.Checkout, logg))
				r.Delete("/", controllers.CheckoutClose(d.Checkout, logg))
				r.Post("/shipping", controllers.CheckoutShipping(d.Checkout, logg))
				r.Post("/payment", controllers.CheckoutPayment(d.Checkout, logg))
				r.Post("/back", controllers.CheckoutBack(d.Checkout, logg))
				r.Post("/retry", controllers.CheckoutRetry(d.Checkout, logg))
			})
		})
	})

	return r
}
