package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smaite/weser/api/controllers"
	"github.com/smaite/weser/api/middleware"
	"github.com/smaite/weser/internal/auth"
	"github.com/smaite/weser/internal/cart"
	checkoutsvc "github.com/smaite/weser/internal/checkout"
	"github.com/smaite/weser/internal/orders"
	products "github.com/smaite/weser/internal/products"
	"github.com/smaite/weser/pkg/config"
	"github.com/smaite/weser/pkg/db"
	"github.com/smaite/weser/pkg/enums"
	"github.com/smaite/weser/pkg/logger"
	"github.com/smaite/weser/pkg/redis"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       db.Pinger
	Redis    *redis.Client
	Registry *prometheus.Registry

	AuthService     auth.Service
	ProductService  products.Service
	CartService     cart.Service
	CheckoutService checkoutsvc.Service
	OrdersService   orders.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readinessDeps(deps)))
	})

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, deps.Redis, logg)).Post("/login", controllers.AuthLogin(deps.AuthService, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, deps.Redis, logg)).Post("/register", controllers.AuthRegister(deps.AuthService, logg))
		r.With(middleware.Auth(cfg.JWT, logg)).Get("/me", controllers.AuthMe(deps.AuthService, logg))
	})

	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", controllers.ListProducts(deps.ProductService, logg))
		r.Get("/{productId}", controllers.GetProduct(deps.ProductService, logg))
	})
	r.Get("/api/v1/categories", controllers.ListCategories(deps.ProductService, logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.GetCart(deps.CartService, logg))
			r.Delete("/", controllers.ClearCart(deps.CartService, logg))
			r.Post("/items", controllers.AddCartItem(deps.CartService, logg))
			r.Put("/items/{productId}", controllers.SetCartQuantity(deps.CartService, logg))
			r.Delete("/items/{productId}", controllers.RemoveCartItem(deps.CartService, logg))
		})

		r.With(middleware.Idempotency(deps.Redis, cfg.Checkout.IdempotencyTTL, logg)).
			Post("/checkout", controllers.Checkout(deps.CheckoutService, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.ListMyOrders(deps.OrdersService, logg))
			r.Get("/{orderId}", controllers.GetMyOrder(deps.OrdersService, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(string(enums.UserRoleAdmin), logg))

			r.Route("/products", func(r chi.Router) {
				r.Get("/", controllers.AdminListProducts(deps.ProductService, logg))
				r.Post("/", controllers.AdminCreateProduct(deps.ProductService, logg))
				r.Patch("/{productId}", controllers.AdminUpdateProduct(deps.ProductService, logg))
				r.Delete("/{productId}", controllers.AdminDeleteProduct(deps.ProductService, logg))
				r.Post("/{productId}/restock", controllers.AdminRestockProduct(deps.ProductService, logg))
			})

			r.Route("/categories", func(r chi.Router) {
				r.Post("/", controllers.AdminCreateCategory(deps.ProductService, logg))
				r.Patch("/{categoryId}", controllers.AdminUpdateCategory(deps.ProductService, logg))
				r.Delete("/{categoryId}", controllers.AdminDeleteCategory(deps.ProductService, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.AdminListOrders(deps.OrdersService, logg))
				r.Get("/stats", controllers.AdminOrderStats(deps.OrdersService, logg))
				r.Get("/{orderId}", controllers.AdminGetOrder(deps.OrdersService, logg))
				r.Patch("/{orderId}/status", controllers.AdminUpdateOrderStatuses(deps.OrdersService, logg))
			})
		})
	})

	return r
}

func readinessDeps(deps Deps) map[string]controllers.Pinger {
	checks := map[string]controllers.Pinger{}
	if deps.DB != nil {
		checks["postgres"] = deps.DB
	}
	if deps.Redis != nil {
		checks["redis"] = deps.Redis
	}
	return checks
}
