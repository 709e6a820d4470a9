package routes

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/supplyhub-backend/api/controllers"
	authcontrollers "github.com/angelmondragon/supplyhub-backend/api/controllers/auth"
	ordercontrollers "github.com/angelmondragon/supplyhub-backend/api/controllers/orders"
	productcontrollers "github.com/angelmondragon/supplyhub-backend/api/controllers/products"
	"github.com/angelmondragon/supplyhub-backend/api/middleware"
	"github.com/angelmondragon/supplyhub-backend/internal/auth"
	"github.com/angelmondragon/supplyhub-backend/internal/orders"
	"github.com/angelmondragon/supplyhub-backend/internal/products"
	"github.com/angelmondragon/supplyhub-backend/pkg/config"
	"github.com/angelmondragon/supplyhub-backend/pkg/enums"
	"github.com/angelmondragon/supplyhub-backend/pkg/logger"
	"github.com/angelmondragon/supplyhub-backend/pkg/metrics"
)

type routeKey struct {
	method  string
	pattern string
}

var (
	anyRole   = enums.Roles()
	buyers    = []enums.Role{enums.RoleVendor, enums.RoleCustomer}
	suppliers = []enums.Role{enums.RoleSupplier, enums.RoleAdmin}
)

// routePolicies is the single source of role requirements. Patterns are
// relative to /api. Public routes have no entry.
var routePolicies = map[routeKey][]enums.Role{
	{http.MethodGet, "/auth/profile"}: anyRole,

	{http.MethodPost, "/products"}:                suppliers,
	{http.MethodGet, "/products/mine"}:            {enums.RoleSupplier},
	{http.MethodPut, "/products/{productId}"}:     suppliers,
	{http.MethodDelete, "/products/{productId}"}:  {enums.RoleAdmin},
	{http.MethodPost, "/orders"}:                  buyers,
	{http.MethodGet, "/orders"}:                   {enums.RoleAdmin},
	{http.MethodGet, "/orders/my-orders"}:         anyRole,
	{http.MethodGet, "/orders/vendor-orders"}:     {enums.RoleVendor, enums.RoleCustomer, enums.RoleAdmin},
	{http.MethodGet, "/orders/supplier-orders"}:   suppliers,
	{http.MethodGet, "/orders/{orderId}"}:         anyRole,
	{http.MethodPut, "/orders/{orderId}"}:         anyRole,
	{http.MethodDelete, "/orders/{orderId}"}:      {enums.RoleAdmin},
	{http.MethodPost, "/orders/{orderId}/cancel"}: buyers,
	{http.MethodPost, "/orders/{orderId}/rating"}: buyers,
}

// RateLimitStore backs the login and register throttles.
type RateLimitStore interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
	RateLimitKey(scope string) string
}

// Dependencies carries everything the router wires into handlers.
type Dependencies struct {
	Config      *config.Config
	Logger      *logger.Logger
	Users       middleware.UserLoader
	Auth        auth.Service
	Products    products.Service
	Orders      orders.Service
	RateLimits  RateLimitStore
	Readiness   map[string]controllers.Pinger
	Registry    *prometheus.Registry
	HTTPMetrics *metrics.HTTPMetrics
	Domain      *metrics.DomainMetrics
}

// NewRouter builds the HTTP surface. It panics when a protected route has
// no entry in routePolicies.
func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(deps.HTTPMetrics),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Readiness))
	})
	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Registry))
	}

	cookies := authcontrollers.NewCookieSettings(cfg)
	authGate := middleware.Auth(cfg.JWT, cfg.Cookie.Name, deps.Users, logg)
	maxUpload := cfg.Media.MaxUploadBytes()

	r.Route("/api", func(r chi.Router) {
		protect := func(method, pattern string, h http.HandlerFunc) {
			roles, ok := routePolicies[routeKey{method, pattern}]
			if !ok {
				panic(fmt.Sprintf("routes: no policy for %s %s", method, pattern))
			}
			r.With(authGate, middleware.AuthorizeRoles(logg, roles...)).Method(method, pattern, h)
		}

		r.With(authThrottle(deps, "login")...).Post("/auth/login", authcontrollers.Login(deps.Auth, cookies, logg))
		r.With(authThrottle(deps, "register")...).Post("/auth/register", authcontrollers.Register(deps.Auth, cookies, logg))
		r.Post("/auth/logout", authcontrollers.Logout(cookies))
		protect(http.MethodGet, "/auth/profile", authcontrollers.Profile(deps.Auth, logg))

		r.Get("/products", productcontrollers.List(deps.Products, logg))
		r.Get("/products/{productId}", productcontrollers.Get(deps.Products, logg))
		protect(http.MethodGet, "/products/mine", productcontrollers.ListMine(deps.Products, logg))
		protect(http.MethodPost, "/products", productcontrollers.Create(deps.Products, maxUpload, logg))
		protect(http.MethodPut, "/products/{productId}", productcontrollers.Update(deps.Products, maxUpload, logg))
		protect(http.MethodDelete, "/products/{productId}", productcontrollers.Delete(deps.Products, logg))

		protect(http.MethodPost, "/orders", ordercontrollers.Create(deps.Orders, logg))
		protect(http.MethodGet, "/orders", ordercontrollers.List(deps.Orders, logg))
		protect(http.MethodGet, "/orders/my-orders", ordercontrollers.MyOrders(deps.Orders, logg))
		protect(http.MethodGet, "/orders/vendor-orders", ordercontrollers.VendorOrders(deps.Orders, logg))
		protect(http.MethodGet, "/orders/supplier-orders", ordercontrollers.SupplierOrders(deps.Orders, logg))
		protect(http.MethodGet, "/orders/{orderId}", ordercontrollers.Detail(deps.Orders, logg))
		protect(http.MethodPut, "/orders/{orderId}", ordercontrollers.UpdateStatus(deps.Orders, logg))
		protect(http.MethodDelete, "/orders/{orderId}", ordercontrollers.Delete(deps.Orders, logg))
		protect(http.MethodPost, "/orders/{orderId}/cancel", ordercontrollers.Cancel(deps.Orders, logg))
		protect(http.MethodPost, "/orders/{orderId}/rating", ordercontrollers.Rate(deps.Orders, logg))
	})

	return r
}

func authThrottle(deps Dependencies, name string) []func(http.Handler) http.Handler {
	limits := deps.Config.AuthRateLimit
	if !limits.Enabled || deps.RateLimits == nil {
		return nil
	}

	var policy middleware.AuthRateLimitPolicy
	switch name {
	case "login":
		policy = middleware.NewAuthRateLimitPolicy(name, limits.LoginWindow, limits.LoginIPLimit, limits.LoginEmailLimit)
	default:
		policy = middleware.NewAuthRateLimitPolicy(name, limits.RegisterWindow, limits.RegisterIPLimit, limits.RegisterEmailLimit)
	}
	return []func(http.Handler) http.Handler{
		middleware.AuthRateLimit(policy, deps.RateLimits, deps.Domain, deps.Logger),
	}
}
