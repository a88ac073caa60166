package router

import (
	"net/http"

	"github.com/comanda-app/api/internal/blob"
	"github.com/comanda-app/api/internal/config"
	"github.com/comanda-app/api/internal/database"
	"github.com/comanda-app/api/internal/handler"
	"github.com/comanda-app/api/internal/metrics"
	mw "github.com/comanda-app/api/internal/middleware"
	"github.com/comanda-app/api/internal/service"
	"github.com/comanda-app/api/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Deps are the long-lived components the routes are built from.
type Deps struct {
	Config   *config.Config
	Logger   *zap.Logger
	Queries  *database.Queries
	Orders   *service.OrderService
	Identity *service.IdentityService
	Hub      *ws.Hub
	Blobs    *blob.LocalStore
}

// New creates a Chi router with all application routes wired up.
// Applies authentication, company scoping, and role-based middleware as needed.
func New(d Deps) chi.Router {
	cfg, logger, queries := d.Config, d.Logger, d.Queries

	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// WebSocket route (handles auth internally via query param). Kept out of
	// the logging and metrics group so the upgrade can hijack the connection.
	r.Get("/ws/companies/{cid}/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(d.Hub, cfg.JWTSecret, w, r)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Logger)
		r.Use(metrics.HTTPMetricsMiddleware)

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ok"}`))
		})
		r.Handle("/metrics", promhttp.Handler())

		fileServer := http.FileServer(http.Dir(d.Blobs.Dir()))
		r.Handle(blob.PublicPrefix+"*", http.StripPrefix(blob.PublicPrefix, fileServer))

		// Auth routes (public)
		authHandler := handler.NewAuthHandler(d.Identity, logger)
		authHandler.RegisterRoutes(r)

		// Customer-facing menu and delivery orders
		publicHandler := handler.NewPublicHandler(queries, d.Orders, logger)
		r.Route("/public/companies/{cid}", publicHandler.RegisterRoutes)

		// Protected routes (require authentication)
		r.Group(func(r chi.Router) {
			r.Use(mw.Authenticate(cfg.JWTSecret))

			r.Get("/auth/session", authHandler.Session)

			// Company-scoped routes
			r.Route("/companies/{cid}", func(r chi.Router) {
				r.Use(mw.RequireCompany)

				categoryHandler := handler.NewCategoryHandler(queries, logger)
				r.Route("/categories", categoryHandler.RegisterRoutes)

				productHandler := handler.NewProductHandler(queries, logger)
				r.Route("/products", productHandler.RegisterRoutes)

				tableHandler := handler.NewTableHandler(queries, d.Hub, logger)
				r.Route("/tables", tableHandler.RegisterRoutes)

				orderHandler := handler.NewOrderHandler(d.Orders, queries, logger)
				r.Route("/orders", func(r chi.Router) {
					orderHandler.RegisterRoutes(r)

					// Payment (nested under orders)
					paymentHandler := handler.NewPaymentHandler(d.Orders, logger)
					r.Route("/{id}/payment", paymentHandler.RegisterRoutes)
				})

				userHandler := handler.NewUserHandler(queries, d.Identity, logger)
				r.Route("/users", userHandler.RegisterRoutes)

				uploadHandler := handler.NewUploadHandler(d.Blobs, queries, logger)
				r.Route("/uploads", uploadHandler.RegisterRoutes)

				reportsHandler := handler.NewReportsHandler(queries, logger)
				r.Route("/reports", reportsHandler.RegisterRoutes)
			})
		})
	})

	logger.Info("router initialized")
	return r
}
