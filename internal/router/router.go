package router

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/m2b-ebook/api/internal/auth"
	"github.com/m2b-ebook/api/internal/config"
	"github.com/m2b-ebook/api/internal/handler"
	mw "github.com/m2b-ebook/api/internal/middleware"
	"github.com/m2b-ebook/api/internal/service"
	"github.com/m2b-ebook/api/internal/ws"
)

// Deps carries the collaborators the routes are built from.
type Deps struct {
	Credentials *auth.Credentials
	Sessions    *auth.Sessions
	Intake      *service.IntakeService
	Query       *service.QueryService
	Lifecycle   *service.LifecycleService
	Hub         *ws.Hub
	// IntakeLimiter is nil when Redis is not configured; intake is then unlimited.
	IntakeLimiter mw.Limiter
}

// New creates a Chi router with all application routes wired up.
func New(cfg *config.Config, d Deps) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	if cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	authHandler := handler.NewAuthHandler(d.Credentials, d.Sessions, cfg.AdminWhatsApp)
	authHandler.RegisterRoutes(r)

	intakeHandler := handler.NewIntakeHandler(d.Intake)
	r.Group(func(r chi.Router) {
		if d.IntakeLimiter != nil {
			r.Use(mw.RateLimit(d.IntakeLimiter, "intake"))
		}
		intakeHandler.RegisterRoutes(r)
	})

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(d.Hub, d.Sessions, w, r)
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(d.Sessions))

		authHandler.RegisterProtectedRoutes(r)

		handler.NewOrderHandler(d.Query, d.Lifecycle).RegisterRoutes(r)
		handler.NewExportHandler(d.Query, cfg.Location).RegisterRoutes(r)
		handler.NewVerifyHandler(d.Lifecycle).RegisterRoutes(r)
	})

	log.Println("Router initialized with all handlers")
	return r
}
