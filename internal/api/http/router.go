package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	authmw "github.com/mind-engage/mindengage-motivation/internal/auth/middleware"
	"github.com/mind-engage/mindengage-motivation/internal/features"
	"github.com/mind-engage/mindengage-motivation/internal/rbac"
)

// Deps are the collaborators the HTTP surface is built from.
type Deps struct {
	Predictor Predictor
	Catalog   Catalog
	Deriver   *features.Deriver
	Logger    *slog.Logger

	Auth          *authmw.AuthService // nil disables auth
	Roles         *rbac.Checker
	AdminUser     string
	AdminPassHash string

	CORSOrigins []string
}

func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Roles == nil {
		d.Roles = rbac.NewChecker(nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// analyst can predict and browse models but never issue tokens
	identify := authmw.Anonymous("analyst")
	if d.Auth != nil {
		identify = authmw.JWTMiddleware(d.Auth)
		r.Post("/auth/login", authmw.LoginHandler(d.Auth, d.AdminUser, d.AdminPassHash))
	}

	r.Group(func(pr chi.Router) {
		pr.Use(identify)

		pr.With(d.Roles.Require("predict:run")).
			Post("/predict", PredictHandler(d.Predictor, d.Deriver, d.Logger))

		pr.With(d.Roles.Require("models:list")).
			Get("/models", ListModelsHandler(d.Catalog))
		pr.With(d.Roles.Require("models:list")).
			Get("/models/{key}", GetModelHandler(d.Catalog))

		if d.Auth != nil {
			pr.With(d.Roles.Require("tokens:issue")).
				Post("/auth/tokens", authmw.IssueTokenHandler(d.Auth, d.Roles))
		}
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if d.Catalog == nil || d.Catalog.Len() == 0 {
			http.Error(w, "no models loaded", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(200)
	})
	return r
}
