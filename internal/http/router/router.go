package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/perch-social/perch/internal/health"
	"github.com/perch-social/perch/internal/http/handler"
	"github.com/perch-social/perch/internal/http/middleware"
	"github.com/perch-social/perch/internal/http/response"
)

type Dependencies struct {
	AuthHandler      *handler.AuthHandler
	SessionValidator middleware.SessionValidator
	AuthRateLimitRPM int
	Readiness        *health.ProbeRunner
	EnableOTelHTTP   bool
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.BodyLimit(1 << 20))

	authLimiter := middleware.NewRateLimiter(dep.AuthRateLimitRPM, time.Minute, "auth").Middleware()

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if dep.Readiness == nil {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": []any{}})
			return
		}
		ready, results := dep.Readiness.Ready(r.Context())
		if ready {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": results})
			return
		}
		response.Error(w, r, http.StatusServiceUnavailable, "DEPENDENCY_UNREADY", "dependencies are not ready", map[string]any{"checks": results})
	})

	authRoutes := func(r chi.Router) {
		r.With(authLimiter).Post("/device/start", dep.AuthHandler.DeviceStart)
		r.With(authLimiter).Post("/device/poll", dep.AuthHandler.DevicePoll)
		r.With(middleware.SessionAuthMiddleware(dep.SessionValidator)).Get("/validate", dep.AuthHandler.Validate)
		r.Post("/logout", dep.AuthHandler.Logout)
	}
	// Canonical paths, plus a versioned alias for consumers that prefer it.
	r.Route("/auth", authRoutes)
	r.Route("/api/v1/auth", authRoutes)

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
