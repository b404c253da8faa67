package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"catalog/internal/httpapi/handlers"
	"catalog/internal/httpkit"
	"catalog/internal/pkg/middleware"
)

type Options struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	DownloadRPS    float64
	DownloadBurst  int
	// AdminToken guards the history routes.
	AdminToken string
	// TrustProxy takes the client address from X-Forwarded-For and
	// X-Real-IP. Without it the peer address is used, including for the
	// download rate limit.
	TrustProxy bool
}

func NewRouter(h *handlers.Handler, opt Options) http.Handler {
	log := h.Log()
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if opt.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.Logging(log))
	r.Use(middleware.Recovery(log))
	r.Use(httpkit.CORS(httpkit.CORSOptions{
		AllowedOrigins: opt.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", middleware.APIKeyHeader, middleware.RequestIDHeader},
		MaxAgeSeconds:  600,
	}))
	if opt.RequestTimeout > 0 {
		r.Use(middleware.Timeout(opt.RequestTimeout))
	}

	// ---- HEALTH ----
	r.Get("/health", h.Health)

	// ---- DOWNLOADS ----
	r.With(middleware.RateLimit(log, opt.DownloadRPS, opt.DownloadBurst)).
		Post("/products/{productId}/download", middleware.WrapHandler(log, h.PostDownload))

	// ---- HISTORY (admin) ----
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireToken(log, opt.AdminToken))
		r.Get("/downloads/history", middleware.WrapHandler(log, h.ListHistory))
		r.Get("/downloads/history/export", middleware.WrapHandler(log, h.ExportHistory))
	})

	return r
}
