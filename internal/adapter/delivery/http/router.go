// Package http provides the HTTP delivery layer for the URL shortener service.
// It decodes and validates requests, calls the URL use case and renders JSON
// responses or redirects.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-playground/validator/v10"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/vadimbarashkov/shorturl/pkg/middleware/recoverer"
)

// ReservedCodes are first path segments taken by fixed routes. A short code
// equal to one of them could never be reached through GET /{shortCode}.
var ReservedCodes = []string{"encode", "decode", "list", "stats", "ping", "swagger", "docs"}

// Config carries the router settings that come from the application config.
type Config struct {
	// BaseURL is used to build short URLs. When empty it is derived from
	// each request.
	BaseURL        string
	AllowedOrigins []string
	// DocsFile is the OpenAPI document served at /docs/swagger.yml.
	DocsFile string
}

// NewRouter initializes a chi router with middleware and the URL shortener routes.
func NewRouter(logger *httplog.Logger, urlUseCase urlUseCase, cfg Config) *chi.Mux {
	r := chi.NewRouter()

	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	docsFile := cfg.DocsFile
	if docsFile == "" {
		docsFile = "./docs/swagger.yml"
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Accept"},
		AllowCredentials: false,
		MaxAge:           84600,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(recoverer.New(logger.Logger))

	r.Get("/ping", handlePing)

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/swagger.yml"),
	))

	r.Get("/docs/swagger.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, docsFile)
	})

	h := newURLHandler(urlUseCase, validator.New(), cfg.BaseURL)

	r.Post("/encode", h.encodeURL)
	r.Post("/decode", h.decodeURL)
	r.Get("/list", h.listURLs)
	r.Get("/stats/{shortCode}", h.getURLStats)
	r.Get("/{shortCode}", h.redirectURL)

	return r
}
