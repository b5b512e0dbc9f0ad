package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"pdfedit/internal/handler/respond"
)

type RouterConfig struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// NewRouter mounts the API under /api. previews may be nil.
func NewRouter(cfg RouterConfig, docs *DocumentHandler, diag *DiagnosticsHandler, previews http.HandlerFunc, logger *logrus.Logger) http.Handler {
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/upload", docs.Upload)
		r.Post("/apply", docs.Apply)
		r.Post("/plan", docs.Plan)

		r.Get("/init-db", diag.InitDB)
		r.Post("/init-db", diag.InitDB)
		r.Get("/test-blob", diag.TestBlob)
		r.Get("/test-db", diag.TestDB)

		r.Route("/documents", func(r chi.Router) {
			r.Get("/", docs.ListDocuments)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", docs.GetDocument)
				r.Delete("/", docs.DeleteDocument)
				r.Get("/versions", docs.ListVersions)

				r.Route("/versions/{num}", func(r chi.Router) {
					r.Get("/", docs.GetVersion)
					r.Get("/file", docs.DownloadVersion)
					r.Get("/text", docs.VersionText)
					if previews != nil {
						r.Get("/preview", previews)
					}
				})
			})
		})
	})

	return r
}
