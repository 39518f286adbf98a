package main

import (
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hszk-dev/dashstream/internal/api/handler"
	"github.com/hszk-dev/dashstream/internal/api/middleware"
	"github.com/hszk-dev/dashstream/internal/config"
	"github.com/hszk-dev/dashstream/internal/usecase"
)

func init() {
	_ = mime.AddExtensionType(".mpd", "application/dash+xml")
	_ = mime.AddExtensionType(".m4s", "video/iso.segment")
}

func setupRouter(cfg *config.Config, svc usecase.EncodeService, checks map[string]handler.HealthCheck, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger, "/health", "/metrics"))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.CORS(cfg.Server.CORSOrigin))

	health := handler.NewHealthHandler(checks, logger)
	r.Get("/health", health.Health)
	r.Handle("/metrics", promhttp.Handler())

	streams := http.StripPrefix("/streams/", http.FileServer(http.Dir(cfg.Server.StreamDir)))
	r.Handle("/streams/*", streams)

	jobs := handler.NewJobHandler(svc, cfg.Server.MaxUploadBytes, logger)
	list := handler.NewStreamHandler(svc, logger)

	r.Route("/api", func(r chi.Router) {
		r.Get("/", health.Index)
		r.Get("/list", list.List)
		r.Get("/status/{jobId}", jobs.Status)
		r.Get("/jobs", jobs.List)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(middleware.RateLimitConfig{
				RequestLimit: cfg.Server.RateLimit,
				WindowSize:   time.Minute,
			}))
			r.Post("/encode", jobs.Submit)
			r.Post("/encode/object", jobs.SubmitObject)
			r.Post("/uploads", jobs.CreateUpload)
		})
	})

	return r
}
