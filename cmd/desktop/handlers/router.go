package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Handlers groups the handlers mounted under /api.
type Handlers struct {
	Sync     *SyncHandler
	Trackers *TrackerHandler
	Trash    *TrashHandler
	Events   *EventHub
}

// NewRouter builds the desktop API.
func NewRouter(h Handlers, logger *zap.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", Health)

		r.Get("/sync/status", h.Sync.GetStatus)
		r.Post("/sync/trigger", h.Sync.TriggerSync)
		r.Post("/sync/online", h.Sync.SetOnline)

		r.Get("/trackers/due", h.Trackers.Due)
		r.Get("/trackers/{id}/schedule", h.Trackers.Schedule)
		r.Put("/trackers/{id}/responses/{date}", h.Trackers.Answer)
		r.Get("/stats/completion", h.Trackers.Completion)

		r.Get("/trash", h.Trash.Summary)
		r.Get("/trash/{table}", h.Trash.Count)
		r.Post("/trash/{table}/{id}/restore", h.Trash.Restore)
		r.Delete("/trash/{table}/{id}", h.Trash.Purge)

		if h.Events != nil {
			r.Method(http.MethodGet, "/events", h.Events)
		}

		r.Get("/navigation", Navigation)
		r.Post("/navigation/create", CreateCommand)
	})
	return r
}

// Health handles GET /health
func Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "lifetrack-desktop"})
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
