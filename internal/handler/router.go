package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/unclebandit/smscampaigns/internal/controller"
	"github.com/unclebandit/smscampaigns/internal/logger"
)

type Controllers struct {
	Campaigns *controller.CampaignController
	Contacts  *controller.ContactController
	Templates *controller.TemplateController
}

// NewRouter mounts the /api routes behind the bearer token check.
func NewRouter(c Controllers, jwtSecret string, l *logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(l))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(RequireAuth(jwtSecret, l))

		r.Route("/campaigns", func(r chi.Router) {
			r.Get("/", c.Campaigns.ListCampaigns)
			r.Post("/", c.Campaigns.CreateCampaign)
			r.Get("/{id}", c.Campaigns.GetCampaign)
			r.Put("/{id}", c.Campaigns.UpdateCampaign)
			r.Patch("/{id}", c.Campaigns.PatchCampaign)
			r.Delete("/{id}", c.Campaigns.DeleteCampaign)
			r.Post("/{id}/preview", c.Campaigns.PreviewCampaign)
		})

		r.Get("/templates", c.Templates.ListTemplates)

		r.Route("/contacts", func(r chi.Router) {
			r.Get("/", c.Contacts.ListContacts)
			r.Post("/import", c.Contacts.ImportContacts)
			r.Get("/groups", c.Contacts.ListGroups)
			r.Delete("/groups/{group}", c.Contacts.DeleteGroup)
			r.Delete("/{id}", c.Contacts.DeleteContact)
		})
	})

	return r
}

func requestLogger(l *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			l.Info("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
