package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"jimpitan/internal/http/handlers"
	"jimpitan/internal/infra"
	"jimpitan/internal/middleware"
)

// RouterOptions tunes the cross-cutting middleware of the local API.
type RouterOptions struct {
	AllowedOrigins  []string
	DefaultLocale   string
	RateLimitPerMin int
	Logger          infra.Logger
}

func NewRouter(app *handlers.App, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.AllowedOrigins),
		middleware.I18N(opts.DefaultLocale),
	)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", app.Health)
		r.Get("/status/stream", app.StatusStream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))

			r.Get("/categories", app.Categories)
			r.Put("/category", app.SwitchCategory)

			r.Route("/drafts", func(r chi.Router) {
				r.Get("/", app.Drafts)
				r.Delete("/", app.ClearDrafts)
				r.Put("/{donor}", app.UpsertDraft)
				r.Delete("/{donor}", app.RemoveDraft)
			})

			r.Post("/submit", app.Submit)
			r.Get("/status", app.Status)
			r.Post("/connectivity", app.Connectivity)
			r.Post("/visibility", app.Visibility)

			r.Route("/pending", func(r chi.Router) {
				r.Get("/", app.Pending)
				r.Post("/drain", app.DrainPending)
			})
		})
	})

	return r
}
