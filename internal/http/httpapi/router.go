package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"jewelshot/internal/http/handlers"
	"jewelshot/internal/middleware"
)

// Options carries the router collaborators that are not part of the handler App.
type Options struct {
	AllowedOrigins  []string
	RateLimitPerMin int
	Record          middleware.RequestRecorder
	CountryLookup   middleware.CountryLookup
}

// NewRouter assembles the API surface with the shared middleware chain.
func NewRouter(app *handlers.App, opts Options) stdhttp.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP, chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(app.Logger))
	r.Use(middleware.CORS(opts.AllowedOrigins))
	if opts.RateLimitPerMin > 0 {
		r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
	}
	r.Use(middleware.Analytics(opts.Record, opts.CountryLookup))

	r.Get("/v1/healthz", app.Health)

	r.Post("/v1/images/optimize", app.OptimizeImage)

	r.Route("/v1/queue", func(r chi.Router) {
		r.Post("/", app.QueueEnqueue)
		r.Get("/{item_id}", app.QueueItemStatus)
	})

	r.Get("/v1/artifacts/*", app.Artifact)
	r.Get("/v1/stats/overview", app.StatsOverview)

	return r
}
