package httpapi

import (
	"net/http"

	"imageproxy/internal/http/handlers"
	appmw "imageproxy/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(app *handlers.App) http.Handler {
	r := chi.NewRouter()

	var origins []string
	if app.Config != nil {
		origins = app.Config.CORSAllowedOrigins
	}

	r.Use(
		middleware.RealIP,
		appmw.RequestID,
		appmw.Logger(app.Logger),
		middleware.Recoverer,
		appmw.CORS(origins),
	)

	r.Get("/v1/healthz", app.Health)
	r.Post("/api/generate-image", app.GenerateImage)
	r.Get("/metrics", app.MetricsHandler)

	if app.Config != nil && app.Config.DocsEnabled {
		r.Get("/v1/openapi.json", app.OpenAPIJSON)
		r.Get("/v1/docs", app.OpenAPIDocs)
	}

	return r
}
