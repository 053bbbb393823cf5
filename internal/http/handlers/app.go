package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"imageproxy/internal/domain"
	"imageproxy/internal/infra"
)

// Generator runs one generation request to completion.
type Generator interface {
	Generate(ctx context.Context, req domain.GenerationRequest) domain.Result
}

type App struct {
	Config    *infra.Config
	Logger    infra.Logger
	Generator Generator
	Metrics   http.Handler
}

func NewApp(cfg *infra.Config, logger infra.Logger, generator Generator, metrics http.Handler) *App {
	return &App{Config: cfg, Logger: logger, Generator: generator, Metrics: metrics}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, message string) {
	a.json(w, code, map[string]string{"error": message})
}

// writeResult writes the single response of a generation request.
func (a *App) writeResult(w http.ResponseWriter, result domain.Result) {
	body, contentType := result.ResponseBody()
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.WriteHeader(result.StatusCode())
	_, _ = w.Write(body)
}

func (a *App) maxBodyBytes() int64 {
	if a.Config != nil && a.Config.MaxRequestBodyBytes > 0 {
		return a.Config.MaxRequestBodyBytes
	}
	return 1 << 20
}
