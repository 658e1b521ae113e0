package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"jewelshot/internal/adapter/repo"
	"jewelshot/internal/infra"
	"jewelshot/internal/optimize"
	"jewelshot/internal/storage"
)

// Optimizer is the slice of the optimization pipeline the handlers depend on.
type Optimizer interface {
	Optimize(ctx context.Context, imageURL, prompt string, settings optimize.Settings, reporter optimize.ProgressReporter) optimize.Result
}

// App bundles the collaborators shared by all HTTP handlers.
type App struct {
	Config    *infra.Config
	Logger    infra.Logger
	SQL       infra.SQLExecutor
	Pipeline  Optimizer
	Queue     *repo.QueueRepository
	Analytics *repo.AnalyticsRepository
	Store     *storage.FileStore
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]string{"error": code, "message": message})
}
